package vfs

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/objectfs/objectfs/internal/adapter"
	"github.com/objectfs/objectfs/internal/backend"
	"github.com/objectfs/objectfs/internal/router"
	"github.com/objectfs/objectfs/pkg/errors"
	"github.com/objectfs/objectfs/pkg/types"
)

// memAdapter is a minimal in-memory backend.Adapter used to exercise the
// facade's routing, overwrite, and event-emission behavior without a real
// storage backend.
type memAdapter struct {
	mu    sync.Mutex
	files map[string][]byte
	dirs  map[string]bool

	// forceExistsFalseOnce forces the next Exists() call to return false even if
	// the path was concurrently created, modeling boundary scenario 2
	// (overwrite pre-check race).
	forceExistsFalseOnce bool
	moveAlwaysFails       bool
}

func newMemAdapter() *memAdapter {
	return &memAdapter{files: make(map[string][]byte), dirs: make(map[string]bool)}
}

func (m *memAdapter) ResolveRoot(subPath string) (string, error) { return "mem:" + subPath, nil }

func (m *memAdapter) ListDir(ctx context.Context, root, rel string, page backend.ListPage) ([]types.DirEntry, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.DirEntry
	for name := range m.files {
		out = append(out, types.DirEntry{Name: name, Kind: types.KindFile})
	}
	return out, len(out), nil
}

func (m *memAdapter) ReadFile(ctx context.Context, root, rel string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[rel]
	if !ok {
		return nil, errors.NotFound("mem", rel)
	}
	return data, nil
}

func (m *memAdapter) StreamFile(ctx context.Context, root, rel string, rng *backend.Range) (*backend.StreamResponse, error) {
	return nil, errors.NotImplemented("mem", "stream_file")
}

func (m *memAdapter) WriteFile(ctx context.Context, root, rel string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[rel] = data
	return nil
}

func (m *memAdapter) WriteFileStream(ctx context.Context, root, rel string, chunks io.Reader) (int64, error) {
	data, err := io.ReadAll(chunks)
	if err != nil {
		return 0, err
	}
	if err := m.WriteFile(ctx, root, rel, data); err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}

func (m *memAdapter) Mkdir(ctx context.Context, root, rel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dirs[rel] = true
	return nil
}

func (m *memAdapter) Delete(ctx context.Context, root, rel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, rel)
	return nil
}

func (m *memAdapter) StatFile(ctx context.Context, root, rel string) (*types.FileStat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[rel]
	if !ok {
		return nil, errors.NotFound("mem", rel)
	}
	return &types.FileStat{Name: rel, Size: int64(len(data))}, nil
}

func (m *memAdapter) Exists(ctx context.Context, root, rel string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.forceExistsFalseOnce {
		m.forceExistsFalseOnce = false
		return false, nil
	}
	_, ok := m.files[rel]
	return ok, nil
}

func (m *memAdapter) StatPath(ctx context.Context, root, rel string) (*types.PathProbe, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[rel]
	return &types.PathProbe{Exists: ok}, nil
}

func (m *memAdapter) Move(ctx context.Context, root, src, dst string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.moveAlwaysFails {
		return errors.AlreadyExists("mem", "destination exists")
	}
	data, ok := m.files[src]
	if !ok {
		return errors.NotFound("mem", src)
	}
	m.files[dst] = data
	delete(m.files, src)
	return nil
}

func (m *memAdapter) Rename(ctx context.Context, root, src, dst string) error {
	return m.Move(ctx, root, src, dst)
}

func (m *memAdapter) Copy(ctx context.Context, root, src, dst string, overwrite bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[src]
	if !ok {
		return errors.NotFound("mem", src)
	}
	m.files[dst] = append([]byte(nil), data...)
	return nil
}

type memStore struct{ records []*types.StorageAdapter }

func (s *memStore) ListEnabledAdapters() ([]*types.StorageAdapter, error) { return s.records, nil }

type recordingSink struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingSink) Notify(ctx context.Context, event types.AutomationEvent, p string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, string(event)+":"+p)
}

func setupFacade(t *testing.T, typeName string, mounts map[string]string) (*Facade, map[string]*memAdapter, *recordingSink) {
	t.Helper()
	backends := make(map[string]*memAdapter)
	var records []*types.StorageAdapter
	for id, mount := range mounts {
		backends[id] = newMemAdapter()
		records = append(records, &types.StorageAdapter{ID: id, Type: typeName, Enabled: true, Path: mount})
	}

	adapter.Register(backend.TypeDescriptor{
		Type: typeName,
		Factory: func(rec *types.StorageAdapter) (backend.Adapter, error) {
			return backends[rec.ID], nil
		},
	})

	reg := adapter.New(&memStore{records: records}, nil)
	if err := reg.Refresh(); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	r := router.New(reg)
	sink := &recordingSink{}
	return New(r, sink), backends, sink
}

func TestWriteThenReadObservesWrite(t *testing.T) {
	f, _, sink := setupFacade(t, "vfs-test-rw", map[string]string{"root": "/"})

	if err := f.WriteFile(context.Background(), "/a.txt", []byte("hello")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	data, err := f.ReadFile(context.Background(), "/a.txt")
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("read = %q, want hello", data)
	}
	if len(sink.events) != 1 || sink.events[0] != "file_written:/a.txt" {
		t.Errorf("events = %v", sink.events)
	}
}

func TestMoveOverwriteRefusedConflict(t *testing.T) {
	f, backends, _ := setupFacade(t, "vfs-test-move", map[string]string{"root": "/"})
	ctx := context.Background()
	be := backends["root"]

	_ = f.WriteFile(ctx, "/src.txt", []byte("x"))
	_ = f.WriteFile(ctx, "/dst.txt", []byte("y"))

	trace, err := f.Move(ctx, "/src.txt", "/dst.txt", false)
	if err == nil || !errors.IsAlreadyExists(err) {
		t.Fatalf("expected AlreadyExists, got %v", err)
	}
	if !trace.DstExists || trace.Terminal != "already_exists" {
		t.Errorf("trace = %+v", trace)
	}
	_ = be
}

func TestMoveOverwriteRaceSurfacesAlreadyExists(t *testing.T) {
	// Boundary scenario 2: exists(dst)=false at pre-check, but a concurrent
	// writer creates dst before the adapter's Move runs; the adapter itself
	// then fails with AlreadyExists.
	f, backends, _ := setupFacade(t, "vfs-test-race", map[string]string{"root": "/"})
	ctx := context.Background()
	be := backends["root"]

	_ = f.WriteFile(ctx, "/src.txt", []byte("x"))
	be.moveAlwaysFails = true

	trace, err := f.Move(ctx, "/src.txt", "/dst.txt", false)
	if err == nil {
		t.Fatal("expected move to fail")
	}
	if trace.DstExists {
		t.Errorf("expected dst_exists:false at pre-check, got true")
	}
	if trace.Terminal != "move_failed" {
		t.Errorf("terminal = %q, want move_failed", trace.Terminal)
	}
}

func TestCrossAdapterMoveRejected(t *testing.T) {
	f, _, _ := setupFacade(t, "vfs-test-cross", map[string]string{
		"a": "/mnt-a",
		"b": "/mnt-b",
	})
	ctx := context.Background()
	_ = f.WriteFile(ctx, "/mnt-a/x.txt", []byte("x"))

	_, err := f.Move(ctx, "/mnt-a/x.txt", "/mnt-b/x.txt", true)
	if err == nil {
		t.Fatal("expected cross-adapter move to fail")
	}
}

func TestMountShadowingListing(t *testing.T) {
	f, backends, _ := setupFacade(t, "vfs-test-shadow", map[string]string{
		"local": "/local",
		"cloud": "/local/cloud",
	})
	ctx := context.Background()
	backends["local"].files["readme.txt"] = []byte("hi")

	entries, _, err := f.ListDir(ctx, "/local", backend.ListPage{})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}

	var sawFile, sawMount bool
	for _, e := range entries {
		if e.Name == "readme.txt" {
			sawFile = true
		}
		if e.Name == "cloud" && e.Kind == types.KindMount {
			sawMount = true
		}
	}
	if !sawFile || !sawMount {
		t.Errorf("entries = %+v, want both readme.txt and synthetic cloud mount", entries)
	}
}

func TestMutationOnMountRootRejected(t *testing.T) {
	f, _, _ := setupFacade(t, "vfs-test-root", map[string]string{"root": "/local"})
	if err := f.WriteFile(context.Background(), "/local", []byte("x")); err == nil {
		t.Error("expected mutation on mount root to be rejected")
	}
}
