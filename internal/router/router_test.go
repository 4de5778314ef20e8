package router

import (
	"context"
	"io"
	"testing"

	"github.com/objectfs/objectfs/internal/adapter"
	"github.com/objectfs/objectfs/internal/backend"
	"github.com/objectfs/objectfs/pkg/types"
)

type stubAdapter struct{ root string }

func (s *stubAdapter) ResolveRoot(subPath string) (string, error) { return s.root + subPath, nil }
func (s *stubAdapter) ListDir(ctx context.Context, root, rel string, page backend.ListPage) ([]types.DirEntry, int, error) {
	return nil, 0, nil
}
func (s *stubAdapter) ReadFile(ctx context.Context, root, rel string) ([]byte, error) { return nil, nil }
func (s *stubAdapter) StreamFile(ctx context.Context, root, rel string, rng *backend.Range) (*backend.StreamResponse, error) {
	return nil, nil
}
func (s *stubAdapter) WriteFile(ctx context.Context, root, rel string, data []byte) error { return nil }
func (s *stubAdapter) WriteFileStream(ctx context.Context, root, rel string, chunks io.Reader) (int64, error) {
	return 0, nil
}
func (s *stubAdapter) Mkdir(ctx context.Context, root, rel string) error  { return nil }
func (s *stubAdapter) Delete(ctx context.Context, root, rel string) error { return nil }
func (s *stubAdapter) StatFile(ctx context.Context, root, rel string) (*types.FileStat, error) {
	return nil, nil
}
func (s *stubAdapter) Exists(ctx context.Context, root, rel string) (bool, error) { return false, nil }
func (s *stubAdapter) StatPath(ctx context.Context, root, rel string) (*types.PathProbe, error) {
	return nil, nil
}
func (s *stubAdapter) Move(ctx context.Context, root, src, dst string) error   { return nil }
func (s *stubAdapter) Rename(ctx context.Context, root, src, dst string) error { return nil }
func (s *stubAdapter) Copy(ctx context.Context, root, src, dst string, overwrite bool) error {
	return nil
}

type memStore struct{ records []*types.StorageAdapter }

func (m *memStore) ListEnabledAdapters() ([]*types.StorageAdapter, error) { return m.records, nil }

func newTestRouter(t *testing.T, typeName string, records []*types.StorageAdapter) *Router {
	t.Helper()
	adapter.Register(backend.TypeDescriptor{
		Type: typeName,
		Factory: func(rec *types.StorageAdapter) (backend.Adapter, error) {
			return &stubAdapter{root: rec.ID + ":"}, nil
		},
	})
	reg := adapter.New(&memStore{records: records}, nil)
	if err := reg.Refresh(); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	return New(reg)
}

func TestResolveLongestPrefixWins(t *testing.T) {
	records := []*types.StorageAdapter{
		{ID: "local", Type: "router-test-type", Enabled: true, Path: "/local"},
		{ID: "cloud", Type: "router-test-type", Enabled: true, Path: "/local/cloud"},
	}
	r := newTestRouter(t, "router-test-type", records)

	res, err := r.Resolve(context.Background(), "/local/cloud/photo.jpg")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if res.Record.ID != "cloud" {
		t.Errorf("expected cloud adapter to win, got %s", res.Record.ID)
	}
	if res.Rel != "photo.jpg" {
		t.Errorf("rel = %q, want %q", res.Rel, "photo.jpg")
	}
}

func TestChildMountsSurfacesImmediateChildOnly(t *testing.T) {
	records := []*types.StorageAdapter{
		{ID: "local", Type: "router-test-type-2", Enabled: true, Path: "/local"},
		{ID: "cloud", Type: "router-test-type-2", Enabled: true, Path: "/local/cloud"},
		{ID: "deep", Type: "router-test-type-2", Enabled: true, Path: "/local/cloud/deep"},
	}
	r := newTestRouter(t, "router-test-type-2", records)

	children := r.ChildMounts("/local")
	if len(children) != 1 || children[0] != "cloud" {
		t.Errorf("ChildMounts(/local) = %v, want [cloud]", children)
	}
}

func TestResolveMissingMountIsNotFound(t *testing.T) {
	r := newTestRouter(t, "router-test-type-3", nil)
	if _, err := r.Resolve(context.Background(), "/nowhere"); err == nil {
		t.Error("expected NotFound error for unmounted path")
	}
}
