package adapter

import (
	"context"
	"io"
	"testing"

	"github.com/objectfs/objectfs/internal/backend"
	"github.com/objectfs/objectfs/pkg/errors"
	"github.com/objectfs/objectfs/pkg/types"
)

type fakeAdapter struct{ id string }

func (f *fakeAdapter) ResolveRoot(subPath string) (string, error) { return "/root/" + subPath, nil }
func (f *fakeAdapter) ListDir(ctx context.Context, root, rel string, page backend.ListPage) ([]types.DirEntry, int, error) {
	return nil, 0, nil
}
func (f *fakeAdapter) ReadFile(ctx context.Context, root, rel string) ([]byte, error) { return nil, nil }
func (f *fakeAdapter) StreamFile(ctx context.Context, root, rel string, rng *backend.Range) (*backend.StreamResponse, error) {
	return nil, nil
}
func (f *fakeAdapter) WriteFile(ctx context.Context, root, rel string, data []byte) error { return nil }
func (f *fakeAdapter) WriteFileStream(ctx context.Context, root, rel string, chunks io.Reader) (int64, error) {
	return 0, nil
}
func (f *fakeAdapter) Mkdir(ctx context.Context, root, rel string) error  { return nil }
func (f *fakeAdapter) Delete(ctx context.Context, root, rel string) error { return nil }
func (f *fakeAdapter) StatFile(ctx context.Context, root, rel string) (*types.FileStat, error) {
	return nil, nil
}
func (f *fakeAdapter) Exists(ctx context.Context, root, rel string) (bool, error) { return false, nil }
func (f *fakeAdapter) StatPath(ctx context.Context, root, rel string) (*types.PathProbe, error) {
	return nil, nil
}
func (f *fakeAdapter) Move(ctx context.Context, root, src, dst string) error   { return nil }
func (f *fakeAdapter) Rename(ctx context.Context, root, src, dst string) error { return nil }
func (f *fakeAdapter) Copy(ctx context.Context, root, src, dst string, overwrite bool) error {
	return nil
}

type fakeStore struct {
	records []*types.StorageAdapter
}

func (s *fakeStore) ListEnabledAdapters() ([]*types.StorageAdapter, error) {
	var out []*types.StorageAdapter
	for _, r := range s.records {
		if r.Enabled {
			out = append(out, r)
		}
	}
	return out, nil
}

func registerFakeType(t *testing.T, typeName string, fail bool) {
	t.Helper()
	Register(backend.TypeDescriptor{
		Type: typeName,
		Factory: func(rec *types.StorageAdapter) (backend.Adapter, error) {
			if fail {
				return nil, errors.NewError(errors.ErrCodeInternalError, "boom")
			}
			return &fakeAdapter{id: rec.ID}, nil
		},
	})
}

func TestRegistryRefreshSkipsFailingInstance(t *testing.T) {
	registerFakeType(t, "fake-ok", false)
	registerFakeType(t, "fake-bad", true)

	store := &fakeStore{records: []*types.StorageAdapter{
		{ID: "a", Type: "fake-ok", Enabled: true, Path: "/a"},
		{ID: "b", Type: "fake-bad", Enabled: true, Path: "/b"},
	}}
	reg := New(store, nil)

	if err := reg.Refresh(); err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}

	if _, _, err := reg.Get("a"); err != nil {
		t.Errorf("expected adapter a to be live, got error: %v", err)
	}
	if _, _, err := reg.Get("b"); err == nil {
		t.Errorf("expected adapter b to be missing after failed construction")
	}
}

func TestRegistryUpsertRemovesOnDisable(t *testing.T) {
	registerFakeType(t, "fake-upsert", false)
	store := &fakeStore{}
	reg := New(store, nil)

	rec := &types.StorageAdapter{ID: "x", Type: "fake-upsert", Enabled: true, Path: "/x"}
	if err := reg.Upsert(rec); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if _, _, err := reg.Get("x"); err != nil {
		t.Fatalf("expected x to be live: %v", err)
	}

	rec.Enabled = false
	if err := reg.Upsert(rec); err != nil {
		t.Fatalf("Upsert (disable) failed: %v", err)
	}
	if _, _, err := reg.Get("x"); err == nil {
		t.Errorf("expected x to be removed after disable")
	}
}

func TestRegistryGetMissingTriggersSingleRefresh(t *testing.T) {
	registerFakeType(t, "fake-refresh", false)
	store := &fakeStore{records: []*types.StorageAdapter{
		{ID: "late", Type: "fake-refresh", Enabled: true, Path: "/late"},
	}}
	reg := New(store, nil)

	if _, _, err := reg.Get("late"); err != nil {
		t.Fatalf("expected Get to refresh and find adapter: %v", err)
	}
}
