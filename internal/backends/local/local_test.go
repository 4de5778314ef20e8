package local

import (
	"context"
	"testing"

	"github.com/objectfs/objectfs/internal/backend"
	"github.com/objectfs/objectfs/pkg/types"
)

func newTestAdapter(t *testing.T) (*Adapter, string) {
	t.Helper()
	dir := t.TempDir()
	a, err := newAdapter(&types.StorageAdapter{Config: map[string]string{"root_dir": dir}})
	if err != nil {
		t.Fatalf("newAdapter failed: %v", err)
	}
	return a.(*Adapter), dir
}

func TestWriteReadRoundTrips(t *testing.T) {
	a, root := newTestAdapter(t)
	ctx := context.Background()

	if err := a.WriteFile(ctx, root, "sub/dir/file.txt", []byte("hello")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	data, err := a.ReadFile(ctx, root, "sub/dir/file.txt")
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("data = %q, want hello", data)
	}
}

func TestStreamFileHonorsRange(t *testing.T) {
	a, root := newTestAdapter(t)
	ctx := context.Background()
	_ = a.WriteFile(ctx, root, "f.bin", []byte("0123456789"))

	resp, err := a.StreamFile(ctx, root, "f.bin", &backend.Range{Start: 2, End: 5})
	if err != nil {
		t.Fatalf("stream failed: %v", err)
	}
	defer resp.Body.Close()
	buf := make([]byte, 16)
	n, _ := resp.Body.Read(buf)
	if string(buf[:n]) != "2345" {
		t.Errorf("ranged body = %q, want 2345", buf[:n])
	}
	if resp.Status != 206 {
		t.Errorf("status = %d, want 206", resp.Status)
	}
}

func TestMoveThenStatReflectsNewLocation(t *testing.T) {
	a, root := newTestAdapter(t)
	ctx := context.Background()
	_ = a.WriteFile(ctx, root, "a.txt", []byte("x"))

	if err := a.Move(ctx, root, "a.txt", "b.txt"); err != nil {
		t.Fatalf("move failed: %v", err)
	}
	if exists, _ := a.Exists(ctx, root, "a.txt"); exists {
		t.Error("expected a.txt to no longer exist")
	}
	if exists, _ := a.Exists(ctx, root, "b.txt"); !exists {
		t.Error("expected b.txt to exist")
	}
}

func TestStatPathReportsAbsenceWithoutError(t *testing.T) {
	a, root := newTestAdapter(t)
	probe, err := a.StatPath(context.Background(), root, "nowhere.txt")
	if err != nil {
		t.Fatalf("stat_path failed: %v", err)
	}
	if probe.Exists {
		t.Error("expected Exists=false for missing path")
	}
}

func TestListDirSortsByName(t *testing.T) {
	a, root := newTestAdapter(t)
	ctx := context.Background()
	_ = a.WriteFile(ctx, root, "c.txt", []byte("c"))
	_ = a.WriteFile(ctx, root, "a.txt", []byte("a"))
	_ = a.WriteFile(ctx, root, "b.txt", []byte("b"))

	entries, total, err := a.ListDir(ctx, root, "", backend.ListPage{Sort: backend.SortName})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if total != 3 || entries[0].Name != "a.txt" || entries[2].Name != "c.txt" {
		t.Errorf("entries = %+v", entries)
	}
}
