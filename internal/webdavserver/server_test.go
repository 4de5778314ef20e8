package webdavserver

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/objectfs/objectfs/internal/backend"
	"github.com/objectfs/objectfs/pkg/errors"
	"github.com/objectfs/objectfs/pkg/types"
)

type fakeFacade struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newFakeFacade() *fakeFacade { return &fakeFacade{files: make(map[string][]byte)} }

func (f *fakeFacade) ListDir(ctx context.Context, p string, page backend.ListPage) ([]types.DirEntry, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.DirEntry
	for name := range f.files {
		out = append(out, types.DirEntry{Name: name})
	}
	return out, len(out), nil
}

func (f *fakeFacade) ReadFile(ctx context.Context, p string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[p]
	if !ok {
		return nil, errors.NotFound("fake", p)
	}
	return data, nil
}

func (f *fakeFacade) WriteFile(ctx context.Context, p string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[p] = data
	return nil
}

func (f *fakeFacade) Mkdir(ctx context.Context, p string) error { return nil }

func (f *fakeFacade) Delete(ctx context.Context, p string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, p)
	return nil
}

func (f *fakeFacade) StatFile(ctx context.Context, p string) (*types.FileStat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[p]
	if !ok {
		return nil, errors.NotFound("fake", p)
	}
	return &types.FileStat{Name: p, Size: int64(len(data))}, nil
}

func (f *fakeFacade) Exists(ctx context.Context, p string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p == "/" {
		return true, nil
	}
	_, ok := f.files[p]
	return ok, nil
}

func (f *fakeFacade) Rename(ctx context.Context, src, dst string, overwrite bool) (*types.MoveTrace, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[src]
	if !ok {
		return &types.MoveTrace{}, errors.NotFound("fake", src)
	}
	f.files[dst] = data
	delete(f.files, src)
	return &types.MoveTrace{Terminal: "success"}, nil
}

func TestPutThenGetRoundTrips(t *testing.T) {
	facade := newFakeFacade()
	h := New(facade, "/webdav", nil)
	srv := httptest.NewServer(h)
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/webdav/hello.txt", bytes.NewReader([]byte("hi there")))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		t.Fatalf("PUT status = %d", resp.StatusCode)
	}

	getResp, err := http.Get(srv.URL + "/webdav/hello.txt")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer getResp.Body.Close()
	body := make([]byte, 64)
	n, _ := getResp.Body.Read(body)
	if string(body[:n]) != "hi there" {
		t.Errorf("body = %q, want %q", body[:n], "hi there")
	}
}

func TestDepthInfinityIsDowngraded(t *testing.T) {
	facade := newFakeFacade()
	h := New(facade, "/webdav", nil)
	srv := httptest.NewServer(h)
	defer srv.Close()

	req, _ := http.NewRequest("PROPFIND", srv.URL+"/webdav/", nil)
	req.Header.Set("Depth", "infinity")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PROPFIND failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMultiStatus {
		t.Errorf("status = %d, want 207", resp.StatusCode)
	}
}
