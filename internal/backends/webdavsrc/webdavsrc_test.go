package webdavsrc

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/objectfs/objectfs/internal/backend"
	"github.com/objectfs/objectfs/pkg/types"
)

// fakeServer is a minimal WebDAV server sufficient to exercise Adapter:
// it understands PROPFIND on a directory and on individual files, plus
// GET/PUT/MKCOL/DELETE/MOVE.
type fakeServer struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newFakeServer() *httptest.Server {
	fs := &fakeServer{files: map[string][]byte{"/root/hello.txt": []byte("hi")}}
	return httptest.NewServer(http.HandlerFunc(fs.handle))
}

func (fs *fakeServer) handle(w http.ResponseWriter, r *http.Request) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	switch r.Method {
	case "PROPFIND":
		p := strings.TrimRight(r.URL.Path, "/")
		if p == "/root" {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusMultiStatus)
			fmt.Fprintf(w, `<?xml version="1.0"?>
<D:multistatus xmlns:D="DAV:">
  <D:response>
    <D:href>%s/</D:href>
    <D:propstat><D:prop><D:resourcetype><D:collection/></D:resourcetype></D:prop></D:propstat>
  </D:response>
  <D:response>
    <D:href>%s/hello.txt</D:href>
    <D:propstat><D:prop><D:getcontentlength>2</D:getcontentlength><D:resourcetype/></D:prop></D:propstat>
  </D:response>
</D:multistatus>`, p, p)
			return
		}
		if _, ok := fs.files[r.URL.Path]; ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusMultiStatus)
			fmt.Fprintf(w, `<?xml version="1.0"?>
<D:multistatus xmlns:D="DAV:">
  <D:response>
    <D:href>%s</D:href>
    <D:propstat><D:prop><D:getcontentlength>%d</D:getcontentlength><D:resourcetype/></D:prop></D:propstat>
  </D:response>
</D:multistatus>`, r.URL.Path, len(fs.files[r.URL.Path]))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	case http.MethodGet:
		data, ok := fs.files[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write(data)
	case http.MethodPut:
		data, _ := io.ReadAll(r.Body)
		fs.files[r.URL.Path] = data
		w.WriteHeader(http.StatusCreated)
	case "MKCOL":
		w.WriteHeader(http.StatusCreated)
	case http.MethodDelete:
		delete(fs.files, r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	case "MOVE":
		dst := r.Header.Get("Destination")
		if u, err := url.Parse(dst); err == nil {
			dst = u.Path
		}
		fs.files[dst] = fs.files[r.URL.Path]
		delete(fs.files, r.URL.Path)
		w.WriteHeader(http.StatusCreated)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestAdapter(t *testing.T, baseURL string) *Adapter {
	t.Helper()
	a, err := newAdapter(&types.StorageAdapter{Config: map[string]string{"base_url": baseURL}})
	if err != nil {
		t.Fatalf("newAdapter failed: %v", err)
	}
	return a.(*Adapter)
}

func TestListDirParsesMultistatus(t *testing.T) {
	srv := newFakeServer()
	defer srv.Close()
	a := newTestAdapter(t, srv.URL)

	entries, total, err := a.ListDir(context.Background(), "root", "", backend.ListPage{})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if total != 1 || entries[0].Name != "hello.txt" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestWriteThenReadRoundTrips(t *testing.T) {
	srv := newFakeServer()
	defer srv.Close()
	a := newTestAdapter(t, srv.URL)
	ctx := context.Background()

	if err := a.WriteFile(ctx, "root", "new.txt", []byte("payload")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	data, err := a.ReadFile(ctx, "root", "new.txt")
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(data) != "payload" {
		t.Errorf("data = %q", data)
	}
}

func TestExistsReturnsFalseForMissingFile(t *testing.T) {
	srv := newFakeServer()
	defer srv.Close()
	a := newTestAdapter(t, srv.URL)

	exists, err := a.Exists(context.Background(), "root", "nope.txt")
	if err != nil {
		t.Fatalf("exists failed: %v", err)
	}
	if exists {
		t.Error("expected false for a file the server has no record of")
	}
}

func TestMoveRelocatesFile(t *testing.T) {
	srv := newFakeServer()
	defer srv.Close()
	a := newTestAdapter(t, srv.URL)
	ctx := context.Background()

	if err := a.Move(ctx, "root", "hello.txt", "moved.txt"); err != nil {
		t.Fatalf("move failed: %v", err)
	}
	data, err := a.ReadFile(ctx, "root", "moved.txt")
	if err != nil {
		t.Fatalf("read after move failed: %v", err)
	}
	if string(data) != "hi" {
		t.Errorf("data = %q, want hi", data)
	}
}
