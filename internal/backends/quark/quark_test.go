package quark

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/objectfs/objectfs/internal/backend"
	"github.com/objectfs/objectfs/pkg/types"
)

func newFakeServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/file/sort"):
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(listResponse{
				Data: struct {
					List []listEntry `json:"list"`
				}{List: []listEntry{
					{Fid: "fid-1", FileName: "notes.txt", Dir: false, Size: 10, UpdatedAt: 1000},
					{Fid: "fid-2", FileName: "photos", Dir: true, UpdatedAt: 2000},
				}},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func newTestAdapter(t *testing.T) *Adapter {
	t.Helper()
	a, err := newAdapter(&types.StorageAdapter{Config: map[string]string{"cookie": "session=abc"}})
	if err != nil {
		t.Fatalf("newAdapter failed: %v", err)
	}
	return a.(*Adapter)
}

func TestListDirPopulatesFidCache(t *testing.T) {
	srv := newFakeServer(t)
	defer srv.Close()

	a := newTestAdapter(t)
	a.baseURL = srv.URL

	entries, total, err := a.ListDir(context.Background(), "", "", backend.ListPage{})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if total != 2 || entries[0].Name != "notes.txt" {
		t.Errorf("entries = %+v", entries)
	}
	if fid, ok := a.fids.get("photos"); !ok || fid != "fid-2" {
		t.Errorf("expected fid cache to be populated for photos, got %q, %v", fid, ok)
	}
}

func TestFidCacheRoundTrips(t *testing.T) {
	c := newFidCache()
	c.put("a/b.txt", "fid-42")
	if fid, ok := c.get("a/b.txt"); !ok || fid != "fid-42" {
		t.Errorf("get = %q, %v", fid, ok)
	}
	c.forget("a/b.txt")
	if _, ok := c.get("a/b.txt"); ok {
		t.Error("expected fid to be forgotten")
	}
}

func TestResolveFidUsesRootAlias(t *testing.T) {
	a := newTestAdapter(t)
	fid, err := a.resolveFid(context.Background(), "")
	if err != nil {
		t.Fatalf("resolveFid failed: %v", err)
	}
	if fid != a.rootFid {
		t.Errorf("fid = %q, want root fid %q", fid, a.rootFid)
	}
}
