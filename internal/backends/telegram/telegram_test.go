package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/objectfs/objectfs/internal/backend"
	"github.com/objectfs/objectfs/pkg/errors"
	"github.com/objectfs/objectfs/pkg/types"
)

func newFakeServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.Contains(r.URL.Path, "getUpdates"):
			json.NewEncoder(w).Encode(updatesResponse{
				OK: true,
				Result: []update{
					{UpdateID: 1, Message: message{
						Date:     1000,
						Chat:     struct{ ID int64 `json:"id"` }{ID: 555},
						Document: &document{FileID: "doc-1", FileName: "report.pdf", FileSize: 2048},
					}},
				},
			})
		case strings.Contains(r.URL.Path, "getFile"):
			w.Write([]byte(`{"ok":true,"result":{"file_path":"documents/report.pdf"}}`))
		case strings.Contains(r.URL.Path, "/file/bot"):
			w.Write([]byte("pdf-bytes"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func newTestAdapter(t *testing.T, chatID string) *Adapter {
	t.Helper()
	a, err := newAdapter(&types.StorageAdapter{Config: map[string]string{"bot_token": "tok", "chat_id": chatID}})
	if err != nil {
		t.Fatalf("newAdapter failed: %v", err)
	}
	return a.(*Adapter)
}

func TestListDirSurfacesDocumentAttachment(t *testing.T) {
	srv := newFakeServer(t)
	defer srv.Close()
	a := newTestAdapter(t, "555")
	a.baseURL = srv.URL

	entries, total, err := a.ListDir(context.Background(), "", "", backend.ListPage{})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if total != 1 || entries[0].Name != "report.pdf" || entries[0].Size != 2048 {
		t.Errorf("entries = %+v", entries)
	}
}

func TestListDirFiltersOtherChats(t *testing.T) {
	srv := newFakeServer(t)
	defer srv.Close()
	a := newTestAdapter(t, "999")
	a.baseURL = srv.URL

	_, total, err := a.ListDir(context.Background(), "", "", backend.ListPage{})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if total != 0 {
		t.Errorf("total = %d, want 0 for a chat id with no matching messages", total)
	}
}

func TestWriteFileIsNotImplemented(t *testing.T) {
	a := newTestAdapter(t, "555")
	err := a.WriteFile(context.Background(), "", "x.txt", []byte("x"))
	if !errors.IsNotImplemented(err) {
		t.Errorf("expected NotImplemented, got %v", err)
	}
}

func TestNestedPathIsNotFound(t *testing.T) {
	a := newTestAdapter(t, "555")
	_, _, err := a.ListDir(context.Background(), "", "sub", backend.ListPage{})
	if !errors.IsNotFound(err) {
		t.Errorf("expected NotFound for a nested path, got %v", err)
	}
}
