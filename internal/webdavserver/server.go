package webdavserver

import (
	"log/slog"
	"net/http"

	"golang.org/x/net/webdav"
)

// New builds the WebDAV endpoint for facade, mounted under prefix
// (Global.WebDAVPrefix, e.g. "/webdav"). It downgrades Depth:infinity
// PROPFIND requests to Depth:1 unconditionally (spec §4.K), since an
// infinite recursive listing across a mount boundary has no natural
// termination point the way it would on a plain local filesystem.
func New(facade Facade, prefix string, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	handler := &webdav.Handler{
		Prefix:     prefix,
		FileSystem: NewFileSystem(facade),
		LockSystem: webdav.NewMemLS(),
		Logger: func(r *http.Request, err error) {
			if err != nil {
				logger.Warn("webdav request failed", "method", r.Method, "path", r.URL.Path, "error", err)
			}
		},
	}
	return depthLimiter{next: handler}
}

// depthLimiter rewrites an infinite Depth header to 1 before delegating to
// the wrapped WebDAV handler.
type depthLimiter struct {
	next http.Handler
}

func (d depthLimiter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Depth") == "infinity" {
		r.Header.Set("Depth", "1")
	}
	d.next.ServeHTTP(w, r)
}
