// Package backend defines the uniform capability surface every storage
// backend implements (spec §4.B), plus the streaming response shape used
// for range-aware reads.
package backend

import (
	"context"
	"io"

	"github.com/objectfs/objectfs/pkg/types"
)

// Range is an inclusive byte range requested by a caller. A nil *Range
// means "whole file".
type Range struct {
	Start int64
	End   int64 // inclusive; -1 means "to EOF"
}

// StreamResponse is what StreamFile returns: a body reader plus the HTTP
// framing the caller needs to answer a GET/HEAD (spec §4.B stream_file).
type StreamResponse struct {
	Body          io.ReadCloser
	Status        int // 200 or 206
	ContentLength int64
	ContentRange  string // e.g. "bytes 0-99/200"; empty when Status==200
	AcceptRanges  bool
}

// SortOrder controls list_dir ordering (default: directories first, then
// case-insensitive name ascending). vfs.Facade.ListDir applies the default
// order; of the built-in adapters only local applies the name, size and
// mtime orders.
type SortOrder string

const (
	SortDefault SortOrder = ""
	SortName    SortOrder = "name"
	SortSize    SortOrder = "size"
	SortMtime   SortOrder = "mtime"
)

// ListPage is the pagination contract for list_dir — 1-based pages. The
// built-in adapters return the whole listing and its full count;
// vfs.Facade.ListDir cuts the requested page from it.
type ListPage struct {
	Page     int
	PageSize int
	Sort     SortOrder
}

// Adapter is the uniform capability surface every storage backend
// implements (spec §4.B). Operations a backend does not support return an
// error created with pkg/errors.NotImplemented rather than being absent —
// callers branch on that error, never on method presence (spec §9).
type Adapter interface {
	// ResolveRoot returns the backend-specific content-root handle for a
	// mount's sub_path (a directory, a key prefix, a URL, or a folder id).
	ResolveRoot(subPath string) (string, error)

	ListDir(ctx context.Context, root, rel string, page ListPage) ([]types.DirEntry, int, error)
	ReadFile(ctx context.Context, root, rel string) ([]byte, error)
	StreamFile(ctx context.Context, root, rel string, rng *Range) (*StreamResponse, error)
	WriteFile(ctx context.Context, root, rel string, data []byte) error
	WriteFileStream(ctx context.Context, root, rel string, chunks io.Reader) (int64, error)
	Mkdir(ctx context.Context, root, rel string) error
	Delete(ctx context.Context, root, rel string) error
	StatFile(ctx context.Context, root, rel string) (*types.FileStat, error)
	Exists(ctx context.Context, root, rel string) (bool, error)
	StatPath(ctx context.Context, root, rel string) (*types.PathProbe, error)
	Move(ctx context.Context, root, src, dst string) error
	Rename(ctx context.Context, root, src, dst string) error
	Copy(ctx context.Context, root, src, dst string, overwrite bool) error
}

// Factory constructs a live Adapter instance from a persisted StorageAdapter
// record (spec §4.A "type → factory").
type Factory func(rec *types.StorageAdapter) (Adapter, error)

// TypeDescriptor pairs a backend's factory with its config schema, the unit
// the Adapter Registry keeps per registered type.
type TypeDescriptor struct {
	Type         string
	Factory      Factory
	ConfigSchema []types.ConfigField
}
