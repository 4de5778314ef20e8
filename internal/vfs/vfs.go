// Package vfs implements the Virtual FS Facade (spec §4.E): the operations
// the outside world calls. It normalizes paths, composes synthetic
// directory listings across mounts, enforces overwrite semantics on
// move/rename/copy, and emits events to the automation matcher.
package vfs

import (
	"context"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/objectfs/objectfs/internal/backend"
	"github.com/objectfs/objectfs/internal/router"
	"github.com/objectfs/objectfs/pkg/errors"
	"github.com/objectfs/objectfs/pkg/types"
)

// EventSink receives events emitted after successful mutations. The
// automation matcher implements this; it is called synchronously, after
// the backend confirms success (spec §5 "Event emission... happens-after
// the underlying backend returns success").
type EventSink interface {
	Notify(ctx context.Context, event types.AutomationEvent, path string)
}

// Processor is the subset of the processor registry the facade needs for
// ProcessFile (spec §4.E "process_file").
type Processor interface {
	Process(ctx context.Context, data []byte, srcName string, config map[string]any) (out []byte, producesFile bool, err error)
}

// Facade is the Virtual FS Facade.
type Facade struct {
	router     *router.Router
	events     EventSink
	processors map[string]Processor
}

// New creates a Facade over router. events may be nil (no automation
// wiring, useful in tests).
func New(r *router.Router, events EventSink) *Facade {
	return &Facade{router: r, events: events, processors: make(map[string]Processor)}
}

// RegisterProcessor makes processorType available to ProcessFile.
func (f *Facade) RegisterProcessor(processorType string, p Processor) {
	f.processors[processorType] = p
}

// NormalizePath enforces the virtual path grammar (spec §6): absolute,
// "/"-separated, no trailing slash except root, empty segments collapsed.
func NormalizePath(p string) string {
	if p == "" {
		return "/"
	}
	cleaned := path.Clean("/" + p)
	return cleaned
}

// ListDir composes the physical listing from the routed adapter with any
// synthetic mount entries beneath p (spec §4.D "Synthetic cross-mount
// listings"). With the default sort order, or whenever mount entries are
// merged in, the result is ordered directories first, then by
// case-insensitive name; page is then applied to the ordered listing.
func (f *Facade) ListDir(ctx context.Context, p string, page backend.ListPage) ([]types.DirEntry, int, error) {
	p = NormalizePath(p)

	children := f.router.ChildMounts(p)

	res, err := f.router.Resolve(ctx, p)
	if err != nil {
		if len(children) == 0 {
			return nil, 0, err
		}
		res = nil
	}

	var physical []types.DirEntry
	if res != nil {
		physical, _, err = res.Adapter.ListDir(ctx, res.EffectiveRoot, res.Rel, page)
		if err != nil {
			return nil, 0, err
		}
	}

	merged := physical
	if len(children) > 0 {
		merged = mergeSyntheticMounts(physical, children)
	}
	if len(children) > 0 || page.Sort == backend.SortDefault {
		sort.Slice(merged, func(i, j int) bool {
			if merged[i].IsDir != merged[j].IsDir {
				return merged[i].IsDir
			}
			return strings.ToLower(merged[i].Name) < strings.ToLower(merged[j].Name)
		})
	}

	return paginate(merged, page)
}

// mergeSyntheticMounts overlays synthetic mount entries onto the physical
// listing; physical entries shadow a mount of the same name.
func mergeSyntheticMounts(physical []types.DirEntry, children []string) []types.DirEntry {
	have := make(map[string]bool, len(physical))
	out := append([]types.DirEntry(nil), physical...)
	for _, e := range physical {
		have[e.Name] = true
	}
	for _, name := range children {
		if have[name] {
			continue
		}
		out = append(out, types.DirEntry{Name: name, IsDir: true, Kind: types.KindMount})
	}
	return out
}

func paginate(entries []types.DirEntry, page backend.ListPage) ([]types.DirEntry, int, error) {
	total := len(entries)
	if page.PageSize <= 0 {
		return entries, total, nil
	}
	start := (page.Page - 1) * page.PageSize
	if start < 0 {
		start = 0
	}
	if start >= total {
		return []types.DirEntry{}, total, nil
	}
	end := start + page.PageSize
	if end > total {
		end = total
	}
	return entries[start:end], total, nil
}

// ReadFile reads a whole file through the routed adapter.
func (f *Facade) ReadFile(ctx context.Context, p string) ([]byte, error) {
	res, err := f.resolveMutable(ctx, p, false)
	if err != nil {
		return nil, err
	}
	return res.Adapter.ReadFile(ctx, res.EffectiveRoot, res.Rel)
}

// StreamFile serves a byte-range-aware read through the routed adapter.
func (f *Facade) StreamFile(ctx context.Context, p string, rng *backend.Range) (*backend.StreamResponse, error) {
	res, err := f.resolveMutable(ctx, p, false)
	if err != nil {
		return nil, err
	}
	return res.Adapter.StreamFile(ctx, res.EffectiveRoot, res.Rel, rng)
}

// WriteFile writes the whole file and emits file_written on success.
func (f *Facade) WriteFile(ctx context.Context, p string, data []byte) error {
	res, err := f.resolveMutable(ctx, p, true)
	if err != nil {
		return err
	}
	if err := res.Adapter.WriteFile(ctx, res.EffectiveRoot, res.Rel, data); err != nil {
		return err
	}
	f.notify(ctx, types.EventFileWritten, NormalizePath(p))
	return nil
}

// WriteFileStream streams a write and emits file_written on success.
func (f *Facade) WriteFileStream(ctx context.Context, p string, chunks io.Reader) (int64, error) {
	res, err := f.resolveMutable(ctx, p, true)
	if err != nil {
		return 0, err
	}
	n, err := res.Adapter.WriteFileStream(ctx, res.EffectiveRoot, res.Rel, chunks)
	if err != nil {
		return 0, err
	}
	f.notify(ctx, types.EventFileWritten, NormalizePath(p))
	return n, nil
}

// Mkdir creates a directory.
func (f *Facade) Mkdir(ctx context.Context, p string) error {
	res, err := f.resolveMutable(ctx, p, true)
	if err != nil {
		return err
	}
	return res.Adapter.Mkdir(ctx, res.EffectiveRoot, res.Rel)
}

// Delete removes a path and emits file_deleted on success.
func (f *Facade) Delete(ctx context.Context, p string) error {
	res, err := f.resolveMutable(ctx, p, true)
	if err != nil {
		return err
	}
	if err := res.Adapter.Delete(ctx, res.EffectiveRoot, res.Rel); err != nil {
		return err
	}
	f.notify(ctx, types.EventFileDeleted, NormalizePath(p))
	return nil
}

// StatFile returns file metadata.
func (f *Facade) StatFile(ctx context.Context, p string) (*types.FileStat, error) {
	res, err := f.resolveMutable(ctx, p, false)
	if err != nil {
		return nil, err
	}
	return res.Adapter.StatFile(ctx, res.EffectiveRoot, res.Rel)
}

// Exists probes whether p exists.
func (f *Facade) Exists(ctx context.Context, p string) (bool, error) {
	res, err := f.router.Resolve(ctx, NormalizePath(p))
	if err != nil {
		if errors.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return res.Adapter.Exists(ctx, res.EffectiveRoot, res.Rel)
}

// Move relocates src to dst with overwrite semantics (spec §4.E). Returns
// the optional debug trace alongside any error.
func (f *Facade) Move(ctx context.Context, src, dst string, overwrite bool) (*types.MoveTrace, error) {
	return f.relocate(ctx, src, dst, overwrite, func(a backend.Adapter, root, s, d string) error {
		return a.Move(ctx, root, s, d)
	})
}

// Rename is Move restricted to a same-directory destination by convention
// of the caller; the facade applies identical overwrite semantics.
func (f *Facade) Rename(ctx context.Context, src, dst string, overwrite bool) (*types.MoveTrace, error) {
	return f.relocate(ctx, src, dst, overwrite, func(a backend.Adapter, root, s, d string) error {
		return a.Rename(ctx, root, s, d)
	})
}

// Copy deep-copies src to dst with overwrite semantics.
func (f *Facade) Copy(ctx context.Context, src, dst string, overwrite bool) (*types.MoveTrace, error) {
	return f.relocate(ctx, src, dst, overwrite, func(a backend.Adapter, root, s, d string) error {
		return a.Copy(ctx, root, s, d, overwrite)
	})
}

func (f *Facade) relocate(ctx context.Context, src, dst string, overwrite bool, do func(backend.Adapter, string, string, string) error) (*types.MoveTrace, error) {
	src, dst = NormalizePath(src), NormalizePath(dst)
	trace := &types.MoveTrace{}

	if src == dst {
		trace.Noop = true
		trace.Terminal = "noop"
		return trace, nil
	}

	srcRes, err := f.router.Resolve(ctx, src)
	if err != nil {
		trace.Terminal = "src_not_found"
		return trace, err
	}
	dstRes, err := f.router.Resolve(ctx, dst)
	if err != nil {
		trace.Terminal = "dst_not_found"
		return trace, err
	}
	if srcRes.Record.ID != dstRes.Record.ID {
		trace.Terminal = "cross_adapter"
		return trace, errors.InvalidArgument("vfs", "cross-adapter not supported")
	}

	exists, err := dstRes.Adapter.Exists(ctx, dstRes.EffectiveRoot, dstRes.Rel)
	if err != nil {
		trace.Terminal = "exists_check_failed"
		return trace, err
	}
	trace.DstExists = exists

	if exists && !overwrite {
		trace.Terminal = "already_exists"
		return trace, errors.AlreadyExists("vfs", "destination exists and overwrite=false")
	}
	if exists && overwrite {
		if err := dstRes.Adapter.Delete(ctx, dstRes.EffectiveRoot, dstRes.Rel); err != nil {
			trace.PreDelete = "failed"
			trace.Terminal = "pre_delete_failed"
			return trace, err
		}
		trace.PreDelete = "ok"
	}

	if err := do(srcRes.Adapter, srcRes.EffectiveRoot, srcRes.Rel, dstRes.Rel); err != nil {
		trace.Terminal = "move_failed"
		return trace, err
	}

	trace.Terminal = "success"
	f.notify(ctx, types.EventFileDeleted, src)
	f.notify(ctx, types.EventFileWritten, dst)
	return trace, nil
}

// ProcessFile reads path, runs it through processorType, and optionally
// writes the result to saveTo (spec §4.E "process_file").
func (f *Facade) ProcessFile(ctx context.Context, p, processorType string, config map[string]any, saveTo string) ([]byte, error) {
	proc, ok := f.processors[processorType]
	if !ok {
		return nil, errors.NotImplemented("vfs", "processor "+processorType)
	}

	data, err := f.ReadFile(ctx, p)
	if err != nil {
		return nil, err
	}

	out, producesFile, err := proc.Process(ctx, data, path.Base(p), config)
	if err != nil {
		return nil, err
	}

	if producesFile && saveTo != "" {
		if err := f.WriteFile(ctx, saveTo, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// resolveMutable resolves p and rejects mutations directly on a mount
// root (spec §4.E "no facade operation is permitted on mount root
// (rel == "") for mutations").
func (f *Facade) resolveMutable(ctx context.Context, p string, mutation bool) (*router.Resolution, error) {
	res, err := f.router.Resolve(ctx, NormalizePath(p))
	if err != nil {
		return nil, err
	}
	if mutation && res.Rel == "" {
		return nil, errors.InvalidArgument("vfs", "mutation not permitted on mount root")
	}
	return res, nil
}

func (f *Facade) notify(ctx context.Context, event types.AutomationEvent, p string) {
	if f.events == nil {
		return
	}
	f.events.Notify(ctx, event, p)
}
