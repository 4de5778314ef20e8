// Package local implements the local-disk StorageAdapter (spec §4.C
// "local"): a direct, unencrypted mapping of a mount onto a directory on
// the host filesystem. Every operation goes through os/io directly —
// there is no third-party library for "read a file from local disk" that
// would improve on the standard library here.
package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/objectfs/objectfs/internal/adapter"
	"github.com/objectfs/objectfs/internal/backend"
	"github.com/objectfs/objectfs/pkg/errors"
	"github.com/objectfs/objectfs/pkg/types"
)

func init() {
	adapter.Register(backend.TypeDescriptor{
		Type:    "local",
		Factory: newAdapter,
		ConfigSchema: []types.ConfigField{
			{Key: "root_dir", Label: "Root Directory", Type: types.FieldString, Required: true, Placeholder: "/data/share"},
		},
	})
}

// Adapter implements backend.Adapter over a directory on local disk.
type Adapter struct {
	rootDir string
}

func newAdapter(rec *types.StorageAdapter) (backend.Adapter, error) {
	dir := rec.Config["root_dir"]
	if dir == "" {
		return nil, errors.InvalidArgument("local", "root_dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.NewError(errors.ErrCodeInternalError, "failed to create root_dir").WithCause(err)
	}
	return &Adapter{rootDir: dir}, nil
}

// ResolveRoot joins the adapter's configured root_dir with subPath (spec
// §4.C "adapter-level sub_path scoping").
func (a *Adapter) ResolveRoot(subPath string) (string, error) {
	return filepath.Join(a.rootDir, filepath.FromSlash(subPath)), nil
}

func (a *Adapter) fullPath(root, rel string) string {
	return filepath.Join(root, filepath.FromSlash(rel))
}

func (a *Adapter) ListDir(ctx context.Context, root, rel string, page backend.ListPage) ([]types.DirEntry, int, error) {
	dir := a.fullPath(root, rel)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, 0, translateErr("local", dir, err)
	}

	out := make([]types.DirEntry, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		kind := types.KindFile
		if e.IsDir() {
			kind = types.KindDir
		}
		out = append(out, types.DirEntry{
			Name:  e.Name(),
			IsDir: e.IsDir(),
			Size:  info.Size(),
			Mtime: info.ModTime().Unix(),
			Kind:  kind,
		})
	}

	switch page.Sort {
	case backend.SortName:
		sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	case backend.SortSize:
		sort.Slice(out, func(i, j int) bool { return out[i].Size < out[j].Size })
	case backend.SortMtime:
		sort.Slice(out, func(i, j int) bool { return out[i].Mtime < out[j].Mtime })
	}
	return out, len(out), nil
}

func (a *Adapter) ReadFile(ctx context.Context, root, rel string) ([]byte, error) {
	p := a.fullPath(root, rel)
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, translateErr("local", p, err)
	}
	return data, nil
}

func (a *Adapter) StreamFile(ctx context.Context, root, rel string, rng *backend.Range) (*backend.StreamResponse, error) {
	p := a.fullPath(root, rel)
	f, err := os.Open(p)
	if err != nil {
		return nil, translateErr("local", p, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, translateErr("local", p, err)
	}

	if rng == nil {
		return &backend.StreamResponse{Body: f, Status: 200, ContentLength: info.Size(), AcceptRanges: true}, nil
	}

	start, end := rng.Start, rng.End
	if end < 0 || end >= info.Size() {
		end = info.Size() - 1
	}
	if start < 0 || start > end {
		f.Close()
		return nil, errors.RangeNotSatisfiable("local", "invalid byte range")
	}
	if _, err := f.Seek(start, io.SeekStart); err != nil {
		f.Close()
		return nil, errors.NewError(errors.ErrCodeInternalError, "seek failed").WithCause(err)
	}

	return &backend.StreamResponse{
		Body:          limitedReadCloser{Reader: io.LimitReader(f, end-start+1), Closer: f},
		Status:        206,
		ContentLength: end - start + 1,
		ContentRange:  rangeHeader(start, end, info.Size()),
		AcceptRanges:  true,
	}, nil
}

// limitedReadCloser pairs a bounded Reader with the underlying file's
// Close, since io.LimitReader itself drops the Closer.
type limitedReadCloser struct {
	io.Reader
	io.Closer
}

func (a *Adapter) WriteFile(ctx context.Context, root, rel string, data []byte) error {
	p := a.fullPath(root, rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return errors.NewError(errors.ErrCodeInternalError, "failed to create parent directory").WithCause(err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return translateErr("local", p, err)
	}
	return nil
}

func (a *Adapter) WriteFileStream(ctx context.Context, root, rel string, chunks io.Reader) (int64, error) {
	p := a.fullPath(root, rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return 0, errors.NewError(errors.ErrCodeInternalError, "failed to create parent directory").WithCause(err)
	}
	f, err := os.Create(p)
	if err != nil {
		return 0, translateErr("local", p, err)
	}
	defer f.Close()
	n, err := io.Copy(f, chunks)
	if err != nil {
		return n, errors.NewError(errors.ErrCodeInternalError, "write stream failed").WithCause(err)
	}
	return n, nil
}

func (a *Adapter) Mkdir(ctx context.Context, root, rel string) error {
	p := a.fullPath(root, rel)
	if err := os.MkdirAll(p, 0o755); err != nil {
		return translateErr("local", p, err)
	}
	return nil
}

func (a *Adapter) Delete(ctx context.Context, root, rel string) error {
	p := a.fullPath(root, rel)
	if err := os.RemoveAll(p); err != nil {
		return translateErr("local", p, err)
	}
	return nil
}

func (a *Adapter) StatFile(ctx context.Context, root, rel string) (*types.FileStat, error) {
	p := a.fullPath(root, rel)
	info, err := os.Stat(p)
	if err != nil {
		return nil, translateErr("local", p, err)
	}
	return &types.FileStat{Name: info.Name(), IsDir: info.IsDir(), Size: info.Size(), Mtime: info.ModTime().Unix()}, nil
}

func (a *Adapter) Exists(ctx context.Context, root, rel string) (bool, error) {
	p := a.fullPath(root, rel)
	_, err := os.Stat(p)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, translateErr("local", p, err)
}

func (a *Adapter) StatPath(ctx context.Context, root, rel string) (*types.PathProbe, error) {
	p := a.fullPath(root, rel)
	info, err := os.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return &types.PathProbe{Exists: false}, nil
		}
		return nil, translateErr("local", p, err)
	}
	kind := types.KindFile
	if info.IsDir() {
		kind = types.KindDir
	}
	return &types.PathProbe{Exists: true, IsDir: info.IsDir(), Kind: kind}, nil
}

func (a *Adapter) Move(ctx context.Context, root, src, dst string) error {
	return a.rename(root, src, dst)
}

func (a *Adapter) Rename(ctx context.Context, root, src, dst string) error {
	return a.rename(root, src, dst)
}

func (a *Adapter) rename(root, src, dst string) error {
	srcPath, dstPath := a.fullPath(root, src), a.fullPath(root, dst)
	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return errors.NewError(errors.ErrCodeInternalError, "failed to create destination parent").WithCause(err)
	}
	if err := os.Rename(srcPath, dstPath); err != nil {
		return translateErr("local", srcPath, err)
	}
	return nil
}

func (a *Adapter) Copy(ctx context.Context, root, src, dst string, overwrite bool) error {
	srcPath, dstPath := a.fullPath(root, src), a.fullPath(root, dst)
	info, err := os.Stat(srcPath)
	if err != nil {
		return translateErr("local", srcPath, err)
	}
	if info.IsDir() {
		return errors.InvalidArgument("local", "copy of directories is not supported")
	}

	in, err := os.Open(srcPath)
	if err != nil {
		return translateErr("local", srcPath, err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return errors.NewError(errors.ErrCodeInternalError, "failed to create destination parent").WithCause(err)
	}
	out, err := os.Create(dstPath)
	if err != nil {
		return translateErr("local", dstPath, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return errors.NewError(errors.ErrCodeInternalError, "copy failed").WithCause(err)
	}
	return nil
}

func translateErr(component, path string, err error) error {
	if os.IsNotExist(err) {
		return errors.NotFound(component, path+" not found")
	}
	if os.IsExist(err) {
		return errors.AlreadyExists(component, path+" already exists")
	}
	if os.IsPermission(err) {
		return errors.NewError(errors.ErrCodeVFSForbidden, path+": permission denied").WithComponent(component)
	}
	return errors.NewError(errors.ErrCodeInternalError, path+": "+err.Error()).WithComponent(component)
}

func rangeHeader(start, end, total int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", start, end, total)
}
