// Package webdavserver exposes the Virtual FS Facade over WebDAV (spec
// §4.K) by adapting it to golang.org/x/net/webdav's FileSystem and File
// interfaces, the same vendored package perkeep uses for its own WebDAV
// mount. PROPFIND/MKCOL/MOVE/COPY/LOCK and multistatus XML all come from
// that package; this file only bridges its FileSystem contract onto the
// facade's path-and-bytes operations.
package webdavserver

import (
	"context"
	"os"
	"path"
	"time"

	"golang.org/x/net/webdav"

	"github.com/objectfs/objectfs/internal/backend"
	"github.com/objectfs/objectfs/pkg/errors"
	"github.com/objectfs/objectfs/pkg/types"
)

// Facade is the subset of internal/vfs.Facade the WebDAV bridge needs.
type Facade interface {
	ListDir(ctx context.Context, p string, page backend.ListPage) ([]types.DirEntry, int, error)
	ReadFile(ctx context.Context, p string) ([]byte, error)
	WriteFile(ctx context.Context, p string, data []byte) error
	Mkdir(ctx context.Context, p string) error
	Delete(ctx context.Context, p string) error
	StatFile(ctx context.Context, p string) (*types.FileStat, error)
	Exists(ctx context.Context, p string) (bool, error)
	Rename(ctx context.Context, src, dst string, overwrite bool) (*types.MoveTrace, error)
}

// fileSystem adapts Facade to webdav.FileSystem. Depth:infinity PROPFIND
// requests are downgraded to Depth:1 unconditionally by the handler we
// build in server.go, not here; this type only fulfills single-path
// operations.
type fileSystem struct {
	facade Facade
}

// NewFileSystem wraps facade as a webdav.FileSystem.
func NewFileSystem(facade Facade) webdav.FileSystem {
	return &fileSystem{facade: facade}
}

func (fs *fileSystem) Mkdir(ctx context.Context, name string, perm os.FileMode) error {
	return fs.facade.Mkdir(ctx, name)
}

func (fs *fileSystem) RemoveAll(ctx context.Context, name string) error {
	return fs.facade.Delete(ctx, name)
}

func (fs *fileSystem) Rename(ctx context.Context, oldName, newName string) error {
	_, err := fs.facade.Rename(ctx, oldName, newName, false)
	return err
}

func (fs *fileSystem) Stat(ctx context.Context, name string) (os.FileInfo, error) {
	stat, err := fs.facade.StatFile(ctx, name)
	if err != nil {
		if errors.IsNotFound(err) {
			exists, existsErr := fs.facade.Exists(ctx, name)
			if existsErr == nil && exists {
				return dirInfo{name: path.Base(name)}, nil
			}
		}
		return nil, err
	}
	return fileInfo{stat: stat}, nil
}

func (fs *fileSystem) OpenFile(ctx context.Context, name string, flag int, perm os.FileMode) (webdav.File, error) {
	if flag&os.O_CREATE != 0 {
		if flag&os.O_EXCL != 0 {
			if exists, _ := fs.facade.Exists(ctx, name); exists {
				return nil, errors.AlreadyExists("webdav", name+" already exists")
			}
		}
		return &writeFile{ctx: ctx, facade: fs.facade, name: name}, nil
	}

	stat, err := fs.facade.StatFile(ctx, name)
	if err != nil {
		if errors.IsNotFound(err) {
			return fs.openDir(ctx, name)
		}
		return nil, err
	}
	if stat.IsDir {
		return fs.openDir(ctx, name)
	}

	data, err := fs.facade.ReadFile(ctx, name)
	if err != nil {
		return nil, err
	}
	return newReadFile(name, stat, data), nil
}

func (fs *fileSystem) openDir(ctx context.Context, name string) (webdav.File, error) {
	entries, _, err := fs.facade.ListDir(ctx, name, backend.ListPage{})
	if err != nil {
		return nil, err
	}
	return &dirFile{ctx: ctx, name: name, entries: entries}, nil
}

// dirInfo is used when StatFile fails (mount root has no backing physical
// entry) but Exists reports it as present, i.e. a synthetic mount.
type dirInfo struct{ name string }

func (d dirInfo) Name() string       { return d.name }
func (d dirInfo) Size() int64        { return 0 }
func (d dirInfo) Mode() os.FileMode  { return os.ModeDir | 0o755 }
func (d dirInfo) ModTime() time.Time { return time.Time{} }
func (d dirInfo) IsDir() bool        { return true }
func (d dirInfo) Sys() any           { return nil }

type fileInfo struct{ stat *types.FileStat }

func (f fileInfo) Name() string { return path.Base(f.stat.Name) }
func (f fileInfo) Size() int64  { return f.stat.Size }
func (f fileInfo) Mode() os.FileMode {
	if f.stat.IsDir {
		return os.ModeDir | 0o755
	}
	return 0o644
}
func (f fileInfo) ModTime() time.Time {
	if f.stat.Mtime == 0 {
		return time.Time{}
	}
	return time.Unix(f.stat.Mtime, 0)
}
func (f fileInfo) IsDir() bool { return f.stat.IsDir }
func (f fileInfo) Sys() any    { return nil }

type entryInfo struct{ e types.DirEntry }

func (e entryInfo) Name() string { return e.e.Name }
func (e entryInfo) Size() int64  { return e.e.Size }
func (e entryInfo) Mode() os.FileMode {
	if e.e.IsDir || e.e.Kind == types.KindMount {
		return os.ModeDir | 0o755
	}
	return 0o644
}
func (e entryInfo) ModTime() time.Time {
	if e.e.Mtime == 0 {
		return time.Time{}
	}
	return time.Unix(e.e.Mtime, 0)
}
func (e entryInfo) IsDir() bool { return e.e.IsDir || e.e.Kind == types.KindMount }
func (e entryInfo) Sys() any    { return nil }
