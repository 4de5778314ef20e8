package webdavserver

import (
	"bytes"
	"context"
	"io"
	"os"

	"github.com/objectfs/objectfs/pkg/types"
)

// readFile backs a GET/read of an existing file with an in-memory byte
// reader; the facade already returns whole-file bytes, so there is no
// partial-read path to maintain here beyond bytes.Reader's own Seek.
type readFile struct {
	*bytes.Reader
	stat *types.FileStat
	name string
}

func newReadFile(name string, stat *types.FileStat, data []byte) *readFile {
	return &readFile{Reader: bytes.NewReader(data), stat: stat, name: name}
}

func (f *readFile) Close() error                 { return nil }
func (f *readFile) Readdir(int) ([]os.FileInfo, error) {
	return nil, os.ErrInvalid
}
func (f *readFile) Stat() (os.FileInfo, error) { return fileInfo{stat: f.stat}, nil }
func (f *readFile) Write([]byte) (int, error)  { return 0, os.ErrPermission }

// writeFile buffers a PUT's body and commits it to the facade on Close,
// matching the all-or-nothing write the facade's WriteFile exposes (no
// partial/resumable PUT).
type writeFile struct {
	ctx    context.Context
	facade Facade
	name   string
	buf    bytes.Buffer
}

func (f *writeFile) Write(p []byte) (int, error) { return f.buf.Write(p) }
func (f *writeFile) Read([]byte) (int, error)     { return 0, io.EOF }
func (f *writeFile) Seek(offset int64, whence int) (int64, error) {
	return 0, os.ErrInvalid
}
func (f *writeFile) Readdir(int) ([]os.FileInfo, error) { return nil, os.ErrInvalid }
func (f *writeFile) Stat() (os.FileInfo, error) {
	return fileInfo{stat: &types.FileStat{Name: f.name, Size: int64(f.buf.Len())}}, nil
}
func (f *writeFile) Close() error {
	return f.facade.WriteFile(f.ctx, f.name, f.buf.Bytes())
}

// dirFile serves PROPFIND/Readdir for a directory listing, physical or
// synthetic mount.
type dirFile struct {
	ctx     context.Context
	name    string
	entries []types.DirEntry
	offset  int
}

func (d *dirFile) Read([]byte) (int, error) { return 0, io.EOF }
func (d *dirFile) Write([]byte) (int, error) { return 0, os.ErrPermission }
func (d *dirFile) Seek(offset int64, whence int) (int64, error) {
	return 0, os.ErrInvalid
}
func (d *dirFile) Close() error { return nil }
func (d *dirFile) Stat() (os.FileInfo, error) {
	return dirInfo{name: d.name}, nil
}
func (d *dirFile) Readdir(count int) ([]os.FileInfo, error) {
	remaining := d.entries[d.offset:]
	if count <= 0 {
		d.offset = len(d.entries)
		out := make([]os.FileInfo, len(remaining))
		for i, e := range remaining {
			out[i] = entryInfo{e: e}
		}
		return out, nil
	}
	if len(remaining) == 0 {
		return nil, io.EOF
	}
	if count > len(remaining) {
		count = len(remaining)
	}
	out := make([]os.FileInfo, count)
	for i, e := range remaining[:count] {
		out[i] = entryInfo{e: e}
	}
	d.offset += count
	return out, nil
}
