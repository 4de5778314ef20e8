// Package s3 implements the S3-compatible StorageAdapter (spec §4.C "s3")
// by wrapping internal/storage/s3's CargoShip-optimized Backend — the
// teacher's own S3 client — behind the backend.Adapter contract instead
// of FUSE's filesystem.Interface.
package s3

import (
	"bytes"
	"context"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/objectfs/objectfs/internal/adapter"
	"github.com/objectfs/objectfs/internal/backend"
	objs3 "github.com/objectfs/objectfs/internal/storage/s3"
	"github.com/objectfs/objectfs/pkg/errors"
	"github.com/objectfs/objectfs/pkg/types"
)

func init() {
	adapter.Register(backend.TypeDescriptor{
		Type:    "s3",
		Factory: newAdapter,
		ConfigSchema: []types.ConfigField{
			{Key: "bucket", Label: "Bucket", Type: types.FieldString, Required: true},
			{Key: "region", Label: "Region", Type: types.FieldString, Required: true, Default: "us-east-1"},
			{Key: "endpoint", Label: "Custom Endpoint", Type: types.FieldString},
			{Key: "access_key_id", Label: "Access Key ID", Type: types.FieldString, Required: true},
			{Key: "secret_access_key", Label: "Secret Access Key", Type: types.FieldPassword, Required: true},
			{Key: "force_path_style", Label: "Force Path Style", Type: types.FieldCheckbox},
		},
	})
}

// Adapter implements backend.Adapter over an S3 bucket.
type Adapter struct {
	backend *objs3.Backend
}

func newAdapter(rec *types.StorageAdapter) (backend.Adapter, error) {
	bucket := rec.Config["bucket"]
	if bucket == "" {
		return nil, errors.InvalidArgument("s3", "bucket is required")
	}

	cfg := &objs3.Config{
		Region:          rec.Config["region"],
		Endpoint:        rec.Config["endpoint"],
		AccessKeyID:     rec.Config["access_key_id"],
		SecretAccessKey: rec.Config["secret_access_key"],
		ForcePathStyle:  rec.Config["force_path_style"] == "true",
		MaxRetries:      3,
	}

	be, err := objs3.NewBackend(context.Background(), bucket, cfg)
	if err != nil {
		return nil, errors.UpstreamError("s3", "connect", 0, err.Error())
	}
	return &Adapter{backend: be}, nil
}

// ResolveRoot joins the bucket-relative subPath as the adapter's key
// prefix; S3 has no true directories, only shared key prefixes.
func (a *Adapter) ResolveRoot(subPath string) (string, error) {
	return strings.Trim(subPath, "/"), nil
}

func (a *Adapter) key(root, rel string) string {
	return strings.TrimPrefix(path.Join(root, rel), "/")
}

func (a *Adapter) ListDir(ctx context.Context, root, rel string, page backend.ListPage) ([]types.DirEntry, int, error) {
	prefix := a.key(root, rel)
	if prefix != "" {
		prefix += "/"
	}

	objects, subdirs, err := a.backend.ListDirectory(ctx, prefix)
	if err != nil {
		return nil, 0, err
	}

	out := translateListing(prefix, objects, subdirs)
	return out, len(out), nil
}

// translateListing strips prefix from S3 object keys and CommonPrefixes
// entries to produce names relative to the listed directory, the way
// every backend.Adapter.ListDir implementation must (spec §4.B).
func translateListing(prefix string, objects []types.ObjectInfo, subdirs []string) []types.DirEntry {
	out := make([]types.DirEntry, 0, len(objects)+len(subdirs))
	for _, o := range objects {
		name := strings.TrimPrefix(o.Key, prefix)
		if name == "" {
			continue
		}
		out = append(out, types.DirEntry{Name: name, Size: o.Size, Mtime: o.LastModified.Unix(), Kind: types.KindFile})
	}
	for _, p := range subdirs {
		name := strings.TrimSuffix(strings.TrimPrefix(p, prefix), "/")
		if name == "" {
			continue
		}
		out = append(out, types.DirEntry{Name: name, IsDir: true, Kind: types.KindDir})
	}
	return out
}

func (a *Adapter) ReadFile(ctx context.Context, root, rel string) ([]byte, error) {
	data, err := a.backend.GetObject(ctx, a.key(root, rel), 0, 0)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (a *Adapter) StreamFile(ctx context.Context, root, rel string, rng *backend.Range) (*backend.StreamResponse, error) {
	key := a.key(root, rel)
	if rng == nil {
		data, err := a.backend.GetObject(ctx, key, 0, 0)
		if err != nil {
			return nil, err
		}
		return &backend.StreamResponse{Body: io.NopCloser(bytes.NewReader(data)), Status: 200, ContentLength: int64(len(data)), AcceptRanges: true}, nil
	}

	size := int64(0)
	if rng.End >= 0 {
		size = rng.End - rng.Start + 1
	}
	data, err := a.backend.GetObject(ctx, key, rng.Start, size)
	if err != nil {
		return nil, err
	}
	return &backend.StreamResponse{
		Body:          io.NopCloser(bytes.NewReader(data)),
		Status:        206,
		ContentLength: int64(len(data)),
		ContentRange:  "bytes " + strconv.FormatInt(rng.Start, 10) + "-" + strconv.FormatInt(rng.Start+int64(len(data))-1, 10) + "/*",
		AcceptRanges:  true,
	}, nil
}

func (a *Adapter) WriteFile(ctx context.Context, root, rel string, data []byte) error {
	return a.backend.PutObject(ctx, a.key(root, rel), data)
}

// WriteFileStream uploads chunks as an S3 multipart upload: sequential
// 5 MiB UploadParts followed by CompleteMultipartUpload, with
// AbortMultipartUpload on any part failure (spec §4.C).
func (a *Adapter) WriteFileStream(ctx context.Context, root, rel string, chunks io.Reader) (int64, error) {
	return a.backend.PutObjectMultipart(ctx, a.key(root, rel), chunks)
}

// Mkdir writes S3's conventional zero-byte "directory marker" object
// (key ending in "/"), since S3 has no native directory concept.
func (a *Adapter) Mkdir(ctx context.Context, root, rel string) error {
	key := a.key(root, rel)
	if key != "" {
		key += "/"
	}
	return a.backend.PutObject(ctx, key, nil)
}

func (a *Adapter) Delete(ctx context.Context, root, rel string) error {
	key := a.key(root, rel)
	if err := a.backend.DeleteObject(ctx, key); err == nil || !errors.IsNotFound(err) {
		return err
	}

	// Not a single object: treat rel as a directory prefix and delete
	// everything beneath it.
	objects, _, err := a.backend.ListDirectory(ctx, key+"/")
	if err != nil {
		return err
	}
	for _, o := range objects {
		if err := a.backend.DeleteObject(ctx, o.Key); err != nil {
			return err
		}
	}
	return nil
}

func (a *Adapter) StatFile(ctx context.Context, root, rel string) (*types.FileStat, error) {
	key := a.key(root, rel)
	info, err := a.backend.HeadObject(ctx, key)
	if err != nil {
		return nil, err
	}
	return &types.FileStat{Name: path.Base(key), Size: info.Size, Mtime: info.LastModified.Unix()}, nil
}

func (a *Adapter) Exists(ctx context.Context, root, rel string) (bool, error) {
	key := a.key(root, rel)
	if _, err := a.backend.HeadObject(ctx, key); err == nil {
		return true, nil
	} else if !errors.IsNotFound(err) {
		return false, err
	}

	objects, subdirs, err := a.backend.ListDirectory(ctx, key+"/")
	if err != nil {
		return false, err
	}
	return len(objects) > 0 || len(subdirs) > 0, nil
}

func (a *Adapter) StatPath(ctx context.Context, root, rel string) (*types.PathProbe, error) {
	key := a.key(root, rel)
	if _, err := a.backend.HeadObject(ctx, key); err == nil {
		return &types.PathProbe{Exists: true, Kind: types.KindFile}, nil
	} else if !errors.IsNotFound(err) {
		return nil, err
	}

	objects, subdirs, err := a.backend.ListDirectory(ctx, key+"/")
	if err != nil {
		return nil, err
	}
	if len(objects) > 0 || len(subdirs) > 0 {
		return &types.PathProbe{Exists: true, IsDir: true, Kind: types.KindDir}, nil
	}
	return &types.PathProbe{Exists: false}, nil
}

// Move has no native S3 equivalent; it copies then deletes the source,
// same as every S3 client library's "rename".
func (a *Adapter) Move(ctx context.Context, root, src, dst string) error {
	if err := a.Copy(ctx, root, src, dst, true); err != nil {
		return err
	}
	return a.Delete(ctx, root, src)
}

func (a *Adapter) Rename(ctx context.Context, root, src, dst string) error {
	return a.Move(ctx, root, src, dst)
}

func (a *Adapter) Copy(ctx context.Context, root, src, dst string, overwrite bool) error {
	data, err := a.backend.GetObject(ctx, a.key(root, src), 0, 0)
	if err != nil {
		return err
	}
	return a.backend.PutObject(ctx, a.key(root, dst), data)
}
