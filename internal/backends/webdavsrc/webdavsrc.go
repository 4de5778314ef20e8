// Package webdavsrc implements the "webdav" StorageAdapter (spec §4.C): a
// client that mounts a remote WebDAV share as a content root, speaking
// PROPFIND/GET/PUT/MKCOL/DELETE/MOVE/COPY over net/http the way
// kopia's webdav storage client and go-webdav's server both shape a
// WebDAV exchange, just from the client side.
package webdavsrc

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/objectfs/objectfs/internal/adapter"
	"github.com/objectfs/objectfs/internal/backend"
	"github.com/objectfs/objectfs/pkg/errors"
	"github.com/objectfs/objectfs/pkg/types"
)

func init() {
	adapter.Register(backend.TypeDescriptor{
		Type:    "webdav",
		Factory: newAdapter,
		ConfigSchema: []types.ConfigField{
			{Key: "base_url", Label: "Server URL", Type: types.FieldString, Required: true, Placeholder: "https://dav.example.com/remote.php/dav"},
			{Key: "username", Label: "Username", Type: types.FieldString},
			{Key: "password", Label: "Password", Type: types.FieldPassword},
			{Key: "insecure_skip_verify", Label: "Skip TLS Verification", Type: types.FieldCheckbox},
		},
	})
}

// Adapter implements backend.Adapter against a remote WebDAV server.
type Adapter struct {
	baseURL  string
	username string
	password string
	client   *http.Client
}

func newAdapter(rec *types.StorageAdapter) (backend.Adapter, error) {
	base := rec.Config["base_url"]
	if base == "" {
		return nil, errors.InvalidArgument("webdav", "base_url is required")
	}
	return &Adapter{
		baseURL:  strings.TrimRight(base, "/"),
		username: rec.Config["username"],
		password: rec.Config["password"],
		client:   &http.Client{Timeout: 60 * time.Second},
	}, nil
}

// ResolveRoot has no server-side meaning for WebDAV beyond the mount's
// sub_path itself; the root is just a URL path prefix.
func (a *Adapter) ResolveRoot(subPath string) (string, error) {
	return strings.Trim(subPath, "/"), nil
}

func (a *Adapter) href(root, rel string) string {
	p := path.Join("/", root, rel)
	return a.baseURL + p
}

func (a *Adapter) newRequest(ctx context.Context, method, href string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, href, body)
	if err != nil {
		return nil, errors.NewError(errors.ErrCodeInternalError, "failed to build webdav request").WithCause(err)
	}
	if a.username != "" {
		req.SetBasicAuth(a.username, a.password)
	}
	return req, nil
}

func (a *Adapter) do(req *http.Request) (*http.Response, error) {
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, errors.UpstreamError("webdav", req.Method, 0, err.Error())
	}
	return resp, nil
}

type multistatus struct {
	XMLName   xml.Name   `xml:"multistatus"`
	Responses []response `xml:"response"`
}

type response struct {
	Href     string   `xml:"href"`
	Propstat propstat `xml:"propstat"`
}

type propstat struct {
	Prop prop `xml:"prop"`
}

type prop struct {
	DisplayName      string     `xml:"displayname"`
	ContentLength    int64      `xml:"getcontentlength"`
	LastModified     string     `xml:"getlastmodified"`
	ResourceType     resourceTy `xml:"resourcetype"`
}

type resourceTy struct {
	Collection *struct{} `xml:"collection"`
}

const propfindBody = `<?xml version="1.0" encoding="utf-8" ?>
<D:propfind xmlns:D="DAV:">
  <D:prop>
    <D:displayname/>
    <D:getcontentlength/>
    <D:getlastmodified/>
    <D:resourcetype/>
  </D:prop>
</D:propfind>`

func (a *Adapter) propfind(ctx context.Context, href string, depth string) (*multistatus, error) {
	req, err := a.newRequest(ctx, "PROPFIND", href, strings.NewReader(propfindBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Depth", depth)
	req.Header.Set("Content-Type", "application/xml")

	resp, err := a.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errors.NotFound("webdav", href)
	}
	if resp.StatusCode != http.StatusMultiStatus {
		return nil, errors.UpstreamError("webdav", "PROPFIND", resp.StatusCode, href)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewError(errors.ErrCodeInternalError, "failed to read propfind body").WithCause(err)
	}
	var ms multistatus
	if err := xml.Unmarshal(data, &ms); err != nil {
		return nil, errors.NewError(errors.ErrCodeInternalError, "failed to parse propfind response").WithCause(err)
	}
	return &ms, nil
}

func (a *Adapter) ListDir(ctx context.Context, root, rel string, page backend.ListPage) ([]types.DirEntry, int, error) {
	href := a.href(root, rel) + "/"
	ms, err := a.propfind(ctx, href, "1")
	if err != nil {
		return nil, 0, err
	}

	base, err := url.Parse(href)
	if err != nil {
		return nil, 0, errors.NewError(errors.ErrCodeInternalError, "bad href").WithCause(err)
	}

	out := make([]types.DirEntry, 0, len(ms.Responses))
	for _, r := range ms.Responses {
		u, err := url.Parse(r.Href)
		if err != nil {
			continue
		}
		if strings.TrimRight(u.Path, "/") == strings.TrimRight(base.Path, "/") {
			continue // self entry
		}
		name := path.Base(strings.TrimRight(u.Path, "/"))
		isDir := r.Propstat.Prop.ResourceType.Collection != nil
		kind := types.KindFile
		if isDir {
			kind = types.KindDir
		}
		out = append(out, types.DirEntry{
			Name:  name,
			IsDir: isDir,
			Size:  r.Propstat.Prop.ContentLength,
			Mtime: parseHTTPDate(r.Propstat.Prop.LastModified),
			Kind:  kind,
		})
	}
	return out, len(out), nil
}

func parseHTTPDate(s string) int64 {
	if s == "" {
		return 0
	}
	t, err := time.Parse(time.RFC1123, s)
	if err != nil {
		return 0
	}
	return t.Unix()
}

func (a *Adapter) ReadFile(ctx context.Context, root, rel string) ([]byte, error) {
	resp, err := a.StreamFile(ctx, root, rel, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewError(errors.ErrCodeInternalError, "failed to read webdav body").WithCause(err)
	}
	return data, nil
}

func (a *Adapter) StreamFile(ctx context.Context, root, rel string, rng *backend.Range) (*backend.StreamResponse, error) {
	req, err := a.newRequest(ctx, http.MethodGet, a.href(root, rel), nil)
	if err != nil {
		return nil, err
	}
	if rng != nil {
		if rng.End >= 0 {
			req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", rng.Start, rng.End))
		} else {
			req.Header.Set("Range", fmt.Sprintf("bytes=%d-", rng.Start))
		}
	}

	resp, err := a.do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, errors.NotFound("webdav", rel)
	}
	if resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, errors.UpstreamError("webdav", "GET", resp.StatusCode, rel)
	}

	return &backend.StreamResponse{
		Body:          resp.Body,
		Status:        resp.StatusCode,
		ContentLength: resp.ContentLength,
		ContentRange:  resp.Header.Get("Content-Range"),
		AcceptRanges:  resp.Header.Get("Accept-Ranges") == "bytes",
	}, nil
}

func (a *Adapter) WriteFile(ctx context.Context, root, rel string, data []byte) error {
	_, err := a.WriteFileStream(ctx, root, rel, bytes.NewReader(data))
	return err
}

func (a *Adapter) WriteFileStream(ctx context.Context, root, rel string, chunks io.Reader) (int64, error) {
	data, err := io.ReadAll(chunks)
	if err != nil {
		return 0, errors.NewError(errors.ErrCodeInternalError, "failed to buffer upload body").WithCause(err)
	}
	req, err := a.newRequest(ctx, http.MethodPut, a.href(root, rel), bytes.NewReader(data))
	if err != nil {
		return 0, err
	}
	req.ContentLength = int64(len(data))

	resp, err := a.do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return 0, errors.UpstreamError("webdav", "PUT", resp.StatusCode, rel)
	}
	return int64(len(data)), nil
}

func (a *Adapter) Mkdir(ctx context.Context, root, rel string) error {
	req, err := a.newRequest(ctx, "MKCOL", a.href(root, rel), nil)
	if err != nil {
		return err
	}
	resp, err := a.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusMethodNotAllowed {
		return errors.UpstreamError("webdav", "MKCOL", resp.StatusCode, rel)
	}
	return nil
}

func (a *Adapter) Delete(ctx context.Context, root, rel string) error {
	req, err := a.newRequest(ctx, http.MethodDelete, a.href(root, rel), nil)
	if err != nil {
		return err
	}
	resp, err := a.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return errors.NotFound("webdav", rel)
	}
	if resp.StatusCode >= 300 {
		return errors.UpstreamError("webdav", "DELETE", resp.StatusCode, rel)
	}
	return nil
}

func (a *Adapter) StatFile(ctx context.Context, root, rel string) (*types.FileStat, error) {
	ms, err := a.propfind(ctx, a.href(root, rel), "0")
	if err != nil {
		return nil, err
	}
	if len(ms.Responses) == 0 {
		return nil, errors.NotFound("webdav", rel)
	}
	p := ms.Responses[0].Propstat.Prop
	return &types.FileStat{
		Name:  path.Base(rel),
		IsDir: p.ResourceType.Collection != nil,
		Size:  p.ContentLength,
		Mtime: parseHTTPDate(p.LastModified),
	}, nil
}

func (a *Adapter) Exists(ctx context.Context, root, rel string) (bool, error) {
	_, err := a.StatFile(ctx, root, rel)
	if err == nil {
		return true, nil
	}
	if errors.IsNotFound(err) {
		return false, nil
	}
	return false, err
}

func (a *Adapter) StatPath(ctx context.Context, root, rel string) (*types.PathProbe, error) {
	stat, err := a.StatFile(ctx, root, rel)
	if err != nil {
		if errors.IsNotFound(err) {
			return &types.PathProbe{Exists: false}, nil
		}
		return nil, err
	}
	kind := types.KindFile
	if stat.IsDir {
		kind = types.KindDir
	}
	return &types.PathProbe{Exists: true, IsDir: stat.IsDir, Kind: kind}, nil
}

func (a *Adapter) Move(ctx context.Context, root, src, dst string) error {
	return a.copyOrMove(ctx, "MOVE", root, src, dst)
}

func (a *Adapter) Rename(ctx context.Context, root, src, dst string) error {
	return a.copyOrMove(ctx, "MOVE", root, src, dst)
}

func (a *Adapter) Copy(ctx context.Context, root, src, dst string, overwrite bool) error {
	return a.copyOrMove(ctx, "COPY", root, src, dst)
}

func (a *Adapter) copyOrMove(ctx context.Context, method, root, src, dst string) error {
	req, err := a.newRequest(ctx, method, a.href(root, src), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Destination", a.href(root, dst))
	req.Header.Set("Overwrite", "T")

	resp, err := a.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return errors.NotFound("webdav", src)
	}
	if resp.StatusCode >= 300 {
		return errors.UpstreamError("webdav", method, resp.StatusCode, src)
	}
	return nil
}
