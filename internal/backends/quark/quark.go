// Package quark implements the "quark" StorageAdapter (spec §4.C) against
// Quark Netdisk's web API: cookie-based session auth, a per-mount file-id
// cache (Quark addresses files by opaque fid, not by path), and upload
// through its pre-auth + OSS PUT + finish handshake, sending the whole
// body in a single PUT.
package quark

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/objectfs/objectfs/internal/adapter"
	"github.com/objectfs/objectfs/internal/backend"
	"github.com/objectfs/objectfs/pkg/errors"
	"github.com/objectfs/objectfs/pkg/types"
)

const apiBaseURL = "https://drive-pc.quark.cn/1/clouddrive"

// defaultSettleDelay is how long Quark's backend takes to make a freshly
// uploaded file visible in directory listings; callers that write then
// immediately list should expect this lag (spec §4.C "quark_settle_delay").
const defaultSettleDelay = 1 * time.Second

func init() {
	adapter.Register(backend.TypeDescriptor{
		Type:    "quark",
		Factory: newAdapter,
		ConfigSchema: []types.ConfigField{
			{Key: "cookie", Label: "Session Cookie", Type: types.FieldPassword, Required: true},
			{Key: "root_fid", Label: "Root Folder ID", Type: types.FieldString, Default: "0"},
		},
	})
}

// fidCache maps a mount-relative path to Quark's opaque file id, since
// every Quark API call addresses content by fid rather than by path.
type fidCache struct {
	mu   sync.RWMutex
	byID map[string]string
}

func newFidCache() *fidCache { return &fidCache{byID: make(map[string]string)} }

func (c *fidCache) get(p string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fid, ok := c.byID[p]
	return fid, ok
}

func (c *fidCache) put(p, fid string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byID[p] = fid
}

func (c *fidCache) forget(p string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byID, p)
}

// Adapter implements backend.Adapter against a Quark Netdisk account.
type Adapter struct {
	client  *http.Client
	baseURL string
	cookie  string
	rootFid string
	fids    *fidCache
	settle  time.Duration
}

func newAdapter(rec *types.StorageAdapter) (backend.Adapter, error) {
	cookie := rec.Config["cookie"]
	if cookie == "" {
		return nil, errors.InvalidArgument("quark", "cookie is required")
	}
	jar, _ := cookiejar.New(nil)
	rootFid := rec.Config["root_fid"]
	if rootFid == "" {
		rootFid = "0"
	}
	fids := newFidCache()
	fids.put("", rootFid)
	return &Adapter{
		client:  &http.Client{Jar: jar, Timeout: 60 * time.Second},
		baseURL: apiBaseURL,
		cookie:  cookie,
		rootFid: rootFid,
		fids:    fids,
		settle:  defaultSettleDelay,
	}, nil
}

// ResolveRoot is a no-op: Quark addresses content by fid, resolved lazily
// as paths are referenced, not up front from a filesystem-style root.
func (a *Adapter) ResolveRoot(subPath string) (string, error) {
	return strings.Trim(subPath, "/"), nil
}

func joinPath(root, rel string) string {
	return strings.Trim(path.Join(root, rel), "/")
}

func (a *Adapter) request(ctx context.Context, method, u string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, errors.NewError(errors.ErrCodeInternalError, "failed to build quark request").WithCause(err)
	}
	req.Header.Set("Cookie", a.cookie)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (a *Adapter) do(req *http.Request) (*http.Response, error) {
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, errors.UpstreamError("quark", req.Method, 0, err.Error())
	}
	return resp, nil
}

type listEntry struct {
	Fid     string `json:"fid"`
	FileName string `json:"file_name"`
	Dir     bool   `json:"dir"`
	Size    int64  `json:"size"`
	UpdatedAt int64 `json:"updated_at"` // epoch milliseconds
}

type listResponse struct {
	Data struct {
		List []listEntry `json:"list"`
	} `json:"data"`
}

// resolveFid walks the fid cache, resolving and caching intermediate
// directory fids as needed via the API's list-children call.
func (a *Adapter) resolveFid(ctx context.Context, p string) (string, error) {
	if fid, ok := a.fids.get(p); ok {
		return fid, nil
	}
	parent := path.Dir(p)
	if parent == "." {
		parent = ""
	}
	parentFid, err := a.resolveFid(ctx, parent)
	if err != nil {
		return "", err
	}
	entries, err := a.listChildren(ctx, parentFid)
	if err != nil {
		return "", err
	}
	name := path.Base(p)
	for _, e := range entries {
		childPath := joinPath(parent, e.FileName)
		a.fids.put(childPath, e.Fid)
		if e.FileName == name {
			return e.Fid, nil
		}
	}
	return "", errors.NotFound("quark", p)
}

func (a *Adapter) listChildren(ctx context.Context, parentFid string) ([]listEntry, error) {
	u := fmt.Sprintf("%s/file/sort?pdir_fid=%s&_size=200", a.baseURL, parentFid)
	req, err := a.request(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, errors.UpstreamError("quark", "list", resp.StatusCode, parentFid)
	}
	var body listResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, errors.NewError(errors.ErrCodeInternalError, "failed to decode quark listing").WithCause(err)
	}
	return body.Data.List, nil
}

func (a *Adapter) ListDir(ctx context.Context, root, rel string, page backend.ListPage) ([]types.DirEntry, int, error) {
	p := joinPath(root, rel)
	fid, err := a.resolveFid(ctx, p)
	if err != nil {
		return nil, 0, err
	}
	entries, err := a.listChildren(ctx, fid)
	if err != nil {
		return nil, 0, err
	}

	out := make([]types.DirEntry, 0, len(entries))
	for _, e := range entries {
		a.fids.put(joinPath(p, e.FileName), e.Fid)
		kind := types.KindFile
		if e.Dir {
			kind = types.KindDir
		}
		out = append(out, types.DirEntry{Name: e.FileName, IsDir: e.Dir, Size: e.Size, Mtime: e.UpdatedAt / 1000, Kind: kind})
	}
	return out, len(out), nil
}

func (a *Adapter) downloadURL(ctx context.Context, fid string) (string, error) {
	payload, _ := json.Marshal(map[string]any{"fids": []string{fid}})
	req, err := a.request(ctx, http.MethodPost, a.baseURL+"/file/download", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	resp, err := a.do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", errors.UpstreamError("quark", "download", resp.StatusCode, fid)
	}
	var body struct {
		Data []struct {
			DownloadURL string `json:"download_url"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", errors.NewError(errors.ErrCodeInternalError, "failed to decode download response").WithCause(err)
	}
	if len(body.Data) == 0 {
		return "", errors.NotFound("quark", fid)
	}
	return body.Data[0].DownloadURL, nil
}

func (a *Adapter) ReadFile(ctx context.Context, root, rel string) ([]byte, error) {
	resp, err := a.StreamFile(ctx, root, rel, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewError(errors.ErrCodeInternalError, "failed to read quark content").WithCause(err)
	}
	return data, nil
}

func (a *Adapter) StreamFile(ctx context.Context, root, rel string, rng *backend.Range) (*backend.StreamResponse, error) {
	p := joinPath(root, rel)
	fid, err := a.resolveFid(ctx, p)
	if err != nil {
		return nil, err
	}
	dlURL, err := a.downloadURL(ctx, fid)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, dlURL, nil)
	if err != nil {
		return nil, errors.NewError(errors.ErrCodeInternalError, "failed to build download request").WithCause(err)
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
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, errors.UpstreamError("quark", "GET", resp.StatusCode, p)
	}
	return &backend.StreamResponse{
		Body:          resp.Body,
		Status:        resp.StatusCode,
		ContentLength: resp.ContentLength,
		ContentRange:  resp.Header.Get("Content-Range"),
		AcceptRanges:  resp.Header.Get("Accept-Ranges") == "bytes",
	}, nil
}

// WriteFile performs Quark's upload handshake: pre-auth to obtain an OSS
// multipart upload target, a single-part PUT for content of this size,
// then a finish call. Quark does not make the file visible immediately;
// callers should expect up to settle (default 1s) before it appears in a
// subsequent ListDir.
func (a *Adapter) WriteFile(ctx context.Context, root, rel string, data []byte) error {
	p := joinPath(root, rel)
	parent := path.Dir(p)
	if parent == "." {
		parent = ""
	}
	parentFid, err := a.resolveFid(ctx, parent)
	if err != nil {
		return err
	}

	preAuth, err := a.uploadPreAuth(ctx, parentFid, path.Base(p), int64(len(data)))
	if err != nil {
		return err
	}

	putReq, err := http.NewRequestWithContext(ctx, http.MethodPut, preAuth.UploadURL, bytes.NewReader(data))
	if err != nil {
		return errors.NewError(errors.ErrCodeInternalError, "failed to build OSS put request").WithCause(err)
	}
	putReq.ContentLength = int64(len(data))
	resp, err := a.do(putReq)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		return errors.UpstreamError("quark", "oss_put", resp.StatusCode, p)
	}

	if err := a.uploadFinish(ctx, preAuth.TaskID); err != nil {
		return err
	}

	a.fids.forget(parent) // next ListDir must re-resolve to see the new entry
	time.Sleep(a.settle)
	return nil
}

type preAuthResult struct {
	UploadURL string
	TaskID    string
}

func (a *Adapter) uploadPreAuth(ctx context.Context, parentFid, name string, size int64) (*preAuthResult, error) {
	payload, _ := json.Marshal(map[string]any{
		"pdir_fid":  parentFid,
		"file_name": name,
		"size":      size,
	})
	req, err := a.request(ctx, http.MethodPost, a.baseURL+"/file/upload/pre", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	resp, err := a.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, errors.UpstreamError("quark", "upload_pre", resp.StatusCode, name)
	}
	var body struct {
		Data struct {
			UploadURL string `json:"upload_url"`
			TaskID    string `json:"task_id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, errors.NewError(errors.ErrCodeInternalError, "failed to decode upload pre-auth").WithCause(err)
	}
	return &preAuthResult{UploadURL: body.Data.UploadURL, TaskID: body.Data.TaskID}, nil
}

func (a *Adapter) uploadFinish(ctx context.Context, taskID string) error {
	payload, _ := json.Marshal(map[string]any{"task_id": taskID})
	req, err := a.request(ctx, http.MethodPost, a.baseURL+"/file/upload/finish", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	resp, err := a.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return errors.UpstreamError("quark", "upload_finish", resp.StatusCode, taskID)
	}
	return nil
}

func (a *Adapter) WriteFileStream(ctx context.Context, root, rel string, chunks io.Reader) (int64, error) {
	data, err := io.ReadAll(chunks)
	if err != nil {
		return 0, errors.NewError(errors.ErrCodeInternalError, "failed to buffer upload body").WithCause(err)
	}
	if err := a.WriteFile(ctx, root, rel, data); err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}

func (a *Adapter) Mkdir(ctx context.Context, root, rel string) error {
	p := joinPath(root, rel)
	parent := path.Dir(p)
	if parent == "." {
		parent = ""
	}
	parentFid, err := a.resolveFid(ctx, parent)
	if err != nil {
		return err
	}
	payload, _ := json.Marshal(map[string]any{"pdir_fid": parentFid, "file_name": path.Base(p), "dir_path": "", "dir_init_lock": false})
	req, err := a.request(ctx, http.MethodPost, a.baseURL+"/file", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	resp, err := a.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return errors.UpstreamError("quark", "mkdir", resp.StatusCode, p)
	}
	a.fids.forget(parent)
	return nil
}

func (a *Adapter) Delete(ctx context.Context, root, rel string) error {
	p := joinPath(root, rel)
	fid, err := a.resolveFid(ctx, p)
	if err != nil {
		return err
	}
	payload, _ := json.Marshal(map[string]any{"filelist": []string{fid}, "action_type": 2})
	req, err := a.request(ctx, http.MethodPost, a.baseURL+"/file/delete", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	resp, err := a.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return errors.UpstreamError("quark", "delete", resp.StatusCode, p)
	}
	a.fids.forget(p)
	return nil
}

func (a *Adapter) StatFile(ctx context.Context, root, rel string) (*types.FileStat, error) {
	p := joinPath(root, rel)
	parent := path.Dir(p)
	if parent == "." {
		parent = ""
	}
	parentFid, err := a.resolveFid(ctx, parent)
	if err != nil {
		return nil, err
	}
	entries, err := a.listChildren(ctx, parentFid)
	if err != nil {
		return nil, err
	}
	name := path.Base(p)
	for _, e := range entries {
		if e.FileName == name {
			return &types.FileStat{Name: e.FileName, IsDir: e.Dir, Size: e.Size, Mtime: e.UpdatedAt / 1000}, nil
		}
	}
	return nil, errors.NotFound("quark", p)
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
	srcP, dstP := joinPath(root, src), joinPath(root, dst)
	fid, err := a.resolveFid(ctx, srcP)
	if err != nil {
		return err
	}
	dstParent := path.Dir(dstP)
	if dstParent == "." {
		dstParent = ""
	}
	dstParentFid, err := a.resolveFid(ctx, dstParent)
	if err != nil {
		return err
	}
	payload, _ := json.Marshal(map[string]any{"filelist": []string{fid}, "to_pdir_fid": dstParentFid})
	req, err := a.request(ctx, http.MethodPost, a.baseURL+"/file/move", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	resp, err := a.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return errors.UpstreamError("quark", "move", resp.StatusCode, srcP)
	}
	a.fids.forget(srcP)
	a.fids.forget(path.Dir(srcP))
	a.fids.forget(dstParent)
	return nil
}

func (a *Adapter) Rename(ctx context.Context, root, src, dst string) error {
	return a.Move(ctx, root, src, dst)
}

func (a *Adapter) Copy(ctx context.Context, root, src, dst string, overwrite bool) error {
	data, err := a.ReadFile(ctx, root, src)
	if err != nil {
		return err
	}
	return a.WriteFile(ctx, root, dst, data)
}
