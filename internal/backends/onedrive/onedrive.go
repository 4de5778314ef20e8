// Package onedrive implements the "onedrive" StorageAdapter (spec §4.C)
// against the Microsoft Graph API, the way tonimelisma-onedrive-go's
// sync engine talks to a user's drive: OAuth2 refresh-token auth via
// golang.org/x/oauth2, children listing, simple upload for small files,
// and range-aware content download.
package onedrive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/objectfs/objectfs/internal/adapter"
	"github.com/objectfs/objectfs/internal/backend"
	"github.com/objectfs/objectfs/pkg/errors"
	"github.com/objectfs/objectfs/pkg/types"
)

const graphBaseURL = "https://graph.microsoft.com/v1.0"

// refreshMargin is how far ahead of expiry a cached token is treated as
// stale, so an in-flight request never races the token's real expiry.
const refreshMargin = 5 * time.Minute

func init() {
	adapter.Register(backend.TypeDescriptor{
		Type:    "onedrive",
		Factory: newAdapter,
		ConfigSchema: []types.ConfigField{
			{Key: "client_id", Label: "Client ID", Type: types.FieldString, Required: true},
			{Key: "client_secret", Label: "Client Secret", Type: types.FieldPassword, Required: true},
			{Key: "refresh_token", Label: "Refresh Token", Type: types.FieldPassword, Required: true},
			{Key: "tenant", Label: "Tenant", Type: types.FieldString, Default: "common"},
			{Key: "drive_id", Label: "Drive ID", Type: types.FieldString},
		},
	})
}

// tokenManager wraps an oauth2.Config + stored refresh token with a
// single-flight refresh so concurrent requests never fire duplicate
// token exchanges against Microsoft's endpoint.
type tokenManager struct {
	mu     sync.Mutex
	cfg    *oauth2.Config
	tok    *oauth2.Token
	client *http.Client
}

func newTokenManager(clientID, clientSecret, tenant, refreshToken string) *tokenManager {
	cfg := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/authorize", tenant),
			TokenURL: fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", tenant),
		},
		Scopes: []string{"Files.ReadWrite.All", "offline_access"},
	}
	return &tokenManager{
		cfg:    cfg,
		tok:    &oauth2.Token{RefreshToken: refreshToken},
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (m *tokenManager) accessToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.tok.Valid() && time.Until(m.tok.Expiry) > refreshMargin {
		return m.tok.AccessToken, nil
	}

	src := m.cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: m.tok.RefreshToken})
	fresh, err := src.Token()
	if err != nil {
		return "", errors.UpstreamError("onedrive", "token_refresh", 0, err.Error())
	}
	m.tok = fresh
	return m.tok.AccessToken, nil
}

// Adapter implements backend.Adapter against a OneDrive/SharePoint drive.
type Adapter struct {
	tokens  *tokenManager
	driveID string
	client  *http.Client
}

func newAdapter(rec *types.StorageAdapter) (backend.Adapter, error) {
	clientID := rec.Config["client_id"]
	secret := rec.Config["client_secret"]
	refreshToken := rec.Config["refresh_token"]
	if clientID == "" || secret == "" || refreshToken == "" {
		return nil, errors.InvalidArgument("onedrive", "client_id, client_secret, and refresh_token are required")
	}
	tenant := rec.Config["tenant"]
	if tenant == "" {
		tenant = "common"
	}
	return &Adapter{
		tokens:  newTokenManager(clientID, secret, tenant, refreshToken),
		driveID: rec.Config["drive_id"],
		client:  &http.Client{Timeout: 60 * time.Second},
	}, nil
}

// ResolveRoot has no server-side meaning beyond the mount's own sub_path;
// OneDrive item paths are computed per-request against the drive root.
func (a *Adapter) ResolveRoot(subPath string) (string, error) {
	return strings.Trim(subPath, "/"), nil
}

func (a *Adapter) itemURL(root, rel, suffix string) string {
	p := strings.Trim(path.Join(root, rel), "/")
	base := graphBaseURL + "/me/drive"
	if a.driveID != "" {
		base = graphBaseURL + "/drives/" + url.PathEscape(a.driveID)
	}
	if p == "" {
		return base + "/root" + suffix
	}
	return base + "/root:/" + pathEscapeSegments(p) + ":" + suffix
}

func pathEscapeSegments(p string) string {
	parts := strings.Split(p, "/")
	for i, s := range parts {
		parts[i] = url.PathEscape(s)
	}
	return strings.Join(parts, "/")
}

func (a *Adapter) request(ctx context.Context, method, u string, body io.Reader) (*http.Request, error) {
	tok, err := a.tokens.accessToken(ctx)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, errors.NewError(errors.ErrCodeInternalError, "failed to build graph request").WithCause(err)
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	return req, nil
}

func (a *Adapter) do(req *http.Request) (*http.Response, error) {
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, errors.UpstreamError("onedrive", req.Method, 0, err.Error())
	}
	return resp, nil
}

type driveItem struct {
	ID                   string            `json:"id"`
	Name                 string            `json:"name"`
	Size                 int64             `json:"size"`
	File                 *struct{}         `json:"file,omitempty"`
	Folder               *struct{}         `json:"folder,omitempty"`
	LastModifiedDateTime time.Time         `json:"lastModifiedDateTime"`
	ParentReference      map[string]string `json:"parentReference,omitempty"`
}

type childrenResponse struct {
	Value    []driveItem `json:"value"`
	NextLink string      `json:"@odata.nextLink"`
}

func (a *Adapter) ListDir(ctx context.Context, root, rel string, page backend.ListPage) ([]types.DirEntry, int, error) {
	u := a.itemURL(root, rel, "/children")
	req, err := a.request(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := a.do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, 0, errors.NotFound("onedrive", rel)
	}
	if resp.StatusCode >= 300 {
		return nil, 0, graphError(resp)
	}

	var body childrenResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, 0, errors.NewError(errors.ErrCodeInternalError, "failed to decode children response").WithCause(err)
	}

	out := make([]types.DirEntry, 0, len(body.Value))
	for _, it := range body.Value {
		kind := types.KindFile
		isDir := it.Folder != nil
		if isDir {
			kind = types.KindDir
		}
		out = append(out, types.DirEntry{Name: it.Name, IsDir: isDir, Size: it.Size, Mtime: it.LastModifiedDateTime.Unix(), Kind: kind})
	}
	return out, len(out), nil
}

func (a *Adapter) ReadFile(ctx context.Context, root, rel string) ([]byte, error) {
	resp, err := a.StreamFile(ctx, root, rel, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewError(errors.ErrCodeInternalError, "failed to read onedrive content").WithCause(err)
	}
	return data, nil
}

func (a *Adapter) StreamFile(ctx context.Context, root, rel string, rng *backend.Range) (*backend.StreamResponse, error) {
	req, err := a.request(ctx, http.MethodGet, a.itemURL(root, rel, "/content"), nil)
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
		return nil, errors.NotFound("onedrive", rel)
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, graphError(resp)
	}
	return &backend.StreamResponse{
		Body:          resp.Body,
		Status:        resp.StatusCode,
		ContentLength: resp.ContentLength,
		ContentRange:  resp.Header.Get("Content-Range"),
		AcceptRanges:  resp.Header.Get("Accept-Ranges") == "bytes",
	}, nil
}

// simpleUploadLimit is Graph's cutoff for "simple" PUT-to-content uploads;
// beyond it, a resumable upload session is required (not implemented —
// spec scope covers the common small-file share case).
const simpleUploadLimit = 4 << 20

func (a *Adapter) WriteFile(ctx context.Context, root, rel string, data []byte) error {
	if len(data) > simpleUploadLimit {
		return errors.NotImplemented("onedrive", "uploads over 4MiB require a resumable session")
	}
	req, err := a.request(ctx, http.MethodPut, a.itemURL(root, rel, "/content"), bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.ContentLength = int64(len(data))
	resp, err := a.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return graphError(resp)
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
	parent := path.Dir(rel)
	if parent == "." {
		parent = ""
	}
	name := path.Base(rel)

	payload, _ := json.Marshal(map[string]any{
		"name":                              name,
		"folder":                            map[string]any{},
		"@microsoft.graph.conflictBehavior": "fail",
	})
	req, err := a.request(ctx, http.MethodPost, a.itemURL(root, parent, "/children"), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := a.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusConflict {
		return errors.AlreadyExists("onedrive", rel)
	}
	if resp.StatusCode >= 300 {
		return graphError(resp)
	}
	return nil
}

func (a *Adapter) Delete(ctx context.Context, root, rel string) error {
	req, err := a.request(ctx, http.MethodDelete, a.itemURL(root, rel, ""), nil)
	if err != nil {
		return err
	}
	resp, err := a.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return errors.NotFound("onedrive", rel)
	}
	if resp.StatusCode >= 300 {
		return graphError(resp)
	}
	return nil
}

func (a *Adapter) StatFile(ctx context.Context, root, rel string) (*types.FileStat, error) {
	req, err := a.request(ctx, http.MethodGet, a.itemURL(root, rel, ""), nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, errors.NotFound("onedrive", rel)
	}
	if resp.StatusCode >= 300 {
		return nil, graphError(resp)
	}

	var it driveItem
	if err := json.NewDecoder(resp.Body).Decode(&it); err != nil {
		return nil, errors.NewError(errors.ErrCodeInternalError, "failed to decode drive item").WithCause(err)
	}
	return &types.FileStat{Name: it.Name, IsDir: it.Folder != nil, Size: it.Size, Mtime: it.LastModifiedDateTime.Unix()}, nil
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
	parent := path.Dir(dst)
	if parent == "." {
		parent = ""
	}
	payload, _ := json.Marshal(map[string]any{
		"parentReference": map[string]string{"path": "/drive/root:/" + strings.Trim(path.Join(root, parent), "/")},
		"name":            path.Base(dst),
	})
	req, err := a.request(ctx, "PATCH", a.itemURL(root, src, ""), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := a.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return graphError(resp)
	}
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

func graphError(resp *http.Response) error {
	return errors.UpstreamError("onedrive", resp.Request.Method, resp.StatusCode, resp.Request.URL.Path)
}
