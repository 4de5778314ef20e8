// Package telegram implements the read-only "telegram" StorageAdapter
// (spec §4.C): a mount that presents a chat's recent document/photo/video
// attachments as a flat synthetic directory, speaking the Bot API's plain
// JSON-over-HTTPS wire protocol directly since no SDK for it appears
// anywhere in the reference corpus.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/objectfs/objectfs/internal/adapter"
	"github.com/objectfs/objectfs/internal/backend"
	"github.com/objectfs/objectfs/pkg/errors"
	"github.com/objectfs/objectfs/pkg/types"
)

const apiBaseURL = "https://api.telegram.org"

// refreshInterval bounds how often getUpdates is re-polled for the
// synthetic attachment listing; the mount is read-only so this is the
// only freshness knob it has.
const refreshInterval = 30 * time.Second

func init() {
	adapter.Register(backend.TypeDescriptor{
		Type:    "telegram",
		Factory: newAdapter,
		ConfigSchema: []types.ConfigField{
			{Key: "bot_token", Label: "Bot Token", Type: types.FieldPassword, Required: true},
			{Key: "chat_id", Label: "Chat ID", Type: types.FieldString, Required: true},
		},
	})
}

type attachment struct {
	fileID   string
	fileName string
	size     int64
	mtime    int64
}

// Adapter implements backend.Adapter as a read-only view over a Telegram
// chat's recent attachments, keyed by file name.
type Adapter struct {
	client   *http.Client
	baseURL  string
	token    string
	chatID   string

	mu          sync.Mutex
	cached      []attachment
	cachedAt    time.Time
	lastUpdate  int64
}

func newAdapter(rec *types.StorageAdapter) (backend.Adapter, error) {
	token := rec.Config["bot_token"]
	chatID := rec.Config["chat_id"]
	if token == "" || chatID == "" {
		return nil, errors.InvalidArgument("telegram", "bot_token and chat_id are required")
	}
	return &Adapter{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: apiBaseURL,
		token:   token,
		chatID:  chatID,
	}, nil
}

// ResolveRoot is a no-op: the mount is a single flat synthetic directory,
// not a real server-side path hierarchy.
func (a *Adapter) ResolveRoot(subPath string) (string, error) {
	return "", nil
}

func (a *Adapter) call(ctx context.Context, method string, params map[string]string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/bot%s/%s", a.baseURL, a.token, method), nil)
	if err != nil {
		return errors.NewError(errors.ErrCodeInternalError, "failed to build bot api request").WithCause(err)
	}
	q := req.URL.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	req.URL.RawQuery = q.Encode()

	resp, err := a.client.Do(req)
	if err != nil {
		return errors.UpstreamError("telegram", method, 0, err.Error())
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return errors.UpstreamError("telegram", method, resp.StatusCode, "")
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.NewError(errors.ErrCodeInternalError, "failed to decode bot api response").WithCause(err)
	}
	return nil
}

type update struct {
	UpdateID int64   `json:"update_id"`
	Message  message `json:"message"`
}

type message struct {
	Date     int64     `json:"date"`
	Chat     struct {
		ID int64 `json:"id"`
	} `json:"chat"`
	Document *document `json:"document,omitempty"`
	Photo    []photo   `json:"photo,omitempty"`
	Video    *document `json:"video,omitempty"`
}

type document struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name"`
	FileSize int64  `json:"file_size"`
}

type photo struct {
	FileID   string `json:"file_id"`
	FileSize int64  `json:"file_size"`
}

type updatesResponse struct {
	OK     bool     `json:"ok"`
	Result []update `json:"result"`
}

func (a *Adapter) refresh(ctx context.Context) error {
	a.mu.Lock()
	fresh := time.Since(a.cachedAt) < refreshInterval
	a.mu.Unlock()
	if fresh {
		return nil
	}

	var resp updatesResponse
	params := map[string]string{"limit": "100"}
	if a.lastUpdate > 0 {
		params["offset"] = fmt.Sprintf("%d", a.lastUpdate+1)
	}
	if err := a.call(ctx, "getUpdates", params, &resp); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for _, u := range resp.Result {
		if u.UpdateID > a.lastUpdate {
			a.lastUpdate = u.UpdateID
		}
		if fmt.Sprintf("%d", u.Message.Chat.ID) != a.chatID {
			continue
		}
		switch {
		case u.Message.Document != nil:
			a.cached = append(a.cached, attachment{
				fileID: u.Message.Document.FileID, fileName: u.Message.Document.FileName,
				size: u.Message.Document.FileSize, mtime: u.Message.Date,
			})
		case u.Message.Video != nil:
			name := u.Message.Video.FileName
			if name == "" {
				name = fmt.Sprintf("video_%d.mp4", u.Message.Date)
			}
			a.cached = append(a.cached, attachment{fileID: u.Message.Video.FileID, fileName: name, size: u.Message.Video.FileSize, mtime: u.Message.Date})
		case len(u.Message.Photo) > 0:
			best := u.Message.Photo[len(u.Message.Photo)-1] // largest is last
			a.cached = append(a.cached, attachment{
				fileID: best.FileID, fileName: fmt.Sprintf("photo_%d.jpg", u.Message.Date),
				size: best.FileSize, mtime: u.Message.Date,
			})
		}
	}
	sort.Slice(a.cached, func(i, j int) bool { return a.cached[i].mtime > a.cached[j].mtime })
	a.cachedAt = time.Now()
	return nil
}

func (a *Adapter) find(name string) (attachment, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, att := range a.cached {
		if att.fileName == name {
			return att, true
		}
	}
	return attachment{}, false
}

func (a *Adapter) ListDir(ctx context.Context, root, rel string, page backend.ListPage) ([]types.DirEntry, int, error) {
	if rel != "" {
		return nil, 0, errors.NotFound("telegram", rel)
	}
	if err := a.refresh(ctx); err != nil {
		return nil, 0, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]types.DirEntry, 0, len(a.cached))
	for _, att := range a.cached {
		out = append(out, types.DirEntry{Name: att.fileName, Size: att.size, Mtime: att.mtime, Kind: types.KindFile})
	}
	return out, len(out), nil
}

func (a *Adapter) fileURL(ctx context.Context, fileID string) (string, error) {
	var resp struct {
		OK     bool `json:"ok"`
		Result struct {
			FilePath string `json:"file_path"`
		} `json:"result"`
	}
	if err := a.call(ctx, "getFile", map[string]string{"file_id": fileID}, &resp); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/file/bot%s/%s", a.baseURL, a.token, resp.Result.FilePath), nil
}

func (a *Adapter) ReadFile(ctx context.Context, root, rel string) ([]byte, error) {
	resp, err := a.StreamFile(ctx, root, rel, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewError(errors.ErrCodeInternalError, "failed to read telegram attachment").WithCause(err)
	}
	return data, nil
}

func (a *Adapter) StreamFile(ctx context.Context, root, rel string, rng *backend.Range) (*backend.StreamResponse, error) {
	if err := a.refresh(ctx); err != nil {
		return nil, err
	}
	att, ok := a.find(rel)
	if !ok {
		return nil, errors.NotFound("telegram", rel)
	}
	url, err := a.fileURL(ctx, att.fileID)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.NewError(errors.ErrCodeInternalError, "failed to build file download request").WithCause(err)
	}
	if rng != nil {
		if rng.End >= 0 {
			req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", rng.Start, rng.End))
		} else {
			req.Header.Set("Range", fmt.Sprintf("bytes=%d-", rng.Start))
		}
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, errors.UpstreamError("telegram", "download", 0, err.Error())
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, errors.UpstreamError("telegram", "download", resp.StatusCode, rel)
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
	return errors.NotImplemented("telegram", "write_file")
}

func (a *Adapter) WriteFileStream(ctx context.Context, root, rel string, chunks io.Reader) (int64, error) {
	return 0, errors.NotImplemented("telegram", "write_file_stream")
}

func (a *Adapter) Mkdir(ctx context.Context, root, rel string) error {
	return errors.NotImplemented("telegram", "mkdir")
}

func (a *Adapter) Delete(ctx context.Context, root, rel string) error {
	return errors.NotImplemented("telegram", "delete")
}

func (a *Adapter) StatFile(ctx context.Context, root, rel string) (*types.FileStat, error) {
	if err := a.refresh(ctx); err != nil {
		return nil, err
	}
	att, ok := a.find(rel)
	if !ok {
		return nil, errors.NotFound("telegram", rel)
	}
	return &types.FileStat{Name: att.fileName, Size: att.size, Mtime: att.mtime}, nil
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
	if rel == "" {
		return &types.PathProbe{Exists: true, IsDir: true, Kind: types.KindDir}, nil
	}
	stat, err := a.StatFile(ctx, root, rel)
	if err != nil {
		if errors.IsNotFound(err) {
			return &types.PathProbe{Exists: false}, nil
		}
		return nil, err
	}
	return &types.PathProbe{Exists: true, Kind: types.KindFile, IsDir: stat.IsDir}, nil
}

func (a *Adapter) Move(ctx context.Context, root, src, dst string) error {
	return errors.NotImplemented("telegram", "move")
}

func (a *Adapter) Rename(ctx context.Context, root, src, dst string) error {
	return errors.NotImplemented("telegram", "rename")
}

func (a *Adapter) Copy(ctx context.Context, root, src, dst string, overwrite bool) error {
	return errors.NotImplemented("telegram", "copy")
}
