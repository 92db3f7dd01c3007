// Package telegram is the transport: it long-polls the Bot API, routes
// messages and commands into core, and renders replies back into chats.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type API struct {
	http    *http.Client
	baseURL string
	token   string
}

func NewAPI(httpClient *http.Client, baseURL, token string) *API {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}
	return &API{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}
}

type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

type Message struct {
	MessageID int64       `json:"message_id"`
	Date      int64       `json:"date,omitempty"`
	Chat      *Chat       `json:"chat,omitempty"`
	From      *User       `json:"from,omitempty"`
	Text      string      `json:"text,omitempty"`
	Caption   string      `json:"caption,omitempty"`
	Document  *Document   `json:"document,omitempty"`
	Photo     []PhotoSize `json:"photo,omitempty"`
	Voice     *Document   `json:"voice,omitempty"`
}

type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type,omitempty"`
}

type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot,omitempty"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
}

type Document struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	FileSize int64  `json:"file_size,omitempty"`
}

type PhotoSize struct {
	FileID   string `json:"file_id"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	FileSize int64  `json:"file_size,omitempty"`
}

type File struct {
	FileID   string `json:"file_id"`
	FileSize int64  `json:"file_size,omitempty"`
	FilePath string `json:"file_path,omitempty"`
}

type okResponse struct {
	OK          bool            `json:"ok"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Description string          `json:"description,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
}

// RequestError is a non-ok Bot API response.
type RequestError struct {
	StatusCode  int
	ErrorCode   int
	Description string
}

func (e *RequestError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("telegram http %d: %s", e.StatusCode, e.Description)
	}
	return fmt.Sprintf("telegram http %d", e.StatusCode)
}

func (a *API) call(ctx context.Context, method string, body any, result any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/bot%s/%s", a.baseURL, a.token, method), reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	raw, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()

	var out okResponse
	_ = json.Unmarshal(raw, &out)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !out.OK {
		return &RequestError{StatusCode: resp.StatusCode, ErrorCode: out.ErrorCode, Description: out.Description}
	}
	if result != nil {
		return json.Unmarshal(out.Result, result)
	}
	return nil
}

func (a *API) GetMe(ctx context.Context) (User, error) {
	var me User
	err := a.call(ctx, "getMe", nil, &me)
	return me, err
}

// GetUpdates long-polls for new updates and returns the next offset.
func (a *API) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, int64, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout+5*time.Second)
	defer cancel()

	var updates []Update
	body := map[string]any{"timeout": int(timeout.Seconds())}
	if offset > 0 {
		body["offset"] = offset
	}
	if err := a.call(reqCtx, "getUpdates", body, &updates); err != nil {
		return nil, offset, err
	}
	next := offset
	for _, u := range updates {
		if u.UpdateID >= next {
			next = u.UpdateID + 1
		}
	}
	return updates, next, nil
}

// IsPollTimeout reports whether err is the expected end of an empty
// long-poll cycle rather than a real failure.
func IsPollTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "context deadline exceeded") ||
		strings.Contains(msg, "client.timeout exceeded")
}

const maxMessageLen = 3500

// SendMessage splits long text into chunks the Bot API accepts.
func (a *API) SendMessage(ctx context.Context, chatID int64, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		text = "(empty)"
	}
	for len(text) > 0 {
		chunk := text
		if len(chunk) > maxMessageLen {
			chunk = splitBoundary(chunk, maxMessageLen)
		}
		body := map[string]any{
			"chat_id":                  chatID,
			"text":                     chunk,
			"disable_web_page_preview": true,
		}
		if err := a.call(ctx, "sendMessage", body, nil); err != nil {
			return err
		}
		text = strings.TrimSpace(text[len(chunk):])
	}
	return nil
}

// splitBoundary cuts at the last newline (or space) before max so chunks do
// not break mid-word, and never mid-rune.
func splitBoundary(text string, max int) string {
	cut := max
	for cut > 0 && !isRuneStart(text[cut]) {
		cut--
	}
	chunk := text[:cut]
	if i := strings.LastIndexByte(chunk, '\n'); i > max/2 {
		return chunk[:i]
	}
	if i := strings.LastIndexByte(chunk, ' '); i > max/2 {
		return chunk[:i]
	}
	return chunk
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }

func (a *API) SendChatAction(ctx context.Context, chatID int64, action string) error {
	return a.call(ctx, "sendChatAction", map[string]any{"chat_id": chatID, "action": action}, nil)
}

func (a *API) GetFile(ctx context.Context, fileID string) (File, error) {
	var f File
	err := a.call(ctx, "getFile", map[string]any{"file_id": fileID}, &f)
	if err == nil && f.FilePath == "" {
		return f, fmt.Errorf("telegram getFile: missing file_path")
	}
	return f, err
}

// DownloadFile fetches a served file into dstPath, refusing anything over
// maxBytes.
func (a *API) DownloadFile(ctx context.Context, filePath, dstPath string, maxBytes int64) (int64, error) {
	if maxBytes <= 0 {
		maxBytes = 20 * 1024 * 1024
	}
	u := fmt.Sprintf("%s/file/bot%s/%s", a.baseURL, a.token, strings.TrimLeft(filePath, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, err
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("telegram download http %d", resp.StatusCode)
	}

	f, err := os.OpenFile(dstPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	n, err := io.Copy(f, io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return n, err
	}
	if n > maxBytes {
		os.Remove(dstPath)
		return n, fmt.Errorf("telegram file too large (>%d bytes)", maxBytes)
	}
	return n, f.Close()
}

// SendFile uploads a local file, picking sendPhoto/sendVideo/sendAudio by
// MIME type and falling back to sendDocument.
func (a *API) SendFile(ctx context.Context, chatID int64, filePath, mimeType, caption string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return err
	}
	if st.IsDir() {
		return fmt.Errorf("path is a directory: %s", filePath)
	}

	method, field := "sendDocument", "document"
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		method, field = "sendPhoto", "photo"
	case strings.HasPrefix(mimeType, "video/"):
		method, field = "sendVideo", "video"
	case strings.HasPrefix(mimeType, "audio/"):
		method, field = "sendAudio", "audio"
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		defer pw.Close()
		defer mw.Close()
		_ = mw.WriteField("chat_id", strconv.FormatInt(chatID, 10))
		if caption = strings.TrimSpace(caption); caption != "" {
			_ = mw.WriteField("caption", caption)
		}
		part, err := mw.CreateFormFile(field, filepath.Base(filePath))
		if err != nil {
			_ = pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, f); err != nil {
			_ = pw.CloseWithError(err)
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/bot%s/%s", a.baseURL, a.token, method), pr)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	raw, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	var out okResponse
	_ = json.Unmarshal(raw, &out)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !out.OK {
		return &RequestError{StatusCode: resp.StatusCode, ErrorCode: out.ErrorCode, Description: out.Description}
	}
	return nil
}
