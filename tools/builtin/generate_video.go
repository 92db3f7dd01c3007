package builtin

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/IAmFuckingGenius/Gemini-Telegram-UserBot/router"
	"github.com/IAmFuckingGenius/Gemini-Telegram-UserBot/tools"
)

type videoBackend interface {
	GenerateVideo(ctx context.Context, model, prompt string) (string, error)
}

// GenerateVideoTool drives the Veo long-running endpoint. Generation is slow
// and expensive, so deployments enable it explicitly.
type GenerateVideoTool struct {
	CacheDir string
	Backend  videoBackend
	Models   modelSource
	HTTP     *http.Client
}

func NewGenerateVideoTool(cacheDir string, backend videoBackend, models modelSource) *GenerateVideoTool {
	return &GenerateVideoTool{
		CacheDir: cacheDir,
		Backend:  backend,
		Models:   models,
		HTTP:     &http.Client{Timeout: 5 * time.Minute},
	}
}

func (t *GenerateVideoTool) Name() string { return "generate_video" }

func (t *GenerateVideoTool) Description() string {
	return "Generate a short video from a text prompt and send it as a file."
}

func (t *GenerateVideoTool) Schema() tools.Schema {
	return tools.Schema{Fields: []tools.Field{
		{Name: "prompt", Type: tools.TypeString, Description: "Description of the video to generate.", Required: true},
	}}
}

func (t *GenerateVideoTool) Execute(ctx context.Context, args map[string]any) (tools.Result, error) {
	prompt, _ := args["prompt"].(string)
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return tools.Result{}, fmt.Errorf("empty prompt")
	}

	model, err := t.Models.Get(router.CapabilityVideo)
	if err != nil {
		return tools.Result{}, err
	}
	uri, err := t.Backend.GenerateVideo(ctx, model, prompt)
	if err != nil {
		return tools.Result{}, err
	}

	path, err := t.download(ctx, uri)
	if err != nil {
		return tools.Result{}, err
	}
	return tools.Result{
		Text:      fmt.Sprintf("video generated with %s", model),
		MediaPath: path,
		MediaMIME: "video/mp4",
	}, nil
}

func (t *GenerateVideoTool) download(ctx context.Context, uri string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return "", err
	}
	resp, err := t.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("video download status=%d", resp.StatusCode)
	}

	if err := os.MkdirAll(t.CacheDir, 0o700); err != nil {
		return "", err
	}
	path := filepath.Join(t.CacheDir, uuid.NewString()+".mp4")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}
