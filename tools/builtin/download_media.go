package builtin

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/IAmFuckingGenius/Gemini-Telegram-UserBot/tools"
)

// DownloadMediaTool fetches audio or video from a URL with yt-dlp and hands
// the resulting file back as a media outcome.
type DownloadMediaTool struct {
	Binary   string
	CacheDir string
	Timeout  time.Duration
	MaxBytes int64

	// run is swappable for tests.
	run func(ctx context.Context, name string, args ...string) ([]byte, error)
}

func NewDownloadMediaTool(cacheDir string, timeout time.Duration) *DownloadMediaTool {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &DownloadMediaTool{
		Binary:   "yt-dlp",
		CacheDir: cacheDir,
		Timeout:  timeout,
		MaxBytes: 1 << 31,
		run:      runCommand,
	}
}

func (t *DownloadMediaTool) Name() string { return "download_media" }

func (t *DownloadMediaTool) Description() string {
	return "Download a video or audio track from a URL (YouTube and most media sites) and send it as a file."
}

func (t *DownloadMediaTool) Schema() tools.Schema {
	return tools.Schema{Fields: []tools.Field{
		{Name: "url", Type: tools.TypeString, Description: "Source URL to download from.", Required: true},
		{Name: "audio_only", Type: tools.TypeBoolean, Description: "Extract audio only (mp3)."},
	}}
}

func (t *DownloadMediaTool) Execute(ctx context.Context, args map[string]any) (tools.Result, error) {
	rawURL, _ := args["url"].(string)
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return tools.Result{}, fmt.Errorf("empty url")
	}
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return tools.Result{}, fmt.Errorf("unsupported url scheme")
	}
	audioOnly, _ := args["audio_only"].(bool)

	dir := filepath.Join(t.CacheDir, uuid.NewString())
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return tools.Result{}, err
	}

	outTemplate := filepath.Join(dir, "%(title).120B.%(ext)s")
	cmdArgs := []string{
		"--no-playlist",
		"--max-filesize", fmt.Sprintf("%d", t.MaxBytes),
		"-o", outTemplate,
	}
	if audioOnly {
		cmdArgs = append(cmdArgs, "-x", "--audio-format", "mp3")
	} else {
		cmdArgs = append(cmdArgs, "-f", "bv*[ext=mp4]+ba[ext=m4a]/b[ext=mp4]/b")
	}
	cmdArgs = append(cmdArgs, rawURL)

	runCtx, cancel := context.WithTimeout(ctx, t.Timeout)
	defer cancel()
	if out, err := t.run(runCtx, t.Binary, cmdArgs...); err != nil {
		return tools.Result{}, fmt.Errorf("yt-dlp failed: %w: %s", err, tail(out, 512))
	}

	path, err := newestFile(dir)
	if err != nil {
		return tools.Result{}, err
	}
	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return tools.Result{
		Text:      fmt.Sprintf("downloaded %s", filepath.Base(path)),
		MediaPath: path,
		MediaMIME: mimeType,
	}, nil
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()
	return buf.Bytes(), err
}

func newestFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	var best string
	var bestTime time.Time
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if best == "" || info.ModTime().After(bestTime) {
			best = filepath.Join(dir, e.Name())
			bestTime = info.ModTime()
		}
	}
	if best == "" {
		return "", fmt.Errorf("download produced no file")
	}
	return best, nil
}

func tail(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
