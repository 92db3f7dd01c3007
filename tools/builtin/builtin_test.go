package builtin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/IAmFuckingGenius/Gemini-Telegram-UserBot/llm"
	"github.com/IAmFuckingGenius/Gemini-Telegram-UserBot/providers/gemini"
)

type fixedModels map[string]string

func (m fixedModels) Get(capability string) (string, error) {
	return m[capability], nil
}

func TestWebSearchParsesResults(t *testing.T) {
	t.Parallel()
	page := `<html><body>
		<a class="result__a" href="https://go.dev/">The Go Programming Language</a>
		<a class="result__a" href="/l/?uddg=https%3A%2F%2Fgolang.org%2Fdoc%2F">Documentation</a>
		<a class="other" href="https://example.com/">not a result</a>
	</body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "golang" {
			t.Errorf("query = %q", got)
		}
		w.Write([]byte(page))
	}))
	defer srv.Close()

	tool := NewWebSearchTool(srv.URL, 0, 5)
	res, err := tool.Execute(context.Background(), map[string]any{"query": "golang"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	var out struct {
		ResultCount int `json:"result_count"`
		Results     []webSearchResult
	}
	if err := json.Unmarshal([]byte(res.Text), &out); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if out.ResultCount != 2 {
		t.Fatalf("result_count = %d", out.ResultCount)
	}
	if out.Results[1].URL != "https://golang.org/doc/" {
		t.Fatalf("redirect not unwrapped: %q", out.Results[1].URL)
	}
}

func TestWebSearchMaxResults(t *testing.T) {
	t.Parallel()
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i < 10; i++ {
		b.WriteString(`<a class="result__a" href="https://example.com/">Result</a>`)
	}
	b.WriteString("</body></html>")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(b.String()))
	}))
	defer srv.Close()

	tool := NewWebSearchTool(srv.URL, 0, 5)
	res, err := tool.Execute(context.Background(), map[string]any{"query": "x", "max_results": float64(3)})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	var out struct {
		ResultCount int `json:"result_count"`
	}
	if err := json.Unmarshal([]byte(res.Text), &out); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if out.ResultCount != 3 {
		t.Fatalf("result_count = %d, want 3", out.ResultCount)
	}
}

func TestDownloadMediaProducesFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	tool := NewDownloadMediaTool(dir, 0)
	tool.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		// yt-dlp writes into the -o template's directory.
		var outDir string
		for i, a := range args {
			if a == "-o" && i+1 < len(args) {
				outDir = filepath.Dir(args[i+1])
			}
		}
		return nil, os.WriteFile(filepath.Join(outDir, "clip.mp4"), []byte("video"), 0o600)
	}

	res, err := tool.Execute(context.Background(), map[string]any{"url": "https://youtu.be/abc"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.MediaPath == "" || filepath.Base(res.MediaPath) != "clip.mp4" {
		t.Fatalf("media path = %q", res.MediaPath)
	}
	if res.MediaMIME != "video/mp4" {
		t.Fatalf("mime = %q", res.MediaMIME)
	}
}

func TestDownloadMediaRejectsBadURL(t *testing.T) {
	t.Parallel()
	tool := NewDownloadMediaTool(t.TempDir(), 0)
	if _, err := tool.Execute(context.Background(), map[string]any{"url": "file:///etc/passwd"}); err == nil {
		t.Fatal("expected scheme rejection")
	}
}

type fakeClient struct {
	lastReq llm.Request
	text    string
}

func (c *fakeClient) Generate(ctx context.Context, req llm.Request) (llm.Result, error) {
	c.lastReq = req
	return llm.Result{Text: c.text}, nil
}

func TestSummarizeVideo(t *testing.T) {
	t.Parallel()
	client := &fakeClient{text: "a short summary"}
	tool := NewSummarizeVideoTool(t.TempDir(), client, fixedModels{"chat": "gemini-2.5-pro"})
	tool.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		var outBase string
		for i, a := range args {
			if a == "-o" && i+1 < len(args) {
				outBase = args[i+1]
			}
		}
		vtt := "WEBVTT\nKind: captions\n\n00:00:00.000 --> 00:00:02.000\nhello <c>world</c>\n\n00:00:02.000 --> 00:00:04.000\nhello world\nsecond line\n"
		return nil, os.WriteFile(outBase+".en.vtt", []byte(vtt), 0o600)
	}

	res, err := tool.Execute(context.Background(), map[string]any{"url": "https://youtu.be/abc"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Text != "a short summary" {
		t.Fatalf("text = %q", res.Text)
	}
	if client.lastReq.Model != "gemini-2.5-pro" {
		t.Fatalf("model = %q", client.lastReq.Model)
	}
	prompt := client.lastReq.Messages[0].Content
	if !strings.Contains(prompt, "hello world") || !strings.Contains(prompt, "second line") {
		t.Fatalf("transcript missing from prompt: %q", prompt)
	}
	if strings.Contains(prompt, "-->") || strings.Contains(prompt, "<c>") {
		t.Fatalf("cue markup leaked into prompt: %q", prompt)
	}
}

func TestCleanVTTDeduplicates(t *testing.T) {
	t.Parallel()
	raw := "WEBVTT\n\nline one\nline one\nline two\n"
	got := cleanVTT(raw)
	if got != "line one\nline two" {
		t.Fatalf("cleanVTT = %q", got)
	}
}

type fakeImageBackend struct {
	model, prompt string
}

func (b *fakeImageBackend) GenerateImage(ctx context.Context, model, prompt string) (gemini.Image, error) {
	b.model, b.prompt = model, prompt
	return gemini.Image{Data: []byte("png-bytes"), MIME: "image/png"}, nil
}

func TestGenerateImageWritesFile(t *testing.T) {
	t.Parallel()
	backend := &fakeImageBackend{}
	tool := NewGenerateImageTool(t.TempDir(), backend, fixedModels{"image": "imagen-4.0-generate-preview-06-06"})

	res, err := tool.Execute(context.Background(), map[string]any{"prompt": "a red fox"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if backend.model != "imagen-4.0-generate-preview-06-06" || backend.prompt != "a red fox" {
		t.Fatalf("backend call = %q %q", backend.model, backend.prompt)
	}
	data, err := os.ReadFile(res.MediaPath)
	if err != nil {
		t.Fatalf("read media: %v", err)
	}
	if string(data) != "png-bytes" || res.MediaMIME != "image/png" {
		t.Fatalf("media = %q %q", data, res.MediaMIME)
	}
}
