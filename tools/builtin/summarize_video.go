package builtin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/IAmFuckingGenius/Gemini-Telegram-UserBot/llm"
	"github.com/IAmFuckingGenius/Gemini-Telegram-UserBot/router"
	"github.com/IAmFuckingGenius/Gemini-Telegram-UserBot/tools"
)

// modelSource yields the currently bound model for a capability. Satisfied
// by *router.Router.
type modelSource interface {
	Get(capability string) (string, error)
}

// SummarizeVideoTool pulls auto-generated subtitles with yt-dlp and asks the
// chat model to summarize them.
type SummarizeVideoTool struct {
	Binary        string
	CacheDir      string
	Timeout       time.Duration
	MaxTranscript int

	Client llm.Client
	Models modelSource

	run func(ctx context.Context, name string, args ...string) ([]byte, error)
}

func NewSummarizeVideoTool(cacheDir string, client llm.Client, models modelSource) *SummarizeVideoTool {
	return &SummarizeVideoTool{
		Binary:        "yt-dlp",
		CacheDir:      cacheDir,
		Timeout:       2 * time.Minute,
		MaxTranscript: 120_000,
		Client:        client,
		Models:        models,
		run:           runCommand,
	}
}

func (t *SummarizeVideoTool) Name() string { return "summarize_video" }

func (t *SummarizeVideoTool) Description() string {
	return "Summarize a video from a URL using its subtitles or transcript."
}

func (t *SummarizeVideoTool) Schema() tools.Schema {
	return tools.Schema{Fields: []tools.Field{
		{Name: "url", Type: tools.TypeString, Description: "Video URL to summarize.", Required: true},
		{Name: "question", Type: tools.TypeString, Description: "Optional question to answer about the video."},
	}}
}

func (t *SummarizeVideoTool) Execute(ctx context.Context, args map[string]any) (tools.Result, error) {
	rawURL, _ := args["url"].(string)
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return tools.Result{}, fmt.Errorf("empty url")
	}
	question, _ := args["question"].(string)

	transcript, err := t.fetchTranscript(ctx, rawURL)
	if err != nil {
		return tools.Result{}, err
	}
	if len(transcript) > t.MaxTranscript {
		transcript = transcript[:t.MaxTranscript]
	}

	model, err := t.Models.Get(router.CapabilityChat)
	if err != nil {
		return tools.Result{}, err
	}

	prompt := "Summarize the following video transcript concisely."
	if strings.TrimSpace(question) != "" {
		prompt = fmt.Sprintf("Answer this question about the video transcript below: %s", question)
	}
	res, err := t.Client.Generate(ctx, llm.Request{
		Model: model,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: fmt.Sprintf("%s\n\nTranscript:\n%s", prompt, transcript)},
		},
	})
	if err != nil {
		return tools.Result{}, err
	}
	return tools.Result{Text: res.Text}, nil
}

func (t *SummarizeVideoTool) fetchTranscript(ctx context.Context, rawURL string) (string, error) {
	dir := filepath.Join(t.CacheDir, uuid.NewString())
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	defer os.RemoveAll(dir)

	runCtx, cancel := context.WithTimeout(ctx, t.Timeout)
	defer cancel()
	out, err := t.run(runCtx, t.Binary,
		"--skip-download",
		"--write-auto-subs", "--write-subs",
		"--sub-langs", "en.*,ru.*",
		"--sub-format", "vtt",
		"-o", filepath.Join(dir, "subs"),
		rawURL,
	)
	if err != nil {
		return "", fmt.Errorf("yt-dlp failed: %w: %s", err, tail(out, 512))
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".vtt") {
			raw, err := os.ReadFile(filepath.Join(dir, e.Name()))
			if err != nil {
				return "", err
			}
			return cleanVTT(string(raw)), nil
		}
	}
	return "", fmt.Errorf("no subtitles available for this video")
}

var (
	vttTimingRe = regexp.MustCompile(`^\d{2}:\d{2}.*-->.*$`)
	vttTagRe    = regexp.MustCompile(`<[^>]+>`)
)

// cleanVTT strips WebVTT headers, cue timings, inline tags and adjacent
// duplicate lines, leaving plain transcript text.
func cleanVTT(raw string) string {
	var out []string
	prev := ""
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line == "WEBVTT" ||
			strings.HasPrefix(line, "Kind:") || strings.HasPrefix(line, "Language:") ||
			vttTimingRe.MatchString(line) {
			continue
		}
		line = vttTagRe.ReplaceAllString(line, "")
		if line == "" || line == prev {
			continue
		}
		out = append(out, line)
		prev = line
	}
	return strings.Join(out, "\n")
}
