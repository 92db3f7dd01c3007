package builtin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/IAmFuckingGenius/Gemini-Telegram-UserBot/providers/gemini"
	"github.com/IAmFuckingGenius/Gemini-Telegram-UserBot/router"
	"github.com/IAmFuckingGenius/Gemini-Telegram-UserBot/tools"
)

// imageBackend is the slice of the Gemini client the image tool needs.
type imageBackend interface {
	GenerateImage(ctx context.Context, model, prompt string) (gemini.Image, error)
}

type GenerateImageTool struct {
	CacheDir string
	Backend  imageBackend
	Models   modelSource
}

func NewGenerateImageTool(cacheDir string, backend imageBackend, models modelSource) *GenerateImageTool {
	return &GenerateImageTool{CacheDir: cacheDir, Backend: backend, Models: models}
}

func (t *GenerateImageTool) Name() string { return "generate_image" }

func (t *GenerateImageTool) Description() string {
	return "Generate an image from a text prompt and send it as a photo."
}

func (t *GenerateImageTool) Schema() tools.Schema {
	return tools.Schema{Fields: []tools.Field{
		{Name: "prompt", Type: tools.TypeString, Description: "Description of the image to generate.", Required: true},
	}}
}

func (t *GenerateImageTool) Execute(ctx context.Context, args map[string]any) (tools.Result, error) {
	prompt, _ := args["prompt"].(string)
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return tools.Result{}, fmt.Errorf("empty prompt")
	}

	model, err := t.Models.Get(router.CapabilityImage)
	if err != nil {
		return tools.Result{}, err
	}
	img, err := t.Backend.GenerateImage(ctx, model, prompt)
	if err != nil {
		return tools.Result{}, err
	}

	ext := ".png"
	if img.MIME == "image/jpeg" {
		ext = ".jpg"
	}
	if err := os.MkdirAll(t.CacheDir, 0o700); err != nil {
		return tools.Result{}, err
	}
	path := filepath.Join(t.CacheDir, uuid.NewString()+ext)
	if err := os.WriteFile(path, img.Data, 0o600); err != nil {
		return tools.Result{}, err
	}
	return tools.Result{
		Text:      fmt.Sprintf("image generated with %s", model),
		MediaPath: path,
		MediaMIME: img.MIME,
	}, nil
}
