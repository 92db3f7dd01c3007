// Package gemini implements llm.Client against the Gemini REST API
// (generateContent), plus the Imagen and Veo media endpoints used by the
// generation tools.
package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/IAmFuckingGenius/Gemini-Telegram-UserBot/llm"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client

	mu   sync.Mutex
	keys []string
	cur  int
}

func New(baseURL string, apiKeys []string) *Client {
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 180 * time.Second},
		keys:    apiKeys,
	}
}

func (c *Client) key() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.keys) == 0 {
		return ""
	}
	return c.keys[c.cur%len(c.keys)]
}

// rotateKey advances to the next configured key. Called on quota errors so a
// multi-key deployment keeps going when one key is exhausted.
func (c *Client) rotateKey() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.keys) < 2 {
		return false
	}
	c.cur = (c.cur + 1) % len(c.keys)
	return true
}

type part struct {
	Text             string        `json:"text,omitempty"`
	InlineData       *inlineData   `json:"inline_data,omitempty"`
	FunctionCall     *functionCall `json:"functionCall,omitempty"`
	FunctionResponse *functionResp `json:"functionResponse,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type functionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

type functionResp struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type functionDeclaration struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type toolDecls struct {
	FunctionDeclarations []functionDeclaration `json:"function_declarations"`
}

type generationConfig struct {
	Temperature float64 `json:"temperature"`
}

type generateRequest struct {
	SystemInstruction *content          `json:"system_instruction,omitempty"`
	Contents          []content         `json:"contents"`
	Tools             []toolDecls       `json:"tools,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

func (c *Client) Generate(ctx context.Context, req llm.Request) (llm.Result, error) {
	start := time.Now()

	body := generateRequest{Contents: encodeMessages(req.Messages)}
	if req.System != "" {
		body.SystemInstruction = &content{Parts: []part{{Text: req.System}}}
	}
	if len(req.Tools) > 0 {
		decls := make([]functionDeclaration, len(req.Tools))
		for i, t := range req.Tools {
			decls[i] = functionDeclaration{Name: t.Name, Description: t.Description, Parameters: t.Parameters}
		}
		body.Tools = []toolDecls{{FunctionDeclarations: decls}}
	}
	if req.Temperature > 0 {
		body.GenerationConfig = &generationConfig{Temperature: req.Temperature}
	}

	b, err := json.Marshal(body)
	if err != nil {
		return llm.Result{}, fmt.Errorf("%w: encode request: %v", llm.ErrPermanent, err)
	}

	// One pass over the key ring: quota errors move to the next key,
	// anything else surfaces immediately.
	tries := 1
	c.mu.Lock()
	if n := len(c.keys); n > 1 {
		tries = n
	}
	c.mu.Unlock()

	var lastErr error
	for i := 0; i < tries; i++ {
		raw, status, err := c.post(ctx, fmt.Sprintf("/v1beta/models/%s:generateContent", req.Model), b)
		if err != nil {
			return llm.Result{}, err
		}

		var out generateResponse
		if decodeErr := json.Unmarshal(raw, &out); decodeErr != nil {
			return llm.Result{}, fmt.Errorf("%w: decode response: %v", llm.ErrTransient, decodeErr)
		}

		if status == http.StatusTooManyRequests || quotaExhausted(out.Error) {
			lastErr = httpError(status, out.Error, raw)
			if c.rotateKey() {
				continue
			}
			return llm.Result{}, lastErr
		}
		if status < 200 || status >= 300 {
			return llm.Result{}, httpError(status, out.Error, raw)
		}
		if len(out.Candidates) == 0 {
			return llm.Result{}, fmt.Errorf("%w: gemini: empty candidates", llm.ErrTransient)
		}

		res := llm.Result{
			Usage: llm.Usage{
				InputTokens:  out.UsageMetadata.PromptTokenCount,
				OutputTokens: out.UsageMetadata.CandidatesTokenCount,
				TotalTokens:  out.UsageMetadata.TotalTokenCount,
			},
			Duration: time.Since(start),
		}
		var texts []string
		for _, p := range out.Candidates[0].Content.Parts {
			if p.Text != "" {
				texts = append(texts, p.Text)
			}
			if p.FunctionCall != nil {
				// Gemini does not issue call IDs; the function name
				// doubles as the ID so results can be routed back.
				res.Calls = append(res.Calls, llm.ToolCall{
					ID:   p.FunctionCall.Name,
					Name: p.FunctionCall.Name,
					Args: p.FunctionCall.Args,
				})
			}
		}
		res.Text = strings.Join(texts, "\n")
		return res, nil
	}
	return llm.Result{}, lastErr
}

func (c *Client) post(ctx context.Context, path string, body []byte) ([]byte, int, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", llm.ErrPermanent, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.key())

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}
		return nil, 0, fmt.Errorf("%w: %v", llm.ErrTransient, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: read response: %v", llm.ErrTransient, err)
	}
	return raw, resp.StatusCode, nil
}

func quotaExhausted(e *apiError) bool {
	return e != nil && e.Status == "RESOURCE_EXHAUSTED"
}

func httpError(status int, e *apiError, raw []byte) error {
	kind := llm.ErrPermanent
	if status == http.StatusTooManyRequests || status >= 500 {
		kind = llm.ErrTransient
	}
	if e != nil && e.Message != "" {
		return fmt.Errorf("%w: gemini http %d: %s", kind, status, e.Message)
	}
	return fmt.Errorf("%w: gemini http %d: %s", kind, status, string(raw))
}

func encodeMessages(msgs []llm.Message) []content {
	out := make([]content, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case llm.RoleModel:
			ct := content{Role: "model"}
			if m.Content != "" {
				ct.Parts = append(ct.Parts, part{Text: m.Content})
			}
			for _, call := range m.Calls {
				ct.Parts = append(ct.Parts, part{FunctionCall: &functionCall{Name: call.Name, Args: call.Args}})
			}
			out = append(out, ct)
		case llm.RoleTool:
			var resp map[string]any
			if err := json.Unmarshal([]byte(m.Content), &resp); err != nil {
				resp = map[string]any{"output": m.Content}
			}
			out = append(out, content{
				Role:  "user",
				Parts: []part{{FunctionResponse: &functionResp{Name: m.CallID, Response: resp}}},
			})
		default:
			ct := content{Role: "user"}
			if m.Content != "" {
				ct.Parts = append(ct.Parts, part{Text: m.Content})
			}
			for _, blob := range m.Media {
				ct.Parts = append(ct.Parts, part{InlineData: &inlineData{
					MIMEType: blob.MIME,
					Data:     base64.StdEncoding.EncodeToString(blob.Data),
				}})
			}
			out = append(out, ct)
		}
	}
	return out
}
