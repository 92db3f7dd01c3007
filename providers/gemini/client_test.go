package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/IAmFuckingGenius/Gemini-Telegram-UserBot/llm"
)

func TestGenerateText(t *testing.T) {
	t.Parallel()
	var mu sync.Mutex
	var gotBody generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/models/gemini-2.5-pro:generateContent" {
			t.Errorf("path = %s", r.URL.Path)
		}
		mu.Lock()
		err := json.NewDecoder(r.Body).Decode(&gotBody)
		mu.Unlock()
		if err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"role": "model", "parts": []map[string]any{{"text": "pong"}}}},
			},
			"usageMetadata": map[string]any{"promptTokenCount": 7, "candidatesTokenCount": 3, "totalTokenCount": 10},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, []string{"k1"})
	res, err := c.Generate(context.Background(), llm.Request{
		Model:  "gemini-2.5-pro",
		System: "be brief",
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: "ping"},
		},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Text != "pong" {
		t.Fatalf("text = %q", res.Text)
	}
	if res.Usage.TotalTokens != 10 || res.Usage.InputTokens != 7 {
		t.Fatalf("usage = %+v", res.Usage)
	}
	mu.Lock()
	defer mu.Unlock()
	if gotBody.SystemInstruction == nil || gotBody.SystemInstruction.Parts[0].Text != "be brief" {
		t.Fatalf("system instruction = %+v", gotBody.SystemInstruction)
	}
	if len(gotBody.Contents) != 1 || gotBody.Contents[0].Role != "user" {
		t.Fatalf("contents = %+v", gotBody.Contents)
	}
}

func TestGenerateFunctionCall(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"role": "model", "parts": []map[string]any{
					{"functionCall": map[string]any{"name": "web_search", "args": map[string]any{"query": "go"}}},
				}}},
			},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, []string{"k1"})
	res, err := c.Generate(context.Background(), llm.Request{Model: "gemini-2.5-pro"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(res.Calls) != 1 {
		t.Fatalf("calls = %+v", res.Calls)
	}
	call := res.Calls[0]
	if call.Name != "web_search" || call.ID != "web_search" {
		t.Fatalf("call = %+v", call)
	}
	if call.Args["query"] != "go" {
		t.Fatalf("args = %+v", call.Args)
	}
}

func TestGenerateRotatesKeyOnQuota(t *testing.T) {
	t.Parallel()
	var mu sync.Mutex
	var keys []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		keys = append(keys, r.Header.Get("x-goog-api-key"))
		n := len(keys)
		mu.Unlock()
		if n == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"code": 429, "status": "RESOURCE_EXHAUSTED", "message": "quota"}})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]any{{"text": "ok"}}}},
			},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, []string{"k1", "k2"})
	res, err := c.Generate(context.Background(), llm.Request{Model: "gemini-2.5-pro"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Text != "ok" {
		t.Fatalf("text = %q", res.Text)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(keys) != 2 || keys[0] != "k1" || keys[1] != "k2" {
		t.Fatalf("keys used = %v", keys)
	}
}

func TestGenerateErrorClassification(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name      string
		status    int
		transient bool
	}{
		{"bad_request", http.StatusBadRequest, false},
		{"unauthorized", http.StatusUnauthorized, false},
		{"server_error", http.StatusInternalServerError, true},
		{"unavailable", http.StatusServiceUnavailable, true},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"code": tc.status, "message": "nope"}})
			}))
			defer srv.Close()

			c := New(srv.URL, []string{"k1"})
			_, err := c.Generate(context.Background(), llm.Request{Model: "gemini-2.5-pro"})
			if err == nil {
				t.Fatal("expected error")
			}
			if llm.IsTransient(err) != tc.transient {
				t.Fatalf("IsTransient = %v for status %d: %v", llm.IsTransient(err), tc.status, err)
			}
			if llm.IsPermanent(err) == tc.transient {
				t.Fatalf("IsPermanent = %v for status %d", llm.IsPermanent(err), tc.status)
			}
		})
	}
}

func TestEncodeMessagesToolResult(t *testing.T) {
	t.Parallel()
	msgs := []llm.Message{
		{Role: llm.RoleUser, Content: "search go"},
		{Role: llm.RoleModel, Calls: []llm.ToolCall{{ID: "web_search", Name: "web_search", Args: map[string]any{"query": "go"}}}},
		{Role: llm.RoleTool, CallID: "web_search", Content: `{"ok":true,"text":"golang.org"}`},
	}
	contents := encodeMessages(msgs)
	if len(contents) != 3 {
		t.Fatalf("contents = %d", len(contents))
	}
	if contents[1].Role != "model" || contents[1].Parts[0].FunctionCall == nil {
		t.Fatalf("model content = %+v", contents[1])
	}
	fr := contents[2].Parts[0].FunctionResponse
	if contents[2].Role != "user" || fr == nil || fr.Name != "web_search" {
		t.Fatalf("tool content = %+v", contents[2])
	}
	if fr.Response["text"] != "golang.org" {
		t.Fatalf("response = %+v", fr.Response)
	}
}

func TestGenerateImage(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/models/imagen-4.0-generate-preview-06-06:predict" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"predictions": []map[string]any{
				{"bytesBase64Encoded": "aGVsbG8=", "mimeType": "image/png"},
			},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, []string{"k1"})
	img, err := c.GenerateImage(context.Background(), "imagen-4.0-generate-preview-06-06", "a cat")
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if string(img.Data) != "hello" || img.MIME != "image/png" {
		t.Fatalf("image = %q %q", img.Data, img.MIME)
	}
}
