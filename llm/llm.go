// Package llm defines the boundary to the generative backend. The
// orchestrator only ever talks to a Client; concrete providers live under
// providers/.
package llm

import (
	"context"
	"encoding/json"
	"time"
)

const (
	RoleUser  = "user"
	RoleModel = "model"
	RoleTool  = "tool"
)

// Message is one unit of replayed conversation context.
type Message struct {
	Role    string     `json:"role"`
	Content string     `json:"content"`
	Calls   []ToolCall `json:"tool_calls,omitempty"`
	// CallID links a tool-role message back to the call it answers.
	CallID string `json:"tool_call_id,omitempty"`
	Media  []Blob `json:"media,omitempty"`
}

// Blob carries inline binary content (images, documents) attached to a message.
type Blob struct {
	MIME string `json:"mime_type"`
	Data []byte `json:"data"`
	Name string `json:"name,omitempty"`
}

// ToolCall is a backend request to invoke a declared tool.
type ToolCall struct {
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// ToolSchema declares one tool to the backend.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

type Request struct {
	Model       string
	System      string
	Messages    []Message
	Tools       []ToolSchema
	Temperature float64
}

// Result is either a final text answer (Text set, no Calls) or one or more
// tool-call requests.
type Result struct {
	Text     string
	Calls    []ToolCall
	Usage    Usage
	Duration time.Duration
}

type Client interface {
	Generate(ctx context.Context, req Request) (Result, error)
}
