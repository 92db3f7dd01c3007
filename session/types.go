package session

import (
	"time"
)

const (
	RoleUser  = "user"
	RoleModel = "model"
	RoleTool  = "tool"
)

// ToolResult is the write-once result slot of a ToolCall.
type ToolResult struct {
	OK        bool   `json:"ok"`
	Text      string `json:"text,omitempty"`
	MediaPath string `json:"media_path,omitempty"`
	Code      string `json:"code,omitempty"`
	Message   string `json:"message,omitempty"`
}

// ToolCall records one tool invocation proposed by a model turn.
type ToolCall struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Args   map[string]any `json:"args,omitempty"`
	Result *ToolResult    `json:"result,omitempty"`
}

// Attachment references binary content carried by a turn. Data for small
// inline payloads, Path for files staged on disk.
type Attachment struct {
	Name string `json:"name,omitempty"`
	MIME string `json:"mime_type"`
	Data []byte `json:"data,omitempty"`
	Path string `json:"path,omitempty"`
}

// Turn is one append-only unit of conversation history.
type Turn struct {
	ID          string       `json:"id"`
	Role        string       `json:"role"`
	Text        string       `json:"text,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	// Calls is set on model turns that proposed tool invocations.
	Calls []ToolCall `json:"tool_calls,omitempty"`
	// CallID is set on tool turns and names the proposing call.
	CallID string `json:"tool_call_id,omitempty"`
	// Result is set on tool turns once; it is never rewritten.
	Result *ToolResult `json:"result,omitempty"`
	// ErrorCode marks model turns that surface a failure instead of an
	// answer, keeping history a faithful record of what happened.
	ErrorCode string    `json:"error_code,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Usage accumulates backend token accounting for a session.
type Usage struct {
	PromptTokens int     `json:"prompt_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalTokens  int     `json:"total_tokens"`
	TotalCost    float64 `json:"total_cost"`
}

// Meta is the per-session record kept in the owner profile.
type Meta struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	CreatedAt   time.Time `json:"created_at"`
	LastActive  time.Time `json:"last_active"`
	Instruction string    `json:"instruction,omitempty"`
	Usage       Usage     `json:"usage"`
}

// Info is the listing view of a session.
type Info struct {
	Meta
	Active    bool  `json:"active"`
	TurnCount int   `json:"turn_count"`
	SizeBytes int64 `json:"size_bytes"`
}

type profile struct {
	OwnerID  int64            `json:"owner_id"`
	ActiveID string           `json:"active_session_id"`
	Sessions map[string]*Meta `json:"sessions"`
}
