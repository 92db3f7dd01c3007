// Package tools declares the agent's capabilities and dispatches validated
// invocations to them. Tool failures never escape Execute as errors; they
// come back as structured outcomes the model can read and react to.
package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/IAmFuckingGenius/Gemini-Telegram-UserBot/llm"
)

var ErrNotFound = errors.New("tools: tool not found")

const (
	FailureNotFound        = "tool_not_found"
	FailureSchemaViolation = "schema_violation"
	FailureExecution       = "tool_execution_failure"
)

// Outcome is the registry's answer to one invocation. OK outcomes carry the
// payload; failed ones carry a code and a safe message.
type Outcome struct {
	OK        bool   `json:"ok"`
	Text      string `json:"text,omitempty"`
	MediaPath string `json:"media_path,omitempty"`
	MediaMIME string `json:"media_mime,omitempty"`
	Code      string `json:"code,omitempty"`
	Message   string `json:"message,omitempty"`
}

type Registry struct {
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

func (r *Registry) Register(tool Tool) {
	r.tools[tool.Name()] = tool
}

func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

func (r *Registry) All() []Tool {
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Declarations renders the registered tools as backend schemas, skipping any
// name in disallowed (per-owner permission filtering).
func (r *Registry) Declarations(disallowed map[string]bool) []llm.ToolSchema {
	all := r.All()
	out := make([]llm.ToolSchema, 0, len(all))
	for _, t := range all {
		if disallowed[t.Name()] {
			continue
		}
		out = append(out, llm.ToolSchema{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Schema().JSON(),
		})
	}
	return out
}

// Execute validates args against the tool's schema and runs it. Panics and
// errors are folded into the outcome so a misbehaving tool cannot abort the
// conversation loop.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (outcome Outcome) {
	tool, ok := r.tools[name]
	if !ok {
		return Outcome{Code: FailureNotFound, Message: fmt.Sprintf("tool %q is not registered", name)}
	}
	if err := tool.Schema().Validate(args); err != nil {
		return Outcome{Code: FailureSchemaViolation, Message: err.Error()}
	}

	defer func() {
		if rec := recover(); rec != nil {
			outcome = Outcome{Code: FailureExecution, Message: fmt.Sprintf("tool %q panicked: %v", name, rec)}
		}
	}()

	result, err := tool.Execute(ctx, args)
	if err != nil {
		return Outcome{Code: FailureExecution, Message: err.Error()}
	}
	return Outcome{
		OK:        true,
		Text:      result.Text,
		MediaPath: result.MediaPath,
		MediaMIME: result.MediaMIME,
	}
}
