package tools

import "context"

// Tool is one capability the model may invoke. Execute must tolerate being
// retried once for the same arguments; the orchestrator offers no
// exactly-once guarantee.
type Tool interface {
	Name() string
	Description() string
	Schema() Schema
	Execute(ctx context.Context, args map[string]any) (Result, error)
}

// Result is a successful tool payload: text, a produced media file, or both.
type Result struct {
	Text      string
	MediaPath string
	MediaMIME string
}
