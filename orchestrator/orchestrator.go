// Package orchestrator drives the conversation core: append the user turn,
// snapshot the model binding, replay the bounded context to the backend, and
// run the propose/execute/feed-back tool loop until a final answer or a
// round limit.
package orchestrator

import (
	"log/slog"
	"time"

	"github.com/IAmFuckingGenius/Gemini-Telegram-UserBot/internal/ownerlock"
	"github.com/IAmFuckingGenius/Gemini-Telegram-UserBot/llm"
	"github.com/IAmFuckingGenius/Gemini-Telegram-UserBot/router"
	"github.com/IAmFuckingGenius/Gemini-Telegram-UserBot/session"
	"github.com/IAmFuckingGenius/Gemini-Telegram-UserBot/tools"
)

// Price is the per-million-token cost of a model, used for session usage
// accounting.
type Price struct {
	Input  float64
	Output float64
}

type Config struct {
	// MaxToolRounds bounds the propose/execute/feed-back loop.
	MaxToolRounds int
	// BackendRetries is the number of extra attempts for transient
	// backend failures; RetryDelay is the initial backoff.
	BackendRetries int
	RetryDelay     time.Duration
	// ContextMaxTurns and ContextMaxBytes bound the replayed window;
	// oldest turns are dropped first, never the most recent.
	ContextMaxTurns int
	ContextMaxBytes int
	// Prices maps model identifiers to per-million-token costs.
	Prices map[string]Price
}

func (c Config) withDefaults() Config {
	if c.MaxToolRounds <= 0 {
		c.MaxToolRounds = 5
	}
	if c.BackendRetries < 0 {
		c.BackendRetries = 0
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 2 * time.Second
	}
	if c.ContextMaxTurns <= 0 {
		c.ContextMaxTurns = 200
	}
	if c.ContextMaxBytes <= 0 {
		c.ContextMaxBytes = 150_000
	}
	return c
}

type Option func(*Orchestrator)

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.log = l
		}
	}
}

// WithToolStatusHook is called before each tool execution; the transport
// uses it to show "searching the web..." style progress.
func WithToolStatusHook(fn func(owner int64, toolName string)) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.onToolStart = fn
		}
	}
}

func WithPermissions(p *tools.Permissions) Option {
	return func(o *Orchestrator) { o.perms = p }
}

type Orchestrator struct {
	store    *session.Store
	router   *router.Router
	registry *tools.Registry
	client   llm.Client
	cfg      Config
	locks    *ownerlock.Set
	log      *slog.Logger
	perms    *tools.Permissions

	onToolStart func(owner int64, toolName string)
}

func New(store *session.Store, r *router.Router, registry *tools.Registry, client llm.Client, locks *ownerlock.Set, cfg Config, opts ...Option) *Orchestrator {
	if locks == nil {
		locks = ownerlock.NewSet()
	}
	o := &Orchestrator{
		store:    store,
		router:   r,
		registry: registry,
		client:   client,
		cfg:      cfg.withDefaults(),
		locks:    locks,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

func (o *Orchestrator) costOf(model string, usage llm.Usage) float64 {
	price, ok := o.cfg.Prices[model]
	if !ok {
		return 0
	}
	return float64(usage.InputTokens)/1_000_000*price.Input +
		float64(usage.OutputTokens)/1_000_000*price.Output
}
