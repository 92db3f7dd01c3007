// Package router holds the model identifier bound to each capability class.
// Reads are frequent (one per conversation round); writes are rare admin
// operations guarded by a short exclusive swap.
package router

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/IAmFuckingGenius/Gemini-Telegram-UserBot/internal/fsstore"
)

var ErrUnknownCapability = errors.New("router: unknown capability")

const (
	CapabilityChat  = "chat"
	CapabilityImage = "image"
	CapabilityVideo = "video"
)

type Router struct {
	mu       sync.RWMutex
	path     string
	defaults map[string]string
	bindings map[string]string
	log      *slog.Logger
}

// New loads persisted bindings from path. defaults supplies both the set of
// recognized capability classes and the identifier returned when no binding
// was ever set.
func New(path string, defaults map[string]string, logger *slog.Logger) (*Router, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{
		path:     path,
		defaults: make(map[string]string, len(defaults)),
		bindings: make(map[string]string),
		log:      logger,
	}
	for capability, model := range defaults {
		r.defaults[capability] = model
	}
	var persisted map[string]string
	found, err := fsstore.ReadJSON(path, &persisted)
	if err != nil {
		return nil, fmt.Errorf("load model bindings: %w", err)
	}
	if found {
		for capability, model := range persisted {
			if _, ok := r.defaults[capability]; ok {
				r.bindings[capability] = model
			}
		}
	}
	return r, nil
}

// Get returns the bound model for capability, falling back to the configured
// default.
func (r *Router) Get(capability string) (string, error) {
	capability = strings.ToLower(strings.TrimSpace(capability))
	r.mu.RLock()
	defer r.mu.RUnlock()
	fallback, ok := r.defaults[capability]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownCapability, capability)
	}
	if bound, ok := r.bindings[capability]; ok && bound != "" {
		return bound, nil
	}
	return fallback, nil
}

// Set rebinds a capability and persists the change. Callers enforce admin
// gating; the router only validates the capability class.
func (r *Router) Set(capability, model string) error {
	capability = strings.ToLower(strings.TrimSpace(capability))
	model = strings.TrimSpace(model)
	if model == "" {
		return fmt.Errorf("%w: empty model identifier", ErrUnknownCapability)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.defaults[capability]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCapability, capability)
	}
	previous := r.bindings[capability]
	r.bindings[capability] = model
	if r.path != "" {
		if err := fsstore.WriteJSONAtomic(r.path, r.bindings); err != nil {
			r.bindings[capability] = previous
			return err
		}
	}
	r.log.Info("model_binding_changed", "capability", capability, "model", model)
	return nil
}

// Snapshot returns a point-in-time copy of every effective binding. Handles
// read their models from a snapshot so an admin rebind mid-conversation
// cannot change a run's behavior.
func (r *Router) Snapshot() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.defaults))
	for capability, fallback := range r.defaults {
		if bound, ok := r.bindings[capability]; ok && bound != "" {
			out[capability] = bound
		} else {
			out[capability] = fallback
		}
	}
	return out
}
