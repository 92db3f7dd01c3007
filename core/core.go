// Package core ties the session store, model router and orchestrator into
// the command surface the transport exposes. Every operation returns a
// reply.Reply; the transport renders it through a locale bundle.
package core

import (
	"context"
	"errors"
	"log/slog"

	"github.com/IAmFuckingGenius/Gemini-Telegram-UserBot/orchestrator"
	"github.com/IAmFuckingGenius/Gemini-Telegram-UserBot/reply"
	"github.com/IAmFuckingGenius/Gemini-Telegram-UserBot/router"
	"github.com/IAmFuckingGenius/Gemini-Telegram-UserBot/session"
)

type Core struct {
	store  *session.Store
	router *router.Router
	orch   *orchestrator.Orchestrator
	admins map[int64]bool
	log    *slog.Logger
}

func New(store *session.Store, r *router.Router, orch *orchestrator.Orchestrator, admins []int64, logger *slog.Logger) *Core {
	if logger == nil {
		logger = slog.Default()
	}
	adminSet := make(map[int64]bool, len(admins))
	for _, id := range admins {
		adminSet[id] = true
	}
	return &Core{store: store, router: r, orch: orch, admins: adminSet, log: logger}
}

func (c *Core) IsAdmin(owner int64) bool { return c.admins[owner] }

// Handle runs one conversational message through the orchestrator.
func (c *Core) Handle(ctx context.Context, owner int64, text string, attachments []session.Attachment) reply.Reply {
	return c.orch.Handle(ctx, owner, text, attachments)
}

func (c *Core) CreateSession(ctx context.Context, owner int64, name string) reply.Reply {
	meta, err := c.store.Create(ctx, owner, name)
	if err != nil {
		return sessionError(err, name)
	}
	return reply.New(reply.CodeSessionCreated, map[string]any{"name": meta.Name})
}

func (c *Core) SwitchSession(ctx context.Context, owner int64, name string) reply.Reply {
	meta, err := c.store.SwitchActive(ctx, owner, name)
	if err != nil {
		return sessionError(err, name)
	}
	return reply.New(reply.CodeSessionSwitched, map[string]any{"name": meta.Name})
}

func (c *Core) RenameSession(ctx context.Context, owner int64, oldName, newName string) reply.Reply {
	if err := c.store.Rename(ctx, owner, oldName, newName); err != nil {
		if errors.Is(err, session.ErrAlreadyExists) {
			return reply.New(reply.CodeErrAlreadyExists, map[string]any{"name": newName})
		}
		if errors.Is(err, session.ErrInvalidName) {
			return reply.New(reply.CodeErrInvalidName, map[string]any{"name": newName})
		}
		return sessionError(err, oldName)
	}
	return reply.New(reply.CodeSessionRenamed, map[string]any{"old": oldName, "new": newName})
}

func (c *Core) DeleteSession(ctx context.Context, owner int64, name string) reply.Reply {
	active, err := c.store.Delete(ctx, owner, name)
	if err != nil {
		return sessionError(err, name)
	}
	return reply.New(reply.CodeSessionDeleted, map[string]any{"name": name, "active": active.Name})
}

func (c *Core) ClearSession(ctx context.Context, owner int64, name string) reply.Reply {
	if name == "" {
		meta, err := c.store.GetActive(ctx, owner)
		if err != nil {
			return sessionError(err, name)
		}
		name = meta.Name
	}
	if err := c.store.Clear(ctx, owner, name); err != nil {
		return sessionError(err, name)
	}
	return reply.New(reply.CodeSessionCleared, map[string]any{"name": name})
}

func (c *Core) ListSessions(ctx context.Context, owner int64) reply.Reply {
	infos, err := c.store.List(ctx, owner)
	if err != nil {
		return sessionError(err, "")
	}
	return reply.New(reply.CodeSessionList, map[string]any{"sessions": infos})
}

func (c *Core) SessionStats(ctx context.Context, owner int64, name string) reply.Reply {
	if name == "" {
		meta, err := c.store.GetActive(ctx, owner)
		if err != nil {
			return sessionError(err, name)
		}
		name = meta.Name
	}
	info, err := c.store.Stats(ctx, owner, name)
	if err != nil {
		return sessionError(err, name)
	}
	return reply.New(reply.CodeSessionStats, map[string]any{
		"name":   info.Name,
		"turns":  info.TurnCount,
		"bytes":  info.SizeBytes,
		"tokens": info.Usage.TotalTokens,
		"cost":   info.Usage.TotalCost,
	})
}

func (c *Core) SetInstruction(ctx context.Context, owner int64, instruction string) reply.Reply {
	meta, err := c.store.GetActive(ctx, owner)
	if err != nil {
		return sessionError(err, "")
	}
	if err := c.store.SetInstruction(ctx, owner, meta.Name, instruction); err != nil {
		return sessionError(err, meta.Name)
	}
	if instruction == "" {
		return reply.New(reply.CodeInstructionDeleted, map[string]any{"name": meta.Name})
	}
	return reply.New(reply.CodeInstructionSet, map[string]any{"name": meta.Name})
}

func (c *Core) ShowInstruction(ctx context.Context, owner int64) reply.Reply {
	meta, err := c.store.GetActive(ctx, owner)
	if err != nil {
		return sessionError(err, "")
	}
	return reply.New(reply.CodeInstructionShown, map[string]any{
		"name":        meta.Name,
		"instruction": meta.Instruction,
	})
}

// ModelBindings reports the effective model per capability. Open to every
// owner; only changing bindings is gated.
func (c *Core) ModelBindings() reply.Reply {
	return reply.New(reply.CodeModelStatus, map[string]any{"bindings": c.router.Snapshot()})
}

func (c *Core) SetModelBinding(owner int64, capability, model string) reply.Reply {
	if !c.IsAdmin(owner) {
		c.log.Warn("model_binding_denied", "owner", owner, "capability", capability)
		return reply.New(reply.CodeErrAdminOnly, nil)
	}
	if err := c.router.Set(capability, model); err != nil {
		return reply.New(reply.CodeErrUnknownCapability, map[string]any{"capability": capability})
	}
	return reply.New(reply.CodeModelChanged, map[string]any{"capability": capability, "model": model})
}

func sessionError(err error, name string) reply.Reply {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return reply.New(reply.CodeErrNotFound, map[string]any{"name": name})
	case errors.Is(err, session.ErrAlreadyExists):
		return reply.New(reply.CodeErrAlreadyExists, map[string]any{"name": name})
	case errors.Is(err, session.ErrInvalidName):
		return reply.New(reply.CodeErrInvalidName, map[string]any{"name": name})
	case errors.Is(err, session.ErrLastSession):
		return reply.New(reply.CodeErrLastSession, nil)
	default:
		return reply.New(reply.CodeErrInternal, map[string]any{"error": err.Error()})
	}
}
