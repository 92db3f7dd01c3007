package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/IAmFuckingGenius/Gemini-Telegram-UserBot/internal/retryutil"
	"github.com/IAmFuckingGenius/Gemini-Telegram-UserBot/llm"
	"github.com/IAmFuckingGenius/Gemini-Telegram-UserBot/reply"
	"github.com/IAmFuckingGenius/Gemini-Telegram-UserBot/router"
	"github.com/IAmFuckingGenius/Gemini-Telegram-UserBot/session"
	"github.com/IAmFuckingGenius/Gemini-Telegram-UserBot/tools"
)

// Handle runs one inbound message through the active session: it appends the
// user turn, then drives the backend/tool loop until the backend answers with
// text, a tool produces media, or a limit is hit. Runs for the same owner are
// serialized; the model binding is snapshotted once at entry so a rebind
// mid-flight never affects this run.
func (o *Orchestrator) Handle(ctx context.Context, owner int64, text string, attachments []session.Attachment) reply.Reply {
	release := o.locks.Acquire(owner)
	defer release()

	if err := ctx.Err(); err != nil {
		return reply.New(reply.CodeErrCancelled, nil)
	}

	meta, err := o.store.GetActive(ctx, owner)
	if err != nil {
		o.log.Error("active_session_load_failed", "owner", owner, "error", err)
		return reply.New(reply.CodeErrInternal, map[string]any{"error": err.Error()})
	}

	bindings := o.router.Snapshot()
	model := bindings[router.CapabilityChat]

	var disallowed map[string]bool
	if o.perms != nil {
		disallowed, err = o.perms.Disallowed(owner)
		if err != nil {
			o.log.Warn("permissions_load_failed", "owner", owner, "error", err)
		}
	}
	declarations := o.registry.Declarations(disallowed)

	userTurn := session.Turn{Role: session.RoleUser, Text: text, Attachments: attachments}
	if err := o.store.AppendTurn(ctx, owner, meta.Name, userTurn); err != nil {
		o.log.Error("turn_append_failed", "owner", owner, "session", meta.Name, "error", err)
		return reply.New(reply.CodeErrInternal, map[string]any{"error": err.Error()})
	}

	for round := 0; round < o.cfg.MaxToolRounds; round++ {
		if err := ctx.Err(); err != nil {
			return reply.New(reply.CodeErrCancelled, nil)
		}

		turns, err := o.store.Turns(ctx, owner, meta.Name)
		if err != nil {
			o.log.Error("turn_replay_failed", "owner", owner, "session", meta.Name, "error", err)
			return reply.New(reply.CodeErrInternal, map[string]any{"error": err.Error()})
		}
		window := buildWindow(turns, o.cfg.ContextMaxTurns, o.cfg.ContextMaxBytes)

		req := llm.Request{
			Model:    model,
			System:   meta.Instruction,
			Messages: window,
			Tools:    declarations,
		}

		var res llm.Result
		err = retryutil.Do(ctx, o.log, "backend_generate", o.cfg.BackendRetries, o.cfg.RetryDelay, llm.IsTransient, func(ctx context.Context) error {
			var genErr error
			res, genErr = o.client.Generate(ctx, req)
			return genErr
		})
		if res.Usage.TotalTokens > 0 {
			cost := o.costOf(model, res.Usage)
			if usageErr := o.store.AddUsage(ctx, owner, meta.Name, res.Usage.InputTokens, res.Usage.OutputTokens, cost); usageErr != nil {
				o.log.Warn("usage_account_failed", "owner", owner, "session", meta.Name, "error", usageErr)
			}
		}
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return reply.New(reply.CodeErrCancelled, nil)
			}
			o.log.Error("backend_generate_failed", "owner", owner, "model", model, "round", round, "error", err)
			failTurn := session.Turn{Role: session.RoleModel, ErrorCode: string(reply.CodeErrBackendFailed)}
			if appendErr := o.store.AppendTurn(ctx, owner, meta.Name, failTurn); appendErr != nil {
				o.log.Error("turn_append_failed", "owner", owner, "session", meta.Name, "error", appendErr)
			}
			return reply.New(reply.CodeErrBackendFailed, map[string]any{"error": err.Error()})
		}

		if len(res.Calls) == 0 {
			modelTurn := session.Turn{Role: session.RoleModel, Text: res.Text}
			if err := o.store.AppendTurn(ctx, owner, meta.Name, modelTurn); err != nil {
				o.log.Error("turn_append_failed", "owner", owner, "session", meta.Name, "error", err)
			}
			return reply.Text(reply.CodeAnswer, res.Text)
		}

		calls := make([]session.ToolCall, len(res.Calls))
		for i, c := range res.Calls {
			calls[i] = session.ToolCall{ID: c.ID, Name: c.Name, Args: c.Args}
		}
		modelTurn := session.Turn{Role: session.RoleModel, Text: res.Text, Calls: calls}
		if err := o.store.AppendTurn(ctx, owner, meta.Name, modelTurn); err != nil {
			o.log.Error("turn_append_failed", "owner", owner, "session", meta.Name, "error", err)
			return reply.New(reply.CodeErrInternal, map[string]any{"error": err.Error()})
		}

		var media *reply.Reply
		for _, call := range res.Calls {
			if o.onToolStart != nil {
				o.onToolStart(owner, call.Name)
			}
			o.log.Info("tool_execute", "owner", owner, "tool", call.Name, "round", round)
			var outcome tools.Outcome
			if disallowed[call.Name] {
				// Filtered tools never appear in declarations, but the
				// backend is free to hallucinate one anyway.
				outcome = tools.Outcome{
					Code:    tools.FailureNotFound,
					Message: fmt.Sprintf("tool %q is not available", call.Name),
				}
			} else {
				outcome = o.registry.Execute(ctx, call.Name, call.Args)
			}
			result := session.ToolResult{
				OK:        outcome.OK,
				Text:      outcome.Text,
				MediaPath: outcome.MediaPath,
				Code:      outcome.Code,
				Message:   outcome.Message,
			}
			toolTurn := session.Turn{Role: session.RoleTool, CallID: call.ID, Result: &result}
			if err := o.store.AppendTurn(ctx, owner, meta.Name, toolTurn); err != nil {
				o.log.Error("turn_append_failed", "owner", owner, "session", meta.Name, "error", err)
			}
			if outcome.OK && outcome.MediaPath != "" && media == nil {
				media = &reply.Reply{
					Code:      reply.CodeMediaFile,
					Params:    map[string]any{"text": outcome.Text},
					MediaPath: outcome.MediaPath,
					MediaMIME: outcome.MediaMIME,
				}
			}
		}
		// A tool that produced a file ends the run; the file itself is the
		// answer and the backend has nothing further to add.
		if media != nil {
			return *media
		}
	}

	o.log.Warn("tool_loop_exceeded", "owner", owner, "rounds", o.cfg.MaxToolRounds)
	failTurn := session.Turn{Role: session.RoleModel, ErrorCode: string(reply.CodeErrToolLoopExceeded)}
	if err := o.store.AppendTurn(ctx, owner, meta.Name, failTurn); err != nil {
		o.log.Error("turn_append_failed", "owner", owner, "session", meta.Name, "error", err)
	}
	return reply.New(reply.CodeErrToolLoopExceeded, map[string]any{"rounds": o.cfg.MaxToolRounds})
}
