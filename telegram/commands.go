package telegram

import (
	"context"
	"strings"

	"github.com/IAmFuckingGenius/Gemini-Telegram-UserBot/reply"
)

// command is one parsed slash command. Name is lowercase without the
// leading slash or @botname suffix; Rest is the untrimmed remainder.
type command struct {
	Name string
	Rest string
}

// parseCommand extracts a slash command from message text. Returns false
// for plain conversation text.
func parseCommand(text, botUsername string) (command, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return command{}, false
	}
	head, rest, _ := strings.Cut(text[1:], " ")
	if head == "" {
		return command{}, false
	}
	if name, target, ok := strings.Cut(head, "@"); ok {
		if botUsername != "" && !strings.EqualFold(target, botUsername) {
			return command{}, false
		}
		head = name
	}
	return command{Name: strings.ToLower(head), Rest: strings.TrimSpace(rest)}, true
}

func (r *Runtime) dispatch(ctx context.Context, owner int64, cmd command) reply.Reply {
	switch cmd.Name {
	case "new":
		if cmd.Rest == "" {
			return usage("/new <name>")
		}
		return r.core.CreateSession(ctx, owner, cmd.Rest)
	case "switch":
		if cmd.Rest == "" {
			return usage("/switch <name>")
		}
		return r.core.SwitchSession(ctx, owner, cmd.Rest)
	case "rename":
		oldName, newName, ok := strings.Cut(cmd.Rest, "|")
		oldName, newName = strings.TrimSpace(oldName), strings.TrimSpace(newName)
		if !ok || oldName == "" || newName == "" {
			return usage("/rename <old> | <new>")
		}
		return r.core.RenameSession(ctx, owner, oldName, newName)
	case "del", "delete":
		if cmd.Rest == "" {
			return usage("/del <name>")
		}
		return r.core.DeleteSession(ctx, owner, cmd.Rest)
	case "clear":
		return r.core.ClearSession(ctx, owner, cmd.Rest)
	case "sessions", "list":
		return r.core.ListSessions(ctx, owner)
	case "stats":
		return r.core.SessionStats(ctx, owner, cmd.Rest)
	case "prompt":
		if cmd.Rest == "" {
			return r.core.ShowInstruction(ctx, owner)
		}
		if cmd.Rest == "-" {
			return r.core.SetInstruction(ctx, owner, "")
		}
		return r.core.SetInstruction(ctx, owner, cmd.Rest)
	case "model":
		if cmd.Rest == "" {
			return r.core.ModelBindings()
		}
		capability, model, ok := strings.Cut(cmd.Rest, " ")
		if !ok || strings.TrimSpace(model) == "" {
			return usage("/model <capability> <model>")
		}
		return r.core.SetModelBinding(owner, strings.TrimSpace(capability), strings.TrimSpace(model))
	case "help", "start":
		return reply.Text(reply.CodeAnswer, helpText)
	default:
		return usage("/help")
	}
}

func usage(text string) reply.Reply {
	return reply.New(reply.CodeErrUsage, map[string]any{"usage": text})
}

const helpText = `Commands:
/new <name> - create a session and switch to it
/switch <name> - switch to a session
/rename <old> | <new> - rename a session
/del <name> - delete a session
/clear [name] - clear a session's history
/sessions - list sessions
/stats [name] - session statistics
/prompt [text] - show or set the session instruction ("-" removes it)
/model [capability model] - show or change model bindings
Anything else is sent to the model.`
