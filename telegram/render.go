package telegram

import (
	"fmt"
	"sort"
	"strings"

	"github.com/IAmFuckingGenius/Gemini-Telegram-UserBot/locale"
	"github.com/IAmFuckingGenius/Gemini-Telegram-UserBot/reply"
	"github.com/IAmFuckingGenius/Gemini-Telegram-UserBot/session"
)

// render turns a reply into the text sent to the chat. Composite replies
// (lists, binding tables) are assembled here from per-line locale keys.
func render(b *locale.Bundle, r reply.Reply) string {
	switch r.Code {
	case reply.CodeSessionList:
		return renderSessionList(b, r)
	case reply.CodeModelStatus:
		return renderBindings(b, r)
	case reply.CodeSessionStats:
		params := copyParams(r.Params)
		if cost, ok := params["cost"].(float64); ok {
			params["cost"] = fmt.Sprintf("%.4f", cost)
		}
		return b.Render(string(r.Code), params)
	default:
		return b.Render(string(r.Code), r.Params)
	}
}

func renderSessionList(b *locale.Bundle, r reply.Reply) string {
	infos, _ := r.Params["sessions"].([]session.Info)
	lines := []string{b.Render("session_list_header", nil)}
	for _, info := range infos {
		key := "session_list_item"
		if info.Active {
			key = "session_list_item_active"
		}
		lines = append(lines, b.Render(key, map[string]any{
			"name":  info.Name,
			"turns": info.TurnCount,
		}))
	}
	return strings.Join(lines, "\n")
}

func renderBindings(b *locale.Bundle, r reply.Reply) string {
	bindings, _ := r.Params["bindings"].(map[string]string)
	capabilities := make([]string, 0, len(bindings))
	for capability := range bindings {
		capabilities = append(capabilities, capability)
	}
	sort.Strings(capabilities)
	lines := make([]string, 0, len(capabilities))
	for _, capability := range capabilities {
		lines = append(lines, fmt.Sprintf("%s: %s", capability, bindings[capability]))
	}
	return b.Render(string(reply.CodeModelStatus), map[string]any{
		"bindings": strings.Join(lines, "\n"),
	})
}

func copyParams(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
