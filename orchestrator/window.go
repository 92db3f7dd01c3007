package orchestrator

import (
	"encoding/json"

	"github.com/IAmFuckingGenius/Gemini-Telegram-UserBot/llm"
	"github.com/IAmFuckingGenius/Gemini-Telegram-UserBot/session"
)

// buildWindow converts recorded turns into backend messages, bounded by turn
// count and byte size. Oldest turns are dropped first; the most recent turn
// is always kept even when it alone exceeds the byte limit.
func buildWindow(turns []session.Turn, maxTurns, maxBytes int) []llm.Message {
	start := len(turns)
	size := 0
	for start > 0 {
		next := turns[start-1]
		cost := turnSize(next)
		if start < len(turns) {
			if len(turns)-start+1 > maxTurns {
				break
			}
			if size+cost > maxBytes {
				break
			}
		}
		size += cost
		start--
	}
	// Never open the window on an orphaned tool result; the backend needs
	// the proposing model turn to make sense of it.
	for start < len(turns) && turns[start].Role == session.RoleTool {
		start++
	}

	msgs := make([]llm.Message, 0, len(turns)-start)
	for _, t := range turns[start:] {
		// Failed rounds are recorded for the operator, not replayed to
		// the backend.
		if t.ErrorCode != "" {
			continue
		}
		msgs = append(msgs, toMessage(t))
	}
	return msgs
}

func turnSize(t session.Turn) int {
	n := len(t.Text)
	for _, a := range t.Attachments {
		n += len(a.Data)
	}
	if t.Result != nil {
		n += len(t.Result.Text) + len(t.Result.Message)
	}
	return n
}

func toMessage(t session.Turn) llm.Message {
	msg := llm.Message{Content: t.Text}
	switch t.Role {
	case session.RoleUser:
		msg.Role = llm.RoleUser
		for _, a := range t.Attachments {
			if len(a.Data) == 0 {
				continue
			}
			msg.Media = append(msg.Media, llm.Blob{MIME: a.MIME, Data: a.Data, Name: a.Name})
		}
	case session.RoleModel:
		msg.Role = llm.RoleModel
		for _, c := range t.Calls {
			msg.Calls = append(msg.Calls, llm.ToolCall{ID: c.ID, Name: c.Name, Args: c.Args})
		}
	case session.RoleTool:
		msg.Role = llm.RoleTool
		msg.CallID = t.CallID
		msg.Content = encodeToolResult(t.Result)
	}
	return msg
}

func encodeToolResult(r *session.ToolResult) string {
	if r == nil {
		return `{"ok":false,"error":"missing result"}`
	}
	payload := map[string]any{"ok": r.OK}
	if r.OK {
		payload["text"] = r.Text
		if r.MediaPath != "" {
			payload["file"] = r.MediaPath
		}
	} else {
		payload["error_code"] = r.Code
		payload["error"] = r.Message
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return `{"ok":false,"error":"unencodable result"}`
	}
	return string(b)
}
