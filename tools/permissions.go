package tools

import (
	"fmt"
	"strconv"

	"github.com/IAmFuckingGenius/Gemini-Telegram-UserBot/internal/fsstore"
)

// Permissions is a per-owner denylist of tool names, reloaded from its JSON
// record on every lookup so edits apply without a restart.
type Permissions struct {
	path string
}

func NewPermissions(path string) *Permissions {
	return &Permissions{path: path}
}

// Disallowed returns the set of tool names the owner may not use. A missing
// or empty record means no restrictions.
func (p *Permissions) Disallowed(ownerID int64) (map[string]bool, error) {
	if p == nil || p.path == "" {
		return nil, nil
	}
	var records map[string][]string
	found, err := fsstore.ReadJSON(p.path, &records)
	if err != nil {
		return nil, fmt.Errorf("load permissions: %w", err)
	}
	if !found {
		return nil, nil
	}
	names := records[strconv.FormatInt(ownerID, 10)]
	if len(names) == 0 {
		return nil, nil
	}
	out := make(map[string]bool, len(names))
	for _, n := range names {
		out[n] = true
	}
	return out, nil
}
