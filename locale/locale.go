// Package locale renders reply codes into user-facing text. Message tables
// are YAML files embedded at build time; placeholders use {name} syntax.
package locale

import (
	"embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var localeFS embed.FS

const DefaultLang = "en_US"

type Bundle struct {
	lang     string
	messages map[string]string
	fallback map[string]string
}

// Load reads the embedded table for lang. Unknown languages fall back to
// en_US; a bundle for another language still falls back per-key.
func Load(lang string) (*Bundle, error) {
	fallback, err := readTable(DefaultLang)
	if err != nil {
		return nil, err
	}
	b := &Bundle{lang: DefaultLang, messages: fallback, fallback: fallback}
	if lang == "" || lang == DefaultLang {
		return b, nil
	}
	messages, err := readTable(lang)
	if err != nil {
		return b, nil
	}
	b.lang = lang
	b.messages = messages
	return b, nil
}

func readTable(lang string) (map[string]string, error) {
	raw, err := localeFS.ReadFile("locales/" + lang + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("locale: unknown language %q: %w", lang, err)
	}
	var messages map[string]string
	if err := yaml.Unmarshal(raw, &messages); err != nil {
		return nil, fmt.Errorf("locale: parse %s: %w", lang, err)
	}
	return messages, nil
}

func (b *Bundle) Lang() string { return b.lang }

// Render resolves key and substitutes {name} placeholders from params.
// An unknown key renders as the key itself so a missing translation is
// visible instead of silent.
func (b *Bundle) Render(key string, params map[string]any) string {
	msg, ok := b.messages[key]
	if !ok {
		msg, ok = b.fallback[key]
	}
	if !ok {
		return key
	}
	if len(params) == 0 {
		return msg
	}
	// Longest names first so {name_b} is not clobbered by {name}.
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })
	for _, name := range names {
		msg = strings.ReplaceAll(msg, "{"+name+"}", fmt.Sprint(params[name]))
	}
	return msg
}
