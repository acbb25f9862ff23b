package bot

import (
	"strings"

	"warframe_bot/internal/editor"
)

// Callback tokens carried in inline button data.
const (
	tokenTopicPrefix = "toggle_"
	tokenTypePrefix  = "fissure_type_"
	tokenTierPrefix  = "fissure_tier_"
	tokenHard        = "fissure_hard"
	tokenStorm       = "fissure_storm"
	tokenClearAll    = "fissure_clear_all"
	tokenSave        = "fissure_filter_save"
)

// ParseAction decodes an inline button token. It reports false for tokens
// that do not have a known shape; tags inside a well-formed token are
// validated by the editor.
func ParseAction(token string) (editor.Action, bool) {
	switch token {
	case tokenHard:
		return editor.Action{Kind: editor.KindToggleHard}, true
	case tokenStorm:
		return editor.Action{Kind: editor.KindToggleStorm}, true
	case tokenClearAll:
		return editor.Action{Kind: editor.KindClearFilter}, true
	case tokenSave:
		return editor.Action{Kind: editor.KindSaveFilter}, true
	}

	prefixes := []struct {
		prefix string
		kind   editor.Kind
	}{
		{tokenTypePrefix, editor.KindToggleType},
		{tokenTierPrefix, editor.KindToggleTier},
		{tokenTopicPrefix, editor.KindToggleTopic},
	}
	for _, p := range prefixes {
		if arg, ok := strings.CutPrefix(token, p.prefix); ok && arg != "" {
			return editor.Action{Kind: p.kind, Arg: arg}, true
		}
	}
	return editor.Action{}, false
}

// Token encodes a into its inline button form.
func Token(a editor.Action) string {
	switch a.Kind {
	case editor.KindToggleTopic:
		return tokenTopicPrefix + a.Arg
	case editor.KindToggleType:
		return tokenTypePrefix + a.Arg
	case editor.KindToggleTier:
		return tokenTierPrefix + a.Arg
	case editor.KindToggleHard:
		return tokenHard
	case editor.KindToggleStorm:
		return tokenStorm
	case editor.KindClearFilter:
		return tokenClearAll
	case editor.KindSaveFilter:
		return tokenSave
	}
	return ""
}

// ParseTimezoneButton extracts the zone name from a timezone list button
// such as "Europe/Moscow (UTC+3)".
func ParseTimezoneButton(text string) (string, bool) {
	name, rest, ok := strings.Cut(text, " (UTC")
	if !ok || !strings.HasSuffix(rest, ")") || name == "" || strings.ContainsAny(name, " ") {
		return "", false
	}
	return name, true
}

// IsOffsetInput reports whether text looks like a custom "+HH[:MM]" offset.
func IsOffsetInput(text string) bool {
	if len(text) < 2 || (text[0] != '+' && text[0] != '-') {
		return false
	}
	return text[1] >= '0' && text[1] <= '9'
}
