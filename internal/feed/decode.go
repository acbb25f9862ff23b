package feed

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/goccy/go-json"

	"warframe_bot/internal/model"
)

// ErrInvalid is returned for payloads that parse but fail the validity check.
var ErrInvalid = errors.New("invalid world-state snapshot")

type rawSnapshot struct {
	Events      json.RawMessage `json:"events"`
	Invasions   json.RawMessage `json:"invasions"`
	Fissures    json.RawMessage `json:"fissures"`
	VoidTraders json.RawMessage `json:"voidTraders"`
}

// Decode parses and validates an upstream payload.
//
// The events, invasions and fissures sections must each be a non-empty array
// or a non-empty object; voidTraders may be missing or null but otherwise
// must be an array. Records that do not decode are skipped and counted in
// Snapshot.Skipped.
func Decode(body []byte) (*model.Snapshot, error) {
	var raw rawSnapshot
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode world state: %w", err)
	}
	if err := validate(raw); err != nil {
		return nil, err
	}

	snap := &model.Snapshot{}
	var n int
	snap.Events, n = decodeSection[model.Event](raw.Events)
	snap.Skipped += n
	snap.Invasions, n = decodeSection[model.Invasion](raw.Invasions)
	snap.Skipped += n
	snap.Fissures, n = decodeSection[model.Fissure](raw.Fissures)
	snap.Skipped += n
	snap.VoidTraders, n = decodeSection[model.VoidTrader](raw.VoidTraders)
	snap.Skipped += n
	return snap, nil
}

func validate(raw rawSnapshot) error {
	required := []struct {
		key string
		val json.RawMessage
	}{
		{"events", raw.Events},
		{"invasions", raw.Invasions},
		{"fissures", raw.Fissures},
	}
	for _, r := range required {
		if len(elements(r.val)) == 0 {
			return fmt.Errorf("%w: section %q missing or empty", ErrInvalid, r.key)
		}
	}
	if k := kindOf(raw.VoidTraders); k != kindAbsent && k != kindArray {
		return fmt.Errorf("%w: section %q is not an array", ErrInvalid, "voidTraders")
	}
	return nil
}

type kind int

const (
	kindAbsent kind = iota
	kindArray
	kindObject
	kindOther
)

func kindOf(raw json.RawMessage) kind {
	b := bytes.TrimSpace(raw)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		return kindAbsent
	case b[0] == '[':
		return kindArray
	case b[0] == '{':
		return kindObject
	default:
		return kindOther
	}
}

// elements returns the records of a section: array items in order, or
// object values ordered by key.
func elements(raw json.RawMessage) []json.RawMessage {
	switch kindOf(raw) {
	case kindArray:
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil
		}
		return items
	case kindObject:
		var m map[string]json.RawMessage
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil
		}
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		items := make([]json.RawMessage, 0, len(keys))
		for _, k := range keys {
			items = append(items, m[k])
		}
		return items
	}
	return nil
}

func decodeSection[T any](raw json.RawMessage) ([]T, int) {
	var (
		out     []T
		skipped int
	)
	for _, e := range elements(raw) {
		if kindOf(e) != kindObject {
			skipped++
			continue
		}
		var v T
		if err := json.Unmarshal(e, &v); err != nil {
			skipped++
			continue
		}
		out = append(out, v)
	}
	return out, skipped
}
