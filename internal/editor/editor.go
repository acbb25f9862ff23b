// Package editor applies subscriber preference edits on top of the store.
package editor

import (
	"context"
	"errors"
	"fmt"

	"warframe_bot/internal/filter"
	"warframe_bot/internal/model"
	"warframe_bot/internal/storage"
)

var (
	// ErrUnknownAction is returned for actions whose kind or tag is not recognized.
	// The stored record is never touched in that case.
	ErrUnknownAction = errors.New("unknown action")
	// ErrInvalidTimezone is returned when a timezone cannot be resolved.
	ErrInvalidTimezone = errors.New("invalid timezone")
)

// Kind enumerates the edits a subscriber can request.
type Kind int

// Supported kinds.
const (
	KindToggleTopic Kind = iota + 1
	KindToggleType
	KindToggleTier
	KindToggleHard
	KindToggleStorm
	KindClearFilter
	KindSaveFilter
)

func (k Kind) String() string {
	switch k {
	case KindToggleTopic:
		return "toggle_topic"
	case KindToggleType:
		return "toggle_type"
	case KindToggleTier:
		return "toggle_tier"
	case KindToggleHard:
		return "toggle_hard"
	case KindToggleStorm:
		return "toggle_storm"
	case KindClearFilter:
		return "clear_filter"
	case KindSaveFilter:
		return "save_filter"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Action is one decoded edit. Arg carries the topic, mission type or tier
// tag for the kinds that take one and is ignored otherwise.
type Action struct {
	Kind Kind
	Arg  string
}

// Result describes the outcome of an applied action.
type Result struct {
	Subscriber *model.Subscriber
	// On is the new state of the toggled item. It is false for clear and save.
	On bool
}

// Editor mutates subscriber records. Every accepted edit is persisted
// immediately, so a final save always yields the accumulated state.
type Editor struct {
	store storage.Storage
}

// New creates an Editor over store.
func New(store storage.Storage) *Editor {
	return &Editor{store: store}
}

// Load returns the subscriber for chatID, creating the default record on
// first contact.
func (e *Editor) Load(ctx context.Context, chatID int64) (*model.Subscriber, error) {
	sub, err := e.store.GetSubscriber(ctx, chatID)
	if err == nil {
		return sub, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load subscriber: %w", err)
	}
	sub, err = e.store.UpdateSubscriber(ctx, chatID, func(*model.Subscriber) error { return nil })
	if err != nil {
		return nil, fmt.Errorf("create subscriber: %w", err)
	}
	return sub, nil
}

// Apply validates and persists a single action.
func (e *Editor) Apply(ctx context.Context, chatID int64, a Action) (Result, error) {
	mutate, err := mutation(a)
	if err != nil {
		return Result{}, err
	}

	var on bool
	sub, err := e.store.UpdateSubscriber(ctx, chatID, func(sub *model.Subscriber) error {
		on = mutate(sub)
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("apply %s: %w", a.Kind, err)
	}
	return Result{Subscriber: sub, On: on}, nil
}

// ToggleTopic flips a topic subscription.
func (e *Editor) ToggleTopic(ctx context.Context, chatID int64, topic model.Topic) (Result, error) {
	return e.Apply(ctx, chatID, Action{Kind: KindToggleTopic, Arg: string(topic)})
}

// SetTimezone validates and stores a timezone. Offsets are stored in the
// normalized "UTC+HH:MM" form.
func (e *Editor) SetTimezone(ctx context.Context, chatID int64, tz string) (*model.Subscriber, error) {
	name, err := model.NormalizeTimezone(tz)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTimezone, err)
	}
	sub, err := e.store.UpdateSubscriber(ctx, chatID, func(sub *model.Subscriber) error {
		sub.Timezone = name
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("set timezone: %w", err)
	}
	return sub, nil
}

// mutation resolves a into a function over the record. Validation happens
// here so rejected actions never open a write.
func mutation(a Action) (func(*model.Subscriber) bool, error) {
	switch a.Kind {
	case KindToggleTopic:
		t, ok := model.ParseTopic(a.Arg)
		if !ok {
			return nil, fmt.Errorf("%w: topic %q", ErrUnknownAction, a.Arg)
		}
		return func(sub *model.Subscriber) bool { return sub.ToggleTopic(t) }, nil

	case KindToggleType:
		if !filter.IsKnownMissionType(a.Arg) {
			return nil, fmt.Errorf("%w: mission type %q", ErrUnknownAction, a.Arg)
		}
		tag := filter.CanonicalMissionType(a.Arg)
		return func(sub *model.Subscriber) bool {
			sub.Filter.Types = canonicalize(sub.Filter.Types, filter.CanonicalMissionType)
			return sub.Filter.ToggleType(tag)
		}, nil

	case KindToggleTier:
		if !filter.IsKnownTier(a.Arg) {
			return nil, fmt.Errorf("%w: tier %q", ErrUnknownAction, a.Arg)
		}
		tag := filter.CanonicalTier(a.Arg)
		return func(sub *model.Subscriber) bool {
			sub.Filter.Tiers = canonicalize(sub.Filter.Tiers, filter.CanonicalTier)
			return sub.Filter.ToggleTier(tag)
		}, nil

	case KindToggleHard:
		return func(sub *model.Subscriber) bool { return sub.Filter.ToggleHard() }, nil

	case KindToggleStorm:
		return func(sub *model.Subscriber) bool { return sub.Filter.ToggleStorm() }, nil

	case KindClearFilter:
		return func(sub *model.Subscriber) bool {
			sub.Filter = model.DefaultFissureFilter()
			return false
		}, nil

	case KindSaveFilter:
		return func(*model.Subscriber) bool { return false }, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownAction, a.Kind)
}

// canonicalize rewrites stored values to their canonical tags and drops
// duplicates, so a toggle finds labels saved in the other vocabulary.
func canonicalize(values []string, canon func(string) string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		c := canon(v)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}
