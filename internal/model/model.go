// Package model defines the domain types used across the application.
package model

import (
	"fmt"
	"slices"
	"strings"

	"github.com/goccy/go-json"
)

// Topic is a category of world-state content a subscriber can opt into.
type Topic string

// Supported topics.
const (
	TopicEvents    Topic = "events"
	TopicInvasions Topic = "invasions"
	TopicFissures  Topic = "fissures"
)

// DefaultTimezone is assigned to every new subscriber.
const DefaultTimezone = "Europe/Moscow"

// AllTopics returns the supported topics in menu order.
func AllTopics() []Topic {
	return []Topic{TopicEvents, TopicInvasions, TopicFissures}
}

// ParseTopic validates a topic tag.
func ParseTopic(s string) (Topic, bool) {
	t := Topic(strings.TrimSpace(s))
	if slices.Contains(AllTopics(), t) {
		return t, true
	}
	return "", false
}

// SplitTopics decodes the comma-joined column form. Unknown and duplicate
// tags are dropped.
func SplitTopics(raw string) []Topic {
	var topics []Topic
	for _, s := range strings.Split(raw, ",") {
		t, ok := ParseTopic(s)
		if !ok || slices.Contains(topics, t) {
			continue
		}
		topics = append(topics, t)
	}
	return topics
}

// JoinTopics encodes topics into the comma-joined column form.
func JoinTopics(topics []Topic) string {
	parts := make([]string, 0, len(topics))
	for _, t := range topics {
		parts = append(parts, string(t))
	}
	return strings.Join(parts, ",")
}

// Subscriber is the preference record of one Telegram chat.
type Subscriber struct {
	ChatID   int64
	Timezone string
	Topics   []Topic
	Filter   FissureFilter

	// FilterReset is set when the stored filter could not be decoded and the
	// open filter was substituted. It is never persisted.
	FilterReset bool
}

// NewSubscriber returns the default record for a chat that was never onboarded.
func NewSubscriber(chatID int64) *Subscriber {
	return &Subscriber{
		ChatID:   chatID,
		Timezone: DefaultTimezone,
		Filter:   DefaultFissureFilter(),
	}
}

// HasTopic reports whether the subscriber receives the given topic.
func (s *Subscriber) HasTopic(t Topic) bool {
	return slices.Contains(s.Topics, t)
}

// ToggleTopic flips the subscription to t and reports the new state.
func (s *Subscriber) ToggleTopic(t Topic) bool {
	if i := slices.Index(s.Topics, t); i >= 0 {
		s.Topics = slices.Delete(s.Topics, i, i+1)
		return false
	}
	s.Topics = append(s.Topics, t)
	return true
}

// FissureFilter narrows which void fissures a subscriber is notified about.
// Every field at its zero value means "no restriction".
type FissureFilter struct {
	Types []string `json:"types"`
	Tiers []string `json:"tiers"`
	Hard  bool     `json:"hard"`
	Storm bool     `json:"storm"`
}

// DefaultFissureFilter returns the open filter.
func DefaultFissureFilter() FissureFilter {
	return FissureFilter{Types: []string{}, Tiers: []string{}}
}

// IsOpen reports whether the filter matches every fissure.
func (f FissureFilter) IsOpen() bool {
	return len(f.Types) == 0 && len(f.Tiers) == 0 && !f.Hard && !f.Storm
}

// Clone returns a deep copy of f.
func (f FissureFilter) Clone() FissureFilter {
	out := f
	out.Types = append([]string{}, f.Types...)
	out.Tiers = append([]string{}, f.Tiers...)
	return out
}

// ToggleType flips membership of a mission type and reports the new state.
func (f *FissureFilter) ToggleType(tag string) bool {
	var on bool
	f.Types, on = toggle(f.Types, tag)
	return on
}

// ToggleTier flips membership of a tier and reports the new state.
func (f *FissureFilter) ToggleTier(tag string) bool {
	var on bool
	f.Tiers, on = toggle(f.Tiers, tag)
	return on
}

// ToggleHard flips the Steel Path requirement.
func (f *FissureFilter) ToggleHard() bool {
	f.Hard = !f.Hard
	return f.Hard
}

// ToggleStorm flips the Void Storm requirement.
func (f *FissureFilter) ToggleStorm() bool {
	f.Storm = !f.Storm
	return f.Storm
}

func toggle(set []string, v string) ([]string, bool) {
	if i := slices.Index(set, v); i >= 0 {
		return slices.Delete(set, i, i+1), false
	}
	return append(set, v), true
}

// EncodeFissureFilter renders f in the persisted JSON form. Nil slices are
// written as empty arrays.
func EncodeFissureFilter(f FissureFilter) (string, error) {
	f = f.Clone()
	b, err := json.Marshal(f)
	if err != nil {
		return "", fmt.Errorf("encode fissure filter: %w", err)
	}
	return string(b), nil
}

// DecodeFissureFilter parses the persisted JSON form. An empty column decodes
// to the open filter.
func DecodeFissureFilter(raw string) (FissureFilter, error) {
	if strings.TrimSpace(raw) == "" {
		return DefaultFissureFilter(), nil
	}
	var f FissureFilter
	if err := json.Unmarshal([]byte(raw), &f); err != nil {
		return DefaultFissureFilter(), fmt.Errorf("decode fissure filter: %w", err)
	}
	return f.Clone(), nil
}
