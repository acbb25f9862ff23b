package model

import "time"

// Snapshot is one decoded copy of the upstream world state.
type Snapshot struct {
	Events      []Event
	Invasions   []Invasion
	Fissures    []Fissure
	VoidTraders []VoidTrader
	FetchedAt   time.Time

	// Skipped counts records dropped because they could not be decoded.
	Skipped int
}

// Fissure is a time-boxed Void Fissure mission.
type Fissure struct {
	ID          string `json:"id"`
	Node        string `json:"node"`
	MissionType string `json:"missionType"`
	Tier        string `json:"tier"`
	Enemy       string `json:"enemy"`
	IsHard      bool   `json:"isHard"`
	IsStorm     bool   `json:"isStorm"`
	ETA         string `json:"eta"`
	Expiry      string `json:"expiry"`
}

// Key identifies a fissure occurrence across snapshots.
func (f Fissure) Key() string {
	if f.ID != "" {
		return f.ID
	}
	return f.Node + "|" + f.MissionType + "|" + f.Tier + "|" + f.Expiry
}

// ExpiresAt parses Expiry. The zero time is returned when it is absent or
// malformed.
func (f Fissure) ExpiresAt() time.Time {
	return parseTimestamp(f.Expiry)
}

// Event is an in-game operation or alert.
type Event struct {
	ID          string        `json:"id"`
	Description string        `json:"description"`
	Node        string        `json:"node"`
	Expiry      string        `json:"expiry"`
	Active      bool          `json:"active"`
	Rewards     []EventReward `json:"rewards"`
}

// ExpiresAt parses Expiry.
func (e Event) ExpiresAt() time.Time {
	return parseTimestamp(e.Expiry)
}

// EventReward lists the reward items of an event stage.
type EventReward struct {
	Items []string `json:"items"`
}

// Invasion is a faction conflict on a node.
type Invasion struct {
	ID        string       `json:"id"`
	Node      string       `json:"node"`
	ETA       string       `json:"eta"`
	Completed bool         `json:"completed"`
	Attacker  InvasionSide `json:"attacker"`
	Defender  InvasionSide `json:"defender"`
}

// InvasionSide is one party of an invasion.
type InvasionSide struct {
	Faction string         `json:"faction"`
	Reward  InvasionReward `json:"reward"`
}

// InvasionReward holds the counted items granted to one side.
type InvasionReward struct {
	CountedItems []CountedItem `json:"countedItems"`
}

// CountedItem is a reward type with a quantity.
type CountedItem struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// VoidTrader is Baro Ki'Teer's visit.
type VoidTrader struct {
	Location    string          `json:"location"`
	Activation  string          `json:"activation"`
	Expiry      string          `json:"expiry"`
	StartString string          `json:"startString"`
	EndString   string          `json:"endString"`
	Active      bool            `json:"active"`
	Inventory   []TraderListing `json:"inventory"`
}

// TraderListing is one item offered by the void trader.
type TraderListing struct {
	Item    string `json:"item"`
	Ducats  int    `json:"ducats"`
	Credits int    `json:"credits"`
}

func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
