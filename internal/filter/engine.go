// Package filter implements the void fissure matching engine.
package filter

import (
	"warframe_bot/internal/model"
)

// Category groups fissures the way the on-demand fissure menu shows them.
type Category string

// Supported categories.
const (
	CategorySteelPath Category = "steel_path"
	CategoryVoidStorm Category = "void_storm"
	CategoryNormal    Category = "normal"
)

// Match checks whether a fissure passes the given filter.
// Empty sets and false flags do not restrict; all fields are combined with AND.
// Mission types and tiers are compared by canonical tag, so a filter saved in
// one vocabulary matches a feed expressed in the other.
func Match(f model.Fissure, flt model.FissureFilter) bool {
	if len(flt.Types) > 0 && !containsCanonical(flt.Types, f.MissionType, CanonicalMissionType) {
		return false
	}
	if len(flt.Tiers) > 0 && !containsCanonical(flt.Tiers, f.Tier, CanonicalTier) {
		return false
	}
	if flt.Hard && f.IsHard != flt.Hard {
		return false
	}
	if flt.Storm && f.IsStorm != flt.Storm {
		return false
	}
	return true
}

// Select returns the fissures that pass flt, in feed order.
func Select(fissures []model.Fissure, flt model.FissureFilter) []model.Fissure {
	var out []model.Fissure
	for _, f := range fissures {
		if Match(f, flt) {
			out = append(out, f)
		}
	}
	return out
}

// InCategory returns the fissures of one menu category.
func InCategory(fissures []model.Fissure, c Category) []model.Fissure {
	var out []model.Fissure
	for _, f := range fissures {
		var ok bool
		switch c {
		case CategorySteelPath:
			ok = f.IsHard
		case CategoryVoidStorm:
			ok = f.IsStorm
		case CategoryNormal:
			ok = !f.IsHard && !f.IsStorm
		}
		if ok {
			out = append(out, f)
		}
	}
	return out
}

func containsCanonical(set []string, v string, canon func(string) string) bool {
	want := canon(v)
	for _, s := range set {
		if canon(s) == want {
			return true
		}
	}
	return false
}
