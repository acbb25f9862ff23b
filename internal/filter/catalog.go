package filter

import "strings"

// Entry pairs the canonical upstream tag with the localized label the feed
// uses when it is requested in Russian.
type Entry struct {
	Tag   string
	Label string
	Emoji string
}

var missionTypes = []Entry{
	{Tag: "Survival", Label: "Выживание", Emoji: "🪓"},
	{Tag: "Interception", Label: "Перехват", Emoji: "🎯"},
	{Tag: "Sabotage", Label: "Диверсия", Emoji: "💣"},
	{Tag: "Mobile Defense", Label: "Мобильная оборона", Emoji: "🛡️"},
	{Tag: "Defense", Label: "Оборона", Emoji: "🧱"},
	{Tag: "Skirmish", Label: "Стычка", Emoji: "⚔️"},
	{Tag: "Exterminate", Label: "Зачистка", Emoji: "☠️"},
	{Tag: "Excavation", Label: "Раскопки", Emoji: "⛏"},
	{Tag: "Disruption", Label: "Сбой", Emoji: "🧨"},
	{Tag: "Void Cascade", Label: "Каскад Бездны", Emoji: "🌀"},
	{Tag: "Void Flood", Label: "Потоп Бездны", Emoji: "🌊"},
	{Tag: "Alchemy", Label: "Алхимия", Emoji: "🧪"},
	{Tag: "Rescue", Label: "Спасение", Emoji: "🚑"},
	{Tag: "Capture", Label: "Захват", Emoji: "🧟"},
	{Tag: "Orphix", Label: "Орфикс", Emoji: "🤖"},
	{Tag: "Spy", Label: "Шпионаж", Emoji: "🕵"},
	{Tag: "Volatile", Label: "Налёт", Emoji: "🔫"},
}

var tiers = []Entry{
	{Tag: "Lith", Label: "Лит"},
	{Tag: "Meso", Label: "Мезо"},
	{Tag: "Neo", Label: "Нео"},
	{Tag: "Axi", Label: "Акси"},
	{Tag: "Requiem", Label: "Реквием"},
	{Tag: "Omnia", Label: "Омниа"},
}

// MissionTypes returns the mission type catalog in menu order.
func MissionTypes() []Entry {
	return append([]Entry(nil), missionTypes...)
}

// Tiers returns the tier catalog in menu order.
func Tiers() []Entry {
	return append([]Entry(nil), tiers...)
}

// CanonicalMissionType maps a mission type in either vocabulary to its tag.
// Unknown values are returned trimmed.
func CanonicalMissionType(s string) string {
	return canonical(missionTypes, s)
}

// CanonicalTier maps a tier in either vocabulary to its tag.
// Unknown values are returned trimmed.
func CanonicalTier(s string) string {
	return canonical(tiers, s)
}

// IsKnownMissionType reports whether s names a catalogued mission type.
func IsKnownMissionType(s string) bool {
	_, ok := lookup(missionTypes, s)
	return ok
}

// IsKnownTier reports whether s names a catalogued tier.
func IsKnownTier(s string) bool {
	_, ok := lookup(tiers, s)
	return ok
}

// MissionTypeLabel returns the display form of a mission type, with emoji.
func MissionTypeLabel(s string) string {
	e, ok := lookup(missionTypes, s)
	if !ok {
		return s
	}
	return e.Emoji + " " + e.Label
}

// TierLabel returns the display form of a tier.
func TierLabel(s string) string {
	e, ok := lookup(tiers, s)
	if !ok {
		return s
	}
	return e.Label
}

func canonical(entries []Entry, s string) string {
	if e, ok := lookup(entries, s); ok {
		return e.Tag
	}
	return strings.TrimSpace(s)
}

func lookup(entries []Entry, s string) (Entry, bool) {
	s = strings.TrimSpace(s)
	for _, e := range entries {
		if strings.EqualFold(e.Tag, s) || strings.EqualFold(e.Label, s) {
			return e, true
		}
	}
	return Entry{}, false
}
