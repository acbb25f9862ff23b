package bot

import (
	"fmt"
	"strings"
	"time"

	"warframe_bot/internal/filter"
	"warframe_bot/internal/model"
)

const (
	dateLayout = "02.01.2006 15:04"
	unknown    = "unknown"
)

// FormatFissureNotification formats a fissure as a notification message.
// The expiry, when known, is shown in loc.
func FormatFissureNotification(f model.Fissure, loc *time.Location) string {
	var b strings.Builder
	fmt.Fprintf(&b, "⚡ Void Fissure: %s\n", orUnknown(f.Node))
	fmt.Fprintf(&b, "Type: %s\n", filter.MissionTypeLabel(orUnknown(f.MissionType)))
	fmt.Fprintf(&b, "Tier: %s\n", filter.TierLabel(orUnknown(f.Tier)))
	if f.IsHard {
		b.WriteString("💎 Steel Path\n")
	}
	if f.IsStorm {
		b.WriteString("🌪️ Void Storm\n")
	}
	fmt.Fprintf(&b, "⏳ Time left: %s", orUnknown(f.ETA))
	if t := f.ExpiresAt(); !t.IsZero() {
		fmt.Fprintf(&b, "\nEnds: %s", t.In(loc).Format(dateLayout))
	}
	return b.String()
}

// FormatEvents formats the current events with the time left until expiry.
func FormatEvents(events []model.Event, now time.Time) string {
	if len(events) == 0 {
		return "No data."
	}
	var b strings.Builder
	b.WriteString("Current events:\n")
	for _, e := range events {
		title := e.Description
		if title == "" {
			title = "Untitled"
		}
		status := "⏸ Inactive"
		if e.Active {
			status = "✅ Active"
		}
		fmt.Fprintf(&b, "\n• %s\n", title)
		fmt.Fprintf(&b, "  Location: %s\n", orUnknown(e.Node))
		fmt.Fprintf(&b, "  Rewards: %s\n", eventRewards(e.Rewards))
		fmt.Fprintf(&b, "  Time left: %s\n", timeLeft(e.ExpiresAt(), now))
		fmt.Fprintf(&b, "  Status: %s\n", status)
	}
	return b.String()
}

// FormatInvasions formats invasions that are still running.
func FormatInvasions(invasions []model.Invasion) string {
	var b strings.Builder
	for _, inv := range invasions {
		if inv.Completed {
			continue
		}
		if b.Len() == 0 {
			b.WriteString("Current invasions:\n")
		}
		fmt.Fprintf(&b, "\n• Location: %s\n", orUnknown(inv.Node))
		fmt.Fprintf(&b, "  Attackers: %s | Defenders: %s\n", orUnknown(inv.Attacker.Faction), orUnknown(inv.Defender.Faction))
		fmt.Fprintf(&b, "  ⏳ Time left: %s\n", orUnknown(inv.ETA))
		fmt.Fprintf(&b, "  Attacker rewards: %s\n", countedRewards(inv.Attacker.Reward.CountedItems))
		fmt.Fprintf(&b, "  Defender rewards: %s\n", countedRewards(inv.Defender.Reward.CountedItems))
	}
	if b.Len() == 0 {
		return "No active invasions."
	}
	return b.String()
}

// FormatFissureList formats the fissures of one menu category.
func FormatFissureList(title string, fissures []model.Fissure) string {
	if len(fissures) == 0 {
		return "No active fissures in this category."
	}
	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n")
	for _, f := range fissures {
		fmt.Fprintf(&b, "\n• Location: %s\n", orUnknown(f.Node))
		fmt.Fprintf(&b, "  Type: %s | Tier: %s\n",
			filter.MissionTypeLabel(orUnknown(f.MissionType)), filter.TierLabel(orUnknown(f.Tier)))
		fmt.Fprintf(&b, "  Time left: %s\n", orUnknown(f.ETA))
	}
	return b.String()
}

// FormatVoidTrader formats Baro Ki'Teer's visit with times shown in loc.
// The inventory is listed only while he is active.
func FormatVoidTrader(t model.VoidTrader, loc *time.Location) string {
	var b strings.Builder
	status := "🟠"
	if t.Active {
		status = "🟢"
	}
	fmt.Fprintf(&b, "%s Baro Ki'Teer\n", status)
	fmt.Fprintf(&b, "Location: %s\n", orUnknown(t.Location))

	expiry := parseTime(t.Expiry)
	activation := parseTime(t.Activation)
	switch {
	case t.Active && !expiry.IsZero():
		fmt.Fprintf(&b, "Leaves: %s\nTime left: %s", expiry.In(loc).Format(dateLayout), orUnknown(t.EndString))
	case !activation.IsZero():
		fmt.Fprintf(&b, "Arrives: %s\nArrives in: %s", activation.In(loc).Format(dateLayout), orUnknown(t.StartString))
	default:
		b.WriteString("Time: unknown")
	}

	if t.Active && len(t.Inventory) > 0 {
		b.WriteString("\n\nInventory:")
		for _, item := range t.Inventory {
			var price []string
			if item.Ducats > 0 {
				price = append(price, fmt.Sprintf("%d ducats", item.Ducats))
			}
			if item.Credits > 0 {
				price = append(price, fmt.Sprintf("%d credits", item.Credits))
			}
			fmt.Fprintf(&b, "\n- %s", orUnknown(item.Item))
			if len(price) > 0 {
				fmt.Fprintf(&b, " (%s)", strings.Join(price, ", "))
			}
		}
	}
	return b.String()
}

// FormatFilters formats a subscriber's fissure filter.
func FormatFilters(f model.FissureFilter) string {
	types := "none selected"
	if len(f.Types) > 0 {
		labels := make([]string, 0, len(f.Types))
		for _, t := range f.Types {
			labels = append(labels, filter.MissionTypeLabel(t))
		}
		types = strings.Join(labels, ", ")
	}
	tiers := "none selected"
	if len(f.Tiers) > 0 {
		labels := make([]string, 0, len(f.Tiers))
		for _, t := range f.Tiers {
			labels = append(labels, filter.TierLabel(t))
		}
		tiers = strings.Join(labels, ", ")
	}

	var b strings.Builder
	b.WriteString("⚙️ Your fissure filters:\n\n")
	fmt.Fprintf(&b, "▫️ Mission types: %s\n", types)
	fmt.Fprintf(&b, "▫️ Tiers: %s\n", tiers)
	fmt.Fprintf(&b, "▫️ Steel Path: %s\n", onOff(f.Hard))
	fmt.Fprintf(&b, "▫️ Void Storm: %s", onOff(f.Storm))
	return b.String()
}

func eventRewards(rewards []model.EventReward) string {
	var items []string
	for _, r := range rewards {
		items = append(items, r.Items...)
	}
	if len(items) == 0 {
		return "no rewards"
	}
	return strings.Join(items, ", ")
}

func countedRewards(items []model.CountedItem) string {
	if len(items) == 0 {
		return "no rewards"
	}
	parts := make([]string, 0, len(items))
	for _, it := range items {
		count := it.Count
		if count == 0 {
			count = 1
		}
		parts = append(parts, fmt.Sprintf("%s x%d", orUnknown(it.Type), count))
	}
	return strings.Join(parts, ", ")
}

// timeLeft renders the time until expiry as "1d 2h 3m".
func timeLeft(expiry, now time.Time) string {
	if expiry.IsZero() {
		return unknown
	}
	d := expiry.Sub(now)
	if d <= 0 {
		return "expired"
	}
	d = d.Truncate(time.Minute)
	days := int(d / (24 * time.Hour))
	hours := int(d % (24 * time.Hour) / time.Hour)
	mins := int(d % time.Hour / time.Minute)
	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, mins)
	}
	return fmt.Sprintf("%dh %dm", hours, mins)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return unknown
	}
	return s
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}
