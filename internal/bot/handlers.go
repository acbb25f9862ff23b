package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"warframe_bot/internal/editor"
	"warframe_bot/internal/filter"
	"warframe_bot/internal/model"
)

const noDataText = "Failed to get world state data. Try again later."

func (b *Bot) handleStart(ctx context.Context, chatID int64) {
	if _, err := b.editor.Load(ctx, chatID); err != nil {
		b.log.Error("load subscriber", "chat_id", chatID, "error", err)
		b.reply(chatID, "Something went wrong. Try again later.")
		return
	}
	b.replyWithMarkup(chatID, `Welcome to Warframe Notify Bot!

Check events, invasions, Void Fissures and Baro Ki'Teer from the menu below.
Turn on fissure notifications in Settings → Subscriptions and narrow them
down with fissure filters.

Use /help for the full command reference.`, mainMenu())
}

func (b *Bot) handleHelp(chatID int64) {
	b.reply(chatID, `Commands:
/start — show the main menu
/refresh — refresh the world state cache
/myfilters — show your fissure filters
/clearfilters — reset your fissure filters
/timezone [zone] — set your timezone, e.g. /timezone Europe/Berlin or /timezone +03:00

Menu:
Events, Invasions, Void Fissures and Baro Ki'Teer show the current world state.
Settings lets you pick a timezone, notification topics and fissure filters.`)
}

func (b *Bot) handleRefresh(ctx context.Context, chatID int64) {
	if _, err := b.world.Refresh(ctx); err != nil {
		b.log.Warn("refresh world state", "chat_id", chatID, "error", err)
		b.reply(chatID, "Failed to refresh cache.")
		return
	}
	b.reply(chatID, "Cache refreshed.")
}

func (b *Bot) handleMyFilters(ctx context.Context, chatID int64) {
	sub, ok := b.loadSubscriber(ctx, chatID)
	if !ok {
		return
	}
	text := FormatFilters(sub.Filter)
	if sub.FilterReset {
		text = "⚠️ Your saved filters could not be read and were reset.\n\n" + text
	}
	b.reply(chatID, text)
}

func (b *Bot) handleClearFilters(ctx context.Context, chatID int64) {
	if _, err := b.editor.Apply(ctx, chatID, editor.Action{Kind: editor.KindClearFilter}); err != nil {
		b.log.Error("clear filters", "chat_id", chatID, "error", err)
		b.reply(chatID, "Failed to reset filters.")
		return
	}
	b.reply(chatID, "🗑 All fissure filters reset.")
}

func (b *Bot) handleTimezoneCommand(ctx context.Context, chatID int64, args string) {
	if args == "" {
		b.handleTimezoneMenu(ctx, chatID)
		return
	}
	b.setTimezone(ctx, chatID, args)
}

func (b *Bot) setTimezone(ctx context.Context, chatID int64, tz string) {
	sub, err := b.editor.SetTimezone(ctx, chatID, tz)
	if errors.Is(err, editor.ErrInvalidTimezone) {
		b.reply(chatID, "Invalid format. Use a zone name or +HH:MM / -HH:MM.")
		return
	}
	if err != nil {
		b.log.Error("set timezone", "chat_id", chatID, "error", err)
		b.reply(chatID, "Failed to save timezone.")
		return
	}
	b.replyWithMarkup(chatID, "Timezone set: "+sub.Timezone, mainMenu())
}

func (b *Bot) handleEvents(ctx context.Context, chatID int64) {
	snap, ok := b.snapshot(ctx, chatID)
	if !ok {
		return
	}
	b.reply(chatID, FormatEvents(snap.Events, b.now()))
}

func (b *Bot) handleInvasions(ctx context.Context, chatID int64) {
	snap, ok := b.snapshot(ctx, chatID)
	if !ok {
		return
	}
	b.reply(chatID, FormatInvasions(snap.Invasions))
}

func (b *Bot) handleFissureMenu(_ context.Context, chatID int64) {
	b.replyWithMarkup(chatID, "Choose a fissure type:", fissureMenu())
}

func (b *Bot) fissureCategory(c filter.Category) func(context.Context, int64) {
	titles := map[filter.Category]string{
		filter.CategorySteelPath: "💎 Steel Path fissures:",
		filter.CategoryVoidStorm: "🌪️ Void Storms:",
		filter.CategoryNormal:    "🌌 Normal fissures:",
	}
	return func(ctx context.Context, chatID int64) {
		snap, ok := b.snapshot(ctx, chatID)
		if !ok {
			return
		}
		b.reply(chatID, FormatFissureList(titles[c], filter.InCategory(snap.Fissures, c)))
	}
}

func (b *Bot) handleBaro(ctx context.Context, chatID int64) {
	snap, ok := b.snapshot(ctx, chatID)
	if !ok {
		return
	}
	if len(snap.VoidTraders) == 0 {
		b.reply(chatID, "No data about Baro Ki'Teer.")
		return
	}
	loc := time.UTC
	if sub, err := b.editor.Load(ctx, chatID); err != nil {
		b.log.Warn("load subscriber, showing utc", "chat_id", chatID, "error", err)
	} else {
		loc = subscriberLocation(sub)
	}
	b.reply(chatID, FormatVoidTrader(snap.VoidTraders[0], loc))
}

func (b *Bot) handleSettings(ctx context.Context, chatID int64) {
	sub, ok := b.loadSubscriber(ctx, chatID)
	if !ok {
		return
	}
	b.replyWithMarkup(chatID, fmt.Sprintf("⚙️ Settings\n\nTimezone: %s", sub.Timezone), settingsMenu())
}

func (b *Bot) handleSubscriptions(ctx context.Context, chatID int64) {
	sub, ok := b.loadSubscriber(ctx, chatID)
	if !ok {
		return
	}
	b.replyWithMarkup(chatID, "Choose notification topics:", subscriptionsMenu(sub))
}

func (b *Bot) handleFilterMenu(ctx context.Context, chatID int64) {
	sub, ok := b.loadSubscriber(ctx, chatID)
	if !ok {
		return
	}
	text := "Configure Void Fissure filters:"
	if sub.FilterReset {
		text = "⚠️ Your saved filters could not be read and were reset.\n\n" + text
	}
	b.replyWithMarkup(chatID, text, filterMenu(sub.Filter))
}

func (b *Bot) handleTimezoneMenu(_ context.Context, chatID int64) {
	b.replyWithMarkup(chatID, "Choose your timezone or send an offset such as +03:00:", timezoneMenu())
}

func (b *Bot) handleBack(_ context.Context, chatID int64) {
	b.replyWithMarkup(chatID, "Main menu:", mainMenu())
}

func (b *Bot) snapshot(ctx context.Context, chatID int64) (*model.Snapshot, bool) {
	snap, err := b.world.Snapshot(ctx)
	if err != nil {
		b.log.Warn("world state unavailable", "chat_id", chatID, "error", err)
		b.reply(chatID, noDataText)
		return nil, false
	}
	return snap, true
}

func (b *Bot) loadSubscriber(ctx context.Context, chatID int64) (*model.Subscriber, bool) {
	sub, err := b.editor.Load(ctx, chatID)
	if err != nil {
		b.log.Error("load subscriber", "chat_id", chatID, "error", err)
		b.reply(chatID, "Something went wrong. Try again later.")
		return nil, false
	}
	return sub, true
}

func subscriberLocation(sub *model.Subscriber) *time.Location {
	if loc, err := model.LoadLocation(sub.Timezone); err == nil {
		return loc
	}
	if loc, err := time.LoadLocation(model.DefaultTimezone); err == nil {
		return loc
	}
	return time.UTC
}
