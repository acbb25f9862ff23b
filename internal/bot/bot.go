// Package bot implements the Telegram transport: commands, menus and
// callback buttons.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"warframe_bot/internal/config"
	"warframe_bot/internal/editor"
	"warframe_bot/internal/filter"
	"warframe_bot/internal/model"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// WorldState provides cached world-state snapshots. *feed.Cache implements it.
type WorldState interface {
	Snapshot(ctx context.Context) (*model.Snapshot, error)
	Refresh(ctx context.Context) (*model.Snapshot, error)
}

// Bot is the Telegram bot that handles user commands and sends notifications.
type Bot struct {
	api    telegramAPI
	editor *editor.Editor
	world  WorldState
	cfg    *config.Config
	log    *slog.Logger
	now    func() time.Time
}

// New creates a Bot with the given Telegram token, editor, world state and config.
func New(token string, ed *editor.Editor, world WorldState, cfg *config.Config, log *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	log.Info("authorized on telegram", "username", api.Self.UserName)

	return &Bot{
		api:    api,
		editor: ed,
		world:  world,
		cfg:    cfg,
		log:    log,
		now:    time.Now,
	}, nil
}

// Run starts the bot's long-polling loop, blocking until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("panic while handling update", "update_id", update.UpdateID, "panic", r)
		}
	}()

	if cb := update.CallbackQuery; cb != nil {
		if cb.Message == nil || cb.From == nil {
			return
		}
		if !b.cfg.IsUserAllowed(cb.From.ID) {
			b.answer(cb.ID, "Access denied.")
			return
		}
		b.handleCallback(ctx, cb)
		return
	}

	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	if !b.cfg.IsUserAllowed(msg.From.ID) {
		b.reply(msg.Chat.ID, "Access denied.")
		return
	}
	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}
	b.handleText(ctx, msg.Chat.ID, strings.TrimSpace(msg.Text))
}

// SendMessage sends a text message to the given chat.
func (b *Bot) SendMessage(chatID int64, text string) error {
	return b.send(chatID, text, nil)
}

func (b *Bot) send(chatID int64, text string, markup any) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send message", "chat_id", chatID, "error", err)
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func (b *Bot) reply(chatID int64, text string) {
	_ = b.send(chatID, text, nil)
}

func (b *Bot) replyWithMarkup(chatID int64, text string, markup any) {
	_ = b.send(chatID, text, markup)
}

func (b *Bot) answer(callbackID, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		b.log.Error("answer callback", "error", err)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cmd := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())
	chatID := msg.Chat.ID

	b.log.Debug("command", "cmd", cmd, "args", args, "chat_id", chatID)

	switch cmd {
	case "start":
		b.handleStart(ctx, chatID)
	case "help":
		b.handleHelp(chatID)
	case "refresh":
		b.handleRefresh(ctx, chatID)
	case "myfilters":
		b.handleMyFilters(ctx, chatID)
	case "clearfilters":
		b.handleClearFilters(ctx, chatID)
	case "timezone":
		b.handleTimezoneCommand(ctx, chatID, args)
	default:
		b.reply(chatID, "Unknown command. Use /help for a list of commands.")
	}
}

// handleText dispatches reply-keyboard buttons and free-text input.
func (b *Bot) handleText(ctx context.Context, chatID int64, text string) {
	if h, ok := b.buttonHandlers()[text]; ok {
		h(ctx, chatID)
		return
	}
	if tz, ok := ParseTimezoneButton(text); ok {
		b.setTimezone(ctx, chatID, tz)
		return
	}
	if IsOffsetInput(text) {
		b.setTimezone(ctx, chatID, text)
		return
	}
	b.log.Debug("unhandled text", "chat_id", chatID)
	b.replyWithMarkup(chatID, "Use the menu buttons or /help.", mainMenu())
}

func (b *Bot) buttonHandlers() map[string]func(context.Context, int64) {
	return map[string]func(context.Context, int64){
		btnEvents:         b.handleEvents,
		btnInvasions:      b.handleInvasions,
		btnFissures:       b.handleFissureMenu,
		btnBaro:           b.handleBaro,
		btnSettings:       b.handleSettings,
		btnSteelPath:      b.fissureCategory(filter.CategorySteelPath),
		btnVoidStorm:      b.fissureCategory(filter.CategoryVoidStorm),
		btnNormalFissures: b.fissureCategory(filter.CategoryNormal),
		btnSetTimezone:    b.handleTimezoneMenu,
		btnSubscriptions:  b.handleSubscriptions,
		btnMyFilters:      b.handleMyFilters,
		btnFissureFilters: b.handleFilterMenu,
		btnBack:           b.handleBack,
	}
}
