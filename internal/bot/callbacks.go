package bot

import (
	"context"
	"errors"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"warframe_bot/internal/editor"
)

// notModified is the Telegram API error for an edit that changes nothing.
const notModified = "message is not modified"

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	chatID := cb.Message.Chat.ID
	msgID := cb.Message.MessageID

	a, ok := ParseAction(cb.Data)
	if !ok {
		b.log.Warn("unknown callback", "data", cb.Data, "chat_id", chatID)
		b.answer(cb.ID, "Unknown command")
		return
	}

	b.log.Info("callback",
		"action", a.Kind.String(),
		"arg", a.Arg,
		"chat_id", chatID,
		"user_id", cb.From.ID,
		"username", cb.From.UserName,
	)

	res, err := b.editor.Apply(ctx, chatID, a)
	if errors.Is(err, editor.ErrUnknownAction) {
		b.answer(cb.ID, "Unknown command")
		return
	}
	if err != nil {
		b.log.Error("apply callback", "chat_id", chatID, "action", a.Kind.String(), "error", err)
		b.answer(cb.ID, "Failed to save, try again")
		return
	}

	switch a.Kind {
	case editor.KindToggleTopic:
		b.editMarkup(chatID, msgID, subscriptionsMenu(res.Subscriber))
		b.answer(cb.ID, "Notifications updated!")

	case editor.KindSaveFilter:
		edit := tgbotapi.NewEditMessageText(chatID, msgID, "✅ Void Fissure filters saved!")
		if _, err := b.api.Request(edit); err != nil && !isNotModified(err) {
			b.log.Error("edit message", "chat_id", chatID, "error", err)
		}
		b.answer(cb.ID, "Filters saved")

	case editor.KindClearFilter:
		b.editMarkup(chatID, msgID, filterMenu(res.Subscriber.Filter))
		b.answer(cb.ID, "All filters reset")

	default:
		if notChanged := b.editMarkup(chatID, msgID, filterMenu(res.Subscriber.Filter)); notChanged {
			b.answer(cb.ID, "Filters already set")
			return
		}
		b.answer(cb.ID, "Filters updated")
	}
}

// editMarkup replaces the inline keyboard of a message. It reports whether
// Telegram rejected the edit as a no-op.
func (b *Bot) editMarkup(chatID int64, msgID int, markup tgbotapi.InlineKeyboardMarkup) bool {
	edit := tgbotapi.NewEditMessageReplyMarkup(chatID, msgID, markup)
	_, err := b.api.Request(edit)
	if err == nil {
		return false
	}
	if isNotModified(err) {
		return true
	}
	b.log.Error("edit markup", "chat_id", chatID, "error", err)
	return false
}

func isNotModified(err error) bool {
	return strings.Contains(err.Error(), notModified)
}
