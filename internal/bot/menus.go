package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"warframe_bot/internal/editor"
	"warframe_bot/internal/filter"
	"warframe_bot/internal/model"
)

// Reply keyboard buttons.
const (
	btnEvents    = "Events 🎮"
	btnInvasions = "Invasions 🌍"
	btnFissures  = "Void Fissures ⚡"
	btnBaro      = "Baro Ki'Teer 🚀"
	btnSettings  = "Settings ⚙️"

	btnSteelPath      = "Steel Path 💎"
	btnVoidStorm      = "Void Storm 🌪️"
	btnNormalFissures = "Normal fissures 🌌"

	btnSetTimezone    = "Set timezone"
	btnSubscriptions  = "Subscriptions"
	btnMyFilters      = "My filters"
	btnFissureFilters = "Fissure filters"
	btnBack           = "⬅️ Back"
)

const (
	checkOn  = "✅"
	checkOff = "❌"
)

// timezoneButtons is the preset list offered by the timezone menu, grouped by region.
var timezoneButtons = []string{
	"Europe/Moscow (UTC+3)",
	"Europe/London (UTC+0)",
	"Europe/Paris (UTC+1)",
	"Europe/Berlin (UTC+1)",
	"Europe/Rome (UTC+1)",
	"Europe/Madrid (UTC+1)",

	"America/New_York (UTC-4)",
	"America/Chicago (UTC-5)",
	"America/Denver (UTC-6)",
	"America/Los_Angeles (UTC-7)",
	"America/Phoenix (UTC-7)",

	"America/Sao_Paulo (UTC-3)",
	"America/Buenos_Aires (UTC-3)",
	"America/Lima (UTC-5)",

	"Asia/Tokyo (UTC+9)",
	"Asia/Shanghai (UTC+8)",
	"Asia/Dubai (UTC+4)",
	"Asia/Singapore (UTC+8)",
	"Asia/Manila (UTC+8)",
	"Asia/Dhaka (UTC+6)",
	"Asia/Bangkok (UTC+7)",

	"Australia/Sydney (UTC+10)",
	"Australia/Melbourne (UTC+10)",
	"Pacific/Auckland (UTC+12)",
	"Pacific/Fiji (UTC+12)",

	"Africa/Cairo (UTC+2)",
	"Africa/Nairobi (UTC+3)",
	"Africa/Lagos (UTC+1)",
	"Africa/Casablanca (UTC+0)",
}

func mainMenu() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnEvents),
			tgbotapi.NewKeyboardButton(btnInvasions),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnFissures),
			tgbotapi.NewKeyboardButton(btnBaro),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnSettings),
		),
	)
}

func fissureMenu() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnSteelPath),
			tgbotapi.NewKeyboardButton(btnVoidStorm),
			tgbotapi.NewKeyboardButton(btnNormalFissures),
		),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnBack)),
	)
}

func settingsMenu() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnSetTimezone)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnSubscriptions)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnMyFilters)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnFissureFilters)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnBack)),
	)
}

func timezoneMenu() tgbotapi.ReplyKeyboardMarkup {
	rows := make([][]tgbotapi.KeyboardButton, 0, len(timezoneButtons)+1)
	for _, tz := range timezoneButtons {
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(tz)))
	}
	rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnBack)))
	return tgbotapi.NewReplyKeyboard(rows...)
}

func subscriptionsMenu(sub *model.Subscriber) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, t := range model.AllTopics() {
		a := editor.Action{Kind: editor.KindToggleTopic, Arg: string(t)}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(check(sub.HasTopic(t))+" "+string(t), Token(a)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// filterMenu renders one toggle button per catalog entry plus the flag,
// clear and save buttons. Stored values in either vocabulary show as selected.
func filterMenu(f model.FissureFilter) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, e := range filter.MissionTypes() {
		on := containsCanonical(f.Types, e.Tag, filter.CanonicalMissionType)
		a := editor.Action{Kind: editor.KindToggleType, Arg: e.Tag}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(check(on)+" "+e.Emoji+" "+e.Label, Token(a)),
		))
	}
	for _, e := range filter.Tiers() {
		on := containsCanonical(f.Tiers, e.Tag, filter.CanonicalTier)
		a := editor.Action{Kind: editor.KindToggleTier, Arg: e.Tag}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(check(on)+" "+e.Label, Token(a)),
		))
	}
	rows = append(rows,
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(check(f.Hard)+" "+btnSteelPath, tokenHard)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(check(f.Storm)+" "+btnVoidStorm, tokenStorm)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🗑 Clear all", tokenClearAll)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("✔️ Save", tokenSave)),
	)
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func check(on bool) string {
	if on {
		return checkOn
	}
	return checkOff
}

func containsCanonical(set []string, tag string, canon func(string) string) bool {
	for _, v := range set {
		if canon(v) == tag {
			return true
		}
	}
	return false
}
