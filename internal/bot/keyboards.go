package bot

import (
	"fmt"

	tele "gopkg.in/telebot.v3"

	"github.com/eliseohh/moviebot/internal/recommend"
)

func btn(text, data string) tele.InlineButton {
	return tele.InlineButton{Text: text, Data: data}
}

func inline(rows ...[]tele.InlineButton) *tele.ReplyMarkup {
	return &tele.ReplyMarkup{InlineKeyboard: rows}
}

func row(buttons ...tele.InlineButton) []tele.InlineButton { return buttons }

var backButton = btn("⬅️ Назад", cbMenuMain)

func quickKeyboard() *tele.ReplyMarkup {
	return &tele.ReplyMarkup{
		ReplyKeyboard: [][]tele.ReplyButton{
			{{Text: quickRecommend}, {Text: quickAdd}, {Text: quickRecent}},
			{{Text: quickRandom}, {Text: quickStats}, {Text: quickMenu}},
		},
		ResizeKeyboard: true,
		Placeholder:    quickHolder,
	}
}

func mainMenu() *tele.ReplyMarkup {
	return inline(
		row(btn("➕ Добавить запись", cbAddFilm)),
		row(btn("✨ Новые рекомендации", cbRecommendMe), btn("🎲 Случайный", cbRandomPick)),
		row(btn("🎞 Библиотека", cbMenuLibrary), btn("📊 Статистика", cbMenuStats)),
		row(btn("🧠 AI и подборки", cbMenuRecommend), btn("❓ Помощь", cbMenuHelp)),
	)
}

func recommendMenu() *tele.ReplyMarkup {
	return inline(
		row(btn("✨ Новые рекомендации", cbRecommendMe)),
		row(btn("🤖 AI-вопрос", cbAIHelp)),
		row(btn("🎲 Случайный фильм", cbRandomPick)),
		row(backButton),
	)
}

func libraryMenu() *tele.ReplyMarkup {
	return inline(
		row(btn("📝 Последние добавления", cbListFilms)),
		row(btn("🗓 За месяц", cbRecentEntries), btn("🏆 Топ 5", cbTop5)),
		row(btn("🔍 Поиск по названию", cbSearchTitle), btn("🎭 По жанру", cbSearchGenre)),
		row(btn("🎲 Случайный", cbRandomPick)),
		row(btn("✨ Раздел рекомендаций", cbMenuRecommend)),
		row(backButton),
	)
}

func statsMenu() *tele.ReplyMarkup {
	return inline(
		row(btn("📊 Оценки и сводка", cbRatingStats)),
		row(btn("🏁 Победитель месяца", cbWinnerMonth)),
		row(btn("👨 Подборка: муж", cbOwnerHusband), btn("👩 Подборка: жена", cbOwnerWife)),
		row(btn("🧮 AI токены", cbTokenUsage)),
		row(backButton),
	)
}

func helpMenu() *tele.ReplyMarkup {
	return inline(
		row(btn("📘 Команды", cbHelp)),
		row(btn("ℹ️ Оффлайн-режим", cbOfflineHelp)),
		row(backButton),
	)
}

func pageKeyboard(cmd string, page, pages int) *tele.ReplyMarkup {
	var buttons []tele.InlineButton
	if page > 0 {
		buttons = append(buttons, btn("⬅️", fmt.Sprintf("%s%s:%d", cbPagePrefix, cmd, page-1)))
	}
	buttons = append(buttons, btn(fmt.Sprintf("%d/%d", page+1, pages), cbNoop))
	if page < pages-1 {
		buttons = append(buttons, btn("➡️", fmt.Sprintf("%s%s:%d", cbPagePrefix, cmd, page+1)))
	}
	return inline(buttons)
}

func winnerKeyboard(offset int) *tele.ReplyMarkup {
	next := min(offset+1, 0)
	return inline(row(
		btn("◀ Пред. месяц", fmt.Sprintf("%s:%d", cbWinnerMonth, offset-1)),
		btn("Текущий", fmt.Sprintf("%s:%d", cbWinnerMonth, 0)),
		btn("След. месяц ▶", fmt.Sprintf("%s:%d", cbWinnerMonth, next)),
	))
}

func tokensKeyboard() *tele.ReplyMarkup {
	return inline(
		row(btn("♻️ Обнулить токены", cbTokenReset)),
		row(btn("⬅️ Назад", cbMenuStats)),
	)
}

func confirmKeyboard() *tele.ReplyMarkup {
	return inline(row(btn(btnSave, cbAddConfirmSave), btn(btnCancel, cbAddConfirmStop)))
}

func commentKeyboard() *tele.ReplyMarkup {
	return inline(row(btn(btnSkipComment, cbAddSkipComment)))
}

func typeKeyboard() *tele.ReplyMarkup {
	return inline(row(btn(btnTypeFilm, cbAddTypePrefix+"film"), btn(btnTypeSeries, cbAddTypePrefix+"series")))
}

func recommendationKeyboard() *tele.ReplyMarkup {
	return inline(
		row(btn(btnRecRecommend, cbAddRecPrefix+"recommend")),
		row(btn(btnRecOK, cbAddRecPrefix+"ok")),
		row(btn(btnRecSkip, cbAddRecPrefix+"skip")),
	)
}

func ownerKeyboard() *tele.ReplyMarkup {
	return inline(
		row(btn(btnOwnerHusband, cbAddOwnerPrefix+"husband"), btn(btnOwnerWife, cbAddOwnerPrefix+"wife")),
		row(btn(btnOwnerSkip, cbAddOwnerPrefix+"skip")),
	)
}

func voiceClarifyKeyboard() *tele.ReplyMarkup {
	return inline(
		row(btn(btnVoiceClarifyText, cbVoiceClarifyTxt), btn(btnVoiceClarifyVoice, cbVoiceClarifyVoc)),
		row(btn(btnCancel, cbVoiceCancel)),
	)
}

// prefillButton puts text into the chat input field when pressed.
func prefillButton(label, text string) tele.InlineButton {
	return tele.InlineButton{Text: label, InlineQueryChat: text}
}

// quickAddKeyboard lists one prefill button per recommended title.
func quickAddKeyboard(items []recommend.QuickAdd) *tele.ReplyMarkup {
	if len(items) == 0 {
		return nil
	}
	rows := make([][]tele.InlineButton, 0, len(items))
	for _, it := range items {
		rows = append(rows, row(prefillButton(it.Label, it.Prefill)))
	}
	return inline(rows...)
}
