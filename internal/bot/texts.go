package bot

import (
	"fmt"
	"strings"
)

// Commands
const (
	cmdStart     = "start"
	cmdAdd       = "add"
	cmdTop       = "top"
	cmdRecent    = "recent"
	cmdFind      = "find"
	cmdSearch    = "search"
	cmdList      = "list"
	cmdStats     = "stats"
	cmdWinner    = "winner"
	cmdRandom    = "random"
	cmdOwner     = "owner"
	cmdAI        = "ai"
	cmdRecommend = "recommend"
	cmdDiag      = "diag"
	cmdTokens    = "tokens"
	cmdExport    = "export"
	cmdMenu      = "menu"
	cmdHelp      = "help"
	cmdCancel    = "cancel"
)

func slash(cmd string) string { return "/" + cmd }

type helpSpec struct {
	cmd, suffix, desc string
}

var helpOrder = []helpSpec{
	{cmdAdd, "", "добавить фильм"},
	{cmdTop, "", "топ по оценке"},
	{cmdRecent, "", "за последний месяц"},
	{cmdFind, " <жанр>", "поиск по жанру"},
	{cmdSearch, " <название>", "поиск по названию"},
	{cmdList, "", "последние добавления"},
	{cmdStats, "", "статистика по оценкам"},
	{cmdWinner, "", "победитель месяца (муж vs жена)"},
	{cmdRandom, "", "случайный фильм"},
	{cmdOwner, " <муж|жена>", "подборка по владельцу"},
	{cmdAI, " <вопрос>", "спросить AI"},
	{cmdDiag, "", "диагностика сервисов"},
	{cmdMenu, "", "меню"},
	{cmdHelp, "", "помощь"},
	{cmdCancel, "", "отменить добавление"},
}

// extraCommands are registered but not listed in the help text.
var extraCommands = []helpSpec{
	{cmdStart, "", "начать"},
	{cmdRecommend, "", "новые рекомендации"},
	{cmdTokens, "", "расход AI токенов"},
	{cmdExport, "", "выгрузить таблицу в Excel"},
}

var helpText = buildHelpText()

func buildHelpText() string {
	lines := []string{"Команды:"}
	for _, h := range helpOrder {
		lines = append(lines, fmt.Sprintf("• %s%s — %s", slash(h.cmd), h.suffix, h.desc))
	}
	lines = append(lines, "• фото постера — распознать фильм и показать инфо")
	return strings.Join(lines, "\n")
}

// Callback data
const (
	cbAddFilm       = "add_film"
	cbRecommendMe   = "recommend_me"
	cbRandomPick    = "random_pick"
	cbAIHelp        = "ai_help"
	cbMenuMain      = "menu_main"
	cbMenuLibrary   = "menu_library"
	cbMenuStats     = "menu_stats"
	cbMenuRecommend = "menu_recommend"
	cbMenuHelp      = "menu_help"
	cbListFilms     = "list_films"
	cbRecentEntries = "recent_entries"
	cbTop5          = "top5"
	cbSearchTitle   = "search_title"
	cbSearchGenre   = "search_genre"
	cbRatingStats   = "rating_stats"
	cbWinnerMonth   = "winner_month"
	cbOwnerHusband  = "owner_husband"
	cbOwnerWife     = "owner_wife"
	cbTokenUsage    = "token_usage"
	cbTokenReset    = "token_usage_reset"
	cbHelp          = "help"
	cbOfflineHelp   = "offline_help"
	cbNoop          = "noop"
	cbPagePrefix    = "page:"

	cbAddFlowPrefix   = "add_flow:"
	cbAddSkipComment  = "add_flow:skip_comment"
	cbAddTypePrefix   = "add_flow:type:"
	cbAddRecPrefix    = "add_flow:rec:"
	cbAddOwnerPrefix  = "add_flow:owner:"
	cbAddConfirmSave  = "add_flow:confirm:save"
	cbAddConfirmStop  = "add_flow:confirm:cancel"
	cbAddFromPoster   = "add_flow:from_poster"
	cbVoiceClarifyTxt = "add_flow:voice:clarify_text"
	cbVoiceClarifyVoc = "add_flow:voice:clarify_voice"
	cbVoiceCancel     = "add_flow:voice:cancel"
)

// Quick reply buttons
const (
	quickRecommend = "✨ Рекомендовать"
	quickAdd       = "➕ Добавить"
	quickRecent    = "📝 Последние"
	quickRandom    = "🎲 Случайный"
	quickStats     = "📊 Статистика"
	quickMenu      = "📋 Меню"
	quickHint      = "Быстрые кнопки внизу."
	quickHolder    = "Выберите действие"
)

// Panels
const (
	panelStart     = "Выберите раздел:"
	panelMain      = "Главное меню:"
	panelRecommend = "Раздел рекомендаций:"
	panelLibrary   = "Библиотека:"
	panelStats     = "Статистика и подборки:"
	panelHelp      = "Помощь:"

	msgRecommendLoading = "Подбираю рекомендации..."
	msgUnknownText      = "Используйте /menu, /help или кнопки снизу."
	msgFindHint         = "Используйте команду: /find <жанр>"
	msgSearchHint       = "Используйте команду: /search <часть названия>"
	msgAIHint           = "Спросите AI: /ai <ваш вопрос или запрос по фильмам>"
	msgOfflineGuide     = "Если таблица недоступна, записи сохраняются оффлайн."
	msgTemporaryError   = "Произошла временная ошибка. Попробуйте ещё раз."
	msgTableUnavailable = "⚠️ Сейчас нет связи с таблицей, поэтому выполнить %s не получилось. Попробуйте позже."
)

var addUsageText = "Чтобы добавить запись, используйте формат:\n" +
	"/add Название;Год;Жанр;Оценка;Комментарий;Тип;Рекомендация;Владелец\n" +
	"Комментарий, тип, рекомендация и владелец — опционально.\n" +
	"Можно также отправить /add и заполнить форму пошагово.\n" +
	"Пример:\n" +
	"/add Интерстеллар;2014;фантастика;9;Шикарный саундтрек;фильм;рекомендую;муж"

// Library
const (
	msgFindUsage      = "Использование: /find <жанр>"
	msgOwnerUsage     = "Использование: /owner <муж|жена>"
	msgSearchUsage    = "Использование: /search <часть названия>"
	msgFindNotFound   = "Ничего не найдено. Попробуйте /find триллер, /search матрица или /random."
	msgFoundHeader    = "🔎 Найдено:"
	msgOwnerHeader    = "👤 Подборка (%s):"
	msgOwnerNotFound  = "Для владельца «%s» ничего не найдено."
	msgSearchNotFound = "По запросу «%s» ничего не найдено.\nПопробуйте /find <жанр> или /random для нового варианта."
	msgSearchHeader   = "🔍 Результаты поиска «%s»:"
	msgSearchMore     = "\n\n...и ещё %d совпадений. Уточните запрос."
	msgNoEntries      = "Нет записей."
	headerList        = "📝 Последние добавления"
	headerTop         = "🏆 Топ фильмов"
	headerRecent      = "🗓 За последние 30 дней"
)

// Add flow
const (
	promptTitle          = "Введите название фильма или сериала:"
	promptYear           = "Год выпуска (например, 2014):"
	promptYearInvalid    = "Введите год из 4 цифр (например, 2014):"
	promptGenre          = "Жанр (например, фантастика):"
	promptGenreInvalid   = "Введите жанр (например, фантастика):"
	promptRating         = "Оценка от 1 до 10 (например, 8.5):"
	promptRatingInvalid  = "Введите число от 1 до 10 (например, 8 или 8.5):"
	promptComment        = "Комментарий (можно пропустить):"
	promptType           = "Тип записи:"
	promptRecommendation = "Рекомендация:"
	promptOwner          = "Кто добавил?"

	msgAddInvalidData  = "Некорректные данные."
	msgAddMissingEntry = "Данные не найдены. Попробуйте /add заново."
	msgAddParseFailed  = "Не удалось разобрать данные для добавления."
	msgAddRequired     = "Заполните обязательные поля: %s."
	msgAddOfflineSaved = "⚠️ Сейчас нет связи с таблицей. Запись сохранена оффлайн и будет выгружена позже."
	msgAddSaved        = "✅ \"%s\" добавлен в таблицу."
	msgAddCancelled    = "Добавление отменено."
	msgOfflineSynced   = "✅ Оффлайн-записи синхронизированы: %d добавлено в таблицу."

	valueDash        = "—"
	valueUnspecified = "не указан"

	previewTemplate = "📋 <b>Проверьте данные перед сохранением:</b>\n\n" +
		"🎬 <b>%s</b> (%s)\n" +
		"Жанр: %s\n" +
		"Оценка: %s/10\n" +
		"Тип: %s\n" +
		"Рекомендация: %s\n" +
		"Владелец: %s\n" +
		"Комментарий: %s"

	btnSave         = "✅ Сохранить"
	btnCancel       = "❌ Отмена"
	btnSkipComment  = "Пропустить"
	btnTypeFilm     = "Фильм"
	btnTypeSeries   = "Сериал"
	btnRecRecommend = "рекомендую"
	btnRecOK        = "можно посмотреть"
	btnRecSkip      = "в топку"
	btnOwnerHusband = "муж"
	btnOwnerWife    = "жена"
	btnOwnerSkip    = "не указывать"
)

var skipTokens = map[string]bool{"-": true, "пропустить": true, "skip": true, "нет": true, "без": true}

// Voice
const (
	msgVoiceNeedsKey     = "Для голосового добавления нужен MISTRALAPI в .env."
	msgVoiceTranscribe   = "Не удалось распознать голосовое сообщение. Попробуйте ещё раз."
	msgVoiceParseFailed  = "Не удалось разобрать данные из голосового. Продиктуйте: название, год, жанр, оценку, тип, рекомендацию и владельца."
	msgVoiceRecognized   = "Распознал: %s"
	msgVoiceClarify      = "Нужно уточнить данные: %s.\nОтправьте уточнение текстом или новым голосовым."
	msgVoiceHintText     = "Отправьте текст с уточнением полей."
	msgVoiceHintVoice    = "Отправьте новое голосовое с уточнением."
	btnVoiceClarifyText  = "⌨️ Уточнить текстом"
	btnVoiceClarifyVoice = "🎤 Уточнить голосом"
)

// AI
const (
	msgAINotConfigured = "AI is not configured. Set GEMINI_API_KEY or MISTRALAPI in .env and restart the bot."
	msgAIBlocked       = "Gemini blocked this request. Please rephrase it."
	msgAIUnavailable   = "Gemini is temporarily unavailable. Please try again in a minute."
	msgAINoResponse    = "Could not get a response from Gemini. Please try later."
	msgAIUsage         = "Usage: /ai <your request>"
)

// Random
const (
	randomTemplate      = "🎲 Новый случайный фильм (еще не смотрели):\n<b>%s (%s)</b>\nЖанры: %s\nРейтинг: %s\nПочему: %s"
	randomAITemplate    = "🎲 Новый случайный фильм (еще не смотрели):\n<b>%s</b>\nПочему: %s"
	randomPlotTemplate  = "\nСюжет: %s"
	randomNoRatings     = "нет данных"
	randomDefaultReason = "Похоже по жанру и оценкам на ваши высоко оцененные фильмы."
	randomAIReason      = "Похоже по жанрам и оценкам в вашей таблице."
	msgRandomNoRecords  = "Пока нет записей. Добавьте фильмы, чтобы подбирать новые похожие."
	msgRandomNone       = "Сейчас не получилось подобрать новый фильм вне вашей таблицы.\nПроверьте доступ к TMDB/AI и попробуйте снова."
	btnRandomQuickAdd   = "➕ Добавить этот фильм в таблицу"
)

// Tokens
const (
	tokensHeader      = "🧮 Расход AI токенов"
	tokensResetNote   = "Счётчик токенов обнулён пользователем."
	tokensPersistNote = "Счётчик накапливается постоянно и не сбрасывается автоматически."
	tokensStoreLabel  = "База счётчика"
)

// Photo
const (
	msgPhotoNotFound     = "Фото не найдено. Отправьте постер фильма."
	msgPhotoNeedsKey     = "Для распознавания постера нужен GEMINI_API_KEY."
	msgPhotoDownload     = "Не удалось загрузить фото. Попробуйте ещё раз."
	msgPhotoUnavailable  = "Gemini сейчас недоступен для распознавания фото."
	msgPhotoParseFailed  = "Не удалось разобрать ответ Gemini по фото. Отправьте более чёткий постер."
	msgPhotoTitleUnsure  = "Не смог уверенно определить фильм по этому постеру. Попробуйте другое фото."
	msgPhotoPrefillStale = "Данные для быстрого добавления устарели. Отправьте постер заново."
	btnPhotoAddWatched   = "➕ Добавить в просмотренное"
)

// Export
const (
	msgExportEmpty   = "Пока нет записей для выгрузки."
	msgExportFailed  = "Не удалось собрать файл. Попробуйте позже."
	msgExportCaption = "📦 Выгрузка библиотеки: %d записей."
)

const (
	photoFoundTemplate = "🖼 Нашёл по постеру: <b>%s%s</b>"
	photoTypeMovie     = "фильм"
	photoTypeSeries    = "сериал"
	photoTypeUnknown   = "медиа"
	photoQuickAdd      = "Быстро добавить: /add %s;%s;%s;%s"
)
