package bot

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"

	"github.com/eliseohh/moviebot/internal/config"
	"github.com/eliseohh/moviebot/internal/index"
	"github.com/eliseohh/moviebot/internal/movie"
	"github.com/eliseohh/moviebot/internal/neural"
)

const testChat int64 = 42

// MockContext records what handlers send back.
type MockContext struct {
	tele.Context
	PayloadVal   string
	TextVal      string
	CallbackData string
	Voice        *tele.Voice
	Photo        *tele.Photo

	Sent      []interface{}
	Markups   []*tele.ReplyMarkup
	Responses []*tele.CallbackResponse
}

func (m *MockContext) Message() *tele.Message {
	return &tele.Message{Payload: m.PayloadVal, Text: m.TextVal, Voice: m.Voice, Photo: m.Photo}
}

func (m *MockContext) Send(what interface{}, opts ...interface{}) error {
	m.Sent = append(m.Sent, what)
	var markup *tele.ReplyMarkup
	for _, o := range opts {
		if rm, ok := o.(*tele.ReplyMarkup); ok {
			markup = rm
		}
	}
	m.Markups = append(m.Markups, markup)
	return nil
}

func (m *MockContext) Chat() *tele.Chat { return &tele.Chat{ID: testChat} }

func (m *MockContext) Callback() *tele.Callback {
	if m.CallbackData == "" {
		return nil
	}
	return &tele.Callback{Data: m.CallbackData}
}

func (m *MockContext) Respond(resp ...*tele.CallbackResponse) error {
	m.Responses = append(m.Responses, resp...)
	return nil
}

func (m *MockContext) Notify(tele.ChatAction) error { return nil }
func (m *MockContext) Text() string                 { return m.TextVal }
func (m *MockContext) Args() []string               { return strings.Fields(m.PayloadVal) }

// Last returns the last sent message as text; photos and documents yield
// their caption.
func (m *MockContext) Last() string {
	if len(m.Sent) == 0 {
		return ""
	}
	switch v := m.Sent[len(m.Sent)-1].(type) {
	case string:
		return v
	case *tele.Photo:
		return v.Caption
	case *tele.Document:
		return v.Caption
	}
	return fmt.Sprint(m.Sent[len(m.Sent)-1])
}

func (m *MockContext) LastMarkup() *tele.ReplyMarkup {
	if len(m.Markups) == 0 {
		return nil
	}
	return m.Markups[len(m.Markups)-1]
}

type fakeLibrary struct {
	mu        sync.Mutex
	records   []movie.Record
	readErr   error
	appendErr error
	appended  []movie.Entry
	// hang makes every call block until its context is done.
	hang bool
	// onAppend runs before a successful append is recorded.
	onAppend func()
}

func (f *fakeLibrary) Records(ctx context.Context) ([]movie.Record, error) {
	if f.hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	return append([]movie.Record(nil), f.records...), nil
}

func (f *fakeLibrary) Append(ctx context.Context, e movie.Entry) error {
	if f.hang {
		<-ctx.Done()
		return ctx.Err()
	}
	if f.onAppend != nil {
		f.onAppend()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	f.appended = append(f.appended, e)
	return nil
}

func (f *fakeLibrary) CacheAge() (int, time.Duration, bool) {
	return len(f.records), time.Minute, true
}

type fakeBackend struct {
	mu      sync.Mutex
	answers []string
	err     error
	reqs    []neural.GeminiRequest
}

func (f *fakeBackend) Generate(_ context.Context, req neural.GeminiRequest) (neural.GeminiResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return neural.GeminiResult{}, f.err
	}
	answer := ""
	if len(f.answers) > 0 {
		answer = f.answers[0]
		if len(f.answers) > 1 {
			f.answers = f.answers[1:]
		}
	}
	return neural.GeminiResult{Text: answer, InputTokens: 100, OutputTokens: 20}, nil
}

type fakeNotifier struct {
	sent map[int64][]string
}

func (f *fakeNotifier) Send(to tele.Recipient, what interface{}, _ ...interface{}) (*tele.Message, error) {
	if f.sent == nil {
		f.sent = make(map[int64][]string)
	}
	var id int64
	fmt.Sscan(to.Recipient(), &id)
	f.sent[id] = append(f.sent[id], fmt.Sprint(what))
	return &tele.Message{}, nil
}

var testNow = time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *index.DB {
	t.Helper()
	db, err := index.NewDB(filepath.Join(t.TempDir(), "bot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestBot(t *testing.T, lib *fakeLibrary, backend *fakeBackend) (*Bot, *index.DB) {
	t.Helper()
	db := newTestDB(t)
	deps := Deps{Library: lib, DB: db}
	if backend != nil {
		deps.Gemini = neural.NewGeminiWithBackend(backend, config.GeminiConfig{Model: "gemini-test"}, db, nil)
	}
	b := newBot(Config{DBPath: "/data/moviebot.db"}, deps)
	b.now = func() time.Time { return testNow }
	b.saveRetryDelay = 0
	b.download = func(*tele.File) ([]byte, error) { return []byte("image"), nil }
	return b, db
}

func sampleRecords() []movie.Record {
	return []movie.Record{
		{Added: "2024-03-01 20:00", Film: "Интерстеллар", Year: "2014", Genre: "фантастика", Rating: "9", Type: "фильм", Owner: "муж"},
		{Added: "2024-03-05 21:00", Film: "Тьма", Year: "2017", Genre: "триллер, драма", Rating: "8", Type: "сериал", Owner: "жена"},
		{Added: "2024-02-10 19:00", Film: "Дюна", Year: "2021", Genre: "фантастика", Rating: "7.5", Type: "фильм", Owner: "муж"},
	}
}

func TestStatsAndWinner(t *testing.T) {
	b, _ := newTestBot(t, &fakeLibrary{records: sampleRecords()}, nil)

	ctx := &MockContext{}
	require.NoError(t, b.handleStats(ctx))
	assert.Equal(t, movie.ComputeStats(sampleRecords()).Text(), ctx.Last())

	ctx = &MockContext{PayloadVal: "-1"}
	require.NoError(t, b.handleWinner(ctx))
	want := movie.Winner(sampleRecords(), movie.MonthStart(testNow, -1)).Text()
	assert.Equal(t, want, ctx.Last())
	require.NotNil(t, ctx.LastMarkup())
	assert.Equal(t, "winner_month:-2", ctx.LastMarkup().InlineKeyboard[0][0].Data)
	assert.Equal(t, "winner_month:0", ctx.LastMarkup().InlineKeyboard[0][2].Data)

	ctx = &MockContext{PayloadVal: "5"}
	require.NoError(t, b.handleWinner(ctx))
	assert.Equal(t, movie.Winner(sampleRecords(), movie.MonthStart(testNow, 0)).Text(), ctx.Last())
}

func TestTableUnavailable(t *testing.T) {
	b, _ := newTestBot(t, &fakeLibrary{readErr: errors.New("quota")}, nil)

	ctx := &MockContext{}
	require.NoError(t, b.handleStats(ctx))
	assert.Equal(t, fmt.Sprintf(msgTableUnavailable, "запрос"), ctx.Last())
}

func TestRecordsFallBackToMirror(t *testing.T) {
	lib := &fakeLibrary{readErr: errors.New("sheet down")}
	b, db := newTestBot(t, lib, nil)
	_, err := index.NewIndexer(db, nil).Sync(context.Background(), sampleRecords())
	require.NoError(t, err)

	ctx := &MockContext{PayloadVal: "дюна"}
	require.NoError(t, b.handleSearch(ctx))
	assert.Contains(t, ctx.Last(), "Дюна (2021)")
}

func TestHangingSheetReadServedFromMirror(t *testing.T) {
	b, db := newTestBot(t, &fakeLibrary{hang: true}, nil)
	b.readTimeout = 20 * time.Millisecond
	_, err := index.NewIndexer(db, nil).Sync(context.Background(), sampleRecords())
	require.NoError(t, err)

	ctx := &MockContext{PayloadVal: "дюна"}
	require.NoError(t, b.handleSearch(ctx))
	assert.Contains(t, ctx.Last(), "Дюна (2021)")
}

func TestTokensPanel(t *testing.T) {
	b, db := newTestBot(t, &fakeLibrary{}, nil)
	bg := context.Background()
	require.NoError(t, db.RecordUsage(bg, "gemini", 1500, 300))
	require.NoError(t, db.RecordUsage(bg, "mistral", 10, 5))

	ctx := &MockContext{}
	require.NoError(t, b.handleTokens(ctx))
	text := ctx.Last()
	assert.Contains(t, text, "• Gemini: in 1 500, out 300, запросов 1")
	assert.Contains(t, text, "• Mistral: in 10, out 5, запросов 1")
	assert.Contains(t, text, "Итого: in 1 510, out 305, запросов 2")
	assert.Contains(t, text, "База счётчика: /data/moviebot.db")
	assert.NotContains(t, text, tokensResetNote)

	ctx = &MockContext{CallbackData: cbTokenReset}
	require.NoError(t, b.handleCallback(ctx))
	assert.Contains(t, ctx.Last(), tokensResetNote)
	assert.Contains(t, ctx.Last(), "Итого: in 0, out 0, запросов 0")
	assert.Len(t, ctx.Responses, 1)
}

func TestRecommendUsesModelAnswer(t *testing.T) {
	backend := &fakeBackend{answers: []string{
		"1. Inception (2010) - сны внутри снов\n2. Arrival (2016) - лингвист и пришельцы\n3. Titanic (1997) - старый",
	}}
	lib := &fakeLibrary{records: sampleRecords()}
	b, db := newTestBot(t, lib, backend)

	ctx := &MockContext{PayloadVal: "что-то про космос"}
	require.NoError(t, b.handleRecommend(ctx))

	assert.Equal(t, msgRecommendLoading, ctx.Sent[0])
	text := ctx.Last()
	assert.Contains(t, text, "<b>Inception (2010)</b>")
	assert.Contains(t, text, "<b>Arrival (2016)</b>")
	assert.NotContains(t, text, "Titanic")

	markup := ctx.LastMarkup()
	require.NotNil(t, markup)
	require.Len(t, markup.InlineKeyboard, 2)
	assert.Equal(t, "/add Inception;2010;жанр;8", markup.InlineKeyboard[0][0].InlineQueryChat)

	require.Len(t, backend.reqs, 1)
	assert.Contains(t, backend.reqs[0].Prompt, "Recommend movies for this preference: что-то про космос")
	assert.Equal(t, []string{"Inception (2010)", "Arrival (2016)"}, b.recent.Get("42"))

	snap, err := db.UsageSnapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), snap.Total.Requests)
}

func TestAIErrors(t *testing.T) {
	b, _ := newTestBot(t, &fakeLibrary{records: sampleRecords()}, nil)

	ctx := &MockContext{}
	require.NoError(t, b.handleAI(ctx))
	assert.Equal(t, msgAIUsage, ctx.Last())

	ctx = &MockContext{PayloadVal: "триллер"}
	require.NoError(t, b.handleAI(ctx))
	assert.Equal(t, msgAINotConfigured, ctx.Last())

	assert.Equal(t, msgAIBlocked, aiErrorText(fmt.Errorf("gemini: %w", neural.ErrBlocked)))
	assert.Equal(t, msgAIUnavailable, aiErrorText(&neural.ChainError{Errs: []error{neural.ErrUnavailable}}))
	assert.Equal(t, msgAINoResponse, aiErrorText(errors.New("boom")))
}

func TestRandomSinglePick(t *testing.T) {
	backend := &fakeBackend{answers: []string{
		"Интерстеллар (2014) - уже смотрели",
		"Прибытие (2016) - похожая атмосфера и научная фантастика",
	}}
	b, _ := newTestBot(t, &fakeLibrary{records: sampleRecords()}, backend)

	ctx := &MockContext{}
	require.NoError(t, b.handleRandom(ctx))
	assert.Contains(t, ctx.Last(), "<b>Прибытие (2016)</b>")
	assert.Contains(t, ctx.Last(), "похожая атмосфера")
	require.NotNil(t, ctx.LastMarkup())
	assert.Equal(t, "/add Прибытие;2016;жанр;8", ctx.LastMarkup().InlineKeyboard[0][0].InlineQueryChat)
	assert.Len(t, backend.reqs, 2)
}

func TestRandomWithoutRecords(t *testing.T) {
	b, _ := newTestBot(t, &fakeLibrary{}, nil)
	ctx := &MockContext{}
	require.NoError(t, b.handleRandom(ctx))
	assert.Equal(t, msgRandomNoRecords, ctx.Last())
}

func TestPhotoPrefillStartsAddFlow(t *testing.T) {
	backend := &fakeBackend{answers: []string{
		"```json\n{\"title\":\"Дюна\",\"year\":\"2021\",\"media_type\":\"movie\",\"confidence\":87,\"reason\":\"песок и Арракис\"}\n```",
	}}
	b, _ := newTestBot(t, &fakeLibrary{}, backend)

	ctx := &MockContext{Photo: &tele.Photo{File: tele.File{FileID: "poster"}}}
	require.NoError(t, b.handlePhoto(ctx))
	text := ctx.Last()
	assert.Contains(t, text, "🖼 Нашёл по постеру: <b>Дюна (2021)</b>")
	assert.Contains(t, text, "Уверенность Gemini: 87%")
	assert.Contains(t, text, "Быстро добавить: /add Дюна;2021;жанр;8")
	assert.Equal(t, cbAddFromPoster, ctx.LastMarkup().InlineKeyboard[0][0].Data)
	require.Len(t, backend.reqs, 1)
	assert.Equal(t, []byte("image"), backend.reqs[0].Image)

	// Genre and rating are unknown without catalog keys, so the flow asks
	// for the genre first.
	ctx = &MockContext{CallbackData: cbAddFromPoster}
	require.NoError(t, b.handleCallback(ctx))
	assert.Equal(t, promptGenre, ctx.Last())
	s, ok := b.sessions.get(testChat)
	require.True(t, ok)
	assert.Equal(t, "песок и Арракис", s.entry.Comment)
	assert.Equal(t, movie.TypeFilm, s.entry.Type)
}

func TestPhotoErrors(t *testing.T) {
	b, _ := newTestBot(t, &fakeLibrary{}, nil)
	ctx := &MockContext{Photo: &tele.Photo{}}
	require.NoError(t, b.handlePhoto(ctx))
	assert.Equal(t, msgPhotoNeedsKey, ctx.Last())

	backend := &fakeBackend{answers: []string{`{"title":"","confidence":10}`}}
	b, _ = newTestBot(t, &fakeLibrary{}, backend)
	ctx = &MockContext{Photo: &tele.Photo{}}
	require.NoError(t, b.handlePhoto(ctx))
	assert.Equal(t, msgPhotoTitleUnsure, ctx.Last())

	ctx = &MockContext{CallbackData: cbAddFromPoster}
	b.sessions = newSessions()
	require.NoError(t, b.handleCallback(ctx))
	assert.Equal(t, msgPhotoPrefillStale, ctx.Last())
}

func TestFlushOfflineNotifiesChats(t *testing.T) {
	lib := &fakeLibrary{}
	b, db := newTestBot(t, lib, nil)
	notifier := &fakeNotifier{}
	b.notifier = notifier
	bg := context.Background()

	_, err := db.EnqueueOffline(bg, movie.Entry{Film: "A", Year: "2020", Genre: "драма", Rating: "7"}, 7)
	require.NoError(t, err)
	_, err = db.EnqueueOffline(bg, movie.Entry{Film: "B", Year: "2021", Genre: "драма", Rating: "8"}, 7)
	require.NoError(t, err)

	n, err := b.FlushOffline(bg)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, lib.appended, 2)
	assert.Equal(t, "A", lib.appended[0].Film)
	assert.Equal(t, []string{fmt.Sprintf(msgOfflineSynced, 2)}, notifier.sent[7])

	count, err := db.OfflineCount(bg)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestDiagnosticsLines(t *testing.T) {
	b, _ := newTestBot(t, &fakeLibrary{records: sampleRecords()}, &fakeBackend{answers: []string{"OK"}})

	text := b.diagnostics(context.Background())
	lines := strings.Split(text, "\n")
	require.GreaterOrEqual(t, len(lines), 6)
	assert.Equal(t, "🩺 Диагностика сервисов", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "• Gemini: OK ("), lines[1])
	assert.Equal(t, "• Mistral: disabled", lines[2])
	assert.Equal(t, "• TMDB: DISABLED", lines[3])
	assert.Equal(t, "• Kinopoisk: DISABLED", lines[4])
	assert.Contains(t, lines[5], "cache_rows=3")
}
