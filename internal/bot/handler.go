package bot

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"sync"
	"time"

	tele "gopkg.in/telebot.v3"

	"github.com/eliseohh/moviebot/internal/catalog"
	"github.com/eliseohh/moviebot/internal/config"
	"github.com/eliseohh/moviebot/internal/index"
	"github.com/eliseohh/moviebot/internal/logging"
	"github.com/eliseohh/moviebot/internal/monitor"
	"github.com/eliseohh/moviebot/internal/movie"
	"github.com/eliseohh/moviebot/internal/neural"
	"github.com/eliseohh/moviebot/internal/recommend"
)

// Library is the spreadsheet the household keeps its movies in.
// *sheet.Client satisfies it.
type Library interface {
	Records(ctx context.Context) ([]movie.Record, error)
	Append(ctx context.Context, entry movie.Entry) error
	CacheAge() (int, time.Duration, bool)
}

// Vision recognizes posters. *neural.Gemini satisfies it.
type Vision interface {
	neural.TextGenerator
	DescribeImage(ctx context.Context, jpeg []byte, prompt string, opts neural.Options) (string, error)
}

// Speech transcribes and parses voice messages. *neural.Mistral satisfies it.
type Speech interface {
	neural.TextGenerator
	Transcribe(ctx context.Context, audio []byte, fileName string) (string, error)
}

type Deps struct {
	Library Library
	DB      *index.DB
	Catalog *catalog.Catalog
	Gemini  Vision
	Mistral Speech
	Logger  *slog.Logger
}

type Bot struct {
	api *tele.Bot
	db  *index.DB
	cfg Config

	library Library
	catalog *catalog.Catalog
	gemini  Vision
	mistral Speech
	text    neural.TextGenerator
	logger  *slog.Logger

	sessions *sessions
	recent   *recommend.RecentStore
	now      func() time.Time

	rndMu sync.Mutex
	rnd   *rand.Rand

	// download fetches a Telegram file; tests replace it.
	download func(*tele.File) ([]byte, error)
	// notifier overrides the API for offline sync notices.
	notifier Notifier
	// saveRetryDelay is the pause between the two append attempts.
	saveRetryDelay time.Duration
	// appendTimeout bounds a single append attempt.
	appendTimeout time.Duration
	// readTimeout bounds a sheet read before the mirror takes over.
	readTimeout time.Duration
}

type Config struct {
	Token string
	// DBPath is shown in the token usage panel.
	DBPath string
}

func New(cfg Config, deps Deps) (*Bot, error) {
	b := newBot(cfg, deps)
	pref := tele.Settings{
		Token:   cfg.Token,
		Poller:  &tele.LongPoller{Timeout: 10 * time.Second},
		OnError: b.onError,
	}

	api, err := tele.NewBot(pref)
	if err != nil {
		return nil, err
	}
	b.api = api
	b.download = b.fetchFile
	b.register()
	return b, nil
}

// newBot wires everything except the Telegram API.
func newBot(cfg Config, deps Deps) *Bot {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cat := deps.Catalog
	if cat == nil {
		cat = catalog.New(config.MetadataConfig{}, logger)
	}
	now := time.Now()
	return &Bot{
		db:             deps.DB,
		cfg:            cfg,
		library:        deps.Library,
		catalog:        cat,
		gemini:         deps.Gemini,
		mistral:        deps.Mistral,
		text:           neural.NewChain(deps.Gemini, deps.Mistral),
		logger:         logger,
		sessions:       newSessions(),
		recent:         recommend.NewRecentStore(),
		now:            time.Now,
		rnd:            rand.New(rand.NewPCG(uint64(now.UnixNano()), uint64(now.Unix()))),
		saveRetryDelay: time.Second,
		appendTimeout:  30 * time.Second,
		readTimeout:    20 * time.Second,
	}
}

func (b *Bot) Start() {
	b.logger.Info("bot started", slog.String("username", b.api.Me.Username))
	b.api.Start()
}

func (b *Bot) Stop() {
	b.api.Stop()
}

func (b *Bot) register() {
	commands := make([]tele.Command, 0, len(helpOrder)+len(extraCommands))
	for _, h := range append(append([]helpSpec{}, helpOrder...), extraCommands...) {
		commands = append(commands, tele.Command{Text: h.cmd, Description: h.desc})
	}
	if err := b.api.SetCommands(commands); err != nil {
		b.logger.Warn("set commands failed", slog.Any("error", err))
	}

	// Menus
	b.api.Handle(slash(cmdStart), b.handleStart)
	b.api.Handle(slash(cmdMenu), b.handleMenu)
	b.api.Handle(slash(cmdHelp), b.handleHelp)

	// Library
	b.api.Handle(slash(cmdList), b.handleList)
	b.api.Handle(slash(cmdTop), b.handleTop)
	b.api.Handle(slash(cmdRecent), b.handleRecent)
	b.api.Handle(slash(cmdFind), b.handleFind)
	b.api.Handle(slash(cmdSearch), b.handleSearch)
	b.api.Handle(slash(cmdOwner), b.handleOwner)
	b.api.Handle(slash(cmdExport), b.handleExport)

	// Stats
	b.api.Handle(slash(cmdStats), b.handleStats)
	b.api.Handle(slash(cmdWinner), b.handleWinner)
	b.api.Handle(slash(cmdTokens), b.handleTokens)
	b.api.Handle(slash(cmdDiag), b.handleDiag)

	// Add flow
	b.api.Handle(slash(cmdAdd), b.handleAdd)
	b.api.Handle(slash(cmdCancel), b.handleCancel)
	b.api.Handle(tele.OnVoice, b.handleVoice)
	b.api.Handle(tele.OnPhoto, b.handlePhoto)

	// AI
	b.registerAI()

	b.api.Handle(tele.OnCallback, b.handleCallback)
	b.api.Handle(tele.OnText, b.handleText)
}

func (b *Bot) onError(err error, c tele.Context) {
	monitor.Record("bot", err)
	logging.LogError(b.logger, "handler failed", err)
	if c != nil && c.Chat() != nil {
		_ = c.Send(msgTemporaryError)
	}
}

// fetchFile downloads a Telegram file into memory.
func (b *Bot) fetchFile(f *tele.File) ([]byte, error) {
	rc, err := b.api.File(f)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, rc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// -- Shared helpers --

func (b *Bot) sendHTML(c tele.Context, text string, markup *tele.ReplyMarkup) error {
	if markup != nil {
		return c.Send(text, tele.ModeHTML, tele.NoPreview, markup)
	}
	return c.Send(text, tele.ModeHTML, tele.NoPreview)
}

func (b *Bot) sendPanel(c tele.Context, text string, markup *tele.ReplyMarkup) error {
	if markup == nil {
		return c.Send(text)
	}
	return c.Send(text, markup)
}

// respond acknowledges a callback query; plain messages are ignored.
func (b *Bot) respond(c tele.Context, text ...string) {
	if c.Callback() == nil {
		return
	}
	resp := &tele.CallbackResponse{}
	if len(text) > 0 {
		resp.Text = text[0]
	}
	if err := c.Respond(resp); err != nil {
		b.logger.Debug("callback answer failed", slog.Any("error", err))
	}
}

func (b *Bot) visionEnabled() bool { return b.gemini != nil && b.gemini.Enabled() }

func (b *Bot) speechEnabled() bool { return b.mistral != nil && b.mistral.Enabled() }

func (b *Bot) typing(c tele.Context) {
	_ = c.Notify(tele.Typing)
}

func chatID(c tele.Context) int64 {
	if chat := c.Chat(); chat != nil {
		return chat.ID
	}
	return 0
}

func chatScope(c tele.Context) string {
	return strconv.FormatInt(chatID(c), 10)
}

// loadRecords reads the sheet and falls back to the local mirror when the
// sheet is unreachable.
func (b *Bot) loadRecords(ctx context.Context) ([]movie.Record, error) {
	if b.library == nil {
		return nil, fmt.Errorf("library is not configured")
	}
	readCtx, cancel := context.WithTimeout(ctx, b.readTimeout)
	records, err := b.library.Records(readCtx)
	cancel()
	if err == nil {
		return records, nil
	}
	logging.LogError(b.logger, "sheet read failed", err)
	if b.db != nil {
		mirror, mErr := b.db.MirrorRecords(ctx)
		if mErr == nil && len(mirror) > 0 {
			b.logger.Info("serving records from mirror", slog.Int("rows", len(mirror)))
			return mirror, nil
		}
	}
	return nil, err
}

// safeRecords answers with the table-unavailable text when nothing could be
// read; ok is false in that case.
func (b *Bot) safeRecords(c tele.Context, action string) ([]movie.Record, bool) {
	records, err := b.loadRecords(context.Background())
	if err != nil {
		if action == "" {
			action = "запрос"
		}
		_ = c.Send(fmt.Sprintf(msgTableUnavailable, action))
		return nil, false
	}
	return records, true
}
