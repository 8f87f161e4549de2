package neural

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"

	"github.com/eliseohh/moviebot/internal/config"
	"github.com/eliseohh/moviebot/internal/monitor"
	"github.com/eliseohh/moviebot/internal/request"
)

const geminiSystemPrompt = "Ты MovieBot. Отвечай на русском языке кратко и по делу. " +
	"Если спрашивают про фильмы или сериалы, давай практичные рекомендации."

// GeminiRequest is one call against a single model.
type GeminiRequest struct {
	Model       string
	System      string
	Temperature float32
	MaxTokens   int32
	Prompt      string
	// Image is sent after the prompt when set. ImageFormat is e.g. "jpeg".
	Image       []byte
	ImageFormat string
}

type GeminiResult struct {
	Text         string
	InputTokens  int64
	OutputTokens int64
}

// GeminiBackend performs a single generateContent call.
type GeminiBackend interface {
	Generate(ctx context.Context, req GeminiRequest) (GeminiResult, error)
}

type genaiBackend struct {
	client *genai.Client
}

func (b *genaiBackend) Generate(ctx context.Context, req GeminiRequest) (GeminiResult, error) {
	m := b.client.GenerativeModel(req.Model)
	m.SetTemperature(req.Temperature)
	m.SetMaxOutputTokens(req.MaxTokens)
	if req.System != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}
	parts := []genai.Part{genai.Text(req.Prompt)}
	if len(req.Image) > 0 {
		parts = append(parts, genai.ImageData(req.ImageFormat, req.Image))
	}

	resp, err := m.GenerateContent(ctx, parts...)
	if err != nil {
		var blocked *genai.BlockedError
		if errors.As(err, &blocked) {
			return GeminiResult{}, fmt.Errorf("%w: %v", ErrBlocked, err)
		}
		return GeminiResult{}, err
	}

	var res GeminiResult
	if u := resp.UsageMetadata; u != nil {
		res.InputTokens, res.OutputTokens = tokens(int64(u.PromptTokenCount), int64(u.CandidatesTokenCount), int64(u.TotalTokenCount))
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		var texts []string
		for _, p := range cand.Content.Parts {
			if t, ok := p.(genai.Text); ok && strings.TrimSpace(string(t)) != "" {
				texts = append(texts, strings.TrimSpace(string(t)))
			}
		}
		if len(texts) > 0 {
			res.Text = strings.Join(texts, "\n")
			break
		}
	}
	return res, nil
}

// Gemini generates text and describes images with model fallback.
type Gemini struct {
	backend      GeminiBackend
	closer       func() error
	models       []string
	maxRetries   int
	timeout      time.Duration
	totalTimeout time.Duration
	baseDelay    time.Duration
	usage        UsageRecorder
	logger       *slog.Logger
}

// NewGemini returns a disabled client when no API key is configured.
func NewGemini(ctx context.Context, cfg config.GeminiConfig, usage UsageRecorder, logger *slog.Logger) (*Gemini, error) {
	g := newGemini(nil, cfg, usage, logger)
	if cfg.APIKey == "" {
		return g, nil
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	g.backend = &genaiBackend{client: client}
	g.closer = client.Close
	return g, nil
}

// NewGeminiWithBackend is used by tests and tools that bring their own backend.
func NewGeminiWithBackend(backend GeminiBackend, cfg config.GeminiConfig, usage UsageRecorder, logger *slog.Logger) *Gemini {
	return newGemini(backend, cfg, usage, logger)
}

func newGemini(backend GeminiBackend, cfg config.GeminiConfig, usage UsageRecorder, logger *slog.Logger) *Gemini {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gemini{
		backend:      backend,
		models:       uniqueModels(cfg.Model, cfg.FallbackModels),
		maxRetries:   max(cfg.MaxRetries, 1),
		timeout:      cfg.Timeout,
		totalTimeout: max(cfg.TotalTimeout, cfg.Timeout),
		baseDelay:    time.Second,
		usage:        usage,
		logger:       logger,
	}
	if g.timeout <= 0 {
		g.timeout = 25 * time.Second
	}
	if g.totalTimeout <= 0 {
		g.totalTimeout = 45 * time.Second
	}
	return g
}

func uniqueModels(primary string, fallbacks []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range append([]string{primary}, fallbacks...) {
		m = strings.TrimSpace(m)
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

func (g *Gemini) Enabled() bool { return g != nil && g.backend != nil }

func (g *Gemini) Close() error {
	if g == nil || g.closer == nil {
		return nil
	}
	return g.closer()
}

func (g *Gemini) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	return g.run(ctx, GeminiRequest{
		System:      opts.System,
		Temperature: opts.Temperature,
		MaxTokens:   opts.maxTokens(),
		Prompt:      prompt,
	})
}

// DescribeImage sends a JPEG with an instruction prompt.
func (g *Gemini) DescribeImage(ctx context.Context, jpeg []byte, prompt string, opts Options) (string, error) {
	if len(jpeg) == 0 {
		return "", errors.New("gemini: empty image")
	}
	return g.run(ctx, GeminiRequest{
		System:      opts.System,
		Temperature: opts.Temperature,
		MaxTokens:   opts.maxTokens(),
		Prompt:      prompt,
		Image:       jpeg,
		ImageFormat: "jpeg",
	})
}

func (g *Gemini) run(ctx context.Context, req GeminiRequest) (string, error) {
	if !g.Enabled() {
		return "", fmt.Errorf("gemini: %w", ErrNotConfigured)
	}
	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.Prompt == "" {
		return "", errors.New("gemini: prompt cannot be empty")
	}
	if req.System == "" {
		req.System = geminiSystemPrompt
	}

	ctx, cancel := context.WithTimeout(ctx, g.totalTimeout)
	defer cancel()

	var lastErr error
models:
	for _, model := range g.models {
		req.Model = model
		for attempt := 1; attempt <= g.maxRetries; attempt++ {
			if ctx.Err() != nil {
				break models
			}
			callCtx, callCancel := context.WithTimeout(ctx, g.timeout)
			res, err := g.backend.Generate(callCtx, req)
			callCancel()

			if err != nil {
				if errors.Is(err, ErrBlocked) {
					monitor.Record("gemini", err)
					return "", fmt.Errorf("gemini: %w", err)
				}
				lastErr = fmt.Errorf("model=%s: %w", model, err)
				g.logger.Warn("gemini request failed", slog.String("model", model), slog.Int("attempt", attempt), slog.Any("error", err))
				if attempt < g.maxRetries && retryable(err) {
					if request.Sleep(ctx, request.Backoff(g.baseDelay, attempt)) != nil {
						break models
					}
					continue
				}
				continue models
			}

			if g.usage != nil {
				if err := g.usage.RecordUsage(ctx, "gemini", res.InputTokens, res.OutputTokens); err != nil {
					g.logger.Warn("failed to record token usage", slog.Any("error", err))
				}
			}
			if res.Text != "" {
				return res.Text, nil
			}
			lastErr = fmt.Errorf("model=%s: %w", model, ErrEmptyResponse)
			continue models
		}
	}

	if lastErr == nil {
		lastErr = ctx.Err()
	}
	err := fmt.Errorf("gemini %w: %w", ErrUnavailable, lastErr)
	if errors.Is(lastErr, ErrEmptyResponse) && !errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("gemini: %w", lastErr)
	}
	monitor.Record("gemini", err)
	return "", err
}

func retryable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var se *request.StatusError
	if errors.As(err, &se) {
		return retryableHTTP(se.Code)
	}
	ae, ok := apierror.FromError(err)
	if !ok {
		return false
	}
	if code := ae.HTTPCode(); code > 0 {
		return retryableHTTP(code)
	}
	if st := ae.GRPCStatus(); st != nil {
		switch st.Code() {
		case codes.ResourceExhausted, codes.Unavailable, codes.Internal, codes.DeadlineExceeded:
			return true
		}
	}
	return false
}

func retryableHTTP(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}
