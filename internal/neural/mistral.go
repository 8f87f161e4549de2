package neural

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/eliseohh/moviebot/internal/config"
	"github.com/eliseohh/moviebot/internal/request"
)

const (
	mistralBaseURL      = "https://api.mistral.ai"
	mistralSystemPrompt = "Ты MovieBot. Отвечай кратко, на русском и строго по задаче."
)

// Mistral is the chat fallback and the voice transcription backend.
type Mistral struct {
	BaseURL    string
	APIKey     string
	Model      string
	AudioModel string
	MaxRetries int
	HTTPClient *http.Client

	usage  UsageRecorder
	logger *slog.Logger
}

func NewMistral(cfg config.MistralConfig, usage UsageRecorder, logger *slog.Logger) *Mistral {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mistral{
		BaseURL:    mistralBaseURL,
		APIKey:     cfg.APIKey,
		Model:      cfg.Model,
		AudioModel: cfg.AudioModel,
		MaxRetries: max(cfg.MaxRetries, 1),
		usage:      usage,
		logger:     logger,
	}
}

func (m *Mistral) Enabled() bool { return m != nil && m.APIKey != "" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
	MaxTokens   int32         `json:"max_tokens"`
}

type mistralUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content json.RawMessage `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *mistralUsage `json:"usage"`
}

type transcriptionResponse struct {
	Text  string        `json:"text"`
	Usage *mistralUsage `json:"usage"`
}

// content is either a string or a list of {type, text} chunks.
func (r chatResponse) text() string {
	if len(r.Choices) == 0 {
		return ""
	}
	raw := r.Choices[0].Message.Content
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var chunks []struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &chunks); err != nil {
		return ""
	}
	var parts []string
	for _, c := range chunks {
		if t := strings.TrimSpace(c.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}

func (m *Mistral) params(path string) request.Params {
	return request.Params{
		Method:     http.MethodPost,
		URL:        strings.TrimRight(m.BaseURL, "/") + path,
		Headers:    map[string]string{"Authorization": "Bearer " + m.APIKey},
		HTTPClient: m.HTTPClient,
		MaxRetries: m.MaxRetries,
		Source:     "mistral",
		Scrubber:   strings.NewReplacer(m.APIKey, "[MISTRAL_KEY]"),
	}
}

func (m *Mistral) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	if !m.Enabled() {
		return "", fmt.Errorf("mistral: %w", ErrNotConfigured)
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("mistral: prompt cannot be empty")
	}
	system := opts.System
	if system == "" {
		system = mistralSystemPrompt
	}

	p := m.params("/v1/chat/completions")
	p.Body = chatRequest{
		Model: m.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
		Temperature: opts.Temperature,
		MaxTokens:   opts.maxTokens(),
	}
	resp, err := request.JSON[chatResponse](ctx, p)
	if err != nil {
		return "", err
	}
	m.record(ctx, resp.Usage, false)

	text := resp.text()
	if text == "" {
		return "", fmt.Errorf("mistral: %w", ErrEmptyResponse)
	}
	return text, nil
}

// Transcribe converts a voice message to Russian text.
func (m *Mistral) Transcribe(ctx context.Context, audio []byte, fileName string) (string, error) {
	if !m.Enabled() {
		return "", fmt.Errorf("mistral: %w", ErrNotConfigured)
	}
	if len(audio) == 0 {
		return "", errors.New("mistral: audio payload is empty")
	}
	if fileName == "" {
		fileName = "voice.ogg"
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	w.WriteField("model", m.AudioModel)
	w.WriteField("language", "ru")
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, fileName))
	h.Set("Content-Type", "audio/ogg")
	fw, err := w.CreatePart(h)
	if err != nil {
		return "", err
	}
	if _, err := fw.Write(audio); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	p := m.params("/v1/audio/transcriptions")
	p.RawBody = buf.Bytes()
	p.ContentType = w.FormDataContentType()
	resp, err := request.JSON[transcriptionResponse](ctx, p)
	if err != nil {
		return "", err
	}
	m.record(ctx, resp.Usage, true)

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", fmt.Errorf("mistral transcription: %w", ErrEmptyResponse)
	}
	return text, nil
}

func (m *Mistral) record(ctx context.Context, u *mistralUsage, onlyNonZero bool) {
	if m.usage == nil {
		return
	}
	var in, out int64
	if u != nil {
		in, out = tokens(u.PromptTokens, u.CompletionTokens, u.TotalTokens)
	}
	if onlyNonZero && in == 0 && out == 0 {
		return
	}
	if err := m.usage.RecordUsage(ctx, "mistral", in, out); err != nil {
		m.logger.Warn("failed to record token usage", slog.Any("error", err))
	}
}
