// Package request provides JSON-over-HTTP calls with retries for the
// metadata and AI providers.
package request

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/eliseohh/moviebot/internal/monitor"
)

const userAgent = "moviebot/1.0"

// DefaultClient is a [http.Client] with nice defaults.
var DefaultClient = &http.Client{
	Timeout: 15 * time.Second,
}

// Params defines the parameters needed for making an HTTP request.
type Params struct {
	Method  string
	URL     string
	Query   url.Values
	Headers map[string]string
	// Body is marshaled to JSON. Ignored when RawBody is set.
	Body any
	// RawBody is sent as is with ContentType.
	RawBody     []byte
	ContentType string

	HTTPClient *http.Client
	// MaxRetries is the number of attempts; values below 1 mean one attempt.
	MaxRetries int
	// BaseDelay is the first backoff pause, doubled on every retry.
	BaseDelay time.Duration
	// Source names the provider in errors and in the monitor ring.
	Source string
	// Scrubber removes secrets (API keys in query strings) from error messages.
	Scrubber *strings.Replacer
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Source string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 300 {
		body = body[:300] + "..."
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Source, e.Code, strings.TrimSpace(body))
}

// Retryable reports whether the status code is worth another attempt.
func Retryable(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

type scrubbedError struct {
	err      error
	scrubber *strings.Replacer
}

func (se *scrubbedError) Error() string {
	if se.scrubber != nil {
		return se.scrubber.Replace(se.err.Error())
	}
	return se.err.Error()
}

func (se *scrubbedError) Unwrap() error { return se.err }

// Backoff returns the pause before attempt+1: base * 2^(attempt-1).
func Backoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	if attempt < 1 {
		attempt = 1
	}
	return base << (attempt - 1)
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// JSON performs the request and unmarshals the JSON response body into Response.
func JSON[Response any](ctx context.Context, p Params) (Response, error) {
	var resp Response
	b, err := Do(ctx, p)
	if err != nil {
		return resp, err
	}
	if err := json.Unmarshal(b, &resp); err != nil {
		return resp, p.fail(fmt.Errorf("%s: decode response: %w", p.source(), err))
	}
	return resp, nil
}

// Do performs the request with retries and returns the raw 2xx body.
func Do(ctx context.Context, p Params) ([]byte, error) {
	if p.Method == "" {
		p.Method = http.MethodGet
	}
	body := p.RawBody
	contentType := p.ContentType
	if body == nil && p.Body != nil {
		data, err := json.Marshal(p.Body)
		if err != nil {
			return nil, p.fail(err)
		}
		body = data
		contentType = "application/json"
	}

	target := p.URL
	if len(p.Query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + p.Query.Encode()
	}

	attempts := p.MaxRetries
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		b, retry, err := p.once(ctx, target, body, contentType)
		if err == nil {
			return b, nil
		}
		lastErr = err
		if !retry || attempt == attempts {
			break
		}
		if err := Sleep(ctx, Backoff(p.BaseDelay, attempt)); err != nil {
			lastErr = err
			break
		}
	}
	return nil, p.fail(lastErr)
}

func (p Params) once(ctx context.Context, target string, body []byte, contentType string) ([]byte, bool, error) {
	var br io.Reader
	if body != nil {
		br = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, p.Method, target, br)
	if err != nil {
		return nil, false, err
	}
	for k, v := range p.Headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil && contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	httpc := DefaultClient
	if p.HTTPClient != nil {
		httpc = p.HTTPClient
	}
	res, err := httpc.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, fmt.Errorf("%s: %w", p.source(), err)
	}
	defer res.Body.Close()

	b, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, true, fmt.Errorf("%s: read body: %w", p.source(), err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, Retryable(res.StatusCode), &StatusError{Source: p.source(), Code: res.StatusCode, Body: string(b)}
	}
	return b, false, nil
}

func (p Params) source() string {
	if p.Source == "" {
		return "http"
	}
	return p.Source
}

func (p Params) fail(err error) error {
	err = &scrubbedError{err: err, scrubber: p.Scrubber}
	monitor.Record(p.source(), err)
	return err
}
