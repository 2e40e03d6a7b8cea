package remote

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/dgnsrekt/subvoice/internal/retry"
	"golang.org/x/time/rate"
)

// Default endpoint locations.
const (
	DefaultTranslateURL = "https://translate.googleapis.com/translate_a/single"
	DefaultSpeechURL    = "https://translate.google.com/translate_tts"
)

const (
	// clientID is the client identifier both endpoints expect.
	clientID = "gtx"

	userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36"

	maxResponseSize = 10 * 1024 * 1024
)

// Config configures the remote clients.
type Config struct {
	// Endpoint overrides, mostly for tests.
	TranslateURL string
	SpeechURL    string

	HTTPClient *http.Client

	// Minimum spacing between two requests to the same endpoint. Zero
	// disables rate limiting; DefaultConfig uses 250ms.
	RequestInterval time.Duration

	// Request timeout per attempt. Defaults to 10s.
	Timeout time.Duration

	// Retry policy around each call. Defaults to 3 attempts, 500ms apart.
	// Without a Retryable predicate, client errors other than 429 are not
	// retried.
	Retry retry.Policy
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() Config {
	return Config{
		TranslateURL:    DefaultTranslateURL,
		SpeechURL:       DefaultSpeechURL,
		RequestInterval: 250 * time.Millisecond,
		Timeout:         10 * time.Second,
		Retry:           retry.FlatDelay(retry.DefaultAttempts, retry.DefaultFlatDelay),
	}
}

func withRetryable(p retry.Policy) retry.Policy {
	if p.Retryable == nil {
		p.Retryable = Retryable
	}
	return p
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.TranslateURL == "" {
		c.TranslateURL = d.TranslateURL
	}
	if c.SpeechURL == "" {
		c.SpeechURL = d.SpeechURL
	}
	if c.Timeout == 0 {
		c.Timeout = d.Timeout
	}
	if c.Retry.Attempts == 0 {
		c.Retry = d.Retry
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	return c
}

func newLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

// fetch performs a single GET and returns the body of a successful response.
func fetch(ctx context.Context, client *http.Client, limiter *rate.Limiter, endpoint string, q url.Values) ([]byte, string, error) {
	if err := limiter.Wait(ctx); err != nil {
		return nil, "", fmt.Errorf("rate limit wait cancelled: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("unable to build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, "", fmt.Errorf("unable to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", newHTTPError(resp.StatusCode, body)
	}

	return body, resp.Header.Get("Content-Type"), nil
}
