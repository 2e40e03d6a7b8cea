package remote

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/subvoice/internal/datauri"
	"github.com/dgnsrekt/subvoice/internal/retry"
	"golang.org/x/time/rate"
)

// MaxSpeechText is the longest text the speech endpoint accepts, in characters.
const MaxSpeechText = 200

// Synthesizer turns text into spoken audio through the public
// text-to-speech endpoint.
type Synthesizer struct {
	endpoint string
	client   *http.Client
	limiter  *rate.Limiter
	policy   retry.Policy
	logger   *log.Logger
}

// NewSynthesizer creates a speech synthesis client.
func NewSynthesizer(cfg Config) *Synthesizer {
	cfg = cfg.withDefaults()
	return &Synthesizer{
		endpoint: cfg.SpeechURL,
		client:   cfg.HTTPClient,
		limiter:  newLimiter(cfg.RequestInterval),
		policy:   withRetryable(cfg.Retry),
		logger:   log.WithPrefix("speech"),
	}
}

// Synthesize returns the spoken form of text in lang as a data URI. Text
// longer than MaxSpeechText characters is truncated.
func (s *Synthesizer) Synthesize(ctx context.Context, text, lang string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyText
	}
	text = Truncate(text, MaxSpeechText)

	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("tl", lang)
	q.Set("q", text)
	q.Set("client", clientID)
	q.Set("total", "1")
	q.Set("idx", "0")
	q.Set("ttsspeed", "1")

	uri, err := retry.Do(ctx, s.policy, func(ctx context.Context) (string, error) {
		body, contentType, err := fetch(ctx, s.client, s.limiter, s.endpoint, q)
		if err != nil {
			return "", err
		}
		if len(body) == 0 {
			return "", ErrEmptyAudio
		}
		return datauri.Encode(audioMIME(contentType), body), nil
	})
	if err != nil {
		s.logger.Warn("synthesis failed", "lang", lang, "error", err)
		return "", err
	}

	s.logger.Debug("synthesized", "lang", lang, "text", text, "size", len(uri))
	return uri, nil
}

// Truncate shortens s to at most n characters.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

func audioMIME(contentType string) string {
	mime, _, _ := strings.Cut(contentType, ";")
	mime = strings.TrimSpace(mime)
	if !strings.HasPrefix(mime, "audio/") {
		return datauri.DefaultMIME
	}
	return mime
}
