package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/subvoice/internal/retry"
	"golang.org/x/time/rate"
)

// Translator translates text through the public translation endpoint.
type Translator struct {
	endpoint string
	client   *http.Client
	limiter  *rate.Limiter
	policy   retry.Policy
	logger   *log.Logger
}

// NewTranslator creates a translation client.
func NewTranslator(cfg Config) *Translator {
	cfg = cfg.withDefaults()
	return &Translator{
		endpoint: cfg.TranslateURL,
		client:   cfg.HTTPClient,
		limiter:  newLimiter(cfg.RequestInterval),
		policy:   withRetryable(cfg.Retry),
		logger:   log.WithPrefix("translate"),
	}
}

// Translate returns text translated to targetLang, with the source language
// auto-detected. Only the first translated segment is returned.
func (t *Translator) Translate(ctx context.Context, text, targetLang string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyText
	}

	q := url.Values{}
	q.Set("client", clientID)
	q.Set("sl", "auto")
	q.Set("tl", targetLang)
	q.Set("dt", "t")
	q.Set("q", text)

	out, err := retry.Do(ctx, t.policy, func(ctx context.Context) (string, error) {
		body, _, err := fetch(ctx, t.client, t.limiter, t.endpoint, q)
		if err != nil {
			return "", err
		}
		return firstSegment(body)
	})
	if err != nil {
		t.logger.Warn("translation failed", "lang", targetLang, "error", err)
		return "", err
	}

	t.logger.Debug("translated", "lang", targetLang, "source", text, "result", out)
	return out, nil
}

// firstSegment extracts data[0][0][0] from the endpoint's nested arrays.
func firstSegment(body []byte) (string, error) {
	var data []any
	if err := json.Unmarshal(body, &data); err != nil {
		return "", &FormatError{Reason: "body is not a JSON array: " + err.Error(), Body: snippet(body)}
	}

	if len(data) == 0 {
		return "", &FormatError{Reason: "empty response", Body: snippet(body)}
	}
	segments, ok := data[0].([]any)
	if !ok || len(segments) == 0 {
		return "", &FormatError{Reason: "missing segment list", Body: snippet(body)}
	}
	segment, ok := segments[0].([]any)
	if !ok || len(segment) == 0 {
		return "", &FormatError{Reason: "missing first segment", Body: snippet(body)}
	}
	s, ok := segment[0].(string)
	if !ok {
		return "", &FormatError{Reason: "translated text is not a string", Body: snippet(body)}
	}
	return s, nil
}

func snippet(b []byte) string {
	if len(b) > maxErrorBody {
		b = b[:maxErrorBody]
	}
	return string(b)
}
