package vtt

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

// Document exposes the parts of a lecture page that may point at its
// subtitle file.
type Document interface {
	// Attr returns attribute attr of the first element matching selector.
	Attr(selector, attr string) (string, bool)
	// Scripts returns the text of the page's inline scripts.
	Scripts() []string
}

// StaticDocument is a Document built from values reported by the page.
type StaticDocument struct {
	// Attrs maps a selector to the attributes of its first match.
	Attrs      map[string]map[string]string `json:"attrs"`
	ScriptText []string                     `json:"scripts"`
}

// Attr implements Document.
func (d StaticDocument) Attr(selector, attr string) (string, bool) {
	v, ok := d.Attrs[selector][attr]
	return v, ok
}

// Scripts implements Document.
func (d StaticDocument) Scripts() []string { return d.ScriptText }

// Selectors and attributes FindURL reads.
const (
	TranscriptSelector = `[data-purpose="transcript-toggle"]`
	TranscriptAttr     = "data-transcripts"
	PlayerSelector     = ".video-player"
	PlayerAttr         = "data-params"
)

var (
	subtitlesURLPattern = regexp.MustCompile(`subtitlesUrl"?"?\s*:\s*"([^"]+\.vtt)"`)
	genericURLPattern   = regexp.MustCompile(`"url":"([^"]+\.vtt)"`)
)

// FindURL looks for the subtitle file of a lecture page. It tries, in order,
// the transcript toggle data, a subtitlesUrl field in scripts, the player
// parameters and any "url" ending in .vtt in scripts.
func FindURL(doc Document) (string, bool) {
	if raw, ok := doc.Attr(TranscriptSelector, TranscriptAttr); ok {
		var transcripts []struct {
			URL string `json:"url"`
		}
		if json.Unmarshal([]byte(raw), &transcripts) == nil && len(transcripts) > 0 && transcripts[0].URL != "" {
			return transcripts[0].URL, true
		}
	}

	for _, script := range doc.Scripts() {
		if m := subtitlesURLPattern.FindStringSubmatch(script); m != nil {
			return m[1], true
		}
	}

	if raw, ok := doc.Attr(PlayerSelector, PlayerAttr); ok {
		var params struct {
			Captions struct {
				URL string `json:"url"`
			} `json:"captions"`
		}
		if json.Unmarshal([]byte(raw), &params) == nil && params.Captions.URL != "" {
			return params.Captions.URL, true
		}
	}

	for _, script := range doc.Scripts() {
		if !strings.Contains(script, `"captions"`) {
			continue
		}
		if m := genericURLPattern.FindStringSubmatch(script); m != nil {
			return m[1], true
		}
	}

	return "", false
}

// Fetch downloads and parses the subtitle file at ref, resolved against
// base when it is relative.
func Fetch(ctx context.Context, client *http.Client, base, ref string) ([]Cue, error) {
	target, err := resolve(base, ref)
	if err != nil {
		return nil, err
	}
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("unable to build subtitles request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("unable to fetch subtitles: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unable to fetch subtitles: %s", resp.Status)
	}
	return Parse(io.LimitReader(resp.Body, 8*1024*1024))
}

func resolve(base, ref string) (string, error) {
	r, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid subtitles url %q: %w", ref, err)
	}
	if r.IsAbs() || base == "" {
		return r.String(), nil
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid page url %q: %w", base, err)
	}
	return b.ResolveReference(r).String(), nil
}
