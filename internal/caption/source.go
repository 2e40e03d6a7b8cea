package caption

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgnsrekt/subvoice/internal/textutil"
)

// ErrUnsupportedHost is returned by ForHost for sites without a source.
var ErrUnsupportedHost = errors.New("unsupported host")

// DefaultFlushInterval is how often word-by-word captions are emitted.
const DefaultFlushInterval = 3 * time.Second

// Source detects caption text on one site.
type Source interface {
	Name() string
	// Selectors lists the CSS selectors the page should report.
	Selectors() []string
	// Detect returns the caption currently on the page.
	Detect(page Page) (string, bool)
}

// Flusher is implemented by sources that buffer text between detections.
type Flusher interface {
	Flush() (string, bool)
}

// Resetter is implemented by sources that keep state between detections.
type Resetter interface {
	Reset()
}

// Options configures the sources built by ForHost.
type Options struct {
	FlushInterval time.Duration
}

// ForHost returns the source for a page host such as "www.youtube.com".
func ForHost(host string, opts Options) (Source, error) {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if i := strings.LastIndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}

	switch {
	case matchHost(host, "udemy.com"):
		return NewUdemy(), nil
	case matchHost(host, "youtube.com"):
		return NewYouTube(opts.FlushInterval), nil
	case matchHost(host, "coursera.org"):
		return NewCoursera(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedHost, host)
}

func matchHost(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// cueSource reads the first visible element of a single selector. Sites that
// show a whole cue at once use it.
type cueSource struct {
	name     string
	selector string
}

// NewUdemy returns the source for udemy.com lectures.
func NewUdemy() Source {
	return &cueSource{name: "udemy", selector: `[data-purpose="captions-cue-text"]`}
}

// NewCoursera returns the source for coursera.org lectures.
func NewCoursera() Source {
	return &cueSource{name: "coursera", selector: ".rc-SubtitleContent, .cue-text"}
}

func (s *cueSource) Name() string        { return s.name }
func (s *cueSource) Selectors() []string { return []string{s.selector} }

func (s *cueSource) Detect(page Page) (string, bool) {
	els := visibleText(page.QueryAll(s.selector))
	if len(els) == 0 {
		return "", false
	}
	text := textutil.CollapseSpace(els[0].Text)
	return text, text != ""
}
