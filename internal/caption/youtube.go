package caption

import (
	"strings"
	"sync"
	"time"

	"github.com/dgnsrekt/subvoice/internal/textutil"
)

var youtubeSelectors = []string{
	".ytp-caption-segment",
	".captions-text",
	".caption-window span",
	".caption-visual-line",
	".ytp-caption-window-container span",
}

// YouTube accumulates captions that are rendered word by word. Detect only
// records new words; Flush emits them.
type YouTube struct {
	interval time.Duration

	mu       sync.Mutex
	previous []string
	pending  []string
}

// NewYouTube returns the source for youtube.com. A non-positive interval uses
// DefaultFlushInterval.
func NewYouTube(interval time.Duration) *YouTube {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	return &YouTube{interval: interval}
}

func (y *YouTube) Name() string { return "youtube" }

func (y *YouTube) Selectors() []string {
	out := make([]string, len(youtubeSelectors))
	copy(out, youtubeSelectors)
	return out
}

// FlushInterval returns how often Flush should be called.
func (y *YouTube) FlushInterval() time.Duration { return y.interval }

// Detect records the words of the current caption line that were not part of
// the previous one. It never reports a caption.
func (y *YouTube) Detect(page Page) (string, bool) {
	line := y.currentLine(page)
	if line == "" {
		return "", false
	}

	words := strings.Fields(line)

	y.mu.Lock()
	defer y.mu.Unlock()

	skip := overlap(y.previous, words)
	y.pending = append(y.pending, words[skip:]...)
	y.previous = words
	return "", false
}

// currentLine joins the caption segments shown in the lower half of the video.
func (y *YouTube) currentLine(page Page) string {
	var els []Element
	for _, sel := range youtubeSelectors {
		if els = visibleText(page.QueryAll(sel)); len(els) > 0 {
			break
		}
	}
	if len(els) == 0 {
		return ""
	}

	if video, ok := page.Video(); ok && video.Height > 0 {
		mid := video.Top + video.Height/2
		lower := els[:0]
		for _, el := range els {
			if el.Rect.Top >= mid {
				lower = append(lower, el)
			}
		}
		els = lower
	}

	texts := make([]string, len(els))
	for i, el := range els {
		texts[i] = el.Text
	}
	return textutil.CollapseSpace(strings.Join(texts, " "))
}

// Flush returns the accumulated words and clears them.
func (y *YouTube) Flush() (string, bool) {
	y.mu.Lock()
	defer y.mu.Unlock()

	if len(y.pending) == 0 {
		return "", false
	}
	text := strings.Join(y.pending, " ")
	y.pending = nil
	return text, true
}

// Reset drops the accumulated words and the previous line.
func (y *YouTube) Reset() {
	y.mu.Lock()
	defer y.mu.Unlock()
	y.previous = nil
	y.pending = nil
}

// overlap returns the length of the longest suffix of prev that is also a
// prefix of next.
func overlap(prev, next []string) int {
	n := min(len(prev), len(next))
	for k := n; k > 0; k-- {
		if equalWords(prev[len(prev)-k:], next[:k]) {
			return k
		}
	}
	return 0
}

func equalWords(a, b []string) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
