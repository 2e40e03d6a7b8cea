package caption

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/subvoice/internal/textutil"
)

// Event is a newly detected caption.
type Event struct {
	Text       string
	Source     string
	DetectedAt time.Time
}

// Detector runs a Source against page snapshots and reports each caption
// once. The same text is never reported twice in a row.
type Detector struct {
	mu      sync.Mutex
	source  Source
	last    string
	enabled bool
	handler func(Event)

	logger *log.Logger
}

// NewDetector creates an enabled detector that sends events to handler.
func NewDetector(source Source, handler func(Event)) *Detector {
	return &Detector{
		source:  source,
		enabled: true,
		handler: handler,
		logger:  log.WithPrefix("caption"),
	}
}

// Source returns the active source.
func (d *Detector) Source() Source {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.source
}

// SetSource swaps the active source and clears the memo.
func (d *Detector) SetSource(source Source) {
	d.mu.Lock()
	d.source = source
	d.last = ""
	d.mu.Unlock()

	if r, ok := source.(Resetter); ok {
		r.Reset()
	}
}

// SetEnabled turns detection on or off.
func (d *Detector) SetEnabled(enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enabled = enabled
}

// Enabled reports whether detection is on.
func (d *Detector) Enabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.enabled
}

// Observe runs the source against page. Call it whenever the page changes.
func (d *Detector) Observe(page Page) {
	d.mu.Lock()
	source, enabled := d.source, d.enabled
	d.mu.Unlock()

	if !enabled || source == nil {
		return
	}
	if text, ok := source.Detect(page); ok {
		d.emit(source.Name(), text)
	}
}

// Flush emits text buffered by a Flusher source.
func (d *Detector) Flush() {
	d.mu.Lock()
	source, enabled := d.source, d.enabled
	d.mu.Unlock()

	if !enabled {
		return
	}
	if f, ok := source.(Flusher); ok {
		if text, ok := f.Flush(); ok {
			d.emit(source.Name(), text)
		}
	}
}

func (d *Detector) emit(source, text string) {
	text = textutil.CollapseSpace(text)
	if text == "" {
		return
	}

	d.mu.Lock()
	if text == d.last {
		d.mu.Unlock()
		return
	}
	d.last = text
	handler := d.handler
	d.mu.Unlock()

	d.logger.Debug("caption detected", "source", source, "text", text)
	if handler != nil {
		handler(Event{Text: text, Source: source, DetectedAt: time.Now()})
	}
}

// Run calls Flush every interval until ctx is done. Ticks are ignored while
// the source does not buffer. A non-positive interval uses the source's own
// interval or DefaultFlushInterval.
func (d *Detector) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultFlushInterval
		if s, ok := d.Source().(interface{ FlushInterval() time.Duration }); ok {
			interval = s.FlushInterval()
		}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, ok := d.Source().(Flusher); ok {
				d.Flush()
			}
		}
	}
}

// Forget clears the memo if it still holds text, so the same caption can be
// reported again after a failed attempt to process it.
func (d *Detector) Forget(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.last == text {
		d.last = ""
	}
}

// Reset clears the memo and any text buffered by the source.
func (d *Detector) Reset() {
	d.mu.Lock()
	d.last = ""
	source := d.source
	d.mu.Unlock()

	if r, ok := source.(Resetter); ok {
		r.Reset()
	}
}

// Check reports whether any of the source's selectors currently matches
// visible caption text.
func (d *Detector) Check(page Page) bool {
	source := d.Source()
	if source == nil {
		return false
	}
	for _, sel := range source.Selectors() {
		if len(visibleText(page.QueryAll(sel))) > 0 {
			return true
		}
	}
	return false
}
