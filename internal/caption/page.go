package caption

import (
	"strings"
	"sync"
)

// Rect is an element's bounding box in page pixels.
type Rect struct {
	Top    float64 `json:"top"`
	Left   float64 `json:"left"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Element is a caption node matched by a selector.
type Element struct {
	Selector string `json:"selector"`
	Text     string `json:"text"`
	Rect     Rect   `json:"rect"`
	Visible  bool   `json:"visible"`
}

// Page is a read-only view of the page DOM.
type Page interface {
	// QueryAll returns the elements matching selector in document order.
	QueryAll(selector string) []Element
	// Video returns the bounding box of the main video, if there is one.
	Video() (Rect, bool)
}

// Snapshot is a Page assembled from the elements a page reports. It is safe
// for concurrent use.
type Snapshot struct {
	mu       sync.RWMutex
	elements map[string][]Element
	video    *Rect
}

// NewSnapshot returns an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{elements: make(map[string][]Element)}
}

// Update replaces the snapshot contents.
func (s *Snapshot) Update(elements []Element, video *Rect) {
	bySelector := make(map[string][]Element)
	for _, el := range elements {
		bySelector[el.Selector] = append(bySelector[el.Selector], el)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.elements = bySelector
	if video != nil {
		v := *video
		s.video = &v
	} else {
		s.video = nil
	}
}

// QueryAll implements Page.
func (s *Snapshot) QueryAll(selector string) []Element {
	s.mu.RLock()
	defer s.mu.RUnlock()

	els := s.elements[selector]
	out := make([]Element, len(els))
	copy(out, els)
	return out
}

// Video implements Page.
func (s *Snapshot) Video() (Rect, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.video == nil {
		return Rect{}, false
	}
	return *s.video, true
}

// visibleText returns the trimmed text of the visible, non-empty elements.
func visibleText(els []Element) []Element {
	var out []Element
	for _, el := range els {
		el.Text = strings.TrimSpace(el.Text)
		if el.Visible && el.Text != "" {
			out = append(out, el)
		}
	}
	return out
}
