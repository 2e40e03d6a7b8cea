// Package caption finds caption text in snapshots of a video page and turns
// it into a stream of distinct caption events.
//
// Each supported site has a Source that knows its caption selectors. Sites
// that render captions word by word implement Flusher and only emit when a
// timer asks them to.
package caption
