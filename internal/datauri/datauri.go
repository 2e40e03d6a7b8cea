// Package datauri encodes and decodes RFC 2397 data URIs used to carry
// synthesized audio between the speech client, the cache and playback.
package datauri

import (
	"encoding/base64"
	"errors"
	"net/url"
	"strings"
)

// DefaultMIME is used when a payload carries no media type.
const DefaultMIME = "audio/mpeg"

// ErrMalformed is returned when a string is not a valid data URI.
var ErrMalformed = errors.New("malformed data URI")

// Encode returns data as a base64 data URI with the given media type.
func Encode(mime string, data []byte) string {
	if mime == "" {
		mime = DefaultMIME
	}
	var b strings.Builder
	b.Grow(len("data:;base64,") + len(mime) + base64.StdEncoding.EncodedLen(len(data)))
	b.WriteString("data:")
	b.WriteString(mime)
	b.WriteString(";base64,")
	b.WriteString(base64.StdEncoding.EncodeToString(data))
	return b.String()
}

// Decode parses a data URI and returns its media type and payload.
func Decode(uri string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, ErrMalformed
	}

	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, ErrMalformed
	}

	isBase64 := false
	if m, found := strings.CutSuffix(meta, ";base64"); found {
		meta = m
		isBase64 = true
	}

	mime := meta
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	if mime == "" {
		mime = "text/plain"
	}

	if isBase64 {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return "", nil, errors.Join(ErrMalformed, err)
		}
		return mime, data, nil
	}

	s, err := url.PathUnescape(payload)
	if err != nil {
		return "", nil, errors.Join(ErrMalformed, err)
	}
	return mime, []byte(s), nil
}
