// Package vtt reads WebVTT subtitle files and plays their cues in step with
// a video position.
package vtt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// ErrBadTimestamp is returned for a timing line that cannot be read.
var ErrBadTimestamp = errors.New("bad cue timestamp")

// Cue is one timed subtitle.
type Cue struct {
	Index int
	Start time.Duration
	End   time.Duration
	Text  string
}

// Parse reads the cues of a WebVTT document. Header blocks, cue identifiers
// and cue settings are ignored; cues without text are dropped.
func Parse(r io.Reader) ([]Cue, error) {
	var (
		cues    []Cue
		current *Cue
		lineNo  int
	)

	finish := func() {
		if current != nil && current.Text != "" {
			current.Index = len(cues)
			cues = append(cues, *current)
		}
		current = nil
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		switch {
		case strings.Contains(line, "-->"):
			finish()
			start, end, err := parseTiming(line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			current = &Cue{Start: start, End: end}

		case line == "":
			finish()

		case current != nil:
			if current.Text != "" {
				current.Text += "\n"
			}
			current.Text += line
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("unable to read subtitles: %w", err)
	}
	finish()

	return cues, nil
}

func parseTiming(line string) (time.Duration, time.Duration, error) {
	left, right, _ := strings.Cut(line, "-->")

	start, err := ParseTimestamp(left)
	if err != nil {
		return 0, 0, err
	}

	// Cue settings may follow the end time.
	fields := strings.Fields(right)
	if len(fields) == 0 {
		return 0, 0, fmt.Errorf("%w: missing end time", ErrBadTimestamp)
	}
	end, err := ParseTimestamp(fields[0])
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// ParseTimestamp reads mm:ss.mmm or hh:mm:ss.mmm.
func ParseTimestamp(s string) (time.Duration, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("%w: %q", ErrBadTimestamp, s)
	}

	secs, err := strconv.ParseFloat(parts[len(parts)-1], 64)
	if err != nil || secs < 0 {
		return 0, fmt.Errorf("%w: %q", ErrBadTimestamp, s)
	}

	units := []time.Duration{time.Minute, time.Hour}
	total := time.Duration(secs * float64(time.Second))
	for i, p := range parts[:len(parts)-1] {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("%w: %q", ErrBadTimestamp, s)
		}
		unit := units[len(parts)-2-i]
		total += time.Duration(n) * unit
	}
	return total, nil
}
