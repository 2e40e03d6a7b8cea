// Package langs knows the target languages offered for translation and
// speech, their display names and how to look them up.
package langs

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sahilm/fuzzy"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// ErrUnknownLanguage is returned for codes that are not valid BCP 47 tags.
var ErrUnknownLanguage = errors.New("unknown language code")

// Language is a target language.
type Language struct {
	Code string
	Name string
}

// String implements fmt.Stringer.
func (l Language) String() string {
	return fmt.Sprintf("%s (%s)", l.Name, l.Code)
}

// codes lists the languages both endpoints handle well.
var codes = []string{
	"ar", "ca", "cs", "da", "de", "el", "en", "es", "fi", "fr",
	"he", "hi", "hu", "id", "it", "ja", "ko", "nl", "no", "pl",
	"pt", "ro", "ru", "sv", "th", "tr", "uk", "vi", "zh-CN", "zh-TW",
}

// Supported returns the offered target languages, sorted by code.
func Supported() []Language {
	out := make([]Language, 0, len(codes))
	for _, c := range codes {
		out = append(out, Language{Code: c, Name: Name(c)})
	}
	return out
}

// Valid reports whether code parses as a language tag.
func Valid(code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return fmt.Errorf("%w: empty", ErrUnknownLanguage)
	}
	tag, err := language.Parse(code)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrUnknownLanguage, code)
	}
	if base, conf := tag.Base(); conf == language.No || base.String() == "und" {
		return fmt.Errorf("%w: %q", ErrUnknownLanguage, code)
	}
	return nil
}

// Name returns the English display name for code, or code itself when it
// cannot be resolved.
func Name(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Tags().Name(tag); name != "" {
		return name
	}
	return code
}

type searchSource []Language

func (s searchSource) String(i int) string { return s[i].Code + " " + s[i].Name }
func (s searchSource) Len() int            { return len(s) }

// Search returns supported languages fuzzily matching query, best first. An
// empty query returns every supported language.
func Search(query string) []Language {
	all := Supported()
	query = strings.TrimSpace(query)
	if query == "" {
		return all
	}

	matches := fuzzy.FindFrom(query, searchSource(all))
	out := make([]Language, 0, len(matches))
	for _, m := range matches {
		out = append(out, all[m.Index])
	}
	return out
}

// Suggest returns the closest supported code for an unknown one.
func Suggest(code string) (Language, bool) {
	found := Search(code)
	if len(found) == 0 {
		return Language{}, false
	}
	return found[0], true
}
