// Package moderation turns untrusted message text into content safe to
// persist and broadcast. Sanitizing is deterministic and side-effect free:
// markup is stripped, then forbidden words are censored through an
// Aho-Corasick automaton built over a normalized (leet-folded) alphabet.
package moderation

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

// tagPattern matches HTML/XML-style tags, including script and style blocks
// whose inner content must go too.
var (
	blockPattern = regexp.MustCompile(`(?is)<(script|style)\b[^>]*>.*?</(script|style)>`)
	tagPattern   = regexp.MustCompile(`<[^>]*>`)
)

type Sanitizer struct {
	matcher      *goahocorasick.Machine
	censoredChar rune
	log          *slog.Logger
}

type textMapping struct {
	normalized []rune
	origIdx    []int
}

// NewSanitizer builds the automaton from a normalized version of the
// censored words list. Words that normalize to nothing are skipped.
func NewSanitizer(censoredWords []string, censoredChar rune, log *slog.Logger) (*Sanitizer, error) {
	var patterns [][]rune
	for _, word := range censoredWords {
		normalized := normalizeRunes([]rune(word))
		if len(normalized) == 0 {
			continue
		}
		patterns = append(patterns, normalized)
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	return &Sanitizer{matcher: m, censoredChar: censoredChar, log: log}, nil
}

// Sanitize strips executable markup then censors forbidden patterns.
// It returns the clean text and the normalized words that were hit,
// for the caller's logging.
func (s *Sanitizer) Sanitize(text string) (string, []string) {
	return s.censor(stripMarkup(text))
}

// stripMarkup removes script/style blocks and any remaining tags while
// keeping the surrounding text intact.
func stripMarkup(text string) string {
	if !strings.ContainsRune(text, '<') {
		return text
	}
	text = blockPattern.ReplaceAllString(text, "")
	return tagPattern.ReplaceAllString(text, "")
}

// censor identifies forbidden patterns and replaces the original characters
// with the replacement rune while preserving spacing.
func (s *Sanitizer) censor(original string) (string, []string) {
	mapping := normalize(original)
	if len(mapping.normalized) == 0 {
		return original, nil
	}

	origRunes := []rune(original)
	spans := s.matcher.MultiPatternSearch(mapping.normalized, false)
	if len(spans) == 0 {
		return original, nil
	}

	var found []string
	for _, span := range spans {
		normStart := span.Pos
		normEnd := normStart + len(span.Word)

		if normStart < 0 || normEnd > len(mapping.origIdx) {
			continue
		}

		origStart := mapping.origIdx[normStart]
		lastCharOrigIdx := mapping.origIdx[normEnd-1]
		origEnd := lastCharOrigIdx + 1

		for i := origStart; i < origEnd; i++ {
			origRunes[i] = s.censoredChar
		}
		found = append(found, string(span.Word))
	}

	return string(origRunes), found
}

// normalize transforms the input into a searchable format and tracks
// original rune positions so censoring can map back.
func normalize(input string) textMapping {
	origRunes := []rune(input)
	norm := make([]rune, 0, len(origRunes))
	origIdx := make([]int, 0, len(origRunes))

	for i, r := range origRunes {
		clean := simplifyRune(r)
		if isNoise(clean) {
			continue
		}
		norm = append(norm, unicode.ToLower(clean))
		origIdx = append(origIdx, i)
	}
	return textMapping{normalized: norm, origIdx: origIdx}
}

func normalizeRunes(input []rune) []rune {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		clean := simplifyRune(r)
		if isNoise(clean) {
			continue
		}
		out = append(out, unicode.ToLower(clean))
	}
	return out
}

// simplifyRune maps common Leet speak characters back to their standard
// alphabet counterparts.
func simplifyRune(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3', '€':
		return 'e'
	case '1', '!', '|':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	default:
		return r
	}
}

// isNoise identifies characters ignored during the matching phase.
func isNoise(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
}
