// Package moderation censors blacklisted words in chat traffic before it is
// fanned out. Matching is resilient to casing, spacing, punctuation and
// common leet-speak substitutions.
package moderation

import (
	"unicode"

	"github.com/abadojack/whatlanggo"
	goahocorasick "github.com/anknown/ahocorasick"
)

// Moderator wraps an Aho-Corasick automaton built over a normalized wordlist.
// It is immutable after construction and safe for concurrent use.
type Moderator struct {
	machine *goahocorasick.Machine
	mask    rune
}

// mapping tracks which original rune produced each normalized rune, so a
// match found in normalized space can be masked in the original text.
type mapping struct {
	normalized []rune
	origIdx    []int
}

// NewModerator builds the automaton from the censored words list.
// Words are normalized the same way as inbound text.
func NewModerator(censoredWords []string, mask rune) (*Moderator, error) {
	patterns := make([][]rune, len(censoredWords))
	for i, word := range censoredWords {
		patterns[i] = normalize([]rune(word))
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	return &Moderator{machine: m, mask: mask}, nil
}

// Censor replaces every censored pattern by the mask rune, preserving the
// original spacing, and returns the list of matched (normalized) words.
func (m *Moderator) Censor(original string) (string, []string) {
	mapped := project(original)
	if len(mapped.normalized) == 0 {
		return original, nil
	}

	spans := m.machine.MultiPatternSearch(mapped.normalized, false)
	if len(spans) == 0 {
		return original, nil
	}

	origRunes := []rune(original)
	var found []string
	for _, span := range spans {
		start := span.Pos
		end := start + len(span.Word)
		if start < 0 || end > len(mapped.origIdx) {
			continue
		}
		found = append(found, string(span.Word))

		from := mapped.origIdx[start]
		to := mapped.origIdx[end-1] + 1
		for i := from; i < to; i++ {
			origRunes[i] = m.mask
		}
	}
	return string(origRunes), found
}

// DetectLanguage returns the ISO 639-1 code of the most likely language of
// the text, or an empty string when detection is inconclusive.
func DetectLanguage(text string) string {
	info := whatlanggo.Detect(text)
	return info.Lang.Iso6391()
}

// project builds the searchable form of the input and remembers original
// rune positions.
func project(input string) mapping {
	origRunes := []rune(input)
	out := mapping{
		normalized: make([]rune, 0, len(origRunes)),
		origIdx:    make([]int, 0, len(origRunes)),
	}
	for i, r := range origRunes {
		clean := unleet(r)
		if isNoise(clean) {
			continue
		}
		out.normalized = append(out.normalized, unicode.ToLower(clean))
		out.origIdx = append(out.origIdx, i)
	}
	return out
}

func normalize(input []rune) []rune {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		clean := unleet(r)
		if isNoise(clean) {
			continue
		}
		out = append(out, unicode.ToLower(clean))
	}
	return out
}

// unleet maps common leet-speak characters back to their alphabet counterparts.
func unleet(r rune) rune {
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

// isNoise identifies characters ignored during pattern matching.
func isNoise(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
}
