// Package temporal extracts date/time mentions and contextual temporal
// phrases from free text. Date resolution is delegated to a pluggable
// natural-language parser behind the DateParser interface.
package temporal

import (
	"sort"
	"time"
)

// DateParser finds the best single date/time mention in free text.
// Implementations must be deterministic for a fixed text and reference.
type DateParser interface {
	// Parse returns the best match, or nil when the text has no resolvable
	// date/time mention. The reference instant seeds relative expressions
	// ("tomorrow", "next friday").
	Parse(text string, reference time.Time) (*Match, error)
}

// Match is a single resolved date/time mention.
type Match struct {
	// Text is the matched substring of the input.
	Text string
	// Index is the character offset of the match in the input.
	Index int
	// Time is the resolved instant, in the reference location.
	Time time.Time
	// HasTime reports whether a time-of-day component was parsed,
	// as opposed to a bare calendar date.
	HasTime bool
}

// ContextMatch is one contextual temporal phrase found in the text.
type ContextMatch struct {
	// Text is the original matched text.
	Text string `json:"text"`
	// Offset is the character offset of the match in the source text.
	Offset int `json:"offset"`
}

// Result carries everything the extractor derived from one text.
// A Result with only context phrases (no resolvable date) is still
// temporally informative and is returned as non-nil.
type Result struct {
	// Date is the resolved calendar date in YYYY-MM-DD form, or empty.
	Date string
	// TimeOfDay is the resolved time in HH:MM form, or empty.
	TimeOfDay string
	// Timestamp is the combined instant, nil when no date was resolved.
	Timestamp *time.Time
	// Confidence is the heuristic confidence of the date match, in [0, 1].
	Confidence float64
	// Context maps normalized phrase keys to their matches.
	Context map[string]ContextMatch
}

// ContextTexts returns the matched context texts ordered by source offset,
// with the normalized key as a tiebreaker. The fixed order keeps downstream
// consumers (text combining, embedding input) deterministic.
func (r *Result) ContextTexts() []string {
	if len(r.Context) == 0 {
		return nil
	}
	type entry struct {
		key   string
		match ContextMatch
	}
	entries := make([]entry, 0, len(r.Context))
	for k, m := range r.Context {
		entries = append(entries, entry{key: k, match: m})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].match.Offset != entries[j].match.Offset {
			return entries[i].match.Offset < entries[j].match.Offset
		}
		return entries[i].key < entries[j].key
	})
	texts := make([]string, len(entries))
	for i, e := range entries {
		texts[i] = e.match.Text
	}
	return texts
}
