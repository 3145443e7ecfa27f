package temporal

import (
	"log/slog"
	"regexp"
	"strings"
	"time"
)

// Confidence heuristics for a resolved date match.
const (
	baseConfidence      = 0.8
	explicitYearBonus   = 0.1
	monthNameBonus      = 0.05
	hourComponentBonus  = 0.05
	shortMatchPenalty   = 0.2
	relativeWordPenalty = 0.1

	// Matches shorter than this are likely false positives ("mar", "5/6").
	shortMatchThreshold = 5
)

var (
	explicitYearRE = regexp.MustCompile(`\b(?:19|20|21)\d{2}\b`)
	monthNameRE    = regexp.MustCompile(`(?i)\b(?:january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sept?|oct|nov|dec)\b`)
	relativeWordRE = regexp.MustCompile(`(?i)\b(?:today|yesterday|tomorrow)\b`)

	normalizeWsRE = regexp.MustCompile(`\s+`)
)

// contextPatterns is the fixed pattern set for contextual temporal phrases.
// These are scanned independently of date resolution: a capture with only
// contextual temporal language is still temporally informative.
var contextPatterns = []*regexp.Regexp{
	// Relative day references.
	regexp.MustCompile(`(?i)\b(?:today|tonight|yesterday|tomorrow)\b`),
	// Relative weekday/week/month/year references.
	regexp.MustCompile(`(?i)\b(?:last|next|this)\s+(?:monday|tuesday|wednesday|thursday|friday|saturday|sunday|week|weekend|month|year)\b`),
	// "N days/weeks/months ago" and "N days from now".
	regexp.MustCompile(`(?i)\b\d+\s+(?:day|week|month|year)s?\s+(?:ago|from\s+now)\b`),
	// Time-of-day plus journal-word combinations.
	regexp.MustCompile(`(?i)\b(?:this|that|early|late)\s+(?:morning|afternoon|evening|night)\b`),
}

// Extractor derives temporal metadata from free text.
type Extractor struct {
	parser DateParser
}

// NewExtractor creates an extractor using the given date parser.
func NewExtractor(parser DateParser) *Extractor {
	return &Extractor{parser: parser}
}

// Extract parses the best date/time mention and scans for contextual
// temporal phrases. The reference instant seeds relative expressions;
// batch reprocessing must pass the capture's own creation time to avoid
// drift. Returns nil when the text yields nothing temporal.
//
// Parser errors are swallowed: a broken date parse degrades to a
// context-only result rather than failing the caller.
func (e *Extractor) Extract(text string, reference time.Time) *Result {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	result := &Result{
		Context: scanContext(text),
	}

	match, err := e.parser.Parse(text, reference)
	if err != nil {
		slog.Debug("date parsing failed, continuing with context only", "error", err)
		match = nil
	}
	if match != nil {
		result.Date = match.Time.Format("2006-01-02")
		if match.HasTime {
			result.TimeOfDay = match.Time.Format("15:04")
		}
		t := match.Time
		result.Timestamp = &t
		result.Confidence = scoreMatch(match)
	}

	if result.Date == "" && result.TimeOfDay == "" && len(result.Context) == 0 {
		return nil
	}
	return result
}

// scoreMatch computes the heuristic confidence for a date match.
func scoreMatch(match *Match) float64 {
	confidence := baseConfidence
	if explicitYearRE.MatchString(match.Text) {
		confidence += explicitYearBonus
	}
	if monthNameRE.MatchString(match.Text) {
		confidence += monthNameBonus
	}
	if match.HasTime {
		confidence += hourComponentBonus
	}
	if len(match.Text) < shortMatchThreshold {
		confidence -= shortMatchPenalty
	}
	if relativeWordRE.MatchString(match.Text) {
		confidence -= relativeWordPenalty
	}
	return clamp01(confidence)
}

// scanContext collects all context phrase matches keyed by their normalized
// form. Later matches with the same key overwrite earlier ones.
func scanContext(text string) map[string]ContextMatch {
	matches := make(map[string]ContextMatch)
	for _, pattern := range contextPatterns {
		for _, loc := range pattern.FindAllStringIndex(text, -1) {
			matched := text[loc[0]:loc[1]]
			matches[normalizeKey(matched)] = ContextMatch{
				Text:   matched,
				Offset: loc[0],
			}
		}
	}
	if len(matches) == 0 {
		return nil
	}
	return matches
}

// normalizeKey lowercases the matched text and folds whitespace runs to a
// single underscore.
func normalizeKey(text string) string {
	return normalizeWsRE.ReplaceAllString(strings.ToLower(strings.TrimSpace(text)), "_")
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
