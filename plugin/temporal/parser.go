package temporal

import (
	"regexp"
	"strconv"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/pkg/errors"
)

// Explicit date formats are matched before handing off to the NL parser.
// OCR text carries far more "03/14/2024" than "next friday", and the
// explicit forms resolve without reference-time ambiguity.
var (
	isoDateRE   = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	slashDateRE = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`)

	clockRE = regexp.MustCompile(`(?i)\b\d{1,2}(?::\d{2})?\s*(?:a\.?m\.?|p\.?m\.?)\b|\b\d{1,2}:\d{2}\b|\bnoon\b|\bmidnight\b`)
)

// RuleParser resolves date/time mentions with explicit format rules first
// and the `when` natural-language parser as fallback.
type RuleParser struct {
	w *when.Parser
}

// NewRuleParser creates a parser with the English and common rule sets.
func NewRuleParser() *RuleParser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return &RuleParser{w: w}
}

// Parse implements DateParser.
func (p *RuleParser) Parse(text string, reference time.Time) (*Match, error) {
	if match := p.parseExplicit(text, reference); match != nil {
		return match, nil
	}

	r, err := p.w.Parse(text, reference)
	if err != nil {
		return nil, errors.Wrap(err, "natural language date parsing failed")
	}
	if r == nil {
		return nil, nil
	}
	return &Match{
		Text:    r.Text,
		Index:   r.Index,
		Time:    r.Time,
		HasTime: clockRE.MatchString(r.Text),
	}, nil
}

// parseExplicit matches ISO (YYYY-MM-DD) and slash (MM/DD/YYYY) dates.
func (p *RuleParser) parseExplicit(text string, reference time.Time) *Match {
	if loc := isoDateRE.FindStringSubmatchIndex(text); loc != nil {
		matched := text[loc[0]:loc[1]]
		parts := isoDateRE.FindStringSubmatch(matched)
		year, _ := strconv.Atoi(parts[1])
		month, _ := strconv.Atoi(parts[2])
		day, _ := strconv.Atoi(parts[3])
		if t, ok := buildDate(year, month, day, reference.Location()); ok {
			return &Match{Text: matched, Index: loc[0], Time: t}
		}
	}

	if loc := slashDateRE.FindStringSubmatchIndex(text); loc != nil {
		matched := text[loc[0]:loc[1]]
		parts := slashDateRE.FindStringSubmatch(matched)
		first, _ := strconv.Atoi(parts[1])
		second, _ := strconv.Atoi(parts[2])
		year, _ := strconv.Atoi(parts[3])
		// MM/DD/YYYY by default; a first component over 12 forces DD/MM.
		month, day := first, second
		if month > 12 {
			month, day = second, first
		}
		if t, ok := buildDate(year, month, day, reference.Location()); ok {
			return &Match{Text: matched, Index: loc[0], Time: t}
		}
	}

	return nil
}

// buildDate validates the calendar components and rejects roll-over
// normalization (e.g. month 13 becoming January).
func buildDate(year, month, day int, loc *time.Location) (time.Time, bool) {
	if year < 1900 || year > 2100 || month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

var _ DateParser = (*RuleParser)(nil)
