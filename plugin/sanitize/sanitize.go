// Package sanitize cleans OCR output before it is indexed or embedded.
//
// Screenshots frequently contain runtime noise: stack traces, logged errors,
// editor line numbers, source paths. The cleaning passes run as an ordered
// rule pipeline; content-removal rules must run before whitespace
// normalization, since removed spans leave gaps the later rules clean up.
package sanitize

import (
	"regexp"
	"strconv"
	"strings"
)

// minPlausibleYear and maxPlausibleYear bound the calendar range a 4-digit
// number may occupy before it is treated as an OCR artifact.
const (
	minPlausibleYear = 1900
	maxPlausibleYear = 2100
)

// rule is a single cleaning pass. Exactly one of replacement or apply is used.
type rule struct {
	label       string
	re          *regexp.Regexp
	replacement string
	apply       func(match string) string
}

var (
	stackFrameRE = regexp.MustCompile(`(?m)^\s*at\s+[^\s(]+\s*\([^)]*\)\s*$|(?m)^\s*at\s+\S+:\d+(?::\d+)?\s*$`)
	fileLineRE   = regexp.MustCompile(`[\w./\\-]+\.(?:js|jsx|ts|tsx|go|py|java|kt|swift|rb|c|cpp|h)(?::\d+){1,2}`)
	thrownErrRE  = regexp.MustCompile(`(?m)^\s*(?:Uncaught\s+)?(?:\w*Error|\w*Exception|Traceback)\b[:(].*$`)
	consoleRE    = regexp.MustCompile(`console\.(?:log|warn|error|info|debug|trace)\s*\([^)\n]*\)\s*;?`)
	numberPairRE = regexp.MustCompile(`(?m)^\s*\d{1,5}\s+\d{1,5}\s*$`)
	slashNumsRE  = regexp.MustCompile(`\b(\d{1,4})/(\d{1,4})/(\d{1,4})\b`)
	keywordRE    = regexp.MustCompile(`(?m)^\s*(?:const|let|var|function|return|import|export|class|if|for|while)\s+[^\n]*[;{}()=][^\n]*$`)
	bareYearRE   = regexp.MustCompile(`\b\d{4}\b`)

	trailingSpaceRE = regexp.MustCompile(`(?m)[ \t]+$`)
	blankRunRE      = regexp.MustCompile(`\n{3,}`)
)

// contentRules remove noise spans. Order matters: later rules assume the
// earlier ones already ran.
var contentRules = []rule{
	{label: "stack frames", re: stackFrameRE, replacement: ""},
	{label: "file:line references", re: fileLineRE, replacement: ""},
	{label: "thrown errors", re: thrownErrRE, replacement: ""},
	{label: "console invocations", re: consoleRE, replacement: ""},
	{label: "line number pairs", re: numberPairRE, replacement: ""},
	{label: "numeric path triples", re: slashNumsRE, apply: dropNonDateTriple},
	{label: "keyword statements", re: keywordRE, replacement: ""},
	{label: "implausible years", re: bareYearRE, apply: dropImplausibleYear},
}

// Sanitize removes OCR and runtime noise from raw extracted text.
// It is pure, deterministic and total: it never fails, and empty input
// yields empty output.
func Sanitize(raw string) string {
	if raw == "" {
		return ""
	}

	text := raw
	for _, r := range contentRules {
		if r.apply != nil {
			text = r.re.ReplaceAllStringFunc(text, r.apply)
		} else {
			text = r.re.ReplaceAllString(text, r.replacement)
		}
	}

	return normalizeWhitespace(text)
}

// normalizeWhitespace runs last: the removal passes above leave ragged gaps.
func normalizeWhitespace(text string) string {
	text = blankRunRE.ReplaceAllString(text, "\n\n")
	text = trailingSpaceRE.ReplaceAllString(text, "")
	// Stripping trailing whitespace can produce fresh blank-line runs.
	text = blankRunRE.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// dropNonDateTriple keeps slash-delimited triples that plausibly form a
// calendar date and removes the ones that look like paths or line refs.
func dropNonDateTriple(match string) string {
	parts := strings.Split(match, "/")
	if len(parts) != 3 {
		return match
	}
	a, _ := strconv.Atoi(parts[0])
	b, _ := strconv.Atoi(parts[1])
	c, _ := strconv.Atoi(parts[2])

	// dd/mm/yyyy or mm/dd/yyyy
	if len(parts[2]) == 4 && c >= minPlausibleYear && c <= maxPlausibleYear && a >= 1 && a <= 31 && b >= 1 && b <= 31 {
		return match
	}
	// yyyy/mm/dd
	if len(parts[0]) == 4 && a >= minPlausibleYear && a <= maxPlausibleYear && b >= 1 && b <= 12 && c >= 1 && c <= 31 {
		return match
	}
	return ""
}

// dropImplausibleYear zeroes 4-digit numbers outside the calendar range.
// Only the number is removed, never the surrounding line.
func dropImplausibleYear(match string) string {
	year, err := strconv.Atoi(match)
	if err != nil {
		return match
	}
	if year < minPlausibleYear || year > maxPlausibleYear {
		return ""
	}
	return match
}
