package temporal

import (
	"time"
)

// MockParser is a DateParser test double with scripted behavior.
type MockParser struct {
	// MatchResult is returned from every Parse call.
	MatchResult *Match
	// Err is returned from every Parse call.
	Err error
	// Calls records the inputs of each Parse call.
	Calls []MockParseCall
}

// MockParseCall records one Parse invocation.
type MockParseCall struct {
	Text      string
	Reference time.Time
}

// Parse implements DateParser.
func (m *MockParser) Parse(text string, reference time.Time) (*Match, error) {
	m.Calls = append(m.Calls, MockParseCall{Text: text, Reference: reference})
	if m.Err != nil {
		return nil, m.Err
	}
	return m.MatchResult, nil
}

var _ DateParser = (*MockParser)(nil)
