package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/memexhq/memex/plugin/temporal"
)

func TestCombine(t *testing.T) {
	temporalResult := &temporal.Result{
		Context: map[string]temporal.ContextMatch{
			"tomorrow":  {Text: "tomorrow", Offset: 5},
			"next_week": {Text: "next week", Offset: 20},
		},
	}

	tests := []struct {
		name          string
		note          string
		extractedText string
		tags          []string
		temporal      *temporal.Result
		expected      string
	}{
		{
			name:     "all empty",
			expected: "",
		},
		{
			name:     "note only",
			note:     "Call the bank",
			expected: "Note: Call the bank",
		},
		{
			name:          "extracted text only",
			extractedText: "Invoice total $450",
			expected:      "Content: Invoice total $450",
		},
		{
			name:     "tags only",
			tags:     []string{"finance", "urgent"},
			expected: "Tags: finance, urgent",
		},
		{
			name:     "temporal context only",
			temporal: temporalResult,
			expected: "Temporal context: tomorrow next week",
		},
		{
			name:          "all sections in fixed order",
			note:          "Pay invoice",
			extractedText: "Invoice total $450",
			tags:          []string{"finance"},
			temporal:      temporalResult,
			expected:      "Note: Pay invoice\n\nContent: Invoice total $450\n\nTags: finance\n\nTemporal context: tomorrow next week",
		},
		{
			name:          "whitespace-only sections omitted",
			note:          "   ",
			extractedText: "\n\t",
			tags:          nil,
			expected:      "",
		},
		{
			name:     "temporal result without context omitted",
			note:     "Pay invoice",
			temporal: &temporal.Result{Date: "2024-03-14"},
			expected: "Note: Pay invoice",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Combine(tt.note, tt.extractedText, tt.tags, tt.temporal)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestCombineDeterministic(t *testing.T) {
	temporalResult := &temporal.Result{
		Context: map[string]temporal.ContextMatch{
			"3_days_ago": {Text: "3 days ago", Offset: 40},
			"yesterday":  {Text: "yesterday", Offset: 8},
			"next_week":  {Text: "next week", Offset: 25},
		},
	}

	first := Combine("note", "text", []string{"a", "b"}, temporalResult)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Combine("note", "text", []string{"a", "b"}, temporalResult))
	}
	assert.Contains(t, first, "Temporal context: yesterday next week 3 days ago")
}
