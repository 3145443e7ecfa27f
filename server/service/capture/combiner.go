// Package capture implements the capture processing pipeline: sanitizing
// OCR output, extracting temporal metadata, assembling the embedding input
// and driving the per-capture processing state machine.
package capture

import (
	"strings"

	"github.com/memexhq/memex/plugin/temporal"
)

// Combine assembles the canonical text blob used as embedding input from a
// capture's note, sanitized extracted text, tags and temporal context.
//
// Sections are emitted in a fixed order and absent sections are omitted
// entirely, so the output is deterministic for a given input.
func Combine(note, extractedText string, tags []string, temporalResult *temporal.Result) string {
	sections := make([]string, 0, 4)

	if trimmed := strings.TrimSpace(note); trimmed != "" {
		sections = append(sections, "Note: "+trimmed)
	}
	if trimmed := strings.TrimSpace(extractedText); trimmed != "" {
		sections = append(sections, "Content: "+trimmed)
	}
	if len(tags) > 0 {
		sections = append(sections, "Tags: "+strings.Join(tags, ", "))
	}
	if temporalResult != nil {
		if texts := temporalResult.ContextTexts(); len(texts) > 0 {
			sections = append(sections, "Temporal context: "+strings.Join(texts, " "))
		}
	}

	return strings.Join(sections, "\n\n")
}
