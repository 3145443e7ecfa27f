package capture

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/memexhq/memex/plugin/ai"
	"github.com/memexhq/memex/plugin/sanitize"
	"github.com/memexhq/memex/plugin/temporal"
	apperrors "github.com/memexhq/memex/server/internal/errors"
	"github.com/memexhq/memex/store"
)

// OCRService detects text in captured images. Implementations are treated
// as unreliable and slow; errors are wrapped, never propagated raw.
type OCRService interface {
	DetectText(ctx context.Context, locator string) (string, error)
}

// Outcome is the result of one processing attempt.
type Outcome struct {
	CaptureID int32
	// AlreadyCompleted reports an idempotent short-circuit: the capture was
	// processed before and no pipeline work was re-issued.
	AlreadyCompleted   bool
	ExtractedText      string
	EmbeddingGenerated bool
	Temporal           *temporal.Result
}

// Processor drives the per-capture processing state machine.
//
// All collaborators are injected so tests can substitute doubles; the
// processor owns no durable state of its own.
type Processor struct {
	store     *store.Store
	ocr       OCRService          // nil disables OCR; image captures yield empty text
	embedder  ai.EmbeddingService // nil disables embedding generation
	extractor *temporal.Extractor
	nowFn     func() time.Time
}

// NewProcessor creates a capture processor.
func NewProcessor(store *store.Store, ocr OCRService, embedder ai.EmbeddingService, extractor *temporal.Extractor) *Processor {
	return &Processor{
		store:     store,
		ocr:       ocr,
		embedder:  embedder,
		extractor: extractor,
		nowFn:     time.Now,
	}
}

// Process runs the pipeline for one capture owned by ownerID.
//
// State transitions: pending/failed move to processing before any expensive
// work, then to exactly one of completed or failed. A capture already
// completed short-circuits; one already processing yields an
// ALREADY_IN_PROGRESS signal. Retry is a caller decision: failed captures
// stay eligible for a fresh attempt.
func (p *Processor) Process(ctx context.Context, captureID, ownerID int32) (*Outcome, error) {
	capture, err := p.store.GetCapture(ctx, &store.FindCapture{
		ID:        &captureID,
		CreatorID: &ownerID,
	})
	if err != nil {
		return nil, apperrors.Persistence("failed to load capture", err)
	}
	if capture == nil {
		return nil, apperrors.NotFound("capture not found")
	}

	switch capture.Status {
	case store.StatusCompleted:
		return &Outcome{
			CaptureID:          capture.ID,
			AlreadyCompleted:   true,
			ExtractedText:      capture.ExtractedText,
			EmbeddingGenerated: capture.Embedding != nil,
		}, nil
	case store.StatusProcessing:
		return nil, apperrors.AlreadyInProgress("capture is currently processing")
	}

	// The atomic transition is both the claim on the capture and the
	// re-entrancy guard; losing it means another attempt got there first.
	// A write failure here is fatal and un-recovered: we cannot know
	// whether the processing status was durably set.
	ok, err := p.store.TransitionCaptureStatus(ctx, capture.ID,
		[]store.ProcessingStatus{store.StatusPending, store.StatusFailed},
		store.StatusProcessing,
	)
	if err != nil {
		return nil, apperrors.StatusUpdate("failed to mark capture as processing", err)
	}
	if !ok {
		return nil, apperrors.AlreadyInProgress("capture was claimed by a concurrent attempt")
	}

	outcome, err := p.run(ctx, capture)
	if err != nil {
		p.markFailed(ctx, capture.ID)
		return nil, err
	}
	return outcome, nil
}

// run executes the pipeline stages against a claimed capture.
func (p *Processor) run(ctx context.Context, capture *store.Capture) (*Outcome, error) {
	extractedText := ""
	if capture.MediaKind == store.MediaKindImage && capture.MediaURL != "" {
		if p.ocr == nil {
			slog.Debug("OCR disabled, skipping text detection", "capture_id", capture.ID)
		} else {
			raw, err := p.ocr.DetectText(ctx, capture.MediaURL)
			if err != nil {
				return nil, apperrors.ExternalService("text detection failed", err)
			}
			extractedText = sanitize.Sanitize(raw)
		}
	}

	// The capture's own creation time seeds relative expressions so that
	// reprocessing long after upload does not shift "tomorrow".
	reference := time.Unix(capture.CreatedTs, 0)
	temporalResult := p.extractor.Extract(joinNonEmpty(capture.Note, extractedText), reference)

	combined := Combine(capture.Note, extractedText, capture.Tags, temporalResult)

	// Embedding failure is non-fatal: extracted text and temporal metadata
	// are worth more than failing the whole pipeline on a backend hiccup.
	var embedding []float32
	if combined != "" && p.embedder != nil {
		vector, err := p.embedder.Embed(ctx, combined)
		if err != nil {
			slog.Warn("embedding generation failed, continuing without embedding",
				"capture_id", capture.ID, "error", err)
		} else {
			embedding = vector
		}
	}

	now := p.nowFn().Unix()
	completed := store.StatusCompleted
	update := &store.UpdateCapture{
		ID:            capture.ID,
		UpdatedTs:     &now,
		ExtractedText: &extractedText,
		Status:        &completed,
		ProcessedTs:   &now,
		Embedding:     embedding,
	}
	if temporalResult != nil {
		if temporalResult.Date != "" {
			update.ExtractedDate = &temporalResult.Date
		}
		if temporalResult.TimeOfDay != "" {
			update.ExtractedTime = &temporalResult.TimeOfDay
		}
		if temporalResult.Timestamp != nil {
			ts := temporalResult.Timestamp.Unix()
			update.ExtractedTimestamp = &ts
		}
		update.TemporalConfidence = &temporalResult.Confidence
		update.TemporalContext = toTemporalSpans(temporalResult.Context)
	}

	if err := p.store.UpdateCapture(ctx, update); err != nil {
		return nil, apperrors.Persistence("failed to persist processing results", err)
	}

	return &Outcome{
		CaptureID:          capture.ID,
		ExtractedText:      extractedText,
		EmbeddingGenerated: embedding != nil,
		Temporal:           temporalResult,
	}, nil
}

// markFailed records the terminal failed status. The original error is
// surfaced to the caller regardless of whether this write succeeds.
func (p *Processor) markFailed(ctx context.Context, captureID int32) {
	now := p.nowFn().Unix()
	failed := store.StatusFailed
	err := p.store.UpdateCapture(ctx, &store.UpdateCapture{
		ID:          captureID,
		UpdatedTs:   &now,
		Status:      &failed,
		ProcessedTs: &now,
	})
	if err != nil {
		slog.Error("failed to mark capture as failed", "capture_id", captureID, "error", err)
	}
}

func toTemporalSpans(context map[string]temporal.ContextMatch) map[string]store.TemporalSpan {
	if len(context) == 0 {
		return nil
	}
	spans := make(map[string]store.TemporalSpan, len(context))
	for key, match := range context {
		spans[key] = store.TemporalSpan{Text: match.Text, Offset: match.Offset}
	}
	return spans
}

func joinNonEmpty(parts ...string) string {
	nonEmpty := make([]string, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) != "" {
			nonEmpty = append(nonEmpty, part)
		}
	}
	return strings.Join(nonEmpty, "\n")
}
