// Package process provides a background runner that drives the capture
// processing pipeline over pending captures.
package process

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	apperrors "github.com/memexhq/memex/server/internal/errors"
	"github.com/memexhq/memex/server/service/capture"
	"github.com/memexhq/memex/store"
)

// Runner periodically processes captures awaiting pipeline work.
type Runner struct {
	store     *store.Store
	processor *capture.Processor
	interval  time.Duration
	batchSize int
	semaphore chan struct{} // Limits concurrent async processing
}

// NewRunner creates a capture processing runner.
func NewRunner(store *store.Store, processor *capture.Processor, interval time.Duration) *Runner {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Runner{
		store:     store,
		processor: processor,
		interval:  interval,
		batchSize: 5,
		semaphore: make(chan struct{}, 10),
	}
}

// Run starts the background task.
func (r *Runner) Run(ctx context.Context) {
	slog.Info("capture processing runner started", "interval", r.interval)

	// Process once on startup
	r.processPendingCaptures(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.processPendingCaptures(ctx)
		case <-ctx.Done():
			slog.Info("capture processing runner stopped")
			return
		}
	}
}

// RunOnce processes pending captures once (for manual trigger).
func (r *Runner) RunOnce(ctx context.Context) {
	r.processPendingCaptures(ctx)
}

// processPendingCaptures runs the pipeline over every pending capture with
// an all-settle policy: one capture failing never cancels its siblings.
func (r *Runner) processPendingCaptures(ctx context.Context) {
	limit := r.batchSize * 10
	pending, err := r.store.ListCaptures(ctx, &store.FindCapture{
		Statuses: []store.ProcessingStatus{store.StatusPending},
		Limit:    &limit,
	})
	if err != nil {
		slog.Error("failed to find pending captures", "error", err)
		return
	}
	if len(pending) == 0 {
		return
	}

	slog.Info("processing pending captures", "count", len(pending))

	for i := 0; i < len(pending); i += r.batchSize {
		select {
		case <-ctx.Done():
			slog.Info("capture processing cancelled", "processed", i, "total", len(pending))
			return
		default:
		}

		end := i + r.batchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[i:end]

		for _, c := range batch {
			if _, err := r.processor.Process(ctx, c.ID, c.CreatorID); err != nil {
				if apperrors.IsCode(err, apperrors.ErrCodeAlreadyInProgress) {
					continue
				}
				slog.Warn("failed to process capture", "id", c.ID, "error", err)
			}
		}
		slog.Info("batch processed", "count", len(batch), "progress", fmt.Sprintf("%d/%d", end, len(pending)))
	}
}

// ProcessCaptureAsync processes a single capture asynchronously. This is
// called when a new capture is uploaded; the semaphore sheds load instead
// of queueing when the concurrency limit is reached.
func (r *Runner) ProcessCaptureAsync(captureID, ownerID int32) {
	select {
	case r.semaphore <- struct{}{}:
	default:
		slog.Warn("async capture processing skipped (concurrency limit reached)", "capture_id", captureID)
		return
	}

	go func() {
		defer func() { <-r.semaphore }()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		if _, err := r.processor.Process(ctx, captureID, ownerID); err != nil {
			if apperrors.IsCode(err, apperrors.ErrCodeAlreadyInProgress) {
				return
			}
			slog.Error("async capture processing failed", "capture_id", captureID, "error", err)
		}
	}()
}
