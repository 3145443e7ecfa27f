package store

import (
	"context"

	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"
)

// ProcessingStatus is the state of the capture processing pipeline for one
// capture.
type ProcessingStatus string

const (
	// StatusPending marks a capture that has never been processed.
	StatusPending ProcessingStatus = "pending"
	// StatusProcessing marks a capture with an in-flight processing attempt.
	StatusProcessing ProcessingStatus = "processing"
	// StatusCompleted marks a successfully processed capture.
	StatusCompleted ProcessingStatus = "completed"
	// StatusFailed marks a capture whose last processing attempt failed.
	// Failed captures remain eligible for a fresh attempt.
	StatusFailed ProcessingStatus = "failed"
)

// MediaKind identifies the kind of captured media.
type MediaKind string

const (
	MediaKindImage MediaKind = "image"
	MediaKindVideo MediaKind = "video"
	MediaKindAudio MediaKind = "audio"
)

// TemporalSpan is one contextual temporal phrase projected onto a capture.
type TemporalSpan struct {
	Text   string `json:"text"`
	Offset int    `json:"offset"`
}

// Capture is a single user-saved media item plus its metadata and derived
// fields. The derived fields are owned exclusively by the processing
// pipeline and are never user-writable.
type Capture struct {
	// ID is the system generated unique identifier for the capture.
	ID int32
	// UID is the externally visible unique identifier.
	UID string

	// Standard fields
	CreatorID int32
	CreatedTs int64
	UpdatedTs int64

	// User-authored fields
	MediaURL  string
	MediaKind MediaKind
	Note      string
	Tags      []string

	// Derived fields, owned by the pipeline.
	ExtractedText      string
	Status             ProcessingStatus
	ProcessedTs        *int64
	ExtractedDate      string
	ExtractedTime      string
	ExtractedTimestamp *int64
	TemporalConfidence float64
	TemporalContext    map[string]TemporalSpan

	// Embedding is present only when generation succeeded. Absence is a
	// valid, non-error terminal state.
	Embedding []float32
}

// FindCapture is the find condition for captures.
type FindCapture struct {
	ID        *int32
	UID       *string
	CreatorID *int32
	Statuses  []ProcessingStatus
	Limit     *int
	Offset    *int
}

// UpdateCapture carries a partial update: only non-nil fields change.
// A nil TemporalContext or Embedding leaves the stored value untouched.
type UpdateCapture struct {
	ID                 int32
	UpdatedTs          *int64
	Note               *string
	Tags               []string
	ExtractedText      *string
	Status             *ProcessingStatus
	ProcessedTs        *int64
	ExtractedDate      *string
	ExtractedTime      *string
	ExtractedTimestamp *int64
	TemporalConfidence *float64
	TemporalContext    map[string]TemporalSpan
	Embedding          []float32
}

// DeleteCapture is the delete condition for captures.
type DeleteCapture struct {
	ID int32
}

// CaptureWithScore is a vector search result with its similarity score.
type CaptureWithScore struct {
	Capture *Capture
	// Score is cosine similarity in [0, 1], higher is more similar.
	Score float32
}

// VectorSearchOptions are the options for vector similarity search.
type VectorSearchOptions struct {
	CreatorID int32
	Vector    []float32
	Threshold float32
	Limit     int
}

// LexicalSearchOptions are the options for full-text search. Only completed
// captures are matched; results come back newest-first.
type LexicalSearchOptions struct {
	CreatorID int32
	Query     string
	Limit     int
}

func (s *Store) CreateCapture(ctx context.Context, create *Capture) (*Capture, error) {
	if create.UID == "" {
		create.UID = shortuuid.New()
	}
	if create.Status == "" {
		create.Status = StatusPending
	}
	return s.driver.CreateCapture(ctx, create)
}

func (s *Store) ListCaptures(ctx context.Context, find *FindCapture) ([]*Capture, error) {
	return s.driver.ListCaptures(ctx, find)
}

// GetCapture returns a single capture or nil when none matches.
func (s *Store) GetCapture(ctx context.Context, find *FindCapture) (*Capture, error) {
	captures, err := s.ListCaptures(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(captures) == 0 {
		return nil, nil
	}
	return captures[0], nil
}

func (s *Store) UpdateCapture(ctx context.Context, update *UpdateCapture) error {
	return s.driver.UpdateCapture(ctx, update)
}

func (s *Store) DeleteCapture(ctx context.Context, delete *DeleteCapture) error {
	return s.driver.DeleteCapture(ctx, delete)
}

// TransitionCaptureStatus atomically moves a capture from one of the
// expected statuses to the target status. It returns false (no error) when
// the capture was not in an expected status, which closes the re-entrancy
// race between concurrent processing attempts.
func (s *Store) TransitionCaptureStatus(ctx context.Context, id int32, from []ProcessingStatus, to ProcessingStatus) (bool, error) {
	if len(from) == 0 {
		return false, errors.New("expected prior statuses are required")
	}
	return s.driver.TransitionCaptureStatus(ctx, id, from, to)
}

// VectorSearchCaptures performs vector similarity search.
func (s *Store) VectorSearchCaptures(ctx context.Context, opts *VectorSearchOptions) ([]*CaptureWithScore, error) {
	return s.driver.VectorSearchCaptures(ctx, opts)
}

// LexicalSearchCaptures performs full-text search over completed captures.
func (s *Store) LexicalSearchCaptures(ctx context.Context, opts *LexicalSearchOptions) ([]*Capture, error) {
	return s.driver.LexicalSearchCaptures(ctx, opts)
}
