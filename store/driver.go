package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that a store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	IsInitialized(ctx context.Context) (bool, error)
	Migrate(ctx context.Context) error

	// Capture model related methods.
	CreateCapture(ctx context.Context, create *Capture) (*Capture, error)
	ListCaptures(ctx context.Context, find *FindCapture) ([]*Capture, error)
	UpdateCapture(ctx context.Context, update *UpdateCapture) error
	DeleteCapture(ctx context.Context, delete *DeleteCapture) error

	// TransitionCaptureStatus atomically updates the processing status,
	// failing (returning false) when the capture is not in an expected
	// prior status.
	TransitionCaptureStatus(ctx context.Context, id int32, from []ProcessingStatus, to ProcessingStatus) (bool, error)

	// VectorSearchCaptures performs semantic search using vector similarity.
	VectorSearchCaptures(ctx context.Context, opts *VectorSearchOptions) ([]*CaptureWithScore, error)

	// LexicalSearchCaptures performs full-text search over completed
	// captures, newest-first.
	LexicalSearchCaptures(ctx context.Context, opts *LexicalSearchOptions) ([]*Capture, error)
}
