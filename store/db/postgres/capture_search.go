package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/memexhq/memex/store"
)

// VectorSearchCaptures performs vector similarity search using pgvector.
// The <=> operator computes cosine distance (1 - cosine_similarity), so
// ordering by distance ascending yields the most similar captures first.
func (d *DB) VectorSearchCaptures(ctx context.Context, opts *store.VectorSearchOptions) ([]*store.CaptureWithScore, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT ` + captureFields + `,
			1 - (embedding <=> $1) AS score
		FROM capture
		WHERE creator_id = $2
			AND embedding IS NOT NULL
			AND status = 'completed'
			AND 1 - (embedding <=> $1) >= $3
		ORDER BY embedding <=> $1
		LIMIT $4
	`

	vector := pgvector.NewVector(opts.Vector)
	rows, err := d.db.QueryContext(ctx, query, vector, opts.CreatorID, opts.Threshold, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to vector search captures")
	}
	defer rows.Close()

	results := []*store.CaptureWithScore{}
	for rows.Next() {
		result, err := scanCaptureWithScore(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// LexicalSearchCaptures performs full-text search over the note and
// extracted text of completed captures, newest-first.
func (d *DB) LexicalSearchCaptures(ctx context.Context, opts *store.LexicalSearchOptions) ([]*store.Capture, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT ` + captureFields + `
		FROM capture
		WHERE creator_id = $1
			AND status = 'completed'
			AND to_tsvector('english', note || ' ' || extracted_text) @@ websearch_to_tsquery('english', $2)
		ORDER BY created_ts DESC, id DESC
		LIMIT $3
	`

	rows, err := d.db.QueryContext(ctx, query, opts.CreatorID, opts.Query, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to lexical search captures")
	}
	defer rows.Close()

	list := []*store.Capture{}
	for rows.Next() {
		capture, err := scanCapture(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, capture)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

// scanCaptureWithScore scans a capture row with a trailing score column.
func scanCaptureWithScore(rows *sql.Rows) (*store.CaptureWithScore, error) {
	var capture store.Capture
	var tags pq.StringArray
	var mediaKind, status string
	var processedTs, extractedTimestamp sql.NullInt64
	var contextPayload []byte
	var embedding sql.Null[pgvector.Vector]
	var score float32

	err := rows.Scan(
		&capture.ID,
		&capture.UID,
		&capture.CreatorID,
		&capture.CreatedTs,
		&capture.UpdatedTs,
		&capture.MediaURL,
		&mediaKind,
		&capture.Note,
		&tags,
		&capture.ExtractedText,
		&status,
		&processedTs,
		&capture.ExtractedDate,
		&capture.ExtractedTime,
		&extractedTimestamp,
		&capture.TemporalConfidence,
		&contextPayload,
		&embedding,
		&score,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to scan capture with score")
	}

	capture.MediaKind = store.MediaKind(mediaKind)
	capture.Status = store.ProcessingStatus(status)
	capture.Tags = []string(tags)
	if processedTs.Valid {
		capture.ProcessedTs = &processedTs.Int64
	}
	if extractedTimestamp.Valid {
		capture.ExtractedTimestamp = &extractedTimestamp.Int64
	}
	if len(contextPayload) > 0 {
		if err := json.Unmarshal(contextPayload, &capture.TemporalContext); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal temporal context")
		}
	}
	if embedding.Valid {
		capture.Embedding = embedding.V.Slice()
	}

	return &store.CaptureWithScore{Capture: &capture, Score: score}, nil
}
