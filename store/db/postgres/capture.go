package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/memexhq/memex/store"
)

const captureFields = `id, uid, creator_id, created_ts, updated_ts, media_url, media_kind, note, tags,
	extracted_text, status, processed_ts, extracted_date, extracted_time, extracted_timestamp,
	temporal_confidence, temporal_context, embedding`

func (d *DB) CreateCapture(ctx context.Context, create *store.Capture) (*store.Capture, error) {
	stmt := `
		INSERT INTO capture (uid, creator_id, created_ts, updated_ts, media_url, media_kind, note, tags, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	err := d.db.QueryRowContext(ctx, stmt,
		create.UID,
		create.CreatorID,
		create.CreatedTs,
		create.UpdatedTs,
		create.MediaURL,
		string(create.MediaKind),
		create.Note,
		pq.Array(create.Tags),
		string(create.Status),
	).Scan(&create.ID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create capture")
	}
	return create, nil
}

func (d *DB) ListCaptures(ctx context.Context, find *store.FindCapture) ([]*store.Capture, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.UID != nil {
		where, args = append(where, "uid = "+placeholder(len(args)+1)), append(args, *find.UID)
	}
	if find.CreatorID != nil {
		where, args = append(where, "creator_id = "+placeholder(len(args)+1)), append(args, *find.CreatorID)
	}
	if len(find.Statuses) > 0 {
		statuses := make([]string, len(find.Statuses))
		for i, s := range find.Statuses {
			statuses[i] = string(s)
		}
		where, args = append(where, "status = ANY("+placeholder(len(args)+1)+")"), append(args, pq.Array(statuses))
	}

	query := `SELECT ` + captureFields + ` FROM capture WHERE ` + strings.Join(where, " AND ") + ` ORDER BY created_ts DESC, id DESC`
	if find.Limit != nil {
		query += " LIMIT " + placeholder(len(args)+1)
		args = append(args, *find.Limit)
		if find.Offset != nil {
			query += " OFFSET " + placeholder(len(args)+1)
			args = append(args, *find.Offset)
		}
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list captures")
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

func (d *DB) UpdateCapture(ctx context.Context, update *store.UpdateCapture) error {
	set, args := []string{}, []any{}

	if update.UpdatedTs != nil {
		set, args = append(set, "updated_ts = "+placeholder(len(args)+1)), append(args, *update.UpdatedTs)
	}
	if update.Note != nil {
		set, args = append(set, "note = "+placeholder(len(args)+1)), append(args, *update.Note)
	}
	if update.Tags != nil {
		set, args = append(set, "tags = "+placeholder(len(args)+1)), append(args, pq.Array(update.Tags))
	}
	if update.ExtractedText != nil {
		set, args = append(set, "extracted_text = "+placeholder(len(args)+1)), append(args, *update.ExtractedText)
	}
	if update.Status != nil {
		set, args = append(set, "status = "+placeholder(len(args)+1)), append(args, string(*update.Status))
	}
	if update.ProcessedTs != nil {
		set, args = append(set, "processed_ts = "+placeholder(len(args)+1)), append(args, *update.ProcessedTs)
	}
	if update.ExtractedDate != nil {
		set, args = append(set, "extracted_date = "+placeholder(len(args)+1)), append(args, *update.ExtractedDate)
	}
	if update.ExtractedTime != nil {
		set, args = append(set, "extracted_time = "+placeholder(len(args)+1)), append(args, *update.ExtractedTime)
	}
	if update.ExtractedTimestamp != nil {
		set, args = append(set, "extracted_timestamp = "+placeholder(len(args)+1)), append(args, *update.ExtractedTimestamp)
	}
	if update.TemporalConfidence != nil {
		set, args = append(set, "temporal_confidence = "+placeholder(len(args)+1)), append(args, *update.TemporalConfidence)
	}
	if update.TemporalContext != nil {
		payload, err := json.Marshal(update.TemporalContext)
		if err != nil {
			return errors.Wrap(err, "failed to marshal temporal context")
		}
		set, args = append(set, "temporal_context = "+placeholder(len(args)+1)), append(args, payload)
	}
	if update.Embedding != nil {
		set, args = append(set, "embedding = "+placeholder(len(args)+1)), append(args, pgvector.NewVector(update.Embedding))
	}

	if len(set) == 0 {
		return nil
	}

	stmt := `UPDATE capture SET ` + strings.Join(set, ", ") + ` WHERE id = ` + placeholder(len(args)+1)
	args = append(args, update.ID)

	if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
		return errors.Wrap(err, "failed to update capture")
	}
	return nil
}

func (d *DB) DeleteCapture(ctx context.Context, delete *store.DeleteCapture) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM capture WHERE id = $1`, delete.ID); err != nil {
		return errors.Wrap(err, "failed to delete capture")
	}
	return nil
}

func (d *DB) TransitionCaptureStatus(ctx context.Context, id int32, from []store.ProcessingStatus, to store.ProcessingStatus) (bool, error) {
	statuses := make([]string, len(from))
	for i, s := range from {
		statuses[i] = string(s)
	}

	result, err := d.db.ExecContext(ctx,
		`UPDATE capture SET status = $1 WHERE id = $2 AND status = ANY($3)`,
		string(to), id, pq.Array(statuses),
	)
	if err != nil {
		return false, errors.Wrap(err, "failed to transition capture status")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to read affected rows")
	}
	return rows > 0, nil
}

// scanCapture scans one capture row, including its nullable derived fields.
func scanCapture(rows *sql.Rows) (*store.Capture, error) {
	var capture store.Capture
	var tags pq.StringArray
	var mediaKind, status string
	var processedTs, extractedTimestamp sql.NullInt64
	var contextPayload []byte
	var embedding sql.Null[pgvector.Vector]

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
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to scan capture")
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
	return &capture, nil
}
