package capture

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memexhq/memex/plugin/temporal"
	apperrors "github.com/memexhq/memex/server/internal/errors"
	"github.com/memexhq/memex/store"
)

// fakeDriver is an in-memory store.Driver for pipeline tests.
type fakeDriver struct {
	captures map[int32]*store.Capture
	updates  []*store.UpdateCapture

	transitionErr error
	updateErr     error
	// failUpdateOnCompleted fails only the completion write so the
	// subsequent failed-status write still lands.
	failUpdateOnCompleted bool
}

func newFakeDriver(captures ...*store.Capture) *fakeDriver {
	d := &fakeDriver{captures: make(map[int32]*store.Capture)}
	for _, c := range captures {
		d.captures[c.ID] = c
	}
	return d
}

func (*fakeDriver) GetDB() *sql.DB { return nil }

func (*fakeDriver) Close() error { return nil }

func (*fakeDriver) IsInitialized(context.Context) (bool, error) { return true, nil }

func (*fakeDriver) Migrate(context.Context) error { return nil }

func (d *fakeDriver) CreateCapture(_ context.Context, create *store.Capture) (*store.Capture, error) {
	create.ID = int32(len(d.captures) + 1)
	d.captures[create.ID] = create
	return create, nil
}

func (d *fakeDriver) ListCaptures(_ context.Context, find *store.FindCapture) ([]*store.Capture, error) {
	var list []*store.Capture
	for _, c := range d.captures {
		if find.ID != nil && c.ID != *find.ID {
			continue
		}
		if find.CreatorID != nil && c.CreatorID != *find.CreatorID {
			continue
		}
		if len(find.Statuses) > 0 && !containsStatus(find.Statuses, c.Status) {
			continue
		}
		list = append(list, c)
	}
	return list, nil
}

func (d *fakeDriver) UpdateCapture(_ context.Context, update *store.UpdateCapture) error {
	if d.updateErr != nil {
		return d.updateErr
	}
	if d.failUpdateOnCompleted && update.Status != nil && *update.Status == store.StatusCompleted {
		return errors.New("write rejected")
	}
	d.updates = append(d.updates, update)
	c, ok := d.captures[update.ID]
	if !ok {
		return errors.New("capture not found")
	}
	if update.Status != nil {
		c.Status = *update.Status
	}
	if update.ExtractedText != nil {
		c.ExtractedText = *update.ExtractedText
	}
	if update.ProcessedTs != nil {
		c.ProcessedTs = update.ProcessedTs
	}
	if update.ExtractedDate != nil {
		c.ExtractedDate = *update.ExtractedDate
	}
	if update.ExtractedTime != nil {
		c.ExtractedTime = *update.ExtractedTime
	}
	if update.ExtractedTimestamp != nil {
		c.ExtractedTimestamp = update.ExtractedTimestamp
	}
	if update.TemporalConfidence != nil {
		c.TemporalConfidence = *update.TemporalConfidence
	}
	if update.TemporalContext != nil {
		c.TemporalContext = update.TemporalContext
	}
	if update.Embedding != nil {
		c.Embedding = update.Embedding
	}
	return nil
}

func (d *fakeDriver) DeleteCapture(_ context.Context, del *store.DeleteCapture) error {
	delete(d.captures, del.ID)
	return nil
}

func (d *fakeDriver) TransitionCaptureStatus(_ context.Context, id int32, from []store.ProcessingStatus, to store.ProcessingStatus) (bool, error) {
	if d.transitionErr != nil {
		return false, d.transitionErr
	}
	c, ok := d.captures[id]
	if !ok || !containsStatus(from, c.Status) {
		return false, nil
	}
	c.Status = to
	return true, nil
}

func (*fakeDriver) VectorSearchCaptures(context.Context, *store.VectorSearchOptions) ([]*store.CaptureWithScore, error) {
	return nil, nil
}

func (*fakeDriver) LexicalSearchCaptures(context.Context, *store.LexicalSearchOptions) ([]*store.Capture, error) {
	return nil, nil
}

func containsStatus(statuses []store.ProcessingStatus, status store.ProcessingStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

type fakeOCR struct {
	text  string
	err   error
	calls int
}

func (f *fakeOCR) DetectText(context.Context, string) (string, error) {
	f.calls++
	return f.text, f.err
}

type fakeEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (f *fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

func (f *fakeEmbedder) Dimensions() int { return len(f.vector) }

var processorNow = time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)

func newTestProcessor(driver *fakeDriver, ocr OCRService, embedder *fakeEmbedder) *Processor {
	st := store.New(driver, nil)
	p := NewProcessor(st, ocr, nil, temporal.NewExtractor(temporal.NewRuleParser()))
	if embedder != nil {
		p.embedder = embedder
	}
	p.nowFn = func() time.Time { return processorNow }
	return p
}

func TestProcessTextCapture(t *testing.T) {
	created := time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC)
	capture := &store.Capture{
		ID:        1,
		UID:       "cap-1",
		CreatorID: 7,
		CreatedTs: created.Unix(),
		Note:      "Doctor appointment tomorrow at 3pm",
		Status:    store.StatusPending,
	}
	driver := newFakeDriver(capture)
	embedder := &fakeEmbedder{vector: []float32{0.1, 0.2, 0.3}}
	processor := newTestProcessor(driver, nil, embedder)

	outcome, err := processor.Process(context.Background(), 1, 7)
	require.NoError(t, err)
	require.NotNil(t, outcome)
	assert.False(t, outcome.AlreadyCompleted)
	assert.Empty(t, outcome.ExtractedText)
	assert.True(t, outcome.EmbeddingGenerated)

	require.NotNil(t, outcome.Temporal)
	assert.Equal(t, "2024-03-15", outcome.Temporal.Date)
	assert.Equal(t, "15:00", outcome.Temporal.TimeOfDay)
	assert.Contains(t, outcome.Temporal.Context, "tomorrow")

	assert.Equal(t, store.StatusCompleted, capture.Status)
	assert.Equal(t, "2024-03-15", capture.ExtractedDate)
	assert.Equal(t, "15:00", capture.ExtractedTime)
	require.NotNil(t, capture.ProcessedTs)
	assert.Equal(t, processorNow.Unix(), *capture.ProcessedTs)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, capture.Embedding)
	assert.Equal(t, 1, embedder.calls)
}

func TestProcessImageCapture(t *testing.T) {
	capture := &store.Capture{
		ID:        2,
		CreatorID: 7,
		CreatedTs: processorNow.Unix(),
		MediaURL:  "/data/invoice.png",
		MediaKind: store.MediaKindImage,
		Note:      "invoice for the contractor",
		Status:    store.StatusPending,
	}
	driver := newFakeDriver(capture)
	ocr := &fakeOCR{text: "ACME Corp\nInvoice #1023\nDate: 03/14/2024\nTotal: $450.00"}
	embedder := &fakeEmbedder{vector: []float32{0.5}}
	processor := newTestProcessor(driver, ocr, embedder)

	outcome, err := processor.Process(context.Background(), 2, 7)
	require.NoError(t, err)
	assert.Equal(t, 1, ocr.calls)
	assert.Contains(t, outcome.ExtractedText, "ACME Corp")
	assert.Contains(t, outcome.ExtractedText, "$450.00")
	assert.NotContains(t, outcome.ExtractedText, "1023")

	require.NotNil(t, outcome.Temporal)
	assert.Equal(t, "2024-03-14", outcome.Temporal.Date)
	assert.Equal(t, store.StatusCompleted, capture.Status)
	assert.Equal(t, "2024-03-14", capture.ExtractedDate)
}

func TestProcessAlreadyCompleted(t *testing.T) {
	capture := &store.Capture{
		ID:            3,
		CreatorID:     7,
		Status:        store.StatusCompleted,
		ExtractedText: "previous text",
		Embedding:     []float32{0.1},
	}
	driver := newFakeDriver(capture)
	ocr := &fakeOCR{text: "should never run"}
	processor := newTestProcessor(driver, ocr, nil)

	outcome, err := processor.Process(context.Background(), 3, 7)
	require.NoError(t, err)
	assert.True(t, outcome.AlreadyCompleted)
	assert.Equal(t, "previous text", outcome.ExtractedText)
	assert.True(t, outcome.EmbeddingGenerated)
	assert.Zero(t, ocr.calls)
	assert.Empty(t, driver.updates)
}

func TestProcessAlreadyProcessing(t *testing.T) {
	capture := &store.Capture{ID: 4, CreatorID: 7, Status: store.StatusProcessing}
	driver := newFakeDriver(capture)
	processor := newTestProcessor(driver, nil, nil)

	_, err := processor.Process(context.Background(), 4, 7)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeAlreadyInProgress))
}

func TestProcessNotFound(t *testing.T) {
	driver := newFakeDriver()
	processor := newTestProcessor(driver, nil, nil)

	_, err := processor.Process(context.Background(), 99, 7)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))
}

func TestProcessWrongOwner(t *testing.T) {
	capture := &store.Capture{ID: 5, CreatorID: 7, Status: store.StatusPending}
	driver := newFakeDriver(capture)
	processor := newTestProcessor(driver, nil, nil)

	_, err := processor.Process(context.Background(), 5, 8)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))
}

func TestProcessOCRFailureMarksFailed(t *testing.T) {
	capture := &store.Capture{
		ID:        6,
		CreatorID: 7,
		MediaURL:  "/data/blurry.png",
		MediaKind: store.MediaKindImage,
		Status:    store.StatusPending,
	}
	driver := newFakeDriver(capture)
	ocr := &fakeOCR{err: errors.New("tesseract exited 1")}
	processor := newTestProcessor(driver, ocr, nil)

	_, err := processor.Process(context.Background(), 6, 7)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeExternalService))
	assert.Equal(t, store.StatusFailed, capture.Status)
}

func TestProcessEmbeddingFailureIsNonFatal(t *testing.T) {
	capture := &store.Capture{
		ID:        7,
		CreatorID: 7,
		CreatedTs: processorNow.Unix(),
		Note:      "remember the milk",
		Status:    store.StatusPending,
	}
	driver := newFakeDriver(capture)
	embedder := &fakeEmbedder{err: errors.New("backend unavailable")}
	processor := newTestProcessor(driver, nil, embedder)

	outcome, err := processor.Process(context.Background(), 7, 7)
	require.NoError(t, err)
	assert.False(t, outcome.EmbeddingGenerated)
	assert.Equal(t, store.StatusCompleted, capture.Status)
	assert.Nil(t, capture.Embedding)
	assert.Equal(t, 1, embedder.calls)
}

func TestProcessFailedCaptureIsRetried(t *testing.T) {
	capture := &store.Capture{
		ID:        8,
		CreatorID: 7,
		CreatedTs: processorNow.Unix(),
		Note:      "try again",
		Status:    store.StatusFailed,
	}
	driver := newFakeDriver(capture)
	processor := newTestProcessor(driver, nil, nil)

	outcome, err := processor.Process(context.Background(), 8, 7)
	require.NoError(t, err)
	assert.False(t, outcome.AlreadyCompleted)
	assert.Equal(t, store.StatusCompleted, capture.Status)
}

func TestProcessTransitionFailureIsFatal(t *testing.T) {
	capture := &store.Capture{ID: 9, CreatorID: 7, Status: store.StatusPending}
	driver := newFakeDriver(capture)
	driver.transitionErr = errors.New("connection reset")
	processor := newTestProcessor(driver, nil, nil)

	_, err := processor.Process(context.Background(), 9, 7)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeStatusUpdate))
	// No failed write: the capture's durable status is unknown.
	assert.Equal(t, store.StatusPending, capture.Status)
	assert.Empty(t, driver.updates)
}

func TestProcessPersistFailureMarksFailed(t *testing.T) {
	capture := &store.Capture{
		ID:        10,
		CreatorID: 7,
		CreatedTs: processorNow.Unix(),
		Note:      "note text",
		Status:    store.StatusPending,
	}
	driver := newFakeDriver(capture)
	driver.failUpdateOnCompleted = true
	processor := newTestProcessor(driver, nil, nil)

	_, err := processor.Process(context.Background(), 10, 7)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodePersistence))
	assert.Equal(t, store.StatusFailed, capture.Status)
}

func TestJoinNonEmpty(t *testing.T) {
	assert.Equal(t, "", joinNonEmpty("", "  "))
	assert.Equal(t, "a", joinNonEmpty("a", ""))
	assert.Equal(t, "a\nb", joinNonEmpty("a", "b"))
}
