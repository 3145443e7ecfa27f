package search

import (
	"context"
	"database/sql"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/memexhq/memex/server/internal/errors"
	"github.com/memexhq/memex/store"
)

// searchDriver is a store.Driver double serving canned search results.
type searchDriver struct {
	vectorHits []*store.CaptureWithScore
	vectorErr  error
	vectorOpts *store.VectorSearchOptions

	lexicalHits []*store.Capture
	lexicalErr  error
	lexicalOpts *store.LexicalSearchOptions
}

func (*searchDriver) GetDB() *sql.DB { return nil }

func (*searchDriver) Close() error { return nil }

func (*searchDriver) IsInitialized(context.Context) (bool, error) { return true, nil }

func (*searchDriver) Migrate(context.Context) error { return nil }

func (*searchDriver) CreateCapture(_ context.Context, create *store.Capture) (*store.Capture, error) {
	return create, nil
}

func (*searchDriver) ListCaptures(context.Context, *store.FindCapture) ([]*store.Capture, error) {
	return nil, nil
}

func (*searchDriver) UpdateCapture(context.Context, *store.UpdateCapture) error { return nil }

func (*searchDriver) DeleteCapture(context.Context, *store.DeleteCapture) error { return nil }

func (*searchDriver) TransitionCaptureStatus(context.Context, int32, []store.ProcessingStatus, store.ProcessingStatus) (bool, error) {
	return false, nil
}

func (d *searchDriver) VectorSearchCaptures(_ context.Context, opts *store.VectorSearchOptions) ([]*store.CaptureWithScore, error) {
	d.vectorOpts = opts
	return d.vectorHits, d.vectorErr
}

func (d *searchDriver) LexicalSearchCaptures(_ context.Context, opts *store.LexicalSearchOptions) ([]*store.Capture, error) {
	d.lexicalOpts = opts
	return d.lexicalHits, d.lexicalErr
}

type stubEmbedder struct {
	vector []float32
	err    error
}

func (s *stubEmbedder) Embed(context.Context, string) ([]float32, error) {
	return s.vector, s.err
}

func (s *stubEmbedder) Dimensions() int { return len(s.vector) }

func capture(id int32) *store.Capture {
	return &store.Capture{ID: id, Status: store.StatusCompleted}
}

func newTestService(driver *searchDriver, embedder *stubEmbedder) *Service {
	if embedder == nil {
		return NewService(store.New(driver, nil), nil)
	}
	return NewService(store.New(driver, nil), embedder)
}

func TestSearchEmptyQuery(t *testing.T) {
	svc := newTestService(&searchDriver{}, &stubEmbedder{vector: []float32{0.1}})

	_, err := svc.Search(context.Background(), "   ", 1, Options{})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation))
}

func TestSearchUnsupportedMode(t *testing.T) {
	svc := newTestService(&searchDriver{}, &stubEmbedder{vector: []float32{0.1}})

	_, err := svc.Search(context.Background(), "invoices", 1, Options{Mode: "fuzzy"})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation))
}

func TestHybridSearchMerge(t *testing.T) {
	driver := &searchDriver{
		vectorHits: []*store.CaptureWithScore{
			{Capture: capture(1), Score: 0.92},
			{Capture: capture(2), Score: 0.60},
		},
		lexicalHits: []*store.Capture{
			capture(2), // collides with a semantic hit
			capture(3),
			capture(4),
		},
	}
	svc := newTestService(driver, &stubEmbedder{vector: []float32{0.1, 0.2}})

	results, err := svc.Search(context.Background(), "invoices", 1, Options{Mode: ModeHybrid})
	require.NoError(t, err)
	require.Len(t, results, 4)

	// Collisions keep the semantic hit and its true similarity.
	byID := make(map[int32]*Result)
	for _, r := range results {
		byID[r.Capture.ID] = r
	}
	assert.Equal(t, TypeSemantic, byID[2].Type)
	assert.InDelta(t, 0.60, byID[2].Relevance, 1e-6)

	// Full-text positional scores: 1 - rank/20 for ranks 1 and 2.
	assert.Equal(t, TypeFullText, byID[3].Type)
	assert.InDelta(t, 0.95, byID[3].Relevance, 1e-6)
	assert.Equal(t, TypeFullText, byID[4].Type)
	assert.InDelta(t, 0.90, byID[4].Relevance, 1e-6)

	// Ordered by descending relevance.
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Relevance, results[i].Relevance)
	}
	assert.Equal(t, int32(3), results[0].Capture.ID)
}

func TestHybridSearchLimitTruncation(t *testing.T) {
	driver := &searchDriver{
		vectorHits: []*store.CaptureWithScore{
			{Capture: capture(1), Score: 0.9},
			{Capture: capture(2), Score: 0.8},
			{Capture: capture(3), Score: 0.7},
		},
		lexicalHits: []*store.Capture{capture(4), capture(5)},
	}
	svc := newTestService(driver, &stubEmbedder{vector: []float32{0.1}})

	results, err := svc.Search(context.Background(), "notes", 1, Options{Mode: ModeHybrid, Limit: 2})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, int32(4), results[0].Capture.ID) // positional 1.00
	assert.Equal(t, int32(5), results[1].Capture.ID) // positional 0.95
}

func TestHybridSearchFailsWhole(t *testing.T) {
	driver := &searchDriver{
		vectorHits: []*store.CaptureWithScore{{Capture: capture(1), Score: 0.9}},
		lexicalErr: errors.New("tsquery syntax error"),
	}
	svc := newTestService(driver, &stubEmbedder{vector: []float32{0.1}})

	_, err := svc.Search(context.Background(), "notes", 1, Options{Mode: ModeHybrid})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodePersistence))
}

func TestSemanticSearchRequiresEmbedder(t *testing.T) {
	svc := newTestService(&searchDriver{}, nil)

	_, err := svc.Search(context.Background(), "notes", 1, Options{Mode: ModeSemantic})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeExternalService))
}

func TestSemanticSearchEmbedFailure(t *testing.T) {
	svc := newTestService(&searchDriver{}, &stubEmbedder{err: errors.New("backend down")})

	_, err := svc.Search(context.Background(), "notes", 1, Options{Mode: ModeSemantic})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeExternalService))
}

func TestSemanticSearchPassesOptions(t *testing.T) {
	driver := &searchDriver{}
	svc := newTestService(driver, &stubEmbedder{vector: []float32{0.3, 0.4}})

	_, err := svc.Search(context.Background(), "notes", 42, Options{Mode: ModeSemantic, Limit: 5, Threshold: 0.7})
	require.NoError(t, err)
	require.NotNil(t, driver.vectorOpts)
	assert.Equal(t, int32(42), driver.vectorOpts.CreatorID)
	assert.Equal(t, []float32{0.3, 0.4}, driver.vectorOpts.Vector)
	assert.Equal(t, float32(0.7), driver.vectorOpts.Threshold)
	assert.Equal(t, 5, driver.vectorOpts.Limit)
}

func TestFullTextSearchNativeOrder(t *testing.T) {
	driver := &searchDriver{
		lexicalHits: []*store.Capture{capture(9), capture(4), capture(7)},
	}
	svc := newTestService(driver, nil)

	results, err := svc.Search(context.Background(), "meeting", 1, Options{Mode: ModeFullText})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, int32(9), results[0].Capture.ID)
	assert.Equal(t, int32(4), results[1].Capture.ID)
	assert.Equal(t, int32(7), results[2].Capture.ID)
	for i, r := range results {
		assert.Equal(t, TypeFullText, r.Type)
		assert.InDelta(t, 1-float64(i)/20, r.Relevance, 1e-6)
	}
	require.NotNil(t, driver.lexicalOpts)
	assert.Equal(t, "meeting", driver.lexicalOpts.Query)
}

func TestWithDefaults(t *testing.T) {
	opts := withDefaults(Options{})
	assert.Equal(t, ModeHybrid, opts.Mode)
	assert.Equal(t, defaultLimit, opts.Limit)
	assert.Equal(t, float32(defaultThreshold), opts.Threshold)
	assert.Equal(t, defaultLimit, opts.SemanticLimit)
	assert.Equal(t, defaultFullTextLimit, opts.FullTextLimit)

	capped := withDefaults(Options{Limit: 500})
	assert.Equal(t, maxLimit, capped.Limit)
}
