// Package search runs semantic and lexical capture search and merges the
// two ranked result sets into one ordered list.
package search

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/memexhq/memex/plugin/ai"
	apperrors "github.com/memexhq/memex/server/internal/errors"
	"github.com/memexhq/memex/store"
)

// Mode selects which lookups a search request runs.
type Mode string

const (
	ModeHybrid   Mode = "hybrid"
	ModeSemantic Mode = "semantic"
	ModeFullText Mode = "fulltext"
)

// Search type tags carried on results.
const (
	TypeSemantic = "semantic"
	TypeFullText = "fulltext"
)

// Default limits and similarity threshold.
const (
	defaultLimit         = 10
	defaultFullTextLimit = 20
	defaultThreshold     = 0.5
	maxLimit             = 50
)

// Options tune one search request. Zero values fall back to defaults.
type Options struct {
	Mode          Mode
	Limit         int
	Threshold     float32
	SemanticLimit int
	FullTextLimit int
}

// Result is one ranked search hit. Results are ephemeral: constructed per
// request and discarded after the response.
type Result struct {
	Capture *store.Capture
	// Type tags which lookup produced the hit.
	Type string
	// Relevance is a comparable score in [0, 1], higher is better. Semantic
	// hits carry true cosine similarity; full-text hits carry a synthetic
	// positional score. The two are not calibrated against each other.
	Relevance float64
}

// Service runs capture search for one storage backend.
type Service struct {
	store    *store.Store
	embedder ai.EmbeddingService
}

// NewService creates a search service.
func NewService(store *store.Store, embedder ai.EmbeddingService) *Service {
	return &Service{
		store:    store,
		embedder: embedder,
	}
}

// Search runs the requested lookup(s) within the owner's scope and returns
// one list ordered by descending relevance. In hybrid mode the two
// sub-searches run concurrently and both must succeed; there is no graceful
// degradation to a single mode.
func (s *Service) Search(ctx context.Context, query string, ownerID int32, opts Options) ([]*Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, apperrors.Validation("query is required")
	}
	opts = withDefaults(opts)

	switch opts.Mode {
	case ModeSemantic:
		return s.semanticSearch(ctx, query, ownerID, opts)
	case ModeFullText:
		captures, err := s.lexicalSearch(ctx, query, ownerID, opts)
		if err != nil {
			return nil, err
		}
		return fullTextResults(captures, opts.FullTextLimit), nil
	case ModeHybrid:
		return s.hybridSearch(ctx, query, ownerID, opts)
	default:
		return nil, apperrors.Validation("unsupported search mode: " + string(opts.Mode))
	}
}

func (s *Service) hybridSearch(ctx context.Context, query string, ownerID int32, opts Options) ([]*Result, error) {
	var semantic []*Result
	var lexical []*store.Capture

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		results, err := s.semanticSearch(gctx, query, ownerID, opts)
		if err != nil {
			return err
		}
		semantic = results
		return nil
	})
	g.Go(func() error {
		captures, err := s.lexicalSearch(gctx, query, ownerID, opts)
		if err != nil {
			return err
		}
		lexical = captures
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := mergeResults(semantic, lexical, opts.FullTextLimit)
	if len(merged) > opts.Limit {
		merged = merged[:opts.Limit]
	}
	return merged, nil
}

func (s *Service) semanticSearch(ctx context.Context, query string, ownerID int32, opts Options) ([]*Result, error) {
	if s.embedder == nil {
		return nil, apperrors.ExternalService("embedding service is not configured", nil)
	}
	queryVector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, apperrors.ExternalService("failed to embed query", err)
	}

	hits, err := s.store.VectorSearchCaptures(ctx, &store.VectorSearchOptions{
		CreatorID: ownerID,
		Vector:    queryVector,
		Threshold: opts.Threshold,
		Limit:     opts.SemanticLimit,
	})
	if err != nil {
		return nil, apperrors.Persistence("vector search failed", err)
	}

	results := make([]*Result, len(hits))
	for i, hit := range hits {
		results[i] = &Result{
			Capture:   hit.Capture,
			Type:      TypeSemantic,
			Relevance: float64(hit.Score),
		}
	}
	return results, nil
}

func (s *Service) lexicalSearch(ctx context.Context, query string, ownerID int32, opts Options) ([]*store.Capture, error) {
	captures, err := s.store.LexicalSearchCaptures(ctx, &store.LexicalSearchOptions{
		CreatorID: ownerID,
		Query:     query,
		Limit:     opts.FullTextLimit,
	})
	if err != nil {
		return nil, apperrors.Persistence("lexical search failed", err)
	}
	return captures, nil
}

// mergeResults deduplicates by capture identity with semantic hits taking
// priority on collision, then orders by descending relevance. Full-text
// relevance is synthesized positionally (1 - rank/limit) so the two result
// sets share one numeric scale; the scales are not statistically
// comparable, which callers must not assume.
func mergeResults(semantic []*Result, lexical []*store.Capture, fullTextLimit int) []*Result {
	byID := make(map[int32]*Result, len(semantic)+len(lexical))
	for _, result := range semantic {
		byID[result.Capture.ID] = result
	}

	if len(lexical) > fullTextLimit {
		lexical = lexical[:fullTextLimit]
	}
	for rank, capture := range lexical {
		if _, exists := byID[capture.ID]; exists {
			continue
		}
		byID[capture.ID] = &Result{
			Capture:   capture,
			Type:      TypeFullText,
			Relevance: positionalScore(rank, fullTextLimit),
		}
	}

	merged := make([]*Result, 0, len(byID))
	for _, result := range byID {
		merged = append(merged, result)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Relevance > merged[j].Relevance
	})
	return merged
}

// fullTextResults wraps lexical captures in their native, newest-first
// order with positional scores.
func fullTextResults(captures []*store.Capture, fullTextLimit int) []*Result {
	results := make([]*Result, len(captures))
	for rank, capture := range captures {
		results[rank] = &Result{
			Capture:   capture,
			Type:      TypeFullText,
			Relevance: positionalScore(rank, fullTextLimit),
		}
	}
	return results
}

func positionalScore(rank, limit int) float64 {
	if limit <= 0 {
		return 0
	}
	return 1 - float64(rank)/float64(limit)
}

func withDefaults(opts Options) Options {
	if opts.Mode == "" {
		opts.Mode = ModeHybrid
	}
	if opts.Limit <= 0 {
		opts.Limit = defaultLimit
	}
	if opts.Limit > maxLimit {
		opts.Limit = maxLimit
	}
	if opts.Threshold <= 0 {
		opts.Threshold = defaultThreshold
	}
	if opts.SemanticLimit <= 0 {
		opts.SemanticLimit = opts.Limit
	}
	if opts.FullTextLimit <= 0 {
		opts.FullTextLimit = defaultFullTextLimit
	}
	return opts
}
