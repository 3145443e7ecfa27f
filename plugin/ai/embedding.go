// Package ai wraps the external embedding model behind a narrow interface.
package ai

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
)

// MaxEmbeddingChars is the input budget submitted to the embedding model.
// The backend has a token ceiling; truncation, not chunking, is the
// accepted tradeoff for capture-sized inputs.
const MaxEmbeddingChars = 8000

// ErrEmptyInput is returned when the text to embed is empty or
// whitespace-only.
var ErrEmptyInput = errors.New("embedding input is empty")

// EmbeddingService generates vector embeddings for text.
type EmbeddingService interface {
	// Embed generates a vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the vector dimension.
	Dimensions() int
}

// EmbeddingConfig configures the embedding backend.
type EmbeddingConfig struct {
	Provider   string
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
}

type embeddingService struct {
	client     *openai.Client
	model      string
	dimensions int
}

// NewEmbeddingService creates an EmbeddingService backed by an
// OpenAI-compatible API.
func NewEmbeddingService(cfg *EmbeddingConfig) (EmbeddingService, error) {
	switch cfg.Provider {
	case "openai", "":
	default:
		return nil, errors.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &embeddingService{
		client:     openai.NewClientWithConfig(clientConfig),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}, nil
}

func (s *embeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}

	req := openai.EmbeddingRequest{
		Input:      []string{Truncate(text)},
		Model:      openai.EmbeddingModel(s.model),
		Dimensions: s.dimensions,
	}

	resp, err := s.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, "embedding service call failed")
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("empty embedding response")
	}
	return resp.Data[0].Embedding, nil
}

func (s *embeddingService) Dimensions() int {
	return s.dimensions
}

// Truncate clamps text to the embedding input budget.
func Truncate(text string) string {
	if len(text) <= MaxEmbeddingChars {
		return text
	}
	return text[:MaxEmbeddingChars]
}

var _ EmbeddingService = (*embeddingService)(nil)
