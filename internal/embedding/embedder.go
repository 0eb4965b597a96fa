// Package embedding provides text embedding via ONNX, an OpenAI-compatible API, or feature hashing.
package embedding

import (
	"context"
	"fmt"
	"math"

	"github.com/hyperjump/ragchat/internal/config"
	"go.uber.org/zap"
)

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// Identity names the vector space e produces, such as "onnx:all-MiniLM-L6-v2.onnx/384".
// Vectors from embedders with different identities must not be compared.
func Identity(e Embedder) string {
	name := fmt.Sprintf("%T", e)
	if n, ok := e.(interface{ Name() string }); ok {
		name = n.Name()
	}
	return fmt.Sprintf("%s/%d", name, e.Dimensions())
}

// New builds the embedder selected by cfg.Provider. When the ONNX model cannot be
// loaded it falls back to the hashing embedder so the collection stays usable.
func New(cfg *config.EmbeddingConfig, logger *zap.Logger) (Embedder, error) {
	switch cfg.Provider {
	case config.ProviderONNX:
		emb, err := NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens, cfg.CacheSize)
		if err == nil {
			return emb, nil
		}
		if logger != nil {
			logger.Warn("ONNX embedder unavailable, using hashing embedder",
				zap.String("model_path", cfg.ModelPath), zap.Error(err))
		}
		return NewHashEmbedder(cfg.Dimensions), nil
	case config.ProviderOpenAI:
		return NewOpenAIEmbedder(OpenAIConfig{
			APIKey:     cfg.APIKey(),
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			CacheSize:  cfg.CacheSize,
		})
	case config.ProviderHash:
		return NewHashEmbedder(cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

// normalize scales v to unit length in place so that inner product equals cosine
// similarity. A zero vector is left unchanged.
func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := 1 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
}
