package oracle

import (
	"context"
	"fmt"
	"math"

	"github.com/soundscape-ai/lexicon/internal/embedding"
)

// EmbeddingProvider scores pairs by cosine similarity of their
// embeddings. Cheaper and more deterministic than a chat model, at the
// cost of weaker judgment on near-synonyms.
type EmbeddingProvider struct {
	embedder embedding.Provider
}

func NewEmbeddingProvider(embedder embedding.Provider) *EmbeddingProvider {
	return &EmbeddingProvider{embedder: embedder}
}

func (p *EmbeddingProvider) Name() string { return "embedding" }

// Score embeds both terms and returns their cosine similarity, mapped
// from [-1, 1] into [0, 1].
func (p *EmbeddingProvider) Score(ctx context.Context, candidate, existing string) (float64, error) {
	vecs, err := p.embedder.EmbedBatch(ctx, []string{candidate, existing})
	if err != nil {
		return 0, fmt.Errorf("oracle: embed pair: %w", err)
	}
	if len(vecs) != 2 {
		return 0, fmt.Errorf("oracle: expected 2 vectors, got %d", len(vecs))
	}
	sim, err := cosine(vecs[0].Slice(), vecs[1].Slice())
	if err != nil {
		return 0, err
	}
	return clamp01((sim + 1) / 2), nil
}

func cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("oracle: dimension mismatch: %d vs %d", len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0, fmt.Errorf("oracle: zero-magnitude embedding")
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}

// NoopProvider scores everything 0. Used when no backend is
// configured; with the fail-open policy every candidate then reads as
// having no similar terms.
type NoopProvider struct{}

func (NoopProvider) Name() string { return "noop" }

func (NoopProvider) Score(context.Context, string, string) (float64, error) {
	return 0, nil
}
