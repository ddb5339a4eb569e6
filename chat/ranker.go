package chat

import (
	"context"

	"github.com/Nawaf-TBE/Mutli-Video-analysis-2/core"
)

// Ranker scores documents against a query, higher meaning more relevant.
// Scores are only compared within one call.
type Ranker interface {
	Rank(ctx context.Context, query string, docs []string) ([]float64, error)
}

// LexicalRanker scores by cosine similarity of normalized term-frequency
// vectors. It needs no external service and is fully deterministic.
type LexicalRanker struct{}

func (LexicalRanker) Rank(_ context.Context, query string, docs []string) ([]float64, error) {
	qvec := core.LexicalVector(query)
	scores := make([]float64, len(docs))
	for i, d := range docs {
		scores[i] = core.LexicalCosine(qvec, core.LexicalVector(d))
	}
	return scores, nil
}

// TextEmbedder is the embedding capability a semantic ranker needs.
type TextEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EmbeddingRanker scores via an embedding model. When the model is
// unavailable it falls back to lexical scoring rather than failing the chat
// request.
type EmbeddingRanker struct {
	embedder TextEmbedder
	fallback LexicalRanker
}

func NewEmbeddingRanker(embedder TextEmbedder) *EmbeddingRanker {
	return &EmbeddingRanker{embedder: embedder}
}

func (r *EmbeddingRanker) Rank(ctx context.Context, query string, docs []string) ([]float64, error) {
	qvec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return r.fallback.Rank(ctx, query, docs)
	}
	scores := make([]float64, len(docs))
	for i, d := range docs {
		dvec, err := r.embedder.Embed(ctx, d)
		if err != nil {
			return r.fallback.Rank(ctx, query, docs)
		}
		scores[i] = core.Cosine(qvec, dvec)
	}
	return scores, nil
}
