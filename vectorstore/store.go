// Package vectorstore holds the frame-embedding index. Backends are selected
// by configuration; the in-memory store is the fallback when no external
// vector database is configured or reachable.
package vectorstore

import (
	"context"
	"sort"
	"sync"

	"github.com/Nawaf-TBE/Mutli-Video-analysis-2/core"
)

// Hit is one scored frame returned from a similarity search.
type Hit struct {
	Timestamp float64
	Score     float64
}

// VectorStore abstracts the embedding index backend. Writes are atomic per
// frame: a reader never observes a partially-written vector.
type VectorStore interface {
	// Upsert stores the vector for (videoID, timestamp), replacing any
	// previous vector for the same frame.
	Upsert(ctx context.Context, videoID string, timestamp float64, vec []float32) error
	// Search returns up to topK frames of the video ranked by cosine
	// similarity to vec, highest first.
	Search(ctx context.Context, videoID string, vec []float32, topK int) ([]Hit, error)
	// IndexedTimestamps lists which frames of the video have embeddings.
	IndexedTimestamps(ctx context.Context, videoID string) ([]float64, error)
	// DeleteVideo removes every vector owned by the video.
	DeleteVideo(ctx context.Context, videoID string) error
}

// MemoryVectorStore keeps vectors in process memory.
type MemoryVectorStore struct {
	mu   sync.RWMutex
	vecs map[string]map[float64][]float32 // videoID -> timestamp -> vector
}

func NewMemoryVectorStore() *MemoryVectorStore {
	return &MemoryVectorStore{vecs: map[string]map[float64][]float32{}}
}

func (s *MemoryVectorStore) Upsert(_ context.Context, videoID string, timestamp float64, vec []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.vecs[videoID]
	if !ok {
		m = map[float64][]float32{}
		s.vecs[videoID] = m
	}
	cp := make([]float32, len(vec))
	copy(cp, vec)
	m[timestamp] = cp
	return nil
}

func (s *MemoryVectorStore) Search(_ context.Context, videoID string, vec []float32, topK int) ([]Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if topK <= 0 {
		return nil, core.NewError(core.KindInvalidTopK, "top_k must be positive, got %d", topK)
	}
	hits := make([]Hit, 0, len(s.vecs[videoID]))
	for ts, v := range s.vecs[videoID] {
		hits = append(hits, Hit{Timestamp: ts, Score: core.Cosine(vec, v)})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Timestamp < hits[j].Timestamp
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func (s *MemoryVectorStore) IndexedTimestamps(_ context.Context, videoID string) ([]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]float64, 0, len(s.vecs[videoID]))
	for ts := range s.vecs[videoID] {
		out = append(out, ts)
	}
	sort.Float64s(out)
	return out, nil
}

func (s *MemoryVectorStore) DeleteVideo(_ context.Context, videoID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.vecs, videoID)
	return nil
}
