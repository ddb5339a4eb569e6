// Package indexer embeds sampled frames and writes them to the vector store.
package indexer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Nawaf-TBE/Mutli-Video-analysis-2/core"
	"github.com/Nawaf-TBE/Mutli-Video-analysis-2/vectorstore"
)

// Indexer fans frame embedding out over a bounded worker pool. Each frame
// is embedded and upserted independently, so one bad image never blocks
// the rest of the batch.
type Indexer struct {
	embedder core.VisualEmbedder
	vectors  vectorstore.VectorStore
	workers  int
	batch    int
	backoff  time.Duration
	log      *slog.Logger
}

func New(embedder core.VisualEmbedder, vectors vectorstore.VectorStore, workers, batch int, log *slog.Logger) *Indexer {
	if workers <= 0 {
		workers = 4
	}
	if batch <= 0 {
		batch = 16
	}
	return &Indexer{
		embedder: embedder,
		vectors:  vectors,
		workers:  workers,
		batch:    batch,
		backoff:  2 * time.Second,
		log:      log,
	}
}

// IndexFrames embeds every frame and upserts the result keyed by
// (videoID, timestamp). Re-running over the same frames overwrites rather
// than duplicates. The report counts successes and failures; only a run
// with zero successes and at least one failure is treated as an error by
// callers.
func (ix *Indexer) IndexFrames(ctx context.Context, videoID string, frames []core.Frame) (core.IndexReport, error) {
	var report core.IndexReport
	if len(frames) == 0 {
		return report, nil
	}

	jobs := make(chan core.Frame)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for w := 0; w < ix.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for f := range jobs {
				if err := ix.indexOne(ctx, videoID, f); err != nil {
					ix.log.Warn("frame indexing failed",
						"video_id", videoID, "timestamp", f.Timestamp, "error", err)
					mu.Lock()
					report.Failed++
					mu.Unlock()
					continue
				}
				mu.Lock()
				report.Indexed++
				mu.Unlock()
			}
		}()
	}

	// Feed frames in batches so a canceled context stops between batches.
	for start := 0; start < len(frames); start += ix.batch {
		end := min(start+ix.batch, len(frames))
		for _, f := range frames[start:end] {
			select {
			case <-ctx.Done():
				close(jobs)
				wg.Wait()
				return report, ctx.Err()
			case jobs <- f:
			}
		}
	}
	close(jobs)
	wg.Wait()
	return report, nil
}

func (ix *Indexer) indexOne(ctx context.Context, videoID string, f core.Frame) error {
	var vec []float32
	err := core.Retry(ctx, ix.backoff, func() error {
		v, err := ix.embedder.EmbedImage(ctx, f.Path)
		if err != nil {
			return err
		}
		vec = v
		return nil
	})
	if err != nil {
		return err
	}
	return ix.vectors.Upsert(ctx, videoID, f.Timestamp, vec)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
