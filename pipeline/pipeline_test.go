package pipeline

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Nawaf-TBE/Mutli-Video-analysis-2/capability"
	"github.com/Nawaf-TBE/Mutli-Video-analysis-2/core"
	"github.com/Nawaf-TBE/Mutli-Video-analysis-2/frames"
	"github.com/Nawaf-TBE/Mutli-Video-analysis-2/indexer"
	"github.com/Nawaf-TBE/Mutli-Video-analysis-2/sections"
	"github.com/Nawaf-TBE/Mutli-Video-analysis-2/store"
	"github.com/Nawaf-TBE/Mutli-Video-analysis-2/transcript"
	"github.com/Nawaf-TBE/Mutli-Video-analysis-2/vectorstore"
)

type fakeGen struct{ reply string }

func (f *fakeGen) Generate(context.Context, string) (string, error) {
	return f.reply, nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) EmbedImage(context.Context, string) ([]float32, error) {
	return []float32{1, 0}, nil
}

func (fakeEmbedder) EmbedText(context.Context, string) ([]float32, error) {
	return []float32{1, 0}, nil
}

type blockingStrategy struct {
	release chan struct{}
	once    sync.Once
	started chan struct{}
}

func (s *blockingStrategy) Name() string { return "blocking" }

func (s *blockingStrategy) Fetch(ctx context.Context, _ string) ([]core.TranscriptSegment, error) {
	s.once.Do(func() { close(s.started) })
	select {
	case <-s.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return []core.TranscriptSegment{{Start: 0, End: 60, Text: "slow transcript"}}, nil
}

type fixedStrategy struct{ segs []core.TranscriptSegment }

func (s *fixedStrategy) Name() string { return "fixed" }

func (s *fixedStrategy) Fetch(context.Context, string) ([]core.TranscriptSegment, error) {
	return s.segs, nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newPipeline(t *testing.T, repo store.Repository, strategy transcript.Strategy) *Pipeline {
	t.Helper()
	log := discard()
	chain := transcript.NewChain(log, time.Minute, strategy)
	seg := sections.NewSegmenter(&fakeGen{reply: "A Title"}, 120, log)
	sampler := frames.NewSampler(capability.NewMediaTools(), t.TempDir(), 10, log)
	vs := vectorstore.NewMemoryVectorStore()
	ix := indexer.New(fakeEmbedder{}, vs, 2, 4, log)
	return New(repo, vs, chain, seg, sampler, ix, capability.NewMediaTools(), t.TempDir(), 120, log)
}

func seedVideo(t *testing.T, repo store.Repository) {
	t.Helper()
	err := repo.CreateVideo(context.Background(), &core.VideoAsset{
		ID:     "vid",
		URL:    "/nonexistent/video.mp4",
		Status: core.StatusPending,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestProcessStoresTranscriptAndSections(t *testing.T) {
	repo := store.NewMemoryRepository()
	seedVideo(t, repo)
	segs := []core.TranscriptSegment{
		{Start: 0, End: 100, Text: "part one"},
		{Start: 130, End: 250, Text: "part two"},
	}
	p := newPipeline(t, repo, &fixedStrategy{segs: segs})

	res, err := p.Process(context.Background(), "vid")
	if err != nil {
		t.Fatal(err)
	}
	if res.Segments != 2 {
		t.Errorf("segments = %d, want 2", res.Segments)
	}
	if res.Sections == 0 {
		t.Error("no sections stored")
	}
	// The visual stage cannot run against a missing file; that degrades
	// rather than failing the video.
	if len(res.Warnings) == 0 {
		t.Error("expected a warning for the unavailable visual stage")
	}
	video, err := repo.GetVideo(context.Background(), "vid")
	if err != nil {
		t.Fatal(err)
	}
	if video.Status != core.StatusAcquired {
		t.Errorf("status = %q, want acquired", video.Status)
	}
	if video.Duration != 250 {
		t.Errorf("duration = %v, want 250 (from transcript)", video.Duration)
	}
}

func TestProcessTranscriptFailureMarksFailed(t *testing.T) {
	repo := store.NewMemoryRepository()
	seedVideo(t, repo)
	p := newPipeline(t, repo, &fixedStrategy{segs: nil})

	_, err := p.Process(context.Background(), "vid")
	if !core.IsKind(err, core.KindAcquisitionFailed) {
		t.Fatalf("kind = %q, want acquisition_failed", core.ErrKind(err))
	}
	video, err := repo.GetVideo(context.Background(), "vid")
	if err != nil {
		t.Fatal(err)
	}
	if video.Status != core.StatusFailed {
		t.Errorf("status = %q, want failed", video.Status)
	}
}

func TestProcessRejectsConcurrentRun(t *testing.T) {
	repo := store.NewMemoryRepository()
	seedVideo(t, repo)
	strategy := &blockingStrategy{
		release: make(chan struct{}),
		started: make(chan struct{}),
	}
	p := newPipeline(t, repo, strategy)

	done := make(chan error, 1)
	go func() {
		_, err := p.Process(context.Background(), "vid")
		done <- err
	}()
	<-strategy.started

	_, err := p.Process(context.Background(), "vid")
	if !core.IsKind(err, core.KindAlreadyProcessing) {
		t.Fatalf("kind = %q, want already_processing", core.ErrKind(err))
	}

	close(strategy.release)
	if err := <-done; err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	// After the first run completes the video is processable again.
	if _, err := p.Process(context.Background(), "vid"); err != nil {
		t.Errorf("rerun after completion failed: %v", err)
	}
}

func TestDeleteCascades(t *testing.T) {
	repo := store.NewMemoryRepository()
	seedVideo(t, repo)
	ctx := context.Background()
	segs := []core.TranscriptSegment{{Start: 0, End: 60, Text: "content"}}
	p := newPipeline(t, repo, &fixedStrategy{segs: segs})
	if _, err := p.Process(ctx, "vid"); err != nil {
		t.Fatal(err)
	}

	if err := p.Delete(ctx, "vid"); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.GetVideo(ctx, "vid"); !core.IsKind(err, core.KindNotFound) {
		t.Errorf("video still present after delete: %v", err)
	}
	segsAfter, err := repo.Segments(ctx, "vid")
	if err != nil {
		t.Fatal(err)
	}
	if len(segsAfter) != 0 {
		t.Error("segments survived the delete")
	}
}

func TestAcquireTranscriptUpdatesStatus(t *testing.T) {
	repo := store.NewMemoryRepository()
	seedVideo(t, repo)
	segs := []core.TranscriptSegment{{Start: 0, End: 80, Text: "standalone stage"}}
	p := newPipeline(t, repo, &fixedStrategy{segs: segs})

	got, err := p.AcquireTranscript(context.Background(), "vid")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("segments = %d, want 1", len(got))
	}
	video, err := repo.GetVideo(context.Background(), "vid")
	if err != nil {
		t.Fatal(err)
	}
	if video.Status != core.StatusAcquired {
		t.Errorf("status = %q, want acquired", video.Status)
	}
	if video.Duration != 80 {
		t.Errorf("duration = %v, want 80 (from transcript)", video.Duration)
	}
}

func TestAcquireTranscriptFailureMarksFailed(t *testing.T) {
	repo := store.NewMemoryRepository()
	seedVideo(t, repo)
	p := newPipeline(t, repo, &fixedStrategy{segs: nil})

	_, err := p.AcquireTranscript(context.Background(), "vid")
	if !core.IsKind(err, core.KindAcquisitionFailed) {
		t.Fatalf("kind = %q, want acquisition_failed", core.ErrKind(err))
	}
	video, err := repo.GetVideo(context.Background(), "vid")
	if err != nil {
		t.Fatal(err)
	}
	if video.Status != core.StatusFailed {
		t.Errorf("status = %q, want failed", video.Status)
	}
}

func TestBuildSectionsFallsBackToPositional(t *testing.T) {
	repo := store.NewMemoryRepository()
	seedVideo(t, repo)
	ctx := context.Background()
	// Stored duration ends before any transcript segment starts, so
	// transcript-driven segmentation yields nothing valid.
	video, err := repo.GetVideo(ctx, "vid")
	if err != nil {
		t.Fatal(err)
	}
	video.Duration = 50
	if err := repo.UpdateVideo(ctx, video); err != nil {
		t.Fatal(err)
	}
	segs := []core.TranscriptSegment{{Start: 100, End: 160, Text: "late content"}}
	if err := repo.ReplaceSegments(ctx, "vid", segs); err != nil {
		t.Fatal(err)
	}
	p := newPipeline(t, repo, &fixedStrategy{})

	secs, err := p.BuildSections(ctx, "vid")
	if err != nil {
		t.Fatal(err)
	}
	if len(secs) != 1 {
		t.Fatalf("sections = %d, want 1", len(secs))
	}
	if secs[0].Title != "Part 1" {
		t.Errorf("title = %q, want positional fallback", secs[0].Title)
	}
	stored, err := repo.Sections(ctx, "vid")
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 1 {
		t.Error("fallback sections were not stored")
	}
}

func TestBuildSectionsRequiresTranscript(t *testing.T) {
	repo := store.NewMemoryRepository()
	seedVideo(t, repo)
	p := newPipeline(t, repo, &fixedStrategy{})
	_, err := p.BuildSections(context.Background(), "vid")
	if !core.IsKind(err, core.KindVideoNotReady) {
		t.Fatalf("kind = %q, want video_not_ready", core.ErrKind(err))
	}
}
