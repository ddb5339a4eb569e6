// Package pipeline orchestrates video processing: transcript acquisition,
// section derivation, frame sampling and embedding indexing.
package pipeline

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
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

// Pipeline runs the full processing flow for one video. A video moves
// pending -> acquiring -> acquired, or to failed when the transcript cannot
// be obtained at all. Frame-level problems degrade capabilities instead of
// failing the video: chat works from the transcript alone.
type Pipeline struct {
	repo     store.Repository
	vectors  vectorstore.VectorStore
	chain    *transcript.Chain
	segment  *sections.Segmenter
	sampler  *frames.Sampler
	index    *indexer.Indexer
	media    *capability.MediaTools
	guard    *Guard
	dataRoot string
	chunkSec float64
	log      *slog.Logger
}

func New(repo store.Repository, vectors vectorstore.VectorStore, chain *transcript.Chain, segment *sections.Segmenter, sampler *frames.Sampler, index *indexer.Indexer, media *capability.MediaTools, dataRoot string, chunkSec float64, log *slog.Logger) *Pipeline {
	if chunkSec <= 0 {
		chunkSec = 120
	}
	return &Pipeline{
		repo:     repo,
		vectors:  vectors,
		chain:    chain,
		segment:  segment,
		sampler:  sampler,
		index:    index,
		media:    media,
		guard:    NewGuard(),
		dataRoot: dataRoot,
		chunkSec: chunkSec,
		log:      log,
	}
}

// Result reports what a processing run produced.
type Result struct {
	VideoID  string           `json:"video_id"`
	Segments int              `json:"segments"`
	Sections int              `json:"sections"`
	Frames   int              `json:"frames"`
	Index    core.IndexReport `json:"index"`
	Warnings []string         `json:"warnings,omitempty"`
}

// Process runs the pipeline for the video. It returns an already-processing
// error when another run for the same video is in flight.
func (p *Pipeline) Process(ctx context.Context, videoID string) (*Result, error) {
	if err := p.guard.Acquire(videoID); err != nil {
		return nil, err
	}
	defer p.guard.Release(videoID)

	video, err := p.repo.GetVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}
	log := p.log.With("video_id", videoID)

	video.Status = core.StatusAcquiring
	if err := p.repo.UpdateVideo(ctx, video); err != nil {
		return nil, err
	}

	res := &Result{VideoID: videoID}
	started := time.Now()

	p.enrichMetadata(ctx, video, log)

	segs, err := p.chain.Acquire(ctx, video.URL)
	if err != nil {
		p.markFailed(ctx, video, log)
		return nil, err
	}
	if err := p.repo.ReplaceSegments(ctx, videoID, segs); err != nil {
		p.markFailed(ctx, video, log)
		return nil, err
	}
	res.Segments = len(segs)
	if video.Duration <= 0 {
		video.Duration = lastEnd(segs)
	}

	secs, err := p.segment.Segment(ctx, segs, video.Duration)
	if err != nil {
		log.Warn("section derivation failed, using positional sections", "error", err)
		res.Warnings = append(res.Warnings, "sections: "+err.Error())
		secs = sections.Fallback(video.Duration, p.chunkSec)
	}
	if err := p.repo.ReplaceSections(ctx, videoID, secs); err != nil {
		p.markFailed(ctx, video, log)
		return nil, err
	}
	res.Sections = len(secs)

	if err := p.processVisuals(ctx, video, segs, res, log); err != nil {
		log.Warn("visual processing unavailable", "error", err)
		res.Warnings = append(res.Warnings, "frames: "+err.Error())
	}

	video.Status = core.StatusAcquired
	if err := p.repo.UpdateVideo(ctx, video); err != nil {
		return nil, err
	}
	log.Info("video processed",
		"segments", res.Segments, "sections", res.Sections, "frames", res.Frames,
		"indexed", res.Index.Indexed, "index_failed", res.Index.Failed,
		"elapsed", time.Since(started).Round(time.Millisecond))
	return res, nil
}

// Delete removes a video and everything derived from it, including its
// vectors and any downloaded media.
func (p *Pipeline) Delete(ctx context.Context, videoID string) error {
	if err := p.guard.Acquire(videoID); err != nil {
		return err
	}
	defer p.guard.Release(videoID)

	if err := p.vectors.DeleteVideo(ctx, videoID); err != nil {
		p.log.Warn("vector cleanup failed", "video_id", videoID, "error", err)
	}
	if err := p.repo.DeleteVideo(ctx, videoID); err != nil {
		return err
	}
	if p.dataRoot != "" {
		if err := os.RemoveAll(filepath.Join(p.dataRoot, videoID)); err != nil {
			p.log.Warn("media cleanup failed", "video_id", videoID, "error", err)
		}
	}
	return nil
}

// AcquireTranscript runs only the transcript stage.
func (p *Pipeline) AcquireTranscript(ctx context.Context, videoID string) ([]core.TranscriptSegment, error) {
	if err := p.guard.Acquire(videoID); err != nil {
		return nil, err
	}
	defer p.guard.Release(videoID)

	video, err := p.repo.GetVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}
	log := p.log.With("video_id", videoID)

	video.Status = core.StatusAcquiring
	if err := p.repo.UpdateVideo(ctx, video); err != nil {
		return nil, err
	}

	p.enrichMetadata(ctx, video, log)
	segs, err := p.chain.Acquire(ctx, video.URL)
	if err != nil {
		p.markFailed(ctx, video, log)
		return nil, err
	}
	if err := p.repo.ReplaceSegments(ctx, videoID, segs); err != nil {
		p.markFailed(ctx, video, log)
		return nil, err
	}
	if video.Duration <= 0 {
		video.Duration = lastEnd(segs)
	}
	video.Status = core.StatusAcquired
	if err := p.repo.UpdateVideo(ctx, video); err != nil {
		return nil, err
	}
	return segs, nil
}

// BuildSections derives sections from the stored transcript. Re-running
// replaces the previous set.
func (p *Pipeline) BuildSections(ctx context.Context, videoID string) ([]core.Section, error) {
	if err := p.guard.Acquire(videoID); err != nil {
		return nil, err
	}
	defer p.guard.Release(videoID)

	video, err := p.repo.GetVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}
	segs, err := p.repo.Segments(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if len(segs) == 0 {
		return nil, core.NewError(core.KindVideoNotReady, "video %s has no transcript", videoID)
	}
	duration := video.Duration
	if duration <= 0 {
		duration = lastEnd(segs)
	}
	secs, err := p.segment.Segment(ctx, segs, duration)
	if err != nil {
		p.log.Warn("section derivation failed, using positional sections", "video_id", videoID, "error", err)
		secs = sections.Fallback(duration, p.chunkSec)
	}
	if err := p.repo.ReplaceSections(ctx, videoID, secs); err != nil {
		return nil, err
	}
	return secs, nil
}

// SampleFrames runs only the frame stage over the stored transcript.
func (p *Pipeline) SampleFrames(ctx context.Context, videoID string) ([]core.Frame, error) {
	if err := p.guard.Acquire(videoID); err != nil {
		return nil, err
	}
	defer p.guard.Release(videoID)

	video, err := p.repo.GetVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}
	segs, err := p.repo.Segments(ctx, videoID)
	if err != nil {
		return nil, err
	}
	res := &Result{VideoID: videoID}
	if err := p.processVisuals(ctx, video, segs, res, p.log.With("video_id", videoID)); err != nil {
		return nil, err
	}
	return p.repo.Frames(ctx, videoID)
}

// IndexEmbeddings re-embeds the stored frames into the vector store.
func (p *Pipeline) IndexEmbeddings(ctx context.Context, videoID string) (core.IndexReport, error) {
	var report core.IndexReport
	if err := p.guard.Acquire(videoID); err != nil {
		return report, err
	}
	defer p.guard.Release(videoID)

	fs, err := p.repo.Frames(ctx, videoID)
	if err != nil {
		return report, err
	}
	if len(fs) == 0 {
		return report, core.NewError(core.KindVideoNotReady, "video %s has no frames", videoID)
	}
	return p.index.IndexFrames(ctx, videoID, fs)
}

func (p *Pipeline) enrichMetadata(ctx context.Context, video *core.VideoAsset, log *slog.Logger) {
	if isLocalPath(video.URL) {
		if video.Duration <= 0 {
			if d, err := p.media.ProbeDuration(ctx, video.URL); err == nil {
				video.Duration = d
			}
		}
		return
	}
	meta, err := p.media.FetchMetadata(ctx, video.URL)
	if err != nil {
		log.Warn("metadata probe failed", "error", err)
		return
	}
	if video.Title == "" {
		video.Title = meta.Title
	}
	if video.Duration <= 0 {
		video.Duration = meta.Duration
	}
}

func (p *Pipeline) processVisuals(ctx context.Context, video *core.VideoAsset, segs []core.TranscriptSegment, res *Result, log *slog.Logger) error {
	videoPath := video.URL
	if !isLocalPath(videoPath) {
		videoPath = filepath.Join(p.dataRoot, video.ID, "source.mp4")
		if _, err := os.Stat(videoPath); err != nil {
			if err := p.media.FetchVideo(ctx, video.URL, videoPath); err != nil {
				return core.WrapError(core.KindFrameExtraction, err, "download video")
			}
		}
	}

	fs, err := p.sampler.Sample(ctx, video.ID, videoPath, video.Duration, segs)
	if err != nil {
		return err
	}
	if err := p.repo.ReplaceFrames(ctx, video.ID, fs); err != nil {
		return err
	}
	res.Frames = len(fs)

	report, err := p.index.IndexFrames(ctx, video.ID, fs)
	res.Index = report
	if err != nil {
		return err
	}
	if report.Indexed > 0 {
		log.Info("frames indexed", "indexed", report.Indexed, "failed", report.Failed)
	}
	return nil
}

func (p *Pipeline) markFailed(ctx context.Context, video *core.VideoAsset, log *slog.Logger) {
	video.Status = core.StatusFailed
	if err := p.repo.UpdateVideo(ctx, video); err != nil {
		log.Error("status update failed", "error", err)
	}
}

func isLocalPath(s string) bool {
	return !strings.Contains(s, "://") || strings.HasPrefix(s, "file://")
}

func lastEnd(segs []core.TranscriptSegment) float64 {
	var end float64
	for _, s := range segs {
		if s.End > end {
			end = s.End
		}
	}
	return end
}
