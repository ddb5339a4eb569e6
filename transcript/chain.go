package transcript

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/Nawaf-TBE/Mutli-Video-analysis-2/capability"
	"github.com/Nawaf-TBE/Mutli-Video-analysis-2/core"
)

// Strategy is one way of obtaining a transcript for a video.
type Strategy interface {
	Name() string
	Fetch(ctx context.Context, videoURL string) ([]core.TranscriptSegment, error)
}

// Chain tries each strategy in order and returns the first non-empty
// transcript. When every strategy fails it returns an acquisition error
// listing what each one reported.
type Chain struct {
	strategies []Strategy
	timeout    time.Duration
	log        *slog.Logger
}

func NewChain(log *slog.Logger, timeout time.Duration, strategies ...Strategy) *Chain {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Chain{strategies: strategies, timeout: timeout, log: log}
}

func (c *Chain) Acquire(ctx context.Context, videoURL string) ([]core.TranscriptSegment, error) {
	var failures []string
	for _, s := range c.strategies {
		sctx, cancel := context.WithTimeout(ctx, c.timeout)
		segs, err := s.Fetch(sctx, videoURL)
		cancel()
		if err != nil {
			c.log.Warn("transcript strategy failed", "strategy", s.Name(), "error", err)
			failures = append(failures, fmt.Sprintf("%s: %v", s.Name(), err))
			continue
		}
		if len(segs) == 0 {
			c.log.Warn("transcript strategy returned nothing", "strategy", s.Name())
			failures = append(failures, fmt.Sprintf("%s: empty transcript", s.Name()))
			continue
		}
		c.log.Info("transcript acquired", "strategy", s.Name(), "segments", len(segs))
		return segs, nil
	}
	return nil, core.NewError(core.KindAcquisitionFailed,
		"all transcript strategies failed: %s", strings.Join(failures, "; "))
}

// ModelStrategy asks a multimodal model to transcribe the video directly.
type ModelStrategy struct {
	gen core.TextGenerator
}

func NewModelStrategy(gen core.TextGenerator) *ModelStrategy {
	return &ModelStrategy{gen: gen}
}

func (s *ModelStrategy) Name() string { return "model" }

func (s *ModelStrategy) Fetch(ctx context.Context, videoURL string) ([]core.TranscriptSegment, error) {
	prompt := fmt.Sprintf(`Watch the video at %s and produce a timestamped transcript.
Output one line per spoken passage in exactly this format:
[M:SS-M:SS] spoken text
Do not output anything else.`, videoURL)
	raw, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	segs := ParseTimestamped(raw)
	if len(segs) == 0 {
		return nil, fmt.Errorf("model output had no timestamped lines")
	}
	return segs, nil
}

// CaptionStrategy fetches the caption track from the caption service.
type CaptionStrategy struct {
	client *capability.CaptionClient
}

func NewCaptionStrategy(client *capability.CaptionClient) *CaptionStrategy {
	return &CaptionStrategy{client: client}
}

func (s *CaptionStrategy) Name() string { return "captions" }

func (s *CaptionStrategy) Fetch(ctx context.Context, videoURL string) ([]core.TranscriptSegment, error) {
	id := ExtractVideoID(videoURL)
	if id == "" {
		return nil, fmt.Errorf("no video ID in URL")
	}
	return s.client.Fetch(ctx, id)
}

// SubtitleStrategy downloads subtitle tracks with yt-dlp and parses the
// first usable VTT file.
type SubtitleStrategy struct {
	media   *capability.MediaTools
	workDir string
}

func NewSubtitleStrategy(media *capability.MediaTools, workDir string) *SubtitleStrategy {
	return &SubtitleStrategy{media: media, workDir: workDir}
}

func (s *SubtitleStrategy) Name() string { return "subtitles" }

func (s *SubtitleStrategy) Fetch(ctx context.Context, videoURL string) ([]core.TranscriptSegment, error) {
	dir := filepath.Join(s.workDir, "subs")
	paths, err := s.media.FetchSubtitles(ctx, videoURL, dir)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no subtitle tracks available")
	}
	var lastErr error
	for _, p := range paths {
		segs, err := ParseVTTFile(p)
		if err != nil {
			lastErr = err
			continue
		}
		return segs, nil
	}
	return nil, fmt.Errorf("no parseable subtitle track: %w", lastErr)
}
