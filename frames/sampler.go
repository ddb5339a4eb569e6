// Package frames samples still images from a video at a fixed interval and
// attaches nearby transcript text to each frame.
package frames

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/Nawaf-TBE/Mutli-Video-analysis-2/capability"
	"github.com/Nawaf-TBE/Mutli-Video-analysis-2/core"
)

// Sampler extracts frames with ffmpeg. Frame timestamps are the multiples
// of the interval inside [0, duration); individual missing frames are
// tolerated, an empty result is not.
type Sampler struct {
	media    *capability.MediaTools
	dataRoot string
	interval float64
	log      *slog.Logger
}

func NewSampler(media *capability.MediaTools, dataRoot string, interval float64, log *slog.Logger) *Sampler {
	if interval <= 0 {
		interval = 10
	}
	return &Sampler{media: media, dataRoot: dataRoot, interval: interval, log: log}
}

// Interval returns the sampling interval in seconds.
func (s *Sampler) Interval() float64 { return s.interval }

// ExpectedTimestamps lists the frame timestamps a video of the given
// duration should produce.
func ExpectedTimestamps(duration, interval float64) []float64 {
	if duration <= 0 || interval <= 0 {
		return nil
	}
	var out []float64
	for ts := 0.0; ts < duration; ts += interval {
		out = append(out, ts)
	}
	return out
}

// Sample extracts frames from the video file into a per-video directory and
// returns one Frame per extracted image with transcript context attached.
func (s *Sampler) Sample(ctx context.Context, videoID, videoPath string, duration float64, segs []core.TranscriptSegment) ([]core.Frame, error) {
	if duration <= 0 {
		d, err := s.media.ProbeDuration(ctx, videoPath)
		if err != nil {
			return nil, core.WrapError(core.KindFrameExtraction, err, "probe duration")
		}
		duration = d
	}

	frameDir := filepath.Join(s.dataRoot, videoID, "frames")
	if err := os.MkdirAll(frameDir, 0755); err != nil {
		return nil, core.WrapError(core.KindFrameExtraction, err, "create frame dir")
	}

	pattern := filepath.Join(frameDir, "frame_%05d.jpg")
	args := []string{
		"-y", "-i", videoPath,
		"-vf", fmt.Sprintf("fps=1/%g", s.interval),
		"-q:v", "2",
		pattern,
	}
	if err := s.media.RunFFmpeg(ctx, args); err != nil {
		return nil, core.WrapError(core.KindFrameExtraction, err, "extract frames")
	}

	expected := ExpectedTimestamps(duration, s.interval)
	frames := make([]core.Frame, 0, len(expected))
	for i, ts := range expected {
		// ffmpeg numbers output files from 1.
		path := filepath.Join(frameDir, fmt.Sprintf("frame_%05d.jpg", i+1))
		if _, err := os.Stat(path); err != nil {
			s.log.Warn("frame missing after extraction", "video_id", videoID, "timestamp", ts)
			continue
		}
		frames = append(frames, core.Frame{
			Timestamp: ts,
			Path:      path,
			Context:   ContextAt(segs, ts, s.interval),
		})
	}
	if len(frames) == 0 {
		return nil, core.NewError(core.KindFrameExtraction, "no frames extracted")
	}
	return frames, nil
}

// ContextAt gathers transcript text overlapping [ts, ts+interval).
func ContextAt(segs []core.TranscriptSegment, ts, interval float64) string {
	end := ts + interval
	var parts []string
	for _, seg := range segs {
		if seg.Start < end && seg.End > ts {
			parts = append(parts, seg.Text)
		}
	}
	return strings.Join(parts, " ")
}

// Summary aggregates counts the frames listing endpoint reports.
type Summary struct {
	Count       int     `json:"count"`
	WithContext int     `json:"with_context"`
	Interval    float64 `json:"interval_sec"`
	FirstTS     float64 `json:"first_timestamp"`
	LastTS      float64 `json:"last_timestamp"`
}

func Summarize(frames []core.Frame, interval float64) Summary {
	sum := Summary{Count: len(frames), Interval: interval}
	if len(frames) == 0 {
		return sum
	}
	sum.FirstTS = math.Inf(1)
	for _, f := range frames {
		if f.Context != "" {
			sum.WithContext++
		}
		sum.FirstTS = math.Min(sum.FirstTS, f.Timestamp)
		sum.LastTS = math.Max(sum.LastTS, f.Timestamp)
	}
	return sum
}
