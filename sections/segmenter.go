// Package sections derives a titled table of contents from a transcript.
package sections

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/Nawaf-TBE/Mutli-Video-analysis-2/core"
)

// Segmenter turns a transcript into titled sections. The section boundaries
// come from fixed-duration chunking at segment boundaries; the model only
// supplies titles, so a misbehaving model can never corrupt the timeline.
type Segmenter struct {
	gen      core.TextGenerator
	chunkSec float64
	log      *slog.Logger
}

func NewSegmenter(gen core.TextGenerator, chunkSec float64, log *slog.Logger) *Segmenter {
	if chunkSec <= 0 {
		chunkSec = 120
	}
	return &Segmenter{gen: gen, chunkSec: chunkSec, log: log}
}

// Segment produces at least one section for any non-empty transcript.
// Title generation failures degrade to positional titles rather than
// failing the whole operation.
func (s *Segmenter) Segment(ctx context.Context, segs []core.TranscriptSegment, duration float64) ([]core.Section, error) {
	if len(segs) == 0 {
		return nil, core.NewError(core.KindSegmentationFailed, "transcript is empty")
	}
	chunks := chunkSegments(segs, s.chunkSec)

	sections := make([]core.Section, 0, len(chunks))
	for _, ch := range chunks {
		title, err := s.title(ctx, ch)
		if err != nil || title == "" {
			if err != nil {
				s.log.Warn("section title generation failed", "start", ch.start, "error", err)
			}
			title = "Section at " + core.FormatTime(ch.start)
		}
		sections = append(sections, core.Section{Title: title, Start: ch.start, End: ch.end})
	}

	sections = sanitize(sections, duration)
	if len(sections) == 0 {
		return nil, core.NewError(core.KindSegmentationFailed, "no valid sections produced")
	}
	return sections, nil
}

type chunk struct {
	start, end float64
	text       string
}

// chunkSegments groups consecutive segments into spans of roughly chunkSec
// seconds. A chunk only closes at a segment boundary, so no segment's text
// is ever split across sections.
func chunkSegments(segs []core.TranscriptSegment, chunkSec float64) []chunk {
	sorted := make([]core.TranscriptSegment, len(segs))
	copy(sorted, segs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	var chunks []chunk
	cur := chunk{start: sorted[0].Start, end: sorted[0].Start}
	var parts []string
	for _, seg := range sorted {
		if seg.Start >= cur.start+chunkSec && len(parts) > 0 {
			cur.text = strings.Join(parts, " ")
			chunks = append(chunks, cur)
			cur = chunk{start: seg.Start}
			parts = parts[:0]
		}
		parts = append(parts, seg.Text)
		if seg.End > cur.end {
			cur.end = seg.End
		}
	}
	if len(parts) > 0 {
		cur.text = strings.Join(parts, " ")
		chunks = append(chunks, cur)
	}
	return chunks
}

var titleCleanRe = regexp.MustCompile(`^["'\x60*#\-\s]+|["'\x60*#\s]+$`)

func (s *Segmenter) title(ctx context.Context, ch chunk) (string, error) {
	if s.gen == nil {
		return "", fmt.Errorf("no text generator configured")
	}
	excerpt := ch.text
	if len(excerpt) > 2000 {
		excerpt = excerpt[:2000]
	}
	prompt := fmt.Sprintf(`This transcript excerpt covers %s to %s of a video:

%s

Reply with a short descriptive title for this part, 3 to 8 words, no quotes.`,
		core.FormatTime(ch.start), core.FormatTime(ch.end), excerpt)
	raw, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	title := titleCleanRe.ReplaceAllString(strings.SplitN(strings.TrimSpace(raw), "\n", 2)[0], "")
	if len(title) > 80 {
		title = title[:80]
	}
	return title, nil
}

// sanitize drops sections outside the video timeline, orders them by start
// and clips overlapping spans so the result is a clean partition.
func sanitize(in []core.Section, duration float64) []core.Section {
	out := make([]core.Section, 0, len(in))
	for _, sec := range in {
		if sec.Start < 0 || sec.End < sec.Start {
			continue
		}
		if duration > 0 {
			if sec.Start >= duration {
				continue
			}
			sec.End = math.Min(sec.End, duration)
		}
		out = append(out, sec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	for i := 1; i < len(out); i++ {
		if out[i].Start < out[i-1].End {
			out[i-1].End = out[i].Start
		}
	}
	return out
}

// Fallback builds fixed-length positionally titled sections. It covers the
// case where no transcript-driven segmentation is possible but the video
// duration is known.
func Fallback(duration, chunkSec float64) []core.Section {
	if chunkSec <= 0 {
		chunkSec = 120
	}
	if duration <= 0 {
		return []core.Section{{Title: "Part 1", Start: 0, End: chunkSec}}
	}
	var out []core.Section
	n := 1
	for start := 0.0; start < duration; start += chunkSec {
		out = append(out, core.Section{
			Title: fmt.Sprintf("Part %d", n),
			Start: start,
			End:   math.Min(start+chunkSec, duration),
		})
		n++
	}
	return out
}
