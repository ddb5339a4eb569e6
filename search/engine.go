// Package search ranks video frames against a query in text, visual or
// hybrid mode.
package search

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/Nawaf-TBE/Mutli-Video-analysis-2/core"
	"github.com/Nawaf-TBE/Mutli-Video-analysis-2/store"
	"github.com/Nawaf-TBE/Mutli-Video-analysis-2/vectorstore"
)

const (
	ModeText   = "text"
	ModeVisual = "visual"
	ModeHybrid = "hybrid"
)

// Result is one ranked frame. In text and visual mode Score is the raw
// similarity; in hybrid mode it is the weighted sum of the per-modality
// scores after min-max normalization.
type Result struct {
	Timestamp   float64 `json:"timestamp"`
	Score       float64 `json:"score"`
	TextScore   float64 `json:"text_score,omitempty"`
	VisualScore float64 `json:"visual_score,omitempty"`
	Context     string  `json:"context,omitempty"`
	FramePath   string  `json:"frame_path,omitempty"`
}

// Engine answers frame search queries. Text mode matches the query against
// transcript context lexically; visual mode embeds the query and searches
// the vector index; hybrid fuses both with configurable weights.
type Engine struct {
	repo         store.Repository
	vectors      vectorstore.VectorStore
	embedder     core.VisualEmbedder
	textWeight   float64
	visualWeight float64
	defaultTopK  int
	log          *slog.Logger
}

func NewEngine(repo store.Repository, vectors vectorstore.VectorStore, embedder core.VisualEmbedder, textWeight, visualWeight float64, defaultTopK int, log *slog.Logger) *Engine {
	if textWeight <= 0 && visualWeight <= 0 {
		textWeight, visualWeight = 0.5, 0.5
	}
	if defaultTopK <= 0 {
		defaultTopK = 10
	}
	return &Engine{
		repo:         repo,
		vectors:      vectors,
		embedder:     embedder,
		textWeight:   textWeight,
		visualWeight: visualWeight,
		defaultTopK:  defaultTopK,
		log:          log,
	}
}

// DefaultTopK is the result count used when a request does not specify one.
func (e *Engine) DefaultTopK() int { return e.defaultTopK }

// Query searches a video's frames. topK must be positive; callers that
// accept an optional parameter substitute DefaultTopK before calling.
func (e *Engine) Query(ctx context.Context, videoID, query, mode string, topK int) ([]Result, error) {
	switch mode {
	case ModeText, ModeVisual, ModeHybrid:
	case "":
		mode = ModeHybrid
	default:
		return nil, core.NewError(core.KindInvalidMode, "unknown search mode %q", mode)
	}
	if topK <= 0 {
		return nil, core.NewError(core.KindInvalidTopK, "top_k must be positive, got %d", topK)
	}

	frames, err := e.repo.Frames(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, core.NewError(core.KindVideoNotReady, "video %s has no frames", videoID)
	}
	sort.Slice(frames, func(i, j int) bool { return frames[i].Timestamp < frames[j].Timestamp })

	byTS := make(map[float64]core.Frame, len(frames))
	for _, f := range frames {
		byTS[f.Timestamp] = f
	}

	// Candidate sets per modality: text covers frames that have transcript
	// context, visual covers frames that have an embedding. A frame outside
	// both sets never appears in results.
	var textScores, visualScores map[float64]float64
	var textErr, visualErr error
	if mode == ModeText || mode == ModeHybrid {
		textScores, textErr = e.textScores(query, frames)
		if textErr != nil && mode == ModeText {
			return nil, textErr
		}
	}
	if mode == ModeVisual || mode == ModeHybrid {
		visualScores, visualErr = e.visualScores(ctx, videoID, query, len(frames))
		if visualErr != nil && mode == ModeVisual {
			return nil, visualErr
		}
	}
	if mode == ModeHybrid {
		// A hybrid query survives one missing modality but not both.
		if textErr != nil && visualErr != nil {
			return nil, textErr
		}
		if textErr != nil {
			e.log.Warn("text scoring unavailable, using visual scores only",
				"video_id", videoID, "error", textErr)
		}
		if visualErr != nil {
			e.log.Warn("visual search unavailable, using text scores only",
				"video_id", videoID, "error", visualErr)
		}
	}

	var results []Result
	switch mode {
	case ModeText:
		for ts, s := range textScores {
			results = append(results, resultFor(byTS[ts], s, s, 0))
		}
	case ModeVisual:
		for ts, s := range visualScores {
			f, ok := byTS[ts]
			if !ok {
				// stale index entry for a re-sampled video
				continue
			}
			results = append(results, resultFor(f, s, 0, s))
		}
	case ModeHybrid:
		// Sub-scores are min-max normalized per modality before fusion so
		// neither scale dominates. A frame in only one candidate set
		// contributes 0 for the other modality. A zero-weighted modality
		// contributes no candidates either, so weights (1, 0) rank exactly
		// like text mode.
		normText := normalize(textScores)
		normVisual := normalize(visualScores)
		if e.textWeight <= 0 {
			normText = map[float64]float64{}
		}
		if e.visualWeight <= 0 {
			normVisual = map[float64]float64{}
		}
		for _, f := range frames {
			t, inText := normText[f.Timestamp]
			v, inVisual := normVisual[f.Timestamp]
			if !inText && !inVisual {
				continue
			}
			score := e.textWeight*t + e.visualWeight*v
			results = append(results, resultFor(f, score, t, v))
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Timestamp < results[j].Timestamp
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// QueryByImage ranks frames against an example image instead of a text
// query. The image lands in the same embedding space as the frames, so
// scoring works exactly like visual mode.
func (e *Engine) QueryByImage(ctx context.Context, videoID, imagePath string, topK int) ([]Result, error) {
	if imagePath == "" {
		return nil, core.NewError(core.KindInvalidInput, "image path is required")
	}
	if topK <= 0 {
		return nil, core.NewError(core.KindInvalidTopK, "top_k must be positive, got %d", topK)
	}

	frames, err := e.repo.Frames(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, core.NewError(core.KindVideoNotReady, "video %s has no frames", videoID)
	}
	byTS := make(map[float64]core.Frame, len(frames))
	for _, f := range frames {
		byTS[f.Timestamp] = f
	}

	var qvec []float32
	err = core.Retry(ctx, time.Second, func() error {
		v, err := e.embedder.EmbedImage(ctx, imagePath)
		if err != nil {
			return err
		}
		qvec = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	hits, err := e.vectors.Search(ctx, videoID, qvec, len(frames))
	if err != nil {
		return nil, err
	}

	var results []Result
	for _, h := range hits {
		f, ok := byTS[h.Timestamp]
		if !ok {
			// stale index entry for a re-sampled video
			continue
		}
		results = append(results, resultFor(f, h.Score, 0, h.Score))
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Timestamp < results[j].Timestamp
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Window returns the frames, sections and transcript text covering
// [ts-radius, ts+radius] for timestamp-anchored lookups.
type WindowResult struct {
	Timestamp float64        `json:"timestamp"`
	Frames    []core.Frame   `json:"frames"`
	Sections  []core.Section `json:"sections"`
	Text      string         `json:"transcript_text"`
}

func (e *Engine) Window(ctx context.Context, videoID string, ts, radius float64) (*WindowResult, error) {
	if ts < 0 {
		return nil, core.NewError(core.KindInvalidInput, "timestamp must be non-negative")
	}
	if radius <= 0 {
		radius = 15
	}
	lo, hi := ts-radius, ts+radius

	frames, err := e.repo.Frames(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, core.NewError(core.KindVideoNotReady, "video %s has no frames", videoID)
	}
	res := &WindowResult{Timestamp: ts}
	for _, f := range frames {
		if f.Timestamp >= lo && f.Timestamp <= hi {
			res.Frames = append(res.Frames, f)
		}
	}
	sort.Slice(res.Frames, func(i, j int) bool { return res.Frames[i].Timestamp < res.Frames[j].Timestamp })

	sections, err := e.repo.Sections(ctx, videoID)
	if err != nil {
		return nil, err
	}
	for _, sec := range sections {
		if sec.Start <= hi && sec.End >= lo {
			res.Sections = append(res.Sections, sec)
		}
	}

	segs, err := e.repo.Segments(ctx, videoID)
	if err != nil {
		return nil, err
	}
	var parts []string
	for _, seg := range segs {
		if seg.Start <= hi && seg.End >= lo {
			parts = append(parts, seg.Text)
		}
	}
	res.Text = strings.Join(parts, " ")
	return res, nil
}

func resultFor(f core.Frame, score, text, visual float64) Result {
	return Result{
		Timestamp:   f.Timestamp,
		Score:       score,
		TextScore:   text,
		VisualScore: visual,
		Context:     f.Context,
		FramePath:   f.Path,
	}
}

func (e *Engine) textScores(query string, frames []core.Frame) (map[float64]float64, error) {
	qvec := core.LexicalVector(query)
	scores := make(map[float64]float64, len(frames))
	for _, f := range frames {
		if f.Context == "" {
			continue
		}
		scores[f.Timestamp] = core.LexicalCosine(qvec, core.LexicalVector(f.Context))
	}
	if len(scores) == 0 {
		return nil, core.NewError(core.KindNoSearchableContent, "no frame has transcript context")
	}
	return scores, nil
}

func (e *Engine) visualScores(ctx context.Context, videoID, query string, frameCount int) (map[float64]float64, error) {
	var qvec []float32
	err := core.Retry(ctx, time.Second, func() error {
		v, err := e.embedder.EmbedText(ctx, query)
		if err != nil {
			return err
		}
		qvec = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	hits, err := e.vectors.Search(ctx, videoID, qvec, frameCount)
	if err != nil {
		return nil, err
	}
	scores := make(map[float64]float64, len(hits))
	for _, h := range hits {
		scores[h.Timestamp] = h.Score
	}
	return scores, nil
}

// normalize min-max scales scores into [0, 1].
func normalize(scores map[float64]float64) map[float64]float64 {
	if len(scores) == 0 {
		return map[float64]float64{}
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, s := range scores {
		lo = math.Min(lo, s)
		hi = math.Max(hi, s)
	}
	out := make(map[float64]float64, len(scores))
	if hi == lo {
		// All candidates scored identically: a uniformly-zero modality
		// contributes nothing, a uniformly-positive one contributes fully.
		v := 0.0
		if hi > 0 {
			v = 1
		}
		for ts := range scores {
			out[ts] = v
		}
		return out
	}
	for ts, s := range scores {
		out[ts] = (s - lo) / (hi - lo)
	}
	return out
}
