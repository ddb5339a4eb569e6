// Package chat answers questions about a video, grounded in its transcript
// and sections, with provenance citations derived from the assembled
// context rather than from model output.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Nawaf-TBE/Mutli-Video-analysis-2/core"
	"github.com/Nawaf-TBE/Mutli-Video-analysis-2/store"
)

const (
	// relevanceFloor is the minimum top score for a question to be
	// considered answerable from the transcript.
	relevanceFloor = 0.15
	// maxTurns caps stored conversation length; the oldest turns fall off.
	maxTurns = 10

	fallbackAnswer = "I couldn't find anything in this video related to your question."
)

// Engine runs grounded chat over one video at a time.
type Engine struct {
	repo          store.Repository
	gen           core.TextGenerator
	ranker        Ranker
	historyTurns  int
	contextBudget int
	log           *slog.Logger
}

func NewEngine(repo store.Repository, gen core.TextGenerator, ranker Ranker, historyTurns, contextBudget int, log *slog.Logger) *Engine {
	if ranker == nil {
		ranker = LexicalRanker{}
	}
	if historyTurns <= 0 {
		historyTurns = 3
	}
	if contextBudget <= 0 {
		contextBudget = 6000
	}
	return &Engine{
		repo:          repo,
		gen:           gen,
		ranker:        ranker,
		historyTurns:  historyTurns,
		contextBudget: contextBudget,
		log:           log,
	}
}

// Answer is the result of one chat turn.
type Answer struct {
	ConversationID string          `json:"conversation_id"`
	Text           string          `json:"answer"`
	Citations      []core.Citation `json:"citations"`
}

// Ask answers a question about the video. An empty conversationID starts a
// new conversation; otherwise the turn is appended to the existing one.
func (e *Engine) Ask(ctx context.Context, videoID, conversationID, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, core.NewError(core.KindInvalidInput, "question is empty")
	}

	segs, err := e.repo.Segments(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if len(segs) == 0 {
		return nil, core.NewError(core.KindVideoNotReady, "video %s has no transcript", videoID)
	}
	sections, err := e.repo.Sections(ctx, videoID)
	if err != nil {
		return nil, err
	}

	conv, err := e.loadConversation(ctx, videoID, conversationID)
	if err != nil {
		return nil, err
	}

	picked, top, err := e.selectContext(ctx, question, segs, sections)
	if err != nil {
		return nil, err
	}

	var answerText string
	var citations []core.Citation
	if top < relevanceFloor {
		answerText = fallbackAnswer
	} else {
		answerText, err = e.gen.Generate(ctx, e.buildPrompt(question, picked, sections, conv.Turns))
		if err != nil {
			return nil, fmt.Errorf("generate answer: %w", err)
		}
		citations = deriveCitations(answerText, picked)
	}

	conv.Turns = append(conv.Turns, core.Turn{
		Question:  question,
		Answer:    answerText,
		Citations: citations,
		CreatedAt: time.Now().UTC(),
	})
	if len(conv.Turns) > maxTurns {
		conv.Turns = conv.Turns[len(conv.Turns)-maxTurns:]
	}
	if err := e.repo.SaveConversation(ctx, conv); err != nil {
		return nil, err
	}

	return &Answer{ConversationID: conv.ID, Text: answerText, Citations: citations}, nil
}

// SuggestedQuestions proposes starter questions from the section titles.
func (e *Engine) SuggestedQuestions(ctx context.Context, videoID string, limit int) ([]string, error) {
	sections, err := e.repo.Sections(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 4
	}
	var out []string
	for _, sec := range sections {
		if strings.HasPrefix(sec.Title, "Section at ") || strings.HasPrefix(sec.Title, "Part ") {
			continue
		}
		out = append(out, fmt.Sprintf("What does the video say about %s?", lowerFirst(sec.Title)))
		if len(out) == limit {
			break
		}
	}
	if len(out) == 0 {
		out = append(out, "What is this video about?")
	}
	return out, nil
}

func (e *Engine) loadConversation(ctx context.Context, videoID, conversationID string) (*core.Conversation, error) {
	if conversationID == "" {
		return &core.Conversation{ID: uuid.NewString(), VideoID: videoID}, nil
	}
	conv, err := e.repo.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.VideoID != videoID {
		return nil, core.NewError(core.KindInvalidInput,
			"conversation %s belongs to another video", conversationID)
	}
	return conv, nil
}

// scoredSegment pairs a transcript segment with its relevance to the
// current question.
type scoredSegment struct {
	seg   core.TranscriptSegment
	score float64
}

// selectContext ranks transcript segments against the question and picks
// the best ones until the character budget is spent. Segments are taken
// whole; a segment that does not fit is skipped, never truncated.
func (e *Engine) selectContext(ctx context.Context, question string, segs []core.TranscriptSegment, sections []core.Section) ([]scoredSegment, float64, error) {
	docs := make([]string, len(segs))
	for i, seg := range segs {
		docs[i] = seg.Text
	}
	scores, err := e.ranker.Rank(ctx, question, docs)
	if err != nil {
		return nil, 0, fmt.Errorf("rank context: %w", err)
	}

	// Section titles boost the segments they cover, so a question phrased
	// like a section heading still finds its span.
	for _, sec := range sections {
		titleScore := core.LexicalCosine(core.LexicalVector(question), core.LexicalVector(sec.Title))
		if titleScore <= 0 {
			continue
		}
		for i, seg := range segs {
			if seg.Start >= sec.Start && seg.Start < sec.End {
				scores[i] += 0.25 * titleScore
			}
		}
	}

	ranked := make([]scoredSegment, len(segs))
	for i := range segs {
		ranked[i] = scoredSegment{seg: segs[i], score: scores[i]}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].seg.Start < ranked[j].seg.Start
	})

	var top float64
	if len(ranked) > 0 {
		top = ranked[0].score
	}

	var picked []scoredSegment
	used := 0
	for _, rs := range ranked {
		if rs.score <= 0 {
			break
		}
		cost := len(rs.seg.Text) + 16
		if used+cost > e.contextBudget {
			continue
		}
		picked = append(picked, rs)
		used += cost
	}
	// Context reads in timeline order regardless of rank.
	sort.Slice(picked, func(i, j int) bool { return picked[i].seg.Start < picked[j].seg.Start })
	return picked, top, nil
}

func (e *Engine) buildPrompt(question string, picked []scoredSegment, sections []core.Section, history []core.Turn) string {
	var b strings.Builder
	b.WriteString("You are answering questions about a video using only its transcript.\n")
	b.WriteString("Cite moments as [MM:SS] when you reference them.\n")
	b.WriteString("If the transcript does not answer the question, say so.\n\n")

	if len(sections) > 0 {
		b.WriteString("Video outline:\n")
		for _, sec := range sections {
			fmt.Fprintf(&b, "- [%s] %s\n", core.FormatTime(sec.Start), sec.Title)
		}
		b.WriteString("\n")
	}

	b.WriteString("Transcript excerpts:\n")
	for _, rs := range picked {
		fmt.Fprintf(&b, "[%s] %s\n", core.FormatTime(rs.seg.Start), rs.seg.Text)
	}

	if n := len(history); n > 0 {
		b.WriteString("\nRecent conversation:\n")
		start := n - e.historyTurns
		if start < 0 {
			start = 0
		}
		for _, t := range history[start:] {
			fmt.Fprintf(&b, "Q: %s\nA: %s\n", t.Question, t.Answer)
		}
	}

	fmt.Fprintf(&b, "\nQuestion: %s\nAnswer:", question)
	return b.String()
}

// deriveCitations picks the context segments whose wording the answer
// actually draws on. Timestamps always come from the assembled context, so
// a hallucinated [MM:SS] in the answer can never become a citation.
func deriveCitations(answer string, picked []scoredSegment) []core.Citation {
	answerTokens := map[string]struct{}{}
	for _, t := range core.Tokenize(answer) {
		answerTokens[t] = struct{}{}
	}
	var cits []core.Citation
	for _, rs := range picked {
		segTokens := core.Tokenize(rs.seg.Text)
		if len(segTokens) == 0 {
			continue
		}
		overlap := 0
		for _, t := range segTokens {
			if _, ok := answerTokens[t]; ok {
				overlap++
			}
		}
		if float64(overlap)/float64(len(segTokens)) >= 0.2 {
			cits = append(cits, core.Citation{Timestamp: rs.seg.Start, Text: rs.seg.Text})
		}
	}
	sort.Slice(cits, func(i, j int) bool { return cits[i].Timestamp < cits[j].Timestamp })
	if len(cits) > 5 {
		cits = cits[:5]
	}
	return cits
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
