package core

import (
	"context"
	"time"
)

// Status tracks a video through the acquisition pipeline.
type Status string

const (
	StatusPending   Status = "pending"
	StatusAcquiring Status = "acquiring"
	StatusAcquired  Status = "acquired"
	StatusFailed    Status = "failed"
)

// VideoAsset is a submitted video reference and the root of all derived data.
type VideoAsset struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Title     string    `json:"title,omitempty"`
	Duration  float64   `json:"duration"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// TranscriptSegment is one time-aligned piece of the transcript.
// Segments for a video are ordered by Start and replaced as a whole set.
type TranscriptSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Section is a titled span of the video timeline derived from the transcript.
type Section struct {
	Title string  `json:"title"`
	Start float64 `json:"start_time"`
	End   float64 `json:"end_time"`
}

// Frame is a still image sampled at a fixed interval. Context carries the
// transcript text near the frame's timestamp, when any exists.
type Frame struct {
	Timestamp float64 `json:"timestamp"`
	Path      string  `json:"path"`
	Context   string  `json:"context,omitempty"`
}

// Citation points at the transcript material an answer was grounded in.
// Timestamps come from the assembled context, never from model output.
type Citation struct {
	Timestamp float64 `json:"timestamp"`
	Text      string  `json:"supporting_text"`
}

// Turn is one question/answer exchange in a conversation.
type Turn struct {
	Question  string     `json:"question"`
	Answer    string     `json:"answer"`
	Citations []Citation `json:"citations"`
	CreatedAt time.Time  `json:"created_at"`
}

// Conversation is an ordered list of turns scoped to one video.
type Conversation struct {
	ID      string `json:"id"`
	VideoID string `json:"video_id"`
	Turns   []Turn `json:"turns"`
}

// IndexReport summarizes one embedding-indexer run. A non-zero Failed count
// with a non-zero Indexed count is a valid partial state, not an error.
type IndexReport struct {
	Indexed int `json:"indexed"`
	Failed  int `json:"failed"`
}

// TextGenerator is the text-generation capability (prompt in, text out).
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// VisualEmbedder is the cross-modal embedding capability. Images and query
// text are embedded into the same vector space so they can be compared.
type VisualEmbedder interface {
	EmbedImage(ctx context.Context, imagePath string) ([]float32, error)
	EmbedText(ctx context.Context, text string) ([]float32, error)
}
