package capability

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Nawaf-TBE/Mutli-Video-analysis-2/core"
)

// CaptionClient talks to an external caption service that returns timed
// caption entries for a video identified by its platform ID.
type CaptionClient struct {
	baseURL string
	httpc   *http.Client
}

func NewCaptionClient(baseURL string) *CaptionClient {
	return &CaptionClient{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: 30 * time.Second},
	}
}

type captionEntry struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

// Fetch returns the caption track as transcript segments.
func (c *CaptionClient) Fetch(ctx context.Context, videoID string) ([]core.TranscriptSegment, error) {
	body, err := json.Marshal(map[string]string{"video_id": videoID})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/captions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, core.MarkTransient(fmt.Errorf("caption service: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("caption service: status %d", resp.StatusCode)
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, core.MarkTransient(err)
		}
		return nil, err
	}

	var entries []captionEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("caption service: decode: %w", err)
	}
	segs := make([]core.TranscriptSegment, 0, len(entries))
	for _, e := range entries {
		if e.Text == "" {
			continue
		}
		segs = append(segs, core.TranscriptSegment{
			Start: e.Start,
			End:   e.Start + e.Duration,
			Text:  e.Text,
		})
	}
	return segs, nil
}
