package capability

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/Nawaf-TBE/Mutli-Video-analysis-2/core"
)

// ClipClient is a minimal REST client to a CLIP embedding sidecar. Images
// and text are embedded into one shared space so a text query can be scored
// against frame vectors directly.
type ClipClient struct {
	baseURL string
	client  *http.Client
}

// ClipDimension is the vector size of the ViT-B/32 model the sidecar serves.
const ClipDimension = 512

func NewClipClient(baseURL string, timeout time.Duration) *ClipClient {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &ClipClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

var _ core.VisualEmbedder = (*ClipClient)(nil)

func (c *ClipClient) EmbedImage(ctx context.Context, imagePath string) ([]float32, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("read frame image: %w", err)
	}
	return c.embed(ctx, "/embed/image", map[string]string{
		"image": base64.StdEncoding.EncodeToString(data),
	})
}

func (c *ClipClient) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return c.embed(ctx, "/embed/text", map[string]string{"text": text})
}

func (c *ClipClient) embed(ctx context.Context, path string, payload any) ([]float32, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, core.MarkTransient(fmt.Errorf("clip request failed: %w", err))
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, core.MarkTransient(fmt.Errorf("clip service returned status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("clip service returned status %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, core.MarkTransient(fmt.Errorf("read clip response: %w", err))
	}
	var out struct {
		Vector []float32 `json:"vector"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode clip response: %w", err)
	}
	if len(out.Vector) == 0 {
		return nil, fmt.Errorf("clip service returned empty vector")
	}
	return out.Vector, nil
}
