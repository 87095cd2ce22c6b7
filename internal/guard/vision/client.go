// Package vision talks to the image inference sidecar: a CLIP-style
// zero-shot classifier and a dedicated NSFW detector behind a small JSON API.
// The sidecar owns the heavy models; this client owns timeouts and the
// ModelUnavailable error boundary.
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/af-corp/foodguard-gateway/internal/config"
	"github.com/af-corp/foodguard-gateway/internal/guard/hygiene"
	"github.com/af-corp/foodguard-gateway/internal/types"
)

// Client is a thin HTTP client for the inference sidecar.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(cfg config.VisionConfig) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: cfg.Timeout},
	}
}

// LabelScore is one entry of a zero-shot class distribution.
type LabelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

type zeroShotRequest struct {
	ImagePNG string   `json:"image_png"` // base64 of the normalized PNG
	Labels   []string `json:"labels"`
}

type zeroShotResponse struct {
	Scores []LabelScore `json:"scores"`
}

type nsfwResponse struct {
	Score float64 `json:"score"`
	Label string  `json:"label"`
}

// ZeroShot scores the normalized image against the candidate text labels and
// returns the class distribution in the sidecar's order.
func (c *Client) ZeroShot(ctx context.Context, img *hygiene.Image, labels []string) ([]LabelScore, error) {
	png, err := img.EncodePNG()
	if err != nil {
		return nil, err
	}
	req := zeroShotRequest{
		ImagePNG: base64.StdEncoding.EncodeToString(png),
		Labels:   labels,
	}
	var resp zeroShotResponse
	if err := c.post(ctx, "/v1/zero-shot", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Scores) == 0 {
		return nil, fmt.Errorf("%w: zero-shot returned empty distribution", types.ErrModelUnavailable)
	}
	return resp.Scores, nil
}

// NSFW returns the explicit-content score for the normalized image, along
// with the top unsafe class name.
func (c *Client) NSFW(ctx context.Context, img *hygiene.Image) (float64, string, error) {
	png, err := img.EncodePNG()
	if err != nil {
		return 0, "", err
	}
	req := map[string]string{
		"image_png": base64.StdEncoding.EncodeToString(png),
	}
	var resp nsfwResponse
	if err := c.post(ctx, "/v1/nsfw", req, &resp); err != nil {
		return 0, "", err
	}
	return resp.Score, resp.Label, nil
}

func (c *Client) post(ctx context.Context, path string, body, dest any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal sidecar request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create sidecar request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", types.ErrModelUnavailable, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read %s response: %v", types.ErrModelUnavailable, path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned status %d: %s",
			types.ErrModelUnavailable, path, resp.StatusCode, string(raw))
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("%w: unmarshal %s response: %v", types.ErrModelUnavailable, path, err)
	}
	return nil
}
