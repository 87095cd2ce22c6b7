package genapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/af-corp/foodguard-gateway/internal/config"
	"github.com/af-corp/foodguard-gateway/internal/task"
	"github.com/af-corp/foodguard-gateway/internal/types"
)

const (
	circuitFailureThreshold = 5
	circuitProbeInterval    = 30 * time.Second
)

// Client calls the Gemini-style generateContent API. Allowed prompts (and,
// for image requests, the uploaded image) are forwarded as-is; the provider's
// text and inline image output come back on the task.
type Client struct {
	cfg     config.GenerationConfig
	http    *http.Client
	circuit *CircuitBreaker
}

func NewClient(cfg config.GenerationConfig) *Client {
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		circuit: NewCircuitBreaker(circuitFailureThreshold, circuitProbeInterval),
	}
}

// Circuit exposes the breaker for health reporting.
func (c *Client) Circuit() *CircuitBreaker { return c.circuit }

func (c *Client) Generate(ctx context.Context, req *types.GuardRequest) (*task.Generation, error) {
	if !c.circuit.Allow() {
		return nil, fmt.Errorf("%w: generation circuit open", types.ErrModelUnavailable)
	}

	gen, err := c.generate(ctx, req)
	if err != nil {
		c.circuit.RecordFailure()
		return nil, err
	}
	c.circuit.RecordSuccess()
	return gen, nil
}

func (c *Client) generate(ctx context.Context, req *types.GuardRequest) (*task.Generation, error) {
	parts := []generatePart{{Text: req.Prompt}}
	if len(req.ImageBytes) > 0 {
		mime := req.DeclaredMIME
		if mime == "" {
			mime = "image/png"
		}
		parts = append(parts, generatePart{
			InlineData: &inlineData{
				MIMEType: mime,
				Data:     base64.StdEncoding.EncodeToString(req.ImageBytes),
			},
		})
	}

	body, err := json.Marshal(generateRequest{
		Contents: []generateContent{{Role: "user", Parts: parts}},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal generate request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.cfg.BaseURL, c.cfg.Model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.cfg.APIKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: generate: %v", types.ErrModelUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read generate response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, fmt.Errorf("%w: provider returned status %d", types.ErrModelUnavailable, resp.StatusCode)
		}
		return nil, fmt.Errorf("provider returned status %d: %s", resp.StatusCode, string(data))
	}

	var gr generateResponse
	if err := json.Unmarshal(data, &gr); err != nil {
		return nil, fmt.Errorf("unmarshal generate response: %w", err)
	}
	if len(gr.Candidates) == 0 {
		return nil, fmt.Errorf("provider returned no candidates")
	}

	out := &task.Generation{}
	for _, part := range gr.Candidates[0].Content.Parts {
		if part.Text != "" && out.Text == "" {
			out.Text = part.Text
		}
		if part.InlineData != nil && out.ImageB64 == "" {
			out.ImageB64 = part.InlineData.Data
		}
	}
	return out, nil
}

type generateRequest struct {
	Contents []generateContent `json:"contents"`
}

type generateContent struct {
	Role  string         `json:"role,omitempty"`
	Parts []generatePart `json:"parts"`
}

type generatePart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []generatePart `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}
