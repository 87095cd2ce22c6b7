package semantic

import (
	"context"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	openai "github.com/sashabaranov/go-openai"

	"github.com/af-corp/foodguard-gateway/internal/config"
	"github.com/af-corp/foodguard-gateway/internal/types"
)

// Embedder turns text into a fixed-length vector. Implementations must be
// deterministic for a given model version and input.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Model() string
}

// OpenAIEmbedder calls an OpenAI-compatible embeddings endpoint. The base URL
// is configurable so a local sentence-transformers server can stand in for
// the hosted API.
type OpenAIEmbedder struct {
	client     *openai.Client
	model      string
	cfg        config.EmbeddingConfig
	maxRetries uint64
}

func NewOpenAIEmbedder(cfg config.EmbeddingConfig) *OpenAIEmbedder {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIEmbedder{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      cfg.Model,
		cfg:        cfg,
		maxRetries: uint64(cfg.MaxRetries),
	}
}

func (e *OpenAIEmbedder) Model() string { return e.model }

// Embed requests a single embedding, retrying transient failures with
// exponential backoff. A final failure is reported as ModelUnavailable so it
// is never mistaken for a content decision.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	var vec []float32
	op := func() error {
		resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: []string{text},
			Model: openai.EmbeddingModel(e.model),
		})
		if err != nil {
			return err
		}
		if len(resp.Data) == 0 {
			return backoff.Permanent(fmt.Errorf("no embedding data returned"))
		}
		vec = resp.Data[0].Embedding
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), e.maxRetries), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, fmt.Errorf("%w: embed: %v", types.ErrModelUnavailable, err)
	}
	return vec, nil
}
