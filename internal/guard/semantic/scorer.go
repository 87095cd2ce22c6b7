// Package semantic scores prompt text against the labeled reference
// embedding set. It is the escalation path for text the keyword matcher
// could not settle.
package semantic

import (
	"context"
	"fmt"
	"strings"

	"github.com/af-corp/foodguard-gateway/internal/config"
	"github.com/af-corp/foodguard-gateway/internal/refset"
	"github.com/af-corp/foodguard-gateway/internal/types"
)

// Scorer embeds normalized text and compares it against the reference set
// centroids by cosine similarity.
type Scorer struct {
	embedder Embedder
	refs     *refset.ReferenceSet
	cfg      func() config.GuardConfig
}

// NewScorer wires a scorer. The embedder's model identity must match the one
// the reference set was built with, otherwise the similarity space is
// meaningless and startup must fail.
func NewScorer(embedder Embedder, refs *refset.ReferenceSet, cfg func() config.GuardConfig) (*Scorer, error) {
	if embedder.Model() != refs.Model() {
		return nil, fmt.Errorf("%w: embedding model %q does not match reference set model %q",
			types.ErrInvalidConfig, embedder.Model(), refs.Model())
	}
	return &Scorer{embedder: embedder, refs: refs, cfg: cfg}, nil
}

// Score embeds the text and returns a signal for the best-matching category.
// The signal is decisive when the similarity clears the allow threshold for
// "food" or the deny threshold for any other category; otherwise it carries
// the raw score and the aggregator's strict default applies.
func (s *Scorer) Score(ctx context.Context, text string) (types.Signal, error) {
	normalized := strings.Join(strings.Fields(strings.ToLower(text)), " ")

	vec, err := s.embedder.Embed(ctx, normalized)
	if err != nil {
		return types.Signal{}, err
	}

	label, sim, err := s.refs.Best(vec)
	if err != nil {
		return types.Signal{}, fmt.Errorf("%w: %v", types.ErrModelUnavailable, err)
	}

	cfg := s.cfg()
	sig := types.Signal{
		Source: types.SourceTextSemantic,
		Label:  label,
		Score:  sim,
	}
	if label == refset.LabelFood {
		sig.Decision = types.DecisionAllow
		sig.Decisive = sim >= cfg.TextAllowThreshold
	} else {
		sig.Decision = types.DecisionDeny
		sig.Decisive = sim >= cfg.TextDenyThreshold
	}
	return sig, nil
}
