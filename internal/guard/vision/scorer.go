package vision

import (
	"context"

	"github.com/af-corp/foodguard-gateway/internal/config"
	"github.com/af-corp/foodguard-gateway/internal/guard/hygiene"
	"github.com/af-corp/foodguard-gateway/internal/refset"
	"github.com/af-corp/foodguard-gateway/internal/types"
)

// Scorer runs zero-shot classification over a normalized image and maps the
// winning label to a verdict category.
type Scorer struct {
	client *Client
	labels []Label
	cfg    func() config.GuardConfig
}

func NewScorer(client *Client, cfg func() config.GuardConfig) *Scorer {
	return &Scorer{client: client, labels: DefaultLabels(), cfg: cfg}
}

// Score produces the image-semantic signal. Decisive allow requires the food
// score to clear the allow threshold and to beat the best competing label by
// the configured margin; decisive deny requires a non-food label to clear
// the deny threshold. Anything else is non-decisive and falls through to the
// aggregator's strict default.
func (s *Scorer) Score(ctx context.Context, img *hygiene.Image) (types.Signal, error) {
	scores, err := s.client.ZeroShot(ctx, img, labelTexts(s.labels))
	if err != nil {
		return types.Signal{}, err
	}

	var top LabelScore
	maxFood, maxOther := 0.0, 0.0
	for _, ls := range scores {
		if ls.Score > top.Score {
			top = ls
		}
		if categoryOf(s.labels, ls.Label) == refset.LabelFood {
			if ls.Score > maxFood {
				maxFood = ls.Score
			}
		} else if ls.Score > maxOther {
			maxOther = ls.Score
		}
	}

	cfg := s.cfg()
	category := categoryOf(s.labels, top.Label)
	sig := types.Signal{
		Source: types.SourceImageSemantic,
		Label:  category,
		Score:  top.Score,
	}
	if category == refset.LabelFood {
		sig.Decision = types.DecisionAllow
		sig.Decisive = top.Score >= cfg.TextAllowThreshold && maxFood >= maxOther+cfg.ImageMargin
	} else {
		sig.Decision = types.DecisionDeny
		sig.Decisive = top.Score >= cfg.TextDenyThreshold
	}
	return sig, nil
}
