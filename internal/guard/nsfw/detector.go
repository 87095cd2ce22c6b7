// Package nsfw flags explicit or violent imagery independent of the
// food/not-food axis. Its deny signal takes strict precedence over every
// other stage: a photo of food with nudity in the background is still denied.
package nsfw

import (
	"context"

	"github.com/af-corp/foodguard-gateway/internal/config"
	"github.com/af-corp/foodguard-gateway/internal/guard/hygiene"
	"github.com/af-corp/foodguard-gateway/internal/guard/vision"
	"github.com/af-corp/foodguard-gateway/internal/types"
)

// Detector wraps the sidecar's NSFW endpoint with the configured threshold.
type Detector struct {
	client *vision.Client
	cfg    func() config.GuardConfig
}

func NewDetector(client *vision.Client, cfg func() config.GuardConfig) *Detector {
	return &Detector{client: client, cfg: cfg}
}

// Classify scores the image. At or above the threshold the signal is a
// decisive deny; below it the score is still recorded for auditability but
// carries no decision weight.
func (d *Detector) Classify(ctx context.Context, img *hygiene.Image) (types.Signal, error) {
	score, label, err := d.client.NSFW(ctx, img)
	if err != nil {
		return types.Signal{}, err
	}
	if label == "" {
		label = "nsfw"
	}

	sig := types.Signal{
		Source: types.SourceNSFW,
		Label:  label,
		Score:  score,
	}
	if score >= d.cfg().NSFWThreshold {
		sig.Decision = types.DecisionDeny
		sig.Decisive = true
	} else {
		sig.Decision = types.DecisionAllow
	}
	return sig, nil
}
