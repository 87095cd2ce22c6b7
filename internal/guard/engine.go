package guard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/af-corp/foodguard-gateway/internal/config"
	"github.com/af-corp/foodguard-gateway/internal/guard/hygiene"
	"github.com/af-corp/foodguard-gateway/internal/telemetry"
	"github.com/af-corp/foodguard-gateway/internal/types"
	"github.com/af-corp/foodguard-gateway/internal/verdictcache"
)

// TextScorer scores a prompt against the semantic reference set.
type TextScorer interface {
	Score(ctx context.Context, text string) (types.Signal, error)
}

// ImageScorer classifies a normalized image against the label set.
type ImageScorer interface {
	Score(ctx context.Context, img *hygiene.Image) (types.Signal, error)
}

// SafetyClassifier runs the NSFW detector on a normalized image.
type SafetyClassifier interface {
	Classify(ctx context.Context, img *hygiene.Image) (types.Signal, error)
}

// KeywordMatcher is the deterministic term-list stage.
type KeywordMatcher interface {
	MatchDeny(text string) (types.Signal, bool)
	MatchAllow(text string) (types.Signal, bool)
}

// InjectionChecker flags prompt-injection patterns. The boolean reports
// whether the stage produced a signal at all.
type InjectionChecker interface {
	Check(text string) (types.Signal, bool)
}

// PolicyChecker evaluates operator policy over request metadata.
type PolicyChecker interface {
	Check(ctx context.Context, req *types.GuardRequest) (types.Signal, bool)
}

// VerdictCache replays previous decisions for identical content.
type VerdictCache interface {
	Get(ctx context.Context, key string) (*types.Verdict, bool)
	Put(ctx context.Context, key string, v *types.Verdict)
}

// Deps collects the pipeline stages wired into an Engine. Injection, Policy,
// Cache and Metrics may be nil; those stages are then skipped.
type Deps struct {
	Keywords  KeywordMatcher
	Injection InjectionChecker
	Text      TextScorer
	Image     ImageScorer
	Safety    SafetyClassifier
	Policy    PolicyChecker
	Cache     VerdictCache
	Metrics   *telemetry.Metrics
	Logger    *slog.Logger
}

// Engine runs the guard pipeline: cheap deterministic stages first, model
// stages only when nothing earlier was decisive. Infrastructure failures
// surface as errors and never turn into content decisions.
type Engine struct {
	cfg  func() config.GuardConfig
	deps Deps
}

func NewEngine(cfg func() config.GuardConfig, deps Deps) *Engine {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Engine{cfg: cfg, deps: deps}
}

// Evaluate gates one request. A non-nil verdict means the pipeline reached a
// decision; a non-nil error means it could not (model outage, cancelled
// context) and the caller must treat the request as undecided.
func (e *Engine) Evaluate(ctx context.Context, req *types.GuardRequest) (*types.Verdict, error) {
	started := time.Now()
	cfg := e.cfg()

	if utf8.RuneCountInString(req.Prompt) > cfg.MaxPromptChars {
		return e.finish(ctx, req, "", Decide(nil, types.ErrKindPayloadTooLarge, started)), nil
	}
	if req.Kind == types.KindImage {
		if len(req.ImageBytes) == 0 {
			return e.finish(ctx, req, "", Decide(nil, types.ErrKindUnsupportedFormat, started)), nil
		}
		if int64(len(req.ImageBytes)) > cfg.MaxImageBytes {
			return e.finish(ctx, req, "", Decide(nil, types.ErrKindPayloadTooLarge, started)), nil
		}
	}

	// The cache is keyed on content alone, so it is bypassed whenever an
	// operator policy is wired in: policy decides on request metadata and
	// evaluation time, which a content hash cannot capture.
	var key string
	if e.deps.Cache != nil && e.deps.Policy == nil {
		key = verdictcache.Key(req)
		if v, ok := e.deps.Cache.Get(ctx, key); ok {
			if e.deps.Metrics != nil {
				e.deps.Metrics.RecordCacheLookup(true)
			}
			return v, nil
		}
		if e.deps.Metrics != nil {
			e.deps.Metrics.RecordCacheLookup(false)
		}
	}

	var signals []types.Signal

	if e.deps.Policy != nil {
		if sig, ok := e.deps.Policy.Check(ctx, req); ok {
			signals = append(signals, sig)
			return e.finish(ctx, req, key, Decide(signals, "", started)), nil
		}
	}

	if req.Prompt != "" {
		if sig, ok := e.stageKeywordDeny(req.Prompt); ok {
			signals = append(signals, sig)
			return e.finish(ctx, req, key, Decide(signals, "", started)), nil
		}
		if e.deps.Injection != nil {
			if sig, ok := e.deps.Injection.Check(req.Prompt); ok {
				signals = append(signals, sig)
				return e.finish(ctx, req, key, Decide(signals, "", started)), nil
			}
		}
	}

	switch req.Kind {
	case types.KindText:
		if sig, ok := e.deps.Keywords.MatchAllow(req.Prompt); ok {
			signals = append(signals, sig)
			return e.finish(ctx, req, key, Decide(signals, "", started)), nil
		}
		sig, err := e.timedText(ctx, req.Prompt)
		if err != nil {
			return nil, err
		}
		signals = append(signals, sig)

	case types.KindImage:
		img, err := hygiene.Normalize(req.ImageBytes, cfg.MaxImagePixels)
		if err != nil {
			if errors.Is(err, types.ErrUnsupportedFormat) {
				return e.finish(ctx, req, key, Decide(signals, types.ErrKindUnsupportedFormat, started)), nil
			}
			return nil, err
		}
		nsig, err := e.timedSafety(ctx, img)
		if err != nil {
			return nil, err
		}
		signals = append(signals, nsig)
		if nsig.Decisive {
			return e.finish(ctx, req, key, Decide(signals, "", started)), nil
		}
		isig, err := e.timedImage(ctx, img)
		if err != nil {
			return nil, err
		}
		signals = append(signals, isig)

	default:
		return nil, fmt.Errorf("unknown request kind %q", req.Kind)
	}

	return e.finish(ctx, req, key, Decide(signals, "", started)), nil
}

func (e *Engine) stageKeywordDeny(prompt string) (types.Signal, bool) {
	t := time.Now()
	sig, ok := e.deps.Keywords.MatchDeny(prompt)
	e.recordStage("keyword", t)
	return sig, ok
}

func (e *Engine) timedText(ctx context.Context, prompt string) (types.Signal, error) {
	t := time.Now()
	sig, err := e.deps.Text.Score(ctx, prompt)
	e.recordStage("text_semantic", t)
	return sig, err
}

func (e *Engine) timedSafety(ctx context.Context, img *hygiene.Image) (types.Signal, error) {
	t := time.Now()
	sig, err := e.deps.Safety.Classify(ctx, img)
	e.recordStage("nsfw", t)
	return sig, err
}

func (e *Engine) timedImage(ctx context.Context, img *hygiene.Image) (types.Signal, error) {
	t := time.Now()
	sig, err := e.deps.Image.Score(ctx, img)
	e.recordStage("image_semantic", t)
	return sig, err
}

func (e *Engine) recordStage(stage string, started time.Time) {
	if e.deps.Metrics != nil {
		e.deps.Metrics.RecordStage(stage, float64(time.Since(started).Microseconds())/1000.0)
	}
}

// finish records metrics, logs the outcome, and caches verdicts that reflect
// content alone. Limit violations are not cached: they depend on config that
// may be reloaded.
func (e *Engine) finish(ctx context.Context, req *types.GuardRequest, cacheKey string, v *types.Verdict) *types.Verdict {
	stage := "aggregate"
	if len(v.Signals) > 0 {
		stage = string(v.Signals[len(v.Signals)-1].Source)
	}

	if e.deps.Metrics != nil {
		e.deps.Metrics.RecordVerdict(string(req.Kind), string(v.Decision), stage,
			float64(v.Latency.Microseconds())/1000.0)
	}

	e.deps.Logger.Info("verdict",
		"request_id", req.RequestID,
		"kind", req.Kind,
		"decision", v.Decision,
		"reason", v.Reason,
		"signals", len(v.Signals),
		"latency_ms", v.Latency.Milliseconds(),
	)

	if e.deps.Cache != nil && cacheKey != "" {
		e.deps.Cache.Put(ctx, cacheKey, v)
	}
	return v
}
