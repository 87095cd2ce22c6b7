package guard

import (
	"fmt"
	"time"

	"github.com/af-corp/foodguard-gateway/internal/types"
)

// ReasonInconclusive is the verdict reason when no stage produced a decisive
// signal. The pipeline denies by default rather than guessing.
const ReasonInconclusive = "Inconclusive"

// Decide folds the signals collected by the pipeline into a final verdict.
// It is a pure function of its inputs: the same signals always produce the
// same decision and reason.
//
// Precedence, strictest first:
//  1. a resource-limit violation denies outright
//  2. a decisive NSFW signal denies, regardless of any food match
//  3. decisive keyword and injection signals, deny winning over allow
//  4. a decisive policy denial
//  5. decisive semantic signals (text or image), deny winning over allow
//  6. no decisive signal at all denies as inconclusive
func Decide(signals []types.Signal, violation types.ErrorKind, started time.Time) *types.Verdict {
	v := &types.Verdict{
		Signals: signals,
		Latency: time.Since(started),
	}

	if violation != "" {
		v.Decision = types.DecisionDeny
		v.Reason = string(violation)
		return v
	}

	if sig, ok := pick(signals, types.DecisionDeny, types.SourceNSFW); ok {
		return settle(v, sig)
	}
	if sig, ok := pick(signals, types.DecisionDeny, types.SourceKeyword, types.SourceInjection); ok {
		return settle(v, sig)
	}
	if sig, ok := pick(signals, types.DecisionAllow, types.SourceKeyword); ok {
		return settle(v, sig)
	}
	if sig, ok := pick(signals, types.DecisionDeny, types.SourcePolicy); ok {
		return settle(v, sig)
	}
	if sig, ok := pick(signals, types.DecisionDeny, types.SourceTextSemantic, types.SourceImageSemantic); ok {
		return settle(v, sig)
	}
	if sig, ok := pick(signals, types.DecisionAllow, types.SourceTextSemantic, types.SourceImageSemantic); ok {
		return settle(v, sig)
	}

	v.Decision = types.DecisionDeny
	v.Reason = ReasonInconclusive
	return v
}

// pick returns the first decisive signal matching the decision and one of the
// given sources, in signal (stage) order.
func pick(signals []types.Signal, d types.Decision, sources ...types.SignalSource) (types.Signal, bool) {
	for _, sig := range signals {
		if !sig.Decisive || sig.Decision != d {
			continue
		}
		for _, src := range sources {
			if sig.Source == src {
				return sig, true
			}
		}
	}
	return types.Signal{}, false
}

func settle(v *types.Verdict, sig types.Signal) *types.Verdict {
	v.Decision = sig.Decision
	v.Reason = Reason(sig)
	return v
}

// Reason renders the audit reason string for a decisive signal.
func Reason(sig types.Signal) string {
	switch sig.Source {
	case types.SourceKeyword:
		return fmt.Sprintf("keyword_match:%s", sig.Label)
	case types.SourceInjection:
		return fmt.Sprintf("injection:%s", sig.Label)
	case types.SourceTextSemantic:
		return fmt.Sprintf("semantic:%s", sig.Label)
	case types.SourceImageSemantic:
		return fmt.Sprintf("semantic_image:%s", sig.Label)
	case types.SourceNSFW:
		return string(types.ErrKindUnsafeContent)
	case types.SourcePolicy:
		return fmt.Sprintf("policy:%s", sig.Label)
	default:
		return string(sig.Source)
	}
}
