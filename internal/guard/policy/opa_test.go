package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/af-corp/foodguard-gateway/internal/config"
	"github.com/af-corp/foodguard-gateway/internal/types"
)

const testPolicy = `
package foodguard.policy

default allow := true
default reason := ""

allow := false if {
	input.request.kind == "image"
	input.request.declared_mime == "image/gif"
}

reason := "gif_uploads_disabled" if {
	input.request.kind == "image"
	input.request.declared_mime == "image/gif"
}
`

func newEvaluator(t *testing.T, enabled bool) *Evaluator {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "gateway.rego"), []byte(testPolicy), 0o644); err != nil {
		t.Fatal(err)
	}
	e := NewEvaluator(func() config.PolicyFilterConfig {
		return config.PolicyFilterConfig{
			Enabled:           enabled,
			BundlePath:        dir,
			EvaluationTimeout: time.Second,
		}
	})
	if err := e.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return e
}

func TestCheck_DeniedByPolicy(t *testing.T) {
	e := newEvaluator(t, true)
	req := &types.GuardRequest{Kind: types.KindImage, DeclaredMIME: "image/gif"}

	sig, ok := e.Check(context.Background(), req)
	if !ok {
		t.Fatal("expected a deny signal")
	}
	if sig.Decision != types.DecisionDeny || !sig.Decisive {
		t.Errorf("expected decisive deny, got %+v", sig)
	}
	if sig.Label != "gif_uploads_disabled" {
		t.Errorf("expected rule reason as label, got %q", sig.Label)
	}
}

func TestCheck_AllowedByPolicy(t *testing.T) {
	e := newEvaluator(t, true)
	req := &types.GuardRequest{Kind: types.KindText, Prompt: "a cheese pizza"}

	if _, ok := e.Check(context.Background(), req); ok {
		t.Error("allowed request must not produce a signal")
	}
}

func TestCheck_Disabled(t *testing.T) {
	e := newEvaluator(t, false)
	req := &types.GuardRequest{Kind: types.KindImage, DeclaredMIME: "image/gif"}

	if _, ok := e.Check(context.Background(), req); ok {
		t.Error("disabled evaluator must not produce a signal")
	}
}

func TestCheck_NoPoliciesLoaded(t *testing.T) {
	e := NewEvaluator(func() config.PolicyFilterConfig {
		return config.PolicyFilterConfig{
			Enabled:           true,
			BundlePath:        t.TempDir(),
			EvaluationTimeout: time.Second,
		}
	})
	if err := e.Load(); err != nil {
		t.Fatalf("Load of empty dir must not fail: %v", err)
	}
	if _, ok := e.Check(context.Background(), &types.GuardRequest{Kind: types.KindText}); ok {
		t.Error("no policies must mean no signal")
	}
}
