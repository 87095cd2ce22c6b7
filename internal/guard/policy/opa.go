// Package policy lets operators veto requests with Rego rules over request
// metadata, without touching pipeline code. It is deny-only and disabled by
// default.
package policy

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/open-policy-agent/opa/v1/rego"

	"github.com/af-corp/foodguard-gateway/internal/config"
	"github.com/af-corp/foodguard-gateway/internal/types"
)

// Input is the data sent to OPA for evaluation.
type Input struct {
	Request RequestMeta `json:"request"`
	Time    TimeMeta    `json:"time"`
}

type RequestMeta struct {
	Kind         string `json:"kind"`
	DeclaredMIME string `json:"declared_mime"`
	PromptChars  int    `json:"prompt_chars"`
	HasImage     bool   `json:"has_image"`
}

type TimeMeta struct {
	Hour int    `json:"hour"`
	Day  string `json:"day"`
}

// Evaluator compiles the operator's Rego bundle once and evaluates it per
// request.
type Evaluator struct {
	mu       sync.RWMutex
	prepared *rego.PreparedEvalQuery
	cfg      func() config.PolicyFilterConfig
}

// NewEvaluator creates a policy evaluator. Call Load() to compile policies.
func NewEvaluator(cfg func() config.PolicyFilterConfig) *Evaluator {
	return &Evaluator{cfg: cfg}
}

func (e *Evaluator) Enabled() bool { return e.cfg().Enabled }

// Load compiles Rego modules from the bundle path.
func (e *Evaluator) Load() error {
	cfg := e.cfg()
	modules, err := readBundle(cfg.BundlePath)
	if err != nil {
		return fmt.Errorf("load rego files: %w", err)
	}
	if len(modules) == 0 {
		slog.Warn("no rego files found", "path", cfg.BundlePath)
		return nil
	}

	opts := []func(*rego.Rego){
		rego.Query("[data.foodguard.policy.allow, data.foodguard.policy.reason]"),
	}
	for name, src := range modules {
		opts = append(opts, rego.Module(name, src))
	}

	prepared, err := rego.New(opts...).PrepareForEval(context.Background())
	if err != nil {
		return fmt.Errorf("prepare rego: %w", err)
	}

	e.mu.Lock()
	e.prepared = &prepared
	e.mu.Unlock()

	slog.Info("opa policies loaded", "modules", len(modules))
	return nil
}

// readBundle collects the Rego sources under dir, keyed by file name.
func readBundle(dir string) (map[string]string, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, err
	}
	paths, err := filepath.Glob(filepath.Join(dir, "*.rego"))
	if err != nil {
		return nil, err
	}
	modules := make(map[string]string, len(paths))
	for _, p := range paths {
		src, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		modules[filepath.Base(p)] = string(src)
	}
	return modules, nil
}

// Check evaluates the request metadata against the loaded policies. A policy
// denial is a decisive deny signal carrying the rule's reason as its label.
// No loaded policies, or an evaluation error, means no signal: the guardrail
// pipeline itself stays the authority on content.
func (e *Evaluator) Check(ctx context.Context, req *types.GuardRequest) (types.Signal, bool) {
	cfg := e.cfg()
	if !cfg.Enabled {
		return types.Signal{}, false
	}

	e.mu.RLock()
	prepared := e.prepared
	e.mu.RUnlock()
	if prepared == nil {
		return types.Signal{}, false
	}

	now := time.Now().UTC()
	input := Input{
		Request: RequestMeta{
			Kind:         string(req.Kind),
			DeclaredMIME: req.DeclaredMIME,
			PromptChars:  len(req.Prompt),
			HasImage:     len(req.ImageBytes) > 0,
		},
		Time: TimeMeta{
			Hour: now.Hour(),
			Day:  now.Weekday().String(),
		},
	}

	evalCtx, cancel := context.WithTimeout(ctx, cfg.EvaluationTimeout)
	defer cancel()

	results, err := prepared.Eval(evalCtx, rego.EvalInput(input))
	if err != nil {
		slog.Error("policy evaluation failed", "error", err)
		return types.Signal{}, false
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return types.Signal{}, false
	}

	pair, ok := results[0].Expressions[0].Value.([]interface{})
	if !ok || len(pair) != 2 {
		return types.Signal{}, false
	}
	allow, _ := pair[0].(bool)
	reason, _ := pair[1].(string)
	if allow {
		return types.Signal{}, false
	}
	if reason == "" {
		reason = "denied"
	}

	return types.Signal{
		Source:   types.SourcePolicy,
		Decision: types.DecisionDeny,
		Label:    reason,
		Score:    1.0,
		Decisive: true,
	}, true
}
