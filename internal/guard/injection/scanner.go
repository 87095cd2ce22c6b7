// Package injection scans prompts for instruction-override and jailbreak
// attempts before any model spend. It is a supplemental deny-only stage: it
// can reject a prompt but never approve one.
package injection

import (
	"strings"

	"github.com/af-corp/foodguard-gateway/internal/config"
	"github.com/af-corp/foodguard-gateway/internal/types"
)

// Detection records a matched injection pattern.
type Detection struct {
	RuleName string
	Severity float64
	Category string
	Start    int
	End      int
}

// Scanner scans text for prompt injection patterns.
type Scanner struct {
	rules []Rule
	cfg   func() config.InjectionFilterConfig
}

// NewScanner creates a prompt injection scanner.
func NewScanner(cfg func() config.InjectionFilterConfig) *Scanner {
	return &Scanner{rules: DefaultRules(), cfg: cfg}
}

func (s *Scanner) Enabled() bool { return s.cfg().Enabled }

// Scan checks a single text string and returns all detections.
func (s *Scanner) Scan(text string) []Detection {
	var detections []Detection
	for _, r := range s.rules {
		locs := r.Regex.FindAllStringIndex(text, -1)
		for _, loc := range locs {
			detections = append(detections, Detection{
				RuleName: r.Name,
				Severity: r.Severity,
				Category: r.Category,
				Start:    loc[0],
				End:      loc[1],
			})
		}
	}

	// Opaque-blob heuristic: a single very long token that is not a URL is
	// most likely an encoded payload smuggled past the pattern rules.
	offset := 0
	for _, word := range strings.Fields(text) {
		idx := strings.Index(text[offset:], word) + offset
		offset = idx + len(word)
		if len(word) > maxTokenLen && !strings.HasPrefix(word, "http") {
			detections = append(detections, Detection{
				RuleName: "opaque_blob",
				Severity: opaqueBlobSeverity,
				Category: "encoding_trick",
				Start:    idx,
				End:      idx + len(word),
			})
		}
	}
	return detections
}

// Check scans text and reports a decisive deny signal when the highest
// severity meets the configured block threshold. Below threshold there is no
// signal at all: injection never contributes an allow.
func (s *Scanner) Check(text string) (types.Signal, bool) {
	cfg := s.cfg()
	if !cfg.Enabled {
		return types.Signal{}, false
	}

	detections := s.Scan(text)
	if len(detections) == 0 {
		return types.Signal{}, false
	}

	top := detections[0]
	for _, d := range detections[1:] {
		if d.Severity > top.Severity {
			top = d
		}
	}
	if top.Severity < cfg.BlockThreshold {
		return types.Signal{}, false
	}

	return types.Signal{
		Source:   types.SourceInjection,
		Decision: types.DecisionDeny,
		Label:    top.RuleName,
		Score:    top.Severity,
		Decisive: true,
	}, true
}
