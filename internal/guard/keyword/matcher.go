// Package keyword implements the deterministic lexical stage of the
// guardrail pipeline. It is the cheapest check and runs first: a deny-list
// hit rejects the prompt before any model is invoked, an allow-list hit
// approves it without semantic scoring.
package keyword

import (
	"regexp"
	"strings"

	"github.com/af-corp/foodguard-gateway/internal/types"
)

// Matcher scans normalized text against compiled deny and allow term sets.
// Matching is case-insensitive and word-boundary aware: "ham" inside "shame"
// must not match.
type Matcher struct {
	deny  *regexp.Regexp
	allow *regexp.Regexp
}

func NewMatcher(denyTerms, allowTerms []string) *Matcher {
	return &Matcher{
		deny:  compileList(denyTerms),
		allow: compileList(allowTerms),
	}
}

// NewDefaultMatcher builds a matcher over the built-in term sets.
func NewDefaultMatcher() *Matcher {
	return NewMatcher(DenyTerms(), AllowTerms())
}

func compileList(terms []string) *regexp.Regexp {
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = regexp.QuoteMeta(strings.ToLower(t))
	}
	return regexp.MustCompile(`(?i)\b(` + strings.Join(quoted, "|") + `)\b`)
}

// normalize lower-cases and collapses whitespace.
func normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// Match checks text against the deny list first, then the allow list.
// A deny hit returns a decisive deny signal, an allow hit a decisive allow.
// If neither list matches, ok is false and the caller must escalate to
// semantic scoring.
func (m *Matcher) Match(text string) (types.Signal, bool) {
	if sig, ok := m.MatchDeny(text); ok {
		return sig, true
	}
	return m.MatchAllow(text)
}

// MatchDeny scans only the deny list.
func (m *Matcher) MatchDeny(text string) (types.Signal, bool) {
	term := m.deny.FindString(normalize(text))
	if term == "" {
		return types.Signal{}, false
	}
	return types.Signal{
		Source:   types.SourceKeyword,
		Decision: types.DecisionDeny,
		Label:    term,
		Score:    1.0,
		Decisive: true,
	}, true
}

// MatchAllow scans only the allow list.
func (m *Matcher) MatchAllow(text string) (types.Signal, bool) {
	term := m.allow.FindString(normalize(text))
	if term == "" {
		return types.Signal{}, false
	}
	return types.Signal{
		Source:   types.SourceKeyword,
		Decision: types.DecisionAllow,
		Label:    term,
		Score:    1.0,
		Decisive: true,
	}, true
}
