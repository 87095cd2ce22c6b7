package types

import "time"

type Decision string

const (
	DecisionAllow Decision = "allow"
	DecisionDeny  Decision = "deny"
)

// SignalSource identifies the pipeline stage that produced a Signal.
type SignalSource string

const (
	SourceKeyword       SignalSource = "keyword"
	SourceInjection     SignalSource = "injection"
	SourceTextSemantic  SignalSource = "text_semantic"
	SourceImageSemantic SignalSource = "image_semantic"
	SourceNSFW          SignalSource = "nsfw"
	SourcePolicy        SignalSource = "policy"
)

// Signal is one stage's contribution to the final verdict. A decisive signal
// is confident enough to settle the request without running later stages.
type Signal struct {
	Source   SignalSource `json:"source"`
	Decision Decision     `json:"decision"`
	Label    string       `json:"label"`
	Score    float64      `json:"score"`
	Decisive bool         `json:"decisive"`
}

// Verdict is the terminal artifact of one pipeline run. It carries every
// signal produced, in stage order, for auditability.
type Verdict struct {
	Decision Decision      `json:"decision"`
	Reason   string        `json:"reason"`
	Signals  []Signal      `json:"signals"`
	Latency  time.Duration `json:"latency_ns"`
}

// Allowed reports whether the request may be forwarded to the generation
// provider.
func (v *Verdict) Allowed() bool {
	return v.Decision == DecisionAllow
}
