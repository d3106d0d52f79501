// Package strategy selects the model for the next agent session, per
// spec.md §4.8.
package strategy

import (
	"fmt"
	"regexp"
	"strings"
)

// Kind names a model-selection strategy.
type Kind string

// Strategy kinds.
const (
	Fixed            Kind = "fixed"
	CostOptimized    Kind = "cost_optimized"
	Escalate         Kind = "escalate"
	PlanThenExecute  Kind = "plan_then_execute"
)

// Model names, matching sigils.Model* for parity at the boundary.
const (
	ModelOpus   = "opus"
	ModelSonnet = "sonnet"
	ModelHaiku  = "haiku"
)

var validModels = map[string]bool{ModelOpus: true, ModelSonnet: true, ModelHaiku: true}

// escalationOrder is the tier sequence for the escalate strategy, lowest
// first; advancing never regresses below the high-water mark.
var escalationOrder = []string{ModelHaiku, ModelSonnet, ModelOpus}

var distressTokens = []string{"error", "failure", "failed", "stuck", "cannot", "unable", "panic", "crash", "broken", "regression"}

// Input carries everything SelectModel needs for one decision.
type Input struct {
	Iteration      int
	StoredKind     Kind
	ConfiguredModel string // used by Fixed
	AgentHint      string  // value of a <next-model> sigil, if any
	LastIterationFailed bool
	HighWaterMark  string // highest tier reached so far, for Escalate
	RecentJournalText string // concatenated recent notes, for CostOptimized
}

// Decision is the selected model plus whether an override was rejected
// (Fixed strategy only).
type Decision struct {
	Model            string
	OverrideRejected bool
}

var wordBoundary = func(token string) *regexp.Regexp {
	return regexp.MustCompile(`\b` + regexp.QuoteMeta(token) + `\b`)
}

// SelectModel implements spec.md §4.8's model-selection rules, including
// the agent-override precedence and the per-strategy heuristics.
func SelectModel(in Input) (Decision, error) {
	hint := strings.ToLower(strings.TrimSpace(in.AgentHint))
	hasValidHint := validModels[hint]

	if in.StoredKind == Fixed {
		if in.ConfiguredModel == "" {
			return Decision{}, fmt.Errorf("fixed strategy requires a configured model")
		}
		return Decision{Model: in.ConfiguredModel, OverrideRejected: hasValidHint}, nil
	}

	if hasValidHint {
		return Decision{Model: hint}, nil
	}

	switch in.StoredKind {
	case CostOptimized:
		return Decision{Model: selectCostOptimized(in.RecentJournalText)}, nil
	case Escalate:
		return Decision{Model: selectEscalate(in.HighWaterMark, in.LastIterationFailed)}, nil
	case PlanThenExecute:
		if in.Iteration <= 1 {
			return Decision{Model: ModelOpus}, nil
		}
		return Decision{Model: ModelSonnet}, nil
	default:
		return Decision{}, fmt.Errorf("unknown strategy kind: %s", in.StoredKind)
	}
}

func selectCostOptimized(recentText string) string {
	lower := strings.ToLower(recentText)
	for _, tok := range distressTokens {
		if wordBoundary(tok).MatchString(lower) {
			return ModelOpus
		}
	}
	count := strings.Count(lower, "✓")
	for _, tok := range []string{"done", "completed"} {
		count += len(wordBoundary(tok).FindAllString(lower, -1))
	}
	if count >= 3 {
		return ModelHaiku
	}
	return ModelSonnet
}

func selectEscalate(highWaterMark string, lastFailed bool) string {
	idx := tierIndex(highWaterMark)
	if idx < 0 {
		idx = 0
	}
	if lastFailed && idx < len(escalationOrder)-1 {
		idx++
	}
	return escalationOrder[idx]
}

func tierIndex(model string) int {
	for i, m := range escalationOrder {
		if m == model {
			return i
		}
	}
	return -1
}
