// Package explain builds the human-readable explanation attached to
// every decision and derives the proposed action the decision flow
// hands to the policy engine. It runs as phase 3 of the agent router,
// after the calibrator has produced its verdict, and observes all
// three evaluator outputs plus that verdict -- nothing else.
package explain

import (
	"fmt"
	"strings"

	"sentrydesk/internal/types"
)

const (
	lowRiskMax      = 0.30
	mediumRiskMax   = 0.60
	criticalRiskMax = 0.85
)

// Builder derives a recommended action and an explanation string from
// the three evaluator outputs and the calibrator's verdict.
type Builder struct{}

// New constructs an explanation builder.
func New() *Builder {
	return &Builder{}
}

// Result is the explanation builder's output: the text surfaced to
// callers and the action recommendation decision flow maps into the
// policy engine's proposed_action.
type Result struct {
	Text   string
	Action types.Decision
}

// Build composes the explanation text and recommends an action. The
// recommendation is always one of the four enumerated actions --
// derived from the highest of the risk score, the behavioral anomaly
// score and the network risk -- never a free-form value, so the
// "unknown defaults to CHALLENGE" rule in spec §4.7 only ever fires
// defensively.
func (b *Builder) Build(risk types.RiskEvaluation, behavior types.BehaviorEvaluation, net types.NetworkEvaluation, verdict types.ConfidenceVerdict) Result {
	score := maxEvidence(risk, behavior, net)

	action := recommendAction(score)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Evaluated login with risk=%.2f, behavioral match=%.2f, network risk=%.2f, disagreement=%.2f.",
		risk.RiskScore, behavior.MatchScore, net.NetworkRisk, verdict.Disagreement)

	if len(risk.RiskFactors) > 0 {
		sb.WriteString(" Risk factors: " + strings.Join(risk.RiskFactors, ", ") + ".")
	}
	if len(behavior.Deviations) > 0 {
		sb.WriteString(" Behavioral deviations: " + strings.Join(behavior.Deviations, ", ") + ".")
	}
	if len(net.Evidence) > 0 {
		sb.WriteString(" Network evidence: " + strings.Join(net.Evidence, ", ") + ".")
	}
	if len(risk.RiskFactors) == 0 && len(behavior.Deviations) == 0 && len(net.Evidence) == 0 {
		sb.WriteString(" No adverse signals observed.")
	}

	fmt.Fprintf(&sb, " Calibrated confidence %.2f (%s).", verdict.FinalConfidence, verdict.Permission)

	return Result{Text: sb.String(), Action: action}
}

// recommendAction maps an evidence score to a proposed action using the
// same low/medium/critical ramp the policy engine falls back to in
// spec §4.6, so the two recommendations agree in the common case and
// the policy engine's own thresholds (which may differ per org) are
// free to override it.
func recommendAction(score float64) types.Decision {
	switch {
	case score <= lowRiskMax:
		return types.DecisionAllow
	case score <= mediumRiskMax:
		return types.DecisionChallenge
	case score < criticalRiskMax:
		return types.DecisionBlock
	default:
		return types.DecisionEscalate
	}
}

func maxEvidence(risk types.RiskEvaluation, behavior types.BehaviorEvaluation, net types.NetworkEvaluation) float64 {
	scores := []float64{risk.RiskScore, behavior.AnomalyScore(), net.NetworkRisk}
	max := scores[0]
	for _, s := range scores[1:] {
		if s > max {
			max = s
		}
	}
	return max
}

// NormalizeAction maps any external string (e.g. restored from a stale
// record) onto the four-action enum, defaulting unrecognized values to
// CHALLENGE per spec §4.7.
func NormalizeAction(s string) types.Decision {
	switch types.Decision(s) {
	case types.DecisionAllow, types.DecisionChallenge, types.DecisionBlock, types.DecisionEscalate:
		return types.Decision(s)
	default:
		return types.DecisionChallenge
	}
}
