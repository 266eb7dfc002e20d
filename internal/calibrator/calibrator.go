// Package calibrator adjusts the raw confidence derived from the three
// phase-1 evaluators for overconfidence, disagreement, and missing
// evidence, then gates whether the system is allowed to decide
// automatically. Every arithmetic step follows the exact operation
// order of spec §4.5 so two implementations produce bit-identical
// output on identical input.
package calibrator

import "sentrydesk/internal/types"

const (
	overconfidenceThreshold = 0.92
	overconfidencePenalty   = 0.4

	strongAgreement      = 0.15
	disagreementWarning  = 0.25
	disagreementCritical = 0.40

	missingRiskFactorsPenalty   = 0.08
	missingNetworkEvidencePenalty = 0.05
	weakBehavioralMatchPenalty  = 0.06

	escalationNudgeThreshold = 0.65
	escalationNudgeRate      = 0.15

	permissionConfidenceFloor   = 0.75
	permissionDisagreementCeil  = 0.30
)

// Calibrator implements the confidence-calibrator component.
type Calibrator struct {
	metrics *EscalationMetrics
}

// New constructs a calibrator with a fresh drift/recalibration monitor.
func New() *Calibrator {
	return &Calibrator{metrics: NewEscalationMetrics(100)}
}

// Calibrate runs the five-step pipeline over the three phase-1 outputs
// and returns the resulting verdict. The raw confidence is the
// maximum-evidence score among the three evaluators, per spec §4.5.
func (c *Calibrator) Calibrate(risk types.RiskEvaluation, behavior types.BehaviorEvaluation, net types.NetworkEvaluation) types.ConfidenceVerdict {
	raw := maxEvidenceScore(risk, behavior, net)
	disagreement := computeDisagreement(risk, behavior, net)
	riskDominant := maxRiskScore(risk, behavior, net) > 0.5

	calibrated := raw

	// Step 1: overconfidence penalty.
	var overconfidencePenaltyApplied float64
	if raw > overconfidenceThreshold {
		base := (raw - overconfidenceThreshold) * overconfidencePenalty
		if disagreement > strongAgreement {
			overconfidencePenaltyApplied = base * (1 + disagreement)
		} else {
			overconfidencePenaltyApplied = base * 0.30
		}
		calibrated -= overconfidencePenaltyApplied
	}

	// Step 2: disagreement penalty or agreement boost.
	var disagreementPenalty, agreementBoost float64
	switch {
	case disagreement >= disagreementCritical:
		disagreementPenalty = 0.20 + (disagreement-disagreementCritical)*0.4
		calibrated -= disagreementPenalty
	case disagreement >= disagreementWarning:
		disagreementPenalty = (disagreement - disagreementWarning) * 0.4
		calibrated -= disagreementPenalty
	case disagreement < strongAgreement:
		agreementBoost = 0.05
		calibrated += agreementBoost
	}

	// Step 3: evidence penalty.
	var evidencePenalty float64
	if riskDominant && len(risk.RiskFactors) == 0 {
		evidencePenalty += missingRiskFactorsPenalty
	}
	if len(net.Evidence) == 0 && disagreement >= disagreementWarning {
		evidencePenalty += missingNetworkEvidencePenalty
	}
	if behavior.MatchScore < 0.5 && raw > 0.7 && disagreement >= strongAgreement {
		evidencePenalty += weakBehavioralMatchPenalty
	}
	if disagreement < strongAgreement {
		evidencePenalty *= 0.5
	}
	calibrated -= evidencePenalty

	// Step 4: escalation nudge.
	var escalationNudge float64
	if calibrated < escalationNudgeThreshold && disagreement >= disagreementWarning {
		escalationNudge = (escalationNudgeThreshold - calibrated) * escalationNudgeRate
		calibrated -= escalationNudge
	}

	calibrated = clamp01(calibrated)

	permission := types.PermissionAIAllowed
	if calibrated < permissionConfidenceFloor || disagreement > permissionDisagreementCeil {
		permission = types.PermissionHumanRequired
	}

	c.metrics.Record(permission == types.PermissionHumanRequired)

	var reason *types.EscalationReason
	if permission == types.PermissionHumanRequired {
		r := types.ReasonLowConfidence
		if disagreement > permissionDisagreementCeil {
			r = types.ReasonHighDisagreement
		}
		reason = &r
	}

	return types.ConfidenceVerdict{
		FinalConfidence: calibrated,
		Permission:      permission,
		Disagreement:    disagreement,
		CalibrationBreakdown: types.CalibrationBreakdown{
			Raw:                   raw,
			OverconfidencePenalty: overconfidencePenaltyApplied,
			DisagreementPenalty:   disagreementPenalty,
			AgreementBoost:        agreementBoost,
			EvidencePenalty:       evidencePenalty,
			EscalationNudge:       escalationNudge,
			Final:                 calibrated,
		},
		EscalationReason: reason,
	}
}

// Metrics exposes the drift/recalibration monitor for observability.
func (c *Calibrator) Metrics() *EscalationMetrics {
	return c.metrics
}

// maxEvidenceScore is the raw confidence the calibration pipeline starts
// from: the single strongest piece of evidence among the three
// evaluators that this login is NOT ambiguous, whichever direction it
// points. A score far from the uncertain midpoint (near 0, clearly
// safe, or near 1, clearly risky) is strong evidence either way; a
// score near 0.5 is genuinely uncertain regardless of decision. This is
// why three unanimous low-risk evaluators (spec §8 scenario 4) still
// yield high starting confidence -- agreement on "clearly safe" is as
// decisive as agreement on "clearly risky".
func maxEvidenceScore(risk types.RiskEvaluation, behavior types.BehaviorEvaluation, net types.NetworkEvaluation) float64 {
	scores := []float64{risk.RiskScore, behavior.AnomalyScore(), net.NetworkRisk}
	var max float64
	for _, s := range scores {
		evidence := s
		if 1-s > evidence {
			evidence = 1 - s
		}
		if evidence > max {
			max = evidence
		}
	}
	return max
}

// maxRiskScore is the plain maximum of the three risk-oriented scores,
// with no "strongest evidence either direction" transform applied. It
// answers a different question than maxEvidenceScore: did the
// evaluators actually point toward danger, as opposed to merely being
// confident (possibly confident of safety)? Step 3 uses this to decide
// whether missing risk factors is a real inconsistency (high risk
// score, no factors backing it up) rather than the expected absence of
// factors on a low-risk, high-confidence-of-safety login.
func maxRiskScore(risk types.RiskEvaluation, behavior types.BehaviorEvaluation, net types.NetworkEvaluation) float64 {
	scores := []float64{risk.RiskScore, behavior.AnomalyScore(), net.NetworkRisk}
	max := scores[0]
	for _, s := range scores[1:] {
		if s > max {
			max = s
		}
	}
	return max
}

// computeDisagreement measures dispersion among the three evaluators'
// risk-oriented scores as the spread between the maximum and minimum.
func computeDisagreement(risk types.RiskEvaluation, behavior types.BehaviorEvaluation, net types.NetworkEvaluation) float64 {
	scores := []float64{risk.RiskScore, behavior.AnomalyScore(), net.NetworkRisk}
	min, max := scores[0], scores[0]
	for _, s := range scores[1:] {
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
	}
	return max - min
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
