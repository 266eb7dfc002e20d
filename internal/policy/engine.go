package policy

import (
	"context"
	"sync/atomic"
	"time"

	"sentrydesk/internal/types"
)

// Input carries everything the policy engine's rules (spec §4.6) need
// to evaluate one proposed action.
type Input struct {
	ProposedAction types.Decision // may be "" (absent); engine derives one from RiskScore
	Confidence     float64
	RiskScore      float64
	Disagreement   float64
	UserID         string
	SessionID      string
}

// Verdict is the policy engine's output.
type Verdict struct {
	Decision       types.PolicyDecision
	ApprovedAction types.Decision
	Violations     []string
	Reasons        []string
}

// Engine is the deterministic policy layer described in spec §4.6. Its
// rule document is swapped atomically on Reload; per-user sliding-window
// state is delegated to a Counters implementation, in-process by
// default (spec §5).
type Engine struct {
	doc      atomic.Pointer[Document]
	counters Counters
	now      func() time.Time
}

// New constructs a policy engine from its initial document. A nil
// counters argument uses the default in-process, striped-lock
// implementation; pass a Redis-backed Counters to share state across
// multiple decision-core processes.
func New(doc *Document, counters Counters) *Engine {
	if counters == nil {
		counters = newStripeCounters()
	}
	e := &Engine{now: time.Now, counters: counters}
	e.doc.Store(doc)
	return e
}

// Reload atomically replaces the rule document. Subsequent Evaluate
// calls and audit entries observe the new version immediately; calls
// already in flight finish against whichever document they loaded.
func (e *Engine) Reload(doc *Document) {
	e.doc.Store(doc)
}

// Version returns the currently active document's version string, for
// stamping into audit entries.
func (e *Engine) Version() string {
	return e.doc.Load().Metadata.Version
}

// DisagreementThreshold returns the currently active document's
// escalation disagreement threshold, so callers outside the engine
// (e.g. the decision flow's escalation-reason labeling) stay in sync
// with rule 4 across a Reload.
func (e *Engine) DisagreementThreshold() float64 {
	return e.doc.Load().Escalation.DisagreementThreshold
}

// Evaluate runs the ordered rule set of spec §4.6. The first rule that
// fires (veto or escalate) wins; if none fire the proposed (or
// risk-derived) action is approved.
func (e *Engine) Evaluate(ctx context.Context, in Input) Verdict {
	doc := e.doc.Load()

	action := in.ProposedAction
	if action == "" {
		action = doc.RecommendAction(in.RiskScore)
	}

	// Rule 1: action must be in the allowed set and not human-only.
	if !doc.isAllowed(action) {
		return Verdict{
			Decision:   types.PolicyEscalate,
			Violations: []string{"action_not_allowed"},
			Reasons:    []string{"proposed action is not in the configured allowed set"},
		}
	}
	if doc.isHumanOnly(action) {
		return Verdict{
			Decision:   types.PolicyEscalate,
			Violations: []string{"action_human_only"},
			Reasons:    []string{"proposed action requires a human decision-maker"},
		}
	}

	// Rule 2: confidence below the escalate floor.
	if in.Confidence < doc.Confidence.MinToEscalate {
		return Verdict{
			Decision:   types.PolicyEscalate,
			Violations: []string{"confidence_below_escalate_floor"},
			Reasons:    []string{"confidence is below the minimum required to escalate automatically"},
		}
	}

	// Rule 3: confidence below the allow floor.
	if in.Confidence < doc.Confidence.MinToAllow {
		return Verdict{
			Decision:   types.PolicyEscalate,
			Violations: []string{"confidence_below_allow_floor"},
			Reasons:    []string{"confidence is below the minimum required to act automatically"},
		}
	}

	// Rule 4: disagreement above threshold.
	if in.Disagreement > doc.Escalation.DisagreementThreshold {
		return Verdict{
			Decision:   types.PolicyEscalate,
			Violations: []string{"disagreement_above_threshold"},
			Reasons:    []string{"evaluator disagreement exceeds the configured threshold"},
		}
	}

	// Rule 5: risk at or above the critical threshold.
	if in.RiskScore >= doc.RiskThresholds.CriticalRiskThreshold {
		return Verdict{
			Decision:   types.PolicyEscalate,
			Violations: []string{"critical_risk_threshold"},
			Reasons:    []string{"risk score is at or above the critical threshold"},
		}
	}

	// Rule 6: consecutive high-risk count per user.
	isHighRisk := in.RiskScore >= doc.RiskThresholds.MediumRiskMax
	consecutive := e.counters.BumpConsecutiveHighRisk(ctx, in.UserID, isHighRisk)
	if consecutive > doc.Escalation.ConsecutiveHighRiskLimit {
		return Verdict{
			Decision:   types.PolicyEscalate,
			Violations: []string{"consecutive_high_risk_limit"},
			Reasons:    []string{"user has exceeded the consecutive high-risk login limit"},
		}
	}

	// Rule 7: per-user daily action count.
	dayKey := e.now().UTC().Format("2006-01-02")
	dayCount := e.counters.BumpDailyCount(ctx, in.UserID, dayKey)
	if dayCount > doc.Actions.MaxActionsPerUserPerDay {
		return Verdict{
			Decision:   types.PolicyVeto,
			Violations: []string{"max_actions_per_user_per_day"},
			Reasons:    []string{"user has exceeded the maximum automated actions allowed per day"},
		}
	}

	return Verdict{Decision: types.PolicyApprove, ApprovedAction: action}
}
