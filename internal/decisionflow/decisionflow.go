// Package decisionflow composes the agent router, confidence
// calibrator (via the router), policy engine, and audit ledger into
// the single decision recorded for one login event, per spec §4.7.
package decisionflow

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sentrydesk/internal/audit"
	"sentrydesk/internal/metrics"
	"sentrydesk/internal/policy"
	"sentrydesk/internal/router"
	"sentrydesk/internal/types"
)

// Flow wires the agent router, policy engine, and audit ledger into
// the evaluate-login operation.
type Flow struct {
	router *router.Router
	policy *policy.Engine
	audit  *audit.Service
	logger *zap.Logger
	rec    metrics.Recorder
}

// Config wires Flow's collaborators.
type Config struct {
	Router  *router.Router
	Policy  *policy.Engine
	Audit   *audit.Service
	Logger  *zap.Logger
	Metrics metrics.Recorder
}

// New constructs a Flow.
func New(cfg Config) *Flow {
	rec := cfg.Metrics
	if rec == nil {
		rec = metrics.Noop{}
	}
	return &Flow{router: cfg.Router, policy: cfg.Policy, audit: cfg.Audit, logger: cfg.Logger, rec: rec}
}

// Outcome bundles the external response with the internal escalation
// case (nil unless the decision is ESCALATE), for callers that hand
// escalations off to a human-review system.
type Outcome struct {
	Response   types.EvaluateLoginResponse
	Escalation *types.EscalationCase
}

// Evaluate runs the full algorithm of spec §4.7 for one input context.
func (f *Flow) Evaluate(ctx context.Context, input types.InputContext) (Outcome, error) {
	requestID := uuid.New().String()
	decisionID := uuid.New().String()
	now := time.Now().UTC()
	logger := f.logger.With(zap.String("request_id", requestID), zap.String("decision_id", decisionID))

	result, err := f.router.Route(ctx, requestID, input)
	if err != nil {
		logger.Warn("agent router failed, escalating", zap.Error(err))
		return f.escalate(ctx, decisionID, now, input, types.ReasonAgentFailure,
			"evaluation could not complete: "+err.Error(), nil, nil, nil, 0.0)
	}

	if result.Verdict.Permission == types.PermissionHumanRequired {
		reason := types.ReasonLowConfidence
		if result.Verdict.Disagreement > f.policy.DisagreementThreshold() {
			reason = types.ReasonHighDisagreement
		}
		return f.escalate(ctx, decisionID, now, input, reason, result.Explanation,
			result.Phase1.Risk.RiskFactors, result.Phase1.Behavior.Deviations, result.Phase1.Network.Evidence,
			result.Verdict.FinalConfidence)
	}

	verdict := f.policy.Evaluate(ctx, policy.Input{
		ProposedAction: result.RecommendedAction,
		Confidence:     result.Verdict.FinalConfidence,
		RiskScore:      result.Phase1.Risk.RiskScore,
		Disagreement:   result.Verdict.Disagreement,
		UserID:         input.User.UserID,
		SessionID:      input.Session.SessionID,
	})

	if verdict.Decision != types.PolicyApprove {
		logger.Info("policy engine overrode automated decision",
			zap.String("policy_decision", string(verdict.Decision)),
			zap.Strings("violations", verdict.Violations))
		return f.escalate(ctx, decisionID, now, input, types.ReasonPolicyOverride, result.Explanation,
			result.Phase1.Risk.RiskFactors, result.Phase1.Behavior.Deviations, result.Phase1.Network.Evidence,
			result.Verdict.FinalConfidence)
	}

	final := types.FinalDecision{
		DecisionID:   decisionID,
		Timestamp:    now,
		Action:       verdict.ApprovedAction,
		DecidedBy:    types.DecidedByAI,
		Confidence:   result.Verdict.FinalConfidence,
		Explanation:  result.Explanation,
		SessionID:    input.Session.SessionID,
		UserID:       input.User.UserID,
		RiskScore:    result.Phase1.Risk.RiskScore,
		MatchScore:   result.Phase1.Behavior.MatchScore,
		NetworkRisk:  result.Phase1.Network.NetworkRisk,
		Disagreement: result.Verdict.Disagreement,
	}

	auditID := f.recordDecision(ctx, final, result, nil)
	f.rec.IncDecision(string(final.Action), string(final.DecidedBy))

	return Outcome{Response: types.EvaluateLoginResponse{
		Decision:       final.Action,
		Confidence:     final.Confidence,
		Explanation:    final.Explanation,
		EscalationFlag: final.EscalationFlag(),
		AuditID:        auditID,
	}}, nil
}

// escalate builds the ESCALATE decision and EscalationCase common to
// every refusal-to-decide path in spec §4.7.
func (f *Flow) escalate(ctx context.Context, decisionID string, now time.Time, input types.InputContext,
	reason types.EscalationReason, explanation string, riskFactors, deviations, evidence []string, confidence float64,
) (Outcome, error) {
	final := types.FinalDecision{
		DecisionID:   decisionID,
		Timestamp:    now,
		Action:       types.DecisionEscalate,
		DecidedBy:    types.DecidedByHumanRequired,
		Confidence:   confidence,
		Explanation:  explanation,
		SessionID:    input.Session.SessionID,
		UserID:       input.User.UserID,
		Disagreement: 1,
	}

	escCase := &types.EscalationCase{
		CaseID:      uuid.New().String(),
		Reason:      reason,
		RiskFactors: riskFactors,
		Deviations:  deviations,
		Evidence:    evidence,
		CreatedAt:   now,
	}

	auditID := f.recordDecision(ctx, final, router.Result{}, escCase)
	f.rec.IncDecision(string(final.Action), string(final.DecidedBy))

	return Outcome{
		Response: types.EvaluateLoginResponse{
			Decision:       final.Action,
			Confidence:     final.Confidence,
			Explanation:    final.Explanation,
			EscalationFlag: true,
			AuditID:        auditID,
		},
		Escalation: escCase,
	}, nil
}

// recordDecision submits the DECISION or ESCALATION audit entry for
// final, attaching the evaluator outputs and policy version. Audit
// failures never propagate to the caller (spec §7); they only affect
// the returned audit ID.
func (f *Flow) recordDecision(ctx context.Context, final types.FinalDecision, result router.Result, esc *types.EscalationCase) string {
	eventType := types.EventDecision
	if final.Action == types.DecisionEscalate {
		eventType = types.EventEscalation
	}

	agentOutputs, _ := json.Marshal(struct {
		Risk     types.RiskEvaluation     `json:"risk"`
		Behavior types.BehaviorEvaluation `json:"behavior"`
		Network  types.NetworkEvaluation  `json:"network"`
	}{result.Phase1.Risk, result.Phase1.Behavior, result.Phase1.Network})

	metadata := map[string]any{}
	if esc != nil {
		metadata["escalation_case_id"] = esc.CaseID
		metadata["escalation_reason"] = esc.Reason
	}

	entry := types.AuditEntry{
		Timestamp:     final.Timestamp,
		EventType:     eventType,
		DecisionID:    final.DecisionID,
		SessionID:     final.SessionID,
		UserID:        final.UserID,
		Action:        final.Action,
		Confidence:    final.Confidence,
		DecidedBy:     final.DecidedBy,
		PolicyVersion: f.policy.Version(),
		AgentOutputs:  agentOutputs,
		Metadata:      metadata,
	}

	auditID, err := f.audit.Submit(ctx, entry)
	if err != nil {
		f.logger.Error("failed to record decision in audit ledger", zap.Error(err), zap.String("decision_id", final.DecisionID))
	}
	return auditID
}
