package decisionflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"sentrydesk/internal/audit"
	"sentrydesk/internal/calibrator"
	"sentrydesk/internal/explain"
	"sentrydesk/internal/policy"
	"sentrydesk/internal/router"
	"sentrydesk/internal/types"
)

type fakeRisk struct {
	out types.RiskEvaluation
	err error
}

func (f fakeRisk) Evaluate(ctx context.Context, in types.InputContext) (types.RiskEvaluation, error) {
	return f.out, f.err
}

type fakeBehavior struct{ out types.BehaviorEvaluation }

func (f fakeBehavior) Evaluate(ctx context.Context, in types.InputContext) (types.BehaviorEvaluation, error) {
	return f.out, nil
}

type fakeNetwork struct{ out types.NetworkEvaluation }

func (f fakeNetwork) Evaluate(ctx context.Context, in types.InputContext) (types.NetworkEvaluation, error) {
	return f.out, nil
}

func newTestFlow(t *testing.T, risk router.RiskEvaluator, behavior router.BehaviorEvaluator, network router.NetworkEvaluator, doc *policy.Document) (*Flow, *audit.InMemoryStore) {
	t.Helper()
	r := router.New(router.Config{
		Risk:             risk,
		Behavior:         behavior,
		Network:          network,
		Calib:            calibrator.New(),
		Explain:          explain.New(),
		EvaluatorTimeout: time.Second,
		Logger:           zap.NewNop(),
	})

	store := audit.NewInMemoryStore()
	svc := audit.NewService(store, audit.WriterConfig{
		QueueCapacity: 16,
		SubmitTimeout: time.Second,
		DrainDeadline: time.Second,
		Logger:        zap.NewNop(),
	})

	eng := policy.New(doc, nil)

	return New(Config{
		Router: r,
		Policy: eng,
		Audit:  svc,
		Logger: zap.NewNop(),
	}), store
}

func cleanInput() types.InputContext {
	return types.InputContext{
		Session: types.Session{SessionID: "sess-1"},
		User:    types.User{UserID: "user-1"},
	}
}

func TestEvaluateUnanimousLowRiskApproves(t *testing.T) {
	flow, store := newTestFlow(t,
		fakeRisk{out: types.RiskEvaluation{RiskScore: 0.05}},
		fakeBehavior{out: types.BehaviorEvaluation{MatchScore: 0.97}},
		fakeNetwork{out: types.NetworkEvaluation{NetworkRisk: 0.02}},
		policy.DefaultDocument(),
	)

	out, err := flow.Evaluate(context.Background(), cleanInput())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if out.Response.Decision != types.DecisionAllow {
		t.Fatalf("decision = %v, want ALLOW for a unanimous low-risk login", out.Response.Decision)
	}
	if out.Response.EscalationFlag {
		t.Fatal("escalation flag set on a clean approve")
	}
	if out.Escalation != nil {
		t.Fatal("escalation case populated on a clean approve")
	}
	if out.Response.AuditID == "" {
		t.Fatal("audit id is empty")
	}

	entries, err := store.ReadAll(context.Background(), time.Now().UTC().Format("2006-01-02"))
	if err != nil {
		t.Fatalf("read partition: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("audit entries = %d, want 1", len(entries))
	}
	if entries[0].EventType != types.EventDecision {
		t.Fatalf("event type = %v, want DECISION", entries[0].EventType)
	}
}

func TestEvaluateAgentFailureEscalatesWithAgentFailureReason(t *testing.T) {
	flow, _ := newTestFlow(t,
		fakeRisk{err: errors.New("risk evaluator down")},
		fakeBehavior{out: types.BehaviorEvaluation{MatchScore: 0.9}},
		fakeNetwork{out: types.NetworkEvaluation{NetworkRisk: 0.1}},
		policy.DefaultDocument(),
	)

	out, err := flow.Evaluate(context.Background(), cleanInput())
	if err != nil {
		t.Fatalf("evaluate returned an error to the caller: %v", err)
	}
	if out.Response.Decision != types.DecisionEscalate {
		t.Fatalf("decision = %v, want ESCALATE on agent failure", out.Response.Decision)
	}
	if out.Escalation == nil {
		t.Fatal("escalation case missing")
	}
	if out.Escalation.Reason != types.ReasonAgentFailure {
		t.Fatalf("reason = %v, want AGENT_FAILURE", out.Escalation.Reason)
	}
	if !out.Response.EscalationFlag {
		t.Fatal("escalation flag not set")
	}
	if out.Response.Confidence != 0.0 {
		t.Fatalf("confidence = %v, want 0.0 on agent failure (spec §8 scenario 5)", out.Response.Confidence)
	}
}

func TestEvaluateHighDisagreementEscalatesWithHighDisagreementReason(t *testing.T) {
	// Risk near 0, behavior near 1, network near 0: maximal dispersion across
	// the three evaluators, forcing HUMAN_REQUIRED out of the calibrator.
	flow, _ := newTestFlow(t,
		fakeRisk{out: types.RiskEvaluation{RiskScore: 0.02}},
		fakeBehavior{out: types.BehaviorEvaluation{MatchScore: 0.02}}, // anomaly score near 1
		fakeNetwork{out: types.NetworkEvaluation{NetworkRisk: 0.02}},
		policy.DefaultDocument(),
	)

	out, err := flow.Evaluate(context.Background(), cleanInput())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if out.Response.Decision != types.DecisionEscalate {
		t.Fatalf("decision = %v, want ESCALATE on high disagreement", out.Response.Decision)
	}
	if out.Escalation == nil || out.Escalation.Reason != types.ReasonHighDisagreement {
		t.Fatalf("escalation = %+v, want reason HIGH_DISAGREEMENT", out.Escalation)
	}
}

func TestEvaluatePolicyOverrideEscalatesEvenWhenCalibratorApproves(t *testing.T) {
	doc := policy.DefaultDocument()
	doc.RiskThresholds.CriticalRiskThreshold = 0.20 // force rule 5 to fire on a low-ish risk score

	flow, _ := newTestFlow(t,
		fakeRisk{out: types.RiskEvaluation{RiskScore: 0.25}},
		fakeBehavior{out: types.BehaviorEvaluation{MatchScore: 0.95}},
		fakeNetwork{out: types.NetworkEvaluation{NetworkRisk: 0.05}},
		doc,
	)

	out, err := flow.Evaluate(context.Background(), cleanInput())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if out.Response.Decision != types.DecisionEscalate {
		t.Fatalf("decision = %v, want ESCALATE on policy override", out.Response.Decision)
	}
	if out.Escalation == nil || out.Escalation.Reason != types.ReasonPolicyOverride {
		t.Fatalf("escalation = %+v, want reason POLICY_OVERRIDE", out.Escalation)
	}
}

func TestEvaluateRecordsEscalationEntryWithCaseMetadata(t *testing.T) {
	flow, store := newTestFlow(t,
		fakeRisk{err: errors.New("risk evaluator down")},
		fakeBehavior{out: types.BehaviorEvaluation{MatchScore: 0.9}},
		fakeNetwork{out: types.NetworkEvaluation{NetworkRisk: 0.1}},
		policy.DefaultDocument(),
	)

	out, err := flow.Evaluate(context.Background(), cleanInput())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	entries, err := store.ReadAll(context.Background(), time.Now().UTC().Format("2006-01-02"))
	if err != nil {
		t.Fatalf("read partition: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("audit entries = %d, want 1", len(entries))
	}
	if entries[0].EventType != types.EventEscalation {
		t.Fatalf("event type = %v, want ESCALATION", entries[0].EventType)
	}
	if entries[0].Metadata["escalation_case_id"] != out.Escalation.CaseID {
		t.Fatalf("metadata escalation_case_id = %v, want %v", entries[0].Metadata["escalation_case_id"], out.Escalation.CaseID)
	}
}
