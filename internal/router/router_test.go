package router

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"sentrydesk/internal/calibrator"
	"sentrydesk/internal/explain"
	"sentrydesk/internal/types"
)

type fakeRisk struct {
	out   types.RiskEvaluation
	err   error
	delay time.Duration
}

func (f fakeRisk) Evaluate(ctx context.Context, in types.InputContext) (types.RiskEvaluation, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return types.RiskEvaluation{}, ctx.Err()
		}
	}
	return f.out, f.err
}

type fakeBehavior struct {
	out types.BehaviorEvaluation
	err error
}

func (f fakeBehavior) Evaluate(ctx context.Context, in types.InputContext) (types.BehaviorEvaluation, error) {
	return f.out, f.err
}

type fakeNetwork struct {
	out types.NetworkEvaluation
	err error
}

func (f fakeNetwork) Evaluate(ctx context.Context, in types.InputContext) (types.NetworkEvaluation, error) {
	return f.out, f.err
}

func newTestRouter(risk RiskEvaluator, behavior BehaviorEvaluator, network NetworkEvaluator, timeout time.Duration) *Router {
	return New(Config{
		Risk:             risk,
		Behavior:         behavior,
		Network:          network,
		Calib:            calibrator.New(),
		Explain:          explain.New(),
		EvaluatorTimeout: timeout,
		Logger:           zap.NewNop(),
	})
}

func cleanInput() types.InputContext {
	return types.InputContext{
		Session: types.Session{SessionID: "sess-1"},
		User:    types.User{UserID: "user-1"},
	}
}

func TestRouteHappyPathRunsAllThreePhases(t *testing.T) {
	r := newTestRouter(
		fakeRisk{out: types.RiskEvaluation{RiskScore: 0.1}},
		fakeBehavior{out: types.BehaviorEvaluation{MatchScore: 0.95}},
		fakeNetwork{out: types.NetworkEvaluation{NetworkRisk: 0.05}},
		time.Second,
	)

	result, err := r.Route(context.Background(), "req-1", cleanInput())
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if len(result.Phase1.Failures()) != 0 {
		t.Fatalf("failures = %v, want none", result.Phase1.Failures())
	}
	if result.Explanation == "" {
		t.Fatal("explanation text is empty")
	}
	if result.RecommendedAction == "" {
		t.Fatal("recommended action is empty")
	}
}

func TestRouteEvaluatorFailureDoesNotCancelOthers(t *testing.T) {
	r := newTestRouter(
		fakeRisk{err: errors.New("risk provider unavailable")},
		fakeBehavior{out: types.BehaviorEvaluation{MatchScore: 0.9}},
		fakeNetwork{out: types.NetworkEvaluation{NetworkRisk: 0.1}},
		time.Second,
	)

	result, err := r.Route(context.Background(), "req-2", cleanInput())
	if err == nil {
		t.Fatal("route succeeded despite a phase-1 evaluator failure")
	}
	fs := result.Phase1.Failures()
	if len(fs) != 1 || fs[0].Evaluator != EvaluatorRisk {
		t.Fatalf("failures = %v, want exactly one from the risk evaluator", fs)
	}
	// Behavior and network still populated their slots even though risk failed.
	if result.Phase1.Behavior.MatchScore != 0.9 {
		t.Fatalf("behavior result = %+v, want preserved despite risk's failure", result.Phase1.Behavior)
	}
}

func TestRouteFailuresOrderedByFixedRoleNotArrivalOrder(t *testing.T) {
	r := newTestRouter(
		fakeRisk{err: errors.New("risk failed")},
		fakeBehavior{err: errors.New("behavior failed")},
		fakeNetwork{err: errors.New("network failed")},
		time.Second,
	)

	result, err := r.Route(context.Background(), "req-3", cleanInput())
	if err == nil {
		t.Fatal("route succeeded despite three phase-1 failures")
	}
	fs := result.Phase1.Failures()
	if len(fs) != 3 {
		t.Fatalf("failures = %v, want three", fs)
	}
	wantOrder := []EvaluatorName{EvaluatorRisk, EvaluatorBehavior, EvaluatorNetwork}
	for i, w := range wantOrder {
		if fs[i].Evaluator != w {
			t.Fatalf("failures[%d].Evaluator = %v, want %v", i, fs[i].Evaluator, w)
		}
	}
}

func TestRouteTimesOutWhenEvaluatorOutlastsCallerDeadline(t *testing.T) {
	r := newTestRouter(
		fakeRisk{out: types.RiskEvaluation{RiskScore: 0.1}, delay: 200 * time.Millisecond},
		fakeBehavior{out: types.BehaviorEvaluation{MatchScore: 0.9}},
		fakeNetwork{out: types.NetworkEvaluation{NetworkRisk: 0.1}},
		time.Second, // evaluator timeout is generous; the caller's deadline is what fires
	)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := r.Route(ctx, "req-4", cleanInput())
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("route err = %v, want ErrTimeout", err)
	}
}

func TestRoutePerEvaluatorTimeoutSurfacesAsFailure(t *testing.T) {
	r := newTestRouter(
		fakeRisk{out: types.RiskEvaluation{RiskScore: 0.1}, delay: 200 * time.Millisecond},
		fakeBehavior{out: types.BehaviorEvaluation{MatchScore: 0.9}},
		fakeNetwork{out: types.NetworkEvaluation{NetworkRisk: 0.1}},
		10*time.Millisecond, // per-evaluator timeout fires before the risk fake's delay elapses
	)

	result, err := r.Route(context.Background(), "req-5", cleanInput())
	if err == nil {
		t.Fatal("route succeeded despite the risk evaluator's own timeout expiring")
	}
	fs := result.Phase1.Failures()
	if len(fs) != 1 || fs[0].Evaluator != EvaluatorRisk {
		t.Fatalf("failures = %v, want exactly one from the risk evaluator", fs)
	}
}
