// Package router implements the agent router: the concurrent phase-1
// fan-out to the risk, behavior, and network evaluators, followed by
// the strictly serial phase-2 confidence calibration and phase-3
// explanation build. No evaluator ever observes another's output,
// matching the router's isolation invariant.
package router

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"sentrydesk/internal/calibrator"
	"sentrydesk/internal/explain"
	"sentrydesk/internal/types"
)

// EvaluatorName identifies one of the three fixed phase-1 roles.
type EvaluatorName string

const (
	EvaluatorRisk     EvaluatorName = "risk"
	EvaluatorBehavior EvaluatorName = "behavior"
	EvaluatorNetwork  EvaluatorName = "network"
)

// RiskEvaluator scores login risk. Only the risk evaluator package
// implements this in production; tests substitute fakes.
type RiskEvaluator interface {
	Evaluate(ctx context.Context, input types.InputContext) (types.RiskEvaluation, error)
}

// BehaviorEvaluator scores distance from the user's behavioral profile.
type BehaviorEvaluator interface {
	Evaluate(ctx context.Context, input types.InputContext) (types.BehaviorEvaluation, error)
}

// NetworkEvaluator aggregates shared-infrastructure evidence.
type NetworkEvaluator interface {
	Evaluate(ctx context.Context, input types.InputContext) (types.NetworkEvaluation, error)
}

// Failure names one evaluator that failed during phase 1.
type Failure struct {
	Evaluator EvaluatorName
	Err       error
}

// Phase1Outcome is the fixed-slot structure phase-1 results are
// collected into, keyed by evaluator identity regardless of arrival
// order.
type Phase1Outcome struct {
	Risk     types.RiskEvaluation
	Behavior types.BehaviorEvaluation
	Network  types.NetworkEvaluation

	riskErr, behaviorErr, networkErr error
	timedOut                         bool
}

// Failures lists every evaluator that failed, in fixed role order
// (risk, behavior, network) regardless of completion order.
func (o Phase1Outcome) Failures() []Failure {
	var fs []Failure
	if o.riskErr != nil {
		fs = append(fs, Failure{EvaluatorRisk, o.riskErr})
	}
	if o.behaviorErr != nil {
		fs = append(fs, Failure{EvaluatorBehavior, o.behaviorErr})
	}
	if o.networkErr != nil {
		fs = append(fs, Failure{EvaluatorNetwork, o.networkErr})
	}
	return fs
}

// TimedOut reports whether the request deadline expired before phase 1
// settled.
func (o Phase1Outcome) TimedOut() bool {
	return o.timedOut
}

// ErrTimeout is returned when the caller's deadline expires before all
// three evaluators settle.
var ErrTimeout = errors.New("router: phase 1 deadline exceeded")

// Router fans out to the three evaluators, then runs the calibrator and
// explanation builder serially.
type Router struct {
	risk     RiskEvaluator
	behavior BehaviorEvaluator
	network  NetworkEvaluator
	calib    *calibrator.Calibrator
	explain  *explain.Builder

	evaluatorTimeout time.Duration
	logger           *zap.Logger
}

// Config wires the router's collaborators.
type Config struct {
	Risk     RiskEvaluator
	Behavior BehaviorEvaluator
	Network  NetworkEvaluator
	Calib    *calibrator.Calibrator
	Explain  *explain.Builder

	EvaluatorTimeout time.Duration
	Logger           *zap.Logger
}

// New constructs a Router.
func New(cfg Config) *Router {
	return &Router{
		risk:             cfg.Risk,
		behavior:         cfg.Behavior,
		network:          cfg.Network,
		calib:            cfg.Calib,
		explain:          cfg.Explain,
		evaluatorTimeout: cfg.EvaluatorTimeout,
		logger:           cfg.Logger,
	}
}

// Result is the router's full output: the phase-1 outcome, the
// calibrator's verdict, and the built explanation.
type Result struct {
	Phase1            Phase1Outcome
	Verdict           types.ConfidenceVerdict
	Explanation       string
	RecommendedAction types.Decision
}

// Route runs the three-phase pipeline described in spec §4.1. Phase 1
// dispatches the three evaluators concurrently and waits for all three
// to settle; any one failing does not cancel the others, since their
// results still feed the audit trail. Phase 2 and 3 run serially.
func (r *Router) Route(ctx context.Context, requestID string, input types.InputContext) (Result, error) {
	outcome := r.runPhase1(ctx, requestID, input)
	if outcome.TimedOut() {
		return Result{Phase1: outcome}, ErrTimeout
	}
	if fs := outcome.Failures(); len(fs) > 0 {
		r.logger.Warn("phase 1 evaluator failure",
			zap.String("request_id", requestID),
			zap.Int("failure_count", len(fs)))
		return Result{Phase1: outcome}, agentFailureError(fs)
	}

	verdict := r.calib.Calibrate(outcome.Risk, outcome.Behavior, outcome.Network)
	explanation := r.explain.Build(outcome.Risk, outcome.Behavior, outcome.Network, verdict)

	return Result{
		Phase1:            outcome,
		Verdict:           verdict,
		Explanation:       explanation.Text,
		RecommendedAction: explanation.Action,
	}, nil
}

func (r *Router) runPhase1(ctx context.Context, requestID string, input types.InputContext) Phase1Outcome {
	var outcome Phase1Outcome

	g, gctx := errgroup.WithContext(context.Background())

	g.Go(func() error {
		evalCtx, cancel := context.WithTimeout(gctx, r.evaluatorTimeout)
		defer cancel()
		result, err := r.risk.Evaluate(evalCtx, input)
		outcome.Risk, outcome.riskErr = result, err
		return nil
	})
	g.Go(func() error {
		evalCtx, cancel := context.WithTimeout(gctx, r.evaluatorTimeout)
		defer cancel()
		result, err := r.behavior.Evaluate(evalCtx, input)
		outcome.Behavior, outcome.behaviorErr = result, err
		return nil
	})
	g.Go(func() error {
		evalCtx, cancel := context.WithTimeout(gctx, r.evaluatorTimeout)
		defer cancel()
		result, err := r.network.Evaluate(evalCtx, input)
		outcome.Network, outcome.networkErr = result, err
		return nil
	})

	done := make(chan struct{})
	go func() {
		g.Wait()
		close(done)
	}()

	select {
	case <-done:
		// All three settled (each swallows its own error into its
		// slot; g.Wait() itself never reports a non-nil error here).
	case <-ctx.Done():
		// The caller's deadline expired. The in-flight goroutines are
		// not forcibly killed -- they are allowed to complete and
		// write into their slots -- but their results are discarded.
		<-done
		outcome.timedOut = true
	}

	return outcome
}

func agentFailureError(fs []Failure) error {
	return fmt.Errorf("router: %d evaluator(s) failed, first from %s: %w", len(fs), fs[0].Evaluator, fs[0].Err)
}
