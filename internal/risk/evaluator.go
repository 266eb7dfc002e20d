// Package risk computes a calibrated risk probability for a login event,
// either via a weighted heuristic or a loaded model artifact, with
// per-feature attribution and tie-break rules fixed by feature-vector
// order.
package risk

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"sentrydesk/internal/types"
)

// Evaluator is the risk evaluator named in the agent router's phase 1
// fan-out. It is stateless across requests: every call only needs the
// InputContext and the artifact loaded at construction.
type Evaluator struct {
	logger   *zap.Logger
	artifact *Artifact // nil when no model artifact is configured
	breaker  *gobreaker.CircuitBreaker

	fallbackToHeuristic bool
}

// Config configures the risk evaluator.
type Config struct {
	Logger *zap.Logger
	// Artifact is the loaded model artifact. If nil, the evaluator
	// always takes the heuristic path.
	Artifact *Artifact
	// FallbackToHeuristic controls behavior when the model path
	// fails or the breaker is open: true runs the heuristic path,
	// false fails phase 1 for this evaluator.
	FallbackToHeuristic bool
}

// New constructs a risk evaluator. A circuit breaker wraps the model
// path and opens after three consecutive failures; when it reports an
// error, Evaluate runs the heuristic path if FallbackToHeuristic is set
// and returns the error otherwise. The breaker does not bound how long a
// single model call may run.
func New(cfg Config) *Evaluator {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "risk-model",
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})

	return &Evaluator{
		logger:              cfg.Logger,
		artifact:            cfg.Artifact,
		breaker:             breaker,
		fallbackToHeuristic: cfg.FallbackToHeuristic,
	}
}

// Evaluate scores a single login event. It observes only the fields of
// InputContext the risk model needs, per the router's isolation
// invariant.
func (e *Evaluator) Evaluate(ctx context.Context, input types.InputContext) (types.RiskEvaluation, error) {
	features := ExtractFeatures(input)

	if e.artifact == nil {
		score, tags := heuristicScore(features)
		return types.RiskEvaluation{RiskScore: score, RiskFactors: tags, ModelBacked: false}, nil
	}

	result, err := e.breaker.Execute(func() (any, error) {
		score, tags := e.artifact.predict(features)
		return riskOutcome{score: score, tags: tags}, nil
	})
	if err != nil {
		if !e.fallbackToHeuristic {
			return types.RiskEvaluation{}, err
		}
		e.logger.Warn("risk model path unavailable, falling back to heuristic",
			zap.Error(err))
		score, tags := heuristicScore(features)
		return types.RiskEvaluation{RiskScore: score, RiskFactors: tags, ModelBacked: false}, nil
	}

	outcome := result.(riskOutcome)
	return types.RiskEvaluation{RiskScore: outcome.score, RiskFactors: outcome.tags, ModelBacked: true}, nil
}

type riskOutcome struct {
	score float64
	tags  []string
}
