package behavior

import (
	"context"
	"time"

	"sentrydesk/internal/types"
)

// Evaluator is the behavior evaluator named in the agent router's phase
// 1 fan-out. Unlike the risk and network evaluators it carries state:
// a per-user behavioral profile mutated under Store's exclusive lock.
type Evaluator struct {
	cfg    Config
	store  Store
	method Method
}

// New constructs a behavior evaluator backed by store.
func New(store Store, method Method) *Evaluator {
	return &Evaluator{cfg: DefaultConfig(), store: store, method: method}
}

// Evaluate scores the current session embedding against the user's
// rolling profile. When Config.MutateOnScore is set it then folds the
// embedding into that profile so later requests see it. The read
// (scoring) happens against the pre-update centroid; the update happens
// after, both under the same per-user lock acquisition.
func (e *Evaluator) Evaluate(ctx context.Context, input types.InputContext) (types.BehaviorEvaluation, error) {
	embedding := BuildEmbedding(e.cfg, input)

	var result types.BehaviorEvaluation
	err := e.store.WithProfile(ctx, input.User.UserID, func(p *Profile) {
		anomaly := computeDistance(e.cfg, embedding, p, e.method)
		deviations := anomaly.DeviationFactors
		// The new-user path returns a single fixed tag (spec §4.3/§8); the
		// typical-hour-window signal only supplements an established baseline.
		if p.IsValid(e.cfg) && !input.User.WithinTypicalWindow(input.Session.StartTime.Hour()) {
			deviations = append(deviations, "login_outside_typical_hour_window")
		}
		result = types.BehaviorEvaluation{
			MatchScore: matchScoreFromAnomaly(e.cfg, anomaly, p),
			Deviations: deviations,
		}
		if e.cfg.MutateOnScore {
			p.Update(e.cfg, embedding, time.Now())
		}
	})
	if err != nil {
		return types.BehaviorEvaluation{}, err
	}
	return result, nil
}

// matchScoreFromAnomaly converts an anomaly score (0=normal,
// 1=anomalous) into a match score (1=matches baseline well), enforcing
// the new-user floor of spec §4.3/§8: fewer than
// min_sessions_for_profile observations always yields match_score >= 0.85.
func matchScoreFromAnomaly(cfg Config, anomaly AnomalyScore, p *Profile) float64 {
	if !p.IsValid(cfg) {
		return cfg.NewUserMatchScore
	}
	return 1 - anomaly.NormalizedScore
}
