package explain

import (
	"strings"
	"testing"

	"sentrydesk/internal/types"
)

func TestBuildRecommendsAllowForLowEvidenceScore(t *testing.T) {
	b := New()
	result := b.Build(
		types.RiskEvaluation{RiskScore: 0.1},
		types.BehaviorEvaluation{MatchScore: 0.95},
		types.NetworkEvaluation{NetworkRisk: 0.05},
		types.ConfidenceVerdict{FinalConfidence: 0.9, Permission: types.PermissionAIAllowed},
	)
	if result.Action != types.DecisionAllow {
		t.Fatalf("action = %v, want ALLOW", result.Action)
	}
	if !strings.Contains(result.Text, "No adverse signals observed") {
		t.Fatalf("text = %q, want a no-signals sentence for a clean login", result.Text)
	}
}

func TestBuildRecommendsChallengeForMediumEvidenceScore(t *testing.T) {
	b := New()
	result := b.Build(
		types.RiskEvaluation{RiskScore: 0.45},
		types.BehaviorEvaluation{MatchScore: 0.8},
		types.NetworkEvaluation{NetworkRisk: 0.1},
		types.ConfidenceVerdict{FinalConfidence: 0.6, Permission: types.PermissionHumanRequired},
	)
	if result.Action != types.DecisionChallenge {
		t.Fatalf("action = %v, want CHALLENGE", result.Action)
	}
}

func TestBuildRecommendsBlockForHighEvidenceScore(t *testing.T) {
	b := New()
	result := b.Build(
		types.RiskEvaluation{RiskScore: 0.70},
		types.BehaviorEvaluation{MatchScore: 0.8},
		types.NetworkEvaluation{NetworkRisk: 0.1},
		types.ConfidenceVerdict{FinalConfidence: 0.4, Permission: types.PermissionHumanRequired},
	)
	if result.Action != types.DecisionBlock {
		t.Fatalf("action = %v, want BLOCK", result.Action)
	}
}

func TestBuildRecommendsEscalateForCriticalEvidenceScore(t *testing.T) {
	b := New()
	result := b.Build(
		types.RiskEvaluation{RiskScore: 0.95},
		types.BehaviorEvaluation{MatchScore: 0.8},
		types.NetworkEvaluation{NetworkRisk: 0.1},
		types.ConfidenceVerdict{FinalConfidence: 0.2, Permission: types.PermissionHumanRequired},
	)
	if result.Action != types.DecisionEscalate {
		t.Fatalf("action = %v, want ESCALATE", result.Action)
	}
}

func TestBuildIncludesEveryNonEmptySignalGroup(t *testing.T) {
	b := New()
	result := b.Build(
		types.RiskEvaluation{RiskScore: 0.5, RiskFactors: []string{"too_many_failed_attempts"}},
		types.BehaviorEvaluation{MatchScore: 0.4, Deviations: []string{"login_location_differs_from_usual"}},
		types.NetworkEvaluation{NetworkRisk: 0.3, Evidence: []string{"tor_exit_node_detected"}},
		types.ConfidenceVerdict{FinalConfidence: 0.5, Permission: types.PermissionHumanRequired},
	)
	for _, want := range []string{"too_many_failed_attempts", "login_location_differs_from_usual", "tor_exit_node_detected"} {
		if !strings.Contains(result.Text, want) {
			t.Fatalf("text = %q, want it to mention %q", result.Text, want)
		}
	}
}

func TestNormalizeActionDefaultsUnknownToChallenge(t *testing.T) {
	if got := NormalizeAction("NOT_A_REAL_ACTION"); got != types.DecisionChallenge {
		t.Fatalf("normalize unknown = %v, want CHALLENGE", got)
	}
	if got := NormalizeAction("BLOCK"); got != types.DecisionBlock {
		t.Fatalf("normalize BLOCK = %v, want BLOCK", got)
	}
}
