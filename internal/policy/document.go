// Package policy implements the deterministic veto/escalate layer that
// sits over every automated action (spec §4.6). Its rule document is
// versioned, loaded from YAML, and swapped atomically on reload.
package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"sentrydesk/internal/types"
)

// Document is the versioned policy configuration document described in
// spec §6.
type Document struct {
	Metadata struct {
		Version string `yaml:"version"`
	} `yaml:"metadata"`

	Confidence struct {
		MinToAllow    float64 `yaml:"min_to_allow"`
		MinToEscalate float64 `yaml:"min_to_escalate"`
	} `yaml:"confidence"`

	Actions struct {
		Allowed                 []types.Decision `yaml:"allowed"`
		HumanOnly               []types.Decision `yaml:"human_only"`
		MaxActionsPerUserPerDay int              `yaml:"max_actions_per_user_per_day"`
	} `yaml:"actions"`

	Escalation struct {
		DisagreementThreshold    float64 `yaml:"disagreement_threshold"`
		ConsecutiveHighRiskLimit int     `yaml:"consecutive_high_risk_limit"`
	} `yaml:"escalation"`

	RiskThresholds struct {
		LowRiskMax           float64 `yaml:"low_risk_max"`
		MediumRiskMax        float64 `yaml:"medium_risk_max"`
		CriticalRiskThreshold float64 `yaml:"critical_risk_threshold"`
	} `yaml:"risk_thresholds"`

	RateLimits map[string]int `yaml:"rate_limits"`

	HumanOverride struct {
		MinReasonLength     int      `yaml:"min_reason_length"`
		AllowedOverrideTypes []string `yaml:"allowed_override_types"`
	} `yaml:"human_override"`
}

// DefaultDocument returns a reasonable built-in document, used when no
// policy file is configured or for tests.
func DefaultDocument() *Document {
	d := &Document{}
	d.Metadata.Version = "v0-default"
	d.Confidence.MinToAllow = 0.75
	d.Confidence.MinToEscalate = 0.50
	d.Actions.Allowed = []types.Decision{types.DecisionAllow, types.DecisionChallenge, types.DecisionBlock, types.DecisionEscalate}
	d.Actions.HumanOnly = nil
	d.Actions.MaxActionsPerUserPerDay = 50
	d.Escalation.DisagreementThreshold = 0.30
	d.Escalation.ConsecutiveHighRiskLimit = 3
	d.RiskThresholds.LowRiskMax = 0.30
	d.RiskThresholds.MediumRiskMax = 0.60
	d.RiskThresholds.CriticalRiskThreshold = 0.85
	d.HumanOverride.MinReasonLength = 10
	d.HumanOverride.AllowedOverrideTypes = []string{"approve", "deny", "escalate"}
	return d
}

// LoadDocument reads and validates a policy document from path.
func LoadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading policy document: %w", err)
	}
	var d Document
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parsing policy document: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("validating policy document: %w", err)
	}
	return &d, nil
}

// Validate checks the document's internal consistency, including the
// human-override reason-length floor mandated by spec §6.
func (d *Document) Validate() error {
	if d.Metadata.Version == "" {
		return fmt.Errorf("metadata.version is required")
	}
	if d.HumanOverride.MinReasonLength < 10 {
		return fmt.Errorf("human_override.min_reason_length must be >= 10")
	}
	if d.RiskThresholds.LowRiskMax > d.RiskThresholds.MediumRiskMax {
		return fmt.Errorf("risk_thresholds.low_risk_max must be <= medium_risk_max")
	}
	if d.RiskThresholds.MediumRiskMax > d.RiskThresholds.CriticalRiskThreshold {
		return fmt.Errorf("risk_thresholds.medium_risk_max must be <= critical_risk_threshold")
	}
	if len(d.Actions.Allowed) == 0 {
		return fmt.Errorf("actions.allowed must not be empty")
	}
	return nil
}

// isAllowed reports whether action is in the configured allowed set.
func (d *Document) isAllowed(action types.Decision) bool {
	for _, a := range d.Actions.Allowed {
		if a == action {
			return true
		}
	}
	return false
}

// isHumanOnly reports whether action may only be taken by a human.
func (d *Document) isHumanOnly(action types.Decision) bool {
	for _, a := range d.Actions.HumanOnly {
		if a == action {
			return true
		}
	}
	return false
}

// RecommendAction implements the risk-to-action fallback of spec §4.6,
// used when the proposed action is absent.
func (d *Document) RecommendAction(riskScore float64) types.Decision {
	switch {
	case riskScore <= d.RiskThresholds.LowRiskMax:
		return types.DecisionAllow
	case riskScore <= d.RiskThresholds.MediumRiskMax:
		return types.DecisionChallenge
	case riskScore < d.RiskThresholds.CriticalRiskThreshold:
		return types.DecisionBlock
	default:
		return types.DecisionEscalate
	}
}
