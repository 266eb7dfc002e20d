package risk

import (
	"math"
	"sort"
)

// featureToFactor maps a feature name to the human-readable risk factor
// surfaced in RiskEvaluation.RiskFactors. Features the heuristic path
// also scores reuse its tag, except failed_attempts_before, which maps
// to high_login_velocity where the heuristic emits
// excessive_failed_attempts; the other features have tags that only the
// model path emits.
var featureToFactor = map[string]string{
	"is_new_device":               "new_device_detected",
	"device_not_known":            "unknown_device",
	"is_new_ip":                   "login_from_new_ip",
	"is_new_location":             "login_from_new_country",
	"is_vpn":                      "vpn_or_proxy_detected",
	"is_tor":                      "tor_exit_node_detected",
	"failed_attempts_before":      "high_login_velocity",
	"failed_attempts_capped":      "excessive_failed_attempts",
	"time_since_last_login_hours": "unusual_login_timing",
	"is_long_absence":             "login_after_extended_absence",
	"auth_method_password":        "password_auth",
	"auth_method_mfa":             "mfa_auth",
	"auth_method_sso":             "sso_auth",
	"auth_method_biometric":       "biometric_auth",
}

const (
	minAttributionContribution = 0.02
	maxModelTags                = 5
)

type attribution struct {
	name         string
	value        float64
	featureIndex int
}

// predict scores a feature vector against the artifact's linear weights
// (the Go stand-in for a serialized GBDT's additive contribution),
// applies the optional isotonic calibrator, and derives per-feature
// attribution the same way a SHAP tree explainer would: each feature's
// weight times its value is its additive contribution to the logit,
// and tags are the positive contributors above the minimum threshold,
// ordered by magnitude and capped.
func (a *Artifact) predict(f [14]float64) (score float64, tags []string) {
	logit := a.Intercept
	contributions := make([]attribution, len(f))
	for i, v := range f {
		c := a.Weights[i] * v
		logit += c
		contributions[i] = attribution{name: FeatureNames[i], value: c, featureIndex: i}
	}

	raw := sigmoid(logit)
	calibrated := raw
	if a.Calibrator != nil {
		calibrated = a.Calibrator.Predict(raw)
	}
	if calibrated < 0 {
		calibrated = 0
	}
	if calibrated > 1 {
		calibrated = 1
	}

	positive := make([]attribution, 0, len(contributions))
	for _, c := range contributions {
		if c.value > minAttributionContribution {
			positive = append(positive, c)
		}
	}
	sort.SliceStable(positive, func(i, j int) bool {
		if positive[i].value != positive[j].value {
			return positive[i].value > positive[j].value
		}
		return positive[i].featureIndex < positive[j].featureIndex
	})
	if len(positive) > maxModelTags {
		positive = positive[:maxModelTags]
	}

	tags = make([]string, 0, len(positive))
	for _, c := range positive {
		tags = append(tags, featureToFactor[c.name])
	}

	return calibrated, tags
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
