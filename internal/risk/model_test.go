package risk

import (
	"math"
	"testing"
)

func TestIsotonicPredictInterpolatesAndClips(t *testing.T) {
	iso := &Isotonic{X: []float64{0, 0.5, 1}, Y: []float64{0.1, 0.5, 0.9}}

	if got := iso.Predict(-1); got != 0.1 {
		t.Errorf("Predict(-1) = %v, want clipped to 0.1", got)
	}
	if got := iso.Predict(2); got != 0.9 {
		t.Errorf("Predict(2) = %v, want clipped to 0.9", got)
	}
	if got := iso.Predict(0.25); math.Abs(got-0.3) > 1e-12 {
		t.Errorf("Predict(0.25) = %v, want 0.3 (midpoint interpolation)", got)
	}
	if got := iso.Predict(0.5); got != 0.5 {
		t.Errorf("Predict(0.5) = %v, want exact breakpoint 0.5", got)
	}
}

func TestIsotonicPredictHandlesUnsortedInput(t *testing.T) {
	iso, err := LoadIsotonic([]byte(`{"x":[1,0,0.5],"y":[0.9,0.1,0.5]}`))
	if err != nil {
		t.Fatalf("load isotonic: %v", err)
	}
	if got := iso.Predict(0.25); math.Abs(got-0.3) > 1e-12 {
		t.Errorf("Predict(0.25) = %v, want 0.3 after sorting by x", got)
	}
}

func TestArtifactPredictAttributesTopContributors(t *testing.T) {
	artifact := &Artifact{
		Weights: [14]float64{
			idxNewDevice:   2.0,
			idxNewLocation: 1.5,
			idxTor:         3.0,
			idxVPN:         0.01, // below minAttributionContribution, excluded
		},
	}
	in := baseInput()
	in.LoginEvent.IsNewDevice = true
	in.Device.IsKnown = false
	in.LoginEvent.IsNewLocation = true
	in.Session.IsTor = true
	in.Session.IsVPN = true

	f := ExtractFeatures(in)
	score, tags := artifact.predict(f)

	if score <= 0 || score >= 1 {
		t.Fatalf("score = %v, want strictly between 0 and 1 (sigmoid output)", score)
	}
	want := []string{"tor_exit_node_detected", "new_device_detected", "login_from_new_country"}
	if len(tags) != len(want) {
		t.Fatalf("tags = %v, want %v", tags, want)
	}
	for i := range want {
		if tags[i] != want[i] {
			t.Fatalf("tags = %v, want %v", tags, want)
		}
	}
}

func TestArtifactPredictCapsAttributionAtFive(t *testing.T) {
	artifact := &Artifact{}
	for i := range artifact.Weights {
		artifact.Weights[i] = 1.0
	}
	in := baseInput()
	in.LoginEvent.IsNewDevice = true
	in.Device.IsKnown = false
	in.LoginEvent.IsNewIP = true
	in.LoginEvent.IsNewLocation = true
	in.Session.IsVPN = true
	in.Session.IsTor = true
	in.LoginEvent.FailedAttemptsBefore = 3
	hours := 800.0
	in.LoginEvent.TimeSinceLastLoginHours = &hours

	f := ExtractFeatures(in)
	_, tags := artifact.predict(f)
	if len(tags) > maxModelTags {
		t.Fatalf("len(tags) = %d, want <= %d", len(tags), maxModelTags)
	}
}

func TestArtifactPredictAppliesCalibrator(t *testing.T) {
	uncalibrated := &Artifact{Intercept: 0}
	calibrated := &Artifact{Intercept: 0, Calibrator: &Isotonic{X: []float64{0, 1}, Y: []float64{0, 0.01}}}

	f := ExtractFeatures(baseInput())
	rawScore, _ := uncalibrated.predict(f)
	calibratedScore, _ := calibrated.predict(f)

	if rawScore != 0.5 {
		t.Fatalf("uncalibrated score for a zero logit = %v, want 0.5 (sigmoid(0))", rawScore)
	}
	if calibratedScore >= rawScore {
		t.Fatalf("calibrated score = %v, want lower than the uncalibrated %v per the isotonic mapping", calibratedScore, rawScore)
	}
}
