package risk

import (
	"testing"

	"sentrydesk/internal/types"
)

func baseInput() types.InputContext {
	return types.InputContext{
		LoginEvent: types.LoginEvent{
			AuthMethod: types.AuthPassword,
		},
		Session: types.Session{},
		Device:  types.Device{IsKnown: true},
		User:    types.User{},
	}
}

func TestExtractFeaturesCleanLogin(t *testing.T) {
	f := ExtractFeatures(baseInput())
	for i, v := range f {
		if i == idxTimeSince {
			if v != missingTimeSentinel {
				t.Errorf("feature[%d] (time_since) = %v, want sentinel %v", i, v, missingTimeSentinel)
			}
			continue
		}
		if i == idxAuthPassword {
			if v != 1 {
				t.Errorf("feature[%d] (auth_method_password) = %v, want 1 for a password login", i, v)
			}
			continue
		}
		if v != 0 {
			t.Errorf("feature[%d] = %v, want 0 for a clean known-device login", i, v)
		}
	}
}

func TestExtractFeaturesCapsFailedAttempts(t *testing.T) {
	in := baseInput()
	in.LoginEvent.FailedAttemptsBefore = 10
	f := ExtractFeatures(in)
	if f[idxFailedAttempts] != failedAttemptsCap {
		t.Fatalf("capped failed attempts = %v, want %v", f[idxFailedAttempts], failedAttemptsCap)
	}
	if f[idxFailedCapped] != 1 {
		t.Fatalf("failed_attempts_capped flag = %v, want 1", f[idxFailedCapped])
	}
}

func TestExtractFeaturesLongAbsence(t *testing.T) {
	in := baseInput()
	hours := 800.0
	in.LoginEvent.TimeSinceLastLoginHours = &hours
	f := ExtractFeatures(in)
	if f[idxLongAbsence] != 1 {
		t.Fatalf("is_long_absence = %v, want 1 for an 800h gap", f[idxLongAbsence])
	}
}

func TestExtractFeaturesUnknownDeviceImpliesNewDevice(t *testing.T) {
	in := baseInput()
	in.Device.IsKnown = false
	f := ExtractFeatures(in)
	if f[idxNewDevice] != 1 {
		t.Fatal("is_new_device should be set when the device is not known, even if is_new_device flag is false")
	}
	if f[idxDeviceUnknown] != 1 {
		t.Fatal("device_not_known should be set")
	}
}

func TestHeuristicScoreCleanLoginIsZero(t *testing.T) {
	f := ExtractFeatures(baseInput())
	score, tags := heuristicScore(f)
	if score != 0 {
		t.Fatalf("score = %v, want 0", score)
	}
	if len(tags) != 0 {
		t.Fatalf("tags = %v, want none", tags)
	}
}

func TestHeuristicScoreOrdersTagsByContribution(t *testing.T) {
	in := baseInput()
	in.LoginEvent.IsNewDevice = true // 0.25
	in.Device.IsKnown = false
	in.Session.IsTor = true // 0.35
	in.LoginEvent.IsNewIP = true // 0.15

	f := ExtractFeatures(in)
	score, tags := heuristicScore(f)

	wantScore := 0.35 + 0.25 + 0.15
	if score != wantScore {
		t.Fatalf("score = %v, want %v", score, wantScore)
	}
	wantTags := []string{"tor_exit_node_detected", "new_device_detected", "login_from_new_ip"}
	if len(tags) != len(wantTags) {
		t.Fatalf("tags = %v, want %v", tags, wantTags)
	}
	for i := range wantTags {
		if tags[i] != wantTags[i] {
			t.Fatalf("tags = %v, want %v", tags, wantTags)
		}
	}
}

func TestHeuristicScoreClampsToOne(t *testing.T) {
	in := baseInput()
	in.LoginEvent.IsNewDevice = true
	in.Device.IsKnown = false
	in.LoginEvent.IsNewIP = true
	in.LoginEvent.IsNewLocation = true
	in.Session.IsVPN = true
	in.Session.IsTor = true
	in.LoginEvent.FailedAttemptsBefore = 10
	hours := 800.0
	in.LoginEvent.TimeSinceLastLoginHours = &hours

	f := ExtractFeatures(in)
	score, _ := heuristicScore(f)
	if score > 1 {
		t.Fatalf("score = %v, want clamped to <= 1", score)
	}
}

func TestHeuristicScoreTieBreaksByFeatureIndex(t *testing.T) {
	// vpn (0.10, feature index 4) and a single failed attempt (0.10*1,
	// feature index 6) contribute exactly the same amount; vpn's lower
	// feature index must sort first.
	in := baseInput()
	in.Session.IsVPN = true
	in.LoginEvent.FailedAttemptsBefore = 1

	f := ExtractFeatures(in)
	_, tags := heuristicScore(f)
	if len(tags) != 2 || tags[0] != "vpn_or_proxy_detected" || tags[1] != "excessive_failed_attempts" {
		t.Fatalf("tags = %v, want [vpn_or_proxy_detected excessive_failed_attempts] (tie broken by feature index)", tags)
	}
}
