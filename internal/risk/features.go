package risk

import "sentrydesk/internal/types"

// FeatureNames is the canonical, fixed-order feature vector consumed by
// both the heuristic and model paths. Order matters: tie-breaks in both
// paths fall back to this order, and the model artifact's metadata.json
// must declare the same names in the same order.
var FeatureNames = []string{
	"is_new_device",
	"device_not_known",
	"is_new_ip",
	"is_new_location",
	"is_vpn",
	"is_tor",
	"failed_attempts_before",
	"failed_attempts_capped",
	"time_since_last_login_hours",
	"is_long_absence",
	"auth_method_password",
	"auth_method_mfa",
	"auth_method_sso",
	"auth_method_biometric",
}

const (
	idxNewDevice      = 0
	idxDeviceUnknown  = 1
	idxNewIP          = 2
	idxNewLocation    = 3
	idxVPN            = 4
	idxTor            = 5
	idxFailedAttempts = 6
	idxFailedCapped   = 7
	idxTimeSince      = 8
	idxLongAbsence    = 9
	idxAuthPassword   = 10
	idxAuthMFA        = 11
	idxAuthSSO        = 12
	idxAuthBiometric  = 13

	failedAttemptsCap   = 3
	longAbsenceHours    = 720.0
	missingTimeSentinel = -1.0
)

// ExtractFeatures converts an InputContext into the fixed 14-dimension
// feature vector, matching FeatureNames element for element.
func ExtractFeatures(ctx types.InputContext) [14]float64 {
	var f [14]float64

	f[idxNewDevice] = boolToFloat(ctx.LoginEvent.IsNewDevice || !ctx.Device.IsKnown)
	f[idxDeviceUnknown] = boolToFloat(!ctx.Device.IsKnown)
	f[idxNewIP] = boolToFloat(ctx.LoginEvent.IsNewIP)
	f[idxNewLocation] = boolToFloat(ctx.LoginEvent.IsNewLocation)
	f[idxVPN] = boolToFloat(ctx.Session.IsVPN)
	f[idxTor] = boolToFloat(ctx.Session.IsTor)

	capped := ctx.LoginEvent.FailedAttemptsBefore
	if capped > failedAttemptsCap {
		capped = failedAttemptsCap
	}
	f[idxFailedAttempts] = float64(capped)
	f[idxFailedCapped] = boolToFloat(ctx.LoginEvent.FailedAttemptsBefore >= failedAttemptsCap)

	if ctx.LoginEvent.TimeSinceLastLoginHours == nil {
		f[idxTimeSince] = missingTimeSentinel
		f[idxLongAbsence] = 0
	} else {
		hours := *ctx.LoginEvent.TimeSinceLastLoginHours
		f[idxTimeSince] = hours
		f[idxLongAbsence] = boolToFloat(hours > longAbsenceHours)
	}

	f[idxAuthPassword] = boolToFloat(ctx.LoginEvent.AuthMethod == types.AuthPassword)
	f[idxAuthMFA] = boolToFloat(ctx.LoginEvent.AuthMethod == types.AuthMFA)
	f[idxAuthSSO] = boolToFloat(ctx.LoginEvent.AuthMethod == types.AuthSSO)
	f[idxAuthBiometric] = boolToFloat(ctx.LoginEvent.AuthMethod == types.AuthBiometric)

	return f
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
