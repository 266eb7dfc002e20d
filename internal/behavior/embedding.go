package behavior

import (
	"math"

	"sentrydesk/internal/types"
)

// EmbeddingDim is the fixed session-embedding dimensionality.
const EmbeddingDim = 16

// Feature index layout, matching the original session embedder:
// 0-1: hour sin/cos, 2-3: day-of-week sin/cos, 4-6: device one-hot,
// 7-10: auth-method one-hot, 11-12: lat/lon, 13-14: vpn/tor,
// 15: normalized time since last login.
const (
	embIdxHourSin = 0
	embIdxHourCos = 1
	embIdxDaySin  = 2
	embIdxDayCos  = 3
	embIdxDeviceStart = 4
	embIdxAuthStart   = 7
	embIdxLat     = 11
	embIdxLon     = 12
	embIdxVPN     = 13
	embIdxTor     = 14
	embIdxTimeGap = 15
)

// BuildEmbedding constructs the 16-dimension session embedding used for
// distance-from-centroid anomaly scoring.
func BuildEmbedding(cfg Config, input types.InputContext) [EmbeddingDim]float64 {
	var e [EmbeddingDim]float64

	hour := float64(input.Session.StartTime.Hour())
	e[embIdxHourSin] = math.Sin(2 * math.Pi * hour / 24)
	e[embIdxHourCos] = math.Cos(2 * math.Pi * hour / 24)

	day := float64(int(input.Session.StartTime.Weekday()))
	e[embIdxDaySin] = math.Sin(2 * math.Pi * day / 7)
	e[embIdxDayCos] = math.Cos(2 * math.Pi * day / 7)

	for i, dt := range types.DeviceTypes {
		if input.Device.DeviceType == dt {
			e[embIdxDeviceStart+i] = 1
		}
	}

	for i, am := range types.AuthMethods {
		if input.LoginEvent.AuthMethod == am {
			e[embIdxAuthStart+i] = 1
		}
	}

	e[embIdxLat] = input.Session.GeoLocation.Latitude / cfg.LocationNormLat
	e[embIdxLon] = input.Session.GeoLocation.Longitude / cfg.LocationNormLon

	e[embIdxVPN] = boolToFloat(input.Session.IsVPN)
	e[embIdxTor] = boolToFloat(input.Session.IsTor)

	if input.LoginEvent.TimeSinceLastLoginHours == nil {
		e[embIdxTimeGap] = cfg.UnknownTime
	} else {
		gap := math.Log1p(*input.LoginEvent.TimeSinceLastLoginHours) / cfg.TimeNormDiv
		if gap > 1 {
			gap = 1
		}
		e[embIdxTimeGap] = gap
	}

	return e
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
