// Package behavior computes the distance of a session embedding from a
// rolling per-user behavioral centroid, maintaining that centroid as an
// exponentially-weighted moving profile.
package behavior

// Config carries every numeric constant the behavior evaluator needs,
// mirroring the original implementation's BehaviorConfig.
type Config struct {
	EmbeddingDim int

	LocationNormLat float64
	LocationNormLon float64
	TimeNormDiv     float64
	UnknownTime     float64

	CosineThresholdLow  float64
	CosineThresholdHigh float64
	MahalThresholdLow   float64
	MahalThresholdHigh  float64
	EuclideanThresholdLow  float64
	EuclideanThresholdHigh float64

	Epsilon                 float64
	CovarianceRegularization float64
	NormLowWeight           float64
	NormHighWeight          float64
	AnomalyLowGate          float64
	FallbackAnomaly         float64

	TimeDiffThreshold   float64
	DayDiffThreshold    float64
	DeviceDiffThreshold float64
	AuthDiffThreshold   float64
	LocationDiffThreshold float64
	VPNDiffThreshold    float64
	TorDiffThreshold    float64
	GapDiffThreshold    float64

	MaxHistorySessions    int
	DecayFactor           float64
	MinSessionsForProfile int
	NewUserMatchScore     float64

	// MutateOnScore controls whether Evaluate folds the current session's
	// embedding into the profile as part of scoring, per spec §4.3's
	// "whether the profile is mutated during scoring is configurable".
	// Disabling it is useful for replay/what-if evaluation against a
	// frozen profile.
	MutateOnScore bool
}

// DefaultConfig matches the original implementation's tuned constants.
func DefaultConfig() Config {
	return Config{
		EmbeddingDim: 16,

		LocationNormLat: 90.0,
		LocationNormLon: 180.0,
		TimeNormDiv:     7.0,
		UnknownTime:     0.5,

		CosineThresholdLow:  0.1,
		CosineThresholdHigh: 0.5,
		MahalThresholdLow:   2.0,
		MahalThresholdHigh:  4.0,
		EuclideanThresholdLow:  1.0,
		EuclideanThresholdHigh: 3.0,

		Epsilon:                  1e-10,
		CovarianceRegularization: 1e-4,
		NormLowWeight:            0.3,
		NormHighWeight:           0.7,
		AnomalyLowGate:           0.3,
		FallbackAnomaly:          0.5,

		TimeDiffThreshold:     0.5,
		DayDiffThreshold:      0.5,
		DeviceDiffThreshold:   0.5,
		AuthDiffThreshold:     0.5,
		LocationDiffThreshold: 0.3,
		VPNDiffThreshold:      0.5,
		TorDiffThreshold:      0.5,
		GapDiffThreshold:      0.5,

		MaxHistorySessions:    100,
		DecayFactor:           0.95,
		MinSessionsForProfile: 5,
		NewUserMatchScore:     0.90,
		MutateOnScore:         true,
	}
}
