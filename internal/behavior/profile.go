package behavior

import "time"

// Profile is a per-user rolling behavioral state: the centroid of
// recent session embeddings, an optional covariance estimate, and a
// bounded ring buffer of history used to re-estimate that covariance.
// It is mutated only by the evaluator holding the owning map's per-user
// lock (see Store), never read concurrently with a write.
type Profile struct {
	UserID        string
	Centroid      [EmbeddingDim]float64
	Covariance    [EmbeddingDim][EmbeddingDim]float64
	CovarianceInv [EmbeddingDim][EmbeddingDim]float64
	covarianceSet bool
	SessionCount  int
	LastUpdated   time.Time
	History       [][EmbeddingDim]float64 // most recent last, capped at MaxHistorySessions
}

// NewProfile creates an empty profile for a previously-unseen user.
func NewProfile(userID string) *Profile {
	return &Profile{UserID: userID}
}

// IsValid reports whether the profile has enough history to be used as
// a baseline, per spec §4.3's min_sessions_for_profile gate.
func (p *Profile) IsValid(cfg Config) bool {
	return p.SessionCount >= cfg.MinSessionsForProfile
}

// HasCovariance reports whether a covariance estimate is available for
// Mahalanobis scoring.
func (p *Profile) HasCovariance() bool {
	return p.covarianceSet
}

// Update folds a new session embedding into the profile: an EMA update
// of the centroid, a bounded history append, and covariance
// re-estimation once enough history exists. alpha = 1/(n+1) while
// n < 10, else a fixed 0.1, matching the original profile's update
// schedule (fast adaptation early, slow drift later).
func (p *Profile) Update(cfg Config, embedding [EmbeddingDim]float64, now time.Time) {
	n := p.SessionCount
	alpha := 0.1
	if n < 10 {
		alpha = 1.0 / float64(n+1)
	}

	if n == 0 {
		p.Centroid = embedding
	} else {
		for i := range p.Centroid {
			p.Centroid[i] = (1-alpha)*p.Centroid[i] + alpha*embedding[i]
		}
	}

	p.History = append(p.History, embedding)
	if len(p.History) > cfg.MaxHistorySessions {
		p.History = p.History[len(p.History)-cfg.MaxHistorySessions:]
	}

	p.SessionCount++
	p.LastUpdated = now

	if p.IsValid(cfg) {
		p.updateCovariance(cfg)
	}
}

// updateCovariance re-estimates the covariance matrix from the ring
// buffer with exponential time decay (most recent sessions weighted
// most heavily), regularizes it by adding covarianceRegularization * I,
// and inverts it. If inversion fails (near-singular matrix), the
// pseudoinverse is used instead, matching the original's inv-then-pinv
// fallback.
func (p *Profile) updateCovariance(cfg Config) {
	n := len(p.History)
	if n < 2 {
		return
	}

	weights := make([]float64, n)
	var weightSum float64
	// Most recent entry (last in slice) gets decay^0, decaying backward.
	for i := 0; i < n; i++ {
		age := n - 1 - i
		w := pow(cfg.DecayFactor, float64(age))
		weights[i] = w
		weightSum += w
	}

	var mean [EmbeddingDim]float64
	for i := 0; i < n; i++ {
		w := weights[i] / weightSum
		for d := 0; d < EmbeddingDim; d++ {
			mean[d] += w * p.History[i][d]
		}
	}

	var cov [EmbeddingDim][EmbeddingDim]float64
	for i := 0; i < n; i++ {
		w := weights[i] / weightSum
		var diff [EmbeddingDim]float64
		for d := 0; d < EmbeddingDim; d++ {
			diff[d] = p.History[i][d] - mean[d]
		}
		for a := 0; a < EmbeddingDim; a++ {
			for b := 0; b < EmbeddingDim; b++ {
				cov[a][b] += w * diff[a] * diff[b]
			}
		}
	}

	for i := 0; i < EmbeddingDim; i++ {
		cov[i][i] += cfg.CovarianceRegularization
	}

	p.Covariance = cov
	if inv, ok := invert(cov); ok {
		p.CovarianceInv = inv
	} else {
		p.CovarianceInv = pseudoInvert(cov, cfg.CovarianceRegularization)
	}
	p.covarianceSet = true
}

// ProfileState is a flattened, slice-based snapshot of a Profile for
// Store implementations that persist profiles outside the process
// (DynamoDB item attributes don't carry fixed-size array types the way
// Go does), per spec §6's behavioral-profile store collaborator.
type ProfileState struct {
	UserID        string
	Centroid      []float64
	Covariance    []float64 // row-major, EmbeddingDim*EmbeddingDim
	CovarianceInv []float64 // row-major, EmbeddingDim*EmbeddingDim
	CovarianceSet bool
	SessionCount  int
	LastUpdated   time.Time
	History       [][]float64
}

// MarshalState flattens p into a ProfileState snapshot.
func (p *Profile) MarshalState() ProfileState {
	s := ProfileState{
		UserID:        p.UserID,
		Centroid:      p.Centroid[:],
		CovarianceSet: p.covarianceSet,
		SessionCount:  p.SessionCount,
		LastUpdated:   p.LastUpdated,
	}
	s.Covariance = flatten(p.Covariance)
	s.CovarianceInv = flatten(p.CovarianceInv)
	s.History = make([][]float64, len(p.History))
	for i, h := range p.History {
		row := make([]float64, EmbeddingDim)
		copy(row, h[:])
		s.History[i] = row
	}
	return s
}

// RestoreState rebuilds a Profile from a snapshot previously produced
// by MarshalState. Fields of the wrong length (a snapshot from a
// different EmbeddingDim) are not rejected: the centroid and each
// history row are copied as far as they fit, a covariance matrix of the
// wrong length keeps the value NewProfile gives it, and SessionCount and
// the covariance flag are restored as stored. Loading never fails.
func RestoreState(s ProfileState) *Profile {
	p := NewProfile(s.UserID)
	p.SessionCount = s.SessionCount
	p.LastUpdated = s.LastUpdated
	p.covarianceSet = s.CovarianceSet
	copy(p.Centroid[:], s.Centroid)
	unflatten(s.Covariance, &p.Covariance)
	unflatten(s.CovarianceInv, &p.CovarianceInv)
	for _, row := range s.History {
		var h [EmbeddingDim]float64
		copy(h[:], row)
		p.History = append(p.History, h)
	}
	return p
}

func flatten(m [EmbeddingDim][EmbeddingDim]float64) []float64 {
	out := make([]float64, 0, EmbeddingDim*EmbeddingDim)
	for i := range m {
		out = append(out, m[i][:]...)
	}
	return out
}

func unflatten(flat []float64, m *[EmbeddingDim][EmbeddingDim]float64) {
	if len(flat) != EmbeddingDim*EmbeddingDim {
		return
	}
	for i := 0; i < EmbeddingDim; i++ {
		copy(m[i][:], flat[i*EmbeddingDim:(i+1)*EmbeddingDim])
	}
}

func pow(base, exp float64) float64 {
	if exp == 0 {
		return 1
	}
	result := 1.0
	for i := 0; i < int(exp); i++ {
		result *= base
	}
	return result
}
