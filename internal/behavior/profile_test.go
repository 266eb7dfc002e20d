package behavior

import (
	"testing"
	"time"
)

func TestProfileIsValidGatesOnMinSessions(t *testing.T) {
	cfg := DefaultConfig()
	p := NewProfile("user-1")
	for i := 0; i < cfg.MinSessionsForProfile-1; i++ {
		p.Update(cfg, [EmbeddingDim]float64{}, time.Now())
		if p.IsValid(cfg) {
			t.Fatalf("profile valid after %d sessions, want invalid until %d", i+1, cfg.MinSessionsForProfile)
		}
	}
	p.Update(cfg, [EmbeddingDim]float64{}, time.Now())
	if !p.IsValid(cfg) {
		t.Fatalf("profile invalid after %d sessions, want valid", cfg.MinSessionsForProfile)
	}
}

func TestProfileUpdateFirstSessionSetsCentroidDirectly(t *testing.T) {
	cfg := DefaultConfig()
	p := NewProfile("user-1")
	var e [EmbeddingDim]float64
	e[0] = 0.75
	p.Update(cfg, e, time.Now())

	if p.Centroid[0] != 0.75 {
		t.Fatalf("centroid[0] = %v, want 0.75 after the first session", p.Centroid[0])
	}
}

func TestProfileUpdateEMAMovesCentroidTowardNewSample(t *testing.T) {
	cfg := DefaultConfig()
	p := NewProfile("user-1")
	var zero, one [EmbeddingDim]float64
	one[0] = 1.0

	p.Update(cfg, zero, time.Now())
	before := p.Centroid[0]
	p.Update(cfg, one, time.Now())
	after := p.Centroid[0]

	if !(after > before) {
		t.Fatalf("centroid[0] did not move toward the new sample: before=%v after=%v", before, after)
	}
	if after <= 0 || after >= 1 {
		t.Fatalf("centroid[0] = %v, want strictly between 0 and 1 (EMA blend)", after)
	}
}

func TestProfileHistoryCapsAtMaxHistorySessions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxHistorySessions = 3
	p := NewProfile("user-1")
	for i := 0; i < 5; i++ {
		p.Update(cfg, [EmbeddingDim]float64{}, time.Now())
	}
	if len(p.History) != cfg.MaxHistorySessions {
		t.Fatalf("history length = %d, want capped at %d", len(p.History), cfg.MaxHistorySessions)
	}
}

func TestProfileCovarianceSetOnceValid(t *testing.T) {
	cfg := DefaultConfig()
	p := NewProfile("user-1")
	for i := 0; i < cfg.MinSessionsForProfile; i++ {
		var e [EmbeddingDim]float64
		e[0] = float64(i)
		p.Update(cfg, e, time.Now())
	}
	if !p.HasCovariance() {
		t.Fatal("covariance not set once the profile became valid")
	}
}

func TestProfileMarshalAndRestoreStateRoundTrips(t *testing.T) {
	cfg := DefaultConfig()
	p := NewProfile("user-1")
	for i := 0; i < cfg.MinSessionsForProfile+2; i++ {
		var e [EmbeddingDim]float64
		e[0] = float64(i) * 0.1
		p.Update(cfg, e, time.Now())
	}

	state := p.MarshalState()
	restored := RestoreState(state)

	if restored.UserID != p.UserID {
		t.Fatalf("user id = %q, want %q", restored.UserID, p.UserID)
	}
	if restored.SessionCount != p.SessionCount {
		t.Fatalf("session count = %d, want %d", restored.SessionCount, p.SessionCount)
	}
	if restored.Centroid != p.Centroid {
		t.Fatalf("centroid = %v, want %v", restored.Centroid, p.Centroid)
	}
	if restored.HasCovariance() != p.HasCovariance() {
		t.Fatalf("covariance-set = %v, want %v", restored.HasCovariance(), p.HasCovariance())
	}
	if restored.CovarianceInv != p.CovarianceInv {
		t.Fatal("restored covariance inverse does not match the original")
	}
	if len(restored.History) != len(p.History) {
		t.Fatalf("history length = %d, want %d", len(restored.History), len(p.History))
	}
}
