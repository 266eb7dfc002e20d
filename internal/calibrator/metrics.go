package calibrator

import "sync"

const minEscalationRate = 0.15

// EscalationMetrics tracks a rolling window of recent permission
// decisions to flag confidence drift, matching the original
// implementation's EscalationMetrics monitor. It is advisory only: the
// caller decides what, if anything, to do with RecalibrationNeeded.
type EscalationMetrics struct {
	mu          sync.Mutex
	window      []bool // true = escalated (HUMAN_REQUIRED)
	windowSize  int
	totalCount  int
	totalEscalated int
}

// NewEscalationMetrics constructs a monitor over the last windowSize
// decisions.
func NewEscalationMetrics(windowSize int) *EscalationMetrics {
	return &EscalationMetrics{windowSize: windowSize}
}

// Record adds one decision outcome to the rolling window.
func (m *EscalationMetrics) Record(escalated bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.window = append(m.window, escalated)
	if len(m.window) > m.windowSize {
		m.window = m.window[len(m.window)-m.windowSize:]
	}

	m.totalCount++
	if escalated {
		m.totalEscalated++
	}
}

// RecentRate returns the escalation rate over the current rolling
// window.
func (m *EscalationMetrics) RecentRate() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.window) == 0 {
		return 0
	}
	var n int
	for _, escalated := range m.window {
		if escalated {
			n++
		}
	}
	return float64(n) / float64(len(m.window))
}

// OverallRate returns the escalation rate over every decision ever
// recorded, not just the rolling window.
func (m *EscalationMetrics) OverallRate() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.totalCount == 0 {
		return 0
	}
	return float64(m.totalEscalated) / float64(m.totalCount)
}

// RecalibrationNeeded reports whether the rolling escalation rate has
// dropped below the minimum, a signal that the model may be drifting
// toward overconfidence.
func (m *EscalationMetrics) RecalibrationNeeded() bool {
	m.mu.Lock()
	full := len(m.window) >= m.windowSize
	m.mu.Unlock()
	return full && m.RecentRate() < minEscalationRate
}
