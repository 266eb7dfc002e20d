// Package metrics exposes the Prometheus collectors the decision core
// publishes through, standing in for the metric-publishing collaborator
// named out of scope in spec §1 -- only the Recorder interface it
// presents to the core is part of this module's surface.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder is the interface the decision core calls into. Nothing in
// internal/audit, internal/policy, or internal/decisionflow depends on
// Prometheus directly -- only this package does.
type Recorder interface {
	ObserveAuditQueueDepth(depth int)
	IncAuditSyncFallback()
	IncAuditDropped()
	IncDecision(action string, decidedBy string)
	ObserveEscalationRate(rate float64)
}

// Prometheus is the production Recorder, registered on construction.
type Prometheus struct {
	queueDepth      prometheus.Gauge
	syncFallback    prometheus.Counter
	dropped         prometheus.Counter
	decisions       *prometheus.CounterVec
	escalationRate  prometheus.Gauge
}

// NewPrometheus constructs and registers the decision core's metrics
// against reg.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	p := &Prometheus{
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sentrydesk_audit_queue_depth",
			Help: "Current depth of the audit ledger's bounded submission queue.",
		}),
		syncFallback: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentrydesk_audit_sync_fallback_total",
			Help: "Number of audit submissions that fell back to a synchronous write because the queue was full.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentrydesk_audit_dropped_total",
			Help: "Number of audit submissions dropped because the queue was full and synchronous fallback was disabled.",
		}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentrydesk_decisions_total",
			Help: "Number of final decisions, by action and decided_by.",
		}, []string{"action", "decided_by"}),
		escalationRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sentrydesk_escalation_rate",
			Help: "Rolling escalation rate tracked by the confidence calibrator's drift monitor.",
		}),
	}
	reg.MustRegister(p.queueDepth, p.syncFallback, p.dropped, p.decisions, p.escalationRate)
	return p
}

func (p *Prometheus) ObserveAuditQueueDepth(depth int)        { p.queueDepth.Set(float64(depth)) }
func (p *Prometheus) IncAuditSyncFallback()                   { p.syncFallback.Inc() }
func (p *Prometheus) IncAuditDropped()                        { p.dropped.Inc() }
func (p *Prometheus) IncDecision(action, decidedBy string)    { p.decisions.WithLabelValues(action, decidedBy).Inc() }
func (p *Prometheus) ObserveEscalationRate(rate float64)      { p.escalationRate.Set(rate) }

// Noop discards everything. Used in tests and whenever metrics are
// disabled by configuration.
type Noop struct{}

func (Noop) ObserveAuditQueueDepth(int)     {}
func (Noop) IncAuditSyncFallback()          {}
func (Noop) IncAuditDropped()               {}
func (Noop) IncDecision(string, string)     {}
func (Noop) ObserveEscalationRate(float64)  {}
