package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// VerificationDecisionMetrics counts terminal verification outcomes.
type VerificationDecisionMetrics struct {
	decisions *prometheus.CounterVec
}

// NewVerificationDecisionMetrics registers the decision counters on the
// provided registerer.
func NewVerificationDecisionMetrics(reg prometheus.Registerer) *VerificationDecisionMetrics {
	if reg == nil {
		return &VerificationDecisionMetrics{}
	}
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "verification_decisions",
		Help: "Terminal verification decisions by level and outcome.",
	}, []string{"level", "decision"})
	reg.MustRegister(decisions)
	return &VerificationDecisionMetrics{decisions: decisions}
}

// IncApproved increments the approved counter for the given level.
func (m *VerificationDecisionMetrics) IncApproved(level string) {
	if m == nil || m.decisions == nil {
		return
	}
	m.decisions.WithLabelValues(normalizeLabel(level), "approved").Inc()
}

// IncRejected increments the rejected counter for the given level.
func (m *VerificationDecisionMetrics) IncRejected(level string) {
	if m == nil || m.decisions == nil {
		return
	}
	m.decisions.WithLabelValues(normalizeLabel(level), "rejected").Inc()
}
