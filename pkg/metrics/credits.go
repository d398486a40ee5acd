package metrics

import "github.com/prometheus/client_golang/prometheus"

// CreditMetrics tracks credit movements on user balances.
type CreditMetrics struct {
	granted  prometheus.Counter
	refunded prometheus.Counter
	consumed prometheus.Counter
	rejected *prometheus.CounterVec
}

func NewCreditMetrics(reg prometheus.Registerer) *CreditMetrics {
	if reg == nil {
		return &CreditMetrics{}
	}
	granted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "credits_granted_total",
		Help: "Credits added to balances by paid orders.",
	})
	refunded := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "credits_refunded_total",
		Help: "Credits removed from balances by refunds.",
	})
	consumed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "credits_consumed_total",
		Help: "Credits spent by users.",
	})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "credits_consume_rejected_total",
		Help: "Consume attempts rejected by reason.",
	}, []string{"reason"})
	reg.MustRegister(granted, refunded, consumed, rejected)
	return &CreditMetrics{
		granted:  granted,
		refunded: refunded,
		consumed: consumed,
		rejected: rejected,
	}
}

func (m *CreditMetrics) AddGranted(n int) {
	if m == nil || m.granted == nil || n <= 0 {
		return
	}
	m.granted.Add(float64(n))
}

func (m *CreditMetrics) AddRefunded(n int) {
	if m == nil || m.refunded == nil || n <= 0 {
		return
	}
	m.refunded.Add(float64(n))
}

func (m *CreditMetrics) AddConsumed(n int) {
	if m == nil || m.consumed == nil || n <= 0 {
		return
	}
	m.consumed.Add(float64(n))
}

func (m *CreditMetrics) IncRejected(reason string) {
	if m == nil || m.rejected == nil {
		return
	}
	m.rejected.WithLabelValues(normalizeLabel(reason)).Inc()
}
