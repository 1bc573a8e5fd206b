// Package metrics expone contadores de asignacion y rebalanceo en Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Prometheus struct {
	assignments *prometheus.CounterVec
	promotions  prometheus.Counter
	rebalances  *prometheus.CounterVec
	rebalanceD  prometheus.Histogram
	reserveSize *prometheus.GaugeVec
}

// NewPrometheus registra los colectores en reg (prometheus.DefaultRegisterer si es nil).
func NewPrometheus(reg prometheus.Registerer, namespace string) *Prometheus {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "squadbot"
	}
	p := &Prometheus{
		assignments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "allocation",
			Name:      "assignments_total",
			Help:      "Assignment attempts by outcome (placed, substituted, reserved).",
		}, []string{"outcome"}),
		promotions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "allocation",
			Name:      "reserve_promotions_total",
			Help:      "Members promoted out of the reserve pool.",
		}),
		rebalances: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rebalance",
			Name:      "runs_total",
			Help:      "Rebalance runs by result.",
		}, []string{"result"}),
		rebalanceD: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rebalance",
			Name:      "duration_seconds",
			Help:      "Rebalance wall time.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}),
		reserveSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "allocation",
			Name:      "reserve_size",
			Help:      "Members currently in the reserve pool.",
		}, []string{"guild"}),
	}
	reg.MustRegister(p.assignments, p.promotions, p.rebalances, p.rebalanceD, p.reserveSize)
	return p
}

func (p *Prometheus) ObserveAssign(outcome string) {
	p.assignments.WithLabelValues(outcome).Inc()
}

func (p *Prometheus) ObservePromotions(n int) {
	if n > 0 {
		p.promotions.Add(float64(n))
	}
}

func (p *Prometheus) ObserveRebalance(d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	p.rebalances.WithLabelValues(result).Inc()
	p.rebalanceD.Observe(d.Seconds())
}

func (p *Prometheus) SetReserveSize(guildID string, n int) {
	p.reserveSize.WithLabelValues(guildID).Set(float64(n))
}
