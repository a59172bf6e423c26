// Package metrics exposes Prometheus metrics for the pool service.
package metrics

import (
	"errors"
	"net/http"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"carbonPool/internal/pool"
)

// Outcome labels for operation counters.
const (
	OutcomeOK           = "ok"
	OutcomeValidation   = "validation"
	OutcomeSolvency     = "solvency"
	OutcomeReentrant    = "reentrant"
	OutcomeBusy         = "busy"
	OutcomeUnauthorized = "unauthorized"
	OutcomeError        = "error"
)

// Metrics holds the pool service metrics.
type Metrics struct {
	Operations   *prometheus.CounterVec
	CreditVolume *prometheus.CounterVec
	FeesCharged  prometheus.Counter

	ReserveBalance  prometheus.Gauge
	TotalShares     prometheus.Gauge
	AccumulatedFees prometheus.Gauge
	LastSequence    prometheus.Gauge

	ArchiveDropped prometheus.Counter

	gatherer prometheus.Gatherer
}

// New registers the metrics with reg. A nil reg uses a private registry.
func New(namespace string, reg *prometheus.Registry) *Metrics {
	if namespace == "" {
		namespace = "carbonpool"
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		Operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "operations_total",
			Help:      "Pool operations by kind and outcome",
		}, []string{"kind", "outcome"}),
		CreditVolume: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "credit_volume_total",
			Help:      "Credit units traded, by side",
		}, []string{"side"}),
		FeesCharged: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "fees_charged_total",
			Help:      "Reserve currency charged as trade fees",
		}),
		ReserveBalance: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "reserve_balance",
			Help:      "Accounted reserve balance",
		}),
		TotalShares: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "total_shares",
			Help:      "Outstanding liquidity shares",
		}),
		AccumulatedFees: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "accumulated_fees",
			Help:      "Lifetime fees retained by the pool",
		}),
		LastSequence: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "last_event_sequence",
			Help:      "Sequence number of the last committed event",
		}),
		ArchiveDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "archive",
			Name:      "dropped_total",
			Help:      "Event records dropped because the archive queue was full",
		}),
		gatherer: reg,
	}
}

// Observe returns a pool listener that records each committed event.
// Gauges are float approximations of the uint256 amounts.
func (m *Metrics) Observe(p *pool.Pool) pool.Listener {
	return func(ev pool.Event) {
		m.Operations.WithLabelValues(string(ev.Kind), OutcomeOK).Inc()
		switch ev.Kind {
		case pool.EventSell, pool.EventBuy:
			m.CreditVolume.WithLabelValues(string(ev.Kind)).Add(toFloat(ev.Credits))
			m.FeesCharged.Add(toFloat(ev.Fee))
		}
		m.SetState(p.State())
	}
}

// SetState updates the state gauges.
func (m *Metrics) SetState(st pool.State) {
	m.ReserveBalance.Set(toFloat(st.ReserveBalance))
	m.TotalShares.Set(toFloat(st.TotalShares))
	m.AccumulatedFees.Set(toFloat(st.AccumulatedFees))
	m.LastSequence.Set(float64(st.Sequence))
}

// ObserveFailure counts a rejected operation.
func (m *Metrics) ObserveFailure(kind pool.EventKind, err error) {
	m.Operations.WithLabelValues(string(kind), Outcome(err)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Outcome classifies an operation error.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, pool.ErrReentrant):
		return OutcomeReentrant
	case errors.Is(err, pool.ErrBusy):
		return OutcomeBusy
	case errors.Is(err, pool.ErrNotOwner):
		return OutcomeUnauthorized
	case pool.IsValidation(err):
		return OutcomeValidation
	case pool.IsSolvency(err):
		return OutcomeSolvency
	default:
		return OutcomeError
	}
}

func toFloat(v *uint256.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := v.ToBig().Float64()
	return f
}
