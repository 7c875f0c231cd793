package stats

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SimulationMetrics are optional: a simulator without metrics attached
// skips every increment. There is no exposition endpoint; tests read
// the collectors directly.
type SimulationMetrics struct {
	Ticks      prometheus.Counter
	Dispatched *prometheus.CounterVec
	Responses  prometheus.Counter
	MsgDelay   prometheus.Observer
	InFlight   prometheus.Gauge
}

func NewSimulationMetrics(reg prometheus.Registerer) *SimulationMetrics {
	sm := &SimulationMetrics{
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "paxsim",
			Name:      "ticks_total",
			Help:      "Virtual ticks elapsed.",
		}),
		Dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "paxsim",
			Name:      "messages_dispatched_total",
			Help:      "Messages delivered to their destination, by body type.",
		}, []string{"body"}),
		Responses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "paxsim",
			Name:      "responses_total",
			Help:      "Responses returned to clients.",
		}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "paxsim",
			Name:      "messages_in_flight",
			Help:      "Messages queued for delivery.",
		}),
	}
	delay := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "paxsim",
		Name:      "message_delay_ticks",
		Help:      "Random per-message transit delay.",
		Buckets:   prometheus.LinearBuckets(0, 1, 6),
	})
	sm.MsgDelay = delay

	reg.MustRegister(sm.Ticks, sm.Dispatched, sm.Responses, delay, sm.InFlight)
	return sm
}
