package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	DeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promo_deliveries_total",
			Help: "Per-group deliveries by dispatcher and outcome",
		},
		[]string{"dispatcher", "outcome"}, // products|clone_queue|manual , sent|failed
	)

	QueueTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promo_queue_transitions_total",
			Help: "Clone queue rows entering a status",
		},
		[]string{"status"},
	)

	PollCyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promo_poll_cycles_total",
			Help: "Dispatcher poll cycles by result",
		},
		[]string{"dispatcher", "result"}, // idle|worked|skipped|error
	)

	GatewayRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promo_gateway_requests_total",
			Help: "Calls to the messaging gateway by operation and result",
		},
		[]string{"op", "result"}, // status|send , ok|error|no_session|circuit_open
	)
)

var once sync.Once

// MustRegister is safe to call from every command that hosts a component.
func MustRegister(r prometheus.Registerer) {
	once.Do(func() {
		r.MustRegister(
			DeliveriesTotal,
			QueueTransitionsTotal,
			PollCyclesTotal,
			GatewayRequestsTotal,
		)
	})
}
