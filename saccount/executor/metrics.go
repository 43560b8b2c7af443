package executor

import "github.com/prometheus/client_golang/prometheus"

var (
	finishedOpsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "axiom_aa",
			Subsystem: "executor",
			Name:      "finished_ops_counter",
			Help:      "The number of finished user operations by terminal phase",
		},
		[]string{"phase"},
	)
	sessionDenialCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "axiom_aa",
			Subsystem: "executor",
			Name:      "session_denial_counter",
			Help:      "The number of session permission denials",
		},
		[]string{"reason"},
	)
	opLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "axiom_aa",
			Subsystem: "executor",
			Name:      "op_latency_seconds",
			Help:      "The end to end latency of user operations",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		},
		[]string{"phase"},
	)
)

func init() {
	prometheus.MustRegister(finishedOpsCounter)
	prometheus.MustRegister(sessionDenialCounter)
	prometheus.MustRegister(opLatency)
}
