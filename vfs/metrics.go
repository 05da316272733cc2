package vfs

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	opsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vfsmux_ops_total",
		Help: "Operations dispatched, by operation name.",
	}, []string{"op"})

	opErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vfsmux_op_errors_total",
		Help: "Operations failed by the dispatcher itself rather than by a backend, by operation name.",
	}, []string{"op"})
)

func countOp(op string) {
	opsTotal.WithLabelValues(op).Inc()
}

// failOp records a dispatcher generated failure and returns err unchanged.
// Backend errors pass through uncounted - they belong to the backend.
func failOp(op string, err error) error {
	opErrorsTotal.WithLabelValues(op).Inc()
	return err
}

// MetricsHandler returns an http.Handler serving the process metrics in
// prometheus exposition format.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
