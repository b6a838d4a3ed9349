package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Recorder struct {
	ops      *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "garden_operations_total",
			Help: "Plant operations by outcome.",
		}, []string{"op", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "garden_operation_duration_seconds",
			Help:    "Latency of plant operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
	}
	reg.MustRegister(r.ops, r.duration)
	return r
}

// Observe records one operation; result is "ok", "noop", "rejected" or "error".
func (r *Recorder) Observe(op string, result string, d time.Duration) {
	r.ops.WithLabelValues(op, result).Inc()
	r.duration.WithLabelValues(op).Observe(d.Seconds())
}
