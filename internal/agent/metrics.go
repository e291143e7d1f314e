package agent

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts assistant requests.
type Metrics struct {
	Replies       *prometheus.CounterVec
	ReplyDuration prometheus.Histogram
}

// NewMetrics registers the assistant metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Replies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pcsboard_agent_replies_total",
			Help: "Assistant replies by outcome.",
		}, []string{"outcome"}),
		ReplyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pcsboard_agent_reply_duration_seconds",
			Help:    "Time spent waiting for the assistant provider.",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
	}
	reg.MustRegister(m.Replies, m.ReplyDuration)
	return m
}

func (m *Metrics) observe(failed bool, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if failed {
		outcome = "error"
	}
	m.Replies.WithLabelValues(outcome).Inc()
	m.ReplyDuration.Observe(d.Seconds())
}
