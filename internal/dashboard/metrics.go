package dashboard

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/linnemanlabs/pcsboard/internal/webhook"
)

// Metrics holds Prometheus metrics for the dashboard subsystem.
type Metrics struct {
	FetchesTotal      *prometheus.CounterVec
	FetchDuration     *prometheus.HistogramVec
	FetchRetries      prometheus.Counter
	CacheTotal        *prometheus.CounterVec
	Vessels           prometheus.Gauge
	AlertsByType      *prometheus.GaugeVec
	CategoryVessels   *prometheus.GaugeVec
	CriticalAlerts    prometheus.Gauge
	SnapshotAge       prometheus.Gauge
	NotificationsSent *prometheus.CounterVec
	DBQueryDuration   *prometheus.HistogramVec
}

// NewMetrics registers and returns dashboard metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FetchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pcsboard_snapshot_fetches_total",
			Help: "Total PCS webhook snapshot fetches by outcome.",
		}, []string{"outcome"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pcsboard_snapshot_fetch_duration_seconds",
			Help:    "Duration of PCS webhook fetches in seconds, retries included.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms .. ~100s
		}, []string{"outcome", "shape"}),
		FetchRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pcsboard_snapshot_fetch_retries_total",
			Help: "Total retried PCS webhook requests.",
		}),
		CacheTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pcsboard_snapshot_cache_total",
			Help: "Snapshot cache lookups by result.",
		}, []string{"result"}),
		Vessels: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pcsboard_vessels",
			Help: "Vessels in the current snapshot.",
		}),
		AlertsByType: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pcsboard_alerts",
			Help: "Alerts in the current snapshot by type.",
		}, []string{"type"}),
		CategoryVessels: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pcsboard_category_vessels",
			Help: "Vessels per operational-status category in the current snapshot.",
		}, []string{"category"}),
		CriticalAlerts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pcsboard_critical_alerts",
			Help: "Critical alerts (access denied plus documental blocks) in the current snapshot.",
		}),
		SnapshotAge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pcsboard_snapshot_generated_timestamp_seconds",
			Help: "Unix time the current snapshot was generated upstream.",
		}),
		NotificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pcsboard_notifications_total",
			Help: "Report notifications by outcome.",
		}, []string{"outcome"}),
		DBQueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pcsboard_db_query_duration_seconds",
			Help:    "Duration of PostgreSQL queries in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms .. ~1s
		}, []string{"operation", "route", "outcome"}),
	}

	reg.MustRegister(
		m.FetchesTotal,
		m.FetchDuration,
		m.FetchRetries,
		m.CacheTotal,
		m.Vessels,
		m.AlertsByType,
		m.CategoryVessels,
		m.CriticalAlerts,
		m.SnapshotAge,
		m.NotificationsSent,
		m.DBQueryDuration,
	)

	return m
}

// WebhookHooks returns webhook.Hooks that feed the fetch metrics.
func (m *Metrics) WebhookHooks() webhook.Hooks {
	return webhook.Hooks{
		OnFetch: func(outcome string, shape webhook.Shape, d time.Duration) {
			m.FetchesTotal.WithLabelValues(outcome).Inc()
			m.FetchDuration.WithLabelValues(outcome, shape.String()).Observe(d.Seconds())
		},
		OnRetry: func(int, error) {
			m.FetchRetries.Inc()
		},
	}
}

// ObserveQuery records one database query; it satisfies postgres.QueryObserver.
func (m *Metrics) ObserveQuery(_ context.Context, operation, route, outcome string, dur time.Duration) {
	m.DBQueryDuration.WithLabelValues(operation, route, outcome).Observe(dur.Seconds())
}

func (m *Metrics) cacheResult(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheTotal.WithLabelValues("hit").Inc()
		return
	}
	m.CacheTotal.WithLabelValues("miss").Inc()
}

func (m *Metrics) notification(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.NotificationsSent.WithLabelValues("error").Inc()
		return
	}
	m.NotificationsSent.WithLabelValues("sent").Inc()
}

// observeSnapshot replaces the snapshot gauges with the new view.
func (m *Metrics) observeSnapshot(v *View) {
	if m == nil {
		return
	}
	m.Vessels.Set(float64(len(v.Snapshot.Vessels)))
	m.CriticalAlerts.Set(float64(v.KPIs.CriticalAlerts))
	m.SnapshotAge.Set(float64(v.Snapshot.GeneratedAt.Unix()))

	m.AlertsByType.Reset()
	for _, row := range v.Alerts.Types {
		m.AlertsByType.WithLabelValues(row.Type).Set(float64(row.Count))
	}
	m.CategoryVessels.Reset()
	for _, name := range v.Categories.Names() {
		m.CategoryVessels.WithLabelValues(name).Set(float64(v.Categories.Count(name)))
	}
}
