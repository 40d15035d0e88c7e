package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all prometheus metrics. A nil *Metrics is valid and
// records nothing, which keeps tests free of registry plumbing.
type Metrics struct {
	CalendarRefreshes *prometheus.CounterVec
	RefreshDuration   prometheus.Histogram
	CachedEvents      prometheus.Gauge
	SampleFallbacks   prometheus.Counter
	SeriesApplied     prometheus.Counter
	ImportRows        *prometheus.CounterVec
	Notifications     *prometheus.CounterVec
	ErrorsCount       *prometheus.CounterVec
}

// New registers the metrics on reg under namespace.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CalendarRefreshes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calendar_refreshes_total",
			Help:      "Calendar cache refresh attempts by result",
		}, []string{"result"}),
		RefreshDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "calendar_refresh_duration_seconds",
			Help:      "Time taken to fetch and store provider events",
			Buckets:   prometheus.DefBuckets,
		}),
		CachedEvents: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "calendar_cached_events",
			Help:      "Events stored by the latest successful refresh",
		}),
		SampleFallbacks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calendar_sample_fallbacks_total",
			Help:      "Reads served from built-in sample events",
		}),
		SeriesApplied: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calendar_series_applied_events_total",
			Help:      "Events updated by apply-to-series",
		}),
		ImportRows: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_rows_total",
			Help:      "CSV import rows by kind and result",
		}, []string{"kind", "result"}),
		Notifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification emails by kind and result",
		}, []string{"kind", "result"}),
		ErrorsCount: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "The total number of errors",
		}, []string{"operation"}),
	}
}

func (m *Metrics) ObserveRefresh(result string, took time.Duration, events int) {
	if m == nil {
		return
	}
	m.CalendarRefreshes.WithLabelValues(result).Inc()
	m.RefreshDuration.Observe(took.Seconds())
	if result == "ok" {
		m.CachedEvents.Set(float64(events))
	}
}

func (m *Metrics) SampleFallback() {
	if m == nil {
		return
	}
	m.SampleFallbacks.Inc()
}

func (m *Metrics) AddSeriesApplied(n int) {
	if m == nil {
		return
	}
	m.SeriesApplied.Add(float64(n))
}

func (m *Metrics) ImportRow(kind, result string) {
	if m == nil {
		return
	}
	m.ImportRows.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) Notification(kind, result string) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) Error(operation string) {
	if m == nil {
		return
	}
	m.ErrorsCount.WithLabelValues(operation).Inc()
}
