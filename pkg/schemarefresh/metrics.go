// Copyright (C) 2025 ScyllaDB

package schemarefresh

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/scylladb/cql-schema-metadata/pkg/schema"
)

const metricsNamespace = "cql_schema"

// PrometheusObserver exports refresh outcomes as Prometheus metrics.
type PrometheusObserver struct {
	refreshes        *prometheus.CounterVec
	refreshDuration  *prometheus.HistogramVec
	refreshesRunning prometheus.Gauge
	decodeErrors     prometheus.Counter
	keyspaces        prometheus.Gauge
	version          prometheus.Gauge
	lastSuccess      prometheus.Gauge
}

var _ Observer = &PrometheusObserver{}

func NewPrometheusObserver(reg prometheus.Registerer) *PrometheusObserver {
	return &PrometheusObserver{
		refreshes: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "refreshes_total",
			Help:      "Number of finished schema refresh passes by result.",
		}, []string{"result"}),
		refreshDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "refresh_duration_seconds",
			Help:      "Time taken by schema refresh passes by result.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14),
		}, []string{"result"}),
		refreshesRunning: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "refresh_in_progress",
			Help:      "Whether a schema refresh pass is running.",
		}),
		decodeErrors: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "decode_errors_total",
			Help:      "Number of schema records skipped or degraded because they couldn't be decoded.",
		}),
		keyspaces: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "snapshot_keyspaces",
			Help:      "Number of keyspaces in the published schema snapshot.",
		}),
		version: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "snapshot_version",
			Help:      "Version of the published schema snapshot.",
		}),
		lastSuccess: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "last_successful_refresh_timestamp_seconds",
			Help:      "Unix time of the last successful schema refresh.",
		}),
	}
}

func (o *PrometheusObserver) RefreshStarted() {
	o.refreshesRunning.Set(1)
}

func (o *PrometheusObserver) RefreshSucceeded(snap *schema.Snapshot, d time.Duration) {
	o.refreshesRunning.Set(0)
	o.refreshes.WithLabelValues("success").Inc()
	o.refreshDuration.WithLabelValues("success").Observe(d.Seconds())
	o.keyspaces.Set(float64(snap.Count()))
	o.version.Set(float64(snap.Version()))
	o.lastSuccess.SetToCurrentTime()
}

func (o *PrometheusObserver) RefreshFailed(err error, d time.Duration) {
	o.refreshesRunning.Set(0)
	o.refreshes.WithLabelValues("failure").Inc()
	o.refreshDuration.WithLabelValues("failure").Observe(d.Seconds())
}

func (o *PrometheusObserver) RefreshDiscarded(d time.Duration) {
	o.refreshesRunning.Set(0)
	o.refreshes.WithLabelValues("discarded").Inc()
}

func (o *PrometheusObserver) DecodeErrors(errs []error) {
	o.decodeErrors.Add(float64(len(errs)))
}
