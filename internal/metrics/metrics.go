package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Queue Metrics
var (
	QueueDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameQueueDelivered,
			Help: HelpTextQueueDelivered,
		},
		[]string{LabelQueue},
	)

	QueueFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameQueueFailures,
			Help: HelpTextQueueFailures,
		},
		[]string{LabelQueue, LabelKind},
	)

	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: MetricNameQueueDepth,
			Help: HelpTextQueueDepth,
		},
		[]string{LabelQueue},
	)

	DrainDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    MetricNameDrainDuration,
			Help:    HelpTextDrainDuration,
			Buckets: DrainLatencyBuckets,
		},
		[]string{LabelQueue},
	)
)

// Connectivity Metrics
var (
	Online = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: MetricNameOnline,
			Help: HelpTextOnline,
		},
	)

	SyncState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: MetricNameSyncStatus,
			Help: HelpTextSyncStatus,
		},
	)
)

// Media Metrics
var (
	MediaBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameMediaBytes,
			Help: HelpTextMediaBytes,
		},
		[]string{LabelStage},
	)
)
