package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ta",
		Name:      "frames_processed_total",
		Help:      "Total number of frames run through the association engine",
	}, []string{"match_id"})

	DetectionsDiscarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ta",
		Name:      "detections_discarded_total",
		Help:      "Detections dropped before matching",
	}, []string{"reason"}) // low_confidence, malformed

	TracksSpawned = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ta",
		Name:      "tracks_spawned_total",
		Help:      "Tentative tracks created from unmatched detections",
	})

	TracksTerminated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ta",
		Name:      "tracks_terminated_total",
		Help:      "Tracks that exhausted the grace window",
	})

	WindowsScored = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ta",
		Name:      "windows_scored_total",
		Help:      "Action windows scored by the classifier",
	}, []string{"label"})

	WindowsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ta",
		Name:      "windows_dropped_total",
		Help:      "Action windows dropped before the final timeline",
	}, []string{"reason"}) // timeout, unavailable, floor, overlap

	ScoreDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "ta",
		Name:      "score_duration_seconds",
		Help:      "Duration of one classifier call",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	})

	CalibrationResidual = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ta",
		Name:      "calibration_residual_meters",
		Help:      "Mean reprojection residual of the active calibration",
	})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ta",
		Name:      "queue_depth",
		Help:      "Number of pending analysis tasks in queue",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ta",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ta",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
