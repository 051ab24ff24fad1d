package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TasksCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mediafetch_tasks_created_total",
		Help: "Total number of download tasks created",
	})

	TasksCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mediafetch_tasks_completed_total",
		Help: "Total number of tasks that reached the completed state",
	})

	TasksFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mediafetch_tasks_failed_total",
		Help: "Total number of tasks that reached the failed state",
	})

	InfoCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mediafetch_info_cache_hits_total",
		Help: "Total number of info requests served from cache",
	})

	ConversionFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mediafetch_conversion_fallbacks_total",
		Help: "Total number of conversions that fell back from direct streaming to local transcode",
	})

	ConversionsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mediafetch_conversions_failed_total",
		Help: "Total number of conversions that exhausted all transcode strategies",
	})

	DownloadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mediafetch_download_duration_seconds",
		Help:    "Download duration in seconds",
		Buckets: prometheus.DefBuckets,
	})

	FilesSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mediafetch_files_swept_total",
		Help: "Total number of expired files removed by the cleanup sweeper",
	})
)
