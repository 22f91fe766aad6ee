// Package metrics exposes Prometheus collectors for the crawler service.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	crawlerImagesTotal           *prometheus.CounterVec
	crawlerJobsTotal             *prometheus.CounterVec
	crawlerPagesTotal            prometheus.Counter
	crawlerRateLimitDelaySeconds prometheus.Histogram
	crawlerDownloadBytesTotal    prometheus.Counter

	once sync.Once
)

// Init registers the collectors with the default registry. It is safe to
// call multiple times.
func Init() {
	once.Do(func() {
		crawlerImagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_images_total",
				Help: "Total number of image downloads reaching a terminal status.",
			},
			[]string{"status"},
		)
		crawlerJobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_jobs_total",
				Help: "Total number of crawl jobs reaching a terminal status.",
			},
			[]string{"status"},
		)
		crawlerPagesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawler_pages_total",
				Help: "Total number of search result pages processed.",
			},
		)
		crawlerRateLimitDelaySeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "crawler_rate_limit_delay_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
		)
		crawlerDownloadBytesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawler_download_bytes_total",
				Help: "Total number of image bytes written to blob storage.",
			},
		)
	})
}

// ImageFinished records one image reaching a terminal download status.
func ImageFinished(status string) {
	if crawlerImagesTotal != nil {
		crawlerImagesTotal.WithLabelValues(status).Inc()
	}
}

// JobFinished records one crawl job reaching a terminal status.
func JobFinished(status string) {
	if crawlerJobsTotal != nil {
		crawlerJobsTotal.WithLabelValues(status).Inc()
	}
}

// PageProcessed records one fully processed search result page.
func PageProcessed() {
	if crawlerPagesTotal != nil {
		crawlerPagesTotal.Inc()
	}
}

// RateLimitDelay records how long a caller waited at the rate limit gate.
func RateLimitDelay(d time.Duration) {
	if crawlerRateLimitDelaySeconds != nil {
		crawlerRateLimitDelaySeconds.Observe(d.Seconds())
	}
}

// DownloadedBytes records image bytes written to blob storage.
func DownloadedBytes(n int64) {
	if crawlerDownloadBytesTotal != nil {
		crawlerDownloadBytesTotal.Add(float64(n))
	}
}
