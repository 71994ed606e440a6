package monitor

import (
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Metrics represents all the application metrics
type Metrics struct {
	// Extraction metrics
	ExtractionsTotal   *prometheus.CounterVec
	ExtractionDuration *prometheus.HistogramVec

	// Cache metrics
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	// Browser metrics
	BrowserLaunches prometheus.Counter
	BrowserFailures prometheus.Counter

	// System metrics
	Goroutines  prometheus.Gauge
	MemoryUsage prometheus.Gauge

	// Active extractions
	ActiveExtractions prometheus.Gauge
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		ExtractionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fb_video_server_extractions_total",
				Help: "Total number of extraction attempts",
			},
			[]string{"strategy", "outcome"},
		),

		ExtractionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fb_video_server_extraction_duration_seconds",
				Help:    "Time spent extracting videos",
				Buckets: []float64{1, 5, 10, 20, 30, 60, 120},
			},
			[]string{"strategy"},
		),

		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fb_video_server_cache_hits_total",
			Help: "Total number of extraction cache hits",
		}),

		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fb_video_server_cache_misses_total",
			Help: "Total number of extraction cache misses",
		}),

		BrowserLaunches: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fb_video_server_browser_launches_total",
			Help: "Total number of browser launches",
		}),

		BrowserFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fb_video_server_browser_failures_total",
			Help: "Total number of browser launch or navigation failures",
		}),

		Goroutines: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "fb_video_server_goroutines",
			Help: "Number of goroutines",
		}),

		MemoryUsage: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "fb_video_server_memory_usage_bytes",
			Help: "Memory usage in bytes",
		}),

		ActiveExtractions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "fb_video_server_active_extractions",
			Help: "Number of extractions in flight",
		}),
	}
}

// Monitor represents the monitoring system
type Monitor struct {
	metrics  *Metrics
	logger   zerolog.Logger
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewMonitor creates a new monitor instance
func NewMonitor() *Monitor {
	return &Monitor{
		metrics:  NewMetrics(),
		logger:   zerolog.New(os.Stdout).With().Timestamp().Str("component", "monitor").Logger(),
		stopChan: make(chan struct{}),
	}
}

// Start starts the monitoring system
func (m *Monitor) Start() {
	m.wg.Add(1)
	go m.collectSystemMetrics()

	m.logger.Info().Msg("Monitoring system started")
}

// Stop stops the monitoring system
func (m *Monitor) Stop() {
	close(m.stopChan)
	m.wg.Wait()

	m.logger.Info().Msg("Monitoring system stopped")
}

// collectSystemMetrics collects system metrics periodically
func (m *Monitor) collectSystemMetrics() {
	defer m.wg.Done()

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.metrics.Goroutines.Set(float64(runtime.NumGoroutine()))

			var memStats runtime.MemStats
			runtime.ReadMemStats(&memStats)
			m.metrics.MemoryUsage.Set(float64(memStats.Alloc))

		case <-m.stopChan:
			return
		}
	}
}

// RecordExtractionStart records the start of an extraction
func (m *Monitor) RecordExtractionStart() {
	m.metrics.ActiveExtractions.Inc()
}

// RecordExtraction records a finished extraction attempt
func (m *Monitor) RecordExtraction(strategy, outcome string, duration time.Duration) {
	m.metrics.ExtractionsTotal.WithLabelValues(strategy, outcome).Inc()
	m.metrics.ExtractionDuration.WithLabelValues(strategy).Observe(duration.Seconds())
	m.metrics.ActiveExtractions.Dec()
}

// RecordCacheHit records an extraction served from cache
func (m *Monitor) RecordCacheHit() {
	m.metrics.CacheHits.Inc()
}

// RecordCacheMiss records an extraction that missed the cache
func (m *Monitor) RecordCacheMiss() {
	m.metrics.CacheMisses.Inc()
}

// RecordBrowserLaunch records a browser launch
func (m *Monitor) RecordBrowserLaunch() {
	m.metrics.BrowserLaunches.Inc()
}

// RecordBrowserFailure records a browser launch or navigation failure
func (m *Monitor) RecordBrowserFailure() {
	m.metrics.BrowserFailures.Inc()
}

// GetMetrics returns all metrics
func (m *Monitor) GetMetrics() *Metrics {
	return m.metrics
}

// HealthCheck performs a health check
func (m *Monitor) HealthCheck() map[string]interface{} {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return map[string]interface{}{
		"goroutines":   runtime.NumGoroutine(),
		"memory_usage": memStats.Alloc,
		"memory_sys":   memStats.Sys,
		"gc_cycles":    memStats.NumGC,
	}
}
