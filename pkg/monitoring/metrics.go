package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "voice_active_sessions",
			Help: "Number of currently active voice sessions",
		},
	)

	DroppedFrames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voice_dropped_audio_frames_total",
			Help: "Audio frames dropped by the relay under backpressure",
		},
		[]string{"direction"},
	)

	TurnsScored = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voice_turns_scored_total",
			Help: "Conversation turns processed by the scorer",
		},
		[]string{"mode", "outcome"},
	)

	RelayQueueDepth = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "voice_relay_queue_depth",
			Help:    "Observed outbound relay queue depth at enqueue time",
			Buckets: []float64{1, 8, 32, 64, 128, 256},
		},
	)
)

func Init() {
	prometheus.MustRegister(RequestCounter)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(ActiveSessions)
	prometheus.MustRegister(DroppedFrames)
	prometheus.MustRegister(TurnsScored)
	prometheus.MustRegister(RelayQueueDepth)
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
