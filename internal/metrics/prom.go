// ABOUTME: Prometheus collectors for request outcomes, framing errors and live sessions
// ABOUTME: Registered once by the daemon and served from the management listener

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "php_integrator_build_info",
			Help: "Build information",
		},
		[]string{"version"},
	)

	requests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "php_integrator_requests_total",
			Help: "JSON-RPC requests answered, by outcome and error code",
		},
		[]string{"outcome", "code"},
	)

	requestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "php_integrator_request_duration_seconds",
			Help:    "Time from a complete frame to its response being written",
			Buckets: prometheus.DefBuckets,
		},
	)

	framingErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "php_integrator_framing_errors_total",
			Help: "Frames discarded because their header was malformed",
		},
		[]string{"reason"},
	)

	bytesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "php_integrator_bytes_received_total",
			Help: "Raw bytes read from client connections",
		},
		[]string{"transport"},
	)

	activeSessions = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "php_integrator_active_sessions",
			Help: "Connections currently open",
		},
		[]string{"transport"},
	)

	commandWait = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "php_integrator_command_wait_seconds",
			Help:    "Time a request waited for a free command slot",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Register registers all metrics with the provided registerer.
func Register(r prometheus.Registerer) {
	r.MustRegister(buildInfo, requests, requestDuration, framingErrors, bytesReceived, activeSessions, commandWait)
}

// SetBuildInfo sets the build info metric.
func SetBuildInfo(version string) {
	buildInfo.WithLabelValues(version).Set(1)
}

// RecordRequest counts an answered request. code is 0 for success.
func RecordRequest(code int, d time.Duration) {
	outcome, label := "success", ""
	if code != 0 {
		outcome, label = "error", strconv.Itoa(code)
	}
	requests.WithLabelValues(outcome, label).Inc()
	requestDuration.Observe(d.Seconds())
}

// RecordFramingError counts a discarded frame.
func RecordFramingError(reason string) {
	framingErrors.WithLabelValues(reason).Inc()
}

// RecordBytesReceived counts raw bytes read on a transport.
func RecordBytesReceived(transport string, n int) {
	bytesReceived.WithLabelValues(transport).Add(float64(n))
}

// SessionOpened and SessionClosed track live connections per transport.
func SessionOpened(transport string) {
	activeSessions.WithLabelValues(transport).Inc()
}

func SessionClosed(transport string) {
	activeSessions.WithLabelValues(transport).Dec()
}

// ObserveCommandWait records how long a request queued for a command slot.
func ObserveCommandWait(d time.Duration) {
	commandWait.Observe(d.Seconds())
}
