package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chanrpc",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by channel transport, route and status.",
		},
		[]string{"transport", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "chanrpc",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"transport", "method", "path", "status"},
	)
	rpcCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chanrpc",
			Subsystem: "rpc",
			Name:      "calls_total",
			Help:      "Answered calls by procedure and protocol code.",
		},
		[]string{"iface", "method", "code"},
	)
	rpcDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "chanrpc",
			Subsystem: "rpc",
			Name:      "call_duration_seconds",
			Help:      "Procedure run time in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"iface", "method"},
	)
	channelsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "chanrpc",
			Name:      "channels_active",
			Help:      "Open channels.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, rpcCalls, rpcDuration, channelsActive)
	})
}

func RecordHTTPRequest(transport, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(transport, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(transport, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordCall(iface, method string, code int, duration time.Duration) {
	RegisterMetrics()
	rpcCalls.WithLabelValues(iface, method, strconv.Itoa(code)).Inc()
	rpcDuration.WithLabelValues(iface, method).Observe(duration.Seconds())
}

// Recorder feeds channel lifecycle and call outcomes into the process
// metrics. The zero value is ready to use.
type Recorder struct{}

func (Recorder) ChannelOpened() {
	RegisterMetrics()
	channelsActive.Inc()
}

func (Recorder) ChannelClosed() {
	RegisterMetrics()
	channelsActive.Dec()
}

func (Recorder) ObserveCall(iface, method string, code int, d time.Duration) {
	RecordCall(iface, method, code, d)
}
