// Package metrics exposes the gateway's Prometheus collectors.
package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	DataPointsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tuya_air_datapoints_total",
		Help: "Data points translated, by profile and outcome",
	}, []string{"profile", "outcome"})

	FramesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tuya_air_frames_total",
		Help: "Vendor frames received, by source",
	}, []string{"source"})

	FrameErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tuya_air_frame_errors_total",
		Help: "Vendor frames that failed to decode, by source",
	}, []string{"source"})

	Devices = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tuya_air_devices",
		Help: "Number of registered devices",
	})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tuya_air_http_requests_total",
		Help: "HTTP requests served, by status code",
	}, []string{"code"})

	HTTPRequestDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tuya_air_http_request_duration_seconds",
		Help:    "Duration of HTTP request handling in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// Registry is private so tests and embedders do not collide with the default registerer.
	Registry = prometheus.NewRegistry()

	registerOnce sync.Once
)

func init() {
	Init()
}

// Init registers all collectors. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		Registry.MustRegister(
			DataPointsTotal,
			FramesTotal,
			FrameErrorsTotal,
			Devices,
			HTTPRequestsTotal,
			HTTPRequestDuration,
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	})
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}

// ObserveDataPoint counts one translation outcome.
func ObserveDataPoint(profile, outcome string) {
	DataPointsTotal.WithLabelValues(profile, outcome).Inc()
}

// ObserveFrame counts a received frame, and a decode error when err is non-nil.
func ObserveFrame(source string, err error) {
	FramesTotal.WithLabelValues(source).Inc()
	if err != nil {
		FrameErrorsTotal.WithLabelValues(source).Inc()
	}
}

// HTTPMiddleware counts requests and records their latency.
func HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		HTTPRequestDuration.Observe(time.Since(start).Seconds())
		HTTPRequestsTotal.WithLabelValues(strconv.Itoa(rec.status)).Inc()
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer (websocket hijack).
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Hijack passes connection takeover through for WebSocket upgrades.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer %T cannot hijack", r.ResponseWriter)
	}
	r.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}
