package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the daemon's Prometheus descriptors. Everything registers on
// a dedicated registry so embedding the engine never collides with a host
// process's default registry.
//
// Naming convention: sbh_<subsystem>_<name>_<unit>. Mount paths are bounded
// (a workstation has a handful) so they are safe as labels; candidate paths
// are not and never appear as labels.
type Metrics struct {
	registry *prometheus.Registry

	ScansTotal        prometheus.Counter
	DeletionsTotal    *prometheus.CounterVec // result: ok|failed
	BytesFreedTotal   prometheus.Counter
	ErrorsTotal       *prometheus.CounterVec // code
	PressureLevel     *prometheus.GaugeVec   // mount
	Urgency           *prometheus.GaugeVec   // mount
	BallastAvailable  prometheus.Gauge
	CandidatesScanned prometheus.Counter
	TickDuration      prometheus.Histogram
}

// NewMetrics builds and registers the descriptor set.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		ScansTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sbh_scanner_scans_total",
			Help: "Completed walker passes.",
		}),
		DeletionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sbh_deleter_deletions_total",
			Help: "Deletion attempts by result.",
		}, []string{"result"}),
		BytesFreedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sbh_deleter_bytes_freed_total",
			Help: "Bytes reclaimed by deletions.",
		}),
		ErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sbh_errors_total",
			Help: "Errors by stable code.",
		}, []string{"code"}),
		PressureLevel: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sbh_pressure_level",
			Help: "Pressure level per mount (0=green .. 4=critical).",
		}, []string{"mount"}),
		Urgency: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sbh_pressure_urgency",
			Help: "Controller urgency per mount in [0,1].",
		}, []string{"mount"}),
		BallastAvailable: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sbh_ballast_available_files",
			Help: "Live ballast files in the pool.",
		}),
		CandidatesScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sbh_scanner_candidates_total",
			Help: "Candidates emitted by the walker.",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sbh_daemon_tick_duration_seconds",
			Help:    "Wall-clock duration of one daemon tick.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
	}
	registry.MustRegister(
		m.ScansTotal, m.DeletionsTotal, m.BytesFreedTotal, m.ErrorsTotal,
		m.PressureLevel, m.Urgency, m.BallastAvailable, m.CandidatesScanned,
		m.TickDuration,
	)
	return m
}

// Serve exposes /metrics on addr until ctx is done. Bind to loopback; the
// endpoint has no auth.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
