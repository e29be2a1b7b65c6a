package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	FetchPagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fetch_pages_total",
		Help: "Pages fetched from the external API per data kind",
	}, []string{"kind"})

	FetchRetriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fetch_retries_total",
		Help: "Transient fetch failures that triggered a retry",
	})

	QuotaAbortsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "quota_aborts_total",
		Help: "Days aborted because the shared API quota was exhausted",
	})

	RunsByOutcome = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "etl_runs_total",
		Help: "Finalized ETL runs by outcome",
	}, []string{"kind", "outcome"})

	RunDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "etl_run_duration_seconds",
		Help:    "Duration of one channel/kind ETL run",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	RowsWrittenTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rows_written_total",
		Help: "Rows written to processed tables",
	}, []string{"table"})

	CommentsScoredTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "comments_scored_total",
		Help: "Comments annotated by the scorers",
	}, []string{"scorer"})

	QualityFlagsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quality_flags_total",
		Help: "Data quality gate flags by reason",
	}, []string{"reason"})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Duration of outbound network requests",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 15, 20, 30, 60, 120},
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Count of outbound network requests",
	}, []string{"component", "operation", "target", "status"})
)

// MustRegister registers all collectors.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		FetchPagesTotal,
		FetchRetriesTotal,
		QuotaAbortsTotal,
		RunsByOutcome,
		RunDurationSeconds,
		RowsWrittenTotal,
		CommentsScoredTotal,
		QualityFlagsTotal,
		NetworkRequestDuration,
		NetworkRequestTotal,
	)
}

// StartServer runs an HTTP server with the /metrics endpoint.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	shutdownCtx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-ctx.Done():
		case <-shutdownCtx.Done():
		}
		shutdownTimeout, timeoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer timeoutCancel()
		if err := srv.Shutdown(shutdownTimeout); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: server stopped")
		}
		cancel()
	}()
}

// ObserveNetworkRequest records the duration and status of one outbound
// request.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}

// ObserveRun records one finalized run.
func ObserveRun(kind, outcome string, start time.Time) {
	RunsByOutcome.WithLabelValues(kind, outcome).Inc()
	RunDurationSeconds.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}
