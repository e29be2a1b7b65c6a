package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"yt-pulse/internal/adapters/repo"
	"yt-pulse/internal/domain"
	"yt-pulse/internal/infra/config"
	"yt-pulse/internal/infra/db"
	applog "yt-pulse/internal/infra/log"
	"yt-pulse/internal/infra/metrics"
	"yt-pulse/internal/infra/queue"
)

// The scheduler enqueues one ingest job per UTC day. The schedule mark
// makes the enqueue idempotent across restarts and replicas; the run
// ledger downstream makes even a duplicate job harmless.
func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), ":9090")

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("scheduler: database connection failed")
	}
	defer pool.Close()

	repoAdapter := repo.NewPostgres(pool)

	if cfg.RabbitURL == "" {
		logger.Fatal().Msg("scheduler: RabbitMQ address is not set (RABBITMQ_URL)")
	}
	ingestQueue, err := queue.NewRabbitIngestQueue(cfg.RabbitURL, cfg.Queues.Ingest)
	if err != nil {
		logger.Fatal().Err(err).Msg("scheduler: queue initialization failed")
	}
	defer ingestQueue.Close()

	logger.Info().Msg("scheduler: started")

	enqueueToday(ctx, logger, repoAdapter, ingestQueue)
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("scheduler: stopped")
			return
		case <-ticker.C:
			enqueueToday(ctx, logger, repoAdapter, ingestQueue)
		}
	}
}

func enqueueToday(ctx context.Context, logger zerolog.Logger, marks domain.ScheduleMarkRepo, q domain.IngestQueue) {
	day := time.Now().UTC().Truncate(24 * time.Hour)

	acquired, err := marks.AcquireDay(day)
	if err != nil {
		logger.Error().Err(err).Msg("scheduler: acquire day mark")
		return
	}
	if !acquired {
		return
	}

	job := domain.IngestJob{
		ID:          uuid.NewString(),
		Day:         day,
		Cause:       domain.IngestCauseScheduled,
		RequestedAt: time.Now().UTC(),
	}
	if err := q.Enqueue(ctx, job); err != nil {
		logger.Error().Err(err).Str("job_id", job.ID).Msg("scheduler: enqueue ingest job")
		// Give the mark back, otherwise the day stays claimed with no job
		// in the queue and every later tick is a no-op.
		if relErr := marks.ReleaseDay(day); relErr != nil {
			logger.Error().Err(relErr).Time("day", day).Msg("scheduler: release day mark")
		}
		return
	}
	logger.Info().Str("job_id", job.ID).Time("day", day).Msg("scheduler: daily ingest job enqueued")
}
