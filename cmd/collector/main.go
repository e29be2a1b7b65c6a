package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"yt-pulse/internal/adapters/repo"
	"yt-pulse/internal/adapters/scorer"
	"yt-pulse/internal/adapters/youtube"
	"yt-pulse/internal/domain"
	"yt-pulse/internal/infra/cache"
	"yt-pulse/internal/infra/config"
	"yt-pulse/internal/infra/db"
	applog "yt-pulse/internal/infra/log"
	"yt-pulse/internal/infra/metrics"
	"yt-pulse/internal/infra/queue"
	"yt-pulse/internal/usecase/ingest"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), ":9090")

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("collector: database connection failed")
	}
	defer pool.Close()

	repoAdapter := repo.NewPostgres(pool)

	if cfg.RabbitURL == "" {
		logger.Fatal().Msg("collector: RabbitMQ address is not set (RABBITMQ_URL)")
	}
	ingestQueue, err := queue.NewRabbitIngestQueue(cfg.RabbitURL, cfg.Queues.Ingest)
	if err != nil {
		logger.Fatal().Err(err).Msg("collector: queue initialization failed")
	}
	defer ingestQueue.Close()

	var uploadsCache domain.Cache
	if cfg.RedisAddr != "" {
		uploadsCache = cache.NewRedis(goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr}))
	}

	if cfg.YouTube.APIKey == "" {
		logger.Fatal().Msg("collector: YouTube API key is not set (YOUTUBE_API_KEY)")
	}
	source, err := youtube.NewClient(youtube.Config{
		APIKey:           cfg.YouTube.APIKey,
		BaseURL:          cfg.YouTube.BaseURL,
		Timeout:          cfg.YouTube.Timeout,
		RetentionDays:    cfg.RetentionDays,
		CommentsPerVideo: cfg.YouTube.CommentsPerVideo,
		Retry: youtube.RetryConfig{
			MaxAttempts:    cfg.Fetch.MaxAttempts,
			InitialBackoff: cfg.Fetch.InitialBackoff,
			MaxBackoff:     cfg.Fetch.MaxBackoff,
		},
	}, uploadsCache, logger.With().Str("component", "youtube").Logger())
	if err != nil {
		logger.Fatal().Err(err).Msg("collector: youtube client initialization failed")
	}

	if len(cfg.Channels) == 0 {
		logger.Fatal().Msg("collector: channel list is empty (CHANNEL_IDS)")
	}

	service := ingest.NewService(
		repoAdapter, repoAdapter, source, repoAdapter, repoAdapter, repoAdapter, repoAdapter,
		youtube.Normalizer{}, scorer.NewAuthenticity(), scorer.NewSentiment(),
		cfg.Channels, cfg.Annotate.BacklogMax,
		logger.With().Str("component", "ingest").Logger(),
	)

	recovered, err := service.RecoverStale(ctx, cfg.Fetch.StaleRunTimeout)
	if err != nil {
		logger.Fatal().Err(err).Msg("collector: stale run recovery failed")
	}
	if recovered > 0 {
		logger.Warn().Int("runs", recovered).Msg("collector: stale runs finalized as failed")
	}

	worker := &jobWorker{
		log:          logger,
		queue:        ingestQueue,
		statuses:     repoAdapter,
		service:      service,
		backlogBatch: cfg.Annotate.BacklogBatch,
	}

	logger.Info().Msg("collector: consuming ingest jobs")
	worker.Run(ctx)
	logger.Info().Msg("collector: stopped")
}

const maxDeliveryAttempts = 5

type jobOutcome int

const (
	jobOutcomeCompleted jobOutcome = iota
	jobOutcomeRetry
)

type jobWorker struct {
	log          zerolog.Logger
	queue        domain.IngestQueue
	statuses     domain.JobStatusRepo
	service      *ingest.Service
	backlogBatch int
}

func (w *jobWorker) Run(ctx context.Context) {
	for {
		job, ack, err := w.queue.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			w.log.Error().Err(err).Msg("collector: queue receive failed")
			time.Sleep(time.Second)
			continue
		}

		jobLog := w.log.With().
			Str("job_id", job.ID).
			Time("day", job.Day).
			Str("cause", string(job.Cause)).
			Logger()

		if job.ID == "" {
			jobLog.Error().Msg("collector: job without id, acking and skipping")
			if err := ack(true); err != nil {
				jobLog.Error().Err(err).Msg("collector: ack job without id")
			}
			continue
		}

		done, attempt, err := w.statuses.EnsureJob(job.ID)
		if err != nil {
			jobLog.Error().Err(err).Msg("collector: register job attempt")
			if ackErr := ack(false); ackErr != nil {
				jobLog.Error().Err(ackErr).Msg("collector: requeue job after status error")
			}
			time.Sleep(time.Second)
			continue
		}

		jobLog = jobLog.With().Int("attempt", attempt).Logger()

		if done {
			jobLog.Info().Msg("collector: job already processed, acking")
			if err := ack(true); err != nil {
				jobLog.Error().Err(err).Msg("collector: ack processed job")
			}
			continue
		}

		outcome := w.handleJob(ctx, job, jobLog)

		if outcome == jobOutcomeRetry && attempt < maxDeliveryAttempts {
			jobLog.Warn().Msg("collector: job failed, requeueing")
			if err := ack(false); err != nil {
				jobLog.Error().Err(err).Msg("collector: requeue failed job")
			}
			continue
		}
		if outcome == jobOutcomeRetry {
			jobLog.Error().Msg("collector: delivery attempt limit reached, marking job done")
		}

		if err := w.statuses.MarkJobDone(job.ID); err != nil {
			jobLog.Error().Err(err).Msg("collector: mark job done")
			if ackErr := ack(false); ackErr != nil {
				jobLog.Error().Err(ackErr).Msg("collector: requeue job after status error")
			}
			time.Sleep(time.Second)
			continue
		}
		if err := ack(true); err != nil {
			jobLog.Error().Err(err).Msg("collector: ack job")
		}
	}
}

// handleJob runs the daily pipeline and a backlog annotation sweep. The
// run ledger guarantees a redelivered job never refetches finalized work.
func (w *jobWorker) handleJob(ctx context.Context, job domain.IngestJob, jobLog zerolog.Logger) jobOutcome {
	day := job.Day
	if day.IsZero() {
		day = time.Now().UTC()
	}

	if err := w.service.RunDay(ctx, day); err != nil {
		jobLog.Error().Err(err).Msg("collector: pipeline run failed")
		return jobOutcomeRetry
	}

	if _, err := w.service.AnnotateBacklog(ctx, w.backlogBatch); err != nil {
		// The next job sweeps the backlog again; no retry needed.
		jobLog.Warn().Err(err).Msg("collector: backlog annotation sweep failed")
	}

	jobLog.Info().Msg("collector: job finished")
	return jobOutcomeCompleted
}
