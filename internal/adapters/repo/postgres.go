package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"yt-pulse/internal/domain"
	"yt-pulse/internal/infra/metrics"
)

// Postgres implements the storage interfaces on pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ domain.ChannelRepo      = (*Postgres)(nil)
	_ domain.RunLedger        = (*Postgres)(nil)
	_ domain.IngestWriter     = (*Postgres)(nil)
	_ domain.AnnotationWriter = (*Postgres)(nil)
	_ domain.CommentReader    = (*Postgres)(nil)
	_ domain.QualityReader    = (*Postgres)(nil)
	_ domain.RunReporter      = (*Postgres)(nil)
	_ domain.JobStatusRepo    = (*Postgres)(nil)
	_ domain.ScheduleMarkRepo = (*Postgres)(nil)
)

// NewPostgres creates the database adapter.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

func (p *Postgres) connCtxWithParent(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return p.connCtx()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// ---------------------------------------------------------------- channels

// EnsureChannel upserts a configured channel by external id.
func (p *Postgres) EnsureChannel(ctx context.Context, ch domain.Channel) (domain.Channel, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO channels (external_id, title, content_type)
VALUES ($1, $2, $3)
ON CONFLICT (external_id) DO UPDATE
    SET title = COALESCE(NULLIF(EXCLUDED.title, ''), channels.title),
        content_type = COALESCE(NULLIF(EXCLUDED.content_type, ''), channels.content_type)
RETURNING id, external_id, title, content_type
`, ch.ExternalID, ch.Title, ch.ContentType).Scan(&ch.ID, &ch.ExternalID, &ch.Title, &ch.ContentType)
	metrics.ObserveNetworkRequest("postgres", "channels_upsert", "channels", start, err)
	if err != nil {
		return domain.Channel{}, fmt.Errorf("ensure channel %s: %w", ch.ExternalID, err)
	}
	return ch, nil
}

// ListChannels returns all registered channels.
func (p *Postgres) ListChannels(ctx context.Context) ([]domain.Channel, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, external_id, title, content_type FROM channels ORDER BY id
`)
	metrics.ObserveNetworkRequest("postgres", "channels_list", "channels", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Channel
	for rows.Next() {
		var ch domain.Channel
		if err := rows.Scan(&ch.ID, &ch.ExternalID, &ch.Title, &ch.ContentType); err != nil {
			return nil, err
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

// -------------------------------------------------------------- run ledger

// AdmitRun performs the atomic check-and-insert behind the one-attempt-per-
// day policy. The unique constraint, not an in-process lock, is the
// linearization point, so the guarantee survives process restarts.
func (p *Postgres) AdmitRun(ctx context.Context, channelID int64, kind domain.DataKind, day time.Time) (domain.EtlRun, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	day = day.UTC().Truncate(24 * time.Hour)
	run := domain.EtlRun{ChannelID: channelID, Kind: kind, RunDate: day, State: domain.RunRunning}

	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO etl_runs (channel_id, data_kind, run_date, state, started_at)
VALUES ($1, $2, $3, 'running', now())
ON CONFLICT (channel_id, data_kind, run_date) DO NOTHING
RETURNING id, started_at
`, channelID, string(kind), day).Scan(&run.ID, &run.StartedAt)
	metrics.ObserveNetworkRequest("postgres", "etl_runs_admit", "etl_runs", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.EtlRun{}, domain.ErrAlreadyAttempted
	}
	if err != nil {
		return domain.EtlRun{}, fmt.Errorf("admit run: %w", err)
	}
	return run, nil
}

// FinalizeRun is the only mutation path for an admitted run. A finalized
// row is never touched again.
func (p *Postgres) FinalizeRun(ctx context.Context, runID int64, state domain.RunState, items int, errSummary string, flags []string) error {
	if !state.Finalized() {
		return fmt.Errorf("finalize run %d: %q is not a terminal state", runID, state)
	}
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	res, err := p.pool.Exec(ctx, `
UPDATE etl_runs
SET state = $2,
    finished_at = now(),
    items_processed = $3,
    error_summary = $4,
    flagged = $5,
    flag_reasons = $6
WHERE id = $1 AND state = 'running'
`, runID, string(state), items, errSummary, len(flags) > 0, flags)
	metrics.ObserveNetworkRequest("postgres", "etl_runs_finalize", "etl_runs", start, err)
	if err != nil {
		return fmt.Errorf("finalize run %d: %w", runID, err)
	}
	if res.RowsAffected() == 0 {
		return domain.ErrRunFinalized
	}
	return nil
}

// RecoverStaleRuns finalizes abandoned running rows as failed. A crashed
// attempt is never resumed.
func (p *Postgres) RecoverStaleRuns(ctx context.Context, staleAfter time.Duration) (int, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	res, err := p.pool.Exec(ctx, `
UPDATE etl_runs
SET state = 'failed',
    finished_at = now(),
    error_summary = 'stale run recovered on startup'
WHERE state = 'running' AND started_at < now() - make_interval(secs => $1)
`, staleAfter.Seconds())
	metrics.ObserveNetworkRequest("postgres", "etl_runs_recover_stale", "etl_runs", start, err)
	if err != nil {
		return 0, fmt.Errorf("recover stale runs: %w", err)
	}
	return int(res.RowsAffected()), nil
}

// --------------------------------------------------------- ingestion writer

// WriteRaw stores raw payloads, write-once per external id per fetch day.
// Failures are per item: the batch continues past a bad row.
func (p *Postgres) WriteRaw(ctx context.Context, channelID int64, items []domain.RawItem) (domain.WriteReport, error) {
	var report domain.WriteReport
	if len(items) == 0 {
		return report, nil
	}
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	for _, item := range items {
		start := time.Now()
		res, err := p.pool.Exec(ctx, `
INSERT INTO raw_payloads (channel_id, external_id, fetch_date, fetched_at, payload)
VALUES ($1, $2, CURRENT_DATE, now(), $3)
ON CONFLICT (channel_id, external_id, fetch_date) DO NOTHING
`, channelID, item.ExternalID, item.Payload)
		metrics.ObserveNetworkRequest("postgres", "raw_payloads_insert", "raw_payloads", start, err)
		if err != nil {
			report.Skipped++
			report.Errors = append(report.Errors, fmt.Sprintf("raw %s: %v", item.ExternalID, err))
			continue
		}
		if res.RowsAffected() > 0 {
			report.Written++
		}
	}
	metrics.RowsWrittenTotal.WithLabelValues("raw_payloads").Add(float64(report.Written))
	return report, nil
}

// UpsertVideos writes normalized video rows keyed by external id.
func (p *Postgres) UpsertVideos(ctx context.Context, videos []domain.Video) (domain.WriteReport, error) {
	var report domain.WriteReport
	if len(videos) == 0 {
		return report, nil
	}
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	for _, v := range videos {
		start := time.Now()
		_, err := p.pool.Exec(ctx, `
INSERT INTO videos (video_id, channel_id, title, published_at, duration, view_count, like_count, comment_count, fetched_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (video_id) DO UPDATE
    SET title = EXCLUDED.title,
        published_at = EXCLUDED.published_at,
        duration = EXCLUDED.duration,
        view_count = EXCLUDED.view_count,
        like_count = EXCLUDED.like_count,
        comment_count = EXCLUDED.comment_count,
        fetched_at = EXCLUDED.fetched_at
`, v.ExternalID, v.ChannelID, v.Title, v.PublishedAt, v.Duration, v.ViewCount, v.LikeCount, v.CommentCount, v.FetchedAt)
		metrics.ObserveNetworkRequest("postgres", "videos_upsert", "videos", start, err)
		if err != nil {
			report.Skipped++
			report.Errors = append(report.Errors, fmt.Sprintf("video %s: %v", v.ExternalID, err))
			continue
		}
		report.Written++
	}
	metrics.RowsWrittenTotal.WithLabelValues("videos").Add(float64(report.Written))
	return report, nil
}

// AppendMetricSnapshots appends one dated row per video per day. Counts
// only ratchet upward within the day; historical snapshots are never
// rewritten.
func (p *Postgres) AppendMetricSnapshots(ctx context.Context, snaps []domain.MetricSnapshot) (domain.WriteReport, error) {
	var report domain.WriteReport
	if len(snaps) == 0 {
		return report, nil
	}
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	for _, s := range snaps {
		start := time.Now()
		_, err := p.pool.Exec(ctx, `
INSERT INTO video_metrics (video_id, snapshot_date, view_count, like_count, comment_count, fetched_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (video_id, snapshot_date) DO UPDATE
    SET view_count = GREATEST(video_metrics.view_count, EXCLUDED.view_count),
        like_count = GREATEST(video_metrics.like_count, EXCLUDED.like_count),
        comment_count = GREATEST(video_metrics.comment_count, EXCLUDED.comment_count),
        fetched_at = EXCLUDED.fetched_at
`, s.VideoID, s.SnapshotDate, s.ViewCount, s.LikeCount, s.CommentCount, s.FetchedAt)
		metrics.ObserveNetworkRequest("postgres", "video_metrics_upsert", "video_metrics", start, err)
		if err != nil {
			report.Skipped++
			report.Errors = append(report.Errors, fmt.Sprintf("metrics %s: %v", s.VideoID, err))
			continue
		}
		report.Written++
	}
	metrics.RowsWrittenTotal.WithLabelValues("video_metrics").Add(float64(report.Written))
	return report, nil
}

// InsertComments stores comments, ignoring redeliveries of known ids. Core
// fields stay immutable after the first insert.
func (p *Postgres) InsertComments(ctx context.Context, comments []domain.Comment) (domain.WriteReport, error) {
	var report domain.WriteReport
	if len(comments) == 0 {
		return report, nil
	}
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	for _, c := range comments {
		start := time.Now()
		res, err := p.pool.Exec(ctx, `
INSERT INTO comments (comment_id, video_id, author_id, author_name, comment_text, posted_at, like_count, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, now())
ON CONFLICT (comment_id) DO NOTHING
`, c.ExternalID, c.VideoID, c.AuthorID, c.AuthorName, c.Text, c.PostedAt, c.LikeCount)
		metrics.ObserveNetworkRequest("postgres", "comments_insert", "comments", start, err)
		if err != nil {
			report.Skipped++
			report.Errors = append(report.Errors, fmt.Sprintf("comment %s: %v", c.ExternalID, err))
			continue
		}
		if res.RowsAffected() > 0 {
			report.Written++
		}
	}
	metrics.RowsWrittenTotal.WithLabelValues("comments").Add(float64(report.Written))
	return report, nil
}

// ------------------------------------------------------ annotation writer

// UpsertAuthenticity overwrites authenticity annotations.
func (p *Postgres) UpsertAuthenticity(ctx context.Context, rows []domain.CommentAuthenticity) (domain.WriteReport, error) {
	var report domain.WriteReport
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	for _, row := range rows {
		breakdown, err := json.Marshal(row.Breakdown)
		if err != nil {
			report.Skipped++
			report.Errors = append(report.Errors, fmt.Sprintf("authenticity %s: %v", row.CommentID, err))
			continue
		}
		start := time.Now()
		_, err = p.pool.Exec(ctx, `
INSERT INTO comment_authenticity (comment_id, suspicion_score, breakdown, scored_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (comment_id) DO UPDATE
    SET suspicion_score = EXCLUDED.suspicion_score,
        breakdown = EXCLUDED.breakdown,
        scored_at = EXCLUDED.scored_at
`, row.CommentID, row.Score, breakdown, row.ScoredAt)
		metrics.ObserveNetworkRequest("postgres", "comment_authenticity_upsert", "comment_authenticity", start, err)
		if err != nil {
			report.Skipped++
			report.Errors = append(report.Errors, fmt.Sprintf("authenticity %s: %v", row.CommentID, err))
			continue
		}
		report.Written++
	}
	metrics.CommentsScoredTotal.WithLabelValues("authenticity").Add(float64(report.Written))
	return report, nil
}

// UpsertSentiment overwrites sentiment annotations.
func (p *Postgres) UpsertSentiment(ctx context.Context, rows []domain.CommentSentiment) (domain.WriteReport, error) {
	var report domain.WriteReport
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	for _, row := range rows {
		start := time.Now()
		_, err := p.pool.Exec(ctx, `
INSERT INTO comment_sentiment (comment_id, label, confidence, scored_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (comment_id) DO UPDATE
    SET label = EXCLUDED.label,
        confidence = EXCLUDED.confidence,
        scored_at = EXCLUDED.scored_at
`, row.CommentID, string(row.Label), row.Confidence, row.ScoredAt)
		metrics.ObserveNetworkRequest("postgres", "comment_sentiment_upsert", "comment_sentiment", start, err)
		if err != nil {
			report.Skipped++
			report.Errors = append(report.Errors, fmt.Sprintf("sentiment %s: %v", row.CommentID, err))
			continue
		}
		report.Written++
	}
	metrics.CommentsScoredTotal.WithLabelValues("sentiment").Add(float64(report.Written))
	return report, nil
}

// ------------------------------------------------------------ comment read

// ListPeerWindow returns a channel's recent comments for duplicate and
// burst analysis.
func (p *Postgres) ListPeerWindow(ctx context.Context, channelID int64, since time.Time) ([]domain.Comment, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT c.comment_id, c.video_id, c.author_id, c.author_name, c.comment_text, c.posted_at, c.like_count
FROM comments c
JOIN videos v ON v.video_id = c.video_id
WHERE v.channel_id = $1 AND c.posted_at >= $2
ORDER BY c.posted_at
`, channelID, since)
	metrics.ObserveNetworkRequest("postgres", "comments_peer_window", "comments", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanComments(rows)
}

// ListUnannotated returns comments still missing either annotation.
func (p *Postgres) ListUnannotated(ctx context.Context, limit int) ([]domain.Comment, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT c.comment_id, c.video_id, c.author_id, c.author_name, c.comment_text, c.posted_at, c.like_count
FROM comments c
LEFT JOIN comment_sentiment cs ON cs.comment_id = c.comment_id
LEFT JOIN comment_authenticity ca ON ca.comment_id = c.comment_id
WHERE cs.comment_id IS NULL OR ca.comment_id IS NULL
ORDER BY c.posted_at
LIMIT $1
`, limit)
	metrics.ObserveNetworkRequest("postgres", "comments_unannotated", "comments", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanComments(rows)
}

func scanComments(rows pgx.Rows) ([]domain.Comment, error) {
	var out []domain.Comment
	for rows.Next() {
		var c domain.Comment
		if err := rows.Scan(&c.ExternalID, &c.VideoID, &c.AuthorID, &c.AuthorName, &c.Text, &c.PostedAt, &c.LikeCount); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ------------------------------------------------------------ quality read

// Orphans are metric rows written that day whose video never landed, so
// they cannot be scoped by channel: the anti-join is the whole check.
const qualityStatsQuery = `
SELECT
    (SELECT COUNT(*) FROM video_metrics m
        LEFT JOIN videos v ON v.video_id = m.video_id
        WHERE m.snapshot_date = $2 AND v.video_id IS NULL),
    (SELECT COALESCE(SUM(cnt - 1), 0) FROM (
        SELECT COUNT(*) AS cnt FROM video_metrics m
        JOIN videos v ON v.video_id = m.video_id
        WHERE v.channel_id = $1 AND m.snapshot_date = $2
        GROUP BY m.video_id, m.snapshot_date) d WHERE cnt > 1),
    (SELECT COUNT(*) FROM video_metrics m
        JOIN videos v ON v.video_id = m.video_id
        WHERE v.channel_id = $1 AND m.snapshot_date = $2)
`

// CollectQualityStats fills the storage-derived side of the quality gate
// input: referential integrity, duplicate metric keys and metric outliers.
// Video totals and validation counts are batch-scoped and merged in by the
// orchestrator.
func (p *Postgres) CollectQualityStats(ctx context.Context, channelID int64, day time.Time) (domain.QualityStats, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var stats domain.QualityStats
	day = day.UTC().Truncate(24 * time.Hour)

	start := time.Now()
	err := p.pool.QueryRow(ctx, qualityStatsQuery, channelID, day).
		Scan(&stats.OrphanMetricRows, &stats.DuplicateMetricKey, &stats.TotalMetricRows)
	metrics.ObserveNetworkRequest("postgres", "quality_stats", "video_metrics", start, err)
	if err != nil {
		return domain.QualityStats{}, fmt.Errorf("collect quality stats: %w", err)
	}

	// Outliers: cumulative counters that moved backwards against the
	// previous snapshot.
	start = time.Now()
	err = p.pool.QueryRow(ctx, `
SELECT COUNT(*)
FROM video_metrics m
JOIN videos v ON v.video_id = m.video_id
JOIN LATERAL (
    SELECT view_count FROM video_metrics prev
    WHERE prev.video_id = m.video_id AND prev.snapshot_date < m.snapshot_date
    ORDER BY prev.snapshot_date DESC LIMIT 1
) prev ON true
WHERE v.channel_id = $1 AND m.snapshot_date = $2 AND m.view_count < prev.view_count
`, channelID, day).Scan(&stats.OutlierMetricRows)
	metrics.ObserveNetworkRequest("postgres", "quality_outliers", "video_metrics", start, err)
	if err != nil {
		return domain.QualityStats{}, fmt.Errorf("collect outlier stats: %w", err)
	}

	return stats, nil
}

// ------------------------------------------------------------- run reports

// ListRuns returns finalized and running runs since a date.
func (p *Postgres) ListRuns(ctx context.Context, since time.Time) ([]domain.RunSummary, error) {
	return p.listRuns(ctx, since, false)
}

// ListFlaggedRuns returns only quality-flagged runs.
func (p *Postgres) ListFlaggedRuns(ctx context.Context, since time.Time) ([]domain.RunSummary, error) {
	return p.listRuns(ctx, since, true)
}

func (p *Postgres) listRuns(ctx context.Context, since time.Time, flaggedOnly bool) ([]domain.RunSummary, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	query := `
SELECT r.id, r.channel_id, r.data_kind, r.run_date, r.state, r.started_at, r.finished_at,
       r.items_processed, r.error_summary, r.flagged, r.flag_reasons, ch.title
FROM etl_runs r
JOIN channels ch ON ch.id = r.channel_id
WHERE r.run_date >= $1`
	if flaggedOnly {
		query += " AND r.flagged"
	}
	query += " ORDER BY r.run_date DESC, r.channel_id, r.data_kind"

	start := time.Now()
	rows, err := p.pool.Query(ctx, query, since.UTC().Truncate(24*time.Hour))
	metrics.ObserveNetworkRequest("postgres", "etl_runs_list", "etl_runs", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.RunSummary
	for rows.Next() {
		var (
			s     domain.RunSummary
			kind  string
			state string
		)
		if err := rows.Scan(
			&s.Run.ID, &s.Run.ChannelID, &kind, &s.Run.RunDate, &state, &s.Run.StartedAt,
			&s.Run.FinishedAt, &s.Run.ItemsProcessed, &s.Run.ErrorSummary, &s.Run.Flagged,
			&s.Run.FlagReasons, &s.ChannelTitle,
		); err != nil {
			return nil, err
		}
		s.Run.Kind = domain.DataKind(kind)
		s.Run.State = domain.RunState(state)
		out = append(out, s)
	}
	return out, rows.Err()
}

// ChannelCounts returns per-table row counts for one channel.
func (p *Postgres) ChannelCounts(ctx context.Context, channelID int64) (domain.ChannelCounts, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	counts := domain.ChannelCounts{ChannelID: channelID}
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT
    (SELECT COUNT(*) FROM videos WHERE channel_id = $1),
    (SELECT COUNT(*) FROM video_metrics m JOIN videos v ON v.video_id = m.video_id WHERE v.channel_id = $1),
    (SELECT COUNT(*) FROM comments c JOIN videos v ON v.video_id = c.video_id WHERE v.channel_id = $1),
    (SELECT COUNT(*) FROM comment_sentiment cs JOIN comments c ON c.comment_id = cs.comment_id
        JOIN videos v ON v.video_id = c.video_id WHERE v.channel_id = $1),
    (SELECT MAX(run_date) FROM etl_runs WHERE channel_id = $1)
`, channelID).Scan(&counts.Videos, &counts.Metrics, &counts.Comments, &counts.Annotated, &counts.LastRunDate)
	metrics.ObserveNetworkRequest("postgres", "channel_counts", "channels", start, err)
	if err != nil {
		return domain.ChannelCounts{}, fmt.Errorf("channel counts: %w", err)
	}
	return counts, nil
}

// ------------------------------------------------------------- job statuses

// EnsureJob registers a delivery attempt for deduplication.
func (p *Postgres) EnsureJob(jobID string) (bool, int, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	var (
		doneAt   *time.Time
		attempts int
	)
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO ingest_job_statuses (job_id, attempts, updated_at)
VALUES ($1, 1, now())
ON CONFLICT (job_id) DO UPDATE
    SET attempts = ingest_job_statuses.attempts + 1,
        updated_at = now()
RETURNING done_at, attempts
`, jobID).Scan(&doneAt, &attempts)
	metrics.ObserveNetworkRequest("postgres", "ingest_job_statuses_upsert", "ingest_job_statuses", start, err)
	if err != nil {
		return false, 0, err
	}
	return doneAt != nil, attempts, nil
}

// MarkJobDone marks the job as finally processed.
func (p *Postgres) MarkJobDone(jobID string) error {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
UPDATE ingest_job_statuses SET done_at = now(), updated_at = now() WHERE job_id = $1
`, jobID)
	metrics.ObserveNetworkRequest("postgres", "ingest_job_statuses_done", "ingest_job_statuses", start, err)
	return err
}

// ----------------------------------------------------------- schedule marks

// AcquireDay claims the daily enqueue. Conflicts mean another scheduler
// instance was first.
func (p *Postgres) AcquireDay(day time.Time) (bool, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	res, err := p.pool.Exec(ctx, `
INSERT INTO schedule_marks (day) VALUES ($1)
ON CONFLICT (day) DO NOTHING
`, day.UTC().Truncate(24*time.Hour))
	metrics.ObserveNetworkRequest("postgres", "schedule_marks_acquire", "schedule_marks", start, err)
	if err != nil {
		return false, err
	}
	return res.RowsAffected() > 0, nil
}

// ReleaseDay gives the claim back after a failed enqueue, so the day is
// not lost until midnight.
func (p *Postgres) ReleaseDay(day time.Time) error {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
DELETE FROM schedule_marks WHERE day = $1
`, day.UTC().Truncate(24*time.Hour))
	metrics.ObserveNetworkRequest("postgres", "schedule_marks_release", "schedule_marks", start, err)
	return err
}
