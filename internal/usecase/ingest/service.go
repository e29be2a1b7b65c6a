package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"yt-pulse/internal/domain"
	"yt-pulse/internal/infra/metrics"
)

const (
	// Peer window for authenticity scoring. Matches the retention span of
	// the comment analysis queries.
	defaultPeerWindow = 7 * 24 * time.Hour

	maxSummaryLen = 500
)

// Service drives the daily pipeline: admit, fetch, write, annotate, gate,
// finalize. One instance processes one job at a time; channels and kinds
// run strictly sequentially so a quota stop leaves unadmitted work pending.
type Service struct {
	channels     domain.ChannelRepo
	ledger       domain.RunLedger
	source       domain.VideoSource
	writer       domain.IngestWriter
	annotations  domain.AnnotationWriter
	comments     domain.CommentReader
	quality      domain.QualityReader
	normalizer   domain.Normalizer
	authenticity domain.AuthenticityScorer
	sentiment    domain.SentimentLabeler

	channelIDs     []string
	peerWindow     time.Duration
	backlogBatches int
	log            zerolog.Logger
}

// NewService wires the pipeline dependencies. channelIDs is the configured
// external id list; backlogBatches bounds one annotation sweep.
func NewService(
	channels domain.ChannelRepo,
	ledger domain.RunLedger,
	source domain.VideoSource,
	writer domain.IngestWriter,
	annotations domain.AnnotationWriter,
	comments domain.CommentReader,
	quality domain.QualityReader,
	normalizer domain.Normalizer,
	authenticity domain.AuthenticityScorer,
	sentiment domain.SentimentLabeler,
	channelIDs []string,
	backlogBatches int,
	log zerolog.Logger,
) *Service {
	return &Service{
		channels:     channels,
		ledger:       ledger,
		source:       source,
		writer:       writer,
		annotations:  annotations,
		comments:     comments,
		quality:      quality,
		normalizer:   normalizer,
		authenticity: authenticity,
		sentiment:    sentiment,

		channelIDs:     channelIDs,
		peerWindow:     defaultPeerWindow,
		backlogBatches: backlogBatches,
		log:            log,
	}
}

// RunDay processes every configured channel across all data kinds for one
// UTC calendar day. Quota exhaustion finalizes the current run as failed
// and halts all further admissions: unadmitted (channel, kind) pairs keep
// no ledger row and remain eligible for a later job the same day.
func (s *Service) RunDay(ctx context.Context, day time.Time) error {
	day = day.UTC().Truncate(24 * time.Hour)

	channels, err := s.resolveChannels(ctx)
	if err != nil {
		return fmt.Errorf("resolve channels: %w", err)
	}

	for _, ch := range channels {
		for _, kind := range domain.AllDataKinds {
			run, err := s.ledger.AdmitRun(ctx, ch.ID, kind, day)
			if errors.Is(err, domain.ErrAlreadyAttempted) {
				s.log.Debug().
					Str("channel", ch.ExternalID).
					Str("kind", string(kind)).
					Msg("ingest: attempt already recorded for today, skipping")
				continue
			}
			if err != nil {
				return fmt.Errorf("admit %s/%s: %w", ch.ExternalID, kind, err)
			}

			quotaHit, err := s.runOne(ctx, ch, kind, run, day)
			if err != nil {
				return err
			}
			if quotaHit {
				metrics.QuotaAbortsTotal.Inc()
				s.log.Warn().
					Str("channel", ch.ExternalID).
					Str("kind", string(kind)).
					Msg("ingest: quota exhausted, halting remaining admissions for the day")
				return nil
			}
		}
	}
	return nil
}

// RecoverStale finalizes running ledger rows left behind by a crashed
// process. Called once on worker startup.
func (s *Service) RecoverStale(ctx context.Context, staleAfter time.Duration) (int, error) {
	return s.ledger.RecoverStaleRuns(ctx, staleAfter)
}

func (s *Service) resolveChannels(ctx context.Context) ([]domain.Channel, error) {
	out := make([]domain.Channel, 0, len(s.channelIDs))
	for _, extID := range s.channelIDs {
		ch, err := s.channels.EnsureChannel(ctx, domain.Channel{ExternalID: extID})
		if err != nil {
			return nil, err
		}
		out = append(out, ch)
	}
	return out, nil
}

// runOne executes one admitted run to its terminal state. The returned
// bool reports quota exhaustion; the returned error is reserved for
// process-fatal conditions (storage contract violations).
func (s *Service) runOne(ctx context.Context, ch domain.Channel, kind domain.DataKind, run domain.EtlRun, day time.Time) (bool, error) {
	start := time.Now()

	if ctx.Err() != nil {
		s.finalize(run, domain.RunSkipped, 0, "aborted before fetch: "+ctx.Err().Error(), nil)
		metrics.ObserveRun(string(kind), string(domain.RunSkipped), start)
		return false, nil
	}

	var (
		cursor      domain.Cursor
		items       int
		rowErrors   []string
		invalidRows int
		newComments []domain.Comment
	)

	for !cursor.Done {
		page, next, err := s.source.FetchPage(ctx, ch, kind, cursor)
		if err != nil {
			if domain.IsQuotaExceeded(err) {
				s.finalize(run, domain.RunFailed, items, truncate("quota exhausted: "+err.Error()), nil)
				metrics.ObserveRun(string(kind), string(domain.RunFailed), start)
				return true, nil
			}
			if domain.IsSchemaError(err) {
				s.finalize(run, domain.RunFailed, items, truncate("api contract violation: "+err.Error()), nil)
				metrics.ObserveRun(string(kind), string(domain.RunFailed), start)
				return false, err
			}
			// Permanent errors and transient errors that survived
			// retries fail this channel only.
			s.finalize(run, domain.RunFailed, items, truncate(err.Error()), nil)
			metrics.ObserveRun(string(kind), string(domain.RunFailed), start)
			s.log.Error().Err(err).
				Str("channel", ch.ExternalID).
				Str("kind", string(kind)).
				Msg("ingest: fetch failed, continuing with next run")
			return false, nil
		}
		cursor = next

		if len(page.Items) == 0 {
			continue
		}

		rawReport, err := s.writer.WriteRaw(ctx, ch.ID, page.Items)
		if err != nil {
			s.finalize(run, domain.RunFailed, items, truncate("write raw: "+err.Error()), nil)
			metrics.ObserveRun(string(kind), string(domain.RunFailed), start)
			return false, s.fatalIfSchema(err)
		}
		rowErrors = append(rowErrors, rawReport.Errors...)

		report, comments, invalid := s.writePage(ctx, ch, kind, day, page.Items)
		items += report.Written
		invalidRows += invalid
		rowErrors = append(rowErrors, report.Errors...)
		newComments = append(newComments, comments...)
	}

	if kind == domain.KindComments && len(newComments) > 0 {
		s.annotateComments(ctx, ch, day, newComments)
	}

	stats, err := s.quality.CollectQualityStats(ctx, ch.ID, day)
	if err != nil {
		s.finalize(run, domain.RunFailed, items, truncate("quality stats: "+err.Error()), nil)
		metrics.ObserveRun(string(kind), string(domain.RunFailed), start)
		return false, s.fatalIfSchema(err)
	}
	// The null-share denominator is this batch, written plus rejected
	// rows, never the channel's accumulated history.
	if kind == domain.KindVideos {
		stats.TotalVideos = items + invalidRows
		stats.VideosMissingID += invalidRows
	}

	gate := EvaluateQuality(stats)
	summary := summarizeRowErrors(rowErrors)

	s.finalize(run, domain.RunSucceeded, items, summary, gate.Reasons)
	metrics.ObserveRun(string(kind), string(domain.RunSucceeded), start)
	s.log.Info().
		Str("channel", ch.ExternalID).
		Str("kind", string(kind)).
		Int("items", items).
		Int("row_errors", len(rowErrors)).
		Bool("flagged", !gate.Passed).
		Msg("ingest: run finished")
	return false, nil
}

// writePage normalizes and persists one fetched page. Row-level failures
// are counted and reported, never fatal for the page.
func (s *Service) writePage(ctx context.Context, ch domain.Channel, kind domain.DataKind, day time.Time, raw []domain.RawItem) (domain.WriteReport, []domain.Comment, int) {
	now := time.Now().UTC()
	var report domain.WriteReport
	invalid := 0

	switch kind {
	case domain.KindVideos:
		videos := make([]domain.Video, 0, len(raw))
		for _, item := range raw {
			v, err := s.normalizer.Video(item, ch.ID, now)
			if err != nil {
				invalid++
				report.Errors = append(report.Errors, err.Error())
				continue
			}
			videos = append(videos, v)
		}
		written, err := s.writer.UpsertVideos(ctx, videos)
		if err != nil {
			report.Errors = append(report.Errors, err.Error())
		}
		report.Merge(written)
		return report, nil, invalid

	case domain.KindMetrics:
		snaps := make([]domain.MetricSnapshot, 0, len(raw))
		for _, item := range raw {
			m, err := s.normalizer.MetricSnapshot(item, day, now)
			if err != nil {
				invalid++
				report.Errors = append(report.Errors, err.Error())
				continue
			}
			snaps = append(snaps, m)
		}
		written, err := s.writer.AppendMetricSnapshots(ctx, snaps)
		if err != nil {
			report.Errors = append(report.Errors, err.Error())
		}
		report.Merge(written)
		return report, nil, invalid

	case domain.KindComments:
		comments := make([]domain.Comment, 0, len(raw))
		for _, item := range raw {
			c, err := s.normalizer.Comment(item)
			if err != nil {
				invalid++
				report.Errors = append(report.Errors, err.Error())
				continue
			}
			comments = append(comments, c)
		}
		written, err := s.writer.InsertComments(ctx, comments)
		if err != nil {
			report.Errors = append(report.Errors, err.Error())
		}
		report.Merge(written)
		return report, comments, invalid
	}
	return report, nil, invalid
}

// annotateComments scores a freshly ingested batch against the channel's
// recent peer window. Annotation failures are logged, never fatal: the
// backlog sweep picks the comments up later.
func (s *Service) annotateComments(ctx context.Context, ch domain.Channel, day time.Time, batch []domain.Comment) {
	peers, err := s.comments.ListPeerWindow(ctx, ch.ID, day.Add(-s.peerWindow))
	if err != nil {
		s.log.Warn().Err(err).Str("channel", ch.ExternalID).Msg("ingest: peer window unavailable, scoring against batch only")
		peers = batch
	}
	s.scoreAndStore(ctx, batch, peers)
}

// AnnotateBacklog scores comments that still miss annotations, in batches
// of the given size with a bounded batch count per sweep. Peers for the
// backlog are the batch itself grouped by video.
func (s *Service) AnnotateBacklog(ctx context.Context, batchSize int) (int, error) {
	total := 0
	for i := 0; i < s.backlogBatches; i++ {
		batch, err := s.comments.ListUnannotated(ctx, batchSize)
		if err != nil {
			return total, fmt.Errorf("list unannotated: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		byVideo := make(map[string][]domain.Comment)
		for _, c := range batch {
			byVideo[c.VideoID] = append(byVideo[c.VideoID], c)
		}
		for _, group := range byVideo {
			s.scoreAndStore(ctx, group, group)
		}

		total += len(batch)
		if len(batch) < batchSize {
			break
		}
	}
	if total > 0 {
		s.log.Info().Int("comments", total).Msg("ingest: annotation backlog sweep finished")
	}
	return total, nil
}

func (s *Service) scoreAndStore(ctx context.Context, batch, peers []domain.Comment) {
	now := time.Now().UTC()
	auth := make([]domain.CommentAuthenticity, 0, len(batch))
	sent := make([]domain.CommentSentiment, 0, len(batch))
	for _, c := range batch {
		score, breakdown := s.authenticity.Score(c, peers)
		auth = append(auth, domain.CommentAuthenticity{
			CommentID: c.ExternalID,
			Score:     score,
			Breakdown: breakdown,
			ScoredAt:  now,
		})
		label, confidence := s.sentiment.Label(c.Text)
		sent = append(sent, domain.CommentSentiment{
			CommentID:  c.ExternalID,
			Label:      label,
			Confidence: confidence,
			ScoredAt:   now,
		})
	}
	if _, err := s.annotations.UpsertAuthenticity(ctx, auth); err != nil {
		s.log.Warn().Err(err).Msg("ingest: store authenticity annotations")
	}
	if _, err := s.annotations.UpsertSentiment(ctx, sent); err != nil {
		s.log.Warn().Err(err).Msg("ingest: store sentiment annotations")
	}
}

// finalize moves the run to its terminal state. A run already finalized by
// stale recovery is logged and left alone.
func (s *Service) finalize(run domain.EtlRun, state domain.RunState, items int, summary string, flags []string) {
	err := s.ledger.FinalizeRun(context.Background(), run.ID, state, items, summary, flags)
	if errors.Is(err, domain.ErrRunFinalized) {
		s.log.Warn().Int64("run_id", run.ID).Msg("ingest: run was finalized concurrently")
		return
	}
	if err != nil {
		s.log.Error().Err(err).Int64("run_id", run.ID).Msg("ingest: finalize run")
	}
}

func (s *Service) fatalIfSchema(err error) error {
	if domain.IsSchemaError(err) {
		return err
	}
	return nil
}

func summarizeRowErrors(rowErrors []string) string {
	if len(rowErrors) == 0 {
		return ""
	}
	shown := rowErrors
	if len(shown) > 3 {
		shown = shown[:3]
	}
	return truncate(fmt.Sprintf("%d row errors: %s", len(rowErrors), strings.Join(shown, "; ")))
}

func truncate(s string) string {
	if len(s) <= maxSummaryLen {
		return s
	}
	// Back off to a rune boundary so the cut never splits a multi-byte
	// character.
	cut := maxSummaryLen - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
