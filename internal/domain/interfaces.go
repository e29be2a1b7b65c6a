package domain

import (
	"context"
	"time"
)

// Cursor resumes pagination inside one channel/kind stream. Empty means
// start from the beginning; Done marks exhaustion.
type Cursor struct {
	PageToken string
	Done      bool
}

// VideoSource fetches pages of external items for one channel and data
// kind. Implementations perform no persistence; classification of failures
// into FetchError kinds is part of the contract.
type VideoSource interface {
	FetchPage(ctx context.Context, channel Channel, kind DataKind, cursor Cursor) (Page, Cursor, error)
}

// Normalizer converts raw API items into typed rows. A row that fails
// validation is reported for that item only and never aborts its batch.
type Normalizer interface {
	Video(item RawItem, channelID int64, now time.Time) (Video, error)
	MetricSnapshot(item RawItem, day time.Time, now time.Time) (MetricSnapshot, error)
	Comment(item RawItem) (Comment, error)
}

// ChannelRepo registers configured channels and resolves their internal
// ids. The core never deletes channels.
type ChannelRepo interface {
	EnsureChannel(ctx context.Context, ch Channel) (Channel, error)
	ListChannels(ctx context.Context) ([]Channel, error)
}

// RunLedger is the durable one-attempt-per-day gate. Admission is the
// single linearization point of the pipeline and must stay atomic across
// process restarts, hence a unique constraint rather than a mutex.
type RunLedger interface {
	// AdmitRun atomically creates the (channel, kind, day) attempt in
	// state running. Returns ErrAlreadyAttempted if any attempt exists.
	AdmitRun(ctx context.Context, channelID int64, kind DataKind, day time.Time) (EtlRun, error)
	// FinalizeRun moves an admitted run to a terminal state. It is the
	// only mutation path and refuses to touch finalized rows.
	FinalizeRun(ctx context.Context, runID int64, state RunState, items int, errSummary string, flags []string) error
	// RecoverStaleRuns finalizes running rows older than staleAfter as
	// failed. Called on startup; a stale run is never silently resumed.
	RecoverStaleRuns(ctx context.Context, staleAfter time.Duration) (int, error)
}

// IngestWriter persists raw payloads and normalized rows. All writes are
// idempotent upserts keyed by external id; a single bad item is reported,
// not fatal for its batch.
type IngestWriter interface {
	WriteRaw(ctx context.Context, channelID int64, items []RawItem) (WriteReport, error)
	UpsertVideos(ctx context.Context, videos []Video) (WriteReport, error)
	AppendMetricSnapshots(ctx context.Context, snaps []MetricSnapshot) (WriteReport, error)
	InsertComments(ctx context.Context, comments []Comment) (WriteReport, error)
}

// AnnotationWriter persists the derived comment annotations with overwrite
// semantics.
type AnnotationWriter interface {
	UpsertAuthenticity(ctx context.Context, rows []CommentAuthenticity) (WriteReport, error)
	UpsertSentiment(ctx context.Context, rows []CommentSentiment) (WriteReport, error)
}

// CommentReader loads comments for scoring.
type CommentReader interface {
	// ListPeerWindow returns recent comments of a channel for duplicate
	// and burst analysis. Read-shared; never mutated during scoring.
	ListPeerWindow(ctx context.Context, channelID int64, since time.Time) ([]Comment, error)
	// ListUnannotated returns comments that still miss either annotation.
	ListUnannotated(ctx context.Context, limit int) ([]Comment, error)
}

// QualityReader collects the counts the data quality gate needs.
type QualityReader interface {
	CollectQualityStats(ctx context.Context, channelID int64, day time.Time) (QualityStats, error)
}

// RunReporter surfaces run outcomes and row counts for external monitoring
// collaborators.
type RunReporter interface {
	ListRuns(ctx context.Context, since time.Time) ([]RunSummary, error)
	ListFlaggedRuns(ctx context.Context, since time.Time) ([]RunSummary, error)
	ChannelCounts(ctx context.Context, channelID int64) (ChannelCounts, error)
}

// AuthenticityScorer computes the 0-100 bot-suspicion score of one comment
// against its peer window. Pure; persistence is the caller's concern.
type AuthenticityScorer interface {
	Score(comment Comment, peers []Comment) (float64, AuthenticityBreakdown)
}

// SentimentLabeler assigns a sentiment label with calibrated confidence.
// Never errors: empty input labels neutral at minimum confidence.
type SentimentLabeler interface {
	Label(text string) (SentimentLabel, float64)
}

// Cache is a simple TTL store used to memoize quota-costing lookups.
type Cache interface {
	Set(key string, value []byte, ttl time.Duration) error
	Get(key string) ([]byte, error)
}
