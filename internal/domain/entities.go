package domain

import "time"

// DataKind is one independent ingestion stream per channel.
type DataKind string

const (
	KindVideos   DataKind = "videos"
	KindMetrics  DataKind = "metrics"
	KindComments DataKind = "comments"
)

// AllDataKinds lists the streams in the order the pipeline processes them.
// Videos must land before metrics and comments so referential checks hold.
var AllDataKinds = []DataKind{KindVideos, KindMetrics, KindComments}

// RunState describes the lifecycle of one ledger entry.
type RunState string

const (
	RunPending   RunState = "pending"
	RunRunning   RunState = "running"
	RunSucceeded RunState = "succeeded"
	RunFailed    RunState = "failed"
	RunSkipped   RunState = "skipped"
)

// Finalized reports whether the state is terminal. A finalized run never
// transitions again.
func (s RunState) Finalized() bool {
	return s == RunSucceeded || s == RunFailed || s == RunSkipped
}

// Channel describes one tracked YouTube channel. The list comes from
// configuration and is immutable for the duration of a run.
type Channel struct {
	ID          int64
	ExternalID  string
	Title       string
	ContentType string
}

// EtlRun is one admitted attempt to ingest one data kind for one channel on
// one UTC calendar day. The (channel, kind, day) triple is unique.
type EtlRun struct {
	ID             int64
	ChannelID      int64
	Kind           DataKind
	RunDate        time.Time
	State          RunState
	StartedAt      time.Time
	FinishedAt     *time.Time
	ItemsProcessed int
	ErrorSummary   string
	Flagged        bool
	FlagReasons    []string
}

// RawPayload stores the untouched API response for one item, keyed by
// external id and fetch date. Later fetches supersede, never delete.
type RawPayload struct {
	ChannelID  int64
	ExternalID string
	FetchedAt  time.Time
	Payload    []byte
}

// Video is the normalized row for one external video id.
type Video struct {
	ExternalID   string
	ChannelID    int64
	Title        string
	PublishedAt  time.Time
	Duration     string
	ViewCount    int64
	LikeCount    int64
	CommentCount int64
	FetchedAt    time.Time
}

// MetricSnapshot is one append-only daily metrics row per video. Within a
// day the counts only ratchet upward.
type MetricSnapshot struct {
	VideoID      string
	SnapshotDate time.Time
	ViewCount    int64
	LikeCount    int64
	CommentCount int64
	FetchedAt    time.Time
}

// Comment holds the immutable core fields of one ingested comment.
type Comment struct {
	ExternalID string
	VideoID    string
	AuthorID   string
	AuthorName string
	Text       string
	PostedAt   time.Time
	LikeCount  int64
}

// AuthenticityBreakdown records the contribution of each scorer feature so
// a score can be audited after the fact.
type AuthenticityBreakdown struct {
	DuplicateCount int     `json:"duplicate_count"`
	DuplicateScore float64 `json:"duplicate_score"`
	BurstScore     float64 `json:"burst_score"`
	AuthorScore    float64 `json:"author_score"`
	Whitelisted    bool    `json:"whitelisted"`
}

// CommentAuthenticity is the derived bot-suspicion annotation. Overwrite
// semantics: recomputing replaces the previous row.
type CommentAuthenticity struct {
	CommentID string
	Score     float64
	Breakdown AuthenticityBreakdown
	ScoredAt  time.Time
}

// SentimentLabel is the discrete polarity of a comment.
type SentimentLabel string

const (
	SentimentPositive SentimentLabel = "positive"
	SentimentNeutral  SentimentLabel = "neutral"
	SentimentNegative SentimentLabel = "negative"
)

// CommentSentiment is the derived sentiment annotation with calibrated
// confidence. Overwrite semantics.
type CommentSentiment struct {
	CommentID  string
	Label      SentimentLabel
	Confidence float64
	ScoredAt   time.Time
}

// Page is one fetched page of external items.
type Page struct {
	Items      []RawItem
	NextCursor string
}

// RawItem is one external API item before normalization.
type RawItem struct {
	ExternalID string
	Payload    []byte
}

// WriteReport accounts per-item outcomes of one persistence batch. A failed
// row never aborts the batch; it is counted here instead.
type WriteReport struct {
	Written int
	Skipped int
	Errors  []string
}

// Merge folds another report into this one.
func (r *WriteReport) Merge(other WriteReport) {
	r.Written += other.Written
	r.Skipped += other.Skipped
	r.Errors = append(r.Errors, other.Errors...)
}

// QualityStats carries the counts the data quality gate evaluates for one
// channel/day batch.
type QualityStats struct {
	TotalVideos        int
	VideosMissingID    int
	VideosMissingChan  int
	VideosMissingDate  int
	OrphanMetricRows   int
	DuplicateMetricKey int
	TotalMetricRows    int
	OutlierMetricRows  int
}

// QualityReport is the gate verdict. Flagged never rolls back written data;
// it only annotates the run outcome.
type QualityReport struct {
	Passed  bool
	Reasons []string
}

// RunSummary is the structured record surfaced to external monitoring.
type RunSummary struct {
	Run          EtlRun
	ChannelTitle string
}

// ChannelCounts exposes per-channel row counts for reporting collaborators.
type ChannelCounts struct {
	ChannelID   int64
	Videos      int64
	Metrics     int64
	Comments    int64
	Annotated   int64
	LastRunDate *time.Time
}
