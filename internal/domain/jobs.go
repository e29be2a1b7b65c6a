package domain

import (
	"context"
	"time"
)

// IngestJobCause describes what triggered an ingest job.
type IngestJobCause string

const (
	// IngestCauseScheduled — the scheduler enqueued the daily run.
	IngestCauseScheduled IngestJobCause = "scheduled"
	// IngestCauseManual — an operator requested an out-of-band run.
	IngestCauseManual IngestJobCause = "manual"
)

// IngestJob asks the collector to run the full pipeline for one UTC day.
// Whether any channel is actually fetched is decided by the run ledger, so
// redelivery of the same job wastes no quota.
type IngestJob struct {
	ID          string         `json:"job_id"`
	Day         time.Time      `json:"day"`
	Cause       IngestJobCause `json:"cause"`
	RequestedAt time.Time      `json:"requested_at"`
}

// IngestAckFunc confirms processing or asks for redelivery.
type IngestAckFunc func(success bool) error

// IngestQueue transports ingest jobs between the scheduler and collector.
type IngestQueue interface {
	Enqueue(ctx context.Context, job IngestJob) error
	Receive(ctx context.Context) (IngestJob, IngestAckFunc, error)
}

// JobStatusRepo tracks delivery attempts so a redelivered job is processed
// at most once.
type JobStatusRepo interface {
	// EnsureJob registers an attempt and reports whether the job was
	// already completed, plus the current attempt number.
	EnsureJob(jobID string) (done bool, attempt int, err error)
	// MarkJobDone marks the job as finally processed.
	MarkJobDone(jobID string) error
}

// ScheduleMarkRepo makes the daily enqueue idempotent across scheduler
// restarts via a unique (day) row.
type ScheduleMarkRepo interface {
	// AcquireDay returns true when this process is the first to claim the
	// day. Conflicts return false without error.
	AcquireDay(day time.Time) (bool, error)
	// ReleaseDay drops the claim so a later tick can retry the enqueue.
	ReleaseDay(day time.Time) error
}
