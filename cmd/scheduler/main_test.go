package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"yt-pulse/internal/domain"
)

type stubMarks struct {
	claimed  map[string]bool
	released int
}

func newStubMarks() *stubMarks {
	return &stubMarks{claimed: map[string]bool{}}
}

func (s *stubMarks) AcquireDay(day time.Time) (bool, error) {
	key := day.Format("2006-01-02")
	if s.claimed[key] {
		return false, nil
	}
	s.claimed[key] = true
	return true, nil
}

func (s *stubMarks) ReleaseDay(day time.Time) error {
	delete(s.claimed, day.Format("2006-01-02"))
	s.released++
	return nil
}

type stubQueue struct {
	failures int
	jobs     []domain.IngestJob
}

func (s *stubQueue) Enqueue(_ context.Context, job domain.IngestJob) error {
	if s.failures > 0 {
		s.failures--
		return errors.New("channel closed")
	}
	s.jobs = append(s.jobs, job)
	return nil
}

func (s *stubQueue) Receive(context.Context) (domain.IngestJob, domain.IngestAckFunc, error) {
	return domain.IngestJob{}, nil, errors.New("not a consumer")
}

func TestEnqueueTodayOncePerDay(t *testing.T) {
	marks := newStubMarks()
	q := &stubQueue{}

	for i := 0; i < 3; i++ {
		enqueueToday(context.Background(), zerolog.Nop(), marks, q)
	}

	if len(q.jobs) != 1 {
		t.Fatalf("jobs enqueued = %d, want 1", len(q.jobs))
	}
	if q.jobs[0].Cause != domain.IngestCauseScheduled {
		t.Fatalf("cause = %s, want scheduled", q.jobs[0].Cause)
	}
}

func TestEnqueueTodayReleasesMarkOnPublishFailure(t *testing.T) {
	marks := newStubMarks()
	q := &stubQueue{failures: 1}

	enqueueToday(context.Background(), zerolog.Nop(), marks, q)
	if len(q.jobs) != 0 {
		t.Fatalf("failed publish still produced a job")
	}
	if marks.released != 1 {
		t.Fatalf("day mark not released after failed publish")
	}

	// The next tick must be able to claim the day again.
	enqueueToday(context.Background(), zerolog.Nop(), marks, q)
	if len(q.jobs) != 1 {
		t.Fatalf("jobs after retry = %d, want 1", len(q.jobs))
	}
}
