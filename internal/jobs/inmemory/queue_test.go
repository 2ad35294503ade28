package inmemory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dkovalev/spendlens/internal/jobs"
)

func waitForStatus(t *testing.T, s *Store, jobID string, want jobs.JobStatus) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := s.GetJob(context.Background(), jobID)
		if err == nil && job.Status == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	job, _ := s.GetJob(context.Background(), jobID)
	t.Fatalf("job never reached %q: %+v", want, job)
}

func TestQueue_PublishAndConsume(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	q := NewQueue(8, 2, store)
	defer q.Close()

	var handled atomic.Int32
	if err := q.Start(ctx, func(_ context.Context, job jobs.Job) error {
		handled.Add(1)
		return nil
	}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	job := &jobs.ParseStatementJob{UserID: "u1", Filename: "march.csv"}
	if err := q.PublishParseStatement(ctx, job); err != nil {
		t.Fatalf("publish: %v", err)
	}

	waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	if handled.Load() != 1 {
		t.Errorf("handler ran %d times, want 1", handled.Load())
	}
}

func TestQueue_RetriesThenFails(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	q := NewQueue(8, 1, store)
	defer q.Close()

	var attempts atomic.Int32
	if err := q.Start(ctx, func(context.Context, jobs.Job) error {
		attempts.Add(1)
		return errors.New("boom")
	}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	job := &jobs.ParseStatementJob{UserID: "u1", Filename: "march.csv", MaxRetries: 1}
	if err := q.PublishParseStatement(ctx, job); err != nil {
		t.Fatalf("publish: %v", err)
	}

	waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
	if got := attempts.Load(); got != 2 {
		t.Errorf("attempts = %d, want initial try plus one retry", got)
	}
	final, _ := store.GetJob(ctx, job.JobID)
	if final.Error == "" {
		t.Error("failed job should carry its error")
	}
}

func TestQueue_PublishAfterClose(t *testing.T) {
	q := NewQueue(1, 1, nil)
	if err := q.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := q.PublishParseStatement(context.Background(), &jobs.ParseStatementJob{}); err == nil {
		t.Error("publishing to a closed queue should fail")
	}
}

func TestStore_ListJobsFilter(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	for i, j := range []*jobs.ParseStatementJob{
		{JobID: "j1", UserID: "u1", Status: jobs.JobStatusPending},
		{JobID: "j2", UserID: "u1", Status: jobs.JobStatusCompleted},
		{JobID: "j3", UserID: "u2", Status: jobs.JobStatusPending},
	} {
		if err := s.SaveJob(ctx, j); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}

	got, err := s.ListJobs(ctx, jobs.JobFilter{UserID: "u1"})
	if err != nil || len(got) != 2 {
		t.Errorf("user filter: got %d jobs, err %v", len(got), err)
	}

	got, _ = s.ListJobs(ctx, jobs.JobFilter{UserID: "u1", Status: jobs.JobStatusPending})
	if len(got) != 1 || got[0].JobID != "j1" {
		t.Errorf("status filter: %+v", got)
	}
}
