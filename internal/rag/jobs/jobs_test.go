package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func waitForTerminal(t *testing.T, r *Runner, id string) Record {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rec, err := r.Get(id)
		require.NoError(t, err)
		if rec.Status == StatusCompleted || rec.Status == StatusFailed || rec.Status == StatusCancelled {
			return rec
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("job %s never reached a terminal state", id)
	return Record{}
}

func TestRunner_CompletesSuccessfulJob(t *testing.T) {
	r := NewRunner()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)

	id := r.Submit("reindex", "tester", 10, func(ctx context.Context, report func(int)) error {
		report(10)
		return nil
	})

	rec := waitForTerminal(t, r, id)
	require.Equal(t, StatusCompleted, rec.Status)
	require.Equal(t, 10, rec.ProcessedCount)
	require.False(t, rec.StartedAt.IsZero())
	require.False(t, rec.CompletedAt.IsZero())
}

func TestRunner_FailedJobRecordsError(t *testing.T) {
	r := NewRunner()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)

	id := r.Submit("evaluate", "tester", 0, func(ctx context.Context, report func(int)) error {
		return errors.New("boom")
	})

	rec := waitForTerminal(t, r, id)
	require.Equal(t, StatusFailed, rec.Status)
	require.Equal(t, "boom", rec.Error)
}

func TestRunner_CancelStopsRunningJob(t *testing.T) {
	r := NewRunner()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)

	started := make(chan struct{})
	id := r.Submit("reindex", "tester", 0, func(ctx context.Context, report func(int)) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})

	<-started
	require.NoError(t, r.Cancel(id))

	rec := waitForTerminal(t, r, id)
	require.Equal(t, StatusCancelled, rec.Status)
}

func TestRunner_CancelQueuedJobBeforeItStarts(t *testing.T) {
	r := NewRunner()
	// no Start: job stays queued until cancelled.
	id := r.Submit("reindex", "tester", 0, func(ctx context.Context, report func(int)) error {
		t.Fatal("task should never execute once cancelled while queued")
		return nil
	})

	require.NoError(t, r.Cancel(id))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)

	rec := waitForTerminal(t, r, id)
	require.Equal(t, StatusCancelled, rec.Status)
}

func TestRunner_CancelOnTerminalJobIsNoop(t *testing.T) {
	r := NewRunner()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)

	id := r.Submit("reindex", "tester", 0, func(ctx context.Context, report func(int)) error {
		return nil
	})
	waitForTerminal(t, r, id)

	require.NoError(t, r.Cancel(id))
	rec, err := r.Get(id)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, rec.Status)
}

func TestRunner_CancelUnknownJobReturnsNotFound(t *testing.T) {
	r := NewRunner()
	err := r.Cancel("does-not-exist")
	require.Error(t, err)
}

func TestRunner_RecoverOrphansFailsStaleRunningRecords(t *testing.T) {
	r := NewRunner()
	r.records["orphan-1"] = &Record{ID: "orphan-1", Status: StatusRunning}
	r.records["healthy"] = &Record{ID: "healthy", Status: StatusCompleted}

	recovered := r.RecoverOrphans()
	require.Equal(t, 1, recovered)

	rec, err := r.Get("orphan-1")
	require.NoError(t, err)
	require.Equal(t, StatusFailed, rec.Status)
	require.Equal(t, "orphaned", rec.Error)
}

func TestRunner_ListReturnsAllRecords(t *testing.T) {
	r := NewRunner()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)

	id1 := r.Submit("reindex", "a", 0, func(ctx context.Context, report func(int)) error { return nil })
	id2 := r.Submit("evaluate", "b", 0, func(ctx context.Context, report func(int)) error { return nil })
	waitForTerminal(t, r, id1)
	waitForTerminal(t, r, id2)

	all := r.List()
	require.Len(t, all, 2)
}

// fakeStore is an in-memory Store stand-in, used since the test suite has
// no live Redis instance to exercise RedisStore against.
type fakeStore struct {
	mu      sync.Mutex
	records map[string]Record
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]Record)}
}

func (s *fakeStore) SaveRecord(ctx context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = rec
	return nil
}

func (s *fakeStore) DeleteRecord(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

func (s *fakeStore) LoadRecords(ctx context.Context) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	return out, nil
}

func TestRunnerWithStore_PersistsTerminalStatus(t *testing.T) {
	store := newFakeStore()
	r := NewRunnerWithStore(store)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)

	id := r.Submit("reindex", "tester", 1, func(ctx context.Context, report func(int)) error {
		report(1)
		return nil
	})
	waitForTerminal(t, r, id)

	recs, err := store.LoadRecords(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, StatusCompleted, recs[0].Status)
}

func TestRunnerWithStore_HydrateRebuildsOrphanCandidates(t *testing.T) {
	store := newFakeStore()
	require.NoError(t, store.SaveRecord(context.Background(), Record{ID: "crashed-1", Status: StatusRunning}))

	r := NewRunnerWithStore(store)
	require.NoError(t, r.Hydrate(context.Background()))

	recovered := r.RecoverOrphans()
	require.Equal(t, 1, recovered)

	rec, err := r.Get("crashed-1")
	require.NoError(t, err)
	require.Equal(t, StatusFailed, rec.Status)
}
