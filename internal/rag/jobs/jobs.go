// Package jobs implements the background job runner (C22): a durable queue
// of long-running operations (reindex, batch evaluation), exposing
// cancellation handles and forward-only status transitions so a caller can
// poll or cancel a job without racing its worker goroutine.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"ragforge/internal/rag/ragerr"
)

// Status is a job's lifecycle state. Transitions are forward-only: Queued ->
// Running -> {Completed, Failed, Cancelled}, and a job cancelled while still
// queued goes directly Queued -> Cancelled. There is no path back to an
// earlier state.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// terminal reports whether a status has no further transitions.
func (s Status) terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// forwardOrder ranks a status by how far along the lifecycle it is, used to
// reject any transition that would move a job backward.
var forwardOrder = map[Status]int{
	StatusQueued:    0,
	StatusRunning:   1,
	StatusCompleted: 2,
	StatusFailed:    2,
	StatusCancelled: 2,
}

// Record is the durable state of one background job.
type Record struct {
	ID             string
	Kind           string
	Status         Status
	Initiator      string
	StartedAt      time.Time
	CompletedAt    time.Time
	EstimatedCount int
	ProcessedCount int
	Error          string
}

// Task is the work a job performs. report lets the task publish incremental
// progress; it is safe to call from the task's own goroutine only.
type Task func(ctx context.Context, report func(processed int)) error

// Runner is a durable, single-consumer background job queue. Jobs are
// accepted onto an in-memory channel buffered to 4096 jobs (Submit blocks
// while it is full; the queue is not unbounded) and executed one at a time by
// a dedicated goroutine, matching the corpus's dataset/worker split between
// cheap enqueue and a dedicated execution loop.
type Runner struct {
	mu      sync.Mutex
	records map[string]*Record
	handles map[string]context.CancelFunc
	queue   chan queuedJob
	started bool
	store   Store
}

type queuedJob struct {
	id   string
	task Task
}

// NewRunner constructs a Runner with no durable backing: records live only
// in memory and do not survive a process restart.
func NewRunner() *Runner {
	return &Runner{
		records: make(map[string]*Record),
		handles: make(map[string]context.CancelFunc),
		queue:   make(chan queuedJob, 4096),
	}
}

// NewRunnerWithStore constructs a Runner backed by a durable Store (see
// RedisStore). Every status transition is persisted best-effort: a failed
// write is logged, not propagated, since a job's in-memory state is always
// authoritative for the life of the process — the store only matters across
// a restart, which Hydrate reads back from.
func NewRunnerWithStore(store Store) *Runner {
	r := NewRunner()
	r.store = store
	return r
}

// Hydrate loads every record the store holds into memory, skipping any id
// already tracked locally. Call once at startup, before Start, so
// RecoverOrphans has pre-crash Running records to scan.
func (r *Runner) Hydrate(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	recs, err := r.store.LoadRecords(ctx)
	if err != nil {
		return fmt.Errorf("jobs: hydrate: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range recs {
		rec := rec
		if _, ok := r.records[rec.ID]; !ok {
			r.records[rec.ID] = &rec
		}
	}
	return nil
}

// persist best-effort saves rec to the durable store, if one is configured.
// Callers pass a snapshot copy taken under r.mu, never the live pointer, and
// call persist after releasing r.mu, so it never races a concurrent mutation.
func (r *Runner) persist(rec Record) {
	if r.store == nil {
		return
	}
	if err := r.store.SaveRecord(context.Background(), rec); err != nil {
		log.Error().Err(err).Str("job_id", rec.ID).Msg("jobs_persist_failed")
	}
}

// Start launches the single consumer goroutine. It is safe to call once;
// calling it again is a no-op.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return
	}
	r.started = true
	r.mu.Unlock()

	go r.consume(ctx)
}

func (r *Runner) consume(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-r.queue:
			if !ok {
				return
			}
			r.run(ctx, job)
		}
	}
}

// Submit enqueues a new job and returns its record id immediately.
func (r *Runner) Submit(kind, initiator string, estimatedCount int, task Task) string {
	id := uuid.NewString()

	rec := Record{
		ID:             id,
		Kind:           kind,
		Status:         StatusQueued,
		Initiator:      initiator,
		EstimatedCount: estimatedCount,
	}
	r.mu.Lock()
	r.records[id] = &rec
	r.mu.Unlock()
	r.persist(rec)

	r.queue <- queuedJob{id: id, task: task}
	return id
}

func (r *Runner) run(parent context.Context, job queuedJob) {
	ctx, cancel := context.WithCancel(parent)

	r.mu.Lock()
	rec, ok := r.records[job.id]
	if !ok || rec.Status.terminal() {
		// cancelled while still queued: nothing left to run.
		r.mu.Unlock()
		cancel()
		return
	}
	r.handles[job.id] = cancel
	r.transitionLocked(rec, StatusRunning)
	rec.StartedAt = time.Now()
	snapshot := *rec
	r.mu.Unlock()
	r.persist(snapshot)

	report := func(processed int) {
		r.mu.Lock()
		if rec, ok := r.records[job.id]; ok {
			rec.ProcessedCount = processed
		}
		r.mu.Unlock()
	}

	err := job.task(ctx, report)

	r.mu.Lock()
	delete(r.handles, job.id)
	rec.CompletedAt = time.Now()
	switch {
	case ctx.Err() == context.Canceled:
		r.transitionLocked(rec, StatusCancelled)
	case err != nil:
		rec.Error = err.Error()
		r.transitionLocked(rec, StatusFailed)
	default:
		r.transitionLocked(rec, StatusCompleted)
	}
	snapshot := *rec
	r.mu.Unlock()
	r.persist(snapshot)
	cancel()
}

// transitionLocked applies a forward-only status change. Callers must hold
// r.mu. A backward or repeated-terminal transition is silently ignored
// rather than panicking, since it can only be reached by a racing cancel
// arriving after natural completion.
func (r *Runner) transitionLocked(rec *Record, next Status) {
	if rec.Status.terminal() {
		return
	}
	if forwardOrder[next] < forwardOrder[rec.Status] {
		return
	}
	rec.Status = next
}

// Cancel requests cancellation of a running or queued job. Cancelling an
// already-terminal job is a no-op, not an error.
func (r *Runner) Cancel(id string) error {
	r.mu.Lock()

	rec, ok := r.records[id]
	if !ok {
		r.mu.Unlock()
		return ragerr.New(ragerr.NotFound, fmt.Sprintf("jobs: job %q not found", id))
	}
	if rec.Status.terminal() {
		r.mu.Unlock()
		return nil
	}
	if cancel, ok := r.handles[id]; ok {
		r.mu.Unlock()
		cancel()
		return nil
	}
	// queued but not yet picked up by the consumer: mark cancelled directly
	// so the consumer's run() sees a terminal record and skips execution.
	r.transitionLocked(rec, StatusCancelled)
	rec.CompletedAt = time.Now()
	snapshot := *rec
	r.mu.Unlock()
	r.persist(snapshot)
	return nil
}

// Get returns a copy of a job's current record.
func (r *Runner) Get(id string) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return Record{}, ragerr.New(ragerr.NotFound, fmt.Sprintf("jobs: job %q not found", id))
	}
	return *rec, nil
}

// List returns a snapshot of every known job record.
func (r *Runner) List() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, *rec)
	}
	return out
}

// RecoverOrphans marks every job still Running with no live cancellation
// handle as Failed("orphaned"). Call once at process startup after
// rehydrating records from durable storage: a Running record surviving a
// crash has no goroutine backing it, and would otherwise poll as in-progress
// forever.
func (r *Runner) RecoverOrphans() int {
	r.mu.Lock()

	recovered := 0
	var toPersist []Record
	for _, rec := range r.records {
		if rec.Status != StatusRunning {
			continue
		}
		if _, live := r.handles[rec.ID]; live {
			continue
		}
		rec.Error = "orphaned"
		rec.CompletedAt = time.Now()
		r.transitionLocked(rec, StatusFailed)
		toPersist = append(toPersist, *rec)
		recovered++
	}
	r.mu.Unlock()

	for _, rec := range toPersist {
		r.persist(rec)
	}
	return recovered
}
