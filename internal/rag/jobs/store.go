package jobs

import "context"

// Store durably persists job Records so RecoverOrphans can rehydrate state
// across a process restart — without it, a crash mid-run leaves no trace
// and a Running job from before the crash can never be marked orphaned.
type Store interface {
	SaveRecord(ctx context.Context, rec Record) error
	LoadRecords(ctx context.Context) ([]Record, error)
	DeleteRecord(ctx context.Context, id string) error
}
