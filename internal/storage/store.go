package storage

import (
	"context"

	"periplus/internal/model"
)

// Store defines persistence operations for run sessions. The engine calls
// it only through the Checkpointer; failures are best-effort and never
// abort an in-memory run.
type Store interface {
	Init(ctx context.Context) error

	SaveRunState(ctx context.Context, state model.RunState) error
	GetRunState(ctx context.Context, sessionID string) (model.RunState, bool, error)
	ListRunStates(ctx context.Context) ([]model.RunSummary, error)
	// DeleteRunState removes the session and every checkpoint it owns.
	DeleteRunState(ctx context.Context, sessionID string) error

	SaveCheckpoint(ctx context.Context, state model.RunState) error
	// ListCheckpoints returns checkpointed generations in ascending order.
	ListCheckpoints(ctx context.Context, sessionID string) ([]int, error)
	GetCheckpoint(ctx context.Context, sessionID string, generation int) (model.RunState, bool, error)
	LatestCheckpoint(ctx context.Context, sessionID string) (model.RunState, bool, error)
	DeleteCheckpoint(ctx context.Context, sessionID string, generation int) error
}

func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}
