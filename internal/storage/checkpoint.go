package storage

import (
	"context"
	"fmt"

	"periplus/internal/model"
)

// CheckpointPolicy controls retention: keep only the most recent Retention
// checkpoints per session (0 keeps all).
type CheckpointPolicy struct {
	Retention int
}

// Checkpointer is the engine's state sink. It persists periodic checkpoints
// with retention pruning, and the terminal run state at completion or pause.
// Errors are returned for the caller to record as warnings; nothing here is
// fatal to a run.
type Checkpointer struct {
	store  Store
	policy CheckpointPolicy
}

func NewCheckpointer(store Store, policy CheckpointPolicy) *Checkpointer {
	return &Checkpointer{store: store, policy: policy}
}

func (c *Checkpointer) Checkpoint(ctx context.Context, state model.RunState) error {
	if err := c.store.SaveCheckpoint(ctx, state); err != nil {
		return fmt.Errorf("save checkpoint %s@%d: %w", state.SessionID, state.Generation, err)
	}
	return c.prune(ctx, state.SessionID)
}

func (c *Checkpointer) SaveFinal(ctx context.Context, state model.RunState) error {
	if err := c.store.SaveRunState(ctx, state); err != nil {
		return fmt.Errorf("save run state %s: %w", state.SessionID, err)
	}
	return nil
}

func (c *Checkpointer) prune(ctx context.Context, sessionID string) error {
	if c.policy.Retention <= 0 {
		return nil
	}
	generations, err := c.store.ListCheckpoints(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("list checkpoints %s: %w", sessionID, err)
	}
	for len(generations) > c.policy.Retention {
		generation := generations[0]
		if err := c.store.DeleteCheckpoint(ctx, sessionID, generation); err != nil {
			return fmt.Errorf("prune checkpoint %s@%d: %w", sessionID, generation, err)
		}
		generations = generations[1:]
	}
	return nil
}
