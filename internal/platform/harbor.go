// Package platform hosts run sessions: it owns the store, tracks active
// runs, and routes pause/stop commands to their engines.
package platform

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"periplus/internal/evo"
	"periplus/internal/model"
	"periplus/internal/storage"
)

const controlBuffer = 16

type RunSpec struct {
	SessionID string // generated when empty
	Cities    []model.City
	Config    model.RunConfig
	Workers   int
}

// ActiveRun is the caller's view of a launched session: the snapshot
// sequence plus post-run accessors.
type ActiveRun struct {
	SessionID string
	Snapshots <-chan evo.Snapshot

	engine *evo.Engine
}

func (r *ActiveRun) Status() model.RunStatus { return r.engine.Status() }

func (r *ActiveRun) Warnings() []string { return r.engine.Warnings() }

func (r *ActiveRun) Diagnostics() evo.Diagnostics { return r.engine.RunDiagnostics() }

// Harbor registers every active run under its session id so that commands
// can reach the right engine, and rejects duplicate session ids.
type Harbor struct {
	store  storage.Store
	policy storage.CheckpointPolicy

	mu      sync.RWMutex
	started bool
	runs    map[string]chan evo.Command
}

func NewHarbor(store storage.Store, policy storage.CheckpointPolicy) *Harbor {
	return &Harbor{
		store:  store,
		policy: policy,
		runs:   make(map[string]chan evo.Command),
	}
}

func (h *Harbor) Init(ctx context.Context) error {
	if h.store == nil {
		return fmt.Errorf("store is required")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.started {
		return nil
	}
	if err := h.store.Init(ctx); err != nil {
		return err
	}
	h.started = true
	return nil
}

// StartRun builds a fresh engine for the requested run and launches it.
// Strategy resolution and config validation fail here, before the loop
// starts.
func (h *Harbor) StartRun(ctx context.Context, spec RunSpec) (*ActiveRun, error) {
	sessionID := spec.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	control := make(chan evo.Command, controlBuffer)
	engine, err := evo.NewEngine(evo.EngineConfig{
		SessionID: sessionID,
		Cities:    spec.Cities,
		Config:    spec.Config,
		Workers:   spec.Workers,
		Sink:      storage.NewCheckpointer(h.store, h.policy),
		Control:   control,
	})
	if err != nil {
		return nil, err
	}
	return h.launch(ctx, engine, control)
}

// ResumeRun re-enters a persisted session. The saved run state is
// preferred; when only periodic checkpoints survive, the latest one is
// used.
func (h *Harbor) ResumeRun(ctx context.Context, sessionID string, workers int) (*ActiveRun, error) {
	state, ok, err := h.store.GetRunState(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !ok {
		state, ok, err = h.store.LatestCheckpoint(ctx, sessionID)
		if err != nil {
			return nil, err
		}
	}
	if !ok {
		return nil, fmt.Errorf("session not found: %s", sessionID)
	}

	control := make(chan evo.Command, controlBuffer)
	engine, err := evo.NewEngineFromState(evo.EngineConfig{
		Workers: workers,
		Sink:    storage.NewCheckpointer(h.store, h.policy),
		Control: control,
	}, state)
	if err != nil {
		return nil, err
	}
	return h.launch(ctx, engine, control)
}

func (h *Harbor) launch(ctx context.Context, engine *evo.Engine, control chan evo.Command) (*ActiveRun, error) {
	sessionID := engine.SessionID()
	if err := h.registerRun(sessionID, control); err != nil {
		return nil, err
	}

	snapshots, err := engine.Run(ctx)
	if err != nil {
		h.unregisterRun(sessionID)
		return nil, err
	}

	out := make(chan evo.Snapshot, 1)
	go func() {
		defer h.unregisterRun(sessionID)
		defer close(out)
		for snap := range snapshots {
			// Prefer the buffered send so the terminal snapshot still
			// lands after cancellation.
			select {
			case out <- snap:
				continue
			default:
			}
			select {
			case out <- snap:
			case <-ctx.Done():
			}
		}
	}()

	return &ActiveRun{SessionID: sessionID, Snapshots: out, engine: engine}, nil
}

func (h *Harbor) PauseRun(sessionID string) error {
	return h.sendCommand(sessionID, evo.CommandPause)
}

func (h *Harbor) StopRun(sessionID string) error {
	return h.sendCommand(sessionID, evo.CommandStop)
}

func (h *Harbor) Sessions(ctx context.Context) ([]model.RunSummary, error) {
	return h.store.ListRunStates(ctx)
}

// DeleteSession removes a persisted session and its checkpoints. Active
// runs must be stopped or paused first.
func (h *Harbor) DeleteSession(ctx context.Context, sessionID string) error {
	h.mu.RLock()
	_, active := h.runs[sessionID]
	h.mu.RUnlock()
	if active {
		return fmt.Errorf("session is active: %s", sessionID)
	}
	return h.store.DeleteRunState(ctx, sessionID)
}

// Shutdown asks every active run to stop at its next generation boundary.
func (h *Harbor) Shutdown() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, control := range h.runs {
		select {
		case control <- evo.CommandStop:
		default:
		}
	}
}

func (h *Harbor) registerRun(sessionID string, control chan evo.Command) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.started {
		return fmt.Errorf("harbor is not initialized")
	}
	if _, exists := h.runs[sessionID]; exists {
		return fmt.Errorf("run already active: %s", sessionID)
	}
	h.runs[sessionID] = control
	return nil
}

func (h *Harbor) unregisterRun(sessionID string) {
	h.mu.Lock()
	delete(h.runs, sessionID)
	h.mu.Unlock()
}

func (h *Harbor) sendCommand(sessionID string, cmd evo.Command) error {
	h.mu.RLock()
	control, ok := h.runs[sessionID]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("run not active: %s", sessionID)
	}
	select {
	case control <- cmd:
		return nil
	default:
		return fmt.Errorf("run control channel is full: %s", sessionID)
	}
}
