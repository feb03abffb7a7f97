package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"periplus/internal/model"
)

// MemoryStore is the default in-process backend. States round-trip through
// the codec so memory and sqlite behave identically, defensive copies
// included.
type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	states      map[string][]byte
	summaries   map[string]model.RunSummary
	checkpoints map[string]map[int][]byte
	now         func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.states = make(map[string][]byte)
	s.summaries = make(map[string]model.RunSummary)
	s.checkpoints = make(map[string]map[int][]byte)
	return nil
}

func (s *MemoryStore) SaveRunState(_ context.Context, state model.RunState) error {
	payload, err := EncodeRunState(state)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.states[state.SessionID] = payload
	s.summaries[state.SessionID] = summarize(state, s.now())
	return nil
}

func (s *MemoryStore) GetRunState(_ context.Context, sessionID string) (model.RunState, bool, error) {
	s.mu.RLock()
	payload, ok := s.states[sessionID]
	s.mu.RUnlock()

	if !ok {
		return model.RunState{}, false, nil
	}
	state, err := DecodeRunState(payload)
	if err != nil {
		return model.RunState{}, false, err
	}
	return state, true, nil
}

func (s *MemoryStore) ListRunStates(_ context.Context) ([]model.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.RunSummary, 0, len(s.summaries))
	for _, summary := range s.summaries {
		out = append(out, summary)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SessionID < out[j].SessionID
	})
	return out, nil
}

func (s *MemoryStore) DeleteRunState(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.states, sessionID)
	delete(s.summaries, sessionID)
	delete(s.checkpoints, sessionID)
	return nil
}

func (s *MemoryStore) SaveCheckpoint(_ context.Context, state model.RunState) error {
	payload, err := EncodeRunState(state)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	perSession := s.checkpoints[state.SessionID]
	if perSession == nil {
		perSession = make(map[int][]byte)
		s.checkpoints[state.SessionID] = perSession
	}
	perSession[state.Generation] = payload
	return nil
}

func (s *MemoryStore) ListCheckpoints(_ context.Context, sessionID string) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	generations := make([]int, 0, len(s.checkpoints[sessionID]))
	for generation := range s.checkpoints[sessionID] {
		generations = append(generations, generation)
	}
	sort.Ints(generations)
	return generations, nil
}

func (s *MemoryStore) GetCheckpoint(_ context.Context, sessionID string, generation int) (model.RunState, bool, error) {
	s.mu.RLock()
	payload, ok := s.checkpoints[sessionID][generation]
	s.mu.RUnlock()

	if !ok {
		return model.RunState{}, false, nil
	}
	state, err := DecodeRunState(payload)
	if err != nil {
		return model.RunState{}, false, err
	}
	return state, true, nil
}

func (s *MemoryStore) LatestCheckpoint(ctx context.Context, sessionID string) (model.RunState, bool, error) {
	generations, err := s.ListCheckpoints(ctx, sessionID)
	if err != nil || len(generations) == 0 {
		return model.RunState{}, false, err
	}
	return s.GetCheckpoint(ctx, sessionID, generations[len(generations)-1])
}

func (s *MemoryStore) DeleteCheckpoint(_ context.Context, sessionID string, generation int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.checkpoints[sessionID], generation)
	return nil
}

func summarize(state model.RunState, now time.Time) model.RunSummary {
	summary := model.RunSummary{
		SessionID:    state.SessionID,
		Status:       state.Status,
		Generation:   state.Generation,
		CityCount:    len(state.Cities),
		UpdatedAtUTC: now.UTC().Format(time.RFC3339),
	}
	if state.Best != nil {
		summary.BestDistance = state.Best.Distance
	}
	return summary
}
