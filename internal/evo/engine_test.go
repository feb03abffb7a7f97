package evo

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"periplus/internal/model"
)

// recordingSink captures every persisted state and can be forced to fail.
type recordingSink struct {
	mu          sync.Mutex
	checkpoints []model.RunState
	finals      []model.RunState
	err         error
}

func (s *recordingSink) Checkpoint(_ context.Context, state model.RunState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.checkpoints = append(s.checkpoints, state)
	return nil
}

func (s *recordingSink) SaveFinal(_ context.Context, state model.RunState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.finals = append(s.finals, state)
	return nil
}

func (s *recordingSink) lastFinal(t *testing.T) model.RunState {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.finals) == 0 {
		t.Fatal("no final state was saved")
	}
	return s.finals[len(s.finals)-1]
}

func fiveCities() []model.City {
	return []model.City{
		{ID: 0, X: 0, Y: 0},
		{ID: 1, X: 10, Y: 0},
		{ID: 2, X: 10, Y: 10},
		{ID: 3, X: 0, Y: 10},
		{ID: 4, X: 5, Y: 5},
	}
}

func baseConfig() model.RunConfig {
	return model.RunConfig{
		PopulationSize:     20,
		MaxGenerations:     50,
		MutationRate:       0.2,
		CrossoverRate:      0.9,
		ElitismRate:        0.1,
		TournamentSize:     3,
		StagnationLimit:    0,
		ReportInterval:     5,
		CheckpointInterval: 10,
		Seed:               42,
		Crossover:          "order",
		Mutation:           "swap",
		Fitness:            "inverse_distance",
	}
}

func drain(t *testing.T, snapshots <-chan Snapshot) []Snapshot {
	t.Helper()
	var out []Snapshot
	for snap := range snapshots {
		out = append(out, snap)
	}
	return out
}

func TestEngineRunsToCompletion(t *testing.T) {
	sink := &recordingSink{}
	engine, err := NewEngine(EngineConfig{
		SessionID: "run-a",
		Cities:    fiveCities(),
		Config:    baseConfig(),
		Workers:   2,
		Sink:      sink,
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	snapshots, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	all := drain(t, snapshots)

	terminals := 0
	lastDistance := 0.0
	for i, snap := range all {
		if snap.IsComplete {
			terminals++
		}
		if snap.Generation == 0 {
			t.Fatal("no snapshot may report generation 0")
		}
		if i > 0 && snap.BestDistance > lastDistance+1e-9 {
			t.Fatalf("best distance regressed: %.6f -> %.6f", lastDistance, snap.BestDistance)
		}
		lastDistance = snap.BestDistance
	}
	if terminals != 1 {
		t.Fatalf("got %d terminal snapshots, want exactly 1", terminals)
	}

	final := all[len(all)-1]
	if !final.IsComplete {
		t.Fatal("terminal snapshot must be the last one")
	}
	if final.Generation != 50 {
		t.Fatalf("terminal generation %d, want 50", final.Generation)
	}
	if engine.Status() != model.StatusCompleted {
		t.Fatalf("status %s, want completed", engine.Status())
	}

	// Intervals 10 through 40; the final generation is persisted as run
	// state, not as a checkpoint.
	if len(sink.checkpoints) != 4 {
		t.Fatalf("got %d checkpoints, want 4", len(sink.checkpoints))
	}
	state := sink.lastFinal(t)
	if state.Status != model.StatusCompleted || state.Generation != 50 {
		t.Fatalf("final state: status %s generation %d", state.Status, state.Generation)
	}
	if len(state.ConvergenceHistory) != 50 {
		t.Fatalf("history length %d, want 50", len(state.ConvergenceHistory))
	}
}

func TestEngineIsSeedDeterministic(t *testing.T) {
	run := func() Snapshot {
		engine, err := NewEngine(EngineConfig{
			SessionID: "det",
			Cities:    fiveCities(),
			Config:    baseConfig(),
			Workers:   4,
		})
		if err != nil {
			t.Fatalf("new engine: %v", err)
		}
		snapshots, err := engine.Run(context.Background())
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		all := drain(t, snapshots)
		return all[len(all)-1]
	}

	first := run()
	second := run()
	if first.BestFitness != second.BestFitness || first.BestDistance != second.BestDistance {
		t.Fatalf("same seed diverged: %+v vs %+v", first, second)
	}
	for i := range first.BestTour {
		if first.BestTour[i] != second.BestTour[i] {
			t.Fatalf("best tours diverge at %d: %v vs %v", i, first.BestTour, second.BestTour)
		}
	}
}

func TestEngineHandlesMinimumProblemSize(t *testing.T) {
	cfg := baseConfig()
	cfg.PopulationSize = 10
	cfg.MaxGenerations = 5
	cfg.TournamentSize = 2
	engine, err := NewEngine(EngineConfig{
		SessionID: "tiny",
		Cities:    fiveCities()[:3],
		Config:    cfg,
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	snapshots, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	all := drain(t, snapshots)
	final := all[len(all)-1]
	if !final.IsComplete || final.Generation != 5 {
		t.Fatalf("unexpected terminal snapshot: %+v", final)
	}
}

// With three cities every tour has the same length, so the best candidate
// can never improve and stagnation must fire exactly at the limit.
func TestEngineStopsOnStagnation(t *testing.T) {
	cfg := baseConfig()
	cfg.PopulationSize = 10
	cfg.MaxGenerations = 1000
	cfg.StagnationLimit = 5
	cfg.TournamentSize = 2
	engine, err := NewEngine(EngineConfig{
		SessionID: "stagnant",
		Cities:    fiveCities()[:3],
		Config:    cfg,
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	snapshots, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	all := drain(t, snapshots)
	final := all[len(all)-1]
	if !final.IsComplete || final.Generation != 5 {
		t.Fatalf("stagnation should terminate at generation 5, got %+v", final)
	}
	if engine.Status() != model.StatusCompleted {
		t.Fatalf("status %s, want completed", engine.Status())
	}
}

func TestEnginePauseSavesPausedState(t *testing.T) {
	sink := &recordingSink{}
	control := make(chan Command, 1)
	control <- CommandPause

	engine, err := NewEngine(EngineConfig{
		SessionID: "pausable",
		Cities:    fiveCities(),
		Config:    baseConfig(),
		Sink:      sink,
		Control:   control,
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	snapshots, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	all := drain(t, snapshots)

	final := all[len(all)-1]
	if !final.IsComplete || final.Generation != 1 {
		t.Fatalf("pause should land after the first generation, got %+v", final)
	}
	if engine.Status() != model.StatusPaused {
		t.Fatalf("status %s, want paused", engine.Status())
	}
	state := sink.lastFinal(t)
	if state.Status != model.StatusPaused {
		t.Fatalf("saved status %s, want paused", state.Status)
	}
	if len(state.Population) != baseConfig().PopulationSize {
		t.Fatalf("saved population %d, want %d", len(state.Population), baseConfig().PopulationSize)
	}
}

func TestEngineStopCommand(t *testing.T) {
	control := make(chan Command, 1)
	control <- CommandStop

	engine, err := NewEngine(EngineConfig{
		SessionID: "stoppable",
		Cities:    fiveCities(),
		Config:    baseConfig(),
		Control:   control,
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	snapshots, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	all := drain(t, snapshots)
	final := all[len(all)-1]
	if !final.IsComplete || final.Generation != 1 {
		t.Fatalf("stop should land after the first generation, got %+v", final)
	}
	if engine.Status() != model.StatusCompleted {
		t.Fatalf("status %s, want completed", engine.Status())
	}
}

func TestEngineResumeContinuesSession(t *testing.T) {
	sink := &recordingSink{}
	control := make(chan Command, 1)
	control <- CommandPause
	engine, err := NewEngine(EngineConfig{
		SessionID: "resumable",
		Cities:    fiveCities(),
		Config:    baseConfig(),
		Sink:      sink,
		Control:   control,
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	snapshots, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	drain(t, snapshots)
	paused := sink.lastFinal(t)

	resumedSink := &recordingSink{}
	resumed, err := NewEngineFromState(EngineConfig{Sink: resumedSink}, paused)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if resumed.SessionID() != "resumable" {
		t.Fatalf("session id %q, want resumable", resumed.SessionID())
	}

	snapshots, err = resumed.Run(context.Background())
	if err != nil {
		t.Fatalf("run resumed: %v", err)
	}
	all := drain(t, snapshots)
	final := all[len(all)-1]
	if final.Generation != 50 {
		t.Fatalf("resumed run terminated at generation %d, want 50", final.Generation)
	}

	state := resumedSink.lastFinal(t)
	if state.Status != model.StatusCompleted {
		t.Fatalf("resumed final status %s, want completed", state.Status)
	}
	if len(state.ConvergenceHistory) != 50 {
		t.Fatalf("resumed history length %d, want 50", len(state.ConvergenceHistory))
	}
	// The paused prefix survives the resume untouched.
	for i, v := range paused.ConvergenceHistory {
		if state.ConvergenceHistory[i] != v {
			t.Fatalf("history prefix diverged at %d", i)
		}
	}
	// Elapsed time accumulates across suspensions.
	if state.ElapsedMillis < paused.ElapsedMillis {
		t.Fatalf("elapsed went backwards: %d -> %d", paused.ElapsedMillis, state.ElapsedMillis)
	}
}

func TestEngineRejectsCompletedState(t *testing.T) {
	state := model.RunState{SessionID: "done", Status: model.StatusCompleted}
	if _, err := NewEngineFromState(EngineConfig{}, state); err == nil {
		t.Fatal("expected error resuming a completed session")
	}
}

func TestEngineRejectsCorruptStatePopulation(t *testing.T) {
	cfg := baseConfig()
	state := model.RunState{
		SessionID:  "corrupt",
		Config:     cfg,
		Cities:     fiveCities(),
		Status:     model.StatusPaused,
		Population: []model.CandidateRecord{{Order: []int{0, 1, 2, 3, 4}}},
	}
	_, err := NewEngineFromState(EngineConfig{}, state)
	if err == nil || !strings.Contains(err.Error(), "population size mismatch") {
		t.Fatalf("expected population size mismatch, got %v", err)
	}
}

func TestEngineCancellationEmitsTerminalSnapshot(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine, err := NewEngine(EngineConfig{
		SessionID: "cancelled",
		Cities:    fiveCities(),
		Config:    baseConfig(),
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	snapshots, err := engine.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	all := drain(t, snapshots)
	if len(all) != 1 || !all[0].IsComplete {
		t.Fatalf("cancelled run should emit exactly the terminal snapshot, got %d", len(all))
	}
}

func TestEngineRunIsNotRestartable(t *testing.T) {
	engine, err := NewEngine(EngineConfig{
		SessionID: "once",
		Cities:    fiveCities(),
		Config:    baseConfig(),
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	snapshots, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	drain(t, snapshots)

	if _, err := engine.Run(context.Background()); err == nil {
		t.Fatal("second Run must fail")
	}
}

func TestEngineSinkFailuresBecomeWarnings(t *testing.T) {
	sink := &recordingSink{err: fmt.Errorf("disk full")}
	engine, err := NewEngine(EngineConfig{
		SessionID: "warned",
		Cities:    fiveCities(),
		Config:    baseConfig(),
		Sink:      sink,
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	snapshots, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	all := drain(t, snapshots)
	if !all[len(all)-1].IsComplete {
		t.Fatal("run must complete despite sink failures")
	}

	warnings := engine.Warnings()
	// Four failed checkpoints plus the failed final save.
	if len(warnings) != 5 {
		t.Fatalf("got %d warnings, want 5: %v", len(warnings), warnings)
	}
	for _, w := range warnings {
		if !strings.Contains(w, "disk full") {
			t.Fatalf("warning does not carry the cause: %q", w)
		}
	}
}

func TestEngineConstructorRejections(t *testing.T) {
	valid := baseConfig()
	tests := []struct {
		name string
		cfg  EngineConfig
	}{
		{name: "missing session", cfg: EngineConfig{Cities: fiveCities(), Config: valid}},
		{name: "too few cities", cfg: EngineConfig{SessionID: "x", Cities: fiveCities()[:2], Config: valid}},
		{
			name: "unknown crossover",
			cfg: EngineConfig{SessionID: "x", Cities: fiveCities(), Config: func() model.RunConfig {
				c := valid
				c.Crossover = "nope"
				return c
			}()},
		},
		{
			name: "unknown mutation",
			cfg: EngineConfig{SessionID: "x", Cities: fiveCities(), Config: func() model.RunConfig {
				c := valid
				c.Mutation = "nope"
				return c
			}()},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewEngine(tc.cfg); err == nil {
				t.Fatal("expected constructor error")
			}
		})
	}
}

func TestValidateConfig(t *testing.T) {
	mutate := func(f func(*model.RunConfig)) model.RunConfig {
		cfg := baseConfig()
		f(&cfg)
		return cfg
	}
	tests := []struct {
		name string
		cfg  model.RunConfig
		ok   bool
	}{
		{name: "valid", cfg: baseConfig(), ok: true},
		{name: "zero population", cfg: mutate(func(c *model.RunConfig) { c.PopulationSize = 0 })},
		{name: "zero generations", cfg: mutate(func(c *model.RunConfig) { c.MaxGenerations = 0 })},
		{name: "mutation rate above one", cfg: mutate(func(c *model.RunConfig) { c.MutationRate = 1.5 })},
		{name: "negative crossover rate", cfg: mutate(func(c *model.RunConfig) { c.CrossoverRate = -0.1 })},
		{name: "elitism of one", cfg: mutate(func(c *model.RunConfig) { c.ElitismRate = 1.0 })},
		{name: "tournament of zero", cfg: mutate(func(c *model.RunConfig) { c.TournamentSize = 0 })},
		{name: "tournament above population", cfg: mutate(func(c *model.RunConfig) { c.TournamentSize = 21 })},
		{name: "negative stagnation", cfg: mutate(func(c *model.RunConfig) { c.StagnationLimit = -1 })},
		{name: "zero report interval", cfg: mutate(func(c *model.RunConfig) { c.ReportInterval = 0 })},
		{name: "negative checkpoint interval", cfg: mutate(func(c *model.RunConfig) { c.CheckpointInterval = -1 })},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateConfig(tc.cfg)
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
