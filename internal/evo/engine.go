package evo

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand"
	"runtime"
	"sync"
	"time"

	"periplus/internal/model"
	"periplus/internal/tour"
)

// improvementEpsilon is the minimum fitness gain for a candidate to replace
// the running best, filtering floating-point churn out of the convergence
// signal.
const improvementEpsilon = 1e-6

// Snapshot is one immutable progress report. Generation counts completed
// generations; exactly one snapshot per run carries IsComplete.
type Snapshot struct {
	Generation     int
	BestFitness    float64
	AverageFitness float64
	BestTour       []int
	BestDistance   float64
	Elapsed        time.Duration
	IsComplete     bool
}

// StateSink receives run-state snapshots. Implemented outside this package
// (see internal/storage); every failure is recorded as a warning and never
// interrupts the generational loop.
type StateSink interface {
	// Checkpoint persists a periodic mid-run snapshot.
	Checkpoint(ctx context.Context, state model.RunState) error
	// SaveFinal persists the terminal state at completion or pause.
	SaveFinal(ctx context.Context, state model.RunState) error
}

// Diagnostics totals the recoverable anomalies observed across a run.
type Diagnostics struct {
	InvalidOffspring  int
	InvalidCandidates int
	FitnessFaults     int
}

type EngineConfig struct {
	SessionID string
	Cities    []model.City
	Config    model.RunConfig
	Workers   int          // evaluation parallelism, defaults to GOMAXPROCS
	Sink      StateSink    // optional
	Control   <-chan Command // optional
}

// Engine drives the generational loop: reproduce, track the best candidate,
// detect stagnation, checkpoint, and emit progress. One sequential driver
// owns all state and the rng; only fitness evaluation fans out.
type Engine struct {
	cfg       EngineConfig
	crossover Crossover
	mutation  Mutation
	fitness   Fitness
	rng       *rand.Rand

	population      []tour.Candidate
	best            tour.Candidate
	history         []float64
	generation      int // completed generations
	noImprove       int
	lastImprovement int
	baseElapsed     time.Duration

	started bool

	mu          sync.Mutex
	status      model.RunStatus
	warnings    []string
	diagnostics Diagnostics
}

// ValidateConfig rejects an invalid configuration before a run starts,
// naming the offending field.
func ValidateConfig(cfg model.RunConfig) error {
	if cfg.PopulationSize <= 0 {
		return fmt.Errorf("population_size must be > 0, got %d", cfg.PopulationSize)
	}
	if cfg.MaxGenerations <= 0 {
		return fmt.Errorf("max_generations must be > 0, got %d", cfg.MaxGenerations)
	}
	if cfg.MutationRate < 0 || cfg.MutationRate > 1 {
		return fmt.Errorf("mutation_rate must be in [0,1], got %g", cfg.MutationRate)
	}
	if cfg.CrossoverRate < 0 || cfg.CrossoverRate > 1 {
		return fmt.Errorf("crossover_rate must be in [0,1], got %g", cfg.CrossoverRate)
	}
	if cfg.ElitismRate < 0 || cfg.ElitismRate >= 1 {
		return fmt.Errorf("elitism_rate must be in [0,1), got %g", cfg.ElitismRate)
	}
	if cfg.TournamentSize < 1 || cfg.TournamentSize > cfg.PopulationSize {
		return fmt.Errorf("tournament_size must be in [1, population_size], got %d", cfg.TournamentSize)
	}
	if cfg.StagnationLimit < 0 {
		return fmt.Errorf("stagnation_limit must be >= 0, got %d", cfg.StagnationLimit)
	}
	if cfg.ReportInterval < 1 {
		return fmt.Errorf("report_interval must be >= 1, got %d", cfg.ReportInterval)
	}
	if cfg.CheckpointInterval < 0 {
		return fmt.Errorf("checkpoint_interval must be >= 0, got %d", cfg.CheckpointInterval)
	}
	return nil
}

// NewEngine builds an engine for a fresh run: random initial population,
// evaluated, with the initial best computed before the first generation.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	e, err := newEngine(cfg)
	if err != nil {
		return nil, err
	}

	seed := cfg.Config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	e.rng = rand.New(rand.NewSource(seed))
	e.population = tour.NewRandomPopulation(len(cfg.Cities), cfg.Config.PopulationSize, e.rng)
	stats := evaluatePopulation(e.population, cfg.Cities, e.fitness, e.cfg.Workers)
	e.diagnostics.InvalidCandidates += stats.invalidCandidates
	e.diagnostics.FitnessFaults += stats.fitnessFaults
	e.best = fittestOf(e.population).Clone()
	e.lastImprovement = -1
	return e, nil
}

// NewEngineFromState re-enters initialization from a persisted run state.
// The resumed rng is seeded deterministically from the configured seed, the
// session id, and the resume generation; the original rng stream position is
// not preserved, so a resumed run is statistically, not bitwise, continuous.
func NewEngineFromState(cfg EngineConfig, state model.RunState) (*Engine, error) {
	if state.Status == model.StatusCompleted {
		return nil, fmt.Errorf("session %s is already completed", state.SessionID)
	}
	cfg.SessionID = state.SessionID
	cfg.Cities = state.Cities
	cfg.Config = state.Config
	e, err := newEngine(cfg)
	if err != nil {
		return nil, err
	}
	if len(state.Population) != state.Config.PopulationSize {
		return nil, fmt.Errorf("population size mismatch in state: got %d, want %d",
			len(state.Population), state.Config.PopulationSize)
	}

	e.rng = rand.New(rand.NewSource(resumeSeed(state)))
	e.population = make([]tour.Candidate, len(state.Population))
	for i, rec := range state.Population {
		e.population[i] = tour.FromRecord(rec)
	}
	if state.Best != nil {
		e.best = tour.FromRecord(*state.Best)
	} else {
		e.best = fittestOf(e.population).Clone()
	}
	e.history = append([]float64(nil), state.ConvergenceHistory...)
	e.generation = state.Generation
	e.noImprove = state.GenerationsNoImprove
	e.lastImprovement = state.LastImprovement
	e.baseElapsed = time.Duration(state.ElapsedMillis) * time.Millisecond
	return e, nil
}

func newEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.SessionID == "" {
		return nil, errors.New("session id is required")
	}
	if len(cfg.Cities) < 3 {
		return nil, fmt.Errorf("at least 3 cities are required, got %d", len(cfg.Cities))
	}
	if err := ValidateConfig(cfg.Config); err != nil {
		return nil, err
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}

	crossover, err := ResolveCrossover(cfg.Config.Crossover)
	if err != nil {
		return nil, err
	}
	mutation, err := ResolveMutation(cfg.Config.Mutation)
	if err != nil {
		return nil, err
	}
	fitness, err := ResolveFitness(cfg.Config.Fitness)
	if err != nil {
		return nil, err
	}

	return &Engine{
		cfg:       cfg,
		crossover: crossover,
		mutation:  mutation,
		fitness:   fitness,
		status:    model.StatusRunning,
	}, nil
}

func resumeSeed(state model.RunState) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(state.SessionID))
	return state.Config.Seed ^ int64(h.Sum64()) ^ int64(state.Generation+1)<<17
}

// Run starts the generational loop and returns the snapshot sequence:
// lazily produced, finite, non-restartable, closed after the single
// terminal snapshot.
func (e *Engine) Run(ctx context.Context) (<-chan Snapshot, error) {
	if e.started {
		return nil, errors.New("engine already started")
	}
	e.started = true

	out := make(chan Snapshot, 1)
	go e.loop(ctx, out)
	return out, nil
}

func (e *Engine) loop(ctx context.Context, out chan<- Snapshot) {
	defer close(out)
	start := time.Now()

	repro := &reproducer{
		cfg:       e.cfg.Config,
		cities:    e.cfg.Cities,
		crossover: e.crossover,
		mutation:  e.mutation,
		fitness:   e.fitness,
		workers:   e.cfg.Workers,
	}

	for gen := e.generation; ; gen++ {
		next, stats := repro.nextGeneration(e.population, e.rng)
		e.population = next
		e.recordAnomalies(stats)

		challenger := fittestOf(e.population)
		if challenger.Fitness > e.best.Fitness+improvementEpsilon {
			e.best = challenger.Clone()
			e.noImprove = 0
			e.lastImprovement = gen
		} else {
			e.noImprove++
		}
		e.history = append(e.history, e.best.Fitness)
		e.generation = gen + 1
		elapsed := e.baseElapsed + time.Since(start)

		terminal := false
		status := model.StatusCompleted
		if e.generation >= e.cfg.Config.MaxGenerations {
			terminal = true
		}
		if e.cfg.Config.StagnationLimit > 0 && e.noImprove >= e.cfg.Config.StagnationLimit {
			terminal = true
		}
		select {
		case cmd := <-e.cfg.Control:
			switch cmd {
			case CommandPause:
				terminal = true
				status = model.StatusPaused
			case CommandStop:
				terminal = true
			}
		default:
		}
		if ctx.Err() != nil {
			// Cancellation is not an error: finish this generation's
			// bookkeeping and emit a clean terminal snapshot.
			terminal = true
		}

		if terminal {
			e.setStatus(status)
			if e.cfg.Sink != nil {
				if err := e.cfg.Sink.SaveFinal(ctx, e.buildState(status, elapsed)); err != nil {
					e.addWarning(fmt.Sprintf("final state save failed: %v", err))
				}
			}
			e.emit(ctx, out, e.snapshot(elapsed, true))
			return
		}

		interval := e.cfg.Config.CheckpointInterval
		if e.cfg.Sink != nil && interval > 0 && e.generation%interval == 0 {
			if err := e.cfg.Sink.Checkpoint(ctx, e.buildState(model.StatusRunning, elapsed)); err != nil {
				e.addWarning(fmt.Sprintf("checkpoint at generation %d failed: %v", e.generation, err))
			}
		}
		if e.generation%e.cfg.Config.ReportInterval == 0 {
			e.emit(ctx, out, e.snapshot(elapsed, false))
		}
	}
}

// emit delivers a snapshot, preferring the buffered send so that a terminal
// snapshot still lands after cancellation. Only an absent consumer with a
// full buffer drops a snapshot.
func (e *Engine) emit(ctx context.Context, out chan<- Snapshot, snap Snapshot) {
	select {
	case out <- snap:
		return
	default:
	}
	select {
	case out <- snap:
	case <-ctx.Done():
	}
}

func (e *Engine) snapshot(elapsed time.Duration, complete bool) Snapshot {
	var total float64
	for _, c := range e.population {
		total += c.Fitness
	}
	return Snapshot{
		Generation:     e.generation,
		BestFitness:    e.best.Fitness,
		AverageFitness: total / float64(len(e.population)),
		BestTour:       append([]int(nil), e.best.Order...),
		BestDistance:   e.best.Distance,
		Elapsed:        elapsed,
		IsComplete:     complete,
	}
}

func (e *Engine) buildState(status model.RunStatus, elapsed time.Duration) model.RunState {
	population := make([]model.CandidateRecord, len(e.population))
	for i, c := range e.population {
		population[i] = c.Record()
	}
	best := e.best.Record()
	return model.RunState{
		SessionID:            e.cfg.SessionID,
		Generation:           e.generation,
		Config:               e.cfg.Config,
		Cities:               append([]model.City(nil), e.cfg.Cities...),
		Population:           population,
		Best:                 &best,
		ConvergenceHistory:   append([]float64(nil), e.history...),
		ElapsedMillis:        elapsed.Milliseconds(),
		GenerationsNoImprove: e.noImprove,
		LastImprovement:      e.lastImprovement,
		Status:               status,
	}
}

func (e *Engine) recordAnomalies(stats reproStats) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.diagnostics.InvalidOffspring += stats.invalidOffspring
	e.diagnostics.InvalidCandidates += stats.eval.invalidCandidates
	e.diagnostics.FitnessFaults += stats.eval.fitnessFaults
}

func (e *Engine) setStatus(status model.RunStatus) {
	e.mu.Lock()
	e.status = status
	e.mu.Unlock()
}

func (e *Engine) SessionID() string { return e.cfg.SessionID }

func (e *Engine) Status() model.RunStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Warnings reports non-fatal persistence failures observed so far.
func (e *Engine) Warnings() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.warnings...)
}

// RunDiagnostics totals the recoverable anomalies observed so far.
func (e *Engine) RunDiagnostics() Diagnostics {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.diagnostics
}

func (e *Engine) addWarning(msg string) {
	e.mu.Lock()
	e.warnings = append(e.warnings, msg)
	e.mu.Unlock()
}

func fittestOf(population []tour.Candidate) tour.Candidate {
	best := population[0]
	for _, c := range population[1:] {
		if c.Fitness > best.Fitness {
			best = c
		}
	}
	return best
}
