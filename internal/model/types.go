package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// City is an immutable problem input supplied by the caller.
type City struct {
	ID   int     `json:"id"`
	Name string  `json:"name,omitempty"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// CandidateRecord is the persisted shape of one tour candidate.
type CandidateRecord struct {
	Order    []int   `json:"order"`
	Fitness  float64 `json:"fitness"`
	Distance float64 `json:"distance"`
}

type RunStatus string

const (
	StatusRunning   RunStatus = "running"
	StatusPaused    RunStatus = "paused"
	StatusCompleted RunStatus = "completed"
)

// RunConfig holds every tunable of a run. Validation lives in internal/evo,
// next to the engine that consumes it.
type RunConfig struct {
	PopulationSize     int     `json:"population_size"`
	MaxGenerations     int     `json:"max_generations"`
	MutationRate       float64 `json:"mutation_rate"`
	CrossoverRate      float64 `json:"crossover_rate"`
	ElitismRate        float64 `json:"elitism_rate"`
	TournamentSize     int     `json:"tournament_size"`
	StagnationLimit    int     `json:"stagnation_limit"`
	ReportInterval     int     `json:"report_interval"`
	CheckpointInterval int     `json:"checkpoint_interval"`
	Seed               int64   `json:"seed"`
	Crossover          string  `json:"crossover"`
	Mutation           string  `json:"mutation"`
	Fitness            string  `json:"fitness"`
}

// RunState is the full checkpoint of a run: everything needed to suspend a
// session and re-enter it after a process restart.
type RunState struct {
	VersionedRecord
	SessionID            string            `json:"session_id"`
	Generation           int               `json:"generation"`
	Config               RunConfig         `json:"config"`
	Cities               []City            `json:"cities"`
	Population           []CandidateRecord `json:"population"`
	Best                 *CandidateRecord  `json:"best,omitempty"`
	ConvergenceHistory   []float64         `json:"convergence_history"`
	ElapsedMillis        int64             `json:"elapsed_ms"`
	GenerationsNoImprove int               `json:"generations_without_improvement"`
	LastImprovement      int               `json:"last_improvement_generation"`
	Status               RunStatus         `json:"status"`
}

// RunSummary is one row of the session listing.
type RunSummary struct {
	SessionID    string    `json:"session_id"`
	Status       RunStatus `json:"status"`
	Generation   int       `json:"generation"`
	BestDistance float64   `json:"best_distance"`
	CityCount    int       `json:"city_count"`
	UpdatedAtUTC string    `json:"updated_at_utc"`
}
