package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"periplus/internal/evo"
	"periplus/internal/model"
	"periplus/internal/platform"
	periplusapi "periplus/pkg/periplus"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "run":
		return runRun(ctx, args[1:])
	case "resume":
		return runResume(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "delete":
		return runDelete(ctx, args[1:])
	case "strategies":
		return runStrategies(args[1:])
	case "help":
		fmt.Println(usageText)
		return nil
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

const usageText = `usage: periplusctl <command> [flags]

commands:
  run         start a fresh optimization session
  resume      re-enter a suspended session
  runs        list persisted sessions
  delete      remove a persisted session and its checkpoints
  strategies  list the available strategy names
  help        show this message`

func usageError(msg string) error {
	return fmt.Errorf("%s\n\n%s", msg, usageText)
}

type storeFlags struct {
	kind      string
	dbPath    string
	retention int
}

func registerStoreFlags(fs *flag.FlagSet) *storeFlags {
	sf := &storeFlags{}
	fs.StringVar(&sf.kind, "store", "memory", "store backend: memory or sqlite")
	fs.StringVar(&sf.dbPath, "db", "periplus.db", "sqlite database path")
	fs.IntVar(&sf.retention, "retention", 3, "checkpoints kept per session (0 keeps all)")
	return sf
}

func newClient(ctx context.Context, sf *storeFlags) (*periplusapi.Client, error) {
	return periplusapi.New(ctx, periplusapi.Options{
		StoreKind:           sf.kind,
		DBPath:              sf.dbPath,
		CheckpointRetention: sf.retention,
	})
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	sf := registerStoreFlags(fs)
	instancePath := fs.String("instance", "", "JSON city instance file")
	cityCount := fs.Int("cities", 25, "random instance size when no -instance is given")
	instanceSeed := fs.Int64("instance-seed", 1, "random instance seed")
	sessionID := fs.String("session", "", "session id (generated when empty)")
	workers := fs.Int("workers", 0, "evaluation workers (0 = GOMAXPROCS)")

	cfg := model.RunConfig{}
	fs.IntVar(&cfg.PopulationSize, "pop", 100, "population size")
	fs.IntVar(&cfg.MaxGenerations, "gens", 500, "maximum generations")
	fs.Float64Var(&cfg.MutationRate, "mutation-rate", 0.05, "mutation probability per child")
	fs.Float64Var(&cfg.CrossoverRate, "crossover-rate", 0.9, "crossover probability per pair")
	fs.Float64Var(&cfg.ElitismRate, "elitism", 0.1, "elite fraction carried over unchanged")
	fs.IntVar(&cfg.TournamentSize, "tournament", 5, "tournament size")
	fs.IntVar(&cfg.StagnationLimit, "stagnation", 100, "generations without improvement before stopping (0 disables)")
	fs.IntVar(&cfg.ReportInterval, "report-interval", 10, "generations between progress reports")
	fs.IntVar(&cfg.CheckpointInterval, "checkpoint-interval", 50, "generations between checkpoints (0 disables)")
	fs.Int64Var(&cfg.Seed, "seed", 0, "random seed (0 = time-based)")
	fs.StringVar(&cfg.Crossover, "crossover", "order", "crossover strategy")
	fs.StringVar(&cfg.Mutation, "mutation", "swap", "mutation strategy")
	fs.StringVar(&cfg.Fitness, "fitness", "inverse_distance", "fitness strategy")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cities, err := loadCities(*instancePath, *cityCount, *instanceSeed)
	if err != nil {
		return err
	}

	client, err := newClient(ctx, sf)
	if err != nil {
		return err
	}
	defer client.Close()

	active, err := client.Run(ctx, periplusapi.RunRequest{
		SessionID: *sessionID,
		Cities:    cities,
		Config:    cfg,
		Workers:   *workers,
	})
	if err != nil {
		return err
	}

	fmt.Printf("session %s: %d cities, population %d\n", active.SessionID, len(cities), cfg.PopulationSize)
	return watch(active, cfg.MaxGenerations)
}

func runResume(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("resume", flag.ContinueOnError)
	sf := registerStoreFlags(fs)
	sessionID := fs.String("session", "", "session id to resume")
	workers := fs.Int("workers", 0, "evaluation workers (0 = GOMAXPROCS)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *sessionID == "" {
		return usageError("resume requires -session")
	}

	client, err := newClient(ctx, sf)
	if err != nil {
		return err
	}
	defer client.Close()

	active, err := client.Resume(ctx, *sessionID, *workers)
	if err != nil {
		return err
	}
	fmt.Printf("session %s resumed\n", active.SessionID)
	return watch(active, 0)
}

// watch drains the snapshot sequence, printing one progress line per
// report and a summary for the terminal snapshot.
func watch(active *platform.ActiveRun, maxGenerations int) error {
	var last evo.Snapshot
	for snap := range active.Snapshots {
		last = snap
		if snap.IsComplete {
			continue
		}
		fmt.Printf("gen %s%s  best %s  avg fitness %.6f  elapsed %s\n",
			humanize.Comma(int64(snap.Generation)),
			generationTarget(maxGenerations),
			humanize.CommafWithDigits(snap.BestDistance, 2),
			snap.AverageFitness,
			snap.Elapsed.Truncate(time.Millisecond),
		)
	}

	fmt.Printf("%s after %s generations: best distance %s (elapsed %s)\n",
		active.Status(),
		humanize.Comma(int64(last.Generation)),
		humanize.CommafWithDigits(last.BestDistance, 2),
		last.Elapsed.Truncate(time.Millisecond),
	)
	fmt.Printf("best tour: %v\n", last.BestTour)

	diag := active.Diagnostics()
	if diag.InvalidOffspring > 0 || diag.InvalidCandidates > 0 || diag.FitnessFaults > 0 {
		fmt.Printf("anomalies: %d invalid offspring, %d invalid candidates, %d fitness faults\n",
			diag.InvalidOffspring, diag.InvalidCandidates, diag.FitnessFaults)
	}
	for _, warning := range active.Warnings() {
		fmt.Fprintf(os.Stderr, "warning: %s\n", warning)
	}
	return nil
}

func generationTarget(maxGenerations int) string {
	if maxGenerations <= 0 {
		return ""
	}
	return "/" + humanize.Comma(int64(maxGenerations))
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	sf := registerStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(ctx, sf)
	if err != nil {
		return err
	}
	defer client.Close()

	summaries, err := client.Sessions(ctx)
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		fmt.Println("no sessions")
		return nil
	}
	for _, summary := range summaries {
		updated := summary.UpdatedAtUTC
		if t, err := time.Parse(time.RFC3339, summary.UpdatedAtUTC); err == nil {
			updated = humanize.Time(t)
		}
		fmt.Printf("%s  %-9s gen %s  best %s  %d cities  updated %s\n",
			summary.SessionID,
			summary.Status,
			humanize.Comma(int64(summary.Generation)),
			humanize.CommafWithDigits(summary.BestDistance, 2),
			summary.CityCount,
			updated,
		)
	}
	return nil
}

func runDelete(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	sf := registerStoreFlags(fs)
	sessionID := fs.String("session", "", "session id to delete")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *sessionID == "" {
		return usageError("delete requires -session")
	}

	client, err := newClient(ctx, sf)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Delete(ctx, *sessionID); err != nil {
		return err
	}
	fmt.Printf("session %s deleted\n", *sessionID)
	return nil
}

func runStrategies(args []string) error {
	if len(args) != 0 {
		return usageError("strategies takes no flags")
	}
	fmt.Printf("crossover: %s\n", strings.Join(evo.Crossovers(), ", "))
	fmt.Printf("mutation:  %s\n", strings.Join(evo.Mutations(), ", "))
	fmt.Printf("fitness:   %s\n", strings.Join(evo.Fitnesses(), ", "))
	return nil
}
