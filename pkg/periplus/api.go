// Package periplus is the public facade over the optimization engine: it
// wires a store, a checkpoint policy, and the session harbor behind one
// client.
package periplus

import (
	"context"

	"periplus/internal/model"
	"periplus/internal/platform"
	"periplus/internal/storage"
)

const defaultDBPath = "periplus.db"

type Options struct {
	StoreKind           string // "memory" (default) or "sqlite"
	DBPath              string
	CheckpointRetention int // most recent checkpoints kept per session, 0 keeps all
}

type RunRequest struct {
	SessionID string // generated when empty
	Cities    []model.City
	Config    model.RunConfig
	Workers   int
}

type Client struct {
	store  storage.Store
	harbor *platform.Harbor
}

func New(ctx context.Context, opts Options) (*Client, error) {
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	store, err := storage.NewStore(opts.StoreKind, dbPath)
	if err != nil {
		return nil, err
	}

	harbor := platform.NewHarbor(store, storage.CheckpointPolicy{
		Retention: opts.CheckpointRetention,
	})
	if err := harbor.Init(ctx); err != nil {
		return nil, err
	}
	return &Client{store: store, harbor: harbor}, nil
}

// Run starts a fresh session. Configuration and strategy names are
// validated here; nothing fails after the snapshot sequence begins except
// via the sequence itself.
func (c *Client) Run(ctx context.Context, req RunRequest) (*platform.ActiveRun, error) {
	return c.harbor.StartRun(ctx, platform.RunSpec{
		SessionID: req.SessionID,
		Cities:    req.Cities,
		Config:    req.Config,
		Workers:   req.Workers,
	})
}

// Resume re-enters a suspended session from its persisted state.
func (c *Client) Resume(ctx context.Context, sessionID string, workers int) (*platform.ActiveRun, error) {
	return c.harbor.ResumeRun(ctx, sessionID, workers)
}

// Pause asks an active run to persist its state and stop at the next
// generation boundary.
func (c *Client) Pause(sessionID string) error {
	return c.harbor.PauseRun(sessionID)
}

// Stop asks an active run to finish at the next generation boundary.
func (c *Client) Stop(sessionID string) error {
	return c.harbor.StopRun(sessionID)
}

func (c *Client) Sessions(ctx context.Context) ([]model.RunSummary, error) {
	return c.harbor.Sessions(ctx)
}

func (c *Client) Delete(ctx context.Context, sessionID string) error {
	return c.harbor.DeleteSession(ctx, sessionID)
}

func (c *Client) Close() error {
	c.harbor.Shutdown()
	return storage.CloseIfSupported(c.store)
}
