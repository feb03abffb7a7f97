//go:build sqlite

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"periplus/internal/model"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) SaveRunState(ctx context.Context, state model.RunState) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	payload, err := EncodeRunState(state)
	if err != nil {
		return err
	}

	bestDistance := 0.0
	if state.Best != nil {
		bestDistance = state.Best.Distance
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO run_states (session_id, status, generation, best_distance, city_count, updated_at_utc, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			status = excluded.status,
			generation = excluded.generation,
			best_distance = excluded.best_distance,
			city_count = excluded.city_count,
			updated_at_utc = excluded.updated_at_utc,
			payload = excluded.payload
	`, state.SessionID, string(state.Status), state.Generation, bestDistance,
		len(state.Cities), time.Now().UTC().Format(time.RFC3339), payload)
	return err
}

func (s *SQLiteStore) GetRunState(ctx context.Context, sessionID string) (model.RunState, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return model.RunState{}, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx,
		`SELECT payload FROM run_states WHERE session_id = ?`, sessionID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.RunState{}, false, nil
		}
		return model.RunState{}, false, err
	}

	state, err := DecodeRunState(payload)
	if err != nil {
		return model.RunState{}, false, fmt.Errorf("decode run state %s: %w", sessionID, err)
	}
	return state, true, nil
}

func (s *SQLiteStore) ListRunStates(ctx context.Context) ([]model.RunSummary, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT session_id, status, generation, best_distance, city_count, updated_at_utc
		FROM run_states ORDER BY session_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.RunSummary
	for rows.Next() {
		var summary model.RunSummary
		var status string
		if err := rows.Scan(&summary.SessionID, &status, &summary.Generation,
			&summary.BestDistance, &summary.CityCount, &summary.UpdatedAtUTC); err != nil {
			return nil, err
		}
		summary.Status = model.RunStatus(status)
		out = append(out, summary)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteRunState(ctx context.Context, sessionID string) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx,
		`DELETE FROM checkpoints WHERE session_id = ?`, sessionID); err != nil {
		return err
	}
	_, err = db.ExecContext(ctx,
		`DELETE FROM run_states WHERE session_id = ?`, sessionID)
	return err
}

func (s *SQLiteStore) SaveCheckpoint(ctx context.Context, state model.RunState) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	payload, err := EncodeRunState(state)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO checkpoints (session_id, generation, payload)
		VALUES (?, ?, ?)
		ON CONFLICT(session_id, generation) DO UPDATE SET
			payload = excluded.payload
	`, state.SessionID, state.Generation, payload)
	return err
}

func (s *SQLiteStore) ListCheckpoints(ctx context.Context, sessionID string) ([]int, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT generation FROM checkpoints WHERE session_id = ? ORDER BY generation`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var generations []int
	for rows.Next() {
		var generation int
		if err := rows.Scan(&generation); err != nil {
			return nil, err
		}
		generations = append(generations, generation)
	}
	return generations, rows.Err()
}

func (s *SQLiteStore) GetCheckpoint(ctx context.Context, sessionID string, generation int) (model.RunState, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return model.RunState{}, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx,
		`SELECT payload FROM checkpoints WHERE session_id = ? AND generation = ?`,
		sessionID, generation).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.RunState{}, false, nil
		}
		return model.RunState{}, false, err
	}

	state, err := DecodeRunState(payload)
	if err != nil {
		return model.RunState{}, false, fmt.Errorf("decode checkpoint %s@%d: %w", sessionID, generation, err)
	}
	return state, true, nil
}

func (s *SQLiteStore) LatestCheckpoint(ctx context.Context, sessionID string) (model.RunState, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return model.RunState{}, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `
		SELECT payload FROM checkpoints WHERE session_id = ?
		ORDER BY generation DESC LIMIT 1
	`, sessionID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.RunState{}, false, nil
		}
		return model.RunState{}, false, err
	}

	state, err := DecodeRunState(payload)
	if err != nil {
		return model.RunState{}, false, fmt.Errorf("decode latest checkpoint %s: %w", sessionID, err)
	}
	return state, true, nil
}

func (s *SQLiteStore) DeleteCheckpoint(ctx context.Context, sessionID string, generation int) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx,
		`DELETE FROM checkpoints WHERE session_id = ? AND generation = ?`, sessionID, generation)
	return err
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	return s.db, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS run_states (
			session_id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			generation INTEGER NOT NULL,
			best_distance REAL NOT NULL,
			city_count INTEGER NOT NULL,
			updated_at_utc TEXT NOT NULL,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS checkpoints (
			session_id TEXT NOT NULL,
			generation INTEGER NOT NULL,
			payload BLOB NOT NULL,
			PRIMARY KEY (session_id, generation)
		);
	`)
	return err
}
