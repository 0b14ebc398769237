// Package journal keeps an optional SQLite ledger of pipeline runs. It
// is observability only: the artifact's existence, not the journal,
// decides whether a job is re-run.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	source_path   TEXT NOT NULL,
	artifact_path TEXT NOT NULL,
	status        TEXT NOT NULL,
	pages         INTEGER NOT NULL DEFAULT 0,
	degraded      INTEGER NOT NULL DEFAULT 0,
	started_at    TIMESTAMP NOT NULL,
	finished_at   TIMESTAMP
);`

type Journal struct {
	db  *sql.DB
	log *slog.Logger
}

// Open opens (creating if needed) the journal database at path.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Journal, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal %q: %w", path, err)
	}
	// Single writer: the pipeline is single-threaded per process.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping journal %q: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	logger.Debug("journal.opened", "path", path)
	return &Journal{db: db, log: logger}, nil
}

// Begin records a run in the "running" state.
func (j *Journal) Begin(ctx context.Context, id uuid.UUID, sourcePath, artifactPath string) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO runs (id, source_path, artifact_path, status, started_at) VALUES (?, ?, ?, 'running', ?)`,
		id.String(), sourcePath, artifactPath, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("journal begin: %w", err)
	}
	return nil
}

// Finish stamps a run's terminal status and page counts.
func (j *Journal) Finish(ctx context.Context, id uuid.UUID, status string, pages, degraded int) error {
	res, err := j.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, pages = ?, degraded = ?, finished_at = ? WHERE id = ?`,
		status, pages, degraded, time.Now().UTC(), id.String())
	if err != nil {
		return fmt.Errorf("journal finish: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("journal finish: unknown run %s", id)
	}
	return nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}
