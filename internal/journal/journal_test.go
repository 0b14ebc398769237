package journal

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(context.Background(), filepath.Join(t.TempDir(), "runs.db"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestJournal_BeginFinish(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	id := uuid.New()

	require.NoError(t, j.Begin(ctx, id, "in.pdf", "out.md"))

	var status string
	var pages, degraded int
	row := j.db.QueryRowContext(ctx, `SELECT status, pages, degraded FROM runs WHERE id = ?`, id.String())
	require.NoError(t, row.Scan(&status, &pages, &degraded))
	assert.Equal(t, "running", status)

	require.NoError(t, j.Finish(ctx, id, "completed", 12, 2))

	row = j.db.QueryRowContext(ctx, `SELECT status, pages, degraded FROM runs WHERE id = ?`, id.String())
	require.NoError(t, row.Scan(&status, &pages, &degraded))
	assert.Equal(t, "completed", status)
	assert.Equal(t, 12, pages)
	assert.Equal(t, 2, degraded)
}

func TestJournal_FinishUnknownRun(t *testing.T) {
	j := openTestJournal(t)
	err := j.Finish(context.Background(), uuid.New(), "completed", 0, 0)
	assert.Error(t, err)
}

func TestJournal_ReopenKeepsRows(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "runs.db")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()
	id := uuid.New()

	j, err := Open(ctx, path, logger)
	require.NoError(t, err)
	require.NoError(t, j.Begin(ctx, id, "in.pdf", "out.md"))
	require.NoError(t, j.Finish(ctx, id, "skipped", 0, 0))
	require.NoError(t, j.Close())

	j2, err := Open(ctx, path, logger)
	require.NoError(t, err)
	defer func() { _ = j2.Close() }()

	var n int
	require.NoError(t, j2.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&n))
	assert.Equal(t, 1, n)
}
