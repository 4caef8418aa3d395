package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const clearLogPrefix = "store:clear"

// ClearHistory removes snapshots. With olderThan > 0 only rows older than that are deleted;
// otherwise the table is truncated. Returns the number of rows removed (-1 after a truncate).
func ClearHistory(ctx context.Context, pool *pgxpool.Pool, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		slog.Info(fmt.Sprintf("%s - Truncating panel_snapshots", clearLogPrefix))
		if _, err := pool.Exec(ctx, `TRUNCATE TABLE panel_snapshots RESTART IDENTITY`); err != nil {
			return 0, fmt.Errorf("%s - truncate failed: %w", clearLogPrefix, err)
		}
		return -1, nil
	}

	cutoff := time.Now().UTC().Add(-olderThan)
	tag, err := pool.Exec(ctx, `DELETE FROM panel_snapshots WHERE created < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("%s - delete failed: %w", clearLogPrefix, err)
	}
	slog.Info(fmt.Sprintf("%s - Removed %d snapshots older than %s", clearLogPrefix, tag.RowsAffected(), cutoff.Format(time.RFC3339)))
	return tag.RowsAffected(), nil
}
