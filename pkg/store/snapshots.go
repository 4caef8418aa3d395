package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/morezero/auction-admin/pkg/ajax"
)

const snapshotsLogPrefix = "store:snapshots"

// DefaultListLimit bounds ListRecent when no limit is given.
const DefaultListLimit = 50

// Snapshot is one recorded panel refresh or control action.
type Snapshot struct {
	ID         int64           `json:"id"`
	Panel      string          `json:"panel"`
	Action     string          `json:"action"`
	OK         bool            `json:"ok"`
	Message    string          `json:"message,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	StatusCode int             `json:"statusCode,omitempty"`
	TimedOut   bool            `json:"timedOut,omitempty"`
	DurationMs int             `json:"durationMs"`
	Created    time.Time       `json:"created"`
}

// NewSnapshot describes a dispatch result. err is the Dispatch error (an in-flight rejection)
// and takes precedence over out.
func NewSnapshot(panel, action string, out *ajax.Outcome, err error, took time.Duration) *Snapshot {
	s := &Snapshot{
		Panel:      panel,
		Action:     action,
		DurationMs: int(took / time.Millisecond),
		Created:    time.Now().UTC(),
	}
	if err != nil {
		s.Message = err.Error()
		return s
	}
	if out != nil && out.OK {
		s.OK = true
		s.Data = out.Data
		return s
	}
	failErr := out.Err()
	s.Message = failErr.Error()
	var f *ajax.Failure
	if errors.As(failErr, &f) {
		s.Data = f.Data
		if f.Transport != nil {
			s.StatusCode = f.Transport.StatusCode
			s.TimedOut = f.Transport.IsTimeout
		}
	}
	return s
}

// Recorder stores snapshots.
type Recorder interface {
	InsertSnapshot(ctx context.Context, s *Snapshot) error
}

// NoOpRecorder discards snapshots (no DATABASE_URL).
type NoOpRecorder struct{}

// InsertSnapshot is a no-op.
func (NoOpRecorder) InsertSnapshot(context.Context, *Snapshot) error { return nil }

// SnapshotRepository provides database access to panel_snapshots.
type SnapshotRepository struct {
	pool *pgxpool.Pool
}

// NewSnapshotRepository creates a new SnapshotRepository with the given connection pool.
func NewSnapshotRepository(pool *pgxpool.Pool) *SnapshotRepository {
	return &SnapshotRepository{pool: pool}
}

// InsertSnapshot stores s and fills in its ID and Created.
func (r *SnapshotRepository) InsertSnapshot(ctx context.Context, s *Snapshot) error {
	var data interface{}
	if len(s.Data) > 0 && json.Valid(s.Data) {
		data = []byte(s.Data)
	}
	created := s.Created
	if created.IsZero() {
		created = time.Now().UTC()
	}

	err := r.pool.QueryRow(ctx,
		`INSERT INTO panel_snapshots (panel, action, ok, message, data, status_code, timed_out, duration_ms, created)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, created`,
		s.Panel, s.Action, s.OK, s.Message, data, s.StatusCode, s.TimedOut, s.DurationMs, created,
	).Scan(&s.ID, &s.Created)
	if err != nil {
		return fmt.Errorf("%s - insert snapshot for %s: %w", snapshotsLogPrefix, s.Panel, err)
	}
	slog.Debug(fmt.Sprintf("%s - Stored snapshot %d panel=%s ok=%v", snapshotsLogPrefix, s.ID, s.Panel, s.OK))
	return nil
}

// ListRecent returns the newest snapshots, optionally for one panel.
func (r *SnapshotRepository) ListRecent(ctx context.Context, panel string, limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, panel, action, ok, message, data, status_code, timed_out, duration_ms, created
		 FROM panel_snapshots
		 WHERE ($1 = '' OR panel = $1)
		 ORDER BY created DESC, id DESC
		 LIMIT $2`, panel, limit)
	if err != nil {
		return nil, fmt.Errorf("%s - list snapshots: %w", snapshotsLogPrefix, err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var s Snapshot
		var data []byte
		if err := rows.Scan(&s.ID, &s.Panel, &s.Action, &s.OK, &s.Message, &data, &s.StatusCode, &s.TimedOut, &s.DurationMs, &s.Created); err != nil {
			return nil, fmt.Errorf("%s - scan snapshot: %w", snapshotsLogPrefix, err)
		}
		if len(data) > 0 {
			s.Data = json.RawMessage(data)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s - iterate snapshots: %w", snapshotsLogPrefix, err)
	}
	return out, nil
}
