// Package history gives the façade a small read-side mirror of recent
// interlock transitions, so the operator UI can show "last N interlock
// events" without round-tripping through the broker on every page
// load.
//
// Grounded on plantd/state and plantd/identity's use of a pooled
// Postgres driver; pgx's pool is used directly here rather than through
// database/sql since the façade only ever runs the one prepared query.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Event is one interlock state change, as polled from the same
// `values` table the supervisor's postgresql:// interlock source reads.
type Event struct {
	Engaged   bool
	Timestamp time.Time
}

// Mirror is a thin read cache over the interlock table.
type Mirror struct {
	pool *pgxpool.Pool
}

// Open connects a pool to dsn. No schema ownership here: the table is
// the interlock source's, the façade only ever selects from it.
func Open(ctx context.Context, dsn string) (*Mirror, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("history: open pool: %w", err)
	}
	return &Mirror{pool: pool}, nil
}

// Close releases the pool.
func (m *Mirror) Close() {
	m.pool.Close()
}

// Recent returns the last limit interlock readings, newest first.
func (m *Mirror) Recent(ctx context.Context, limit int) ([]Event, error) {
	rows, err := m.pool.Query(ctx,
		"SELECT value, time FROM values WHERE property = 'KMD_Interlock' ORDER BY time DESC LIMIT $1",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("history: query: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var value int
		var ts time.Time
		if err := rows.Scan(&value, &ts); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		events = append(events, Event{Engaged: value > 0, Timestamp: ts})
	}
	return events, rows.Err()
}
