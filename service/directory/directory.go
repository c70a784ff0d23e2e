package directory

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

// Directory answers "which device ids does this user own". Read-only and
// safe for unbounded concurrent use; every call returns the current
// ownership snapshot, not a live view.
type Directory interface {
	OwnedDeviceIDs(ctx context.Context, userID string) ([]string, error)
}

// PgDirectory reads ownership straight from the devices table. The query
// runs once per connection attempt and once per forwarded message, so it
// stays on the owner_id index.
type PgDirectory struct {
	pool *pgxpool.Pool
}

func NewPgDirectory(pool *pgxpool.Pool) *PgDirectory {
	return &PgDirectory{pool: pool}
}

func (d *PgDirectory) OwnedDeviceIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := d.pool.Query(ctx,
		`SELECT device_id FROM devices WHERE owner_id = $1`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "directory: query owned devices")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "directory: scan device id")
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "directory: rows")
	}
	return out, nil
}
