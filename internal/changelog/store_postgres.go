package changelog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

// PostgresStore is a PostgreSQL-backed Store.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a change-log store on pool.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Log(ctx context.Context, e Entry) (Change, error) {
	e, err := validate(e)
	if err != nil {
		return Change{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	c := Change{ProfileID: e.ProfileID, ModelName: e.ModelName, ObjectID: e.ObjectID, Change: e.Change}
	err = s.pool.QueryRow(ctx,
		`INSERT INTO change_logs (profile_id, model_name, object_id, change)
		 VALUES ($1, $2, $3, $4::jsonb)
		 RETURNING id, created_at`,
		e.ProfileID, e.ModelName, e.ObjectID, string(e.Change),
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return Change{}, fmt.Errorf("insert change log: %w", err)
	}

	slog.Debug("change logged", "profile_id", c.ProfileID, "model", c.ModelName, "object_id", c.ObjectID)
	return c, nil
}

func (s *PostgresStore) List(ctx context.Context, profileID int64, synced *bool, limit int) ([]Change, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT id, profile_id, model_name, object_id, change::text, created_at, synced
		 FROM change_logs
		 WHERE profile_id = $1 AND ($2::boolean IS NULL OR synced = $2)
		 ORDER BY created_at DESC, id DESC
		 LIMIT $3`,
		profileID, synced, clampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("list change logs: %w", err)
	}
	defer rows.Close()

	var out []Change
	for rows.Next() {
		var c Change
		var raw string
		if err := rows.Scan(&c.ID, &c.ProfileID, &c.ModelName, &c.ObjectID, &raw, &c.CreatedAt, &c.Synced); err != nil {
			return nil, fmt.Errorf("scan change log: %w", err)
		}
		c.Change = []byte(raw)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate change logs: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) MarkSynced(ctx context.Context, profileID int64, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	cmd, err := s.pool.Exec(ctx,
		`UPDATE change_logs SET synced = TRUE
		 WHERE profile_id = $1 AND id = ANY($2) AND synced = FALSE`,
		profileID, ids,
	)
	if err != nil {
		return 0, fmt.Errorf("mark change logs synced: %w", err)
	}
	return int(cmd.RowsAffected()), nil
}

func (s *PostgresStore) RegisterDevice(ctx context.Context, profileID int64, identifier, label string) (Device, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		identifier = NewIdentifier()
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	row := s.pool.QueryRow(ctx,
		`INSERT INTO devices (profile_id, identifier, label, last_seen)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (identifier) DO UPDATE
		 SET label = CASE WHEN EXCLUDED.label <> '' THEN EXCLUDED.label ELSE devices.label END,
		     last_seen = EXCLUDED.last_seen
		 WHERE devices.profile_id = EXCLUDED.profile_id
		 RETURNING id, profile_id, identifier, label, last_seen`,
		profileID, identifier, label,
	)
	d, err := scanDevice(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Device{}, fmt.Errorf("%w: %s", ErrDeviceClaimed, identifier)
	}
	if err != nil {
		return Device{}, fmt.Errorf("register device: %w", err)
	}
	return d, nil
}

func (s *PostgresStore) Touch(ctx context.Context, profileID int64, identifier string) (Device, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	row := s.pool.QueryRow(ctx,
		`UPDATE devices SET last_seen = NOW() WHERE identifier = $1 AND profile_id = $2
		 RETURNING id, profile_id, identifier, label, last_seen`,
		identifier, profileID,
	)
	d, err := scanDevice(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Device{}, fmt.Errorf("%w: %s", ErrDeviceNotFound, identifier)
	}
	if err != nil {
		return Device{}, fmt.Errorf("touch device: %w", err)
	}
	return d, nil
}

func scanDevice(row pgx.Row) (Device, error) {
	var d Device
	if err := row.Scan(&d.ID, &d.ProfileID, &d.Identifier, &d.Label, &d.LastSeen); err != nil {
		return Device{}, err
	}
	return d, nil
}
