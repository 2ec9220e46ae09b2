package gamify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

// PostgresStore is a PostgreSQL-backed Store.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a gamify store on pool.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Award(ctx context.Context, profileID int64, points int, reason string) (Transaction, error) {
	if points == 0 {
		return Transaction{}, fmt.Errorf("%w: points must be non-zero", ErrInvalid)
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	t := Transaction{ProfileID: profileID, Points: points, Reason: reason}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO points_transactions (profile_id, points, reason)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		profileID, points, reason,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return Transaction{}, fmt.Errorf("insert points transaction: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) AwardOnce(ctx context.Context, profileID int64, points int, reason string) (Transaction, bool, error) {
	if points == 0 {
		return Transaction{}, false, fmt.Errorf("%w: points must be non-zero", ErrInvalid)
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	t := Transaction{ProfileID: profileID, Points: points, Reason: reason}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO points_transactions (profile_id, points, reason, once)
		 VALUES ($1, $2, $3, TRUE)
		 ON CONFLICT (profile_id, reason) WHERE once DO NOTHING
		 RETURNING id, created_at`,
		profileID, points, reason,
	).Scan(&t.ID, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, false, nil
	}
	if err != nil {
		return Transaction{}, false, fmt.Errorf("insert points transaction: %w", err)
	}
	return t, true, nil
}

func (s *PostgresStore) Total(ctx context.Context, profileID int64) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var total int
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(points), 0) FROM points_transactions WHERE profile_id = $1`,
		profileID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum points: %w", err)
	}
	return total, nil
}

func (s *PostgresStore) Evaluate(ctx context.Context, profileID int64) ([]UserBadge, error) {
	total, err := s.Total(ctx, profileID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`WITH awarded AS (
		     INSERT INTO user_badges (profile_id, badge_id)
		     SELECT $1, b.id FROM badges b
		     WHERE CASE WHEN jsonb_typeof(b.criteria->'points') = 'number'
		                THEN (b.criteria->>'points')::numeric <= $2
		                ELSE FALSE END
		     ON CONFLICT (profile_id, badge_id) DO NOTHING
		     RETURNING badge_id, awarded_at
		 )
		 SELECT b.id, b.code, b.title, b.description, b.criteria::text, a.awarded_at
		 FROM awarded a JOIN badges b ON b.id = a.badge_id
		 ORDER BY b.id`,
		profileID, total,
	)
	if err != nil {
		return nil, fmt.Errorf("evaluate badges: %w", err)
	}
	return collectUserBadges(rows)
}

func (s *PostgresStore) Badges(ctx context.Context, profileID int64) ([]UserBadge, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT b.id, b.code, b.title, b.description, b.criteria::text, ub.awarded_at
		 FROM user_badges ub JOIN badges b ON b.id = ub.badge_id
		 WHERE ub.profile_id = $1
		 ORDER BY b.id`,
		profileID,
	)
	if err != nil {
		return nil, fmt.Errorf("list badges: %w", err)
	}
	return collectUserBadges(rows)
}

func (s *PostgresStore) UpsertBadge(ctx context.Context, b Badge) (Badge, error) {
	b, err := normalizeBadge(b)
	if err != nil {
		return Badge{}, err
	}
	criteria, err := json.Marshal(b.Criteria)
	if err != nil {
		return Badge{}, fmt.Errorf("marshal criteria: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	err = s.pool.QueryRow(ctx,
		`INSERT INTO badges (code, title, description, criteria)
		 VALUES ($1, $2, $3, $4::jsonb)
		 ON CONFLICT (code) DO UPDATE
		 SET title = EXCLUDED.title, description = EXCLUDED.description, criteria = EXCLUDED.criteria
		 RETURNING id`,
		b.Code, b.Title, b.Description, string(criteria),
	).Scan(&b.ID)
	if err != nil {
		return Badge{}, fmt.Errorf("upsert badge %s: %w", b.Code, err)
	}
	return b, nil
}

func collectUserBadges(rows pgx.Rows) ([]UserBadge, error) {
	defer rows.Close()

	var out []UserBadge
	for rows.Next() {
		var ub UserBadge
		var criteria string
		if err := rows.Scan(&ub.ID, &ub.Code, &ub.Title, &ub.Description, &criteria, &ub.AwardedAt); err != nil {
			return nil, fmt.Errorf("scan badge: %w", err)
		}
		if err := json.Unmarshal([]byte(criteria), &ub.Criteria); err != nil {
			return nil, fmt.Errorf("decode criteria for %s: %w", ub.Code, err)
		}
		out = append(out, ub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate badges: %w", err)
	}
	return out, nil
}
