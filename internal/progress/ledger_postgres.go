package progress

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

// PostgresLedger is a PostgreSQL-backed Ledger. Uniqueness of the key is
// enforced by uq_student_progress_key, which treats NULL lesson/topic as equal.
type PostgresLedger struct {
	pool *pgxpool.Pool
}

// NewPostgresLedger creates a ledger on pool.
func NewPostgresLedger(pool *pgxpool.Pool) (*PostgresLedger, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresLedger{pool: pool}, nil
}

func (l *PostgresLedger) MarkCompleted(ctx context.Context, key Key, at time.Time) (Record, Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rec := Record{Key: key, Completed: true}
	var completedAt time.Time
	var inserted bool

	// The WHERE on DO UPDATE leaves already-completed rows alone, in which
	// case no row comes back.
	err := l.pool.QueryRow(ctx,
		`INSERT INTO student_progress (user_id, subject_id, lesson_id, topic_id, completed, completed_at)
		 VALUES ($1, $2, $3, $4, TRUE, $5)
		 ON CONFLICT (user_id, subject_id, COALESCE(lesson_id, 0), COALESCE(topic_id, 0))
		 DO UPDATE SET completed = TRUE, completed_at = EXCLUDED.completed_at
		 WHERE student_progress.completed = FALSE
		 RETURNING id, completed_at, (xmax = 0)`,
		key.UserID, key.SubjectID, key.LessonID, key.TopicID, at,
	).Scan(&rec.ID, &completedAt, &inserted)
	switch {
	case err == nil:
		rec.CompletedAt = &completedAt
		if inserted {
			return rec, Created, nil
		}
		return rec, Flipped, nil
	case errors.Is(err, pgx.ErrNoRows):
		existing, err := l.get(ctx, key)
		if err != nil {
			return Record{}, Unchanged, err
		}
		return existing, Unchanged, nil
	default:
		return Record{}, Unchanged, fmt.Errorf("mark progress completed: %w", err)
	}
}

func (l *PostgresLedger) CompletedLessons(ctx context.Context, userID, subjectID int64) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var n int
	if err := l.pool.QueryRow(ctx,
		`SELECT COUNT(DISTINCT lesson_id)
		 FROM student_progress
		 WHERE user_id = $1
		   AND subject_id = $2
		   AND completed
		   AND lesson_id IS NOT NULL`,
		userID, subjectID,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("count completed lessons: %w", err)
	}
	return n, nil
}

func (l *PostgresLedger) List(ctx context.Context, userID, subjectID int64) ([]Record, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := l.pool.Query(ctx,
		`SELECT id, user_id, subject_id, lesson_id, topic_id, completed, completed_at
		 FROM student_progress
		 WHERE user_id = $1 AND subject_id = $2
		 ORDER BY id ASC`,
		userID, subjectID,
	)
	if err != nil {
		return nil, fmt.Errorf("query progress: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate progress: %w", err)
	}
	return out, nil
}

func (l *PostgresLedger) get(ctx context.Context, key Key) (Record, error) {
	row := l.pool.QueryRow(ctx,
		`SELECT id, user_id, subject_id, lesson_id, topic_id, completed, completed_at
		 FROM student_progress
		 WHERE user_id = $1
		   AND subject_id = $2
		   AND COALESCE(lesson_id, 0) = COALESCE($3::bigint, 0)
		   AND COALESCE(topic_id, 0) = COALESCE($4::bigint, 0)`,
		key.UserID, key.SubjectID, key.LessonID, key.TopicID,
	)
	rec, err := scanRecord(row)
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	if err := row.Scan(
		&rec.ID,
		&rec.Key.UserID,
		&rec.Key.SubjectID,
		&rec.Key.LessonID,
		&rec.Key.TopicID,
		&rec.Completed,
		&rec.CompletedAt,
	); err != nil {
		return Record{}, fmt.Errorf("scan progress: %w", err)
	}
	return rec, nil
}
