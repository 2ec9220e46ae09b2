package content

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

// PostgresStore is a PostgreSQL-backed Store and Seeder.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a content store on pool.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) GetSubject(ctx context.Context, id int64) (Subject, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var sub Subject
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, code, board, class_level FROM subjects WHERE id = $1`,
		id,
	).Scan(&sub.ID, &sub.Name, &sub.Code, &sub.Board, &sub.ClassLevel)
	if err != nil {
		return Subject{}, notFound(err, "subject", id)
	}
	return sub, nil
}

func (s *PostgresStore) GetLesson(ctx context.Context, id int64) (Lesson, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var l Lesson
	err := s.pool.QueryRow(ctx,
		`SELECT id, subject_id, title, sort_order, duration FROM lessons WHERE id = $1`,
		id,
	).Scan(&l.ID, &l.SubjectID, &l.Title, &l.Order, &l.Duration)
	if err != nil {
		return Lesson{}, notFound(err, "lesson", id)
	}
	return l, nil
}

func (s *PostgresStore) GetTopic(ctx context.Context, id int64) (Topic, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var t Topic
	err := s.pool.QueryRow(ctx,
		`SELECT id, lesson_id, title, sort_order FROM topics WHERE id = $1`,
		id,
	).Scan(&t.ID, &t.LessonID, &t.Title, &t.Order)
	if err != nil {
		return Topic{}, notFound(err, "topic", id)
	}
	return t, nil
}

func (s *PostgresStore) GetQuiz(ctx context.Context, id int64) (Quiz, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var q Quiz
	err := s.pool.QueryRow(ctx,
		`SELECT id, lesson_id, title, time_limit, total_marks FROM quizzes WHERE id = $1`,
		id,
	).Scan(&q.ID, &q.LessonID, &q.Title, &q.TimeLimit, &q.TotalMarks)
	if err != nil {
		return Quiz{}, notFound(err, "quiz", id)
	}
	return q, nil
}

func (s *PostgresStore) QuizQuestions(ctx context.Context, quizID int64) ([]Question, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT q.id, q.text, q.qtype, q.marks, c.id, c.text, c.is_correct
		 FROM questions q
		 LEFT JOIN choices c ON c.question_id = q.id
		 WHERE q.quiz_id = $1
		 ORDER BY q.id ASC, c.id ASC`,
		quizID,
	)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	var out []Question
	for rows.Next() {
		var (
			qid       int64
			text      string
			qtype     string
			marks     int
			choiceID  *int64
			choiceTxt *string
			isCorrect *bool
		)
		if err := rows.Scan(&qid, &text, &qtype, &marks, &choiceID, &choiceTxt, &isCorrect); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		if len(out) == 0 || out[len(out)-1].ID != qid {
			out = append(out, Question{
				ID:     qid,
				QuizID: quizID,
				Text:   text,
				Type:   QuestionType(qtype),
				Marks:  marks,
			})
		}
		if choiceID != nil {
			c := Choice{ID: *choiceID, QuestionID: qid}
			if choiceTxt != nil {
				c.Text = *choiceTxt
			}
			if isCorrect != nil {
				c.IsCorrect = *isCorrect
			}
			last := &out[len(out)-1]
			last.Choices = append(last.Choices, c)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate questions: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) SubjectLessons(ctx context.Context, subjectID int64) ([]Lesson, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT id, subject_id, title, sort_order, duration
		 FROM lessons
		 WHERE subject_id = $1
		 ORDER BY sort_order ASC, id ASC`,
		subjectID,
	)
	if err != nil {
		return nil, fmt.Errorf("query lessons: %w", err)
	}
	defer rows.Close()

	var out []Lesson
	for rows.Next() {
		var l Lesson
		if err := rows.Scan(&l.ID, &l.SubjectID, &l.Title, &l.Order, &l.Duration); err != nil {
			return nil, fmt.Errorf("scan lesson: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lessons: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) CountLessons(ctx context.Context, subjectID int64) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var n int
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM lessons WHERE subject_id = $1`,
		subjectID,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("count lessons: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) AddSubject(ctx context.Context, sub Subject) (int64, error) {
	if sub.Board == "" {
		sub.Board = "CBSE"
	}
	return s.insert(ctx, "subject",
		`INSERT INTO subjects (id, name, code, board, class_level)
		 VALUES (COALESCE($1, nextval(pg_get_serial_sequence('subjects', 'id'))), $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE
		 SET name = EXCLUDED.name, code = EXCLUDED.code, board = EXCLUDED.board, class_level = EXCLUDED.class_level
		 RETURNING id`,
		nullIfZero(sub.ID), sub.Name, sub.Code, sub.Board, sub.ClassLevel,
	)
}

func (s *PostgresStore) AddLesson(ctx context.Context, l Lesson) (int64, error) {
	return s.insert(ctx, "lesson",
		`INSERT INTO lessons (id, subject_id, title, sort_order, duration)
		 VALUES (COALESCE($1, nextval(pg_get_serial_sequence('lessons', 'id'))), $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE
		 SET subject_id = EXCLUDED.subject_id, title = EXCLUDED.title,
		     sort_order = EXCLUDED.sort_order, duration = EXCLUDED.duration
		 RETURNING id`,
		nullIfZero(l.ID), l.SubjectID, l.Title, l.Order, l.Duration,
	)
}

func (s *PostgresStore) AddTopic(ctx context.Context, t Topic) (int64, error) {
	return s.insert(ctx, "topic",
		`INSERT INTO topics (id, lesson_id, title, sort_order)
		 VALUES (COALESCE($1, nextval(pg_get_serial_sequence('topics', 'id'))), $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE
		 SET lesson_id = EXCLUDED.lesson_id, title = EXCLUDED.title, sort_order = EXCLUDED.sort_order
		 RETURNING id`,
		nullIfZero(t.ID), t.LessonID, t.Title, t.Order,
	)
}

func (s *PostgresStore) AddQuiz(ctx context.Context, q Quiz) (int64, error) {
	return s.insert(ctx, "quiz",
		`INSERT INTO quizzes (id, lesson_id, title, time_limit, total_marks)
		 VALUES (COALESCE($1, nextval(pg_get_serial_sequence('quizzes', 'id'))), $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE
		 SET lesson_id = EXCLUDED.lesson_id, title = EXCLUDED.title,
		     time_limit = EXCLUDED.time_limit, total_marks = EXCLUDED.total_marks
		 RETURNING id`,
		nullIfZero(q.ID), q.LessonID, q.Title, q.TimeLimit, q.TotalMarks,
	)
}

func (s *PostgresStore) AddQuestion(ctx context.Context, q Question) (int64, error) {
	if q.Type == "" {
		q.Type = QuestionMCQ
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin add question: %w", err)
	}
	defer tx.Rollback(ctx)

	var id int64
	if err := tx.QueryRow(ctx,
		`INSERT INTO questions (id, quiz_id, text, qtype, marks)
		 VALUES (COALESCE($1, nextval(pg_get_serial_sequence('questions', 'id'))), $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE
		 SET quiz_id = EXCLUDED.quiz_id, text = EXCLUDED.text, qtype = EXCLUDED.qtype, marks = EXCLUDED.marks
		 RETURNING id`,
		nullIfZero(q.ID), q.QuizID, q.Text, string(q.Type), q.Marks,
	).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert question: %w", err)
	}

	for _, c := range q.Choices {
		if _, err := tx.Exec(ctx,
			`INSERT INTO choices (id, question_id, text, is_correct)
			 VALUES (COALESCE($1, nextval(pg_get_serial_sequence('choices', 'id'))), $2, $3, $4)
			 ON CONFLICT (id) DO UPDATE
			 SET question_id = EXCLUDED.question_id, text = EXCLUDED.text, is_correct = EXCLUDED.is_correct`,
			nullIfZero(c.ID), id, c.Text, c.IsCorrect,
		); err != nil {
			return 0, fmt.Errorf("insert choice: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit add question: %w", err)
	}
	return id, nil
}

// ResetSequences moves every serial past the highest explicit id so later
// inserts without ids don't collide with seeded rows.
func (s *PostgresStore) ResetSequences(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	for _, table := range []string{"subjects", "lessons", "topics", "quizzes", "questions", "choices"} {
		q := fmt.Sprintf(
			`SELECT setval(pg_get_serial_sequence('%[1]s', 'id'), GREATEST((SELECT COALESCE(MAX(id), 0) FROM %[1]s), 1))`,
			table,
		)
		if _, err := s.pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("reset sequence %s: %w", table, err)
		}
	}
	return nil
}

func (s *PostgresStore) insert(ctx context.Context, what, query string, args ...any) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var id int64
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert %s: %w", what, err)
	}
	return id, nil
}

func notFound(err error, what string, id int64) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %d: %w", what, id, ErrNotFound)
	}
	return fmt.Errorf("get %s: %w", what, err)
}

func nullIfZero(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}
