// Package progress records per-user completion of subjects, lessons and
// topics, and derives the percent-complete figure for a subject.
package progress

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Key identifies one progress row. Lesson and topic are optional.
type Key struct {
	UserID    int64
	SubjectID int64
	LessonID  *int64
	TopicID   *int64
}

// Record is one row of the progress ledger.
type Record struct {
	ID          int64
	Key         Key
	Completed   bool
	CompletedAt *time.Time
}

// Outcome says what MarkCompleted did.
type Outcome int

const (
	Unchanged Outcome = iota
	Created
	Flipped
)

func (o Outcome) String() string {
	switch o {
	case Created:
		return "created"
	case Flipped:
		return "flipped"
	default:
		return "unchanged"
	}
}

// Changed reports whether the ledger was written.
func (o Outcome) Changed() bool { return o != Unchanged }

// Ledger stores progress rows. MarkCompleted is get-or-create on Key: the
// first writer creates a completed row, later writers only flip an
// incomplete row and never duplicate it.
type Ledger interface {
	MarkCompleted(ctx context.Context, key Key, at time.Time) (Record, Outcome, error)
	// CompletedLessons counts distinct non-null lessons with a completed row.
	CompletedLessons(ctx context.Context, userID, subjectID int64) (int, error)
	List(ctx context.Context, userID, subjectID int64) ([]Record, error)
}

// MemoryLedger is an in-memory implementation of Ledger.
type MemoryLedger struct {
	rows   map[memKey]*Record
	nextID int64
	mu     sync.Mutex
}

type memKey struct {
	user, subject, lesson, topic int64
}

func toMemKey(k Key) memKey {
	return memKey{user: k.UserID, subject: k.SubjectID, lesson: deref(k.LessonID), topic: deref(k.TopicID)}
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{rows: make(map[memKey]*Record)}
}

// Put stores rec as-is, replacing any row with the same key. Used to import
// rows written elsewhere.
func (l *MemoryLedger) Put(rec Record) Record {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextID++
	rec.ID = l.nextID
	l.rows[toMemKey(rec.Key)] = &rec
	return rec
}

func (l *MemoryLedger) MarkCompleted(_ context.Context, key Key, at time.Time) (Record, Outcome, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	mk := toMemKey(key)
	if rec, ok := l.rows[mk]; ok {
		if rec.Completed {
			return *rec, Unchanged, nil
		}
		rec.Completed = true
		rec.CompletedAt = &at
		return *rec, Flipped, nil
	}

	l.nextID++
	rec := &Record{ID: l.nextID, Key: key, Completed: true, CompletedAt: &at}
	l.rows[mk] = rec
	return *rec, Created, nil
}

func (l *MemoryLedger) CompletedLessons(_ context.Context, userID, subjectID int64) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	seen := make(map[int64]struct{})
	for _, rec := range l.rows {
		if rec.Key.UserID != userID || rec.Key.SubjectID != subjectID {
			continue
		}
		if !rec.Completed || rec.Key.LessonID == nil {
			continue
		}
		seen[*rec.Key.LessonID] = struct{}{}
	}
	return len(seen), nil
}

func (l *MemoryLedger) List(_ context.Context, userID, subjectID int64) ([]Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []Record
	for _, rec := range l.rows {
		if rec.Key.UserID == userID && rec.Key.SubjectID == subjectID {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Len returns the number of rows; handy in tests.
func (l *MemoryLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.rows)
}

func deref(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}
