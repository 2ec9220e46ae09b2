package content

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Store reads the content hierarchy.
type Store interface {
	GetSubject(ctx context.Context, id int64) (Subject, error)
	GetLesson(ctx context.Context, id int64) (Lesson, error)
	GetTopic(ctx context.Context, id int64) (Topic, error)
	GetQuiz(ctx context.Context, id int64) (Quiz, error)
	// QuizQuestions returns the quiz's questions ordered by id, each with its choices.
	QuizQuestions(ctx context.Context, quizID int64) ([]Question, error)
	// SubjectLessons returns the subject's lessons by order, then id.
	SubjectLessons(ctx context.Context, subjectID int64) ([]Lesson, error)
	CountLessons(ctx context.Context, subjectID int64) (int, error)
}

// Seeder writes content. An entity with a zero ID gets one assigned.
type Seeder interface {
	AddSubject(ctx context.Context, s Subject) (int64, error)
	AddLesson(ctx context.Context, l Lesson) (int64, error)
	AddTopic(ctx context.Context, t Topic) (int64, error)
	AddQuiz(ctx context.Context, q Quiz) (int64, error)
	// AddQuestion stores the question and its choices.
	AddQuestion(ctx context.Context, q Question) (int64, error)
}

// MemoryStore is an in-memory implementation of Store and Seeder.
type MemoryStore struct {
	subjects  map[int64]Subject
	lessons   map[int64]Lesson
	topics    map[int64]Topic
	quizzes   map[int64]Quiz
	questions map[int64]Question
	nextID    int64
	mu        sync.RWMutex
}

// NewMemoryStore creates an empty in-memory content store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		subjects:  make(map[int64]Subject),
		lessons:   make(map[int64]Lesson),
		topics:    make(map[int64]Topic),
		quizzes:   make(map[int64]Quiz),
		questions: make(map[int64]Question),
	}
}

// assignID must be called with mu held.
func (s *MemoryStore) assignID(id int64) int64 {
	if id > 0 {
		if id > s.nextID {
			s.nextID = id
		}
		return id
	}
	s.nextID++
	return s.nextID
}

func (s *MemoryStore) AddSubject(_ context.Context, sub Subject) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub.ID = s.assignID(sub.ID)
	if sub.Board == "" {
		sub.Board = "CBSE"
	}
	s.subjects[sub.ID] = sub
	return sub.ID, nil
}

func (s *MemoryStore) AddLesson(_ context.Context, l Lesson) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subjects[l.SubjectID]; !ok {
		return 0, fmt.Errorf("add lesson: subject %d: %w", l.SubjectID, ErrNotFound)
	}
	l.ID = s.assignID(l.ID)
	s.lessons[l.ID] = l
	return l.ID, nil
}

func (s *MemoryStore) AddTopic(_ context.Context, t Topic) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.lessons[t.LessonID]; !ok {
		return 0, fmt.Errorf("add topic: lesson %d: %w", t.LessonID, ErrNotFound)
	}
	t.ID = s.assignID(t.ID)
	s.topics[t.ID] = t
	return t.ID, nil
}

func (s *MemoryStore) AddQuiz(_ context.Context, q Quiz) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.lessons[q.LessonID]; !ok {
		return 0, fmt.Errorf("add quiz: lesson %d: %w", q.LessonID, ErrNotFound)
	}
	q.ID = s.assignID(q.ID)
	s.quizzes[q.ID] = q
	return q.ID, nil
}

func (s *MemoryStore) AddQuestion(_ context.Context, q Question) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.quizzes[q.QuizID]; !ok {
		return 0, fmt.Errorf("add question: quiz %d: %w", q.QuizID, ErrNotFound)
	}
	q.ID = s.assignID(q.ID)
	if q.Type == "" {
		q.Type = QuestionMCQ
	}
	choices := make([]Choice, len(q.Choices))
	for i, c := range q.Choices {
		c.ID = s.assignID(c.ID)
		c.QuestionID = q.ID
		choices[i] = c
	}
	sort.Slice(choices, func(i, j int) bool { return choices[i].ID < choices[j].ID })
	q.Choices = choices
	s.questions[q.ID] = q
	return q.ID, nil
}

func (s *MemoryStore) GetSubject(_ context.Context, id int64) (Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subjects[id]
	if !ok {
		return Subject{}, fmt.Errorf("subject %d: %w", id, ErrNotFound)
	}
	return sub, nil
}

func (s *MemoryStore) GetLesson(_ context.Context, id int64) (Lesson, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.lessons[id]
	if !ok {
		return Lesson{}, fmt.Errorf("lesson %d: %w", id, ErrNotFound)
	}
	return l, nil
}

func (s *MemoryStore) GetTopic(_ context.Context, id int64) (Topic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.topics[id]
	if !ok {
		return Topic{}, fmt.Errorf("topic %d: %w", id, ErrNotFound)
	}
	return t, nil
}

func (s *MemoryStore) GetQuiz(_ context.Context, id int64) (Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.quizzes[id]
	if !ok {
		return Quiz{}, fmt.Errorf("quiz %d: %w", id, ErrNotFound)
	}
	return q, nil
}

func (s *MemoryStore) QuizQuestions(_ context.Context, quizID int64) ([]Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Question
	for _, q := range s.questions {
		if q.QuizID != quizID {
			continue
		}
		q.Choices = append([]Choice(nil), q.Choices...)
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) SubjectLessons(_ context.Context, subjectID int64) ([]Lesson, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Lesson
	for _, l := range s.lessons {
		if l.SubjectID == subjectID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) CountLessons(ctx context.Context, subjectID int64) (int, error) {
	lessons, err := s.SubjectLessons(ctx, subjectID)
	if err != nil {
		return 0, err
	}
	return len(lessons), nil
}
