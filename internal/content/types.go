// Package content holds the Subject → Lesson → Topic and Lesson → Quiz →
// Question → Choice hierarchy. It is read-only at quiz time.
package content

import "errors"

// ErrNotFound is returned when an entity does not exist.
var ErrNotFound = errors.New("content not found")

// QuestionType tags how a question is answered.
type QuestionType string

const (
	QuestionMCQ       QuestionType = "mcq"
	QuestionFill      QuestionType = "fill"
	QuestionMatch     QuestionType = "match"
	QuestionTrueFalse QuestionType = "tf"
)

// Valid reports whether t is one of the known question types.
func (t QuestionType) Valid() bool {
	switch t {
	case QuestionMCQ, QuestionFill, QuestionMatch, QuestionTrueFalse:
		return true
	}
	return false
}

// Subject is the root of the hierarchy (e.g. Physics, Class 10, CBSE).
type Subject struct {
	ID         int64
	Name       string
	Code       string
	Board      string
	ClassLevel string
}

// Lesson belongs to one subject and is ordered within it.
type Lesson struct {
	ID        int64
	SubjectID int64
	Title     string
	Order     int
	Duration  int // minutes
}

// Topic belongs to one lesson and is ordered within it.
type Topic struct {
	ID       int64
	LessonID int64
	Title    string
	Order    int
}

// Quiz belongs to one lesson. TotalMarks is denormalized and may be zero or stale.
type Quiz struct {
	ID         int64
	LessonID   int64
	Title      string
	TimeLimit  *int // seconds
	TotalMarks int
}

// Question belongs to one quiz. Choices are ordered by id.
type Question struct {
	ID      int64
	QuizID  int64
	Text    string
	Type    QuestionType
	Marks   int
	Choices []Choice
}

// Choice is one answer option. IsCorrect never leaves the server.
type Choice struct {
	ID         int64
	QuestionID int64
	Text       string
	IsCorrect  bool
}

// MarksOrDefault returns the question's marks, treating unset values as 1.
func (q Question) MarksOrDefault() int {
	if q.Marks <= 0 {
		return 1
	}
	return q.Marks
}

// CorrectChoices returns the choices flagged correct, in choice order.
func (q Question) CorrectChoices() []Choice {
	var out []Choice
	for _, c := range q.Choices {
		if c.IsCorrect {
			out = append(out, c)
		}
	}
	return out
}

// FindChoice returns the choice with the given id within this question.
func (q Question) FindChoice(id int64) (Choice, bool) {
	for _, c := range q.Choices {
		if c.ID == id {
			return c, true
		}
	}
	return Choice{}, false
}
