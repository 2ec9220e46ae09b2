package content

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// QuizPayload is the wire form of a quiz sent to students. It deliberately
// has no correctness field anywhere in its tree.
type QuizPayload struct {
	QuizID     int64             `json:"quiz_id"`
	Title      string            `json:"title"`
	TimeLimit  int               `json:"time_limit"`
	TotalMarks int               `json:"total_marks"`
	Questions  []QuestionPayload `json:"questions"`
}

// QuestionPayload is one question in a QuizPayload.
type QuestionPayload struct {
	ID      int64           `json:"id"`
	Text    string          `json:"text"`
	Marks   int             `json:"marks"`
	QType   QuestionType    `json:"qtype"`
	Choices []ChoicePayload `json:"choices"`
}

// ChoicePayload carries only id and text.
type ChoicePayload struct {
	ID   int64  `json:"id"`
	Text string `json:"text"`
}

// NewQuizPayload builds the student-facing payload. TotalMarks falls back to
// the sum of question marks when the stored figure is unset.
func NewQuizPayload(quiz Quiz, questions []Question) QuizPayload {
	p := QuizPayload{
		QuizID:    quiz.ID,
		Title:     quiz.Title,
		Questions: make([]QuestionPayload, 0, len(questions)),
	}
	if quiz.TimeLimit != nil {
		p.TimeLimit = *quiz.TimeLimit
	}

	sum := 0
	for _, q := range questions {
		qp := QuestionPayload{
			ID:      q.ID,
			Text:    q.Text,
			Marks:   q.MarksOrDefault(),
			QType:   q.Type,
			Choices: make([]ChoicePayload, 0, len(q.Choices)),
		}
		for _, c := range q.Choices {
			qp.Choices = append(qp.Choices, ChoicePayload{ID: c.ID, Text: c.Text})
		}
		sum += qp.Marks
		p.Questions = append(p.Questions, qp)
	}

	p.TotalMarks = quiz.TotalMarks
	if p.TotalMarks <= 0 {
		p.TotalMarks = sum
	}
	return p
}

// LoadQuizPayload resolves quiz id from store and builds its payload.
func LoadQuizPayload(ctx context.Context, store Store, id int64) (QuizPayload, error) {
	quiz, err := store.GetQuiz(ctx, id)
	if err != nil {
		return QuizPayload{}, err
	}
	questions, err := store.QuizQuestions(ctx, id)
	if err != nil {
		return QuizPayload{}, fmt.Errorf("load quiz %d questions: %w", id, err)
	}
	return NewQuizPayload(quiz, questions), nil
}

// ETag returns a strong entity tag over the payload's JSON encoding.
func (p QuizPayload) ETag() (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal quiz payload: %w", err)
	}
	sum := blake2b.Sum256(data)
	return `"` + hex.EncodeToString(sum[:16]) + `"`, nil
}
