// Package grading scores quiz submissions and records the resulting
// progress, change-log and points side effects.
package grading

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/p-n-ai/pai-lms/internal/content"
)

// LooseID is an identifier that may arrive as a number, a numeric string,
// null, or garbage. Anything that is not a positive integer is absent.
type LooseID struct {
	Value int64
	Valid bool
}

// ID returns a valid LooseID.
func ID(v int64) LooseID { return LooseID{Value: v, Valid: v > 0} }

// UnmarshalJSON never fails; unparseable input leaves the id absent.
func (l *LooseID) UnmarshalJSON(b []byte) error {
	l.Value, l.Valid = parseID(b)
	return nil
}

func (l LooseID) MarshalJSON() ([]byte, error) {
	if !l.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatInt(l.Value, 10)), nil
}

// Ptr returns the id or nil when absent.
func (l LooseID) Ptr() *int64 {
	if !l.Valid {
		return nil
	}
	v := l.Value
	return &v
}

func parseID(b []byte) (int64, bool) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return 0, false
	}

	s := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return 0, false
		}
		s = strings.TrimSpace(s)
	}

	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, v > 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || f <= 0 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

// Answer is one submitted answer. Text is only considered for fill-in questions.
type Answer struct {
	QuestionID LooseID `json:"question_id"`
	ChoiceID   LooseID `json:"choice_id"`
	Text       *string `json:"text,omitempty"`
}

// Detail reports how one answer was graded.
type Detail struct {
	QuestionID       int64   `json:"question_id"`
	Question         string  `json:"question"`
	SelectedChoiceID *int64  `json:"selected_choice_id"`
	SelectedText     *string `json:"selected_text"`
	Correct          bool    `json:"correct"`
	CorrectAnswer    *string `json:"correct_answer"`
	Marks            int     `json:"marks"`
}

// Scored is the outcome of Score.
type Scored struct {
	Score   int
	Total   int
	Details []Detail
}

// Score grades answers against the quiz's questions. It has no side effects.
//
// Total is the sum of every question's marks regardless of what was
// answered. Answers naming a question outside the quiz are skipped. A
// question answered twice is graded twice.
func Score(questions []content.Question, answers []Answer) Scored {
	byID := make(map[int64]content.Question, len(questions))
	out := Scored{Details: []Detail{}}
	for _, q := range questions {
		byID[q.ID] = q
		out.Total += q.MarksOrDefault()
	}

	for _, a := range answers {
		if !a.QuestionID.Valid {
			continue
		}
		q, ok := byID[a.QuestionID.Value]
		if !ok {
			continue
		}
		d := grade(q, a)
		if d.Correct {
			out.Score += d.Marks
		}
		out.Details = append(out.Details, d)
	}
	return out
}

func grade(q content.Question, a Answer) Detail {
	d := Detail{
		QuestionID:       q.ID,
		Question:         q.Text,
		SelectedChoiceID: a.ChoiceID.Ptr(),
		Marks:            q.MarksOrDefault(),
	}

	correct := q.CorrectChoices()
	if len(correct) > 0 {
		text := correct[0].Text
		d.CorrectAnswer = &text
	}

	if a.ChoiceID.Valid {
		if c, ok := q.FindChoice(a.ChoiceID.Value); ok {
			text := c.Text
			d.SelectedText = &text
			d.Correct = c.IsCorrect
		}
	}

	if q.Type == content.QuestionFill && a.Text != nil {
		if d.SelectedText == nil {
			text := *a.Text
			d.SelectedText = &text
		}
		if !d.Correct {
			d.Correct = matchesAny(*a.Text, correct)
		}
	}
	return d
}

func matchesAny(answer string, choices []content.Choice) bool {
	want := Normalize(answer)
	if want == "" {
		return false
	}
	for _, c := range choices {
		if Normalize(c.Text) == want {
			return true
		}
	}
	return false
}

// Normalize folds a free-text answer for comparison: NFKC, case folding,
// and collapsed whitespace.
func Normalize(s string) string {
	s = norm.NFKC.String(s)
	s = cases.Fold().String(s)
	return strings.Join(strings.Fields(s), " ")
}
