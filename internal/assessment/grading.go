package assessment

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Answer is a student's response to one question: an option index for
// objective kinds or free text for subjective kinds. Values that are neither
// (floats, booleans, objects) are kept as invalid and never score.
type Answer struct {
	index   int
	text    string
	isIndex bool
	isText  bool
	raw     json.RawMessage
}

// IndexAnswer builds an option-index answer.
func IndexAnswer(i int) Answer { return Answer{index: i, isIndex: true} }

// TextAnswer builds a free-text answer.
func TextAnswer(s string) Answer { return Answer{text: s, isText: true} }

// Index returns the chosen option index.
func (a Answer) Index() (int, bool) { return a.index, a.isIndex }

// Text returns the free-text answer.
func (a Answer) Text() (string, bool) { return a.text, a.isText }

// UnmarshalJSON keeps integers and strings apart without coercion: "1" stays
// text and 1.0 is not an index.
func (a *Answer) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	*a = Answer{}
	if len(trimmed) == 0 {
		return fmt.Errorf("empty answer")
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*a = TextAnswer(s)
		return nil
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		if n, err := strconv.Atoi(string(trimmed)); err == nil {
			*a = IndexAnswer(n)
			return nil
		}
	}

	if !bytes.Equal(trimmed, []byte("null")) {
		a.raw = append(json.RawMessage(nil), trimmed...)
	}
	return nil
}

// Present reports whether the answer carries any value; JSON null does not.
func (a Answer) Present() bool {
	return a.isIndex || a.isText || len(a.raw) > 0
}

// MarshalJSON writes the answer back in its original shape.
func (a Answer) MarshalJSON() ([]byte, error) {
	switch {
	case a.isIndex:
		return []byte(strconv.Itoa(a.index)), nil
	case a.isText:
		return json.Marshal(a.text)
	case len(a.raw) > 0:
		return a.raw, nil
	default:
		return []byte("null"), nil
	}
}

// Responses maps question ids to answers.
type Responses map[string]Answer

// QuestionResult is the automatic outcome of one question.
type QuestionResult struct {
	QuestionID          string  `json:"question_id"`
	Type                Kind    `json:"type"`
	MaxPoints           int     `json:"max_points"`
	Awarded             float64 `json:"awarded"`
	Answered            bool    `json:"answered"`
	Correct             *bool   `json:"correct,omitempty"`
	PendingManualReview bool    `json:"pending_manual_review"`
}

// Outcome is the result of grading a full set of responses.
type Outcome struct {
	MarksObtained        float64
	Results              []QuestionResult
	RequiresManualReview bool
}

// Grade scores responses against questions. Objective questions award full
// points only on exact integer equality with the answer key; subjective
// questions score 0 and are flagged for manual review. Missing responses are
// unanswered, never errors.
func Grade(questions []Question, responses Responses) Outcome {
	outcome := Outcome{Results: make([]QuestionResult, 0, len(questions))}

	for _, q := range questions {
		base := q.Base()
		answer, ok := responses[base.ID]
		answered := ok && answer.Present()
		result := QuestionResult{
			QuestionID: base.ID,
			Type:       q.Kind(),
			MaxPoints:  base.Points,
			Answered:   answered,
		}

		if key, objective := CorrectIndex(q); objective {
			chosen, isIndex := answer.Index()
			correct := answered && isIndex && chosen == key
			if correct {
				result.Awarded = float64(base.Points)
			}
			result.Correct = &correct
		} else {
			result.PendingManualReview = true
			outcome.RequiresManualReview = true
		}

		outcome.MarksObtained += result.Awarded
		outcome.Results = append(outcome.Results, result)
	}

	return outcome
}

// CheckOverride verifies that points may be entered manually for q.
func CheckOverride(q Question, points float64) error {
	if q.Kind().Objective() {
		return fmt.Errorf("%w: %s questions are graded automatically", ErrOutOfRange, q.Kind())
	}
	if math.IsNaN(points) || points < 0 || points > float64(q.Base().Points) {
		return fmt.Errorf("%w: %v not within [0, %d]", ErrOutOfRange, points, q.Base().Points)
	}
	return nil
}

// Reconcile combines automatic results with manual overrides. An override
// replaces the question's contribution, so applying the same value again
// yields the same total.
func Reconcile(results []QuestionResult, overrides map[string]float64) (marks float64, pending int) {
	for _, result := range results {
		if points, ok := overrides[result.QuestionID]; ok && result.PendingManualReview {
			marks += points
			continue
		}
		if result.PendingManualReview {
			pending++
		}
		marks += result.Awarded
	}
	return marks, pending
}

// Percent converts marks to a percentage, 0 when total is not positive.
func Percent(marks, total float64) float64 {
	if total <= 0 || math.IsNaN(total) || math.IsNaN(marks) {
		return 0
	}
	return marks / total * 100
}

// Passed reports whether marks reach the passing percentage.
func Passed(marks, total float64, passingScorePercent int) bool {
	return Percent(marks, total) >= float64(passingScorePercent)
}
