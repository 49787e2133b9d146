package assessment

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Kind identifies one of the supported question shapes.
type Kind string

const (
	KindMultipleChoice Kind = "multiple_choice"
	KindTrueFalse      Kind = "true_false"
	KindShortAnswer    Kind = "short_answer"
	KindCodeSnippet    Kind = "code_snippet"
)

// ParseKind normalises a wire value into a Kind.
func ParseKind(value string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(value))) {
	case KindMultipleChoice:
		return KindMultipleChoice, nil
	case KindTrueFalse:
		return KindTrueFalse, nil
	case KindShortAnswer:
		return KindShortAnswer, nil
	case KindCodeSnippet:
		return KindCodeSnippet, nil
	default:
		return "", &ValidationError{Field: "type", Reason: fmt.Sprintf("unsupported question type %q", value)}
	}
}

// Objective reports whether questions of this kind are machine checkable.
func (k Kind) Objective() bool {
	return k == KindMultipleChoice || k == KindTrueFalse
}

// TrueFalseOptions are the fixed options of every true/false question.
var TrueFalseOptions = []string{"True", "False"}

// Prompt holds the fields shared by every question kind.
type Prompt struct {
	ID       string
	Text     string
	Points   int
	ImageRef string
}

// Question is the closed set of question variants. Only the types declared in
// this package implement it.
type Question interface {
	Base() Prompt
	Kind() Kind
	withBase(p Prompt) Question
	validate() error
}

// MultipleChoice awards full points when the chosen index matches.
type MultipleChoice struct {
	Prompt
	Options            []string
	CorrectOptionIndex int
}

// TrueFalse is a two-option objective question with fixed options.
type TrueFalse struct {
	Prompt
	CorrectOptionIndex int
}

// ShortAnswer is graded manually; ExpectedAnswer is a reference for the grader.
type ShortAnswer struct {
	Prompt
	ExpectedAnswer *string
}

// CodeSnippet is graded manually.
type CodeSnippet struct {
	Prompt
	CodeTemplate   *string
	ExpectedAnswer *string
}

func (q MultipleChoice) Base() Prompt { return q.Prompt }
func (q TrueFalse) Base() Prompt      { return q.Prompt }
func (q ShortAnswer) Base() Prompt    { return q.Prompt }
func (q CodeSnippet) Base() Prompt    { return q.Prompt }

func (MultipleChoice) Kind() Kind { return KindMultipleChoice }
func (TrueFalse) Kind() Kind      { return KindTrueFalse }
func (ShortAnswer) Kind() Kind    { return KindShortAnswer }
func (CodeSnippet) Kind() Kind    { return KindCodeSnippet }

func (q MultipleChoice) withBase(p Prompt) Question {
	q.Prompt = p
	q.Options = append([]string(nil), q.Options...)
	return q
}

func (q TrueFalse) withBase(p Prompt) Question {
	q.Prompt = p
	return q
}

func (q ShortAnswer) withBase(p Prompt) Question {
	q.Prompt = p
	return q
}

func (q CodeSnippet) withBase(p Prompt) Question {
	q.Prompt = p
	return q
}

func (q MultipleChoice) validate() error {
	if err := q.Prompt.validate(); err != nil {
		return err
	}
	if len(q.Options) < 2 {
		return &ValidationError{Field: "options", Reason: "multiple choice needs at least two options"}
	}
	for i, option := range q.Options {
		if strings.TrimSpace(option) == "" {
			return &ValidationError{Field: fmt.Sprintf("options[%d]", i), Reason: "option text is required"}
		}
	}
	if q.CorrectOptionIndex < 0 || q.CorrectOptionIndex >= len(q.Options) {
		return &ValidationError{Field: "correctOptionIndex", Reason: "must reference an existing option"}
	}
	return nil
}

func (q TrueFalse) validate() error {
	if err := q.Prompt.validate(); err != nil {
		return err
	}
	if q.CorrectOptionIndex != 0 && q.CorrectOptionIndex != 1 {
		return &ValidationError{Field: "correctOptionIndex", Reason: "must be 0 (True) or 1 (False)"}
	}
	return nil
}

func (q ShortAnswer) validate() error { return q.Prompt.validate() }
func (q CodeSnippet) validate() error { return q.Prompt.validate() }

func (p Prompt) validate() error {
	if strings.TrimSpace(p.Text) == "" {
		return &ValidationError{Field: "text", Reason: "question text is required"}
	}
	if p.Points <= 0 {
		return &ValidationError{Field: "points", Reason: "must be a positive integer"}
	}
	return nil
}

// Options returns the options a student chooses from, nil for free-text kinds.
func Options(q Question) []string {
	switch v := q.(type) {
	case MultipleChoice:
		return append([]string(nil), v.Options...)
	case TrueFalse:
		return append([]string(nil), TrueFalseOptions...)
	default:
		return nil
	}
}

// CorrectIndex returns the answer key of an objective question.
func CorrectIndex(q Question) (int, bool) {
	switch v := q.(type) {
	case MultipleChoice:
		return v.CorrectOptionIndex, true
	case TrueFalse:
		return v.CorrectOptionIndex, true
	default:
		return 0, false
	}
}

// Validate checks the invariants of a single question.
func Validate(q Question) error {
	if q == nil {
		return &ValidationError{Field: "question", Reason: "is required"}
	}
	return q.validate()
}

// Convert rebuilds q as a fresh variant of kind. Text, points and image carry
// over; every kind-specific field is reset to the defaults of the new kind.
func Convert(q Question, kind Kind) (Question, error) {
	if q.Kind() == kind {
		return q, nil
	}

	base := q.Base()
	switch kind {
	case KindMultipleChoice:
		return MultipleChoice{Prompt: base, Options: []string{"", ""}, CorrectOptionIndex: 0}, nil
	case KindTrueFalse:
		return TrueFalse{Prompt: base, CorrectOptionIndex: 0}, nil
	case KindShortAnswer:
		return ShortAnswer{Prompt: base}, nil
	case KindCodeSnippet:
		return CodeSnippet{Prompt: base}, nil
	default:
		return nil, &ValidationError{Field: "type", Reason: fmt.Sprintf("unsupported question type %q", kind)}
	}
}

// Reidentify returns a copy of q carrying a newly generated id.
func Reidentify(q Question) Question {
	base := q.Base()
	base.ID = uuid.NewString()
	return q.withBase(base)
}

// Fields is the flat representation shared by the wire and storage layers.
type Fields struct {
	ID                 string
	Type               string
	Text               string
	Points             int
	ImageRef           string
	Options            []string
	CorrectOptionIndex *int
	ExpectedAnswer     *string
	CodeTemplate       *string
}

// FromFields builds the variant described by f and validates it.
func FromFields(f Fields) (Question, error) {
	kind, err := ParseKind(f.Type)
	if err != nil {
		return nil, err
	}

	base := Prompt{
		ID:       strings.TrimSpace(f.ID),
		Text:     f.Text,
		Points:   f.Points,
		ImageRef: strings.TrimSpace(f.ImageRef),
	}

	var q Question
	switch kind {
	case KindMultipleChoice:
		if f.CorrectOptionIndex == nil {
			return nil, &ValidationError{Field: "correctOptionIndex", Reason: "is required for multiple choice"}
		}
		q = MultipleChoice{Prompt: base, Options: append([]string(nil), f.Options...), CorrectOptionIndex: *f.CorrectOptionIndex}
	case KindTrueFalse:
		correct := 0
		if f.CorrectOptionIndex != nil {
			correct = *f.CorrectOptionIndex
		}
		q = TrueFalse{Prompt: base, CorrectOptionIndex: correct}
	case KindShortAnswer:
		q = ShortAnswer{Prompt: base, ExpectedAnswer: f.ExpectedAnswer}
	case KindCodeSnippet:
		q = CodeSnippet{Prompt: base, CodeTemplate: f.CodeTemplate, ExpectedAnswer: f.ExpectedAnswer}
	}

	if err := q.validate(); err != nil {
		return nil, err
	}
	return q, nil
}

// ToFields flattens q.
func ToFields(q Question) Fields {
	base := q.Base()
	f := Fields{
		ID:       base.ID,
		Type:     string(q.Kind()),
		Text:     base.Text,
		Points:   base.Points,
		ImageRef: base.ImageRef,
		Options:  Options(q),
	}

	switch v := q.(type) {
	case MultipleChoice:
		idx := v.CorrectOptionIndex
		f.CorrectOptionIndex = &idx
	case TrueFalse:
		idx := v.CorrectOptionIndex
		f.CorrectOptionIndex = &idx
	case ShortAnswer:
		f.ExpectedAnswer = v.ExpectedAnswer
	case CodeSnippet:
		f.CodeTemplate = v.CodeTemplate
		f.ExpectedAnswer = v.ExpectedAnswer
	}

	return f
}

// TotalMarks sums the points of questions.
func TotalMarks(questions []Question) int {
	total := 0
	for _, q := range questions {
		total += q.Base().Points
	}
	return total
}

// Find returns the question with the given id.
func Find(questions []Question, id string) (Question, bool) {
	for _, q := range questions {
		if q.Base().ID == id {
			return q, true
		}
	}
	return nil, false
}

// QuestionsFromFields builds every question, reporting the position of the
// first invalid one in the error field.
func QuestionsFromFields(fields []Fields) ([]Question, error) {
	questions := make([]Question, 0, len(fields))
	for i, f := range fields {
		q, err := FromFields(f)
		if err != nil {
			return nil, indexedField(i, err)
		}
		questions = append(questions, q)
	}
	return questions, nil
}
