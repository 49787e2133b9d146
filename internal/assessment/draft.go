package assessment

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AudienceMode selects who an assessment is assigned to.
type AudienceMode string

const (
	AudienceEntireBatch      AudienceMode = "entire_batch"
	AudienceSpecificStudents AudienceMode = "specific_students"
)

// Audience describes the students an assessment is visible to.
type Audience struct {
	Mode       AudienceMode
	StudentIDs []uint
}

// Settings groups the authoring options of an assessment.
type Settings struct {
	DueDate                *time.Time
	TimeLimitMinutes       int
	PassingScorePercent    int
	ShuffleQuestions       bool
	ShowResultsImmediately bool
	Audience               Audience
}

func (s Settings) validate() error {
	if s.TimeLimitMinutes < 0 {
		return &ValidationError{Field: "timeLimitMinutes", Reason: "must not be negative"}
	}
	if s.PassingScorePercent < 0 || s.PassingScorePercent > 100 {
		return &ValidationError{Field: "passingScorePercent", Reason: "must be between 0 and 100"}
	}
	switch s.Audience.Mode {
	case AudienceEntireBatch:
	case AudienceSpecificStudents:
		if len(s.Audience.StudentIDs) == 0 {
			return &ValidationError{Field: "assignedTo.studentIds", Reason: "at least one student is required"}
		}
	default:
		return &ValidationError{Field: "assignedTo.mode", Reason: fmt.Sprintf("unsupported audience %q", s.Audience.Mode)}
	}
	return nil
}

// Draft is the immutable authoring state of an assessment. Every edit goes
// through Apply and yields a new Draft.
type Draft struct {
	Title     string
	CourseID  uint
	BatchID   uint
	Settings  Settings
	questions []Question
}

// NewDraft starts an empty draft assigned to the entire batch.
func NewDraft(title string, courseID, batchID uint) Draft {
	return Draft{
		Title:    title,
		CourseID: courseID,
		BatchID:  batchID,
		Settings: Settings{Audience: Audience{Mode: AudienceEntireBatch}},
	}
}

// Questions returns a copy of the draft questions.
func (d Draft) Questions() []Question {
	return append([]Question(nil), d.questions...)
}

// Published is a validated draft ready to persist.
type Published struct {
	Title      string
	CourseID   uint
	BatchID    uint
	Settings   Settings
	Questions  []Question
	TotalMarks int
}

// Publish validates the draft and fills in missing question ids.
func (d Draft) Publish() (Published, error) {
	if strings.TrimSpace(d.Title) == "" {
		return Published{}, &ValidationError{Field: "title", Reason: "is required"}
	}
	if d.CourseID == 0 {
		return Published{}, &ValidationError{Field: "courseId", Reason: "is required"}
	}
	if d.BatchID == 0 {
		return Published{}, &ValidationError{Field: "batchId", Reason: "is required"}
	}
	if len(d.questions) == 0 {
		return Published{}, &ValidationError{Field: "questions", Reason: "at least one question is required"}
	}
	if err := d.Settings.validate(); err != nil {
		return Published{}, err
	}

	seen := make(map[string]struct{}, len(d.questions))
	questions := make([]Question, 0, len(d.questions))
	for i, q := range d.questions {
		if err := Validate(q); err != nil {
			return Published{}, indexedField(i, err)
		}
		if q.Base().ID == "" {
			q = Reidentify(q)
		}
		if _, dup := seen[q.Base().ID]; dup {
			return Published{}, &ValidationError{Field: fmt.Sprintf("questions[%d].id", i), Reason: "duplicate question id"}
		}
		seen[q.Base().ID] = struct{}{}
		questions = append(questions, q)
	}

	return Published{
		Title:      strings.TrimSpace(d.Title),
		CourseID:   d.CourseID,
		BatchID:    d.BatchID,
		Settings:   d.Settings,
		Questions:  questions,
		TotalMarks: TotalMarks(questions),
	}, nil
}

// Action is a single authoring edit.
type Action interface {
	apply(d Draft) (Draft, error)
}

// Apply returns the draft that results from applying action to d. d itself is
// never modified.
func Apply(d Draft, action Action) (Draft, error) {
	next := d
	next.questions = d.Questions()
	next, err := action.apply(next)
	if err != nil {
		return d, err
	}
	return next, nil
}

// ApplyAll folds actions over d, stopping at the first failure.
func ApplyAll(d Draft, actions ...Action) (Draft, error) {
	current := d
	for _, action := range actions {
		next, err := Apply(current, action)
		if err != nil {
			return d, err
		}
		current = next
	}
	return current, nil
}

type SetTitle struct{ Title string }

type SetScope struct {
	CourseID uint
	BatchID  uint
}

type SetSettings struct{ Settings Settings }

// AddQuestion appends a question, generating an id when it has none.
type AddQuestion struct{ Question Question }

type RemoveQuestion struct{ Index int }

type MoveQuestion struct{ From, To int }

type SetText struct {
	Index int
	Text  string
}

type SetPoints struct {
	Index  int
	Points int
}

type SetImage struct {
	Index    int
	ImageRef string
}

// ChangeType rebuilds the question at Index as a new variant, see Convert.
type ChangeType struct {
	Index int
	Kind  Kind
}

type SetOptions struct {
	Index   int
	Options []string
}

type SetCorrectOption struct {
	Index  int
	Option int
}

type SetExpectedAnswer struct {
	Index  int
	Answer *string
}

type SetCodeTemplate struct {
	Index    int
	Template *string
}

func (a SetTitle) apply(d Draft) (Draft, error) {
	d.Title = a.Title
	return d, nil
}

func (a SetScope) apply(d Draft) (Draft, error) {
	d.CourseID = a.CourseID
	d.BatchID = a.BatchID
	return d, nil
}

func (a SetSettings) apply(d Draft) (Draft, error) {
	settings := a.Settings
	settings.Audience.StudentIDs = append([]uint(nil), a.Settings.Audience.StudentIDs...)
	d.Settings = settings
	return d, nil
}

func (a AddQuestion) apply(d Draft) (Draft, error) {
	if a.Question == nil {
		return d, &ValidationError{Field: "question", Reason: "is required"}
	}
	q := a.Question.withBase(a.Question.Base())
	if q.Base().ID == "" {
		base := q.Base()
		base.ID = uuid.NewString()
		q = q.withBase(base)
	}
	d.questions = append(d.questions, q)
	return d, nil
}

func (a RemoveQuestion) apply(d Draft) (Draft, error) {
	if err := d.checkIndex(a.Index); err != nil {
		return d, err
	}
	d.questions = append(d.questions[:a.Index], d.questions[a.Index+1:]...)
	return d, nil
}

func (a MoveQuestion) apply(d Draft) (Draft, error) {
	if err := d.checkIndex(a.From); err != nil {
		return d, err
	}
	if err := d.checkIndex(a.To); err != nil {
		return d, err
	}
	q := d.questions[a.From]
	rest := append(d.questions[:a.From:a.From], d.questions[a.From+1:]...)
	moved := make([]Question, 0, len(d.questions))
	moved = append(moved, rest[:a.To]...)
	moved = append(moved, q)
	moved = append(moved, rest[a.To:]...)
	d.questions = moved
	return d, nil
}

func (a SetText) apply(d Draft) (Draft, error) {
	return d.updateBase(a.Index, func(p *Prompt) { p.Text = a.Text })
}

func (a SetPoints) apply(d Draft) (Draft, error) {
	return d.updateBase(a.Index, func(p *Prompt) { p.Points = a.Points })
}

func (a SetImage) apply(d Draft) (Draft, error) {
	return d.updateBase(a.Index, func(p *Prompt) { p.ImageRef = strings.TrimSpace(a.ImageRef) })
}

func (a ChangeType) apply(d Draft) (Draft, error) {
	if err := d.checkIndex(a.Index); err != nil {
		return d, err
	}
	converted, err := Convert(d.questions[a.Index], a.Kind)
	if err != nil {
		return d, err
	}
	d.questions[a.Index] = converted
	return d, nil
}

func (a SetOptions) apply(d Draft) (Draft, error) {
	if err := d.checkIndex(a.Index); err != nil {
		return d, err
	}
	mc, ok := d.questions[a.Index].(MultipleChoice)
	if !ok {
		return d, &ValidationError{Field: "options", Reason: fmt.Sprintf("%s questions have no editable options", d.questions[a.Index].Kind())}
	}
	mc.Options = append([]string(nil), a.Options...)
	if mc.CorrectOptionIndex >= len(mc.Options) {
		mc.CorrectOptionIndex = 0
	}
	d.questions[a.Index] = mc
	return d, nil
}

func (a SetCorrectOption) apply(d Draft) (Draft, error) {
	if err := d.checkIndex(a.Index); err != nil {
		return d, err
	}
	switch q := d.questions[a.Index].(type) {
	case MultipleChoice:
		if a.Option < 0 || a.Option >= len(q.Options) {
			return d, &ValidationError{Field: "correctOptionIndex", Reason: "must reference an existing option"}
		}
		q.CorrectOptionIndex = a.Option
		d.questions[a.Index] = q
	case TrueFalse:
		if a.Option != 0 && a.Option != 1 {
			return d, &ValidationError{Field: "correctOptionIndex", Reason: "must be 0 (True) or 1 (False)"}
		}
		q.CorrectOptionIndex = a.Option
		d.questions[a.Index] = q
	default:
		return d, &ValidationError{Field: "correctOptionIndex", Reason: fmt.Sprintf("%s questions have no answer key", q.Kind())}
	}
	return d, nil
}

func (a SetExpectedAnswer) apply(d Draft) (Draft, error) {
	if err := d.checkIndex(a.Index); err != nil {
		return d, err
	}
	switch q := d.questions[a.Index].(type) {
	case ShortAnswer:
		q.ExpectedAnswer = a.Answer
		d.questions[a.Index] = q
	case CodeSnippet:
		q.ExpectedAnswer = a.Answer
		d.questions[a.Index] = q
	default:
		return d, &ValidationError{Field: "expectedAnswer", Reason: fmt.Sprintf("%s questions use correctOptionIndex", q.Kind())}
	}
	return d, nil
}

func (a SetCodeTemplate) apply(d Draft) (Draft, error) {
	if err := d.checkIndex(a.Index); err != nil {
		return d, err
	}
	q, ok := d.questions[a.Index].(CodeSnippet)
	if !ok {
		return d, &ValidationError{Field: "codeTemplate", Reason: "only code snippet questions carry a template"}
	}
	q.CodeTemplate = a.Template
	d.questions[a.Index] = q
	return d, nil
}

func (d Draft) checkIndex(index int) error {
	if index < 0 || index >= len(d.questions) {
		return &ValidationError{Field: "questions", Reason: fmt.Sprintf("no question at position %d", index)}
	}
	return nil
}

func (d Draft) updateBase(index int, edit func(p *Prompt)) (Draft, error) {
	if err := d.checkIndex(index); err != nil {
		return d, err
	}
	base := d.questions[index].Base()
	edit(&base)
	d.questions[index] = d.questions[index].withBase(base)
	return d, nil
}

// AppendQuestions adds imported questions to an existing list. Every import
// receives a fresh id so ids never collide across assessments.
func AppendQuestions(existing, imported []Question) ([]Question, int, error) {
	if len(imported) == 0 {
		return nil, 0, &ValidationError{Field: "questions", Reason: "at least one question is required"}
	}

	merged := make([]Question, 0, len(existing)+len(imported))
	merged = append(merged, existing...)
	for i, q := range imported {
		if err := Validate(q); err != nil {
			return nil, 0, indexedField(i, err)
		}
		merged = append(merged, Reidentify(q))
	}

	return merged, TotalMarks(merged), nil
}
