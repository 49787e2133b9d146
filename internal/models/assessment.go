package models

import (
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/noah-isme/gema-assessment-api/internal/assessment"
)

// AssessmentTypeQuiz is the only assessment type produced by the engine.
const AssessmentTypeQuiz = "quiz"

// Assessment is a published quiz scoped to a course and batch.
type Assessment struct {
	ID                     uint                      `gorm:"primaryKey" json:"id"`
	Title                  string                    `gorm:"size:255;not null" json:"title"`
	CourseID               uint                      `gorm:"not null;index" json:"course_id"`
	BatchID                uint                      `gorm:"not null;index" json:"batch_id"`
	Type                   string                    `gorm:"size:32;not null;default:quiz" json:"type"`
	TotalMarks             int                       `gorm:"not null" json:"total_marks"`
	DueDate                *time.Time                `json:"due_date"`
	TimeLimitMinutes       int                       `gorm:"not null;default:0" json:"time_limit_minutes"`
	PassingScorePercent    int                       `gorm:"not null;default:0" json:"passing_score_percent"`
	ShuffleQuestions       bool                      `gorm:"not null;default:false" json:"shuffle_questions"`
	ShowResultsImmediately bool                      `gorm:"not null;default:false" json:"show_results_immediately"`
	AssignedTo             string                    `gorm:"size:32;not null;default:entire_batch" json:"assigned_to"`
	AssignedStudentIDs     datatypes.JSONSlice[uint] `gorm:"type:json" json:"assigned_student_ids"`
	CreatedBy              uint                      `gorm:"not null" json:"created_by"`
	CreatedAt              time.Time                 `json:"created_at"`
	UpdatedAt              time.Time                 `json:"updated_at"`
	Questions              []AssessmentQuestion      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"questions,omitempty"`
}

// AssessmentQuestion stores one question of an assessment in authoring order.
type AssessmentQuestion struct {
	ID                 uint                        `gorm:"primaryKey" json:"id"`
	AssessmentID       uint                        `gorm:"not null;uniqueIndex:idx_assessment_question_ref" json:"assessment_id"`
	QuestionRef        string                      `gorm:"size:64;not null;uniqueIndex:idx_assessment_question_ref" json:"question_ref"`
	Position           int                         `gorm:"not null" json:"position"`
	Type               string                      `gorm:"size:32;not null" json:"type"`
	Text               string                      `gorm:"type:text;not null" json:"text"`
	Points             int                         `gorm:"not null" json:"points"`
	ImageRef           string                      `gorm:"size:512" json:"image_ref"`
	Options            datatypes.JSONSlice[string] `gorm:"type:json" json:"options"`
	CorrectOptionIndex *int                        `json:"correct_option_index"`
	ExpectedAnswer     *string                     `gorm:"type:text" json:"expected_answer"`
	CodeTemplate       *string                     `gorm:"type:text" json:"code_template"`
	CreatedAt          time.Time                   `json:"created_at"`
}

// Settings returns the domain settings configured on the assessment.
func (a Assessment) Settings() assessment.Settings {
	return assessment.Settings{
		DueDate:                a.DueDate,
		TimeLimitMinutes:       a.TimeLimitMinutes,
		PassingScorePercent:    a.PassingScorePercent,
		ShuffleQuestions:       a.ShuffleQuestions,
		ShowResultsImmediately: a.ShowResultsImmediately,
		Audience: assessment.Audience{
			Mode:       assessment.AudienceMode(a.AssignedTo),
			StudentIDs: []uint(a.AssignedStudentIDs),
		},
	}
}

// ApplySettings copies domain settings onto the row.
func (a *Assessment) ApplySettings(s assessment.Settings) {
	a.DueDate = s.DueDate
	a.TimeLimitMinutes = s.TimeLimitMinutes
	a.PassingScorePercent = s.PassingScorePercent
	a.ShuffleQuestions = s.ShuffleQuestions
	a.ShowResultsImmediately = s.ShowResultsImmediately
	a.AssignedTo = string(s.Audience.Mode)
	a.AssignedStudentIDs = datatypes.JSONSlice[uint](append([]uint(nil), s.Audience.StudentIDs...))
}

// DomainQuestions converts the stored rows to question variants in position order.
func (a Assessment) DomainQuestions() ([]assessment.Question, error) {
	questions := make([]assessment.Question, 0, len(a.Questions))
	for _, row := range a.Questions {
		q, err := row.Domain()
		if err != nil {
			return nil, fmt.Errorf("question %s: %w", row.QuestionRef, err)
		}
		questions = append(questions, q)
	}
	return questions, nil
}

// Domain converts the row to its question variant.
func (q AssessmentQuestion) Domain() (assessment.Question, error) {
	return assessment.FromFields(assessment.Fields{
		ID:                 q.QuestionRef,
		Type:               q.Type,
		Text:               q.Text,
		Points:             q.Points,
		ImageRef:           q.ImageRef,
		Options:            []string(q.Options),
		CorrectOptionIndex: q.CorrectOptionIndex,
		ExpectedAnswer:     q.ExpectedAnswer,
		CodeTemplate:       q.CodeTemplate,
	})
}

// NewAssessmentQuestion builds the storage row for question q at position.
func NewAssessmentQuestion(q assessment.Question, position int) AssessmentQuestion {
	fields := assessment.ToFields(q)
	return AssessmentQuestion{
		QuestionRef:        fields.ID,
		Position:           position,
		Type:               fields.Type,
		Text:               fields.Text,
		Points:             fields.Points,
		ImageRef:           fields.ImageRef,
		Options:            datatypes.JSONSlice[string](fields.Options),
		CorrectOptionIndex: fields.CorrectOptionIndex,
		ExpectedAnswer:     fields.ExpectedAnswer,
		CodeTemplate:       fields.CodeTemplate,
	}
}
