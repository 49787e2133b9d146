package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/noah-isme/gema-assessment-api/internal/assessment"
)

// Submission is a student's single graded attempt at an assessment.
type Submission struct {
	ID                   uint                                           `gorm:"primaryKey" json:"id"`
	AssessmentID         uint                                           `gorm:"not null;uniqueIndex:idx_submission_assessment_student" json:"assessment_id"`
	StudentID            uint                                           `gorm:"not null;uniqueIndex:idx_submission_assessment_student" json:"student_id"`
	Responses            datatypes.JSONType[assessment.Responses]       `gorm:"type:json" json:"responses"`
	Results              datatypes.JSONSlice[assessment.QuestionResult] `gorm:"type:json" json:"results"`
	AutoMarks            float64                                        `gorm:"not null" json:"auto_marks"`
	MarksObtained        float64                                        `gorm:"not null" json:"marks_obtained"`
	TotalMarks           int                                            `gorm:"not null" json:"total_marks"`
	PassingScorePercent  int                                            `gorm:"not null" json:"passing_score_percent"`
	Passed               bool                                           `gorm:"not null" json:"passed"`
	RequiresManualReview bool                                           `gorm:"not null" json:"requires_manual_review"`
	PendingReviewCount   int                                            `gorm:"not null;default:0" json:"pending_review_count"`
	Late                 bool                                           `gorm:"not null;default:false" json:"late"`
	Status               string                                         `gorm:"size:32;not null" json:"status"`
	StartedAt            *time.Time                                     `json:"started_at"`
	SubmittedAt          time.Time                                      `gorm:"not null" json:"submitted_at"`
	CreatedAt            time.Time                                      `json:"created_at"`
	UpdatedAt            time.Time                                      `json:"updated_at"`
	Overrides            []SubmissionOverride                           `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"overrides,omitempty"`
}

const (
	// SubmissionStatusSubmitted indicates automatic grading is complete.
	SubmissionStatusSubmitted = "submitted"
	// SubmissionStatusManuallyReviewed indicates at least one manual grade was applied.
	SubmissionStatusManuallyReviewed = "manually_reviewed"
)

// IsReviewed reports whether a grader has touched the submission.
func (s Submission) IsReviewed() bool {
	return s.Status == SubmissionStatusManuallyReviewed
}

// OverrideMap returns the current manual points keyed by question id.
func (s Submission) OverrideMap() map[string]float64 {
	overrides := make(map[string]float64, len(s.Overrides))
	for _, o := range s.Overrides {
		overrides[o.QuestionID] = o.Points
	}
	return overrides
}

// ScoreRecord projects the submission for statistics.
func (s Submission) ScoreRecord() assessment.ScoreRecord {
	return assessment.ScoreRecord{
		MarksObtained: s.MarksObtained,
		TotalMarks:    float64(s.TotalMarks),
		Passed:        s.Passed,
		Late:          s.Late,
		PendingReview: s.PendingReviewCount > 0,
	}
}

// SubmissionOverride holds the current manual points for one subjective question.
type SubmissionOverride struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	SubmissionID uint      `gorm:"not null;uniqueIndex:idx_override_submission_question" json:"submission_id"`
	QuestionID   string    `gorm:"size:64;not null;uniqueIndex:idx_override_submission_question" json:"question_id"`
	Points       float64   `gorm:"not null" json:"points"`
	GradedBy     uint      `gorm:"not null" json:"graded_by"`
	GradedAt     time.Time `gorm:"not null" json:"graded_at"`
}

// SubmissionGradeHistory is the audit trail of manual grade changes.
type SubmissionGradeHistory struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	SubmissionID   uint      `gorm:"not null;index" json:"submission_id"`
	QuestionID     string    `gorm:"size:64;not null" json:"question_id"`
	Points         float64   `gorm:"not null" json:"points"`
	PreviousPoints *float64  `json:"previous_points"`
	GradedBy       uint      `gorm:"not null" json:"graded_by"`
	GradedAt       time.Time `gorm:"not null" json:"graded_at"`
}
