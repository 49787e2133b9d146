package dto

import (
	"time"

	"github.com/noah-isme/gema-assessment-api/internal/assessment"
	"github.com/noah-isme/gema-assessment-api/internal/models"
)

// SubmitRequest carries a student's answers keyed by question id: an option
// index (integer) for objective questions, text for the others.
type SubmitRequest struct {
	Responses assessment.Responses `json:"responses" validate:"required"`
}

// AttemptResponse reports the server-recorded start of an attempt.
type AttemptResponse struct {
	AssessmentID     uint       `json:"assessment_id"`
	StudentID        uint       `json:"student_id"`
	StartedAt        time.Time  `json:"started_at"`
	Deadline         *time.Time `json:"deadline,omitempty"`
	TimeLimitMinutes int        `json:"time_limit_minutes"`
}

// QuestionResultResponse is the per-question outcome after overrides.
type QuestionResultResponse struct {
	QuestionID          string  `json:"question_id"`
	Type                string  `json:"type"`
	MaxPoints           int     `json:"max_points"`
	Awarded             float64 `json:"awarded"`
	Answered            bool    `json:"answered"`
	Correct             *bool   `json:"correct,omitempty"`
	PendingManualReview bool    `json:"pending_manual_review"`
	ManuallyGraded      bool    `json:"manually_graded"`
}

// SubmissionResponse is the serialized submission. Results and overrides are
// nil when ResultsVisible is false.
type SubmissionResponse struct {
	ID                   uint                     `json:"id"`
	AssessmentID         uint                     `json:"assessment_id"`
	StudentID            uint                     `json:"student_id"`
	Status               string                   `json:"status"`
	MarksObtained        float64                  `json:"marks_obtained"`
	TotalMarks           int                      `json:"total_marks"`
	ScorePercent         float64                  `json:"score_percent"`
	PassingScorePercent  int                      `json:"passing_score_percent"`
	Passed               bool                     `json:"passed"`
	GradeBand            assessment.Band          `json:"grade_band"`
	RequiresManualReview bool                     `json:"requires_manual_review"`
	PendingReviewCount   int                      `json:"pending_review_count"`
	Late                 bool                     `json:"late"`
	StartedAt            *time.Time               `json:"started_at,omitempty"`
	SubmittedAt          time.Time                `json:"submitted_at"`
	Responses            assessment.Responses     `json:"responses"`
	ResultsVisible       bool                     `json:"results_visible"`
	AutoMarks            *float64                 `json:"auto_marks,omitempty"`
	Results              []QuestionResultResponse `json:"results,omitempty"`
	ManualOverrides      map[string]float64       `json:"manual_overrides,omitempty"`
}

// NewSubmissionResponse converts a model. withResults exposes per-question
// results, overrides and automatic marks.
func NewSubmissionResponse(model models.Submission, withResults bool) SubmissionResponse {
	percent := assessment.Percent(model.MarksObtained, float64(model.TotalMarks))
	response := SubmissionResponse{
		ID:                   model.ID,
		AssessmentID:         model.AssessmentID,
		StudentID:            model.StudentID,
		Status:               model.Status,
		MarksObtained:        model.MarksObtained,
		TotalMarks:           model.TotalMarks,
		ScorePercent:         percent,
		PassingScorePercent:  model.PassingScorePercent,
		Passed:               model.Passed,
		GradeBand:            assessment.GradeBand(percent),
		RequiresManualReview: model.RequiresManualReview,
		PendingReviewCount:   model.PendingReviewCount,
		Late:                 model.Late,
		StartedAt:            model.StartedAt,
		SubmittedAt:          model.SubmittedAt,
		Responses:            model.Responses.Data(),
		ResultsVisible:       withResults,
	}

	if !withResults {
		return response
	}

	autoMarks := model.AutoMarks
	response.AutoMarks = &autoMarks

	overrides := model.OverrideMap()
	response.ManualOverrides = overrides
	response.Results = make([]QuestionResultResponse, 0, len(model.Results))
	for _, result := range model.Results {
		item := QuestionResultResponse{
			QuestionID:          result.QuestionID,
			Type:                string(result.Type),
			MaxPoints:           result.MaxPoints,
			Awarded:             result.Awarded,
			Answered:            result.Answered,
			Correct:             result.Correct,
			PendingManualReview: result.PendingManualReview,
		}
		if points, ok := overrides[result.QuestionID]; ok && result.PendingManualReview {
			item.Awarded = points
			item.PendingManualReview = false
			item.ManuallyGraded = true
		}
		response.Results = append(response.Results, item)
	}

	return response
}

// GradeRequest sets the manual points of one subjective question.
type GradeRequest struct {
	Points *float64 `json:"points" validate:"required"`
}

// ManualGradeResponse reports the submission after a manual grade.
type ManualGradeResponse struct {
	Submission SubmissionResponse `json:"submission"`
	Changed    bool               `json:"changed"`
}

// GradeHistoryResponse is a single audit entry.
type GradeHistoryResponse struct {
	ID             uint      `json:"id"`
	QuestionID     string    `json:"question_id"`
	Points         float64   `json:"points"`
	PreviousPoints *float64  `json:"previous_points"`
	GradedBy       uint      `json:"graded_by"`
	GradedAt       time.Time `json:"graded_at"`
}

// NewGradeHistoryResponseSlice converts audit rows.
func NewGradeHistoryResponseSlice(history []models.SubmissionGradeHistory) []GradeHistoryResponse {
	responses := make([]GradeHistoryResponse, 0, len(history))
	for _, entry := range history {
		responses = append(responses, GradeHistoryResponse{
			ID:             entry.ID,
			QuestionID:     entry.QuestionID,
			Points:         entry.Points,
			PreviousPoints: entry.PreviousPoints,
			GradedBy:       entry.GradedBy,
			GradedAt:       entry.GradedAt,
		})
	}
	return responses
}

// AssessmentStatisticsResponse is the class-level report of an assessment.
type AssessmentStatisticsResponse struct {
	AssessmentID uint `json:"assessment_id"`
	TotalMarks   int  `json:"total_marks"`
	assessment.Report
	GeneratedAt time.Time `json:"generated_at"`
}

// ImageUploadResponse describes a stored question image.
type ImageUploadResponse struct {
	URL       string `json:"url"`
	PublicID  string `json:"public_id"`
	MimeType  string `json:"mime_type"`
	SizeBytes int64  `json:"size_bytes"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}
