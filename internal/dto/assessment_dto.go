package dto

import (
	"time"

	"github.com/noah-isme/gema-assessment-api/internal/assessment"
	"github.com/noah-isme/gema-assessment-api/internal/models"
)

// AssignedToRequest selects the audience of an assessment.
type AssignedToRequest struct {
	Mode       string `json:"mode" validate:"required,oneof=entire_batch specific_students"`
	StudentIDs []uint `json:"student_ids" validate:"omitempty,dive,gt=0"`
}

// QuestionRequest is one authored question. Fields irrelevant to the type are ignored.
type QuestionRequest struct {
	ID                 string   `json:"id" validate:"omitempty,max=64"`
	Type               string   `json:"type" validate:"required"`
	Text               string   `json:"text" validate:"required,max=4000"`
	Points             int      `json:"points" validate:"required,gt=0"`
	ImageRef           string   `json:"image_ref" validate:"omitempty,url,max=512"`
	Options            []string `json:"options" validate:"omitempty,max=20,dive,max=1000"`
	CorrectOptionIndex *int     `json:"correct_option_index"`
	ExpectedAnswer     *string  `json:"expected_answer" validate:"omitempty,max=4000"`
	CodeTemplate       *string  `json:"code_template" validate:"omitempty,max=20000"`
}

// Fields converts the request to the shared flat question representation.
func (q QuestionRequest) Fields() assessment.Fields {
	return assessment.Fields{
		ID:                 q.ID,
		Type:               q.Type,
		Text:               q.Text,
		Points:             q.Points,
		ImageRef:           q.ImageRef,
		Options:            q.Options,
		CorrectOptionIndex: q.CorrectOptionIndex,
		ExpectedAnswer:     q.ExpectedAnswer,
		CodeTemplate:       q.CodeTemplate,
	}
}

// AssessmentCreateRequest describes the payload for publishing a quiz. Total
// marks are always derived from the questions.
type AssessmentCreateRequest struct {
	Title                  string             `json:"title" validate:"required,max=255"`
	CourseID               uint               `json:"course_id" validate:"required"`
	BatchID                uint               `json:"batch_id" validate:"required"`
	DueDate                *time.Time         `json:"due_date"`
	TimeLimitMinutes       int                `json:"time_limit_minutes" validate:"gte=0,lte=1440"`
	PassingScorePercent    int                `json:"passing_score_percent" validate:"gte=0,lte=100"`
	ShuffleQuestions       bool               `json:"shuffle_questions"`
	ShowResultsImmediately bool               `json:"show_results_immediately"`
	AssignedTo             *AssignedToRequest `json:"assigned_to"`
	Questions              []QuestionRequest  `json:"questions" validate:"required,min=1,dive"`
}

// Settings converts the request to domain settings. A missing audience means the entire batch.
func (r AssessmentCreateRequest) Settings() assessment.Settings {
	audience := assessment.Audience{Mode: assessment.AudienceEntireBatch}
	if r.AssignedTo != nil {
		audience = assessment.Audience{
			Mode:       assessment.AudienceMode(r.AssignedTo.Mode),
			StudentIDs: append([]uint(nil), r.AssignedTo.StudentIDs...),
		}
	}

	return assessment.Settings{
		DueDate:                r.DueDate,
		TimeLimitMinutes:       r.TimeLimitMinutes,
		PassingScorePercent:    r.PassingScorePercent,
		ShuffleQuestions:       r.ShuffleQuestions,
		ShowResultsImmediately: r.ShowResultsImmediately,
		Audience:               audience,
	}
}

// AppendQuestionsRequest imports questions from a bank.
type AppendQuestionsRequest struct {
	Questions []QuestionRequest `json:"questions" validate:"required,min=1,dive"`
}

// AssessmentListRequest filters the authoring listing.
type AssessmentListRequest struct {
	CourseID uint `query:"course_id"`
	BatchID  uint `query:"batch_id"`
	Page     int  `query:"page" validate:"omitempty,gte=1"`
	PageSize int  `query:"page_size" validate:"omitempty,gte=1,lte=100"`
}

// AssignedToResponse describes the audience of an assessment.
type AssignedToResponse struct {
	Mode       string `json:"mode"`
	StudentIDs []uint `json:"student_ids,omitempty"`
}

// QuestionResponse is the serialized question. Answer key fields are omitted
// when the viewer may not see them.
type QuestionResponse struct {
	ID                 string   `json:"id"`
	Type               string   `json:"type"`
	Text               string   `json:"text"`
	Points             int      `json:"points"`
	ImageRef           string   `json:"image_ref,omitempty"`
	Options            []string `json:"options,omitempty"`
	CorrectOptionIndex *int     `json:"correct_option_index,omitempty"`
	ExpectedAnswer     *string  `json:"expected_answer,omitempty"`
	CodeTemplate       *string  `json:"code_template,omitempty"`
}

// NewQuestionResponse converts a question. includeKey controls the answer key
// and reference answers; code templates are always shown as starter code.
func NewQuestionResponse(q assessment.Question, includeKey bool) QuestionResponse {
	fields := assessment.ToFields(q)
	response := QuestionResponse{
		ID:           fields.ID,
		Type:         fields.Type,
		Text:         fields.Text,
		Points:       fields.Points,
		ImageRef:     fields.ImageRef,
		Options:      fields.Options,
		CodeTemplate: fields.CodeTemplate,
	}
	if includeKey {
		response.CorrectOptionIndex = fields.CorrectOptionIndex
		response.ExpectedAnswer = fields.ExpectedAnswer
	}
	return response
}

// AssessmentResponse is the serialized representation returned to API clients.
type AssessmentResponse struct {
	ID                     uint               `json:"id"`
	Title                  string             `json:"title"`
	CourseID               uint               `json:"course_id"`
	BatchID                uint               `json:"batch_id"`
	Type                   string             `json:"type"`
	TotalMarks             int                `json:"total_marks"`
	QuestionCount          int                `json:"question_count"`
	DueDate                *time.Time         `json:"due_date,omitempty"`
	TimeLimitMinutes       int                `json:"time_limit_minutes"`
	PassingScorePercent    int                `json:"passing_score_percent"`
	ShuffleQuestions       bool               `json:"shuffle_questions"`
	ShowResultsImmediately bool               `json:"show_results_immediately"`
	AssignedTo             AssignedToResponse `json:"assigned_to"`
	CreatedBy              uint               `json:"created_by"`
	CreatedAt              time.Time          `json:"created_at"`
	UpdatedAt              time.Time          `json:"updated_at"`
	Questions              []QuestionResponse `json:"questions,omitempty"`
}

// NewAssessmentResponse converts a model into a summary DTO without question bodies.
func NewAssessmentResponse(model models.Assessment, questionCount int) AssessmentResponse {
	return AssessmentResponse{
		ID:                     model.ID,
		Title:                  model.Title,
		CourseID:               model.CourseID,
		BatchID:                model.BatchID,
		Type:                   model.Type,
		TotalMarks:             model.TotalMarks,
		QuestionCount:          questionCount,
		DueDate:                model.DueDate,
		TimeLimitMinutes:       model.TimeLimitMinutes,
		PassingScorePercent:    model.PassingScorePercent,
		ShuffleQuestions:       model.ShuffleQuestions,
		ShowResultsImmediately: model.ShowResultsImmediately,
		AssignedTo: AssignedToResponse{
			Mode:       model.AssignedTo,
			StudentIDs: append([]uint(nil), model.AssignedStudentIDs...),
		},
		CreatedBy: model.CreatedBy,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}

// NewAssessmentDetailResponse includes the questions in the given order.
func NewAssessmentDetailResponse(model models.Assessment, questions []assessment.Question, includeKey bool) AssessmentResponse {
	response := NewAssessmentResponse(model, len(questions))
	response.Questions = make([]QuestionResponse, 0, len(questions))
	for _, q := range questions {
		response.Questions = append(response.Questions, NewQuestionResponse(q, includeKey))
	}
	return response
}

// AssessmentListResponse wraps a paginated assessment listing.
type AssessmentListResponse struct {
	Items      []AssessmentResponse `json:"items"`
	Pagination PaginationMeta       `json:"pagination"`
}
