package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-assessment-api/internal/assessment"
	"github.com/noah-isme/gema-assessment-api/internal/dto"
	"github.com/noah-isme/gema-assessment-api/internal/events"
	"github.com/noah-isme/gema-assessment-api/internal/models"
	"github.com/noah-isme/gema-assessment-api/internal/observability"
	"github.com/noah-isme/gema-assessment-api/internal/repository"
)

// SubmissionConfig tunes attempt timing.
type SubmissionConfig struct {
	RejectLate   bool
	AttemptGrace time.Duration
}

// SubmissionService captures and reads student attempts.
type SubmissionService interface {
	Start(ctx context.Context, assessmentID, studentID uint) (dto.AttemptResponse, error)
	Submit(ctx context.Context, assessmentID, studentID uint, req dto.SubmitRequest) (dto.SubmissionResponse, error)
	MySubmission(ctx context.Context, assessmentID, studentID uint) (dto.SubmissionResponse, error)
	ListForAssessment(ctx context.Context, assessmentID uint) ([]dto.SubmissionResponse, error)
}

type submissionService struct {
	assessments repository.AssessmentRepository
	submissions repository.SubmissionRepository
	guard       audienceGuard
	clock       AttemptClock
	activity    ActivityRecorder
	publisher   events.Publisher
	validator   *validator.Validate
	config      SubmissionConfig
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewSubmissionService constructs the submission service.
func NewSubmissionService(
	assessments repository.AssessmentRepository,
	submissions repository.SubmissionRepository,
	roster repository.RosterRepository,
	clock AttemptClock,
	activity ActivityRecorder,
	publisher events.Publisher,
	validate *validator.Validate,
	config SubmissionConfig,
	logger zerolog.Logger,
) SubmissionService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if config.AttemptGrace <= 0 {
		config.AttemptGrace = defaultAttemptGrace
	}

	return &submissionService{
		assessments: assessments,
		submissions: submissions,
		guard:       audienceGuard{roster: roster},
		clock:       clock,
		activity:    activity,
		publisher:   publisher,
		validator:   validate,
		config:      config,
		logger:      logger.With().Str("component", "submission_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/gema-assessment-api/internal/service/submission"),
		now:         time.Now,
	}
}

// Start records the server-side start of an attempt. Calling it again
// returns the original start time.
func (s *submissionService) Start(ctx context.Context, assessmentID, studentID uint) (dto.AttemptResponse, error) {
	model, err := loadAssessment(ctx, s.assessments, assessmentID, false)
	if err != nil {
		return dto.AttemptResponse{}, err
	}
	if err := s.guard.ensureVisible(ctx, model, studentID); err != nil {
		return dto.AttemptResponse{}, err
	}
	if err := s.ensureNoSubmission(ctx, assessmentID, studentID); err != nil {
		return dto.AttemptResponse{}, err
	}

	startedAt, err := s.clock.Start(ctx, assessmentID, studentID, AttemptTTL(model.TimeLimitMinutes, s.config.AttemptGrace))
	if err != nil {
		s.logger.Error().Err(err).Uint("assessment_id", assessmentID).Msg("failed to record attempt start")
		return dto.AttemptResponse{}, err
	}

	return dto.AttemptResponse{
		AssessmentID:     assessmentID,
		StudentID:        studentID,
		StartedAt:        startedAt,
		Deadline:         assessment.Deadline(model.Settings(), &startedAt),
		TimeLimitMinutes: model.TimeLimitMinutes,
	}, nil
}

// Submit grades and stores a student's only attempt.
func (s *submissionService) Submit(ctx context.Context, assessmentID, studentID uint, req dto.SubmitRequest) (dto.SubmissionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "submissions.submit", trace.WithAttributes(
		attribute.Int("assessment.id", int(assessmentID)),
		attribute.Int("student.id", int(studentID)),
	))
	defer span.End()

	response, outcome, err := s.submit(ctx, assessmentID, studentID, req)
	observability.SubmissionsTotal().WithLabelValues(outcome).Inc()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		return dto.SubmissionResponse{}, err
	}

	span.SetAttributes(attribute.Float64("submission.marks", response.MarksObtained))
	span.SetStatus(codes.Ok, outcome)
	return response, nil
}

func (s *submissionService) submit(ctx context.Context, assessmentID, studentID uint, req dto.SubmitRequest) (dto.SubmissionResponse, string, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.SubmissionResponse{}, "invalid", err
	}

	model, err := loadAssessment(ctx, s.assessments, assessmentID, true)
	if err != nil {
		return dto.SubmissionResponse{}, "invalid", err
	}
	if err := s.guard.ensureVisible(ctx, model, studentID); err != nil {
		return dto.SubmissionResponse{}, "forbidden", err
	}
	if err := s.ensureNoSubmission(ctx, assessmentID, studentID); err != nil {
		return dto.SubmissionResponse{}, "duplicate", err
	}

	questions, err := model.DomainQuestions()
	if err != nil {
		return dto.SubmissionResponse{}, "error", err
	}
	if err := checkResponseKeys(questions, req.Responses); err != nil {
		return dto.SubmissionResponse{}, "invalid", err
	}

	startedAt, err := s.clock.StartedAt(ctx, assessmentID, studentID)
	if err != nil {
		s.logger.Error().Err(err).Uint("assessment_id", assessmentID).Uint("student_id", studentID).Msg("failed to read attempt start")
		return dto.SubmissionResponse{}, "error", err
	}

	now := s.now().UTC()
	settings := model.Settings()
	late := assessment.IsLate(settings, startedAt, now)
	if late && s.config.RejectLate {
		return dto.SubmissionResponse{}, "late_rejected", ErrLateSubmission
	}

	gradeStart := time.Now()
	result := assessment.Grade(questions, req.Responses)
	observability.GradingDuration().Observe(time.Since(gradeStart).Seconds())

	total := assessment.TotalMarks(questions)
	_, pending := assessment.Reconcile(result.Results, nil)
	submission := models.Submission{
		AssessmentID:         assessmentID,
		StudentID:            studentID,
		Responses:            datatypes.NewJSONType(req.Responses),
		Results:              datatypes.JSONSlice[assessment.QuestionResult](result.Results),
		AutoMarks:            result.MarksObtained,
		MarksObtained:        result.MarksObtained,
		TotalMarks:           total,
		PassingScorePercent:  model.PassingScorePercent,
		Passed:               assessment.Passed(result.MarksObtained, float64(total), model.PassingScorePercent),
		RequiresManualReview: result.RequiresManualReview,
		PendingReviewCount:   pending,
		Late:                 late,
		Status:               models.SubmissionStatusSubmitted,
		StartedAt:            startedAt,
		SubmittedAt:          now,
	}

	if err := s.submissions.Create(ctx, &submission); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return dto.SubmissionResponse{}, "duplicate", ErrAlreadySubmitted
		}
		if errors.Is(err, repository.ErrAssessmentChanged) {
			return dto.SubmissionResponse{}, "conflict", ErrAssessmentChanged
		}
		s.logger.Error().Err(err).Uint("assessment_id", assessmentID).Uint("student_id", studentID).Msg("failed to persist submission")
		return dto.SubmissionResponse{}, "error", err
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      Actor{ID: studentID, Role: "student"},
		Action:     models.ActivitySubmissionCreated,
		EntityType: models.ActivityEntityAssessment,
		EntityID:   &submission.AssessmentID,
		Metadata: map[string]interface{}{
			"submission_id":  submission.ID,
			"marks_obtained": submission.MarksObtained,
			"late":           submission.Late,
		},
	})

	if err := s.publisher.Publish(ctx, events.Event{
		Type:         events.TypeSubmissionCreated,
		AssessmentID: assessmentID,
		StudentID:    studentID,
		Data: map[string]interface{}{
			"submission_id":          submission.ID,
			"marks_obtained":         submission.MarksObtained,
			"total_marks":            submission.TotalMarks,
			"requires_manual_review": submission.RequiresManualReview,
			"late":                   submission.Late,
		},
	}); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish submission event")
	}

	outcome := "accepted"
	if late {
		outcome = "late"
	}
	s.logger.Info().
		Uint("assessment_id", assessmentID).
		Uint("student_id", studentID).
		Float64("marks", submission.MarksObtained).
		Bool("late", late).
		Msg("submission graded")

	return dto.NewSubmissionResponse(submission, assessment.ShowResults(settings)), outcome, nil
}

func (s *submissionService) MySubmission(ctx context.Context, assessmentID, studentID uint) (dto.SubmissionResponse, error) {
	model, err := loadAssessment(ctx, s.assessments, assessmentID, false)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	submission, err := s.submissions.GetByAssessmentAndStudent(ctx, assessmentID, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	return dto.NewSubmissionResponse(submission, assessment.ShowResults(model.Settings())), nil
}

func (s *submissionService) ListForAssessment(ctx context.Context, assessmentID uint) ([]dto.SubmissionResponse, error) {
	if _, err := loadAssessment(ctx, s.assessments, assessmentID, false); err != nil {
		return nil, err
	}

	submissions, err := s.submissions.ListByAssessment(ctx, assessmentID)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.SubmissionResponse, 0, len(submissions))
	for _, submission := range submissions {
		responses = append(responses, dto.NewSubmissionResponse(submission, true))
	}
	return responses, nil
}

func (s *submissionService) ensureNoSubmission(ctx context.Context, assessmentID, studentID uint) error {
	_, err := s.submissions.GetByAssessmentAndStudent(ctx, assessmentID, studentID)
	switch {
	case err == nil:
		return assessment.EnsureCanSubmit(true)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil
	default:
		return err
	}
}

// checkResponseKeys rejects answers for questions the assessment does not have.
func checkResponseKeys(questions []assessment.Question, responses assessment.Responses) error {
	unknown := make([]string, 0)
	for id := range responses {
		if _, ok := assessment.Find(questions, id); !ok {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) == 0 {
		return nil
	}

	sort.Strings(unknown)
	return &assessment.ValidationError{Field: "responses." + unknown[0], Reason: "unknown question"}
}
