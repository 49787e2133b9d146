package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-assessment-api/internal/assessment"
	"github.com/noah-isme/gema-assessment-api/internal/dto"
	"github.com/noah-isme/gema-assessment-api/internal/events"
	"github.com/noah-isme/gema-assessment-api/internal/models"
	"github.com/noah-isme/gema-assessment-api/internal/observability"
	"github.com/noah-isme/gema-assessment-api/internal/repository"
)

// GradingService applies manual grades to subjective questions.
type GradingService interface {
	ApplyManualGrade(ctx context.Context, assessmentID, studentID uint, questionID string, grader Actor, req dto.GradeRequest) (dto.ManualGradeResponse, error)
	History(ctx context.Context, assessmentID, studentID uint) ([]dto.GradeHistoryResponse, error)
}

type gradingService struct {
	assessments repository.AssessmentRepository
	submissions repository.SubmissionRepository
	activity    ActivityRecorder
	publisher   events.Publisher
	validator   *validator.Validate
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewGradingService constructs the manual grading service.
func NewGradingService(assessments repository.AssessmentRepository, submissions repository.SubmissionRepository, activity ActivityRecorder, publisher events.Publisher, validate *validator.Validate, logger zerolog.Logger) GradingService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &gradingService{
		assessments: assessments,
		submissions: submissions,
		activity:    activity,
		publisher:   publisher,
		validator:   validate,
		logger:      logger.With().Str("component", "grading_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/gema-assessment-api/internal/service/grading"),
		now:         time.Now,
	}
}

// ApplyManualGrade replaces the contribution of one subjective question.
// Repeating the same points changes nothing and writes no audit entry.
func (s *gradingService) ApplyManualGrade(ctx context.Context, assessmentID, studentID uint, questionID string, grader Actor, req dto.GradeRequest) (dto.ManualGradeResponse, error) {
	ctx, span := s.tracer.Start(ctx, "grading.manual_override", trace.WithAttributes(
		attribute.Int("assessment.id", int(assessmentID)),
		attribute.Int("student.id", int(studentID)),
		attribute.String("question.id", questionID),
	))
	defer span.End()

	response, err := s.apply(ctx, assessmentID, studentID, questionID, grader, req)
	if err != nil {
		observability.ManualGradesTotal().WithLabelValues("rejected").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "manual grade failed")
		return dto.ManualGradeResponse{}, err
	}

	result := "unchanged"
	if response.Changed {
		result = "applied"
	}
	observability.ManualGradesTotal().WithLabelValues(result).Inc()
	span.SetAttributes(attribute.Bool("grade.changed", response.Changed))
	span.SetStatus(codes.Ok, result)

	return response, nil
}

func (s *gradingService) apply(ctx context.Context, assessmentID, studentID uint, questionID string, grader Actor, req dto.GradeRequest) (dto.ManualGradeResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ManualGradeResponse{}, err
	}
	points := *req.Points

	model, err := loadAssessment(ctx, s.assessments, assessmentID, true)
	if err != nil {
		return dto.ManualGradeResponse{}, err
	}
	questions, err := model.DomainQuestions()
	if err != nil {
		return dto.ManualGradeResponse{}, err
	}

	question, ok := assessment.Find(questions, questionID)
	if !ok {
		return dto.ManualGradeResponse{}, fmt.Errorf("%w: %s", assessment.ErrQuestionNotFound, questionID)
	}
	if err := assessment.CheckOverride(question, points); err != nil {
		return dto.ManualGradeResponse{}, err
	}

	var (
		submission models.Submission
		previous   *float64
		changed    bool
	)

	err = s.submissions.WithinTransaction(ctx, func(tx repository.SubmissionRepository) error {
		locked, err := tx.LockByAssessmentAndStudent(ctx, assessmentID, studentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSubmissionNotFound
			}
			return err
		}

		overrides := locked.OverrideMap()
		if current, exists := overrides[questionID]; exists {
			if current == points {
				submission = locked
				return nil
			}
			prev := current
			previous = &prev
		}

		gradedAt := s.now().UTC()
		if err := tx.UpsertOverride(ctx, &models.SubmissionOverride{
			SubmissionID: locked.ID,
			QuestionID:   questionID,
			Points:       points,
			GradedBy:     grader.ID,
			GradedAt:     gradedAt,
		}); err != nil {
			return err
		}

		if err := tx.CreateHistory(ctx, &models.SubmissionGradeHistory{
			SubmissionID:   locked.ID,
			QuestionID:     questionID,
			Points:         points,
			PreviousPoints: previous,
			GradedBy:       grader.ID,
			GradedAt:       gradedAt,
		}); err != nil {
			return err
		}

		overrides[questionID] = points
		marks, pending := assessment.Reconcile(locked.Results, overrides)
		locked.MarksObtained = marks
		locked.PendingReviewCount = pending
		locked.Passed = assessment.Passed(marks, float64(locked.TotalMarks), locked.PassingScorePercent)
		locked.Status = models.SubmissionStatusManuallyReviewed
		if err := tx.UpdateScore(ctx, &locked); err != nil {
			return err
		}

		locked.Overrides = withOverride(locked.Overrides, locked.ID, questionID, points, grader.ID, gradedAt)
		submission = locked
		changed = true
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrSubmissionNotFound) {
			s.logger.Error().Err(err).Uint("assessment_id", assessmentID).Uint("student_id", studentID).Msg("manual grade failed")
		}
		return dto.ManualGradeResponse{}, err
	}

	if changed {
		metadata := map[string]interface{}{
			"submission_id":  submission.ID,
			"student_id":     studentID,
			"question_id":    questionID,
			"points":         points,
			"marks_obtained": submission.MarksObtained,
		}
		if previous != nil {
			metadata["previous_points"] = *previous
		}
		recordActivity(ctx, s.activity, s.logger, ActivityEntry{
			Actor:      grader,
			Action:     models.ActivityManualGradeApplied,
			EntityType: models.ActivityEntityAssessment,
			EntityID:   &model.ID,
			Metadata:   metadata,
		})

		if err := s.publisher.Publish(ctx, events.Event{
			Type:         events.TypeSubmissionGraded,
			AssessmentID: assessmentID,
			StudentID:    studentID,
			Data: map[string]interface{}{
				"submission_id":  submission.ID,
				"marks_obtained": submission.MarksObtained,
				"passed":         submission.Passed,
			},
		}); err != nil {
			s.logger.Warn().Err(err).Msg("failed to publish grade event")
		}

		s.logger.Info().
			Uint("submission_id", submission.ID).
			Str("question_id", questionID).
			Float64("points", points).
			Float64("marks", submission.MarksObtained).
			Msg("manual grade applied")
	}

	return dto.ManualGradeResponse{
		Submission: dto.NewSubmissionResponse(submission, true),
		Changed:    changed,
	}, nil
}

func (s *gradingService) History(ctx context.Context, assessmentID, studentID uint) ([]dto.GradeHistoryResponse, error) {
	if _, err := loadAssessment(ctx, s.assessments, assessmentID, false); err != nil {
		return nil, err
	}

	submission, err := s.submissions.GetByAssessmentAndStudent(ctx, assessmentID, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubmissionNotFound
		}
		return nil, err
	}

	history, err := s.submissions.ListHistory(ctx, submission.ID)
	if err != nil {
		return nil, err
	}
	return dto.NewGradeHistoryResponseSlice(history), nil
}

func withOverride(overrides []models.SubmissionOverride, submissionID uint, questionID string, points float64, grader uint, gradedAt time.Time) []models.SubmissionOverride {
	updated := append([]models.SubmissionOverride(nil), overrides...)
	for i := range updated {
		if updated[i].QuestionID == questionID {
			updated[i].Points = points
			updated[i].GradedBy = grader
			updated[i].GradedAt = gradedAt
			return updated
		}
	}
	return append(updated, models.SubmissionOverride{
		SubmissionID: submissionID,
		QuestionID:   questionID,
		Points:       points,
		GradedBy:     grader,
		GradedAt:     gradedAt,
	})
}
