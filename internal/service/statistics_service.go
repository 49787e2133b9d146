package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-assessment-api/internal/assessment"
	"github.com/noah-isme/gema-assessment-api/internal/dto"
	"github.com/noah-isme/gema-assessment-api/internal/repository"
)

// StatisticsService derives class-level results of an assessment.
type StatisticsService interface {
	ForAssessment(ctx context.Context, assessmentID uint) (dto.AssessmentStatisticsResponse, error)
}

type statisticsService struct {
	assessments repository.AssessmentRepository
	submissions repository.SubmissionRepository
	guard       audienceGuard
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewStatisticsService constructs the statistics service. Reports are
// recomputed from every submission on each call.
func NewStatisticsService(assessments repository.AssessmentRepository, submissions repository.SubmissionRepository, roster repository.RosterRepository, logger zerolog.Logger) StatisticsService {
	return &statisticsService{
		assessments: assessments,
		submissions: submissions,
		guard:       audienceGuard{roster: roster},
		logger:      logger.With().Str("component", "statistics_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/gema-assessment-api/internal/service/statistics"),
		now:         time.Now,
	}
}

func (s *statisticsService) ForAssessment(ctx context.Context, assessmentID uint) (dto.AssessmentStatisticsResponse, error) {
	ctx, span := s.tracer.Start(ctx, "statistics.assessment", trace.WithAttributes(attribute.Int("assessment.id", int(assessmentID))))
	defer span.End()

	model, err := loadAssessment(ctx, s.assessments, assessmentID, false)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "assessment lookup failed")
		return dto.AssessmentStatisticsResponse{}, err
	}

	submissions, err := s.submissions.ListByAssessment(ctx, assessmentID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submission lookup failed")
		return dto.AssessmentStatisticsResponse{}, err
	}

	rosterSize, err := s.guard.rosterSize(ctx, model)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "roster lookup failed")
		return dto.AssessmentStatisticsResponse{}, err
	}

	records := make([]assessment.ScoreRecord, 0, len(submissions))
	for _, submission := range submissions {
		records = append(records, submission.ScoreRecord())
	}

	report := assessment.Aggregate(records, rosterSize)
	span.SetAttributes(
		attribute.Int("statistics.submitted", report.SubmittedCount),
		attribute.Int("statistics.roster", report.RosterSize),
	)

	s.logger.Debug().Uint("assessment_id", assessmentID).Int("submitted", report.SubmittedCount).Msg("statistics computed")

	return dto.AssessmentStatisticsResponse{
		AssessmentID: assessmentID,
		TotalMarks:   model.TotalMarks,
		Report:       report,
		GeneratedAt:  s.now().UTC(),
	}, nil
}
