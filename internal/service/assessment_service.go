package service

import (
	"context"
	"errors"
	"html"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-assessment-api/internal/assessment"
	"github.com/noah-isme/gema-assessment-api/internal/dto"
	"github.com/noah-isme/gema-assessment-api/internal/events"
	"github.com/noah-isme/gema-assessment-api/internal/models"
	"github.com/noah-isme/gema-assessment-api/internal/repository"
)

// AssessmentService covers authoring and reading of assessments.
type AssessmentService interface {
	Create(ctx context.Context, actor Actor, req dto.AssessmentCreateRequest) (dto.AssessmentResponse, error)
	List(ctx context.Context, req dto.AssessmentListRequest) (dto.AssessmentListResponse, error)
	ListAssigned(ctx context.Context, studentID uint) ([]dto.AssessmentResponse, error)
	Get(ctx context.Context, id uint, viewer Actor) (dto.AssessmentResponse, error)
	GetFull(ctx context.Context, id uint, viewer Actor) (dto.AssessmentResponse, error)
	AppendQuestions(ctx context.Context, id uint, actor Actor, req dto.AppendQuestionsRequest) (dto.AssessmentResponse, error)
}

type assessmentService struct {
	repo      repository.AssessmentRepository
	guard     audienceGuard
	clock     AttemptClock
	activity  ActivityRecorder
	publisher events.Publisher
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
}

// NewAssessmentService constructs the authoring service.
func NewAssessmentService(repo repository.AssessmentRepository, roster repository.RosterRepository, clock AttemptClock, activity ActivityRecorder, publisher events.Publisher, validate *validator.Validate, logger zerolog.Logger) AssessmentService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &assessmentService{
		repo:      repo,
		guard:     audienceGuard{roster: roster},
		clock:     clock,
		activity:  activity,
		publisher: publisher,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "assessment_service").Logger(),
	}
}

func (s *assessmentService) Create(ctx context.Context, actor Actor, req dto.AssessmentCreateRequest) (dto.AssessmentResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.AssessmentResponse{}, err
	}

	questions, err := s.buildQuestions(req.Questions)
	if err != nil {
		return dto.AssessmentResponse{}, err
	}

	actions := []assessment.Action{assessment.SetSettings{Settings: req.Settings()}}
	for _, q := range questions {
		actions = append(actions, assessment.AddQuestion{Question: q})
	}
	draft, err := assessment.ApplyAll(assessment.NewDraft(s.clean(req.Title), req.CourseID, req.BatchID), actions...)
	if err != nil {
		return dto.AssessmentResponse{}, err
	}

	published, err := draft.Publish()
	if err != nil {
		return dto.AssessmentResponse{}, err
	}

	model := models.Assessment{
		Title:      published.Title,
		CourseID:   published.CourseID,
		BatchID:    published.BatchID,
		Type:       models.AssessmentTypeQuiz,
		TotalMarks: published.TotalMarks,
		CreatedBy:  actor.ID,
		Questions:  make([]models.AssessmentQuestion, 0, len(published.Questions)),
	}
	model.ApplySettings(published.Settings)
	for i, q := range published.Questions {
		model.Questions = append(model.Questions, models.NewAssessmentQuestion(q, i))
	}

	if err := s.repo.Create(ctx, &model); err != nil {
		s.logger.Error().Err(err).Uint("course_id", model.CourseID).Msg("failed to persist assessment")
		return dto.AssessmentResponse{}, err
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     models.ActivityAssessmentCreated,
		EntityType: models.ActivityEntityAssessment,
		EntityID:   &model.ID,
		Metadata: map[string]interface{}{
			"title":       model.Title,
			"total_marks": model.TotalMarks,
			"questions":   len(published.Questions),
		},
	})
	s.publish(ctx, events.Event{Type: events.TypeAssessmentCreated, AssessmentID: model.ID, Data: map[string]interface{}{
		"course_id": model.CourseID,
		"batch_id":  model.BatchID,
	}})

	s.logger.Info().Uint("assessment_id", model.ID).Int("total_marks", model.TotalMarks).Msg("assessment published")

	return dto.NewAssessmentDetailResponse(model, published.Questions, true), nil
}

func (s *assessmentService) List(ctx context.Context, req dto.AssessmentListRequest) (dto.AssessmentListResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.AssessmentListResponse{}, err
	}

	filter := repository.AssessmentFilter{Page: req.Page, PageSize: req.PageSize}
	if req.CourseID > 0 {
		filter.CourseID = &req.CourseID
	}
	if req.BatchID > 0 {
		filter.BatchID = &req.BatchID
	}

	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return dto.AssessmentListResponse{}, err
	}

	responses, err := s.summaries(ctx, items)
	if err != nil {
		return dto.AssessmentListResponse{}, err
	}

	return dto.AssessmentListResponse{
		Items:      responses,
		Pagination: dto.NewPaginationMeta(req.Page, req.PageSize, total),
	}, nil
}

func (s *assessmentService) ListAssigned(ctx context.Context, studentID uint) ([]dto.AssessmentResponse, error) {
	batchIDs, err := s.guard.roster.BatchesForStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	inBatch := make(map[uint]bool, len(batchIDs))
	for _, id := range batchIDs {
		inBatch[id] = true
	}

	candidates, err := s.repo.ListCandidates(ctx, studentID, batchIDs)
	if err != nil {
		return nil, err
	}

	visible := make([]models.Assessment, 0, len(candidates))
	for _, candidate := range candidates {
		if candidate.Settings().Audience.IsVisibleTo(studentID, inBatch[candidate.BatchID]) {
			visible = append(visible, candidate)
		}
	}

	responses, err := s.summaries(ctx, visible)
	if err != nil {
		return nil, err
	}
	for i := range responses {
		responses[i].AssignedTo.StudentIDs = nil
	}
	return responses, nil
}

func (s *assessmentService) Get(ctx context.Context, id uint, viewer Actor) (dto.AssessmentResponse, error) {
	model, err := loadAssessment(ctx, s.repo, id, true)
	if err != nil {
		return dto.AssessmentResponse{}, err
	}

	if !viewer.IsStaff() {
		if err := s.guard.ensureVisible(ctx, model, viewer.ID); err != nil {
			return dto.AssessmentResponse{}, err
		}
	}

	response := dto.NewAssessmentResponse(model, len(model.Questions))
	if !viewer.IsStaff() {
		response.AssignedTo.StudentIDs = nil
	}
	return response, nil
}

// GetFull returns the assessment with its questions. Students get the answer
// key stripped and, when shuffling is enabled, their own stable order.
func (s *assessmentService) GetFull(ctx context.Context, id uint, viewer Actor) (dto.AssessmentResponse, error) {
	model, err := loadAssessment(ctx, s.repo, id, true)
	if err != nil {
		return dto.AssessmentResponse{}, err
	}

	questions, err := model.DomainQuestions()
	if err != nil {
		s.logger.Error().Err(err).Uint("assessment_id", id).Msg("stored question is invalid")
		return dto.AssessmentResponse{}, err
	}

	if viewer.IsStaff() {
		return dto.NewAssessmentDetailResponse(model, questions, true), nil
	}

	if err := s.guard.ensureVisible(ctx, model, viewer.ID); err != nil {
		return dto.AssessmentResponse{}, err
	}
	// Opening a timed assessment starts the attempt clock.
	if model.TimeLimitMinutes > 0 {
		if _, err := s.clock.Start(ctx, model.ID, viewer.ID, AttemptTTL(model.TimeLimitMinutes, defaultAttemptGrace)); err != nil {
			s.logger.Error().Err(err).Uint("assessment_id", id).Uint("student_id", viewer.ID).Msg("failed to record attempt start")
			return dto.AssessmentResponse{}, err
		}
	}
	if model.ShuffleQuestions {
		questions = shuffledFor(questions, model.ID, viewer.ID)
	}

	response := dto.NewAssessmentDetailResponse(model, questions, false)
	response.AssignedTo.StudentIDs = nil
	return response, nil
}

// AppendQuestions imports questions into a published assessment. Imported
// questions always receive fresh ids and the total is re-derived.
func (s *assessmentService) AppendQuestions(ctx context.Context, id uint, actor Actor, req dto.AppendQuestionsRequest) (dto.AssessmentResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.AssessmentResponse{}, err
	}

	model, err := loadAssessment(ctx, s.repo, id, true)
	if err != nil {
		return dto.AssessmentResponse{}, err
	}

	existing, err := model.DomainQuestions()
	if err != nil {
		return dto.AssessmentResponse{}, err
	}

	imported, err := s.buildQuestions(req.Questions)
	if err != nil {
		return dto.AssessmentResponse{}, err
	}

	merged, total, err := assessment.AppendQuestions(existing, imported)
	if err != nil {
		return dto.AssessmentResponse{}, err
	}

	rows := make([]models.AssessmentQuestion, 0, len(merged)-len(existing))
	for i := len(existing); i < len(merged); i++ {
		rows = append(rows, models.NewAssessmentQuestion(merged[i], i))
	}

	if err := s.repo.AppendQuestions(ctx, id, rows, total); err != nil {
		switch {
		case errors.Is(err, repository.ErrHasSubmissions):
			return dto.AssessmentResponse{}, ErrAssessmentLocked
		default:
			s.logger.Error().Err(err).Uint("assessment_id", id).Msg("failed to append questions")
			return dto.AssessmentResponse{}, err
		}
	}

	model.TotalMarks = total
	model.Questions = append(model.Questions, rows...)

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     models.ActivityQuestionsAppended,
		EntityType: models.ActivityEntityAssessment,
		EntityID:   &model.ID,
		Metadata: map[string]interface{}{
			"imported":    len(rows),
			"total_marks": total,
		},
	})

	return dto.NewAssessmentDetailResponse(model, merged, true), nil
}

func (s *assessmentService) buildQuestions(requests []dto.QuestionRequest) ([]assessment.Question, error) {
	fields := make([]assessment.Fields, 0, len(requests))
	for _, req := range requests {
		f := req.Fields()
		f.Text = s.clean(f.Text)
		if f.Options != nil {
			options := make([]string, len(f.Options))
			for i, option := range f.Options {
				options[i] = s.clean(option)
			}
			f.Options = options
		}
		fields = append(fields, f)
	}
	return assessment.QuestionsFromFields(fields)
}

func (s *assessmentService) summaries(ctx context.Context, items []models.Assessment) ([]dto.AssessmentResponse, error) {
	ids := make([]uint, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}

	counts, err := s.repo.QuestionCounts(ctx, ids)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.AssessmentResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, dto.NewAssessmentResponse(item, counts[item.ID]))
	}
	return responses, nil
}

// clean strips markup from author text and keeps the plain characters.
func (s *assessmentService) clean(value string) string {
	return strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(value)))
}

func (s *assessmentService) publish(ctx context.Context, event events.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn().Err(err).Str("event_type", event.Type).Msg("failed to publish event")
	}
}
