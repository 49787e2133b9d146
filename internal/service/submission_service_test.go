package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-assessment-api/internal/assessment"
	"github.com/noah-isme/gema-assessment-api/internal/dto"
	"github.com/noah-isme/gema-assessment-api/internal/events"
	"github.com/noah-isme/gema-assessment-api/internal/models"
	"github.com/noah-isme/gema-assessment-api/internal/repository"
)

func sampleResponses() assessment.Responses {
	return assessment.Responses{
		"q-mc": assessment.IndexAnswer(1),
		"q-tf": assessment.IndexAnswer(1),
		"q-sa": assessment.TextAnswer("they are cheap threads"),
	}
}

func TestSubmissionServiceGradesAndHidesResults(t *testing.T) {
	fx := newServiceFixture(t)
	fx.enroll(t, 2, 7)
	created := fx.publish(t, nil)
	svc := fx.submissionService(SubmissionConfig{})

	resp, err := svc.Submit(context.Background(), created.ID, 7, dto.SubmitRequest{Responses: sampleResponses()})
	require.NoError(t, err)
	require.Equal(t, 10.0, resp.MarksObtained)
	require.Equal(t, 20, resp.TotalMarks)
	require.Equal(t, 50.0, resp.ScorePercent)
	require.True(t, resp.Passed)
	require.True(t, resp.RequiresManualReview)
	require.Equal(t, 1, resp.PendingReviewCount)
	require.Equal(t, models.SubmissionStatusSubmitted, resp.Status)
	require.False(t, resp.Late)
	require.False(t, resp.ResultsVisible)
	require.Nil(t, resp.Results)
	require.Nil(t, resp.AutoMarks)
	require.Contains(t, fx.publisher.types(), events.TypeSubmissionCreated)

	mine, err := svc.MySubmission(context.Background(), created.ID, 7)
	require.NoError(t, err)
	require.Equal(t, resp.ID, mine.ID)
	require.Equal(t, 10.0, mine.MarksObtained)
	text, ok := mine.Responses["q-sa"].Text()
	require.True(t, ok)
	require.Equal(t, "they are cheap threads", text)

	staffView, err := svc.ListForAssessment(context.Background(), created.ID)
	require.NoError(t, err)
	require.Len(t, staffView, 1)
	require.True(t, staffView[0].ResultsVisible)
	require.Len(t, staffView[0].Results, 3)
}

func TestSubmissionServiceShowsResultsWhenConfigured(t *testing.T) {
	fx := newServiceFixture(t)
	fx.enroll(t, 2, 7)
	created := fx.publish(t, func(req *dto.AssessmentCreateRequest) {
		req.ShowResultsImmediately = true
	})
	svc := fx.submissionService(SubmissionConfig{})

	resp, err := svc.Submit(context.Background(), created.ID, 7, dto.SubmitRequest{Responses: assessment.Responses{
		"q-mc": assessment.IndexAnswer(1),
		"q-tf": assessment.IndexAnswer(0),
	}})
	require.NoError(t, err)
	require.True(t, resp.ResultsVisible)
	require.Equal(t, 15.0, *resp.AutoMarks)
	require.Len(t, resp.Results, 3)
	require.True(t, *resp.Results[0].Correct)
	require.False(t, resp.Results[2].Answered)
	require.True(t, resp.Results[2].PendingManualReview)
}

func TestSubmissionServiceAllowsOneSubmission(t *testing.T) {
	fx := newServiceFixture(t)
	fx.enroll(t, 2, 7)
	created := fx.publish(t, nil)
	svc := fx.submissionService(SubmissionConfig{})

	_, err := svc.Submit(context.Background(), created.ID, 7, dto.SubmitRequest{Responses: sampleResponses()})
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), created.ID, 7, dto.SubmitRequest{Responses: assessment.Responses{}})
	require.ErrorIs(t, err, ErrAlreadySubmitted)

	_, err = svc.Start(context.Background(), created.ID, 7)
	require.ErrorIs(t, err, ErrAlreadySubmitted)

	var count int64
	require.NoError(t, fx.db.Model(&models.Submission{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestSubmissionServiceRejectsUnknownQuestion(t *testing.T) {
	fx := newServiceFixture(t)
	fx.enroll(t, 2, 7)
	created := fx.publish(t, nil)
	svc := fx.submissionService(SubmissionConfig{})

	_, err := svc.Submit(context.Background(), created.ID, 7, dto.SubmitRequest{Responses: assessment.Responses{
		"q-mc":  assessment.IndexAnswer(1),
		"q-zzz": assessment.IndexAnswer(0),
	}})
	require.ErrorIs(t, err, assessment.ErrValidation)
	var validationErr *assessment.ValidationError
	require.True(t, errors.As(err, &validationErr))
	require.Equal(t, "responses.q-zzz", validationErr.Field)

	_, err = svc.MySubmission(context.Background(), created.ID, 7)
	require.ErrorIs(t, err, ErrSubmissionNotFound)
}

func TestSubmissionServiceDeniesUnassignedStudent(t *testing.T) {
	fx := newServiceFixture(t)
	created := fx.publish(t, nil)
	svc := fx.submissionService(SubmissionConfig{})

	_, err := svc.Submit(context.Background(), created.ID, 8, dto.SubmitRequest{Responses: sampleResponses()})
	require.ErrorIs(t, err, ErrNotAssigned)

	_, err = svc.Start(context.Background(), created.ID, 8)
	require.ErrorIs(t, err, ErrNotAssigned)

	_, err = svc.Submit(context.Background(), 999, 8, dto.SubmitRequest{Responses: sampleResponses()})
	require.ErrorIs(t, err, ErrAssessmentNotFound)
}

func TestSubmissionServiceTimeLimit(t *testing.T) {
	started := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

	run := func(t *testing.T, config SubmissionConfig) (dto.AttemptResponse, dto.SubmissionResponse, error) {
		fx := newServiceFixture(t)
		fx.enroll(t, 2, 7)
		created := fx.publish(t, func(req *dto.AssessmentCreateRequest) {
			req.TimeLimitMinutes = 30
		})

		fx.clock.now = func() time.Time { return started }
		svc := fx.submissionService(config)
		svc.now = func() time.Time { return started.Add(45 * time.Minute) }

		attempt, err := svc.Start(context.Background(), created.ID, 7)
		require.NoError(t, err)

		resp, err := svc.Submit(context.Background(), created.ID, 7, dto.SubmitRequest{Responses: sampleResponses()})
		return attempt, resp, err
	}

	t.Run("flag", func(t *testing.T) {
		attempt, resp, err := run(t, SubmissionConfig{})
		require.NoError(t, err)
		require.True(t, started.Equal(attempt.StartedAt))
		require.True(t, started.Add(30*time.Minute).Equal(*attempt.Deadline))
		require.True(t, resp.Late)
		require.True(t, started.Equal(*resp.StartedAt))
	})

	t.Run("reject", func(t *testing.T) {
		_, _, err := run(t, SubmissionConfig{RejectLate: true})
		require.ErrorIs(t, err, ErrLateSubmission)
	})
}

func TestSubmissionServiceStartIsIdempotent(t *testing.T) {
	fx := newServiceFixture(t)
	fx.enroll(t, 2, 7)
	created := fx.publish(t, nil)
	svc := fx.submissionService(SubmissionConfig{})

	first, err := svc.Start(context.Background(), created.ID, 7)
	require.NoError(t, err)
	require.Nil(t, first.Deadline)

	second, err := svc.Start(context.Background(), created.ID, 7)
	require.NoError(t, err)
	require.True(t, first.StartedAt.Equal(second.StartedAt))
}

func TestSubmissionServiceTimedWithoutStartIsLate(t *testing.T) {
	opened := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

	run := func(t *testing.T, config SubmissionConfig) (dto.SubmissionResponse, error) {
		fx := newServiceFixture(t)
		fx.enroll(t, 2, 7)
		created := fx.publish(t, func(req *dto.AssessmentCreateRequest) {
			req.TimeLimitMinutes = 10
		})

		svc := fx.submissionService(config)
		svc.now = func() time.Time { return opened }
		return svc.Submit(context.Background(), created.ID, 7, dto.SubmitRequest{Responses: sampleResponses()})
	}

	t.Run("reject", func(t *testing.T) {
		_, err := run(t, SubmissionConfig{RejectLate: true})
		require.ErrorIs(t, err, ErrLateSubmission)
	})

	t.Run("flag", func(t *testing.T) {
		resp, err := run(t, SubmissionConfig{})
		require.NoError(t, err)
		require.True(t, resp.Late)
		require.Nil(t, resp.StartedAt)
	})
}

func TestSubmissionServiceStartOutlivesRedisExpiry(t *testing.T) {
	started := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

	mini := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	fx := newServiceFixture(t)
	fx.enroll(t, 2, 7, 8)
	created := fx.publish(t, func(req *dto.AssessmentCreateRequest) {
		req.TimeLimitMinutes = 10
	})
	fx.clock.now = func() time.Time { return started }

	svc := fx.submissionService(SubmissionConfig{RejectLate: true, AttemptGrace: time.Minute})
	svc.clock = NewRedisAttemptClock(client, fx.clock)

	for _, studentID := range []uint{7, 8} {
		_, err := svc.Start(context.Background(), created.ID, studentID)
		require.NoError(t, err)
	}
	mini.FastForward(2 * time.Hour)
	require.False(t, mini.Exists(attemptKey(created.ID, 7)))

	svc.now = func() time.Time { return started.Add(2 * time.Hour) }
	_, err := svc.Submit(context.Background(), created.ID, 7, dto.SubmitRequest{Responses: sampleResponses()})
	require.ErrorIs(t, err, ErrLateSubmission)

	svc.config.RejectLate = false
	resp, err := svc.Submit(context.Background(), created.ID, 8, dto.SubmitRequest{Responses: sampleResponses()})
	require.NoError(t, err)
	require.True(t, resp.Late)
	require.True(t, started.Equal(*resp.StartedAt))
}

func TestStudentOpeningTimedAssessmentStartsAttempt(t *testing.T) {
	opened := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

	fx := newServiceFixture(t)
	fx.enroll(t, 2, 7)
	created := fx.publish(t, func(req *dto.AssessmentCreateRequest) {
		req.TimeLimitMinutes = 10
	})
	fx.clock.now = func() time.Time { return opened }

	_, err := fx.assessmentService().GetFull(context.Background(), created.ID, Actor{ID: 1, Role: "teacher"})
	require.NoError(t, err)
	none, err := fx.clock.StartedAt(context.Background(), created.ID, 1)
	require.NoError(t, err)
	require.Nil(t, none)

	_, err = fx.assessmentService().GetFull(context.Background(), created.ID, Actor{ID: 7, Role: "student"})
	require.NoError(t, err)

	svc := fx.submissionService(SubmissionConfig{RejectLate: true})
	svc.now = func() time.Time { return opened.Add(5 * time.Minute) }
	resp, err := svc.Submit(context.Background(), created.ID, 7, dto.SubmitRequest{Responses: sampleResponses()})
	require.NoError(t, err)
	require.False(t, resp.Late)
	require.True(t, opened.Equal(*resp.StartedAt))
}

// blindSubmissions never sees an existing submission, so only the unique
// index can stop a second insert.
type blindSubmissions struct {
	repository.SubmissionRepository
}

func (blindSubmissions) GetByAssessmentAndStudent(context.Context, uint, uint) (models.Submission, error) {
	return models.Submission{}, gorm.ErrRecordNotFound
}

func TestSubmissionServiceMapsStorageDuplicate(t *testing.T) {
	fx := newServiceFixture(t)
	fx.enroll(t, 2, 7)
	created := fx.publish(t, nil)
	svc := fx.submissionService(SubmissionConfig{})
	svc.submissions = blindSubmissions{SubmissionRepository: fx.submissions}

	first, err := svc.Submit(context.Background(), created.ID, 7, dto.SubmitRequest{Responses: sampleResponses()})
	require.NoError(t, err)
	require.Equal(t, 10.0, first.MarksObtained)

	_, err = svc.Submit(context.Background(), created.ID, 7, dto.SubmitRequest{Responses: assessment.Responses{
		"q-mc": assessment.IndexAnswer(1),
		"q-tf": assessment.IndexAnswer(0),
	}})
	require.ErrorIs(t, err, ErrAlreadySubmitted)

	stored, err := fx.submissions.GetByAssessmentAndStudent(context.Background(), created.ID, 7)
	require.NoError(t, err)
	require.Equal(t, first.ID, stored.ID)
	require.Equal(t, 10.0, stored.MarksObtained)
	require.Equal(t, 10.0, stored.AutoMarks)

	var count int64
	require.NoError(t, fx.db.Model(&models.Submission{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

// staleAssessments serves a copy of the assessment read before questions
// were appended.
type staleAssessments struct {
	repository.AssessmentRepository
	snapshot models.Assessment
}

func (r staleAssessments) GetByID(context.Context, uint, bool) (models.Assessment, error) {
	return r.snapshot, nil
}

func TestSubmissionServiceRejectsGradingAgainstChangedAssessment(t *testing.T) {
	fx := newServiceFixture(t)
	fx.enroll(t, 2, 7)
	created := fx.publish(t, nil)

	snapshot, err := fx.assessments.GetByID(context.Background(), created.ID, true)
	require.NoError(t, err)

	_, err = fx.assessmentService().AppendQuestions(context.Background(), created.ID, Actor{ID: 1, Role: "teacher"}, dto.AppendQuestionsRequest{
		Questions: []dto.QuestionRequest{
			{Type: "true_false", Text: "Slices are reference types.", Points: 5, CorrectOptionIndex: ptrInt(0)},
		},
	})
	require.NoError(t, err)

	svc := fx.submissionService(SubmissionConfig{})
	svc.assessments = staleAssessments{AssessmentRepository: fx.assessments, snapshot: snapshot}

	_, err = svc.Submit(context.Background(), created.ID, 7, dto.SubmitRequest{Responses: sampleResponses()})
	require.ErrorIs(t, err, ErrAssessmentChanged)

	_, err = fx.submissions.GetByAssessmentAndStudent(context.Background(), created.ID, 7)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
