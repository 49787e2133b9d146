package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-assessment-api/internal/assessment"
	"github.com/noah-isme/gema-assessment-api/internal/dto"
	"github.com/noah-isme/gema-assessment-api/internal/events"
	"github.com/noah-isme/gema-assessment-api/internal/models"
)

func submittedQuiz(t *testing.T, fx serviceFixture) dto.AssessmentResponse {
	t.Helper()
	fx.enroll(t, 2, 7)
	created := fx.publish(t, nil)
	_, err := fx.submissionService(SubmissionConfig{}).Submit(context.Background(), created.ID, 7, dto.SubmitRequest{Responses: sampleResponses()})
	require.NoError(t, err)
	return created
}

func TestGradingServiceOverrideIsIdempotent(t *testing.T) {
	fx := newServiceFixture(t)
	created := submittedQuiz(t, fx)
	svc := NewGradingService(fx.assessments, fx.submissions, fx.activity, fx.publisher, testValidator(), testLogger())
	grader := Actor{ID: 1, Role: "teacher"}

	first, err := svc.ApplyManualGrade(context.Background(), created.ID, 7, "q-sa", grader, dto.GradeRequest{Points: ptrFloat(4)})
	require.NoError(t, err)
	require.True(t, first.Changed)
	require.Equal(t, 14.0, first.Submission.MarksObtained)
	require.Equal(t, 0, first.Submission.PendingReviewCount)
	require.Equal(t, models.SubmissionStatusManuallyReviewed, first.Submission.Status)
	require.Equal(t, map[string]float64{"q-sa": 4}, first.Submission.ManualOverrides)
	require.True(t, first.Submission.Results[2].ManuallyGraded)
	require.Equal(t, 4.0, first.Submission.Results[2].Awarded)
	require.Equal(t, 10.0, *first.Submission.AutoMarks)

	repeat, err := svc.ApplyManualGrade(context.Background(), created.ID, 7, "q-sa", grader, dto.GradeRequest{Points: ptrFloat(4)})
	require.NoError(t, err)
	require.False(t, repeat.Changed)
	require.Equal(t, 14.0, repeat.Submission.MarksObtained)

	history, err := svc.History(context.Background(), created.ID, 7)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Nil(t, history[0].PreviousPoints)

	lowered, err := svc.ApplyManualGrade(context.Background(), created.ID, 7, "q-sa", grader, dto.GradeRequest{Points: ptrFloat(0)})
	require.NoError(t, err)
	require.True(t, lowered.Changed)
	require.Equal(t, 10.0, lowered.Submission.MarksObtained)

	history, err = svc.History(context.Background(), created.ID, 7)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, 0.0, history[0].Points)
	require.Equal(t, 4.0, *history[0].PreviousPoints)

	stored, err := fx.submissions.GetByAssessmentAndStudent(context.Background(), created.ID, 7)
	require.NoError(t, err)
	require.Equal(t, 10.0, stored.MarksObtained)
	require.Equal(t, 10.0, stored.AutoMarks)
	require.Len(t, stored.Overrides, 1)

	var graded int64
	require.NoError(t, fx.db.Model(&models.ActivityLog{}).Where("action = ?", models.ActivityManualGradeApplied).Count(&graded).Error)
	require.Equal(t, int64(2), graded)
	require.Contains(t, fx.publisher.types(), events.TypeSubmissionGraded)
}

func TestGradingServiceRejectsInvalidOverrides(t *testing.T) {
	fx := newServiceFixture(t)
	created := submittedQuiz(t, fx)
	svc := NewGradingService(fx.assessments, fx.submissions, nil, nil, testValidator(), testLogger())
	grader := Actor{ID: 1, Role: "teacher"}
	ctx := context.Background()

	_, err := svc.ApplyManualGrade(ctx, created.ID, 7, "q-sa", grader, dto.GradeRequest{Points: ptrFloat(6)})
	require.ErrorIs(t, err, assessment.ErrOutOfRange)

	_, err = svc.ApplyManualGrade(ctx, created.ID, 7, "q-sa", grader, dto.GradeRequest{Points: ptrFloat(-1)})
	require.ErrorIs(t, err, assessment.ErrOutOfRange)

	_, err = svc.ApplyManualGrade(ctx, created.ID, 7, "q-mc", grader, dto.GradeRequest{Points: ptrFloat(10)})
	require.ErrorIs(t, err, assessment.ErrOutOfRange)

	_, err = svc.ApplyManualGrade(ctx, created.ID, 7, "missing", grader, dto.GradeRequest{Points: ptrFloat(1)})
	require.ErrorIs(t, err, assessment.ErrQuestionNotFound)

	_, err = svc.ApplyManualGrade(ctx, created.ID, 8, "q-sa", grader, dto.GradeRequest{Points: ptrFloat(1)})
	require.ErrorIs(t, err, ErrSubmissionNotFound)

	_, err = svc.ApplyManualGrade(ctx, 999, 7, "q-sa", grader, dto.GradeRequest{Points: ptrFloat(1)})
	require.ErrorIs(t, err, ErrAssessmentNotFound)

	_, err = svc.ApplyManualGrade(ctx, created.ID, 7, "q-sa", grader, dto.GradeRequest{})
	require.Error(t, err)

	stored, err := fx.submissions.GetByAssessmentAndStudent(ctx, created.ID, 7)
	require.NoError(t, err)
	require.Equal(t, 10.0, stored.MarksObtained)
	require.Empty(t, stored.Overrides)
}
