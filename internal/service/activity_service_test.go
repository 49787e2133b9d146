package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-assessment-api/internal/dto"
	"github.com/noah-isme/gema-assessment-api/internal/models"
	"github.com/noah-isme/gema-assessment-api/internal/repository"
)

type memoryActivityRepo struct {
	entries []models.ActivityLog
	filter  repository.ActivityLogFilter
}

func (m *memoryActivityRepo) Create(ctx context.Context, entry *models.ActivityLog) error {
	entry.ID = uint(len(m.entries) + 1)
	entry.CreatedAt = time.Now()
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *memoryActivityRepo) List(ctx context.Context, filter repository.ActivityLogFilter) ([]models.ActivityLog, int64, error) {
	m.filter = filter
	return append([]models.ActivityLog(nil), m.entries...), int64(len(m.entries)), nil
}

func TestActivityServiceRecordMasksEmail(t *testing.T) {
	repo := &memoryActivityRepo{}
	svc := NewActivityService(repo, testValidator(), testLogger())

	err := svc.Record(context.Background(), ActivityEntry{
		Actor:      Actor{ID: 1, Role: "Teacher"},
		Action:     "Assessment.Created",
		EntityType: models.ActivityEntityAssessment,
		EntityID:   ptrUint(5),
		Metadata: map[string]interface{}{
			"email": "teacher@example.com",
			"title": "Loops",
		},
	})
	require.NoError(t, err)
	require.Len(t, repo.entries, 1)

	entry := repo.entries[0]
	require.Equal(t, "***", entry.Metadata["email"])
	require.Equal(t, "Loops", entry.Metadata["title"])
	require.Equal(t, "teacher", entry.ActorRole)
	require.Equal(t, models.ActivityAssessmentCreated, entry.Action)
}

func TestActivityServiceRecordRequiresAction(t *testing.T) {
	repo := &memoryActivityRepo{}
	svc := NewActivityService(repo, testValidator(), testLogger())

	err := svc.Record(context.Background(), ActivityEntry{EntityType: models.ActivityEntityAssessment})
	require.Error(t, err)
	require.Empty(t, repo.entries)
}

func TestActivityServiceListScopesToAssessment(t *testing.T) {
	repo := &memoryActivityRepo{}
	svc := NewActivityService(repo, testValidator(), testLogger())
	require.NoError(t, svc.Record(context.Background(), ActivityEntry{
		Action:     models.ActivitySubmissionCreated,
		EntityType: models.ActivityEntityAssessment,
		EntityID:   ptrUint(3),
	}))

	resp, err := svc.ListForAssessment(context.Background(), 3, dto.ActivityListRequest{Action: " Submission.Created ", Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, resp.Items, 1)
	require.Equal(t, "system", resp.Items[0].ActorRole)
	require.Equal(t, models.ActivityEntityAssessment, repo.filter.EntityType)
	require.Equal(t, uint(3), *repo.filter.EntityID)
	require.Equal(t, models.ActivitySubmissionCreated, repo.filter.Action)

	_, err = svc.ListForAssessment(context.Background(), 3, dto.ActivityListRequest{PageSize: 500})
	require.Error(t, err)
}
