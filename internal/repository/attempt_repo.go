package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-assessment-api/internal/models"
)

// AttemptRepository stores attempt start times durably.
type AttemptRepository interface {
	Begin(ctx context.Context, assessmentID, studentID uint, at time.Time) (time.Time, error)
	StartedAt(ctx context.Context, assessmentID, studentID uint) (*time.Time, error)
}

type attemptRepository struct {
	db *gorm.DB
}

// NewAttemptRepository constructs the attempt repository.
func NewAttemptRepository(db *gorm.DB) AttemptRepository {
	return &attemptRepository{db: db}
}

// Begin inserts the start if none exists and returns the stored value, so
// concurrent callers agree on the first start.
func (r *attemptRepository) Begin(ctx context.Context, assessmentID, studentID uint, at time.Time) (time.Time, error) {
	row := models.AttemptStart{AssessmentID: assessmentID, StudentID: studentID, StartedAt: at.UTC()}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
		return time.Time{}, err
	}

	started, err := r.StartedAt(ctx, assessmentID, studentID)
	if err != nil {
		return time.Time{}, err
	}
	if started == nil {
		return time.Time{}, gorm.ErrRecordNotFound
	}
	return *started, nil
}

func (r *attemptRepository) StartedAt(ctx context.Context, assessmentID, studentID uint) (*time.Time, error) {
	var row models.AttemptStart
	err := r.db.WithContext(ctx).
		Where("assessment_id = ? AND student_id = ?", assessmentID, studentID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	started := row.StartedAt.UTC()
	return &started, nil
}
