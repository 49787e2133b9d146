package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-assessment-api/internal/models"
)

// RosterRepository answers batch membership questions.
type RosterRepository interface {
	IsMember(ctx context.Context, batchID, studentID uint) (bool, error)
	CountMembers(ctx context.Context, batchID uint) (int64, error)
	BatchesForStudent(ctx context.Context, studentID uint) ([]uint, error)
	AddMember(ctx context.Context, batchID, studentID uint) error
}

type rosterRepository struct {
	db *gorm.DB
}

// NewRosterRepository constructs the roster repository.
func NewRosterRepository(db *gorm.DB) RosterRepository {
	return &rosterRepository{db: db}
}

func (r *rosterRepository) IsMember(ctx context.Context, batchID, studentID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.BatchMember{}).
		Where("batch_id = ? AND student_id = ?", batchID, studentID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *rosterRepository) CountMembers(ctx context.Context, batchID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.BatchMember{}).
		Where("batch_id = ?", batchID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *rosterRepository) BatchesForStudent(ctx context.Context, studentID uint) ([]uint, error) {
	var batchIDs []uint
	if err := r.db.WithContext(ctx).Model(&models.BatchMember{}).
		Where("student_id = ?", studentID).
		Order("batch_id ASC").
		Pluck("batch_id", &batchIDs).Error; err != nil {
		return nil, err
	}
	return batchIDs, nil
}

func (r *rosterRepository) AddMember(ctx context.Context, batchID, studentID uint) error {
	member := models.BatchMember{BatchID: batchID, StudentID: studentID}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&member).Error
}
