package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-assessment-api/internal/models"
)

// SubmissionRepository defines data operations for assessment submissions.
type SubmissionRepository interface {
	Create(ctx context.Context, submission *models.Submission) error
	GetByAssessmentAndStudent(ctx context.Context, assessmentID, studentID uint) (models.Submission, error)
	ListByAssessment(ctx context.Context, assessmentID uint) ([]models.Submission, error)
	CountByAssessment(ctx context.Context, assessmentID uint) (int64, error)
	WithinTransaction(ctx context.Context, fn func(repo SubmissionRepository) error) error
	LockByAssessmentAndStudent(ctx context.Context, assessmentID, studentID uint) (models.Submission, error)
	UpsertOverride(ctx context.Context, override *models.SubmissionOverride) error
	UpdateScore(ctx context.Context, submission *models.Submission) error
	CreateHistory(ctx context.Context, history *models.SubmissionGradeHistory) error
	ListHistory(ctx context.Context, submissionID uint) ([]models.SubmissionGradeHistory, error)
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Submission{}).
		Preload("Overrides", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("question_id ASC")
		})
}

// Create inserts the submission. The unique (assessment_id, student_id)
// index makes this an atomic insert-if-absent; collisions return ErrDuplicate.
// The assessment row is share-locked for the insert so it serializes with
// AppendQuestions; a total that no longer matches the graded snapshot
// returns ErrAssessmentChanged.
func (r *submissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var assessment models.Assessment
		if err := tx.Clauses(clause.Locking{Strength: "SHARE"}).
			Select("id", "total_marks").
			First(&assessment, submission.AssessmentID).Error; err != nil {
			return err
		}
		if assessment.TotalMarks != submission.TotalMarks {
			return ErrAssessmentChanged
		}

		if err := tx.Omit("Overrides").Create(submission).Error; err != nil {
			if isDuplicateKey(err) {
				return fmt.Errorf("%w: %v", ErrDuplicate, err)
			}
			return err
		}
		return nil
	})
}

func (r *submissionRepository) GetByAssessmentAndStudent(ctx context.Context, assessmentID, studentID uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.baseQuery(ctx).
		Where("assessment_id = ?", assessmentID).
		Where("student_id = ?", studentID).
		First(&submission).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) ListByAssessment(ctx context.Context, assessmentID uint) ([]models.Submission, error) {
	var submissions []models.Submission
	if err := r.baseQuery(ctx).
		Where("assessment_id = ?", assessmentID).
		Order("submitted_at ASC").
		Order("id ASC").
		Find(&submissions).Error; err != nil {
		return nil, err
	}

	return submissions, nil
}

func (r *submissionRepository) CountByAssessment(ctx context.Context, assessmentID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Submission{}).
		Where("assessment_id = ?", assessmentID).
		Count(&count).Error; err != nil {
		return 0, err
	}

	return count, nil
}

func (r *submissionRepository) WithinTransaction(ctx context.Context, fn func(repo SubmissionRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&submissionRepository{db: tx})
	})
}

// LockByAssessmentAndStudent loads the submission with a row lock so manual
// grades on one submission are applied one at a time. SQLite ignores the lock.
func (r *submissionRepository) LockByAssessmentAndStudent(ctx context.Context, assessmentID, studentID uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("assessment_id = ?", assessmentID).
		Where("student_id = ?", studentID).
		First(&submission).Error; err != nil {
		return models.Submission{}, err
	}

	var overrides []models.SubmissionOverride
	if err := r.db.WithContext(ctx).
		Where("submission_id = ?", submission.ID).
		Order("question_id ASC").
		Find(&overrides).Error; err != nil {
		return models.Submission{}, err
	}
	submission.Overrides = overrides

	return submission, nil
}

func (r *submissionRepository) UpsertOverride(ctx context.Context, override *models.SubmissionOverride) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "submission_id"}, {Name: "question_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"points", "graded_by", "graded_at"}),
	}).Create(override).Error
}

func (r *submissionRepository) UpdateScore(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Model(&models.Submission{ID: submission.ID}).
		Select("marks_obtained", "passed", "pending_review_count", "status", "updated_at").
		Updates(submission).Error
}

func (r *submissionRepository) CreateHistory(ctx context.Context, history *models.SubmissionGradeHistory) error {
	return r.db.WithContext(ctx).Create(history).Error
}

func (r *submissionRepository) ListHistory(ctx context.Context, submissionID uint) ([]models.SubmissionGradeHistory, error) {
	var history []models.SubmissionGradeHistory
	if err := r.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Order("graded_at DESC").
		Order("id DESC").
		Find(&history).Error; err != nil {
		return nil, err
	}

	return history, nil
}
