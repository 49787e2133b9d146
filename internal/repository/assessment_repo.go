package repository

import (
	"context"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-assessment-api/internal/models"
)

// AssessmentFilter narrows authoring listings.
type AssessmentFilter struct {
	CourseID *uint
	BatchID  *uint
	Page     int
	PageSize int
}

// AssessmentRepository defines persistence operations for assessments.
type AssessmentRepository interface {
	List(ctx context.Context, filter AssessmentFilter) ([]models.Assessment, int64, error)
	ListCandidates(ctx context.Context, studentID uint, batchIDs []uint) ([]models.Assessment, error)
	GetByID(ctx context.Context, id uint, withQuestions bool) (models.Assessment, error)
	QuestionCounts(ctx context.Context, assessmentIDs []uint) (map[uint]int, error)
	Create(ctx context.Context, assessment *models.Assessment) error
	AppendQuestions(ctx context.Context, assessmentID uint, questions []models.AssessmentQuestion, totalMarks int) error
}

type assessmentRepository struct {
	db *gorm.DB
}

// NewAssessmentRepository instantiates a GORM-backed repository.
func NewAssessmentRepository(db *gorm.DB) AssessmentRepository {
	return &assessmentRepository{db: db}
}

func (r *assessmentRepository) List(ctx context.Context, filter AssessmentFilter) ([]models.Assessment, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Assessment{})

	if filter.CourseID != nil {
		query = query.Where("course_id = ?", *filter.CourseID)
	}

	if filter.BatchID != nil {
		query = query.Where("batch_id = ?", *filter.BatchID)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		query = query.Offset((page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	var assessments []models.Assessment
	if err := query.Order("created_at DESC").Order("id DESC").Find(&assessments).Error; err != nil {
		return nil, 0, err
	}

	return assessments, total, nil
}

// ListCandidates returns the assessments of the given batches plus those
// assigned to studentID by name. Audience checks still apply to the result.
func (r *assessmentRepository) ListCandidates(ctx context.Context, studentID uint, batchIDs []uint) ([]models.Assessment, error) {
	named := r.db.Where("assigned_to = ?", "specific_students").Where(r.assignedTo(studentID))

	query := r.db.WithContext(ctx).Model(&models.Assessment{})
	if len(batchIDs) > 0 {
		query = query.Where("batch_id IN ?", batchIDs).Or(named)
	} else {
		query = query.Where(named)
	}

	var assessments []models.Assessment
	if err := query.Order("due_date ASC").Order("id ASC").Find(&assessments).Error; err != nil {
		return nil, err
	}

	return assessments, nil
}

// assignedTo matches rows whose assigned_student_ids array holds studentID.
func (r *assessmentRepository) assignedTo(studentID uint) clause.Expression {
	if r.db.Dialector.Name() == "postgres" {
		return gorm.Expr("assigned_student_ids::jsonb @> ?::jsonb", fmt.Sprintf("[%d]", studentID))
	}
	return datatypes.JSONArrayQuery("assigned_student_ids").Contains(studentID)
}

func (r *assessmentRepository) GetByID(ctx context.Context, id uint, withQuestions bool) (models.Assessment, error) {
	query := r.db.WithContext(ctx)
	if withQuestions {
		query = query.Preload("Questions", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("position ASC")
		})
	}

	var assessment models.Assessment
	if err := query.First(&assessment, id).Error; err != nil {
		return models.Assessment{}, err
	}

	return assessment, nil
}

func (r *assessmentRepository) QuestionCounts(ctx context.Context, assessmentIDs []uint) (map[uint]int, error) {
	counts := make(map[uint]int, len(assessmentIDs))
	if len(assessmentIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		AssessmentID uint
		Total        int
	}
	if err := r.db.WithContext(ctx).Model(&models.AssessmentQuestion{}).
		Select("assessment_id, COUNT(*) AS total").
		Where("assessment_id IN ?", assessmentIDs).
		Group("assessment_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	for _, row := range rows {
		counts[row.AssessmentID] = row.Total
	}
	return counts, nil
}

func (r *assessmentRepository) Create(ctx context.Context, assessment *models.Assessment) error {
	return r.db.WithContext(ctx).Create(assessment).Error
}

// AppendQuestions stores imported questions and the new total. It refuses
// once any submission exists so recorded scores keep matching their questions.
func (r *assessmentRepository) AppendQuestions(ctx context.Context, assessmentID uint, questions []models.AssessmentQuestion, totalMarks int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var assessment models.Assessment
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&assessment, assessmentID).Error; err != nil {
			return err
		}

		var submissions int64
		if err := tx.Model(&models.Submission{}).Where("assessment_id = ?", assessmentID).Count(&submissions).Error; err != nil {
			return err
		}
		if submissions > 0 {
			return ErrHasSubmissions
		}

		for i := range questions {
			questions[i].AssessmentID = assessmentID
		}
		if err := tx.Create(&questions).Error; err != nil {
			if isDuplicateKey(err) {
				return ErrDuplicate
			}
			return err
		}

		return tx.Model(&models.Assessment{}).Where("id = ?", assessmentID).Update("total_marks", totalMarks).Error
	})
}
