package service

import (
	"context"
	"errors"
	"hash/fnv"
	"math/rand"
	"strconv"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-assessment-api/internal/assessment"
	"github.com/noah-isme/gema-assessment-api/internal/models"
	"github.com/noah-isme/gema-assessment-api/internal/repository"
)

// audienceGuard decides whether a student may see an assessment.
type audienceGuard struct {
	roster repository.RosterRepository
}

func (g audienceGuard) visible(ctx context.Context, model models.Assessment, studentID uint) (bool, error) {
	settings := model.Settings()
	member := false
	if settings.Audience.Mode == assessment.AudienceEntireBatch {
		var err error
		if member, err = g.roster.IsMember(ctx, model.BatchID, studentID); err != nil {
			return false, err
		}
	}
	return settings.Audience.IsVisibleTo(studentID, member), nil
}

func (g audienceGuard) ensureVisible(ctx context.Context, model models.Assessment, studentID uint) error {
	ok, err := g.visible(ctx, model, studentID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotAssigned
	}
	return nil
}

func (g audienceGuard) rosterSize(ctx context.Context, model models.Assessment) (int, error) {
	settings := model.Settings()
	if settings.Audience.Mode == assessment.AudienceSpecificStudents {
		return len(settings.Audience.StudentIDs), nil
	}
	count, err := g.roster.CountMembers(ctx, model.BatchID)
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func loadAssessment(ctx context.Context, repo repository.AssessmentRepository, id uint, withQuestions bool) (models.Assessment, error) {
	model, err := repo.GetByID(ctx, id, withQuestions)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Assessment{}, ErrAssessmentNotFound
		}
		return models.Assessment{}, err
	}
	return model, nil
}

// shuffledFor returns a per-student question order that stays stable across
// reloads of the same attempt.
func shuffledFor(questions []assessment.Question, assessmentID, studentID uint) []assessment.Question {
	ordered := append([]assessment.Question(nil), questions...)

	hash := fnv.New64a()
	_, _ = hash.Write([]byte(strconv.FormatUint(uint64(assessmentID), 10) + ":" + strconv.FormatUint(uint64(studentID), 10)))
	rng := rand.New(rand.NewSource(int64(hash.Sum64())))
	rng.Shuffle(len(ordered), func(i, j int) {
		ordered[i], ordered[j] = ordered[j], ordered[i]
	})

	return ordered
}
