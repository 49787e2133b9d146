package repository

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// ErrDuplicate indicates an insert collided with a unique index.
var ErrDuplicate = errors.New("duplicate record")

// ErrHasSubmissions indicates an assessment can no longer be edited.
var ErrHasSubmissions = errors.New("assessment has submissions")

// ErrAssessmentChanged indicates questions were added after a submission was
// graded but before it was stored.
var ErrAssessmentChanged = errors.New("assessment changed during submission")

func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "duplicate entry")
}
