package service

import (
	"errors"
	"strings"

	"github.com/noah-isme/gema-assessment-api/internal/assessment"
)

var (
	// ErrAssessmentNotFound indicates the assessment does not exist.
	ErrAssessmentNotFound = errors.New("assessment not found")
	// ErrSubmissionNotFound indicates the student has not submitted.
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrAlreadySubmitted indicates a second submission for the same assessment and student.
	ErrAlreadySubmitted = assessment.ErrAlreadySubmitted
	// ErrAssessmentLocked indicates questions cannot change once submissions exist.
	ErrAssessmentLocked = errors.New("assessment has submissions and can no longer be edited")
	// ErrAssessmentChanged indicates questions were appended while the attempt was graded.
	ErrAssessmentChanged = errors.New("assessment changed while submitting, reload and try again")
	// ErrNotAssigned indicates the assessment is not visible to the student.
	ErrNotAssigned = errors.New("assessment is not assigned to this student")
	// ErrLateSubmission indicates the deadline passed and late work is refused.
	ErrLateSubmission = errors.New("submission deadline has passed")
	// ErrUploadUnavailable indicates no image storage is configured.
	ErrUploadUnavailable = errors.New("image storage is not configured")
	// ErrImageTooLarge indicates the uploaded image exceeds the size limit.
	ErrImageTooLarge = errors.New("image exceeds maximum allowed size")
	// ErrImageTypeNotAllowed indicates the upload is not a supported image.
	ErrImageTypeNotAllowed = errors.New("only png, jpeg, gif and webp images are allowed")
)

// Actor is the authenticated caller of a service operation.
type Actor struct {
	ID   uint
	Role string
}

// IsStaff reports whether the actor authors and grades assessments.
func (a Actor) IsStaff() bool {
	switch normalizeRole(a.Role) {
	case "teacher", "admin":
		return true
	default:
		return false
	}
}

func normalizeRole(role string) string {
	r := strings.ToLower(strings.TrimSpace(role))
	if r == "" {
		return "system"
	}
	return r
}
