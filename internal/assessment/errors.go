package assessment

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrAlreadySubmitted indicates a submission exists for the assessment and student.
	ErrAlreadySubmitted = errors.New("assessment already submitted")
	// ErrOutOfRange indicates a manual grade outside [0, question points].
	ErrOutOfRange = errors.New("points out of range")
	// ErrQuestionNotFound indicates a question id is not part of the assessment.
	ErrQuestionNotFound = errors.New("question not found")
)

// ValidationError names the authoring field that blocks publishing.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func indexedField(index int, err error) error {
	var v *ValidationError
	if errors.As(err, &v) {
		return &ValidationError{Field: fmt.Sprintf("questions[%d].%s", index, v.Field), Reason: v.Reason}
	}
	return err
}
