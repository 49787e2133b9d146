package assessment

import "time"

// CanSubmit reports whether a student may submit; exactly one submission is
// allowed per assessment and student.
func CanSubmit(hasExisting bool) bool {
	return !hasExisting
}

// EnsureCanSubmit returns ErrAlreadySubmitted when a submission already exists.
func EnsureCanSubmit(hasExisting bool) error {
	if !CanSubmit(hasExisting) {
		return ErrAlreadySubmitted
	}
	return nil
}

// IsVisibleTo reports whether the audience includes studentID. batchMember
// tells whether the student belongs to the assessment's batch.
func (a Audience) IsVisibleTo(studentID uint, batchMember bool) bool {
	switch a.Mode {
	case AudienceEntireBatch:
		return batchMember
	case AudienceSpecificStudents:
		for _, id := range a.StudentIDs {
			if id == studentID {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// ShowResults reports whether students see per-question results and the
// answer key. It depends only on the assessment setting, never on grading
// progress.
func ShowResults(s Settings) bool {
	return s.ShowResultsImmediately
}

// Deadline returns the earliest moment after which a submission is late, or
// nil when no limit applies. startedAt is the server-recorded attempt start.
func Deadline(s Settings, startedAt *time.Time) *time.Time {
	var deadline *time.Time
	if s.DueDate != nil {
		due := *s.DueDate
		deadline = &due
	}
	if s.TimeLimitMinutes > 0 && startedAt != nil {
		limit := startedAt.Add(time.Duration(s.TimeLimitMinutes) * time.Minute)
		if deadline == nil || limit.Before(*deadline) {
			deadline = &limit
		}
	}
	return deadline
}

// IsLate reports whether a submission at now misses the deadline. A timed
// assessment with no recorded start is always late.
func IsLate(s Settings, startedAt *time.Time, now time.Time) bool {
	if s.TimeLimitMinutes > 0 && startedAt == nil {
		return true
	}
	deadline := Deadline(s, startedAt)
	return deadline != nil && now.After(*deadline)
}
