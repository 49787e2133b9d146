package models

import "time"

// AttemptStart is the server-recorded moment a student opened a timed
// attempt. One row per assessment and student; the first start wins.
type AttemptStart struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	AssessmentID uint      `gorm:"not null;uniqueIndex:idx_attempt_assessment_student" json:"assessment_id"`
	StudentID    uint      `gorm:"not null;uniqueIndex:idx_attempt_assessment_student" json:"student_id"`
	StartedAt    time.Time `gorm:"not null" json:"started_at"`
	CreatedAt    time.Time `json:"created_at"`
}
