package models

import "time"

// Student represents a learner that can take assessments.
type Student struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Email     string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BatchMember is the roster projection linking students to batches.
type BatchMember struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	BatchID   uint      `gorm:"not null;uniqueIndex:idx_batch_member" json:"batch_id"`
	StudentID uint      `gorm:"not null;uniqueIndex:idx_batch_member;index" json:"student_id"`
	CreatedAt time.Time `json:"created_at"`
}
