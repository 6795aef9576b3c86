package models

import (
	"time"
)

// Submission is one queued candidate goal-alert post. Rows live in the
// `queue` table; a nil Processed timestamp means the row is still pending.
type Submission struct {
	ID        string     `gorm:"primaryKey" json:"id"` // Reddit post id, unique for the queue's lifetime
	URL       string     `gorm:"not null" json:"url"`
	Title     string     `gorm:"not null" json:"title"`
	Processed *time.Time `gorm:"index" json:"processed"`
}

// TableName keeps the historical table name
func (Submission) TableName() string {
	return "queue"
}

// IsPending reports whether the submission still awaits a broadcast worker
func (s *Submission) IsPending() bool {
	return s.Processed == nil
}
