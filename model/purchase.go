package model

import (
	"time"
)

// Purchase statuses. A purchase transitions pending -> completed after the
// gateway reports the payment as succeeded, or pending -> failed (terminal).
const (
	PurchaseStatusPending   = "pending"
	PurchaseStatusCompleted = "completed"
	PurchaseStatusFailed    = "failed"
)

// Purchase is the durable record of course ownership per (user, course).
// At most one completed row may exist per pair; the partial unique index on
// (user_id, course_id) WHERE status='completed' is created in database.Init
// and is what resolves concurrent confirmation races.
type Purchase struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	UserID    uint      `gorm:"not null;index:idx_purchases_pair" json:"user_id"`
	CourseID  uint      `gorm:"not null;index:idx_purchases_pair" json:"course_id"`
	Status    string    `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`

	// Relationships
	User   User   `gorm:"foreignKey:UserID" json:"-"`
	Course Course `gorm:"foreignKey:CourseID" json:"course"`
}
