package model

import (
	"time"
)

// Order is the audit record of a payment transaction, one per processor
// payment id. Orders are immutable: never updated, never deleted (no soft
// delete column). The unique index on payment_id is the idempotency guard
// against replayed confirmation calls.
type Order struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	PaymentID string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"payment_id"`
	Email     string    `gorm:"not null" json:"email"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	CourseID  uint      `gorm:"not null;index" json:"course_id"`
	Amount    float64   `gorm:"not null" json:"amount"`
	Status    string    `gorm:"type:varchar(30);not null" json:"status"`
}
