package model

import (
	"time"

	"gorm.io/gorm"
)

// Admin represents a course-creator account. Admins live in their own table
// and identity space: an admin token cannot authenticate as a user and
// vice versa.
type Admin struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
	FirstName    string         `gorm:"not null" json:"first_name"`
	LastName     string         `gorm:"not null" json:"last_name"`
	Email        string         `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string         `gorm:"not null" json:"-"`

	// Relationships
	Courses []Course `gorm:"foreignKey:CreatorID" json:"-"`
}

func (a *Admin) FullName() string {
	return a.FirstName + " " + a.LastName
}
