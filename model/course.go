package model

import (
	"time"

	"gorm.io/gorm"
)

// Course represents a sellable course in the catalog
type Course struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	Title       string         `gorm:"not null" json:"title"`
	Description string         `gorm:"type:text;not null" json:"description"`
	Price       float64        `gorm:"not null" json:"price"`
	// CreatorID is immutable after creation and gates update/delete.
	CreatorID uint   `gorm:"not null;index" json:"creator_id"`
	ImageKey  string `gorm:"type:varchar(255)" json:"image_key,omitempty"`
	ImageURL  string `gorm:"type:varchar(512)" json:"image_url,omitempty"`

	// Relationships
	Creator Admin `gorm:"foreignKey:CreatorID" json:"creator,omitempty"`
}
