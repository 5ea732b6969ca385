// Package domain contains persistence models for projects.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Project is a shared editing canvas. The owner is fixed at creation and is
// never represented as a membership row.
type Project struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	Name        string       `gorm:"type:text;not null" json:"name"`
	Description string       `gorm:"type:text" json:"description"`
	OwnerID     snowflake.ID `gorm:"column:owner_id;not null;index" json:"owner_id"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Project) TableName() string { return "projects" }
