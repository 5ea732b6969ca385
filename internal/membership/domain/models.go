// Package domain contains persistence models for project memberships.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Role is the access level granted to a project collaborator.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"

	// RoleNone is a resolver result, never stored.
	RoleNone Role = "none"
)

// ValidRole reports whether role may be assigned to a membership.
func ValidRole(role Role) bool {
	switch role {
	case RoleAdmin, RoleEditor, RoleViewer:
		return true
	default:
		return false
	}
}

// Status is the lifecycle state of a membership row. A pending row is an
// invitation; an accepted row is an active grant. Removal deletes the row.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusDeclined Status = "declined"
)

// Membership jointly represents a pending invitation and an active
// collaboration grant, disambiguated by Status. Unique per (project, user).
type Membership struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	ProjectID snowflake.ID `gorm:"not null;index;uniqueIndex:ux_membership_project_user,priority:1" json:"project_id"`
	UserID    snowflake.ID `gorm:"not null;index;uniqueIndex:ux_membership_project_user,priority:2" json:"user_id"`
	Role      Role         `gorm:"type:text;not null" json:"role"`
	Status    Status       `gorm:"type:text;not null" json:"status"`
	InvitedBy snowflake.ID `gorm:"column:invited_by;not null" json:"invited_by"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Membership) TableName() string { return "memberships" }
