package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// ResponseAction is a reply to a pending invitation.
type ResponseAction string

const (
	ActionAccept  ResponseAction = "accept"
	ActionDecline ResponseAction = "decline"
)

type Service interface {
	Invite(ctx context.Context, inviterID snowflake.ID, projectID string, req InviteRequest) (*MemberView, error)
	RespondToInvitation(ctx context.Context, responderID snowflake.ID, projectID string, action ResponseAction) (*MemberView, error)
	ListMembers(ctx context.Context, requesterID snowflake.ID, projectID string) ([]MemberView, error)
	UpdateRole(ctx context.Context, actorID snowflake.ID, projectID, targetUserID string, newRole Role) (*MemberView, error)
	RemoveMember(ctx context.Context, actorID snowflake.ID, projectID, targetUserID string) error
	ListPendingInvitations(ctx context.Context, userID snowflake.ID) ([]InvitationView, error)
}

// InviteRequest identifies the invitee either by user id or by email.
type InviteRequest struct {
	UserID string
	Email  string
	Role   Role
}

// MemberView is a member entry as returned to clients. The project owner is
// synthesized with IsOwner set; owners have no stored row.
type MemberView struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Role        Role      `json:"role"`
	Status      Status    `json:"status"`
	IsOwner     bool      `json:"is_owner"`
	IsSelf      bool      `json:"is_self"`
	CreatedAt   time.Time `json:"created_at"`
}

// InvitationView is a pending invitation enriched with project and inviter
// context for the invitee's inbox.
type InvitationView struct {
	ID                 string    `json:"id"`
	ProjectID          string    `json:"project_id"`
	ProjectName        string    `json:"project_name"`
	ProjectDescription string    `json:"project_description"`
	Role               Role      `json:"role"`
	InvitedBy          string    `json:"invited_by"`
	InviterName        string    `json:"inviter_name"`
	CreatedAt          time.Time `json:"created_at"`
}

var (
	ErrInvalidRole       = errors.New("invalid_role")
	ErrInvalidAction     = errors.New("invalid_action")
	ErrInvalidInvitee    = errors.New("invalid_invitee")
	ErrInviteExists      = errors.New("invite_exists")
	ErrInviteNotFound    = errors.New("invite_not_found")
	ErrMembershipNotFound = errors.New("membership_not_found")
	ErrCannotModifyOwner = errors.New("cannot_modify_owner")
	ErrForbidden         = errors.New("forbidden")
)
