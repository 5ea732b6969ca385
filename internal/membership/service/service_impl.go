package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/nodeboard/nodeboard/internal/authz"
	"github.com/nodeboard/nodeboard/internal/membership/domain"
	projectdomain "github.com/nodeboard/nodeboard/internal/project/domain"
	userdomain "github.com/nodeboard/nodeboard/internal/user/domain"
	"github.com/nodeboard/nodeboard/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// unknownDisplayName substitutes for enrichment lookups that fail. Enrichment
// never fails the parent operation.
const unknownDisplayName = "Unknown"

type service struct {
	db       *gorm.DB
	log      *zap.Logger
	repo     domain.Repository
	projects projectdomain.Repository
	users    userdomain.Repository
	resolver authz.Service
	genID    *snowflake.Node
}

func NewService(
	conn *gorm.DB,
	log *zap.Logger,
	repo domain.Repository,
	projects projectdomain.Repository,
	users userdomain.Repository,
	resolver authz.Service,
	genID *snowflake.Node,
) domain.Service {
	return &service{
		db:       conn,
		log:      log.Named("membership.service"),
		repo:     repo,
		projects: projects,
		users:    users,
		resolver: resolver,
		genID:    genID,
	}
}

func (s *service) Invite(ctx context.Context, inviterID snowflake.ID, projectID string, req domain.InviteRequest) (*domain.MemberView, error) {
	project, err := s.findProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !domain.ValidRole(req.Role) {
		return nil, domain.ErrInvalidRole
	}

	invitee, err := s.resolveInvitee(ctx, req)
	if err != nil {
		return nil, err
	}
	if invitee.ID == project.OwnerID {
		return nil, domain.ErrCannotModifyOwner
	}

	now := time.Now().UTC()
	membership := domain.Membership{
		ID:        s.genID.Generate(),
		ProjectID: project.ID,
		UserID:    invitee.ID,
		Role:      req.Role,
		Status:    domain.StatusPending,
		InvitedBy: inviterID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		role, err := authz.NewService(repo).ResolveRole(ctx, project, inviterID)
		if err != nil {
			return err
		}
		if role != domain.RoleAdmin {
			return domain.ErrForbidden
		}

		existing, err := repo.Find(ctx, project.ID, invitee.ID)
		if err != nil && !errors.Is(err, domain.ErrMembershipNotFound) {
			return err
		}
		if existing != nil {
			if existing.Status != domain.StatusDeclined {
				return domain.ErrInviteExists
			}
			// A declined invitation does not block a fresh invite; reuse the
			// row so the (project, user) uniqueness holds.
			return s.reopenDeclined(ctx, tx, existing, membership)
		}

		if err := repo.Create(ctx, membership); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrInviteExists
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	view := s.memberView(ctx, membership, project, inviterID)
	return &view, nil
}

func (s *service) reopenDeclined(ctx context.Context, tx *gorm.DB, existing *domain.Membership, fresh domain.Membership) error {
	res := tx.WithContext(ctx).Exec(
		`UPDATE memberships
		 SET role = ?, status = ?, invited_by = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		fresh.Role,
		domain.StatusPending,
		fresh.InvitedBy,
		fresh.UpdatedAt,
		existing.ID,
		domain.StatusDeclined,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrInviteExists
	}
	return nil
}

func (s *service) RespondToInvitation(ctx context.Context, responderID snowflake.ID, projectID string, action domain.ResponseAction) (*domain.MemberView, error) {
	project, err := s.findProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	var status domain.Status
	switch action {
	case domain.ActionAccept:
		status = domain.StatusAccepted
	case domain.ActionDecline:
		status = domain.StatusDeclined
	default:
		return nil, domain.ErrInvalidAction
	}

	// Only the invited user can respond, and only while the row is pending.
	// The status predicate in the update is the transition guard: a second
	// response finds no pending row and fails.
	ok, err := s.repo.UpdateStatusIfPending(ctx, project.ID, responderID, status)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrInviteNotFound
	}

	membership, err := s.repo.Find(ctx, project.ID, responderID)
	if err != nil {
		return nil, err
	}

	view := s.memberView(ctx, *membership, project, responderID)
	return &view, nil
}

func (s *service) ListMembers(ctx context.Context, requesterID snowflake.ID, projectID string) ([]domain.MemberView, error) {
	project, err := s.findProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	role, err := s.resolver.ResolveRole(ctx, project, requesterID)
	if err != nil {
		return nil, err
	}
	if role == domain.RoleNone {
		return nil, domain.ErrForbidden
	}

	memberships, err := s.repo.ListByProject(ctx, project.ID)
	if err != nil {
		return nil, err
	}

	views := make([]domain.MemberView, 0, len(memberships)+1)
	ownerStored := false
	for _, membership := range memberships {
		if membership.UserID == project.OwnerID {
			ownerStored = true
		}
		views = append(views, s.memberView(ctx, membership, project, requesterID))
	}
	if !ownerStored {
		owner := domain.MemberView{
			UserID:      project.OwnerID.String(),
			DisplayName: s.displayName(ctx, project.OwnerID),
			Role:        domain.RoleAdmin,
			Status:      domain.StatusAccepted,
			IsOwner:     true,
			IsSelf:      project.OwnerID == requesterID,
			CreatedAt:   project.CreatedAt,
		}
		// Project creation precedes every invite, so the owner sorts first.
		views = append([]domain.MemberView{owner}, views...)
	}
	return views, nil
}

func (s *service) UpdateRole(ctx context.Context, actorID snowflake.ID, projectID, targetUserID string, newRole domain.Role) (*domain.MemberView, error) {
	project, err := s.findProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !domain.ValidRole(newRole) {
		return nil, domain.ErrInvalidRole
	}
	targetID, err := parseUserID(targetUserID)
	if err != nil {
		return nil, err
	}
	if targetID == project.OwnerID {
		return nil, domain.ErrCannotModifyOwner
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		role, err := authz.NewService(repo).ResolveRole(ctx, project, actorID)
		if err != nil {
			return err
		}
		if role != domain.RoleAdmin {
			return domain.ErrForbidden
		}

		ok, err := repo.UpdateRoleIfAccepted(ctx, project.ID, targetID, newRole)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrMembershipNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	membership, err := s.repo.Find(ctx, project.ID, targetID)
	if err != nil {
		return nil, err
	}
	view := s.memberView(ctx, *membership, project, actorID)
	return &view, nil
}

func (s *service) RemoveMember(ctx context.Context, actorID snowflake.ID, projectID, targetUserID string) error {
	project, err := s.findProject(ctx, projectID)
	if err != nil {
		return err
	}
	targetID, err := parseUserID(targetUserID)
	if err != nil {
		return err
	}
	if targetID == project.OwnerID {
		return domain.ErrCannotModifyOwner
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		// Self-removal is allowed for any role; removing someone else needs
		// admin.
		if actorID != targetID {
			role, err := authz.NewService(repo).ResolveRole(ctx, project, actorID)
			if err != nil {
				return err
			}
			if role != domain.RoleAdmin {
				return domain.ErrForbidden
			}
		}

		ok, err := repo.Delete(ctx, project.ID, targetID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrMembershipNotFound
		}
		return nil
	})
}

func (s *service) ListPendingInvitations(ctx context.Context, userID snowflake.ID) ([]domain.InvitationView, error) {
	pending, err := s.repo.ListPendingByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	views := make([]domain.InvitationView, 0, len(pending))
	for _, invitation := range pending {
		view := domain.InvitationView{
			ID:          invitation.ID.String(),
			ProjectID:   invitation.ProjectID.String(),
			ProjectName: unknownDisplayName,
			Role:        invitation.Role,
			InvitedBy:   invitation.InvitedBy.String(),
			InviterName: s.displayName(ctx, invitation.InvitedBy),
			CreatedAt:   invitation.CreatedAt,
		}
		if project, err := s.projects.FindByID(ctx, invitation.ProjectID); err == nil {
			view.ProjectName = project.Name
			view.ProjectDescription = project.Description
		} else {
			s.log.Warn("project enrichment failed",
				zap.String("project_id", invitation.ProjectID.String()),
				zap.Error(err))
		}
		views = append(views, view)
	}
	return views, nil
}

func (s *service) findProject(ctx context.Context, raw string) (*projectdomain.Project, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, projectdomain.ErrInvalidProject
	}
	id, err := snowflake.ParseString(raw)
	if err != nil {
		return nil, projectdomain.ErrInvalidProject
	}
	return s.projects.FindByID(ctx, id)
}

func (s *service) resolveInvitee(ctx context.Context, req domain.InviteRequest) (*userdomain.User, error) {
	if raw := strings.TrimSpace(req.UserID); raw != "" {
		id, err := snowflake.ParseString(raw)
		if err != nil {
			return nil, domain.ErrInvalidInvitee
		}
		return s.users.FindByID(ctx, id)
	}
	if email := strings.TrimSpace(req.Email); email != "" {
		return s.users.FindByEmail(ctx, email)
	}
	return nil, domain.ErrInvalidInvitee
}

func (s *service) memberView(ctx context.Context, membership domain.Membership, project *projectdomain.Project, viewerID snowflake.ID) domain.MemberView {
	return domain.MemberView{
		UserID:      membership.UserID.String(),
		DisplayName: s.displayName(ctx, membership.UserID),
		Role:        membership.Role,
		Status:      membership.Status,
		IsOwner:     membership.UserID == project.OwnerID,
		IsSelf:      membership.UserID == viewerID,
		CreatedAt:   membership.CreatedAt,
	}
}

func (s *service) displayName(ctx context.Context, userID snowflake.ID) string {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return unknownDisplayName
	}
	return user.DisplayName
}

func parseUserID(raw string) (snowflake.ID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, domain.ErrInvalidInvitee
	}
	id, err := snowflake.ParseString(raw)
	if err != nil {
		return 0, domain.ErrInvalidInvitee
	}
	return id, nil
}
