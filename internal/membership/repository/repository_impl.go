package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/nodeboard/nodeboard/internal/membership/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) domain.Repository {
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, membership domain.Membership) error {
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO memberships (id, project_id, user_id, role, status, invited_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		membership.ID,
		membership.ProjectID,
		membership.UserID,
		membership.Role,
		membership.Status,
		membership.InvitedBy,
		membership.CreatedAt,
		membership.UpdatedAt,
	).Error
}

func (r *repository) Find(ctx context.Context, projectID, userID snowflake.ID) (*domain.Membership, error) {
	var membership domain.Membership
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, project_id, user_id, role, status, invited_by, created_at, updated_at
		 FROM memberships
		 WHERE project_id = ? AND user_id = ?
		 LIMIT 1`,
		projectID,
		userID,
	).Scan(&membership).Error
	if err != nil {
		return nil, err
	}
	if membership.ID == 0 {
		return nil, domain.ErrMembershipNotFound
	}
	return &membership, nil
}

func (r *repository) ListByProject(ctx context.Context, projectID snowflake.ID) ([]domain.Membership, error) {
	var items []domain.Membership
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, project_id, user_id, role, status, invited_by, created_at, updated_at
		 FROM memberships
		 WHERE project_id = ?
		 ORDER BY created_at ASC`,
		projectID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) ListPendingByUser(ctx context.Context, userID snowflake.ID) ([]domain.Membership, error) {
	var items []domain.Membership
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, project_id, user_id, role, status, invited_by, created_at, updated_at
		 FROM memberships
		 WHERE user_id = ? AND status = ?
		 ORDER BY created_at ASC`,
		userID,
		domain.StatusPending,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) UpdateStatusIfPending(ctx context.Context, projectID, userID snowflake.ID, status domain.Status) (bool, error) {
	res := r.db.WithContext(ctx).Exec(
		`UPDATE memberships
		 SET status = ?, updated_at = ?
		 WHERE project_id = ? AND user_id = ? AND status = ?`,
		status,
		time.Now().UTC(),
		projectID,
		userID,
		domain.StatusPending,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) UpdateRoleIfAccepted(ctx context.Context, projectID, userID snowflake.ID, role domain.Role) (bool, error) {
	res := r.db.WithContext(ctx).Exec(
		`UPDATE memberships
		 SET role = ?, updated_at = ?
		 WHERE project_id = ? AND user_id = ? AND status = ?`,
		role,
		time.Now().UTC(),
		projectID,
		userID,
		domain.StatusAccepted,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) Delete(ctx context.Context, projectID, userID snowflake.ID) (bool, error) {
	res := r.db.WithContext(ctx).Exec(
		`DELETE FROM memberships
		 WHERE project_id = ? AND user_id = ?`,
		projectID,
		userID,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
