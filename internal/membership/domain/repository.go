package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, membership Membership) error
	Find(ctx context.Context, projectID, userID snowflake.ID) (*Membership, error)
	ListByProject(ctx context.Context, projectID snowflake.ID) ([]Membership, error)
	ListPendingByUser(ctx context.Context, userID snowflake.ID) ([]Membership, error)
	// UpdateStatusIfPending transitions a pending row and reports whether a row
	// matched. The status predicate is part of the statement so concurrent
	// responses cannot both win.
	UpdateStatusIfPending(ctx context.Context, projectID, userID snowflake.ID, status Status) (bool, error)
	// UpdateRoleIfAccepted changes the role of an accepted row and reports
	// whether a row matched.
	UpdateRoleIfAccepted(ctx context.Context, projectID, userID snowflake.ID, role Role) (bool, error)
	Delete(ctx context.Context, projectID, userID snowflake.ID) (bool, error)
}
