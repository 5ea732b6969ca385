// Package authz resolves the effective role a user holds on a project.
package authz

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	membershipdomain "github.com/nodeboard/nodeboard/internal/membership/domain"
	projectdomain "github.com/nodeboard/nodeboard/internal/project/domain"
	"go.uber.org/fx"
)

// Service is the single authorization primitive. Every mutation resolves the
// effective role immediately before acting; results are never cached so role
// changes take effect on the next request.
type Service interface {
	ResolveRole(ctx context.Context, project *projectdomain.Project, userID snowflake.ID) (membershipdomain.Role, error)
}

type resolver struct {
	memberships membershipdomain.Repository
}

func NewService(memberships membershipdomain.Repository) Service {
	return &resolver{memberships: memberships}
}

// ResolveRole returns the effective role of userID on project: admin for the
// owner, the stored role for an accepted membership, none otherwise.
func (r *resolver) ResolveRole(ctx context.Context, project *projectdomain.Project, userID snowflake.ID) (membershipdomain.Role, error) {
	if project == nil || userID == 0 {
		return membershipdomain.RoleNone, nil
	}
	if project.OwnerID == userID {
		return membershipdomain.RoleAdmin, nil
	}

	membership, err := r.memberships.Find(ctx, project.ID, userID)
	if err != nil {
		if errors.Is(err, membershipdomain.ErrMembershipNotFound) {
			return membershipdomain.RoleNone, nil
		}
		return membershipdomain.RoleNone, err
	}
	if membership.Status != membershipdomain.StatusAccepted {
		return membershipdomain.RoleNone, nil
	}
	return membership.Role, nil
}

// Module provides the role resolver.
var Module = fx.Module("authz",
	fx.Provide(NewService),
)
