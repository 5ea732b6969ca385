package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/nodeboard/nodeboard/internal/authz"
	membershipdomain "github.com/nodeboard/nodeboard/internal/membership/domain"
	"github.com/nodeboard/nodeboard/internal/project/domain"
	"gorm.io/gorm"
)

type service struct {
	db       *gorm.DB
	repo     domain.Repository
	resolver authz.Service
	genID    *snowflake.Node
}

func NewService(conn *gorm.DB, repo domain.Repository, resolver authz.Service, genID *snowflake.Node) domain.Service {
	return &service{
		db:       conn,
		repo:     repo,
		resolver: resolver,
		genID:    genID,
	}
}

func (s *service) Create(ctx context.Context, ownerID snowflake.ID, req domain.CreateProjectRequest) (*domain.ProjectResponse, error) {
	if ownerID == 0 {
		return nil, domain.ErrForbidden
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	now := time.Now().UTC()
	project := domain.Project{
		ID:          s.genID.Generate(),
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		OwnerID:     ownerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, project); err != nil {
		return nil, err
	}

	return response(project), nil
}

func (s *service) GetByID(ctx context.Context, requesterID snowflake.ID, id string) (*domain.ProjectResponse, error) {
	raw := strings.TrimSpace(id)
	if raw == "" {
		return nil, domain.ErrInvalidProject
	}
	projectID, err := snowflake.ParseString(raw)
	if err != nil {
		return nil, domain.ErrInvalidProject
	}

	project, err := s.repo.FindByID(ctx, projectID)
	if err != nil {
		return nil, err
	}

	role, err := s.resolver.ResolveRole(ctx, project, requesterID)
	if err != nil {
		return nil, err
	}
	if role == membershipdomain.RoleNone {
		return nil, domain.ErrForbidden
	}

	return response(*project), nil
}

func response(project domain.Project) *domain.ProjectResponse {
	return &domain.ProjectResponse{
		ID:          project.ID.String(),
		Name:        project.Name,
		Description: project.Description,
		OwnerID:     project.OwnerID.String(),
		CreatedAt:   project.CreatedAt,
	}
}
