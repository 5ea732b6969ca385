package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	Create(ctx context.Context, ownerID snowflake.ID, req CreateProjectRequest) (*ProjectResponse, error)
	GetByID(ctx context.Context, requesterID snowflake.ID, id string) (*ProjectResponse, error)
}

type CreateProjectRequest struct {
	Name        string
	Description string
}

type ProjectResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	OwnerID     string    `json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
}

var (
	ErrInvalidName    = errors.New("invalid_name")
	ErrInvalidProject = errors.New("invalid_project")
	ErrNotFound       = errors.New("project_not_found")
	ErrForbidden      = errors.New("forbidden")
)
