package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/nodeboard/nodeboard/internal/project/domain"
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

func (r *repository) Create(ctx context.Context, project domain.Project) error {
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO projects (id, name, description, owner_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		project.ID,
		project.Name,
		project.Description,
		project.OwnerID,
		project.CreatedAt,
		project.UpdatedAt,
	).Error
}

func (r *repository) FindByID(ctx context.Context, id snowflake.ID) (*domain.Project, error) {
	var project domain.Project
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, name, description, owner_id, created_at, updated_at
		 FROM projects
		 WHERE id = ?
		 LIMIT 1`,
		id,
	).Scan(&project).Error
	if err != nil {
		return nil, err
	}
	if project.ID == 0 {
		return nil, domain.ErrNotFound
	}
	return &project, nil
}
