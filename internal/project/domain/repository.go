package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, project Project) error
	FindByID(ctx context.Context, id snowflake.ID) (*Project, error)
}
