package files

import (
	"context"

	"github.com/dmitrijs2005/gophdrive/internal/server/models"
)

type Repository interface {
	Upsert(ctx context.Context, file *models.File) (*models.File, error)
	FindByID(ctx context.Context, id string) (*models.File, error)
	ListHidden(ctx context.Context, prefix string) ([]*models.File, error)
	Delete(ctx context.Context, id string) error
}
