package folders

import (
	"context"

	"github.com/dmitrijs2005/gophdrive/internal/server/models"
)

type Repository interface {
	FindChild(ctx context.Context, parentID *string, name string) (*models.Folder, error)
	Create(ctx context.Context, folder *models.Folder) error
}
