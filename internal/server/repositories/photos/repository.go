package photos

import (
	"context"

	"github.com/dmitrijs2005/rapidphotos/internal/server/models"
)

// Repository stores per-file records. Status transitions are conditional on
// the current status being PENDING; the bool result tells the caller whether
// this call performed the transition.
type Repository interface {
	Create(ctx context.Context, photo *models.Photo) error
	GetByIDAndUser(ctx context.Context, id, userID string) (*models.Photo, error)
	MarkUploaded(ctx context.Context, id string) (bool, error)
	MarkFailed(ctx context.Context, id, message string) (bool, error)
	ListUploaded(ctx context.Context, userID string, limit, offset int) ([]*models.Photo, error)
	CountUploaded(ctx context.Context, userID string) (int64, error)
	ListByBatch(ctx context.Context, batchID, userID string) ([]*models.Photo, error)
	Count(ctx context.Context) (int64, error)
	SumFileSizes(ctx context.Context) (*int64, error)
	CountByStatus(ctx context.Context) (map[models.PhotoStatus]int64, error)
	UpdateTags(ctx context.Context, id, userID string, tags []string) error
	Delete(ctx context.Context, id, userID string) error
}
