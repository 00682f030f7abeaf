// Package batches persists upload batches. Counter changes are single
// atomic UPDATE statements so concurrent writers never lose increments.
package batches

import (
	"context"

	"github.com/dmitrijs2005/rapidphotos/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, id, userID string) error
	CreateIfAbsent(ctx context.Context, id, userID string) error
	GetByIDAndUser(ctx context.Context, id, userID string) (*models.UploadBatch, error)
	LockForUpdate(ctx context.Context, id string) error
	IncrementTotal(ctx context.Context, id string, n int) error
	IncrementCompleted(ctx context.Context, id string, n int) error
	IncrementFailed(ctx context.Context, id string, n int) error
}
