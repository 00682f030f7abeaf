package batches

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/rapidphotos/internal/common"
	"github.com/dmitrijs2005/rapidphotos/internal/dbx"
	"github.com/dmitrijs2005/rapidphotos/internal/server/models"
)

// PostgresRepository implements batch storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a batch with a server generated id.
func (r *PostgresRepository) Create(ctx context.Context, id, userID string) error {
	query := `INSERT INTO upload_batches (id, user_id) VALUES ($1, $2)`
	return dbx.ExecOne(ctx, r.db, query, id, userID)
}

// CreateIfAbsent inserts the batch unless a row with the same id exists.
// Concurrent callers converge on a single row and none of them fails.
func (r *PostgresRepository) CreateIfAbsent(ctx context.Context, id, userID string) error {
	query := `
		INSERT INTO upload_batches (id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING`
	_, err := dbx.ExecAffected(ctx, r.db, query, id, userID)
	return err
}

// GetByIDAndUser returns common.ErrorNotFound for unknown ids and for
// batches owned by another user.
func (r *PostgresRepository) GetByIDAndUser(ctx context.Context, id, userID string) (*models.UploadBatch, error) {
	query := `
		SELECT id, user_id, total_count, completed_count, failed_count, created_at, updated_at
		FROM upload_batches
		WHERE id = $1 AND user_id = $2`

	b := &models.UploadBatch{}
	err := r.db.QueryRowContext(ctx, query, id, userID).
		Scan(&b.ID, &b.UserID, &b.TotalCount, &b.CompletedCount, &b.FailedCount, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return b, nil
}

// LockForUpdate takes the row lock on a batch for the rest of the
// enclosing transaction. Outside a transaction it is a plain read.
func (r *PostgresRepository) LockForUpdate(ctx context.Context, id string) error {
	var locked string
	err := r.db.QueryRowContext(ctx, `SELECT id FROM upload_batches WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) IncrementTotal(ctx context.Context, id string, n int) error {
	return r.increment(ctx, "total_count", id, n)
}

func (r *PostgresRepository) IncrementCompleted(ctx context.Context, id string, n int) error {
	return r.increment(ctx, "completed_count", id, n)
}

func (r *PostgresRepository) IncrementFailed(ctx context.Context, id string, n int) error {
	return r.increment(ctx, "failed_count", id, n)
}

// increment adds n to column in one statement. column is always one of
// the constants above, never caller input.
func (r *PostgresRepository) increment(ctx context.Context, column, id string, n int) error {
	if n <= 0 {
		return fmt.Errorf("invalid increment %d for %s", n, column)
	}
	query := fmt.Sprintf(
		`UPDATE upload_batches SET %[1]s = %[1]s + $2, updated_at = now() WHERE id = $1`, column)
	return dbx.ExecOne(ctx, r.db, query, id, n)
}
