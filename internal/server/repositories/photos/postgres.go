package photos

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/rapidphotos/internal/common"
	"github.com/dmitrijs2005/rapidphotos/internal/dbx"
	"github.com/dmitrijs2005/rapidphotos/internal/server/models"
)

const photoColumns = `id, user_id, batch_id, s3_key, original_filename, content_type,
	file_size_bytes, status, error_message, tags, created_at, updated_at`

// PostgresRepository implements photo storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPhoto(s scanner) (*models.Photo, error) {
	p := &models.Photo{}
	var status string
	var tags []byte
	if err := s.Scan(&p.ID, &p.UserID, &p.BatchID, &p.StorageKey, &p.OriginalFilename, &p.ContentType,
		&p.FileSizeBytes, &status, &p.ErrorMessage, &tags, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Status = models.PhotoStatus(status)
	p.Tags = []string{}
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &p.Tags); err != nil {
			return nil, fmt.Errorf("decode tags: %w", err)
		}
	}
	return p, nil
}

// Create inserts a new photo record and fills its timestamps.
func (r *PostgresRepository) Create(ctx context.Context, photo *models.Photo) error {
	query := `
		INSERT INTO photos (id, user_id, batch_id, s3_key, original_filename, content_type, file_size_bytes, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		photo.ID, photo.UserID, photo.BatchID, photo.StorageKey, photo.OriginalFilename,
		photo.ContentType, photo.FileSizeBytes, string(photo.Status),
	).Scan(&photo.CreatedAt, &photo.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// GetByIDAndUser returns common.ErrorNotFound both for unknown ids and for
// photos that belong to another user.
func (r *PostgresRepository) GetByIDAndUser(ctx context.Context, id, userID string) (*models.Photo, error) {
	query := `SELECT ` + photoColumns + ` FROM photos WHERE id = $1 AND user_id = $2`

	p, err := scanPhoto(r.db.QueryRowContext(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) MarkUploaded(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE photos SET status = 'UPLOADED', error_message = NULL, updated_at = now()
		WHERE id = $1 AND status = 'PENDING'`
	n, err := dbx.ExecAffected(ctx, r.db, query, id)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *PostgresRepository) MarkFailed(ctx context.Context, id, message string) (bool, error) {
	query := `
		UPDATE photos SET status = 'FAILED', error_message = $2, updated_at = now()
		WHERE id = $1 AND status = 'PENDING'`
	n, err := dbx.ExecAffected(ctx, r.db, query, id, message)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ListUploaded pages through a user's UPLOADED photos, newest first.
// The status filter lives in SQL so page sizes and totals stay exact.
func (r *PostgresRepository) ListUploaded(ctx context.Context, userID string, limit, offset int) ([]*models.Photo, error) {
	query := `SELECT ` + photoColumns + ` FROM photos
		WHERE user_id = $1 AND status = 'UPLOADED'
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`
	return r.selectPhotos(ctx, query, userID, limit, offset)
}

func (r *PostgresRepository) CountUploaded(ctx context.Context, userID string) (int64, error) {
	var n int64
	query := `SELECT COUNT(*) FROM photos WHERE user_id = $1 AND status = 'UPLOADED'`
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

// ListByBatch returns every photo of the batch regardless of status, newest first.
func (r *PostgresRepository) ListByBatch(ctx context.Context, batchID, userID string) ([]*models.Photo, error) {
	query := `SELECT ` + photoColumns + ` FROM photos
		WHERE batch_id = $1 AND user_id = $2
		ORDER BY created_at DESC, id`
	return r.selectPhotos(ctx, query, batchID, userID)
}

func (r *PostgresRepository) selectPhotos(ctx context.Context, query string, args ...any) ([]*models.Photo, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select photos: %w", err)
	}
	defer rows.Close()

	result := []*models.Photo{}
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM photos`).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

// SumFileSizes returns nil when there are no photos at all.
func (r *PostgresRepository) SumFileSizes(ctx context.Context) (*int64, error) {
	var sum sql.NullInt64
	if err := r.db.QueryRowContext(ctx, `SELECT SUM(file_size_bytes) FROM photos`).Scan(&sum); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	if !sum.Valid {
		return nil, nil
	}
	return &sum.Int64, nil
}

func (r *PostgresRepository) CountByStatus(ctx context.Context) (map[models.PhotoStatus]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM photos GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := map[models.PhotoStatus]int64{}
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		result[models.PhotoStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) UpdateTags(ctx context.Context, id, userID string, tags []string) error {
	if tags == nil {
		tags = []string{}
	}
	encoded, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}
	query := `UPDATE photos SET tags = $3::jsonb, updated_at = now() WHERE id = $1 AND user_id = $2`
	return dbx.ExecOne(ctx, r.db, query, id, userID, string(encoded))
}

func (r *PostgresRepository) Delete(ctx context.Context, id, userID string) error {
	return dbx.ExecOne(ctx, r.db, `DELETE FROM photos WHERE id = $1 AND user_id = $2`, id, userID)
}
