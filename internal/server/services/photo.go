package services

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/rapidphotos/internal/common"
	"github.com/dmitrijs2005/rapidphotos/internal/logging"
	"github.com/dmitrijs2005/rapidphotos/internal/server/models"
	"github.com/dmitrijs2005/rapidphotos/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/rapidphotos/internal/server/storage"
)

const (
	DefaultPageSize = 15
	MaxPageSize     = 100
	MaxTags         = 3
	MaxTagLength    = 50

	msgPhotoNotAvailable = "Photo not available"
)

// PhotoService serves the owner's gallery: listing, single photo lookup,
// deletion and tag edits. Only UPLOADED photos are visible.
type PhotoService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	storage     storage.Gateway
	logger      logging.Logger
}

func NewPhotoService(db *sql.DB, m repomanager.RepositoryManager, gw storage.Gateway, logger logging.Logger) *PhotoService {
	return &PhotoService{
		db:          db,
		repomanager: m,
		storage:     gw,
		logger:      logger.With("module", "photos"),
	}
}

// NormalizePage applies the listing defaults and bounds. The page is capped
// so that page*pageSize always fits in a 32-bit offset.
func NormalizePage(page, pageSize int) (int, int) {
	if page < 0 {
		page = 0
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	if page > math.MaxInt32/pageSize {
		page = math.MaxInt32 / pageSize
	}
	return page, pageSize
}

func (s *PhotoService) toDto(ctx context.Context, ownerID string, p *models.Photo) (models.PhotoDto, error) {
	url, err := s.storage.PresignGet(ctx, ownerID, p.StorageKey)
	if err != nil {
		return models.PhotoDto{}, err
	}
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	return models.PhotoDto{
		ID:               p.ID,
		OriginalFilename: p.OriginalFilename,
		FileSizeBytes:    p.FileSizeBytes,
		DownloadURL:      url,
		UploadedAt:       p.CreatedAt,
		Tags:             tags,
	}, nil
}

// List returns one page of the owner's UPLOADED photos, newest first.
func (s *PhotoService) List(ctx context.Context, ownerID string, page, pageSize int) (*models.PhotoListResponse, error) {
	page, pageSize = NormalizePage(page, pageSize)
	repo := s.repomanager.Photos(s.db)

	photos, err := repo.ListUploaded(ctx, ownerID, pageSize, page*pageSize)
	if err != nil {
		return nil, err
	}
	total, err := repo.CountUploaded(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	resp := &models.PhotoListResponse{
		Photos:     make([]models.PhotoDto, 0, len(photos)),
		PageNumber: page,
		PageSize:   pageSize,
		TotalCount: total,
	}
	for _, p := range photos {
		dto, err := s.toDto(ctx, ownerID, p)
		if err != nil {
			return nil, err
		}
		resp.Photos = append(resp.Photos, dto)
	}
	return resp, nil
}

func (s *PhotoService) find(ctx context.Context, ownerID, photoID string) (*models.Photo, error) {
	p, err := s.repomanager.Photos(s.db).GetByIDAndUser(ctx, photoID, ownerID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.NewNotFoundError(msgPhotoNotFound)
		}
		return nil, err
	}
	return p, nil
}

func (s *PhotoService) Get(ctx context.Context, ownerID, photoID string) (*models.PhotoDto, error) {
	p, err := s.find(ctx, ownerID, photoID)
	if err != nil {
		return nil, err
	}
	if p.Status != models.PhotoStatusUploaded {
		return nil, common.NewNotFoundError(msgPhotoNotAvailable)
	}
	dto, err := s.toDto(ctx, ownerID, p)
	if err != nil {
		return nil, err
	}
	return &dto, nil
}

// Delete removes the stored object and the record. A storage failure is
// logged and does not keep the record alive. Batch counters are not changed.
func (s *PhotoService) Delete(ctx context.Context, ownerID, photoID string) error {
	p, err := s.find(ctx, ownerID, photoID)
	if err != nil {
		return err
	}

	if err := s.storage.Delete(ctx, ownerID, p.StorageKey); err != nil {
		s.logger.Warn(ctx, "object delete failed", "photo_id", p.ID, "key", p.StorageKey, "error", err)
	}

	if err := s.repomanager.Photos(s.db).Delete(ctx, p.ID, ownerID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.NewNotFoundError(msgPhotoNotFound)
		}
		return err
	}
	s.logger.Info(ctx, "photo deleted", "photo_id", p.ID)
	return nil
}

// NormalizeTags trims tags and drops empty ones after enforcing the count
// and length bounds. Length is measured in characters, not bytes.
func NormalizeTags(tags []string) ([]string, error) {
	if len(tags) > MaxTags {
		return nil, common.NewValidationError("Maximum %d tags allowed", MaxTags)
	}
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if utf8.RuneCountInString(t) > MaxTagLength {
			return nil, common.NewValidationError("Each tag must be %d characters or less", MaxTagLength)
		}
		out = append(out, t)
	}
	return out, nil
}

// UpdateTags replaces the tag list of one of the owner's photos.
func (s *PhotoService) UpdateTags(ctx context.Context, ownerID, photoID string, tags []string) ([]string, error) {
	p, err := s.find(ctx, ownerID, photoID)
	if err != nil {
		return nil, err
	}

	normalized, err := NormalizeTags(tags)
	if err != nil {
		return nil, err
	}

	if err := s.repomanager.Photos(s.db).UpdateTags(ctx, p.ID, ownerID, normalized); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.NewNotFoundError(msgPhotoNotFound)
		}
		return nil, err
	}
	s.logger.Info(ctx, "tags updated", "photo_id", p.ID, "count", len(normalized))
	return normalized, nil
}
