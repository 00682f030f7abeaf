package services

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/rapidphotos/internal/common"
	"github.com/dmitrijs2005/rapidphotos/internal/logging"
	"github.com/dmitrijs2005/rapidphotos/internal/server/config"
	"github.com/dmitrijs2005/rapidphotos/internal/server/metrics"
	"github.com/dmitrijs2005/rapidphotos/internal/server/repositories/repomanager"
)

const (
	msgUserLimit  = "Can't register more users at this time"
	msgImageLimit = "You've reached your image limit"
)

var sizeUnits = []struct {
	name  string
	bytes int64
}{
	{"GB", 1 << 30},
	{"MB", 1 << 20},
	{"KB", 1 << 10},
}

// formatSize renders n with one decimal in the largest binary unit it
// reaches, so the default 1100 MiB ceiling reads "1.1 GB".
func formatSize(n int64) string {
	for _, u := range sizeUnits {
		if n >= u.bytes {
			s := strconv.FormatFloat(float64(n)/float64(u.bytes), 'f', 1, 64)
			return strings.TrimSuffix(s, ".0") + " " + u.name
		}
	}
	return strconv.FormatInt(n, 10) + " B"
}

// LimitsService enforces the global ceilings on users, photos, stored bytes
// and single file size. The checks read current totals and reserve nothing,
// so concurrent admissions may overshoot a ceiling slightly.
type LimitsService struct {
	db            *sql.DB
	repomanager   repomanager.RepositoryManager
	maxUsers      int64
	maxPhotos     int64
	maxTotalBytes int64
	maxFileBytes  int64
	logger        logging.Logger
}

func NewLimitsService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, logger logging.Logger) *LimitsService {
	return &LimitsService{
		db:            db,
		repomanager:   m,
		maxUsers:      cfg.MaxUsers,
		maxPhotos:     cfg.MaxPhotos,
		maxTotalBytes: cfg.MaxTotalBytes,
		maxFileBytes:  cfg.MaxFileBytes,
		logger:        logger.With("module", "limits"),
	}
}

func (s *LimitsService) reject(ctx context.Context, kind common.LimitKind, msg string) error {
	metrics.LimitRejectionsTotal.WithLabelValues(string(kind)).Inc()
	s.logger.Warn(ctx, "limit reached", "kind", kind)
	return &common.LimitError{Kind: kind, Message: msg}
}

func (s *LimitsService) CheckUserLimit(ctx context.Context) error {
	n, err := s.repomanager.Users(s.db).Count(ctx)
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if n >= s.maxUsers {
		return s.reject(ctx, common.LimitUsers, msgUserLimit)
	}
	return nil
}

func (s *LimitsService) CheckPhotoLimit(ctx context.Context) error {
	n, err := s.repomanager.Photos(s.db).Count(ctx)
	if err != nil {
		return fmt.Errorf("count photos: %w", err)
	}
	if n >= s.maxPhotos {
		return s.reject(ctx, common.LimitPhotos, msgImageLimit)
	}
	return nil
}

// CheckStorageLimit passes when no photo records exist yet.
func (s *LimitsService) CheckStorageLimit(ctx context.Context) error {
	sum, err := s.repomanager.Photos(s.db).SumFileSizes(ctx)
	if err != nil {
		return fmt.Errorf("sum file sizes: %w", err)
	}
	if sum != nil && *sum >= s.maxTotalBytes {
		return s.reject(ctx, common.LimitStorage, msgImageLimit)
	}
	return nil
}

func (s *LimitsService) CheckFileSizeLimit(ctx context.Context, size int64) error {
	if size > s.maxFileBytes {
		return s.reject(ctx, common.LimitFileSize, fmt.Sprintf("Image too large (max %s)", formatSize(s.maxFileBytes)))
	}
	return nil
}
