package metrics

import (
	"context"
	"time"

	"github.com/dmitrijs2005/rapidphotos/internal/logging"
	"github.com/dmitrijs2005/rapidphotos/internal/server/models"
	"github.com/prometheus/client_golang/prometheus"
)

// PhotoStats is the subset of the photo store the collector reads.
type PhotoStats interface {
	CountByStatus(ctx context.Context) (map[models.PhotoStatus]int64, error)
	SumFileSizes(ctx context.Context) (*int64, error)
}

// UserStats is the subset of the user store the collector reads.
type UserStats interface {
	Count(ctx context.Context) (int64, error)
}

const collectTimeout = 5 * time.Second

// DatabaseMetricsCollector reports record gauges on each scrape.
type DatabaseMetricsCollector struct {
	photos     PhotoStats
	users      UserStats
	quotaBytes int64
	logger     logging.Logger

	photosByStatus          *prometheus.Desc
	usersCount              *prometheus.Desc
	storageUsedBytes        *prometheus.Desc
	storageQuotaBytes       *prometheus.Desc
	storageQuotaUsedPercent *prometheus.Desc
}

// NewDatabaseMetricsCollector creates a new collector
func NewDatabaseMetricsCollector(photos PhotoStats, users UserStats, quotaBytes int64, logger logging.Logger) *DatabaseMetricsCollector {
	return &DatabaseMetricsCollector{
		photos:     photos,
		users:      users,
		quotaBytes: quotaBytes,
		logger:     logger,
		photosByStatus: prometheus.NewDesc(
			"rapidphotos_photos_count",
			"Number of photo records by status",
			[]string{"status"}, nil,
		),
		usersCount: prometheus.NewDesc(
			"rapidphotos_users_count",
			"Number of registered users",
			nil, nil,
		),
		storageUsedBytes: prometheus.NewDesc(
			"rapidphotos_storage_used_bytes",
			"Sum of declared file sizes across all photo records",
			nil, nil,
		),
		storageQuotaBytes: prometheus.NewDesc(
			"rapidphotos_storage_quota_bytes",
			"Global storage ceiling in bytes",
			nil, nil,
		),
		storageQuotaUsedPercent: prometheus.NewDesc(
			"rapidphotos_storage_quota_used_percent",
			"Percentage of the global storage ceiling in use (0-100)",
			nil, nil,
		),
	}
}

func (c *DatabaseMetricsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.photosByStatus
	ch <- c.usersCount
	ch <- c.storageUsedBytes
	ch <- c.storageQuotaBytes
	ch <- c.storageQuotaUsedPercent
}

// Collect queries the stores and emits gauges. Query failures are logged and
// reported as zero so the scrape itself never fails.
func (c *DatabaseMetricsCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), collectTimeout)
	defer cancel()

	byStatus, err := c.photos.CountByStatus(ctx)
	if err != nil {
		c.logger.Error(ctx, "failed to query photo counts", "error", err)
		byStatus = map[models.PhotoStatus]int64{}
	}
	for _, s := range []models.PhotoStatus{models.PhotoStatusPending, models.PhotoStatusUploaded, models.PhotoStatusFailed} {
		ch <- prometheus.MustNewConstMetric(c.photosByStatus, prometheus.GaugeValue, float64(byStatus[s]), string(s))
	}

	users, err := c.users.Count(ctx)
	if err != nil {
		c.logger.Error(ctx, "failed to query user count", "error", err)
		users = 0
	}
	ch <- prometheus.MustNewConstMetric(c.usersCount, prometheus.GaugeValue, float64(users))

	var used int64
	sum, err := c.photos.SumFileSizes(ctx)
	if err != nil {
		c.logger.Error(ctx, "failed to query storage usage", "error", err)
	} else if sum != nil {
		used = *sum
	}

	var usedPercent float64
	if c.quotaBytes > 0 {
		usedPercent = float64(used) / float64(c.quotaBytes) * 100
	}

	ch <- prometheus.MustNewConstMetric(c.storageUsedBytes, prometheus.GaugeValue, float64(used))
	ch <- prometheus.MustNewConstMetric(c.storageQuotaBytes, prometheus.GaugeValue, float64(c.quotaBytes))
	ch <- prometheus.MustNewConstMetric(c.storageQuotaUsedPercent, prometheus.GaugeValue, usedPercent)
}
