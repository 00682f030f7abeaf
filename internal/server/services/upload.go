package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dmitrijs2005/rapidphotos/internal/common"
	"github.com/dmitrijs2005/rapidphotos/internal/dbx"
	"github.com/dmitrijs2005/rapidphotos/internal/logging"
	"github.com/dmitrijs2005/rapidphotos/internal/server/config"
	"github.com/dmitrijs2005/rapidphotos/internal/server/metrics"
	"github.com/dmitrijs2005/rapidphotos/internal/server/models"
	"github.com/dmitrijs2005/rapidphotos/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/rapidphotos/internal/server/storage"
	"github.com/google/uuid"
)

const (
	msgFileNotFound  = "File not found in S3"
	msgSizeMismatch  = "File size mismatch"
	msgUnknownError  = "Unknown error"
	msgPhotoNotFound = "Photo not found"
	msgBatchNotFound = "Batch not found"
	msgUserNotFound  = "User not found"

	defaultContentType = "application/octet-stream"
)

// UploadService drives the photo upload lifecycle: PENDING records are created
// on initiate and move exactly once to UPLOADED or FAILED. Batch counters are
// changed only by the call that performed the transition.
type UploadService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	storage     storage.Gateway
	limits      *LimitsService
	putTTL      time.Duration
	logger      logging.Logger
	now         func() time.Time
}

func NewUploadService(db *sql.DB, m repomanager.RepositoryManager, gw storage.Gateway, limits *LimitsService,
	cfg *config.Config, logger logging.Logger) *UploadService {
	return &UploadService{
		db:          db,
		repomanager: m,
		storage:     gw,
		limits:      limits,
		putTTL:      cfg.PresignPutTTL,
		logger:      logger.With("module", "upload"),
		now:         time.Now,
	}
}

// StorageKey builds {ownerID}/{unixMillis}_{token}_{filename}. Slashes in
// the filename are flattened so the key stays directly under the owner prefix.
func StorageKey(ownerID, filename string, at time.Time, token string) string {
	name := strings.ReplaceAll(filename, "/", "_")
	return fmt.Sprintf("%s/%d_%s_%s", ownerID, at.UnixMilli(), token, name)
}

// Initiate admits a new upload, records it as PENDING in its batch and
// returns a signed PUT URL for the client.
func (s *UploadService) Initiate(ctx context.Context, ownerID string, req models.InitiateUploadRequest) (*models.InitiateUploadResponse, error) {
	filename := strings.TrimSpace(req.Filename)
	if filename == "" {
		return nil, common.NewValidationError("Filename is required")
	}
	if req.FileSizeBytes <= 0 {
		return nil, common.NewValidationError("File size must be positive")
	}

	if err := s.limits.CheckFileSizeLimit(ctx, req.FileSizeBytes); err != nil {
		return nil, err
	}
	if err := s.limits.CheckPhotoLimit(ctx); err != nil {
		return nil, err
	}
	if err := s.limits.CheckStorageLimit(ctx); err != nil {
		return nil, err
	}

	exists, err := s.repomanager.Users(s.db).Exists(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, common.NewNotFoundError(msgUserNotFound)
	}

	contentType := strings.TrimSpace(req.ContentType)
	if contentType == "" {
		contentType = defaultContentType
	}

	photo := &models.Photo{
		ID:               uuid.NewString(),
		UserID:           ownerID,
		StorageKey:       StorageKey(ownerID, filename, s.now(), uuid.NewString()),
		OriginalFilename: filename,
		ContentType:      contentType,
		FileSizeBytes:    req.FileSizeBytes,
		Status:           models.PhotoStatusPending,
	}

	var uploadURL string
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		batchID, err := s.resolveBatch(ctx, tx, ownerID, req.BatchID)
		if err != nil {
			return err
		}
		photo.BatchID = batchID

		if err := s.repomanager.Batches(tx).IncrementTotal(ctx, batchID, 1); err != nil {
			return err
		}
		if err := s.repomanager.Photos(tx).Create(ctx, photo); err != nil {
			return err
		}

		uploadURL, err = s.storage.PresignPut(ctx, ownerID, photo.StorageKey)
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.UploadsTotal.WithLabelValues(metrics.OutcomeInitiated).Inc()
	s.logger.Info(ctx, "upload initiated", "photo_id", photo.ID, "batch_id", photo.BatchID)

	return &models.InitiateUploadResponse{
		PhotoID:          photo.ID,
		UploadURL:        uploadURL,
		ExpiresInMinutes: int(s.putTTL / time.Minute),
		BatchID:          photo.BatchID,
	}, nil
}

// resolveBatch returns the batch the new photo joins. A client-supplied id
// is created on first use; an id that already belongs to another owner is
// reported as not found.
func (s *UploadService) resolveBatch(ctx context.Context, tx dbx.DBTX, ownerID, requested string) (string, error) {
	batches := s.repomanager.Batches(tx)

	if requested == "" {
		id := uuid.NewString()
		if err := batches.Create(ctx, id, ownerID); err != nil {
			return "", err
		}
		return id, nil
	}

	if err := batches.CreateIfAbsent(ctx, requested, ownerID); err != nil {
		return "", err
	}
	b, err := batches.GetByIDAndUser(ctx, requested, ownerID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.NewNotFoundError(msgBatchNotFound)
		}
		return "", err
	}
	return b.ID, nil
}

func (s *UploadService) getPhoto(ctx context.Context, db dbx.DBTX, photoID, ownerID string) (*models.Photo, error) {
	p, err := s.repomanager.Photos(db).GetByIDAndUser(ctx, photoID, ownerID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.NewNotFoundError(msgPhotoNotFound)
		}
		return nil, err
	}
	return p, nil
}

func storedFailure(p *models.Photo) error {
	reason := msgUnknownError
	if p.ErrorMessage != nil && *p.ErrorMessage != "" {
		reason = *p.ErrorMessage
	}
	return &common.VerificationError{Reason: reason}
}

// settled maps a terminal record to the result a completion attempt reports for it.
func settled(p *models.Photo) error {
	if p.Status == models.PhotoStatusFailed {
		return storedFailure(p)
	}
	return nil
}

// verify compares the stored object with the declared size. A non-empty
// reason means verification failed; err is reserved for storage errors.
func (s *UploadService) verify(ctx context.Context, p *models.Photo, declared int64) (reason string, err error) {
	exists, err := s.storage.Exists(ctx, p.UserID, p.StorageKey)
	if err != nil {
		return "", err
	}
	if !exists {
		return msgFileNotFound, nil
	}

	size, err := s.storage.SizeOf(ctx, p.UserID, p.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return msgFileNotFound, nil
		}
		return "", err
	}
	if size != declared {
		s.logger.Warn(ctx, "size mismatch", "photo_id", p.ID, "expected", declared, "actual", size)
		return msgSizeMismatch, nil
	}
	return "", nil
}

// markFailed performs the PENDING to FAILED transition and counts it in the
// batch, both in one transaction. It reports whether this call transitioned.
func (s *UploadService) markFailed(ctx context.Context, p *models.Photo, message string) (bool, error) {
	var transitioned bool
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		ok, err := s.repomanager.Photos(tx).MarkFailed(ctx, p.ID, message)
		if err != nil || !ok {
			return err
		}
		transitioned = true
		return s.repomanager.Batches(tx).IncrementFailed(ctx, p.BatchID, 1)
	})
	if err != nil {
		return false, err
	}
	if transitioned {
		metrics.UploadsTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
	}
	return transitioned, nil
}

// rejectUpload commits the FAILED state before the verification error is
// returned to the caller.
func (s *UploadService) rejectUpload(ctx context.Context, p *models.Photo, reason string) error {
	metrics.VerificationFailuresTotal.WithLabelValues(reason).Inc()
	s.logger.Warn(ctx, "upload verification failed", "photo_id", p.ID, "reason", reason)

	ok, err := s.markFailed(ctx, p, reason)
	if err != nil {
		return err
	}
	if !ok {
		return s.settledAfterRace(ctx, p)
	}
	return &common.VerificationError{Reason: reason}
}

// settledAfterRace re-reads a record whose conditional transition did not
// apply because a concurrent call already moved it.
func (s *UploadService) settledAfterRace(ctx context.Context, p *models.Photo) error {
	current, err := s.getPhoto(ctx, s.db, p.ID, p.UserID)
	if err != nil {
		return err
	}
	return settled(current)
}

// Complete verifies the uploaded object and moves the record to UPLOADED.
// Completing an UPLOADED record is a no-op; completing a FAILED one returns
// its stored failure.
func (s *UploadService) Complete(ctx context.Context, ownerID, photoID string, req models.UploadCompleteRequest) error {
	p, err := s.getPhoto(ctx, s.db, photoID, ownerID)
	if err != nil {
		return err
	}
	if p.Status.Terminal() {
		return settled(p)
	}

	reason, err := s.verify(ctx, p, req.FileSizeBytes)
	if err != nil {
		return err
	}
	if reason != "" {
		return s.rejectUpload(ctx, p, reason)
	}

	var transitioned bool
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		ok, err := s.repomanager.Photos(tx).MarkUploaded(ctx, p.ID)
		if err != nil || !ok {
			return err
		}
		transitioned = true
		return s.repomanager.Batches(tx).IncrementCompleted(ctx, p.BatchID, 1)
	})
	if err != nil {
		return err
	}
	if !transitioned {
		return s.settledAfterRace(ctx, p)
	}

	metrics.UploadsTotal.WithLabelValues(metrics.OutcomeUploaded).Inc()
	metrics.UploadSizeBytes.Observe(float64(req.FileSizeBytes))
	s.logger.Info(ctx, "upload completed", "photo_id", p.ID, "batch_id", p.BatchID)
	return nil
}

// Fail records a client-reported failure. Records that already reached a
// terminal state are left untouched.
func (s *UploadService) Fail(ctx context.Context, ownerID, photoID, message string) error {
	message = strings.TrimSpace(message)
	if message == "" {
		message = msgUnknownError
	}

	p, err := s.getPhoto(ctx, s.db, photoID, ownerID)
	if err != nil {
		return err
	}
	if p.Status.Terminal() {
		s.logger.Debug(ctx, "fail ignored for terminal photo", "photo_id", p.ID, "status", p.Status)
		return nil
	}

	ok, err := s.markFailed(ctx, p, message)
	if err != nil {
		return err
	}
	if ok {
		s.logger.Warn(ctx, "upload failed", "photo_id", p.ID, "batch_id", p.BatchID, "error", message)
	}
	return nil
}

// BatchComplete completes many uploads in one call. Each item is processed
// on its own: unknown ids, storage errors and database errors skip the item,
// verification failures are persisted as FAILED and skipped. Verified items
// are moved to UPLOADED in one transaction, each under its own savepoint,
// followed by one completed-count increment per batch. The result counts the
// distinct items that are UPLOADED after the call, including those that
// already were.
func (s *UploadService) BatchComplete(ctx context.Context, ownerID string, items []models.BatchCompleteItem) (int, error) {
	if len(items) == 0 {
		return 0, common.NewValidationError("Items must not be empty")
	}

	success := 0
	var verified []*models.Photo

	for _, item := range uniqueItems(items) {
		p, err := s.getPhoto(ctx, s.db, item.PhotoID, ownerID)
		if err != nil {
			s.logger.Warn(ctx, "batch item skipped", "photo_id", item.PhotoID, "error", err)
			continue
		}
		switch p.Status {
		case models.PhotoStatusUploaded:
			success++
			continue
		case models.PhotoStatusFailed:
			continue
		}

		reason, err := s.verify(ctx, p, item.FileSizeBytes)
		if err != nil {
			s.logger.Error(ctx, "batch item verification error", "photo_id", p.ID, "error", err)
			continue
		}
		if reason != "" {
			if err := s.rejectUpload(ctx, p, reason); err != nil && !errors.Is(err, common.ErrorVerificationFailed) {
				s.logger.Error(ctx, "batch item failure not recorded", "photo_id", p.ID, "error", err)
			}
			continue
		}
		verified = append(verified, p)
	}

	if len(verified) == 0 {
		return success, nil
	}

	var uploaded, transitioned int
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		uploaded, transitioned = 0, 0
		batches := s.repomanager.Batches(tx)

		for _, id := range sortedBatchIDs(verified) {
			if err := batches.LockForUpdate(ctx, id); err != nil {
				return err
			}
		}

		perBatch := map[string]int{}
		var order []string

		for _, p := range verified {
			var done, moved bool
			err := dbx.WithSavepoint(ctx, tx, "batch_item", func(ctx context.Context) error {
				var err error
				done, moved, err = s.markUploadedInTx(ctx, tx, p)
				return err
			})
			if errors.Is(err, dbx.ErrSavepoint) {
				return err
			}
			if err != nil {
				s.logger.Error(ctx, "batch item not completed", "photo_id", p.ID, "error", err)
				continue
			}
			if done {
				uploaded++
			}
			if !moved {
				continue
			}
			transitioned++
			if _, seen := perBatch[p.BatchID]; !seen {
				order = append(order, p.BatchID)
			}
			perBatch[p.BatchID]++
		}

		for _, id := range order {
			if err := batches.IncrementCompleted(ctx, id, perBatch[id]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	metrics.UploadsTotal.WithLabelValues(metrics.OutcomeUploaded).Add(float64(transitioned))
	s.logger.Info(ctx, "batch complete finished", "items", len(items), "success", success+uploaded)
	return success + uploaded, nil
}

// markUploadedInTx moves p to UPLOADED inside tx. done reports whether the
// record is UPLOADED afterwards; moved whether this call transitioned it.
func (s *UploadService) markUploadedInTx(ctx context.Context, tx dbx.DBTX, p *models.Photo) (done, moved bool, err error) {
	ok, err := s.repomanager.Photos(tx).MarkUploaded(ctx, p.ID)
	if err != nil {
		return false, false, err
	}
	if ok {
		return true, true, nil
	}
	current, err := s.getPhoto(ctx, tx, p.ID, p.UserID)
	if err != nil {
		return false, false, err
	}
	return current.Status == models.PhotoStatusUploaded, false, nil
}

// uniqueItems drops repeated photo ids, keeping the first occurrence.
func uniqueItems(items []models.BatchCompleteItem) []models.BatchCompleteItem {
	seen := make(map[string]struct{}, len(items))
	out := make([]models.BatchCompleteItem, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.PhotoID]; ok {
			continue
		}
		seen[item.PhotoID] = struct{}{}
		out = append(out, item)
	}
	return out
}

// sortedBatchIDs returns the distinct batches of photos in a stable order,
// so concurrent callers take batch row locks in the same sequence.
func sortedBatchIDs(photos []*models.Photo) []string {
	seen := map[string]struct{}{}
	var ids []string
	for _, p := range photos {
		if _, ok := seen[p.BatchID]; !ok {
			seen[p.BatchID] = struct{}{}
			ids = append(ids, p.BatchID)
		}
	}
	sort.Strings(ids)
	return ids
}

// BatchStatus returns the batch counters and every photo in the batch.
func (s *UploadService) BatchStatus(ctx context.Context, ownerID, batchID string) (*models.BatchStatusResponse, error) {
	b, err := s.repomanager.Batches(s.db).GetByIDAndUser(ctx, batchID, ownerID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.NewNotFoundError(msgBatchNotFound)
		}
		return nil, err
	}

	photos, err := s.repomanager.Photos(s.db).ListByBatch(ctx, batchID, ownerID)
	if err != nil {
		return nil, err
	}

	resp := &models.BatchStatusResponse{
		BatchID:        b.ID,
		TotalCount:     b.TotalCount,
		CompletedCount: b.CompletedCount,
		FailedCount:    b.FailedCount,
		Photos:         make([]models.PhotoStatusDto, 0, len(photos)),
	}
	for _, p := range photos {
		resp.Photos = append(resp.Photos, models.PhotoStatusDto{
			ID:               p.ID,
			OriginalFilename: p.OriginalFilename,
			Status:           p.Status,
			ErrorMessage:     p.ErrorMessage,
			UpdatedAt:        p.UpdatedAt,
		})
	}
	return resp, nil
}
