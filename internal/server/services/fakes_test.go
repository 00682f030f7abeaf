package services

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/rapidphotos/internal/common"
	"github.com/dmitrijs2005/rapidphotos/internal/dbx"
	"github.com/dmitrijs2005/rapidphotos/internal/logging"
	"github.com/dmitrijs2005/rapidphotos/internal/server/config"
	"github.com/dmitrijs2005/rapidphotos/internal/server/models"
	"github.com/dmitrijs2005/rapidphotos/internal/server/repositories/batches"
	"github.com/dmitrijs2005/rapidphotos/internal/server/repositories/photos"
	"github.com/dmitrijs2005/rapidphotos/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/rapidphotos/internal/server/repositories/users"
	"github.com/dmitrijs2005/rapidphotos/internal/server/storage"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// -------- test fakes --------

type fakeUsersRepo struct {
	users.Repository
	ids     map[string]bool
	created []*models.User
	err     error
}

func (f *fakeUsersRepo) Count(ctx context.Context) (int64, error) {
	return int64(len(f.ids)), f.err
}

func (f *fakeUsersRepo) Exists(ctx context.Context, id string) (bool, error) {
	return f.ids[id], f.err
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.ids[u.ID] = true
	f.created = append(f.created, u)
	return u, nil
}

type fakeBatchesRepo struct {
	batches.Repository
	mu     sync.Mutex
	m      map[string]*models.UploadBatch
	calls  []string
	locked []string
}

func (f *fakeBatchesRepo) LockForUpdate(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.m[id]; !ok {
		return common.ErrorNotFound
	}
	f.locked = append(f.locked, id)
	return nil
}

func (f *fakeBatchesRepo) Create(ctx context.Context, id, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.m[id]; ok {
		return fmt.Errorf("db error: duplicate key")
	}
	f.m[id] = &models.UploadBatch{ID: id, UserID: userID}
	return nil
}

func (f *fakeBatchesRepo) CreateIfAbsent(ctx context.Context, id, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.m[id]; !ok {
		f.m[id] = &models.UploadBatch{ID: id, UserID: userID}
	}
	return nil
}

func (f *fakeBatchesRepo) GetByIDAndUser(ctx context.Context, id, userID string) (*models.UploadBatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.m[id]
	if !ok || b.UserID != userID {
		return nil, common.ErrorNotFound
	}
	cp := *b
	return &cp, nil
}

func (f *fakeBatchesRepo) inc(kind, id string, n int, apply func(b *models.UploadBatch)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.m[id]
	if !ok {
		return common.ErrorNotFound
	}
	apply(b)
	f.calls = append(f.calls, fmt.Sprintf("%s:%s:%d", kind, id, n))
	return nil
}

func (f *fakeBatchesRepo) IncrementTotal(ctx context.Context, id string, n int) error {
	return f.inc("total", id, n, func(b *models.UploadBatch) { b.TotalCount += n })
}

func (f *fakeBatchesRepo) IncrementCompleted(ctx context.Context, id string, n int) error {
	return f.inc("completed", id, n, func(b *models.UploadBatch) { b.CompletedCount += n })
}

func (f *fakeBatchesRepo) IncrementFailed(ctx context.Context, id string, n int) error {
	return f.inc("failed", id, n, func(b *models.UploadBatch) { b.FailedCount += n })
}

func (f *fakeBatchesRepo) get(id string) models.UploadBatch {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.m[id]
}

type fakePhotosRepo struct {
	photos.Repository
	mu  sync.Mutex
	m   map[string]*models.Photo
	sum *int64

	// beforeMark runs before a conditional transition and may change state
	// to simulate a concurrent writer.
	beforeMark func(p *models.Photo)
	// markErr makes MarkUploaded fail for the given ids.
	markErr map[string]error

	listLimit, listOffset int
	createErr             error
	deleteErr             error
	deleted               []string
}

func (f *fakePhotosRepo) Create(ctx context.Context, p *models.Photo) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *p
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	f.m[p.ID] = &cp
	return nil
}

func (f *fakePhotosRepo) GetByIDAndUser(ctx context.Context, id, userID string) (*models.Photo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.m[id]
	if !ok || p.UserID != userID {
		return nil, common.ErrorNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakePhotosRepo) transition(id string, to models.PhotoStatus, msg *string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.m[id]
	if !ok {
		return false
	}
	if f.beforeMark != nil {
		f.beforeMark(p)
	}
	if p.Status != models.PhotoStatusPending {
		return false
	}
	p.Status = to
	p.ErrorMessage = msg
	return true
}

func (f *fakePhotosRepo) MarkUploaded(ctx context.Context, id string) (bool, error) {
	if err := f.markErr[id]; err != nil {
		return false, err
	}
	return f.transition(id, models.PhotoStatusUploaded, nil), nil
}

func (f *fakePhotosRepo) MarkFailed(ctx context.Context, id, message string) (bool, error) {
	return f.transition(id, models.PhotoStatusFailed, &message), nil
}

func (f *fakePhotosRepo) ListUploaded(ctx context.Context, userID string, limit, offset int) ([]*models.Photo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listLimit, f.listOffset = limit, offset
	var out []*models.Photo
	for _, p := range f.m {
		if p.UserID == userID && p.Status == models.PhotoStatusUploaded {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakePhotosRepo) CountUploaded(ctx context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, p := range f.m {
		if p.UserID == userID && p.Status == models.PhotoStatusUploaded {
			n++
		}
	}
	return n, nil
}

func (f *fakePhotosRepo) ListByBatch(ctx context.Context, batchID, userID string) ([]*models.Photo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Photo
	for _, p := range f.m {
		if p.BatchID == batchID && p.UserID == userID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakePhotosRepo) Count(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.m)), nil
}

func (f *fakePhotosRepo) SumFileSizes(ctx context.Context) (*int64, error) {
	return f.sum, nil
}

func (f *fakePhotosRepo) UpdateTags(ctx context.Context, id, userID string, tags []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.m[id]
	if !ok || p.UserID != userID {
		return common.ErrorNotFound
	}
	p.Tags = tags
	return nil
}

func (f *fakePhotosRepo) Delete(ctx context.Context, id, userID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.m[id]; !ok || p.UserID != userID {
		return common.ErrorNotFound
	}
	delete(f.m, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakePhotosRepo) put(p *models.Photo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.m[p.ID] = p
}

func (f *fakePhotosRepo) get(id string) models.Photo {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.m[id]
}

type fakeRepoManager struct {
	repomanager.RepositoryManager
	u *fakeUsersRepo
	b *fakeBatchesRepo
	p *fakePhotosRepo
}

func (m *fakeRepoManager) Users(db dbx.DBTX) users.Repository     { return m.u }
func (m *fakeRepoManager) Batches(db dbx.DBTX) batches.Repository { return m.b }
func (m *fakeRepoManager) Photos(db dbx.DBTX) photos.Repository   { return m.p }

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{
		u: &fakeUsersRepo{ids: map[string]bool{"u1": true, "u2": true}},
		b: &fakeBatchesRepo{m: map[string]*models.UploadBatch{}},
		p: &fakePhotosRepo{m: map[string]*models.Photo{}},
	}
}

type fakeGateway struct {
	storage.Gateway
	objects    map[string]int64
	headErr    error
	presignErr error
	deleteErr  error
	deleted    []string
}

func (g *fakeGateway) PresignPut(ctx context.Context, ownerID, key string) (string, error) {
	if g.presignErr != nil {
		return "", g.presignErr
	}
	return "https://s3.test/put/" + key, nil
}

func (g *fakeGateway) PresignGet(ctx context.Context, ownerID, key string) (string, error) {
	if g.presignErr != nil {
		return "", g.presignErr
	}
	return "https://s3.test/get/" + key, nil
}

func (g *fakeGateway) Exists(ctx context.Context, ownerID, key string) (bool, error) {
	if g.headErr != nil {
		return false, g.headErr
	}
	_, ok := g.objects[key]
	return ok, nil
}

func (g *fakeGateway) SizeOf(ctx context.Context, ownerID, key string) (int64, error) {
	if g.headErr != nil {
		return 0, g.headErr
	}
	n, ok := g.objects[key]
	if !ok {
		return 0, storage.ErrObjectNotFound
	}
	return n, nil
}

func (g *fakeGateway) Delete(ctx context.Context, ownerID, key string) error {
	g.deleted = append(g.deleted, key)
	return g.deleteErr
}

// -------- helpers --------

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	return cfg
}

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

// expectTx registers n committed transactions.
func expectTx(mock sqlmock.Sqlmock, n int) {
	for i := 0; i < n; i++ {
		mock.ExpectBegin()
		mock.ExpectCommit()
	}
}

// expectBatchTx registers the commit transaction of BatchComplete: one
// savepoint per verified item, rolled back for the item positions in failing.
func expectBatchTx(mock sqlmock.Sqlmock, items int, failing ...int) {
	failed := map[int]bool{}
	for _, i := range failing {
		failed[i] = true
	}
	mock.ExpectBegin()
	for i := 0; i < items; i++ {
		mock.ExpectExec(regexp.QuoteMeta("SAVEPOINT batch_item")).WillReturnResult(sqlmock.NewResult(0, 0))
		if failed[i] {
			mock.ExpectExec(regexp.QuoteMeta("ROLLBACK TO SAVEPOINT batch_item")).WillReturnResult(sqlmock.NewResult(0, 0))
		} else {
			mock.ExpectExec(regexp.QuoteMeta("RELEASE SAVEPOINT batch_item")).WillReturnResult(sqlmock.NewResult(0, 0))
		}
	}
	mock.ExpectCommit()
}

type uploadFixture struct {
	svc  *UploadService
	m    *fakeRepoManager
	gw   *fakeGateway
	mock sqlmock.Sqlmock
}

func newUploadFixture(t *testing.T, cfg *config.Config) *uploadFixture {
	t.Helper()
	db, mock := newSQLMockDB(t)
	f := newUploadFixtureWithDB(t, cfg, db)
	f.mock = mock
	return f
}

// newSQLiteDB returns an in-memory database that accepts real transactions
// and savepoints from concurrent callers. The fake repositories keep all
// state, so every connection may see its own empty database.
func newSQLiteDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newUploadFixtureWithDB(t *testing.T, cfg *config.Config, db *sql.DB) *uploadFixture {
	t.Helper()
	m := newFakeRepoManager()
	gw := &fakeGateway{objects: map[string]int64{}}
	limits := NewLimitsService(db, m, cfg, logging.Nop())
	svc := NewUploadService(db, m, gw, limits, cfg, logging.Nop())
	svc.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return &uploadFixture{svc: svc, m: m, gw: gw}
}

// seedPhoto stores a photo in batch b1 owned by u1 and makes sure the batch
// exists with a matching total.
func (f *uploadFixture) seedPhoto(id string, status models.PhotoStatus, size int64) *models.Photo {
	if _, ok := f.m.b.m["b1"]; !ok {
		f.m.b.m["b1"] = &models.UploadBatch{ID: "b1", UserID: "u1"}
	}
	f.m.b.m["b1"].TotalCount++
	p := &models.Photo{
		ID:               id,
		UserID:           "u1",
		BatchID:          "b1",
		StorageKey:       "u1/1700000000000_" + id + "_" + id + ".jpg",
		OriginalFilename: id + ".jpg",
		FileSizeBytes:    size,
		Status:           status,
		CreatedAt:        time.Now(),
	}
	f.m.p.put(p)
	return p
}
