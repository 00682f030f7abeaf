package batches

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/rapidphotos/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewPostgresRepository(db), mock, db
}

func TestCreate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`^INSERT INTO upload_batches \(id, user_id\) VALUES \(\$1, \$2\)$`).
		WithArgs("b1", "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), "b1", "u1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateIfAbsent_ConflictIsNotAnError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)INSERT INTO upload_batches \(id, user_id\).*ON CONFLICT \(id\) DO NOTHING`
	mock.ExpectExec(q).WithArgs("b1", "u1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("b1", "u1").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.CreateIfAbsent(context.Background(), "b1", "u1"))
	require.NoError(t, repo.CreateIfAbsent(context.Background(), "b1", "u1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateIfAbsent_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`ON CONFLICT`).WillReturnError(errors.New("db down"))

	err := repo.CreateIfAbsent(context.Background(), "b1", "u1")
	require.ErrorContains(t, err, "db error: db down")
}

func TestGetByIDAndUser(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	q := `(?s)SELECT id, user_id, total_count, completed_count, failed_count, created_at, updated_at\s+FROM upload_batches\s+WHERE id = \$1 AND user_id = \$2`
	mock.ExpectQuery(q).WithArgs("b1", "u1").WillReturnRows(
		sqlmock.NewRows([]string{"id", "user_id", "total_count", "completed_count", "failed_count", "created_at", "updated_at"}).
			AddRow("b1", "u1", 3, 1, 1, now, now))
	mock.ExpectQuery(q).WithArgs("b1", "u2").WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(q).WithArgs("b1", "u3").WillReturnError(errors.New("db down"))

	b, err := repo.GetByIDAndUser(context.Background(), "b1", "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, b.TotalCount)
	assert.Equal(t, 1, b.CompletedCount)
	assert.Equal(t, 1, b.FailedCount)

	_, err = repo.GetByIDAndUser(context.Background(), "b1", "u2")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	_, err = repo.GetByIDAndUser(context.Background(), "b1", "u3")
	assert.ErrorContains(t, err, "db error")
}

func TestIncrements_AreSingleAtomicStatements(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`^UPDATE upload_batches SET total_count = total_count \+ \$2, updated_at = now\(\) WHERE id = \$1$`).
		WithArgs("b1", 1).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`^UPDATE upload_batches SET completed_count = completed_count \+ \$2, updated_at = now\(\) WHERE id = \$1$`).
		WithArgs("b1", 5).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`^UPDATE upload_batches SET failed_count = failed_count \+ \$2, updated_at = now\(\) WHERE id = \$1$`).
		WithArgs("b1", 1).WillReturnResult(sqlmock.NewResult(0, 1))

	ctx := context.Background()
	require.NoError(t, repo.IncrementTotal(ctx, "b1", 1))
	require.NoError(t, repo.IncrementCompleted(ctx, "b1", 5))
	require.NoError(t, repo.IncrementFailed(ctx, "b1", 1))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIncrement_MissingBatch(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE upload_batches SET total_count`).WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.IncrementTotal(context.Background(), "ghost", 1)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestIncrement_RejectsNonPositive(t *testing.T) {
	repo, _, db := newRepoWithMock(t)
	defer db.Close()

	assert.Error(t, repo.IncrementCompleted(context.Background(), "b1", 0))
}

func TestLockForUpdate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `SELECT id FROM upload_batches WHERE id = \$1 FOR UPDATE`
	mock.ExpectQuery(q).WithArgs("b1").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("b1"))
	mock.ExpectQuery(q).WithArgs("ghost").WillReturnError(sql.ErrNoRows)

	require.NoError(t, repo.LockForUpdate(context.Background(), "b1"))
	assert.ErrorIs(t, repo.LockForUpdate(context.Background(), "ghost"), common.ErrorNotFound)
}
