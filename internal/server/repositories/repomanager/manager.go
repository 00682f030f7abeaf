package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/rapidphotos/internal/dbx"
	"github.com/dmitrijs2005/rapidphotos/internal/server/repositories/batches"
	"github.com/dmitrijs2005/rapidphotos/internal/server/repositories/photos"
	"github.com/dmitrijs2005/rapidphotos/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to either the pool or a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Batches(db dbx.DBTX) batches.Repository
	Photos(db dbx.DBTX) photos.Repository
}
