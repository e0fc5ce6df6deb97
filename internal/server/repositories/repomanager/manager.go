// Package repomanager vends repositories bound to a DBTX so services can run
// the same repository code on a plain connection or inside a transaction.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/deepesh-reddy/MegaBackend/internal/dbx"
	"github.com/deepesh-reddy/MegaBackend/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
}
