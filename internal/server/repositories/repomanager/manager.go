package repomanager

import (
	"context"
	"database/sql"

	"github.com/taskkeeper/taskkeeper/internal/dbx"
	"github.com/taskkeeper/taskkeeper/internal/server/repositories/sessions"
	"github.com/taskkeeper/taskkeeper/internal/server/repositories/users"
)

// RepositoryManager vends repository implementations bound to a DBTX and
// exposes a schema migration hook. Passing a transactional handle yields
// repositories participating in that transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Sessions(db dbx.DBTX) sessions.Repository
}
