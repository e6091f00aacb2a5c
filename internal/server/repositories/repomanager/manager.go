package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/draftkeeper/internal/dbx"
	"github.com/dmitrijs2005/draftkeeper/internal/server/repositories/auditlog"
	"github.com/dmitrijs2005/draftkeeper/internal/server/repositories/drafts"
	"github.com/dmitrijs2005/draftkeeper/internal/server/repositories/leases"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Drafts(db dbx.DBTX) drafts.Repository
	DraftsTx(db *sql.DB) drafts.Runner
	Leases(db dbx.DBTX) leases.Repository
	AuditLog(db dbx.DBTX) auditlog.Repository
}
