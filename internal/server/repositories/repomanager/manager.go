package repomanager

import (
	"context"
	"database/sql"

	"github.com/antonkovalev/storysync/internal/dbx"
	"github.com/antonkovalev/storysync/internal/server/repositories/devices"
	"github.com/antonkovalev/storysync/internal/server/repositories/entities"
	"github.com/antonkovalev/storysync/internal/server/repositories/journal"
	"github.com/antonkovalev/storysync/internal/server/repositories/owners"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Entities(db dbx.DBTX) entities.Repository
	Journal(db dbx.DBTX) journal.Repository
	Owners(db dbx.DBTX) owners.Repository
	Devices(db dbx.DBTX) devices.Repository
}
