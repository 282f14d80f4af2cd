// Package repomanager wires repositories to a database handle. Services hold
// a RepositoryManager plus a *sql.DB and can rebind the same repositories to
// a transaction inside dbx.WithTx.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/antonkovalev/storysync/internal/dbx"
	"github.com/antonkovalev/storysync/internal/server/migrations"
	"github.com/antonkovalev/storysync/internal/server/repositories/devices"
	"github.com/antonkovalev/storysync/internal/server/repositories/entities"
	"github.com/antonkovalev/storysync/internal/server/repositories/journal"
	"github.com/antonkovalev/storysync/internal/server/repositories/owners"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

type PostgresRepositoryManager struct {
}

func NewPostgresRepositoryManager() RepositoryManager {
	return &PostgresRepositoryManager{}
}

func (m *PostgresRepositoryManager) Entities(db dbx.DBTX) entities.Repository {
	return entities.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Journal(db dbx.DBTX) journal.Repository {
	return journal.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Owners(db dbx.DBTX) owners.Repository {
	return owners.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Devices(db dbx.DBTX) devices.Repository {
	return devices.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}

	if err := goose.UpContext(ctx, db, "."); err != nil {
		return err
	}

	return nil
}
