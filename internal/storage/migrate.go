package storage

import (
	"context"
	"database/sql"
	"fmt"

	"account_service/internal/storage/migrations"

	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/pressly/goose/v3"
)

// RunMigrations applies the embedded goose migrations to the database at
// DbURL. The pool used by PostgresStorage is not involved; goose needs a
// database/sql handle.
func RunMigrations(ctx context.Context, DbURL string) error {
	const op = "storage.RunMigrations"

	db, err := sql.Open("pgx", DbURL)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer db.Close()

	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
