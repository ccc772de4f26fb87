package database

import (
	"context"
	"fmt"
	"io/fs"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
)

// Migrate applies all pending migrations from the embedded filesystem.
func Migrate(ctx context.Context, db *sqlx.DB, fsys fs.FS) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	goose.SetBaseFS(fsys)

	if err := goose.UpContext(ctx, db.DB, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// MigrationVersion reports the current schema version.
func MigrationVersion(ctx context.Context, db *sqlx.DB) (int64, error) {
	version, err := goose.GetDBVersionContext(ctx, db.DB)
	if err != nil {
		return 0, fmt.Errorf("get migration version: %w", err)
	}
	return version, nil
}
