// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package storage

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("storage: loading embedded migrations: %w", err)
	}

	db, err := pgx.WithInstance(ctx, pool)
	if err != nil {
		return fmt.Errorf("storage: opening migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "pgx", db)
	if err != nil {
		return fmt.Errorf("storage: building migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("storage: running migrations: %w", err)
	}
	return nil
}
