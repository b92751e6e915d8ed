//go:build integration

// Package integration runs the lote backend against a real PostgreSQL
// started with testcontainers.
package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/lotes/backend/internal/infrastructure/config"
	"github.com/lotes/backend/internal/infrastructure/migration"
	"github.com/lotes/backend/internal/infrastructure/persistence"
	"github.com/lotes/backend/migrations"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

const (
	testDBName     = "lotes_test"
	testDBUser     = "postgres"
	testDBPassword = "admin123"
)

// container is shared by every test in the package; tests truncate the
// directory table instead of starting their own.
var container *tcpostgres.PostgresContainer

func startPostgres(ctx context.Context) (*tcpostgres.PostgresContainer, error) {
	return tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase(testDBName),
		tcpostgres.WithUsername(testDBUser),
		tcpostgres.WithPassword(testDBPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
}

// databaseConfig points the application config at the container
func databaseConfig(ctx context.Context) (*config.DatabaseConfig, error) {
	host, err := container.Host(ctx)
	if err != nil {
		return nil, err
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		return nil, err
	}
	return &config.DatabaseConfig{
		Driver:       "postgres",
		Host:         host,
		Port:         port.Int(),
		User:         testDBUser,
		Password:     testDBPassword,
		DBName:       testDBName,
		SSLMode:      "disable",
		MaxOpenConns: 10,
		MaxIdleConns: 2,
	}, nil
}

// migrate applies the embedded migrations once for the package
func migrate(ctx context.Context) error {
	cfg, err := databaseConfig(ctx)
	if err != nil {
		return err
	}
	db, err := persistence.NewDatabase(cfg, persistence.Options{})
	if err != nil {
		return err
	}
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	m, err := migration.New(sqlDB, migrations.FS, zap.NewNop())
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil {
		return err
	}
	// Close releases both the migrate source and sqlDB.
	return m.Close()
}

// NewTestDB opens a connection to the shared container with an empty
// directory table.
func NewTestDB(t *testing.T) *persistence.Database {
	t.Helper()
	ctx := context.Background()

	cfg, err := databaseConfig(ctx)
	require.NoError(t, err)
	db, err := persistence.NewDatabase(cfg, persistence.Options{})
	require.NoError(t, err, "Failed to connect to test database")
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.DB.Exec("TRUNCATE TABLE directory_documents").Error)
	return db
}

func mustSetup(ctx context.Context) (func(), error) {
	c, err := startPostgres(ctx)
	if err != nil {
		return nil, fmt.Errorf("start postgres: %w", err)
	}
	container = c
	teardown := func() { _ = c.Terminate(context.Background()) }
	if err := migrate(ctx); err != nil {
		teardown()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return teardown, nil
}
