// Package dbconn opens pooled database handles for the IR FAQ Cloud SQL
// instance, either through the Cloud SQL Go connector or a plain DSN.
package dbconn

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/cloudsqlconn"
	"cloud.google.com/go/cloudsqlconn/postgres/pgxv5"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// cloudSQLDriverName is the database/sql driver registered for connections
// tunneled through the Cloud SQL connector.
const cloudSQLDriverName = "cloudsql-postgres"

// database/sql panics on duplicate driver names, so the connector driver is
// registered at most once per process.
var (
	registerOnce    sync.Once
	registerCleanup func() error
	registerErr     error
)

func registerCloudSQLDriver() (func() error, error) {
	registerOnce.Do(func() {
		registerCleanup, registerErr = pgxv5.RegisterDriver(cloudSQLDriverName, cloudsqlconn.WithLazyRefresh())
	})
	return registerCleanup, registerErr
}

// Config holds Cloud SQL connection details.
type Config struct {
	// Instance is the instance connection name, "project:region:instance".
	Instance string
	// User is the database user.
	User string
	// Password is the database password.
	Password string
	// Database is the database name.
	Database string
}

// buildDSN assembles the keyword/value DSN handed to the registered driver.
// The instance connection name rides in the host field; the connector
// intercepts it and dials the encrypted tunnel instead of a raw endpoint.
func buildDSN(cfg Config) string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.Instance, cfg.User, cfg.Password, cfg.Database)
}

// Open connects to a Cloud SQL instance through the connector and verifies
// the connection with a smoke query. The returned cleanup func tears down the
// connector's background refresh; call it after closing the DB.
func Open(ctx context.Context, cfg Config) (*sql.DB, func() error, error) {
	cleanup, err := registerCloudSQLDriver()
	if err != nil {
		return nil, nil, fmt.Errorf("register cloudsql driver: %w", err)
	}

	db, err := sql.Open(cloudSQLDriverName, buildDSN(cfg))
	if err != nil {
		return nil, nil, fmt.Errorf("open cloudsql connection: %w", err)
	}

	if err := setup(ctx, db); err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, cleanup, nil
}

// OpenDSN connects to a plain postgres endpoint. Used for local development
// and integration tests where no Cloud SQL tunnel is involved.
func OpenDSN(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}
	if err := setup(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func setup(ctx context.Context, db *sql.DB) error {
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(1 * time.Minute)

	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("test connection: %w", err)
	}
	if result != 1 {
		return fmt.Errorf("test connection: unexpected result %d", result)
	}
	return nil
}
