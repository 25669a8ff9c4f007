// Command test-connection connects to the IR FAQ Cloud SQL instance and runs
// the diagnostic check sequence against it.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	flag "github.com/spf13/pflag"

	"github.com/TIshow/ir-faq-mvp/internal/dbconn"
	"github.com/TIshow/ir-faq-mvp/internal/diag"
)

const (
	defaultInstance = "hallowed-trail-462613-v1:us-central1:ir-faq-db"
	defaultUser     = "ir_app_user"
	defaultDatabase = "ir_faq"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type config struct {
	Instance string
	User     string
	Database string
	Password string
	DSN      string
	Timeout  time.Duration
	Verbose  bool
}

func run() error {
	_ = godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log := newLogger(cfg.Verbose)

	ctx := context.Background()
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	fmt.Println("🚀 IR FAQ Database Connection Test...")
	fmt.Println("🔗 Testing Cloud SQL connection...")

	db, cleanup, err := connect(ctx, cfg, log)
	if err != nil {
		fmt.Println("💥 Database test failed!")
		return err
	}
	defer func() {
		db.Close()
		if cleanup != nil {
			_ = cleanup()
		}
	}()

	if _, err := diag.NewRunner(db, os.Stdout, log).Run(ctx); err != nil {
		fmt.Println("💥 Database test failed!")
		return err
	}

	fmt.Println("🎉 All database tests passed!")
	fmt.Println("🎉 Database is ready for use!")
	return nil
}

// connect dials either a plain DSN (local development) or the Cloud SQL
// connector tunnel. The cleanup func is nil for plain DSN connections.
func connect(ctx context.Context, cfg config, log *slog.Logger) (*sql.DB, func() error, error) {
	if cfg.DSN != "" {
		log.Debug("connecting via plain DSN")
		db, err := dbconn.OpenDSN(ctx, cfg.DSN)
		return db, nil, err
	}

	log.Debug("connecting via Cloud SQL connector", "instance", cfg.Instance, "database", cfg.Database)
	return dbconn.Open(ctx, dbconn.Config{
		Instance: cfg.Instance,
		User:     cfg.User,
		Password: cfg.Password,
		Database: cfg.Database,
	})
}

func loadConfig() (config, error) {
	var cfg config

	flag.StringVar(&cfg.Instance, "instance-connection-name", getenv("INSTANCE_CONNECTION_NAME", defaultInstance), "Cloud SQL instance connection name, project:region:instance (env: INSTANCE_CONNECTION_NAME)")
	flag.StringVar(&cfg.User, "user", getenv("DB_USER", defaultUser), "database user (env: DB_USER)")
	flag.StringVar(&cfg.Database, "database", getenv("DB_NAME", defaultDatabase), "database name (env: DB_NAME)")
	flag.StringVar(&cfg.Password, "password", os.Getenv("DB_PASSWORD"), "database password (env: DB_PASSWORD)")
	flag.StringVar(&cfg.DSN, "dsn", os.Getenv("DATABASE_DSN"), "plain postgres DSN, bypassing the Cloud SQL connector (env: DATABASE_DSN)")
	flag.DurationVar(&cfg.Timeout, "timeout", 0, "overall timeout (0 = no timeout)")
	flag.BoolVar(&cfg.Verbose, "verbose", false, "verbose mode - show debug logs")

	flag.Parse()

	if cfg.DSN == "" && cfg.Password == "" {
		return config{}, fmt.Errorf("database password is empty (set DB_PASSWORD or --password)")
	}

	return cfg, nil
}

func newLogger(verbose bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level: logLevel,
	}))
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
