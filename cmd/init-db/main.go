// Command init-db deploys the IR FAQ database schema to Cloud SQL by piping
// it through `gcloud beta sql connect`.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	flag "github.com/spf13/pflag"

	"github.com/TIshow/ir-faq-mvp/internal/schema"
)

const (
	defaultInstance   = "ir-faq-db"
	defaultUser       = "ir_app_user"
	defaultDatabase   = "ir_faq"
	defaultSchemaFile = "database/schema.sql"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type config struct {
	Instance   string
	User       string
	Database   string
	Password   string
	SchemaFile string
	GcloudPath string
	Timeout    time.Duration
	Verbose    bool
}

func run() error {
	_ = godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log := newLogger(cfg.Verbose)

	fmt.Println("🚀 Initializing IR FAQ Database Schema...")
	fmt.Println("🚀 Deploying schema using gcloud beta sql connect...")

	deployer := schema.NewDeployer(schema.DeployerConfig{
		GcloudPath: cfg.GcloudPath,
		Instance:   cfg.Instance,
		User:       cfg.User,
		Database:   cfg.Database,
		Password:   cfg.Password,
		SchemaFile: cfg.SchemaFile,
		Timeout:    cfg.Timeout,
	}, log)

	fmt.Println("📊 Executing schema.sql...")
	result, err := deployer.Deploy(context.Background())
	if err != nil {
		fmt.Println("💥 Database initialization failed!")
		return err
	}

	fmt.Println("✅ Database schema deployed successfully!")
	if result.Stdout != "" {
		fmt.Println("📋 Output:")
		fmt.Println(result.Stdout)
	}
	fmt.Println("🎉 Database initialization completed!")
	return nil
}

func loadConfig() (config, error) {
	var cfg config

	flag.StringVar(&cfg.Instance, "instance", getenv("CLOUDSQL_INSTANCE", defaultInstance), "Cloud SQL instance name (env: CLOUDSQL_INSTANCE)")
	flag.StringVar(&cfg.User, "user", getenv("DB_USER", defaultUser), "database user (env: DB_USER)")
	flag.StringVar(&cfg.Database, "database", getenv("DB_NAME", defaultDatabase), "database name (env: DB_NAME)")
	flag.StringVar(&cfg.Password, "password", os.Getenv("DB_PASSWORD"), "database password (env: DB_PASSWORD)")
	flag.StringVar(&cfg.SchemaFile, "schema-file", getenv("SCHEMA_FILE", defaultSchemaFile), "path to the schema SQL file (env: SCHEMA_FILE)")
	flag.StringVar(&cfg.GcloudPath, "gcloud", getenv("GCLOUD_PATH", "gcloud"), "gcloud binary to invoke (env: GCLOUD_PATH)")
	flag.DurationVar(&cfg.Timeout, "timeout", 0, "gcloud invocation timeout (0 = no timeout)")
	flag.BoolVar(&cfg.Verbose, "verbose", false, "verbose mode - show debug logs")

	flag.Parse()

	if cfg.Password == "" {
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
