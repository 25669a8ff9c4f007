// Package schema deploys the IR FAQ database schema to a Cloud SQL instance
// by feeding it through `gcloud beta sql connect`.
package schema

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

const defaultGcloudPath = "gcloud"

// CommandRunner abstracts the gcloud subprocess for testability.
type CommandRunner interface {
	Run(ctx context.Context, name string, args []string, stdin io.Reader) (stdout, stderr string, err error)
}

// execRunner runs commands with exec.CommandContext. A zero timeout leaves
// the command without a deadline of its own.
type execRunner struct {
	timeout time.Duration
}

func (r *execRunner) Run(ctx context.Context, name string, args []string, stdin io.Reader) (string, string, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf
	if stdin != nil {
		cmd.Stdin = stdin
	}

	err := cmd.Run()
	return stdoutBuf.String(), stderrBuf.String(), err
}

// DeployerConfig holds configuration for the Deployer.
type DeployerConfig struct {
	// GcloudPath is the gcloud binary to invoke (default "gcloud").
	GcloudPath string
	// Instance is the Cloud SQL instance name passed to `gcloud beta sql connect`.
	Instance string
	// User is the database user.
	User string
	// Database is the database name.
	Database string
	// Password is written as the first stdin line; gcloud prompts for it.
	Password string
	// SchemaFile is the path to the SQL file to apply.
	SchemaFile string
	// Timeout bounds the gcloud invocation. Zero means no timeout.
	Timeout time.Duration
	// CommandRunner is optional, for testing.
	CommandRunner CommandRunner
}

// Deployer applies a schema file to a Cloud SQL instance.
type Deployer struct {
	cfg    DeployerConfig
	runner CommandRunner
	log    *slog.Logger
}

// Result holds the output of a successful deployment.
type Result struct {
	// Stdout is the captured output of the gcloud session.
	Stdout string
}

// DeployError carries both captured streams of a failed gcloud invocation.
type DeployError struct {
	Stdout string
	Stderr string
	Err    error
}

func (e *DeployError) Error() string {
	return fmt.Sprintf("gcloud sql connect failed: %v\nSTDOUT: %s\nSTDERR: %s", e.Err, e.Stdout, e.Stderr)
}

func (e *DeployError) Unwrap() error {
	return e.Err
}

// NewDeployer creates a Deployer with the given config.
func NewDeployer(cfg DeployerConfig, log *slog.Logger) *Deployer {
	if cfg.GcloudPath == "" {
		cfg.GcloudPath = defaultGcloudPath
	}
	runner := cfg.CommandRunner
	if runner == nil {
		runner = &execRunner{timeout: cfg.Timeout}
	}
	return &Deployer{
		cfg:    cfg,
		runner: runner,
		log:    log,
	}
}

// Deploy reads the schema file and executes it against the instance through an
// interactive gcloud session. The password is written as the first stdin line,
// followed by the raw SQL. The schema file is read before the subprocess is
// launched; an unreadable file never invokes gcloud.
//
// Running arbitrary SQL is not idempotent by itself; repeat runs are only safe
// when the schema file guards its DDL with IF NOT EXISTS.
func (d *Deployer) Deploy(ctx context.Context) (*Result, error) {
	schemaSQL, err := os.ReadFile(d.cfg.SchemaFile)
	if err != nil {
		return nil, fmt.Errorf("read schema file %s: %w", d.cfg.SchemaFile, err)
	}

	args := []string{
		"beta", "sql", "connect", d.cfg.Instance,
		"--user=" + d.cfg.User,
		"--database=" + d.cfg.Database,
	}

	d.log.Debug("executing schema", "file", d.cfg.SchemaFile, "instance", d.cfg.Instance, "bytes", len(schemaSQL))

	stdin := strings.NewReader(d.cfg.Password + "\n" + string(schemaSQL))
	stdout, stderr, err := d.runner.Run(ctx, d.cfg.GcloudPath, args, stdin)
	if err != nil {
		return nil, &DeployError{Stdout: stdout, Stderr: stderr, Err: err}
	}

	return &Result{Stdout: stdout}, nil
}
