package schema

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockRunCall records a single call to the mock runner.
type MockRunCall struct {
	Name  string
	Args  []string
	Stdin string
}

// MockCommandRunner implements CommandRunner for testing.
type MockCommandRunner struct {
	RunFunc func(ctx context.Context, name string, args []string, stdin io.Reader) (string, string, error)
	Calls   []MockRunCall
}

// Run implements CommandRunner.
func (m *MockCommandRunner) Run(ctx context.Context, name string, args []string, stdin io.Reader) (string, string, error) {
	var stdinContent string
	if stdin != nil {
		data, _ := io.ReadAll(stdin)
		stdinContent = string(data)
	}
	m.Calls = append(m.Calls, MockRunCall{
		Name:  name,
		Args:  args,
		Stdin: stdinContent,
	})
	if m.RunFunc != nil {
		return m.RunFunc(ctx, name, args, nil)
	}
	return "", "", nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeSchemaFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "schema.sql")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestDeployer_Deploy_Success(t *testing.T) {
	mockRunner := &MockCommandRunner{
		RunFunc: func(_ context.Context, _ string, _ []string, _ io.Reader) (string, string, error) {
			return "CREATE TABLE\nCREATE INDEX\n", "", nil
		},
	}

	d := NewDeployer(DeployerConfig{
		Instance:      "ir-faq-db",
		User:          "ir_app_user",
		Database:      "ir_faq",
		Password:      "secret",
		SchemaFile:    writeSchemaFile(t, "CREATE TABLE IF NOT EXISTS companies (id SERIAL PRIMARY KEY);\n"),
		CommandRunner: mockRunner,
	}, testLogger())

	result, err := d.Deploy(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE\nCREATE INDEX\n", result.Stdout)

	require.Len(t, mockRunner.Calls, 1)
	call := mockRunner.Calls[0]
	assert.Equal(t, "gcloud", call.Name)
	assert.Equal(t, []string{
		"beta", "sql", "connect", "ir-faq-db",
		"--user=ir_app_user",
		"--database=ir_faq",
	}, call.Args)
}

func TestDeployer_Deploy_StdinLayout(t *testing.T) {
	mockRunner := &MockCommandRunner{}
	schemaSQL := "CREATE EXTENSION IF NOT EXISTS pg_trgm;\nCREATE TABLE IF NOT EXISTS qa_data (id SERIAL);\n"

	d := NewDeployer(DeployerConfig{
		Instance:      "ir-faq-db",
		User:          "ir_app_user",
		Database:      "ir_faq",
		Password:      "hunter2",
		SchemaFile:    writeSchemaFile(t, schemaSQL),
		CommandRunner: mockRunner,
	}, testLogger())

	_, err := d.Deploy(context.Background())
	require.NoError(t, err)

	require.Len(t, mockRunner.Calls, 1)
	// Password on the first line, raw SQL immediately after.
	assert.Equal(t, "hunter2\n"+schemaSQL, mockRunner.Calls[0].Stdin)
}

func TestDeployer_Deploy_MissingSchemaFile(t *testing.T) {
	mockRunner := &MockCommandRunner{}

	d := NewDeployer(DeployerConfig{
		Instance:      "ir-faq-db",
		User:          "ir_app_user",
		Database:      "ir_faq",
		Password:      "secret",
		SchemaFile:    filepath.Join(t.TempDir(), "does-not-exist.sql"),
		CommandRunner: mockRunner,
	}, testLogger())

	_, err := d.Deploy(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)

	// gcloud must never be invoked when the file is unreadable.
	assert.Empty(t, mockRunner.Calls)
}

func TestDeployer_Deploy_NonZeroExit(t *testing.T) {
	execErr := errors.New("exit status 1")
	mockRunner := &MockCommandRunner{
		RunFunc: func(_ context.Context, _ string, _ []string, _ io.Reader) (string, string, error) {
			return "partial output", "ERROR: (gcloud.beta.sql.connect) authentication failed", execErr
		},
	}

	d := NewDeployer(DeployerConfig{
		Instance:      "ir-faq-db",
		User:          "ir_app_user",
		Database:      "ir_faq",
		Password:      "wrong",
		SchemaFile:    writeSchemaFile(t, "SELECT 1;\n"),
		CommandRunner: mockRunner,
	}, testLogger())

	_, err := d.Deploy(context.Background())
	require.Error(t, err)

	var deployErr *DeployError
	require.ErrorAs(t, err, &deployErr)
	assert.Equal(t, "partial output", deployErr.Stdout)
	assert.Equal(t, "ERROR: (gcloud.beta.sql.connect) authentication failed", deployErr.Stderr)
	assert.ErrorIs(t, err, execErr)

	// Both captured streams surface in the message.
	assert.Contains(t, err.Error(), "partial output")
	assert.Contains(t, err.Error(), "authentication failed")
}

func TestDeployer_DefaultGcloudPath(t *testing.T) {
	mockRunner := &MockCommandRunner{}

	d := NewDeployer(DeployerConfig{
		GcloudPath:    "/opt/google-cloud-sdk/bin/gcloud",
		Instance:      "ir-faq-db",
		User:          "ir_app_user",
		Database:      "ir_faq",
		Password:      "secret",
		SchemaFile:    writeSchemaFile(t, "SELECT 1;\n"),
		CommandRunner: mockRunner,
	}, testLogger())

	_, err := d.Deploy(context.Background())
	require.NoError(t, err)
	require.Len(t, mockRunner.Calls, 1)
	assert.Equal(t, "/opt/google-cloud-sdk/bin/gcloud", mockRunner.Calls[0].Name)
}
