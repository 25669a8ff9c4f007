// Package diag runs the fixed sequence of read-only checks used to verify a
// freshly provisioned IR FAQ database: server version, table inventory, row
// counts, the pg_trgm extension, and a few sample rows.
package diag

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

const (
	companySampleLimit = 3
	qaSampleLimit      = 2
)

// Query text for each check. Kept as single-line constants so failures log the
// exact statement that ran.
const (
	queryVersion    = "SELECT version()"
	queryTables     = "SELECT table_name FROM information_schema.tables WHERE table_schema = 'public' ORDER BY table_name"
	queryCompanies  = "SELECT COUNT(*) FROM companies"
	queryQACount    = "SELECT COUNT(*) FROM qa_data"
	queryExtensions = "SELECT extname FROM pg_extension WHERE extname = 'pg_trgm'"
	querySampleCo   = "SELECT name, ticker, sector FROM companies WHERE is_active = true LIMIT 3"
	querySampleQA   = "SELECT question, category FROM qa_data WHERE is_active = true LIMIT 2"
)

// Querier is the read-only query surface the checks need. *sql.DB satisfies it.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Company is a sample row from the companies table.
type Company struct {
	Name   string
	Ticker string
	Sector string
}

// QAEntry is a sample row from the qa_data table.
type QAEntry struct {
	Question string
	Category string
}

// Report collects the results of a completed check sequence.
type Report struct {
	Version      string
	Tables       []string
	CompanyCount int
	QACount      int
	Extensions   []string
	Companies    []Company
	QAEntries    []QAEntry
}

// Runner executes the check sequence against a database, printing each result
// as it completes.
type Runner struct {
	q   Querier
	out io.Writer
	log *slog.Logger
}

// NewRunner creates a Runner that queries q and writes results to out.
func NewRunner(q Querier, out io.Writer, log *slog.Logger) *Runner {
	return &Runner{q: q, out: out, log: log}
}

// Run executes the seven checks in order. The first failing check aborts the
// rest; partial results are discarded. Each check's result is printed to the
// runner's writer as soon as it completes.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	report := &Report{}

	steps := []struct {
		name string
		fn   func(context.Context, *Report) error
	}{
		{"server version", r.checkVersion},
		{"table inventory", r.checkTables},
		{"companies count", r.checkCompanyCount},
		{"qa_data count", r.checkQACount},
		{"pg_trgm extension", r.checkExtensions},
		{"sample companies", r.checkSampleCompanies},
		{"sample qa entries", r.checkSampleQA},
	}

	for _, step := range steps {
		r.log.Debug("running check", "check", step.name)
		if err := step.fn(ctx, report); err != nil {
			return nil, fmt.Errorf("%s check: %w", step.name, err)
		}
	}

	return report, nil
}

func (r *Runner) checkVersion(ctx context.Context, report *Report) error {
	if err := r.q.QueryRowContext(ctx, queryVersion).Scan(&report.Version); err != nil {
		return err
	}
	fmt.Fprintf(r.out, "✅ PostgreSQL Version: %s\n", report.Version)
	return nil
}

func (r *Runner) checkTables(ctx context.Context, report *Report) error {
	tables, err := r.queryStrings(ctx, queryTables)
	if err != nil {
		return err
	}
	report.Tables = tables
	fmt.Fprintf(r.out, "✅ Tables created: %s\n", strings.Join(tables, ", "))
	return nil
}

func (r *Runner) checkCompanyCount(ctx context.Context, report *Report) error {
	if err := r.q.QueryRowContext(ctx, queryCompanies).Scan(&report.CompanyCount); err != nil {
		return err
	}
	fmt.Fprintf(r.out, "✅ Companies in database: %d\n", report.CompanyCount)
	return nil
}

func (r *Runner) checkQACount(ctx context.Context, report *Report) error {
	if err := r.q.QueryRowContext(ctx, queryQACount).Scan(&report.QACount); err != nil {
		return err
	}
	fmt.Fprintf(r.out, "✅ Q&A entries in database: %d\n", report.QACount)
	return nil
}

// checkExtensions reports pg_trgm if installed. A database without the
// extension yields an empty list, not an error.
func (r *Runner) checkExtensions(ctx context.Context, report *Report) error {
	extensions, err := r.queryStrings(ctx, queryExtensions)
	if err != nil {
		return err
	}
	report.Extensions = extensions
	fmt.Fprintf(r.out, "✅ Extensions installed: %s\n", strings.Join(extensions, ", "))
	return nil
}

func (r *Runner) checkSampleCompanies(ctx context.Context, report *Report) error {
	rows, err := r.q.QueryContext(ctx, querySampleCo)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var c Company
		var sector sql.NullString
		if err := rows.Scan(&c.Name, &c.Ticker, &sector); err != nil {
			return err
		}
		// sector is nullable in the schema; show NULL as empty.
		c.Sector = sector.String
		report.Companies = append(report.Companies, c)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	fmt.Fprintln(r.out, "✅ Sample companies:")
	renderCompanies(r.out, report.Companies)
	return nil
}

func (r *Runner) checkSampleQA(ctx context.Context, report *Report) error {
	rows, err := r.q.QueryContext(ctx, querySampleQA)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var qa QAEntry
		var category sql.NullString
		if err := rows.Scan(&qa.Question, &category); err != nil {
			return err
		}
		// category is nullable in the schema; show NULL as empty.
		qa.Category = category.String
		report.QAEntries = append(report.QAEntries, qa)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	fmt.Fprintln(r.out, "✅ Sample Q&A entries:")
	renderQAEntries(r.out, report.QAEntries)
	return nil
}

// queryStrings runs a single-column query and collects the values.
func (r *Runner) queryStrings(ctx context.Context, query string) ([]string, error) {
	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}
