package executor

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/breeze-rmm/docverify/internal/model"
)

// rowCounter is the single database operation the sql executor needs. The
// pgx and database/sql backends both implement it.
type rowCounter interface {
	CountRows(ctx context.Context, table string) (int64, error)
	Close()
}

// SQLExecutor resolves a sql-kind assertion's informal query description
// against the product database. The claim carries prose, not SQL; the
// executor maps it onto a small library of known row-count probes over the
// seeded fixture tables. Descriptions it cannot resolve become skips, not
// failures: an unresolvable claim is not a product regression.
type SQLExecutor struct {
	db rowCounter
}

// NewSQLExecutor connects to databaseURL. postgres:// targets use pgx;
// sqlite:// targets use database/sql with the modernc driver, matching the
// two backends a Breeze dev deployment runs on.
func NewSQLExecutor(ctx context.Context, databaseURL string) (*SQLExecutor, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		pool, err := pgxpool.New(ctx, databaseURL)
		if err != nil {
			return nil, eris.Wrap(err, "sql executor: connect postgres")
		}
		return &SQLExecutor{db: &pgxCounter{pool: pool}}, nil
	case strings.HasPrefix(databaseURL, "sqlite://"):
		dsn := strings.TrimPrefix(databaseURL, "sqlite://")
		db, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, eris.Wrap(err, "sql executor: open sqlite")
		}
		return &SQLExecutor{db: &stdCounter{db: db}}, nil
	default:
		return nil, eris.Errorf("sql executor: unsupported database url scheme in %q", databaseURL)
	}
}

// newSQLExecutorWithCounter is the test seam.
func newSQLExecutorWithCounter(db rowCounter) *SQLExecutor {
	return &SQLExecutor{db: db}
}

// Close releases the connection pool.
func (e *SQLExecutor) Close() {
	if e.db != nil {
		e.db.Close()
	}
}

// Execute implements Executor. target is unused; the executor holds its own
// connection for the run.
func (e *SQLExecutor) Execute(ctx context.Context, a model.Assertion, target string, env model.EnvContext) model.AssertionResult {
	test, ok := a.Test.(model.SQLTest)
	if !ok {
		return result(a, model.StatusError, fmt.Sprintf("assertion %s: test is not sql-shaped", a.ID))
	}

	table := resolveTable(test.Query)
	if table == "" {
		return result(a, model.StatusSkip, fmt.Sprintf("no known probe for query description %q", test.Query))
	}

	count, err := e.db.CountRows(ctx, table)
	if err != nil {
		return result(a, model.StatusError, fmt.Sprintf("count %s: %v", table, err))
	}

	if reason := checkCount(test.Expect, table, count); reason != "" {
		return result(a, model.StatusFail, reason)
	}
	return result(a, model.StatusPass, "")
}

// probeTables maps query-description keywords to fixture tables, most
// specific first.
var probeTables = []struct {
	keyword string
	table   string
}{
	{"alert rule", "alert_rules"},
	{"enrollment key", "sites"},
	{"discovery profile", "discovery_profiles"},
	{"patch polic", "patch_policies"},
	{"organization", "organizations"},
	{"site", "sites"},
	{"agent", "agents"},
	{"device", "agents"},
	{"alert", "alerts"},
	{"script", "scripts"},
	{"automation", "automations"},
	{"polic", "policies"},
	{"report", "reports"},
	{"backup", "backups"},
	{"user", "users"},
	{"admin", "users"},
	{"account", "users"},
}

// resolveTable maps an informal query description to a table, or "".
func resolveTable(query string) string {
	q := strings.ToLower(query)
	for _, p := range probeTables {
		if strings.Contains(q, p.keyword) {
			return p.table
		}
	}
	return ""
}

var (
	exactCountRe = regexp.MustCompile(`exactly\s+(\d+)`)
	// Word boundaries keep "nonempty" from matching "none" or "empty".
	zeroRowsRe = regexp.MustCompile(`\b(?:no rows|none|zero|empty)\b`)
)

// checkCount interprets the expected-result description against a row count.
// Returns "" when satisfied. An expectation that names no recognizable
// cardinality defaults to "at least one row", which matches how the
// extraction instruction phrases existence claims.
func checkCount(expect, table string, count int64) string {
	e := strings.ToLower(expect)

	if m := exactCountRe.FindStringSubmatch(e); m != nil {
		var want int64
		fmt.Sscanf(m[1], "%d", &want)
		if count != want {
			return fmt.Sprintf("expected exactly %d rows in %s, got %d", want, table, count)
		}
		return ""
	}

	if zeroRowsRe.MatchString(e) {
		if count != 0 {
			return fmt.Sprintf("expected no rows in %s, got %d", table, count)
		}
		return ""
	}

	if count < 1 {
		return fmt.Sprintf("expected at least one row in %s, got 0", table)
	}
	return ""
}

// pgxQuerier is the pool surface pgxCounter needs; satisfied by
// *pgxpool.Pool and pgxmock.PgxPoolIface.
type pgxQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// pgxCounter counts rows via a pgx pool.
type pgxCounter struct {
	pool pgxQuerier
}

// validTable guards the identifier interpolation; probe tables are a fixed
// set but the guard keeps the invariant local.
var validTable = regexp.MustCompile(`^[a-z_]+$`)

func (c *pgxCounter) CountRows(ctx context.Context, table string) (int64, error) {
	if !validTable.MatchString(table) {
		return 0, eris.Errorf("invalid table name %q", table)
	}
	var count int64
	err := c.pool.QueryRow(ctx, fmt.Sprintf("SELECT count(*) FROM %s", table)).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (c *pgxCounter) Close() {
	c.pool.Close()
}

// stdCounter counts rows via database/sql (sqlite backend).
type stdCounter struct {
	db *sql.DB
}

func (c *stdCounter) CountRows(ctx context.Context, table string) (int64, error) {
	if !validTable.MatchString(table) {
		return 0, eris.Errorf("invalid table name %q", table)
	}
	var count int64
	err := c.db.QueryRowContext(ctx, fmt.Sprintf("SELECT count(*) FROM %s", table)).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (c *stdCounter) Close() {
	if err := c.db.Close(); err != nil {
		zap.L().Warn("sql executor: close sqlite", zap.Error(err))
	}
}
