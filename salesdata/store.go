// Package salesdata provides access to the Contoso sales SQLite database:
// schema introspection for prompt construction, guarded read-only query
// execution for the agent's function tool, and deterministic seeding for
// local development and tests.
package salesdata

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/contoso/salesagent/logging"
)

// TableName is the single fact table queried by the agent.
const TableName = "sales_data"

// Options configure a Store.
type Options struct {
	// ReadOnly opens the database in read-only mode. The agent path should
	// always use this; only the seeder opens read-write.
	ReadOnly bool
	// MaxRows caps the number of rows returned by ExecuteQuery.
	MaxRows int
	// QueryTimeout bounds a single query execution.
	QueryTimeout time.Duration
	// Logger receives query execution logs.
	Logger logging.Logger
}

// Store wraps a SQLite database holding the sales fact table.
type Store struct {
	db     *sql.DB
	path   string
	opts   Options
	logger logging.Logger
}

// QueryResult is the JSON-ready shape returned to the model.
type QueryResult struct {
	Columns   []string         `json:"columns"`
	Rows      []map[string]any `json:"rows"`
	RowCount  int              `json:"row_count"`
	Truncated bool             `json:"truncated,omitempty"`
}

// New opens the sales database at path. By default the connection is
// read-only with a 1000 row cap and a 30 second query timeout.
func New(path string, optFns ...func(o *Options)) (*Store, error) {
	opts := Options{
		ReadOnly:     true,
		MaxRows:      1000,
		QueryTimeout: 30 * time.Second,
		Logger:       logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	dsn := "file:" + path
	if opts.ReadOnly {
		dsn += "?mode=ro"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sales database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to sales database %s: %w", path, err)
	}

	return &Store{db: db, path: path, opts: opts, logger: opts.Logger}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the raw handle for the seeder and tests.
func (s *Store) DB() *sql.DB { return s.db }

// SchemaSummary builds the human/model readable database description injected
// into the agent instructions: column listing plus the distinct values of the
// categorical columns, so the model can produce valid WHERE clauses without
// probing queries.
func (s *Store) SchemaSummary(ctx context.Context) (string, error) {
	var b strings.Builder

	cols, err := s.tableColumns(ctx, TableName)
	if err != nil {
		return "", err
	}

	b.WriteString("Table: " + TableName + "\n")
	b.WriteString("Columns: " + strings.Join(cols, ", ") + "\n")

	categorical := []string{"main_category", "product_type", "region", "year"}
	for _, col := range categorical {
		values, err := s.distinctValues(ctx, col)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "Distinct %s values: %s\n", col, strings.Join(values, ", "))
	}

	return b.String(), nil
}

func (s *Store) tableColumns(ctx context.Context, table string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, fmt.Errorf("failed to read table info for %s: %w", table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan table info: %w", err)
		}
		cols = append(cols, fmt.Sprintf("%s (%s)", name, strings.ToLower(ctype)))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("table %s not found in %s", table, s.path)
	}
	return cols, nil
}

func (s *Store) distinctValues(ctx context.Context, column string) ([]string, error) {
	q := fmt.Sprintf("SELECT DISTINCT %s FROM %s ORDER BY %s", column, TableName, column)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to read distinct values for %s: %w", column, err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, fmt.Sprintf("%v", v))
	}
	return values, rows.Err()
}

// ErrQueryRejected wraps a statement the guard refused to run. The message is
// returned to the model verbatim so it can correct itself.
type ErrQueryRejected struct {
	Query  string
	Reason string
}

func (e *ErrQueryRejected) Error() string {
	return fmt.Sprintf("query rejected: %s", e.Reason)
}

// validateQuery enforces the SELECT-only contract: the database is opened
// read-only as a second line of defense, but rejecting early produces a much
// clearer message for the model.
func validateQuery(query string) error {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return &ErrQueryRejected{Query: query, Reason: "empty query"}
	}

	upper := strings.ToUpper(trimmed)
	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return &ErrQueryRejected{Query: query, Reason: "only SELECT statements are allowed"}
	}

	// A single trailing semicolon is fine; anything after it is not.
	if i := strings.Index(trimmed, ";"); i >= 0 && strings.TrimSpace(trimmed[i+1:]) != "" {
		return &ErrQueryRejected{Query: query, Reason: "multiple statements are not allowed"}
	}

	for _, kw := range []string{"PRAGMA", "ATTACH", "DETACH", "VACUUM"} {
		if strings.Contains(upper, kw) {
			return &ErrQueryRejected{Query: query, Reason: fmt.Sprintf("%s is not allowed", strings.ToLower(kw))}
		}
	}

	return nil
}

// ExecuteQuery runs a model-supplied SELECT against the sales database and
// returns the rows as column/value maps. The result is capped at MaxRows with
// the Truncated flag set when the cap is hit.
func (s *Store) ExecuteQuery(ctx context.Context, query string) (*QueryResult, error) {
	if err := validateQuery(query); err != nil {
		s.logger.Warn("salesdata.query.rejected", "query", query, "error", err.Error())
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.QueryTimeout)
	defer cancel()

	start := time.Now()
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		s.logger.Warn("salesdata.query.failed", "query", query, "error", err.Error())
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read result columns: %w", err)
	}

	result := &QueryResult{Columns: cols, Rows: []map[string]any{}}

	values := make([]any, len(cols))
	scanTargets := make([]any, len(cols))
	for i := range values {
		scanTargets[i] = &values[i]
	}

	for rows.Next() {
		if len(result.Rows) >= s.opts.MaxRows {
			result.Truncated = true
			break
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			row[col] = normalizeValue(values[i])
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query iteration failed: %w", err)
	}

	result.RowCount = len(result.Rows)

	s.logger.Info("salesdata.query.executed",
		"rows", result.RowCount,
		"truncated", result.Truncated,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return result, nil
}

// ExecuteQueryJSON runs ExecuteQuery and serializes the result for the model.
// Execution errors are returned as a JSON error payload rather than a Go
// error so the model can read the message and retry with a corrected query.
func (s *Store) ExecuteQueryJSON(ctx context.Context, query string) (string, error) {
	result, err := s.ExecuteQuery(ctx, query)
	if err != nil {
		payload, mErr := json.Marshal(map[string]string{"error": err.Error()})
		if mErr != nil {
			return "", mErr
		}
		return string(payload), nil
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("failed to serialize query result: %w", err)
	}
	return string(payload), nil
}

// normalizeValue converts driver-specific scan results into JSON friendly values.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	default:
		return v
	}
}

// ToCSV renders the result as CSV, used when exporting large results as a
// session artifact. encoding/csv handles quoting of values containing
// separators, quotes or newlines.
func (r *QueryResult) ToCSV() string {
	var b strings.Builder
	w := csv.NewWriter(&b)
	_ = w.Write(r.Columns)
	for _, row := range r.Rows {
		fields := make([]string, len(r.Columns))
		for i, col := range r.Columns {
			fields[i] = fmt.Sprintf("%v", row[col])
		}
		_ = w.Write(fields)
	}
	w.Flush()
	return b.String()
}
