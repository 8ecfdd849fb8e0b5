package salesdata

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newSeededStore creates a file-backed store in a temp dir seeded with the
// deterministic dataset, opened read-write so the seeder can run.
func newSeededStore(t *testing.T) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "sales.db")
	store, err := New(path, func(o *Options) {
		o.ReadOnly = false
		o.MaxRows = 50
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, SeedIfEmpty(context.Background(), store.DB()))
	return store
}

func TestSeedIsDeterministicAndIdempotent(t *testing.T) {
	store := newSeededStore(t)
	ctx := context.Background()

	var count int
	require.NoError(t, store.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM sales_data").Scan(&count))

	totalProductTypes := 0
	for _, pts := range Categories {
		totalProductTypes += len(pts)
	}
	expected := totalProductTypes * len(Regions) * len(Years) * 12
	assert.Equal(t, expected, count)

	// Seeding again must be a no-op.
	require.NoError(t, SeedIfEmpty(ctx, store.DB()))
	var again int
	require.NoError(t, store.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM sales_data").Scan(&again))
	assert.Equal(t, count, again)
}

func TestSchemaSummary(t *testing.T) {
	store := newSeededStore(t)

	summary, err := store.SchemaSummary(context.Background())
	require.NoError(t, err)

	assert.Contains(t, summary, "Table: sales_data")
	assert.Contains(t, summary, "revenue (real)")
	assert.Contains(t, summary, "number_of_orders (integer)")
	assert.Contains(t, summary, "Distinct region values:")
	assert.Contains(t, summary, "EUROPE")
	assert.Contains(t, summary, "Distinct year values: 2022, 2023, 2024")
}

func TestExecuteQuery(t *testing.T) {
	store := newSeededStore(t)
	ctx := context.Background()

	result, err := store.ExecuteQuery(ctx, "SELECT region, SUM(revenue) AS total FROM sales_data GROUP BY region ORDER BY region")
	require.NoError(t, err)

	assert.Equal(t, []string{"region", "total"}, result.Columns)
	assert.Equal(t, len(Regions), result.RowCount)
	assert.False(t, result.Truncated)
	assert.Equal(t, "AFRICA", result.Rows[0]["region"])
}

func TestExecuteQueryRowCap(t *testing.T) {
	store := newSeededStore(t)

	result, err := store.ExecuteQuery(context.Background(), "SELECT * FROM sales_data")
	require.NoError(t, err)

	assert.Equal(t, 50, result.RowCount)
	assert.True(t, result.Truncated)
}

func TestExecuteQueryGuards(t *testing.T) {
	store := newSeededStore(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		query string
	}{
		{"empty", "   "},
		{"insert", "INSERT INTO sales_data (main_category) VALUES ('X')"},
		{"update", "UPDATE sales_data SET revenue = 0"},
		{"delete", "DELETE FROM sales_data"},
		{"drop", "DROP TABLE sales_data"},
		{"pragma", "SELECT * FROM sales_data; PRAGMA journal_mode=DELETE"},
		{"multi statement", "SELECT 1; SELECT 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.ExecuteQuery(ctx, tt.query)
			require.Error(t, err)
			var rejected *ErrQueryRejected
			assert.ErrorAs(t, err, &rejected)
		})
	}

	// CTEs and trailing semicolons are allowed.
	_, err := store.ExecuteQuery(ctx, "WITH t AS (SELECT 1 AS n) SELECT n FROM t;")
	assert.NoError(t, err)
}

func TestExecuteQueryJSONReturnsErrorPayload(t *testing.T) {
	store := newSeededStore(t)
	ctx := context.Background()

	// Bad SQL becomes a JSON error payload for the model, not a Go error.
	payload, err := store.ExecuteQueryJSON(ctx, "SELECT nope FROM sales_data")
	require.NoError(t, err)

	var decoded map[string]string
	require.NoError(t, json.Unmarshal([]byte(payload), &decoded))
	assert.Contains(t, decoded["error"], "query failed")

	// Valid SQL round-trips through QueryResult.
	payload, err = store.ExecuteQueryJSON(ctx, "SELECT COUNT(*) AS n FROM sales_data")
	require.NoError(t, err)

	var result QueryResult
	require.NoError(t, json.Unmarshal([]byte(payload), &result))
	assert.Equal(t, 1, result.RowCount)
}

func TestReadOnlyStoreRejectsWritesAtDriverLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sales.db")

	rw, err := New(path, func(o *Options) { o.ReadOnly = false })
	require.NoError(t, err)
	require.NoError(t, SeedIfEmpty(context.Background(), rw.DB()))
	require.NoError(t, rw.Close())

	ro, err := New(path)
	require.NoError(t, err)
	defer ro.Close()

	_, err = ro.DB().Exec("DELETE FROM sales_data")
	assert.Error(t, err)
}

func TestQueryResultToCSV(t *testing.T) {
	r := &QueryResult{
		Columns: []string{"region", "revenue"},
		Rows: []map[string]any{
			{"region": "EUROPE", "revenue": 10.5},
			{"region": "CHINA", "revenue": 7.0},
		},
		RowCount: 2,
	}

	out := r.ToCSV()
	assert.Equal(t, "region,revenue\nEUROPE,10.5\nCHINA,7\n", out)
}

func TestQueryResultToCSVQuotesSpecialCharacters(t *testing.T) {
	r := &QueryResult{
		Columns: []string{"product_type", "note"},
		Rows: []map[string]any{
			{"product_type": `Tents, "family"`, "note": "line1\nline2"},
		},
		RowCount: 1,
	}

	out := r.ToCSV()
	assert.Equal(t, "product_type,note\n\"Tents, \"\"family\"\"\",\"line1\nline2\"\n", out)
}
