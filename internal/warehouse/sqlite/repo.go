// Package sqlite implements warehouse.Repository on modernc.org/sqlite.
//
// SQLite notes:
//   - Dates are stored with TEXT affinity; the pipeline binds calendar dates
//     as "2006-01-02" strings, which sort and compare correctly.
//   - Insert-if-absent relies on "INSERT OR IGNORE" against the natural-key
//     UNIQUE/PK constraint, so a concurrent run inserting the same key is
//     benign by construction.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"retaildw/internal/warehouse"
)

// maxParams stays well under SQLITE_MAX_VARIABLE_NUMBER.
const maxParams = 32000

type Repo struct {
	db    *sql.DB
	batch int
}

func init() {
	warehouse.Register("sqlite", New)
}

func New(ctx context.Context, cfg warehouse.Config) (warehouse.Repository, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	batch := cfg.BatchSize
	if batch <= 0 {
		batch = warehouse.DefaultBatchSize
	}
	return &Repo{db: db, batch: batch}, nil
}

func (r *Repo) Close() { _ = r.db.Close() }

// EnsureSchema creates the star schema tables if they do not exist.
func (r *Repo) EnsureSchema(ctx context.Context) error {
	for _, t := range warehouse.Schema {
		ddl, err := buildCreateTableSQL(t)
		if err != nil {
			return err
		}
		if _, err := r.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("sqlite: create table %s: %w", t.Name, err)
		}
	}
	return nil
}

// InsertDimensionRows inserts rows whose natural key is not yet present.
//
// "INSERT OR IGNORE" skips rows conflicting on the UNIQUE/PK constraint and
// leaves existing attributes untouched (first write wins).
func (r *Repo) InsertDimensionRows(ctx context.Context, table string, keyColumn string, columns []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	// keyColumn is implicit for SQLite: OR IGNORE relies on the table's
	// UNIQUE/PK constraint.
	_ = keyColumn

	for _, chunk := range chunkRows(rows, r.chunkLen(len(columns))) {
		q, args := buildInsertSQL("INSERT OR IGNORE INTO ", table, columns, chunk)
		if _, err := r.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("sqlite: insert %s: %w", table, err)
		}
	}
	return nil
}

func (r *Repo) SelectSurrogateKeys(ctx context.Context, table, keyColumn, surrogateColumn string, keys []any) (map[string]int64, error) {
	out := map[string]int64{}
	if len(keys) == 0 {
		return out, nil
	}

	for _, chunk := range chunkKeys(keys, maxParams) {
		ph := strings.TrimRight(strings.Repeat("?,", len(chunk)), ",")
		q := fmt.Sprintf(
			`SELECT %s, %s FROM %s WHERE %s IN (%s)`,
			sqlIdent(keyColumn), sqlIdent(surrogateColumn), table, sqlIdent(keyColumn), ph,
		)

		rows, err := r.db.QueryContext(ctx, q, chunk...)
		if err != nil {
			return nil, err
		}

		for rows.Next() {
			var k any
			var id sql.NullInt64
			if err := rows.Scan(&k, &id); err != nil {
				rows.Close()
				return nil, err
			}
			if !id.Valid {
				rows.Close()
				return nil, fmt.Errorf("sqlite: %s.%s is NULL; surrogate key not generated", table, surrogateColumn)
			}
			out[warehouse.NormalizeKey(k)] = id.Int64
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}
	return out, nil
}

// InsertFactRows appends fact rows inside one transaction. Any chunk failure
// rolls back the whole batch.
func (r *Repo) InsertFactRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, &warehouse.CommitError{Table: table, Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	var affected int64
	for _, chunk := range chunkRows(rows, r.chunkLen(len(columns))) {
		q, args := buildInsertSQL("INSERT INTO ", table, columns, chunk)
		res, err := tx.ExecContext(ctx, q, args...)
		if err != nil {
			return 0, &warehouse.CommitError{Table: table, Err: err}
		}
		n, _ := res.RowsAffected()
		affected += n
	}

	if err := tx.Commit(); err != nil {
		return 0, &warehouse.CommitError{Table: table, Err: err}
	}
	return affected, nil
}

func (r *Repo) chunkLen(perRow int) int {
	chunk := r.batch
	if max := maxParams / perRow; chunk > max {
		chunk = max
	}
	return chunk
}

func buildCreateTableSQL(t warehouse.TableSpec) (string, error) {
	if strings.TrimSpace(t.Name) == "" {
		return "", fmt.Errorf("table name is empty")
	}

	var parts []string

	if t.PrimaryKey.Auto {
		parts = append(parts, fmt.Sprintf(`%s INTEGER PRIMARY KEY AUTOINCREMENT`, sqlIdent(t.PrimaryKey.Name)))
	} else {
		parts = append(parts, fmt.Sprintf(`%s INTEGER PRIMARY KEY`, sqlIdent(t.PrimaryKey.Name)))
	}

	for _, c := range t.Columns {
		col := fmt.Sprintf("%s %s", sqlIdent(c.Name), columnType(c.Type))
		if c.NotNull {
			col += " NOT NULL"
		}
		parts = append(parts, col)
	}

	if t.UniqueKey != "" {
		parts = append(parts, fmt.Sprintf("UNIQUE (%s)", sqlIdent(t.UniqueKey)))
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n);", t.Name, strings.Join(parts, ",\n  ")), nil
}

func columnType(t string) string {
	switch t {
	case "integer":
		return "INTEGER"
	case "real":
		return "REAL"
	case "date":
		// TEXT affinity; see package note.
		return "TEXT"
	default:
		return "TEXT"
	}
}

func buildInsertSQL(prefix, table string, columns []string, rows [][]any) (string, []any) {
	colList := make([]string, 0, len(columns))
	for _, c := range columns {
		colList = append(colList, sqlIdent(c))
	}
	placeholders := "(" + strings.TrimRight(strings.Repeat("?,", len(columns)), ",") + ")"

	var b strings.Builder
	b.WriteString(prefix)
	b.WriteString(table)
	b.WriteString(" (")
	b.WriteString(strings.Join(colList, ", "))
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(placeholders)
		args = append(args, row...)
	}
	return b.String(), args
}

func sqlIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

func chunkRows(rows [][]any, size int) [][][]any {
	if size < 1 {
		size = 1
	}
	var out [][][]any
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		out = append(out, rows[start:end])
	}
	return out
}

func chunkKeys(keys []any, size int) [][]any {
	if size < 1 {
		size = 1
	}
	var out [][]any
	for start := 0; start < len(keys); start += size {
		end := start + size
		if end > len(keys) {
			end = len(keys)
		}
		out = append(out, keys[start:end])
	}
	return out
}
