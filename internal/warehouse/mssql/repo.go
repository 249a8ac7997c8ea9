// Package mssql implements warehouse.Repository for Microsoft SQL Server,
// the store the warehouse originally ran on.
//
// Insert-if-absent uses a set-based INSERT ... SELECT ... WHERE NOT EXISTS
// over a VALUES table, the batched form of the classic
// "IF NOT EXISTS (...) INSERT" pattern. Combined with the natural-key
// UNIQUE constraint and the resolver's post-insert mapping read, a race
// between concurrent runs converges instead of failing the batch.
package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	mssql "github.com/microsoft/go-mssqldb"

	"retaildw/internal/warehouse"
)

// maxParams stays under SQL Server's 2100 bind-parameter limit.
const maxParams = 2000

// dimensionInsertRetries bounds re-execution of a dimension chunk that lost
// a natural-key race to a concurrent run.
const dimensionInsertRetries = 3

type Repo struct {
	db    *sql.DB
	batch int
}

func init() {
	warehouse.Register("mssql", New)
}

func New(ctx context.Context, cfg warehouse.Config) (warehouse.Repository, error) {
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, err
	}

	// Conservative defaults for ETL-style bursty loads.
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(16)

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

func (r *Repo) EnsureSchema(ctx context.Context) error {
	for _, t := range warehouse.Schema {
		ddl, err := buildCreateTableSQL(t)
		if err != nil {
			return err
		}
		if _, err := r.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("mssql: create table %s: %w", t.Name, err)
		}
	}
	return nil
}

func (r *Repo) InsertDimensionRows(ctx context.Context, table string, keyColumn string, columns []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}

	for _, chunk := range chunkRows(rows, r.chunkLen(len(columns))) {
		q, args := buildDimensionInsertSQL(table, keyColumn, columns, chunk)
		if err := r.execDimensionChunk(ctx, table, q, args); err != nil {
			return err
		}
	}
	return nil
}

// execDimensionChunk runs one insert-if-absent statement, retrying on a
// natural-key unique violation. The NOT EXISTS probe is check-then-act under
// READ COMMITTED, so a concurrent run can commit a key between the probe and
// the insert; the statement fails whole, and on re-execution the probe
// filters the now-present key while the chunk's remaining rows insert.
func (r *Repo) execDimensionChunk(ctx context.Context, table, q string, args []any) error {
	for attempt := 0; ; attempt++ {
		_, err := r.db.ExecContext(ctx, q, args...)
		if err == nil {
			return nil
		}
		if !isUniqueViolation(err) || attempt >= dimensionInsertRetries {
			return fmt.Errorf("mssql: insert %s: %w", table, err)
		}
	}
}

// isUniqueViolation reports SQL Server unique-constraint (2627) and
// unique-index (2601) violations.
func isUniqueViolation(err error) bool {
	var sqlErr mssql.Error
	if errors.As(err, &sqlErr) {
		return sqlErr.Number == 2627 || sqlErr.Number == 2601
	}
	return false
}

func (r *Repo) SelectSurrogateKeys(ctx context.Context, table, keyColumn, surrogateColumn string, keys []any) (map[string]int64, error) {
	out := map[string]int64{}
	if len(keys) == 0 {
		return out, nil
	}

	for start := 0; start < len(keys); start += maxParams {
		end := start + maxParams
		if end > len(keys) {
			end = len(keys)
		}
		chunk := keys[start:end]

		ph := make([]string, len(chunk))
		for i := range chunk {
			ph[i] = "@p" + strconv.Itoa(i+1)
		}
		q := fmt.Sprintf(
			`SELECT %s, %s FROM %s WHERE %s IN (%s)`,
			sqlIdent(keyColumn), sqlIdent(surrogateColumn), table, sqlIdent(keyColumn), strings.Join(ph, ", "),
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
				return nil, fmt.Errorf("mssql: %s.%s is NULL; surrogate key not generated", table, surrogateColumn)
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
		q, args := buildPlainInsertSQL(table, columns, chunk)
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
		parts = append(parts, fmt.Sprintf(`%s BIGINT IDENTITY(1,1) PRIMARY KEY`, sqlIdent(t.PrimaryKey.Name)))
	} else {
		parts = append(parts, fmt.Sprintf(`%s BIGINT PRIMARY KEY`, sqlIdent(t.PrimaryKey.Name)))
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

	return fmt.Sprintf(
		"IF OBJECT_ID(N'%s', N'U') IS NULL CREATE TABLE %s (\n  %s\n);",
		t.Name, t.Name, strings.Join(parts, ",\n  "),
	), nil
}

func columnType(t string) string {
	switch t {
	case "integer":
		return "BIGINT"
	case "real":
		return "FLOAT"
	case "date":
		return "DATE"
	default:
		// Bounded so the column can participate in a UNIQUE constraint.
		return "NVARCHAR(400)"
	}
}

// buildDimensionInsertSQL renders a set-based insert-if-absent:
//
//	INSERT INTO t (cols) SELECT v.cols FROM (VALUES ...) v (cols)
//	WHERE NOT EXISTS (SELECT 1 FROM t WHERE t.key = v.key)
func buildDimensionInsertSQL(table, keyColumn string, columns []string, rows [][]any) (string, []any) {
	colList := make([]string, 0, len(columns))
	selList := make([]string, 0, len(columns))
	for _, c := range columns {
		colList = append(colList, sqlIdent(c))
		selList = append(selList, "v."+sqlIdent(c))
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(table)
	b.WriteString(" (")
	b.WriteString(strings.Join(colList, ", "))
	b.WriteString(") SELECT ")
	b.WriteString(strings.Join(selList, ", "))
	b.WriteString(" FROM (VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	n := 1
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString("@p")
			b.WriteString(strconv.Itoa(n))
			n++
			args = append(args, row[j])
		}
		b.WriteString(")")
	}

	b.WriteString(") AS v (")
	b.WriteString(strings.Join(colList, ", "))
	b.WriteString(") WHERE NOT EXISTS (SELECT 1 FROM ")
	b.WriteString(table)
	b.WriteString(" t WHERE t.")
	b.WriteString(sqlIdent(keyColumn))
	b.WriteString(" = v.")
	b.WriteString(sqlIdent(keyColumn))
	b.WriteString(")")

	return b.String(), args
}

func buildPlainInsertSQL(table string, columns []string, rows [][]any) (string, []any) {
	colList := make([]string, 0, len(columns))
	for _, c := range columns {
		colList = append(colList, sqlIdent(c))
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(table)
	b.WriteString(" (")
	b.WriteString(strings.Join(colList, ", "))
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	n := 1
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString("@p")
			b.WriteString(strconv.Itoa(n))
			n++
			args = append(args, row[j])
		}
		b.WriteString(")")
	}

	return b.String(), args
}

func sqlIdent(id string) string {
	return `[` + strings.ReplaceAll(id, `]`, `]]`) + `]`
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
