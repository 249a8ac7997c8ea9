// Package postgres implements warehouse.Repository on pgx.
//
// Insert-if-absent uses INSERT ... ON CONFLICT (<natural key>) DO NOTHING,
// which also makes a natural-key race between two concurrent runs benign:
// the loser's rows are skipped and the mapping read-back picks up the
// winner's surrogate keys.
package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"retaildw/internal/warehouse"
)

// maxParams stays under the 65535 bind-parameter protocol limit.
const maxParams = 65000

type Repo struct {
	pool  *pgxpool.Pool
	batch int
}

func init() {
	warehouse.Register("postgres", New)
}

func New(ctx context.Context, cfg warehouse.Config) (warehouse.Repository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	batch := cfg.BatchSize
	if batch <= 0 {
		batch = warehouse.DefaultBatchSize
	}
	return &Repo{pool: pool, batch: batch}, nil
}

func (r *Repo) Close() { r.pool.Close() }

func (r *Repo) EnsureSchema(ctx context.Context) error {
	for _, t := range warehouse.Schema {
		ddl, err := buildCreateTableSQL(t)
		if err != nil {
			return err
		}
		if _, err := r.pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("postgres: create table %s: %w", t.Name, err)
		}
	}
	return nil
}

func (r *Repo) InsertDimensionRows(ctx context.Context, table string, keyColumn string, columns []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}

	for _, chunk := range chunkRows(rows, r.chunkLen(len(columns))) {
		q, args := buildInsertSQL(table, columns, chunk, keyColumn)
		if _, err := r.pool.Exec(ctx, q, args...); err != nil {
			return fmt.Errorf("postgres: insert %s: %w", table, err)
		}
	}
	return nil
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
			ph[i] = "$" + strconv.Itoa(i+1)
		}
		q := fmt.Sprintf(
			`SELECT %s, %s FROM %s WHERE %s IN (%s)`,
			pgIdent(keyColumn), pgIdent(surrogateColumn), table, pgIdent(keyColumn), strings.Join(ph, ", "),
		)

		rows, err := r.pool.Query(ctx, q, chunk...)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var k any
			var id int64
			if err := rows.Scan(&k, &id); err != nil {
				rows.Close()
				return nil, err
			}
			out[warehouse.NormalizeKey(k)] = id
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

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, &warehouse.CommitError{Table: table, Err: err}
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var affected int64
	for _, chunk := range chunkRows(rows, r.chunkLen(len(columns))) {
		q, args := buildInsertSQL(table, columns, chunk, "")
		cmd, err := tx.Exec(ctx, q, args...)
		if err != nil {
			return 0, &warehouse.CommitError{Table: table, Err: err}
		}
		affected += cmd.RowsAffected()
	}

	if err := tx.Commit(ctx); err != nil {
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
		parts = append(parts, fmt.Sprintf(`%s BIGSERIAL PRIMARY KEY`, pgIdent(t.PrimaryKey.Name)))
	} else {
		parts = append(parts, fmt.Sprintf(`%s BIGINT PRIMARY KEY`, pgIdent(t.PrimaryKey.Name)))
	}

	for _, c := range t.Columns {
		col := fmt.Sprintf("%s %s", pgIdent(c.Name), columnType(c.Type))
		if c.NotNull {
			col += " NOT NULL"
		}
		parts = append(parts, col)
	}

	if t.UniqueKey != "" {
		parts = append(parts, fmt.Sprintf("UNIQUE (%s)", pgIdent(t.UniqueKey)))
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n);", t.Name, strings.Join(parts, ",\n  ")), nil
}

func columnType(t string) string {
	switch t {
	case "integer":
		return "BIGINT"
	case "real":
		return "DOUBLE PRECISION"
	case "date":
		return "DATE"
	default:
		return "TEXT"
	}
}

// buildInsertSQL constructs one multi-row INSERT with numbered placeholders.
// A non-empty conflictColumn appends ON CONFLICT (col) DO NOTHING.
//
// It is pure and deterministic so placeholder numbering and conflict
// handling can be unit tested without a database.
func buildInsertSQL(table string, columns []string, rows [][]any, conflictColumn string) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(table)
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(pgIdent(c))
	}
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
			b.WriteString("$")
			b.WriteString(strconv.Itoa(n))
			n++
			args = append(args, row[j])
		}
		b.WriteString(")")
	}

	if conflictColumn != "" {
		b.WriteString(" ON CONFLICT (")
		b.WriteString(pgIdent(conflictColumn))
		b.WriteString(") DO NOTHING")
	}

	return b.String(), args
}

func pgIdent(id string) string {
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
