package postgres

import (
	"strings"
	"testing"

	"retaildw/internal/warehouse"
)

func TestBuildInsertSQL_PlaceholderNumbering(t *testing.T) {
	q, args := buildInsertSQL("dim_product", []string{"product_id", "product_name"}, [][]any{
		{"P1", "Bookcase"},
		{"P2", "Labels"},
	}, "product_id")

	want := `INSERT INTO dim_product ("product_id", "product_name") VALUES ($1, $2), ($3, $4) ON CONFLICT ("product_id") DO NOTHING`
	if q != want {
		t.Fatalf("sql mismatch:\n got %s\nwant %s", q, want)
	}
	if len(args) != 4 || args[0] != "P1" || args[3] != "Labels" {
		t.Fatalf("args wrong: %v", args)
	}
}

func TestBuildInsertSQL_NoConflictClauseForFacts(t *testing.T) {
	q, _ := buildInsertSQL("fact_sales", []string{"order_id"}, [][]any{{"O1"}}, "")
	if strings.Contains(q, "ON CONFLICT") {
		t.Fatalf("fact insert must not carry a conflict clause: %s", q)
	}
}

func TestBuildCreateTableSQL_SurrogateAndNaturalKeys(t *testing.T) {
	var product, date warehouse.TableSpec
	for _, tab := range warehouse.Schema {
		switch tab.Name {
		case warehouse.TableDimProduct:
			product = tab
		case warehouse.TableDimDate:
			date = tab
		}
	}

	ddl, err := buildCreateTableSQL(product)
	if err != nil {
		t.Fatalf("buildCreateTableSQL error: %v", err)
	}
	if !strings.Contains(ddl, `"product_key" BIGSERIAL PRIMARY KEY`) {
		t.Fatalf("expected serial surrogate key:\n%s", ddl)
	}
	if !strings.Contains(ddl, `UNIQUE ("product_id")`) {
		t.Fatalf("expected natural-key unique constraint:\n%s", ddl)
	}
	if !strings.Contains(ddl, "IF NOT EXISTS") {
		t.Fatalf("DDL must be idempotent:\n%s", ddl)
	}

	ddl, err = buildCreateTableSQL(date)
	if err != nil {
		t.Fatalf("buildCreateTableSQL error: %v", err)
	}
	if !strings.Contains(ddl, `"date_id" BIGINT PRIMARY KEY`) {
		t.Fatalf("date key must not be serial:\n%s", ddl)
	}
}

func TestChunkRows(t *testing.T) {
	rows := [][]any{{1}, {2}, {3}, {4}, {5}}
	chunks := chunkRows(rows, 2)
	if len(chunks) != 3 || len(chunks[0]) != 2 || len(chunks[2]) != 1 {
		t.Fatalf("unexpected chunking: %v", chunks)
	}
}
