package sqlite

import (
	"strings"
	"testing"

	"retaildw/internal/warehouse"
)

func TestBuildInsertSQL_OrIgnore(t *testing.T) {
	q, args := buildInsertSQL("INSERT OR IGNORE INTO ", "dim_product",
		[]string{"product_id", "product_name"},
		[][]any{{"P1", "Bookcase"}, {"P2", "Labels"}},
	)

	want := `INSERT OR IGNORE INTO dim_product ("product_id", "product_name") VALUES (?,?), (?,?)`
	if q != want {
		t.Fatalf("sql mismatch:\n got %s\nwant %s", q, want)
	}
	if len(args) != 4 || args[0] != "P1" {
		t.Fatalf("args wrong: %v", args)
	}
}

func TestBuildCreateTableSQL_DateKeyIsRowid(t *testing.T) {
	for _, tab := range warehouse.Schema {
		ddl, err := buildCreateTableSQL(tab)
		if err != nil {
			t.Fatalf("buildCreateTableSQL(%s) error: %v", tab.Name, err)
		}
		if !strings.Contains(ddl, "CREATE TABLE IF NOT EXISTS") {
			t.Fatalf("DDL for %s must be idempotent:\n%s", tab.Name, ddl)
		}

		switch tab.Name {
		case warehouse.TableDimDate:
			if !strings.Contains(ddl, `"date_id" INTEGER PRIMARY KEY`) {
				t.Fatalf("date key must be a plain integer pk:\n%s", ddl)
			}
			if strings.Contains(ddl, "AUTOINCREMENT") {
				t.Fatalf("date key must not be auto-assigned:\n%s", ddl)
			}
		case warehouse.TableDimProduct:
			if !strings.Contains(ddl, `"product_key" INTEGER PRIMARY KEY AUTOINCREMENT`) {
				t.Fatalf("product surrogate must auto-assign:\n%s", ddl)
			}
			if !strings.Contains(ddl, `UNIQUE ("product_id")`) {
				t.Fatalf("product natural key must be unique:\n%s", ddl)
			}
		}
	}
}

func TestChunkRows_Bounds(t *testing.T) {
	rows := [][]any{{1}, {2}, {3}}
	if got := chunkRows(rows, 0); len(got) != 3 {
		t.Fatalf("size 0 must clamp to 1, got %d chunks", len(got))
	}
	if got := chunkRows(rows, 10); len(got) != 1 || len(got[0]) != 3 {
		t.Fatalf("oversize chunk wrong: %v", got)
	}
	if got := chunkRows(nil, 5); got != nil {
		t.Fatalf("no rows should yield no chunks")
	}
}
