package warehouse

import (
	"context"
	"strings"
	"testing"
)

func TestNew_UnknownKind(t *testing.T) {
	_, err := New(context.Background(), Config{Kind: "oracle"})
	if err == nil || !strings.Contains(err.Error(), "unsupported kind") {
		t.Fatalf("expected unsupported kind error, got %v", err)
	}
}

func TestNew_MissingKind(t *testing.T) {
	_, err := New(context.Background(), Config{})
	if err == nil {
		t.Fatalf("expected error for missing kind")
	}
}

func TestRegister_DuplicatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on duplicate registration")
		}
	}()

	f := func(ctx context.Context, cfg Config) (Repository, error) { return nil, nil }
	Register("dup-kind", f)
	Register("dup-kind", f)
}

func TestNormalizeKey(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{" FUR-BO-10001798 ", "FUR-BO-10001798"},
		{[]byte("CG-12520"), "CG-12520"},
		{20240301, "20240301"},
		{int64(20240301), "20240301"},
	}
	for _, c := range cases {
		if got := NormalizeKey(c.in); got != c.want {
			t.Fatalf("NormalizeKey(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestSchema_FactReferencesDimensionKeys(t *testing.T) {
	byName := map[string]TableSpec{}
	for _, tab := range Schema {
		byName[tab.Name] = tab
	}

	fact, ok := byName[TableFactSales]
	if !ok {
		t.Fatalf("fact table missing from schema")
	}

	cols := map[string]bool{}
	for _, c := range fact.Columns {
		cols[c.Name] = true
	}
	for _, key := range []string{"customer_key", "product_key", "order_date_id", "ship_date_id"} {
		if !cols[key] {
			t.Fatalf("fact table missing key column %s", key)
		}
	}

	if byName[TableDimDate].PrimaryKey.Auto {
		t.Fatalf("date dimension key must be the natural YYYYMMDD key, not store-assigned")
	}
	for _, dim := range []string{TableDimProduct, TableDimCustomer} {
		if !byName[dim].PrimaryKey.Auto {
			t.Fatalf("%s must use a store-assigned surrogate key", dim)
		}
		if byName[dim].UniqueKey == "" {
			t.Fatalf("%s must guard its natural key with a unique constraint", dim)
		}
	}
}
