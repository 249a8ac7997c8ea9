package warehouse

// ColumnSpec describes one column of a warehouse table.
type ColumnSpec struct {
	Name    string
	Type    string // "text", "integer", "real", "date"
	NotNull bool
}

// PrimaryKeySpec describes a table's primary key. Auto keys are
// store-assigned surrogates (serial/identity); non-auto keys are supplied by
// the pipeline (the date dimension's YYYYMMDD key).
type PrimaryKeySpec struct {
	Name string
	Auto bool
}

// TableSpec describes one warehouse table. Backends render DDL from this in
// their own dialect; creation is always if-not-exists and idempotent.
type TableSpec struct {
	Name       string
	PrimaryKey PrimaryKeySpec
	Columns    []ColumnSpec

	// UniqueKey is the natural-key column guarded by a UNIQUE constraint.
	// Empty when the primary key itself is the natural key.
	UniqueKey string
}

// Star schema table and column names.
const (
	TableDimDate     = "dim_date"
	TableDimProduct  = "dim_product"
	TableDimCustomer = "dim_customer"
	TableFactSales   = "fact_sales"
)

// Schema is the full star schema, dimensions first so fact references
// resolve when backends enforce foreign keys.
var Schema = []TableSpec{
	{
		Name:       TableDimDate,
		PrimaryKey: PrimaryKeySpec{Name: "date_id"},
		Columns: []ColumnSpec{
			{Name: "date_value", Type: "date", NotNull: true},
			{Name: "day", Type: "integer", NotNull: true},
			{Name: "month", Type: "integer", NotNull: true},
			{Name: "quarter", Type: "text", NotNull: true},
			{Name: "year", Type: "integer", NotNull: true},
		},
	},
	{
		Name:       TableDimProduct,
		PrimaryKey: PrimaryKeySpec{Name: "product_key", Auto: true},
		UniqueKey:  "product_id",
		Columns: []ColumnSpec{
			{Name: "product_id", Type: "text", NotNull: true},
			{Name: "product_name", Type: "text"},
			{Name: "category", Type: "text"},
			{Name: "sub_category", Type: "text"},
		},
	},
	{
		Name:       TableDimCustomer,
		PrimaryKey: PrimaryKeySpec{Name: "customer_key", Auto: true},
		UniqueKey:  "customer_id",
		Columns: []ColumnSpec{
			{Name: "customer_id", Type: "text", NotNull: true},
			{Name: "customer_name", Type: "text"},
			{Name: "segment", Type: "text"},
			{Name: "city", Type: "text"},
			{Name: "state", Type: "text"},
			{Name: "postal_code", Type: "text"},
			{Name: "region", Type: "text"},
			{Name: "country", Type: "text"},
		},
	},
	{
		Name:       TableFactSales,
		PrimaryKey: PrimaryKeySpec{Name: "sales_key", Auto: true},
		Columns: []ColumnSpec{
			{Name: "order_id", Type: "text", NotNull: true},
			{Name: "customer_key", Type: "integer", NotNull: true},
			{Name: "product_key", Type: "integer", NotNull: true},
			{Name: "order_date_id", Type: "integer", NotNull: true},
			{Name: "ship_date_id", Type: "integer", NotNull: true},
			{Name: "ship_mode", Type: "text"},
			{Name: "sales", Type: "real", NotNull: true},
			{Name: "quantity", Type: "integer", NotNull: true},
			{Name: "discount", Type: "real", NotNull: true},
			{Name: "profit", Type: "real", NotNull: true},
			{Name: "profit_margin", Type: "real", NotNull: true},
		},
	},
}

// FactColumns is the insert column order for fact_sales.
var FactColumns = []string{
	"order_id", "customer_key", "product_key",
	"order_date_id", "ship_date_id", "ship_mode",
	"sales", "quantity", "discount", "profit", "profit_margin",
}

// DateColumns, ProductColumns, and CustomerColumns are the insert column
// orders for the dimensions; the first entry is always the natural key.
var (
	DateColumns     = []string{"date_id", "date_value", "day", "month", "quarter", "year"}
	ProductColumns  = []string{"product_id", "product_name", "category", "sub_category"}
	CustomerColumns = []string{"customer_id", "customer_name", "segment", "city", "state", "postal_code", "region", "country"}
)
