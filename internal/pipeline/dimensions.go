package pipeline

import (
	"context"
	"fmt"
	"time"

	"retaildw/internal/superstore"
	"retaildw/internal/warehouse"
)

// dimensionKeys maps normalized natural keys to store-assigned surrogates.
// Date keys need no map: the YYYYMMDD key is the primary key itself.
type dimensionKeys struct {
	products  map[string]int64
	customers map[string]int64
}

// loadDimensions upserts the three dimensions from the normalized batch and
// reads back the surrogate mappings for products and customers.
//
// Inserts are insert-if-absent on the natural key, so re-running the same
// batch changes nothing. Within the batch, the first occurrence of a natural
// key supplies the attributes; later occurrences are ignored.
func loadDimensions(ctx context.Context, repo warehouse.Repository, recs []superstore.NormalizedRecord) (dimensionKeys, error) {
	var keys dimensionKeys

	if err := repo.InsertDimensionRows(ctx, warehouse.TableDimDate, "date_id", warehouse.DateColumns, dateRows(recs)); err != nil {
		return keys, fmt.Errorf("load %s: %w", warehouse.TableDimDate, err)
	}

	pRows, productIDs := productRows(recs)
	if err := repo.InsertDimensionRows(ctx, warehouse.TableDimProduct, "product_id", warehouse.ProductColumns, pRows); err != nil {
		return keys, fmt.Errorf("load %s: %w", warehouse.TableDimProduct, err)
	}

	cRows, customerIDs := customerRows(recs)
	if err := repo.InsertDimensionRows(ctx, warehouse.TableDimCustomer, "customer_id", warehouse.CustomerColumns, cRows); err != nil {
		return keys, fmt.Errorf("load %s: %w", warehouse.TableDimCustomer, err)
	}

	var err error
	keys.products, err = repo.SelectSurrogateKeys(ctx, warehouse.TableDimProduct, "product_id", "product_key", productIDs)
	if err != nil {
		return keys, fmt.Errorf("resolve %s: %w", warehouse.TableDimProduct, err)
	}
	keys.customers, err = repo.SelectSurrogateKeys(ctx, warehouse.TableDimCustomer, "customer_id", "customer_key", customerIDs)
	if err != nil {
		return keys, fmt.Errorf("resolve %s: %w", warehouse.TableDimCustomer, err)
	}

	return keys, nil
}

// dateRows builds distinct date dimension rows from the union of order and
// ship dates, in warehouse.DateColumns order.
func dateRows(recs []superstore.NormalizedRecord) [][]any {
	seen := make(map[int]struct{}, 2*len(recs))
	var rows [][]any

	add := func(t time.Time) {
		key := superstore.DateKey(t)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		rows = append(rows, []any{
			key,
			t.Format("2006-01-02"),
			t.Day(),
			int(t.Month()),
			superstore.QuarterString(t),
			t.Year(),
		})
	}

	for _, r := range recs {
		add(r.OrderDate)
		add(r.ShipDate)
	}
	return rows
}

// productRows builds distinct product dimension rows in
// warehouse.ProductColumns order, plus the distinct natural keys for the
// surrogate read-back.
func productRows(recs []superstore.NormalizedRecord) ([][]any, []any) {
	seen := make(map[string]struct{}, len(recs))
	var rows [][]any
	var ids []any

	for _, r := range recs {
		if _, dup := seen[r.ProductID]; dup {
			continue
		}
		seen[r.ProductID] = struct{}{}
		rows = append(rows, []any{r.ProductID, r.ProductName, r.Category, r.SubCategory})
		ids = append(ids, r.ProductID)
	}
	return rows, ids
}

// customerRows builds distinct customer dimension rows in
// warehouse.CustomerColumns order, plus the distinct natural keys.
func customerRows(recs []superstore.NormalizedRecord) ([][]any, []any) {
	seen := make(map[string]struct{}, len(recs))
	var rows [][]any
	var ids []any

	for _, r := range recs {
		if _, dup := seen[r.CustomerID]; dup {
			continue
		}
		seen[r.CustomerID] = struct{}{}
		rows = append(rows, []any{
			r.CustomerID, r.CustomerName, r.Segment,
			r.City, r.State, r.PostalCode, r.Region, r.Country,
		})
		ids = append(ids, r.CustomerID)
	}
	return rows, ids
}
