package pipeline

import (
	"retaildw/internal/superstore"
	"retaildw/internal/warehouse"
)

// buildFactRows maps normalized records to fact_sales rows in
// warehouse.FactColumns order, replacing natural keys with surrogates.
//
// Every record must resolve: a missing product or customer surrogate aborts
// the build with an UnresolvedDimensionKeyError, so no partially keyed batch
// ever reaches the store. Date keys are the YYYYMMDD values themselves.
func buildFactRows(recs []superstore.NormalizedRecord, keys dimensionKeys) ([][]any, error) {
	rows := make([][]any, 0, len(recs))

	for _, r := range recs {
		productKey, ok := keys.products[warehouse.NormalizeKey(r.ProductID)]
		if !ok {
			return nil, &UnresolvedDimensionKeyError{
				Dimension: warehouse.TableDimProduct,
				Key:       r.ProductID,
				OrderID:   r.OrderID,
			}
		}
		customerKey, ok := keys.customers[warehouse.NormalizeKey(r.CustomerID)]
		if !ok {
			return nil, &UnresolvedDimensionKeyError{
				Dimension: warehouse.TableDimCustomer,
				Key:       r.CustomerID,
				OrderID:   r.OrderID,
			}
		}

		rows = append(rows, []any{
			r.OrderID,
			customerKey,
			productKey,
			superstore.DateKey(r.OrderDate),
			superstore.DateKey(r.ShipDate),
			r.ShipMode,
			r.Sales,
			r.Quantity,
			r.Discount,
			r.Profit,
			r.ProfitMargin,
		})
	}

	return rows, nil
}
