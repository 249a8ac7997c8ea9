// Package datagen generates synthetic Superstore-layout exports for local
// runs and soak testing. Generated files exercise the same paths as real
// exports: shared customers and products across orders, occasional exact
// duplicates, and occasional rows that fail normalization.
package datagen

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"retaildw/internal/superstore"
)

// Options controls sample generation.
type Options struct {
	// Rows is the number of order lines to generate.
	Rows int

	// Seed makes generation reproducible. Zero seeds from the clock.
	Seed uint64

	// Customers and Products size the shared entity pools. Zero values
	// default to Rows/4 and Rows/2 (minimum 1).
	Customers int
	Products  int

	// DuplicateRate is the fraction of rows emitted twice, exercising the
	// dedupe stage. InvalidRate is the fraction with an unparseable order
	// date, exercising the drop stage.
	DuplicateRate float64
	InvalidRate   float64

	// Start and End bound order dates. Zero values default to the last two
	// years.
	Start time.Time
	End   time.Time
}

var shipModes = []string{"Standard Class", "Second Class", "First Class", "Same Day"}

var segments = []string{"Consumer", "Corporate", "Home Office"}

var regions = []string{"South", "West", "East", "Central"}

// subCategories mirrors the Superstore category tree.
var subCategories = map[string][]string{
	"Furniture":       {"Bookcases", "Chairs", "Tables", "Furnishings"},
	"Office Supplies": {"Labels", "Storage", "Binders", "Paper", "Appliances", "Art"},
	"Technology":      {"Phones", "Accessories", "Machines", "Copiers"},
}

var categories = []string{"Furniture", "Office Supplies", "Technology"}

type customer struct {
	id, name, segment           string
	city, state, postal, region string
}

type product struct {
	id, name, category, sub string
}

// Generate builds Rows synthetic order lines. With a fixed Seed the output
// is identical across runs.
func Generate(opts Options) []superstore.RawRecord {
	seed := opts.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	f := gofakeit.New(seed)

	start, end := opts.Start, opts.End
	if start.IsZero() || end.IsZero() || !end.After(start) {
		end = time.Now().Truncate(24 * time.Hour)
		start = end.AddDate(-2, 0, 0)
	}

	customers := buildCustomers(f, poolSize(opts.Customers, opts.Rows/4))
	products := buildProducts(f, poolSize(opts.Products, opts.Rows/2))

	out := make([]superstore.RawRecord, 0, opts.Rows)
	for i := 0; i < opts.Rows; i++ {
		c := customers[f.IntRange(0, len(customers)-1)]
		p := products[f.IntRange(0, len(products)-1)]

		orderDate := f.DateRange(start, end)
		shipDate := orderDate.AddDate(0, 0, f.IntRange(0, 7))

		sales := f.Price(2, 2500)
		quantity := f.IntRange(1, 14)
		discount := float64(f.IntRange(0, 8)) * 0.05
		profit := sales * f.Float64Range(-0.2, 0.4)

		rec := superstore.RawRecord{
			OrderID:      fmt.Sprintf("US-%d-%06d", orderDate.Year(), f.IntRange(100000, 999999)),
			OrderDate:    orderDate.Format("1/2/2006"),
			ShipDate:     shipDate.Format("1/2/2006"),
			ShipMode:     shipModes[f.IntRange(0, len(shipModes)-1)],
			CustomerID:   c.id,
			CustomerName: c.name,
			Segment:      c.segment,
			City:         c.city,
			State:        c.state,
			PostalCode:   c.postal,
			Region:       c.region,
			Country:      "United States",
			ProductID:    p.id,
			ProductName:  p.name,
			Category:     p.category,
			SubCategory:  p.sub,
			Sales:        strconv.FormatFloat(sales, 'f', 2, 64),
			Quantity:     strconv.Itoa(quantity),
			Discount:     strconv.FormatFloat(discount, 'f', 2, 64),
			Profit:       strconv.FormatFloat(profit, 'f', 2, 64),
		}

		if f.Float64Range(0, 1) < opts.InvalidRate {
			rec.OrderDate = "n/a"
		}

		out = append(out, rec)
		if f.Float64Range(0, 1) < opts.DuplicateRate {
			out = append(out, rec)
		}
	}
	return out
}

// WriteCSV writes rows in the raw export layout, header included.
func WriteCSV(w io.Writer, recs []superstore.RawRecord) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(superstore.RawColumns); err != nil {
		return err
	}
	for _, r := range recs {
		row := []string{
			r.OrderID, r.OrderDate, r.ShipDate, r.ShipMode,
			r.CustomerID, r.CustomerName, r.Segment,
			r.City, r.State, r.PostalCode, r.Region, r.Country,
			r.ProductID, r.ProductName, r.Category, r.SubCategory,
			r.Sales, r.Quantity, r.Discount, r.Profit,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func poolSize(requested, derived int) int {
	if requested > 0 {
		return requested
	}
	if derived < 1 {
		return 1
	}
	return derived
}

func buildCustomers(f *gofakeit.Faker, n int) []customer {
	out := make([]customer, n)
	for i := range out {
		first, last := f.FirstName(), f.LastName()
		out[i] = customer{
			id:      fmt.Sprintf("%s%s-%05d", initial(first), initial(last), f.IntRange(10000, 99999)),
			name:    first + " " + last,
			segment: segments[f.IntRange(0, len(segments)-1)],
			city:    f.City(),
			state:   f.State(),
			postal:  f.Zip(),
			region:  regions[f.IntRange(0, len(regions)-1)],
		}
	}
	return out
}

func buildProducts(f *gofakeit.Faker, n int) []product {
	out := make([]product, n)
	for i := range out {
		cat := categories[f.IntRange(0, len(categories)-1)]
		subs := subCategories[cat]
		sub := subs[f.IntRange(0, len(subs)-1)]
		out[i] = product{
			id:       fmt.Sprintf("%s-%s-%08d", catCode(cat), subCode(sub), f.IntRange(10000000, 99999999)),
			name:     f.ProductName(),
			category: cat,
			sub:      sub,
		}
	}
	return out
}

func initial(s string) string {
	if s == "" {
		return "X"
	}
	return s[:1]
}

func catCode(cat string) string {
	switch cat {
	case "Furniture":
		return "FUR"
	case "Office Supplies":
		return "OFF"
	default:
		return "TEC"
	}
}

func subCode(sub string) string {
	if len(sub) < 2 {
		return "XX"
	}
	return string([]byte{sub[0] &^ 0x20, sub[1] &^ 0x20})
}
