// Package superstore parses and normalizes retail sales exports in the
// Superstore layout: one delimited row per order line, with customer,
// product, and shipping attributes inlined.
package superstore

import (
	"fmt"
	"math"
	"time"
)

// Source column headers, as they appear in the raw export.
const (
	ColOrderID      = "Order ID"
	ColOrderDate    = "Order Date"
	ColShipDate     = "Ship Date"
	ColShipMode     = "Ship Mode"
	ColCustomerID   = "Customer ID"
	ColCustomerName = "Customer Name"
	ColSegment      = "Segment"
	ColCity         = "City"
	ColState        = "State"
	ColPostalCode   = "Postal Code"
	ColRegion       = "Region"
	ColCountry      = "Country"
	ColProductID    = "Product ID"
	ColProductName  = "Product Name"
	ColCategory     = "Category"
	ColSubCategory  = "Sub-Category"
	ColSales        = "Sales"
	ColQuantity     = "Quantity"
	ColDiscount     = "Discount"
	ColProfit       = "Profit"
)

// Derived column headers, present only in the processed file.
const (
	ColYear         = "Year"
	ColMonth        = "Month"
	ColQuarter      = "Quarter"
	ColProfitMargin = "Profit Margin"
)

// RawColumns lists the source columns the parser requires, in processed-file
// order.
var RawColumns = []string{
	ColOrderID, ColOrderDate, ColShipDate, ColShipMode,
	ColCustomerID, ColCustomerName, ColSegment,
	ColCity, ColState, ColPostalCode, ColRegion, ColCountry,
	ColProductID, ColProductName, ColCategory, ColSubCategory,
	ColSales, ColQuantity, ColDiscount, ColProfit,
}

// ProcessedColumns is the processed-file header: every raw column plus the
// derived calendar and margin columns.
var ProcessedColumns = append(append([]string{}, RawColumns...),
	ColYear, ColMonth, ColQuarter, ColProfitMargin)

// RawRecord is one line of the source file, untyped. All fields are strings;
// coercion happens in Normalize. The struct is comparable so exact-duplicate
// rows can be detected by value.
type RawRecord struct {
	OrderID      string
	OrderDate    string
	ShipDate     string
	ShipMode     string
	CustomerID   string
	CustomerName string
	Segment      string
	City         string
	State        string
	PostalCode   string
	Region       string
	Country      string
	ProductID    string
	ProductName  string
	Category     string
	SubCategory  string
	Sales        string
	Quantity     string
	Discount     string
	Profit       string
}

// NormalizedRecord is a fact-ready row: typed measures, parsed dates, and
// the derived calendar and margin attributes. Records are built once per run
// and never mutated afterwards.
type NormalizedRecord struct {
	OrderID   string
	OrderDate time.Time
	ShipDate  time.Time
	ShipMode  string

	CustomerID   string
	CustomerName string
	Segment      string
	City         string
	State        string
	PostalCode   string
	Region       string
	Country      string

	ProductID   string
	ProductName string
	Category    string
	SubCategory string

	Sales    float64
	Quantity int
	Discount float64
	Profit   float64

	Year         int
	Month        int
	Quarter      string
	ProfitMargin float64
}

// dateLayout is the on-disk date format for the processed file.
const dateLayout = "2006-01-02"

// rawDateLayouts are accepted source formats, tried in order. The Superstore
// export uses month-first slash dates; ISO dates are accepted so processed
// files can be re-ingested.
var rawDateLayouts = []string{
	"1/2/2006",
	"2006-01-02",
}

// DateKey formats a calendar date as its 8-digit natural key (YYYYMMDD).
func DateKey(t time.Time) int {
	return t.Year()*10000 + int(t.Month())*100 + t.Day()
}

// QuarterString renders a calendar quarter in "2024Q1" form.
func QuarterString(t time.Time) string {
	return fmt.Sprintf("%dQ%d", t.Year(), (int(t.Month())+2)/3)
}

// ProfitMargin computes profit/sales rounded to 2 decimals, half to even.
// A zero sales amount yields a literal 0 margin; that is a business rule,
// not a missing-value marker.
func ProfitMargin(profit, sales float64) float64 {
	if sales == 0 {
		return 0
	}
	return math.RoundToEven(profit/sales*100) / 100
}

func parseRawDate(s string) (time.Time, bool) {
	for _, layout := range rawDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
