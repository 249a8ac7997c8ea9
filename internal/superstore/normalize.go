package superstore

import (
	"strconv"
	"strings"
)

// StageCounts makes the row counts at each filtering stage observable: the
// drop policy is `output == input - duplicates - invalid rows`, and callers
// log these numbers per run.
type StageCounts struct {
	Input      int
	Duplicates int
	Invalid    int
	Output     int
}

// NormalizeResult is the output of Normalize: the surviving typed records
// plus the per-stage counts.
type NormalizeResult struct {
	Records []NormalizedRecord
	Counts  StageCounts
}

// Normalize turns raw rows into fact-ready records.
//
// Filtering order (order matters only for the reported counts):
//  1. exact-duplicate rows (every field equal) are dropped
//  2. rows whose Order Date, Ship Date, or numeric measures do not parse
//     are dropped
//
// Parse failures are recovered per row and never abort the batch. The output
// set contains no two field-wise identical records and no record with an
// unparseable date.
func Normalize(raw []RawRecord) NormalizeResult {
	res := NormalizeResult{
		Counts: StageCounts{Input: len(raw)},
	}

	seen := make(map[RawRecord]struct{}, len(raw))
	deduped := make([]RawRecord, 0, len(raw))
	for _, r := range raw {
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		deduped = append(deduped, r)
	}
	res.Counts.Duplicates = res.Counts.Input - len(deduped)

	res.Records = make([]NormalizedRecord, 0, len(deduped))
	for _, r := range deduped {
		n, ok := coerce(r)
		if !ok {
			res.Counts.Invalid++
			continue
		}
		res.Records = append(res.Records, n)
	}
	res.Counts.Output = len(res.Records)

	return res
}

// coerce types one raw row. The bool result marks rows that must be dropped;
// derived fields are only trustworthy when it is true.
func coerce(r RawRecord) (NormalizedRecord, bool) {
	orderDate, ok := parseRawDate(strings.TrimSpace(r.OrderDate))
	if !ok {
		return NormalizedRecord{}, false
	}
	shipDate, ok := parseRawDate(strings.TrimSpace(r.ShipDate))
	if !ok {
		return NormalizedRecord{}, false
	}

	sales, err := strconv.ParseFloat(strings.TrimSpace(r.Sales), 64)
	if err != nil {
		return NormalizedRecord{}, false
	}
	quantity, err := strconv.Atoi(strings.TrimSpace(r.Quantity))
	if err != nil {
		return NormalizedRecord{}, false
	}
	discount, err := strconv.ParseFloat(strings.TrimSpace(r.Discount), 64)
	if err != nil {
		return NormalizedRecord{}, false
	}
	profit, err := strconv.ParseFloat(strings.TrimSpace(r.Profit), 64)
	if err != nil {
		return NormalizedRecord{}, false
	}

	return NormalizedRecord{
		OrderID:   strings.TrimSpace(r.OrderID),
		OrderDate: orderDate,
		ShipDate:  shipDate,
		ShipMode:  strings.TrimSpace(r.ShipMode),

		CustomerID:   strings.TrimSpace(r.CustomerID),
		CustomerName: strings.TrimSpace(r.CustomerName),
		Segment:      strings.TrimSpace(r.Segment),
		City:         strings.TrimSpace(r.City),
		State:        strings.TrimSpace(r.State),
		PostalCode:   strings.TrimSpace(r.PostalCode),
		Region:       strings.TrimSpace(r.Region),
		Country:      strings.TrimSpace(r.Country),

		ProductID:   strings.TrimSpace(r.ProductID),
		ProductName: strings.TrimSpace(r.ProductName),
		Category:    strings.TrimSpace(r.Category),
		SubCategory: strings.TrimSpace(r.SubCategory),

		Sales:    sales,
		Quantity: quantity,
		Discount: discount,
		Profit:   profit,

		Year:         orderDate.Year(),
		Month:        int(orderDate.Month()),
		Quarter:      QuarterString(orderDate),
		ProfitMargin: ProfitMargin(profit, sales),
	}, true
}
