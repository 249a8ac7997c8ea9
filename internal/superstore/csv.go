package superstore

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ReadRaw parses the raw delimited export into RawRecords.
//
// The header row is required. Header names are matched after trimming edge
// whitespace and stripping a leading BOM from the first cell; missing
// required columns fail the read. Rows with a malformed field count are
// reported through onErr (line number attached) and skipped; onErr may be
// nil.
func ReadRaw(r io.Reader, onErr func(line int, err error)) ([]RawRecord, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	// FieldsPerRecord stays 0: the header row fixes the expected count, so
	// truncated or overlong rows surface as csv.ErrFieldCount.

	line := 0
	readRec := func() ([]string, error) {
		line++
		return cr.Read()
	}

	hdr, err := readRec()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	colIx, err := indexHeader(hdr)
	if err != nil {
		return nil, err
	}

	var out []RawRecord
	for {
		rec, err := readRec()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			if onErr != nil {
				onErr(line, fmt.Errorf("csv read: %w", err))
			}
			continue
		}

		get := func(col string) string {
			i := colIx[col]
			if i < 0 || i >= len(rec) {
				return ""
			}
			return rec[i]
		}

		out = append(out, RawRecord{
			OrderID:      get(ColOrderID),
			OrderDate:    get(ColOrderDate),
			ShipDate:     get(ColShipDate),
			ShipMode:     get(ColShipMode),
			CustomerID:   get(ColCustomerID),
			CustomerName: get(ColCustomerName),
			Segment:      get(ColSegment),
			City:         get(ColCity),
			State:        get(ColState),
			PostalCode:   get(ColPostalCode),
			Region:       get(ColRegion),
			Country:      get(ColCountry),
			ProductID:    get(ColProductID),
			ProductName:  get(ColProductName),
			Category:     get(ColCategory),
			SubCategory:  get(ColSubCategory),
			Sales:        get(ColSales),
			Quantity:     get(ColQuantity),
			Discount:     get(ColDiscount),
			Profit:       get(ColProfit),
		})
	}
}

func indexHeader(hdr []string) (map[string]int, error) {
	colIx := make(map[string]int, len(RawColumns))
	for _, c := range RawColumns {
		colIx[c] = -1
	}

	for i, h := range hdr {
		h = strings.TrimSpace(h)
		if i == 0 {
			h = strings.TrimPrefix(h, "\uFEFF")
		}
		if _, want := colIx[h]; want {
			colIx[h] = i
		}
	}

	var missing []string
	for _, c := range RawColumns {
		if colIx[c] < 0 {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("header missing columns: %s", strings.Join(missing, ", "))
	}
	return colIx, nil
}

// WriteProcessed writes normalized records as the processed file: the raw
// columns plus Year, Month, Quarter and Profit Margin. This file is the
// transform phase's committed output and the load phase's input.
func WriteProcessed(w io.Writer, recs []NormalizedRecord) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(ProcessedColumns); err != nil {
		return err
	}

	for _, n := range recs {
		row := []string{
			n.OrderID,
			n.OrderDate.Format(dateLayout),
			n.ShipDate.Format(dateLayout),
			n.ShipMode,
			n.CustomerID,
			n.CustomerName,
			n.Segment,
			n.City,
			n.State,
			n.PostalCode,
			n.Region,
			n.Country,
			n.ProductID,
			n.ProductName,
			n.Category,
			n.SubCategory,
			formatFloat(n.Sales),
			strconv.Itoa(n.Quantity),
			formatFloat(n.Discount),
			formatFloat(n.Profit),
			strconv.Itoa(n.Year),
			strconv.Itoa(n.Month),
			n.Quarter,
			formatFloat(n.ProfitMargin),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadProcessed reads a processed file back into normalized records.
//
// The processed file is a committed artifact, so malformed rows are an error
// here rather than a skip: a transform that wrote garbage must not be
// silently loaded.
func ReadProcessed(r io.Reader) ([]NormalizedRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(ProcessedColumns)

	hdr, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i, want := range ProcessedColumns {
		got := strings.TrimSpace(hdr[i])
		if i == 0 {
			got = strings.TrimPrefix(got, "\uFEFF")
		}
		if got != want {
			return nil, fmt.Errorf("processed header mismatch at column %d: got %q want %q", i, got, want)
		}
	}

	var out []NormalizedRecord
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return out, nil
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("processed line %d: %w", line, err)
		}

		n, err := parseProcessedRow(rec)
		if err != nil {
			return nil, fmt.Errorf("processed line %d: %w", line, err)
		}
		out = append(out, n)
	}
}

func parseProcessedRow(rec []string) (NormalizedRecord, error) {
	orderDate, ok := parseRawDate(rec[1])
	if !ok {
		return NormalizedRecord{}, fmt.Errorf("bad order date %q", rec[1])
	}
	shipDate, ok := parseRawDate(rec[2])
	if !ok {
		return NormalizedRecord{}, fmt.Errorf("bad ship date %q", rec[2])
	}

	sales, err := strconv.ParseFloat(rec[16], 64)
	if err != nil {
		return NormalizedRecord{}, fmt.Errorf("bad sales %q", rec[16])
	}
	quantity, err := strconv.Atoi(rec[17])
	if err != nil {
		return NormalizedRecord{}, fmt.Errorf("bad quantity %q", rec[17])
	}
	discount, err := strconv.ParseFloat(rec[18], 64)
	if err != nil {
		return NormalizedRecord{}, fmt.Errorf("bad discount %q", rec[18])
	}
	profit, err := strconv.ParseFloat(rec[19], 64)
	if err != nil {
		return NormalizedRecord{}, fmt.Errorf("bad profit %q", rec[19])
	}
	year, err := strconv.Atoi(rec[20])
	if err != nil {
		return NormalizedRecord{}, fmt.Errorf("bad year %q", rec[20])
	}
	month, err := strconv.Atoi(rec[21])
	if err != nil {
		return NormalizedRecord{}, fmt.Errorf("bad month %q", rec[21])
	}
	margin, err := strconv.ParseFloat(rec[23], 64)
	if err != nil {
		return NormalizedRecord{}, fmt.Errorf("bad profit margin %q", rec[23])
	}

	return NormalizedRecord{
		OrderID:      rec[0],
		OrderDate:    orderDate,
		ShipDate:     shipDate,
		ShipMode:     rec[3],
		CustomerID:   rec[4],
		CustomerName: rec[5],
		Segment:      rec[6],
		City:         rec[7],
		State:        rec[8],
		PostalCode:   rec[9],
		Region:       rec[10],
		Country:      rec[11],
		ProductID:    rec[12],
		ProductName:  rec[13],
		Category:     rec[14],
		SubCategory:  rec[15],
		Sales:        sales,
		Quantity:     quantity,
		Discount:     discount,
		Profit:       profit,
		Year:         year,
		Month:        month,
		Quarter:      rec[22],
		ProfitMargin: margin,
	}, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
