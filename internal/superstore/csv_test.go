package superstore

import (
	"bytes"
	"strings"
	"testing"
)

const rawSample = `Row ID,Order ID,Order Date,Ship Date,Ship Mode,Customer ID,Customer Name,Segment,Country,City,State,Postal Code,Region,Product ID,Category,Sub-Category,Product Name,Sales,Quantity,Discount,Profit
1,CA-2024-100001,2024-03-01,2024-03-05,Second Class,C1,Claire Gute,Consumer,United States,Henderson,Kentucky,42420,South,P1,Furniture,Bookcases,Bush Somerset Collection Bookcase,261.96,2,0,41.91
2,CA-2024-100002,2024-03-02,2024-03-06,Standard Class,C2,Darrin Van Huff,Corporate,United States,Los Angeles,California,90036,West,P2,Office Supplies,Labels,Self-Adhesive Address Labels,14.62,2,0,6.87
`

func TestReadRaw_HeaderMappedByName(t *testing.T) {
	recs, err := ReadRaw(strings.NewReader(rawSample), nil)
	if err != nil {
		t.Fatalf("ReadRaw error: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}

	// Columns are matched by header name, not position: the sample puts
	// Country before City and Product Name after Sub-Category.
	if recs[0].City != "Henderson" || recs[0].Country != "United States" {
		t.Fatalf("column mapping wrong: %+v", recs[0])
	}
	if recs[1].ProductName != "Self-Adhesive Address Labels" {
		t.Fatalf("column mapping wrong: %+v", recs[1])
	}
}

func TestReadRaw_MissingColumn(t *testing.T) {
	_, err := ReadRaw(strings.NewReader("Order ID,Order Date\nO1,2024-03-01\n"), nil)
	if err == nil || !strings.Contains(err.Error(), "header missing columns") {
		t.Fatalf("expected missing-column error, got %v", err)
	}
}

func TestReadRaw_MalformedRowSkipped(t *testing.T) {
	sample := rawSample + "\"unterminated\n"

	var lines []int
	recs, err := ReadRaw(strings.NewReader(sample), func(line int, err error) {
		lines = append(lines, line)
	})
	if err != nil {
		t.Fatalf("ReadRaw error: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected malformed row skipped, got %d records", len(recs))
	}
	if len(lines) == 0 {
		t.Fatalf("expected onErr callback for malformed row")
	}
}

func TestReadRaw_ShortRowSkipped(t *testing.T) {
	sample := rawSample + "3,CA-2024-100003,2024-03-03\n"

	var lines []int
	recs, err := ReadRaw(strings.NewReader(sample), func(line int, err error) {
		lines = append(lines, line)
	})
	if err != nil {
		t.Fatalf("ReadRaw error: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected short row skipped, got %d records", len(recs))
	}
	if len(lines) != 1 || lines[0] != 4 {
		t.Fatalf("expected onErr for line 4, got %v", lines)
	}
}

func TestProcessedRoundTrip(t *testing.T) {
	raw, err := ReadRaw(strings.NewReader(rawSample), nil)
	if err != nil {
		t.Fatalf("ReadRaw error: %v", err)
	}
	res := Normalize(raw)
	if len(res.Records) != 2 {
		t.Fatalf("expected 2 normalized records, got %d", len(res.Records))
	}

	var buf bytes.Buffer
	if err := WriteProcessed(&buf, res.Records); err != nil {
		t.Fatalf("WriteProcessed error: %v", err)
	}

	got, err := ReadProcessed(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("ReadProcessed error: %v", err)
	}
	if len(got) != len(res.Records) {
		t.Fatalf("round trip lost records: %d != %d", len(got), len(res.Records))
	}
	for i := range got {
		if got[i] != res.Records[i] {
			t.Fatalf("record %d changed across round trip:\n got %+v\nwant %+v", i, got[i], res.Records[i])
		}
	}
}

func TestReadProcessed_RejectsHeaderMismatch(t *testing.T) {
	_, err := ReadProcessed(strings.NewReader("Order ID,Nope\n"))
	if err == nil {
		t.Fatalf("expected header mismatch error")
	}
}
