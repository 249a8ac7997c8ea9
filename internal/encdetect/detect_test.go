package encdetect

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"golang.org/x/text/encoding/charmap"
)

func TestDetect_EmptySource(t *testing.T) {
	_, err := Detect(nil)
	if !errors.Is(err, ErrEmptySource) {
		t.Fatalf("expected ErrEmptySource, got %v", err)
	}
}

func TestDetect_ASCII(t *testing.T) {
	res, err := Detect([]byte("Order ID,Order Date\nCA-2024-1,2024-03-01\n"))
	if err != nil {
		t.Fatalf("Detect error: %v", err)
	}
	if res.Name != "utf-8" {
		t.Fatalf("expected utf-8, got %q", res.Name)
	}
	if res.Confidence != 1.0 {
		t.Fatalf("expected confidence 1.0 for pure ASCII, got %v", res.Confidence)
	}
}

func TestDetect_UTF8MultiByte(t *testing.T) {
	res, err := Detect([]byte("Customer Name\nJosé Muñoz\n"))
	if err != nil {
		t.Fatalf("Detect error: %v", err)
	}
	if res.Name != "utf-8" {
		t.Fatalf("expected utf-8, got %q", res.Name)
	}
	if res.Confidence >= 1.0 {
		t.Fatalf("multi-byte without BOM should not be fully certain, got %v", res.Confidence)
	}
}

func TestDetect_UTF8BOM(t *testing.T) {
	b := append([]byte{0xEF, 0xBB, 0xBF}, []byte("Order ID\n")...)
	res, err := Detect(b)
	if err != nil {
		t.Fatalf("Detect error: %v", err)
	}
	if res.Name != "utf-8" || res.Confidence != 1.0 {
		t.Fatalf("expected certain utf-8, got %q %v", res.Name, res.Confidence)
	}

	decoded, err := io.ReadAll(res.NewReader(bytes.NewReader(b)))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(decoded) != "Order ID\n" {
		t.Fatalf("BOM not stripped: %q", decoded)
	}
}

func TestDetect_Windows1252RoundTrip(t *testing.T) {
	// "Muñoz" in cp1252 is invalid UTF-8 (0xF1).
	raw, err := charmap.Windows1252.NewEncoder().Bytes([]byte("Muñoz, José\n"))
	if err != nil {
		t.Fatalf("encode fixture: %v", err)
	}

	res, err := Detect(raw)
	if err != nil {
		t.Fatalf("Detect error: %v", err)
	}
	if res.Name != "windows-1252" {
		t.Fatalf("expected windows-1252, got %q", res.Name)
	}
	if res.Confidence >= 1.0 {
		t.Fatalf("statistical fallback should not be fully certain, got %v", res.Confidence)
	}

	decoded, err := io.ReadAll(res.NewReader(bytes.NewReader(raw)))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(decoded), "Muñoz") {
		t.Fatalf("decode failed: %q", decoded)
	}
}

func TestAmbiguousEncodingError_Message(t *testing.T) {
	err := &AmbiguousEncodingError{Name: "windows-1252", Confidence: 0.5}
	if !strings.Contains(err.Error(), "windows-1252") {
		t.Fatalf("unexpected message: %v", err)
	}
}
