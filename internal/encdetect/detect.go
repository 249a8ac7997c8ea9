// Package encdetect infers the text encoding of a raw source file before
// parsing.
//
// Detection is layered:
//   - byte-order marks are authoritative
//   - a full UTF-8 validity scan covers the common case
//   - everything else falls back to the statistical scanner in
//     golang.org/x/net/html/charset, which in practice labels legacy retail
//     exports as windows-1252
//
// Detection never modifies the input; decoding happens via NewReader.
package encdetect

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrEmptySource is returned when the source holds no bytes at all.
var ErrEmptySource = errors.New("encdetect: source is empty")

// AmbiguousEncodingError reports a detection whose confidence fell below the
// caller's configured floor.
type AmbiguousEncodingError struct {
	Name       string
	Confidence float64
}

func (e *AmbiguousEncodingError) Error() string {
	return fmt.Sprintf("encdetect: encoding %q detected with confidence %.2f", e.Name, e.Confidence)
}

// Result is a best-guess encoding label with a confidence score.
type Result struct {
	// Name is the canonical encoding label, e.g. "utf-8" or "windows-1252".
	Name string

	// Confidence is in (0, 1]. BOM and full UTF-8 scans score high;
	// statistical fallbacks score 0.5.
	Confidence float64

	enc encoding.Encoding
}

// Detect inspects raw bytes and returns a best-guess encoding.
//
// Errors:
//   - ErrEmptySource when b is empty.
//
// Detect never fails on undecidable content; callers that want to reject
// low-confidence guesses compare Result.Confidence against their own floor
// and wrap the result in an AmbiguousEncodingError.
func Detect(b []byte) (Result, error) {
	if len(b) == 0 {
		return Result{}, ErrEmptySource
	}

	if r, ok := detectBOM(b); ok {
		return r, nil
	}

	if utf8.Valid(b) {
		conf := 1.0
		if containsNonASCII(b) {
			// Multi-byte sequences validated, but no BOM to confirm.
			conf = 0.9
		}
		return Result{Name: "utf-8", Confidence: conf}, nil
	}

	enc, name, certain := charset.DetermineEncoding(b, "")
	conf := 0.5
	if certain {
		conf = 1.0
	}
	return Result{Name: name, Confidence: conf, enc: enc}, nil
}

// NewReader wraps r so that reads yield UTF-8 regardless of the detected
// source encoding. A BOM, if present, is stripped.
func (res Result) NewReader(r io.Reader) io.Reader {
	if res.enc == nil {
		// utf-8 (with or without BOM): strip the BOM, pass bytes through.
		return transform.NewReader(r, unicode.BOMOverride(transform.Nop))
	}
	return transform.NewReader(r, res.enc.NewDecoder())
}

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16BE = []byte{0xFE, 0xFF}
	bomUTF16LE = []byte{0xFF, 0xFE}
)

func detectBOM(b []byte) (Result, bool) {
	switch {
	case bytes.HasPrefix(b, bomUTF8):
		return Result{Name: "utf-8", Confidence: 1.0}, true
	case bytes.HasPrefix(b, bomUTF16BE):
		return Result{
			Name:       "utf-16be",
			Confidence: 1.0,
			enc:        unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM),
		}, true
	case bytes.HasPrefix(b, bomUTF16LE):
		return Result{
			Name:       "utf-16le",
			Confidence: 1.0,
			enc:        unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM),
		}, true
	}
	return Result{}, false
}

func containsNonASCII(b []byte) bool {
	for _, c := range b {
		if c >= utf8.RuneSelf {
			return true
		}
	}
	return false
}
