package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/unicode"
)

// FmtReal formats a real number for serialization, rounding to 4 decimal
// places per spec.md §4.9 (the teacher's model/writeutils.go FmtFloat rounds
// to 5; we follow the spec's literal wording instead) and avoiding a
// printed "-0".
func FmtReal(f float64) string {
	if f == 0 {
		return "0"
	}
	rounded := math.Round(f*1e4) / 1e4
	if rounded == 0 {
		return "0"
	}
	s := strconv.FormatFloat(rounded, 'f', -1, 64)
	return s
}

var literalReplacer = strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`, "\r", `\r`)

// hasControlByte reports whether b contains a byte outside printable ASCII
// other than LF and TAB, in which case the writer prefers hex-string form over literal-with-
// escapes (spec.md §4.9), unlike the wudi-pdfkit example which always
// escapes in place.
func hasControlByte(b []byte) bool {
	for _, c := range b {
		if c < 0x20 && c != '\n' && c != '\t' || c >= 0x7f {
			return true
		}
	}
	return false
}

// EscapeLiteral backslash-escapes the bytes that must not appear bare
// inside a "(...)" literal string.
func EscapeLiteral(s string) string { return literalReplacer.Replace(s) }

var utf16Enc = unicode.UTF16(unicode.BigEndian, unicode.UseBOM)

// EncodeTextString renders s (assumed to be a PDF text string, i.e. a
// human-readable value rather than raw binary) as a UTF-16BE-with-BOM
// literal string, matching model/writeutils.go's EncodeTextString.
func EncodeTextString(s string) (string, error) {
	encoded, err := utf16Enc.NewEncoder().String(s)
	if err != nil {
		return "", fmt.Errorf("model: encode text string: %w", err)
	}
	return "(" + EscapeLiteral(encoded) + ")", nil
}

// EncodeByteString renders raw bytes as either a literal or hex string,
// picking hex whenever a control byte would otherwise need escaping.
func EncodeByteString(b []byte) string {
	if hasControlByte(b) {
		return "<" + fmt.Sprintf("%X", b) + ">"
	}
	return "(" + EscapeLiteral(string(b)) + ")"
}

// DateTimeString formats t as a PDF date string body (without the
// enclosing parentheses): "D:YYYYMMDDHHmmSS+hh'mm'".
func DateTimeString(t time.Time) string {
	_, offset := t.Zone()
	sign := byte('+')
	if offset < 0 {
		sign = '-'
		offset = -offset
	}
	hh := offset / 3600
	mm := (offset % 3600) / 60
	return fmt.Sprintf("D:%04d%02d%02d%02d%02d%02d%c%02d'%02d'",
		t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), sign, hh, mm)
}

// ParseDate parses a PDF date string of the form "D:YYYYMMDDHHmmSS+hh'mm'",
// tolerating missing trailing components (PDF 7.9.4 allows truncation after
// any field).
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimPrefix(s, "D:")
	if len(s) < 4 {
		return time.Time{}, fmt.Errorf("model: invalid date %q", s)
	}
	field := func(s string, n int, def int) (int, string) {
		if len(s) < n {
			return def, ""
		}
		v, err := strconv.Atoi(s[:n])
		if err != nil {
			return def, s[n:]
		}
		return v, s[n:]
	}
	year, rest := field(s, 4, 0)
	month, rest := field(rest, 2, 1)
	day, rest := field(rest, 2, 1)
	hour, rest := field(rest, 2, 0)
	minute, rest := field(rest, 2, 0)
	second, rest := field(rest, 2, 0)

	loc := time.UTC
	if len(rest) > 0 {
		sign := rest[0]
		rest = rest[1:]
		rest = strings.ReplaceAll(rest, "'", "")
		offH, rest := field(rest, 2, 0)
		offM, _ := field(rest, 2, 0)
		offset := offH*3600 + offM*60
		if sign == '-' {
			offset = -offset
		}
		loc = time.FixedZone("", offset)
	}
	return time.Date(year, time.Month(month), day, hour, minute, second, 0, loc), nil
}

// FilterName identifies a stream filter, per PDF 7.4.
type FilterName Name

const (
	FlateDecode     FilterName = "FlateDecode"
	LZWDecode       FilterName = "LZWDecode"
	ASCII85Decode   FilterName = "ASCII85Decode"
	ASCIIHexDecode  FilterName = "ASCIIHexDecode"
	RunLengthDecode FilterName = "RunLengthDecode"
	CCITTFaxDecode  FilterName = "CCITTFaxDecode"
	DCTDecode       FilterName = "DCTDecode"
	JBIG2Decode     FilterName = "JBIG2Decode"
	JPXDecode       FilterName = "JPXDecode"
	Crypt           FilterName = "Crypt"
)

// Filters resolves the /Filter and /DecodeParms entries of d into an
// ordered list of (name, params) pairs, accepting both the single-filter
// and array-of-filters forms per PDF 7.4.
func Filters(d *Dict) ([]FilterName, []*Dict, error) {
	fv, ok := d.Get("Filter")
	if !ok {
		return nil, nil, nil
	}
	pv, _ := d.Get("DecodeParms")

	var names []FilterName
	var parms []*Dict
	switch fv.Kind() {
	case KindName:
		names = []FilterName{FilterName(fv.AsName())}
		parms = []*Dict{paramsAt(pv, 0)}
	case KindArray:
		for i, e := range fv.AsArray() {
			if e.Kind() != KindName {
				return nil, nil, fmt.Errorf("model: non-name entry in /Filter array")
			}
			names = append(names, FilterName(e.AsName()))
			parms = append(parms, paramsAt(pv, i))
		}
	default:
		return nil, nil, fmt.Errorf("model: /Filter must be a name or array, got %s", fv.Kind())
	}
	return names, parms, nil
}

func paramsAt(pv Value, i int) *Dict {
	switch pv.Kind() {
	case KindDict:
		if i == 0 {
			return pv.AsDict()
		}
		return nil
	case KindArray:
		arr := pv.AsArray()
		if i < len(arr) && arr[i].Kind() == KindDict {
			return arr[i].AsDict()
		}
		return nil
	default:
		return nil
	}
}
