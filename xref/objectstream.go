package xref

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/msonnier/pdfcore/filters"
	"github.com/msonnier/pdfcore/model"
	"github.com/msonnier/pdfcore/parser"
)

// decodeObjectStream decodes and caches the N compressed objects packed
// into the object stream numbered num (PDF 7.5.7): a prolog of N pairs of
// (object number, offset-relative-to-/First) followed by the concatenated
// object bodies, each parsed independently (compressed objects have no
// "N G obj" header of their own).
func (t *Table) decodeObjectStream(num uint32) ([]model.Value, error) {
	if cached, ok := t.objStreamCache[num]; ok {
		return cached, nil
	}

	v, err := t.GetObject(model.Reference{Num: num})
	if err != nil {
		return nil, fmt.Errorf("xref: object stream %d: %w", num, err)
	}
	s := v.AsStream()
	if s == nil {
		return nil, fmt.Errorf("xref: object %d is not a stream", num)
	}
	if typ, _ := s.Dict.TypeName(); typ != "ObjStm" {
		t.warn("object %d used as an object stream lacks /Type /ObjStm", num)
	}
	if _, ok := s.Dict.Get("Extents"); ok {
		return nil, fmt.Errorf("xref: object stream %d: /Extents is not supported", num)
	}

	decoded, err := filters.DecodeStream(s, filters.DefaultLimits)
	if err != nil {
		return nil, fmt.Errorf("xref: decoding object stream %d: %w", num, err)
	}

	nVal, ok := s.Dict.Get("N")
	if !ok {
		return nil, fmt.Errorf("xref: object stream %d missing /N", num)
	}
	firstVal, ok := s.Dict.Get("First")
	if !ok {
		return nil, fmt.Errorf("xref: object stream %d missing /First", num)
	}
	n := int(nVal.AsInt())
	first := int(firstVal.AsInt())
	if first < 0 || first > len(decoded) {
		return nil, fmt.Errorf("xref: object stream %d /First out of bounds", num)
	}

	// Some writers use 0x00 instead of whitespace to separate prolog
	// fields.
	prolog := bytes.ReplaceAll(decoded[:first], []byte{0}, []byte{' '})
	fields := bytes.Fields(prolog)
	if len(fields) != 2*n {
		return nil, fmt.Errorf("xref: object stream %d prolog has %d fields, want %d", num, len(fields), 2*n)
	}
	offsets := make([]int, n)
	for i := 0; i < n; i++ {
		off, err := strconv.Atoi(string(fields[2*i+1]))
		if err != nil {
			return nil, fmt.Errorf("xref: object stream %d prolog offset: %w", num, err)
		}
		offsets[i] = off
	}

	objs := make([]model.Value, n)
	for i := 0; i < n; i++ {
		start := first + offsets[i]
		end := len(decoded)
		if i+1 < n {
			end = first + offsets[i+1]
		}
		if start < 0 || end > len(decoded) || start > end {
			return nil, fmt.Errorf("xref: object stream %d entry %d out of bounds", num, i)
		}
		val, err := parser.ParseObject(decoded[start:end])
		if err != nil {
			return nil, fmt.Errorf("xref: object stream %d entry %d: %w", num, i, err)
		}
		objs[i] = val
	}

	t.objStreamCache[num] = objs
	return objs, nil
}
