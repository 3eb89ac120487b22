package xref

import (
	"errors"
	"fmt"

	"github.com/msonnier/pdfcore/filters"
	"github.com/msonnier/pdfcore/model"
	"github.com/msonnier/pdfcore/parser"
	"github.com/msonnier/pdfcore/pdftokenizer"
)

type xrefStreamLayout struct {
	w     [3]int
	index [][2]int
	size  int
}

func (l xrefStreamLayout) entrySize() int { return l.w[0] + l.w[1] + l.w[2] }

func (l xrefStreamLayout) count() int {
	n := 0
	for _, pair := range l.index {
		n += pair[1]
	}
	return n
}

// parseXRefStream parses a cross-reference stream (PDF 7.5.8) at offset.
// The stream is read here directly and never decrypted, since xref streams
// are never encrypted; a row the stream lists for its own object number is
// entered into the table like any other row.
func (t *Table) parseXRefStream(offset int64) (prev int64, err error) {
	tk := pdftokenizer.NewTokenizer(t.data[offset:])
	if _, _, err := parser.ParseHeader(tk); err != nil {
		return 0, fmt.Errorf("xref: xref stream header: %w", err)
	}
	v, err := parser.NewParserFromTokenizer(tk).ParseObject()
	if err != nil {
		return 0, fmt.Errorf("xref: xref stream dict: %w", err)
	}
	d := v.AsDict()
	if d == nil {
		return 0, errors.New("xref: xref stream is not a dictionary")
	}
	streamOffset, isStream, err := parser.SkipStreamKeyword(tk)
	if err != nil {
		return 0, err
	}
	if !isStream {
		return 0, errors.New("xref: expected stream keyword after xref stream dictionary")
	}

	layout, err := parseXRefStreamLayout(d)
	if err != nil {
		return 0, err
	}

	lengthVal, _ := d.Get("Length")
	if lengthVal.Kind() != model.KindInt {
		return 0, errors.New("xref: xref stream /Length must be a direct integer")
	}
	contentOffset := offset + int64(streamOffset)
	end := contentOffset + lengthVal.AsInt()
	if end > int64(len(t.data)) {
		return 0, errors.New("xref: xref stream content exceeds file size")
	}
	raw := t.data[contentOffset:end]

	decoded, err := filters.Decode(raw, d, filters.DefaultLimits)
	if err != nil {
		return 0, fmt.Errorf("xref: decoding xref stream content: %w", err)
	}
	if err := t.applyXRefStreamEntries(decoded, layout); err != nil {
		return 0, err
	}
	if err := t.Trailer.merge(d); err != nil {
		return 0, err
	}
	if pv, ok := d.Get("Prev"); ok {
		if r, err := asReference(pv); err == nil {
			prev = int64(r.Num)
		}
	}
	return prev, nil
}

func parseXRefStreamLayout(d *model.Dict) (xrefStreamLayout, error) {
	var l xrefStreamLayout
	sizeVal, ok := d.Get("Size")
	if !ok || sizeVal.Kind() != model.KindInt {
		return l, errors.New("xref: xref stream missing /Size")
	}
	l.size = int(sizeVal.AsInt())

	wVal, ok := d.Get("W")
	if !ok || wVal.Kind() != model.KindArray || len(wVal.AsArray()) < 3 {
		return l, errors.New("xref: xref stream missing/invalid /W")
	}
	w := wVal.AsArray()
	for i := 0; i < 3; i++ {
		if !w[i].IsNumeric() {
			return l, errors.New("xref: /W entries must be integers")
		}
		l.w[i] = int(w[i].AsInt())
	}

	if idxVal, ok := d.Get("Index"); ok && idxVal.Kind() == model.KindArray {
		arr := idxVal.AsArray()
		for i := 0; i+1 < len(arr); i += 2 {
			l.index = append(l.index, [2]int{int(arr[i].AsInt()), int(arr[i+1].AsInt())})
		}
	} else {
		l.index = [][2]int{{0, l.size}}
	}
	return l, nil
}

func bufToInt64(b []byte) int64 {
	var v int64
	for _, c := range b {
		v = (v << 8) | int64(c)
	}
	return v
}

// applyXRefStreamEntries decodes the packed W-width rows per /Index
// subsection, honoring the same first-write-wins (== newest-wins, since
// the /Prev chain is walked newest-first) rule as classical xref parsing.
func (t *Table) applyXRefStreamEntries(buf []byte, l xrefStreamLayout) error {
	entrySize := l.entrySize()
	if entrySize == 0 {
		return errors.New("xref: /W entries sum to zero")
	}
	need := l.count() * entrySize
	if len(buf) < need {
		return fmt.Errorf("xref: decoded xref stream too short: got %d bytes, need %d", len(buf), need)
	}
	buf = buf[:need] // tolerate trailing extra bytes some writers append

	pos := 0
	for _, sub := range l.index {
		startObj, n := sub[0], sub[1]
		for i := 0; i < n; i++ {
			row := buf[pos : pos+entrySize]
			pos += entrySize

			typeField := row[:l.w[0]]
			c2Field := row[l.w[0] : l.w[0]+l.w[1]]
			c3Field := row[l.w[0]+l.w[1] : entrySize]

			typ := int64(1)
			if l.w[0] > 0 {
				typ = bufToInt64(typeField)
			}
			c2 := bufToInt64(c2Field)
			c3 := bufToInt64(c3Field)

			objNum := uint32(startObj + i)
			if _, exists := t.entries[objNum]; exists {
				continue
			}
			switch typ {
			case 0:
				t.entries[objNum] = Entry{Free: true, Offset: c2, Gen: uint16(c3)}
			case 1:
				t.entries[objNum] = Entry{Offset: c2, Gen: uint16(c3)}
			case 2:
				t.entries[objNum] = Entry{StreamObjNum: uint32(c2), StreamIndex: int(c3)}
			default:
				return fmt.Errorf("xref: unknown xref stream entry type %d", typ)
			}
		}
	}
	return nil
}
