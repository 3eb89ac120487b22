package xref

import (
	"bytes"
	"fmt"

	"github.com/msonnier/pdfcore/model"
	"github.com/msonnier/pdfcore/parser"
	"github.com/msonnier/pdfcore/pdftokenizer"
)

// bruteForceRecover rebuilds the xref table by scanning the entire file for
// "N G obj" headers, on the assumption of a single xref section (no
// incremental updates can be trusted once we're here). Setting
// BruteForceRecovered disables incremental save: package writer must not
// append to a file whose recorded object offsets were guessed rather than
// read from a trustworthy xref table.
func (t *Table) bruteForceRecover() error {
	t.BruteForceRecovered = true
	data := t.data
	pos := 0
	for pos < len(data) {
		if isDigit(data[pos]) && (pos == 0 || isWhitespaceByte(data[pos-1])) {
			tk := pdftokenizer.NewTokenizer(data[pos:])
			num, gen, err := parser.ParseHeader(tk)
			if err == nil {
				// Last occurrence in the file wins: a single xref section
				// is assumed, so later bytes represent the newer object.
				t.entries[uint32(num)] = Entry{Offset: int64(pos), Gen: uint16(gen)}
				if idx := bytes.Index(data[pos:], []byte("endobj")); idx >= 0 {
					pos += idx + len("endobj")
					continue
				}
			}
		}
		pos++
	}

	if idx := bytes.LastIndex(data, []byte("trailer")); idx >= 0 {
		tk := pdftokenizer.NewTokenizer(data[idx+len("trailer"):])
		if v, err := parser.NewParserFromTokenizer(tk).ParseObject(); err == nil {
			if d := v.AsDict(); d != nil {
				_ = t.Trailer.merge(d)
			}
		}
	}

	if t.Trailer.Root == nil {
		if err := t.findCatalogByScanning(); err != nil {
			return err
		}
	}
	if t.Trailer.Root == nil {
		return fmt.Errorf("xref: brute-force recovery found no /Type /Catalog object")
	}
	return nil
}

// findCatalogByScanning looks through every recovered object for one whose
// /Type is /Catalog, used when no (or a corrupt) trailer was found.
func (t *Table) findCatalogByScanning() error {
	for num, e := range t.entries {
		if e.Free || e.StreamObjNum != 0 {
			continue
		}
		ref := model.Reference{Num: num, Gen: e.Gen}
		v, err := t.parseIndirectObjectAt(e.Offset, ref)
		if err != nil {
			continue
		}
		d := v.AsDict()
		if d == nil {
			continue
		}
		if typ, ok := d.TypeName(); ok && typ == "Catalog" {
			t.Trailer.Root = &ref
			return nil
		}
	}
	return nil
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func isWhitespaceByte(b byte) bool {
	switch b {
	case 0, 9, 10, 12, 13, 32:
		return true
	default:
		return false
	}
}
