package writer

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/msonnier/pdfcore/filters"
	"github.com/msonnier/pdfcore/model"
	"github.com/msonnier/pdfcore/registry"
)

// appendXRefStreamEntry packs one row of an xref stream using the fixed
// width w = (1, 4, 1): a 1-byte type, a 4-byte big-endian offset/index, and
// a 1-byte generation/stream-index, matching the on-disk layout spec.md
// §4.3 describes for /W [1 4 1].
//
// code adapted from other_examples/85bff5ca_wudi-pdfkit__writer-writer_impl.go.go's
// appendXRefStreamEntry.
func appendXRefStreamEntry(buf []byte, typ byte, field2 uint32, field3 int) []byte {
	buf = append(buf, typ, byte(field2>>24), byte(field2>>16), byte(field2>>8), byte(field2))
	return append(buf, byte(field3))
}

// WriteFullXRefStream is WriteFull's counterpart for a document saved with
// an xref stream (PDF 7.5.8) instead of a classical table: the xref
// section itself is the last object, a stream of type /XRef.
func WriteFullXRefStream(r *registry.Registry, trailer TrailerInfo, version string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("%PDF-" + version + "\n")
	buf.Write([]byte{'%', 0xE2, 0xE3, 0xCF, 0xD3, '\n'})

	offsets := map[uint32]int64{}
	var refs []model.Reference
	r.ForEachLoaded(func(ref model.Reference, v model.Value) { refs = append(refs, ref) })
	r.ForEachNew(func(ref model.Reference, v model.Value) { refs = append(refs, ref) })
	sort.Slice(refs, func(i, j int) bool { return refs[i].Num < refs[j].Num })

	maxNum := uint32(0)
	for _, ref := range refs {
		v, err := r.GetObject(ref)
		if err != nil {
			return nil, fmt.Errorf("writer: resolving object %s: %w", ref, err)
		}
		v, err = encryptForWrite(trailer, ref, v)
		if err != nil {
			return nil, fmt.Errorf("writer: encrypting object %s: %w", ref, err)
		}
		offsets[ref.Num] = writeObjectBody(&buf, ref, v)
		if ref.Num > maxNum {
			maxNum = ref.Num
		}
	}

	xrefRef := model.Reference{Num: maxNum + 1}
	xrefOffset := int64(buf.Len())

	// No /Index is written below, so the default [0, Size] subsection
	// applies: every object number from 0 to maxNum needs a row here, not
	// just the ones actually present, or the implied numbering would drift
	// out of alignment with the rows that do exist.
	entries := appendXRefStreamEntry(nil, 0, 0, 0xffff) // object 0: free, next-free 0, gen 255 (0xffff truncated to the 1-byte field)
	for n := uint32(1); n <= maxNum; n++ {
		if off, ok := offsets[n]; ok {
			entries = appendXRefStreamEntry(entries, 1, uint32(off), 0)
		} else {
			entries = appendXRefStreamEntry(entries, 0, 0, 0xffff)
		}
	}
	entries = appendXRefStreamEntry(entries, 1, uint32(xrefOffset), 0)

	d := model.NewDict()
	d.Set("Type", model.NameV("XRef"))
	d.Set("Size", model.Int(int64(xrefRef.Num)+1))
	d.Set("Root", model.RefV(trailer.Root))
	if trailer.Info != nil {
		d.Set("Info", model.RefV(*trailer.Info))
	}
	id := freshID(trailer.ID0)
	d.Set("ID", model.ArrayV(model.StringHex(string(id[0])), model.StringHex(string(id[1]))))
	if trailer.Encrypt != nil {
		d.Set("Encrypt", model.RefV(*trailer.Encrypt))
	}
	d.Set("W", model.ArrayV(model.Int(1), model.Int(4), model.Int(1)))
	d.Set("Filter", model.NameV("FlateDecode"))
	encoded, err := filters.Encode(entries, d)
	if err != nil {
		return nil, fmt.Errorf("writer: encoding xref stream: %w", err)
	}
	stream := model.StreamV(&model.Stream{Dict: d, Raw: encoded})
	writeObjectBody(&buf, xrefRef, stream)

	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF\n", xrefOffset)
	return buf.Bytes(), nil
}
