package writer

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"sort"

	"github.com/msonnier/pdfcore/model"
	"github.com/msonnier/pdfcore/registry"
	"github.com/msonnier/pdfcore/security"
)

// TrailerInfo carries the trailer fields a full or incremental save needs
// that are not derivable from the registry alone.
type TrailerInfo struct {
	Root model.Reference
	Info *model.Reference
	ID0  []byte // preserved across saves; nil means "generate a fresh one too"

	// Security and Encrypt carry an already-encrypted document's crypto
	// state across the save: Security, if non-nil, is applied to every
	// written object's strings and stream payload except Encrypt itself
	// (never self-encrypted) and the xref stream (spec.md §4.5). Encrypt
	// is the /Encrypt dict's own indirect reference, copied into the new
	// trailer so conforming readers know to decrypt.
	Security *security.Handler
	Encrypt  *model.Reference
}

// encryptForWrite applies trailer's encryption, if any, to v before it is
// serialized: the stream's dictionary's string values and raw payload are
// encrypted separately (they may use distinct crypt filters), mirroring
// document.decryptValue's read-side handling in reverse. The /Encrypt
// dictionary object itself is never encrypted.
func encryptForWrite(t TrailerInfo, ref model.Reference, v model.Value) (model.Value, error) {
	if t.Security == nil || (t.Encrypt != nil && ref == *t.Encrypt) {
		return v, nil
	}
	if v.Kind() == model.KindStream {
		s := v.AsStream()
		raw, err := t.Security.EncryptStream(s.Raw, ref)
		if err != nil {
			return model.Value{}, err
		}
		dict, err := t.Security.EncryptValue(model.DictV(s.Dict), ref)
		if err != nil {
			return model.Value{}, err
		}
		return model.StreamV(&model.Stream{Dict: dict.AsDict(), Raw: raw}), nil
	}
	return t.Security.EncryptValue(v, ref)
}

// WriteFull serializes every reachable object in r from scratch: header,
// body in ascending object-number order, classical xref table, trailer,
// startxref (spec.md §4.9). version is the header's "%PDF-M.m" suffix
// (e.g. "1.7").
func WriteFull(r *registry.Registry, trailer TrailerInfo, version string) ([]byte, error) {
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

	xrefOffset := int64(buf.Len())
	writeClassicalXref(&buf, offsets, maxNum)
	writeTrailer(&buf, int(maxNum)+1, trailer, 0, freshID(trailer.ID0))
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF\n", xrefOffset)
	return buf.Bytes(), nil
}

func writeClassicalXref(buf *bytes.Buffer, offsets map[uint32]int64, maxNum uint32) {
	buf.WriteString("xref\n")
	fmt.Fprintf(buf, "0 %d\n", maxNum+1)
	buf.WriteString("0000000000 65535 f \n")
	for n := uint32(1); n <= maxNum; n++ {
		if off, ok := offsets[n]; ok {
			fmt.Fprintf(buf, "%010d 00000 n \n", off)
		} else {
			buf.WriteString("0000000000 65535 f \n")
		}
	}
}

func writeTrailer(buf *bytes.Buffer, size int, t TrailerInfo, prev int64, id [2][]byte) {
	buf.WriteString("trailer\n")
	d := model.NewDict()
	d.Set("Size", model.Int(int64(size)))
	d.Set("Root", model.RefV(t.Root))
	if t.Info != nil {
		d.Set("Info", model.RefV(*t.Info))
	}
	d.Set("ID", model.ArrayV(model.StringHex(string(id[0])), model.StringHex(string(id[1]))))
	if prev > 0 {
		d.Set("Prev", model.Int(prev))
	}
	if t.Encrypt != nil {
		d.Set("Encrypt", model.RefV(*t.Encrypt))
	}
	buf.WriteString(FormatValue(model.DictV(d)))
	buf.WriteByte('\n')
}

// freshID regenerates /ID[1] on every save (Open Question (a), decided in
// DESIGN.md: a fresh random value, not content-derived) while preserving
// /ID[0] when one was carried over from a previous trailer.
func freshID(id0 []byte) [2][]byte {
	var out [2][]byte
	fresh := make([]byte, 16)
	_, _ = rand.Read(fresh)
	out[1] = fresh
	if len(id0) > 0 {
		out[0] = id0
	} else {
		out[0] = append([]byte(nil), fresh...)
	}
	return out
}
