// Package writer implements the two serialization modes of spec.md §4.9 and
// §4.10: a full rewrite that emits every object from scratch, and an
// incremental (append-only) update that preserves every byte of the
// original file and appends only what changed.
//
// code adapted from the teacher's model/writer/writer.go (WriteObject's
// record-offset-before-writing idiom, CreateObject's allocate-now
// placeholder idiom, writeHeader's binary marker, the classical
// xref/trailer layout in writeFooter) for the full-save path, and from
// other_examples/85bff5ca_wudi-pdfkit__writer-writer_impl.go.go (the
// incremental-save-specific mechanics: contiguous-run xref subsectioning,
// packed xref-stream entry bytes, conditional /Prev, leading-newline-if-
// base-lacks-one) for the incremental path.
package writer

import (
	"bytes"
	"fmt"

	"github.com/msonnier/pdfcore/model"
)

// FormatValue renders v's body per spec.md §4.9's encoding rules: no
// leading zeros on integers, reals rounded to 4 places with trailing
// zeros/dot trimmed, "#XX"-escaped names, literal-or-hex strings chosen by
// content, whitespace-minimal dicts/arrays with one space between tokens.
// Stream payloads are NOT included here (see writeObjectBody): a Value of
// KindStream formats only its dictionary.
func FormatValue(v model.Value) string {
	var buf bytes.Buffer
	formatInto(&buf, v)
	return buf.String()
}

func formatInto(buf *bytes.Buffer, v model.Value) {
	switch v.Kind() {
	case model.KindNull:
		buf.WriteString("null")
	case model.KindBool:
		if v.AsBool() {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case model.KindInt:
		fmt.Fprintf(buf, "%d", v.AsInt())
	case model.KindReal:
		buf.WriteString(model.FmtReal(v.AsReal()))
	case model.KindName:
		buf.WriteByte('/')
		formatNameBody(buf, string(v.AsName()))
	case model.KindString:
		buf.WriteString(model.EncodeByteString([]byte(v.AsString())))
	case model.KindArray:
		buf.WriteByte('[')
		for i, e := range v.AsArray() {
			if i > 0 {
				buf.WriteByte(' ')
			}
			formatInto(buf, e)
		}
		buf.WriteByte(']')
	case model.KindDict:
		formatDictInto(buf, v.AsDict())
	case model.KindStream:
		formatDictInto(buf, v.AsDict())
	case model.KindRef:
		ref := v.AsRef()
		fmt.Fprintf(buf, "%d %d R", ref.Num, ref.Gen)
	}
}

func formatDictInto(buf *bytes.Buffer, d *model.Dict) {
	buf.WriteString("<<")
	for i, k := range d.Keys() {
		if i > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteByte('/')
		formatNameBody(buf, string(k))
		buf.WriteByte(' ')
		val, _ := d.Get(k)
		formatInto(buf, val)
	}
	buf.WriteString(">>")
}

// isPlainNameByte reports whether c can appear bare in a name, i.e. is
// neither whitespace, a delimiter, nor outside printable ASCII (PDF 7.3.5).
func isPlainNameByte(c byte) bool {
	if c < 0x21 || c > 0x7e {
		return false
	}
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%', '#':
		return false
	}
	return true
}

func formatNameBody(buf *bytes.Buffer, s string) {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isPlainNameByte(c) {
			buf.WriteByte(c)
		} else {
			fmt.Fprintf(buf, "#%02X", c)
		}
	}
}

// writeObjectBody writes "N G obj\n<body>[\nstream\n<raw>\nendstream]\nendobj\n"
// for one object to buf, returning the byte offset buf was at before the
// write started (the offset recorded in the xref table per spec.md §4.9).
func writeObjectBody(buf *bytes.Buffer, ref model.Reference, v model.Value) int64 {
	offset := int64(buf.Len())
	if v.Kind() == model.KindStream {
		// /Length must equal raw_bytes.len() at serialization time (I2);
		// refresh it before formatting so the dict body and the payload
		// that follows never disagree.
		v.AsDict().Set("Length", model.Int(int64(len(v.AsStream().Raw))))
	}
	fmt.Fprintf(buf, "%d %d obj\n", ref.Num, ref.Gen)
	buf.WriteString(FormatValue(v))
	if v.Kind() == model.KindStream {
		buf.WriteString("\nstream\n")
		buf.Write(v.AsStream().Raw)
		buf.WriteString("\nendstream")
	}
	buf.WriteString("\nendobj\n")
	return offset
}
