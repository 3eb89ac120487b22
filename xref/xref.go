// Package xref parses a PDF file's cross-reference information: classical
// xref tables, xref streams, hybrid-reference files, object streams, the
// /Prev chain, and the whole-file brute-force recovery scan used when
// structured xref data is missing or corrupt.
//
// code adapted from the teacher's reader/file/xreftable.go, read.go,
// streams.go, and object_streams.go.
package xref

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/msonnier/pdfcore/filters"
	"github.com/msonnier/pdfcore/model"
	"github.com/msonnier/pdfcore/parser"
	"github.com/msonnier/pdfcore/pdftokenizer"
)

// Entry is one cross-reference table row (PDF 7.5.4) generalized to also
// carry compressed-object-stream coordinates (PDF 7.5.7).
type Entry struct {
	Free         bool
	Offset       int64 // meaningful when !Free && StreamObjNum == 0
	Gen          uint16
	StreamObjNum uint32 // non-zero: this object lives inside an object stream
	StreamIndex  int
}

// Trailer carries the merged fields of every trailer dictionary walked
// along the /Prev chain (PDF 7.5.5), following the teacher's "fill only
// unset fields" merge rule.
type Trailer struct {
	Root        *model.Reference
	Info        *model.Reference
	Size        int
	ID          [2][]byte
	Encrypt     model.Value // KindDict or KindRef, unresolved
	Prev        int64
	hasPrev     bool
}

func (t *Trailer) merge(d *model.Dict) error {
	if v, ok := d.Get("Size"); ok && t.Size == 0 {
		t.Size = int(v.AsInt())
	}
	if v, ok := d.Get("Root"); ok && t.Root == nil {
		r, err := asReference(v)
		if err != nil {
			return fmt.Errorf("xref: trailer /Root: %w", err)
		}
		t.Root = &r
	}
	if v, ok := d.Get("Info"); ok && t.Info == nil {
		r, err := asReference(v)
		if err == nil {
			t.Info = &r
		}
	}
	if v, ok := d.Get("ID"); ok && t.ID[0] == nil {
		if arr := v.AsArray(); len(arr) >= 1 {
			t.ID[0] = []byte(arr[0].AsString())
			if len(arr) >= 2 {
				t.ID[1] = []byte(arr[1].AsString())
			}
		}
	}
	if v, ok := d.Get("Encrypt"); ok && t.Encrypt.Kind() == model.KindNull {
		t.Encrypt = v
	}
	return nil
}

func asReference(v model.Value) (model.Reference, error) {
	switch v.Kind() {
	case model.KindRef:
		return v.AsRef(), nil
	case model.KindInt:
		// A bare integer is accepted too: /Prev is normally written that
		// way, and the KindRef case above tolerates buggy generators that
		// write /Prev NNN 0 R instead, matching offsetFromObject in the
		// teacher's read.go.
		return model.Reference{Num: uint32(v.AsInt())}, nil
	default:
		return model.Reference{}, fmt.Errorf("expected a reference, got %s", v.Kind())
	}
}

// Table is the resolved cross-reference table for one document, plus
// everything needed to read object bytes back out of the original data.
type Table struct {
	data    []byte
	entries map[uint32]Entry

	Trailer       Trailer
	HeaderVersion string

	// Linearized and BruteForceRecovered each independently disable
	// incremental save (package document passes them to
	// writer.CheckBlockers).
	Linearized         bool
	BruteForceRecovered bool

	Warnings []string

	objStreamCache map[uint32][]model.Value
	resolving      map[uint32]bool
}

func newTable(data []byte) *Table {
	return &Table{
		data:           data,
		entries:        make(map[uint32]Entry),
		objStreamCache: make(map[uint32][]model.Value),
		resolving:      make(map[uint32]bool),
	}
}

func (t *Table) warn(format string, args ...interface{}) {
	t.Warnings = append(t.Warnings, fmt.Sprintf(format, args...))
}

// Parse builds a Table from a complete, in-memory PDF file.
func Parse(data []byte) (*Table, error) {
	t := newTable(data)
	var err error
	t.HeaderVersion, err = headerVersion(data)
	if err != nil {
		return nil, err
	}
	t.Linearized = detectLinearized(data)

	offset, err := offsetLastXRefSection(data)
	if err != nil {
		t.warn("could not locate startxref (%v); falling back to brute-force recovery", err)
		if err := t.bruteForceRecover(); err != nil {
			return nil, err
		}
		return t, nil
	}

	if err := t.buildChainStartingAt(offset); err != nil {
		t.warn("xref chain walk failed (%v); falling back to brute-force recovery", err)
		t.entries = make(map[uint32]Entry)
		t.Trailer = Trailer{}
		if err := t.bruteForceRecover(); err != nil {
			return nil, err
		}
		return t, nil
	}
	if t.Trailer.Root == nil {
		t.warn("trailer missing /Root; falling back to brute-force recovery")
		if err := t.bruteForceRecover(); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func headerVersion(data []byte) (string, error) {
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	i := bytes.Index(head, []byte("%PDF-"))
	if i < 0 {
		return "", errors.New("xref: missing %PDF- header")
	}
	i += len("%PDF-")
	end := i
	for end < len(data) && end < i+3 && data[end] != '\r' && data[end] != '\n' {
		end++
	}
	return string(data[i:end]), nil
}

// detectLinearized reports whether the key /Linearized occurs anywhere in
// the first 2048 bytes of the file, where a linearization dictionary
// ("N 0 obj << ... /Linearized 1 ...") sits as the first object; this
// disables incremental save (the linearized layout's first-page
// offsets would be invalidated by an append).
func detectLinearized(data []byte) bool {
	head := data
	if len(head) > 2048 {
		head = head[:2048]
	}
	return bytes.Contains(head, []byte("/Linearized"))
}

// offsetLastXRefSection searches the last 8 KiB of the file for the
// literal keyword "startxref", per spec.md §4.3; the last occurrence wins.
func offsetLastXRefSection(data []byte) (int64, error) {
	const window = 8192
	start := 0
	if len(data) > window {
		start = len(data) - window
	}
	tail := data[start:]
	idx := bytes.LastIndex(tail, []byte("startxref"))
	if idx < 0 {
		return 0, errors.New("xref: startxref not found in last 8 KiB")
	}
	rest := tail[idx+len("startxref"):]
	tk := pdftokenizer.NewTokenizer(rest)
	tok, err := tk.NextToken()
	if err != nil || tok.Kind != pdftokenizer.Integer {
		return 0, errors.New("xref: startxref not followed by an offset")
	}
	n, err := tok.Int()
	if err != nil {
		return 0, err
	}
	if n < 0 || int64(n) >= int64(len(data)) {
		return 0, fmt.Errorf("xref: startxref offset %d out of range", n)
	}
	return int64(n), nil
}

// FindLastStartXRefOffset is the exported form of offsetLastXRefSection,
// used by the document package to recover the /Prev value an incremental
// save must link back to.
func FindLastStartXRefOffset(data []byte) (int64, error) {
	return offsetLastXRefSection(data)
}

// buildChainStartingAt walks the /Prev chain starting at offset, with
// cycle detection (visited offsets are tracked so a malicious or corrupt
// /Prev loop terminates instead of recursing forever).
func (t *Table) buildChainStartingAt(offset int64) error {
	visited := map[int64]bool{}
	first := true
	for {
		if visited[offset] {
			return nil // cycle: stop, keep whatever was already parsed
		}
		visited[offset] = true

		prev, hybridStm, err := t.parseSection(offset)
		if err != nil {
			return err
		}
		if first && hybridStm != 0 {
			// Hybrid-reference files: a 1.5-conformant reader processes
			// the hidden XRefStm entries before continuing to /Prev.
			if _, _, err := t.parseSection(hybridStm); err != nil {
				t.warn("hybrid /XRefStm at %d failed: %v", hybridStm, err)
			}
		}
		first = false
		if prev <= 0 {
			return nil
		}
		offset = prev
	}
}

// parseSection parses one xref section (classical or stream-based) at
// offset and merges its trailer. It returns the /Prev offset (0 if absent)
// and, for a classical trailer, the /XRefStm hybrid offset (0 if absent).
func (t *Table) parseSection(offset int64) (prev int64, hybridStm int64, err error) {
	tk := pdftokenizer.NewTokenizer(t.data[offset:])
	first, err := tk.PeekToken()
	if err != nil {
		return 0, 0, err
	}
	if first.IsOther("xref") {
		tk.NextToken()
		return t.parseClassicalSection(tk, offset)
	}
	p, err := t.parseXRefStream(offset)
	return p, 0, err
}

// parseClassicalSection parses one or more "startObj count / entries..."
// subsections followed by a trailer dictionary (PDF 7.5.4).
func (t *Table) parseClassicalSection(tk *pdftokenizer.Tokenizer, sectionOffset int64) (prev int64, hybridStm int64, err error) {
	for {
		peek, err := tk.PeekToken()
		if err != nil {
			return 0, 0, err
		}
		if peek.IsOther("trailer") {
			tk.NextToken()
			break
		}
		if peek.Kind != pdftokenizer.Integer {
			return 0, 0, errors.New("xref: expected subsection header or trailer")
		}
		startTok, _ := tk.NextToken()
		countTok, err := tk.NextToken()
		if err != nil || countTok.Kind != pdftokenizer.Integer {
			return 0, 0, errors.New("xref: corrupt subsection header")
		}
		start, _ := startTok.Int()
		count, _ := countTok.Int()
		base := tk.Bytes()
		pos := tk.CurrentPosition()
		// Skip the single EOL after the header, then read `count` fixed
		// 20-byte rows, per spec.md §4.3's literal on-disk layout.
		pos = parser.StreamContentStart(base, pos)
		for i := 0; i < count; i++ {
			if pos+20 > len(base) {
				return 0, 0, errors.New("xref: subsection truncated")
			}
			row := base[pos : pos+20]
			objOffset, genField, typ, perr := parseClassicalRow(row)
			if perr != nil {
				return 0, 0, perr
			}
			objNum := uint32(start + i)
			if _, exists := t.entries[objNum]; !exists { // first write (newest) wins
				if typ == 'n' && objOffset != 0 {
					t.entries[objNum] = Entry{Offset: objOffset, Gen: uint16(genField)}
				} else if typ == 'f' {
					t.entries[objNum] = Entry{Free: true, Offset: objOffset, Gen: uint16(genField)}
				}
			}
			pos += 20
		}
		tk.SetPosition(pos)
	}

	trailerVal, err := parser.NewParserFromTokenizer(tk).ParseObject()
	if err != nil {
		return 0, 0, fmt.Errorf("xref: trailer: %w", err)
	}
	d := trailerVal.AsDict()
	if d == nil {
		return 0, 0, errors.New("xref: trailer is not a dictionary")
	}
	if err := t.Trailer.merge(d); err != nil {
		return 0, 0, err
	}
	if v, ok := d.Get("Prev"); ok {
		if r, err := asReference(v); err == nil {
			prev = int64(r.Num)
		}
	}
	if v, ok := d.Get("XRefStm"); ok && v.Kind() == model.KindInt {
		hybridStm = v.AsInt()
	}
	return prev, hybridStm, nil
}

func parseClassicalRow(row []byte) (offset int64, gen int, typ byte, err error) {
	if len(row) != 20 {
		return 0, 0, 0, errors.New("xref: row not 20 bytes")
	}
	var off, g int64
	if _, err := fmt.Sscanf(string(row[0:10]), "%010d", &off); err != nil {
		return 0, 0, 0, fmt.Errorf("xref: corrupt offset field: %w", err)
	}
	if _, err := fmt.Sscanf(string(row[11:16]), "%05d", &g); err != nil {
		return 0, 0, 0, fmt.Errorf("xref: corrupt generation field: %w", err)
	}
	t := row[17]
	if t != 'n' && t != 'f' {
		return 0, 0, 0, fmt.Errorf("xref: corrupt entry type %q", t)
	}
	return off, int(g), t, nil
}

// MaxObjectNumber returns the highest object number present in the table
// (0 if empty), used by the registry to seed its next-allocation counter
// (spec.md §3 registry: next_object_number = max(xref.keys()) + 1).
func (t *Table) MaxObjectNumber() uint32 {
	var max uint32
	for num := range t.entries {
		if num > max {
			max = num
		}
	}
	return max
}

// ObjectNumbers returns every object number known to the table, including
// free entries, in no particular order.
func (t *Table) ObjectNumbers() []uint32 {
	out := make([]uint32, 0, len(t.entries))
	for num := range t.entries {
		out = append(out, num)
	}
	return out
}

// Resolve dereferences v if it is a Ref, otherwise returns it unchanged.
func (t *Table) Resolve(v model.Value) (model.Value, error) {
	if v.Kind() != model.KindRef {
		return v, nil
	}
	return t.GetObject(v.AsRef())
}

// GetObject returns the fully-parsed value for ref, decoding compressed
// (object-stream-resident) objects as needed. Undefined references resolve
// to the null object, per PDF 7.3.10. ref.Num is marked as "resolving"
// before recursion begins (a stream's /Length can itself be an indirect
// reference whose resolution re-enters GetObject), so a malicious or
// corrupt reference cycle resolves to null and terminates instead of
// recursing forever (mirrors the teacher's resolveObjectNumber).
func (t *Table) GetObject(ref model.Reference) (model.Value, error) {
	e, ok := t.entries[ref.Num]
	if !ok || e.Free {
		return model.Null(), nil
	}
	if t.resolving[ref.Num] {
		return model.Null(), nil
	}
	t.resolving[ref.Num] = true
	defer delete(t.resolving, ref.Num)

	if e.StreamObjNum != 0 {
		objs, err := t.decodeObjectStream(e.StreamObjNum)
		if err != nil {
			return model.Value{}, err
		}
		if e.StreamIndex < 0 || e.StreamIndex >= len(objs) {
			return model.Null(), nil
		}
		return objs[e.StreamIndex], nil
	}
	return t.parseIndirectObjectAt(e.Offset, ref)
}

func (t *Table) parseIndirectObjectAt(offset int64, ref model.Reference) (model.Value, error) {
	if offset < 0 || offset >= int64(len(t.data)) {
		return model.Value{}, fmt.Errorf("xref: object %s offset %d out of range", ref, offset)
	}
	tk := pdftokenizer.NewTokenizer(t.data[offset:])
	num, gen, err := parser.ParseHeader(tk)
	if err != nil {
		return model.Value{}, fmt.Errorf("xref: object %s header: %w", ref, err)
	}
	_ = num
	_ = gen
	p := parser.NewParserFromTokenizer(tk)
	v, err := p.ParseObject()
	if err != nil {
		return model.Value{}, fmt.Errorf("xref: object %s body: %w", ref, err)
	}

	if v.Kind() != model.KindDict {
		return v, nil
	}
	streamOffset, isStream, err := parser.SkipStreamKeyword(tk)
	if err != nil {
		return model.Value{}, err
	}
	if !isStream {
		return v, nil
	}
	d := v.AsDict()
	raw, err := t.extractStreamContent(d, offset+int64(streamOffset))
	if err != nil {
		return model.Value{}, fmt.Errorf("xref: object %s stream content: %w", ref, err)
	}
	return model.StreamV(&model.Stream{Dict: d, Raw: raw}), nil
}

// extractStreamContent reads a stream's raw bytes from /Length when it
// resolves to an in-bounds integer whose end is followed (after optional
// whitespace) by "endstream". Otherwise it uses a single filter's own EOD
// detection (Skipper), then an unchecked in-bounds /Length, and finally a
// blind "endstream" scan.
func (t *Table) extractStreamContent(dict *model.Dict, contentOffset int64) ([]byte, error) {
	lengthVal, hasLength := dict.Get("Length")
	var expected int64 = -1
	if hasLength {
		resolved, err := t.Resolve(lengthVal)
		if err == nil && resolved.Kind() == model.KindInt {
			expected = resolved.AsInt()
		}
	}

	if expected >= 0 && contentOffset+expected <= int64(len(t.data)) {
		rest := bytes.TrimLeft(t.data[contentOffset+expected:], "\x00\t\n\f\r ")
		if bytes.HasPrefix(rest, []byte("endstream")) {
			return t.data[contentOffset : contentOffset+expected], nil
		}
	}

	names, _, _ := model.Filters(dict)
	if len(names) == 1 {
		if sk, err := filters.SkipperFor(dict); err == nil {
			if n, err := sk.Skip(bytes.NewReader(t.data[contentOffset:])); err == nil {
				end := contentOffset + n
				if end <= int64(len(t.data)) {
					return t.data[contentOffset:end], nil
				}
			}
		}
	}

	if expected >= 0 && contentOffset+expected <= int64(len(t.data)) {
		candidate := t.data[contentOffset : contentOffset+expected]
		return candidate, nil
	}
	return t.readStreamBlindly(contentOffset)
}

func (t *Table) readStreamBlindly(offset int64) ([]byte, error) {
	idx := bytes.Index(t.data[offset:], []byte("endstream"))
	if idx < 0 {
		return nil, errors.New("xref: endstream not found")
	}
	end := offset + int64(idx)
	content := t.data[offset:end]
	content = bytes.TrimRight(content, "\r\n")
	return content, nil
}
