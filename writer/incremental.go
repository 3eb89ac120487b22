package writer

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/msonnier/pdfcore/model"
	"github.com/msonnier/pdfcore/registry"
)

// Blocker names one of the fixed reasons an incremental save cannot
// proceed (spec.md §4.10 step 2, §7, §8 P9).
type Blocker string

const (
	BlockerLinearized         Blocker = "linearized"
	BlockerBruteForceRecovery Blocker = "brute-force-recovery"
	BlockerEncryptionAdded    Blocker = "encryption-added"
	BlockerEncryptionRemoved  Blocker = "encryption-removed"
	BlockerEncryptionChanged  Blocker = "encryption-changed"
)

// EncryptionChange classifies how a save's encryption parameters compare
// to the loaded document's.
type EncryptionChange int

const (
	EncryptionUnchanged EncryptionChange = iota
	EncryptionAdded
	EncryptionRemoved
	EncryptionChanged
)

// CheckBlockers returns the first applicable blocker in the fixed priority
// order linearized > brute-force-recovery > encryption-added >
// encryption-removed > encryption-changed (P9), or nil if none applies.
func CheckBlockers(linearized, bruteForceRecovered bool, enc EncryptionChange) *Blocker {
	b := func(x Blocker) *Blocker { return &x }
	switch {
	case linearized:
		return b(BlockerLinearized)
	case bruteForceRecovered:
		return b(BlockerBruteForceRecovery)
	case enc == EncryptionAdded:
		return b(BlockerEncryptionAdded)
	case enc == EncryptionRemoved:
		return b(BlockerEncryptionRemoved)
	case enc == EncryptionChanged:
		return b(BlockerEncryptionChanged)
	default:
		return nil
	}
}

// WriteIncremental appends a changed/new-object body, a new xref section,
// and a new trailer to base, preserving base byte-for-byte (I9). Callers
// must have already confirmed no Blocker applies (document.Save does this
// before calling in). Returns base unchanged (same slice) when there is
// nothing to save (P2).
func WriteIncremental(base []byte, prevXrefOffset int64, r *registry.Registry, trailer TrailerInfo) ([]byte, error) {
	changes := registry.CollectChanges(r)
	if len(changes.Modified) == 0 && len(changes.Created) == 0 {
		return base, nil
	}

	var buf bytes.Buffer
	buf.Write(base)
	if len(base) > 0 {
		last := base[len(base)-1]
		if last != '\n' && last != '\r' {
			buf.WriteByte('\n')
		}
	}
	all := append(append([]model.Reference(nil), changes.Modified...), changes.Created...)
	sort.Slice(all, func(i, j int) bool { return all[i].Num < all[j].Num })

	offsets := make(map[model.Reference]int64, len(all))
	maxNum := changes.MaxObjectNumber
	for _, ref := range all {
		v, err := r.GetObject(ref)
		if err != nil {
			return nil, fmt.Errorf("writer: resolving object %s: %w", ref, err)
		}
		v, err = encryptForWrite(trailer, ref, v)
		if err != nil {
			return nil, fmt.Errorf("writer: encrypting object %s: %w", ref, err)
		}
		offsets[ref] = writeObjectBody(&buf, ref, v)
		if ref.Num > maxNum {
			maxNum = ref.Num
		}
	}

	xrefOffset := int64(buf.Len())
	writeIncrementalXref(&buf, all, offsets)
	writeTrailer(&buf, int(maxNum)+1, trailer, prevXrefOffset, freshID(trailer.ID0))
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF\n", xrefOffset)

	return buf.Bytes(), nil
}

// writeIncrementalXref emits one classical-xref subsection per contiguous
// run of object numbers in refs (already sorted ascending), per spec.md
// §4.10 step 6, preceded by the mandatory "0 1" free-list head.
func writeIncrementalXref(buf *bytes.Buffer, refs []model.Reference, offsets map[model.Reference]int64) {
	buf.WriteString("xref\n")
	buf.WriteString("0 1\n")
	buf.WriteString("0000000000 65535 f \n")

	i := 0
	for i < len(refs) {
		j := i + 1
		for j < len(refs) && refs[j].Num == refs[j-1].Num+1 {
			j++
		}
		run := refs[i:j]
		fmt.Fprintf(buf, "%d %d\n", run[0].Num, len(run))
		for _, ref := range run {
			fmt.Fprintf(buf, "%010d %05d n \n", offsets[ref], ref.Gen)
		}
		i = j
	}
}
