// Package copier implements cross-document deep object copy (spec.md
// §4.11): walking a subgraph rooted at a reference in a source registry,
// remapping every indirect reference into a destination registry, and
// handling the cycles, stream re-encoding, and inherited-page-attribute
// flattening that come with moving a page between documents.
//
// code adapted from the teacher's model/model.go cloneCache.checkOrClone
// (check cache, else allocate the destination slot and insert a
// placeholder before recursing, so back-references converge), generalized
// from same-document Clone() to cross-document copy against a destination
// registry instead of an in-process object graph.
package copier

import (
	"fmt"

	"github.com/msonnier/pdfcore/filters"
	"github.com/msonnier/pdfcore/model"
	"github.com/msonnier/pdfcore/registry"
)

// Copier deep-copies object subgraphs from one or more source registries
// into a single destination registry, deduplicating by source reference
// (spec.md §4.11 "ref_map").
type Copier struct {
	Dst *registry.Registry

	// SourceEncrypted marks that the source registry's GetObject already
	// strips encryption (document.resolve decrypts lazily) but the
	// original file encoded each stream for an encrypted reader; per
	// spec.md §4.11, streams copied from an encrypted source are decoded
	// and re-encoded rather than assumed byte-identical to a plain copy,
	// since a future save of the destination may apply different (or no)
	// encryption.
	SourceEncrypted bool

	// Limits bounds decode size when SourceEncrypted forces a
	// decode/re-encode round trip.
	Limits filters.Limits

	refMap   map[model.Reference]model.Reference
	Warnings []string
}

// New creates a Copier that installs copied objects into dst.
func New(dst *registry.Registry, sourceEncrypted bool) *Copier {
	return &Copier{
		Dst:             dst,
		SourceEncrypted: sourceEncrypted,
		Limits:          filters.DefaultLimits,
		refMap:          make(map[model.Reference]model.Reference),
	}
}

func (c *Copier) warn(format string, args ...interface{}) {
	c.Warnings = append(c.Warnings, fmt.Sprintf(format, args...))
}

// Copy deep-copies the object at ref (in src) into the destination
// registry, returning the destination reference. A second Copy of the
// same (src, ref) pair returns the same destination reference without
// re-copying (spec.md §4.11 dedup).
func (c *Copier) Copy(src *registry.Registry, ref model.Reference) (model.Reference, error) {
	if dst, ok := c.refMap[ref]; ok {
		return dst, nil
	}
	// Allocate the destination slot and record it before recursing: a
	// cycle through this same ref resolves to the placeholder instead of
	// looping forever (spec.md §4.11 "insert a placeholder in the map,
	// then recursively copy").
	dst := c.Dst.AllocateRef()
	c.refMap[ref] = dst

	v, err := src.GetObject(ref)
	if err != nil {
		return model.Reference{}, fmt.Errorf("copier: resolving %s: %w", ref, err)
	}
	return c.copyInto(src, dst, ref, v)
}

// copyInto installs the copy of v (the already-resolved object the source
// registry has at srcRef, or a caller-synthesized replacement such as
// CopyPage's flattened page dict) at dst.
func (c *Copier) copyInto(src *registry.Registry, dst model.Reference, srcRef model.Reference, v model.Value) (model.Reference, error) {
	if v.IsNull() {
		// Missing referent: register a stub empty dict and warn rather
		// than fail the whole copy (spec.md §7 "Integrity errors during
		// copy").
		c.warn("copier: missing referent %s, substituting empty dict", srcRef)
		c.Dst.RegisterAt(dst, model.DictV(model.NewDict()))
		return dst, nil
	}
	cv, err := c.copyValue(src, v)
	if err != nil {
		return model.Reference{}, err
	}
	c.Dst.RegisterAt(dst, cv)
	return dst, nil
}

// copyValue copies a resolved (non-reference-wrapper) value, recursing
// through Copy for any nested Ref so the dedup/cycle map above applies
// uniformly.
func (c *Copier) copyValue(src *registry.Registry, v model.Value) (model.Value, error) {
	switch v.Kind() {
	case model.KindArray:
		items := v.AsArray()
		out := make([]model.Value, len(items))
		for i, item := range items {
			cv, err := c.copyChild(src, item)
			if err != nil {
				return model.Value{}, err
			}
			out[i] = cv
		}
		return model.ArrayV(out...), nil
	case model.KindDict:
		d, err := c.copyDict(src, v.AsDict())
		if err != nil {
			return model.Value{}, err
		}
		return model.DictV(d), nil
	case model.KindStream:
		s, err := c.copyStream(src, v.AsStream())
		if err != nil {
			return model.Value{}, err
		}
		return model.StreamV(s), nil
	default:
		// Scalars (null, bool, number, name, string) and bare Refs
		// reached directly (copyChild handles refs before calling here)
		// carry no document-specific identity; copy as-is.
		return v, nil
	}
}

// copyChild copies a value found as a dict/array element: a Ref recurses
// through Copy (so it participates in dedup), anything else copies inline.
func (c *Copier) copyChild(src *registry.Registry, v model.Value) (model.Value, error) {
	if v.Kind() == model.KindRef {
		dst, err := c.Copy(src, v.AsRef())
		if err != nil {
			return model.Value{}, err
		}
		return model.RefV(dst), nil
	}
	return c.copyValue(src, v)
}

func (c *Copier) copyDict(src *registry.Registry, d *model.Dict) (*model.Dict, error) {
	out := model.NewDict()
	for _, k := range d.Keys() {
		v, _ := d.Get(k)
		cv, err := c.copyChild(src, v)
		if err != nil {
			return nil, err
		}
		out.Set(k, cv)
	}
	return out, nil
}

// copyStream copies a stream's dict per copyDict, then decides how to
// carry the payload: an unencrypted source's encoded bytes are copied
// verbatim; an encrypted source's bytes (already decrypted by the time
// GetObject returns them) are decoded and re-encoded with the same filter
// chain so the destination document owns a payload whose filters and
// bytes are mutually consistent regardless of what encryption the
// destination later applies. If re-encoding fails, spec.md §9 Open
// Question (c) resolves to falling back to storing the decoded bytes
// uncompressed.
func (c *Copier) copyStream(src *registry.Registry, s *model.Stream) (*model.Stream, error) {
	dict, err := c.copyDict(src, s.Dict)
	if err != nil {
		return nil, err
	}
	if !c.SourceEncrypted {
		raw := append([]byte(nil), s.Raw...)
		dict.Set("Length", model.Int(int64(len(raw))))
		return &model.Stream{Dict: dict, Raw: raw}, nil
	}

	decoded, err := filters.Decode(s.Raw, s.Dict, c.Limits)
	if err != nil {
		c.warn("copier: could not decode stream for re-encoding (%v), copying raw bytes", err)
		raw := append([]byte(nil), s.Raw...)
		dict.Set("Length", model.Int(int64(len(raw))))
		return &model.Stream{Dict: dict, Raw: raw}, nil
	}
	encoded, err := filters.Encode(decoded, s.Dict)
	if err != nil {
		c.warn("copier: could not re-encode stream (%v), storing uncompressed", err)
		dict.Delete("Filter")
		dict.Delete("DecodeParms")
		dict.Set("Length", model.Int(int64(len(decoded))))
		return &model.Stream{Dict: dict, Raw: decoded}, nil
	}
	dict.Set("Length", model.Int(int64(len(encoded))))
	return &model.Stream{Dict: dict, Raw: encoded}, nil
}

// inheritablePageAttrs are the page-tree attributes that may be inherited
// from an ancestor /Pages node rather than set directly on the page
// (spec.md §4.11).
var inheritablePageAttrs = []model.Name{"Resources", "MediaBox", "CropBox", "Rotate"}

// CopyPage copies the page dict at pageRef (in src), first flattening any
// inheritablePageAttrs found on an ancestor /Pages node directly onto the
// copy, then deleting /Parent so the destination's own page tree can
// reassign it (spec.md §4.11 "Pages").
func (c *Copier) CopyPage(src *registry.Registry, pageRef model.Reference) (model.Reference, error) {
	if dst, ok := c.refMap[pageRef]; ok {
		return dst, nil
	}
	v, err := src.GetObject(pageRef)
	if err != nil {
		return model.Reference{}, fmt.Errorf("copier: resolving page %s: %w", pageRef, err)
	}
	pageDict := v.AsDict()
	if pageDict == nil {
		return model.Reference{}, fmt.Errorf("copier: %s is not a page dictionary", pageRef)
	}

	flattened := model.NewDict()
	for _, k := range pageDict.Keys() {
		v, _ := pageDict.Get(k)
		flattened.Set(k, v)
	}
	for _, attr := range inheritablePageAttrs {
		if _, ok := flattened.Get(attr); ok {
			continue
		}
		if av, ok := c.inheritedAttr(src, pageDict, attr); ok {
			flattened.Set(attr, av)
		}
	}
	flattened.Delete("Parent")

	dst := c.Dst.AllocateRef()
	c.refMap[pageRef] = dst
	return c.copyInto(src, dst, pageRef, model.DictV(flattened))
}

// inheritedAttr walks page's /Parent chain looking for attr, stopping at
// the first ancestor that defines it directly. Cycle-safe via a visited
// set, per the §9 design note shared with the name-tree and field-tree
// walkers.
func (c *Copier) inheritedAttr(src *registry.Registry, page *model.Dict, attr model.Name) (model.Value, bool) {
	seen := make(map[model.Reference]bool)
	parent, ok := page.Get("Parent")
	for ok && parent.Kind() == model.KindRef {
		ref := parent.AsRef()
		if seen[ref] {
			c.warn("copier: cycle detected walking /Parent chain at %s", ref)
			break
		}
		seen[ref] = true
		pv, err := src.GetObject(ref)
		if err != nil {
			break
		}
		pd := pv.AsDict()
		if pd == nil {
			break
		}
		if v, found := pd.Get(attr); found {
			return v, true
		}
		parent, ok = pd.Get("Parent")
	}
	return model.Value{}, false
}
