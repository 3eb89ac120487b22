// Package registry implements the indirect-object registry described in
// spec.md §3/§4.7: a map from reference to object for both objects loaded
// from the original file and objects created since, a reverse object-to-
// reference lookup, monotonic object-number allocation, and the dirty-bit
// change collector (§4.8) the incremental serializer depends on.
//
// code adapted from the teacher's reader/file/xreftable.go
// resolveObjectNumber (assign-null-before-recursing cycle safety,
// resolve-once-then-cache), generalized from a read-only resolver to a
// read/write registry since the teacher's own Document/Catalog types are
// fully static (built once via Write, never mutated in place).
package registry

import (
	"fmt"

	"golang.org/x/sync/singleflight"

	"github.com/msonnier/pdfcore/model"
)

// Resolver fetches an object's value from the underlying storage (the
// parsed xref table, decrypted if the document is encrypted) the first
// time it is requested. It returns (Value{}, false, nil) for an undefined
// reference (treated as null per PDF 7.3.10 by the caller).
type Resolver func(ref model.Reference) (model.Value, bool, error)

// Registry is the indirect-object graph of one open document.
//
// code adapted from spec.md §3 "Indirect-object registry" literally: the
// four maps/counters named there map 1:1 onto the fields below.
type Registry struct {
	resolve Resolver

	loaded      map[model.Reference]model.Value
	newObjects  map[model.Reference]model.Value
	objectToRef map[*model.Dict]model.Reference

	nextObjectNumber uint32

	Warnings []string

	group singleflight.Group
}

// New creates an empty registry whose lazy resolver is fn and whose
// allocation counter starts just past maxObjectNumber (the highest object
// number found in the source xref table, or 0 for a brand-new document).
func New(fn Resolver, maxObjectNumber uint32) *Registry {
	return &Registry{
		resolve:          fn,
		loaded:           make(map[model.Reference]model.Value),
		newObjects:       make(map[model.Reference]model.Value),
		objectToRef:      make(map[*model.Dict]model.Reference),
		nextObjectNumber: maxObjectNumber + 1,
	}
}

func (r *Registry) warn(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

func (r *Registry) trackReverse(ref model.Reference, v model.Value) {
	// The reverse lookup is keyed on the *Dict pointer, so only Dict and
	// Stream values are tracked; GetRef is unavailable for array-only
	// indirect objects. The map holds its keys strongly: entries are never
	// removed.
	if d := v.AsDict(); d != nil {
		r.objectToRef[d] = ref
	}
}

// AddLoaded installs obj, already known to exist at ref in the source
// file, into the registry. ref must not already be loaded.
func (r *Registry) AddLoaded(ref model.Reference, obj model.Value) error {
	if _, exists := r.loaded[ref]; exists {
		return fmt.Errorf("registry: object %s already loaded", ref)
	}
	r.loaded[ref] = obj
	r.trackReverse(ref, obj)
	return nil
}

// AllocateRef reserves the next object number without installing a value,
// for callers that need a forward reference before the referent exists
// (e.g. a page that must point at a Kids array not yet built).
func (r *Registry) AllocateRef() model.Reference {
	ref := model.Reference{Num: r.nextObjectNumber, Gen: 0}
	r.nextObjectNumber++
	return ref
}

// Register allocates a new reference and installs obj at it in one step.
func (r *Registry) Register(obj model.Value) model.Reference {
	ref := r.AllocateRef()
	r.newObjects[ref] = obj
	r.trackReverse(ref, obj)
	return ref
}

// RegisterAt installs obj at a ref previously reserved by AllocateRef.
func (r *Registry) RegisterAt(ref model.Reference, obj model.Value) {
	r.newObjects[ref] = obj
	r.trackReverse(ref, obj)
}

// GetObject resolves ref to its value, consulting new objects, then loaded
// objects, then (on a miss in both) the lazy resolver — which may itself
// trigger object-stream decoding or decryption. Concurrent callers
// resolving the same not-yet-cached ref are collapsed onto a single
// resolver call via singleflight (spec.md §5: suspension points must not
// each independently re-parse the same object).
func (r *Registry) GetObject(ref model.Reference) (model.Value, error) {
	if v, ok := r.newObjects[ref]; ok {
		return v, nil
	}
	if v, ok := r.loaded[ref]; ok {
		return v, nil
	}
	if r.resolve == nil {
		return model.Null(), nil
	}
	key := fmt.Sprintf("%d.%d", ref.Num, ref.Gen)
	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		if cached, ok := r.loaded[ref]; ok { // resolved while we waited to enter Do
			return cached, nil
		}
		val, found, rerr := r.resolve(ref)
		if rerr != nil {
			return model.Value{}, rerr
		}
		if !found {
			val = model.Null()
		}
		r.loaded[ref] = val
		r.trackReverse(ref, val)
		return val, nil
	})
	if err != nil {
		return model.Value{}, err
	}
	return v.(model.Value), nil
}

// Resolve dereferences v if it is a Ref, otherwise returns it unchanged.
func (r *Registry) Resolve(v model.Value) (model.Value, error) {
	if v.Kind() != model.KindRef {
		return v, nil
	}
	return r.GetObject(v.AsRef())
}

// GetRef performs the reverse lookup: which reference, if any, already
// names this exact Dict/Stream. Returns ok=false for values with no
// tracked identity (scalars, bare arrays, or objects never registered).
func (r *Registry) GetRef(v model.Value) (model.Reference, bool) {
	d := v.AsDict()
	if d == nil {
		return model.Reference{}, false
	}
	ref, ok := r.objectToRef[d]
	return ref, ok
}

// HasNewObjects reports whether anything has been registered since load.
func (r *Registry) HasNewObjects() bool { return len(r.newObjects) > 0 }

// HasChanges reports whether a save would have anything to write: new
// objects, or a loaded object with a dirty descendant.
func (r *Registry) HasChanges() bool {
	if r.HasNewObjects() {
		return true
	}
	for _, v := range r.loaded {
		if model.HasDirtyDescendant(v) {
			return true
		}
	}
	return false
}

// Commit moves every new object into loaded and clears dirty bits
// throughout (I7), called after a successful save.
func (r *Registry) Commit() {
	for ref, v := range r.newObjects {
		r.loaded[ref] = v
		delete(r.newObjects, ref)
	}
	for _, v := range r.loaded {
		model.ClearDirtyDescendant(v)
	}
}

// ForEachLoaded calls fn for every object currently resolved into loaded
// (objects never touched since load are not visited, matching lazy
// resolution: a save can only find dirty descendants among objects that
// were actually read, which is correct since an object never read can
// never have been mutated).
func (r *Registry) ForEachLoaded(fn func(ref model.Reference, v model.Value)) {
	for ref, v := range r.loaded {
		fn(ref, v)
	}
}

// ForEachNew calls fn for every object registered since load.
func (r *Registry) ForEachNew(fn func(ref model.Reference, v model.Value)) {
	for ref, v := range r.newObjects {
		fn(ref, v)
	}
}
