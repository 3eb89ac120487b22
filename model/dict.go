package model

// Dict is a PDF dictionary. Unlike the teacher's map[Name]Object, Dict
// preserves the insertion order of its keys: spec.md requires this for
// diff stability across a load/modify/save cycle even though PDF semantics
// never depend on key order.
type Dict struct {
	keys   []Name
	values map[Name]Value
	dirty  bool
}

func NewDict() *Dict {
	return &Dict{values: make(map[Name]Value)}
}

// NewDictFrom builds a Dict from key/value pairs, in the given order.
func NewDictFrom(pairs ...struct {
	Key   Name
	Value Value
}) *Dict {
	d := NewDict()
	for _, p := range pairs {
		d.Set(p.Key, p.Value)
	}
	return d
}

func (d *Dict) Get(key Name) (Value, bool) {
	if d == nil {
		return Value{}, false
	}
	v, ok := d.values[key]
	return v, ok
}

// GetOr returns the value for key, or fallback if absent or null.
func (d *Dict) GetOr(key Name, fallback Value) Value {
	v, ok := d.Get(key)
	if !ok || v.IsNull() {
		return fallback
	}
	return v
}

// Set inserts or updates key. Per PDF 7.3.7, setting a key to the null
// value is equivalent to deleting it. Either way marks d dirty (I3/I4):
// the change collector's dirty-descendant walk relies on this bit, not on
// comparing before/after snapshots.
func (d *Dict) Set(key Name, v Value) {
	if v.IsNull() {
		d.Delete(key)
		return
	}
	if _, exists := d.values[key]; !exists {
		d.keys = append(d.keys, key)
	}
	d.values[key] = v
	d.dirty = true
}

func (d *Dict) Delete(key Name) {
	if _, exists := d.values[key]; !exists {
		return
	}
	delete(d.values, key)
	for i, k := range d.keys {
		if k == key {
			d.keys = append(d.keys[:i], d.keys[i+1:]...)
			break
		}
	}
	d.dirty = true
}

// Dirty reports d's own dirty bit (I3); it does not look at children.
func (d *Dict) Dirty() bool {
	if d == nil {
		return false
	}
	return d.dirty
}

// MarkDirty sets d's own dirty bit directly, for callers that mutate a
// Stream's Raw bytes (which carries no Set/Delete of its own) or otherwise
// need to force re-serialization without going through Set/Delete.
func (d *Dict) MarkDirty() {
	if d != nil {
		d.dirty = true
	}
}

// ClearDirty resets d's own dirty bit, used by the registry after a
// successful commit (I7).
func (d *Dict) ClearDirty() {
	if d != nil {
		d.dirty = false
	}
}

// Keys returns the dictionary's keys in insertion order. Callers must not
// mutate the returned slice.
func (d *Dict) Keys() []Name {
	if d == nil {
		return nil
	}
	return d.keys
}

func (d *Dict) Len() int {
	if d == nil {
		return 0
	}
	return len(d.keys)
}

func (d *Dict) Clone() *Dict {
	if d == nil {
		return nil
	}
	out := &Dict{
		keys:   append([]Name(nil), d.keys...),
		values: make(map[Name]Value, len(d.values)),
	}
	for k, v := range d.values {
		out.values[k] = v.Clone()
	}
	return out
}

// Equal compares dictionaries by content, ignoring key order.
func (d *Dict) Equal(o *Dict) bool {
	if d == nil || o == nil {
		return d == o || (d.Len() == 0 && o.Len() == 0)
	}
	if len(d.keys) != len(o.keys) {
		return false
	}
	for k, v := range d.values {
		ov, ok := o.values[k]
		if !ok || !Equal(v, ov) {
			return false
		}
	}
	return true
}

// TypeName returns the value of the conventional /Type entry, if any.
func (d *Dict) TypeName() (Name, bool) {
	v, ok := d.Get("Type")
	if !ok || v.Kind() != KindName {
		return "", false
	}
	return v.AsName(), true
}
