package registry

import "github.com/msonnier/pdfcore/model"

// Changes is the result of CollectChanges: everything an incremental save
// (or a full save, which simply ignores the modified/created distinction)
// must emit.
type Changes struct {
	Modified        []model.Reference // loaded refs with a dirty descendant
	Created         []model.Reference // every new_objects ref
	MaxObjectNumber uint32
}

// CollectChanges walks every loaded object looking for a dirty descendant
// (spec.md §4.8) and unions the result with every newly registered object.
func CollectChanges(r *Registry) Changes {
	var c Changes
	r.ForEachLoaded(func(ref model.Reference, v model.Value) {
		if model.HasDirtyDescendant(v) {
			c.Modified = append(c.Modified, ref)
		}
	})
	r.ForEachNew(func(ref model.Reference, v model.Value) {
		c.Created = append(c.Created, ref)
	})
	for _, ref := range c.Modified {
		if ref.Num > c.MaxObjectNumber {
			c.MaxObjectNumber = ref.Num
		}
	}
	for _, ref := range c.Created {
		if ref.Num > c.MaxObjectNumber {
			c.MaxObjectNumber = ref.Num
		}
	}
	return c
}

// ClearAllDirtyFlags clears the dirty bit of every loaded and newly
// registered object, the inverse walk run after a successful save. Commit
// already does this as part of moving new_objects into loaded; this is
// exposed separately for callers (e.g. a full save that does not commit
// new objects into "loaded" under the same semantics) that need it alone.
func ClearAllDirtyFlags(r *Registry) {
	r.ForEachLoaded(func(_ model.Reference, v model.Value) {
		model.ClearDirtyDescendant(v)
	})
	r.ForEachNew(func(_ model.Reference, v model.Value) {
		model.ClearDirtyDescendant(v)
	})
}
