// Package nametree implements the sorted hierarchical name/number trees
// used by /Dests, /EmbeddedFiles, /IDTree, and similar catalog structures
// (spec.md §4.12): binary-search lookup by /Limits, cycle-safe BFS
// iteration with a depth cap, and construction of a flat sorted leaf from
// an arbitrary set of entries.
//
// code adapted from the teacher's model/trees.go generic numTree/nameTree
// interfaces and limitsNum/limitsName helpers (the recursive
// min/max-from-kids-or-own-leaves pattern for computing /Limits) and
// model/namestree.go's concrete Kids/Names/Limits field naming; the
// lookup itself is new, since the teacher's DestTree.LookupTable does a
// linear collect-and-merge rather than the /Limits-based binary search
// spec.md's testable property P8 requires, and the teacher's trees hold
// already-resolved Go values rather than the raw model.Value/registry
// pairs this core operates on (spec.md §4 works on the generic object
// graph, not a typed domain model).
package nametree

import (
	"fmt"
	"sort"

	"github.com/msonnier/pdfcore/model"
	"github.com/msonnier/pdfcore/registry"
)

// MaxDepth bounds tree recursion depth (spec.md §4.12/§9): a tree nested
// deeper than this is treated the same as a detected cycle.
const MaxDepth = 10

// Entry is one name-tree leaf mapping, a PDF byte-string key to an
// arbitrary value.
type Entry struct {
	Key   string
	Value model.Value
}

// Build constructs a name-tree dict from entries: the entries are sorted
// lexicographically by key and emitted as a single flat /Names leaf with
// its /Limits set from the first and last key (spec.md §4.12:
// "hierarchical splitting is a future optimization"). The caller registers
// the returned dict as an indirect object (or embeds it directly) as
// appropriate for where it is used.
func Build(entries []Entry) *model.Dict {
	sorted := append([]Entry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })

	d := model.NewDict()
	if len(sorted) == 0 {
		return d
	}
	arr := make([]model.Value, 0, 2*len(sorted))
	for _, e := range sorted {
		arr = append(arr, model.StringLiteral(e.Key), e.Value)
	}
	d.Set("Names", model.ArrayV(arr...))
	d.Set("Limits", model.ArrayV(model.StringLiteral(sorted[0].Key), model.StringLiteral(sorted[len(sorted)-1].Key)))
	return d
}

// Lookup resolves key within the name tree whose root dict is stored at
// root, using /Limits to binary-search /Kids at each intermediate node and
// the leaf's /Names array otherwise (spec.md testable property P8).
// Returns ok=false, with no error, for a key genuinely absent from the
// tree; errors are reserved for a node that cannot be resolved, a node that
// is not a dictionary, and a matching kid that is not an indirect reference.
func Lookup(reg *registry.Registry, root model.Reference, key string) (model.Value, bool, error) {
	return lookupRef(reg, root, key, make(map[model.Reference]bool), 0)
}

func lookupRef(reg *registry.Registry, ref model.Reference, key string, seen map[model.Reference]bool, depth int) (model.Value, bool, error) {
	if depth > MaxDepth {
		return model.Value{}, false, nil
	}
	if seen[ref] {
		return model.Value{}, false, nil
	}
	seen[ref] = true

	v, err := reg.GetObject(ref)
	if err != nil {
		return model.Value{}, false, err
	}
	d := v.AsDict()
	if d == nil {
		return model.Value{}, false, fmt.Errorf("nametree: node %s is not a dictionary", ref)
	}

	if kidsV, ok := d.Get("Kids"); ok {
		kids := kidsV.AsArray()
		idx := sort.Search(len(kids), func(i int) bool {
			lim, ok := kidLimits(reg, kids[i])
			if !ok {
				return true
			}
			return key <= lim[1]
		})
		if idx >= len(kids) {
			return model.Value{}, false, nil
		}
		lim, ok := kidLimits(reg, kids[idx])
		if !ok || key < lim[0] || key > lim[1] {
			return model.Value{}, false, nil
		}
		if kids[idx].Kind() != model.KindRef {
			return model.Value{}, false, fmt.Errorf("nametree: kid is not an indirect reference")
		}
		return lookupRef(reg, kids[idx].AsRef(), key, seen, depth+1)
	}

	namesV, ok := d.Get("Names")
	if !ok {
		return model.Value{}, false, nil
	}
	v2, found := lookupLeaf(namesV.AsArray(), key)
	return v2, found, nil
}

// lookupLeaf binary-searches a flat /Names array (key, value, key, value,
// ...) for key.
func lookupLeaf(names []model.Value, key string) (model.Value, bool) {
	n := len(names) / 2
	lo, hi := 0, n
	for lo < hi {
		mid := (lo + hi) / 2
		if 2*mid+1 >= len(names) {
			break
		}
		k := names[2*mid].AsString()
		switch {
		case k == key:
			return names[2*mid+1], true
		case k < key:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return model.Value{}, false
}

func kidLimits(reg *registry.Registry, kid model.Value) ([2]string, bool) {
	v := kid
	if kid.Kind() == model.KindRef {
		var err error
		v, err = reg.GetObject(kid.AsRef())
		if err != nil {
			return [2]string{}, false
		}
	}
	d := v.AsDict()
	if d == nil {
		return [2]string{}, false
	}
	limV, ok := d.Get("Limits")
	if !ok {
		return [2]string{}, false
	}
	arr := limV.AsArray()
	if len(arr) != 2 {
		return [2]string{}, false
	}
	return [2]string{arr[0].AsString(), arr[1].AsString()}, true
}

// Collect walks the entire tree rooted at root breadth-first and returns
// every leaf entry found, plus any warnings accumulated along the way
// (spec.md §4.12 "Iteration is BFS with per-ref cycle detection and a
// maximum depth cap"). A cycle or over-depth node is skipped with a
// warning rather than aborting the whole walk.
func Collect(reg *registry.Registry, root model.Reference) ([]Entry, []string) {
	type queued struct {
		ref   model.Reference
		depth int
	}
	var entries []Entry
	var warnings []string
	seen := make(map[model.Reference]bool)
	queue := []queued{{ref: root, depth: 0}}

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		if item.depth > MaxDepth {
			warnings = append(warnings, fmt.Sprintf("nametree: max depth %d exceeded at %s, truncating", MaxDepth, item.ref))
			continue
		}
		if seen[item.ref] {
			warnings = append(warnings, fmt.Sprintf("nametree: cycle detected at %s", item.ref))
			continue
		}
		seen[item.ref] = true

		v, err := reg.GetObject(item.ref)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("nametree: resolving %s: %v", item.ref, err))
			continue
		}
		d := v.AsDict()
		if d == nil {
			warnings = append(warnings, fmt.Sprintf("nametree: %s is not a dictionary", item.ref))
			continue
		}

		if kidsV, ok := d.Get("Kids"); ok {
			for _, k := range kidsV.AsArray() {
				if k.Kind() != model.KindRef {
					warnings = append(warnings, "nametree: non-reference kid skipped")
					continue
				}
				queue = append(queue, queued{ref: k.AsRef(), depth: item.depth + 1})
			}
			continue
		}

		namesV, ok := d.Get("Names")
		if !ok {
			continue
		}
		names := namesV.AsArray()
		for i := 0; i+1 < len(names); i += 2 {
			entries = append(entries, Entry{Key: names[i].AsString(), Value: names[i+1]})
		}
	}
	return entries, warnings
}
