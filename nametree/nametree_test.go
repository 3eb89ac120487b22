package nametree

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msonnier/pdfcore/model"
	"github.com/msonnier/pdfcore/registry"
)

func newTestRegistry(objs map[model.Reference]model.Value) *registry.Registry {
	resolver := func(ref model.Reference) (model.Value, bool, error) {
		v, ok := objs[ref]
		return v, ok, nil
	}
	return registry.New(resolver, 1000)
}

// TestFlatTreeBinarySearchLookup is spec.md's end-to-end scenario 5: a flat
// tree of 100 entries, lookups at the boundaries and in the middle
// succeed, and a key never inserted is reported absent.
func TestFlatTreeBinarySearchLookup(t *testing.T) {
	var entries []Entry
	for i := 0; i < 100; i++ {
		key := fmt.Sprintf("key%03d", i)
		entries = append(entries, Entry{Key: key, Value: model.Int(int64(i))})
	}
	d := Build(entries)
	ref := model.Reference{Num: 1}
	reg := newTestRegistry(map[model.Reference]model.Value{ref: model.DictV(d)})

	v, ok, err := Lookup(reg, ref, "key000")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(0), v.AsInt())

	v, ok, err = Lookup(reg, ref, "key050")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(50), v.AsInt())

	v, ok, err = Lookup(reg, ref, "key099")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(99), v.AsInt())

	_, ok, err = Lookup(reg, ref, "key100")
	require.NoError(t, err)
	assert.False(t, ok)
}

// TestHierarchicalLookupUsesLimits builds a two-level tree by hand and
// checks lookup descends into the right kid via /Limits.
func TestHierarchicalLookupUsesLimits(t *testing.T) {
	leafARef := model.Reference{Num: 10}
	leafBRef := model.Reference{Num: 11}
	rootRef := model.Reference{Num: 12}

	leafA := model.NewDict()
	leafA.Set("Limits", model.ArrayV(model.StringLiteral("apple"), model.StringLiteral("mango")))
	leafA.Set("Names", model.ArrayV(model.StringLiteral("apple"), model.Int(1), model.StringLiteral("mango"), model.Int(2)))

	leafB := model.NewDict()
	leafB.Set("Limits", model.ArrayV(model.StringLiteral("orange"), model.StringLiteral("zebra")))
	leafB.Set("Names", model.ArrayV(model.StringLiteral("orange"), model.Int(3), model.StringLiteral("zebra"), model.Int(4)))

	root := model.NewDict()
	root.Set("Kids", model.ArrayV(model.RefV(leafARef), model.RefV(leafBRef)))

	reg := newTestRegistry(map[model.Reference]model.Value{
		leafARef: model.DictV(leafA),
		leafBRef: model.DictV(leafB),
		rootRef:  model.DictV(root),
	})

	v, ok, err := Lookup(reg, rootRef, "mango")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(2), v.AsInt())

	v, ok, err = Lookup(reg, rootRef, "zebra")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(4), v.AsInt())

	_, ok, err = Lookup(reg, rootRef, "kiwi")
	require.NoError(t, err)
	assert.False(t, ok)
}

// TestCollectDetectsSelfReferencingCycle is spec.md's end-to-end scenario
// 5's second half: a malformed tree whose Kids[0] references itself
// completes iteration returning zero entries, with a warning emitted.
func TestCollectDetectsSelfReferencingCycle(t *testing.T) {
	rootRef := model.Reference{Num: 1}
	root := model.NewDict()
	root.Set("Kids", model.ArrayV(model.RefV(rootRef)))
	reg := newTestRegistry(map[model.Reference]model.Value{rootRef: model.DictV(root)})

	entries, warnings := Collect(reg, rootRef)
	assert.Empty(t, entries)
	assert.NotEmpty(t, warnings)
}

func TestCollectFlattensMultiLevelTree(t *testing.T) {
	leafRef := model.Reference{Num: 2}
	rootRef := model.Reference{Num: 1}

	leaf := model.NewDict()
	leaf.Set("Names", model.ArrayV(model.StringLiteral("a"), model.Int(1), model.StringLiteral("b"), model.Int(2)))

	root := model.NewDict()
	root.Set("Kids", model.ArrayV(model.RefV(leafRef)))

	reg := newTestRegistry(map[model.Reference]model.Value{
		leafRef: model.DictV(leaf),
		rootRef: model.DictV(root),
	})

	entries, warnings := Collect(reg, rootRef)
	assert.Empty(t, warnings)
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].Key)
	assert.Equal(t, "b", entries[1].Key)
}

func TestBuildSortsEntriesLexicographically(t *testing.T) {
	d := Build([]Entry{
		{Key: "zebra", Value: model.Int(1)},
		{Key: "apple", Value: model.Int(2)},
		{Key: "mango", Value: model.Int(3)},
	})
	namesV, ok := d.Get("Names")
	require.True(t, ok)
	names := namesV.AsArray()
	assert.Equal(t, "apple", names[0].AsString())
	assert.Equal(t, "mango", names[2].AsString())
	assert.Equal(t, "zebra", names[4].AsString())

	limitsV, ok := d.Get("Limits")
	require.True(t, ok)
	limits := limitsV.AsArray()
	assert.Equal(t, "apple", limits[0].AsString())
	assert.Equal(t, "zebra", limits[1].AsString())
}
