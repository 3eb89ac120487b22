package copier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msonnier/pdfcore/model"
	"github.com/msonnier/pdfcore/registry"
)

func newSourceRegistry(objs map[model.Reference]model.Value) *registry.Registry {
	resolver := func(ref model.Reference) (model.Value, bool, error) {
		v, ok := objs[ref]
		return v, ok, nil
	}
	var maxNum uint32
	for ref := range objs {
		if ref.Num > maxNum {
			maxNum = ref.Num
		}
	}
	return registry.New(resolver, maxNum)
}

func TestCopySimpleDict(t *testing.T) {
	ref := model.Reference{Num: 1, Gen: 0}
	d := model.NewDict()
	d.Set("Type", model.NameV("Catalog"))
	src := newSourceRegistry(map[model.Reference]model.Value{ref: model.DictV(d)})

	dst := registry.New(nil, 0)
	c := New(dst, false)

	dstRef, err := c.Copy(src, ref)
	require.NoError(t, err)

	got, err := dst.GetObject(dstRef)
	require.NoError(t, err)
	typeName, _ := got.AsDict().Get("Type")
	assert.Equal(t, model.Name("Catalog"), typeName.AsName())
}

func TestCopyDeduplicatesSharedReference(t *testing.T) {
	sharedRef := model.Reference{Num: 1, Gen: 0}
	parentRef := model.Reference{Num: 2, Gen: 0}
	childRef := model.Reference{Num: 3, Gen: 0}

	shared := model.NewDict()
	shared.Set("Name", model.NameV("Shared"))

	parent := model.NewDict()
	parent.Set("A", model.RefV(sharedRef))
	parent.Set("B", model.RefV(sharedRef))
	parent.Set("Child", model.RefV(childRef))

	child := model.NewDict()
	child.Set("Back", model.RefV(sharedRef))

	src := newSourceRegistry(map[model.Reference]model.Value{
		sharedRef: model.DictV(shared),
		parentRef: model.DictV(parent),
		childRef:  model.DictV(child),
	})

	dst := registry.New(nil, 0)
	c := New(dst, false)

	dstParentRef, err := c.Copy(src, parentRef)
	require.NoError(t, err)

	got, err := dst.GetObject(dstParentRef)
	require.NoError(t, err)
	gotDict := got.AsDict()

	aVal, _ := gotDict.Get("A")
	bVal, _ := gotDict.Get("B")
	assert.Equal(t, aVal.AsRef(), bVal.AsRef(), "A and B referenced the same source object and must map to the same destination ref")

	childVal, _ := gotDict.Get("Child")
	copiedChild, err := dst.GetObject(childVal.AsRef())
	require.NoError(t, err)
	backVal, _ := copiedChild.AsDict().Get("Back")
	assert.Equal(t, aVal.AsRef(), backVal.AsRef(), "the child's reference to the shared object must resolve to the same destination ref")
}

// TestCopyCycleTerminates exercises a direct self-reference (A -> A) which
// would loop forever without the placeholder-before-recursing order.
func TestCopyCycleTerminates(t *testing.T) {
	selfRef := model.Reference{Num: 1, Gen: 0}
	self := model.NewDict()
	self.Set("Self", model.RefV(selfRef))
	src := newSourceRegistry(map[model.Reference]model.Value{selfRef: model.DictV(self)})

	dst := registry.New(nil, 0)
	c := New(dst, false)

	dstRef, err := c.Copy(src, selfRef)
	require.NoError(t, err)

	got, err := dst.GetObject(dstRef)
	require.NoError(t, err)
	selfVal, _ := got.AsDict().Get("Self")
	assert.Equal(t, dstRef, selfVal.AsRef())
}

func TestCopyMissingReferentStubsEmptyDictAndWarns(t *testing.T) {
	parentRef := model.Reference{Num: 1, Gen: 0}
	missingRef := model.Reference{Num: 99, Gen: 0}

	parent := model.NewDict()
	parent.Set("Missing", model.RefV(missingRef))
	src := newSourceRegistry(map[model.Reference]model.Value{parentRef: model.DictV(parent)})

	dst := registry.New(nil, 0)
	c := New(dst, false)

	dstRef, err := c.Copy(src, parentRef)
	require.NoError(t, err)

	got, err := dst.GetObject(dstRef)
	require.NoError(t, err)
	missingVal, _ := got.AsDict().Get("Missing")
	stub, err := dst.GetObject(missingVal.AsRef())
	require.NoError(t, err)
	assert.Equal(t, 0, stub.AsDict().Len())
	assert.NotEmpty(t, c.Warnings)
}

func TestCopyPageFlattensInheritedAttributes(t *testing.T) {
	rootRef := model.Reference{Num: 1, Gen: 0}
	midRef := model.Reference{Num: 2, Gen: 0}
	pageRef := model.Reference{Num: 3, Gen: 0}

	root := model.NewDict()
	root.Set("Type", model.NameV("Pages"))
	root.Set("MediaBox", model.ArrayV(model.Int(0), model.Int(0), model.Int(612), model.Int(792)))

	mid := model.NewDict()
	mid.Set("Type", model.NameV("Pages"))
	mid.Set("Parent", model.RefV(rootRef))
	mid.Set("Resources", model.DictV(model.NewDict()))

	page := model.NewDict()
	page.Set("Type", model.NameV("Page"))
	page.Set("Parent", model.RefV(midRef))

	src := newSourceRegistry(map[model.Reference]model.Value{
		rootRef: model.DictV(root),
		midRef:  model.DictV(mid),
		pageRef: model.DictV(page),
	})

	dst := registry.New(nil, 0)
	c := New(dst, false)

	dstRef, err := c.CopyPage(src, pageRef)
	require.NoError(t, err)

	got, err := dst.GetObject(dstRef)
	require.NoError(t, err)
	gotDict := got.AsDict()

	mediaBox, ok := gotDict.Get("MediaBox")
	require.True(t, ok, "MediaBox should be flattened from the grandparent")
	assert.Equal(t, int64(612), mediaBox.AsArray()[2].AsInt())

	_, hasResources := gotDict.Get("Resources")
	assert.True(t, hasResources, "Resources should be flattened from the parent")

	_, hasParent := gotDict.Get("Parent")
	assert.False(t, hasParent, "Parent must be dropped so the destination page tree can reassign it")
}

func TestCopyStreamUnencryptedCopiesRawBytes(t *testing.T) {
	ref := model.Reference{Num: 1, Gen: 0}
	d := model.NewDict()
	d.Set("Length", model.Int(5))
	s := &model.Stream{Dict: d, Raw: []byte("hello")}
	src := newSourceRegistry(map[model.Reference]model.Value{ref: model.StreamV(s)})

	dst := registry.New(nil, 0)
	c := New(dst, false)

	dstRef, err := c.Copy(src, ref)
	require.NoError(t, err)

	got, err := dst.GetObject(dstRef)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got.AsStream().Raw)
}
