package registry

import "testing"

import "github.com/msonnier/pdfcore/model"

func exampleResolver(objs map[model.Reference]model.Value) Resolver {
	return func(ref model.Reference) (model.Value, bool, error) {
		v, ok := objs[ref]
		return v, ok, nil
	}
}

// TestGetObjectReturnsSameInstance checks invariant I5/P4: reference
// interning means get_object(ref) returns the same logical instance every
// call, whether loaded up front or resolved lazily.
func TestGetObjectReturnsSameInstance(t *testing.T) {
	ref := model.Reference{Num: 5, Gen: 0}
	d := model.NewDict()
	d.Set("Type", model.NameV("Page"))
	objs := map[model.Reference]model.Value{ref: model.DictV(d)}

	r := New(exampleResolver(objs), 10)
	v1, err := r.GetObject(ref)
	if err != nil {
		t.Fatal(err)
	}
	v2, err := r.GetObject(ref)
	if err != nil {
		t.Fatal(err)
	}
	if v1.AsDict() != v2.AsDict() {
		t.Fatal("expected the same *model.Dict instance across calls")
	}
}

func TestGetObjectUndefinedRefIsNull(t *testing.T) {
	r := New(exampleResolver(nil), 10)
	v, err := r.GetObject(model.Reference{Num: 99})
	if err != nil {
		t.Fatal(err)
	}
	if !v.IsNull() {
		t.Fatalf("expected null for undefined ref, got %v", v.Kind())
	}
}

func TestRegisterNeverReusesObjectNumber(t *testing.T) {
	r := New(exampleResolver(nil), 10)
	ref1 := r.Register(model.DictV(model.NewDict()))
	r.Commit()
	ref2 := r.Register(model.DictV(model.NewDict()))
	if ref1.Num == ref2.Num {
		t.Fatalf("object number reused across commit: %v vs %v", ref1, ref2)
	}
	if ref2.Num != ref1.Num+1 {
		t.Fatalf("expected monotonic allocation, got %d then %d", ref1.Num, ref2.Num)
	}
}

func TestCommitMovesNewIntoLoadedAndClearsDirty(t *testing.T) {
	r := New(exampleResolver(nil), 10)
	d := model.NewDict()
	d.Set("A", model.Int(1))
	ref := r.Register(model.DictV(d))

	if !r.HasChanges() {
		t.Fatal("expected HasChanges true before commit")
	}
	r.Commit()
	if r.HasChanges() {
		t.Fatal("expected HasChanges false after commit (P3)")
	}
	if d.Dirty() {
		t.Fatal("expected dirty bit cleared after commit")
	}
	v, err := r.GetObject(ref)
	if err != nil || v.AsDict() != d {
		t.Fatalf("expected object reachable from loaded after commit, got %v %v", v, err)
	}
}

func TestHasDirtyDescendantStopsAtRefBoundary(t *testing.T) {
	r := New(exampleResolver(nil), 10)
	child := model.NewDict()
	childRef := r.Register(model.DictV(child))
	r.Commit()

	parent := model.NewDict()
	parent.Set("Kid", model.RefV(childRef))
	parentRef := r.Register(model.DictV(parent))
	r.Commit()

	// Mutate only the child; the parent's own dict is untouched and the
	// walk must not cross into the child through the Ref.
	child.Set("Changed", model.Bool(true))

	changes := CollectChanges(r)
	foundParent, foundChild := false, false
	for _, ref := range changes.Modified {
		if ref == parentRef {
			foundParent = true
		}
		if ref == childRef {
			foundChild = true
		}
	}
	if foundParent {
		t.Fatal("parent should not be reported dirty: its own dict was never mutated")
	}
	if !foundChild {
		t.Fatal("child should be reported dirty: its dict was mutated")
	}
}
