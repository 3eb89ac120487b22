package model

import "testing"

func TestDictPreservesInsertionOrder(t *testing.T) {
	d := NewDict()
	d.Set("Type", NameV("Page"))
	d.Set("Parent", RefV(Reference{Num: 3, Gen: 0}))
	d.Set("MediaBox", ArrayV(Int(0), Int(0), Int(612), Int(792)))

	want := []Name{"Type", "Parent", "MediaBox"}
	got := d.Keys()
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("key order mismatch at %d: got %v want %v", i, got, want)
		}
	}

	// Re-setting an existing key does not move it.
	d.Set("Type", NameV("Pages"))
	if d.Keys()[0] != "Type" {
		t.Fatalf("re-set moved key: %v", d.Keys())
	}
}

func TestArraySetMarksDirtyWithoutTouchingOwningDict(t *testing.T) {
	d := NewDict()
	mediaBox := ArrayV(Int(0), Int(0), Int(612), Int(792))
	d.Set("MediaBox", mediaBox)
	d.ClearDirty()

	if HasDirtyDescendant(DictV(d)) {
		t.Fatal("freshly cleared dict should not be dirty")
	}

	v, _ := d.Get("MediaBox")
	v.AsArrayPtr().Set(3, Int(800))

	if d.Dirty() {
		t.Fatal("mutating the array in place should not mark the owning dict dirty directly")
	}
	if !HasDirtyDescendant(DictV(d)) {
		t.Fatal("array mutation should surface as a dirty descendant of its owning dict")
	}

	ClearDirtyDescendant(DictV(d))
	if HasDirtyDescendant(DictV(d)) {
		t.Fatal("ClearDirtyDescendant should clear the array's own dirty bit too")
	}
}

func TestDictNullEntryDeletesKey(t *testing.T) {
	d := NewDict()
	d.Set("A", Int(1))
	d.Set("A", Null())
	if _, ok := d.Get("A"); ok {
		t.Fatal("setting null should delete the key per PDF 7.3.7")
	}
	if d.Len() != 0 {
		t.Fatalf("expected empty dict, got %d keys", d.Len())
	}
}

func TestValueEqualIgnoresDictOrder(t *testing.T) {
	a := NewDict()
	a.Set("X", Int(1))
	a.Set("Y", Int(2))
	b := NewDict()
	b.Set("Y", Int(2))
	b.Set("X", Int(1))
	if !Equal(DictV(a), DictV(b)) {
		t.Fatal("dicts with same contents but different insertion order should be equal")
	}
}

func TestValueEqualStreamComparesDict(t *testing.T) {
	d1 := NewDict()
	d1.Set("Length", Int(3))
	d2 := NewDict()
	d2.Set("Length", Int(4))
	a := StreamV(&Stream{Dict: d1, Raw: []byte("abc")})
	b := StreamV(&Stream{Dict: d2, Raw: []byte("abc")})
	if Equal(a, b) {
		t.Fatal("streams with different dicts should not be equal")
	}
	c := StreamV(&Stream{Dict: d1.Clone(), Raw: []byte("abc")})
	if !Equal(a, c) {
		t.Fatal("streams with equal dicts and raw bytes should be equal")
	}
}

func TestFmtReal(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{-0.0, "0"},
		{1.23456789, "1.2346"},
		{-2, "-2"},
		{100.5, "100.5"},
	}
	for _, c := range cases {
		in, want := c.in, c.want
		if got := FmtReal(in); got != want {
			t.Errorf("FmtReal(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestDateRoundTrip(t *testing.T) {
	s := "D:20230415120000+02'00'"
	tm, err := ParseDate(s)
	if err != nil {
		t.Fatal(err)
	}
	if got := DateTimeString(tm); got != s {
		t.Errorf("round trip: got %q want %q", got, s)
	}
}

func TestFiltersSingleAndArray(t *testing.T) {
	d := NewDict()
	d.Set("Filter", NameV("FlateDecode"))
	names, parms, err := Filters(d)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 1 || names[0] != FlateDecode || parms[0] != nil {
		t.Fatalf("got %v %v", names, parms)
	}

	d2 := NewDict()
	p := NewDict()
	p.Set("Predictor", Int(12))
	d2.Set("Filter", ArrayV(NameV("ASCII85Decode"), NameV("FlateDecode")))
	d2.Set("DecodeParms", ArrayV(Null(), DictV(p)))
	names2, parms2, err := Filters(d2)
	if err != nil {
		t.Fatal(err)
	}
	if len(names2) != 2 || names2[0] != ASCII85Decode || names2[1] != FlateDecode {
		t.Fatalf("got %v", names2)
	}
	if parms2[0] != nil || parms2[1] == nil {
		t.Fatalf("got %v", parms2)
	}
}
