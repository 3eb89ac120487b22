package filters

import (
	"bytes"
	"compress/zlib"
	"testing"

	"github.com/msonnier/pdfcore/model"
)

func deflate(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestFlateRoundTrip(t *testing.T) {
	d := model.NewDict()
	d.Set("Filter", model.NameV("FlateDecode"))
	raw := deflate(t, []byte("hello, pdf world"))
	out, err := Decode(raw, d, DefaultLimits)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "hello, pdf world" {
		t.Fatalf("got %q", out)
	}
}

func TestLZWRoundTrip(t *testing.T) {
	d := model.NewDict()
	d.Set("Filter", model.NameV("LZWDecode"))
	want := []byte("hello, pdf world, hello again")

	encoded, err := Encode(want, d)
	if err != nil {
		t.Fatal(err)
	}
	out, err := Decode(encoded, d, DefaultLimits)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, want) {
		t.Fatalf("got %q want %q", out, want)
	}
}

func TestLZWRoundTripWithEarlyChangeDisabled(t *testing.T) {
	parms := model.NewDict()
	parms.Set("EarlyChange", model.Int(0))
	d := model.NewDict()
	d.Set("Filter", model.NameV("LZWDecode"))
	d.Set("DecodeParms", model.DictV(parms))
	want := []byte("aaaaaaaaaabbbbbbbbbbccccccccccdddddddddd")

	encoded, err := Encode(want, d)
	if err != nil {
		t.Fatal(err)
	}
	out, err := Decode(encoded, d, DefaultLimits)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, want) {
		t.Fatalf("got %q want %q", out, want)
	}
}

func TestFlateWithPNGUpPredictor(t *testing.T) {
	// 2 rows of 3 bytes each (Colors=3, BitsPerComponent=8, Columns=1),
	// using the "Up" filter (type 2) for every row.
	row0 := []byte{0, 10, 20, 30}   // tag byte 0 (None) + raw row
	row1 := []byte{2, 5, 5, 5}      // tag byte 2 (Up) + delta vs row0
	raw := deflate(t, append(row0, row1...))

	parms := model.NewDict()
	parms.Set("Predictor", model.Int(15))
	parms.Set("Colors", model.Int(3))
	parms.Set("BitsPerComponent", model.Int(8))
	parms.Set("Columns", model.Int(1))

	d := model.NewDict()
	d.Set("Filter", model.NameV("FlateDecode"))
	d.Set("DecodeParms", model.DictV(parms))

	out, err := Decode(raw, d, DefaultLimits)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{10, 20, 30, 15, 25, 35}
	if !bytes.Equal(out, want) {
		t.Fatalf("got %v want %v", out, want)
	}
}

func TestASCIIHexRoundTrip(t *testing.T) {
	enc, _ := asciiHexEncode([]byte("ABC"), nil)
	d := model.NewDict()
	d.Set("Filter", model.NameV("ASCIIHexDecode"))
	out, err := Decode(enc, d, DefaultLimits)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "ABC" {
		t.Fatalf("got %q", out)
	}
}

func TestASCII85RoundTrip(t *testing.T) {
	enc, err := ascii85Encode([]byte("the quick brown fox"), nil)
	if err != nil {
		t.Fatal(err)
	}
	d := model.NewDict()
	d.Set("Filter", model.NameV("ASCII85Decode"))
	out, err := Decode(enc, d, DefaultLimits)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "the quick brown fox" {
		t.Fatalf("got %q", out)
	}
}

func TestRunLengthRoundTrip(t *testing.T) {
	in := []byte("aaaaabcdefg")
	enc, err := runLengthEncode(in, nil)
	if err != nil {
		t.Fatal(err)
	}
	out, _, err := runLengthDecodeBytes(enc)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, in) {
		t.Fatalf("got %q want %q", out, in)
	}
}

func TestFilterChain(t *testing.T) {
	raw := deflate(t, []byte("chained"))
	enc, err := asciiHexEncode(raw, nil)
	if err != nil {
		t.Fatal(err)
	}
	d := model.NewDict()
	d.Set("Filter", model.ArrayV(model.NameV("ASCIIHexDecode"), model.NameV("FlateDecode")))
	out, err := Decode(enc, d, DefaultLimits)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "chained" {
		t.Fatalf("got %q", out)
	}
}

func TestUnsupportedFilter(t *testing.T) {
	d := model.NewDict()
	d.Set("Filter", model.NameV("Crypt"))
	_, err := Decode([]byte("x"), d, DefaultLimits)
	if err == nil {
		t.Fatal("expected error for unregistered filter")
	}
}
