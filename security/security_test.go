package security

import (
	"testing"

	"github.com/msonnier/pdfcore/model"
)

func TestObjectKeyDerivationLength(t *testing.T) {
	h := &Handler{FileKey: make([]byte, 16), AES: false}
	key := h.ObjectKey(3, 0)
	if len(key) != 16 {
		t.Fatalf("got key length %d, want 16 (min(16+5,16))", len(key))
	}

	h2 := &Handler{FileKey: make([]byte, 5), AES: false}
	key2 := h2.ObjectKey(3, 0)
	if len(key2) != 10 {
		t.Fatalf("got key length %d, want 10 (5+5)", len(key2))
	}
}

func TestObjectKeyVariesWithObjectNumber(t *testing.T) {
	h := &Handler{FileKey: make([]byte, 16), AES: true}
	k1 := h.ObjectKey(1, 0)
	k2 := h.ObjectKey(2, 0)
	if string(k1) == string(k2) {
		t.Fatal("keys for different object numbers must differ")
	}
}

func TestRC4RoundTrip(t *testing.T) {
	h := &Handler{FileKey: []byte("0123456789abcdef"), AES: false}
	ref := model.Reference{Num: 5, Gen: 0}
	plain := []byte("secret content")
	enc, err := h.decrypt(plain, ref)
	if err != nil {
		t.Fatal(err)
	}
	dec, err := h.decrypt(enc, ref)
	if err != nil {
		t.Fatal(err)
	}
	if string(dec) != string(plain) {
		t.Fatalf("got %q want %q", dec, plain)
	}
}
