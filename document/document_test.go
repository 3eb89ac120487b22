package document

import (
	"strings"
	"testing"

	"github.com/msonnier/pdfcore/writer"
)

func minimalPDF() []byte {
	return []byte("%PDF-1.4\n" +
		"1 0 obj\n<< /Type /Catalog >>\nendobj\n" +
		"xref\n0 2\n0000000000 65535 f \n0000000009 00000 n \n" +
		"trailer\n<< /Size 2 /Root 1 0 R >>\nstartxref\n45\n%%EOF\n")
}

func TestEncryptionChangeClassification(t *testing.T) {
	cases := []struct {
		name        string
		isEncrypted bool
		spec        *NewEncryptionSpec
		want        writer.EncryptionChange
	}{
		{"no spec, unencrypted", false, nil, writer.EncryptionUnchanged},
		{"no spec, encrypted", true, nil, writer.EncryptionUnchanged},
		{"add to unencrypted", false, &NewEncryptionSpec{UserPassword: "x"}, writer.EncryptionAdded},
		{"change on encrypted", true, &NewEncryptionSpec{UserPassword: "x"}, writer.EncryptionChanged},
		{"remove from encrypted", true, &NewEncryptionSpec{Remove: true}, writer.EncryptionRemoved},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			d := &Document{IsEncrypted: c.isEncrypted}
			if got := d.encryptionChange(c.spec); got != c.want {
				t.Fatalf("got %v want %v", got, c.want)
			}
		})
	}
}

func TestSaveRejectsUnimplementedEncryptionChange(t *testing.T) {
	doc, err := Load(minimalPDF(), LoadOptions{})
	if err != nil {
		t.Fatal(err)
	}
	_, err = doc.Save(SaveOptions{Encryption: &NewEncryptionSpec{UserPassword: "x"}})
	if err == nil {
		t.Fatal("expected an error adding encryption without a derived Handler")
	}
	if !strings.Contains(err.Error(), "not implemented") {
		t.Fatalf("got %q", err)
	}
}

func TestSaveAllowsRemovingAbsentEncryption(t *testing.T) {
	doc, err := Load(minimalPDF(), LoadOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := doc.Save(SaveOptions{Encryption: &NewEncryptionSpec{Remove: true}}); err != nil {
		t.Fatalf("removing encryption from an already-unencrypted document should succeed: %v", err)
	}
}
