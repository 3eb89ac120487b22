package filters

import (
	"bytes"
	"encoding/ascii85"
	"fmt"
	"io"

	"github.com/msonnier/pdfcore/model"
)

type ascii85Decoder struct{}

// stripAscii85EOD cuts b at the first occurrence of the two-byte EOD
// marker "~>", matching PDF 7.4.3's ASCII85Decode terminator (stdlib's
// ascii85 decoder does not understand PDF's own trailing "~>" convention
// directly, so we strip it before handing bytes to encoding/ascii85).
func stripAscii85EOD(b []byte) []byte {
	if i := bytes.Index(b, []byte("~>")); i >= 0 {
		return b[:i]
	}
	return b
}

func (ascii85Decoder) Decode(src io.Reader, _ *model.Dict) (io.Reader, error) {
	raw, err := io.ReadAll(src)
	if err != nil {
		return nil, err
	}
	raw = stripAscii85EOD(raw)
	decoded := make([]byte, len(raw))
	n, _, err := ascii85.Decode(decoded, raw, true)
	if err != nil {
		return nil, fmt.Errorf("ascii85: %w", err)
	}
	return bytes.NewReader(decoded[:n]), nil
}

func ascii85Encode(data []byte, _ *model.Dict) ([]byte, error) {
	var buf bytes.Buffer
	w := ascii85.NewEncoder(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	buf.WriteString("~>")
	return buf.Bytes(), nil
}

type ascii85Skipper struct{}

func (ascii85Skipper) Skip(encoded io.Reader) (int64, error) {
	raw, err := io.ReadAll(encoded)
	if err != nil {
		return 0, err
	}
	if i := bytes.Index(raw, []byte("~>")); i >= 0 {
		return int64(i + 2), nil
	}
	return int64(len(raw)), nil
}
