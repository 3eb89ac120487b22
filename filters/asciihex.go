package filters

import (
	"bytes"
	"encoding/hex"
	"io"

	"github.com/msonnier/pdfcore/model"
)

type asciiHexDecoder struct{}

func (asciiHexDecoder) Decode(src io.Reader, _ *model.Dict) (io.Reader, error) {
	raw, err := io.ReadAll(src)
	if err != nil {
		return nil, err
	}
	if i := bytes.IndexByte(raw, '>'); i >= 0 {
		raw = raw[:i]
	}
	// Whitespace is legal between hex digit pairs (PDF 7.4.2).
	cleaned := make([]byte, 0, len(raw))
	for _, c := range raw {
		if !pdftokenizerIsWhitespace(c) {
			cleaned = append(cleaned, c)
		}
	}
	if len(cleaned)%2 != 0 {
		cleaned = append(cleaned, '0')
	}
	decoded := make([]byte, hex.DecodedLen(len(cleaned)))
	n, err := hex.Decode(decoded, cleaned)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(decoded[:n]), nil
}

func pdftokenizerIsWhitespace(c byte) bool {
	switch c {
	case 0, 9, 10, 12, 13, 32:
		return true
	default:
		return false
	}
}

func asciiHexEncode(data []byte, _ *model.Dict) ([]byte, error) {
	out := make([]byte, hex.EncodedLen(len(data))+1)
	hex.Encode(out, data)
	out[len(out)-1] = '>'
	return out, nil
}

type asciiHexSkipper struct{}

func (asciiHexSkipper) Skip(encoded io.Reader) (int64, error) {
	raw, err := io.ReadAll(encoded)
	if err != nil {
		return 0, err
	}
	if i := bytes.IndexByte(raw, '>'); i >= 0 {
		return int64(i + 1), nil
	}
	return int64(len(raw)), nil
}
