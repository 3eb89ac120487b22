package filters

import (
	"bytes"
	"io"

	hhlzw "github.com/hhrutter/lzw"

	"github.com/msonnier/pdfcore/model"
)

type lzwDecoder struct{}

func (lzwDecoder) Decode(src io.Reader, params *model.Dict) (io.Reader, error) {
	early := true
	if params != nil {
		if v, ok := params.Get("EarlyChange"); ok && v.Kind() == model.KindInt {
			early = v.AsInt() != 0
		}
	}
	r := hhlzw.NewReader(src, early)
	p, err := parsePredictorParams(params)
	if err != nil {
		return nil, err
	}
	return applyPredictor(r, p)
}

// lzwEncode writes new streams as LZWDecode with EarlyChange 1 (the PDF
// default, spec.md §4.6), mirroring lzwDecoder's default when /DecodeParms
// omits the key.
func lzwEncode(data []byte, params *model.Dict) ([]byte, error) {
	early := true
	if params != nil {
		if v, ok := params.Get("EarlyChange"); ok && v.Kind() == model.KindInt {
			early = v.AsInt() != 0
		}
	}
	var buf bytes.Buffer
	w := hhlzw.NewWriter(&buf, early)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type lzwSkipper struct{ earlyChange bool }

func (s lzwSkipper) Skip(encoded io.Reader) (int64, error) {
	cr := &countReader{r: encoded}
	r := hhlzw.NewReader(cr, s.earlyChange)
	defer r.Close()
	if _, err := io.Copy(io.Discard, r); err != nil {
		return 0, err
	}
	return cr.totalRead, nil
}
