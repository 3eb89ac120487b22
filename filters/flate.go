package filters

import (
	"bytes"
	"compress/zlib"
	"io"

	"github.com/msonnier/pdfcore/model"
)

type flateDecoder struct{}

func (flateDecoder) Decode(src io.Reader, params *model.Dict) (io.Reader, error) {
	zr, err := zlib.NewReader(src)
	if err != nil {
		return nil, err
	}
	p, err := parsePredictorParams(params)
	if err != nil {
		return nil, err
	}
	return applyPredictor(zr, p)
}

func flateEncode(data []byte, params *model.Dict) ([]byte, error) {
	// Predictor encoding on write is not required by any SPEC_FULL.md
	// component (new streams are always written with Predictor 1 / none);
	// only the identity zlib encode path is implemented.
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// countReader tracks how many bytes have been read through it, used by
// Skippers to learn a filter's true encoded length.
type countReader struct {
	r         io.Reader
	totalRead int64
}

func (c *countReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.totalRead += int64(n)
	return n, err
}

// ReadByte makes countReader an io.ByteReader, so decompressors read from it
// directly instead of wrapping it in a read-ahead buffer that would inflate
// totalRead past the bytes the filter really consumed.
func (c *countReader) ReadByte() (byte, error) {
	var b [1]byte
	n, err := c.Read(b[:])
	if n == 1 {
		return b[0], nil
	}
	if err == nil {
		err = io.ErrNoProgress
	}
	return 0, err
}

type flateSkipper struct{}

func (flateSkipper) Skip(encoded io.Reader) (int64, error) {
	cr := &countReader{r: encoded}
	zr, err := zlib.NewReader(cr)
	if err != nil {
		return 0, err
	}
	if _, err := io.Copy(io.Discard, zr); err != nil {
		return 0, err
	}
	return cr.totalRead, nil
}
