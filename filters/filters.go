// Package filters implements the PDF filter pipeline: chained decode/encode
// of stream content (Flate, LZW, ASCII85, ASCIIHex, RunLength, CCITTFax,
// DCT, JBIG2, JPX) plus the PNG/TIFF predictors layered on top of
// Flate/LZW, and the Skipper interface used to find a filtered stream's
// true encoded length without fully decoding it.
//
// code adapted from the teacher's reader/parser/filters/* and
// parser/filters/* packages, with a named-registry Pipeline shape grounded
// on other_examples/e1c9cf71_wudi-pdfkit__filters-filters.go.go.
package filters

import (
	"bytes"
	"fmt"
	"io"

	"github.com/msonnier/pdfcore/model"
)

// Limits bounds filter decoding against decompression bombs. Not present in
// the teacher (a trusted-input library); adopted as an ambient-robustness
// enrichment grounded on the wudi-pdfkit filters example, since this core
// may run against untrusted input.
type Limits struct {
	MaxDecompressedSize int64 // 0 means unbounded
}

var DefaultLimits = Limits{MaxDecompressedSize: 256 << 20}

// Decoder decodes one filter's encoded form back to its input.
type Decoder interface {
	Decode(src io.Reader, params *model.Dict) (io.Reader, error)
}

// Skipper determines how many encoded bytes a filter consumes to produce
// its decoded output, without the caller needing to know the decoded
// length in advance. Used when a stream's /Length is missing, indirect in
// a context where it cannot yet be resolved, or untrustworthy.
type Skipper interface {
	Skip(encoded io.Reader) (int64, error)
}

var registry = map[model.FilterName]Decoder{
	model.FlateDecode:     flateDecoder{},
	model.LZWDecode:       lzwDecoder{},
	model.ASCII85Decode:   ascii85Decoder{},
	model.ASCIIHexDecode:  asciiHexDecoder{},
	model.RunLengthDecode: runLengthDecoder{},
	model.CCITTFaxDecode:  ccittDecoder{},
	model.DCTDecode:       passthroughDecoder{},
	model.JBIG2Decode:     passthroughDecoder{},
	model.JPXDecode:       passthroughDecoder{},
}

// UnsupportedFilterError is returned for a filter name with no registered
// Decoder.
type UnsupportedFilterError struct{ Name model.FilterName }

func (e UnsupportedFilterError) Error() string {
	return fmt.Sprintf("filters: unsupported filter %q", e.Name)
}

// Decode runs raw through the filter chain named by dict's /Filter (and
// /DecodeParms), in order, applying limits between stages.
func Decode(raw []byte, dict *model.Dict, limits Limits) ([]byte, error) {
	names, parms, err := model.Filters(dict)
	if err != nil {
		return nil, err
	}
	var r io.Reader = bytes.NewReader(raw)
	for i, name := range names {
		dec, ok := registry[name]
		if !ok {
			return nil, UnsupportedFilterError{name}
		}
		r, err = dec.Decode(r, parms[i])
		if err != nil {
			return nil, fmt.Errorf("filters: %s: %w", name, err)
		}
		if limits.MaxDecompressedSize > 0 {
			r = io.LimitReader(r, limits.MaxDecompressedSize+1)
		}
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if limits.MaxDecompressedSize > 0 && int64(len(out)) > limits.MaxDecompressedSize {
		return nil, fmt.Errorf("filters: decoded size exceeds limit of %d bytes", limits.MaxDecompressedSize)
	}
	return out, nil
}

// DecodeStream decodes a model.Stream's Raw bytes per its own Dict.
func DecodeStream(s *model.Stream, limits Limits) ([]byte, error) {
	return Decode(s.Raw, s.Dict, limits)
}

// Encode runs data through the filter chain named by dict's /Filter in
// reverse array order: Decode applies the filters in array order, so the
// last named filter is applied first on encode and the first named filter
// last.
func Encode(data []byte, dict *model.Dict) ([]byte, error) {
	names, parms, err := model.Filters(dict)
	if err != nil {
		return nil, err
	}
	out := data
	for i := len(names) - 1; i >= 0; i-- {
		enc, ok := encoders[names[i]]
		if !ok {
			return nil, UnsupportedFilterError{names[i]}
		}
		out, err = enc(out, parms[i])
		if err != nil {
			return nil, fmt.Errorf("filters: encode %s: %w", names[i], err)
		}
	}
	return out, nil
}

type encodeFunc func(data []byte, params *model.Dict) ([]byte, error)

var encoders = map[model.FilterName]encodeFunc{
	model.FlateDecode:     flateEncode,
	model.ASCII85Decode:   ascii85Encode,
	model.ASCIIHexDecode:  asciiHexEncode,
	model.RunLengthDecode: runLengthEncode,
	model.LZWDecode:       lzwEncode,
}

// SkipperFor returns the Skipper for the first (outermost on disk) filter
// applied to dict's content, used by package xref to find a stream's true
// encoded length when /Length cannot be trusted directly.
func SkipperFor(dict *model.Dict) (Skipper, error) {
	names, parms, err := model.Filters(dict)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("filters: no filter to skip")
	}
	return skipperFor(names[0], parms[0])
}

func skipperFor(name model.FilterName, params *model.Dict) (Skipper, error) {
	switch name {
	case model.ASCII85Decode:
		return ascii85Skipper{}, nil
	case model.ASCIIHexDecode:
		return asciiHexSkipper{}, nil
	case model.FlateDecode:
		return flateSkipper{}, nil
	case model.RunLengthDecode:
		return runLengthSkipper{}, nil
	case model.DCTDecode:
		return dctSkipper{}, nil
	case model.CCITTFaxDecode:
		return ccittSkipper{params: params}, nil
	case model.LZWDecode:
		early := true
		if params != nil {
			if v, ok := params.Get("EarlyChange"); ok && v.Kind() == model.KindInt {
				early = v.AsInt() != 0
			}
		}
		return lzwSkipper{earlyChange: early}, nil
	default:
		return nil, UnsupportedFilterError{name}
	}
}

type passthroughDecoder struct{}

func (passthroughDecoder) Decode(src io.Reader, _ *model.Dict) (io.Reader, error) { return src, nil }
