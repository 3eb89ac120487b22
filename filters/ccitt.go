package filters

import (
	"fmt"
	"image"
	"io"

	xccitt "golang.org/x/image/ccitt"

	"github.com/msonnier/pdfcore/model"
)

// ccittParams mirrors the /DecodeParms entries of CCITTFaxDecode (PDF
// 7.4.6, Table 11), adapted from the teacher's
// reader/parser/parser.go processCCITTFaxParams.
type ccittParams struct {
	columns         int
	rows            int
	k               int
	endOfLine       bool
	endOfBlock      bool
	blackIs1        bool
	byteAlign       bool
}

func parseCCITTParams(d *model.Dict) ccittParams {
	p := ccittParams{columns: 1728, endOfBlock: true}
	if d == nil {
		return p
	}
	if v, ok := d.Get("K"); ok {
		p.k = int(v.AsInt())
	}
	if v, ok := d.Get("Columns"); ok {
		p.columns = int(v.AsInt())
	}
	if v, ok := d.Get("Rows"); ok {
		p.rows = int(v.AsInt())
	}
	if v, ok := d.Get("EndOfLine"); ok {
		p.endOfLine = v.AsBool()
	}
	if v, ok := d.Get("EndOfBlock"); ok {
		p.endOfBlock = v.AsBool()
	} else {
		p.endOfBlock = true
	}
	if v, ok := d.Get("BlackIs1"); ok {
		p.blackIs1 = v.AsBool()
	}
	if v, ok := d.Get("EncodedByteAlign"); ok {
		p.byteAlign = v.AsBool()
	}
	return p
}

// mode classifies the CCITT group per the /K parameter the way
// golang.org/x/image/ccitt distinguishes Group 3 1-D/2-D from Group 4; fed
// into ccittSkipper's real decode below to locate a stream's end.
func (p ccittParams) mode() xccitt.SubFormat {
	if p.k < 0 {
		return xccitt.Group4
	}
	return xccitt.Group3
}

// ccittDecoder validates CCITTFax parameters but does not rasterize the
// encoded bits: the filter chain's output is the fax-encoded payload
// itself, unchanged, since no SPEC_FULL.md component consumes decoded
// pixels (rendering to pixels is out of scope, same as DCT/JBIG2/JPX).
// Locating a stream's true end when /Length can't be trusted, unlike
// those three, does require a real decode; see ccittSkipper.Skip.
type ccittDecoder struct{}

func (ccittDecoder) Decode(src io.Reader, params *model.Dict) (io.Reader, error) {
	_ = parseCCITTParams(params) // parsed so a malformed /DecodeParms dict surfaces here, not later
	return src, nil
}

type ccittSkipper struct{ params *model.Dict }

// Skip measures a CCITTFax stream's true encoded length the way the
// teacher's ccitt_decoder.go does: by actually running the G3/G4 decode
// and counting how many input bytes it consumed, rather than trusting
// /Length (which streams embedded without a following object boundary
// may lack or get wrong). /Rows missing or 0 means "decode until the
// decoder itself detects the end of the fax data" (AutoDetectHeight);
// /Columns must be known up front since CCITT rows have no explicit
// width marker.
func (s ccittSkipper) Skip(encoded io.Reader) (int64, error) {
	p := parseCCITTParams(s.params)
	if p.columns <= 0 {
		return 0, fmt.Errorf("filters: CCITTFax Columns must be > 0 to locate the stream's end")
	}
	height := xccitt.AutoDetectHeight
	if p.rows > 0 {
		height = p.rows
	}
	cr := &countReader{r: encoded}
	gray := image.NewGray(image.Rect(0, 0, p.columns, height))
	opts := &xccitt.Options{Align: p.byteAlign, Invert: p.blackIs1}
	if err := xccitt.DecodeIntoGray(gray, cr, xccitt.MSB, p.mode(), opts); err != nil {
		return 0, fmt.Errorf("filters: CCITTFax decode: %w", err)
	}
	return cr.totalRead, nil
}
