package filters

import (
	"bytes"
	"fmt"
	"io"

	"github.com/msonnier/pdfcore/model"
)

// predictorParams is the decoded /DecodeParms relevant to Flate/LZW's
// optional predictor post-processing (PDF 7.4.4.4).
type predictorParams struct {
	predictor int
	colors    int
	bpc       int
	columns   int
}

func parsePredictorParams(d *model.Dict) (predictorParams, error) {
	p := predictorParams{predictor: 1, colors: 1, bpc: 8, columns: 1}
	if d == nil {
		return p, nil
	}
	if v, ok := d.Get("Predictor"); ok {
		p.predictor = int(v.AsInt())
	}
	switch p.predictor {
	case 1, 2, 10, 11, 12, 13, 14, 15:
	default:
		return p, fmt.Errorf("filters: invalid /Predictor %d", p.predictor)
	}
	if v, ok := d.Get("Colors"); ok {
		p.colors = int(v.AsInt())
		if p.colors == 0 {
			return p, fmt.Errorf("filters: /Colors must not be 0")
		}
	}
	if v, ok := d.Get("BitsPerComponent"); ok {
		p.bpc = int(v.AsInt())
		switch p.bpc {
		case 1, 2, 4, 8, 16:
		default:
			return p, fmt.Errorf("filters: invalid /BitsPerComponent %d", p.bpc)
		}
	}
	if v, ok := d.Get("Columns"); ok {
		p.columns = int(v.AsInt())
	}
	return p, nil
}

func (p predictorParams) rowSize() int {
	return (p.bpc*p.colors*p.columns + 7) / 8
}

// applyPredictor reverses the PNG (predictor 10-15, tag byte per row
// selecting the actual filter 0-4) or TIFF (predictor 2) prediction applied
// before compression. A predictor of 0 or 1 means "no prediction" and is a
// no-op.
func applyPredictor(r io.Reader, p predictorParams) (io.Reader, error) {
	if p.predictor == 0 || p.predictor == 1 {
		return r, nil
	}
	rowSize := p.rowSize()
	tagged := rowSize
	if p.predictor != 2 {
		tagged++ // PNG rows carry one leading filter-type byte
	}
	bpp := (p.bpc*p.colors + 7) / 8

	var out bytes.Buffer
	prev := make([]byte, rowSize)
	cur := make([]byte, tagged)
	for {
		n, err := io.ReadFull(r, cur)
		if err == io.EOF {
			break
		}
		if err == io.ErrUnexpectedEOF {
			if n == 0 {
				break
			}
			return nil, fmt.Errorf("filters: truncated predictor row (%d of %d bytes)", n, tagged)
		}
		if err != nil {
			return nil, err
		}

		var row []byte
		if p.predictor == 2 {
			row = append([]byte(nil), cur...)
			applyTIFFHorizontal(row, p.colors, p.bpc)
		} else {
			ftype := cur[0]
			row = append([]byte(nil), cur[1:]...)
			if err := applyPNGFilter(ftype, row, prev, bpp); err != nil {
				return nil, err
			}
		}
		out.Write(row)
		prev = row
	}
	return &out, nil
}

// applyTIFFHorizontal undoes horizontal differencing in place. Only correct
// for 8-bit samples, matching the teacher's applyHorDiff (same limitation).
func applyTIFFHorizontal(row []byte, colors, bpc int) {
	if bpc != 8 {
		return
	}
	cols := len(row) / colors
	for i := 1; i < cols; i++ {
		for j := 0; j < colors; j++ {
			idx := i*colors + j
			row[idx] += row[idx-colors]
		}
	}
}

func applyPNGFilter(ftype byte, cur, prev []byte, bpp int) error {
	switch ftype {
	case 0: // None
	case 1: // Sub
		for i := range cur {
			if i >= bpp {
				cur[i] += cur[i-bpp]
			}
		}
	case 2: // Up
		for i := range cur {
			cur[i] += prev[i]
		}
	case 3: // Average
		for i := range cur {
			var left byte
			if i >= bpp {
				left = cur[i-bpp]
			}
			cur[i] += byte((int(left) + int(prev[i])) / 2)
		}
	case 4: // Paeth
		for i := range cur {
			var a, c byte
			if i >= bpp {
				a = cur[i-bpp]
				c = prev[i-bpp]
			}
			b := prev[i]
			cur[i] += paeth(a, b, c)
		}
	default:
		return fmt.Errorf("filters: invalid PNG predictor row filter type %d", ftype)
	}
	return nil
}

func paeth(a, b, c byte) byte {
	pa := abs32(int32(b) - int32(c))
	pb := abs32(int32(a) - int32(c))
	pc := abs32(int32(a) + int32(b) - 2*int32(c))
	if pa <= pb && pa <= pc {
		return a
	}
	if pb <= pc {
		return b
	}
	return c
}

func abs32(x int32) int32 {
	m := x >> 31
	return (x ^ m) - m
}
