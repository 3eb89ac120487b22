package filters

import (
	"bytes"
	"fmt"
	"io"

	"github.com/msonnier/pdfcore/model"
)

// RunLengthDecode, PDF 7.4.5: a length byte 0-127 means "copy the next
// length+1 literal bytes"; 129-255 means "repeat the next single byte
// 257-length times"; 128 is EOD.
type runLengthDecoder struct{}

func (runLengthDecoder) Decode(src io.Reader, _ *model.Dict) (io.Reader, error) {
	raw, err := io.ReadAll(src)
	if err != nil {
		return nil, err
	}
	out, _, err := runLengthDecodeBytes(raw)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(out), nil
}

// runLengthDecodeBytes returns the decoded bytes and the number of input
// bytes consumed up to and including the EOD marker (or end of input if no
// EOD was present).
func runLengthDecodeBytes(raw []byte) ([]byte, int64, error) {
	var out bytes.Buffer
	i := 0
	for i < len(raw) {
		length := raw[i]
		i++
		switch {
		case length == 128:
			return out.Bytes(), int64(i), nil
		case length < 128:
			n := int(length) + 1
			if i+n > len(raw) {
				return nil, 0, fmt.Errorf("runlength: truncated literal run")
			}
			out.Write(raw[i : i+n])
			i += n
		default:
			if i >= len(raw) {
				return nil, 0, fmt.Errorf("runlength: truncated repeat run")
			}
			b := raw[i]
			i++
			for c := 0; c < 257-int(length); c++ {
				out.WriteByte(b)
			}
		}
	}
	return out.Bytes(), int64(i), nil
}

func runLengthEncode(data []byte, _ *model.Dict) ([]byte, error) {
	var out bytes.Buffer
	i := 0
	for i < len(data) {
		// Find a run of identical bytes.
		j := i + 1
		for j < len(data) && j-i < 128 && data[j] == data[i] {
			j++
		}
		if j-i >= 2 {
			out.WriteByte(byte(257 - (j - i)))
			out.WriteByte(data[i])
			i = j
			continue
		}
		// Collect a literal run until the next repeat run of length>=2.
		start := i
		i++
		for i < len(data) && i-start < 128 {
			if i+1 < len(data) && data[i] == data[i+1] {
				break
			}
			i++
		}
		out.WriteByte(byte(i - start - 1))
		out.Write(data[start:i])
	}
	out.WriteByte(128)
	return out.Bytes(), nil
}

type runLengthSkipper struct{}

func (runLengthSkipper) Skip(encoded io.Reader) (int64, error) {
	raw, err := io.ReadAll(encoded)
	if err != nil {
		return 0, err
	}
	_, n, err := runLengthDecodeBytes(raw)
	return n, err
}
