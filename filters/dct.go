package filters

import (
	"errors"
	"io"
)

// dctSkipper: DCT (baseline JPEG) streams have no cheap EOD-based length
// detection without a real JPEG decode, which is out of this core's scope
// (spec Non-goals: rendering to pixels); unlike ccittSkipper, no decode is
// run. Skip always returns an error, so callers fall back to /Length.
type dctSkipper struct{}

func (dctSkipper) Skip(encoded io.Reader) (int64, error) {
	return 0, errors.New("filters: DCTDecode streams have no EOD-based length detection")
}
