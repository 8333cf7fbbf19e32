package videofmt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/e7canasta/movie-playback/internal/colormath"
)

// Range is the quantization range of samples (GstVideoColorRange).
type Range int

const (
	RangeUnknown Range = iota
	RangeFull          // 0_255
	RangeLimited       // 16_235
)

func (r Range) String() string {
	switch r {
	case RangeFull:
		return "0_255"
	case RangeLimited:
		return "16_235"
	default:
		return "unknown"
	}
}

// OffsetsScale returns the per-component offsets and scales of r at the given
// bit depth. Unknown range is treated as full range.
func (r Range) OffsetsScale(depth int) (offset, scale [3]int) {
	if r == RangeLimited {
		offset = [3]int{16 << (depth - 8), 128 << (depth - 8), 128 << (depth - 8)}
		scale = [3]int{219 << (depth - 8), 224 << (depth - 8), 224 << (depth - 8)}
		return offset, scale
	}
	half := 1 << (depth - 1)
	full := (1 << depth) - 1
	return [3]int{0, half, half}, [3]int{full, full, full}
}

// Matrix is the YUV to RGB conversion matrix (GstVideoColorMatrix).
type Matrix int

const (
	MatrixUnknown Matrix = iota
	MatrixRGB
	MatrixFCC
	MatrixBT709
	MatrixBT601
	MatrixSMPTE240M
	MatrixBT2020
)

func (m Matrix) String() string {
	switch m {
	case MatrixRGB:
		return "rgb"
	case MatrixFCC:
		return "fcc"
	case MatrixBT709:
		return "bt709"
	case MatrixBT601:
		return "bt601"
	case MatrixSMPTE240M:
		return "smpte240m"
	case MatrixBT2020:
		return "bt2020"
	default:
		return "unknown"
	}
}

// KrKb returns the luma coefficients of m. RGB and unknown matrices have none.
func (m Matrix) KrKb() (kr, kb float64, ok bool) {
	switch m {
	case MatrixFCC:
		return 0.30, 0.11, true
	case MatrixBT709:
		return 0.2126, 0.0722, true
	case MatrixBT601:
		return 0.299, 0.114, true
	case MatrixSMPTE240M:
		return 0.212, 0.087, true
	case MatrixBT2020:
		return 0.2627, 0.0593, true
	default:
		return 0, 0, false
	}
}

// Transfer identifies a transfer function (GstVideoTransferFunction).
type Transfer int

const (
	TransferUnknown Transfer = iota
	TransferGamma10
	TransferGamma18
	TransferGamma20
	TransferGamma22
	TransferBT709
	TransferSMPTE240M
	TransferSRGB
	TransferGamma28
	TransferLog100
	TransferLog316
	TransferBT2020_12
	TransferAdobeRGB
	TransferBT2020_10
	TransferSMPTE2084
	TransferARIBSTDB67
	TransferBT601
)

// TransferMax is the largest defined Transfer value.
const TransferMax = TransferBT601

var transferNames = [...]string{
	"unknown", "gamma10", "gamma18", "gamma20", "gamma22", "bt709", "smpte240m",
	"srgb", "gamma28", "log100", "log316", "bt2020-12", "adobergb", "bt2020-10",
	"smpte2084", "arib-std-b67", "bt601",
}

func (t Transfer) String() string {
	if t >= 0 && int(t) < len(transferNames) {
		return transferNames[t]
	}
	return fmt.Sprintf("transfer(%d)", int(t))
}

// IsHDR reports whether t is one of the HDR transfer functions (PQ, HLG).
func (t Transfer) IsHDR() bool {
	return t == TransferSMPTE2084 || t == TransferARIBSTDB67
}

// Colorimetry bundles range, matrix, transfer and primaries of a stream.
type Colorimetry struct {
	Range     Range
	Matrix    Matrix
	Transfer  Transfer
	Primaries colormath.Primaries
}

var namedColorimetry = map[string]Colorimetry{
	"bt601":      {RangeLimited, MatrixBT601, TransferBT601, colormath.PrimariesSMPTE170M},
	"bt709":      {RangeLimited, MatrixBT709, TransferBT709, colormath.PrimariesBT709},
	"smpte240m":  {RangeLimited, MatrixSMPTE240M, TransferSMPTE240M, colormath.PrimariesSMPTE240M},
	"sRGB":       {RangeFull, MatrixRGB, TransferSRGB, colormath.PrimariesBT709},
	"bt2020":     {RangeLimited, MatrixBT2020, TransferBT2020_12, colormath.PrimariesBT2020},
	"bt2020-10":  {RangeLimited, MatrixBT2020, TransferBT2020_10, colormath.PrimariesBT2020},
	"bt2100-pq":  {RangeLimited, MatrixBT2020, TransferSMPTE2084, colormath.PrimariesBT2020},
	"bt2100-hlg": {RangeLimited, MatrixBT2020, TransferARIBSTDB67, colormath.PrimariesBT2020},
}

// ParseColorimetry decodes a caps colorimetry string: either a well-known
// name ("bt709", "bt2100-pq", ...) or the numeric "range:matrix:transfer:primaries".
func ParseColorimetry(s string) (Colorimetry, error) {
	if c, ok := namedColorimetry[s]; ok {
		return c, nil
	}

	parts := strings.Split(s, ":")
	if len(parts) != 4 {
		return Colorimetry{}, fmt.Errorf("videofmt: unrecognized colorimetry %q", s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Colorimetry{}, fmt.Errorf("videofmt: colorimetry %q field %d: %w", s, i, err)
		}
		v[i] = n
	}
	return Colorimetry{
		Range:     Range(v[0]),
		Matrix:    Matrix(v[1]),
		Transfer:  Transfer(v[2]),
		Primaries: colormath.Primaries(v[3]),
	}, nil
}

// String returns the well-known name if c matches one, else the numeric form.
func (c Colorimetry) String() string {
	for name, known := range namedColorimetry {
		if known == c {
			return name
		}
	}
	return fmt.Sprintf("%d:%d:%d:%d", c.Range, c.Matrix, c.Transfer, c.Primaries)
}
