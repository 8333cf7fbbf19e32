// Package eotf models the decode of planar YUV movie frames to linear light:
// the electro-optical transfer functions, the uniform table that drives the
// GPU program, the GLSL sources themselves and a CPU reference of the same
// math used by tests and diagnostics.
package eotf

import (
	"math"

	"github.com/e7canasta/movie-playback/internal/videofmt"
)

// PQ (SMPTE ST-2084) constants.
const (
	pqC1 = 0.8359375
	pqC2 = 18.8515625
	pqC3 = 18.6875
	pqM  = 1.0 / 78.84375
	pqN  = 1.0 / 0.1593017578125
)

// HLG (ARIB STD-B67) constants.
const (
	hlgA = 0.17883277
	hlgB = 0.28466892
	hlgC = 0.55991073

	// hlgScale maps HLG's 1000 nit peak to 0.1, so 1.0 means 10000 nits as for PQ.
	hlgScale = 0.1
)

// Linearize maps one non-linear component in [0, 1] to linear light.
// ok is false for transfer functions without a closed form (unknown).
func Linearize(t videofmt.Transfer, x float64) (l float64, ok bool) {
	switch t {
	case videofmt.TransferGamma10:
		return x, true
	case videofmt.TransferGamma18:
		return math.Pow(x, 1.8), true
	case videofmt.TransferGamma20:
		return math.Pow(x, 2.0), true
	case videofmt.TransferGamma22:
		return math.Pow(x, 2.2), true
	case videofmt.TransferGamma28:
		return math.Pow(x, 2.8), true
	case videofmt.TransferAdobeRGB:
		return math.Pow(x, 2.19921875), true

	case videofmt.TransferBT709, videofmt.TransferBT601, videofmt.TransferBT2020_10:
		if x < 0.081 {
			return x / 4.5, true
		}
		return math.Pow((x+0.099)/1.099, 1/0.45), true

	case videofmt.TransferBT2020_12:
		if x < 0.08145 {
			return x / 4.5, true
		}
		return math.Pow((x+0.0993)/1.0993, 1/0.45), true

	case videofmt.TransferSMPTE240M:
		if x < 0.0913 {
			return x / 4, true
		}
		return math.Pow((x+0.1115)/1.1115, 1/0.45), true

	case videofmt.TransferSRGB:
		if x <= 0.04045 {
			return x / 12.92, true
		}
		return math.Pow((x+0.055)/1.055, 2.4), true

	case videofmt.TransferLog100:
		if x <= 0 {
			return 0, true
		}
		return math.Pow(10, 2*(x-1)), true

	case videofmt.TransferLog316:
		if x <= 0 {
			return 0, true
		}
		return math.Pow(10, 2.5*(x-1)), true

	case videofmt.TransferSMPTE2084:
		p := math.Pow(x, pqM)
		return math.Pow(math.Max(p-pqC1, 0)/(pqC2-pqC3*p), pqN), true

	case videofmt.TransferARIBSTDB67:
		if x <= 0.5 {
			return x * x / 3 * hlgScale, true
		}
		return (math.Exp((x-hlgC)/hlgA) + hlgB) / 12 * hlgScale, true
	}
	return 0, false
}
