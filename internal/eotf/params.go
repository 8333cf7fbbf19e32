package eotf

import (
	"errors"
	"fmt"
	"math"

	"github.com/e7canasta/movie-playback/internal/colormath"
	"github.com/e7canasta/movie-playback/internal/videofmt"
)

var (
	// ErrUnsupportedFormat is returned for sample formats the planar program cannot sample.
	ErrUnsupportedFormat = errors.New("eotf: unsupported planar sample format")
	// ErrUnsupportedMatrix is returned when the stream has no YUV matrix (RGB or unknown).
	ErrUnsupportedMatrix = errors.New("eotf: unsupported color matrix")
	// ErrWindowGamut is returned when the configured window gamut is degenerate.
	ErrWindowGamut = errors.New("eotf: window color gamut is not invertible")
)

// Display describes the target window as far as color decode is concerned.
type Display struct {
	// Gamut is the window's color gamut. When unset, BT.2020 is assumed for
	// HDR windows and BT.709 otherwise.
	Gamut colormath.Gamut
	HDR   bool

	// NormalizedToHDRScale maps normalized HDR (1.0 = 10000 nits) to
	// framebuffer units. MaxSDRToHDRScale maps SDR white to framebuffer units.
	NormalizedToHDRScale float64
	MaxSDRToHDRScale     float64
}

// Input is everything needed to parameterize the program for one movie.
type Input struct {
	Format      videofmt.Format
	Colorimetry videofmt.Colorimetry
	Display     Display
}

// Params is the uniform table of the planar decode program.
type Params struct {
	SemiPlanar        bool
	YChromaScale      float64
	Transfer          videofmt.Transfer
	UnormInputScaling float64
	RangeScale        colormath.Vec3
	RangeOffset       colormath.Vec3
	Kr, Kb            float64
	CSC               colormath.Mat3
	OutUnitMultiplier float64

	// PrimariesFallback is set when the stream primaries were unknown and
	// BT.709 was assumed in their place.
	PrimariesFallback bool
	// WindowGamut is the gamut the CSC targets, after defaulting.
	WindowGamut colormath.Gamut
}

// Compute derives Params for in.
func Compute(in Input) (Params, error) {
	layout, ok := in.Format.Layout()
	if !ok || !layout.Planar {
		return Params{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, in.Format)
	}

	p := Params{
		SemiPlanar:   layout.SemiPlanar,
		YChromaScale: layout.YChromaScale,
		Transfer:     in.Colorimetry.Transfer,
	}

	depth := layout.Depth
	switch {
	case layout.SemiPlanar:
		// Semi-planar samples are MSB aligned in 16 bit words.
		p.UnormInputScaling = math.Exp2(float64(depth)) - 1
	case depth > 8:
		p.UnormInputScaling = 65535
	default:
		p.UnormInputScaling = 255
	}

	offset, scale := in.Colorimetry.Range.OffsetsScale(depth)
	for i := 0; i < 3; i++ {
		p.RangeOffset[i] = float64(offset[i])
		p.RangeScale[i] = 1 / float64(scale[i])
	}

	kr, kb, ok := in.Colorimetry.Matrix.KrKb()
	if !ok {
		return Params{}, fmt.Errorf("%w: %s", ErrUnsupportedMatrix, in.Colorimetry.Matrix)
	}
	p.Kr, p.Kb = kr, kb

	movie, ok := in.Colorimetry.Primaries.Gamut()
	if !ok {
		movie = colormath.BT709
		p.PrimariesFallback = true
	}

	window := in.Display.Gamut
	if !window.IsSet() {
		window = colormath.BT709
		if in.Display.HDR {
			window = colormath.BT2020
		}
	} else if _, err := window.ToXYZ(); err != nil {
		return Params{}, fmt.Errorf("%w: %v", ErrWindowGamut, err)
	}
	p.WindowGamut = window

	csc, err := colormath.ComposeCSC(movie, window)
	if err != nil {
		return Params{}, fmt.Errorf("eotf: movie to window csc: %w", err)
	}
	p.CSC = csc

	if p.Transfer.IsHDR() {
		p.OutUnitMultiplier = in.Display.NormalizedToHDRScale
	} else {
		p.OutUnitMultiplier = in.Display.MaxSDRToHDRScale
	}
	return p, nil
}

// Uniform is one named program input.
type Uniform struct {
	Name string
	// Value is float32, int32, [3]float32 or [9]float32 (column major mat3).
	Value any
}

// Uniforms returns the values to bind before drawing with the program.
func (p Params) Uniforms() []Uniform {
	semi := float32(0)
	if p.SemiPlanar {
		semi = 1
	}
	return []Uniform{
		{"Image", int32(0)},
		{"isSemiPlanar", semi},
		{"yChromaScale", float32(p.YChromaScale)},
		{"eotfType", int32(p.Transfer)},
		{"unormInputScaling", float32(p.UnormInputScaling)},
		{"rangeScale", vec3f(p.RangeScale)},
		{"rangeOffset", vec3f(p.RangeOffset)},
		{"Kr", float32(p.Kr)},
		{"Kb", float32(p.Kb)},
		{"M_CSC", p.CSC.Flatten()},
		{"outUnitMultiplier", float32(p.OutUnitMultiplier)},
	}
}

func vec3f(v colormath.Vec3) [3]float32 {
	return [3]float32{float32(v[0]), float32(v[1]), float32(v[2])}
}

// NaNColor is what the program emits when decode produced NaN.
var NaNColor = colormath.Vec3{1, 0, 0}

// DecodePixel runs the program's color math on the CPU. y, u and v are
// normalized texture reads in [0, 1]; row is the sampling row used by the
// unknown-transfer stripe pattern. The modulation color is not applied.
func DecodePixel(p Params, y, u, v, row float64) colormath.Vec3 {
	y = clamp((y*p.UnormInputScaling-p.RangeOffset[0])*p.RangeScale[0], 0, 1)
	u = clamp((u*p.UnormInputScaling-p.RangeOffset[1])*p.RangeScale[1], -0.5, 0.5)
	v = clamp((v*p.UnormInputScaling-p.RangeOffset[2])*p.RangeScale[2], -0.5, 0.5)

	kr, kb := p.Kr, p.Kb
	rgb := colormath.Vec3{
		y + 2*(1-kr)*v,
		y - 2*(1-kb)*kb/(1-kr-kb)*u - 2*(1-kr)*kr/(1-kr-kb)*v,
		y + 2*(1-kb)*u,
	}
	for i := range rgb {
		rgb[i] = clamp(rgb[i], 0, 1)
	}

	var lin colormath.Vec3
	if _, ok := Linearize(p.Transfer, 0); ok {
		for i := range rgb {
			lin[i], _ = Linearize(p.Transfer, rgb[i])
		}
	} else {
		lin = stripe(rgb, row)
	}

	out := p.CSC.MulVec(lin)
	if math.IsNaN(out[0]) || math.IsNaN(out[1]) || math.IsNaN(out[2]) {
		out = NaNColor
	}
	for i := range out {
		out[i] *= p.OutUnitMultiplier
	}
	return out
}

// stripe is the warning pattern for unknown transfer functions: every other
// band of 10 rows is flat gray.
func stripe(rgb colormath.Vec3, row float64) colormath.Vec3 {
	s := 0.0
	if math.Mod(row, 20) >= 10 {
		s = 1
	}
	rgb[0] = s
	for i := range rgb {
		rgb[i] = rgb[i]*(1-s) + 0.5*s
	}
	return rgb
}

func clamp(x, lo, hi float64) float64 {
	return math.Min(math.Max(x, lo), hi)
}
