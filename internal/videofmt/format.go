// Package videofmt describes raw video sample layouts, colorimetry and the
// caps strings a decode pipeline reports for them.
package videofmt

// Format is a raw video sample layout, named as in GStreamer caps.
type Format string

const (
	FormatUnknown Format = ""

	// Packed layouts.
	FormatBGRA     Format = "BGRA"
	FormatRGB      Format = "RGB"
	FormatGray8    Format = "GRAY8"
	FormatGray16LE Format = "GRAY16_LE"
	FormatARGB64   Format = "ARGB64"
	FormatUYVY     Format = "UYVY"

	// Planar 4:2:0.
	FormatI420      Format = "I420"
	FormatI420_10LE Format = "I420_10LE"
	FormatI420_12LE Format = "I420_12LE"

	// Planar 4:2:2.
	FormatY42B      Format = "Y42B"
	FormatI422_10LE Format = "I422_10LE"
	FormatI422_12LE Format = "I422_12LE"

	// Planar 4:4:4.
	FormatY444      Format = "Y444"
	FormatY444_10LE Format = "Y444_10LE"
	FormatY444_12LE Format = "Y444_12LE"
	FormatY444_16LE Format = "Y444_16LE"

	// Semi-planar.
	FormatNV12      Format = "NV12"
	FormatP010_10LE Format = "P010_10LE"
	FormatP012_LE   Format = "P012_LE"
	FormatP016_LE   Format = "P016_LE"
	FormatNV16      Format = "NV16"
)

// Layout describes how samples of a Format are stored.
type Layout struct {
	// Depth is the number of significant bits per component.
	Depth int
	// Channels is the number of interleaved components for packed layouts,
	// and 1 for planar layouts (luma plane).
	Channels int
	// Planar is true for layouts that need shader-side YUV decode.
	Planar bool
	// SemiPlanar is true when chroma is stored as one interleaved UV plane.
	SemiPlanar bool
	// YChromaScale maps luma rows to chroma rows: 0.5 for 4:2:0, 1 for
	// 4:2:2, 2 for 4:4:4 (both chroma planes stacked at full height).
	YChromaScale float64
	// OverSize is the total plane height relative to the luma height.
	OverSize float64
}

var layouts = map[Format]Layout{
	FormatBGRA:     {Depth: 8, Channels: 4},
	FormatRGB:      {Depth: 8, Channels: 3},
	FormatGray8:    {Depth: 8, Channels: 1},
	FormatGray16LE: {Depth: 16, Channels: 1},
	FormatARGB64:   {Depth: 16, Channels: 4},
	FormatUYVY:     {Depth: 8, Channels: 2},

	FormatI420:      {Depth: 8, Channels: 1, Planar: true, YChromaScale: 0.5, OverSize: 1.5},
	FormatI420_10LE: {Depth: 10, Channels: 1, Planar: true, YChromaScale: 0.5, OverSize: 1.5},
	FormatI420_12LE: {Depth: 12, Channels: 1, Planar: true, YChromaScale: 0.5, OverSize: 1.5},

	FormatY42B:      {Depth: 8, Channels: 1, Planar: true, YChromaScale: 1, OverSize: 2},
	FormatI422_10LE: {Depth: 10, Channels: 1, Planar: true, YChromaScale: 1, OverSize: 2},
	FormatI422_12LE: {Depth: 12, Channels: 1, Planar: true, YChromaScale: 1, OverSize: 2},

	FormatY444:      {Depth: 8, Channels: 1, Planar: true, YChromaScale: 2, OverSize: 3},
	FormatY444_10LE: {Depth: 10, Channels: 1, Planar: true, YChromaScale: 2, OverSize: 3},
	FormatY444_12LE: {Depth: 12, Channels: 1, Planar: true, YChromaScale: 2, OverSize: 3},
	FormatY444_16LE: {Depth: 16, Channels: 1, Planar: true, YChromaScale: 2, OverSize: 3},

	FormatNV12:      {Depth: 8, Channels: 1, Planar: true, SemiPlanar: true, YChromaScale: 0.5, OverSize: 1.5},
	FormatP010_10LE: {Depth: 10, Channels: 1, Planar: true, SemiPlanar: true, YChromaScale: 0.5, OverSize: 1.5},
	FormatP012_LE:   {Depth: 12, Channels: 1, Planar: true, SemiPlanar: true, YChromaScale: 0.5, OverSize: 1.5},
	FormatP016_LE:   {Depth: 16, Channels: 1, Planar: true, SemiPlanar: true, YChromaScale: 0.5, OverSize: 1.5},
	FormatNV16:      {Depth: 8, Channels: 1, Planar: true, SemiPlanar: true, YChromaScale: 1, OverSize: 2},
}

// Layout returns the storage description of f.
func (f Format) Layout() (Layout, bool) {
	l, ok := layouts[f]
	return l, ok
}

// Depth returns bits per component, or 0 for unknown formats.
func (f Format) Depth() int {
	return layouts[f].Depth
}

// BytesPerComponent is 1 for 8-bit formats and 2 for anything deeper.
func (f Format) BytesPerComponent() int {
	if f.Depth() > 8 {
		return 2
	}
	return 1
}

// Stride returns the row stride in bytes of the first plane for a frame of
// the given width, rounded up to 4 bytes like the decoders lay it out.
func (f Format) Stride(width int) int {
	l, ok := layouts[f]
	if !ok || width <= 0 {
		return 0
	}
	row := width * l.Channels * f.BytesPerComponent()
	return (row + 3) &^ 3
}

func (f Format) String() string {
	if f == FormatUnknown {
		return "unknown"
	}
	return string(f)
}

// HDRFormats is the sink format list offered for HDR/WCG shader decode, in
// order of preference.
var HDRFormats = []Format{
	FormatI420, FormatI420_10LE, FormatI420_12LE,
	FormatY42B, FormatI422_10LE, FormatI422_12LE,
	FormatY444, FormatY444_10LE, FormatY444_12LE, FormatY444_16LE,
	FormatNV12, FormatP010_10LE, FormatP012_LE, FormatP016_LE,
	FormatNV16,
}
