package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/e7canasta/movie-playback/internal/videofmt"
)

// GfxCaps are the optional texture capabilities of the target display.
type GfxCaps uint32

const (
	CapUYVY       GfxCaps = 1 << iota // packed UYVY textures
	CapAppleYCbCr                     // UYVY through the Apple YCbCr extension
	CapFBO                            // framebuffer objects, needed by shader decode
	CapShaders                        // fragment/vertex shader support
	CapFPTex16                        // 16 bit float textures
	CapFPTex32                        // 32 bit float textures
)

// Has reports whether all bits of c are set.
func (g GfxCaps) Has(c GfxCaps) bool {
	return g&c == c
}

var capNames = []struct {
	cap  GfxCaps
	name string
}{
	{CapUYVY, "uyvy"},
	{CapAppleYCbCr, "apple-ycbcr"},
	{CapFBO, "fbo"},
	{CapShaders, "shaders"},
	{CapFPTex16, "fp16"},
	{CapFPTex32, "fp32"},
}

// ParseGfxCaps turns capability names into a GfxCaps set.
func ParseGfxCaps(names []string) (GfxCaps, error) {
	var caps GfxCaps
	for _, n := range names {
		found := false
		for _, c := range capNames {
			if strings.EqualFold(strings.TrimSpace(n), c.name) {
				caps |= c.cap
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("pipeline: unknown gfx capability %q", n)
		}
	}
	return caps, nil
}

func (g GfxCaps) String() string {
	var parts []string
	for _, c := range capNames {
		if g.Has(c.cap) {
			parts = append(parts, c.name)
		}
	}
	return strings.Join(parts, "|")
}

// ErrInvalidPixelFormat is returned for selector codes outside 1..11.
var ErrInvalidPixelFormat = errors.New("pipeline: invalid pixel format")

// SinkPlan is the outcome of sink format negotiation.
type SinkPlan struct {
	// Formats is the set of layouts the sink accepts, in preference order.
	Formats []videofmt.Format
	// PixelFormat is the effective selector after capability fallback.
	PixelFormat PixelFormat
	// BitDepth is the bits per component of the decoded frames.
	BitDepth int
	// Degraded is set when the requested format fell back to a plainer one.
	Degraded bool
	// Reason describes the choice for diagnostics.
	Reason string
}

// NegotiateSink picks the sink layouts for a requested pixel format given the
// display capabilities.
//
// Shader decoded formats (5, 6, 7/8, 11) are used when the capabilities
// allow; otherwise the request falls back: 2, 7, 8 to L8, and 5, 6, 11 to
// RGBA8. With lenient set an invalid selector also falls back to RGBA8
// instead of failing.
func NegotiateSink(pf PixelFormat, special SpecialFlags, caps GfxCaps, lenient bool) (SinkPlan, error) {
	if special.Has(SpecialForceYUV422) {
		pf = PixelYUV422
	}
	requested := pf
	shaders := caps.Has(CapFBO | CapShaders)

	switch {
	case pf == PixelYUV422 && caps.Has(CapUYVY):
		return SinkPlan{
			Formats:     []videofmt.Format{videofmt.FormatUYVY},
			PixelFormat: PixelYUV422,
			BitDepth:    8,
			Reason:      "UYVY YCrCb 4:2:2 textures",
		}, nil

	case pf == PixelI420 && shaders:
		return SinkPlan{
			Formats:     []videofmt.Format{videofmt.FormatI420},
			PixelFormat: PixelI420,
			BitDepth:    8,
			Reason:      "YUV-I420 planar textures",
		}, nil

	case (pf == PixelY8 || pf == PixelY8Alt) && shaders:
		return SinkPlan{
			Formats:     []videofmt.Format{videofmt.FormatI420},
			PixelFormat: pf,
			BitDepth:    8,
			Reason:      "Y8 planar textures",
		}, nil

	case pf == PixelHDR && shaders:
		formats := make([]videofmt.Format, len(videofmt.HDRFormats))
		copy(formats, videofmt.HDRFormats)
		return SinkPlan{
			Formats:     formats,
			PixelFormat: PixelHDR,
			BitDepth:    8,
			Reason:      "(semi-)planar YUV 8-16 bpc for HDR/WCG decode",
		}, nil
	}

	plan := SinkPlan{BitDepth: 8}

	switch pf {
	case PixelLuminance, PixelRGB, PixelRGBA, PixelLuminance16, PixelRGBA16:
	case PixelLuminanceAlpha, PixelY8, PixelY8Alt:
		pf = PixelLuminance
	case PixelYUV422, PixelI420, PixelHDR:
		pf = PixelRGBA
	default:
		if !lenient {
			return SinkPlan{}, fmt.Errorf("%w: %d", ErrInvalidPixelFormat, int(pf))
		}
		pf = PixelRGBA
	}

	packed16 := special.Has(SpecialPacked16)
	if pf == PixelRGB && !packed16 {
		pf = PixelRGBA
	}

	switch {
	case packed16 && (requested == PixelLuminance || requested == PixelRGB):
		plan.Formats = []videofmt.Format{videofmt.FormatRGB}
		plan.PixelFormat = requested
		plan.Reason = "RGB8 carrying 16 bpc packed data"
	case pf == PixelRGBA:
		plan.Formats = []videofmt.Format{videofmt.FormatBGRA}
		plan.PixelFormat = PixelRGBA
		plan.Reason = "RGBA8 textures"
	case pf == PixelLuminance:
		plan.Formats = []videofmt.Format{videofmt.FormatGray8}
		plan.PixelFormat = PixelLuminance
		plan.Reason = "L8 luminance textures"
	case pf == PixelLuminance16:
		plan.Formats = []videofmt.Format{videofmt.FormatGray16LE}
		plan.PixelFormat = PixelLuminance
		plan.BitDepth = 16
		plan.Reason = "16 bpc content in luminance float textures"
	case pf == PixelRGBA16:
		plan.Formats = []videofmt.Format{videofmt.FormatARGB64}
		plan.PixelFormat = PixelRGBA
		plan.BitDepth = 16
		plan.Reason = "16 bpc content in RGBA float textures"
	}

	plan.Degraded = requested != plan.PixelFormat &&
		requested != PixelLuminance16 && requested != PixelRGBA16 &&
		requested != PixelRGB
	if plan.Degraded {
		plan.Reason = fmt.Sprintf("%s, %s not supported by display", plan.Reason, requested)
	}
	return plan, nil
}
