package pipeline

import (
	"testing"

	"github.com/e7canasta/movie-playback/internal/videofmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNegotiateSink(t *testing.T) {
	full := CapUYVY | CapFBO | CapShaders | CapFPTex16
	none := GfxCaps(0)

	tests := []struct {
		name       string
		pf         PixelFormat
		special    SpecialFlags
		caps       GfxCaps
		wantFormat videofmt.Format
		wantPF     PixelFormat
		wantDepth  int
		degraded   bool
	}{
		{"l8", PixelLuminance, 0, none, videofmt.FormatGray8, PixelLuminance, 8, false},
		{"la8_served_as_l8", PixelLuminanceAlpha, 0, full, videofmt.FormatGray8, PixelLuminance, 8, true},
		{"rgb8_served_as_rgba8", PixelRGB, 0, full, videofmt.FormatBGRA, PixelRGBA, 8, false},
		{"rgba8", PixelRGBA, 0, none, videofmt.FormatBGRA, PixelRGBA, 8, false},
		{"uyvy", PixelYUV422, 0, full, videofmt.FormatUYVY, PixelYUV422, 8, false},
		{"uyvy_via_special_flag", PixelRGBA, SpecialForceYUV422, full, videofmt.FormatUYVY, PixelYUV422, 8, false},
		{"uyvy_unsupported", PixelYUV422, 0, CapFBO | CapShaders, videofmt.FormatBGRA, PixelRGBA, 8, true},
		{"i420", PixelI420, 0, full, videofmt.FormatI420, PixelI420, 8, false},
		{"i420_without_fbo", PixelI420, 0, CapShaders, videofmt.FormatBGRA, PixelRGBA, 8, true},
		{"y8", PixelY8, 0, full, videofmt.FormatI420, PixelY8, 8, false},
		{"y8_alias", PixelY8Alt, 0, full, videofmt.FormatI420, PixelY8Alt, 8, false},
		{"y8_without_shaders", PixelY8, 0, none, videofmt.FormatGray8, PixelLuminance, 8, true},
		{"l16", PixelLuminance16, 0, none, videofmt.FormatGray16LE, PixelLuminance, 16, false},
		{"rgba16", PixelRGBA16, 0, none, videofmt.FormatARGB64, PixelRGBA, 16, false},
		{"hdr", PixelHDR, 0, full, videofmt.FormatI420, PixelHDR, 8, false},
		{"hdr_without_shaders", PixelHDR, 0, CapUYVY, videofmt.FormatBGRA, PixelRGBA, 8, true},
		{"packed16_l", PixelLuminance, SpecialPacked16, none, videofmt.FormatRGB, PixelLuminance, 8, false},
		{"packed16_rgb", PixelRGB, SpecialPacked16, none, videofmt.FormatRGB, PixelRGB, 8, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := NegotiateSink(tt.pf, tt.special, tt.caps, false)
			require.NoError(t, err)
			require.NotEmpty(t, plan.Formats)
			assert.Equal(t, tt.wantFormat, plan.Formats[0])
			assert.Equal(t, tt.wantPF, plan.PixelFormat)
			assert.Equal(t, tt.wantDepth, plan.BitDepth)
			assert.Equal(t, tt.degraded, plan.Degraded)
			t.Logf("✅ %s -> %s (%s)", tt.pf, plan.Formats[0], plan.Reason)
		})
	}
}

func TestNegotiateSink_HDRAcceptsAllPlanarLayouts(t *testing.T) {
	plan, err := NegotiateSink(PixelHDR, 0, CapFBO|CapShaders, false)
	require.NoError(t, err)
	assert.Len(t, plan.Formats, len(videofmt.HDRFormats))
	assert.Contains(t, plan.Formats, videofmt.FormatP010_10LE)
	assert.Contains(t, plan.Formats, videofmt.FormatY444_16LE)
}

func TestNegotiateSink_InvalidSelector(t *testing.T) {
	_, err := NegotiateSink(PixelFormat(12), 0, 0, false)
	assert.ErrorIs(t, err, ErrInvalidPixelFormat)

	_, err = NegotiateSink(PixelFormat(0), 0, 0, false)
	assert.ErrorIs(t, err, ErrInvalidPixelFormat)

	plan, err := NegotiateSink(PixelFormat(12), 0, 0, true)
	require.NoError(t, err, "lenient negotiation falls back")
	assert.Equal(t, PixelRGBA, plan.PixelFormat)
}

// Every selector and capability combination must land on exactly one layout
// set that the selector's fallback chain allows.
func TestNegotiateSink_AllCombinations(t *testing.T) {
	allowed := map[PixelFormat][]videofmt.Format{
		PixelLuminance:      {videofmt.FormatGray8},
		PixelLuminanceAlpha: {videofmt.FormatGray8},
		PixelRGB:            {videofmt.FormatBGRA},
		PixelRGBA:           {videofmt.FormatBGRA},
		PixelYUV422:         {videofmt.FormatUYVY, videofmt.FormatBGRA},
		PixelI420:           {videofmt.FormatI420, videofmt.FormatBGRA},
		PixelY8:             {videofmt.FormatI420, videofmt.FormatGray8},
		PixelY8Alt:          {videofmt.FormatI420, videofmt.FormatGray8},
		PixelLuminance16:    {videofmt.FormatGray16LE},
		PixelRGBA16:         {videofmt.FormatARGB64},
		PixelHDR:            append([]videofmt.Format{videofmt.FormatBGRA}, videofmt.HDRFormats...),
	}

	for pf := PixelLuminance; pf <= PixelHDR; pf++ {
		for caps := GfxCaps(0); caps < CapFPTex32<<1; caps++ {
			plan, err := NegotiateSink(pf, 0, caps, false)
			require.NoError(t, err)
			require.NotEmpty(t, plan.Formats)
			for _, f := range plan.Formats {
				assert.Contains(t, allowed[pf], f, "pf=%s caps=%s", pf, caps)
			}
		}
	}
}

func TestParseGfxCaps(t *testing.T) {
	caps, err := ParseGfxCaps([]string{"uyvy", " FBO ", "shaders"})
	require.NoError(t, err)
	assert.True(t, caps.Has(CapUYVY|CapFBO|CapShaders))
	assert.False(t, caps.Has(CapFPTex16))
	assert.Equal(t, "uyvy|fbo|shaders", caps.String())

	_, err = ParseGfxCaps([]string{"holograms"})
	assert.Error(t, err)
}
