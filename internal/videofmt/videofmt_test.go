package videofmt

import (
	"testing"

	"github.com/e7canasta/movie-playback/internal/colormath"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCaps(t *testing.T) {
	caps := `video/x-raw, format=(string)P010_10LE, width=(int)3840, height=(int)2160, ` +
		`interlace-mode=(string)progressive, pixel-aspect-ratio=(fraction)1/1, ` +
		`colorimetry=(string)bt2100-pq, framerate=(fraction)30000/1001, ` +
		`mastering-display-info=(string)"35400:14600:8500:39850:6550:2300:15635:16450:10000000:50", ` +
		`content-light-level=(string)1000:400`

	info, err := ParseCaps(caps)
	require.NoError(t, err)

	assert.Equal(t, "video/x-raw", info.MediaType)
	assert.Equal(t, FormatP010_10LE, info.Format)
	assert.Equal(t, 3840, info.Width)
	assert.Equal(t, 2160, info.Height)
	assert.InDelta(t, 29.97, info.FPS(), 0.001)
	assert.Equal(t, 1.0, info.AspectRatio())
	assert.Equal(t, "bt2100-pq", info.Colorimetry)

	mode, ok := info.Field("interlace-mode")
	assert.True(t, ok)
	assert.Equal(t, "progressive", mode)

	md, err := ParseHDR(info)
	require.NoError(t, err)
	assert.True(t, md.Valid)
	assert.InDelta(t, 0.708, md.Primaries[0][0], 1e-9)
	assert.InDelta(t, 0.292, md.Primaries[0][1], 1e-9)
	assert.InDelta(t, 0.3127, md.White[0], 1e-9)
	assert.InDelta(t, 1000.0, md.MaxLuminance, 1e-9)
	assert.InDelta(t, 0.005, md.MinLuminance, 1e-9)
	assert.Equal(t, 1000.0, md.MaxContentLightLevel)
	assert.Equal(t, 400.0, md.MaxFrameAverageLightLevel)

	t.Logf("✅ P010 HDR caps parsed: %dx%d @ %.2f fps, max %.0f nits", info.Width, info.Height, info.FPS(), md.MaxLuminance)
}

func TestParseCaps_Errors(t *testing.T) {
	tests := []struct {
		name string
		caps string
	}{
		{"empty", ""},
		{"bad_width", "video/x-raw, width=(int)abc"},
		{"bad_framerate", "video/x-raw, framerate=(fraction)30/x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCaps(tt.caps)
			assert.Error(t, err)
		})
	}
}

func TestParseCaps_Defaults(t *testing.T) {
	info, err := ParseCaps("video/x-raw, format=(string)BGRA, width=(int)640, height=(int)480")
	require.NoError(t, err)
	assert.Equal(t, 0.0, info.FPS())
	assert.Equal(t, 1.0, info.AspectRatio())

	md, err := ParseHDR(info)
	require.NoError(t, err)
	assert.False(t, md.Valid)
}

func TestParseColorimetry(t *testing.T) {
	tests := []struct {
		in   string
		want Colorimetry
	}{
		{"bt709", Colorimetry{RangeLimited, MatrixBT709, TransferBT709, colormath.PrimariesBT709}},
		{"sRGB", Colorimetry{RangeFull, MatrixRGB, TransferSRGB, colormath.PrimariesBT709}},
		{"bt2100-hlg", Colorimetry{RangeLimited, MatrixBT2020, TransferARIBSTDB67, colormath.PrimariesBT2020}},
		{"2:6:14:7", Colorimetry{RangeLimited, MatrixBT2020, TransferSMPTE2084, colormath.PrimariesBT2020}},
		{"1:4:5:4", Colorimetry{RangeFull, MatrixBT601, TransferBT709, colormath.PrimariesSMPTE170M}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseColorimetry(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseColorimetry("nonsense")
	assert.Error(t, err)
	_, err = ParseColorimetry("1:2:x:4")
	assert.Error(t, err)

	assert.Equal(t, "bt2100-pq", Colorimetry{RangeLimited, MatrixBT2020, TransferSMPTE2084, colormath.PrimariesBT2020}.String())
	assert.Equal(t, "1:3:5:1", Colorimetry{RangeFull, MatrixBT709, TransferBT709, colormath.PrimariesBT709}.String())
}

func TestRangeOffsetsScale(t *testing.T) {
	off, scale := RangeLimited.OffsetsScale(8)
	assert.Equal(t, [3]int{16, 128, 128}, off)
	assert.Equal(t, [3]int{219, 224, 224}, scale)

	off, scale = RangeLimited.OffsetsScale(10)
	assert.Equal(t, [3]int{64, 512, 512}, off)
	assert.Equal(t, [3]int{876, 896, 896}, scale)

	off, scale = RangeFull.OffsetsScale(8)
	assert.Equal(t, [3]int{0, 128, 128}, off)
	assert.Equal(t, [3]int{255, 255, 255}, scale)

	off, _ = RangeUnknown.OffsetsScale(12)
	assert.Equal(t, [3]int{0, 2048, 2048}, off)
}

func TestLayouts(t *testing.T) {
	for _, f := range HDRFormats {
		l, ok := f.Layout()
		require.True(t, ok, "missing layout for %s", f)
		assert.True(t, l.Planar, "%s should be planar", f)
		assert.Contains(t, []float64{0.5, 1, 2}, l.YChromaScale)
		assert.Contains(t, []float64{1.5, 2, 3}, l.OverSize)
	}
	assert.Equal(t, 2, FormatP010_10LE.BytesPerComponent())
	assert.Equal(t, 1, FormatNV12.BytesPerComponent())
	assert.Equal(t, 0, FormatUnknown.Depth())
}

func TestStride(t *testing.T) {
	tests := []struct {
		format Format
		width  int
		want   int
	}{
		{FormatBGRA, 640, 2560},
		{FormatRGB, 642, 1928},
		{FormatGray8, 3, 4},
		{FormatGray16LE, 640, 1280},
		{FormatARGB64, 10, 80},
		{FormatI420, 641, 644},
		{FormatP010_10LE, 640, 1280},
		{FormatUnknown, 640, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.format.Stride(tt.width), "%s width %d", tt.format, tt.width)
	}
}
