package movieplayback

import (
	"bytes"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/e7canasta/movie-playback/internal/eotf"
	"github.com/e7canasta/movie-playback/internal/pipeline"
	"github.com/e7canasta/movie-playback/internal/pipeline/pipelinetest"
	"github.com/e7canasta/movie-playback/internal/videofmt"
)

// stubSample is a mapped buffer with fixed contents.
type stubSample struct {
	caps   string
	stride int
	data   []byte
}

func (s *stubSample) PTS() (time.Duration, bool)      { return 0, true }
func (s *stubSample) Duration() (time.Duration, bool) { return 0, false }
func (s *stubSample) Offset() uint64                  { return 0 }
func (s *stubSample) Caps() string                    { return s.caps }
func (s *stubSample) Stride() int                     { return s.stride }
func (s *stubSample) Map() ([]byte, error)            { return s.data, nil }
func (s *stubSample) Release()                        {}

// fakeRenderer hands out program ids and records deletions.
type fakeRenderer struct {
	mu       sync.Mutex
	compiled []*ShaderProgram
	programs []uint32
	textures []uint32
}

func (r *fakeRenderer) CompileProgram(p *ShaderProgram) (uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.compiled = append(r.compiled, p)
	return uint32(len(r.compiled)), nil
}

func (r *fakeRenderer) DeleteProgram(id uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.programs = append(r.programs, id)
}

func (r *fakeRenderer) DeleteTexture(id uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.textures = append(r.textures, id)
}

func textureEngine(caps pipeline.GfxCaps, hdr bool) *Engine {
	return &Engine{
		caps:    caps,
		display: eotf.Display{HDR: hdr, NormalizedToHDRScale: 1, MaxSDRToHDRScale: 1},
		profile: eotf.ProfileGLSL130,
		logger:  quietLogger(),
	}
}

func textureMovie(pf PixelFormat, format videofmt.Format, width, height, depth int) *movie {
	return &movie{
		pixelFormat: pf,
		sinkFormat:  format,
		width:       width,
		height:      height,
		bitDepth:    depth,
		logger:      quietLogger(),
	}
}

func sampleFor(format videofmt.Format, width, height int, fill byte) *stubSample {
	stride := format.Stride(width)
	size := stride * height
	if l, ok := format.Layout(); ok && l.Planar {
		size = int(float64(size) * l.OverSize)
	}
	return &stubSample{
		caps:   fmt.Sprintf("video/x-raw, format=(string)%s, width=(int)%d, height=(int)%d", format, width, height),
		stride: stride,
		data:   bytes.Repeat([]byte{fill}, size),
	}
}

func TestDescribe_PackedLayouts(t *testing.T) {
	tests := []struct {
		name      string
		pf        PixelFormat
		format    videofmt.Format
		caps      pipeline.GfxCaps
		width     int
		internal  string
		external  string
		typ       string
		channels  int
		depth     int
		alignment int
	}{
		{"rgba even", PixelRGBA, videofmt.FormatBGRA, 0, 64, "RGBA8", "BGRA", "UNSIGNED_INT_8_8_8_8_REV", 4, 32, 8},
		{"rgba odd", PixelRGBA, videofmt.FormatBGRA, 0, 63, "RGBA8", "BGRA", "UNSIGNED_INT_8_8_8_8_REV", 4, 32, 4},
		{"rgba not multiple of 4", PixelRGBA, videofmt.FormatBGRA, 0, 66, "RGBA8", "BGRA", "UNSIGNED_INT_8_8_8_8_REV", 4, 32, 8},
		{"luminance", PixelLuminance, videofmt.FormatGray8, 0, 63, "L8", "LUMINANCE", "UNSIGNED_BYTE", 1, 8, 1},
		{"packed rgb", PixelRGB, videofmt.FormatRGB, 0, 64, "RGB8", "RGB", "UNSIGNED_BYTE", 3, 24, 1},
		{"uyvy mesa", PixelYUV422, videofmt.FormatUYVY, pipeline.CapUYVY, 64, "YCBCR_MESA", "YCBCR_MESA", "UNSIGNED_SHORT_8_8", 3, 24, 8},
		{"uyvy mesa odd", PixelYUV422, videofmt.FormatUYVY, pipeline.CapUYVY, 63, "YCBCR_MESA", "YCBCR_MESA", "UNSIGNED_SHORT_8_8", 3, 24, 1},
		{"uyvy mesa width 66", PixelYUV422, videofmt.FormatUYVY, pipeline.CapUYVY, 66, "YCBCR_MESA", "YCBCR_MESA", "UNSIGNED_SHORT_8_8", 3, 24, 4},
		{"uyvy apple", PixelYUV422, videofmt.FormatUYVY, pipeline.CapUYVY | pipeline.CapAppleYCbCr, 64, "RGB8", "YCBCR_422_APPLE", "UNSIGNED_SHORT_8_8", 3, 24, 8},
		{"y8 width 64", PixelY8, videofmt.FormatI420, 0, 64, "L8", "LUMINANCE", "UNSIGNED_BYTE", 1, 8, 8},
		{"y8 width 66", PixelY8Alt, videofmt.FormatI420, 0, 66, "L8", "LUMINANCE", "UNSIGNED_BYTE", 1, 8, 2},
		{"y8 width 63", PixelY8, videofmt.FormatI420, 0, 63, "L8", "LUMINANCE", "UNSIGNED_BYTE", 1, 8, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := textureEngine(tt.caps, false)
			m := textureMovie(tt.pf, tt.format, tt.width, 48, 8)
			s := sampleFor(tt.format, tt.width, 48, 1)

			td, err := e.describe(m, s, s.data)
			require.NoError(t, err)
			assert.Equal(t, tt.internal, td.InternalFormat)
			assert.Equal(t, tt.external, td.ExternalFormat)
			assert.Equal(t, tt.typ, td.ExternalType)
			assert.Equal(t, tt.channels, td.Channels)
			assert.Equal(t, tt.depth, td.Depth)
			assert.Equal(t, tt.alignment, td.ByteAligned)
			assert.Equal(t, OrientationUpsideDown, td.Orientation)
			assert.Equal(t, 48, td.UploadHeight)
		})
	}
}

func TestDescribe_I420(t *testing.T) {
	e := textureEngine(pipeline.CapFBO|pipeline.CapShaders, false)
	m := textureMovie(PixelI420, videofmt.FormatI420, 64, 48, 8)
	s := sampleFor(videofmt.FormatI420, 64, 48, 0)

	td, err := e.describe(m, s, s.data)
	require.NoError(t, err)
	assert.Equal(t, PlanarI420, td.Planar)
	assert.Equal(t, 72, td.UploadHeight, "chroma planes stacked below luma")
	assert.Equal(t, 64, td.StridePixels)
	assert.Equal(t, 1, td.ByteAligned)
	assert.Equal(t, 24, td.Depth)
	assert.Equal(t, 3, td.Channels)

	e.maxTexture = 70
	_, err = e.describe(m, s, s.data)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestDescribe_HighDepth(t *testing.T) {
	tests := []struct {
		name     string
		pf       PixelFormat
		format   videofmt.Format
		depth    int
		caps     pipeline.GfxCaps
		internal string
		texDepth int
		scale    int
		align    int
	}{
		{"16 bit luminance float", PixelLuminance, videofmt.FormatGray16LE, 16, pipeline.CapFPTex16, "LUMINANCE_FLOAT32", 32, 1, 8},
		{"10 bit luminance float", PixelLuminance, videofmt.FormatGray16LE, 10, pipeline.CapFPTex16, "LUMINANCE_FLOAT16", 16, 64, 8},
		{"16 bit luminance snorm", PixelLuminance, videofmt.FormatGray16LE, 16, 0, "LUMINANCE16_SNORM", 32, 1, 8},
		{"16 bit rgb", PixelRGB, videofmt.FormatRGB, 16, pipeline.CapFPTex16, "RGB_FLOAT32", 96, 1, 8},
		{"12 bit rgba", PixelRGBA, videofmt.FormatARGB64, 12, pipeline.CapFPTex16, "RGBA_FLOAT32", 128, 16, 8},
		{"16 bit rgba snorm", PixelRGBA, videofmt.FormatARGB64, 16, 0, "RGBA16_SNORM", 128, 1, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := textureEngine(tt.caps, false)
			m := textureMovie(tt.pf, tt.format, 64, 48, tt.depth)
			s := sampleFor(tt.format, 64, 48, 0)

			td, err := e.describe(m, s, s.data)
			require.NoError(t, err)
			assert.Equal(t, tt.internal, td.InternalFormat)
			assert.Equal(t, "UNSIGNED_SHORT", td.ExternalType)
			assert.Equal(t, tt.texDepth, td.Depth)
			assert.Equal(t, tt.scale, td.ComponentScale)
			assert.Equal(t, tt.align, td.ByteAligned)
		})
	}
}

func TestDescribe_SwizzlesARGB64(t *testing.T) {
	e := textureEngine(pipeline.CapFPTex16, false)
	m := textureMovie(PixelRGBA, videofmt.FormatARGB64, 2, 1, 16)

	in := []byte{
		0xA0, 0xA1, 0xB0, 0xB1, 0xC0, 0xC1, 0xD0, 0xD1, // A R G B
		0x10, 0x11, 0x20, 0x21, 0x30, 0x31, 0x40, 0x41,
	}
	s := &stubSample{caps: "video/x-raw, format=(string)ARGB64, width=(int)2, height=(int)1", stride: 16, data: in}

	td, err := e.describe(m, s, s.data)
	require.NoError(t, err)
	assert.Equal(t, []byte{
		0xB0, 0xB1, 0xC0, 0xC1, 0xD0, 0xD1, 0xA0, 0xA1, // R G B A
		0x20, 0x21, 0x30, 0x31, 0x40, 0x41, 0x10, 0x11,
	}, td.Data)
	assert.Equal(t, byte(0xA0), in[0], "the mapped buffer is left untouched")
	t.Logf("✅ ARGB64 swizzled into RGBA order")
}

func TestDescribe_Bayer(t *testing.T) {
	e := textureEngine(0, false)
	m := textureMovie(PixelLuminance, videofmt.FormatGray8, 64, 48, 8)
	m.special = SpecialBayer
	s := sampleFor(videofmt.FormatGray8, 64, 48, 7)

	td, err := e.describe(m, s, s.data)
	require.NoError(t, err)
	assert.Equal(t, 3, td.Channels)
	assert.Equal(t, 24, td.Depth)
	assert.Equal(t, "RGB8", td.InternalFormat)
	assert.Equal(t, 1, td.ByteAligned)
	require.Len(t, td.Data, 64*48*3)
	assert.Equal(t, bytes.Repeat([]byte{7}, 64*48*3), td.Data)

	// A short buffer is reported, not indexed past.
	_, err = e.describe(m, s, s.data[:100])
	assert.Error(t, err)
}

func TestDescribe_SizeFromCaps(t *testing.T) {
	e := textureEngine(0, false)
	m := textureMovie(PixelRGBA, videofmt.FormatBGRA, 0, 0, 8)
	m.special = SpecialNormalizeOrientation
	s := sampleFor(videofmt.FormatBGRA, 32, 16, 0)
	s.stride = 0

	td, err := e.describe(m, s, s.data)
	require.NoError(t, err)
	assert.Equal(t, 32, td.Width)
	assert.Equal(t, 16, td.Height)
	assert.True(t, td.Normalize)
	assert.Equal(t, 32, m.width, "size is remembered")
}

func TestDescribe_PlanarHDR(t *testing.T) {
	pq, err := videofmt.ParseColorimetry("bt2100-pq")
	require.NoError(t, err)

	tests := []struct {
		name     string
		format   videofmt.Format
		display  bool
		internal string
		depth    int
		align    int
		stride   int
		upload   int
	}{
		{"p010", videofmt.FormatP010_10LE, false, "L16", 48, 2, 64, 72},
		{"i420 10 bit", videofmt.FormatI420_10LE, false, "L16", 48, 2, 64, 72},
		{"y444 8 bit sdr display", videofmt.FormatY444, false, "L8", 24, 1, 64, 144},
		{"i420 8 bit hdr display", videofmt.FormatI420, true, "L8", 48, 1, 64, 72},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &fakeRenderer{}
			e := textureEngine(pipeline.CapFBO|pipeline.CapShaders, tt.display)
			e.renderer = r
			m := textureMovie(PixelHDR, tt.format, 64, 48, tt.format.Depth())
			m.colorimetry = pq
			s := sampleFor(tt.format, 64, 48, 0)

			td, err := e.describe(m, s, s.data)
			require.NoError(t, err)
			assert.Equal(t, PlanarHDR, td.Planar)
			assert.Equal(t, tt.internal, td.InternalFormat)
			assert.Equal(t, "LUMINANCE", td.ExternalFormat)
			assert.Equal(t, tt.depth, td.Depth)
			assert.Equal(t, tt.align, td.ByteAligned)
			assert.Equal(t, tt.stride, td.StridePixels)
			assert.Equal(t, tt.upload, td.UploadHeight)
			assert.Equal(t, 3, td.Channels)
			require.NotNil(t, td.Program)
			assert.Equal(t, uint32(1), td.ProgramID)

			_, err = e.describe(m, s, s.data)
			require.NoError(t, err)
			assert.Len(t, r.compiled, 1, "the program is built once per movie")
		})
	}

	t.Run("packed sink format", func(t *testing.T) {
		e := textureEngine(pipeline.CapFBO|pipeline.CapShaders, false)
		m := textureMovie(PixelHDR, videofmt.FormatBGRA, 64, 48, 8)
		m.colorimetry = pq
		s := sampleFor(videofmt.FormatBGRA, 64, 48, 0)

		_, err := e.describe(m, s, s.data)
		assert.ErrorIs(t, err, ErrConfiguration)
	})
}

func TestAlignment(t *testing.T) {
	tests := []struct {
		width int
		even  int
		row   int
	}{
		{63, 1, 1},
		{66, 4, 2},
		{68, 8, 4},
		{64, 8, 8},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.width), func(t *testing.T) {
			assert.Equal(t, tt.even, alignEven(tt.width, 1, 4, 8))
			assert.Equal(t, tt.row, rowAlignment(tt.width))
		})
	}
	assert.Equal(t, 8, alignEven(66, 4, 8), "two entries cover every even width")
}

// hdrStream is a 10 bit PQ movie with static mastering metadata.
func hdrStream() pipelinetest.Stream {
	s := clip(30)
	s.Format = videofmt.FormatI420_10LE
	s.Colorimetry = "bt2100-pq"
	s.ExtraCaps = `mastering-display-info=(string)"35400:14600:8500:39850:6550:2300:15635:16450:10000000:50", ` +
		`content-light-level=(string)1000:400`
	return s
}

func hdrConfig() *Config {
	cfg := testConfig()
	cfg.Display.Caps = []string{"fbo", "shaders"}
	cfg.Display.HDR = true
	return cfg
}

func TestHDRMetadata(t *testing.T) {
	hs := newHarnessWithConfig(t, hdrConfig(), &pipelinetest.Backend{Stream: hdrStream()})
	h, _ := hs.open(t, OpenOptions{PixelFormat: PixelHDR})

	md, err := hs.engine.HDRMetadata(h)
	require.NoError(t, err)
	assert.True(t, md.Valid)
	assert.InDelta(t, 1000.0, md.MaxLuminance, 1e-9)
	assert.InDelta(t, 0.005, md.MinLuminance, 1e-9)
	assert.Equal(t, 1000.0, md.MaxContentLightLevel)
	assert.Equal(t, 400.0, md.MaxFrameAverageLightLevel)
	assert.InDelta(t, 0.708, md.ColorGamut[0][0], 1e-9)
	assert.InDelta(t, 0.292, md.ColorGamut[0][1], 1e-9)
	assert.InDelta(t, 0.3127, md.ColorGamut[3][0], 1e-9)
	assert.Equal(t, "bt2100-pq", md.Colorimetry)
	assert.Equal(t, int(videofmt.TransferSMPTE2084), md.EOTFType)
	assert.Equal(t, "I420", md.Format, "the sink's first choice")
	assert.Equal(t, 8, md.Depth)
	t.Logf("✅ HDR metadata: %.3f-%.0f nits, MaxCLL %.0f", md.MinLuminance, md.MaxLuminance, md.MaxContentLightLevel)
}

func TestHDRMetadata_Disabled(t *testing.T) {
	cfg := hdrConfig()
	cfg.HDRMetadata = "off"
	hs := newHarnessWithConfig(t, cfg, &pipelinetest.Backend{Stream: hdrStream()})
	h, _ := hs.open(t, OpenOptions{PixelFormat: PixelHDR})

	md, err := hs.engine.HDRMetadata(h)
	require.NoError(t, err)
	assert.False(t, md.Valid)
	assert.Empty(t, md.Format)
	assert.Equal(t, "bt2100-pq", md.Colorimetry, "colorimetry does not depend on the metadata parser")
}

func TestHDRMetadata_DefaultColorimetry(t *testing.T) {
	tests := []struct {
		name   string
		format videofmt.Format
		height int
		want   string
	}{
		{"packed rgb", videofmt.FormatBGRA, 1080, "sRGB"},
		{"uyvy sd", videofmt.FormatUYVY, 480, "bt601"},
		{"planar hd", videofmt.FormatI420, 720, "bt709"},
		{"planar sd", videofmt.FormatI420, 576, "bt601"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := clip(10)
			s.Format = tt.format
			s.Height = tt.height
			hs := newHarness(t, s)
			h, _ := hs.open(t, OpenOptions{})

			md, err := hs.engine.HDRMetadata(h)
			require.NoError(t, err)
			assert.Equal(t, tt.want, md.Colorimetry)
		})
	}
}

func TestOverrideEOTF(t *testing.T) {
	hs := newHarnessWithConfig(t, hdrConfig(), &pipelinetest.Backend{Stream: hdrStream()})
	h, _ := hs.open(t, OpenOptions{PixelFormat: PixelHDR, Options: "OverrideEOTF=15"})

	md, err := hs.engine.HDRMetadata(h)
	require.NoError(t, err)
	assert.Equal(t, int(videofmt.TransferARIBSTDB67), md.EOTFType)
	assert.Equal(t, "bt2100-hlg", md.Colorimetry)
}

func TestPlanarHDRFrames(t *testing.T) {
	r := &fakeRenderer{}
	hs := newHarnessWithConfig(t, hdrConfig(), &pipelinetest.Backend{Stream: hdrStream()}, WithRenderer(r))
	h, _ := hs.open(t, OpenOptions{PixelFormat: PixelHDR})

	status, f, err := hs.engine.GetFrame(h, FetchBlocking, -1)
	require.NoError(t, err)
	require.Equal(t, StatusReady, status)
	td := f.Texture
	f.Release()

	assert.Equal(t, PlanarHDR, td.Planar)
	assert.Equal(t, "L8", td.InternalFormat)
	assert.Equal(t, 48, td.Depth, "8 bpc planes need float backing on HDR displays")
	assert.Equal(t, 72, td.UploadHeight)
	assert.Len(t, td.Data, 64*72)
	require.NotNil(t, td.Program)
	assert.Equal(t, uint32(1), td.ProgramID)
	assert.Contains(t, td.Program.Fragment, "main")

	require.True(t, hs.engine.RecycleTexture(h, 9))
	require.NoError(t, hs.engine.Delete(h))

	r.mu.Lock()
	defer r.mu.Unlock()
	assert.Equal(t, []uint32{1}, r.programs)
	assert.Equal(t, []uint32{9}, r.textures, "a cached texture is released with its movie")
}

func TestPlanarHDR_DegradesWithoutShaders(t *testing.T) {
	hs := newHarness(t, hdrStream())
	h, _ := hs.open(t, OpenOptions{PixelFormat: PixelHDR})

	info, err := hs.engine.Info(h)
	require.NoError(t, err)
	assert.Equal(t, PixelRGBA, info.PixelFormat)

	_, f, err := hs.engine.GetFrame(h, FetchBlocking, -1)
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, PlanarNone, f.Texture.Planar)
	assert.Nil(t, f.Texture.Program)
	f.Release()
}

func TestBayerFrames(t *testing.T) {
	hs := newHarness(t, clip(10))
	h, _ := hs.open(t, OpenOptions{PixelFormat: PixelLuminance, Special: SpecialBayer})

	_, err := hs.engine.SetTimeIndex(h, 0.1, false)
	require.NoError(t, err)

	_, f, err := hs.engine.GetFrame(h, FetchBlocking, -1)
	require.NoError(t, err)
	require.NotNil(t, f)
	defer f.Release()

	assert.Equal(t, uint64(3), f.Offset)
	assert.Equal(t, 3, f.Texture.Channels)
	assert.Equal(t, bytes.Repeat([]byte{3}, 64*48*3), f.Texture.Data)
}
