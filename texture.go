package movieplayback

import (
	"fmt"

	"github.com/e7canasta/movie-playback/internal/debayer"
	"github.com/e7canasta/movie-playback/internal/pipeline"
	"github.com/e7canasta/movie-playback/internal/videofmt"
)

// Above this many bits per component, 32 bit float textures are needed.
const highBitThreshold = 11

// describe builds the texture descriptor for one mapped sample of m.
func (e *Engine) describe(m *movie, s pipeline.Sample, data []byte) (TextureDescriptor, error) {
	if m.width <= 0 || m.height <= 0 {
		if info, err := videofmt.ParseCaps(s.Caps()); err == nil {
			m.width, m.height = info.Width, info.Height
		}
	}
	w, h := m.width, m.height

	stride := s.Stride()
	if stride == 0 {
		stride = m.sinkFormat.Stride(w)
	}

	td := TextureDescriptor{
		Width:        w,
		Height:       h,
		UploadHeight: h,
		Channels:     int(m.pixelFormat),
		Orientation:  OrientationUpsideDown,
		Normalize:    m.special.Has(SpecialNormalizeOrientation),
		Data:         data,
	}

	if m.special.Has(SpecialBayer) {
		need := w * h * 3
		if cap(m.scratch) < need {
			m.scratch = make([]byte, need)
		}
		m.scratch = m.scratch[:need]
		if err := debayer.ConvertInto(debayer.RGGB, m.scratch, data, w, h, stride); err != nil {
			return TextureDescriptor{}, fmt.Errorf("movie-playback: debayer frame: %w", err)
		}
		td.Data = m.scratch
		td.Channels = 3
	}

	td.Depth = td.Channels * m.bitDepth
	if td.Channels < 4 {
		td.ByteAligned = 1
	} else {
		td.ByteAligned = alignEven(w, 4, 8)
	}
	td.InternalFormat, td.ExternalFormat, td.ExternalType = packedFormats(td.Channels)

	switch {
	case m.pixelFormat == PixelYUV422 && e.caps.Has(pipeline.CapUYVY):
		if e.caps.Has(pipeline.CapAppleYCbCr) {
			td.InternalFormat, td.ExternalFormat = "RGB8", "YCBCR_422_APPLE"
		} else {
			td.InternalFormat, td.ExternalFormat = "YCBCR_MESA", "YCBCR_MESA"
		}
		td.ExternalType = "UNSIGNED_SHORT_8_8"
		td.Channels = 3
		td.Depth = 24
		td.ByteAligned = alignEven(w, 1, 4, 8)

	case m.pixelFormat == PixelY8 || m.pixelFormat == PixelY8Alt:
		td.InternalFormat, td.ExternalFormat, td.ExternalType = "L8", "LUMINANCE", "UNSIGNED_BYTE"
		td.Planar = PlanarY8
		td.Channels = 1
		td.Depth = 8
		td.ByteAligned = rowAlignment(w)

	case m.pixelFormat == PixelI420:
		td.InternalFormat, td.ExternalFormat, td.ExternalType = "L8", "LUMINANCE", "UNSIGNED_BYTE"
		td.StridePixels = stride
		td.UploadHeight = h * 3 / 2
		if err := e.checkTextureHeight(td.UploadHeight); err != nil {
			return TextureDescriptor{}, err
		}
		td.ByteAligned = 1
		td.Planar = PlanarI420
		td.Channels = 3
		td.Depth = 24

	case m.pixelFormat == PixelHDR:
		if err := e.describePlanarHDR(m, &td, stride); err != nil {
			return TextureDescriptor{}, err
		}

	case m.bitDepth > 8:
		e.describeHighDepth(m, &td)
	}
	return td, nil
}

func (e *Engine) describePlanarHDR(m *movie, td *TextureDescriptor, stride int) error {
	layout, ok := m.sinkFormat.Layout()
	if !ok || !layout.Planar {
		return fmt.Errorf("%w: unrecognized sink format %s for planar decode", ErrConfiguration, m.sinkFormat)
	}

	bpc := layout.Depth
	td.ExternalFormat = "LUMINANCE"
	if bpc > 8 {
		td.InternalFormat, td.ExternalType = "L16", "UNSIGNED_SHORT"
		td.ByteAligned = 2
		td.Depth = 48
		td.StridePixels = stride / 2
	} else {
		td.InternalFormat, td.ExternalType = "L8", "UNSIGNED_BYTE"
		td.ByteAligned = 1
		td.Depth = 24
		// 8 bpc content still needs float backing to be mapped into HDR range.
		if e.display.HDR {
			td.Depth = 48
		}
		td.StridePixels = stride
	}

	td.UploadHeight = int(float64(td.Height) * layout.OverSize)
	if err := e.checkTextureHeight(td.UploadHeight); err != nil {
		return err
	}
	td.Planar = PlanarHDR
	td.Channels = 3

	if err := e.planarProgram(m); err != nil {
		return err
	}
	td.Program = m.program
	td.ProgramID = m.programID
	return nil
}

// describeHighDepth sets up float textures for 9-16 bpc payloads, scaled so
// the most significant payload bit lands in bit 15.
func (e *Engine) describeHighDepth(m *movie, td *TextureDescriptor) {
	high := m.bitDepth > highBitThreshold
	fp := "FLOAT16"
	td.Depth = td.Channels * 16
	if high {
		fp = "FLOAT32"
		td.Depth = td.Channels * 32
	}
	td.ExternalType = "UNSIGNED_SHORT"
	td.ComponentScale = 1 << (16 - m.bitDepth)
	snorm := !e.caps.Has(pipeline.CapFPTex16)
	w := td.Width

	switch td.Channels {
	case 1:
		td.InternalFormat, td.ExternalFormat = "LUMINANCE_"+fp, "LUMINANCE"
		if snorm {
			td.InternalFormat = "LUMINANCE16_SNORM"
		}
		td.ByteAligned = alignEven(w, 2, 4, 8)
	case 3:
		td.InternalFormat, td.ExternalFormat = "RGB_"+fp, "RGB"
		if snorm {
			td.InternalFormat = "RGB16_SNORM"
		}
		td.ByteAligned = alignEven(w, 2, 4, 8)
	default:
		td.InternalFormat, td.ExternalFormat = "RGBA_"+fp, "RGBA"
		if snorm {
			td.InternalFormat = "RGBA16_SNORM"
		}
		td.ByteAligned = 8
		td.Data = swizzleARGB64(m, td.Data, td.Width*td.Height)
	}
}

// swizzleARGB64 reorders count ARGB 16 bit pixels into RGBA, in the
// movie's scratch buffer.
func swizzleARGB64(m *movie, in []byte, count int) []byte {
	n := count * 8
	if n > len(in) {
		n = len(in) &^ 7
	}
	if cap(m.scratch) < n {
		m.scratch = make([]byte, n)
	}
	out := m.scratch[:n]
	for i := 0; i+8 <= n; i += 8 {
		// A R G B -> R G B A, two bytes per component.
		copy(out[i:i+6], in[i+2:i+8])
		copy(out[i+6:i+8], in[i:i+2])
	}
	m.scratch = out
	return out
}

func packedFormats(channels int) (internal, external, typ string) {
	switch channels {
	case 1:
		return "L8", "LUMINANCE", "UNSIGNED_BYTE"
	case 2:
		return "LA8", "LUMINANCE_ALPHA", "UNSIGNED_BYTE"
	case 3:
		return "RGB8", "RGB", "UNSIGNED_BYTE"
	default:
		return "RGBA8", "BGRA", "UNSIGNED_INT_8_8_8_8_REV"
	}
}

// alignEven returns the alignment for a row of width texels: the first
// entry for odd widths, the second for widths not divisible by 4, and the
// last otherwise. With two entries the second covers every even width.
func alignEven(width int, aligns ...int) int {
	switch {
	case width%2 != 0:
		return aligns[0]
	case width%4 != 0 || len(aligns) < 3:
		return aligns[1]
	default:
		return aligns[2]
	}
}

// rowAlignment is the largest of 1, 2, 4, 8 dividing a one byte per texel row.
func rowAlignment(width int) int {
	switch {
	case width%8 == 0:
		return 8
	case width%4 == 0:
		return 4
	case width%2 == 0:
		return 2
	default:
		return 1
	}
}

func (e *Engine) checkTextureHeight(rows int) error {
	if e.maxTexture > 0 && rows > e.maxTexture {
		return fmt.Errorf("%w: %d texture rows exceed the display limit of %d", ErrConfiguration, rows, e.maxTexture)
	}
	return nil
}
