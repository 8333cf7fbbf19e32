package pipeline

import "fmt"

// PixelFormat selects the texture layout a movie is decoded into.
type PixelFormat int

const (
	PixelLuminance      PixelFormat = 1  // L8, or L16 with 16 bpc sinks
	PixelLuminanceAlpha PixelFormat = 2  // LA8, served as L8
	PixelRGB            PixelFormat = 3  // RGB8, served as RGBA8 unless packed 16 bpc
	PixelRGBA           PixelFormat = 4  // RGBA8
	PixelYUV422         PixelFormat = 5  // packed UYVY
	PixelI420           PixelFormat = 6  // planar YUV 4:2:0, shader decoded
	PixelY8             PixelFormat = 7  // luma plane only, shader decoded
	PixelY8Alt          PixelFormat = 8  // same as PixelY8
	PixelLuminance16    PixelFormat = 9  // GRAY16
	PixelRGBA16         PixelFormat = 10 // ARGB64 swizzled to RGBA16
	PixelHDR            PixelFormat = 11 // (semi-)planar YUV 8-16 bpc with EOTF decode
)

func (p PixelFormat) String() string {
	switch p {
	case PixelLuminance:
		return "L8"
	case PixelLuminanceAlpha:
		return "LA8"
	case PixelRGB:
		return "RGB8"
	case PixelRGBA:
		return "RGBA8"
	case PixelYUV422:
		return "YUV422"
	case PixelI420:
		return "I420"
	case PixelY8, PixelY8Alt:
		return "Y8"
	case PixelLuminance16:
		return "L16"
	case PixelRGBA16:
		return "RGBA16"
	case PixelHDR:
		return "HDR-YUV"
	default:
		return fmt.Sprintf("pixelformat(%d)", int(p))
	}
}

// SpecialFlags are open-time behaviour switches.
type SpecialFlags uint32

const (
	SpecialForceYUV422          SpecialFlags = 1 << 0  // same as PixelYUV422
	SpecialNoAudio              SpecialFlags = 1 << 1  // never decode audio
	SpecialSoftwareDecode       SpecialFlags = 1 << 2  // hardware decoders disabled
	SpecialSkipFrame            SpecialFlags = 1 << 3  // decoder may skip non-reference frames
	SpecialNormalizeOrientation SpecialFlags = 1 << 4  // consumer should normalize textures upright
	SpecialLoopGapless          SpecialFlags = 1 << 5  // loop=1 means URI re-injection
	SpecialLoopSegment          SpecialFlags = 1 << 6  // loop=1 adds segment seeks
	SpecialLoopFlush            SpecialFlags = 1 << 7  // loop=1 adds flushing seeks
	SpecialNoDeinterlace        SpecialFlags = 1 << 8  // no automatic deinterlacing
	SpecialPacked16             SpecialFlags = 1 << 9  // proprietary 16 bpc packing in 8 bpc frames
	SpecialBayer                SpecialFlags = 1 << 10 // luminance frames hold Bayer sensor data
)

// Has reports whether all bits of f are set.
func (s SpecialFlags) Has(f SpecialFlags) bool {
	return s&f == f
}

// LoopMode is the loop strategy bitmask used by rate changes and the bus.
type LoopMode int

const (
	LoopEnabled LoopMode = 1 << 0 // seek back on end of stream
	LoopGapless LoopMode = 1 << 1 // re-inject the URI on about-to-finish
	LoopSegment LoopMode = 1 << 2 // segment seeks, segment-done instead of EOS
	LoopFlush   LoopMode = 1 << 3 // flush on loop seeks
)

// Has reports whether all bits of f are set.
func (l LoopMode) Has(f LoopMode) bool {
	return l&f == f
}

// NormalizeLoop applies the loop strategy modifiers from special flags: a
// plain "loop on" request (1) becomes gapless when asked for, and segment or
// flush bits are added. Non-positive values mean no looping.
func NormalizeLoop(loop LoopMode, special SpecialFlags) LoopMode {
	if loop <= 0 {
		return 0
	}
	if loop == LoopEnabled {
		if special.Has(SpecialLoopGapless) {
			loop = LoopGapless
		}
		if special.Has(SpecialLoopSegment) {
			loop |= LoopSegment
		}
		if special.Has(SpecialLoopFlush) {
			loop |= LoopFlush
		}
	}
	return loop
}

// AsyncFlags tune the sink queue.
type AsyncFlags int

// AsyncNoFrameDrop keeps every decoded frame queued instead of dropping late ones.
const AsyncNoFrameDrop AsyncFlags = 1 << 2

// PlayFlags mirror GstPlayFlags of playbin.
type PlayFlags uint32

const (
	PlayVideo          PlayFlags = 0x0001
	PlayAudio          PlayFlags = 0x0002
	PlayText           PlayFlags = 0x0004
	PlayVis            PlayFlags = 0x0008
	PlaySoftVolume     PlayFlags = 0x0010
	PlayNativeAudio    PlayFlags = 0x0020
	PlayNativeVideo    PlayFlags = 0x0040
	PlayDownload       PlayFlags = 0x0080
	PlayBuffering      PlayFlags = 0x0100
	PlayDeinterlace    PlayFlags = 0x0200
	PlaySoftColorBal   PlayFlags = 0x0400
	PlayForceFilters   PlayFlags = 0x0800
	PlayForceSWDecoder PlayFlags = 0x1000
)
