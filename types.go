package movieplayback

import (
	"sync"

	"github.com/e7canasta/movie-playback/internal/config"
	"github.com/e7canasta/movie-playback/internal/eotf"
	"github.com/e7canasta/movie-playback/internal/pipeline"
	"github.com/e7canasta/movie-playback/internal/playstats"
	"github.com/e7canasta/movie-playback/internal/registry"
)

// Handle identifies an open movie. The zero Handle is never valid, and a
// handle is never valid again once its movie was deleted.
type Handle = registry.Handle

// InvalidHandle is the zero Handle.
const InvalidHandle = registry.InvalidHandle

// Config is the engine configuration.
type Config = config.Config

// PixelFormat selects the texture layout frames are decoded into.
type PixelFormat = pipeline.PixelFormat

const (
	PixelLuminance      = pipeline.PixelLuminance
	PixelLuminanceAlpha = pipeline.PixelLuminanceAlpha
	PixelRGB            = pipeline.PixelRGB
	PixelRGBA           = pipeline.PixelRGBA
	PixelYUV422         = pipeline.PixelYUV422
	PixelI420           = pipeline.PixelI420
	PixelY8             = pipeline.PixelY8
	PixelY8Alt          = pipeline.PixelY8Alt
	PixelLuminance16    = pipeline.PixelLuminance16
	PixelRGBA16         = pipeline.PixelRGBA16
	PixelHDR            = pipeline.PixelHDR
)

// SpecialFlags are open-time behaviour switches.
type SpecialFlags = pipeline.SpecialFlags

const (
	SpecialForceYUV422          = pipeline.SpecialForceYUV422
	SpecialNoAudio              = pipeline.SpecialNoAudio
	SpecialSoftwareDecode       = pipeline.SpecialSoftwareDecode
	SpecialSkipFrame            = pipeline.SpecialSkipFrame
	SpecialNormalizeOrientation = pipeline.SpecialNormalizeOrientation
	SpecialLoopGapless          = pipeline.SpecialLoopGapless
	SpecialLoopSegment          = pipeline.SpecialLoopSegment
	SpecialLoopFlush            = pipeline.SpecialLoopFlush
	SpecialNoDeinterlace        = pipeline.SpecialNoDeinterlace
	SpecialPacked16             = pipeline.SpecialPacked16
	SpecialBayer                = pipeline.SpecialBayer
)

// LoopMode is the loop strategy passed to SetRate.
type LoopMode = pipeline.LoopMode

const (
	LoopEnabled = pipeline.LoopEnabled
	LoopGapless = pipeline.LoopGapless
	LoopSegment = pipeline.LoopSegment
	LoopFlush   = pipeline.LoopFlush
)

// AsyncFlags tune the sink queue.
type AsyncFlags = pipeline.AsyncFlags

// AsyncNoFrameDrop queues every decoded frame instead of dropping late ones.
const AsyncNoFrameDrop = pipeline.AsyncNoFrameDrop

// PlaybackError is an asynchronous pipeline error. It never invalidates the
// movie it was reported on.
type PlaybackError = pipeline.PlaybackError

// CadenceStats summarizes the presentation timestamps fetched so far.
type CadenceStats = playstats.Stats

// ShaderProgram is the planar YUV decode program of an HDR movie.
type ShaderProgram = eotf.Program

// FetchMode selects how GetFrame waits.
type FetchMode int

const (
	// FetchBlocking waits a bounded time for a frame and pulls it.
	FetchBlocking FetchMode = iota
	// FetchPoll only checks whether a frame is ready.
	FetchPoll
	// FetchWait checks, waiting a bounded time for a frame to arrive.
	FetchWait
)

func (m FetchMode) String() string {
	switch m {
	case FetchBlocking:
		return "blocking"
	case FetchPoll:
		return "poll"
	case FetchWait:
		return "wait"
	default:
		return "invalid"
	}
}

// FetchStatus is the outcome of GetFrame.
type FetchStatus int

const (
	// StatusNotReady means no frame yet; retry later.
	StatusNotReady FetchStatus = iota
	// StatusReady means a frame is ready (check modes) or was returned.
	StatusReady
	// StatusExhausted means no more frames will come without a seek or
	// rate change.
	StatusExhausted
)

func (s FetchStatus) String() string {
	switch s {
	case StatusReady:
		return "ready"
	case StatusExhausted:
		return "exhausted"
	default:
		return "not-ready"
	}
}

// OpenOptions are the per-movie open parameters.
type OpenOptions struct {
	// Preload is the network buffering in seconds. 0 and 1 keep the backend
	// default, -1 buffers without limit, -2 forces download mode.
	Preload float64
	Async   AsyncFlags
	Special SpecialFlags
	// PixelFormat defaults to PixelRGBA.
	PixelFormat PixelFormat
	// MaxThreads limits decoder threads: 0 keeps the decoder default,
	// AutoThreads lets the decoder pick, n > 0 sets n.
	MaxThreads int
	// Options is the free-form options string
	// ("AudioSink=<desc>:::", "OverrideEOTF=<id>").
	Options string
	// Quiet demotes failure diagnostics to debug level.
	Quiet bool
}

// AutoThreads asks the decoder to choose its thread count.
const AutoThreads = -1

// OpenResult is delivered by OpenAsync.
type OpenResult struct {
	Handle Handle
	Err    error
}

// MovieInfo describes an open movie.
type MovieInfo struct {
	Handle   Handle
	ID       string
	Location string

	// Duration in seconds, +Inf when unknown.
	Duration float64
	// FrameCount estimate, -1 when the duration is unknown.
	FrameCount  int
	FPS         float64
	Width       int
	Height      int
	AspectRatio float64
	BitDepth    int
	PixelFormat PixelFormat

	VideoTracks int
	AudioTracks int
	Seekable    bool

	Rate    float64
	Loop    LoopMode
	Dropped int

	// LastError is the most recent bus error, nil if none.
	LastError *PlaybackError
	Cadence   CadenceStats

	BusErrors   uint64
	BusWarnings uint64
	Loops       uint64
}

// HDRInfo is the static HDR metadata and colorimetry of a movie.
type HDRInfo struct {
	Valid        bool
	MetadataType int

	MinLuminance              float64
	MaxLuminance              float64
	MaxFrameAverageLightLevel float64
	MaxContentLightLevel      float64

	// ColorGamut holds the mastering display red, green, blue primaries and
	// white point as CIE xy.
	ColorGamut [4][2]float64

	Colorimetry  string
	LimitedRange int
	MatrixType   int
	PrimaryType  int
	EOTFType     int

	// Format and Depth are only set when Valid.
	Format string
	Depth  int
}

// PlanarKind tells the texture consumer which decode shader a planar
// texture needs.
type PlanarKind int

const (
	PlanarNone PlanarKind = iota
	PlanarY8
	PlanarI420
	PlanarHDR
)

func (p PlanarKind) String() string {
	switch p {
	case PlanarY8:
		return "y8"
	case PlanarI420:
		return "i420"
	case PlanarHDR:
		return "hdr-yuv"
	default:
		return "none"
	}
}

// OrientationUpsideDown is the orientation of every movie texture: rows are
// stored top to bottom, like an offscreen window.
const OrientationUpsideDown = 3

// TextureDescriptor is everything the texture consumer needs to upload one
// frame.
type TextureDescriptor struct {
	// Width and Height are the frame size.
	Width  int
	Height int
	// UploadHeight is the number of rows to upload; planar layouts stack
	// their chroma planes below the luma plane.
	UploadHeight int
	// StridePixels is the row length in texels, 0 when tightly packed.
	StridePixels int

	InternalFormat string
	ExternalFormat string
	ExternalType   string
	// ComponentScale shifts sub-16 bit payloads up to the 16 bit range.
	ComponentScale int

	Depth       int
	Channels    int
	ByteAligned int

	Planar PlanarKind
	// Program and ProgramID are set for PlanarHDR.
	Program   *ShaderProgram
	ProgramID uint32

	Orientation int
	// Normalize asks the consumer to convert to an upright RGBA texture.
	Normalize bool

	// TextureID is a recycled texture to reuse, 0 for a new one.
	TextureID uint32

	// Data is valid until Frame.Release, and for debayered or swizzled
	// frames only until the next GetFrame on the same movie.
	Data []byte
}

// Frame is one fetched video frame.
type Frame struct {
	Texture TextureDescriptor
	// PTS is the presentation timestamp in seconds.
	PTS float64
	// Duration in seconds, 0 if unknown.
	Duration float64
	// Offset is the buffer offset, usually the frame index.
	Offset uint64

	release func()
	once    sync.Once
}

// Release unmaps the frame's buffer. Texture.Data must not be used after.
func (f *Frame) Release() {
	if f == nil {
		return
	}
	f.once.Do(func() {
		if f.release != nil {
			f.release()
		}
	})
}
