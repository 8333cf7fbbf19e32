// Package pipeline owns the decode/playback graph of each movie: the typed
// contract a media framework backend must satisfy, and the controller policy
// built on top of it (state changes, bus draining, looping, error taxonomy,
// sink format negotiation).
//
// Backends live elsewhere (internal/gstreamer for production,
// internal/pipeline/pipelinetest for tests). Nothing in this package depends
// on a particular media framework.
package pipeline

import (
	"time"

	"github.com/e7canasta/movie-playback/internal/videofmt"
)

// State is a pipeline state.
type State int

const (
	StateNull State = iota
	StateReady
	StatePaused
	StatePlaying
)

func (s State) String() string {
	switch s {
	case StateNull:
		return "NULL"
	case StateReady:
		return "READY"
	case StatePaused:
		return "PAUSED"
	case StatePlaying:
		return "PLAYING"
	default:
		return "INVALID"
	}
}

// StateChange is the outcome of a state change request.
type StateChange int

const (
	StateChangeFailure StateChange = iota
	StateChangeSuccess
	StateChangeAsync
	StateChangeNoPreroll
)

func (s StateChange) String() string {
	switch s {
	case StateChangeSuccess:
		return "success"
	case StateChangeAsync:
		return "async"
	case StateChangeNoPreroll:
		return "no-preroll"
	default:
		return "failure"
	}
}

// Format is the unit of a seek or position query.
type Format int

const (
	FormatTime    Format = iota // nanoseconds
	FormatDefault               // frames for video
	FormatBuffers               // buffers, used by step events
)

// SeekFlags modify a seek.
type SeekFlags uint32

const (
	SeekFlush    SeekFlags = 1 << 0
	SeekAccurate SeekFlags = 1 << 1
	SeekKeyUnit  SeekFlags = 1 << 2
	SeekSegment  SeekFlags = 1 << 3
)

// SeekType says how a seek boundary is interpreted.
type SeekType int

const (
	SeekTypeNone SeekType = iota // leave boundary unchanged
	SeekTypeSet                  // absolute position
	SeekTypeEnd                  // relative to stream end
)

// Seek is a full seek request.
type Seek struct {
	Rate      float64
	Format    Format
	Flags     SeekFlags
	StartType SeekType
	Start     int64
	StopType  SeekType
	Stop      int64
}

// MessageType classifies bus messages the controller reacts to.
type MessageType int

const (
	MessageOther MessageType = iota
	MessageEOS
	MessageSegmentDone
	MessageError
	MessageWarning
	MessageBuffering
)

func (m MessageType) String() string {
	switch m {
	case MessageEOS:
		return "eos"
	case MessageSegmentDone:
		return "segment-done"
	case MessageError:
		return "error"
	case MessageWarning:
		return "warning"
	case MessageBuffering:
		return "buffering"
	default:
		return "other"
	}
}

// Message is one bus notification.
type Message struct {
	Type   MessageType
	Source string

	// Error and warning details.
	Text     string
	Debug    string
	Category ErrorCategory

	// Buffering progress, 0-100.
	Percent int
}

// Pipeline is one movie's decode/playback graph.
//
// All methods are called from the movie's consumer thread, except that
// backends invoke BuildConfig.OnAboutToFinish and Sink callbacks from their
// own streaming threads.
type Pipeline interface {
	// SetState requests a transition and returns immediately.
	SetState(State) StateChange
	// WaitState blocks until the last requested transition completes, fails
	// or timeout elapses (StateChangeAsync).
	WaitState(timeout time.Duration) StateChange

	Seek(Seek) bool
	// Position returns the current stream position in format.
	Position(Format) (int64, bool)
	Duration() (time.Duration, bool)
	Seekable() bool

	// SetURI sets the URI to play next (gapless when already playing).
	SetURI(uri string)
	SetVolume(volume float64, mute bool)

	// PopMessage returns the next bus message, waiting up to timeout; nil if none.
	PopMessage(timeout time.Duration) *Message

	Tracks() (video, audio int)
	VideoSink() Sink

	// Decoder returns the element offering decode thread and frame skipping
	// control, if the graph has one.
	Decoder() (Decoder, bool)

	// CodecCaps returns the caps on the video decoder output, or those of the
	// sink's upstream peer when no decoder was found.
	CodecCaps() (string, bool)
	// SinkCaps returns the negotiated caps at the video sink input.
	SinkCaps() (string, bool)

	// Close releases the graph. The pipeline must be in StateNull.
	Close() error
}

// SinkCallbacks are invoked from the streaming thread.
type SinkCallbacks struct {
	OnPreroll func()
	OnSample  func()
	OnEOS     func()
}

// Sink is the video frame sink of a pipeline.
type Sink interface {
	SetCallbacks(SinkCallbacks)

	// PullSample returns the oldest queued playback buffer, waiting at most
	// timeout for one. nil on timeout, EOS or flushing.
	PullSample(timeout time.Duration) Sample
	// PullPreroll returns the current preroll buffer, waiting at most timeout
	// for one. nil if none arrived.
	PullPreroll(timeout time.Duration) Sample

	IsEOS() bool

	Drop() bool
	SetDrop(bool)
	MaxBuffers() int
	SetMaxBuffers(int)

	// Step advances the sink by n buffers without touching other sinks.
	Step(n uint64) bool
}

// Sample is one decoded video buffer.
type Sample interface {
	PTS() (time.Duration, bool)
	Duration() (time.Duration, bool)
	Offset() uint64
	// Caps returns the sample's caps string.
	Caps() string
	// Stride returns the row stride in bytes of the first plane, 0 if unknown.
	Stride() int
	// Map returns a read-only view of the buffer memory, valid until Release.
	Map() ([]byte, error)
	// Release unmaps and drops the sample.
	Release()
}

// Decoder is the typed capability for decoder tuning.
type Decoder interface {
	Name() string
	SupportsThreads() bool
	SupportsSkipFrame() bool
	SetMaxThreads(n int)
	SetSkipFrame(mode int)
	SetState(State) StateChange
	WaitState(timeout time.Duration) StateChange
}

// HDRParser extracts static HDR metadata from caps. Backends that cannot
// supply it report the capability as absent.
type HDRParser interface {
	ParseHDR(videofmt.Info) (videofmt.HDRMetadata, error)
}

// CapsHDRParser parses HDR metadata from caps string fields.
type CapsHDRParser struct{}

// ParseHDR implements HDRParser.
func (CapsHDRParser) ParseHDR(info videofmt.Info) (videofmt.HDRMetadata, error) {
	return videofmt.ParseHDR(info)
}

// Buffering configures network buffering.
type Buffering struct {
	Enabled bool
	// RingBufferMaxSize in bytes, 0 for backend default.
	RingBufferMaxSize uint64
	// Duration of queued data, used unless Unlimited.
	Duration time.Duration
	// Unlimited lifts the byte limit of the buffer instead of bounding duration.
	Unlimited bool
}

// BuildConfig describes the graph to build for one movie.
type BuildConfig struct {
	URI         string
	Flags       PlayFlags
	Buffering   Buffering
	SinkFormats []videofmt.Format
	// AudioSink is an optional backend-specific audio sink description.
	AudioSink string
	Drop      bool
	// MaxBuffers is the initial sink queue capacity, 0 = unlimited.
	MaxBuffers int
	// OnAboutToFinish is called from a streaming thread shortly before the
	// current URI runs out.
	OnAboutToFinish func()
}

// Backend builds pipelines.
type Backend interface {
	Name() string
	Build(BuildConfig) (Pipeline, error)
	// HDRParser returns the HDR metadata capability, resolved once.
	HDRParser() (HDRParser, bool)
}
