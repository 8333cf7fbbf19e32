package movieplayback

import (
	"context"
	"time"
)

// MoviePlayer defines the movie playback contract
//
// Implementations must guarantee:
//   - Every operation on an unknown or deleted handle fails with ErrInvalidHandle
//   - No operation blocks without a bound (fetch waits, state changes and
//     seeks all use policy timeouts)
//   - Asynchronous pipeline errors never invalidate a movie
//   - Delete is not idempotent: a second Delete of a handle is an error
type MoviePlayer interface {
	// Open creates a movie and prerolls it, leaving it paused at rate 0.
	//
	// Returns an error wrapping:
	//   - ErrInvalidArgument for bad options or pixel format combinations
	//   - ErrRegistryFull when every movie slot is in use
	//   - ErrConfiguration when no pipeline can be built for the display
	//   - ErrOpenFailed when the movie cannot be prerolled
	Open(ctx context.Context, location string, opts OpenOptions) (Handle, error)

	// OpenAsync opens in the background with diagnostics demoted to debug.
	// Exactly one result is delivered on the returned channel.
	OpenAsync(ctx context.Context, location string, opts OpenOptions) <-chan OpenResult

	// Queue schedules location to play gaplessly after the current one.
	Queue(h Handle, location string) error

	// Info returns the movie properties and playback counters.
	Info(h Handle) (MovieInfo, error)

	// GetFrame checks for or fetches the next frame.
	//
	// targetTime is -1 or a time in [0, 100000) seconds. In forward playback
	// a fetch skips already queued frames older than targetTime; at rate 0 a
	// check seeks to it first.
	//
	// A non-nil Frame is returned only with StatusReady in FetchBlocking
	// mode and must be released.
	GetFrame(h Handle, mode FetchMode, targetTime float64) (FetchStatus, *Frame, error)

	// RecycleTexture offers a released texture of this movie for reuse. It
	// returns false when the one-texture cache is taken or h is invalid.
	RecycleTexture(h Handle, textureID uint32) bool

	// SetRate starts (rate != 0) or stops (rate 0) playback. Repeating the
	// current rate only updates volume. Stopping returns the number of
	// frames dropped since playback started.
	SetRate(h Handle, rate float64, loop LoopMode, volume float64) (int, error)

	// SetTimeIndex seeks to t seconds, or to frame t when frames is set,
	// and returns the position before the seek.
	SetTimeIndex(h Handle, t float64, frames bool) (float64, error)

	// TimeIndex returns the current position in seconds.
	TimeIndex(h Handle) (float64, error)

	// HDRMetadata returns the movie's HDR metadata and colorimetry.
	HDRMetadata(h Handle) (HDRInfo, error)

	// Delete stops and releases a movie.
	Delete(h Handle) error
	// DeleteAll releases every open movie.
	DeleteAll()
	// Count returns the number of open movies.
	Count() int

	// Close releases every movie and the event emitter.
	Close() error
}

// Renderer is the GPU side collaborator. It is optional: without one,
// HDR programs are handed out uncompiled and textures are never deleted.
type Renderer interface {
	// CompileProgram builds the planar decode program and returns its id.
	CompileProgram(p *ShaderProgram) (uint32, error)
	DeleteProgram(id uint32)
	DeleteTexture(id uint32)
}

// Clock is the time source used for cadence measurement.
type Clock interface {
	Now() time.Time
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

var _ MoviePlayer = (*Engine)(nil)
