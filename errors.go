package movieplayback

import (
	"errors"

	"github.com/e7canasta/movie-playback/internal/colormath"
)

var (
	// ErrInvalidHandle is returned for zero, unknown or deleted handles.
	ErrInvalidHandle = errors.New("movie-playback: invalid movie handle")
	// ErrInvalidArgument is returned for malformed parameters.
	ErrInvalidArgument = errors.New("movie-playback: invalid argument")
	// ErrRegistryFull is returned by Open when every slot is in use.
	ErrRegistryFull = errors.New("movie-playback: too many open movies")
	// ErrConfiguration means the installation or display cannot play the
	// movie as requested (missing plugins, no negotiable sink format,
	// frames too large for the display).
	ErrConfiguration = errors.New("movie-playback: configuration error")
	// ErrOpenFailed means the movie was found unplayable while opening.
	ErrOpenFailed = errors.New("movie-playback: open failed")
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("movie-playback: engine closed")
)

// ErrorKind classifies errors returned by the engine.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindInvalidHandle
	KindInvalidArgument
	KindResourceExhausted
	KindConfiguration
	KindOpenFailed
	KindPlayback
	KindClosed
	KindUnknown
)

// String returns a human-readable string representation of the error kind
func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindInvalidHandle:
		return "invalid-handle"
	case KindInvalidArgument:
		return "invalid-argument"
	case KindResourceExhausted:
		return "resource-exhausted"
	case KindConfiguration:
		return "configuration"
	case KindOpenFailed:
		return "open-failed"
	case KindPlayback:
		return "playback"
	case KindClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// KindOf classifies err. A degenerate display gamut counts as a
// configuration error.
func KindOf(err error) ErrorKind {
	var perr *PlaybackError

	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrInvalidHandle):
		return KindInvalidHandle
	case errors.Is(err, ErrInvalidArgument):
		return KindInvalidArgument
	case errors.Is(err, ErrRegistryFull):
		return KindResourceExhausted
	case errors.Is(err, ErrConfiguration), errors.Is(err, colormath.ErrNonInvertible):
		return KindConfiguration
	case errors.Is(err, ErrOpenFailed):
		return KindOpenFailed
	case errors.As(err, &perr):
		return KindPlayback
	case errors.Is(err, ErrClosed):
		return KindClosed
	default:
		return KindUnknown
	}
}
