package pipeline

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/e7canasta/movie-playback/internal/videofmt"
)

// BuildURI turns a movie name into a playable URI. Names carrying a scheme,
// and v4l device names, are used as-is; anything else is a local path.
func BuildURI(name string) string {
	if strings.Contains(name, "://") || (strings.HasPrefix(name, "v4l") && strings.Contains(name, "//")) {
		return name
	}
	return "file:///" + strings.TrimPrefix(name, "/")
}

// PlayFlagsFor derives the playbin flags from open parameters.
func PlayFlagsFor(special SpecialFlags, preload float64, name string) PlayFlags {
	flags := PlayVideo
	if !special.Has(SpecialNoDeinterlace) {
		flags |= PlayDeinterlace
	}
	if !special.Has(SpecialNoAudio) {
		flags |= PlayAudio | PlaySoftVolume
	}
	if special.Has(SpecialSoftwareDecode) {
		flags |= PlayForceSWDecoder
	}
	if bufferingEnabled(preload) {
		flags |= PlayBuffering
		// Progressive download chokes on webm unless explicitly forced.
		if preload == -2 || !strings.Contains(name, ".webm") {
			flags |= PlayDownload
		}
	}
	return flags
}

// Preload values 0 and 1 keep the backend's default buffering.
func bufferingEnabled(preload float64) bool {
	return preload != 0 && preload != 1
}

// Assumed peak stream data rate used to size the ring buffer.
const ringBufferBytesPerSecond = 4e6

// BufferingFor derives the network buffering setup from the preload seconds.
// -1 means unlimited, -2 means "force download" with the default preload.
func BufferingFor(preload float64, defaultPreload time.Duration) Buffering {
	if !bufferingEnabled(preload) {
		return Buffering{}
	}
	if preload == -2 {
		preload = defaultPreload.Seconds()
	}
	if preload == -1 {
		return Buffering{
			Enabled:           true,
			RingBufferMaxSize: math.MaxUint32,
			Unlimited:         true,
		}
	}
	return Buffering{
		Enabled:           true,
		RingBufferMaxSize: uint64(preload * ringBufferBytesPerSecond),
		Duration:          time.Duration(preload * float64(time.Second)),
	}
}

// QueuePolicy returns the sink drop mode and queue capacity. By default the
// sink keeps one buffer and drops late ones, which keeps audio and video in
// sync. AsyncNoFrameDrop queues fps*preload+1 frames instead, 0 = unlimited.
func QueuePolicy(async AsyncFlags, fps, preload float64) (drop bool, maxBuffers int) {
	if async&AsyncNoFrameDrop == 0 {
		return true, 1
	}
	if fps > 0 && preload >= 0 {
		return false, int(fps*preload) + 1
	}
	return false, 0
}

// ErrInvalidOption reports a malformed options string entry.
var ErrInvalidOption = errors.New("pipeline: invalid movie option")

// MovieOptions are parsed from the free-form options string.
type MovieOptions struct {
	// AudioSink is a backend sink description, terminated by ":::".
	AudioSink string
	// OverrideEOTF replaces the detected transfer function.
	OverrideEOTF *videofmt.Transfer
}

// ParseOptions parses "AudioSink=<desc>:::" and "OverrideEOTF=<id>" entries.
// OverrideEOTF is only accepted with PixelHDR.
func ParseOptions(s string, pf PixelFormat) (MovieOptions, error) {
	var opts MovieOptions

	if i := strings.Index(s, "AudioSink="); i >= 0 {
		desc := s[i+len("AudioSink="):]
		if j := strings.Index(desc, ":::"); j >= 0 {
			desc = desc[:j]
		}
		opts.AudioSink = desc
	}

	if i := strings.Index(s, "OverrideEOTF="); i >= 0 {
		if pf != PixelHDR {
			return MovieOptions{}, fmt.Errorf("%w: OverrideEOTF only allowed for pixel format %d", ErrInvalidOption, int(PixelHDR))
		}
		v := s[i+len("OverrideEOTF="):]
		end := strings.IndexFunc(v, func(r rune) bool {
			return (r < '0' || r > '9') && r != '-' && r != '+'
		})
		if end >= 0 {
			v = v[:end]
		}
		id, err := strconv.Atoi(v)
		if err != nil {
			return MovieOptions{}, fmt.Errorf("%w: OverrideEOTF %q is not a number", ErrInvalidOption, v)
		}
		t := videofmt.Transfer(id)
		opts.OverrideEOTF = &t
	}
	return opts, nil
}
