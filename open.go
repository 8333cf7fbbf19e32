package movieplayback

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/e7canasta/movie-playback/internal/emitter"
	"github.com/e7canasta/movie-playback/internal/exchange"
	"github.com/e7canasta/movie-playback/internal/pipeline"
	"github.com/e7canasta/movie-playback/internal/playstats"
	"github.com/e7canasta/movie-playback/internal/videofmt"
)

// Open creates a movie and prerolls it, leaving it paused at rate 0.
func (e *Engine) Open(ctx context.Context, location string, opts OpenOptions) (Handle, error) {
	if e.closed.Load() {
		return InvalidHandle, ErrClosed
	}

	logger := e.logger
	if opts.Quiet {
		logger = slog.New(demoteHandler{logger.Handler()})
	}

	h, err := e.open(ctx, location, opts, logger)
	if err != nil {
		logger.Error("movie-playback: open failed",
			"location", location,
			"kind", KindOf(err).String(),
			"error", err,
		)
		return InvalidHandle, err
	}
	return h, nil
}

// OpenAsync opens in the background. Exactly one result is delivered on the
// returned channel, which is then closed.
func (e *Engine) OpenAsync(ctx context.Context, location string, opts OpenOptions) <-chan OpenResult {
	out := make(chan OpenResult, 1)
	opts.Quiet = true
	go func() {
		defer close(out)
		h, err := e.Open(ctx, location, opts)
		out <- OpenResult{Handle: h, Err: err}
	}()
	return out
}

func validateOpen(location string, opts *OpenOptions) error {
	if location == "" {
		return fmt.Errorf("%w: empty location", ErrInvalidArgument)
	}
	if opts.PixelFormat == 0 {
		opts.PixelFormat = PixelRGBA
	}
	if opts.PixelFormat < PixelLuminance || opts.PixelFormat > PixelHDR {
		return fmt.Errorf("%w: pixel format %d not in 1..11", ErrInvalidArgument, int(opts.PixelFormat))
	}
	if opts.Special.Has(SpecialPacked16) && opts.PixelFormat != PixelLuminance && opts.PixelFormat != PixelRGB {
		return fmt.Errorf("%w: packed 16 bpc decoding needs pixel format 1 or 3, got %d", ErrInvalidArgument, int(opts.PixelFormat))
	}
	if opts.Special.Has(SpecialBayer) && opts.PixelFormat != PixelLuminance {
		return fmt.Errorf("%w: bayer decoding needs pixel format 1, got %d", ErrInvalidArgument, int(opts.PixelFormat))
	}
	if math.IsNaN(opts.Preload) || opts.Preload < -2 {
		return fmt.Errorf("%w: preload %g", ErrInvalidArgument, opts.Preload)
	}
	if opts.MaxThreads < AutoThreads {
		return fmt.Errorf("%w: max threads %d", ErrInvalidArgument, opts.MaxThreads)
	}
	return nil
}

func (e *Engine) open(ctx context.Context, location string, opts OpenOptions, logger *slog.Logger) (Handle, error) {
	if err := validateOpen(location, &opts); err != nil {
		return InvalidHandle, err
	}
	mopts, err := pipeline.ParseOptions(opts.Options, opts.PixelFormat)
	if err != nil {
		return InvalidHandle, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	if e.movies.Full() {
		return InvalidHandle, fmt.Errorf("%w: %d movies open", ErrRegistryFull, e.movies.Cap())
	}

	plan, err := pipeline.NegotiateSink(opts.PixelFormat, opts.Special, e.caps, false)
	if err != nil {
		return InvalidHandle, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	id := uuid.NewString()
	m := &movie{
		id:          id,
		location:    location,
		logger:      logger.With("movie_id", id, "location", location),
		x:           exchange.New(),
		special:     opts.Special,
		pixelFormat: plan.PixelFormat,
		bitDepth:    plan.BitDepth,
		lastPTS:     -1,
		volume:      1,
		aspect:      1,
		cadence:     playstats.NewWindow(playstats.DefaultWindowSize),
	}
	if len(plan.Formats) > 0 {
		m.sinkFormat = plan.Formats[0]
	}
	if plan.Degraded {
		m.logger.Info("movie-playback: pixel format degraded", "reason", plan.Reason)
	} else {
		m.logger.Debug("movie-playback: sink negotiated", "reason", plan.Reason)
	}

	cfg := pipeline.BuildConfig{
		URI:         pipeline.BuildURI(location),
		Flags:       pipeline.PlayFlagsFor(opts.Special, opts.Preload, location),
		Buffering:   pipeline.BufferingFor(opts.Preload, e.policy.DefaultPreload),
		SinkFormats: plan.Formats,
		AudioSink:   mopts.AudioSink,
		Drop:        true,
		MaxBuffers:  1,
	}
	ctl, err := pipeline.Build(e.backend, cfg, pipeline.Options{
		Name: id,
		Policy: pipeline.Policy{
			DrainWindow: e.policy.DrainWindow,
			DrainPoll:   e.policy.DrainPoll,
		},
		Logger: m.logger,
		Hook:   e.busHook(m),
	})
	if err != nil {
		return InvalidHandle, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	m.ctl = ctl
	m.pl = ctl.Pipeline()
	m.sink = m.pl.VideoSink()

	// Callbacks go in before PAUSED so the open preroll is announced.
	m.sink.SetCallbacks(pipeline.SinkCallbacks{
		OnPreroll: m.x.OnNewPreroll,
		OnSample:  m.x.OnNewFrame,
		OnEOS:     m.x.OnEndOfStream,
	})

	// The slot is taken last: until then nobody else can see m.
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := e.prepare(ctx, m, opts, mopts); err != nil {
		e.abandon(m)
		return InvalidHandle, err
	}

	h, err := e.movies.Alloc(m)
	if err != nil {
		e.abandon(m)
		return InvalidHandle, fmt.Errorf("%w: %w", ErrRegistryFull, err)
	}
	m.handle = h

	m.logger.Info("movie-playback: movie opened",
		"handle", h.String(),
		"duration", m.duration,
		"frames", m.frameCount,
		"fps", m.fps,
		"width", m.width,
		"height", m.height,
		"pixel_format", m.pixelFormat.String(),
		"sink_format", m.sinkFormat.String(),
		"bit_depth", m.bitDepth,
		"video_tracks", m.videoTracks,
		"audio_tracks", m.audioTracks,
	)
	e.emit(m, Event{Type: emitter.EventOpened, Position: m.duration})
	return h, nil
}

// prepare prerolls m and reads the stream properties.
func (e *Engine) prepare(ctx context.Context, m *movie, opts OpenOptions, mopts pipeline.MovieOptions) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrOpenFailed, err)
	}

	if !m.ctl.SetState(pipeline.StatePaused, e.policy.PrerollTimeout) {
		m.ctl.Drain(false)
		if perr := m.ctl.LastError(); perr != nil {
			return fmt.Errorf("%w: %w", ErrOpenFailed, perr)
		}
		return fmt.Errorf("%w: could not preroll %s", ErrOpenFailed, m.location)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrOpenFailed, err)
	}

	if err := e.tuneDecoder(m, opts); err != nil {
		return fmt.Errorf("%w: %w", ErrOpenFailed, err)
	}

	m.videoTracks, m.audioTracks = m.pl.Tracks()
	m.ctl.Drain(false)

	if m.videoTracks > 0 {
		if err := e.readVideoProperties(m, mopts); err != nil {
			return err
		}
	}

	// Live capture devices report no usable caps while PAUSED.
	if strings.Contains(m.location, "v4l2:") {
		m.videoTracks = 1
		m.fps = 30
		m.width, m.height = 640, 480
		if strings.Contains(m.location, "320") {
			m.width, m.height = 320, 240
		}
	}

	if d, ok := m.pl.Duration(); ok {
		m.duration = d.Seconds()
		m.frameCount = int(m.fps*m.duration + 0.5)
	} else {
		m.duration = math.Inf(1)
		m.frameCount = -1
		m.logger.Warn("movie-playback: could not query movie duration, assuming a live stream")
	}

	drop, maxBuffers := pipeline.QueuePolicy(opts.Async, m.fps, opts.Preload)
	m.sink.SetDrop(drop)
	m.sink.SetMaxBuffers(maxBuffers)

	if m.special.Has(SpecialPacked16) {
		m.bitDepth = 16
		if m.pixelFormat == PixelLuminance {
			m.height = m.height * 3 / 2
		} else {
			m.width /= 2
		}
		m.logger.Info("movie-playback: playing packed 16 bpc content", "channels", int(m.pixelFormat))
	}

	m.seekable = m.pl.Seekable()
	return nil
}

// readVideoProperties fills size, rate, colorimetry and HDR metadata from
// the decoder output caps, and the sink layout from the sink caps.
func (e *Engine) readVideoProperties(m *movie, mopts pipeline.MovieOptions) error {
	caps, ok := m.pl.CodecCaps()
	if !ok {
		m.logger.Warn("movie-playback: no decoder caps, movie properties unknown")
		return nil
	}
	info, err := videofmt.ParseCaps(caps)
	if err != nil {
		return fmt.Errorf("%w: decoder caps: %w", ErrOpenFailed, err)
	}

	m.width, m.height = info.Width, info.Height
	m.fps = info.FPS()
	m.aspect = info.AspectRatio()
	m.colorimetry = colorimetryOf(info, m.logger)
	if mopts.OverrideEOTF != nil {
		m.logger.Info("movie-playback: overriding transfer function",
			"detected", m.colorimetry.Transfer.String(),
			"override", mopts.OverrideEOTF.String(),
		)
		m.colorimetry.Transfer = *mopts.OverrideEOTF
	}

	if e.hdr != nil {
		md, err := e.hdr.ParseHDR(info)
		if err != nil {
			m.logger.Warn("movie-playback: ignoring malformed HDR metadata", "error", err)
		} else {
			m.hdr = md
		}
	}

	if sc, ok := m.pl.SinkCaps(); ok {
		sinfo, err := videofmt.ParseCaps(sc)
		if err != nil {
			m.logger.Warn("movie-playback: unparsable sink caps", "caps", sc, "error", err)
		} else if sinfo.Format != videofmt.FormatUnknown {
			m.sinkFormat = sinfo.Format
		}
	}
	if m.pixelFormat == PixelHDR {
		m.bitDepth = m.sinkFormat.Depth()
	}
	return nil
}

// tuneDecoder applies the thread and frame skipping settings. The decoder
// only accepts them in READY, so it is cycled down and back to PAUSED.
func (e *Engine) tuneDecoder(m *movie, opts OpenOptions) error {
	dec, ok := m.pl.Decoder()
	if !ok {
		return nil
	}
	threads := opts.MaxThreads != 0 && dec.SupportsThreads()
	skip := m.special.Has(SpecialSkipFrame) && dec.SupportsSkipFrame()
	if !threads && !skip {
		return nil
	}

	if !settleDecoder(dec, pipeline.StateReady, e.policy.PrerollTimeout) {
		return fmt.Errorf("decoder %s did not reach READY", dec.Name())
	}
	if skip {
		dec.SetSkipFrame(1)
	}
	if threads {
		n := opts.MaxThreads
		if n == AutoThreads {
			n = 0
		}
		dec.SetMaxThreads(n)
	}
	if !settleDecoder(dec, pipeline.StatePaused, e.policy.PrerollTimeout) {
		return fmt.Errorf("decoder %s did not return to PAUSED", dec.Name())
	}

	m.logger.Debug("movie-playback: decoder tuned",
		"decoder", dec.Name(),
		"max_threads", opts.MaxThreads,
		"skip_frame", skip,
	)
	return nil
}

func settleDecoder(dec pipeline.Decoder, target pipeline.State, timeout time.Duration) bool {
	if dec.SetState(target) == pipeline.StateChangeFailure {
		return false
	}
	return dec.WaitState(timeout) != pipeline.StateChangeFailure
}

// abandon releases a movie that never made it into the registry.
func (e *Engine) abandon(m *movie) {
	m.x.Close()
	if err := m.ctl.Shutdown(e.policy.DeleteTimeout); err != nil {
		m.logger.Debug("movie-playback: releasing failed movie", "error", err)
	}
}
