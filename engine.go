package movieplayback

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/e7canasta/movie-playback/internal/colormath"
	"github.com/e7canasta/movie-playback/internal/config"
	"github.com/e7canasta/movie-playback/internal/emitter"
	"github.com/e7canasta/movie-playback/internal/eotf"
	"github.com/e7canasta/movie-playback/internal/exchange"
	"github.com/e7canasta/movie-playback/internal/pipeline"
	"github.com/e7canasta/movie-playback/internal/playstats"
	"github.com/e7canasta/movie-playback/internal/registry"
	"github.com/e7canasta/movie-playback/internal/videofmt"
)

// Engine implements MoviePlayer on top of a pipeline backend.
//
// Thread-safety:
//   - movies is a registry with its own lock
//   - each movie is serialized by its own mutex, held for the whole of a
//     per-movie operation
//   - closed is atomic
//   - everything else is immutable after New
type Engine struct {
	cfg     *config.Config
	policy  config.Policy
	backend pipeline.Backend
	hdr     pipeline.HDRParser

	display    eotf.Display
	caps       pipeline.GfxCaps
	profile    eotf.Profile
	maxTexture int

	renderer Renderer
	clock    Clock
	events   emitter.Emitter
	logger   *slog.Logger

	movies *registry.Registry[movie]
	closed atomic.Bool
}

// movie is one registry slot. All fields are guarded by mu; the pipeline's
// streaming threads only ever reach x.
type movie struct {
	mu      sync.Mutex
	deleted bool

	handle   Handle
	id       string
	location string
	logger   *slog.Logger

	ctl  *pipeline.Controller
	pl   pipeline.Pipeline
	sink pipeline.Sink
	x    *exchange.Exchange

	special     SpecialFlags
	pixelFormat PixelFormat
	sinkFormat  videofmt.Format
	bitDepth    int
	colorimetry videofmt.Colorimetry
	hdr         videofmt.HDRMetadata

	width, height int
	fps           float64
	aspect        float64
	duration      float64
	frameCount    int
	videoTracks   int
	audioTracks   int
	seekable      bool

	startPending bool
	endOfFetch   bool
	lastPTS      float64
	dropped      int
	volume       float64

	cachedTexture uint32
	program       *eotf.Program
	programID     uint32
	// scratch holds swizzled or debayered pixels of the current frame.
	scratch []byte

	cadence *playstats.Window
}

// Option configures an Engine.
type Option func(*Engine)

// WithRenderer attaches the GPU side collaborator.
func WithRenderer(r Renderer) Option {
	return func(e *Engine) { e.renderer = r }
}

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// Emitter receives playback lifecycle events.
type Emitter = emitter.Emitter

// Event is one playback lifecycle notification.
type Event = emitter.Event

// WithEmitter publishes lifecycle events to em. The engine closes em on Close.
func WithEmitter(em Emitter) Option {
	return func(e *Engine) { e.events = em }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// Display describes the target window.
type Display = config.Display

// WithDisplay overrides the configured display description.
func WithDisplay(d Display) Option {
	return func(e *Engine) { e.cfg.Display = d }
}

// New creates an engine playing through backend. A nil cfg means
// config.Default().
func New(cfg *Config, backend pipeline.Backend, opts ...Option) (*Engine, error) {
	if backend == nil {
		return nil, fmt.Errorf("%w: no pipeline backend", ErrConfiguration)
	}
	if cfg == nil {
		cfg = config.Default()
	}
	// Options may replace the display, so work on a copy.
	c := *cfg
	e := &Engine{
		cfg:     &c,
		backend: backend,
		clock:   wallClock{},
		events:  emitter.Nop{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}

	if err := config.Validate(e.cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	e.policy = e.cfg.Policy

	d := e.cfg.Display
	gamut := colormath.GamutFromSlice(d.Gamut)
	if gamut.IsSet() {
		if _, err := gamut.ToXYZ(); err != nil {
			return nil, fmt.Errorf("%w: display gamut: %w", ErrConfiguration, err)
		}
	}
	e.display = eotf.Display{
		Gamut:                gamut,
		HDR:                  d.HDR,
		NormalizedToHDRScale: d.HDRScale,
		MaxSDRToHDRScale:     d.SDRScale,
	}
	e.caps = d.GfxCaps()
	e.maxTexture = d.MaxTextureSize
	profile, err := eotf.ParseProfile(d.ShaderProfile)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	e.profile = profile

	if e.cfg.HDRMetadata != "off" {
		if p, ok := backend.HDRParser(); ok {
			e.hdr = p
		}
	}

	e.movies = registry.New[movie](e.policy.MaxMovies)

	e.logger.Info("movie-playback: engine ready",
		"backend", backend.Name(),
		"max_movies", e.policy.MaxMovies,
		"gfx_caps", e.caps.String(),
		"hdr_display", d.HDR,
		"hdr_metadata", e.hdr != nil,
		"shader_profile", e.profile.String(),
	)
	return e, nil
}

// acquire returns the locked movie addressed by h. The caller must unlock.
func (e *Engine) acquire(h Handle) (*movie, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	m, err := e.movies.Get(h)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidHandle, h)
	}
	m.mu.Lock()
	if m.deleted {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrInvalidHandle, h)
	}
	return m, nil
}

// Count returns the number of open movies.
func (e *Engine) Count() int {
	return e.movies.Len()
}

// Info returns the movie properties and playback counters.
func (e *Engine) Info(h Handle) (MovieInfo, error) {
	m, err := e.acquire(h)
	if err != nil {
		return MovieInfo{}, err
	}
	defer m.mu.Unlock()

	m.ctl.Drain(false)
	st := m.ctl.Stats()
	return MovieInfo{
		Handle:      m.handle,
		ID:          m.id,
		Location:    m.location,
		Duration:    m.duration,
		FrameCount:  m.frameCount,
		FPS:         m.fps,
		Width:       m.width,
		Height:      m.height,
		AspectRatio: m.aspect,
		BitDepth:    m.bitDepth,
		PixelFormat: m.pixelFormat,
		VideoTracks: m.videoTracks,
		AudioTracks: m.audioTracks,
		Seekable:    m.seekable,
		Rate:        m.ctl.Rate(),
		Loop:        m.ctl.Loop(),
		Dropped:     m.dropped,
		LastError:   m.ctl.LastError(),
		Cadence:     m.cadence.Stats(),
		BusErrors:   st.Errors,
		BusWarnings: st.Warnings,
		Loops:       st.Loops,
	}, nil
}

// Queue schedules location to play gaplessly after the current one.
func (e *Engine) Queue(h Handle, location string) error {
	if location == "" {
		return fmt.Errorf("%w: empty location", ErrInvalidArgument)
	}
	m, err := e.acquire(h)
	if err != nil {
		return err
	}
	defer m.mu.Unlock()

	m.ctl.Queue(pipeline.BuildURI(location))
	m.ctl.Drain(false)
	m.logger.Info("movie-playback: next movie queued", "next", location)
	return nil
}

// Delete stops and releases a movie.
func (e *Engine) Delete(h Handle) error {
	if e.closed.Load() {
		return ErrClosed
	}
	return e.delete(h)
}

func (e *Engine) delete(h Handle) error {
	m, err := e.movies.Free(h)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidHandle, h)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = true
	return e.teardown(m)
}

// teardown releases everything a movie owns. Called with m.mu held.
func (e *Engine) teardown(m *movie) error {
	m.x.Close()
	err := m.ctl.Shutdown(e.policy.DeleteTimeout)

	if e.renderer != nil {
		if m.cachedTexture != 0 {
			e.renderer.DeleteTexture(m.cachedTexture)
		}
		if m.programID != 0 {
			e.renderer.DeleteProgram(m.programID)
		}
	}
	m.cachedTexture, m.programID, m.program = 0, 0, nil
	m.scratch = nil

	xs := m.x.Stats()
	m.logger.Info("movie-playback: movie deleted",
		"frames_announced", xs.TotalFrames,
		"frames_fetched", xs.TotalClaimed,
		"frames_skipped", xs.TotalSkipped,
		"dropped", m.dropped,
	)
	e.emit(m, Event{Type: emitter.EventDeleted, Dropped: m.dropped})

	if err != nil {
		return fmt.Errorf("movie-playback: release %s: %w", m.handle, err)
	}
	return nil
}

// DeleteAll releases every open movie.
func (e *Engine) DeleteAll() {
	for _, h := range e.movies.Handles() {
		if err := e.delete(h); err != nil && !errors.Is(err, ErrInvalidHandle) {
			e.logger.Warn("movie-playback: delete failed", "handle", h.String(), "error", err)
		}
	}
}

// Close releases every movie and the event emitter. Later calls return
// ErrClosed.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	n := e.movies.Len()
	e.DeleteAll()
	e.logger.Info("movie-playback: engine closed", "movies_released", n)
	return e.events.Close()
}
