package pipeline

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// Policy holds the controller timing constants.
type Policy struct {
	// DrainWindow bounds how long Drain(true) waits for a first message.
	DrainWindow time.Duration
	// DrainPoll is the polling granularity inside DrainWindow.
	DrainPoll time.Duration
}

// DefaultPolicy returns the built-in controller timing.
func DefaultPolicy() Policy {
	return Policy{
		DrainWindow: 2 * time.Second,
		DrainPoll:   10 * time.Millisecond,
	}
}

// MessageHook observes every bus message after the controller handled it.
// looped is true when the message triggered a loop seek.
type MessageHook func(msg Message, looped bool)

// Options configure a Controller.
type Options struct {
	Name   string
	Policy Policy
	Logger *slog.Logger
	Hook   MessageHook
}

// Controller owns one pipeline and applies the playback policy to it:
// bounded state changes, bus draining, loop rescheduling and error capture.
//
// Thread-safety:
//   - loop and rate are atomics: AboutToFinish runs on a streaming thread
//   - uri and lastErr are protected by mu
//   - everything else is called from the movie's consumer thread only
//
// The controller runs no goroutine of its own. Callers drain the bus
// (Drain) from every operation that needs timely error or EOS visibility.
type Controller struct {
	pl     Pipeline
	name   string
	policy Policy
	logger *slog.Logger
	hook   MessageHook

	loop atomic.Int32
	rate atomic.Uint64 // math.Float64bits

	mu      sync.Mutex
	uri     string
	lastErr *PlaybackError

	errors   atomic.Uint64
	warnings atomic.Uint64
	loops    atomic.Uint64
	eos      atomic.Uint64
}

// Build asks the backend for a pipeline and wraps it in a Controller. The
// controller's AboutToFinish is wired into cfg before the graph is built.
func Build(backend Backend, cfg BuildConfig, opts Options) (*Controller, error) {
	if backend == nil {
		return nil, fmt.Errorf("pipeline: no backend")
	}
	c := newController(cfg.URI, opts)
	cfg.OnAboutToFinish = c.AboutToFinish

	pl, err := backend.Build(cfg)
	if err != nil {
		return nil, fmt.Errorf("pipeline: build %s: %w", backend.Name(), err)
	}
	c.pl = pl
	return c, nil
}

func newController(uri string, opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	policy := opts.Policy
	if policy.DrainWindow <= 0 {
		policy.DrainWindow = DefaultPolicy().DrainWindow
	}
	if policy.DrainPoll <= 0 {
		policy.DrainPoll = DefaultPolicy().DrainPoll
	}
	return &Controller{
		name:   opts.Name,
		policy: policy,
		logger: logger,
		hook:   opts.Hook,
		uri:    uri,
	}
}

// Pipeline returns the controlled pipeline.
func (c *Controller) Pipeline() Pipeline {
	return c.pl
}

// URI returns the location currently scheduled for playback.
func (c *Controller) URI() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.uri
}

// Loop returns the active loop mode.
func (c *Controller) Loop() LoopMode {
	return LoopMode(c.loop.Load())
}

// SetLoop sets the loop mode used by the bus and about-to-finish reactions.
func (c *Controller) SetLoop(l LoopMode) {
	c.loop.Store(int32(l))
}

// Rate returns the current playback rate, 0 when stopped.
func (c *Controller) Rate() float64 {
	return math.Float64frombits(c.rate.Load())
}

// SetRate records the playback rate the reactions use. It does not seek.
func (c *Controller) SetRate(r float64) {
	c.rate.Store(math.Float64bits(r))
}

// SetState requests target and waits up to timeout for it to settle.
//
// A negative timeout returns right after the request. Only an explicit
// failure returns false: a transition still in progress at the timeout is
// logged and accepted.
func (c *Controller) SetState(target State, timeout time.Duration) bool {
	if ret := c.pl.SetState(target); ret == StateChangeFailure {
		c.logger.Error("pipeline: state change request failed",
			"movie", c.name,
			"target", target.String(),
		)
		return false
	}
	if timeout < 0 {
		return true
	}

	switch ret := c.pl.WaitState(timeout); ret {
	case StateChangeSuccess, StateChangeNoPreroll:
		c.logger.Debug("pipeline: state change completed",
			"movie", c.name,
			"target", target.String(),
			"result", ret.String(),
		)
		return true
	case StateChangeAsync:
		c.logger.Info("pipeline: state change still in progress",
			"movie", c.name,
			"target", target.String(),
			"timeout", timeout,
		)
		return true
	default:
		c.logger.Error("pipeline: state change failed",
			"movie", c.name,
			"target", target.String(),
		)
		return false
	}
}

// Drain handles every pending bus message and reports whether any was found.
// With wait set it first polls up to the drain window for one to arrive.
func (c *Controller) Drain(wait bool) bool {
	var msg *Message

	if wait {
		deadline := time.Now().Add(c.policy.DrainWindow)
		for msg == nil && time.Now().Before(deadline) {
			msg = c.pl.PopMessage(c.policy.DrainPoll)
		}
	} else {
		msg = c.pl.PopMessage(0)
	}

	worked := false
	for msg != nil {
		worked = true
		c.handle(*msg)
		msg = c.pl.PopMessage(0)
	}
	return worked
}

func (c *Controller) handle(msg Message) {
	looped := false

	switch msg.Type {
	case MessageEOS, MessageSegmentDone:
		if msg.Type == MessageEOS {
			c.eos.Add(1)
		}
		c.logger.Debug("pipeline: end of iteration",
			"movie", c.name,
			"message", msg.Type.String(),
		)
		looped = c.rewind(msg.Type)

	case MessageBuffering:
		c.logger.Info("pipeline: buffering",
			"movie", c.name,
			"percent", msg.Percent,
		)

	case MessageWarning:
		c.warnings.Add(1)
		c.logger.Warn("pipeline: warning",
			"movie", c.name,
			"source", msg.Source,
			"warning", msg.Text,
			"debug", msg.Debug,
		)

	case MessageError:
		c.errors.Add(1)
		category := msg.Category
		if category == ErrCategoryPipeline {
			category = ClassifyError(msg.Text, msg.Debug)
		}
		perr := &PlaybackError{
			Category: category,
			Source:   msg.Source,
			Message:  msg.Text,
			Debug:    msg.Debug,
		}
		msg.Category = category

		c.mu.Lock()
		c.lastErr = perr
		uri := c.uri
		c.mu.Unlock()

		c.logger.Error("pipeline: "+perr.Hint(),
			"movie", c.name,
			"location", uri,
			"source", msg.Source,
			"error", msg.Text,
			"debug", msg.Debug,
			"category", category.String(),
		)
	}

	if c.hook != nil {
		c.hook(msg, looped)
	}
}

// rewind performs the seek based loop at end of stream or segment.
func (c *Controller) rewind(kind MessageType) bool {
	loop := c.Loop()
	rate := c.Rate()
	if !loop.Has(LoopEnabled) || rate == 0 {
		return false
	}

	// Flushing an EOS'd pipeline is needed by some demuxers with audio.
	flags := SeekAccurate
	if kind == MessageEOS || loop.Has(LoopFlush) {
		flags |= SeekFlush
	}
	if loop.Has(LoopSegment) {
		flags |= SeekSegment
	}

	seek := Seek{Rate: rate, Format: FormatTime, Flags: flags}
	if rate > 0 {
		seek.StartType, seek.Start = SeekTypeSet, 0
		seek.StopType, seek.Stop = SeekTypeNone, -1
	} else {
		seek.StartType, seek.Start = SeekTypeNone, -1
		seek.StopType, seek.Stop = SeekTypeEnd, 0
	}

	if !c.pl.Seek(seek) {
		c.logger.Warn("pipeline: rewinding for loop failed",
			"movie", c.name,
			"rate", rate,
		)
		return false
	}
	c.loops.Add(1)
	return true
}

// AboutToFinish re-injects the current URI for gapless looping. Called
// from a streaming thread.
func (c *Controller) AboutToFinish() {
	if !c.Loop().Has(LoopGapless) || c.Rate() == 0 {
		return
	}
	uri := c.URI()
	c.pl.SetURI(uri)
	c.loops.Add(1)
	c.logger.Debug("pipeline: about to finish, rescheduling uri",
		"movie", c.name,
		"location", uri,
	)
}

// Queue schedules uri to play after the current one.
func (c *Controller) Queue(uri string) {
	c.mu.Lock()
	c.uri = uri
	c.mu.Unlock()
	c.pl.SetURI(uri)
}

// LastError returns the most recent bus error, nil if none.
func (c *Controller) LastError() *PlaybackError {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Shutdown forces the pipeline to NULL and releases it.
func (c *Controller) Shutdown(timeout time.Duration) error {
	c.SetRate(0)
	c.SetLoop(0)
	if !c.SetState(StateNull, timeout) {
		c.logger.Warn("pipeline: could not reach NULL before release", "movie", c.name)
	}
	c.Drain(false)
	return c.pl.Close()
}

// Stats is a snapshot of bus activity.
type Stats struct {
	Errors   uint64
	Warnings uint64
	Loops    uint64
	EOS      uint64
}

// Stats returns bus activity counters.
func (c *Controller) Stats() Stats {
	return Stats{
		Errors:   c.errors.Load(),
		Warnings: c.warnings.Load(),
		Loops:    c.loops.Load(),
		EOS:      c.eos.Load(),
	}
}
