// Package pipelinetest provides an in-memory pipeline backend with scripted
// streams, for testing code built on package pipeline without a media
// framework installed.
//
// The fake models the parts of a playbin + appsink graph the engine relies
// on: preroll on PAUSED, a producer goroutine pushing samples while PLAYING,
// a bounded sink queue with optional dropping, flushing and segment seeks,
// single buffer steps, end of stream and a message bus.
package pipelinetest

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/e7canasta/movie-playback/internal/pipeline"
	"github.com/e7canasta/movie-playback/internal/videofmt"
)

// Stream describes the scripted media.
type Stream struct {
	Frames int
	FPS    float64
	Width  int
	Height int

	// PTS overrides the evenly spaced timestamps when set (len == Frames).
	PTS []time.Duration

	// Format is the codec output layout; defaults to I420.
	Format videofmt.Format
	// Colorimetry is the caps colorimetry string, e.g. "bt709" or "bt2100-pq".
	Colorimetry string
	// ExtraCaps are appended verbatim to the codec caps.
	ExtraCaps string

	AudioTracks int
	// NoVideo makes an audio-only movie.
	NoVideo bool

	UnknownDuration bool
	NotSeekable     bool
	// FrameSeek enables seeking in FormatDefault (frame index) units.
	FrameSeek bool

	// Interval paces the producer; 0 pushes as fast as the queue allows.
	Interval time.Duration

	// FailState makes SetState to this state fail, when non-nil.
	FailState *pipeline.State
	// AsyncState makes WaitState report StateChangeAsync.
	AsyncState bool
}

func (s Stream) pts(i int) time.Duration {
	if len(s.PTS) > 0 {
		return s.PTS[i]
	}
	return time.Duration(float64(i) / s.FPS * float64(time.Second))
}

func (s Stream) indexAt(t time.Duration) int {
	if s.Frames == 0 {
		return 0
	}
	if len(s.PTS) > 0 {
		i := sort.Search(len(s.PTS), func(i int) bool { return s.PTS[i] >= t })
		return clampIndex(i, s.Frames)
	}
	return clampIndex(int(math.Round(t.Seconds()*s.FPS)), s.Frames)
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

func (s Stream) format() videofmt.Format {
	if s.Format == videofmt.FormatUnknown {
		return videofmt.FormatI420
	}
	return s.Format
}

func (s Stream) caps(format videofmt.Format) string {
	num, den := int(math.Round(s.FPS*1000)), 1000
	caps := fmt.Sprintf("video/x-raw, format=(string)%s, width=(int)%d, height=(int)%d, "+
		"pixel-aspect-ratio=(fraction)1/1, framerate=(fraction)%d/%d",
		format, s.Width, s.Height, num, den)
	if s.Colorimetry != "" {
		caps += ", colorimetry=(string)" + s.Colorimetry
	}
	if s.ExtraCaps != "" {
		caps += ", " + s.ExtraCaps
	}
	return caps
}

// Backend builds fake pipelines over one scripted Stream.
type Backend struct {
	Stream Stream

	// Decoder is exposed by built pipelines when non-nil.
	Decoder *Decoder
	// NoHDR reports the HDR parsing capability as absent.
	NoHDR bool
	// BuildErr fails every Build.
	BuildErr error

	mu     sync.Mutex
	built  []*Pipeline
	config []pipeline.BuildConfig
}

// Name implements pipeline.Backend.
func (b *Backend) Name() string { return "pipelinetest" }

// Build implements pipeline.Backend.
func (b *Backend) Build(cfg pipeline.BuildConfig) (pipeline.Pipeline, error) {
	if b.BuildErr != nil {
		return nil, b.BuildErr
	}
	p := newPipeline(b.Stream, cfg, b.Decoder)

	b.mu.Lock()
	b.built = append(b.built, p)
	b.config = append(b.config, cfg)
	b.mu.Unlock()
	return p, nil
}

// HDRParser implements pipeline.Backend.
func (b *Backend) HDRParser() (pipeline.HDRParser, bool) {
	if b.NoHDR {
		return nil, false
	}
	return pipeline.CapsHDRParser{}, true
}

// Last returns the most recently built pipeline and its build config.
func (b *Backend) Last() (*Pipeline, pipeline.BuildConfig) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.built) == 0 {
		return nil, pipeline.BuildConfig{}
	}
	return b.built[len(b.built)-1], b.config[len(b.config)-1]
}

// Pipeline is the fake graph. It implements pipeline.Pipeline and
// pipeline.Sink.
type Pipeline struct {
	stream  Stream
	cfg     pipeline.BuildConfig
	decoder *Decoder

	mu   sync.Mutex
	cond *sync.Cond

	state   pipeline.State
	uri     string
	volume  float64
	muted   bool
	closed  bool
	running bool
	gen     int

	// Sink state.
	cb         pipeline.SinkCallbacks
	queue      []*Sample
	drop       bool
	maxBuffers int
	eos        bool
	dropped    int
	pullWait   time.Duration

	// Playback position.
	rate    float64
	next    int // next frame the producer emits
	pos     int // frame the position query reports
	segment bool

	seeks []pipeline.Seek
	steps int

	bus    []pipeline.Message
	notify chan struct{}
}

func newPipeline(s Stream, cfg pipeline.BuildConfig, dec *Decoder) *Pipeline {
	p := &Pipeline{
		stream:     s,
		cfg:        cfg,
		decoder:    dec,
		uri:        cfg.URI,
		volume:     1,
		drop:       cfg.Drop,
		maxBuffers: cfg.MaxBuffers,
		rate:       1,
		notify:     make(chan struct{}, 1),
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// SetState implements pipeline.Pipeline.
func (p *Pipeline) SetState(target pipeline.State) pipeline.StateChange {
	p.mu.Lock()
	if p.stream.FailState != nil && *p.stream.FailState == target {
		p.mu.Unlock()
		return pipeline.StateChangeFailure
	}

	prev := p.state
	p.state = target
	p.stopLocked()

	preroll := false
	switch target {
	case pipeline.StatePaused:
		preroll = prev < pipeline.StatePaused && !p.stream.NoVideo && p.stream.Frames > 0
	case pipeline.StatePlaying:
		p.startLocked()
	case pipeline.StateNull, pipeline.StateReady:
		p.queue = nil
		p.eos = false
		p.next, p.pos = 0, 0
	}
	cb := p.cb
	p.mu.Unlock()

	if preroll && cb.OnPreroll != nil {
		cb.OnPreroll()
	}
	if p.stream.AsyncState {
		return pipeline.StateChangeAsync
	}
	return pipeline.StateChangeSuccess
}

// WaitState implements pipeline.Pipeline.
func (p *Pipeline) WaitState(time.Duration) pipeline.StateChange {
	if p.stream.AsyncState {
		return pipeline.StateChangeAsync
	}
	return pipeline.StateChangeSuccess
}

// State returns the current state.
func (p *Pipeline) State() pipeline.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// stopLocked retires the running producer, if any.
func (p *Pipeline) stopLocked() {
	p.gen++
	p.running = false
	p.cond.Broadcast()
}

// startLocked launches the producer unless it runs or the stream ended.
func (p *Pipeline) startLocked() {
	if p.running || p.eos || p.closed || p.stream.NoVideo {
		return
	}
	p.running = true
	go p.produce(p.gen)
}

func (p *Pipeline) produce(gen int) {
	for {
		p.mu.Lock()
		for p.alive(gen) && !p.drop && p.maxBuffers > 0 && len(p.queue) >= p.maxBuffers {
			p.cond.Wait()
		}
		if !p.alive(gen) {
			p.mu.Unlock()
			return
		}

		if p.next < 0 || p.next >= p.stream.Frames {
			p.eos = true
			p.running = false
			kind := pipeline.MessageEOS
			if p.segment {
				kind = pipeline.MessageSegmentDone
			}
			p.postLocked(pipeline.Message{Type: kind, Source: "fake"})
			cb := p.cb
			p.cond.Broadcast()
			p.mu.Unlock()
			if cb.OnEOS != nil {
				cb.OnEOS()
			}
			return
		}

		s := p.sampleLocked(p.next)
		if p.rate < 0 {
			p.next--
		} else {
			p.next++
		}
		if p.maxBuffers > 0 && len(p.queue) >= p.maxBuffers {
			p.queue = p.queue[1:]
			p.dropped++
		}
		p.queue = append(p.queue, s)
		cb := p.cb
		finishing := p.rate > 0 && p.next == p.stream.Frames
		p.mu.Unlock()

		if cb.OnSample != nil {
			cb.OnSample()
		}
		if finishing && p.cfg.OnAboutToFinish != nil {
			p.cfg.OnAboutToFinish()
		}
		if p.stream.Interval > 0 {
			time.Sleep(p.stream.Interval)
		}
	}
}

func (p *Pipeline) alive(gen int) bool {
	return p.gen == gen && p.state == pipeline.StatePlaying && !p.closed
}

func (p *Pipeline) sampleLocked(i int) *Sample {
	format := p.stream.format()
	if len(p.cfg.SinkFormats) > 0 {
		format = p.cfg.SinkFormats[0]
	}
	return &Sample{
		index:    i,
		pts:      p.stream.pts(i),
		duration: time.Duration(float64(time.Second) / p.stream.FPS),
		caps:     p.stream.caps(format),
		width:    p.stream.Width,
		height:   p.stream.Height,
		format:   format,
	}
}

// Seek implements pipeline.Pipeline.
func (p *Pipeline) Seek(s pipeline.Seek) bool {
	p.mu.Lock()
	if p.stream.NotSeekable || p.stream.Frames == 0 {
		p.mu.Unlock()
		return false
	}
	if s.Format == pipeline.FormatDefault && !p.stream.FrameSeek {
		p.mu.Unlock()
		return false
	}
	p.seeks = append(p.seeks, s)

	toIndex := func(v int64) int {
		if s.Format == pipeline.FormatDefault {
			return clampIndex(int(v), p.stream.Frames)
		}
		return p.stream.indexAt(time.Duration(v))
	}

	rate := s.Rate
	if rate == 0 {
		rate = 1
	}
	p.rate = rate

	target := p.pos
	if rate > 0 {
		if s.StartType == pipeline.SeekTypeSet {
			target = toIndex(s.Start)
		}
	} else {
		switch s.StopType {
		case pipeline.SeekTypeSet:
			target = toIndex(s.Stop)
		case pipeline.SeekTypeEnd:
			target = p.stream.Frames - 1
		}
	}

	if s.Flags&pipeline.SeekFlush != 0 {
		p.queue = nil
	}
	p.segment = s.Flags&pipeline.SeekSegment != 0
	p.next, p.pos = target, target
	p.eos = false
	p.stopLocked()

	preroll := p.state == pipeline.StatePaused
	if p.state == pipeline.StatePlaying {
		p.startLocked()
	}
	cb := p.cb
	p.mu.Unlock()

	if preroll && cb.OnPreroll != nil {
		cb.OnPreroll()
	}
	return true
}

// Seeks returns the seeks received so far.
func (p *Pipeline) Seeks() []pipeline.Seek {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]pipeline.Seek, len(p.seeks))
	copy(out, p.seeks)
	return out
}

// Position implements pipeline.Pipeline.
func (p *Pipeline) Position(f pipeline.Format) (int64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stream.Frames == 0 {
		return 0, false
	}
	switch f {
	case pipeline.FormatTime:
		return int64(p.stream.pts(p.pos)), true
	case pipeline.FormatDefault:
		return int64(p.pos), true
	}
	return 0, false
}

// Duration implements pipeline.Pipeline.
func (p *Pipeline) Duration() (time.Duration, bool) {
	if p.stream.UnknownDuration || p.stream.FPS <= 0 {
		return 0, false
	}
	return time.Duration(float64(p.stream.Frames) / p.stream.FPS * float64(time.Second)), true
}

// Seekable implements pipeline.Pipeline.
func (p *Pipeline) Seekable() bool {
	return !p.stream.NotSeekable
}

// SetURI implements pipeline.Pipeline. Re-setting the URI while playing
// continues with the first frame once the current one runs out.
func (p *Pipeline) SetURI(uri string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.uri = uri
	if p.state == pipeline.StatePlaying && p.next >= p.stream.Frames {
		p.next = 0
	}
}

// URI returns the current URI.
func (p *Pipeline) URI() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.uri
}

// SetVolume implements pipeline.Pipeline.
func (p *Pipeline) SetVolume(volume float64, mute bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume, p.muted = volume, mute
}

// Volume returns the volume and mute state.
func (p *Pipeline) Volume() (float64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume, p.muted
}

// Post appends a message to the bus.
func (p *Pipeline) Post(m pipeline.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.postLocked(m)
}

func (p *Pipeline) postLocked(m pipeline.Message) {
	p.bus = append(p.bus, m)
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// PopMessage implements pipeline.Pipeline.
func (p *Pipeline) PopMessage(timeout time.Duration) *pipeline.Message {
	if m := p.pop(); m != nil || timeout <= 0 {
		return m
	}
	select {
	case <-p.notify:
	case <-time.After(timeout):
	}
	return p.pop()
}

func (p *Pipeline) pop() *pipeline.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.bus) == 0 {
		return nil
	}
	m := p.bus[0]
	p.bus = p.bus[1:]
	return &m
}

// Tracks implements pipeline.Pipeline.
func (p *Pipeline) Tracks() (video, audio int) {
	if p.stream.NoVideo {
		return 0, p.stream.AudioTracks
	}
	return 1, p.stream.AudioTracks
}

// VideoSink implements pipeline.Pipeline.
func (p *Pipeline) VideoSink() pipeline.Sink { return p }

// Decoder implements pipeline.Pipeline.
func (p *Pipeline) Decoder() (pipeline.Decoder, bool) {
	if p.decoder == nil {
		return nil, false
	}
	return p.decoder, true
}

// CodecCaps implements pipeline.Pipeline.
func (p *Pipeline) CodecCaps() (string, bool) {
	if p.stream.NoVideo {
		return "", false
	}
	return p.stream.caps(p.stream.format()), true
}

// SinkCaps implements pipeline.Pipeline.
func (p *Pipeline) SinkCaps() (string, bool) {
	if p.stream.NoVideo {
		return "", false
	}
	format := p.stream.format()
	if len(p.cfg.SinkFormats) > 0 {
		format = p.cfg.SinkFormats[0]
	}
	return p.stream.caps(format), true
}

// ErrNotNull is returned by Close on a pipeline that was not set to NULL.
var ErrNotNull = errors.New("pipelinetest: closing pipeline not in NULL state")

// Close implements pipeline.Pipeline.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errors.New("pipelinetest: already closed")
	}
	p.closed = true
	p.stopLocked()
	if p.state != pipeline.StateNull {
		return ErrNotNull
	}
	return nil
}

// Closed reports whether Close was called.
func (p *Pipeline) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// SetCallbacks implements pipeline.Sink.
func (p *Pipeline) SetCallbacks(cb pipeline.SinkCallbacks) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cb = cb
}

// PullSample implements pipeline.Sink. It never waits: an empty queue
// returns nil at once, which is what a real sink reports at the timeout.
func (p *Pipeline) PullSample(timeout time.Duration) pipeline.Sample {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pullWait = timeout
	if len(p.queue) == 0 {
		return nil
	}
	s := p.queue[0]
	p.queue = p.queue[1:]
	p.pos = s.index
	p.cond.Broadcast()
	return s
}

// PullPreroll implements pipeline.Sink.
func (p *Pipeline) PullPreroll(timeout time.Duration) pipeline.Sample {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pullWait = timeout
	if p.stream.Frames == 0 || p.stream.NoVideo {
		return nil
	}
	return p.sampleLocked(p.pos)
}

// PullWait returns the timeout passed to the last pull.
func (p *Pipeline) PullWait() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pullWait
}

// DiscardQueued empties the sink queue without notifying the callbacks, so
// buffers already announced can no longer be pulled. It returns how many
// were discarded.
func (p *Pipeline) DiscardQueued() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.queue)
	p.queue = nil
	p.cond.Broadcast()
	return n
}

// IsEOS implements pipeline.Sink: end of stream reached and queue drained.
func (p *Pipeline) IsEOS() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.eos && len(p.queue) == 0
}

// Drop implements pipeline.Sink.
func (p *Pipeline) Drop() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.drop
}

// SetDrop implements pipeline.Sink.
func (p *Pipeline) SetDrop(d bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.drop = d
	p.cond.Broadcast()
}

// MaxBuffers implements pipeline.Sink.
func (p *Pipeline) MaxBuffers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maxBuffers
}

// SetMaxBuffers implements pipeline.Sink.
func (p *Pipeline) SetMaxBuffers(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.maxBuffers = n
	p.cond.Broadcast()
}

// Step implements pipeline.Sink. Stepping past the last frame is accepted
// but neither moves the position nor prerolls.
func (p *Pipeline) Step(n uint64) bool {
	p.mu.Lock()
	if p.state != pipeline.StatePaused {
		p.mu.Unlock()
		return false
	}
	p.steps++
	target := p.pos + int(n)
	if target >= p.stream.Frames {
		p.mu.Unlock()
		return true
	}
	p.pos, p.next = target, target
	cb := p.cb
	p.mu.Unlock()

	if cb.OnPreroll != nil {
		cb.OnPreroll()
	}
	return true
}

// Steps returns the number of step requests received.
func (p *Pipeline) Steps() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.steps
}

// Dropped returns the number of samples the sink discarded on overflow.
func (p *Pipeline) Dropped() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped
}

// Sample is a fake decoded buffer with synthetic pixel data.
type Sample struct {
	index    int
	pts      time.Duration
	duration time.Duration
	caps     string
	width    int
	height   int
	format   videofmt.Format

	mu       sync.Mutex
	released bool
}

// PTS implements pipeline.Sample.
func (s *Sample) PTS() (time.Duration, bool) { return s.pts, true }

// Duration implements pipeline.Sample.
func (s *Sample) Duration() (time.Duration, bool) { return s.duration, s.duration > 0 }

// Offset implements pipeline.Sample.
func (s *Sample) Offset() uint64 { return uint64(s.index) }

// Caps implements pipeline.Sample.
func (s *Sample) Caps() string { return s.caps }

// Stride implements pipeline.Sample.
func (s *Sample) Stride() int {
	return s.format.Stride(s.width)
}

// Map implements pipeline.Sample. Every byte carries the low bits of the
// frame index, so tests can tell frames apart.
func (s *Sample) Map() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return nil, errors.New("pipelinetest: map after release")
	}
	l, ok := s.format.Layout()
	if !ok {
		return nil, fmt.Errorf("pipelinetest: no layout for %s", s.format)
	}
	size := s.Stride() * s.height
	if l.Planar {
		size = int(float64(size) * l.OverSize)
	}
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(s.index)
	}
	return data, nil
}

// Release implements pipeline.Sample.
func (s *Sample) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released = true
}

// Released reports whether Release was called.
func (s *Sample) Released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

// Decoder is a fake decoder recording its tuning.
type Decoder struct {
	Threads   bool
	SkipFrame bool

	mu         sync.Mutex
	maxThreads int
	skipMode   int
	states     []pipeline.State
}

// Name implements pipeline.Decoder.
func (d *Decoder) Name() string { return "fakedec0" }

// SupportsThreads implements pipeline.Decoder.
func (d *Decoder) SupportsThreads() bool { return d.Threads }

// SupportsSkipFrame implements pipeline.Decoder.
func (d *Decoder) SupportsSkipFrame() bool { return d.SkipFrame }

// SetMaxThreads implements pipeline.Decoder.
func (d *Decoder) SetMaxThreads(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.maxThreads = n
}

// SetSkipFrame implements pipeline.Decoder.
func (d *Decoder) SetSkipFrame(mode int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.skipMode = mode
}

// SetState implements pipeline.Decoder.
func (d *Decoder) SetState(s pipeline.State) pipeline.StateChange {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.states = append(d.states, s)
	return pipeline.StateChangeSuccess
}

// WaitState implements pipeline.Decoder.
func (d *Decoder) WaitState(time.Duration) pipeline.StateChange {
	return pipeline.StateChangeSuccess
}

// Tuning returns the recorded thread count, skip mode and state requests.
func (d *Decoder) Tuning() (maxThreads, skipMode int, states []pipeline.State) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.maxThreads, d.skipMode, append([]pipeline.State(nil), d.states...)
}
