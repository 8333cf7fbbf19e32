package gstreamer

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/e7canasta/movie-playback/internal/pipeline"
	"github.com/tinyzimmer/go-glib/glib"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// Pipeline adapts a playbin element to pipeline.Pipeline.
//
// Thread-safety:
//   - closed is protected by mu
//   - state synchronizes itself; it is fed from the bus sync handler
//   - everything else is immutable after Build, or only touched from the
//     movie's consumer thread
type Pipeline struct {
	playbin *gst.Element
	bus     *gst.Bus
	sink    *Sink
	state   *stateWaiter
	logger  *slog.Logger

	aboutToFinish glib.SignalHandle
	connected     bool

	mu     sync.Mutex
	closed bool
}

var _ pipeline.Pipeline = (*Pipeline)(nil)

func toGstState(s pipeline.State) gst.State {
	switch s {
	case pipeline.StateReady:
		return gst.StateReady
	case pipeline.StatePaused:
		return gst.StatePaused
	case pipeline.StatePlaying:
		return gst.StatePlaying
	default:
		return gst.StateNull
	}
}

// SetState implements pipeline.Pipeline.
func (p *Pipeline) SetState(s pipeline.State) pipeline.StateChange {
	ret := p.state.request(toGstState(s))
	if ret == pipeline.StateChangeFailure {
		p.logger.Debug("gstreamer: set state rejected", "target", s.String())
	}
	return ret
}

// WaitState implements pipeline.Pipeline.
func (p *Pipeline) WaitState(timeout time.Duration) pipeline.StateChange {
	return p.state.wait(timeout)
}

func toGstFormat(f pipeline.Format) gst.Format {
	switch f {
	case pipeline.FormatDefault:
		return gst.FormatDefault
	case pipeline.FormatBuffers:
		return gst.FormatBuffers
	default:
		return gst.FormatTime
	}
}

func toGstSeekType(t pipeline.SeekType) gst.SeekType {
	switch t {
	case pipeline.SeekTypeSet:
		return gst.SeekTypeSet
	case pipeline.SeekTypeEnd:
		return gst.SeekTypeEnd
	default:
		return gst.SeekTypeNone
	}
}

func toGstSeekFlags(f pipeline.SeekFlags) gst.SeekFlags {
	flags := gst.SeekFlagNone
	if f&pipeline.SeekFlush != 0 {
		flags |= gst.SeekFlagFlush
	}
	if f&pipeline.SeekAccurate != 0 {
		flags |= gst.SeekFlagAccurate
	}
	if f&pipeline.SeekKeyUnit != 0 {
		flags |= gst.SeekFlagKeyUnit
	}
	if f&pipeline.SeekSegment != 0 {
		flags |= gst.SeekFlagSegment
	}
	return flags
}

// Seek implements pipeline.Pipeline.
func (p *Pipeline) Seek(s pipeline.Seek) bool {
	ev := gst.NewSeekEvent(
		s.Rate,
		toGstFormat(s.Format),
		toGstSeekFlags(s.Flags),
		toGstSeekType(s.StartType), s.Start,
		toGstSeekType(s.StopType), s.Stop,
	)
	// A flushing seek prerolls again without leaving the current state.
	flush := s.Flags&pipeline.SeekFlush != 0
	if flush {
		p.state.expectPreroll()
	}
	if !p.playbin.SendEvent(ev) {
		if flush {
			p.state.cancelPreroll()
		}
		return false
	}
	return true
}

// Position implements pipeline.Pipeline.
func (p *Pipeline) Position(f pipeline.Format) (int64, bool) {
	ok, pos := p.playbin.QueryPosition(toGstFormat(f))
	return pos, ok
}

// Duration implements pipeline.Pipeline.
func (p *Pipeline) Duration() (time.Duration, bool) {
	ok, dur := p.playbin.QueryDuration(gst.FormatTime)
	if !ok || dur < 0 {
		return 0, false
	}
	return time.Duration(dur), true
}

// Seekable implements pipeline.Pipeline.
func (p *Pipeline) Seekable() bool {
	q := gst.NewSeekingQuery(gst.FormatTime)
	if !p.playbin.Query(q) {
		return false
	}
	_, seekable, _, _ := q.ParseSeeking()
	return seekable
}

// SetURI implements pipeline.Pipeline.
func (p *Pipeline) SetURI(uri string) {
	p.playbin.SetProperty("uri", uri)
}

// SetVolume implements pipeline.Pipeline.
func (p *Pipeline) SetVolume(volume float64, mute bool) {
	p.playbin.SetProperty("volume", volume)
	p.playbin.SetProperty("mute", mute)
}

// PopMessage implements pipeline.Pipeline.
func (p *Pipeline) PopMessage(timeout time.Duration) *pipeline.Message {
	msg := p.bus.TimedPop(timeout)
	if msg == nil {
		return nil
	}
	m := translateMessage(msg)
	return &m
}

// Tracks implements pipeline.Pipeline.
func (p *Pipeline) Tracks() (video, audio int) {
	return p.intProperty("n-video"), p.intProperty("n-audio")
}

func (p *Pipeline) intProperty(name string) int {
	v, err := p.playbin.GetProperty(name)
	if err != nil {
		p.logger.Debug("gstreamer: property query failed", "property", name, "error", err)
		return 0
	}
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case uint:
		return int(n)
	case uint32:
		return int(n)
	case int64:
		return int(n)
	default:
		return 0
	}
}

// VideoSink implements pipeline.Pipeline.
func (p *Pipeline) VideoSink() pipeline.Sink {
	return p.sink
}

// Decoder implements pipeline.Pipeline. It searches the running graph for
// the first element exposing decoder thread or frame skipping control, so it
// only finds something once the graph reached PAUSED.
func (p *Pipeline) Decoder() (pipeline.Decoder, bool) {
	bin := &gst.Bin{Element: p.playbin}
	elements, err := bin.GetElementsRecursive()
	if err != nil {
		return nil, false
	}
	for _, el := range elements {
		d := newDecoder(el)
		if d.SupportsThreads() || d.SupportsSkipFrame() {
			return d, true
		}
	}
	return nil, false
}

// CodecCaps implements pipeline.Pipeline.
func (p *Pipeline) CodecCaps() (string, bool) {
	if d, ok := p.Decoder(); ok {
		if pad := d.(*Decoder).element.GetStaticPad("src"); pad != nil {
			if caps := pad.GetCurrentCaps(); caps != nil {
				return caps.String(), true
			}
		}
	}
	pad := p.sink.appsink.GetStaticPad("sink")
	if pad == nil {
		return "", false
	}
	peer := pad.GetPeer()
	if peer == nil {
		return "", false
	}
	caps := peer.GetCurrentCaps()
	if caps == nil {
		return "", false
	}
	return caps.String(), true
}

// SinkCaps implements pipeline.Pipeline.
func (p *Pipeline) SinkCaps() (string, bool) {
	pad := p.sink.appsink.GetStaticPad("sink")
	if pad == nil {
		return "", false
	}
	caps := pad.GetCurrentCaps()
	if caps == nil {
		return "", false
	}
	return caps.String(), true
}

// Close implements pipeline.Pipeline.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return fmt.Errorf("gstreamer: pipeline already closed")
	}
	if target := p.state.pendingTarget(); target != gst.StateNull {
		return fmt.Errorf("gstreamer: close with pending state %s, want NULL", target)
	}
	if p.connected {
		p.playbin.HandlerDisconnect(p.aboutToFinish)
		p.connected = false
	}
	p.sink.appsink.SetCallbacks(&app.SinkCallbacks{})
	p.closed = true
	return nil
}
