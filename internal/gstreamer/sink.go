package gstreamer

import (
	"errors"
	"sync"
	"time"
	"unsafe"

	"github.com/e7canasta/movie-playback/internal/pipeline"
	"github.com/e7canasta/movie-playback/internal/videofmt"
	"github.com/tinyzimmer/go-glib/glib"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// Sink adapts an appsink to pipeline.Sink.
type Sink struct {
	appsink *app.Sink
	state   *stateWaiter
}

var _ pipeline.Sink = (*Sink)(nil)

// SetCallbacks implements pipeline.Sink.
//
// The appsink callbacks only notify; buffers stay queued in the appsink until
// the consumer pulls them, so FlowOK is returned without touching the sample.
func (s *Sink) SetCallbacks(cb pipeline.SinkCallbacks) {
	callbacks := &app.SinkCallbacks{}
	if cb.OnSample != nil {
		callbacks.NewSampleFunc = func(*app.Sink) gst.FlowReturn {
			cb.OnSample()
			return gst.FlowOK
		}
	}
	if cb.OnPreroll != nil {
		callbacks.NewPrerollFunc = func(*app.Sink) gst.FlowReturn {
			cb.OnPreroll()
			return gst.FlowOK
		}
	}
	if cb.OnEOS != nil {
		callbacks.EOSFunc = func(*app.Sink) {
			cb.OnEOS()
		}
	}
	s.appsink.SetCallbacks(callbacks)
}

// PullSample implements pipeline.Sink.
func (s *Sink) PullSample(timeout time.Duration) pipeline.Sample {
	sample := s.appsink.TryPullSample(timeout)
	if sample == nil {
		return nil
	}
	return newSample(sample)
}

// PullPreroll implements pipeline.Sink.
func (s *Sink) PullPreroll(timeout time.Duration) pipeline.Sample {
	sample := s.appsink.TryPullPreroll(timeout)
	if sample == nil {
		return nil
	}
	return newSample(sample)
}

// IsEOS implements pipeline.Sink.
func (s *Sink) IsEOS() bool {
	return s.appsink.IsEOS()
}

// Drop implements pipeline.Sink.
func (s *Sink) Drop() bool {
	return s.appsink.GetDrop()
}

// SetDrop implements pipeline.Sink.
func (s *Sink) SetDrop(drop bool) {
	s.appsink.SetDrop(drop)
}

// MaxBuffers implements pipeline.Sink.
func (s *Sink) MaxBuffers() int {
	return int(s.appsink.GetMaxBuffers())
}

// SetMaxBuffers implements pipeline.Sink.
func (s *Sink) SetMaxBuffers(n int) {
	if n < 0 {
		n = 0
	}
	s.appsink.SetMaxBuffers(uint(n))
}

// Step implements pipeline.Sink. The step event goes to the video sink only,
// so audio is left alone while single-stepping.
func (s *Sink) Step(n uint64) bool {
	s.state.expectPreroll()
	if !s.appsink.SendEvent(gst.NewStepEvent(gst.FormatBuffers, n, 1.0, true, false)) {
		s.state.cancelPreroll()
		return false
	}
	return true
}

// Sample wraps a pulled appsink sample.
//
// Thread-safety: Map and Release may be called from different goroutines
// (the texture worker maps, the consumer releases); mu serializes them.
type Sample struct {
	sample *gst.Sample
	buffer *gst.Buffer
	caps   string

	mu     sync.Mutex
	mapped bool
}

var _ pipeline.Sample = (*Sample)(nil)

func newSample(sample *gst.Sample) *Sample {
	s := &Sample{
		sample: sample,
		buffer: sample.GetBuffer(),
	}
	if caps := sample.GetCaps(); caps != nil {
		s.caps = caps.String()
	}
	return s
}

// PTS implements pipeline.Sample.
func (s *Sample) PTS() (time.Duration, bool) {
	if s.buffer == nil {
		return 0, false
	}
	pts := time.Duration(s.buffer.PresentationTimestamp())
	if pts < 0 {
		return 0, false
	}
	return pts, true
}

// Duration implements pipeline.Sample.
func (s *Sample) Duration() (time.Duration, bool) {
	if s.buffer == nil {
		return 0, false
	}
	d := time.Duration(s.buffer.Duration())
	if d < 0 {
		return 0, false
	}
	return d, true
}

// Offset implements pipeline.Sample.
func (s *Sample) Offset() uint64 {
	if s.buffer == nil {
		return 0
	}
	return uint64(s.buffer.Offset())
}

// Caps implements pipeline.Sample.
func (s *Sample) Caps() string {
	return s.caps
}

// Stride implements pipeline.Sample. Decoders that pad rows attach a video
// meta carrying the real pitch; without one the caps layout applies.
func (s *Sample) Stride() int {
	if stride, ok := s.metaStride(); ok {
		return stride
	}
	info, err := videofmt.ParseCaps(s.caps)
	if err != nil {
		return 0
	}
	return info.Format.Stride(info.Width)
}

// Map implements pipeline.Sample.
func (s *Sample) Map() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.buffer == nil {
		return nil, errors.New("gstreamer: sample without buffer")
	}
	info := s.buffer.Map(gst.MapRead)
	if info == nil {
		return nil, errors.New("gstreamer: failed to map buffer")
	}
	s.mapped = true
	data := info.Bytes()
	if len(data) == 0 {
		return nil, errors.New("gstreamer: empty buffer")
	}
	return data, nil
}

// Release implements pipeline.Sample.
func (s *Sample) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mapped {
		s.buffer.Unmap()
		s.mapped = false
	}
	s.buffer = nil
	s.sample = nil
}

// videoMeta mirrors GstVideoMeta up to its stride array
// (gst/video/gstvideometa.h). go-gst has no binding for it.
type videoMeta struct {
	metaFlags uint32
	metaInfo  uintptr
	buffer    uintptr
	flags     uint32
	format    int32
	id        uint32
	width     uint32
	height    uint32
	nPlanes   uint32
	offset    [4]uintptr
	stride    [4]int32
}

// planeStride returns the pitch of the first plane.
func (vm *videoMeta) planeStride() (int, bool) {
	if vm == nil || vm.nPlanes == 0 || vm.stride[0] <= 0 {
		return 0, false
	}
	return int(vm.stride[0]), true
}

func (s *Sample) metaStride() (int, bool) {
	if s.buffer == nil {
		return 0, false
	}
	// Registered by the video library once a video element loads.
	api := glib.TypeFromName("GstVideoMetaAPI")
	if api == glib.TYPE_INVALID {
		return 0, false
	}
	meta := s.buffer.GetMeta(api)
	if meta == nil {
		return 0, false
	}
	return (*videoMeta)(unsafe.Pointer(meta.Instance())).planeStride()
}
