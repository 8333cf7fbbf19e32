package gstreamer

import (
	"errors"
	"testing"
	"time"
	"unsafe"

	"github.com/e7canasta/movie-playback/internal/pipeline"
	"github.com/e7canasta/movie-playback/internal/videofmt"
	"github.com/stretchr/testify/assert"
	"github.com/tinyzimmer/go-glib/glib"
	"github.com/tinyzimmer/go-gst/gst"
)

// These tests cover the pure translation helpers; building a playbin needs
// a GStreamer runtime with plugins and is exercised by cmd/movie-probe.

func TestSinkCaps(t *testing.T) {
	tests := []struct {
		name    string
		formats []videofmt.Format
		want    string
	}{
		{"single", []videofmt.Format{videofmt.FormatBGRA}, "video/x-raw,format=(string)BGRA"},
		{"list", []videofmt.Format{videofmt.FormatI420, videofmt.FormatNV12}, "video/x-raw,format=(string){I420,NV12}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sinkCaps(tt.formats))
			t.Logf("✅ %s", sinkCaps(tt.formats))
		})
	}

	hdr := sinkCaps(videofmt.HDRFormats)
	assert.Contains(t, hdr, "P010_10LE")
	assert.Contains(t, hdr, "Y444_16LE")
}

func TestPlayFlagsArg(t *testing.T) {
	assert.Equal(t, "0", playFlagsArg(0))
	assert.Equal(t, "video+audio+soft-volume+deinterlace",
		playFlagsArg(pipeline.PlayVideo|pipeline.PlayAudio|pipeline.PlaySoftVolume|pipeline.PlayDeinterlace))
	assert.Equal(t, "video+download+buffering+force-sw-decoders",
		playFlagsArg(pipeline.PlayVideo|pipeline.PlayBuffering|pipeline.PlayDownload|pipeline.PlayForceSWDecoder))
}

func TestSeekTranslation(t *testing.T) {
	flags := toGstSeekFlags(pipeline.SeekFlush | pipeline.SeekAccurate | pipeline.SeekSegment)
	assert.Equal(t, gst.SeekFlagFlush|gst.SeekFlagAccurate|gst.SeekFlagSegment, flags)
	assert.Equal(t, gst.SeekFlagNone, toGstSeekFlags(0))

	assert.Equal(t, gst.SeekTypeEnd, toGstSeekType(pipeline.SeekTypeEnd))
	assert.Equal(t, gst.SeekTypeNone, toGstSeekType(pipeline.SeekTypeNone))
	assert.Equal(t, gst.FormatDefault, toGstFormat(pipeline.FormatDefault))
	assert.Equal(t, gst.FormatBuffers, toGstFormat(pipeline.FormatBuffers))
}

func TestStateTranslation(t *testing.T) {
	assert.Equal(t, gst.StatePaused, toGstState(pipeline.StatePaused))
	assert.Equal(t, gst.StateNull, toGstState(pipeline.State(42)))
	assert.Equal(t, gst.StatePlaying, toGstState(pipeline.StatePlaying))
}

func TestStateWaiter_Bounded(t *testing.T) {
	NewBackend(nil)
	sink, err := gst.NewElement("fakesink")
	if err != nil {
		t.Skipf("GStreamer core elements unavailable: %v", err)
	}
	w := newStateWaiter(sink)
	t.Cleanup(func() { w.request(gst.StateNull) })

	t.Run("synchronous transition", func(t *testing.T) {
		assert.Equal(t, pipeline.StateChangeSuccess, w.request(gst.StateReady))
		assert.Equal(t, pipeline.StateChangeSuccess, w.wait(time.Second))
	})

	t.Run("preroll that never arrives times out", func(t *testing.T) {
		// A sink without upstream data never completes PAUSED.
		w.request(gst.StatePaused)
		start := time.Now()
		assert.Equal(t, pipeline.StateChangeAsync, w.wait(50*time.Millisecond))
		elapsed := time.Since(start)
		assert.Less(t, elapsed, time.Second)
		t.Logf("✅ gave up after %v", elapsed.Round(time.Millisecond))
	})

	t.Run("async done ends a pending preroll", func(t *testing.T) {
		w.request(gst.StateReady)
		w.expectPreroll()
		assert.Equal(t, pipeline.StateChangeAsync, w.wait(20*time.Millisecond))

		assert.Equal(t, gst.BusPass, w.observe(gst.NewAsyncDoneMessage(sink, 0)))
		assert.Equal(t, pipeline.StateChangeSuccess, w.wait(time.Second))
	})

	t.Run("bus error fails the wait", func(t *testing.T) {
		w.expectPreroll()
		w.observe(gst.NewErrorMessage(sink, errors.New("decode failed"), "", nil))
		assert.Equal(t, pipeline.StateChangeFailure, w.wait(time.Second))

		w.request(gst.StateReady)
		assert.Equal(t, pipeline.StateChangeSuccess, w.wait(time.Second), "a new request clears the failure")
	})
}

func TestDecoder_PropertyTypes(t *testing.T) {
	NewBackend(nil)
	sink, err := gst.NewElement("fakesink")
	if err != nil {
		t.Skipf("GStreamer core elements unavailable: %v", err)
	}
	d := newDecoder(sink)

	tests := []struct {
		name     string
		property string
		want     glib.Type
		found    bool
	}{
		{"int property", "num-buffers", glib.TYPE_INT, true},
		{"enum property", "state-error", glib.TYPE_ENUM, true},
		{"wrong type", "num-buffers", glib.TYPE_ENUM, false},
		{"missing", "max-threads", glib.TYPE_INT, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.found, d.hasProperty(tt.property, tt.want))
		})
	}

	assert.False(t, d.SupportsThreads(), "fakesink has no max-threads")
	assert.False(t, d.SupportsSkipFrame(), "fakesink has no skip-frame")
	t.Logf("✅ decoder %s property lookup is type checked", d.Name())
}

func TestVideoMeta_Stride(t *testing.T) {
	if unsafe.Sizeof(uintptr(0)) == 8 {
		// GstMeta (16) + buffer (8) + six 32-bit fields (24) + offset[4] (32)
		assert.Equal(t, uintptr(80), unsafe.Offsetof(videoMeta{}.stride))
	}

	tests := []struct {
		name   string
		meta   *videoMeta
		want   int
		wantOK bool
	}{
		{"padded rows", &videoMeta{nPlanes: 1, width: 1918, stride: [4]int32{7680}}, 7680, true},
		{"planar uses first plane", &videoMeta{nPlanes: 3, stride: [4]int32{2048, 1024, 1024}}, 2048, true},
		{"no planes", &videoMeta{}, 0, false},
		{"negative stride", &videoMeta{nPlanes: 1, stride: [4]int32{-7680}}, 0, false},
		{"absent", nil, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.meta.planeStride()
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
