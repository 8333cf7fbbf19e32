package pipeline

import (
	"math"
	"testing"
	"time"

	"github.com/e7canasta/movie-playback/internal/videofmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildURI(t *testing.T) {
	tests := []struct {
		name, want string
	}{
		{"/home/user/movies/demo.mov", "file:///home/user/movies/demo.mov"},
		{"relative/demo.mov", "file:///relative/demo.mov"},
		{"http://example.com/trailer.mp4", "http://example.com/trailer.mp4"},
		{"rtsp://camera.local/stream", "rtsp://camera.local/stream"},
		{"v4l2:///dev/video0", "v4l2:///dev/video0"},
		{"v4l2src", "file:///v4l2src"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildURI(tt.name))
		})
	}
}

func TestPlayFlagsFor(t *testing.T) {
	tests := []struct {
		name    string
		special SpecialFlags
		preload float64
		movie   string
		want    PlayFlags
	}{
		{"defaults", 0, 1, "a.mov", PlayVideo | PlayDeinterlace | PlayAudio | PlaySoftVolume},
		{"no_audio", SpecialNoAudio, 0, "a.mov", PlayVideo | PlayDeinterlace},
		{"no_deinterlace_sw", SpecialNoDeinterlace | SpecialSoftwareDecode, 1, "a.mov",
			PlayVideo | PlayAudio | PlaySoftVolume | PlayForceSWDecoder},
		{"buffering_download", SpecialNoAudio, 5, "a.mov", PlayVideo | PlayDeinterlace | PlayBuffering | PlayDownload},
		{"buffering_webm", SpecialNoAudio, 5, "a.webm", PlayVideo | PlayDeinterlace | PlayBuffering},
		{"buffering_webm_forced", SpecialNoAudio, -2, "a.webm", PlayVideo | PlayDeinterlace | PlayBuffering | PlayDownload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PlayFlagsFor(tt.special, tt.preload, tt.movie))
		})
	}
}

func TestBufferingFor(t *testing.T) {
	assert.False(t, BufferingFor(0, 10*time.Second).Enabled)
	assert.False(t, BufferingFor(1, 10*time.Second).Enabled)

	b := BufferingFor(5, 10*time.Second)
	assert.True(t, b.Enabled)
	assert.Equal(t, 5*time.Second, b.Duration)
	assert.Equal(t, uint64(20e6), b.RingBufferMaxSize)

	b = BufferingFor(-2, 10*time.Second)
	assert.Equal(t, 10*time.Second, b.Duration, "-2 maps to the default preload")

	b = BufferingFor(-1, 10*time.Second)
	assert.True(t, b.Unlimited)
	assert.Equal(t, uint64(math.MaxUint32), b.RingBufferMaxSize)
}

func TestQueuePolicy(t *testing.T) {
	drop, max := QueuePolicy(0, 30, 1)
	assert.True(t, drop)
	assert.Equal(t, 1, max)

	drop, max = QueuePolicy(AsyncNoFrameDrop, 30, 2)
	assert.False(t, drop)
	assert.Equal(t, 61, max)

	_, max = QueuePolicy(AsyncNoFrameDrop, 0, 2)
	assert.Equal(t, 0, max, "unknown fps means unlimited")

	_, max = QueuePolicy(AsyncNoFrameDrop, 30, -1)
	assert.Equal(t, 0, max)
}

func TestParseOptions(t *testing.T) {
	opts, err := ParseOptions("AudioSink=pulsesink device=hdmi:::OverrideEOTF=14", PixelHDR)
	require.NoError(t, err)
	assert.Equal(t, "pulsesink device=hdmi", opts.AudioSink)
	require.NotNil(t, opts.OverrideEOTF)
	assert.Equal(t, videofmt.Transfer(14), *opts.OverrideEOTF)

	opts, err = ParseOptions("", PixelRGBA)
	require.NoError(t, err)
	assert.Empty(t, opts.AudioSink)
	assert.Nil(t, opts.OverrideEOTF)

	_, err = ParseOptions("OverrideEOTF=14", PixelRGBA)
	assert.ErrorIs(t, err, ErrInvalidOption, "only allowed for HDR decode")

	_, err = ParseOptions("OverrideEOTF=pq", PixelHDR)
	assert.ErrorIs(t, err, ErrInvalidOption)
}

func TestNormalizeLoop(t *testing.T) {
	tests := []struct {
		loop    LoopMode
		special SpecialFlags
		want    LoopMode
	}{
		{-1, SpecialLoopGapless, 0},
		{0, 0, 0},
		{1, 0, LoopEnabled},
		{1, SpecialLoopGapless, LoopGapless},
		{1, SpecialLoopSegment | SpecialLoopFlush, LoopEnabled | LoopSegment | LoopFlush},
		{5, SpecialLoopGapless, 5},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeLoop(tt.loop, tt.special), "loop=%d special=%d", tt.loop, tt.special)
	}
}
