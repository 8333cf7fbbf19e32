// Package gstreamer implements the pipeline backend on top of GStreamer
// playbin with an appsink video sink.
//
// Graph structure:
//
//	playbin(uri) → [decodebin → decoder → videoconvert] → appsink(caps=SinkFormats)
//	            ↘ audio-sink (optional custom description)
//
// playbin owns demuxing, decoder selection and deinterlacing; the appsink
// caps restrict the raw layouts so negotiation inserts the right converter.
package gstreamer

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/e7canasta/movie-playback/internal/pipeline"
	"github.com/e7canasta/movie-playback/internal/videofmt"
	"github.com/tinyzimmer/go-glib/glib"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

var initOnce sync.Once

// Backend builds playbin pipelines.
type Backend struct {
	logger *slog.Logger
}

// NewBackend initializes GStreamer (once per process) and returns a backend.
func NewBackend(logger *slog.Logger) *Backend {
	initOnce.Do(func() {
		gst.Init(nil)
	})
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{logger: logger}
}

// Name implements pipeline.Backend.
func (b *Backend) Name() string {
	return "gstreamer"
}

// HDRParser implements pipeline.Backend. Mastering display and content light
// level info travel as caps fields, which every supported GStreamer exposes.
func (b *Backend) HDRParser() (pipeline.HDRParser, bool) {
	return pipeline.CapsHDRParser{}, true
}

// Build implements pipeline.Backend.
//
// The graph is configured but NOT started (state remains NULL).
func (b *Backend) Build(cfg pipeline.BuildConfig) (pipeline.Pipeline, error) {
	playbin, err := gst.NewElement("playbin")
	if err != nil {
		return nil, fmt.Errorf("failed to create playbin: %w", err)
	}

	// GstPlayFlags is a flags type; a plain uint value would be rejected.
	playbin.SetArg("flags", playFlagsArg(cfg.Flags))
	playbin.SetProperty("uri", cfg.URI)

	if cfg.Buffering.Enabled {
		playbin.SetProperty("ring-buffer-max-size", cfg.Buffering.RingBufferMaxSize)
		if cfg.Buffering.Unlimited {
			playbin.SetProperty("buffer-size", int(^uint32(0)>>1))
		} else {
			playbin.SetProperty("buffer-duration", cfg.Buffering.Duration.Nanoseconds())
		}
		b.logger.Debug("gstreamer: network buffering enabled",
			"uri", cfg.URI,
			"ring_buffer_bytes", cfg.Buffering.RingBufferMaxSize,
			"duration", cfg.Buffering.Duration,
			"unlimited", cfg.Buffering.Unlimited,
		)
	}

	appsink, err := app.NewAppSink()
	if err != nil {
		return nil, fmt.Errorf("failed to create appsink: %w", err)
	}
	if len(cfg.SinkFormats) > 0 {
		appsink.SetCaps(gst.NewCapsFromString(sinkCaps(cfg.SinkFormats)))
	}
	appsink.SetDrop(cfg.Drop)
	appsink.SetMaxBuffers(uint(cfg.MaxBuffers))
	appsink.SetProperty("enable-last-sample", false)
	if err := setObjectProperty(playbin, "video-sink", appsink.Element); err != nil {
		return nil, fmt.Errorf("failed to attach appsink: %w", err)
	}

	if cfg.AudioSink != "" {
		audio, err := gst.NewBinFromString(cfg.AudioSink, true)
		if err != nil {
			return nil, fmt.Errorf("failed to create audio sink %q: %w", cfg.AudioSink, err)
		}
		if err := setObjectProperty(playbin, "audio-sink", audio.Element); err != nil {
			return nil, fmt.Errorf("failed to attach audio sink: %w", err)
		}
		b.logger.Info("gstreamer: using custom audio sink", "sink", cfg.AudioSink)
	}

	state := newStateWaiter(playbin)
	p := &Pipeline{
		playbin: playbin,
		bus:     playbin.GetBus(),
		sink:    &Sink{appsink: appsink, state: state},
		state:   state,
		logger:  b.logger,
	}
	p.bus.SetSyncHandler(state.observe)

	if cfg.OnAboutToFinish != nil {
		handle, err := playbin.Connect("about-to-finish", func(*gst.Element) {
			cfg.OnAboutToFinish()
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect about-to-finish: %w", err)
		}
		p.aboutToFinish = handle
		p.connected = true
	}

	b.logger.Debug("gstreamer: playbin created",
		"uri", cfg.URI,
		"flags", playFlagsArg(cfg.Flags),
		"sink_caps", sinkCaps(cfg.SinkFormats),
		"drop", cfg.Drop,
		"max_buffers", cfg.MaxBuffers,
	)
	return p, nil
}

// setObjectProperty sets an object-valued property. The value is typed with
// the property's declared GType, since glib rejects a plain GObject value for
// a narrower type such as GstElement.
func setObjectProperty(el *gst.Element, name string, obj *gst.Element) error {
	t, err := el.GetPropertyType(name)
	if err != nil {
		return err
	}
	v, err := glib.ValueInit(t)
	if err != nil {
		return err
	}
	v.SetInstance(obj.Native())
	return el.SetPropertyValue(name, v)
}

// sinkCaps builds the appsink caps restricting raw video to formats.
//
// Format: "video/x-raw,format=(string){BGRA,...}"
func sinkCaps(formats []videofmt.Format) string {
	if len(formats) == 1 {
		return fmt.Sprintf("video/x-raw,format=(string)%s", formats[0])
	}
	names := make([]string, len(formats))
	for i, f := range formats {
		names[i] = string(f)
	}
	return fmt.Sprintf("video/x-raw,format=(string){%s}", strings.Join(names, ","))
}

var playFlagNicks = []struct {
	flag pipeline.PlayFlags
	nick string
}{
	{pipeline.PlayVideo, "video"},
	{pipeline.PlayAudio, "audio"},
	{pipeline.PlayText, "text"},
	{pipeline.PlayVis, "vis"},
	{pipeline.PlaySoftVolume, "soft-volume"},
	{pipeline.PlayNativeAudio, "native-audio"},
	{pipeline.PlayNativeVideo, "native-video"},
	{pipeline.PlayDownload, "download"},
	{pipeline.PlayBuffering, "buffering"},
	{pipeline.PlayDeinterlace, "deinterlace"},
	{pipeline.PlaySoftColorBal, "soft-colorbalance"},
	{pipeline.PlayForceFilters, "force-filters"},
	{pipeline.PlayForceSWDecoder, "force-sw-decoders"},
}

// playFlagsArg renders flags in the "a+b+c" nick form the flags
// deserializer accepts.
func playFlagsArg(flags pipeline.PlayFlags) string {
	var nicks []string
	for _, f := range playFlagNicks {
		if flags&f.flag != 0 {
			nicks = append(nicks, f.nick)
		}
	}
	if len(nicks) == 0 {
		return "0"
	}
	return strings.Join(nicks, "+")
}
