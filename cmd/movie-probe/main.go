package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	movieplayback "github.com/e7canasta/movie-playback"
	"github.com/e7canasta/movie-playback/internal/config"
	"github.com/e7canasta/movie-playback/internal/emitter"
	"github.com/e7canasta/movie-playback/internal/gstreamer"
)

// Version information
const version = "v0.1.0"

func main() {
	configPath := pflag.StringP("config", "c", "", "YAML configuration file (optional)")
	pixelFormat := pflag.IntP("pixel-format", "p", 4, "Texture pixel format (1-11)")
	special := pflag.Uint32("special", 0, "Special flags bitmask")
	preload := pflag.Float64("preload", 1, "Network preload seconds (-1 unlimited, -2 force download)")
	noDrop := pflag.Bool("no-drop", false, "Queue every decoded frame instead of dropping late ones")
	maxThreads := pflag.Int("max-threads", 0, "Decoder threads (0 default, -1 auto)")
	options := pflag.String("options", "", "Movie options string (AudioSink=<desc>:::, OverrideEOTF=<id>)")
	rate := pflag.Float64P("rate", "r", 1, "Playback rate (0 steps manually)")
	loop := pflag.Int("loop", 0, "Loop mode bitmask (0 plays once)")
	volume := pflag.Float64("volume", 1, "Audio volume (0 mutes)")
	seek := pflag.Float64("seek", -1, "Seek to this time in seconds before playing")
	maxFrames := pflag.IntP("max-frames", "n", 0, "Maximum frames to fetch (0 = until the movie ends)")
	timeout := pflag.Duration("timeout", 0, "Give up after this long (0 = no limit)")
	debug := pflag.Bool("debug", false, "Enable debug logging")
	jsonLogs := pflag.Bool("json", false, "Log as JSON")
	showVersion := pflag.Bool("version", false, "Show version and exit")
	pflag.Parse()

	if *showVersion {
		fmt.Printf("movie-probe %s\n", version)
		os.Exit(0)
	}

	if pflag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Error: exactly one movie location is required\n\n")
		fmt.Fprintf(os.Stderr, "Usage example:\n")
		fmt.Fprintf(os.Stderr, "  movie-probe /data/stimuli/intro.mp4\n")
		fmt.Fprintf(os.Stderr, "  movie-probe --pixel-format 11 --rate 0 -n 10 https://example.org/hdr.mkv\n\n")
		pflag.PrintDefaults()
		os.Exit(1)
	}
	location := pflag.Arg(0)

	// Set up logging
	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var handler slog.Handler = slog.NewTextHandler(os.Stdout, handlerOpts)
	if *jsonLogs {
		handler = slog.NewJSONHandler(os.Stdout, handlerOpts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if *timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		slog.Info("Shutdown signal received")
		cancel()
	}()

	events, err := emitter.New(ctx, cfg.Events, logger)
	if err != nil {
		log.Fatalf("Failed to connect event broker: %v", err)
	}
	recorder := &emitter.Recorder{}

	engine, err := movieplayback.New(cfg, gstreamer.NewBackend(logger),
		movieplayback.WithLogger(logger),
		movieplayback.WithEmitter(fanout{events, recorder}),
	)
	if err != nil {
		log.Fatalf("Failed to create engine: %v", err)
	}
	defer engine.Close()

	opts := movieplayback.OpenOptions{
		Preload:     *preload,
		Special:     movieplayback.SpecialFlags(*special),
		PixelFormat: movieplayback.PixelFormat(*pixelFormat),
		MaxThreads:  *maxThreads,
		Options:     *options,
	}
	if *noDrop {
		opts.Async |= movieplayback.AsyncNoFrameDrop
	}

	h, err := engine.Open(ctx, location, opts)
	if err != nil {
		log.Fatalf("Failed to open %s (%s): %v", location, movieplayback.KindOf(err), err)
	}

	info, err := engine.Info(h)
	if err != nil {
		log.Fatalf("Failed to query movie: %v", err)
	}
	printInfo(info)

	if hdr, err := engine.HDRMetadata(h); err == nil {
		printHDR(hdr)
	}

	if *seek >= 0 {
		if _, err := engine.SetTimeIndex(h, *seek, false); err != nil {
			log.Fatalf("Failed to seek: %v", err)
		}
	}

	if *rate != 0 {
		if _, err := engine.SetRate(h, *rate, movieplayback.LoopMode(*loop), *volume); err != nil {
			log.Fatalf("Failed to start playback: %v", err)
		}
	}

	fmt.Printf("Fetching frames...\n")
	fmt.Printf("Press Ctrl+C to stop gracefully\n")
	fmt.Printf("═══════════════════════════════════════════════════════════\n\n")

	start := time.Now()
	fetched, notReady := 0, 0
fetchLoop:
	for *maxFrames == 0 || fetched < *maxFrames {
		select {
		case <-ctx.Done():
			break fetchLoop
		default:
		}

		status, frame, err := engine.GetFrame(h, movieplayback.FetchBlocking, -1)
		if err != nil {
			if errors.Is(err, movieplayback.ErrInvalidHandle) {
				break fetchLoop
			}
			slog.Warn("Fetch failed", "error", err)
			continue
		}
		switch status {
		case movieplayback.StatusExhausted:
			break fetchLoop
		case movieplayback.StatusNotReady:
			notReady++
			continue
		}

		fetched++
		slog.Debug("Frame fetched",
			"pts", frame.PTS,
			"offset", frame.Offset,
			"bytes", len(frame.Texture.Data),
			"format", frame.Texture.InternalFormat,
			"planar", frame.Texture.Planar.String(),
		)
		frame.Release()
	}

	dropped := 0
	if *rate != 0 {
		dropped, _ = engine.SetRate(h, 0, 0, *volume)
	}

	final, err := engine.Info(h)
	if err != nil {
		log.Fatalf("Failed to query movie: %v", err)
	}
	printSummary(final, fetched, notReady, dropped, time.Since(start), recorder)
}

// fanout forwards events to the broker emitter and the local recorder.
type fanout []movieplayback.Emitter

func (f fanout) Emit(ev movieplayback.Event) {
	for _, e := range f {
		e.Emit(ev)
	}
}

func (f fanout) Close() error {
	var errs []error
	for _, e := range f {
		errs = append(errs, e.Close())
	}
	return errors.Join(errs...)
}

func printInfo(info movieplayback.MovieInfo) {
	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║                 Movie Probe %-8s                      ║\n", version)
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")
	fmt.Printf("Movie:\n")
	fmt.Printf("  Location:      %s\n", info.Location)
	fmt.Printf("  Handle:        %s (%s)\n", info.Handle, info.ID)
	fmt.Printf("  Duration:      %.3f s\n", info.Duration)
	fmt.Printf("  Frames:        %d\n", info.FrameCount)
	fmt.Printf("  FPS:           %.3f\n", info.FPS)
	fmt.Printf("  Size:          %dx%d (aspect %.3f)\n", info.Width, info.Height, info.AspectRatio)
	fmt.Printf("  Pixel Format:  %s, %d bpc\n", info.PixelFormat, info.BitDepth)
	fmt.Printf("  Tracks:        %d video, %d audio\n", info.VideoTracks, info.AudioTracks)
	fmt.Printf("  Seekable:      %v\n", info.Seekable)
	fmt.Printf("\n")
}

func printHDR(hdr movieplayback.HDRInfo) {
	fmt.Printf("Colorimetry:\n")
	fmt.Printf("  Colorimetry:   %s\n", hdr.Colorimetry)
	fmt.Printf("  EOTF:          %d\n", hdr.EOTFType)
	if hdr.Valid {
		fmt.Printf("  Luminance:     %.4f - %.1f nits\n", hdr.MinLuminance, hdr.MaxLuminance)
		fmt.Printf("  MaxFALL:       %.1f nits\n", hdr.MaxFrameAverageLightLevel)
		fmt.Printf("  MaxCLL:        %.1f nits\n", hdr.MaxContentLightLevel)
		fmt.Printf("  Sink:          %s, %d bpc\n", hdr.Format, hdr.Depth)
	}
	fmt.Printf("\n")
}

func printSummary(info movieplayback.MovieInfo, fetched, notReady, dropped int, elapsed time.Duration, rec *emitter.Recorder) {
	c := info.Cadence
	fmt.Printf("\n")
	fmt.Printf("╭─────────────────────────────────────────────────────────╮\n")
	fmt.Printf("│ Playback Summary (%s)\n", elapsed.Round(time.Millisecond))
	fmt.Printf("├─────────────────────────────────────────────────────────┤\n")
	fmt.Printf("│ Frames Fetched:     %6d frames\n", fetched)
	fmt.Printf("│ Not Ready:          %6d polls\n", notReady)
	fmt.Printf("│ Frames Dropped:     %6d frames\n", dropped)
	fmt.Printf("│ FPS Mean:           %6.2f fps\n", c.FPSMean)
	fmt.Printf("│ FPS Range:          %6.1f - %.1f fps\n", c.FPSMin, c.FPSMax)
	fmt.Printf("│ Jitter Mean:        %6.3f s\n", c.JitterMean)
	fmt.Printf("│ Loop Wraps:         %6d\n", c.Wraps)
	fmt.Printf("│ Stable:             %6v\n", c.IsStable)
	fmt.Printf("├─────────────────────────────────────────────────────────┤\n")
	fmt.Printf("│ Bus Errors:         %6d\n", info.BusErrors)
	fmt.Printf("│ Bus Warnings:       %6d\n", info.BusWarnings)
	fmt.Printf("│ Loops:              %6d\n", info.Loops)
	fmt.Printf("│ Events:             %6d\n", len(rec.Events()))
	fmt.Printf("╰─────────────────────────────────────────────────────────╯\n")

	if info.LastError != nil {
		fmt.Printf("\n⚠️  Last error: %v\n", info.LastError)
		if hint := info.LastError.Hint(); hint != "" {
			fmt.Printf("   Hint: %s\n", hint)
		}
	}
}
