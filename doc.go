// Package movieplayback is a movie playback engine for stimulus presentation:
// it opens video files or streams, drives one decode pipeline per movie and
// hands decoded frames, with their presentation timestamps, to a texture
// consumer that uploads and draws them.
//
// # Quick Start
//
//	cfg := config.Default()
//	engine, err := movieplayback.New(cfg, gstreamer.NewBackend(logger),
//	    movieplayback.WithLogger(logger),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Close()
//
//	h, err := engine.Open(ctx, "/data/stimuli/intro.mp4", movieplayback.OpenOptions{
//	    PixelFormat: movieplayback.PixelRGBA,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	engine.SetRate(h, 1, 0, 1) // play once at normal speed, full volume
//	for {
//	    status, frame, err := engine.GetFrame(h, movieplayback.FetchBlocking, -1)
//	    if err != nil || status == movieplayback.StatusExhausted {
//	        break
//	    }
//	    if status == movieplayback.StatusReady {
//	        upload(frame.Texture)
//	        frame.Release()
//	    }
//	}
//
// # Architecture
//
//	Open ──► registry slot ──► pipeline.Controller ──► Backend graph
//	                                   │                  │ streaming thread
//	                                   │ bus drain        ▼
//	GetFrame ◄── exchange.Exchange ◄── sink callbacks (frame / preroll / eos)
//	   │
//	   └──► TextureDescriptor (+ eotf.Program for HDR planar YUV)
//
// Each open movie owns one pipeline, one frame exchange and one bus. The
// engine runs no goroutine of its own per movie: every public operation
// drains pending bus messages, so errors, end of stream and loop rewinds are
// handled at the next call.
//
// # Fetch Modes
//
//   - FetchPoll: report immediately whether a frame is ready
//   - FetchWait: like FetchPoll, but wait up to the fetch wait policy first
//   - FetchBlocking: wait up to the fetch wait policy, then pull one frame
//
// NotReady is never an error: callers retry against their own deadline.
// Exhausted means the movie ended without looping (playback) or a manual step
// no longer advances (rate 0).
//
// # Manual Stepping
//
// At rate 0 the pipeline stays PAUSED. Every fetched frame is the current
// preroll buffer, after which the video sink alone is stepped one buffer.
//
// # Thread Safety
//
// Management operations (Open, Delete, DeleteAll, Close) and per-movie
// operations may be called from any goroutine. Operations on one movie are
// serialized; pipeline streaming threads only touch the frame exchange.
package movieplayback
