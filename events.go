package movieplayback

import (
	"context"
	"log/slog"

	"github.com/e7canasta/movie-playback/internal/emitter"
	"github.com/e7canasta/movie-playback/internal/pipeline"
)

// emit fills the movie identity into ev and hands it to the emitter.
func (e *Engine) emit(m *movie, ev Event) {
	ev.MovieID = m.id
	ev.Handle = m.handle.String()
	ev.Location = m.location
	ev.Timestamp = e.clock.Now()
	e.events.Emit(ev)
}

// busHook turns handled bus messages of m into lifecycle events. It runs
// inside Controller.Drain, on the goroutine holding m.mu.
func (e *Engine) busHook(m *movie) pipeline.MessageHook {
	return func(msg pipeline.Message, looped bool) {
		ev := Event{Source: msg.Source, Rate: m.ctl.Rate()}

		switch msg.Type {
		case pipeline.MessageError:
			ev.Type = emitter.EventError
			ev.Category = msg.Category.String()
			ev.Message = msg.Text
		case pipeline.MessageWarning:
			ev.Type = emitter.EventWarning
			ev.Category = msg.Category.String()
			ev.Message = msg.Text
		case pipeline.MessageEOS, pipeline.MessageSegmentDone:
			ev.Type = emitter.EventEOS
			if looped {
				ev.Type = emitter.EventLoop
			}
		case pipeline.MessageBuffering:
			ev.Type = emitter.EventBuffering
			ev.Percent = msg.Percent
		default:
			return
		}
		e.emit(m, ev)
	}
}

// demoteHandler logs every record at debug level. Quiet movies use it so
// their failures do not reach users who only asked whether a movie opens.
type demoteHandler struct {
	slog.Handler
}

func (h demoteHandler) Enabled(ctx context.Context, _ slog.Level) bool {
	return h.Handler.Enabled(ctx, slog.LevelDebug)
}

func (h demoteHandler) Handle(ctx context.Context, r slog.Record) error {
	r.Level = slog.LevelDebug
	return h.Handler.Handle(ctx, r)
}

func (h demoteHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return demoteHandler{h.Handler.WithAttrs(attrs)}
}

func (h demoteHandler) WithGroup(name string) slog.Handler {
	return demoteHandler{h.Handler.WithGroup(name)}
}
