package gstreamer

import (
	"sync"
	"time"

	"github.com/e7canasta/movie-playback/internal/pipeline"
	"github.com/tinyzimmer/go-gst/gst"
)

// statePoll is how often a pending transition is re-checked.
const statePoll = 10 * time.Millisecond

// stateWaiter bounds the state transitions of one element.
//
// go-gst only exposes an element's current state, so completion is polled
// against the requested target. When fed from a bus sync handler, errors
// fail the wait early and ASYNC_DONE marks the end of a preroll that a
// flushing seek or a frame step started without changing state.
//
// Thread-safety:
//   - observe runs on streaming threads; everything else on the caller's
//   - all fields except el are protected by mu
type stateWaiter struct {
	el *gst.Element

	mu         sync.Mutex
	target     gst.State
	failed     bool
	prerolling bool
}

func newStateWaiter(el *gst.Element) *stateWaiter {
	return &stateWaiter{el: el, target: gst.StateNull}
}

// request sets target on the element and reports whether it was reached
// synchronously.
func (w *stateWaiter) request(target gst.State) pipeline.StateChange {
	w.mu.Lock()
	w.target = target
	w.failed = false
	w.prerolling = false
	w.mu.Unlock()

	if err := w.el.SetState(target); err != nil {
		return pipeline.StateChangeFailure
	}
	if w.el.GetState() == target {
		return pipeline.StateChangeSuccess
	}
	return pipeline.StateChangeAsync
}

// expectPreroll marks a preroll in flight; the next wait lasts until
// ASYNC_DONE arrives.
func (w *stateWaiter) expectPreroll() {
	w.mu.Lock()
	w.failed = false
	w.prerolling = true
	w.mu.Unlock()
}

// cancelPreroll undoes expectPreroll when the triggering event was refused.
func (w *stateWaiter) cancelPreroll() {
	w.mu.Lock()
	w.prerolling = false
	w.mu.Unlock()
}

// pendingTarget returns the last requested state.
func (w *stateWaiter) pendingTarget() gst.State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.target
}

// observe is a bus sync handler. Messages always pass on to the bus queue.
func (w *stateWaiter) observe(msg *gst.Message) gst.BusSyncReply {
	switch msg.Type() {
	case gst.MessageError:
		w.mu.Lock()
		w.failed = true
		w.mu.Unlock()
	case gst.MessageAsyncDone:
		w.mu.Lock()
		w.prerolling = false
		w.mu.Unlock()
	}
	return gst.BusPass
}

// wait polls until the target state is reached with no preroll pending, an
// error is posted, or timeout elapses (StateChangeAsync).
func (w *stateWaiter) wait(timeout time.Duration) pipeline.StateChange {
	deadline := time.Now().Add(timeout)
	for {
		w.mu.Lock()
		target, failed, prerolling := w.target, w.failed, w.prerolling
		w.mu.Unlock()

		if failed {
			return pipeline.StateChangeFailure
		}
		if !prerolling && w.el.GetState() == target {
			return pipeline.StateChangeSuccess
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return pipeline.StateChangeAsync
		}
		time.Sleep(min(statePoll, remaining))
	}
}
