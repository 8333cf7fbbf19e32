// Package exchange hands decoded frames from a pipeline's streaming thread to
// the synchronous fetch API.
//
// The streaming thread never passes buffers through this package. It only
// announces them (OnNewFrame, OnNewPreroll); the buffers stay queued inside
// the sink until the consumer pulls them. Exchange keeps the two availability
// counters that make "is a frame ready?" answerable without touching the sink,
// and the condition variable that wakes a waiting consumer.
package exchange

import (
	"sync"
	"time"
)

// Exchange is the per-movie frame availability mailbox.
//
// Thread-safety:
//   - All fields protected by mu
//   - OnNewFrame / OnNewPreroll / OnEndOfStream: called from the streaming thread
//   - Available / Wait / Claim / SkipOne: called by the single consumer
//
// Invariant: frames >= 0 and prerolls >= 0 whenever mu is held by a caller.
type Exchange struct {
	mu   sync.Mutex
	cond *sync.Cond

	frames   int // playback buffers queued in the sink, not yet claimed
	prerolls int // preroll buffers announced since the last claim

	closed bool

	// lifetime counters
	totalFrames   uint64
	totalPrerolls uint64
	totalSkipped  uint64
	totalClaimed  uint64
}

// New returns an empty Exchange.
func New() *Exchange {
	x := &Exchange{}
	x.cond = sync.NewCond(&x.mu)
	return x
}

// OnNewFrame records one more playback buffer and wakes the consumer.
func (x *Exchange) OnNewFrame() {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.frames++
	x.totalFrames++
	x.cond.Signal()
}

// OnNewPreroll records one more preroll buffer and wakes the consumer.
func (x *Exchange) OnNewPreroll() {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.prerolls++
	x.totalPrerolls++
	x.cond.Signal()
}

// OnEndOfStream is a no-op. Sinks require an end-of-stream callback; end of
// stream itself is observed through the sink and bus.
func (x *Exchange) OnEndOfStream() {}

// Available reports whether a buffer can be claimed in the given mode:
// playback (rate != 0) counts queued frames, manual mode counts prerolls.
func (x *Exchange) Available(playback bool) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.availableLocked(playback)
}

func (x *Exchange) availableLocked(playback bool) bool {
	if playback {
		return x.frames > 0
	}
	return x.prerolls > 0
}

// Wait blocks until a buffer is available in the given mode, the exchange is
// closed, or timeout elapses. It returns availability at wake-up.
func (x *Exchange) Wait(playback bool, timeout time.Duration) bool {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.availableLocked(playback) {
		return true
	}

	deadline := time.Now().Add(timeout)
	timer := time.AfterFunc(timeout, func() {
		x.mu.Lock()
		x.cond.Broadcast()
		x.mu.Unlock()
	})
	defer timer.Stop()

	for !x.availableLocked(playback) && !x.closed && time.Now().Before(deadline) {
		x.cond.Wait()
	}
	return x.availableLocked(playback)
}

// Claim reserves the buffer about to be pulled from the sink.
//
// Pending prerolls are always reset. In playback mode the frame counter is
// first clamped to maxBuffers (the sink queue capacity, 0 = unlimited), since
// a dropping sink discards buffers it already announced, then decremented.
//
// The caller pulls the physical buffer after Claim returns, outside the lock.
// This relies on the sink's own queue being safe for a concurrent pull and push.
func (x *Exchange) Claim(playback bool, maxBuffers int) {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.prerolls = 0
	if !playback {
		return
	}
	if maxBuffers > 0 && x.frames > maxBuffers {
		x.frames = maxBuffers
	}
	if x.frames > 0 {
		x.frames--
		x.totalClaimed++
	}
}

// SkipOne claims one more queued playback buffer if any is left. It never
// waits: the skip loop only discards what is already queued.
func (x *Exchange) SkipOne() bool {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.frames <= 0 {
		return false
	}
	x.frames--
	x.totalSkipped++
	return true
}

// Pending returns the number of queued playback frames.
func (x *Exchange) Pending() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.frames
}

// Reset zeroes both counters. Used when a seek flushes the sink.
func (x *Exchange) Reset() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.frames = 0
	x.prerolls = 0
}

// Close wakes any waiter; later Waits return immediately.
func (x *Exchange) Close() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.closed = true
	x.cond.Broadcast()
}

// Stats is a snapshot of the exchange counters.
type Stats struct {
	QueuedFrames   int
	QueuedPrerolls int
	TotalFrames    uint64
	TotalPrerolls  uint64
	TotalClaimed   uint64
	TotalSkipped   uint64
}

// Stats returns a snapshot of the counters.
func (x *Exchange) Stats() Stats {
	x.mu.Lock()
	defer x.mu.Unlock()
	return Stats{
		QueuedFrames:   x.frames,
		QueuedPrerolls: x.prerolls,
		TotalFrames:    x.totalFrames,
		TotalPrerolls:  x.totalPrerolls,
		TotalClaimed:   x.totalClaimed,
		TotalSkipped:   x.totalSkipped,
	}
}
