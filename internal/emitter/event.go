// Package emitter publishes playback lifecycle events (open, errors, loops,
// end of stream, deletion) to an external observer.
//
// The engine never blocks on an emitter: Emit only enqueues. The default
// emitter is Nop; MQTTEmitter publishes msgpack encoded events to a broker.
package emitter

import (
	"fmt"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Event types
const (
	EventOpened    = "opened"
	EventError     = "error"
	EventWarning   = "warning"
	EventEOS       = "eos"
	EventLoop      = "loop"
	EventBuffering = "buffering"
	EventStarted   = "started"
	EventStopped   = "stopped"
	EventSeek      = "seek"
	EventDeleted   = "deleted"
)

// Event is one playback lifecycle notification.
type Event struct {
	Type      string    `msgpack:"type"`
	MovieID   string    `msgpack:"movie_id"`
	Handle    string    `msgpack:"handle"`
	Location  string    `msgpack:"location,omitempty"`
	Timestamp time.Time `msgpack:"ts"`

	Rate     float64 `msgpack:"rate,omitempty"`
	Dropped  int     `msgpack:"dropped,omitempty"`
	Position float64 `msgpack:"position,omitempty"`
	Percent  int     `msgpack:"percent,omitempty"`

	Category string `msgpack:"category,omitempty"`
	Source   string `msgpack:"source,omitempty"`
	Message  string `msgpack:"message,omitempty"`
}

// Encode returns the msgpack wire form of e.
func (e Event) Encode() ([]byte, error) {
	data, err := msgpack.Marshal(&e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s event: %w", e.Type, err)
	}
	return data, nil
}

// Decode parses a msgpack encoded event.
func Decode(data []byte) (Event, error) {
	var e Event
	if err := msgpack.Unmarshal(data, &e); err != nil {
		return Event{}, fmt.Errorf("failed to decode event: %w", err)
	}
	return e, nil
}

// Emitter receives events. Emit must not block.
type Emitter interface {
	Emit(Event)
	Close() error
}

// Nop discards every event.
type Nop struct{}

// Emit implements Emitter.
func (Nop) Emit(Event) {}

// Close implements Emitter.
func (Nop) Close() error { return nil }

// Recorder keeps every event in memory. Used by tests and the probe CLI.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Emit implements Emitter.
func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Close implements Emitter.
func (r *Recorder) Close() error { return nil }

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Count returns how many events of type t were recorded.
func (r *Recorder) Count(t string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == t {
			n++
		}
	}
	return n
}
