// Package registry is a bounded arena of movie slots addressed by
// generation-counted handles.
//
// A handle encodes the slot index and the slot's generation at allocation.
// Freeing a slot bumps its generation, so a stale handle to a reused slot is
// rejected instead of silently addressing the new occupant.
package registry

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrFull is returned by Alloc when every slot is occupied.
	ErrFull = errors.New("registry: all slots in use")
	// ErrInvalidHandle is returned for zero, out-of-range, freed or stale handles.
	ErrInvalidHandle = errors.New("registry: invalid handle")
)

// Handle identifies an occupied slot. The zero Handle is never valid.
type Handle uint64

// InvalidHandle is the zero Handle.
const InvalidHandle Handle = 0

func makeHandle(index int, gen uint32) Handle {
	return Handle(uint64(gen)<<32 | uint64(index+1))
}

// Index returns the slot index encoded in h, or -1 for the zero handle.
func (h Handle) Index() int {
	return int(uint32(h)) - 1
}

func (h Handle) generation() uint32 {
	return uint32(h >> 32)
}

func (h Handle) String() string {
	if h == InvalidHandle {
		return "movie(invalid)"
	}
	return fmt.Sprintf("movie(%d#%d)", h.Index(), h.generation())
}

type slot[T any] struct {
	gen   uint32
	value *T
}

// Registry holds up to a fixed number of *T values.
type Registry[T any] struct {
	mu    sync.RWMutex
	slots []slot[T]
	count int
}

// New returns a registry with capacity slots.
func New[T any](capacity int) *Registry[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Registry[T]{slots: make([]slot[T], capacity)}
}

// Cap returns the slot capacity.
func (r *Registry[T]) Cap() int {
	return len(r.slots)
}

// Len returns the number of occupied slots.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}

// Full reports whether Alloc would fail.
func (r *Registry[T]) Full() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count == len(r.slots)
}

// Alloc stores v in the first free slot.
func (r *Registry[T]) Alloc(v *T) (Handle, error) {
	if v == nil {
		return InvalidHandle, errors.New("registry: nil value")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.slots {
		if r.slots[i].value == nil {
			r.slots[i].value = v
			r.count++
			return makeHandle(i, r.slots[i].gen), nil
		}
	}
	return InvalidHandle, ErrFull
}

// Get returns the value addressed by h.
func (r *Registry[T]) Get(h Handle) (*T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, err := r.lookupLocked(h)
	if err != nil {
		return nil, err
	}
	return s.value, nil
}

// Free empties the slot addressed by h and returns its former value.
// Freeing the same handle twice fails with ErrInvalidHandle.
func (r *Registry[T]) Free(h Handle) (*T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.lookupLocked(h)
	if err != nil {
		return nil, err
	}
	v := s.value
	s.value = nil
	s.gen++
	r.count--
	return v, nil
}

func (r *Registry[T]) lookupLocked(h Handle) (*slot[T], error) {
	i := h.Index()
	if i < 0 || i >= len(r.slots) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidHandle, h)
	}
	s := &r.slots[i]
	if s.value == nil || s.gen != h.generation() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidHandle, h)
	}
	return s, nil
}

// Handles returns the handles of all occupied slots in index order.
func (r *Registry[T]) Handles() []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Handle, 0, r.count)
	for i, s := range r.slots {
		if s.value != nil {
			out = append(out, makeHandle(i, s.gen))
		}
	}
	return out
}
