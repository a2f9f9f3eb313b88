package service

import (
	"sync"
	"sync/atomic"

	"lingua_voice_backend/pkg/monitoring"
)

// Relay is the single ordered outbound queue for one client connection.
// Every event kind flows through it, so relative order is preserved end to
// end. When the queue is full the oldest audio frame is discarded; control
// events (transcription, feedback, turn_complete, session_ended) are never
// dropped, the queue grows past capacity to hold them if it must.
type Relay struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	queue    []OutEvent
	capacity int
	closed   bool
	dropped  int64
}

func NewRelay(capacity int) *Relay {
	if capacity <= 0 {
		capacity = 256
	}
	r := &Relay{capacity: capacity}
	r.notEmpty = sync.NewCond(&r.mu)
	return r
}

// Enqueue appends an event, evicting the oldest queued audio frame when at
// capacity. Returns false after Close.
func (r *Relay) Enqueue(ev OutEvent) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return false
	}

	if len(r.queue) >= r.capacity {
		if i := r.oldestAudioIndex(); i >= 0 {
			r.queue = append(r.queue[:i], r.queue[i+1:]...)
			atomic.AddInt64(&r.dropped, 1)
			monitoring.DroppedFrames.WithLabelValues("outbound").Inc()
		}
	}

	r.queue = append(r.queue, ev)
	monitoring.RelayQueueDepth.Observe(float64(len(r.queue)))
	r.notEmpty.Signal()
	return true
}

func (r *Relay) oldestAudioIndex() int {
	for i, ev := range r.queue {
		if ev.IsAudio() {
			return i
		}
	}
	return -1
}

// Next blocks until an event is available or the relay is closed. The
// second return is false once the relay is closed and drained.
func (r *Relay) Next() (OutEvent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for len(r.queue) == 0 && !r.closed {
		r.notEmpty.Wait()
	}
	if len(r.queue) == 0 {
		return OutEvent{}, false
	}

	ev := r.queue[0]
	r.queue = r.queue[1:]
	return ev, true
}

// TryNext pops without blocking.
func (r *Relay) TryNext() (OutEvent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.queue) == 0 {
		return OutEvent{}, false
	}
	ev := r.queue[0]
	r.queue = r.queue[1:]
	return ev, true
}

func (r *Relay) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

// Dropped returns how many audio frames have been evicted so far.
func (r *Relay) Dropped() int64 {
	return atomic.LoadInt64(&r.dropped)
}

// Close wakes any blocked reader; already-queued events remain readable
// via TryNext.
func (r *Relay) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	r.notEmpty.Broadcast()
}
