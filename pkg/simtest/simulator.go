// Package simtest is the in-process harness used by pkg/raft's own
// tests: a deterministic virtual clock driving an event heap, an
// in-memory Network standing in for pkg/transport/grpcio, and a
// multi-node Cluster wiring raft.RaftNode instances together without
// any real goroutines, sockets, or disk.
package simtest

import "container/heap"

// Event is one scheduled callback, ordered by its virtual fire time;
// seq breaks ties in insertion order so same-millisecond events run
// deterministically.
type Event struct {
	at  int64
	seq uint64
	fn  func()
}

// eventHeap implements container/heap.Interface over *Event.
type eventHeap []*Event

func (h eventHeap) Len() int { return len(h) }
func (h eventHeap) Less(i, j int) bool {
	if h[i].at != h[j].at {
		return h[i].at < h[j].at
	}
	return h[i].seq < h[j].seq
}
func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *eventHeap) Push(x interface{}) { *h = append(*h, x.(*Event)) }
func (h *eventHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// DeterministicClock is a virtual clock: Now() never advances except
// by draining the event heap, so an entire multi-node election or
// snapshot-install sequence replays identically across runs.
type DeterministicClock struct {
	now    int64
	seq    uint64
	events eventHeap
}

// NewDeterministicClock returns a clock starting at virtual time 0.
func NewDeterministicClock() *DeterministicClock {
	c := &DeterministicClock{}
	heap.Init(&c.events)
	return c
}

// Now returns the current virtual time in milliseconds.
func (c *DeterministicClock) Now() int64 { return c.now }

// After schedules fn to run delay milliseconds from the current
// virtual time.
func (c *DeterministicClock) After(delay int64, fn func()) {
	c.seq++
	heap.Push(&c.events, &Event{at: c.now + delay, seq: c.seq, fn: fn})
}

// Step pops and runs the single next-due event, advancing Now() to its
// fire time. Returns false if the heap is empty.
func (c *DeterministicClock) Step() bool {
	if c.events.Len() == 0 {
		return false
	}
	e := heap.Pop(&c.events).(*Event)
	c.now = e.at
	e.fn()
	return true
}

// RunFor advances the clock by draining every event due within
// [now, now+duration], leaving later events queued.
func (c *DeterministicClock) RunFor(duration int64) {
	deadline := c.now + duration
	for c.events.Len() > 0 && c.events[0].at <= deadline {
		c.Step()
	}
	c.now = deadline
}

// RunUntilIdle drains every currently-queued event, including ones
// newly scheduled by events that already ran. Bounded by maxSteps to
// catch a runaway retry loop in a test rather than hanging forever.
func (c *DeterministicClock) RunUntilIdle(maxSteps int) {
	for i := 0; i < maxSteps; i++ {
		if !c.Step() {
			return
		}
	}
}
