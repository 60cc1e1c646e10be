package bridge

import "sync"

// envelopeQueue is an unbounded FIFO of outbound envelopes with a
// size-1 signal channel for wakeups. Unbounded matters here: the
// enqueuer runs inside the store's commit path and must never block
// on a slow transport, and dropping an envelope would leave the guest
// on a gapped prefix.
type envelopeQueue struct {
	mu        sync.Mutex
	envelopes []Envelope
	closed    bool
	signal    chan struct{}
}

func newEnvelopeQueue() *envelopeQueue {
	return &envelopeQueue{
		signal: make(chan struct{}, 1),
	}
}

// Enqueue appends env and nudges the signal channel without blocking.
// Returns false if the queue is closed.
func (q *envelopeQueue) Enqueue(env Envelope) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.envelopes = append(q.envelopes, env)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue pops the oldest envelope, or reports false when empty.
func (q *envelopeQueue) TryDequeue() (Envelope, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.envelopes) == 0 {
		return Envelope{}, false
	}
	env := q.envelopes[0]
	q.envelopes[0] = Envelope{}
	q.envelopes = q.envelopes[1:]
	if len(q.envelopes) == 0 {
		q.envelopes = nil
	}
	return env, true
}

// Wait returns the signal channel. It fires on enqueue and is closed by
// Close, so a receive means "look at the queue again", not "item ready".
func (q *envelopeQueue) Wait() <-chan struct{} {
	return q.signal
}

func (q *envelopeQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.envelopes)
}

// Closed reports whether Close has been called.
func (q *envelopeQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close marks the queue closed and wakes every waiter. Already-queued
// envelopes remain dequeueable so the forwarder can drain.
func (q *envelopeQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
