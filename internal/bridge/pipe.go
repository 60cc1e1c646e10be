package bridge

import (
	"errors"
	"sync"
)

// ErrClosed reports a transport closed by its peer or by Close. Listen
// treats it as a clean end of session.
var ErrClosed = errors.New("bridge: transport closed")

// Pipe is an in-process transport: the same value serves as the host's
// Guest and the guest's Receiver. Messages arrive in send order.
type Pipe struct {
	ch   chan []byte
	once sync.Once
	done chan struct{}
}

// NewPipe returns an open pipe with a small delivery buffer.
func NewPipe() *Pipe {
	return &Pipe{
		ch:   make(chan []byte, 64),
		done: make(chan struct{}),
	}
}

// Send delivers data to the receiving side, blocking while the buffer
// is full. Returns ErrClosed once the pipe is closed.
func (p *Pipe) Send(data []byte) error {
	select {
	case <-p.done:
		return ErrClosed
	default:
	}
	select {
	case p.ch <- data:
		return nil
	case <-p.done:
		return ErrClosed
	}
}

// Receive returns the next message. Messages sent before Close are still
// delivered; ErrClosed comes only after the buffer drains.
func (p *Pipe) Receive() ([]byte, error) {
	select {
	case data := <-p.ch:
		return data, nil
	default:
	}
	select {
	case data := <-p.ch:
		return data, nil
	case <-p.done:
		return nil, ErrClosed
	}
}

// Alive reports whether the pipe is still open.
func (p *Pipe) Alive() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// Close shuts both directions down. Idempotent.
func (p *Pipe) Close() error {
	p.once.Do(func() { close(p.done) })
	return nil
}
