// Package serverhandle implements ServerHandle (spec §4.7): the
// cancel/wait-for-completion pair every long-running server (category
// server, supervisor-managed subprocess monitor) hands back to its owner.
package serverhandle

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

// ErrTimeout is returned by WaitForCompletion when the deadline elapses
// before the completion signal arrives.
var ErrTimeout = errors.New("serverhandle: timed out waiting for completion")

// Handle is a {cancel_token, completion_signal} pair (spec §4.7). The zero
// value is not usable; construct with New.
type Handle struct {
	cancel     context.CancelFunc
	cancelOnce sync.Once
	done       <-chan struct{}
}

// New creates a Handle and the completion channel its owner signals via
// the returned Signal. The returned context is canceled by Cancel.
func New() (*Handle, context.Context, *Signal) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	h := &Handle{cancel: cancel, done: done}
	return h, ctx, &Signal{done: done}
}

// Signal is the write side of the completion channel, held by the task
// that performs the actual shutdown work.
type Signal struct {
	done   chan struct{}
	once   sync.Once
}

// Complete closes the completion channel. Safe to call more than once or
// concurrently with a waiter; only the first call has effect.
func (s *Signal) Complete() {
	s.once.Do(func() { close(s.done) })
}

// Cancel requests shutdown. O(1), lock-free after the first call, and
// idempotent: calling it any number of times has the same effect as
// calling it once.
func (h *Handle) Cancel() {
	h.cancelOnce.Do(h.cancel)
}

// WaitForCompletion blocks until the completion signal arrives or timeout
// elapses. If the channel is already closed by the time this is called —
// shutdown finished before the waiter attached — that still counts as
// success; the Rust original treats this race the same way, since a
// oneshot channel closed without a value and one that delivered a value
// are both just "the other side is done."
func (h *Handle) WaitForCompletion(timeout time.Duration) error {
	select {
	case <-h.done:
		log.Printf("[ServerHandle] completion already signaled before wait attached")
		return nil
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-h.done:
		return nil
	case <-timer.C:
		return ErrTimeout
	}
}
