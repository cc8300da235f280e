// Package call models the lifecycle of a controller invocation: a small
// state machine plus the options a caller attaches to it.
package call

import (
	"context"
	"fmt"
	"sync"

	"github.com/joshuarp/controller-sdk/transport"
)

// State names a point in the call lifecycle. Values are stable strings
// surfaced to hosts.
type State string

const (
	StateInit      State = "init"
	StateQueued    State = "queued"
	StateExecuting State = "executing"
	StateSuccess   State = "success"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Terminal reports whether no further transitions leave the state.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateFailed || s == StateCancelled
}

var transitions = map[State][]State{
	StateInit:      {StateQueued, StateExecuting, StateFailed, StateCancelled},
	StateQueued:    {StateExecuting, StateFailed, StateCancelled},
	StateExecuting: {StateSuccess, StateFailed, StateCancelled},
}

// Call tracks one controller invocation from creation to disposal. All
// methods are safe for concurrent use.
type Call struct {
	mu        sync.Mutex
	id        string
	token     string
	reliable  bool
	state     State
	result    interface{}
	details   *transport.Details
	err       error
	fromCache bool
	done      chan struct{}
	cancel    context.CancelFunc
	disposed  bool
}

// New creates a call in the init state.
func New(id string) *Call {
	return &Call{
		id:    id,
		state: StateInit,
		done:  make(chan struct{}),
	}
}

// NewReliable creates a call destined for a reliable queue.
func NewReliable(id string) *Call {
	c := New(id)
	c.reliable = true
	return c
}

// ID returns the call identifier.
func (c *Call) ID() string { return c.id }

// SetToken attaches an opaque caller correlation value.
func (c *Call) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token returns the caller correlation value, if one was set.
func (c *Call) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// Reliable reports whether the call goes through a reliable queue.
func (c *Call) Reliable() bool { return c.reliable }

// State returns the current lifecycle state.
func (c *Call) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetCancelFunc attaches the context cancel used to abort an in-flight
// transport exchange when the call is cancelled.
func (c *Call) SetCancelFunc(cancel context.CancelFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancel = cancel
}

func (c *Call) transitionLocked(to State) error {
	for _, allowed := range transitions[c.state] {
		if allowed == to {
			c.state = to
			return nil
		}
	}
	return fmt.Errorf("%w: cannot move call %s from %s to %s", ErrInvalidCallState, c.id, c.state, to)
}

// MarkQueued moves the call into the queued state.
func (c *Call) MarkQueued() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transitionLocked(StateQueued)
}

// Begin moves the call into the executing state.
func (c *Call) Begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transitionLocked(StateExecuting)
}

// Succeed records the decoded result and transport details and completes
// the call.
func (c *Call) Succeed(result interface{}, details *transport.Details) error {
	return c.succeed(result, details, false)
}

// SucceedFromCache completes the call with a result served from the result
// cache rather than a live exchange.
func (c *Call) SucceedFromCache(result interface{}, details *transport.Details) error {
	return c.succeed(result, details, true)
}

func (c *Call) succeed(result interface{}, details *transport.Details, fromCache bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.transitionLocked(StateSuccess); err != nil {
		return err
	}
	c.result = result
	c.details = details
	c.fromCache = fromCache
	close(c.done)
	return nil
}

// ResultFromCache reports whether the result was served from the cache.
func (c *Call) ResultFromCache() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fromCache
}

// Fail records the failure and completes the call. Details may be nil when
// the exchange never reached the server.
func (c *Call) Fail(failure error, details *transport.Details) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.transitionLocked(StateFailed); err != nil {
		return err
	}
	c.err = failure
	c.details = details
	close(c.done)
	return nil
}

// Cancel aborts the call. An executing call has its transport exchange
// interrupted; cancelling a completed call returns ErrInvalidCallState.
func (c *Call) Cancel() error {
	c.mu.Lock()
	if err := c.transitionLocked(StateCancelled); err != nil {
		c.mu.Unlock()
		return err
	}
	cancel := c.cancel
	c.err = context.Canceled
	close(c.done)
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return nil
}

// Dispose releases the call. Only completed calls may be disposed; queued
// and executing calls return ErrInvalidCallState.
func (c *Call) Dispose() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateSuccess && c.state != StateFailed {
		return fmt.Errorf("%w: cannot dispose call %s in state %s", ErrInvalidCallState, c.id, c.state)
	}
	c.disposed = true
	c.result = nil
	c.details = nil
	return nil
}

// Disposed reports whether Dispose has released the call.
func (c *Call) Disposed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disposed
}

// Await blocks until the call completes or the context ends, then returns
// the decoded result, the transport details, and the failure if any.
func (c *Call) Await(ctx context.Context) (interface{}, *transport.Details, error) {
	select {
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	case <-c.done:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result, c.details, c.err
}

// Result returns the decoded result once the call has completed.
func (c *Call) Result() interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

// Details returns the transport details once the call has completed.
func (c *Call) Details() *transport.Details {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.details
}

// Err returns the failure recorded for the call, nil on success or while
// still in flight.
func (c *Call) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}
