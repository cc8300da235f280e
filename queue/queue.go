// Package queue manages named FIFO queues of reliable calls. Entries are
// persisted through the store so they survive a restart, and are replayed in
// order once their constraint is met, or dropped once they expire.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/joshuarp/controller-sdk/call"
	"github.com/joshuarp/controller-sdk/constraint"
	"github.com/joshuarp/controller-sdk/event"
	"github.com/joshuarp/controller-sdk/store"
	"github.com/joshuarp/controller-sdk/transport"
)

// DefaultQueue is used when reliable options name no queue.
const DefaultQueue = "default"

// RequestSnapshot is the replayable request shape captured at enqueue time.
type RequestSnapshot struct {
	Controller string                 `json:"controller"`
	Method     string                 `json:"method"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

// Entry is one queued reliable call.
type Entry struct {
	ID        string               `json:"id"`
	Seq       int64                `json:"seq"`
	QueueName string               `json:"queueName"`
	CallID    string               `json:"callId"`
	Options   call.ReliableOptions `json:"options"`
	Request   RequestSnapshot      `json:"request"`
}

// Dispatcher replays a queued entry against the server.
type Dispatcher interface {
	Dispatch(ctx context.Context, e Entry) (interface{}, *transport.Details, error)
}

// Events fired on the emitter as queued calls complete. Per-call event
// names from ReliableOptions fire alongside these.
const (
	EventSuccess = "onSuccess"
	EventError   = "onError"
)

// Manager owns the in-memory queues and their persisted mirror.
type Manager struct {
	store   store.Store
	table   string
	eval    *constraint.Evaluator
	emitter *event.Emitter
	logger  *slog.Logger
	now     func() time.Time

	mu     sync.Mutex
	queues map[string][]*Entry
	seq    int64
}

// NewManager creates a queue manager persisting into the named store table.
func NewManager(st store.Store, table string, eval *constraint.Evaluator, emitter *event.Emitter, logger *slog.Logger) *Manager {
	return &Manager{
		store:   st,
		table:   table,
		eval:    eval,
		emitter: emitter,
		logger:  logger,
		now:     time.Now,
		queues:  make(map[string][]*Entry),
	}
}

// Load rebuilds the in-memory queues from the store, restoring FIFO order
// from the persisted sequence numbers. Call once at startup before RunAll.
func (m *Manager) Load(ctx context.Context) error {
	records, err := m.store.All(ctx, m.table)
	if err != nil {
		return fmt.Errorf("queue: failed to load persisted entries: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.queues = make(map[string][]*Entry)
	m.seq = 0

	for _, rec := range records {
		e, err := entryFromFields(rec.Fields)
		if err != nil {
			m.logger.Warn("queue: skipping undecodable entry", "id", rec.ID, "error", err)
			continue
		}
		m.queues[e.QueueName] = append(m.queues[e.QueueName], e)
		if e.Seq >= m.seq {
			m.seq = e.Seq + 1
		}
	}

	for name := range m.queues {
		q := m.queues[name]
		sort.Slice(q, func(i, j int) bool { return q[i].Seq < q[j].Seq })
	}
	return nil
}

// Enqueue appends an entry to its queue and persists it. Expiry is not
// checked here; an entry that outlives its request age is dropped by the
// next run instead.
func (m *Manager) Enqueue(ctx context.Context, e Entry) error {
	if e.QueueName == "" {
		e.QueueName = DefaultQueue
	}

	// Seq assignment and the in-memory append share one critical section so
	// live FIFO order always matches the seq order Load restores.
	m.mu.Lock()
	e.Seq = m.seq
	m.seq++
	m.queues[e.QueueName] = append(m.queues[e.QueueName], &e)
	m.mu.Unlock()

	fields, err := entryToFields(e)
	if err != nil {
		m.forget(&e)
		return err
	}
	if err := m.store.Create(ctx, m.table, e.ID, fields); err != nil {
		m.forget(&e)
		return fmt.Errorf("queue: failed to persist entry: %w", err)
	}

	m.logger.Info("queue: entry enqueued", "queue", e.QueueName, "call_id", e.CallID)
	return nil
}

// forget removes an entry from memory only, used to roll back an enqueue
// whose persistence failed.
func (m *Manager) forget(e *Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := m.queues[e.QueueName]
	for i, cur := range q {
		if cur.ID == e.ID {
			m.queues[e.QueueName] = append(q[:i], q[i+1:]...)
			return
		}
	}
}

// RunAll replays every queue concurrently, one worker per queue so entries
// within a queue stay strictly ordered. It returns the call ids that
// completed, successfully or not.
func (m *Manager) RunAll(ctx context.Context, d Dispatcher) []string {
	m.mu.Lock()
	names := make([]string, 0, len(m.queues))
	for name := range m.queues {
		names = append(names, name)
	}
	m.mu.Unlock()

	var (
		wg        sync.WaitGroup
		resultMu  sync.Mutex
		completed []string
	)
	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			done := m.RunQueue(ctx, name, d)
			resultMu.Lock()
			completed = append(completed, done...)
			resultMu.Unlock()
		}(name)
	}
	wg.Wait()
	return completed
}

// RunQueue drains one queue from the head. Expired entries are dropped
// without executing. The run stops at the first entry whose constraint is
// not met, or at a connectivity failure, leaving the rest for a later run.
func (m *Manager) RunQueue(ctx context.Context, name string, d Dispatcher) []string {
	var completed []string
	for {
		if ctx.Err() != nil {
			return completed
		}

		m.mu.Lock()
		q := m.queues[name]
		if len(q) == 0 {
			m.mu.Unlock()
			return completed
		}
		head := q[0]
		m.mu.Unlock()

		if head.Options.Expired(m.now()) {
			m.drop(ctx, head)
			m.logger.Info("queue: entry expired", "queue", name, "call_id", head.CallID)
			continue
		}

		if !m.eval.IsMet(head.Options.Constraint) {
			return completed
		}

		result, details, err := d.Dispatch(ctx, *head)
		if err != nil {
			if retriable(err) {
				m.logger.Warn("queue: dispatch deferred", "queue", name, "call_id", head.CallID, "error", err)
				return completed
			}
			m.drop(ctx, head)
			m.invokeError(head, err)
			completed = append(completed, head.CallID)
			continue
		}

		m.drop(ctx, head)
		m.invokeSuccess(head, result, details)
		completed = append(completed, head.CallID)
	}
}

// retriable errors leave the entry at the head of its queue for a later
// run instead of consuming it.
func retriable(err error) bool {
	return errors.Is(err, transport.ErrTimeout) ||
		errors.Is(err, call.ErrNoConnectivity) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func (m *Manager) invokeSuccess(e *Entry, result interface{}, details *transport.Details) {
	names := []string{EventSuccess}
	if e.Options.SuccessEvent != "" {
		names = append(names, e.Options.SuccessEvent)
	}
	m.emitter.Invoke(names, e.CallID, result, details)
}

func (m *Manager) invokeError(e *Entry, err error) {
	names := []string{EventError}
	if e.Options.ErrorEvent != "" {
		names = append(names, e.Options.ErrorEvent)
	}
	m.emitter.Invoke(names, e.CallID, err)
}

// drop removes the entry from memory and the store.
func (m *Manager) drop(ctx context.Context, e *Entry) {
	m.mu.Lock()
	q := m.queues[e.QueueName]
	for i, cur := range q {
		if cur.ID == e.ID {
			m.queues[e.QueueName] = append(q[:i], q[i+1:]...)
			break
		}
	}
	m.mu.Unlock()

	if err := m.store.Remove(ctx, m.table, e.ID); err != nil {
		m.logger.Warn("queue: failed to remove persisted entry", "id", e.ID, "error", err)
	}
}

// Remove deletes the queued entry for a call id, if present.
func (m *Manager) Remove(ctx context.Context, callID string) bool {
	m.mu.Lock()
	var target *Entry
	for name, q := range m.queues {
		for i, e := range q {
			if e.CallID == callID {
				target = e
				m.queues[name] = append(q[:i], q[i+1:]...)
				break
			}
		}
		if target != nil {
			break
		}
	}
	m.mu.Unlock()

	if target == nil {
		return false
	}
	if err := m.store.Remove(ctx, m.table, target.ID); err != nil {
		m.logger.Warn("queue: failed to remove persisted entry", "id", target.ID, "error", err)
	}
	return true
}

// CancelAll discards queued entries and returns their call ids. With no
// names it clears every queue and the backing table; with names it clears
// just those queues.
func (m *Manager) CancelAll(ctx context.Context, names ...string) []string {
	if len(names) == 0 {
		m.mu.Lock()
		var callIDs []string
		for _, q := range m.queues {
			for _, e := range q {
				callIDs = append(callIDs, e.CallID)
			}
		}
		m.queues = make(map[string][]*Entry)
		m.mu.Unlock()

		if err := m.store.ClearTable(ctx, m.table); err != nil {
			m.logger.Warn("queue: failed to clear persisted entries", "error", err)
		}
		return callIDs
	}

	m.mu.Lock()
	var callIDs []string
	var recordIDs []string
	for _, name := range names {
		if name == "" {
			name = DefaultQueue
		}
		for _, e := range m.queues[name] {
			callIDs = append(callIDs, e.CallID)
			recordIDs = append(recordIDs, e.ID)
		}
		delete(m.queues, name)
	}
	m.mu.Unlock()

	if err := m.store.RemoveIDs(ctx, m.table, recordIDs); err != nil {
		m.logger.Warn("queue: failed to remove persisted entries", "error", err)
	}
	return callIDs
}

// Len returns the number of entries waiting in the named queue.
func (m *Manager) Len(name string) int {
	if name == "" {
		name = DefaultQueue
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queues[name])
}

// Pending returns the call ids of every queued entry, ordered within each
// queue.
func (m *Manager) Pending() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for _, q := range m.queues {
		for _, e := range q {
			ids = append(ids, e.CallID)
		}
	}
	return ids
}

func entryToFields(e Entry) (map[string]interface{}, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("queue: failed to encode entry: %w", err)
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, fmt.Errorf("queue: failed to shape entry fields: %w", err)
	}
	return fields, nil
}

func entryFromFields(fields map[string]interface{}) (*Entry, error) {
	payload, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("queue: failed to encode fields: %w", err)
	}
	var e Entry
	if err := json.Unmarshal(payload, &e); err != nil {
		return nil, fmt.Errorf("queue: failed to decode entry: %w", err)
	}
	return &e, nil
}
