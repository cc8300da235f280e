package constraint

import (
	"sync"
)

// Evaluator decides whether a constraint is currently met. It owns the
// named-predicate registry so queue entries reloaded from the store can
// resolve their predicates after a restart.
type Evaluator struct {
	mu    sync.RWMutex
	conn  ConnectivitySource
	loc   LocationSource
	preds map[string]Predicate
}

// NewEvaluator creates an evaluator. Either source may be nil: with no
// connectivity source the network is treated as unknown, and with no
// location source every fence check fails.
func NewEvaluator(conn ConnectivitySource, loc LocationSource) *Evaluator {
	return &Evaluator{
		conn:  conn,
		loc:   loc,
		preds: make(map[string]Predicate),
	}
}

// RegisterPredicate binds a name to a predicate. Re-registering a name
// replaces the previous predicate.
func (e *Evaluator) RegisterPredicate(name string, fn Predicate) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.preds[name] = fn
}

// Network returns the active network, NetworkUnknown when no source is set.
func (e *Evaluator) Network() Network {
	e.mu.RLock()
	conn := e.conn
	e.mu.RUnlock()
	if conn == nil {
		return NetworkUnknown
	}
	return conn.Network()
}

// SetConnectivity replaces the connectivity source at runtime.
func (e *Evaluator) SetConnectivity(conn ConnectivitySource) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.conn = conn
}

// Offline reports whether the host currently has no connectivity.
func (e *Evaluator) Offline() bool {
	return e.Network() == NetworkNone
}

// IsMet evaluates the constraint against current conditions. An empty
// constraint is met. An unresolvable named predicate fails closed so the
// queued call stays pending rather than replaying under unverified
// conditions.
func (e *Evaluator) IsMet(c Constraint) bool {
	if c.IsZero() {
		return true
	}

	if len(c.Networks) > 0 {
		active := e.Network()
		matched := false
		for _, want := range c.Networks {
			if active == want {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	e.mu.RLock()
	loc := e.loc
	named := make([]Predicate, 0, len(c.PredicateNames))
	resolvable := true
	for _, name := range c.PredicateNames {
		fn, ok := e.preds[name]
		if !ok {
			resolvable = false
			break
		}
		named = append(named, fn)
	}
	e.mu.RUnlock()

	if !resolvable {
		return false
	}
	for _, fn := range named {
		if !fn() {
			return false
		}
	}
	for _, fn := range c.Predicates {
		if fn == nil || !fn() {
			return false
		}
	}

	if len(c.Fences) > 0 {
		if loc == nil {
			return false
		}
		pos, known := loc.Location()
		if !known {
			return false
		}
		inside := false
		for _, fence := range c.Fences {
			if fence.Contains(pos) {
				inside = true
				break
			}
		}
		if !inside {
			return false
		}
	}

	return true
}
