// Package constraint gates the replay of queued reliable calls on device
// conditions: the active network, registered predicates, and geofences.
package constraint

// Network identifies the active connectivity type reported by the host.
type Network string

const (
	NetworkWifi     Network = "WIFI"
	NetworkCellular Network = "CELL"
	NetworkNone     Network = "NONE"
	NetworkUnknown  Network = "UNKNOWN"
)

// Predicate is a caller-supplied runtime check. Predicates cannot be
// persisted directly; register them by name so queue entries reloaded from
// the store can resolve them again.
type Predicate func() bool

// Constraint declares the conditions a queued call waits for. A zero
// Constraint is always met. Each declared category must pass:
//
//   - Networks passes when the active network matches any listed token.
//   - PredicateNames and Predicates pass when every predicate returns true.
//   - Fences passes when the current location falls inside any fence.
type Constraint struct {
	Networks       []Network  `json:"networks,omitempty"`
	Fences         []Geofence `json:"fences,omitempty"`
	PredicateNames []string   `json:"predicates,omitempty"`

	// Predicates are inline checks used alongside the named ones. They do
	// not survive persistence; prefer named predicates for queued calls.
	Predicates []Predicate `json:"-"`
}

// IsZero reports whether the constraint declares no conditions.
func (c Constraint) IsZero() bool {
	return len(c.Networks) == 0 && len(c.Fences) == 0 &&
		len(c.PredicateNames) == 0 && len(c.Predicates) == 0
}

// ConnectivitySource reports the active network. Implementations must be
// safe for concurrent use.
type ConnectivitySource interface {
	Network() Network
}

// LocationSource reports the current device position. The bool result is
// false when no position is known.
type LocationSource interface {
	Location() (Point, bool)
}

// StaticConnectivity is a fixed-value ConnectivitySource, useful for hosts
// without a platform network monitor and for tests.
type StaticConnectivity Network

func (s StaticConnectivity) Network() Network { return Network(s) }

var _ ConnectivitySource = StaticConnectivity("")
