// Package uid generates the unique identifiers used for call IDs and
// persistent-store record IDs.
package uid

import (
	"context"
	"fmt"
)

// Strategy selects the generation algorithm.
type Strategy string

const (
	StrategySnowflake Strategy = "snowflake"
	StrategyUUIDv7    Strategy = "uuidv7"
)

// Options configures the generator.
type Options struct {
	Strategy Strategy

	// NodeID identifies this node in a distributed setup (snowflake only).
	// Valid range: 0 to 1023.
	NodeID int64
}

// Generator is the interface consumers depend on for unique identifiers.
// Implementations must be safe for concurrent use.
type Generator interface {
	Generate(ctx context.Context) (string, error)
}

// New creates a Generator for the selected strategy.
func New(opts Options) (Generator, error) {
	switch opts.Strategy {
	case StrategySnowflake:
		return NewSnowflake(opts.NodeID)
	case StrategyUUIDv7:
		return NewUUIDv7(), nil
	default:
		return nil, fmt.Errorf("uid: unknown strategy %q", opts.Strategy)
	}
}
