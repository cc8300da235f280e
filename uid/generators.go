package uid

import (
	"context"
	"fmt"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
)

var _ Generator = (*snowflakeGenerator)(nil)

type snowflakeGenerator struct {
	node *snowflake.Node
	mu   sync.Mutex
}

// NewSnowflake creates a snowflake-backed Generator. nodeID must be unique
// per node when multiple SDK hosts share a backend.
func NewSnowflake(nodeID int64) (Generator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("uid: failed to create snowflake node: %w", err)
	}
	return &snowflakeGenerator{node: node}, nil
}

func (g *snowflakeGenerator) Generate(_ context.Context) (string, error) {
	g.mu.Lock()
	id := g.node.Generate()
	g.mu.Unlock()
	return id.String(), nil
}

var _ Generator = (*uuidv7Generator)(nil)

type uuidv7Generator struct{}

// NewUUIDv7 creates a UUID v7-backed Generator. This is the default
// strategy; v7 IDs are time-ordered, which keeps queue records sortable.
func NewUUIDv7() Generator {
	return &uuidv7Generator{}
}

func (g *uuidv7Generator) Generate(_ context.Context) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("uid: failed to generate uuid v7: %w", err)
	}
	return id.String(), nil
}
