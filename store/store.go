// Package store provides the durable key-value record storage backing
// reliable queues and saved credentials. Records are schemaless JSON field
// maps grouped into named tables, so the same backend can hold queue entries
// and connection state.
package store

import (
	"context"
	"errors"
	"reflect"
)

// ErrNotFound reports that no record exists under the requested id.
var ErrNotFound = errors.New("store: record not found")

// Record is one stored row: a stable id plus its JSON-compatible fields.
type Record struct {
	ID     string
	Fields map[string]interface{}
}

// Store is the interface the SDK depends on for durable state.
// Implementations must be safe for concurrent use.
type Store interface {
	// Create inserts a record. Creating an id that already exists in the
	// table overwrites it.
	Create(ctx context.Context, table, id string, fields map[string]interface{}) error

	// Get returns the record stored under id, or ErrNotFound.
	Get(ctx context.Context, table, id string) (Record, error)

	// Query returns every record whose fields contain all of the given
	// key/value pairs, matched exactly.
	Query(ctx context.Context, table string, match map[string]interface{}) ([]Record, error)

	// All returns every record in the table, in unspecified order.
	All(ctx context.Context, table string) ([]Record, error)

	// Update replaces the fields of an existing record, or ErrNotFound.
	Update(ctx context.Context, table, id string, fields map[string]interface{}) error

	// Remove deletes the record under id. Removing a missing id is a no-op.
	Remove(ctx context.Context, table, id string) error

	// RemoveIDs deletes the listed records in one operation.
	RemoveIDs(ctx context.Context, table string, ids []string) error

	// ClearTable deletes every record in the table.
	ClearTable(ctx context.Context, table string) error
}

// fieldsMatch reports whether fields contain every key/value pair in match.
func fieldsMatch(fields, match map[string]interface{}) bool {
	for key, want := range match {
		got, ok := fields[key]
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}
