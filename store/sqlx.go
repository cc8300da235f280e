package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var _ Store = (*SQLXStore)(nil)

// SQLXStore persists records in a single Postgres table with a jsonb fields
// column:
//
//	CREATE TABLE sdk_records (
//	    table_name TEXT NOT NULL,
//	    id         TEXT NOT NULL,
//	    fields     JSONB NOT NULL,
//	    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
//	    updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
//	    PRIMARY KEY (table_name, id)
//	);
type SQLXStore struct {
	db *sqlx.DB
}

func NewSQLXStore(db *sqlx.DB) *SQLXStore {
	return &SQLXStore{db: db}
}

func (s *SQLXStore) Create(ctx context.Context, table, id string, fields map[string]interface{}) error {
	if s == nil || s.db == nil {
		return errors.New("store: sqlx store is not initialized")
	}

	payload, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("store: failed to encode fields: %w", err)
	}

	const query = `
INSERT INTO sdk_records (table_name, id, fields, created_at, updated_at)
VALUES ($1, $2, $3, now(), now())
ON CONFLICT (table_name, id) DO UPDATE SET fields = EXCLUDED.fields, updated_at = now()`

	if _, err := s.db.ExecContext(ctx, query, table, id, payload); err != nil {
		return fmt.Errorf("store: failed to insert record: %w", err)
	}
	return nil
}

func (s *SQLXStore) Get(ctx context.Context, table, id string) (Record, error) {
	if s == nil || s.db == nil {
		return Record{}, errors.New("store: sqlx store is not initialized")
	}

	const query = `SELECT fields FROM sdk_records WHERE table_name = $1 AND id = $2`

	var payload []byte
	if err := s.db.GetContext(ctx, &payload, query, table, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("store: failed to query record: %w", err)
	}

	fields, err := decodeFields(payload)
	if err != nil {
		return Record{}, err
	}
	return Record{ID: id, Fields: fields}, nil
}

func (s *SQLXStore) Query(ctx context.Context, table string, match map[string]interface{}) ([]Record, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store: sqlx store is not initialized")
	}

	payload, err := json.Marshal(match)
	if err != nil {
		return nil, fmt.Errorf("store: failed to encode match: %w", err)
	}

	const query = `SELECT id, fields FROM sdk_records WHERE table_name = $1 AND fields @> $2 ORDER BY id`

	type row struct {
		ID     string `db:"id"`
		Fields []byte `db:"fields"`
	}

	var rows []row
	if err := s.db.SelectContext(ctx, &rows, query, table, payload); err != nil {
		return nil, fmt.Errorf("store: failed to query records: %w", err)
	}

	out := make([]Record, 0, len(rows))
	for _, r := range rows {
		fields, err := decodeFields(r.Fields)
		if err != nil {
			return nil, err
		}
		out = append(out, Record{ID: r.ID, Fields: fields})
	}
	return out, nil
}

func (s *SQLXStore) All(ctx context.Context, table string) ([]Record, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store: sqlx store is not initialized")
	}

	const query = `SELECT id, fields FROM sdk_records WHERE table_name = $1 ORDER BY id`

	type row struct {
		ID     string `db:"id"`
		Fields []byte `db:"fields"`
	}

	var rows []row
	if err := s.db.SelectContext(ctx, &rows, query, table); err != nil {
		return nil, fmt.Errorf("store: failed to list records: %w", err)
	}

	out := make([]Record, 0, len(rows))
	for _, r := range rows {
		fields, err := decodeFields(r.Fields)
		if err != nil {
			return nil, err
		}
		out = append(out, Record{ID: r.ID, Fields: fields})
	}
	return out, nil
}

func (s *SQLXStore) Update(ctx context.Context, table, id string, fields map[string]interface{}) error {
	if s == nil || s.db == nil {
		return errors.New("store: sqlx store is not initialized")
	}

	payload, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("store: failed to encode fields: %w", err)
	}

	const query = `
UPDATE sdk_records SET fields = $3, updated_at = now()
WHERE table_name = $1 AND id = $2`

	result, err := s.db.ExecContext(ctx, query, table, id, payload)
	if err != nil {
		return fmt.Errorf("store: failed to update record: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLXStore) Remove(ctx context.Context, table, id string) error {
	if s == nil || s.db == nil {
		return errors.New("store: sqlx store is not initialized")
	}

	const query = `DELETE FROM sdk_records WHERE table_name = $1 AND id = $2`
	if _, err := s.db.ExecContext(ctx, query, table, id); err != nil {
		return fmt.Errorf("store: failed to delete record: %w", err)
	}
	return nil
}

func (s *SQLXStore) RemoveIDs(ctx context.Context, table string, ids []string) error {
	if s == nil || s.db == nil {
		return errors.New("store: sqlx store is not initialized")
	}
	if len(ids) == 0 {
		return nil
	}

	query, args, err := sqlx.In(`DELETE FROM sdk_records WHERE table_name = ? AND id IN (?)`, table, ids)
	if err != nil {
		return fmt.Errorf("store: failed to build delete query: %w", err)
	}
	query = s.db.Rebind(query)

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("store: failed to delete records: %w", err)
	}
	return nil
}

func (s *SQLXStore) ClearTable(ctx context.Context, table string) error {
	if s == nil || s.db == nil {
		return errors.New("store: sqlx store is not initialized")
	}

	const query = `DELETE FROM sdk_records WHERE table_name = $1`
	if _, err := s.db.ExecContext(ctx, query, table); err != nil {
		return fmt.Errorf("store: failed to clear table: %w", err)
	}
	return nil
}

func decodeFields(payload []byte) (map[string]interface{}, error) {
	var fields map[string]interface{}
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, fmt.Errorf("store: failed to decode fields: %w", err)
	}
	return fields, nil
}
