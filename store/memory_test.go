package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_CRUD(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	require.NoError(t, st.Create(ctx, "queues", "r1", map[string]interface{}{"seq": 1}))
	require.NoError(t, st.Create(ctx, "queues", "r2", map[string]interface{}{"seq": 2}))

	rec, err := st.Get(ctx, "queues", "r1")
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Fields["seq"])

	_, err = st.Get(ctx, "queues", "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	all, err := st.All(ctx, "queues")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, st.Update(ctx, "queues", "r1", map[string]interface{}{"seq": 9}))
	rec, err = st.Get(ctx, "queues", "r1")
	require.NoError(t, err)
	assert.Equal(t, 9, rec.Fields["seq"])

	assert.ErrorIs(t, st.Update(ctx, "queues", "missing", nil), ErrNotFound)

	require.NoError(t, st.Remove(ctx, "queues", "r1"))
	_, err = st.Get(ctx, "queues", "r1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_Query(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	require.NoError(t, st.Create(ctx, "t", "a", map[string]interface{}{"queue": "Q1", "state": "queued"}))
	require.NoError(t, st.Create(ctx, "t", "b", map[string]interface{}{"queue": "Q1", "state": "sent"}))
	require.NoError(t, st.Create(ctx, "t", "c", map[string]interface{}{"queue": "Q2", "state": "queued"}))

	records, err := st.Query(ctx, "t", map[string]interface{}{"queue": "Q1", "state": "queued"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "a", records[0].ID)

	records, err = st.Query(ctx, "t", map[string]interface{}{"queue": "Q3"})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestMemoryStore_RemoveIDsAndClear(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, st.Create(ctx, "t", id, map[string]interface{}{"id": id}))
	}

	require.NoError(t, st.RemoveIDs(ctx, "t", []string{"a", "c"}))
	all, err := st.All(ctx, "t")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "b", all[0].ID)

	require.NoError(t, st.ClearTable(ctx, "t"))
	all, err = st.All(ctx, "t")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestMemoryStore_TablesAreIndependent(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	require.NoError(t, st.Create(ctx, "t1", "x", map[string]interface{}{"v": 1}))
	require.NoError(t, st.Create(ctx, "t2", "x", map[string]interface{}{"v": 2}))

	require.NoError(t, st.ClearTable(ctx, "t1"))
	rec, err := st.Get(ctx, "t2", "x")
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Fields["v"])
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	require.NoError(t, st.Create(ctx, "t", "x", map[string]interface{}{"v": 1}))
	rec, err := st.Get(ctx, "t", "x")
	require.NoError(t, err)
	rec.Fields["v"] = 99

	fresh, err := st.Get(ctx, "t", "x")
	require.NoError(t, err)
	assert.Equal(t, 1, fresh.Fields["v"])
}
