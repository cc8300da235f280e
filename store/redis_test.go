package store

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStoreForTest(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client)
}

func TestRedisStore_CRUD(t *testing.T) {
	ctx := context.Background()
	st := newRedisStoreForTest(t)

	require.NoError(t, st.Create(ctx, "queues", "r1", map[string]interface{}{"seq": float64(1)}))

	rec, err := st.Get(ctx, "queues", "r1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, rec.Fields["seq"])

	_, err = st.Get(ctx, "queues", "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, st.Update(ctx, "queues", "r1", map[string]interface{}{"seq": float64(5)}))
	rec, err = st.Get(ctx, "queues", "r1")
	require.NoError(t, err)
	assert.EqualValues(t, 5, rec.Fields["seq"])

	assert.ErrorIs(t, st.Update(ctx, "queues", "missing", map[string]interface{}{}), ErrNotFound)

	require.NoError(t, st.Remove(ctx, "queues", "r1"))
	_, err = st.Get(ctx, "queues", "r1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_AllSkipsDanglingIDs(t *testing.T) {
	ctx := context.Background()
	st := newRedisStoreForTest(t)

	require.NoError(t, st.Create(ctx, "queues", "a", map[string]interface{}{"v": "1"}))
	require.NoError(t, st.Create(ctx, "queues", "b", map[string]interface{}{"v": "2"}))

	// Drop only the record key, leaving the id in the table set.
	require.NoError(t, st.client.Del(ctx, st.recordKey("queues", "a")).Err())

	records, err := st.All(ctx, "queues")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "b", records[0].ID)
}

func TestRedisStore_Query(t *testing.T) {
	ctx := context.Background()
	st := newRedisStoreForTest(t)

	require.NoError(t, st.Create(ctx, "queues", "a", map[string]interface{}{"queue": "Q1", "state": "queued"}))
	require.NoError(t, st.Create(ctx, "queues", "b", map[string]interface{}{"queue": "Q2", "state": "queued"}))

	records, err := st.Query(ctx, "queues", map[string]interface{}{"queue": "Q1"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "a", records[0].ID)
}

func TestRedisStore_RemoveIDsAndClear(t *testing.T) {
	ctx := context.Background()
	st := newRedisStoreForTest(t)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, st.Create(ctx, "queues", id, map[string]interface{}{"id": id}))
	}

	require.NoError(t, st.RemoveIDs(ctx, "queues", []string{"a", "c"}))
	records, err := st.All(ctx, "queues")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "b", records[0].ID)

	require.NoError(t, st.ClearTable(ctx, "queues"))
	records, err = st.All(ctx, "queues")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestRedisStore_TablesAreIndependent(t *testing.T) {
	ctx := context.Background()
	st := newRedisStoreForTest(t)

	require.NoError(t, st.Create(ctx, "t1", "x", map[string]interface{}{"v": "1"}))
	require.NoError(t, st.Create(ctx, "t2", "x", map[string]interface{}{"v": "2"}))

	require.NoError(t, st.ClearTable(ctx, "t1"))
	rec, err := st.Get(ctx, "t2", "x")
	require.NoError(t, err)
	assert.Equal(t, "2", rec.Fields["v"])
}
