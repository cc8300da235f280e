package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuarp/controller-sdk/transport"
)

func TestFingerprint_Deterministic(t *testing.T) {
	attrs := map[string]interface{}{"id": "42", "limit": 10}

	a, err := Fingerprint("accounts", "list", attrs)
	require.NoError(t, err)
	b, err := Fingerprint("accounts", "list", map[string]interface{}{"limit": 10, "id": "42"})
	require.NoError(t, err)
	assert.Equal(t, a, b, "attribute order must not change the fingerprint")

	c, err := Fingerprint("accounts", "list", map[string]interface{}{"id": "43", "limit": 10})
	require.NoError(t, err)
	assert.NotEqual(t, a, c)

	d, err := Fingerprint("accounts", "get", attrs)
	require.NoError(t, err)
	assert.NotEqual(t, a, d, "method name is part of the identity")
}

func TestStore_ZeroCacheAgeIsNoOp(t *testing.T) {
	c := New(nil)
	c.Store(Entry{CallID: "c1", Fingerprint: "fp", Result: "x", CacheAge: 0})

	_, ok := c.Lookup("fp")
	assert.False(t, ok)
	assert.Zero(t, c.Len())
}

func TestLookup_FreshEntryHits(t *testing.T) {
	c := New(nil)
	details := &transport.Details{StatusCode: 200}
	c.Store(Entry{
		CallID:      "c1",
		Fingerprint: "fp",
		Result:      "cached",
		Details:     details,
		CacheAge:    time.Now().Add(time.Minute).Unix(),
	})

	entry, ok := c.Lookup("fp")
	require.True(t, ok)
	assert.Equal(t, "cached", entry.Result)
	assert.Same(t, details, entry.Details)
}

func TestLookup_SecondCallWithinWindow(t *testing.T) {
	// Two identical calls with a 60 second window, the second 10 seconds
	// later, must share the exact result and details.
	base := time.Now()
	c := New(nil)
	c.now = func() time.Time { return base }

	details := &transport.Details{StatusCode: 200, Body: []byte(`{"a":1}`)}
	c.Store(Entry{
		CallID:      "c1",
		Fingerprint: "fp",
		Result:      map[string]interface{}{"a": 1},
		Details:     details,
		CacheAge:    base.Add(60 * time.Second).Unix(),
	})

	c.now = func() time.Time { return base.Add(10 * time.Second) }
	entry, ok := c.Lookup("fp")
	require.True(t, ok)
	assert.Same(t, details, entry.Details)
}

func TestLookup_ExpiredEntryEvictedLazily(t *testing.T) {
	base := time.Now()
	c := New(nil)
	c.now = func() time.Time { return base }

	c.Store(Entry{CallID: "c1", Fingerprint: "fp", Result: "x", CacheAge: base.Add(time.Second).Unix()})

	c.now = func() time.Time { return base.Add(time.Minute) }
	_, ok := c.Lookup("fp")
	assert.False(t, ok)
	assert.Zero(t, c.Len(), "expired entry is evicted on lookup")
}

func TestLookup_OfflineOverride(t *testing.T) {
	base := time.Now()
	offline := false
	c := New(func() bool { return offline })
	c.now = func() time.Time { return base }

	c.Store(Entry{
		CallID:             "c1",
		Fingerprint:        "fp",
		Result:             "stale-ok",
		CacheAge:           base.Add(time.Second).Unix(),
		IgnoreAgeIfOffline: true,
	})

	c.now = func() time.Time { return base.Add(time.Hour) }

	offline = true
	entry, ok := c.Lookup("fp")
	require.True(t, ok, "expired entry still served while offline")
	assert.Equal(t, "stale-ok", entry.Result)

	offline = false
	_, ok = c.Lookup("fp")
	assert.False(t, ok, "back online, the stale entry is evicted")
}

func TestStore_ReplacesEntryForSameCallID(t *testing.T) {
	c := New(nil)
	age := time.Now().Add(time.Minute).Unix()

	c.Store(Entry{CallID: "c1", Fingerprint: "fp-old", Result: "old", CacheAge: age})
	c.Store(Entry{CallID: "c1", Fingerprint: "fp-new", Result: "new", CacheAge: age})

	_, ok := c.Lookup("fp-old")
	assert.False(t, ok)
	entry, ok := c.Lookup("fp-new")
	require.True(t, ok)
	assert.Equal(t, "new", entry.Result)
	assert.Equal(t, 1, c.Len())
}

func TestEvictAndClear(t *testing.T) {
	c := New(nil)
	age := time.Now().Add(time.Minute).Unix()
	c.Store(Entry{CallID: "c1", Fingerprint: "fp1", CacheAge: age})
	c.Store(Entry{CallID: "c2", Fingerprint: "fp2", CacheAge: age})

	assert.ElementsMatch(t, []string{"c1", "c2"}, c.IDs())

	c.Evict("c1")
	_, ok := c.Lookup("fp1")
	assert.False(t, ok)
	_, ok = c.Lookup("fp2")
	assert.True(t, ok)

	c.Clear()
	assert.Zero(t, c.Len())
}

func TestLookupByID(t *testing.T) {
	c := New(nil)
	c.Store(Entry{CallID: "c1", Fingerprint: "fp", Result: "x", CacheAge: time.Now().Add(time.Minute).Unix()})

	entry, ok := c.LookupByID("c1")
	require.True(t, ok)
	assert.Equal(t, "x", entry.Result)

	_, ok = c.LookupByID("missing")
	assert.False(t, ok)
}
