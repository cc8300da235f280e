// Package cache holds completed call results so repeat invocations with the
// same request shape can be answered without a network exchange.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/joshuarp/controller-sdk/transport"
)

// Fingerprint derives the stable request identity used for cache lookups:
// the controller, the method, and the canonical JSON encoding of the
// resolved attribute values. Two calls with the same fingerprint are
// interchangeable for caching.
func Fingerprint(controller, method string, attrs map[string]interface{}) (string, error) {
	payload, err := json.Marshal(attrs)
	if err != nil {
		return "", fmt.Errorf("cache: failed to encode attributes: %w", err)
	}
	sum := sha256.Sum256([]byte(controller + "|" + method + "|" + string(payload)))
	return hex.EncodeToString(sum[:]), nil
}

// Entry is one cached call result.
type Entry struct {
	CallID      string
	Fingerprint string
	Result      interface{}
	Details     *transport.Details

	// CacheAge is the epoch second the entry expires at.
	CacheAge int64

	// IgnoreAgeIfOffline keeps an expired entry servable while the host
	// has no connectivity.
	IgnoreAgeIfOffline bool
}

// ResultCache is an in-memory result cache with lazy expiry. Entries are
// owned by their call id and found by request fingerprint.
type ResultCache struct {
	mu            sync.Mutex
	byFingerprint map[string]*Entry
	byID          map[string]*Entry
	offline       func() bool
	now           func() time.Time
}

// New creates a cache. offline reports current connectivity for the
// offline-override rule; nil means never offline.
func New(offline func() bool) *ResultCache {
	if offline == nil {
		offline = func() bool { return false }
	}
	return &ResultCache{
		byFingerprint: make(map[string]*Entry),
		byID:          make(map[string]*Entry),
		offline:       offline,
		now:           time.Now,
	}
}

// Store records a completed call's result. An entry with CacheAge zero is
// not cached. Storing under an existing call id replaces that entry.
func (c *ResultCache) Store(e Entry) {
	if e.CacheAge == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.byID[e.CallID]; ok {
		delete(c.byFingerprint, old.Fingerprint)
	}
	stored := e
	c.byID[e.CallID] = &stored
	c.byFingerprint[e.Fingerprint] = &stored
}

// Lookup returns the cached entry for a request fingerprint. An expired
// entry is evicted and reported as a miss, unless it was stored with
// IgnoreAgeIfOffline and the host is currently offline.
func (c *ResultCache) Lookup(fingerprint string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.byFingerprint[fingerprint]
	if !ok {
		return Entry{}, false
	}
	if c.now().Unix() >= e.CacheAge {
		if !(e.IgnoreAgeIfOffline && c.offline()) {
			delete(c.byFingerprint, e.Fingerprint)
			delete(c.byID, e.CallID)
			return Entry{}, false
		}
	}
	return *e, true
}

// LookupByID returns the cached entry owned by a call id, applying the same
// expiry rule as Lookup.
func (c *ResultCache) LookupByID(callID string) (Entry, bool) {
	c.mu.Lock()
	e, ok := c.byID[callID]
	c.mu.Unlock()
	if !ok {
		return Entry{}, false
	}
	return c.Lookup(e.Fingerprint)
}

// Evict removes the entry owned by the call id.
func (c *ResultCache) Evict(callID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.byID[callID]; ok {
		delete(c.byFingerprint, e.Fingerprint)
		delete(c.byID, callID)
	}
}

// Clear drops every cached entry.
func (c *ResultCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byFingerprint = make(map[string]*Entry)
	c.byID = make(map[string]*Entry)
}

// IDs returns the call ids of all resident entries, expired or not.
func (c *ResultCache) IDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.byID))
	for id := range c.byID {
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of resident entries.
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byID)
}
