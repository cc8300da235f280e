package call

import (
	"time"

	"github.com/joshuarp/controller-sdk/constraint"
)

// Options tunes a single controller invocation.
type Options struct {
	// CallID identifies the call and keys its cache slot. The client
	// assigns one when empty; supply the id of an earlier call to read or
	// refresh that call's cached result.
	CallID string `json:"callId,omitempty"`

	// CacheAge is the epoch second until which a cached result for this
	// call may be served. Zero disables caching entirely.
	CacheAge int64 `json:"cacheAge,omitempty"`

	// IgnoreAgeIfOffline serves an expired cached result anyway when the
	// host has no connectivity.
	IgnoreAgeIfOffline bool `json:"ignoreAgeIfOffline,omitempty"`

	// SkipValidation bypasses attribute validation.
	SkipValidation bool `json:"skipValidation,omitempty"`

	// Token is an opaque correlation value echoed back on the call record.
	Token string `json:"token,omitempty"`

	// Headers are merged into the outbound request, overriding synthesized
	// values on conflict.
	Headers map[string]string `json:"headers,omitempty"`

	// Constraint gates execution. A one-shot call with an unmet constraint
	// fails fast with ErrConstraintFailure; a reliable call waits in its
	// queue instead.
	Constraint constraint.Constraint `json:"constraint,omitempty"`
}

// SetCacheTimeout allows cached results for this call to be served for the
// given duration from now.
func (o *Options) SetCacheTimeout(d time.Duration) {
	o.CacheAge = time.Now().Add(d).Unix()
}

// ReliableOptions extends Options for calls that survive in a persisted
// queue until their constraint is met or they expire.
type ReliableOptions struct {
	Options

	// QueueName selects the named FIFO queue. Empty selects the default
	// queue.
	QueueName string `json:"queueName,omitempty"`

	// RequestAge is the epoch second at which the queued call expires. An
	// entry whose age has passed is dropped without executing. Zero means
	// already expired, so set a future age before enqueueing.
	RequestAge int64 `json:"requestAge,omitempty"`

	// SuccessEvent and ErrorEvent name the emitter events fired when the
	// queued call finally completes.
	SuccessEvent string `json:"successEvent,omitempty"`
	ErrorEvent   string `json:"errorEvent,omitempty"`
}

// SetRequestTimeout keeps the queued call alive for the given duration from
// now before it expires.
func (o *ReliableOptions) SetRequestTimeout(d time.Duration) {
	o.RequestAge = time.Now().Add(d).Unix()
}

// Expired reports whether the queued call's lifetime has passed at the
// given instant. A zero RequestAge counts as expired.
func (o *ReliableOptions) Expired(now time.Time) bool {
	return now.Unix() >= o.RequestAge
}

// ServerTimeout is the result-retention hint sent to the server: the
// remaining entry lifetime plus a grace period for the final exchange.
func (o *ReliableOptions) ServerTimeout(now time.Time) time.Duration {
	remaining := time.Duration(o.RequestAge-now.Unix()) * time.Second
	if remaining < 0 {
		remaining = 0
	}
	return remaining + 30*time.Second
}
