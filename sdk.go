// Package controllersdk lets applications invoke remote controller methods
// as tracked asynchronous calls, with result caching, session handling, and
// durable constraint-gated replay of reliable calls.
package controllersdk

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/joshuarp/controller-sdk/auth"
	"github.com/joshuarp/controller-sdk/cache"
	"github.com/joshuarp/controller-sdk/call"
	"github.com/joshuarp/controller-sdk/config"
	"github.com/joshuarp/controller-sdk/constraint"
	"github.com/joshuarp/controller-sdk/event"
	"github.com/joshuarp/controller-sdk/pipeline"
	"github.com/joshuarp/controller-sdk/queue"
	"github.com/joshuarp/controller-sdk/schema"
	"github.com/joshuarp/controller-sdk/store"
	"github.com/joshuarp/controller-sdk/transport"
	"github.com/joshuarp/controller-sdk/uid"
)

var nowFunc = time.Now

// Options configures a Client. Zero-value fields fall back to defaults:
// in-memory storage, the HTTP transport, and a UUID v7 id generator.
type Options struct {
	// Config supplies settings from a file; Settings overrides it when set.
	Config   config.Provider
	Settings *config.Settings

	Transport    transport.Transport
	Store        store.Store
	Connectivity constraint.ConnectivitySource
	Location     constraint.LocationSource
	Authorizer   auth.InteractiveAuthorizer
	Logger       *slog.Logger
	UID          uid.Options
}

// Client is the SDK entry point. Construct with New; all methods are safe
// for concurrent use.
type Client struct {
	settings config.Settings
	logger   *slog.Logger
	registry *schema.Registry
	emitter  *event.Emitter
	session  *auth.Session
	eval     *constraint.Evaluator
	cache    *cache.ResultCache
	store    store.Store
	queues   *queue.Manager
	pipeline *pipeline.Pipeline
	uid      uid.Generator

	mu    sync.Mutex
	calls map[string]*call.Call
}

// New wires a client from the given options.
func New(opts Options) (*Client, error) {
	settings := config.LoadSettings(opts.Config)
	if opts.Settings != nil {
		settings = *opts.Settings
	}
	if settings.EndpointURL == "" {
		return nil, fmt.Errorf("controllersdk: endpoint URL is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = NewJSONLogger(settings.LogLevel)
	}

	st := opts.Store
	if st == nil {
		st = store.NewMemoryStore()
	}

	tr := opts.Transport
	if tr == nil {
		tr = transport.NewHTTP(settings.RequestTimeout)
	}

	uidOpts := opts.UID
	if uidOpts.Strategy == "" {
		uidOpts.Strategy = uid.StrategyUUIDv7
	}
	generator, err := uid.New(uidOpts)
	if err != nil {
		return nil, err
	}

	emitter := event.NewEmitter()
	session := auth.NewSession(emitter)
	eval := constraint.NewEvaluator(opts.Connectivity, opts.Location)
	resultCache := cache.New(eval.Offline)
	registry := schema.NewRegistry()
	queues := queue.NewManager(st, settings.QueueTable, eval, emitter, logger)

	c := &Client{
		settings: settings,
		logger:   logger,
		registry: registry,
		emitter:  emitter,
		session:  session,
		eval:     eval,
		cache:    resultCache,
		store:    st,
		queues:   queues,
		uid:      generator,
		calls:    make(map[string]*call.Call),
	}
	c.pipeline = pipeline.New(pipeline.Params{
		Settings:   settings,
		Transport:  tr,
		Registry:   registry,
		Cache:      resultCache,
		Session:    session,
		Authorizer: opts.Authorizer,
		Evaluator:  eval,
		Logger:     logger,
	})

	c.bindQueueEvents()
	return c, nil
}

// bindQueueEvents keeps in-process call records in step with queue replay
// outcomes. Records created before a restart no longer exist; their
// completion reaches the host only through the emitter events.
func (c *Client) bindQueueEvents() {
	c.emitter.On(queue.EventSuccess, func(args ...interface{}) {
		callID, _ := args[0].(string)
		rec, ok := c.Call(callID)
		if !ok {
			return
		}
		var result interface{}
		var details *transport.Details
		if len(args) > 1 {
			result = args[1]
		}
		if len(args) > 2 {
			details, _ = args[2].(*transport.Details)
		}
		if err := rec.Begin(); err != nil {
			return
		}
		_ = rec.Succeed(result, details)
	})
	c.emitter.On(queue.EventError, func(args ...interface{}) {
		callID, _ := args[0].(string)
		rec, ok := c.Call(callID)
		if !ok {
			return
		}
		var failure error
		if len(args) > 1 {
			failure, _ = args[1].(error)
		}
		if err := rec.Begin(); err != nil {
			return
		}
		_ = rec.Fail(failure, nil)
	})
}

// Registry exposes the model and controller registry for generated code to
// populate.
func (c *Client) Registry() *schema.Registry { return c.registry }

// Session returns the authorization state shared by all calls.
func (c *Client) Session() *auth.Session { return c.session }

// Evaluator returns the constraint evaluator, for registering named
// predicates and swapping connectivity sources.
func (c *Client) Evaluator() *constraint.Evaluator { return c.eval }

// On registers an event handler (authorization-lost, queue outcomes).
func (c *Client) On(name string, h event.Handler) { c.emitter.On(name, h) }

// Unbind removes all handlers for an event.
func (c *Client) Unbind(name string) { c.emitter.Unbind(name) }

// Call returns a tracked call record by id.
func (c *Client) Call(id string) (*call.Call, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.calls[id]
	return rec, ok
}

func (c *Client) track(rec *call.Call) {
	c.mu.Lock()
	c.calls[rec.ID()] = rec
	c.mu.Unlock()
}

// newRecord resolves the method, merges schema defaults, and validates the
// attributes. A validation failure returns a failed record and the error;
// no network or queue activity happens for it.
func (c *Client) newRecord(ctx context.Context, controller, method string, attrs map[string]interface{}, opts call.Options, reliable bool) (*call.Call, schema.Method, map[string]interface{}, error) {
	m, ok := c.registry.LookupMethod(controller, method)
	if !ok {
		return nil, schema.Method{}, nil, fmt.Errorf("controllersdk: method %s.%s is not registered", controller, method)
	}

	id := opts.CallID
	if id == "" {
		generated, err := c.uid.Generate(ctx)
		if err != nil {
			return nil, schema.Method{}, nil, err
		}
		id = generated
	}

	var rec *call.Call
	if reliable {
		rec = call.NewReliable(id)
	} else {
		rec = call.New(id)
	}
	rec.SetToken(opts.Token)
	c.track(rec)

	merged := make(map[string]interface{}, len(m.Defaults)+len(attrs))
	for name, value := range m.Defaults {
		merged[name] = value
	}
	for name, value := range attrs {
		merged[name] = value
	}

	if !opts.SkipValidation {
		if invalid := schema.Validate(m.Attributes, merged, false); len(invalid) > 0 {
			verr := &call.ValidationError{Invalid: invalid}
			_ = rec.Fail(verr, nil)
			return rec, schema.Method{}, nil, verr
		}
	}

	return rec, m, merged, nil
}

// Invoke starts a one-shot call. The returned record completes
// asynchronously; use Await or the record accessors. A validation failure
// is returned synchronously alongside the failed record.
func (c *Client) Invoke(ctx context.Context, controller, method string, attrs map[string]interface{}, opts call.Options) (*call.Call, error) {
	rec, m, merged, err := c.newRecord(ctx, controller, method, attrs, opts, false)
	if err != nil {
		return rec, err
	}

	go c.pipeline.Do(ctx, rec, m, merged, opts)
	return rec, nil
}

// InvokeReliable starts a reliable call. When its constraint holds it
// dispatches immediately; otherwise the call is persisted into its named
// queue to be replayed by RunQueues once conditions allow. A reliable call
// whose lifetime has already passed fails with constraint-failure.
func (c *Client) InvokeReliable(ctx context.Context, controller, method string, attrs map[string]interface{}, opts call.ReliableOptions) (*call.Call, error) {
	rec, m, merged, err := c.newRecord(ctx, controller, method, attrs, opts.Options, true)
	if err != nil {
		return rec, err
	}

	if c.eval.IsMet(opts.Constraint) && !c.eval.Offline() {
		go c.pipeline.DoReliable(ctx, rec, m, merged, opts)
		return rec, nil
	}

	if opts.Expired(nowFunc()) {
		failure := fmt.Errorf("%w: reliable call %s expired before it could be queued", call.ErrConstraintFailure, rec.ID())
		_ = rec.Fail(failure, nil)
		return rec, nil
	}

	entryID, err := c.uid.Generate(ctx)
	if err != nil {
		_ = rec.Fail(err, nil)
		return rec, err
	}
	entry := queue.Entry{
		ID:        entryID,
		QueueName: opts.QueueName,
		CallID:    rec.ID(),
		Options:   opts,
		Request: queue.RequestSnapshot{
			Controller: controller,
			Method:     method,
			Attributes: merged,
		},
	}
	if err := c.queues.Enqueue(ctx, entry); err != nil {
		_ = rec.Fail(err, nil)
		return rec, err
	}
	if err := rec.MarkQueued(); err != nil {
		return rec, err
	}
	return rec, nil
}

// LoadQueues restores persisted reliable queues, typically once at startup.
func (c *Client) LoadQueues(ctx context.Context) error {
	return c.queues.Load(ctx)
}

// RunQueues replays every reliable queue against current conditions and
// returns the call ids that completed.
func (c *Client) RunQueues(ctx context.Context) []string {
	return c.queues.RunAll(ctx, c.pipeline)
}

// QueueLen reports how many entries wait in the named queue.
func (c *Client) QueueLen(name string) int { return c.queues.Len(name) }

// CancelCall cancels a tracked call. A queued call is also removed from its
// queue; an executing call has its exchange aborted.
func (c *Client) CancelCall(ctx context.Context, id string) error {
	rec, ok := c.Call(id)
	if !ok {
		return fmt.Errorf("controllersdk: unknown call %s", id)
	}
	if err := rec.Cancel(); err != nil {
		return err
	}
	c.queues.Remove(ctx, id)
	return nil
}

// CancelAllPendingCalls discards queued entries and cancels their tracked
// records. With no names every queue is cleared; with names only those
// queues are.
func (c *Client) CancelAllPendingCalls(ctx context.Context, queueNames ...string) {
	for _, id := range c.queues.CancelAll(ctx, queueNames...) {
		if rec, ok := c.Call(id); ok {
			_ = rec.Cancel()
		}
	}
}

// ClearCache evicts cached results: the listed call ids, or everything when
// none are given.
func (c *Client) ClearCache(ids ...string) {
	if len(ids) == 0 {
		c.cache.Clear()
		return
	}
	for _, id := range ids {
		c.cache.Evict(id)
	}
}

// DisposeAllDoneCalls releases every completed call, evicts their cached
// results, and asks the server to drop retained reliable results.
func (c *Client) DisposeAllDoneCalls(ctx context.Context) error {
	c.mu.Lock()
	var done []*call.Call
	for _, rec := range c.calls {
		state := rec.State()
		if state == call.StateSuccess || state == call.StateFailed {
			done = append(done, rec)
		}
	}
	c.mu.Unlock()

	var reliableIDs []string
	for _, rec := range done {
		if err := rec.Dispose(); err != nil {
			continue
		}
		c.cache.Evict(rec.ID())
		if rec.Reliable() {
			reliableIDs = append(reliableIDs, rec.ID())
		}
		c.mu.Lock()
		delete(c.calls, rec.ID())
		c.mu.Unlock()
	}

	return c.pipeline.CleanupCorrelations(ctx, reliableIDs)
}

// SaveCredentials persists login inputs when the host opted in via
// settings.
func (c *Client) SaveCredentials(ctx context.Context, creds auth.Credentials) error {
	if !c.settings.StoreCredentials {
		return nil
	}
	return auth.SaveCredentials(ctx, c.store, c.settings.CredentialTable, creds)
}

// LoadCredentials reads previously persisted login inputs.
func (c *Client) LoadCredentials(ctx context.Context) (auth.Credentials, bool, error) {
	return auth.LoadCredentials(ctx, c.store, c.settings.CredentialTable)
}

// Reset drops all client-side state: cache, queues, tracked calls, session,
// and saved credentials.
func (c *Client) Reset(ctx context.Context) error {
	c.cache.Clear()
	c.queues.CancelAll(ctx)
	c.session.Clear()

	c.mu.Lock()
	c.calls = make(map[string]*call.Call)
	c.mu.Unlock()

	return auth.ClearCredentials(ctx, c.store, c.settings.CredentialTable)
}
