package controllersdk

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/joshuarp/controller-sdk/auth"
	"github.com/joshuarp/controller-sdk/call"
	"github.com/joshuarp/controller-sdk/config"
	"github.com/joshuarp/controller-sdk/constraint"
	"github.com/joshuarp/controller-sdk/queue"
	"github.com/joshuarp/controller-sdk/schema"
	"github.com/joshuarp/controller-sdk/store"
	"github.com/joshuarp/controller-sdk/transport"
)

type fakeTransport struct {
	mu       sync.Mutex
	requests []*transport.Request
	respond  func(req *transport.Request) (*transport.Details, error)
}

func (f *fakeTransport) Do(_ context.Context, req *transport.Request) (*transport.Details, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.respond == nil {
		return &transport.Details{StatusCode: 200, Status: "200 OK", Body: []byte(`{"ok":true}`)}, nil
	}
	return f.respond(req)
}

func (f *fakeTransport) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type switchableNetwork struct {
	mu      sync.Mutex
	network constraint.Network
}

func (s *switchableNetwork) Network() constraint.Network {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.network
}

func (s *switchableNetwork) set(n constraint.Network) {
	s.mu.Lock()
	s.network = n
	s.mu.Unlock()
}

type ClientSuite struct {
	suite.Suite

	transport *fakeTransport
	network   *switchableNetwork
	store     *store.MemoryStore
	client    *Client
}

func (s *ClientSuite) SetupTest() {
	settings := config.Defaults()
	settings.EndpointURL = "https://api.example.com"
	settings.StoreCredentials = true

	s.transport = &fakeTransport{}
	s.network = &switchableNetwork{network: constraint.NetworkWifi}
	s.store = store.NewMemoryStore()

	client, err := New(Options{
		Settings:     &settings,
		Transport:    s.transport,
		Store:        s.store,
		Connectivity: s.network,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(s.T(), err)
	s.client = client

	require.NoError(s.T(), client.Registry().RegisterController(schema.Controller{
		Name: "orders",
		Methods: map[string]schema.Method{
			"get": {
				Path:       "/orders/{id}",
				Verb:       "GET",
				ReturnType: "object",
				Attributes: map[string]schema.Attribute{
					"id": {Type: "string", Style: schema.StyleTemplate},
				},
			},
			"place": {
				Path:        "/orders",
				Verb:        "POST",
				ContentType: "application/json",
				ReturnType:  "object",
				Attributes: map[string]schema.Attribute{
					"order": {Type: "object", Style: schema.StylePlain},
				},
			},
		},
	}))
}

func (s *ClientSuite) await(rec *call.Call) (interface{}, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	result, _, err := rec.Await(ctx)
	return result, err
}

func (s *ClientSuite) TestNew_RequiresEndpoint() {
	_, err := New(Options{Settings: &config.Settings{}})
	assert.Error(s.T(), err)
}

func (s *ClientSuite) TestInvoke_Success() {
	rec, err := s.client.Invoke(context.Background(), "orders", "get",
		map[string]interface{}{"id": "o1"}, call.Options{})
	require.NoError(s.T(), err)

	result, err := s.await(rec)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), call.StateSuccess, rec.State())
	assert.Equal(s.T(), map[string]interface{}{"ok": true}, result)
	assert.Contains(s.T(), s.transport.requests[0].URL, "/rest/orders/o1")
}

func (s *ClientSuite) TestInvoke_CachedSecondCall() {
	opts := call.Options{}
	opts.SetCacheTimeout(time.Minute)
	attrs := map[string]interface{}{"id": "o1"}

	first, err := s.client.Invoke(context.Background(), "orders", "get", attrs, opts)
	require.NoError(s.T(), err)
	_, err = s.await(first)
	require.NoError(s.T(), err)

	second, err := s.client.Invoke(context.Background(), "orders", "get", attrs, opts)
	require.NoError(s.T(), err)
	_, err = s.await(second)
	require.NoError(s.T(), err)

	assert.True(s.T(), second.ResultFromCache())
	assert.Equal(s.T(), 1, s.transport.count())
}

func (s *ClientSuite) TestInvoke_ValidationFailure() {
	rec, err := s.client.Invoke(context.Background(), "orders", "get",
		map[string]interface{}{}, call.Options{})

	require.Error(s.T(), err)
	assert.ErrorIs(s.T(), err, call.ErrFailedValidation)
	assert.Equal(s.T(), call.StateFailed, rec.State())
	assert.Zero(s.T(), s.transport.count(), "no network activity on validation failure")
}

func (s *ClientSuite) TestInvoke_ConstraintUnmetFailsFast() {
	s.network.set(constraint.NetworkCellular)

	opts := call.Options{}
	opts.Constraint = constraint.Constraint{Networks: []constraint.Network{constraint.NetworkWifi}}

	rec, err := s.client.Invoke(context.Background(), "orders", "get",
		map[string]interface{}{"id": "o1"}, opts)
	require.NoError(s.T(), err)

	_, err = s.await(rec)
	require.Error(s.T(), err)
	assert.ErrorIs(s.T(), err, call.ErrConstraintFailure)
	assert.Equal(s.T(), call.StateFailed, rec.State())
	assert.Zero(s.T(), s.transport.count(), "one-shot calls never wait on a constraint")
}

func (s *ClientSuite) TestInvoke_UnknownMethod() {
	_, err := s.client.Invoke(context.Background(), "orders", "teleport", nil, call.Options{})
	assert.Error(s.T(), err)
}

func (s *ClientSuite) TestInvoke_TokenCarriedOnRecord() {
	rec, err := s.client.Invoke(context.Background(), "orders", "get",
		map[string]interface{}{"id": "o1"}, call.Options{Token: "corr-9"})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "corr-9", rec.Token())
}

func (s *ClientSuite) TestInvokeReliable_DispatchesWhenConstraintMet() {
	opts := call.ReliableOptions{}
	opts.SetRequestTimeout(time.Hour)

	rec, err := s.client.InvokeReliable(context.Background(), "orders", "get",
		map[string]interface{}{"id": "o1"}, opts)
	require.NoError(s.T(), err)

	_, err = s.await(rec)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), call.StateSuccess, rec.State())
	assert.True(s.T(), rec.Reliable())

	// Immediate dispatch carries the same correlation headers as a queued
	// replay, so the later cleanup call references a correlation the server
	// has seen.
	req := s.transport.requests[0]
	assert.Equal(s.T(), rec.ID(), req.Headers["X-Correlation-Id"])
	assert.NotEmpty(s.T(), req.Headers["X-Result-Timeout"])
}

func (s *ClientSuite) TestInvokeReliable_QueuedUntilConstraintMet() {
	s.network.set(constraint.NetworkCellular)

	opts := call.ReliableOptions{QueueName: "Q1"}
	opts.SetRequestTimeout(time.Hour)
	opts.Constraint = constraint.Constraint{Networks: []constraint.Network{constraint.NetworkWifi}}

	rec, err := s.client.InvokeReliable(context.Background(), "orders", "get",
		map[string]interface{}{"id": "o1"}, opts)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), call.StateQueued, rec.State())
	assert.Equal(s.T(), 1, s.client.QueueLen("Q1"))

	// Still on cellular: the run leaves the entry untouched.
	completed := s.client.RunQueues(context.Background())
	assert.Empty(s.T(), completed)
	assert.Zero(s.T(), s.transport.count())

	// Connectivity restored: the entry replays and the record completes.
	s.network.set(constraint.NetworkWifi)
	completed = s.client.RunQueues(context.Background())

	assert.Equal(s.T(), []string{rec.ID()}, completed)
	assert.Equal(s.T(), call.StateSuccess, rec.State())
	assert.Equal(s.T(), 1, s.transport.count())
	assert.Zero(s.T(), s.client.QueueLen("Q1"))
}

func (s *ClientSuite) TestInvokeReliable_ExpiredFailsWithoutQueueing() {
	s.network.set(constraint.NetworkNone)

	opts := call.ReliableOptions{}
	opts.RequestAge = time.Now().Add(-time.Hour).Unix()

	rec, err := s.client.InvokeReliable(context.Background(), "orders", "get",
		map[string]interface{}{"id": "o1"}, opts)
	require.NoError(s.T(), err)

	assert.Equal(s.T(), call.StateFailed, rec.State())
	assert.ErrorIs(s.T(), rec.Err(), call.ErrConstraintFailure)
	assert.Zero(s.T(), s.client.QueueLen(queue.DefaultQueue))
}

func (s *ClientSuite) TestCancelAllPendingCalls() {
	s.network.set(constraint.NetworkNone)

	opts := call.ReliableOptions{}
	opts.SetRequestTimeout(time.Hour)

	rec, err := s.client.InvokeReliable(context.Background(), "orders", "get",
		map[string]interface{}{"id": "o1"}, opts)
	require.NoError(s.T(), err)
	require.Equal(s.T(), call.StateQueued, rec.State())

	s.client.CancelAllPendingCalls(context.Background())

	assert.Equal(s.T(), call.StateCancelled, rec.State())
	assert.Zero(s.T(), s.client.QueueLen(queue.DefaultQueue))
}

func (s *ClientSuite) TestCancelAllPendingCalls_ScopedToQueue() {
	s.network.set(constraint.NetworkNone)

	opts := call.ReliableOptions{QueueName: "Q1"}
	opts.SetRequestTimeout(time.Hour)
	first, err := s.client.InvokeReliable(context.Background(), "orders", "get",
		map[string]interface{}{"id": "o1"}, opts)
	require.NoError(s.T(), err)

	opts.QueueName = "Q2"
	second, err := s.client.InvokeReliable(context.Background(), "orders", "get",
		map[string]interface{}{"id": "o2"}, opts)
	require.NoError(s.T(), err)

	s.client.CancelAllPendingCalls(context.Background(), "Q1")

	assert.Equal(s.T(), call.StateCancelled, first.State())
	assert.Equal(s.T(), call.StateQueued, second.State())
	assert.Zero(s.T(), s.client.QueueLen("Q1"))
	assert.Equal(s.T(), 1, s.client.QueueLen("Q2"))
}

func (s *ClientSuite) TestDisposeAllDoneCalls() {
	rec, err := s.client.Invoke(context.Background(), "orders", "get",
		map[string]interface{}{"id": "o1"}, call.Options{})
	require.NoError(s.T(), err)
	_, err = s.await(rec)
	require.NoError(s.T(), err)

	require.NoError(s.T(), s.client.DisposeAllDoneCalls(context.Background()))
	assert.True(s.T(), rec.Disposed())

	_, tracked := s.client.Call(rec.ID())
	assert.False(s.T(), tracked)
}

func (s *ClientSuite) TestDisposeAllDoneCalls_CleansUpReliableCorrelations() {
	opts := call.ReliableOptions{}
	opts.SetRequestTimeout(time.Hour)

	rec, err := s.client.InvokeReliable(context.Background(), "orders", "get",
		map[string]interface{}{"id": "o1"}, opts)
	require.NoError(s.T(), err)
	_, err = s.await(rec)
	require.NoError(s.T(), err)

	require.NoError(s.T(), s.client.DisposeAllDoneCalls(context.Background()))

	var sawCleanup bool
	for _, req := range s.transport.requests {
		if strings.Contains(req.URL, "/rest/ccleanup?ids="+rec.ID()) {
			sawCleanup = true
		}
	}
	assert.True(s.T(), sawCleanup, "server asked to release the retained result")
}

func (s *ClientSuite) TestCredentials_RoundTripThroughClient() {
	ctx := context.Background()
	creds := auth.Credentials{Username: "dana", Password: "pw"}

	require.NoError(s.T(), s.client.SaveCredentials(ctx, creds))
	loaded, found, err := s.client.LoadCredentials(ctx)
	require.NoError(s.T(), err)
	require.True(s.T(), found)
	assert.Equal(s.T(), creds, loaded)
}

func (s *ClientSuite) TestReset() {
	ctx := context.Background()
	require.NoError(s.T(), s.client.SaveCredentials(ctx, auth.Credentials{Username: "u", Password: "p"}))
	s.client.Session().SetToken("tok")

	require.NoError(s.T(), s.client.Reset(ctx))

	assert.Equal(s.T(), auth.StatusNoAuthorization, s.client.Session().Status())
	_, found, err := s.client.LoadCredentials(ctx)
	require.NoError(s.T(), err)
	assert.False(s.T(), found)
}

func (s *ClientSuite) TestQueuePersistenceAcrossClients() {
	s.network.set(constraint.NetworkNone)

	opts := call.ReliableOptions{QueueName: "Q1"}
	opts.SetRequestTimeout(time.Hour)

	_, err := s.client.InvokeReliable(context.Background(), "orders", "get",
		map[string]interface{}{"id": "o1"}, opts)
	require.NoError(s.T(), err)

	// A second client over the same store stands in for a restarted
	// process.
	settings := config.Defaults()
	settings.EndpointURL = "https://api.example.com"
	revived, err := New(Options{
		Settings:     &settings,
		Transport:    s.transport,
		Store:        s.store,
		Connectivity: s.network,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(s.T(), err)
	require.NoError(s.T(), revived.Registry().RegisterController(schema.Controller{
		Name: "orders",
		Methods: map[string]schema.Method{
			"get": {
				Path: "/orders/{id}", Verb: "GET", ReturnType: "object",
				Attributes: map[string]schema.Attribute{
					"id": {Type: "string", Style: schema.StyleTemplate},
				},
			},
		},
	}))

	require.NoError(s.T(), revived.LoadQueues(context.Background()))
	require.Equal(s.T(), 1, revived.QueueLen("Q1"))

	s.network.set(constraint.NetworkWifi)
	completed := revived.RunQueues(context.Background())
	assert.Len(s.T(), completed, 1)
	assert.Equal(s.T(), 1, s.transport.count())
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientSuite))
}
