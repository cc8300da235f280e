// Package pipeline drives the life of one controller invocation: cache
// lookup, request preparation, transport dispatch, status mapping, and
// response decoding. It also replays queued reliable entries on behalf of
// the queue manager.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/joshuarp/controller-sdk/auth"
	"github.com/joshuarp/controller-sdk/cache"
	"github.com/joshuarp/controller-sdk/call"
	"github.com/joshuarp/controller-sdk/config"
	"github.com/joshuarp/controller-sdk/constraint"
	"github.com/joshuarp/controller-sdk/queue"
	"github.com/joshuarp/controller-sdk/schema"
	"github.com/joshuarp/controller-sdk/transport"
)

// Correlation headers sent with replayed reliable calls so the server can
// retain and later release the idempotent result.
const (
	HeaderCorrelationID = "X-Correlation-Id"
	HeaderResultTimeout = "X-Result-Timeout"
)

var _ queue.Dispatcher = (*Pipeline)(nil)

// Pipeline holds the collaborators shared by every call. Construct one per
// client; it carries no per-call state.
type Pipeline struct {
	settings   config.Settings
	transport  transport.Transport
	registry   *schema.Registry
	cache      *cache.ResultCache
	session    *auth.Session
	authorizer auth.InteractiveAuthorizer
	eval       *constraint.Evaluator
	logger     *slog.Logger
}

// Params collects the pipeline's collaborators.
type Params struct {
	Settings   config.Settings
	Transport  transport.Transport
	Registry   *schema.Registry
	Cache      *cache.ResultCache
	Session    *auth.Session
	Authorizer auth.InteractiveAuthorizer
	Evaluator  *constraint.Evaluator
	Logger     *slog.Logger
}

func New(p Params) *Pipeline {
	return &Pipeline{
		settings:   p.Settings,
		transport:  p.Transport,
		registry:   p.Registry,
		cache:      p.Cache,
		session:    p.Session,
		authorizer: p.Authorizer,
		eval:       p.Evaluator,
		logger:     p.Logger,
	}
}

// Do executes a one-shot call end to end, recording the outcome on the call
// record. Cache hits complete the call without touching the transport.
func (p *Pipeline) Do(ctx context.Context, c *call.Call, method schema.Method, attrs map[string]interface{}, opts call.Options) {
	fingerprint, err := cache.Fingerprint(method.Controller, method.Name, attrs)
	if err != nil {
		p.fail(c, err, nil)
		return
	}

	if entry, ok := p.cache.Lookup(fingerprint); ok {
		if err := c.Begin(); err != nil {
			return
		}
		if err := c.SucceedFromCache(entry.Result, entry.Details); err == nil {
			p.logger.Debug("pipeline: served from cache", "call_id", c.ID(), "fingerprint", fingerprint)
		}
		return
	}

	if !p.eval.IsMet(opts.Constraint) {
		p.fail(c, fmt.Errorf("%w: constraint not met for %s.%s", call.ErrConstraintFailure, method.Controller, method.Name), nil)
		return
	}

	if p.eval.Offline() {
		p.fail(c, fmt.Errorf("%w: cannot dispatch %s.%s", call.ErrNoConnectivity, method.Controller, method.Name), nil)
		return
	}

	if err := c.Begin(); err != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.SetCancelFunc(cancel)

	req, err := p.Prepare(method, attrs)
	if err != nil {
		p.fail(c, err, nil)
		return
	}
	for name, value := range opts.Headers {
		req.Headers[name] = value
	}

	result, details, err := p.exchange(ctx, req, method.ReturnType)
	if err != nil {
		p.fail(c, err, details)
		return
	}

	if err := c.Succeed(result, details); err != nil {
		return
	}
	p.cache.Store(cache.Entry{
		CallID:             c.ID(),
		Fingerprint:        fingerprint,
		Result:             result,
		Details:            details,
		CacheAge:           opts.CacheAge,
		IgnoreAgeIfOffline: opts.IgnoreAgeIfOffline,
	})
}

// DoReliable executes a reliable call whose constraint already holds. It
// carries the same correlation headers as a queued replay so the server
// retains the idempotent result under the call id either way.
func (p *Pipeline) DoReliable(ctx context.Context, c *call.Call, method schema.Method, attrs map[string]interface{}, opts call.ReliableOptions) {
	headers := make(map[string]string, len(opts.Headers)+2)
	for name, value := range opts.Headers {
		headers[name] = value
	}
	headers[HeaderCorrelationID] = c.ID()
	headers[HeaderResultTimeout] = strconv.FormatInt(int64(opts.ServerTimeout(time.Now())/time.Second), 10)

	inner := opts.Options
	inner.Headers = headers
	p.Do(ctx, c, method, attrs, inner)
}

// Dispatch replays a queued entry. It rebuilds the request from the durable
// snapshot; the original call record no longer exists after a restart, so
// the outcome travels back through the queue manager's events.
func (p *Pipeline) Dispatch(ctx context.Context, e queue.Entry) (interface{}, *transport.Details, error) {
	method, ok := p.registry.LookupMethod(e.Request.Controller, e.Request.Method)
	if !ok {
		return nil, nil, fmt.Errorf("pipeline: method %s.%s is not registered", e.Request.Controller, e.Request.Method)
	}

	req, err := p.Prepare(method, e.Request.Attributes)
	if err != nil {
		return nil, nil, err
	}
	for name, value := range e.Options.Headers {
		req.Headers[name] = value
	}
	req.Headers[HeaderCorrelationID] = e.CallID
	req.Headers[HeaderResultTimeout] = strconv.FormatInt(int64(e.Options.ServerTimeout(time.Now())/time.Second), 10)

	return p.exchange(ctx, req, method.ReturnType)
}

// exchange sends a prepared request and maps the raw outcome: 2xx decodes
// to success, 401/403 flips the session, and a distinguished 403 body is
// diverted to the interactive authorizer with a single resubmit.
func (p *Pipeline) exchange(ctx context.Context, req *transport.Request, returnType string) (interface{}, *transport.Details, error) {
	details, err := p.transport.Do(ctx, req)
	if err != nil {
		if errors.Is(err, transport.ErrTimeout) {
			return nil, nil, fmt.Errorf("%w: %s %s", call.ErrRequestTimeout, req.Method, req.URL)
		}
		return nil, nil, err
	}

	if details.StatusCode >= 200 && details.StatusCode < 300 {
		return p.Decode(details, returnType), details, nil
	}

	if details.StatusCode == 403 && p.needsInteractiveAuth(details) {
		return p.divertToAuthorizer(ctx, req, returnType, details)
	}

	if details.StatusCode == 401 || details.StatusCode == 403 {
		p.session.MarkUnauthorized()
	}
	return nil, details, call.NewHTTPError(details.StatusCode, details.Status, details.Body)
}

func (p *Pipeline) needsInteractiveAuth(details *transport.Details) bool {
	marker := p.settings.InteractiveAuthMarker
	return marker != "" && p.authorizer != nil && strings.Contains(string(details.Body), marker)
}

// divertToAuthorizer runs the out-of-band flow and resubmits the original
// request exactly once. A second challenge is surfaced as a failure rather
// than looping.
func (p *Pipeline) divertToAuthorizer(ctx context.Context, req *transport.Request, returnType string, challenge *transport.Details) (interface{}, *transport.Details, error) {
	p.logger.Info("pipeline: interactive authorization required", "url", req.URL)

	if err := p.authorizer.Authorize(ctx, string(challenge.Body)); err != nil {
		return nil, challenge, fmt.Errorf("%w: %v", call.ErrOAuthFlow, err)
	}

	if token := p.session.Token(); token != "" {
		req.Headers["Authorization"] = "Bearer " + token
	}

	details, err := p.transport.Do(ctx, req)
	if err != nil {
		if errors.Is(err, transport.ErrTimeout) {
			return nil, nil, fmt.Errorf("%w: %s %s", call.ErrRequestTimeout, req.Method, req.URL)
		}
		return nil, nil, err
	}
	if details.StatusCode >= 200 && details.StatusCode < 300 {
		return p.Decode(details, returnType), details, nil
	}
	if details.StatusCode == 401 || details.StatusCode == 403 {
		p.session.MarkUnauthorized()
		return nil, details, fmt.Errorf("%w: resubmit after authorization rejected", call.ErrOAuthFlow)
	}
	return nil, details, call.NewHTTPError(details.StatusCode, details.Status, details.Body)
}

// CleanupCorrelations asks the server to release retained results for the
// given reliable call ids.
func (p *Pipeline) CleanupCorrelations(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	req := &transport.Request{
		Method:  "GET",
		URL:     p.settings.EndpointURL + p.settings.PathPrefix + p.settings.CorrelationCleanupPath + "?ids=" + strings.Join(ids, ","),
		Headers: make(map[string]string),
	}
	if token := p.session.Token(); token != "" {
		req.Headers["Authorization"] = "Bearer " + token
	}

	details, err := p.transport.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("pipeline: correlation cleanup failed: %w", err)
	}
	if details.StatusCode < 200 || details.StatusCode >= 300 {
		return call.NewHTTPError(details.StatusCode, details.Status, details.Body)
	}
	return nil
}

func (p *Pipeline) fail(c *call.Call, err error, details *transport.Details) {
	if failErr := c.Fail(err, details); failErr != nil {
		// The call was cancelled while we were completing it.
		return
	}
	p.logger.Warn("pipeline: call failed", "call_id", c.ID(), "error", err)
}
