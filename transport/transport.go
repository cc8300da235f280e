// Package transport performs the actual HTTP exchange for prepared requests.
// It knows nothing about controllers, queues, or caching; it receives a fully
// resolved request and returns the raw response details.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// ErrTimeout reports that the request exceeded the client-side timeout.
var ErrTimeout = errors.New("transport: request timed out")

// Request is a fully prepared outbound request. The URL already contains any
// template, matrix, and query placements.
type Request struct {
	Method      string
	URL         string
	ContentType string
	Headers     map[string]string
	Body        []byte
}

// Details is the raw transport-level outcome of an exchange, surfaced to the
// caller alongside the decoded result.
type Details struct {
	StatusCode int
	Status     string
	Headers    http.Header
	Body       []byte
}

// Header returns the first value of the named response header.
func (d *Details) Header(name string) string {
	if d == nil || d.Headers == nil {
		return ""
	}
	return d.Headers.Get(name)
}

// Transport dispatches prepared requests. Implementations must be safe for
// concurrent use.
type Transport interface {
	Do(ctx context.Context, req *Request) (*Details, error)
}

var _ Transport = (*HTTPTransport)(nil)

// HTTPTransport dispatches requests over net/http with a fixed per-request
// timeout.
type HTTPTransport struct {
	client  *http.Client
	timeout time.Duration
}

// NewHTTP creates an HTTP transport. A non-positive timeout disables the
// client-side deadline.
func NewHTTP(timeout time.Duration) *HTTPTransport {
	return &HTTPTransport{
		client:  &http.Client{},
		timeout: timeout,
	}
}

// NewHTTPWithClient creates an HTTP transport around an existing client,
// used by tests to point at a fixture server.
func NewHTTPWithClient(client *http.Client, timeout time.Duration) *HTTPTransport {
	return &HTTPTransport{client: client, timeout: timeout}
}

func (t *HTTPTransport) Do(ctx context.Context, req *Request) (*Details, error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("transport: failed to build request: %w", err)
	}
	for name, value := range req.Headers {
		httpReq.Header.Set(name, value)
	}
	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("transport: request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("transport: failed to read response body: %w", err)
	}

	return &Details{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Headers:    resp.Header,
		Body:       payload,
	}, nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// AcceptHeader synthesizes the Accept header for a declared return type:
// JSON for structured results, text for primitives, and the declared binary
// mime type when known.
func AcceptHeader(returnType string) string {
	switch returnType {
	case "", "void":
		return ""
	case "binary", "_data":
		return "*/*"
	case "string", "char", "boolean", "byte", "short", "int", "integer", "long", "float", "double":
		return "text/plain, application/json"
	default:
		return "application/json, text/plain"
	}
}
