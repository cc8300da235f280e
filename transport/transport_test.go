package transport

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type HTTPTransportSuite struct {
	suite.Suite

	app  *fiber.App
	base string
}

func (s *HTTPTransportSuite) SetupSuite() {
	s.app = fiber.New()

	s.app.Get("/ping", func(c fiber.Ctx) error {
		c.Set("X-Fixture", "pong")
		return c.JSON(fiber.Map{"ok": true})
	})
	s.app.Post("/echo", func(c fiber.Ctx) error {
		c.Set("Content-Type", c.Get("Content-Type"))
		return c.Send(c.Body())
	})
	s.app.Get("/slow", func(c fiber.Ctx) error {
		time.Sleep(500 * time.Millisecond)
		return c.SendString("late")
	})
	s.app.Get("/denied", func(c fiber.Ctx) error {
		return c.Status(fiber.StatusForbidden).SendString("no")
	})

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(s.T(), err)
	s.base = fmt.Sprintf("http://%s", listener.Addr().String())

	go func() {
		_ = s.app.Listener(listener)
	}()
}

func (s *HTTPTransportSuite) TearDownSuite() {
	_ = s.app.Shutdown()
}

func (s *HTTPTransportSuite) TestDo_Success() {
	tr := NewHTTP(5 * time.Second)

	details, err := tr.Do(context.Background(), &Request{
		Method: "GET",
		URL:    s.base + "/ping",
	})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 200, details.StatusCode)
	assert.Equal(s.T(), "pong", details.Header("X-Fixture"))
	assert.JSONEq(s.T(), `{"ok":true}`, string(details.Body))
}

func (s *HTTPTransportSuite) TestDo_SendsBodyAndHeaders() {
	tr := NewHTTP(5 * time.Second)

	details, err := tr.Do(context.Background(), &Request{
		Method:      "POST",
		URL:         s.base + "/echo",
		ContentType: "text/plain",
		Headers:     map[string]string{"X-Extra": "1"},
		Body:        []byte("hello"),
	})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "hello", string(details.Body))
	assert.Contains(s.T(), details.Header("Content-Type"), "text/plain")
}

func (s *HTTPTransportSuite) TestDo_Timeout() {
	tr := NewHTTP(100 * time.Millisecond)

	_, err := tr.Do(context.Background(), &Request{
		Method: "GET",
		URL:    s.base + "/slow",
	})
	assert.ErrorIs(s.T(), err, ErrTimeout)
}

func (s *HTTPTransportSuite) TestDo_NonSuccessStatusIsNotAnError() {
	tr := NewHTTP(5 * time.Second)

	details, err := tr.Do(context.Background(), &Request{
		Method: "GET",
		URL:    s.base + "/denied",
	})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 403, details.StatusCode)
}

func TestHTTPTransportSuite(t *testing.T) {
	suite.Run(t, new(HTTPTransportSuite))
}

func TestAcceptHeader_TableDriven(t *testing.T) {
	tests := []struct {
		returnType string
		want       string
	}{
		{returnType: "", want: ""},
		{returnType: "void", want: ""},
		{returnType: "string", want: "text/plain, application/json"},
		{returnType: "int", want: "text/plain, application/json"},
		{returnType: "binary", want: "*/*"},
		{returnType: "Account", want: "application/json, text/plain"},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, AcceptHeader(tc.returnType), "returnType=%s", tc.returnType)
	}
}
