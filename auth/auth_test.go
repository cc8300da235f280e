package auth

import (
	"context"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuarp/controller-sdk/event"
	"github.com/joshuarp/controller-sdk/store"
)

func signedToken(t *testing.T, expiresAt time.Time) string {
	t.Helper()
	claims := jwtlib.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwtlib.NewNumericDate(expiresAt),
	}
	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).
		SignedString([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	return token
}

func TestSession_Lifecycle(t *testing.T) {
	s := NewSession(event.NewEmitter())
	assert.Equal(t, StatusNoAuthorization, s.Status())

	s.SetToken("tok")
	assert.Equal(t, StatusAuthorized, s.Status())
	assert.Equal(t, "tok", s.Token())

	s.Clear()
	assert.Equal(t, StatusNoAuthorization, s.Status())
	assert.Empty(t, s.Token())
}

func TestSession_MarkUnauthorizedFiresOnce(t *testing.T) {
	emitter := event.NewEmitter()
	s := NewSession(emitter)
	s.SetToken("tok")

	fired := 0
	emitter.On(EventUnauthorized, func(...interface{}) { fired++ })

	s.MarkUnauthorized()
	s.MarkUnauthorized()

	assert.Equal(t, StatusUnauthorized, s.Status())
	assert.Empty(t, s.Token())
	assert.Equal(t, 1, fired, "only the transition notifies")
}

func TestSession_TokenExpired_TableDriven(t *testing.T) {
	tests := []struct {
		name  string
		token func(t *testing.T) string
		want  bool
	}{
		{
			name:  "no token",
			token: func(*testing.T) string { return "" },
			want:  true,
		},
		{
			name:  "future expiry",
			token: func(t *testing.T) string { return signedToken(t, time.Now().Add(time.Hour)) },
			want:  false,
		},
		{
			name:  "past expiry",
			token: func(t *testing.T) string { return signedToken(t, time.Now().Add(-time.Hour)) },
			want:  true,
		},
		{
			name:  "opaque non-JWT token",
			token: func(*testing.T) string { return "opaque-session-id" },
			want:  false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := NewSession(event.NewEmitter())
			if token := tc.token(t); token != "" {
				s.SetToken(token)
			}
			assert.Equal(t, tc.want, s.TokenExpired())
		})
	}
}

func TestCredentials_RoundTrip(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()

	_, found, err := LoadCredentials(ctx, st, "connection")
	require.NoError(t, err)
	assert.False(t, found)

	creds := Credentials{Username: "dana", Password: "s3cret"}
	require.NoError(t, SaveCredentials(ctx, st, "connection", creds))

	// The persisted form is encoded, not plaintext.
	rec, err := st.Get(ctx, "connection", "credentials")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", rec.Fields["password"])

	loaded, found, err := LoadCredentials(ctx, st, "connection")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, creds, loaded)

	require.NoError(t, ClearCredentials(ctx, st, "connection"))
	_, found, err = LoadCredentials(ctx, st, "connection")
	require.NoError(t, err)
	assert.False(t, found)
}
