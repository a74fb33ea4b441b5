package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestRequestIDMiddleware_AdoptsValidUUID(t *testing.T) {
	supplied := uuid.Must(uuid.NewV7()).String()

	var seenInContext string
	handler := RequestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenInContext = RequestIDFromContext(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(RequestIDHeader, supplied)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, r)

	require.Equal(t, supplied, seenInContext)
	require.Equal(t, supplied, w.Header().Get(RequestIDHeader))
}

func TestRequestIDMiddleware_GeneratesWhenMissing(t *testing.T) {
	var seenInContext string
	handler := RequestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenInContext = RequestIDFromContext(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, r)

	require.NotEmpty(t, seenInContext)
	_, err := uuid.Parse(seenInContext)
	require.NoError(t, err)
	require.Equal(t, seenInContext, w.Header().Get(RequestIDHeader))
}

func TestRequestIDMiddleware_ReplacesMalformedID(t *testing.T) {
	tests := []struct {
		name     string
		supplied string
	}{
		{
			name:     "not a uuid",
			supplied: "hello-world",
		},
		{
			name:     "injection attempt",
			supplied: "abc\r\nSet-Cookie: x=1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := RequestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.Header.Set(RequestIDHeader, tt.supplied)
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, r)

			echoed := w.Header().Get(RequestIDHeader)
			require.NotEqual(t, tt.supplied, echoed)
			_, err := uuid.Parse(echoed)
			require.NoError(t, err)
		})
	}
}

func TestRateLimiter(t *testing.T) {
	limiter := NewRateLimiter(1, 2)

	require.True(t, limiter.Allow("203.0.113.1"))
	require.True(t, limiter.Allow("203.0.113.1"))
	require.False(t, limiter.Allow("203.0.113.1"))

	// Separate clients keep separate buckets.
	require.True(t, limiter.Allow("203.0.113.2"))
}

func TestRateLimiter_Middleware(t *testing.T) {
	limiter := NewRateLimiter(1, 1)
	handler := limiter.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.Header.Set("X-Real-IP", "203.0.113.9")

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
}
