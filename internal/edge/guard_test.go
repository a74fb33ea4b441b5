package edge

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const wellFormedToken = "eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiJ4In0.c2ln"

func TestGuard_Evaluate(t *testing.T) {
	guard := NewGuard(Rules{})

	tests := []struct {
		name       string
		path       string
		credential string
		expected   Decision
	}{
		{
			name:     "protected path without credential redirects to signin",
			path:     "/en/dashboard",
			expected: Decision{Kind: Redirect, Location: "/en/signin?callbackUrl=%2Fen%2Fdashboard"},
		},
		{
			name:       "protected path with credential continues",
			path:       "/en/dashboard",
			credential: wellFormedToken,
			expected:   Decision{Kind: Continue},
		},
		{
			name:       "auth entry with credential redirects to landing",
			path:       "/en/signin",
			credential: wellFormedToken,
			expected:   Decision{Kind: Redirect, Location: "/en/dashboard"},
		},
		{
			name:     "auth entry without credential continues",
			path:     "/en/signin",
			expected: Decision{Kind: Continue},
		},
		{
			name:     "unlisted path without credential continues",
			path:     "/en/pricing",
			expected: Decision{Kind: Continue},
		},
		{
			name:       "unlisted path with credential continues",
			path:       "/en/pricing",
			credential: wellFormedToken,
			expected:   Decision{Kind: Continue},
		},
		{
			name:     "missing locale falls back to default in redirect target",
			path:     "/dashboard",
			expected: Decision{Kind: Redirect, Location: "/en/signin?callbackUrl=%2Fdashboard"},
		},
		{
			name:     "non default locale is preserved",
			path:     "/fr/dashboard",
			expected: Decision{Kind: Redirect, Location: "/fr/signin?callbackUrl=%2Ffr%2Fdashboard"},
		},
		{
			name:     "locale with region is preserved",
			path:     "/pt-BR/settings",
			expected: Decision{Kind: Redirect, Location: "/pt-BR/signin?callbackUrl=%2Fpt-BR%2Fsettings"},
		},
		{
			name:     "nested protected path matches by prefix",
			path:     "/en/dashboard/reports/weekly",
			expected: Decision{Kind: Redirect, Location: "/en/signin?callbackUrl=%2Fen%2Fdashboard%2Freports%2Fweekly"},
		},
		{
			name:     "prefix match requires a segment boundary",
			path:     "/en/dashboard-public",
			expected: Decision{Kind: Continue},
		},
		{
			name:       "malformed credential counts as absent",
			path:       "/en/dashboard",
			credential: "garbage",
			expected:   Decision{Kind: Redirect, Location: "/en/signin?callbackUrl=%2Fen%2Fdashboard"},
		},
		{
			name:       "two segment credential counts as absent",
			path:       "/en/dashboard",
			credential: "header.payload",
			expected:   Decision{Kind: Redirect, Location: "/en/signin?callbackUrl=%2Fen%2Fdashboard"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, guard.Evaluate(tt.path, tt.credential))
		})
	}
}

func TestLooksLikeToken(t *testing.T) {
	tests := []struct {
		name       string
		credential string
		expected   bool
	}{
		{
			name:       "three non-empty segments",
			credential: wellFormedToken,
			expected:   true,
		},
		{
			name:       "empty string",
			credential: "",
			expected:   false,
		},
		{
			name:       "two segments",
			credential: "a.b",
			expected:   false,
		},
		{
			name:       "four segments",
			credential: "a.b.c.d",
			expected:   false,
		},
		{
			name:       "empty middle segment",
			credential: "a..c",
			expected:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, LooksLikeToken(tt.credential))
		})
	}
}

func TestLoadRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routes.yaml")
	content := `
protected:
  - /dashboard
  - /billing
defaultLocale: de
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	rules, err := LoadRules(path)
	require.NoError(t, err)

	guard := NewGuard(rules)

	// Overridden fields apply, untouched fields keep their defaults.
	decision := guard.Evaluate("/billing", "")
	require.Equal(t, Redirect, decision.Kind)
	require.Equal(t, "/de/signin?callbackUrl=%2Fbilling", decision.Location)

	decision = guard.Evaluate("/en/signin", wellFormedToken)
	require.Equal(t, Redirect, decision.Kind)
	require.Equal(t, "/en/dashboard", decision.Location)
}

func TestGuard_Middleware(t *testing.T) {
	guard := NewGuard(Rules{})
	handler := guard.Middleware("inopsio_token")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("redirects without cookie", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/en/dashboard", nil)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, r)

		require.Equal(t, http.StatusFound, w.Code)
		require.Equal(t, "/en/signin?callbackUrl=%2Fen%2Fdashboard", w.Header().Get("Location"))
	})

	t.Run("continues with cookie", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/en/dashboard", nil)
		r.AddCookie(&http.Cookie{Name: "inopsio_token", Value: wellFormedToken})
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, r)

		require.Equal(t, http.StatusOK, w.Code)
	})
}
