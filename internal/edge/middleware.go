package edge

import (
	"net/http"

	"github.com/rs/zerolog"
)

// Middleware applies the guard to page requests, reading the credential
// from the mirror cookie. Redirect decisions short-circuit with 302; the
// handler behind it never runs for a redirected request.
func (g *Guard) Middleware(cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var credential string
			if cookie, err := r.Cookie(cookieName); err == nil {
				credential = cookie.Value
			}

			decision := g.Evaluate(r.URL.Path, credential)
			if decision.Kind == Redirect {
				zerolog.Ctx(r.Context()).Debug().
					Str("path", r.URL.Path).
					Str("location", decision.Location).
					Msg("Edge redirect")
				http.Redirect(w, r, decision.Location, http.StatusFound)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
