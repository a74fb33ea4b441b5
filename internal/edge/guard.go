// Package edge implements the pre-handler route classifier. It decides,
// without any backend round trip, whether a browser request may continue or
// must be redirected: unauthenticated callers away from protected paths,
// authenticated callers away from auth entry paths.
//
// The check is deliberately shallow. It inspects only credential presence
// and JWT shape, never signature or expiry, because it runs before the
// verification infrastructure is reachable. An expired or tampered
// credential therefore passes the guard and is rejected downstream by the
// permission gate; the guard is a cheap filter, not the security boundary.
package edge

import (
	"net/url"
	"strings"
)

// DecisionKind classifies the guard's verdict for a request.
type DecisionKind int

const (
	// Continue lets the request through to the handler.
	Continue DecisionKind = iota
	// Redirect short-circuits the request with a redirect.
	Redirect
)

// Decision is the guard's verdict; Location is set only for Redirect.
type Decision struct {
	Kind     DecisionKind
	Location string
}

// Rules holds the two path-pattern sets the guard classifies against.
// Patterns match a path prefix after the locale segment is stripped, so
// "/dashboard" covers "/en/dashboard" and "/fr/dashboard/settings".
type Rules struct {
	// Protected paths require a credential.
	Protected []string `yaml:"protected"`
	// AuthEntry paths redirect away when a credential is present.
	AuthEntry []string `yaml:"authEntry"`
	// DefaultLocale is used when the request path carries no locale
	// segment.
	DefaultLocale string `yaml:"defaultLocale"`
	// SigninPath is where unauthenticated callers are sent.
	SigninPath string `yaml:"signinPath"`
	// LandingPath is where already-authenticated callers are sent from
	// auth entry pages.
	LandingPath string `yaml:"landingPath"`
}

// DefaultRules are the compiled-in route rules.
func DefaultRules() Rules {
	return Rules{
		Protected:     []string{"/dashboard", "/settings"},
		AuthEntry:     []string{"/signin", "/signup"},
		DefaultLocale: "en",
		SigninPath:    "/signin",
		LandingPath:   "/dashboard",
	}
}

// Guard is the stateless route classifier. It is a pure function over its
// inputs and safe for concurrent use.
type Guard struct {
	rules Rules
}

// NewGuard creates a guard. Zero-valued rule fields fall back to the
// defaults so a partial YAML file only overrides what it names.
func NewGuard(rules Rules) *Guard {
	defaults := DefaultRules()
	if rules.Protected == nil {
		rules.Protected = defaults.Protected
	}
	if rules.AuthEntry == nil {
		rules.AuthEntry = defaults.AuthEntry
	}
	if rules.DefaultLocale == "" {
		rules.DefaultLocale = defaults.DefaultLocale
	}
	if rules.SigninPath == "" {
		rules.SigninPath = defaults.SigninPath
	}
	if rules.LandingPath == "" {
		rules.LandingPath = defaults.LandingPath
	}
	return &Guard{rules: rules}
}

// Evaluate classifies one request. credential is the locally available
// bearer credential, or empty when none is present; a structurally invalid
// credential counts as absent.
func (g *Guard) Evaluate(path string, credential string) Decision {
	locale, rest := splitLocale(path, g.rules.DefaultLocale)
	hasCredential := LooksLikeToken(credential)

	if matchesAny(rest, g.rules.Protected) && !hasCredential {
		location := "/" + locale + g.rules.SigninPath +
			"?callbackUrl=" + url.QueryEscape(path)
		return Decision{Kind: Redirect, Location: location}
	}

	if matchesAny(rest, g.rules.AuthEntry) && hasCredential {
		return Decision{Kind: Redirect, Location: "/" + locale + g.rules.LandingPath}
	}

	return Decision{Kind: Continue}
}

// LooksLikeToken reports whether the credential has the structural shape of
// a signed token: three non-empty dot-separated segments. Nothing more is
// checked here.
func LooksLikeToken(credential string) bool {
	if credential == "" {
		return false
	}
	parts := strings.Split(credential, ".")
	if len(parts) != 3 {
		return false
	}
	for _, part := range parts {
		if part == "" {
			return false
		}
	}
	return true
}

// splitLocale separates the leading locale segment from the rest of the
// path, falling back to the default locale when none is present. A locale
// segment is a two-letter code, optionally with a region ("en", "pt-BR").
func splitLocale(path, defaultLocale string) (locale, rest string) {
	trimmed := strings.TrimPrefix(path, "/")
	segment, remainder, _ := strings.Cut(trimmed, "/")
	if isLocale(segment) {
		return segment, "/" + remainder
	}
	return defaultLocale, path
}

func isLocale(segment string) bool {
	lang, region, hasRegion := strings.Cut(segment, "-")
	if len(lang) != 2 || strings.ToLower(lang) != lang {
		return false
	}
	for _, r := range lang {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	if hasRegion && len(region) != 2 {
		return false
	}
	return true
}

func matchesAny(path string, patterns []string) bool {
	for _, pattern := range patterns {
		if path == pattern || strings.HasPrefix(path, pattern+"/") {
			return true
		}
	}
	return false
}
