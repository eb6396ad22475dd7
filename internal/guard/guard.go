// Package guard decides, per request, whether a page request may proceed or
// must be redirected based on the presence of a session token.
//
// Matching is literal and case-sensitive: a path is protected when it starts
// with a protected prefix, so "/profiles" matches "/profile". The token is
// never validated here; any non-empty value counts as signed in.
package guard

import "strings"

// TokenCookie is the cookie that carries the session token.
const TokenCookie = "token"

// Action is the outcome of a routing decision.
type Action int

const (
	Allow Action = iota
	Redirect
)

func (a Action) String() string {
	if a == Redirect {
		return "redirect"
	}
	return "allow"
}

// Decision tells the caller to continue or to redirect to Target.
type Decision struct {
	Action Action
	Target string
}

// Allowed reports whether the request may continue.
func (d Decision) Allowed() bool { return d.Action == Allow }

// Rules lists the paths that need a token and where visitors are sent.
type Rules struct {
	ProtectedPrefixes []string
	AuthOnlyPaths     []string
	LoginPath         string
	DashboardPath     string
}

// DefaultRules returns the dashboard's page rules.
func DefaultRules() Rules {
	return Rules{
		ProtectedPrefixes: []string{"/dashboard", "/farmer/dashboard", "/customer/dashboard", "/profile"},
		AuthOnlyPaths:     []string{"/login", "/register"},
		LoginPath:         "/login",
		DashboardPath:     "/dashboard",
	}
}

// Decide returns the routing decision for path given the session token
// (empty when the cookie is absent).
func (r Rules) Decide(path, token string) Decision {
	if token == "" && r.isProtected(path) {
		return Decision{Action: Redirect, Target: r.LoginPath}
	}
	if token != "" && r.isAuthOnly(path) {
		return Decision{Action: Redirect, Target: r.DashboardPath}
	}
	return Decision{Action: Allow}
}

func (r Rules) isProtected(path string) bool {
	for _, p := range r.ProtectedPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func (r Rules) isAuthOnly(path string) bool {
	for _, p := range r.AuthOnlyPaths {
		if path == p {
			return true
		}
	}
	return false
}
