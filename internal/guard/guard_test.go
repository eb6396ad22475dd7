package guard

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecide_ProtectedWithoutTokenRedirectsToLogin(t *testing.T) {
	rules := DefaultRules()

	paths := []string{
		"/dashboard",
		"/dashboard/weather",
		"/farmer/dashboard",
		"/customer/dashboard/orders",
		"/profile",
		"/profile/settings",
	}
	for _, p := range paths {
		t.Run(p, func(t *testing.T) {
			d := rules.Decide(p, "")
			assert.Equal(t, Redirect, d.Action)
			assert.Equal(t, "/login", d.Target)
		})
	}
}

func TestDecide_AuthOnlyWithTokenRedirectsToDashboard(t *testing.T) {
	rules := DefaultRules()

	for _, p := range []string{"/login", "/register"} {
		t.Run(p, func(t *testing.T) {
			d := rules.Decide(p, "abc")
			assert.Equal(t, Redirect, d.Action)
			assert.Equal(t, "/dashboard", d.Target)
		})
	}
}

func TestDecide_Allow(t *testing.T) {
	rules := DefaultRules()

	tests := []struct {
		name  string
		path  string
		token string
	}{
		{"home anonymous", "/", ""},
		{"home signed in", "/", "abc"},
		{"login anonymous", "/login", ""},
		{"register anonymous", "/register", ""},
		{"dashboard signed in", "/dashboard", "abc"},
		{"profile signed in", "/profile/settings", "abc"},
		{"login subpath signed in", "/login/help", "abc"},
		{"login trailing slash signed in", "/login/", "abc"},
		{"case differs", "/Dashboard", ""},
		{"marketplace", "/marketplace", ""},
		{"api", "/api/fields", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := rules.Decide(tt.path, tt.token)
			assert.True(t, d.Allowed(), "got %s to %q", d.Action, d.Target)
			assert.Empty(t, d.Target)
		})
	}
}

// Literal prefix matching also catches paths that merely share the prefix string.
func TestDecide_LiteralPrefixMatching(t *testing.T) {
	rules := DefaultRules()

	for _, p := range []string{"/profiles", "/profile-public", "/dashboards"} {
		t.Run(p, func(t *testing.T) {
			d := rules.Decide(p, "")
			assert.Equal(t, Redirect, d.Action)
			assert.Equal(t, "/login", d.Target)
		})
	}
}

func TestDecide_ForgedTokenPasses(t *testing.T) {
	d := DefaultRules().Decide("/dashboard", "not-a-real-jwt")
	assert.True(t, d.Allowed())
}

func TestDecide_CustomRules(t *testing.T) {
	rules := Rules{
		ProtectedPrefixes: []string{"/admin"},
		AuthOnlyPaths:     []string{"/signin"},
		LoginPath:         "/signin",
		DashboardPath:     "/admin/home",
	}

	assert.Equal(t, Decision{Action: Redirect, Target: "/signin"}, rules.Decide("/admin/users", ""))
	assert.Equal(t, Decision{Action: Redirect, Target: "/admin/home"}, rules.Decide("/signin", "t"))
	assert.True(t, rules.Decide("/dashboard", "").Allowed())
}
