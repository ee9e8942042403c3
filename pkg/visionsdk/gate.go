package visionsdk

import "strings"

// Access is the authentication requirement of a view.
type Access int

const (
	// AccessPublic views are reachable by anyone.
	AccessPublic Access = iota
	// AccessAuthOnly views are for signed-out users only (login, signup).
	AccessAuthOnly
	// AccessProtected views need a session.
	AccessProtected
)

func (a Access) String() string {
	switch a {
	case AccessPublic:
		return "public"
	case AccessAuthOnly:
		return "auth-only"
	case AccessProtected:
		return "protected"
	}
	return "unknown"
}

// Default redirect targets.
const (
	LoginView     = "/login"
	DashboardView = "/dashboard"
)

// Decision is the result of a gate check. Redirect is set when Allowed is
// false.
type Decision struct {
	Allowed  bool
	Redirect string
}

// Gate decides whether a view may be shown. Decisions depend only on token
// presence, so they never wait for the profile.
type Gate struct {
	views         map[string]Access
	fallback      Access
	loginView     string
	dashboardView string
}

// NewGate returns a gate where unknown views have the fallback access.
func NewGate(fallback Access) *Gate {
	return &Gate{
		views:         make(map[string]Access),
		fallback:      fallback,
		loginView:     LoginView,
		dashboardView: DashboardView,
	}
}

// Redirects overrides where blocked users are sent.
func (g *Gate) Redirects(login, dashboard string) *Gate {
	g.loginView, g.dashboardView = login, dashboard
	return g
}

// Register sets the access of each view.
func (g *Gate) Register(access Access, views ...string) *Gate {
	for _, v := range views {
		g.views[normalizeView(v)] = access
	}
	return g
}

// Access returns the access of view.
func (g *Gate) Access(view string) Access {
	if a, ok := g.views[normalizeView(view)]; ok {
		return a
	}
	return g.fallback
}

// Check decides whether view is shown to a user whose authentication state
// is authenticated.
func (g *Gate) Check(view string, authenticated bool) Decision {
	switch g.Access(view) {
	case AccessProtected:
		if !authenticated {
			return Decision{Redirect: g.loginView}
		}
	case AccessAuthOnly:
		if authenticated {
			return Decision{Redirect: g.dashboardView}
		}
	}
	return Decision{Allowed: true}
}

func normalizeView(v string) string {
	v = strings.TrimSpace(v)
	if len(v) > 1 {
		v = strings.TrimSuffix(v, "/")
	}
	return v
}

// DefaultWebViews is the route table of the web client.
func DefaultWebViews() *Gate {
	return NewGate(AccessAuthOnly).
		Register(AccessPublic, "/terms-of-service", "/privacy-policy").
		Register(AccessAuthOnly, "/", "/login", "/register", "/forgot-password").
		Register(AccessProtected,
			"/home", "/dashboard", "/library", "/create", "/wallet", "/profile",
			"/store", "/store/success", "/checkout/success", "/checkout/cancel",
			"/settings", "/chat",
		)
}
