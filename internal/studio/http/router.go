package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/minivisionary/internal/studio/metrics"
	"github.com/aussiebroadwan/minivisionary/internal/studio/poster"
	"github.com/aussiebroadwan/minivisionary/internal/studio/service"
	"github.com/aussiebroadwan/minivisionary/internal/studio/store"
	"github.com/aussiebroadwan/minivisionary/pkg/httpx"
	"github.com/aussiebroadwan/minivisionary/pkg/jwtx"
	"github.com/aussiebroadwan/minivisionary/pkg/slogx"

	_ "github.com/aussiebroadwan/minivisionary/api/studio" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// UploadsPrefix is where LocalStorage files are served.
const UploadsPrefix = "/uploads"

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys         *jwtx.KeySet
	verifier     jwtx.Verifier
	limits       httpx.RateLimits
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	metrics      *metrics.Metrics

	store          store.Store
	AuthService    *service.AuthService
	ProfileService *service.ProfileService
	WalletService  *service.WalletService
	PosterService  *service.PosterService
	PaymentService *service.PaymentService

	// Uploads is served under UploadsPrefix when set.
	Uploads *poster.LocalStorage

	// SimulatorEnabled exposes the local provider's payment page.
	SimulatorEnabled bool
}

func NewRouter(
	keys *jwtx.KeySet,
	verifier jwtx.Verifier,
	buildVersion string,
	st store.Store,
	m *metrics.Metrics,
	limits httpx.RateLimits,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		keys:         keys,
		verifier:     verifier,
		limits:       limits,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		metrics:      m,
		store:        st,
	}

	// Metrics sits innermost so it sees the matched route pattern.
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		m.Middleware,
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerProfile()
	r.registerPosters()
	r.registerPayments()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Mini-Visionary Studio API
//	@version		0.1.0
//	@description	Accounts, credits, poster generation and payments for the Mini-Visionary poster app.
//	@description
//	@description				Every response carries "ok". Failures add "error" (a stable code) and "message".
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/minivisionary
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Session token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// authed wraps h with bearer authentication and a per-user limit.
func (r *Router) authed(h http.Handler, limit httpx.RateLimitConfig) http.Handler {
	return httpx.Chain(h,
		httpx.AuthnMiddleware(r.verifier, r.store.Revocations()),
		httpx.RateLimitByUser(limit),
	)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{AuthService: r.AuthService}

	// Signup and login are the brute-force targets; login is keyed by email too.
	r.Mux.Handle("POST /auth/signup",
		httpx.Chain(http.HandlerFunc(h.Signup), httpx.RateLimitByIP(r.limits.Strict)),
	)
	r.Mux.Handle("POST /auth/login",
		httpx.Chain(http.HandlerFunc(h.Login), httpx.RateLimitByIPAndField(r.limits.Strict, "email")),
	)
	r.Mux.Handle("POST /auth/logout", r.authed(http.HandlerFunc(h.Logout), r.limits.Moderate))
}

func (r *Router) registerProfile() {
	h := &ProfileHandler{ProfileService: r.ProfileService}

	me := r.authed(http.HandlerFunc(h.Me), r.limits.Lenient)
	r.Mux.Handle("GET /me", me)
	r.Mux.Handle("GET /auth/whoami", me)
	r.Mux.Handle("PATCH /me", r.authed(http.HandlerFunc(h.Update), r.limits.Moderate))
}

func (r *Router) registerPosters() {
	h := &PosterHandler{PosterService: r.PosterService}

	r.Mux.Handle("POST /poster/generate", r.authed(http.HandlerFunc(h.Generate), r.limits.Moderate))
	r.Mux.Handle("GET /posters", r.authed(http.HandlerFunc(h.List), r.limits.Lenient))
	r.Mux.Handle("DELETE /posters/{id}", r.authed(http.HandlerFunc(h.Delete), r.limits.Lenient))

	if r.Uploads != nil {
		r.Mux.Handle("GET "+UploadsPrefix+"/",
			httpx.Chain(http.StripPrefix(UploadsPrefix, r.Uploads.Handler()), httpx.RateLimitByIP(r.limits.Public)),
		)
	}
}

func (r *Router) registerPayments() {
	h := &PaymentHandler{PaymentService: r.PaymentService, WalletService: r.WalletService}

	r.Mux.Handle("GET /payments/products",
		httpx.Chain(http.HandlerFunc(h.Products), httpx.RateLimitByIP(r.limits.Public)),
	)
	r.Mux.Handle("POST /payments/checkout", r.authed(http.HandlerFunc(h.Checkout), r.limits.Moderate))
	r.Mux.Handle("GET /payments/session/{id}", r.authed(http.HandlerFunc(h.Session), r.limits.Lenient))
	r.Mux.Handle("GET /payments/wallet", r.authed(http.HandlerFunc(h.Wallet), r.limits.Lenient))
	r.Mux.Handle("GET /payments/receipts/{id}", r.authed(http.HandlerFunc(h.Receipt), r.limits.Lenient))
	r.Mux.Handle("POST /payments/subscription/cancel",
		r.authed(http.HandlerFunc(h.CancelSubscription), r.limits.Moderate),
	)

	// Signed by the provider rather than a user token.
	r.Mux.Handle("POST /payments/webhook",
		httpx.Chain(http.HandlerFunc(h.Webhook), httpx.RateLimitByIP(r.limits.Lenient)),
	)

	if r.SimulatorEnabled {
		r.Mux.Handle("GET /payments/simulate/{id}",
			httpx.Chain(http.HandlerFunc(h.Simulate), httpx.RateLimitByIP(r.limits.Strict)),
		)
	}
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion), httpx.RateLimitByIP(r.limits.Lenient)),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.keys), httpx.RateLimitByIP(r.limits.Lenient)),
	)

	if r.metrics != nil {
		r.Mux.Handle("GET /metrics", r.metrics.Handler())
	}
}
