package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/go-auth-flow/internal/application/auth"
	"github.com/go-auth-flow/internal/config"
	"github.com/go-auth-flow/internal/transport/http/handler"
	appmiddleware "github.com/go-auth-flow/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// TokenProvider signs and verifies bearer tokens.
type TokenProvider interface {
	auth.TokenSigner
	appmiddleware.TokenVerifier
}

// Deps holds all infrastructure dependencies for the router. SMSSender and
// Cooldown may be nil.
type Deps struct {
	UserRepo         UserRepository
	SessionRepo      SessionRepository
	VerificationRepo VerificationRepository
	Mailer           auth.Mailer
	SMSSender        auth.SMSSender
	JWTProvider      TokenProvider
	Cooldown         auth.Cooldown
}

// NewRouter builds and returns the application router. ctx bounds background
// work owned by the router.
func NewRouter(ctx context.Context, cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// 5 requests/second, burst of 10, applied to the public auth endpoints.
	sensitiveRL := appmiddleware.NewRateLimiter(ctx, rate.Limit(5), 10)

	authSvc := auth.NewService(auth.ServiceDeps{
		UserRepo:         deps.UserRepo,
		SessionRepo:      deps.SessionRepo,
		VerificationRepo: deps.VerificationRepo,
		Mailer:           deps.Mailer,
		SMSSender:        deps.SMSSender,
		JWTProvider:      deps.JWTProvider,
		Cooldown:         deps.Cooldown,
		OTPTTL:           cfg.OTPTTL,
	})

	healthH := handler.NewHealthHandler()
	authH := handler.NewAuthHandler(authSvc)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", healthH.Ping)

		r.Route("/auth", func(r chi.Router) {
			// ── Public routes (no auth) ──────────────────────────────────────────
			r.Group(func(r chi.Router) {
				r.Use(sensitiveRL.Limit)
				r.Post("/signup", authH.Signup)
				r.Post("/login", authH.Login)
				r.Post("/verify-otp", authH.VerifyOTP)
				r.Post("/resend-otp", authH.ResendOTP)
			})

			// ── Authenticated routes ─────────────────────────────────────────────
			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.Auth(deps.JWTProvider))
				r.Get("/me", authH.Me)
				r.Post("/logout", authH.Logout)
			})
		})
	})

	return r
}
