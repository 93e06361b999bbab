package httpapi

import (
	"net/http"
	"time"

	"github.com/contractflow/contractflow/internal/auth"
	"github.com/contractflow/contractflow/internal/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Deps bundles everything the router needs.
type Deps struct {
	Auth      *AuthHandler
	Orgs      *OrgHandler
	Contracts *ContractHandler
	Templates *TemplateHandler

	TokenIssuer *auth.TokenIssuer
	Blacklist   auth.Blacklist

	AllowedOrigins []string
}

// NewRouter builds the full API surface. Everything under /api except the
// auth endpoints requires a valid access token.
func NewRouter(deps Deps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logger.RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	origins := deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", orgHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", deps.Auth.Register)
			r.Post("/verify-email", deps.Auth.VerifyEmail)
			r.Post("/resend-verification", deps.Auth.ResendVerification)
			r.Post("/login", deps.Auth.Login)
			r.Post("/refresh", deps.Auth.Refresh)
			r.Post("/forgot-password", deps.Auth.ForgotPassword)
			r.Post("/reset-password", deps.Auth.ResetPassword)

			// Logout needs the access token to revoke it.
			r.Group(func(r chi.Router) {
				r.Use(auth.Middleware(deps.TokenIssuer, deps.Blacklist))
				r.Post("/logout", deps.Auth.Logout)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(deps.TokenIssuer, deps.Blacklist))

			r.Get("/users/me", deps.Auth.Me)

			r.Route("/organizations", func(r chi.Router) {
				r.Get("/me", deps.Orgs.Me)
				r.Post("/invitations/accept", deps.Orgs.AcceptInvitation)

				r.Route("/{orgID}", func(r chi.Router) {
					r.Get("/dashboard", deps.Orgs.Dashboard)
					r.Get("/members", deps.Orgs.ListMembers)
					r.Delete("/members/{userID}", deps.Orgs.RemoveMember)
					r.Put("/members/{userID}/role", deps.Orgs.ChangeRole)
					r.Get("/invitations", deps.Orgs.ListInvitations)
					r.Post("/invitations", deps.Orgs.CreateInvitation)
					r.Delete("/invitations/{invitationID}", deps.Orgs.CancelInvitation)
					r.Get("/settings", deps.Orgs.GetSettings)
					r.Put("/settings", deps.Orgs.UpdateSettings)
				})
			})

			r.Route("/contracts", func(r chi.Router) {
				r.Post("/", deps.Contracts.Create)
				r.Get("/", deps.Contracts.List)

				r.Route("/{contractID}", func(r chi.Router) {
					r.Get("/", deps.Contracts.Get)
					r.Patch("/", deps.Contracts.Patch)
					r.Delete("/", deps.Contracts.Delete)
					r.Post("/versions", deps.Contracts.CreateVersion)
					r.Get("/html", deps.Contracts.ExportHTML)
					r.Get("/pdf", deps.Contracts.ExportPDF)
				})
			})

			r.Route("/templates", func(r chi.Router) {
				r.Get("/", deps.Templates.List)
				r.Post("/", deps.Templates.Create)
				r.Get("/{templateID}", deps.Templates.Get)
				r.Delete("/{templateID}", deps.Templates.Delete)
			})
		})
	})

	return r
}
