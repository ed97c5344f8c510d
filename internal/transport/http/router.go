package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-provisioning-api/internal/application/provisioning"
	"github.com/go-provisioning-api/internal/config"
	"github.com/go-provisioning-api/internal/transport/http/handler"
	appmiddleware "github.com/go-provisioning-api/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))

	// Anything outside the table below is a 500 with a generic body, not a
	// 404/405 — inherited contract.
	r.NotFound(handler.WriteUnsupported)
	r.MethodNotAllowed(handler.WriteUnsupported)

	// 5 requests/second, burst of 10 — the POST routes send mail and run DDL.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	sqlSvc := provisioning.NewService(provisioning.ServiceDeps{
		Requests: deps.Requests,
		Verifier: deps.Verifier,
		Mailer:   deps.Mailer,
		Backend:  provisioning.NewRelationalBackend(deps.Accounts, deps.DB),
		LinkBase: cfg.FrontendBaseURL,
		MinScore: cfg.RecaptchaMinScore,
	})
	matrixSvc := provisioning.NewService(provisioning.ServiceDeps{
		Requests: deps.MatrixRequests,
		Verifier: deps.Verifier,
		Mailer:   deps.Mailer,
		Backend:  provisioning.NewFederatedBackend(deps.Registrar),
		LinkBase: cfg.FrontendMatrixBaseURL,
		MinScore: cfg.RecaptchaMinScore,
	})

	healthH := handler.NewHealthHandler()
	sqlH := handler.NewProvisionHandler(sqlSvc)
	matrixH := handler.NewProvisionHandler(matrixSvc)

	r.Get("/health-check/{action}", healthH.Ping)

	r.Get("/requests/{token}", sqlH.Lookup)
	r.Get("/requests-matrix/{token}", matrixH.Lookup)
	r.With(sensitiveRL.Limit).Post("/requests", sqlH.Issue)
	r.With(sensitiveRL.Limit).Post("/requests-matrix", matrixH.Issue)
	r.With(sensitiveRL.Limit).Post("/accounts", sqlH.Redeem)
	r.With(sensitiveRL.Limit).Post("/accounts-matrix", matrixH.Redeem)

	return r
}
