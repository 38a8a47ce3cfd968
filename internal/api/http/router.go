package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/dispute-service/internal/api/http/handlers"
	"github.com/spec-kit/dispute-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Disputes       *handlers.DisputesHandler
	Admin          *handlers.AdminDisputesHandler
	Settlements    *handlers.SettlementsHandler
	Events         *handlers.EventsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	api := app.Group("/api/v1", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())

	api.Post("/settlements/preview", cfg.Settlements.Preview)
	api.Get("/reputation/:userId", cfg.Settlements.Reputation)

	disputes := api.Group("/disputes")
	disputes.Post("/", cfg.Disputes.CreateDispute)
	disputes.Get("/", cfg.Disputes.ListDisputes)
	disputes.Get("/:id", cfg.Disputes.GetDispute)
	if cfg.Events != nil {
		disputes.Get("/:id/events", cfg.Events.Stream)
	}
	disputes.Post("/:id/withdraw", cfg.Disputes.Withdraw)
	disputes.Post("/:id/response", cfg.Disputes.Respond)
	disputes.Post("/:id/admin-decision/response", cfg.Disputes.RespondToAdminDecision)
	disputes.Post("/:id/agreement/proposals", cfg.Disputes.ProposeAgreement)
	disputes.Post("/:id/agreement/response", cfg.Disputes.RespondToAgreement)
	disputes.Post("/:id/owner-decision", cfg.Disputes.SubmitOwnerDecision)
	disputes.Post("/:id/owner-decision/response", cfg.Disputes.RespondToOwnerDecision)
	disputes.Post("/:id/escalation", cfg.Disputes.Escalate)
	disputes.Post("/:id/third-party/evidence", cfg.Disputes.UploadThirdPartyEvidence)
	disputes.Post("/:id/reschedule", cfg.Disputes.ProposeReschedule)
	disputes.Post("/:id/reschedule/response", cfg.Disputes.RespondToReschedule)
	disputes.Post("/:id/reschedule/finalize", cfg.Disputes.FinalizeReschedule)

	admin := auth.RequireAdmin()
	disputes.Post("/:id/admin/review", admin, cfg.Admin.StartReview)
	disputes.Post("/:id/admin/decision", admin, cfg.Admin.Decide)
	disputes.Post("/:id/admin/contact-info", admin, cfg.Admin.ShareContactInfo)
	disputes.Post("/:id/admin/evidence/reject", admin, cfg.Admin.RejectEvidence)
	disputes.Post("/:id/admin/final-decision", admin, cfg.Admin.FinalDecision)
	disputes.Post("/:id/admin/settlement", admin, cfg.Admin.ProcessSettlement)
}
