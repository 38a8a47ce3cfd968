package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/dispute-service/internal/api/dto"
	"github.com/spec-kit/dispute-service/internal/service"
	"github.com/spec-kit/dispute-service/internal/workflow"
)

// AdminDisputesHandler exposes arbitration endpoints to platform admins.
type AdminDisputesHandler struct {
	service *service.DisputeService
}

// NewAdminDisputesHandler constructs handler.
func NewAdminDisputesHandler(disputeService *service.DisputeService) *AdminDisputesHandler {
	return &AdminDisputesHandler{service: disputeService}
}

// StartReview POST /disputes/:id/admin/review.
func (h *AdminDisputesHandler) StartReview(c *fiber.Ctx) error {
	var req dto.Precondition
	actor, err := bindWithActor(c, &req, &req)
	if err != nil {
		return err
	}
	return respond(c)(h.service.AdminStartReview(c.UserContext(), actor, c.Params("id")))
}

// Decide POST /disputes/:id/admin/decision.
func (h *AdminDisputesHandler) Decide(c *fiber.Ctx) error {
	var req dto.AdminDecisionRequest
	actor, err := bindWithActor(c, &req, &req.Precondition)
	if err != nil {
		return err
	}
	return respond(c)(h.service.AdminDecide(c.UserContext(), actor, c.Params("id"), workflow.RulingInput{
		Ruling:    req.Decision,
		Reasoning: req.Reasoning,
	}))
}

// ShareContactInfo POST /disputes/:id/admin/contact-info.
func (h *AdminDisputesHandler) ShareContactInfo(c *fiber.Ctx) error {
	var req dto.Precondition
	actor, err := bindWithActor(c, &req, &req)
	if err != nil {
		return err
	}
	return respond(c)(h.service.ShareThirdPartyContactInfo(c.UserContext(), actor, c.Params("id")))
}

// RejectEvidence POST /disputes/:id/admin/evidence/reject.
func (h *AdminDisputesHandler) RejectEvidence(c *fiber.Ctx) error {
	var req dto.ReasonRequest
	actor, err := bindWithActor(c, &req, &req.Precondition)
	if err != nil {
		return err
	}
	return respond(c)(h.service.AdminRejectEvidence(c.UserContext(), actor, c.Params("id"), req.Reason))
}

// FinalDecision POST /disputes/:id/admin/final-decision.
func (h *AdminDisputesHandler) FinalDecision(c *fiber.Ctx) error {
	var req dto.FinalDecisionRequest
	actor, err := bindWithActor(c, &req, &req.Precondition)
	if err != nil {
		return err
	}
	return respond(c)(h.service.AdminMakeFinalDecision(c.UserContext(), actor, c.Params("id"), workflow.RulingInput{
		Ruling:    req.Decision,
		Reasoning: req.ResolutionText,
	}))
}

// ProcessSettlement POST /disputes/:id/admin/settlement.
func (h *AdminDisputesHandler) ProcessSettlement(c *fiber.Ctx) error {
	var req dto.ProcessSettlementRequest
	actor, err := bindWithActor(c, &req, &req.Precondition)
	if err != nil {
		return err
	}
	return respond(c)(h.service.AdminProcessSettlement(c.UserContext(), actor, c.Params("id"), req.Note))
}
