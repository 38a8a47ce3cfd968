package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/dispute-service/internal/api/dto"
	"github.com/spec-kit/dispute-service/internal/domain"
	"github.com/spec-kit/dispute-service/internal/service"
	apperrors "github.com/spec-kit/dispute-service/pkg/util/errorutil"
)

// SettlementsHandler serves settlement previews and reputation reads.
type SettlementsHandler struct {
	service *service.DisputeService
}

// NewSettlementsHandler constructs handler.
func NewSettlementsHandler(disputeService *service.DisputeService) *SettlementsHandler {
	return &SettlementsHandler{service: disputeService}
}

// Preview POST /settlements/preview.
func (h *SettlementsHandler) Preview(c *fiber.Ctx) error {
	if _, err := actorFrom(c, ""); err != nil {
		return err
	}
	var req dto.PreviewSettlementRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.RentalStartDate.IsZero() || req.RentalEndDate.IsZero() {
		return apperrors.NewValidationError("rental_start_date and rental_end_date required", nil)
	}
	result, err := h.service.PreviewSettlement(domain.LineItem{
		Deposit:         domain.Money(req.Deposit),
		RentalTotal:     domain.Money(req.RentalTotal),
		ShippingFee:     domain.Money(req.ShippingFee),
		RentalStartDate: req.RentalStartDate,
		RentalEndDate:   req.RentalEndDate,
	}, req.Ruling)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": result})
}

// Reputation GET /reputation/:userId.
func (h *SettlementsHandler) Reputation(c *fiber.Ctx) error {
	actor, err := actorFrom(c, "")
	if err != nil {
		return err
	}
	rep, err := h.service.Reputation(c.UserContext(), actor, c.Params("userId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": rep})
}
