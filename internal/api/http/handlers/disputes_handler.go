package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/dispute-service/internal/api/dto"
	"github.com/spec-kit/dispute-service/internal/auth"
	"github.com/spec-kit/dispute-service/internal/domain"
	"github.com/spec-kit/dispute-service/internal/service"
	"github.com/spec-kit/dispute-service/internal/workflow"
	apperrors "github.com/spec-kit/dispute-service/pkg/util/errorutil"
)

// DisputesHandler serves the party-facing dispute endpoints.
type DisputesHandler struct {
	service *service.DisputeService
}

// NewDisputesHandler constructs handler.
func NewDisputesHandler(disputeService *service.DisputeService) *DisputesHandler {
	return &DisputesHandler{service: disputeService}
}

// CreateDispute POST /disputes.
func (h *DisputesHandler) CreateDispute(c *fiber.Ctx) error {
	actor, err := actorFrom(c, "")
	if err != nil {
		return err
	}
	var req dto.CreateDisputeRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	dispute, err := h.service.CreateDispute(c.UserContext(), actor, service.CreateDisputeInput{
		SubOrderID:   req.SubOrderID,
		ProductIndex: req.ProductIndex,
		Type:         req.Type,
		ShipmentType: req.ShipmentType,
		Evidence:     evidence(req.Evidence),
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dispute})
}

// ListDisputes GET /disputes.
func (h *DisputesHandler) ListDisputes(c *fiber.Ctx) error {
	actor, err := actorFrom(c, "")
	if err != nil {
		return err
	}
	disputes, err := h.service.ListDisputes(c.UserContext(), actor, parseDisputeQuery(c))
	if err != nil {
		return err
	}
	items := make([]dto.DisputeSummary, 0, len(disputes))
	for i := range disputes {
		items = append(items, disputeSummary(&disputes[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetDispute GET /disputes/:id.
func (h *DisputesHandler) GetDispute(c *fiber.Ctx) error {
	actor, err := actorFrom(c, "")
	if err != nil {
		return err
	}
	view, err := h.service.GetDispute(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	actions := view.Actions
	if actions == nil {
		actions = []workflow.Action{}
	}
	return c.JSON(fiber.Map{"data": dto.DisputeDetailResponse{Dispute: view.Dispute, AvailableActions: actions}})
}

// Withdraw POST /disputes/:id/withdraw.
func (h *DisputesHandler) Withdraw(c *fiber.Ctx) error {
	var req dto.ReasonRequest
	actor, err := bindWithActor(c, &req, &req.Precondition)
	if err != nil {
		return err
	}
	return respond(c)(h.service.Withdraw(c.UserContext(), actor, c.Params("id"), req.Reason))
}

// Respond POST /disputes/:id/response.
func (h *DisputesHandler) Respond(c *fiber.Ctx) error {
	var req dto.RespondRequest
	actor, err := bindWithActor(c, &req, &req.Precondition)
	if err != nil {
		return err
	}
	return respond(c)(h.service.Respond(c.UserContext(), actor, c.Params("id"), workflow.RespondInput{
		Decision: req.Decision,
		Reason:   req.Reason,
		Evidence: evidence(req.Evidence),
	}))
}

// RespondToAdminDecision POST /disputes/:id/admin-decision/response.
func (h *DisputesHandler) RespondToAdminDecision(c *fiber.Ctx) error {
	var req dto.AcceptanceRequest
	actor, err := bindWithActor(c, &req, &req.Precondition)
	if err != nil {
		return err
	}
	if req.Accepted == nil {
		return apperrors.NewFieldError("accepted", "accepted is required")
	}
	return respond(c)(h.service.RespondToAdminDecision(c.UserContext(), actor, c.Params("id"), *req.Accepted))
}

// ProposeAgreement POST /disputes/:id/agreement/proposals.
func (h *DisputesHandler) ProposeAgreement(c *fiber.Ctx) error {
	var req dto.ProposalRequest
	actor, err := bindWithActor(c, &req, &req.Precondition)
	if err != nil {
		return err
	}
	return respond(c)(h.service.ProposeAgreement(c.UserContext(), actor, c.Params("id"), proposal(req)))
}

// RespondToAgreement POST /disputes/:id/agreement/response.
func (h *DisputesHandler) RespondToAgreement(c *fiber.Ctx) error {
	var req dto.AgreementResponseRequest
	actor, err := bindWithActor(c, &req, &req.Precondition)
	if err != nil {
		return err
	}
	if req.Accepted == nil {
		return apperrors.NewFieldError("accepted", "accepted is required")
	}
	input := workflow.AgreementResponseInput{Accepted: *req.Accepted}
	if req.CounterOffer != nil {
		counter := proposal(*req.CounterOffer)
		input.CounterOffer = &counter
	}
	return respond(c)(h.service.RespondToAgreement(c.UserContext(), actor, c.Params("id"), input))
}

// SubmitOwnerDecision POST /disputes/:id/owner-decision.
func (h *DisputesHandler) SubmitOwnerDecision(c *fiber.Ctx) error {
	var req dto.OwnerDecisionRequest
	actor, err := bindWithActor(c, &req, &req.Precondition)
	if err != nil {
		return err
	}
	return respond(c)(h.service.SubmitOwnerFinalDecision(c.UserContext(), actor, c.Params("id"), req.Decision))
}

// RespondToOwnerDecision POST /disputes/:id/owner-decision/response.
func (h *DisputesHandler) RespondToOwnerDecision(c *fiber.Ctx) error {
	var req dto.AcceptanceRequest
	actor, err := bindWithActor(c, &req, &req.Precondition)
	if err != nil {
		return err
	}
	if req.Accepted == nil {
		return apperrors.NewFieldError("accepted", "accepted is required")
	}
	return respond(c)(h.service.RespondToOwnerDecision(c.UserContext(), actor, c.Params("id"), *req.Accepted))
}

// Escalate POST /disputes/:id/escalation.
func (h *DisputesHandler) Escalate(c *fiber.Ctx) error {
	var req dto.ReasonRequest
	actor, err := bindWithActor(c, &req, &req.Precondition)
	if err != nil {
		return err
	}
	return respond(c)(h.service.EscalateToThirdParty(c.UserContext(), actor, c.Params("id"), req.Reason))
}

// UploadThirdPartyEvidence POST /disputes/:id/third-party/evidence.
func (h *DisputesHandler) UploadThirdPartyEvidence(c *fiber.Ctx) error {
	var req dto.EvidenceUploadRequest
	actor, err := bindWithActor(c, &req, &req.Precondition)
	if err != nil {
		return err
	}
	return respond(c)(h.service.UploadThirdPartyEvidence(c.UserContext(), actor, c.Params("id"), workflow.EvidenceUploadInput{
		OfficialDecision: req.OfficialDecision,
		Photos:           req.Photos,
		Documents:        req.Documents,
	}))
}

// ProposeReschedule POST /disputes/:id/reschedule.
func (h *DisputesHandler) ProposeReschedule(c *fiber.Ctx) error {
	var req dto.RescheduleRequest
	actor, err := bindWithActor(c, &req, &req.Precondition)
	if err != nil {
		return err
	}
	if req.ProposedReturnDate.IsZero() {
		return apperrors.NewFieldError("proposed_return_date", "proposed_return_date is required")
	}
	return respond(c)(h.service.ProposeReschedule(c.UserContext(), actor, c.Params("id"), workflow.RescheduleInput{
		ProposedDate: req.ProposedReturnDate,
		Reason:       req.Reason,
		Evidence:     evidence(req.Evidence),
	}))
}

// RespondToReschedule POST /disputes/:id/reschedule/response.
func (h *DisputesHandler) RespondToReschedule(c *fiber.Ctx) error {
	var req dto.RescheduleResponseRequest
	actor, err := bindWithActor(c, &req, &req.Precondition)
	if err != nil {
		return err
	}
	return respond(c)(h.service.RespondToReschedule(c.UserContext(), actor, c.Params("id"), workflow.RescheduleResponseInput{
		Decision: req.Decision,
		Reason:   req.Reason,
	}))
}

// FinalizeReschedule POST /disputes/:id/reschedule/finalize.
func (h *DisputesHandler) FinalizeReschedule(c *fiber.Ctx) error {
	var req dto.FinalizeRescheduleRequest
	actor, err := bindWithActor(c, &req, &req.Precondition)
	if err != nil {
		return err
	}
	if req.AgreedDate.IsZero() {
		return apperrors.NewFieldError("agreed_date", "agreed_date is required")
	}
	return respond(c)(h.service.FinalizeRescheduleAgreement(c.UserContext(), actor, c.Params("id"), req.AgreedDate))
}

func actorFrom(c *fiber.Ctx, expected domain.DisputeStatus) (service.Actor, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.UserID == "" {
		return service.Actor{}, apperrors.NewUnauthorized("authentication required")
	}
	return service.Actor{ID: principal.UserID, Admin: principal.IsAdmin(), ExpectedStatus: expected}, nil
}

// bindWithActor parses the body into req and resolves the caller, carrying the
// client's expected status along.
func bindWithActor(c *fiber.Ctx, req any, pre *dto.Precondition) (service.Actor, error) {
	if err := parseBody(c, req); err != nil {
		return service.Actor{}, err
	}
	if pre.ExpectedStatus != "" && !pre.ExpectedStatus.Valid() {
		return service.Actor{}, apperrors.NewFieldError("expected_status", "unknown status")
	}
	return actorFrom(c, pre.ExpectedStatus)
}

// parseBody tolerates an empty body so action endpoints can be called bare.
func parseBody(c *fiber.Ctx, out any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(out); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return nil
}

func respond(c *fiber.Ctx) func(*domain.Dispute, error) error {
	return func(dispute *domain.Dispute, err error) error {
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"data": dispute})
	}
}

func evidence(req dto.EvidenceRequest) domain.Evidence {
	return domain.Evidence{Description: req.Description, MediaURIs: req.MediaURIs}
}

func proposal(req dto.ProposalRequest) workflow.ProposalInput {
	input := workflow.ProposalInput{Text: req.Text}
	if req.Amount != nil {
		amount := domain.Money(*req.Amount)
		input.Amount = &amount
	}
	return input
}

func parseDisputeQuery(c *fiber.Ctx) service.DisputeListFilter {
	filter := service.DisputeListFilter{}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			filter.Statuses = append(filter.Statuses, domain.DisputeStatus(strings.TrimSpace(part)))
		}
	}
	if typeStr := c.Query("type"); typeStr != "" {
		for _, part := range strings.Split(typeStr, ",") {
			filter.Types = append(filter.Types, domain.DisputeType(strings.TrimSpace(part)))
		}
	}
	if subOrder := c.Query("sub_order_id"); subOrder != "" {
		filter.SubOrderID = &subOrder
	}
	if from := parseTime(c.Query("created_from")); from != nil {
		filter.CreatedFrom = from
	}
	if to := parseTime(c.Query("created_to")); to != nil {
		filter.CreatedTo = to
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter
}

func parseTime(val string) *time.Time {
	if val == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil
	}
	return &t
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func disputeSummary(d *domain.Dispute) dto.DisputeSummary {
	return dto.DisputeSummary{
		ID:            d.ID,
		DisputeCode:   d.DisputeID,
		Type:          d.Type,
		ShipmentType:  d.ShipmentType,
		Status:        d.Status,
		ComplainantID: d.Complainant.UserID,
		RespondentID:  d.Respondent.UserID,
		SubOrderID:    d.LineItem.SubOrderID,
		ProductIndex:  d.LineItem.ProductIndex,
		Version:       d.Version,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}
