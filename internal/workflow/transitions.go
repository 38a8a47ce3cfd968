package workflow

import (
	"net/http"
	"strings"
	"time"

	"github.com/spec-kit/dispute-service/internal/domain"
	"github.com/spec-kit/dispute-service/internal/settlement"
	apperrors "github.com/spec-kit/dispute-service/pkg/util/errorutil"
)

// CreateInput describes a new complaint against one line of a sub-order.
type CreateInput struct {
	ComplainantID string
	LineItem      domain.LineItem
	Type          domain.DisputeType
	ShipmentType  domain.ShipmentType
	Evidence      domain.Evidence
}

// RespondInput is the respondent's answer.
type RespondInput struct {
	Decision domain.ResponseDecision
	Reason   string
	Evidence domain.Evidence
}

// RulingInput is an admin ruling with its written grounds.
type RulingInput struct {
	Ruling    domain.Ruling
	Reasoning string
}

// ProposalInput is a negotiated offer. Amount is the refund the renter would receive.
type ProposalInput struct {
	Text   string
	Amount *domain.Money
}

// AgreementResponseInput answers a pending proposal, optionally with a counter-offer.
type AgreementResponseInput struct {
	Accepted     bool
	CounterOffer *ProposalInput
}

// EvidenceUploadInput is the external arbiter's outcome.
type EvidenceUploadInput struct {
	OfficialDecision string
	Photos           []string
	Documents        []string
}

// RescheduleInput is the renter's return-date proposal.
type RescheduleInput struct {
	ProposedDate time.Time
	Reason       string
	Evidence     domain.Evidence
}

// RescheduleResponseInput is the owner's answer to a return-date proposal.
type RescheduleResponseInput struct {
	Decision domain.RescheduleStatus
	Reason   string
}

// Create opens a dispute. The complainant must hold a role on the line item and
// the counterpart becomes the respondent.
func (m *Machine) Create(in CreateInput, now time.Time) (*Outcome, error) {
	role, ok := in.LineItem.RoleOf(in.ComplainantID)
	if !ok {
		return nil, apperrors.NewForbidden("complainant is not a party to this rental")
	}
	if err := required("evidence.description", in.Evidence.Description); err != nil {
		return nil, err
	}
	legs := in.Type.ShipmentTypes()
	if len(legs) == 0 {
		return nil, apperrors.NewFieldError("type", "unknown dispute type")
	}
	if !containsShipment(legs, in.ShipmentType) {
		return nil, apperrors.NewFieldError("shipment_type", "dispute type "+string(in.Type)+" does not apply to "+string(in.ShipmentType)+" shipments")
	}
	if in.Type == domain.DisputeTypeRenterNoReturn && role != domain.PartyRoleOwner {
		return nil, apperrors.NewFieldError("type", "only the owner can report an unreturned item")
	}
	if in.LineItem.RentalEndDate.Before(in.LineItem.RentalStartDate) {
		return nil, apperrors.NewFieldError("rental_end_date", "rental ends before it starts")
	}
	if in.LineItem.Deposit < 0 || in.LineItem.RentalTotal < 0 {
		return nil, apperrors.NewFieldError("line_item", "amounts must not be negative")
	}

	respondentID := in.LineItem.RenterID
	if role == domain.PartyRoleRenter {
		respondentID = in.LineItem.OwnerID
	}
	id := m.newID()
	d := &domain.Dispute{
		ID:           id,
		DisputeID:    generateDisputeCode(id),
		Type:         in.Type,
		ShipmentType: in.ShipmentType,
		Complainant:  domain.PartyRef{UserID: in.ComplainantID, Role: role},
		Respondent:   domain.PartyRef{UserID: respondentID, Role: role.Opposite()},
		LineItem:     in.LineItem,
		Status:       domain.DisputeStatusOpen,
		Evidence:     in.Evidence,
		Version:      1,
		CreatedAt:    now,
	}
	s := &step{m: m, d: d}
	return s.finish(domain.TransitionCreated, in.ComplainantID, map[string]any{
		"type":          string(in.Type),
		"shipment_type": string(in.ShipmentType),
	}, now), nil
}

// Withdraw closes an unanswered complaint at the complainant's request.
func (m *Machine) Withdraw(d *domain.Dispute, actorID, reason string, now time.Time) (*Outcome, error) {
	if !CanWithdraw(d, actorID) {
		return nil, deny(d, actorID, ActionWithdraw, d.Complainant.UserID)
	}
	s := m.begin(d)
	if err := s.moveTo(domain.DisputeStatusClosed, ActionWithdraw); err != nil {
		return nil, err
	}
	s.resolve("", nil, reason, actorID, now)
	return s.finish(domain.TransitionWithdrawn, actorID, map[string]any{"reason": reason}, now), nil
}

// Respond records the respondent's acceptance or rejection of the complaint.
func (m *Machine) Respond(d *domain.Dispute, actorID string, in RespondInput, now time.Time) (*Outcome, error) {
	if !CanRespond(d, actorID) {
		return nil, deny(d, actorID, ActionRespond, d.Respondent.UserID)
	}
	var next domain.DisputeStatus
	switch in.Decision {
	case domain.ResponseAccepted:
		next = domain.DisputeStatusRespondentAccepted
	case domain.ResponseRejected:
		next = domain.DisputeStatusRespondentRejected
		if err := required("reason", in.Reason); err != nil {
			return nil, err
		}
	default:
		return nil, apperrors.NewFieldError("decision", "decision must be ACCEPTED or REJECTED")
	}

	s := m.begin(d)
	if err := s.moveTo(next, ActionRespond); err != nil {
		return nil, err
	}
	s.d.RespondentResponse = &domain.RespondentResponse{
		Decision:    in.Decision,
		Reason:      in.Reason,
		Evidence:    in.Evidence,
		RespondedAt: now,
	}
	return s.finish(domain.TransitionRespondentResponded, actorID, map[string]any{"decision": string(in.Decision)}, now), nil
}

// AdminStartReview marks a rejected complaint as picked up by an admin.
func (m *Machine) AdminStartReview(d *domain.Dispute, adminID string, now time.Time) (*Outcome, error) {
	if !CanAdminStartReview(d) {
		return nil, denyStatus(d, ActionAdminStartReview)
	}
	s := m.begin(d)
	if err := s.moveTo(domain.DisputeStatusAdminReviewing, ActionAdminStartReview); err != nil {
		return nil, err
	}
	return s.finish(domain.TransitionAdminReviewStarted, adminID, nil, now), nil
}

// AdminDecide stores a preliminary ruling and the amounts it implies.
func (m *Machine) AdminDecide(d *domain.Dispute, adminID string, in RulingInput, now time.Time) (*Outcome, error) {
	if !CanAdminDecide(d) {
		return nil, denyStatus(d, ActionAdminDecide)
	}
	if !in.Ruling.Valid() {
		return nil, apperrors.NewFieldError("ruling", "ruling must be COMPLAINANT_RIGHT or RESPONDENT_RIGHT")
	}
	if err := required("reasoning", in.Reasoning); err != nil {
		return nil, err
	}
	amounts, err := settlement.ForDispute(d, in.Ruling)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	s := m.begin(d)
	if err := s.moveTo(domain.DisputeStatusAdminDecisionMade, ActionAdminDecide); err != nil {
		return nil, err
	}
	s.d.AdminDecision = &domain.AdminDecision{
		Decision:            in.Ruling,
		Reasoning:           strings.TrimSpace(in.Reasoning),
		RefundAmount:        amounts.TotalRefundToRenter,
		PenaltyAmount:       amounts.OwnerCompensation,
		ComplainantAccepted: domain.AcceptancePending,
		RespondentAccepted:  domain.AcceptancePending,
		DecidedAt:           now,
		DecidedBy:           adminID,
	}
	return s.finish(domain.TransitionAdminDecided, adminID, map[string]any{
		"ruling":        string(in.Ruling),
		"refund_amount": int64(amounts.TotalRefundToRenter),
	}, now), nil
}

// RespondToAdminDecision records one party's answer. Both accepting resolves the
// dispute with the ruling; either rejecting opens a negotiation room.
func (m *Machine) RespondToAdminDecision(d *domain.Dispute, actorID string, accepted bool, now time.Time) (*Outcome, error) {
	if !CanRespondToAdminDecision(d, actorID) {
		return nil, deny(d, actorID, ActionRespondToAdminDecision, "")
	}
	s := m.begin(d)
	decision := s.d.AdminDecision
	answer := domain.AcceptanceOf(accepted)
	if actorID == s.d.Complainant.UserID {
		decision.ComplainantAccepted = answer
	} else {
		decision.RespondentAccepted = answer
	}
	details := map[string]any{"accepted": accepted}

	switch {
	case !accepted:
		if err := s.moveTo(domain.DisputeStatusInNegotiation, ActionRespondToAdminDecision); err != nil {
			return nil, err
		}
		s.openRoom(domain.NegotiationSubjectMoney, now)
	case decision.ComplainantAccepted == domain.AcceptanceAccepted && decision.RespondentAccepted == domain.AcceptanceAccepted:
		if err := s.moveTo(domain.DisputeStatusResolved, ActionRespondToAdminDecision); err != nil {
			return nil, err
		}
		if err := s.applyRuling(decision.Decision, true, actorID, now); err != nil {
			return nil, err
		}
		s.resolve(domain.SettlementKindRuling, rulingPtr(decision.Decision), decision.Reasoning, actorID, now)
	}
	return s.finish(domain.TransitionAdminDecisionAnswered, actorID, details, now), nil
}

// ProposeAgreement stores a new offer in the negotiation room, replacing any
// pending one. The status does not change.
func (m *Machine) ProposeAgreement(d *domain.Dispute, actorID string, in ProposalInput, now time.Time) (*Outcome, error) {
	if !CanProposeAgreement(d, actorID) {
		return nil, deny(d, actorID, ActionProposeAgreement, "")
	}
	if NegotiationExpired(d, now) {
		return nil, expiredNegotiation(ActionProposeAgreement)
	}
	if err := m.validateProposal(d, in); err != nil {
		return nil, err
	}
	s := m.begin(d)
	s.recordProposal(actorID, in, now)
	return s.finish(domain.TransitionAgreementProposed, actorID, proposalDetails(in), now), nil
}

// RespondToAgreement accepts or rejects the counterpart's pending proposal.
// Rejection may carry a counter-offer, which becomes the new pending proposal.
func (m *Machine) RespondToAgreement(d *domain.Dispute, actorID string, in AgreementResponseInput, now time.Time) (*Outcome, error) {
	if !CanRespondToAgreement(d, actorID) {
		return nil, deny(d, actorID, ActionRespondToAgreement, "")
	}
	if NegotiationExpired(d, now) {
		return nil, expiredNegotiation(ActionRespondToAgreement)
	}
	if !in.Accepted && in.CounterOffer != nil {
		if err := m.validateProposal(d, *in.CounterOffer); err != nil {
			return nil, err
		}
	}

	s := m.begin(d)
	fa := s.d.NegotiationRoom.FinalAgreement
	fa.ProposalAccepted = domain.AcceptanceOf(in.Accepted)
	if actorID == s.d.Complainant.UserID {
		fa.ComplainantAccepted = fa.ProposalAccepted
	}
	details := map[string]any{"accepted": in.Accepted}

	if in.Accepted {
		if err := s.moveTo(domain.DisputeStatusAgreedAwaitingAdmin, ActionRespondToAgreement); err != nil {
			return nil, err
		}
		fa.Basis = domain.AgreementBasisProposal
		fa.AgreedAt = timePtr(now)
		return s.finish(domain.TransitionAgreementAnswered, actorID, details, now), nil
	}
	if in.CounterOffer != nil {
		s.recordProposal(actorID, *in.CounterOffer, now)
		details["counter_offer"] = proposalDetails(*in.CounterOffer)
	}
	return s.finish(domain.TransitionAgreementAnswered, actorID, details, now), nil
}

// SubmitOwnerFinalDecision records the owner's final position for the renter to answer.
func (m *Machine) SubmitOwnerFinalDecision(d *domain.Dispute, actorID, decisionText string, now time.Time) (*Outcome, error) {
	if !CanSubmitOwnerDecision(d, actorID) {
		return nil, deny(d, actorID, ActionSubmitOwnerDecision, d.OwnerID())
	}
	if NegotiationExpired(d, now) {
		return nil, expiredNegotiation(ActionSubmitOwnerDecision)
	}
	if err := required("decision_text", decisionText); err != nil {
		return nil, err
	}
	s := m.begin(d)
	fa := s.agreement()
	fa.OwnerDecision = strings.TrimSpace(decisionText)
	fa.DecidedAt = timePtr(now)
	fa.RenterAccepted = domain.AcceptancePending
	return s.finish(domain.TransitionOwnerDecisionSubmitted, actorID, nil, now), nil
}

// RespondToOwnerDecision lets the renter accept the owner's position or send
// the dispute to a third party.
func (m *Machine) RespondToOwnerDecision(d *domain.Dispute, actorID string, accepted bool, now time.Time) (*Outcome, error) {
	if !CanRespondToOwnerDecision(d, actorID) {
		return nil, deny(d, actorID, ActionRespondToOwnerDecision, d.RenterID())
	}
	if NegotiationExpired(d, now) {
		return nil, expiredNegotiation(ActionRespondToOwnerDecision)
	}
	s := m.begin(d)
	fa := s.d.NegotiationRoom.FinalAgreement
	fa.RenterAccepted = domain.AcceptanceOf(accepted)
	if actorID == s.d.Complainant.UserID {
		fa.ComplainantAccepted = fa.RenterAccepted
	}
	details := map[string]any{"accepted": accepted}

	if accepted {
		if err := s.moveTo(domain.DisputeStatusAgreedAwaitingAdmin, ActionRespondToOwnerDecision); err != nil {
			return nil, err
		}
		fa.Basis = domain.AgreementBasisOwnerDecision
		fa.AgreedAt = timePtr(now)
		return s.finish(domain.TransitionOwnerDecisionAnswered, actorID, details, now), nil
	}
	if err := s.escalate(actorID, "renter rejected the owner's final decision", ActionRespondToOwnerDecision, now); err != nil {
		return nil, err
	}
	return s.finish(domain.TransitionOwnerDecisionAnswered, actorID, details, now), nil
}

// Escalate hands the dispute to an external arbiter.
func (m *Machine) Escalate(d *domain.Dispute, actorID, reason string, now time.Time) (*Outcome, error) {
	if !CanEscalate(d, actorID) {
		return nil, deny(d, actorID, ActionEscalate, "")
	}
	if err := required("reason", reason); err != nil {
		return nil, err
	}
	s := m.begin(d)
	if err := s.escalate(actorID, strings.TrimSpace(reason), ActionEscalate, now); err != nil {
		return nil, err
	}
	return s.finish(domain.TransitionEscalated, actorID, map[string]any{"reason": reason}, now), nil
}

// ShareContactInfo releases both parties' contact details. It may happen once.
func (m *Machine) ShareContactInfo(d *domain.Dispute, adminID string, contacts []domain.PartyContact, now time.Time) (*Outcome, error) {
	if !CanShareContactInfo(d) {
		return nil, denyStatus(d, ActionShareContactInfo)
	}
	if len(contacts) == 0 {
		return nil, apperrors.NewFieldError("party_info", "no contact information available")
	}
	s := m.begin(d)
	s.d.ThirdPartyResolution.SharedData = &domain.SharedData{
		SharedAt:  now,
		SharedBy:  adminID,
		PartyInfo: append([]domain.PartyContact(nil), contacts...),
	}
	return s.finish(domain.TransitionContactInfoShared, adminID, nil, now), nil
}

// UploadEvidence stores the arbiter's outcome for admin review.
func (m *Machine) UploadEvidence(d *domain.Dispute, actorID string, in EvidenceUploadInput, now time.Time) (*Outcome, error) {
	if !CanUploadThirdPartyEvidence(d, actorID) {
		return nil, deny(d, actorID, ActionUploadThirdPartyEvidence, "")
	}
	if err := required("official_decision", in.OfficialDecision); err != nil {
		return nil, err
	}
	s := m.begin(d)
	if err := s.moveTo(domain.DisputeStatusThirdPartyEvidenceUploaded, ActionUploadThirdPartyEvidence); err != nil {
		return nil, err
	}
	s.d.ThirdPartyResolution.Evidence = &domain.ThirdPartyEvidence{
		OfficialDecision: strings.TrimSpace(in.OfficialDecision),
		Photos:           append([]string(nil), in.Photos...),
		Documents:        append([]string(nil), in.Documents...),
		UploadedAt:       now,
		UploadedBy:       actorID,
	}
	return s.finish(domain.TransitionEvidenceUploaded, actorID, map[string]any{
		"photos":    len(in.Photos),
		"documents": len(in.Documents),
	}, now), nil
}

// AdminRejectEvidence sends the dispute back for new evidence with a fresh deadline.
func (m *Machine) AdminRejectEvidence(d *domain.Dispute, adminID, reason string, now time.Time) (*Outcome, error) {
	if !CanAdminRejectEvidence(d) {
		return nil, denyStatus(d, ActionAdminRejectEvidence)
	}
	if err := required("reason", reason); err != nil {
		return nil, err
	}
	s := m.begin(d)
	if err := s.moveTo(domain.DisputeStatusThirdPartyEscalated, ActionAdminRejectEvidence); err != nil {
		return nil, err
	}
	tpr := s.d.ThirdPartyResolution
	if tpr.Evidence != nil {
		tpr.RejectedEvidence = append(tpr.RejectedEvidence, domain.RejectedEvidence{
			Evidence:   *tpr.Evidence,
			Reason:     strings.TrimSpace(reason),
			RejectedAt: now,
			RejectedBy: adminID,
		})
	}
	tpr.Evidence = nil
	tpr.EvidenceDeadline = now.Add(m.policy.EvidenceWindow)
	tpr.AdminFallbackRequired = false
	return s.finish(domain.TransitionEvidenceRejected, adminID, map[string]any{
		"reason":            reason,
		"evidence_deadline": tpr.EvidenceDeadline,
	}, now), nil
}

// AdminFinalDecision resolves an escalated dispute with a ruling.
func (m *Machine) AdminFinalDecision(d *domain.Dispute, adminID string, in RulingInput, now time.Time) (*Outcome, error) {
	if !CanAdminFinalDecision(d) {
		return nil, denyStatus(d, ActionAdminFinalDecision)
	}
	if !in.Ruling.Valid() {
		return nil, apperrors.NewFieldError("ruling", "ruling must be COMPLAINANT_RIGHT or RESPONDENT_RIGHT")
	}
	if err := required("resolution_text", in.Reasoning); err != nil {
		return nil, err
	}
	s := m.begin(d)
	if err := s.moveTo(domain.DisputeStatusResolved, ActionAdminFinalDecision); err != nil {
		return nil, err
	}
	if err := s.applyRuling(in.Ruling, true, adminID, now); err != nil {
		return nil, err
	}
	s.resolve(domain.SettlementKindRuling, rulingPtr(in.Ruling), strings.TrimSpace(in.Reasoning), adminID, now)
	return s.finish(domain.TransitionFinalDecision, adminID, map[string]any{"ruling": string(in.Ruling)}, now), nil
}

// AdminProcessSettlement executes what the parties agreed to.
func (m *Machine) AdminProcessSettlement(d *domain.Dispute, adminID, note string, now time.Time) (*Outcome, error) {
	if !CanAdminProcessSettlement(d) {
		return nil, denyStatus(d, ActionAdminProcessSettlement)
	}
	s := m.begin(d)
	if err := s.moveTo(domain.DisputeStatusResolved, ActionAdminProcessSettlement); err != nil {
		return nil, err
	}

	switch d.Status {
	case domain.DisputeStatusRespondentAccepted:
		// the respondent conceded, so the complainant is right without penalties
		ruling := domain.RulingComplainantRight
		if err := s.applyRuling(ruling, false, adminID, now); err != nil {
			return nil, err
		}
		s.resolve(domain.SettlementKindRuling, rulingPtr(ruling), note, adminID, now)
	case domain.DisputeStatusBothAccepted:
		if d.AdminDecision == nil {
			return nil, apperrors.NewFieldError("admin_decision", "no admin decision to execute")
		}
		ruling := d.AdminDecision.Decision
		if err := s.applyRuling(ruling, true, adminID, now); err != nil {
			return nil, err
		}
		s.resolve(domain.SettlementKindRuling, rulingPtr(ruling), note, adminID, now)
	default:
		amounts, err := agreedAmounts(d)
		if err != nil {
			return nil, err
		}
		if err := s.settle(domain.SettlementKindAgreement, amounts, adminID, now); err != nil {
			return nil, err
		}
		s.resolve(domain.SettlementKindAgreement, nil, note, adminID, now)
	}
	return s.finish(domain.TransitionSettlementProcessed, adminID, map[string]any{
		"kind": string(s.d.Resolution.Kind),
	}, now), nil
}

// ProposeReschedule records the renter's single return-date proposal.
func (m *Machine) ProposeReschedule(d *domain.Dispute, actorID string, in RescheduleInput, now time.Time) (*Outcome, error) {
	if !CanProposeReschedule(d, actorID) {
		return nil, denyReschedule(d, actorID, ActionProposeReschedule, d.RescheduleRequest == nil, d.RenterID())
	}
	if err := m.validateRescheduleDate(d, in.ProposedDate, now); err != nil {
		return nil, err
	}
	if err := required("reason", in.Reason); err != nil {
		return nil, err
	}
	s := m.begin(d)
	s.d.RescheduleRequest = &domain.RescheduleRequest{
		ProposedReturnDate: in.ProposedDate,
		Reason:             strings.TrimSpace(in.Reason),
		Evidence:           in.Evidence,
		Status:             domain.RescheduleStatusPending,
		RequestedAt:        now,
	}
	return s.finish(domain.TransitionRescheduleProposed, actorID, map[string]any{
		"proposed_return_date": in.ProposedDate,
	}, now), nil
}

// RespondToReschedule lets the owner approve the new date, closing the dispute
// with a flat penalty, or reject it and open a return-date negotiation.
func (m *Machine) RespondToReschedule(d *domain.Dispute, actorID string, in RescheduleResponseInput, now time.Time) (*Outcome, error) {
	if !CanRespondToReschedule(d, actorID) {
		pending := d.RescheduleRequest != nil && d.RescheduleRequest.Status == domain.RescheduleStatusPending
		return nil, denyReschedule(d, actorID, ActionRespondToReschedule, pending, d.OwnerID())
	}
	s := m.begin(d)
	req := s.d.RescheduleRequest
	details := map[string]any{"decision": string(in.Decision)}

	switch in.Decision {
	case domain.RescheduleStatusApproved:
		if err := s.moveTo(domain.DisputeStatusClosed, ActionRespondToReschedule); err != nil {
			return nil, err
		}
		amounts := settlement.RescheduleApproved(s.d.LineItem, m.policy.ReschedulePenaltyPercent)
		if err := s.settle(domain.SettlementKindRescheduleApproved, amounts, actorID, now); err != nil {
			return nil, err
		}
		s.effects.Reputation = settlement.RescheduleReputation(s.d.RenterID())
		s.resolve(domain.SettlementKindRescheduleApproved, nil, in.Reason, actorID, now)
		details["return_date"] = req.ProposedReturnDate
	case domain.RescheduleStatusRejected:
		if err := required("reason", in.Reason); err != nil {
			return nil, err
		}
		if err := s.moveTo(domain.DisputeStatusInNegotiation, ActionRespondToReschedule); err != nil {
			return nil, err
		}
		s.openRoom(domain.NegotiationSubjectReturnDate, now)
	default:
		return nil, apperrors.NewFieldError("decision", "decision must be APPROVED or REJECTED")
	}
	req.Status = in.Decision
	req.OwnerResponse = &domain.OwnerResponse{
		Decision:    in.Decision,
		Reason:      strings.TrimSpace(in.Reason),
		RespondedAt: now,
	}
	return s.finish(domain.TransitionRescheduleAnswered, actorID, details, now), nil
}

// FinalizeReschedule needs both parties to confirm the same return date. The
// first confirmation is stored as pending; a matching one from the other party
// resolves the dispute with a per-day late penalty.
func (m *Machine) FinalizeReschedule(d *domain.Dispute, actorID string, agreedDate time.Time, now time.Time) (*Outcome, error) {
	if !CanFinalizeReschedule(d, actorID) {
		return nil, deny(d, actorID, ActionFinalizeReschedule, "")
	}
	if NegotiationExpired(d, now) {
		return nil, expiredNegotiation(ActionFinalizeReschedule)
	}
	if agreedDate.IsZero() {
		return nil, apperrors.NewFieldError("agreed_date", "agreed_date is required")
	}
	if !agreedDate.After(now) {
		return nil, apperrors.NewFieldError("agreed_date", "agreed date must be in the future")
	}

	s := m.begin(d)
	fa := s.agreement()
	details := map[string]any{"agreed_date": agreedDate}
	pending := fa.ProposedBy != "" && fa.ProposedReturnDate != nil && fa.ProposalAccepted.IsPending()
	if !pending || fa.ProposedBy == actorID || !sameDay(*fa.ProposedReturnDate, agreedDate) {
		fa.ProposedBy = actorID
		fa.ProposedReturnDate = timePtr(agreedDate)
		fa.ProposedAt = timePtr(now)
		fa.ProposalAccepted = domain.AcceptancePending
		return s.finish(domain.TransitionRescheduleDateProposed, actorID, details, now), nil
	}

	if err := s.moveTo(domain.DisputeStatusResolved, ActionFinalizeReschedule); err != nil {
		return nil, err
	}
	fa.ProposalAccepted = domain.AcceptanceAccepted
	if actorID == s.d.Complainant.UserID {
		fa.ComplainantAccepted = domain.AcceptanceAccepted
	}
	fa.Basis = domain.AgreementBasisProposal
	fa.AgreedAt = timePtr(now)
	amounts := settlement.RescheduleAgreed(s.d.LineItem, agreedDate)
	if err := s.settle(domain.SettlementKindRescheduleAgreed, amounts, actorID, now); err != nil {
		return nil, err
	}
	s.resolve(domain.SettlementKindRescheduleAgreed, nil, "", actorID, now)
	details["days_late"] = settlement.DaysLate(s.d.LineItem.RentalEndDate, agreedDate)
	return s.finish(domain.TransitionRescheduleFinalized, actorID, details, now), nil
}

// Expire applies deadline consequences that are due at now. It returns nil when
// nothing is due.
func (m *Machine) Expire(d *domain.Dispute, now time.Time) (*Outcome, error) {
	switch {
	case NegotiationExpired(d, now):
		s := m.begin(d)
		if err := s.escalate(SystemActor, "negotiation window expired", ActionEscalate, now); err != nil {
			return nil, err
		}
		return s.finish(domain.TransitionNegotiationExpired, SystemActor, map[string]any{
			"deadline": d.NegotiationRoom.Deadline,
		}, now), nil
	case EvidenceDeadlineMissed(d, now):
		s := m.begin(d)
		s.d.ThirdPartyResolution.AdminFallbackRequired = true
		return s.finish(domain.TransitionEvidenceDeadlineMissed, SystemActor, map[string]any{
			"deadline": d.ThirdPartyResolution.EvidenceDeadline,
		}, now), nil
	default:
		return nil, nil
	}
}

func (s *step) openRoom(subject domain.NegotiationSubject, now time.Time) {
	s.d.NegotiationRoom = &domain.NegotiationRoom{
		Subject:    subject,
		StartedAt:  now,
		Deadline:   now.Add(s.m.policy.NegotiationWindow),
		ChatRoomID: s.m.newID(),
	}
}

func (s *step) agreement() *domain.FinalAgreement {
	room := s.d.NegotiationRoom
	if room.FinalAgreement == nil {
		room.FinalAgreement = &domain.FinalAgreement{
			ProposalAccepted:    domain.AcceptancePending,
			RenterAccepted:      domain.AcceptancePending,
			ComplainantAccepted: domain.AcceptancePending,
		}
	}
	return room.FinalAgreement
}

func (s *step) recordProposal(actorID string, in ProposalInput, now time.Time) {
	fa := s.agreement()
	fa.ProposedBy = actorID
	fa.ProposalText = strings.TrimSpace(in.Text)
	if in.Amount != nil {
		amount := *in.Amount
		fa.ProposalAmount = &amount
	} else {
		fa.ProposalAmount = nil
	}
	fa.ProposedAt = timePtr(now)
	fa.ProposalAccepted = domain.AcceptancePending
}

// escalate moves to THIRD_PARTY_ESCALATED. A failed return-date negotiation
// forfeits the deposit to the owner.
func (s *step) escalate(actorID, reason string, action Action, now time.Time) error {
	returnDate := s.d.NegotiationRoom != nil && s.d.NegotiationRoom.Subject == domain.NegotiationSubjectReturnDate
	if err := s.moveTo(domain.DisputeStatusThirdPartyEscalated, action); err != nil {
		return err
	}
	s.d.ThirdPartyResolution = &domain.ThirdPartyResolution{
		EscalatedAt:      now,
		EscalatedBy:      actorID,
		Reason:           reason,
		EvidenceDeadline: now.Add(s.m.policy.EvidenceWindow),
	}
	if returnDate && !s.d.HasSettlement(domain.SettlementKindDepositForfeit) {
		return s.settle(domain.SettlementKindDepositForfeit, settlement.DepositForfeit(s.d.LineItem), actorID, now)
	}
	return nil
}

// applyRuling settles a ruling and, when penalize is set, adjusts reputations.
func (s *step) applyRuling(ruling domain.Ruling, penalize bool, actorID string, now time.Time) error {
	amounts, err := settlement.ForDispute(s.d, ruling)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if err := s.settle(domain.SettlementKindRuling, amounts, actorID, now); err != nil {
		return err
	}
	if penalize {
		winner, loser := s.d.Complainant.UserID, s.d.Respondent.UserID
		if ruling == domain.RulingRespondentRight {
			winner, loser = loser, winner
		}
		s.effects.Reputation = settlement.RulingReputation(winner, loser, ruling)
	}
	return nil
}

// agreedAmounts turns a final agreement into money. A proposal with an amount
// is executed as proposed; otherwise the preliminary ruling's amounts apply.
func agreedAmounts(d *domain.Dispute) (domain.Settlement, error) {
	var fa *domain.FinalAgreement
	if d.NegotiationRoom != nil {
		fa = d.NegotiationRoom.FinalAgreement
	}
	if fa != nil && fa.Basis != domain.AgreementBasisOwnerDecision && fa.ProposalAmount != nil {
		return settlement.ForAgreement(d.LineItem, *fa.ProposalAmount), nil
	}
	if d.AdminDecision != nil {
		amounts, err := settlement.ForDispute(d, d.AdminDecision.Decision)
		if err != nil {
			return domain.Settlement{}, apperrors.NewInternalError(err)
		}
		return amounts, nil
	}
	return domain.Settlement{}, apperrors.NewFieldError("proposal_amount", "agreement carries no amounts to settle")
}

func (m *Machine) validateProposal(d *domain.Dispute, in ProposalInput) error {
	if err := required("proposal_text", in.Text); err != nil {
		return err
	}
	if in.Amount == nil {
		return nil
	}
	limit := d.LineItem.Deposit + d.LineItem.RentalTotal
	if *in.Amount < 0 || *in.Amount > limit {
		return apperrors.NewDomainError(apperrors.CodeValidation,
			"proposal amount must be between 0 and the deposit plus rental",
			http.StatusBadRequest,
			map[string]any{"field": "proposal_amount", "max": int64(limit)})
	}
	return nil
}

func (m *Machine) validateRescheduleDate(d *domain.Dispute, proposed, now time.Time) error {
	if proposed.IsZero() {
		return apperrors.NewFieldError("proposed_return_date", "proposed_return_date is required")
	}
	if !proposed.After(now) {
		return apperrors.NewFieldError("proposed_return_date", "proposed return date must be in the future")
	}
	latest := m.policy.RescheduleLatestDate(d.LineItem.RentalEndDate)
	if dateOnly(proposed).After(latest) {
		return apperrors.NewDomainError(apperrors.CodeValidation,
			"proposed return date is too far past the original return date",
			http.StatusBadRequest,
			map[string]any{"field": "proposed_return_date", "latest": latest.Format(time.DateOnly)})
	}
	return nil
}

// denyReschedule separates a wrong state of the reschedule request from the
// wrong party acting on it.
func denyReschedule(d *domain.Dispute, actorID string, action Action, requestReady bool, requiredID string) error {
	if !d.IsParty(actorID) {
		return apperrors.NewForbidden("actor is not a party to this dispute")
	}
	if d.Type != domain.DisputeTypeRenterNoReturn || d.Status != domain.DisputeStatusOpen || !requestReady {
		return denyStatus(d, action)
	}
	return deny(d, actorID, action, requiredID)
}

func proposalDetails(in ProposalInput) map[string]any {
	details := map[string]any{"text": strings.TrimSpace(in.Text)}
	if in.Amount != nil {
		details["amount"] = int64(*in.Amount)
	}
	return details
}

func containsShipment(legs []domain.ShipmentType, leg domain.ShipmentType) bool {
	for _, candidate := range legs {
		if candidate == leg {
			return true
		}
	}
	return false
}

func rulingPtr(r domain.Ruling) *domain.Ruling {
	return &r
}

func timePtr(t time.Time) *time.Time {
	return &t
}
