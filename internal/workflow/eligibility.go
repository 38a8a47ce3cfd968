package workflow

import "github.com/spec-kit/dispute-service/internal/domain"

// Action names an operation a caller may attempt on a dispute.
type Action string

const (
	ActionRespond                  Action = "RESPOND"
	ActionWithdraw                 Action = "WITHDRAW"
	ActionRespondToAdminDecision   Action = "RESPOND_TO_ADMIN_DECISION"
	ActionProposeAgreement         Action = "PROPOSE_AGREEMENT"
	ActionRespondToAgreement       Action = "RESPOND_TO_AGREEMENT"
	ActionSubmitOwnerDecision      Action = "SUBMIT_OWNER_DECISION"
	ActionRespondToOwnerDecision   Action = "RESPOND_TO_OWNER_DECISION"
	ActionEscalate                 Action = "ESCALATE"
	ActionUploadThirdPartyEvidence Action = "UPLOAD_THIRD_PARTY_EVIDENCE"
	ActionProposeReschedule        Action = "PROPOSE_RESCHEDULE"
	ActionRespondToReschedule      Action = "RESPOND_TO_RESCHEDULE"
	ActionFinalizeReschedule       Action = "FINALIZE_RESCHEDULE"

	ActionAdminStartReview       Action = "ADMIN_START_REVIEW"
	ActionAdminDecide            Action = "ADMIN_DECIDE"
	ActionShareContactInfo       Action = "SHARE_CONTACT_INFO"
	ActionAdminRejectEvidence    Action = "ADMIN_REJECT_EVIDENCE"
	ActionAdminFinalDecision     Action = "ADMIN_FINAL_DECISION"
	ActionAdminProcessSettlement Action = "ADMIN_PROCESS_SETTLEMENT"
)

// CanRespond: the respondent answers an open complaint. A pending reschedule
// request must be answered by the owner first.
func CanRespond(d *domain.Dispute, actorID string) bool {
	return d.Status == domain.DisputeStatusOpen && actorID != "" && actorID == d.Respondent.UserID &&
		!reschedulePending(d)
}

// CanWithdraw: the complainant drops the complaint before it is answered.
func CanWithdraw(d *domain.Dispute, actorID string) bool {
	return d.Status == domain.DisputeStatusOpen && actorID != "" && actorID == d.Complainant.UserID
}

// CanRespondToAdminDecision holds while the actor's own acceptance is still pending.
func CanRespondToAdminDecision(d *domain.Dispute, actorID string) bool {
	if d.Status != domain.DisputeStatusAdminDecisionMade || d.AdminDecision == nil {
		return false
	}
	switch {
	case actorID == "":
		return false
	case actorID == d.Complainant.UserID:
		return d.AdminDecision.ComplainantAccepted.IsPending()
	case actorID == d.Respondent.UserID:
		return d.AdminDecision.RespondentAccepted.IsPending()
	default:
		return false
	}
}

// CanProposeAgreement holds for either party in a money negotiation.
func CanProposeAgreement(d *domain.Dispute, actorID string) bool {
	return d.Status == domain.DisputeStatusInNegotiation && d.IsParty(actorID) && negotiatesMoney(d)
}

// CanRespondToAgreement requires a pending proposal made by the other party.
func CanRespondToAgreement(d *domain.Dispute, actorID string) bool {
	if d.Status != domain.DisputeStatusInNegotiation || !d.IsParty(actorID) || !negotiatesMoney(d) {
		return false
	}
	fa := d.NegotiationRoom.FinalAgreement
	return fa.HasPendingProposal() && fa.ProposedBy != actorID
}

// CanSubmitOwnerDecision lets the owner state a final position once per negotiation.
func CanSubmitOwnerDecision(d *domain.Dispute, actorID string) bool {
	if d.Status != domain.DisputeStatusInNegotiation || !negotiatesMoney(d) {
		return false
	}
	if actorID == "" || actorID != d.OwnerID() || !d.IsParty(actorID) {
		return false
	}
	fa := d.NegotiationRoom.FinalAgreement
	return fa == nil || fa.OwnerDecision == ""
}

// CanRespondToOwnerDecision lets the renter answer a submitted owner decision.
func CanRespondToOwnerDecision(d *domain.Dispute, actorID string) bool {
	if d.Status != domain.DisputeStatusInNegotiation || !negotiatesMoney(d) {
		return false
	}
	if actorID == "" || actorID != d.RenterID() || !d.IsParty(actorID) {
		return false
	}
	fa := d.NegotiationRoom.FinalAgreement
	return fa != nil && fa.OwnerDecision != "" && fa.RenterAccepted.IsPending()
}

// CanEscalate holds for either party while direct negotiation is possible or has failed.
func CanEscalate(d *domain.Dispute, actorID string) bool {
	if !d.IsParty(actorID) {
		return false
	}
	switch d.Status {
	case domain.DisputeStatusInNegotiation, domain.DisputeStatusNegotiationNeeded, domain.DisputeStatusNegotiationFailed:
		return true
	default:
		return false
	}
}

// CanUploadThirdPartyEvidence holds until the first upload after escalation.
func CanUploadThirdPartyEvidence(d *domain.Dispute, actorID string) bool {
	return d.Status == domain.DisputeStatusThirdPartyEscalated &&
		d.ThirdPartyResolution != nil &&
		d.ThirdPartyResolution.Evidence == nil &&
		d.IsParty(actorID)
}

// CanProposeReschedule lets the late renter propose a single new return date.
func CanProposeReschedule(d *domain.Dispute, actorID string) bool {
	return d.Type == domain.DisputeTypeRenterNoReturn &&
		d.Status == domain.DisputeStatusOpen &&
		d.RescheduleRequest == nil &&
		actorID != "" && actorID == d.Respondent.UserID && actorID == d.RenterID()
}

// CanRespondToReschedule lets the owner answer a pending reschedule request.
func CanRespondToReschedule(d *domain.Dispute, actorID string) bool {
	return d.Type == domain.DisputeTypeRenterNoReturn &&
		d.Status == domain.DisputeStatusOpen &&
		d.RescheduleRequest != nil &&
		d.RescheduleRequest.Status == domain.RescheduleStatusPending &&
		actorID != "" && actorID == d.Complainant.UserID && actorID == d.OwnerID()
}

// CanFinalizeReschedule holds for either party in a return-date negotiation.
func CanFinalizeReschedule(d *domain.Dispute, actorID string) bool {
	return d.Status == domain.DisputeStatusInNegotiation &&
		d.NegotiationRoom != nil &&
		d.NegotiationRoom.Subject == domain.NegotiationSubjectReturnDate &&
		d.IsParty(actorID)
}

// CanAdminStartReview reports whether an admin can pick up a rejected complaint.
func CanAdminStartReview(d *domain.Dispute) bool {
	return d.Status == domain.DisputeStatusRespondentRejected
}

// CanAdminDecide reports whether a preliminary ruling can be made.
func CanAdminDecide(d *domain.Dispute) bool {
	return d.Status == domain.DisputeStatusRespondentRejected || d.Status == domain.DisputeStatusAdminReviewing
}

// CanShareContactInfo allows a single contact release per escalation.
func CanShareContactInfo(d *domain.Dispute) bool {
	return d.Status == domain.DisputeStatusThirdPartyEscalated &&
		d.ThirdPartyResolution != nil &&
		d.ThirdPartyResolution.SharedData == nil
}

// CanAdminRejectEvidence lets an admin send uploaded evidence back.
func CanAdminRejectEvidence(d *domain.Dispute) bool {
	return d.Status == domain.DisputeStatusThirdPartyEvidenceUploaded
}

// CanAdminFinalDecision holds once evidence is in, or when the evidence
// deadline passed and the dispute was flagged for fallback.
func CanAdminFinalDecision(d *domain.Dispute) bool {
	switch d.Status {
	case domain.DisputeStatusThirdPartyEvidenceUploaded:
		return true
	case domain.DisputeStatusThirdPartyEscalated:
		return d.ThirdPartyResolution != nil && d.ThirdPartyResolution.AdminFallbackRequired
	default:
		return false
	}
}

// CanAdminProcessSettlement covers agreed terms and conceded or accepted rulings.
func CanAdminProcessSettlement(d *domain.Dispute) bool {
	switch d.Status {
	case domain.DisputeStatusAgreedAwaitingAdmin, domain.DisputeStatusNegotiationAgreed,
		domain.DisputeStatusRespondentAccepted, domain.DisputeStatusBothAccepted:
		return true
	default:
		return false
	}
}

// AvailableActions lists what the caller may do right now. Write paths gate on
// the same predicates.
func AvailableActions(d *domain.Dispute, actorID string, admin bool) []Action {
	actions := []Action{}
	if d == nil || d.Status.IsTerminal() {
		return actions
	}
	party := []struct {
		action Action
		ok     func(*domain.Dispute, string) bool
	}{
		{ActionRespond, CanRespond},
		{ActionWithdraw, CanWithdraw},
		{ActionRespondToAdminDecision, CanRespondToAdminDecision},
		{ActionProposeAgreement, CanProposeAgreement},
		{ActionRespondToAgreement, CanRespondToAgreement},
		{ActionSubmitOwnerDecision, CanSubmitOwnerDecision},
		{ActionRespondToOwnerDecision, CanRespondToOwnerDecision},
		{ActionEscalate, CanEscalate},
		{ActionUploadThirdPartyEvidence, CanUploadThirdPartyEvidence},
		{ActionProposeReschedule, CanProposeReschedule},
		{ActionRespondToReschedule, CanRespondToReschedule},
		{ActionFinalizeReschedule, CanFinalizeReschedule},
	}
	for _, p := range party {
		if p.ok(d, actorID) {
			actions = append(actions, p.action)
		}
	}
	if !admin {
		return actions
	}
	adminOnly := []struct {
		action Action
		ok     func(*domain.Dispute) bool
	}{
		{ActionAdminStartReview, CanAdminStartReview},
		{ActionAdminDecide, CanAdminDecide},
		{ActionShareContactInfo, CanShareContactInfo},
		{ActionAdminRejectEvidence, CanAdminRejectEvidence},
		{ActionAdminFinalDecision, CanAdminFinalDecision},
		{ActionAdminProcessSettlement, CanAdminProcessSettlement},
	}
	for _, s := range adminOnly {
		if s.ok(d) {
			actions = append(actions, s.action)
		}
	}
	return actions
}

func reschedulePending(d *domain.Dispute) bool {
	return d.RescheduleRequest != nil && d.RescheduleRequest.Status == domain.RescheduleStatusPending
}

// negotiatesMoney treats rooms without a subject as money negotiations.
func negotiatesMoney(d *domain.Dispute) bool {
	room := d.NegotiationRoom
	return room != nil && room.Subject != domain.NegotiationSubjectReturnDate
}
