package domain

import "time"

// DisputeStatus enumerates lifecycle states for disputes.
type DisputeStatus string

const (
	DisputeStatusOpen                       DisputeStatus = "OPEN"
	DisputeStatusRespondentAccepted         DisputeStatus = "RESPONDENT_ACCEPTED"
	DisputeStatusRespondentRejected         DisputeStatus = "RESPONDENT_REJECTED"
	DisputeStatusAdminReviewing             DisputeStatus = "ADMIN_REVIEWING"
	DisputeStatusAdminDecisionMade          DisputeStatus = "ADMIN_DECISION_MADE"
	DisputeStatusBothAccepted               DisputeStatus = "BOTH_ACCEPTED"
	DisputeStatusNegotiationNeeded          DisputeStatus = "NEGOTIATION_NEEDED"
	DisputeStatusInNegotiation              DisputeStatus = "IN_NEGOTIATION"
	DisputeStatusNegotiationAgreed          DisputeStatus = "NEGOTIATION_AGREED"
	DisputeStatusNegotiationFailed          DisputeStatus = "NEGOTIATION_FAILED"
	DisputeStatusAgreedAwaitingAdmin        DisputeStatus = "AGREED_AWAITING_ADMIN"
	DisputeStatusThirdPartyEscalated        DisputeStatus = "THIRD_PARTY_ESCALATED"
	DisputeStatusThirdPartyEvidenceUploaded DisputeStatus = "THIRD_PARTY_EVIDENCE_UPLOADED"
	DisputeStatusResolved                   DisputeStatus = "RESOLVED"
	DisputeStatusClosed                     DisputeStatus = "CLOSED"
)

// AllDisputeStatuses lists every status in graph order.
var AllDisputeStatuses = []DisputeStatus{
	DisputeStatusOpen,
	DisputeStatusRespondentAccepted,
	DisputeStatusRespondentRejected,
	DisputeStatusAdminReviewing,
	DisputeStatusAdminDecisionMade,
	DisputeStatusBothAccepted,
	DisputeStatusNegotiationNeeded,
	DisputeStatusInNegotiation,
	DisputeStatusNegotiationAgreed,
	DisputeStatusNegotiationFailed,
	DisputeStatusAgreedAwaitingAdmin,
	DisputeStatusThirdPartyEscalated,
	DisputeStatusThirdPartyEvidenceUploaded,
	DisputeStatusResolved,
	DisputeStatusClosed,
}

// IsTerminal reports whether the dispute is read-only in this status.
func (s DisputeStatus) IsTerminal() bool {
	return s == DisputeStatusResolved || s == DisputeStatusClosed
}

// Valid reports whether s is a known status.
func (s DisputeStatus) Valid() bool {
	for _, known := range AllDisputeStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// DisputeType classifies what went wrong with the rental.
type DisputeType string

const (
	DisputeTypeProductNotAsDescribed DisputeType = "PRODUCT_NOT_AS_DESCRIBED"
	DisputeTypeMissingItems          DisputeType = "MISSING_ITEMS"
	DisputeTypeDamagedByShipper      DisputeType = "DAMAGED_BY_SHIPPER"
	DisputeTypeDeliveryFailedRenter  DisputeType = "DELIVERY_FAILED_RENTER"
	DisputeTypeProductDefect         DisputeType = "PRODUCT_DEFECT"
	DisputeTypeDamagedOnReturn       DisputeType = "DAMAGED_ON_RETURN"
	DisputeTypeLateReturn            DisputeType = "LATE_RETURN"
	DisputeTypeReturnFailedOwner     DisputeType = "RETURN_FAILED_OWNER"
	DisputeTypeRenterNoReturn        DisputeType = "RENTER_NO_RETURN"
	DisputeTypeOther                 DisputeType = "OTHER"
)

// ShipmentType tells which leg of the rental the dispute concerns.
type ShipmentType string

const (
	ShipmentTypeDelivery ShipmentType = "DELIVERY"
	ShipmentTypeReturn   ShipmentType = "RETURN"
)

// ShipmentTypes returns the legs a dispute type may be raised on. OTHER fits both.
func (t DisputeType) ShipmentTypes() []ShipmentType {
	switch t {
	case DisputeTypeProductNotAsDescribed, DisputeTypeMissingItems, DisputeTypeDamagedByShipper,
		DisputeTypeDeliveryFailedRenter, DisputeTypeProductDefect:
		return []ShipmentType{ShipmentTypeDelivery}
	case DisputeTypeDamagedOnReturn, DisputeTypeLateReturn, DisputeTypeReturnFailedOwner, DisputeTypeRenterNoReturn:
		return []ShipmentType{ShipmentTypeReturn}
	case DisputeTypeOther:
		return []ShipmentType{ShipmentTypeDelivery, ShipmentTypeReturn}
	default:
		return nil
	}
}

// PartyRole is the marketplace role a party plays in the rental.
type PartyRole string

const (
	PartyRoleRenter PartyRole = "RENTER"
	PartyRoleOwner  PartyRole = "OWNER"
)

// Opposite returns the counterpart role.
func (r PartyRole) Opposite() PartyRole {
	if r == PartyRoleRenter {
		return PartyRoleOwner
	}
	return PartyRoleRenter
}

// Ruling is an admin verdict expressed relative to the dispute parties.
type Ruling string

const (
	RulingComplainantRight Ruling = "COMPLAINANT_RIGHT"
	RulingRespondentRight  Ruling = "RESPONDENT_RIGHT"
)

// Valid reports whether r is a known ruling.
func (r Ruling) Valid() bool {
	return r == RulingComplainantRight || r == RulingRespondentRight
}

// ResponseDecision is a yes/no answer by the respondent.
type ResponseDecision string

const (
	ResponseAccepted ResponseDecision = "ACCEPTED"
	ResponseRejected ResponseDecision = "REJECTED"
)

// Acceptance replaces nullable booleans: PENDING means no answer yet.
type Acceptance string

const (
	AcceptancePending  Acceptance = "PENDING"
	AcceptanceAccepted Acceptance = "ACCEPTED"
	AcceptanceRejected Acceptance = "REJECTED"
)

// AcceptanceOf converts a submitted boolean into an Acceptance.
func AcceptanceOf(accepted bool) Acceptance {
	if accepted {
		return AcceptanceAccepted
	}
	return AcceptanceRejected
}

// IsPending reports whether no answer has been recorded. The zero value counts as pending.
func (a Acceptance) IsPending() bool {
	return a == "" || a == AcceptancePending
}

// RescheduleStatus tracks the owner's answer to a return-date proposal.
type RescheduleStatus string

const (
	RescheduleStatusPending  RescheduleStatus = "PENDING"
	RescheduleStatusApproved RescheduleStatus = "APPROVED"
	RescheduleStatusRejected RescheduleStatus = "REJECTED"
)

// NegotiationSubject tells what a negotiation room is agreeing on.
type NegotiationSubject string

const (
	NegotiationSubjectMoney      NegotiationSubject = "MONEY"
	NegotiationSubjectReturnDate NegotiationSubject = "RETURN_DATE"
)

// AgreementBasis records which path produced the final agreement.
type AgreementBasis string

const (
	AgreementBasisProposal      AgreementBasis = "PROPOSAL"
	AgreementBasisOwnerDecision AgreementBasis = "OWNER_DECISION"
)

// PartyRef identifies one side of a dispute.
type PartyRef struct {
	UserID string    `json:"user_id"`
	Role   PartyRole `json:"role"`
}

// Evidence is a description plus opaque media URIs.
type Evidence struct {
	Description string   `json:"description"`
	MediaURIs   []string `json:"media_uris,omitempty"`
}

// RespondentResponse is the respondent's first answer to the complaint.
type RespondentResponse struct {
	Decision    ResponseDecision `json:"decision"`
	Reason      string           `json:"reason"`
	Evidence    Evidence         `json:"evidence"`
	RespondedAt time.Time        `json:"responded_at"`
}

// AdminDecision is the preliminary ruling after a rejected complaint.
type AdminDecision struct {
	Decision            Ruling     `json:"decision"`
	Reasoning           string     `json:"reasoning"`
	RefundAmount        Money      `json:"refund_amount"`
	PenaltyAmount       Money      `json:"penalty_amount"`
	ComplainantAccepted Acceptance `json:"complainant_accepted"`
	RespondentAccepted  Acceptance `json:"respondent_accepted"`
	DecidedAt           time.Time  `json:"decided_at"`
	DecidedBy           string     `json:"decided_by"`
}

// FinalAgreement carries the pending proposal and the owner's final word.
// ComplainantAccepted mirrors whichever answer the complainant gave on either path.
type FinalAgreement struct {
	ProposedBy          string         `json:"proposed_by,omitempty"`
	ProposalText        string         `json:"proposal_text,omitempty"`
	ProposalAmount      *Money         `json:"proposal_amount,omitempty"`
	ProposedReturnDate  *time.Time     `json:"proposed_return_date,omitempty"`
	ProposedAt          *time.Time     `json:"proposed_at,omitempty"`
	OwnerDecision       string         `json:"owner_decision,omitempty"`
	DecidedAt           *time.Time     `json:"decided_at,omitempty"`
	ProposalAccepted    Acceptance     `json:"proposal_accepted"`
	RenterAccepted      Acceptance     `json:"renter_accepted"`
	ComplainantAccepted Acceptance     `json:"complainant_accepted"`
	Basis               AgreementBasis `json:"basis,omitempty"`
	AgreedAt            *time.Time     `json:"agreed_at,omitempty"`
}

// HasPendingProposal reports whether a proposal awaits the counterpart.
func (f *FinalAgreement) HasPendingProposal() bool {
	return f != nil && f.ProposedBy != "" && f.Basis == "" && f.ProposalAccepted.IsPending()
}

// NegotiationRoom is the bounded window for direct settlement.
type NegotiationRoom struct {
	Subject        NegotiationSubject `json:"subject"`
	StartedAt      time.Time          `json:"started_at"`
	Deadline       time.Time          `json:"deadline"`
	ChatRoomID     string             `json:"chat_room_id"`
	FinalAgreement *FinalAgreement    `json:"final_agreement,omitempty"`
}

// OwnerResponse is the owner's answer to a reschedule request.
type OwnerResponse struct {
	Decision    RescheduleStatus `json:"decision"`
	Reason      string           `json:"reason"`
	RespondedAt time.Time        `json:"responded_at"`
}

// RescheduleRequest is the single return-date proposal for RENTER_NO_RETURN disputes.
type RescheduleRequest struct {
	ProposedReturnDate time.Time        `json:"proposed_return_date"`
	Reason             string           `json:"reason"`
	Evidence           Evidence         `json:"evidence"`
	Status             RescheduleStatus `json:"status"`
	RequestedAt        time.Time        `json:"requested_at"`
	OwnerResponse      *OwnerResponse   `json:"owner_response,omitempty"`
}

// PartyContact is what an admin shares with both sides for the arbiter.
type PartyContact struct {
	UserID  string    `json:"user_id"`
	Role    PartyRole `json:"role"`
	Name    string    `json:"name"`
	Email   string    `json:"email"`
	Phone   string    `json:"phone"`
	Address string    `json:"address"`
}

// SharedData is the contact bundle released at escalation.
type SharedData struct {
	SharedAt  time.Time      `json:"shared_at"`
	SharedBy  string         `json:"shared_by"`
	PartyInfo []PartyContact `json:"party_info"`
}

// ThirdPartyEvidence is the arbiter's outcome uploaded by a party.
type ThirdPartyEvidence struct {
	OfficialDecision string    `json:"official_decision"`
	Photos           []string  `json:"photos,omitempty"`
	Documents        []string  `json:"documents,omitempty"`
	UploadedAt       time.Time `json:"uploaded_at"`
	UploadedBy       string    `json:"uploaded_by"`
}

// RejectedEvidence keeps evidence an admin sent back.
type RejectedEvidence struct {
	Evidence   ThirdPartyEvidence `json:"evidence"`
	Reason     string             `json:"reason"`
	RejectedAt time.Time          `json:"rejected_at"`
	RejectedBy string             `json:"rejected_by"`
}

// ThirdPartyResolution tracks hand-off to an external arbiter.
type ThirdPartyResolution struct {
	EscalatedAt           time.Time           `json:"escalated_at"`
	EscalatedBy           string              `json:"escalated_by"`
	Reason                string              `json:"reason"`
	SharedData            *SharedData         `json:"shared_data,omitempty"`
	EvidenceDeadline      time.Time           `json:"evidence_deadline"`
	Evidence              *ThirdPartyEvidence `json:"evidence,omitempty"`
	ThirdPartyInfo        string              `json:"third_party_info,omitempty"`
	AdminFallbackRequired bool                `json:"admin_fallback_required"`
	RejectedEvidence      []RejectedEvidence  `json:"rejected_evidence,omitempty"`
}

// Resolution records how a dispute reached RESOLVED or CLOSED.
type Resolution struct {
	Kind       SettlementKind `json:"kind,omitempty"`
	Ruling     *Ruling        `json:"ruling,omitempty"`
	Note       string         `json:"note,omitempty"`
	ResolvedAt time.Time      `json:"resolved_at"`
	ResolvedBy string         `json:"resolved_by"`
}

// Dispute is the aggregate root.
type Dispute struct {
	ID                   string                `json:"id"`
	DisputeID            string                `json:"dispute_id"`
	Type                 DisputeType           `json:"type"`
	ShipmentType         ShipmentType          `json:"shipment_type"`
	Complainant          PartyRef              `json:"complainant"`
	Respondent           PartyRef              `json:"respondent"`
	LineItem             LineItem              `json:"line_item"`
	Status               DisputeStatus         `json:"status"`
	Evidence             Evidence              `json:"evidence"`
	RespondentResponse   *RespondentResponse   `json:"respondent_response,omitempty"`
	AdminDecision        *AdminDecision        `json:"admin_decision,omitempty"`
	NegotiationRoom      *NegotiationRoom      `json:"negotiation_room,omitempty"`
	RescheduleRequest    *RescheduleRequest    `json:"reschedule_request,omitempty"`
	ThirdPartyResolution *ThirdPartyResolution `json:"third_party_resolution,omitempty"`
	Settlements          []SettlementRecord    `json:"settlements,omitempty"`
	Resolution           *Resolution           `json:"resolution,omitempty"`
	Timeline             []TimelineEntry       `json:"timeline"`
	Version              int64                 `json:"version"`
	CreatedAt            time.Time             `json:"created_at"`
	UpdatedAt            time.Time             `json:"updated_at"`
}

// PartyRole returns the role userID plays, if they are a party.
func (d *Dispute) PartyRole(userID string) (PartyRole, bool) {
	switch {
	case userID == "":
		return "", false
	case d.Complainant.UserID == userID:
		return d.Complainant.Role, true
	case d.Respondent.UserID == userID:
		return d.Respondent.Role, true
	default:
		return "", false
	}
}

// IsParty reports whether userID is complainant or respondent.
func (d *Dispute) IsParty(userID string) bool {
	_, ok := d.PartyRole(userID)
	return ok
}

// OwnerID returns the party holding the owner role.
func (d *Dispute) OwnerID() string {
	if d.Complainant.Role == PartyRoleOwner {
		return d.Complainant.UserID
	}
	return d.Respondent.UserID
}

// RenterID returns the party holding the renter role.
func (d *Dispute) RenterID() string {
	if d.Complainant.Role == PartyRoleRenter {
		return d.Complainant.UserID
	}
	return d.Respondent.UserID
}

// CounterpartOf returns the other party's id.
func (d *Dispute) CounterpartOf(userID string) string {
	if d.Complainant.UserID == userID {
		return d.Respondent.UserID
	}
	return d.Complainant.UserID
}

// HasSettlement reports whether a settlement of kind was already applied.
func (d *Dispute) HasSettlement(kind SettlementKind) bool {
	for _, s := range d.Settlements {
		if s.Kind == kind {
			return true
		}
	}
	return false
}
