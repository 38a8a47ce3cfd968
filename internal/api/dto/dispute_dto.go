package dto

import (
	"time"

	"github.com/spec-kit/dispute-service/internal/domain"
	"github.com/spec-kit/dispute-service/internal/workflow"
)

// Precondition lets a client pin the status it last saw. A mismatch fails
// with 409 before anything is written.
type Precondition struct {
	ExpectedStatus domain.DisputeStatus `json:"expected_status"`
}

// EvidenceRequest payload.
type EvidenceRequest struct {
	Description string   `json:"description"`
	MediaURIs   []string `json:"media_uris"`
}

// CreateDisputeRequest payload.
type CreateDisputeRequest struct {
	SubOrderID   string              `json:"sub_order_id"`
	ProductIndex int                 `json:"product_index"`
	Type         domain.DisputeType  `json:"type"`
	ShipmentType domain.ShipmentType `json:"shipment_type"`
	Evidence     EvidenceRequest     `json:"evidence"`
}

// ReasonRequest carries a free-text reason (withdraw, escalate, evidence rejection).
type ReasonRequest struct {
	Precondition
	Reason string `json:"reason"`
}

// RespondRequest payload.
type RespondRequest struct {
	Precondition
	Decision domain.ResponseDecision `json:"decision"`
	Reason   string                  `json:"reason"`
	Evidence EvidenceRequest         `json:"evidence"`
}

// AdminDecisionRequest payload.
type AdminDecisionRequest struct {
	Precondition
	Decision  domain.Ruling `json:"decision"`
	Reasoning string        `json:"reasoning"`
}

// FinalDecisionRequest payload.
type FinalDecisionRequest struct {
	Precondition
	Decision       domain.Ruling `json:"decision"`
	ResolutionText string        `json:"resolution_text"`
}

// AcceptanceRequest answers a decision with yes or no.
type AcceptanceRequest struct {
	Precondition
	Accepted *bool `json:"accepted"`
}

// ProposalRequest payload. Amount is the refund the renter would receive.
type ProposalRequest struct {
	Precondition
	Text   string `json:"proposal_text"`
	Amount *int64 `json:"proposal_amount"`
}

// AgreementResponseRequest payload.
type AgreementResponseRequest struct {
	Precondition
	Accepted     *bool            `json:"accepted"`
	CounterOffer *ProposalRequest `json:"counter_offer"`
}

// OwnerDecisionRequest payload.
type OwnerDecisionRequest struct {
	Precondition
	Decision string `json:"owner_decision"`
}

// EvidenceUploadRequest payload.
type EvidenceUploadRequest struct {
	Precondition
	OfficialDecision string   `json:"official_decision"`
	Photos           []string `json:"photos"`
	Documents        []string `json:"documents"`
}

// ProcessSettlementRequest payload.
type ProcessSettlementRequest struct {
	Precondition
	Note string `json:"note"`
}

// RescheduleRequest payload.
type RescheduleRequest struct {
	Precondition
	ProposedReturnDate time.Time       `json:"proposed_return_date"`
	Reason             string          `json:"reason"`
	Evidence           EvidenceRequest `json:"evidence"`
}

// RescheduleResponseRequest payload.
type RescheduleResponseRequest struct {
	Precondition
	Decision domain.RescheduleStatus `json:"decision"`
	Reason   string                  `json:"reason"`
}

// FinalizeRescheduleRequest payload.
type FinalizeRescheduleRequest struct {
	Precondition
	AgreedDate time.Time `json:"agreed_date"`
}

// PreviewSettlementRequest payload.
type PreviewSettlementRequest struct {
	Deposit         int64         `json:"deposit"`
	RentalTotal     int64         `json:"rental_total"`
	ShippingFee     int64         `json:"shipping_fee"`
	RentalStartDate time.Time     `json:"rental_start_date"`
	RentalEndDate   time.Time     `json:"rental_end_date"`
	Ruling          domain.Ruling `json:"ruling"`
}

// DisputeSummary response.
type DisputeSummary struct {
	ID            string               `json:"id"`
	DisputeCode   string               `json:"dispute_id"`
	Type          domain.DisputeType   `json:"type"`
	ShipmentType  domain.ShipmentType  `json:"shipment_type"`
	Status        domain.DisputeStatus `json:"status"`
	ComplainantID string               `json:"complainant_id"`
	RespondentID  string               `json:"respondent_id"`
	SubOrderID    string               `json:"sub_order_id"`
	ProductIndex  int                  `json:"product_index"`
	Version       int64                `json:"version"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

// DisputeDetailResponse response.
type DisputeDetailResponse struct {
	Dispute          *domain.Dispute   `json:"dispute"`
	AvailableActions []workflow.Action `json:"available_actions"`
}
