package domain

import "time"

// SettlementKind says which rule produced a settlement; each kind applies once per dispute.
type SettlementKind string

const (
	SettlementKindRuling             SettlementKind = "RULING"
	SettlementKindAgreement          SettlementKind = "AGREEMENT"
	SettlementKindRescheduleApproved SettlementKind = "RESCHEDULE_APPROVED"
	SettlementKindRescheduleAgreed   SettlementKind = "RESCHEDULE_AGREED"
	SettlementKindDepositForfeit     SettlementKind = "DEPOSIT_FORFEIT"
)

// Settlement is the computed split of deposit and rental between the parties.
type Settlement struct {
	DailyRental         Money  `json:"daily_rental"`
	TotalDays           int    `json:"total_days"`
	Penalty             Money  `json:"penalty"`
	DepositRefund       Money  `json:"deposit_refund"`
	RentalRefund        Money  `json:"rental_refund"`
	OwnerCompensation   Money  `json:"owner_compensation"`
	TotalRefundToRenter Money  `json:"total_refund_to_renter"`
	ShippingFee         Money  `json:"shipping_fee"`
	Note                string `json:"note,omitempty"`
}

// SettlementRecord is a settlement applied to a dispute. Payment execution happens elsewhere.
type SettlementRecord struct {
	Kind      SettlementKind `json:"kind"`
	Amounts   Settlement     `json:"amounts"`
	RenterID  string         `json:"renter_id"`
	OwnerID   string         `json:"owner_id"`
	AppliedAt time.Time      `json:"applied_at"`
	AppliedBy string         `json:"applied_by"`
}

// ReputationReason is the idempotency key component for reputation changes.
type ReputationReason string

const (
	ReputationReasonLostRuling         ReputationReason = "LOST_RULING"
	ReputationReasonWonRuling          ReputationReason = "WON_RULING"
	ReputationReasonRescheduleApproved ReputationReason = "RESCHEDULE_APPROVED"
)

// ReputationAdjustment changes one user's standing. CreditCap limits positive credit to users below it.
type ReputationAdjustment struct {
	UserID         string           `json:"user_id"`
	Reason         ReputationReason `json:"reason"`
	CreditDelta    int              `json:"credit_delta"`
	CreditCap      int              `json:"credit_cap,omitempty"`
	LoyaltyDelta   int              `json:"loyalty_delta"`
	NegativePoints int              `json:"negative_points"`
	Warnings       int              `json:"warnings"`
}

// Effects are side effects committed together with a transition.
type Effects struct {
	Settlement *SettlementRecord      `json:"settlement,omitempty"`
	Reputation []ReputationAdjustment `json:"reputation,omitempty"`
}

// IsEmpty reports whether there is nothing to apply.
func (e *Effects) IsEmpty() bool {
	return e == nil || (e.Settlement == nil && len(e.Reputation) == 0)
}

// DefaultCreditScore is the score a user starts with.
const DefaultCreditScore = 100

// Reputation is a user's accumulated standing.
type Reputation struct {
	UserID         string    `json:"user_id"`
	CreditScore    int       `json:"credit_score"`
	LoyaltyPoints  int       `json:"loyalty_points"`
	NegativePoints int       `json:"negative_points"`
	Warnings       int       `json:"warnings"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Apply folds an adjustment into the reputation. Positive credit with a cap is
// only granted while the score is below the cap.
func (r *Reputation) Apply(adj ReputationAdjustment, now time.Time) {
	if adj.CreditDelta < 0 || adj.CreditCap == 0 || r.CreditScore < adj.CreditCap {
		r.CreditScore += adj.CreditDelta
	}
	r.LoyaltyPoints += adj.LoyaltyDelta
	r.NegativePoints += adj.NegativePoints
	r.Warnings += adj.Warnings
	r.UpdatedAt = now
}
