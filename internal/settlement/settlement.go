// Package settlement computes how deposit and rental money is split between
// renter and owner. Every function is pure and derives its result from the
// sub-order snapshot alone.
package settlement

import (
	"fmt"
	"time"

	"github.com/spec-kit/dispute-service/internal/domain"
)

// Reputation constants applied by callers after a ruling.
const (
	LoserCreditPenalty  = -30
	LoserNegativePoints = 5
	LoserWarnings       = 1
	WinnerCreditBonus   = 5
	WinnerCreditCap     = 100
	WinnerLoyaltyBonus  = 5

	RescheduleCreditPenalty         = -5
	DefaultReschedulePenaltyPercent = 10
)

// ShippingNote accompanies every settlement.
const ShippingNote = "shipping fee is not refunded"

const day = 24 * time.Hour

// TotalDays is the rental length in whole days, rounded up and never below one.
func TotalDays(start, end time.Time) int {
	span := end.Sub(start)
	if span <= 0 {
		return 1
	}
	days := int(span / day)
	if span%day != 0 {
		days++
	}
	if days < 1 {
		return 1
	}
	return days
}

// DailyRental is the rental total spread over the rental days.
func DailyRental(item domain.LineItem) domain.Money {
	return item.RentalTotal / domain.Money(TotalDays(item.RentalStartDate, item.RentalEndDate))
}

// Compute splits the line item for a ruling given in the delivery convention,
// where COMPLAINANT_RIGHT means the renter was right.
func Compute(item domain.LineItem, ruling domain.Ruling) (domain.Settlement, error) {
	totalDays := TotalDays(item.RentalStartDate, item.RentalEndDate)
	daily := item.RentalTotal / domain.Money(totalDays)
	out := domain.Settlement{
		DailyRental: daily,
		TotalDays:   totalDays,
		ShippingFee: item.ShippingFee,
		Note:        ShippingNote,
	}

	switch ruling {
	case domain.RulingComplainantRight:
		out.DepositRefund = item.Deposit
		out.RentalRefund = item.RentalTotal
		out.TotalRefundToRenter = item.Deposit + item.RentalTotal
	case domain.RulingRespondentRight:
		out.Penalty = daily
		out.DepositRefund = item.Deposit
		out.RentalRefund = item.RentalTotal - daily
		out.OwnerCompensation = daily
		out.TotalRefundToRenter = item.Deposit + item.RentalTotal - daily
	default:
		return domain.Settlement{}, fmt.Errorf("settlement: unknown ruling %q", ruling)
	}
	return out, nil
}

// Normalize rewrites a complainant/respondent ruling into the delivery
// convention. When the owner complained, the owner winning means the renter loses.
func Normalize(ruling domain.Ruling, complainantRole domain.PartyRole) domain.Ruling {
	if complainantRole == domain.PartyRoleRenter {
		return ruling
	}
	if ruling == domain.RulingComplainantRight {
		return domain.RulingRespondentRight
	}
	return domain.RulingComplainantRight
}

// ForDispute computes the settlement of a ruling on a specific dispute.
func ForDispute(d *domain.Dispute, ruling domain.Ruling) (domain.Settlement, error) {
	item := d.LineItem
	if d.HasSettlement(domain.SettlementKindDepositForfeit) {
		// the deposit already went to the owner at escalation
		item.Deposit = 0
	}
	return Compute(item, Normalize(ruling, d.Complainant.Role))
}

// ForAgreement splits the line item so the renter receives refundToRenter.
func ForAgreement(item domain.LineItem, refundToRenter domain.Money) domain.Settlement {
	total := item.Deposit + item.RentalTotal
	depositRefund := refundToRenter
	if depositRefund > item.Deposit {
		depositRefund = item.Deposit
	}
	return domain.Settlement{
		DailyRental:         DailyRental(item),
		TotalDays:           TotalDays(item.RentalStartDate, item.RentalEndDate),
		Penalty:             total - refundToRenter,
		DepositRefund:       depositRefund,
		RentalRefund:        refundToRenter - depositRefund,
		OwnerCompensation:   total - refundToRenter,
		TotalRefundToRenter: refundToRenter,
		ShippingFee:         item.ShippingFee,
		Note:                ShippingNote,
	}
}

// RescheduleApproved charges percent of the deposit when the owner accepts the first proposal.
func RescheduleApproved(item domain.LineItem, percent int) domain.Settlement {
	penalty := item.Deposit * domain.Money(percent) / 100
	return domain.Settlement{
		DailyRental:         DailyRental(item),
		TotalDays:           TotalDays(item.RentalStartDate, item.RentalEndDate),
		Penalty:             penalty,
		DepositRefund:       item.Deposit - penalty,
		OwnerCompensation:   penalty,
		TotalRefundToRenter: item.Deposit - penalty,
		ShippingFee:         item.ShippingFee,
		Note:                ShippingNote,
	}
}

// DaysLate counts calendar days from the original end date to the agreed date.
func DaysLate(originalEnd, agreed time.Time) int {
	from := dateOnly(originalEnd)
	to := dateOnly(agreed)
	if !to.After(from) {
		return 0
	}
	return int(to.Sub(from) / day)
}

// RescheduleAgreed deducts the daily rate for each late day from the deposit.
func RescheduleAgreed(item domain.LineItem, agreedDate time.Time) domain.Settlement {
	daily := DailyRental(item)
	penalty := daily * domain.Money(DaysLate(item.RentalEndDate, agreedDate))
	if penalty > item.Deposit {
		penalty = item.Deposit
	}
	return domain.Settlement{
		DailyRental:         daily,
		TotalDays:           TotalDays(item.RentalStartDate, item.RentalEndDate),
		Penalty:             penalty,
		DepositRefund:       item.Deposit - penalty,
		OwnerCompensation:   penalty,
		TotalRefundToRenter: item.Deposit - penalty,
		ShippingFee:         item.ShippingFee,
		Note:                ShippingNote,
	}
}

// DepositForfeit transfers the whole deposit to the owner.
func DepositForfeit(item domain.LineItem) domain.Settlement {
	return domain.Settlement{
		DailyRental:       DailyRental(item),
		TotalDays:         TotalDays(item.RentalStartDate, item.RentalEndDate),
		Penalty:           item.Deposit,
		OwnerCompensation: item.Deposit,
		ShippingFee:       item.ShippingFee,
		Note:              ShippingNote,
	}
}

// RulingReputation returns the fixed adjustments for a ruling. The winner is
// only rewarded when the complainant was right.
func RulingReputation(winnerID, loserID string, ruling domain.Ruling) []domain.ReputationAdjustment {
	adjustments := []domain.ReputationAdjustment{{
		UserID:         loserID,
		Reason:         domain.ReputationReasonLostRuling,
		CreditDelta:    LoserCreditPenalty,
		NegativePoints: LoserNegativePoints,
		Warnings:       LoserWarnings,
	}}
	if ruling == domain.RulingComplainantRight {
		adjustments = append(adjustments, domain.ReputationAdjustment{
			UserID:       winnerID,
			Reason:       domain.ReputationReasonWonRuling,
			CreditDelta:  WinnerCreditBonus,
			CreditCap:    WinnerCreditCap,
			LoyaltyDelta: WinnerLoyaltyBonus,
		})
	}
	return adjustments
}

// RescheduleReputation is the credit charge for a late renter whose first proposal was approved.
func RescheduleReputation(renterID string) []domain.ReputationAdjustment {
	return []domain.ReputationAdjustment{{
		UserID:      renterID,
		Reason:      domain.ReputationReasonRescheduleApproved,
		CreditDelta: RescheduleCreditPenalty,
	}}
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
