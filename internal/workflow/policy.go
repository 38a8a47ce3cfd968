package workflow

import (
	"time"

	"github.com/spec-kit/dispute-service/internal/domain"
	"github.com/spec-kit/dispute-service/internal/settlement"
)

// Policy holds the deadline and penalty knobs of the dispute workflow.
type Policy struct {
	NegotiationWindow        time.Duration
	RescheduleCeilingDays    int
	EvidenceWindow           time.Duration
	ReschedulePenaltyPercent int
}

// DefaultPolicy returns the marketplace defaults.
func DefaultPolicy() Policy {
	return Policy{
		NegotiationWindow:        72 * time.Hour,
		RescheduleCeilingDays:    7,
		EvidenceWindow:           7 * 24 * time.Hour,
		ReschedulePenaltyPercent: settlement.DefaultReschedulePenaltyPercent,
	}
}

// withDefaults fills zero values so a partially configured policy still works.
func (p Policy) withDefaults() Policy {
	def := DefaultPolicy()
	if p.NegotiationWindow <= 0 {
		p.NegotiationWindow = def.NegotiationWindow
	}
	if p.RescheduleCeilingDays <= 0 {
		p.RescheduleCeilingDays = def.RescheduleCeilingDays
	}
	if p.EvidenceWindow <= 0 {
		p.EvidenceWindow = def.EvidenceWindow
	}
	if p.ReschedulePenaltyPercent < 0 || p.ReschedulePenaltyPercent > 100 {
		p.ReschedulePenaltyPercent = def.ReschedulePenaltyPercent
	}
	return p
}

// NegotiationExpired reports whether the negotiation window has closed. Reaching
// the deadline counts as closed.
func NegotiationExpired(d *domain.Dispute, now time.Time) bool {
	if d.Status != domain.DisputeStatusInNegotiation || d.NegotiationRoom == nil {
		return false
	}
	return !now.Before(d.NegotiationRoom.Deadline)
}

// EvidenceDeadlineMissed reports whether an escalated dispute ran out of time for
// evidence and has not been flagged yet.
func EvidenceDeadlineMissed(d *domain.Dispute, now time.Time) bool {
	tpr := d.ThirdPartyResolution
	if d.Status != domain.DisputeStatusThirdPartyEscalated || tpr == nil {
		return false
	}
	if tpr.Evidence != nil || tpr.AdminFallbackRequired || tpr.EvidenceDeadline.IsZero() {
		return false
	}
	return !now.Before(tpr.EvidenceDeadline)
}

// RescheduleLatestDate is the last calendar day a renter may propose.
func (p Policy) RescheduleLatestDate(originalEnd time.Time) time.Time {
	return dateOnly(originalEnd).AddDate(0, 0, p.withDefaults().RescheduleCeilingDays)
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sameDay(a, b time.Time) bool {
	return dateOnly(a).Equal(dateOnly(b))
}
