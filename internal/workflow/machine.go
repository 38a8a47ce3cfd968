// Package workflow implements the dispute state machine. Transitions are pure:
// each takes a dispute snapshot and the current time and returns a new snapshot
// plus the side effects to commit with it. The input snapshot is never mutated.
package workflow

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/dispute-service/internal/domain"
	apperrors "github.com/spec-kit/dispute-service/pkg/util/errorutil"
)

// SystemActor is recorded for transitions nobody triggered directly.
const SystemActor = "system"

var allowedTransitions = map[domain.DisputeStatus][]domain.DisputeStatus{
	domain.DisputeStatusOpen: {
		domain.DisputeStatusRespondentAccepted,
		domain.DisputeStatusRespondentRejected,
		domain.DisputeStatusInNegotiation,
		domain.DisputeStatusClosed,
	},
	domain.DisputeStatusRespondentAccepted:  {domain.DisputeStatusResolved},
	domain.DisputeStatusRespondentRejected:  {domain.DisputeStatusAdminReviewing, domain.DisputeStatusAdminDecisionMade},
	domain.DisputeStatusAdminReviewing:      {domain.DisputeStatusAdminDecisionMade},
	domain.DisputeStatusAdminDecisionMade:   {domain.DisputeStatusResolved, domain.DisputeStatusInNegotiation},
	domain.DisputeStatusBothAccepted:        {domain.DisputeStatusResolved},
	domain.DisputeStatusNegotiationNeeded:   {domain.DisputeStatusThirdPartyEscalated},
	domain.DisputeStatusInNegotiation:       {domain.DisputeStatusAgreedAwaitingAdmin, domain.DisputeStatusThirdPartyEscalated, domain.DisputeStatusResolved},
	domain.DisputeStatusNegotiationAgreed:   {domain.DisputeStatusResolved},
	domain.DisputeStatusNegotiationFailed:   {domain.DisputeStatusThirdPartyEscalated},
	domain.DisputeStatusAgreedAwaitingAdmin: {domain.DisputeStatusResolved},
	domain.DisputeStatusThirdPartyEscalated: {domain.DisputeStatusThirdPartyEvidenceUploaded, domain.DisputeStatusResolved},
	domain.DisputeStatusThirdPartyEvidenceUploaded: {
		domain.DisputeStatusThirdPartyEscalated,
		domain.DisputeStatusResolved,
	},
	domain.DisputeStatusResolved: {},
	domain.DisputeStatusClosed:   {},
}

// IsValidTransition reports whether the graph has an edge from current to next.
func IsValidTransition(current, next domain.DisputeStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Outcome is the result of one transition.
type Outcome struct {
	Dispute    *domain.Dispute
	Transition domain.TransitionName
	From       domain.DisputeStatus
	Effects    domain.Effects
}

// StatusChanged reports whether the transition moved the dispute.
func (o *Outcome) StatusChanged() bool {
	return o != nil && o.Dispute != nil && o.From != o.Dispute.Status
}

// Machine applies transitions under a Policy.
type Machine struct {
	policy Policy
	newID  func() string
}

// NewMachine builds a machine. Zero policy fields fall back to defaults.
func NewMachine(policy Policy) *Machine {
	return &Machine{policy: policy.withDefaults(), newID: uuid.NewString}
}

// Policy returns the effective policy.
func (m *Machine) Policy() Policy {
	return m.policy
}

// step is a transition in progress on a cloned snapshot.
type step struct {
	m       *Machine
	d       *domain.Dispute
	from    domain.DisputeStatus
	effects domain.Effects
}

func (m *Machine) begin(d *domain.Dispute) *step {
	return &step{m: m, d: d.Clone(), from: d.Status}
}

// moveTo changes status along a graph edge. Staying put is always allowed.
func (s *step) moveTo(next domain.DisputeStatus, action Action) error {
	if s.d.Status == next {
		return nil
	}
	if !IsValidTransition(s.d.Status, next) {
		return apperrors.NewInvalidTransition(string(action), string(s.d.Status))
	}
	s.d.Status = next
	return nil
}

// settle records a settlement once per kind.
func (s *step) settle(kind domain.SettlementKind, amounts domain.Settlement, actorID string, now time.Time) error {
	if s.d.HasSettlement(kind) {
		return apperrors.NewConflict("settlement already applied", map[string]any{"kind": string(kind)})
	}
	record := domain.SettlementRecord{
		Kind:      kind,
		Amounts:   amounts,
		RenterID:  s.d.RenterID(),
		OwnerID:   s.d.OwnerID(),
		AppliedAt: now,
		AppliedBy: actorID,
	}
	s.d.Settlements = append(s.d.Settlements, record)
	s.effects.Settlement = &record
	return nil
}

func (s *step) resolve(kind domain.SettlementKind, ruling *domain.Ruling, note, actorID string, now time.Time) {
	s.d.Resolution = &domain.Resolution{
		Kind:       kind,
		Ruling:     ruling,
		Note:       note,
		ResolvedAt: now,
		ResolvedBy: actorID,
	}
}

// finish appends the timeline entry and returns the outcome.
func (s *step) finish(name domain.TransitionName, actorID string, details map[string]any, now time.Time) *Outcome {
	s.d.Timeline = append(s.d.Timeline, domain.TimelineEntry{
		ID:         s.m.newID(),
		Action:     name,
		ActorID:    actorID,
		FromStatus: s.from,
		ToStatus:   s.d.Status,
		Details:    details,
		Timestamp:  now,
	})
	s.d.UpdatedAt = now
	return &Outcome{Dispute: s.d, Transition: name, From: s.from, Effects: s.effects}
}

// deny explains why a party action was refused. requiredID narrows the action
// to one party; empty means either party.
func deny(d *domain.Dispute, actorID string, action Action, requiredID string) error {
	if !d.IsParty(actorID) {
		return apperrors.NewForbidden("actor is not a party to this dispute")
	}
	if requiredID != "" && actorID != requiredID {
		return apperrors.NewForbidden("actor may not perform " + string(action) + " on this dispute")
	}
	return apperrors.NewInvalidTransition(string(action), string(d.Status))
}

func denyStatus(d *domain.Dispute, action Action) error {
	return apperrors.NewInvalidTransition(string(action), string(d.Status))
}

func expiredNegotiation(action Action) error {
	return apperrors.NewDomainError(apperrors.CodeInvalidTransition,
		"negotiation window has expired",
		http.StatusUnprocessableEntity,
		map[string]any{"action": string(action), "status": string(domain.DisputeStatusInNegotiation)})
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return apperrors.NewFieldError(field, field+" is required")
	}
	return nil
}

const disputeCodeLength = 8

func generateDisputeCode(id string) string {
	compact := strings.ReplaceAll(id, "-", "")
	if len(compact) > disputeCodeLength {
		compact = compact[:disputeCodeLength]
	}
	return "DSP-" + strings.ToUpper(compact)
}
