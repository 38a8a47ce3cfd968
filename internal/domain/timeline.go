package domain

import "time"

// TransitionName identifies a state machine transition.
type TransitionName string

const (
	TransitionCreated                TransitionName = "DISPUTE_CREATED"
	TransitionWithdrawn              TransitionName = "DISPUTE_WITHDRAWN"
	TransitionRespondentResponded    TransitionName = "RESPONDENT_RESPONDED"
	TransitionAdminReviewStarted     TransitionName = "ADMIN_REVIEW_STARTED"
	TransitionAdminDecided           TransitionName = "ADMIN_DECISION_MADE"
	TransitionAdminDecisionAnswered  TransitionName = "ADMIN_DECISION_ANSWERED"
	TransitionAgreementProposed      TransitionName = "AGREEMENT_PROPOSED"
	TransitionAgreementAnswered      TransitionName = "AGREEMENT_ANSWERED"
	TransitionOwnerDecisionSubmitted TransitionName = "OWNER_DECISION_SUBMITTED"
	TransitionOwnerDecisionAnswered  TransitionName = "OWNER_DECISION_ANSWERED"
	TransitionEscalated              TransitionName = "ESCALATED_TO_THIRD_PARTY"
	TransitionContactInfoShared      TransitionName = "CONTACT_INFO_SHARED"
	TransitionEvidenceUploaded       TransitionName = "THIRD_PARTY_EVIDENCE_UPLOADED"
	TransitionEvidenceRejected       TransitionName = "THIRD_PARTY_EVIDENCE_REJECTED"
	TransitionFinalDecision          TransitionName = "FINAL_DECISION_MADE"
	TransitionSettlementProcessed    TransitionName = "SETTLEMENT_PROCESSED"
	TransitionRescheduleProposed     TransitionName = "RESCHEDULE_PROPOSED"
	TransitionRescheduleAnswered     TransitionName = "RESCHEDULE_ANSWERED"
	TransitionRescheduleDateProposed TransitionName = "RESCHEDULE_DATE_PROPOSED"
	TransitionRescheduleFinalized    TransitionName = "RESCHEDULE_FINALIZED"
	TransitionNegotiationExpired     TransitionName = "NEGOTIATION_EXPIRED"
	TransitionEvidenceDeadlineMissed TransitionName = "EVIDENCE_DEADLINE_MISSED"
)

// TimelineEntry is an immutable audit trail entry.
type TimelineEntry struct {
	ID         string         `json:"id"`
	Action     TransitionName `json:"action"`
	ActorID    string         `json:"actor_id,omitempty"`
	FromStatus DisputeStatus  `json:"from_status,omitempty"`
	ToStatus   DisputeStatus  `json:"to_status"`
	Details    map[string]any `json:"details,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}
