package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/dispute-service/internal/domain"
	"github.com/spec-kit/dispute-service/internal/events"
	"github.com/spec-kit/dispute-service/internal/observability"
	"github.com/spec-kit/dispute-service/internal/repository"
	"github.com/spec-kit/dispute-service/internal/settlement"
	"github.com/spec-kit/dispute-service/internal/workflow"
	apperrors "github.com/spec-kit/dispute-service/pkg/util/errorutil"
)

const sweepBatchSize = 100

// Actor is the authenticated caller of a dispute operation. ExpectedStatus is
// an optional precondition: when set, the call fails with CONFLICT unless the
// dispute is still in that status.
type Actor struct {
	ID             string
	Admin          bool
	ExpectedStatus domain.DisputeStatus
}

// DisputeService coordinates dispute workflows: it loads a snapshot, applies
// a transition, commits it and publishes what happened.
type DisputeService struct {
	disputes   repository.DisputeRepository
	orders     repository.OrderLookup
	parties    repository.PartyDirectory
	machine    *workflow.Machine
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// DisputeDependencies bundles collaborators for the dispute service.
type DisputeDependencies struct {
	DisputeRepo    repository.DisputeRepository
	OrderLookup    repository.OrderLookup
	PartyDirectory repository.PartyDirectory
	Machine        *workflow.Machine
	Dispatcher     events.Dispatcher
	Metrics        *observability.Metrics
	Logger         *zap.Logger
	Clock          func() time.Time
}

// CreateDisputeInput describes a new complaint.
type CreateDisputeInput struct {
	SubOrderID   string
	ProductIndex int
	Type         domain.DisputeType
	ShipmentType domain.ShipmentType
	Evidence     domain.Evidence
}

// DisputeListFilter describes listing filters.
type DisputeListFilter struct {
	Statuses    []domain.DisputeStatus
	Types       []domain.DisputeType
	SubOrderID  *string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// DisputeView is a dispute plus what the caller may do with it.
type DisputeView struct {
	Dispute *domain.Dispute
	Actions []workflow.Action
}

// NewDisputeService constructs the service.
func NewDisputeService(deps DisputeDependencies) *DisputeService {
	machine := deps.Machine
	if machine == nil {
		machine = workflow.NewMachine(workflow.DefaultPolicy())
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &DisputeService{
		disputes:   deps.DisputeRepo,
		orders:     deps.OrderLookup,
		parties:    deps.PartyDirectory,
		machine:    machine,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
		now:        clock,
	}
}

// CreateDispute opens a dispute on one line of a sub-order.
func (s *DisputeService) CreateDispute(ctx context.Context, actor Actor, input CreateDisputeInput) (*domain.Dispute, error) {
	if input.SubOrderID == "" {
		return nil, apperrors.NewFieldError("sub_order_id", "sub_order_id is required")
	}
	if input.ProductIndex < 0 {
		return nil, apperrors.NewFieldError("product_index", "product_index must not be negative")
	}
	item, err := s.orders.LineItem(ctx, input.SubOrderID, input.ProductIndex)
	if err != nil {
		return nil, err
	}
	active, err := s.disputes.FindActiveByOrderLine(ctx, input.SubOrderID, input.ProductIndex)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, apperrors.NewConflict("an active dispute already exists for this order line", map[string]any{
			"dispute_id": active.ID,
		})
	}

	out, err := s.machine.Create(workflow.CreateInput{
		ComplainantID: actor.ID,
		LineItem:      *item,
		Type:          input.Type,
		ShipmentType:  input.ShipmentType,
		Evidence:      input.Evidence,
	}, s.now())
	if err != nil {
		s.rejected("CREATE", err)
		return nil, err
	}
	stored, err := s.disputes.Create(ctx, out.Dispute)
	if err != nil {
		s.storageFailed("create", out.Dispute.ID, err)
		return nil, err
	}
	s.metrics.RecordTransition(string(out.Transition), "", string(stored.Status))
	s.logger.Info("dispute created",
		zap.String("dispute_id", stored.ID),
		zap.String("dispute_code", stored.DisputeID),
		zap.String("type", string(stored.Type)),
		zap.String("complainant_id", stored.Complainant.UserID))

	s.publishEvent(ctx, stored, events.Event{
		Type:       events.EventDisputeCreated,
		Transition: out.Transition,
		Actor:      userActor(actor),
		Payload: events.DisputeCreatedPayload{
			DisputeCode:  stored.DisputeID,
			Type:         stored.Type,
			ShipmentType: stored.ShipmentType,
			SubOrderID:   stored.LineItem.SubOrderID,
			ProductIndex: stored.LineItem.ProductIndex,
		},
	})
	return stored, nil
}

// GetDispute returns the dispute with any due deadline applied, plus the
// caller's available actions.
func (s *DisputeService) GetDispute(ctx context.Context, actor Actor, id string) (*DisputeView, error) {
	d, err := s.load(ctx, actor, id, s.now())
	if err != nil {
		return nil, err
	}
	return &DisputeView{Dispute: d, Actions: workflow.AvailableActions(d, actor.ID, actor.Admin)}, nil
}

// ListDisputes pages through disputes; users only see their own.
func (s *DisputeService) ListDisputes(ctx context.Context, actor Actor, filter DisputeListFilter) ([]domain.Dispute, error) {
	repoFilter := repository.DisputeFilter{
		Statuses:    filter.Statuses,
		Types:       filter.Types,
		SubOrderID:  filter.SubOrderID,
		CreatedFrom: filter.CreatedFrom,
		CreatedTo:   filter.CreatedTo,
		Limit:       filter.Limit,
		Offset:      filter.Offset,
	}
	var (
		list []domain.Dispute
		err  error
	)
	if actor.Admin {
		list, err = s.disputes.ListWithFilter(ctx, repoFilter)
	} else {
		list, err = s.disputes.ListForUser(ctx, actor.ID, repoFilter)
	}
	if err != nil {
		return nil, err
	}
	now := s.now()
	for i := range list {
		fresh, err := s.expire(ctx, &list[i], now)
		if err != nil {
			return nil, err
		}
		list[i] = *fresh
	}
	return list, nil
}

// Withdraw closes an unanswered complaint.
func (s *DisputeService) Withdraw(ctx context.Context, actor Actor, id, reason string) (*domain.Dispute, error) {
	return s.transition(ctx, actor, id, workflow.ActionWithdraw, func(d *domain.Dispute, now time.Time) (*workflow.Outcome, error) {
		return s.machine.Withdraw(d, actor.ID, reason, now)
	})
}

// Respond records the respondent's answer.
func (s *DisputeService) Respond(ctx context.Context, actor Actor, id string, input workflow.RespondInput) (*domain.Dispute, error) {
	return s.transition(ctx, actor, id, workflow.ActionRespond, func(d *domain.Dispute, now time.Time) (*workflow.Outcome, error) {
		return s.machine.Respond(d, actor.ID, input, now)
	})
}

// AdminStartReview marks a rejected complaint as under review.
func (s *DisputeService) AdminStartReview(ctx context.Context, actor Actor, id string) (*domain.Dispute, error) {
	return s.adminTransition(ctx, actor, id, workflow.ActionAdminStartReview, func(d *domain.Dispute, now time.Time) (*workflow.Outcome, error) {
		return s.machine.AdminStartReview(d, actor.ID, now)
	})
}

// AdminDecide records the preliminary ruling.
func (s *DisputeService) AdminDecide(ctx context.Context, actor Actor, id string, input workflow.RulingInput) (*domain.Dispute, error) {
	return s.adminTransition(ctx, actor, id, workflow.ActionAdminDecide, func(d *domain.Dispute, now time.Time) (*workflow.Outcome, error) {
		return s.machine.AdminDecide(d, actor.ID, input, now)
	})
}

// RespondToAdminDecision records one party's answer to the preliminary ruling.
func (s *DisputeService) RespondToAdminDecision(ctx context.Context, actor Actor, id string, accepted bool) (*domain.Dispute, error) {
	return s.transition(ctx, actor, id, workflow.ActionRespondToAdminDecision, func(d *domain.Dispute, now time.Time) (*workflow.Outcome, error) {
		return s.machine.RespondToAdminDecision(d, actor.ID, accepted, now)
	})
}

// ProposeAgreement puts an offer on the negotiation table.
func (s *DisputeService) ProposeAgreement(ctx context.Context, actor Actor, id string, input workflow.ProposalInput) (*domain.Dispute, error) {
	return s.transition(ctx, actor, id, workflow.ActionProposeAgreement, func(d *domain.Dispute, now time.Time) (*workflow.Outcome, error) {
		return s.machine.ProposeAgreement(d, actor.ID, input, now)
	})
}

// RespondToAgreement accepts or rejects the pending offer.
func (s *DisputeService) RespondToAgreement(ctx context.Context, actor Actor, id string, input workflow.AgreementResponseInput) (*domain.Dispute, error) {
	return s.transition(ctx, actor, id, workflow.ActionRespondToAgreement, func(d *domain.Dispute, now time.Time) (*workflow.Outcome, error) {
		return s.machine.RespondToAgreement(d, actor.ID, input, now)
	})
}

// SubmitOwnerFinalDecision records the owner's final word in a negotiation.
func (s *DisputeService) SubmitOwnerFinalDecision(ctx context.Context, actor Actor, id, decision string) (*domain.Dispute, error) {
	return s.transition(ctx, actor, id, workflow.ActionSubmitOwnerDecision, func(d *domain.Dispute, now time.Time) (*workflow.Outcome, error) {
		return s.machine.SubmitOwnerFinalDecision(d, actor.ID, decision, now)
	})
}

// RespondToOwnerDecision records the renter's answer to the owner's final word.
func (s *DisputeService) RespondToOwnerDecision(ctx context.Context, actor Actor, id string, accepted bool) (*domain.Dispute, error) {
	return s.transition(ctx, actor, id, workflow.ActionRespondToOwnerDecision, func(d *domain.Dispute, now time.Time) (*workflow.Outcome, error) {
		return s.machine.RespondToOwnerDecision(d, actor.ID, accepted, now)
	})
}

// EscalateToThirdParty hands the dispute to an external arbiter.
func (s *DisputeService) EscalateToThirdParty(ctx context.Context, actor Actor, id, reason string) (*domain.Dispute, error) {
	return s.transition(ctx, actor, id, workflow.ActionEscalate, func(d *domain.Dispute, now time.Time) (*workflow.Outcome, error) {
		return s.machine.Escalate(d, actor.ID, reason, now)
	})
}

// ShareThirdPartyContactInfo releases both parties' contact details.
func (s *DisputeService) ShareThirdPartyContactInfo(ctx context.Context, actor Actor, id string) (*domain.Dispute, error) {
	return s.adminTransition(ctx, actor, id, workflow.ActionShareContactInfo, func(d *domain.Dispute, now time.Time) (*workflow.Outcome, error) {
		if !workflow.CanShareContactInfo(d) {
			return s.machine.ShareContactInfo(d, actor.ID, nil, now)
		}
		contacts, err := s.contactsOf(ctx, d)
		if err != nil {
			return nil, err
		}
		return s.machine.ShareContactInfo(d, actor.ID, contacts, now)
	})
}

// UploadThirdPartyEvidence stores the arbiter's outcome.
func (s *DisputeService) UploadThirdPartyEvidence(ctx context.Context, actor Actor, id string, input workflow.EvidenceUploadInput) (*domain.Dispute, error) {
	return s.transition(ctx, actor, id, workflow.ActionUploadThirdPartyEvidence, func(d *domain.Dispute, now time.Time) (*workflow.Outcome, error) {
		return s.machine.UploadEvidence(d, actor.ID, input, now)
	})
}

// AdminRejectEvidence sends uploaded evidence back.
func (s *DisputeService) AdminRejectEvidence(ctx context.Context, actor Actor, id, reason string) (*domain.Dispute, error) {
	return s.adminTransition(ctx, actor, id, workflow.ActionAdminRejectEvidence, func(d *domain.Dispute, now time.Time) (*workflow.Outcome, error) {
		return s.machine.AdminRejectEvidence(d, actor.ID, reason, now)
	})
}

// AdminMakeFinalDecision resolves an escalated dispute.
func (s *DisputeService) AdminMakeFinalDecision(ctx context.Context, actor Actor, id string, input workflow.RulingInput) (*domain.Dispute, error) {
	return s.adminTransition(ctx, actor, id, workflow.ActionAdminFinalDecision, func(d *domain.Dispute, now time.Time) (*workflow.Outcome, error) {
		return s.machine.AdminFinalDecision(d, actor.ID, input, now)
	})
}

// AdminProcessSettlement executes an accepted complaint or an agreement.
func (s *DisputeService) AdminProcessSettlement(ctx context.Context, actor Actor, id, note string) (*domain.Dispute, error) {
	return s.adminTransition(ctx, actor, id, workflow.ActionAdminProcessSettlement, func(d *domain.Dispute, now time.Time) (*workflow.Outcome, error) {
		return s.machine.AdminProcessSettlement(d, actor.ID, note, now)
	})
}

// ProposeReschedule records the renter's new return date.
func (s *DisputeService) ProposeReschedule(ctx context.Context, actor Actor, id string, input workflow.RescheduleInput) (*domain.Dispute, error) {
	return s.transition(ctx, actor, id, workflow.ActionProposeReschedule, func(d *domain.Dispute, now time.Time) (*workflow.Outcome, error) {
		return s.machine.ProposeReschedule(d, actor.ID, input, now)
	})
}

// RespondToReschedule records the owner's answer to a new return date.
func (s *DisputeService) RespondToReschedule(ctx context.Context, actor Actor, id string, input workflow.RescheduleResponseInput) (*domain.Dispute, error) {
	return s.transition(ctx, actor, id, workflow.ActionRespondToReschedule, func(d *domain.Dispute, now time.Time) (*workflow.Outcome, error) {
		return s.machine.RespondToReschedule(d, actor.ID, input, now)
	})
}

// FinalizeRescheduleAgreement confirms a negotiated return date.
func (s *DisputeService) FinalizeRescheduleAgreement(ctx context.Context, actor Actor, id string, agreedDate time.Time) (*domain.Dispute, error) {
	return s.transition(ctx, actor, id, workflow.ActionFinalizeReschedule, func(d *domain.Dispute, now time.Time) (*workflow.Outcome, error) {
		return s.machine.FinalizeReschedule(d, actor.ID, agreedDate, now)
	})
}

// PreviewSettlement runs the settlement arithmetic for a line item without
// touching any dispute.
func (s *DisputeService) PreviewSettlement(item domain.LineItem, ruling domain.Ruling) (domain.Settlement, error) {
	if !ruling.Valid() {
		return domain.Settlement{}, apperrors.NewFieldError("ruling", "ruling must be COMPLAINANT_RIGHT or RESPONDENT_RIGHT")
	}
	if item.Deposit < 0 || item.RentalTotal < 0 || item.ShippingFee < 0 {
		return domain.Settlement{}, apperrors.NewFieldError("line_item", "amounts must not be negative")
	}
	if item.RentalEndDate.Before(item.RentalStartDate) {
		return domain.Settlement{}, apperrors.NewFieldError("rental_end_date", "rental ends before it starts")
	}
	return settlement.Compute(item, ruling)
}

// Reputation returns a user's accumulated standing. Users may only read their own.
func (s *DisputeService) Reputation(ctx context.Context, actor Actor, userID string) (*domain.Reputation, error) {
	if !actor.Admin && actor.ID != userID {
		return nil, apperrors.NewForbidden("cannot read another user's reputation")
	}
	return s.disputes.ReputationOf(ctx, userID)
}

// SweepExpired applies every deadline that has passed. It returns how many
// disputes moved.
func (s *DisputeService) SweepExpired(ctx context.Context) (int, error) {
	now := s.now()
	candidates, err := s.disputes.ListDeadlineCandidates(ctx, now, sweepBatchSize)
	if err != nil {
		return 0, err
	}
	moved := 0
	for i := range candidates {
		d := &candidates[i]
		fresh, err := s.expire(ctx, d, now)
		if err != nil {
			s.logger.Warn("deadline sweep failed", zap.String("dispute_id", d.ID), zap.Error(err))
			continue
		}
		if fresh.Version != d.Version {
			moved++
		}
	}
	return moved, nil
}

type transitionFunc func(d *domain.Dispute, now time.Time) (*workflow.Outcome, error)

func (s *DisputeService) adminTransition(ctx context.Context, actor Actor, id string, action workflow.Action, fn transitionFunc) (*domain.Dispute, error) {
	if !actor.Admin {
		err := apperrors.NewForbidden("admin role required")
		s.rejected(string(action), err)
		return nil, err
	}
	return s.transition(ctx, actor, id, action, fn)
}

func (s *DisputeService) transition(ctx context.Context, actor Actor, id string, action workflow.Action, fn transitionFunc) (*domain.Dispute, error) {
	now := s.now()
	d, err := s.load(ctx, actor, id, now)
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeForbidden) {
			s.rejected(string(action), err)
		}
		return nil, err
	}
	if actor.ExpectedStatus != "" && actor.ExpectedStatus != d.Status {
		return nil, apperrors.NewConflict("dispute status changed; re-fetch and retry", map[string]any{
			"expected_status": string(actor.ExpectedStatus),
			"current_status":  string(d.Status),
		})
	}
	out, err := fn(d, now)
	if err != nil {
		s.rejected(string(action), err)
		return nil, err
	}
	return s.commit(ctx, d, out, userActor(actor))
}

// load fetches a dispute, checks the caller may see it, then applies any
// deadline that is due. Strangers never trigger an expiry write.
func (s *DisputeService) load(ctx context.Context, actor Actor, id string, now time.Time) (*domain.Dispute, error) {
	d, err := s.disputes.FetchByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Admin && !d.IsParty(actor.ID) {
		return nil, apperrors.NewForbidden("only dispute parties or admins can access this dispute")
	}
	return s.expire(ctx, d, now)
}

// expire commits a due deadline. Losing the race to another writer is fine:
// the stored dispute is re-read and returned instead.
func (s *DisputeService) expire(ctx context.Context, d *domain.Dispute, now time.Time) (*domain.Dispute, error) {
	out, err := s.machine.Expire(d, now)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return d, nil
	}
	stored, err := s.commit(ctx, d, out, events.Actor{Type: domain.SubjectTypeSystem, UserID: workflow.SystemActor})
	if apperrors.HasCode(err, apperrors.CodeConflict) {
		return s.disputes.FetchByID(ctx, d.ID)
	}
	return stored, err
}

func (s *DisputeService) commit(ctx context.Context, before *domain.Dispute, out *workflow.Outcome, actor events.Actor) (*domain.Dispute, error) {
	stored, err := s.disputes.ApplyTransition(ctx, before.ID, repository.TransitionChange{
		Name:            out.Transition,
		ExpectedStatus:  out.From,
		ExpectedVersion: before.Version,
		Next:            out.Dispute,
		Effects:         out.Effects,
	})
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeConflict) {
			s.logger.Debug("transition lost a race",
				zap.String("dispute_id", before.ID),
				zap.String("transition", string(out.Transition)),
				zap.Error(err))
		} else {
			s.storageFailed(string(out.Transition), before.ID, err)
		}
		return nil, err
	}

	s.metrics.RecordTransition(string(out.Transition), string(out.From), string(stored.Status))
	s.logger.Info("dispute transition",
		zap.String("dispute_id", stored.ID),
		zap.String("transition", string(out.Transition)),
		zap.String("from", string(out.From)),
		zap.String("to", string(stored.Status)),
		zap.Int64("version", stored.Version))
	s.announce(ctx, stored, out, actor)
	return stored, nil
}

// announce publishes the events a committed transition produced.
func (s *DisputeService) announce(ctx context.Context, d *domain.Dispute, out *workflow.Outcome, actor events.Actor) {
	if out.StatusChanged() {
		s.publishEvent(ctx, d, events.Event{
			Type:       events.EventDisputeStatusChanged,
			Transition: out.Transition,
			Actor:      actor,
			Payload:    events.DisputeStatusChangedPayload{OldStatus: out.From, NewStatus: d.Status},
		})
	} else {
		s.publishEvent(ctx, d, events.Event{Type: events.EventDisputeUpdated, Transition: out.Transition, Actor: actor})
	}

	if out.StatusChanged() && d.Status.IsTerminal() {
		payload := events.DisputeResolvedPayload{}
		if d.Resolution != nil {
			payload.Kind = d.Resolution.Kind
			payload.Ruling = d.Resolution.Ruling
		}
		if out.Effects.Settlement != nil {
			amounts := out.Effects.Settlement.Amounts
			payload.Settlement = &amounts
		}
		s.publishEvent(ctx, d, events.Event{
			Type:       events.EventDisputeResolved,
			Transition: out.Transition,
			Actor:      actor,
			Payload:    payload,
		})
	}

	if date, ok := returnDate(d, out.Effects.Settlement); ok {
		s.publishEvent(ctx, d, events.Event{
			Type:       events.EventReturnShipmentRequested,
			Transition: out.Transition,
			Actor:      actor,
			Payload: events.ReturnShipmentRequestedPayload{
				SubOrderID:   d.LineItem.SubOrderID,
				ProductIndex: d.LineItem.ProductIndex,
				RenterID:     d.RenterID(),
				OwnerID:      d.OwnerID(),
				ReturnDate:   date,
			},
		})
	}
}

func (s *DisputeService) publishEvent(ctx context.Context, d *domain.Dispute, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	event.ID = uuid.NewString()
	event.Timestamp = s.now()
	event.DisputeID = d.ID
	event.Status = d.Status
	event.Version = d.Version
	event.Recipients = []string{d.Complainant.UserID, d.Respondent.UserID}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed",
			zap.String("dispute_id", d.ID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
	}
}

func (s *DisputeService) contactsOf(ctx context.Context, d *domain.Dispute) ([]domain.PartyContact, error) {
	contacts := make([]domain.PartyContact, 0, 2)
	for _, party := range []domain.PartyRef{d.Complainant, d.Respondent} {
		contact, err := s.parties.Contact(ctx, party.UserID)
		if err != nil {
			if !apperrors.HasCode(err, apperrors.CodeNotFound) {
				return nil, err
			}
			s.logger.Warn("no contact details on file", zap.String("dispute_id", d.ID), zap.String("user_id", party.UserID))
			contact = &domain.PartyContact{UserID: party.UserID}
		}
		contact.Role = party.Role
		contacts = append(contacts, *contact)
	}
	return contacts, nil
}

func (s *DisputeService) rejected(action string, err error) {
	code := apperrors.ToDomainError(err).Code
	s.metrics.RecordRejection(action, code)
	s.logger.Debug("action rejected", zap.String("action", action), zap.String("code", code), zap.Error(err))
}

func (s *DisputeService) storageFailed(op, disputeID string, err error) {
	if apperrors.ToDomainError(err).Code != apperrors.CodeInternal {
		return
	}
	s.logger.Error("dispute storage failed", zap.String("op", op), zap.String("dispute_id", disputeID), zap.Error(err))
}

// returnDate tells whether a settlement schedules the item's return, and when.
func returnDate(d *domain.Dispute, record *domain.SettlementRecord) (time.Time, bool) {
	if record == nil {
		return time.Time{}, false
	}
	switch record.Kind {
	case domain.SettlementKindRescheduleApproved:
		if d.RescheduleRequest != nil {
			return d.RescheduleRequest.ProposedReturnDate, true
		}
	case domain.SettlementKindRescheduleAgreed:
		if d.NegotiationRoom != nil && d.NegotiationRoom.FinalAgreement != nil && d.NegotiationRoom.FinalAgreement.ProposedReturnDate != nil {
			return *d.NegotiationRoom.FinalAgreement.ProposedReturnDate, true
		}
	}
	return time.Time{}, false
}

func userActor(actor Actor) events.Actor {
	if actor.Admin {
		return events.Actor{Type: domain.SubjectTypeAdmin, UserID: actor.ID}
	}
	return events.Actor{Type: domain.SubjectTypeUser, UserID: actor.ID}
}
