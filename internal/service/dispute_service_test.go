package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/dispute-service/internal/domain"
	"github.com/spec-kit/dispute-service/internal/events"
	"github.com/spec-kit/dispute-service/internal/observability"
	"github.com/spec-kit/dispute-service/internal/repository"
	"github.com/spec-kit/dispute-service/internal/workflow"
	apperrors "github.com/spec-kit/dispute-service/pkg/util/errorutil"
)

var (
	renter = Actor{ID: "renter-1"}
	owner  = Actor{ID: "owner-1"}
	admin  = Actor{ID: "admin-1", Admin: true}
	t0     = time.Date(2025, 1, 12, 10, 0, 0, 0, time.UTC)
)

type fixture struct {
	svc      *DisputeService
	repo     *repository.MemoryDisputeRepository
	metrics  *observability.Metrics
	recorder *eventRecorder
	now      time.Time
}

type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) handle(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *eventRecorder) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func (r *eventRecorder) last(typ events.EventType) *events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Type == typ {
			e := r.events[i]
			return &e
		}
	}
	return nil
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	start := time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC)
	orders := repository.NewMemoryOrderLookup(domain.LineItem{
		SubOrderID:      "so-1",
		ProductIndex:    0,
		ProductName:     "Sony A7 IV",
		RenterID:        renter.ID,
		OwnerID:         owner.ID,
		Deposit:         2_000_000,
		RentalTotal:     700_000,
		ShippingFee:     30_000,
		RentalStartDate: start,
		RentalEndDate:   start.AddDate(0, 0, 7),
	})
	parties := repository.NewMemoryPartyDirectory(
		domain.PartyContact{UserID: renter.ID, Name: "Lan", Email: "lan@example.com", Phone: "0901"},
		domain.PartyContact{UserID: owner.ID, Name: "Minh", Email: "minh@example.com", Phone: "0902"},
	)
	dispatcher := events.NewInMemoryDispatcher()
	recorder := &eventRecorder{}
	for _, typ := range events.AllEventTypes {
		dispatcher.Subscribe(typ, recorder.handle)
	}

	f := &fixture{
		repo:     repository.NewMemoryDisputeRepository(),
		metrics:  observability.NewMetrics(),
		recorder: recorder,
		now:      t0,
	}
	f.svc = NewDisputeService(DisputeDependencies{
		DisputeRepo:    f.repo,
		OrderLookup:    orders,
		PartyDirectory: parties,
		Machine:        workflow.NewMachine(workflow.DefaultPolicy()),
		Dispatcher:     dispatcher,
		Metrics:        f.metrics,
		Clock:          func() time.Time { return f.now },
	})
	return f
}

func (f *fixture) create(t *testing.T, by Actor, typ domain.DisputeType, leg domain.ShipmentType) *domain.Dispute {
	t.Helper()
	d, err := f.svc.CreateDispute(context.Background(), by, CreateDisputeInput{
		SubOrderID:   "so-1",
		Type:         typ,
		ShipmentType: leg,
		Evidence:     domain.Evidence{Description: "shutter jammed on arrival"},
	})
	require.NoError(t, err)
	return d
}

// negotiating walks a renter complaint to IN_NEGOTIATION.
func (f *fixture) negotiating(t *testing.T) *domain.Dispute {
	t.Helper()
	ctx := context.Background()
	d := f.create(t, renter, domain.DisputeTypeProductDefect, domain.ShipmentTypeDelivery)
	_, err := f.svc.Respond(ctx, owner, d.ID, workflow.RespondInput{Decision: domain.ResponseRejected, Reason: "worked when shipped"})
	require.NoError(t, err)
	_, err = f.svc.AdminDecide(ctx, admin, d.ID, workflow.RulingInput{Ruling: domain.RulingComplainantRight, Reasoning: "video shows the fault"})
	require.NoError(t, err)
	d, err = f.svc.RespondToAdminDecision(ctx, owner, d.ID, false)
	require.NoError(t, err)
	require.Equal(t, domain.DisputeStatusInNegotiation, d.Status)
	return d
}

func TestCreateDispute(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d := f.create(t, renter, domain.DisputeTypeProductDefect, domain.ShipmentTypeDelivery)
	assert.Equal(t, domain.DisputeStatusOpen, d.Status)
	assert.Equal(t, owner.ID, d.Respondent.UserID)
	assert.Equal(t, int64(1), d.Version)
	assert.Equal(t, []events.EventType{events.EventDisputeCreated}, f.recorder.types())
	created := f.recorder.last(events.EventDisputeCreated)
	assert.ElementsMatch(t, []string{renter.ID, owner.ID}, created.Recipients)

	_, err := f.svc.CreateDispute(ctx, owner, CreateDisputeInput{
		SubOrderID:   "so-1",
		Type:         domain.DisputeTypeLateReturn,
		ShipmentType: domain.ShipmentTypeReturn,
		Evidence:     domain.Evidence{Description: "late"},
	})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))

	_, err = f.svc.CreateDispute(ctx, renter, CreateDisputeInput{SubOrderID: "so-404", Type: domain.DisputeTypeOther, ShipmentType: domain.ShipmentTypeDelivery})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	_, err = f.svc.CreateDispute(ctx, renter, CreateDisputeInput{})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func TestCreateDisputeByStrangerIsForbidden(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateDispute(context.Background(), Actor{ID: "stranger"}, CreateDisputeInput{
		SubOrderID:   "so-1",
		Type:         domain.DisputeTypeProductDefect,
		ShipmentType: domain.ShipmentTypeDelivery,
		Evidence:     domain.Evidence{Description: "x"},
	})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
	assert.Equal(t, int64(1), f.metrics.Snapshot()["rejections"]["CREATE|FORBIDDEN"])
}

func TestAdminDecisionAcceptedByBothResolves(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.create(t, renter, domain.DisputeTypeProductDefect, domain.ShipmentTypeDelivery)

	_, err := f.svc.Respond(ctx, owner, d.ID, workflow.RespondInput{Decision: domain.ResponseRejected, Reason: "fine when shipped"})
	require.NoError(t, err)

	_, err = f.svc.AdminDecide(ctx, renter, d.ID, workflow.RulingInput{Ruling: domain.RulingComplainantRight, Reasoning: "mine"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	_, err = f.svc.AdminStartReview(ctx, admin, d.ID)
	require.NoError(t, err)
	_, err = f.svc.AdminDecide(ctx, admin, d.ID, workflow.RulingInput{Ruling: domain.RulingComplainantRight, Reasoning: "video shows the fault"})
	require.NoError(t, err)
	_, err = f.svc.RespondToAdminDecision(ctx, renter, d.ID, true)
	require.NoError(t, err)
	resolved, err := f.svc.RespondToAdminDecision(ctx, owner, d.ID, true)
	require.NoError(t, err)

	assert.Equal(t, domain.DisputeStatusResolved, resolved.Status)
	require.Len(t, resolved.Settlements, 1)
	assert.Equal(t, domain.Money(2_700_000), resolved.Settlements[0].Amounts.TotalRefundToRenter)
	assert.Len(t, f.repo.Settlements(d.ID), 1)

	loser, err := f.svc.Reputation(ctx, owner, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, 70, loser.CreditScore)
	assert.Equal(t, 1, loser.Warnings)

	resolvedEvent := f.recorder.last(events.EventDisputeResolved)
	require.NotNil(t, resolvedEvent)
	payload, ok := resolvedEvent.Payload.(events.DisputeResolvedPayload)
	require.True(t, ok)
	assert.Equal(t, domain.SettlementKindRuling, payload.Kind)
	assert.Equal(t, domain.Money(2_700_000), payload.Settlement.TotalRefundToRenter)

	_, err = f.svc.Withdraw(ctx, renter, d.ID, "changed my mind")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))
}

func TestExpectedStatusMismatchIsConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.create(t, renter, domain.DisputeTypeProductDefect, domain.ShipmentTypeDelivery)

	stale := owner
	stale.ExpectedStatus = domain.DisputeStatusRespondentRejected
	_, err := f.svc.Respond(ctx, stale, d.ID, workflow.RespondInput{Decision: domain.ResponseAccepted})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))

	current := owner
	current.ExpectedStatus = domain.DisputeStatusOpen
	accepted, err := f.svc.Respond(ctx, current, d.ID, workflow.RespondInput{Decision: domain.ResponseAccepted})
	require.NoError(t, err)
	assert.Equal(t, domain.DisputeStatusRespondentAccepted, accepted.Status)
	assert.Equal(t, int64(2), accepted.Version)

	done, err := f.svc.AdminProcessSettlement(ctx, admin, d.ID, "owner conceded")
	require.NoError(t, err)
	assert.Equal(t, domain.DisputeStatusResolved, done.Status)

	rep, err := f.svc.Reputation(ctx, admin, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultCreditScore, rep.CreditScore)
}

func TestGetDisputeAppliesExpiredNegotiation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.negotiating(t)

	view, err := f.svc.GetDispute(ctx, renter, d.ID)
	require.NoError(t, err)
	assert.Contains(t, view.Actions, workflow.ActionProposeAgreement)
	assert.Contains(t, view.Actions, workflow.ActionEscalate)

	f.now = d.NegotiationRoom.Deadline.Add(time.Minute)
	view, err = f.svc.GetDispute(ctx, renter, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DisputeStatusThirdPartyEscalated, view.Dispute.Status)
	assert.Equal(t, workflow.SystemActor, view.Dispute.ThirdPartyResolution.EscalatedBy)
	assert.Contains(t, view.Actions, workflow.ActionUploadThirdPartyEvidence)

	changed := f.recorder.last(events.EventDisputeStatusChanged)
	require.NotNil(t, changed)
	assert.Equal(t, domain.SubjectTypeSystem, changed.Actor.Type)

	_, err = f.svc.ProposeAgreement(ctx, renter, d.ID, workflow.ProposalInput{Text: "half back"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))

	_, err = f.svc.GetDispute(ctx, Actor{ID: "stranger"}, d.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
}

func TestSweepExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.negotiating(t)

	moved, err := f.svc.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, moved)

	f.now = d.NegotiationRoom.Deadline
	moved, err = f.svc.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, moved)

	escalated, err := f.repo.FetchByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DisputeStatusThirdPartyEscalated, escalated.Status)

	// evidence window runs out with nothing uploaded: admin fallback
	f.now = escalated.ThirdPartyResolution.EvidenceDeadline.Add(time.Second)
	moved, err = f.svc.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, moved)

	view, err := f.svc.GetDispute(ctx, admin, d.ID)
	require.NoError(t, err)
	assert.True(t, view.Dispute.ThirdPartyResolution.AdminFallbackRequired)
	assert.Contains(t, view.Actions, workflow.ActionAdminFinalDecision)

	final, err := f.svc.AdminMakeFinalDecision(ctx, admin, d.ID, workflow.RulingInput{Ruling: domain.RulingRespondentRight, Reasoning: "no evidence arrived"})
	require.NoError(t, err)
	assert.Equal(t, domain.DisputeStatusResolved, final.Status)
}

func TestEscalationEvidenceFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.negotiating(t)

	_, err := f.svc.EscalateToThirdParty(ctx, renter, d.ID, "owner will not budge")
	require.NoError(t, err)

	_, err = f.svc.ShareThirdPartyContactInfo(ctx, renter, d.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	shared, err := f.svc.ShareThirdPartyContactInfo(ctx, admin, d.ID)
	require.NoError(t, err)
	info := shared.ThirdPartyResolution.SharedData.PartyInfo
	require.Len(t, info, 2)
	assert.Equal(t, "Lan", info[0].Name)
	assert.Equal(t, domain.PartyRoleRenter, info[0].Role)
	assert.Equal(t, domain.PartyRoleOwner, info[1].Role)
	assert.Equal(t, events.EventDisputeUpdated, f.recorder.types()[len(f.recorder.types())-1])

	_, err = f.svc.ShareThirdPartyContactInfo(ctx, admin, d.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))

	_, err = f.svc.UploadThirdPartyEvidence(ctx, owner, d.ID, workflow.EvidenceUploadInput{OfficialDecision: "blurry photo"})
	require.NoError(t, err)
	_, err = f.svc.AdminRejectEvidence(ctx, admin, d.ID, "unreadable")
	require.NoError(t, err)
	_, err = f.svc.UploadThirdPartyEvidence(ctx, owner, d.ID, workflow.EvidenceUploadInput{OfficialDecision: "repair shop report", Documents: []string{"s3://docs/report.pdf"}})
	require.NoError(t, err)

	final, err := f.svc.AdminMakeFinalDecision(ctx, admin, d.ID, workflow.RulingInput{Ruling: domain.RulingComplainantRight, Reasoning: "report confirms the defect"})
	require.NoError(t, err)
	assert.Equal(t, domain.DisputeStatusResolved, final.Status)
	require.Len(t, final.ThirdPartyResolution.RejectedEvidence, 1)
}

func TestNegotiatedAgreementIsProcessed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.negotiating(t)

	_, err := f.svc.ProposeAgreement(ctx, owner, d.ID, workflow.ProposalInput{Text: "refund half the rental", Amount: moneyPtr(2_350_000)})
	require.NoError(t, err)
	agreed, err := f.svc.RespondToAgreement(ctx, renter, d.ID, workflow.AgreementResponseInput{Accepted: true})
	require.NoError(t, err)
	assert.Equal(t, domain.DisputeStatusAgreedAwaitingAdmin, agreed.Status)

	done, err := f.svc.AdminProcessSettlement(ctx, admin, d.ID, "")
	require.NoError(t, err)
	assert.Equal(t, domain.DisputeStatusResolved, done.Status)
	require.NotEmpty(t, done.Settlements)
	assert.Equal(t, domain.SettlementKindAgreement, done.Settlements[len(done.Settlements)-1].Kind)
	assert.Equal(t, domain.Money(2_350_000), done.Settlements[len(done.Settlements)-1].Amounts.TotalRefundToRenter)
}

func TestOwnerDecisionRejectedEscalates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.negotiating(t)

	_, err := f.svc.SubmitOwnerFinalDecision(ctx, renter, d.ID, "not yours to decide")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	_, err = f.svc.SubmitOwnerFinalDecision(ctx, owner, d.ID, "I keep the deposit")
	require.NoError(t, err)
	out, err := f.svc.RespondToOwnerDecision(ctx, renter, d.ID, false)
	require.NoError(t, err)
	assert.Equal(t, domain.DisputeStatusThirdPartyEscalated, out.Status)
}

func TestRescheduleApprovedRequestsReturnShipment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.create(t, owner, domain.DisputeTypeRenterNoReturn, domain.ShipmentTypeReturn)
	returnOn := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

	_, err := f.svc.ProposeReschedule(ctx, renter, d.ID, workflow.RescheduleInput{ProposedDate: returnOn, Reason: "stuck abroad"})
	require.NoError(t, err)
	closed, err := f.svc.RespondToReschedule(ctx, owner, d.ID, workflow.RescheduleResponseInput{Decision: domain.RescheduleStatusApproved})
	require.NoError(t, err)
	assert.Equal(t, domain.DisputeStatusClosed, closed.Status)

	shipment := f.recorder.last(events.EventReturnShipmentRequested)
	require.NotNil(t, shipment)
	payload, ok := shipment.Payload.(events.ReturnShipmentRequestedPayload)
	require.True(t, ok)
	assert.Equal(t, returnOn, payload.ReturnDate)
	assert.Equal(t, renter.ID, payload.RenterID)

	rep, err := f.svc.Reputation(ctx, renter, renter.ID)
	require.NoError(t, err)
	assert.Equal(t, 95, rep.CreditScore)
}

func TestRescheduleDateAgreedAfterNegotiation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.create(t, owner, domain.DisputeTypeRenterNoReturn, domain.ShipmentTypeReturn)

	_, err := f.svc.ProposeReschedule(ctx, renter, d.ID, workflow.RescheduleInput{ProposedDate: time.Date(2025, 1, 16, 0, 0, 0, 0, time.UTC), Reason: "flight moved"})
	require.NoError(t, err)
	_, err = f.svc.RespondToReschedule(ctx, owner, d.ID, workflow.RescheduleResponseInput{Decision: domain.RescheduleStatusRejected, Reason: "too late"})
	require.NoError(t, err)

	agreedOn := time.Date(2025, 1, 13, 9, 0, 0, 0, time.UTC)
	pending, err := f.svc.FinalizeRescheduleAgreement(ctx, renter, d.ID, agreedOn)
	require.NoError(t, err)
	assert.Equal(t, domain.DisputeStatusInNegotiation, pending.Status)

	done, err := f.svc.FinalizeRescheduleAgreement(ctx, owner, d.ID, agreedOn)
	require.NoError(t, err)
	assert.Equal(t, domain.DisputeStatusResolved, done.Status)

	shipment := f.recorder.last(events.EventReturnShipmentRequested)
	require.NotNil(t, shipment)
	assert.Equal(t, agreedOn, shipment.Payload.(events.ReturnShipmentRequestedPayload).ReturnDate)
}

func TestListDisputes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, renter, domain.DisputeTypeProductDefect, domain.ShipmentTypeDelivery)

	mine, err := f.svc.ListDisputes(ctx, renter, DisputeListFilter{})
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	theirs, err := f.svc.ListDisputes(ctx, Actor{ID: "stranger"}, DisputeListFilter{})
	require.NoError(t, err)
	assert.Empty(t, theirs)

	all, err := f.svc.ListDisputes(ctx, admin, DisputeListFilter{Statuses: []domain.DisputeStatus{domain.DisputeStatusOpen}})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestReputationOfOthersIsForbidden(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Reputation(context.Background(), renter, owner.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
}

func TestPreviewSettlement(t *testing.T) {
	f := newFixture(t)
	start := time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC)
	item := domain.LineItem{Deposit: 2_000_000, RentalTotal: 700_000, RentalStartDate: start, RentalEndDate: start.AddDate(0, 0, 7)}

	s, err := f.svc.PreviewSettlement(item, domain.RulingRespondentRight)
	require.NoError(t, err)
	assert.Equal(t, domain.Money(2_600_000), s.TotalRefundToRenter)

	_, err = f.svc.PreviewSettlement(item, "MAYBE")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	item.RentalEndDate = start.AddDate(0, 0, -1)
	_, err = f.svc.PreviewSettlement(item, domain.RulingRespondentRight)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func moneyPtr(v int64) *domain.Money {
	m := domain.Money(v)
	return &m
}

func TestStrangerCannotTriggerExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.negotiating(t)
	published := len(f.recorder.types())

	f.now = d.NegotiationRoom.Deadline.Add(time.Minute)
	stranger := Actor{ID: "stranger"}
	_, err := f.svc.GetDispute(ctx, stranger, d.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
	_, err = f.svc.EscalateToThirdParty(ctx, stranger, d.ID, "push it along")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	stored, err := f.repo.FetchByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DisputeStatusInNegotiation, stored.Status)
	assert.Equal(t, d.Version, stored.Version)
	assert.Len(t, f.recorder.types(), published)

	view, err := f.svc.GetDispute(ctx, renter, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DisputeStatusThirdPartyEscalated, view.Dispute.Status)
}
