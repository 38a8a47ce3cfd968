package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/dispute-service/internal/domain"
	apperrors "github.com/spec-kit/dispute-service/pkg/util/errorutil"
)

var created = time.Date(2025, 1, 12, 10, 0, 0, 0, time.UTC)

func openDispute(id, subOrderID string) *domain.Dispute {
	return &domain.Dispute{
		ID:          id,
		DisputeID:   "DSP-" + id,
		Type:        domain.DisputeTypeProductDefect,
		Complainant: domain.PartyRef{UserID: "renter-1", Role: domain.PartyRoleRenter},
		Respondent:  domain.PartyRef{UserID: "owner-1", Role: domain.PartyRoleOwner},
		LineItem: domain.LineItem{
			SubOrderID: subOrderID,
			RenterID:   "renter-1",
			OwnerID:    "owner-1",
			Deposit:    2_000_000,
		},
		Status:    domain.DisputeStatusOpen,
		Timeline:  []domain.TimelineEntry{{ID: "t-" + id, Action: domain.TransitionCreated, ToStatus: domain.DisputeStatusOpen}},
		CreatedAt: created,
	}
}

func TestMemoryCreateRejectsSecondActiveDisputeOnLine(t *testing.T) {
	repo := NewMemoryDisputeRepository()
	ctx := context.Background()

	first, err := repo.Create(ctx, openDispute("d1", "so-1"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.Version)

	_, err = repo.Create(ctx, openDispute("d2", "so-1"))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))

	active, err := repo.FindActiveByOrderLine(ctx, "so-1", 0)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "d1", active.ID)

	none, err := repo.FindActiveByOrderLine(ctx, "so-2", 0)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestMemoryClosedDisputeFreesTheLine(t *testing.T) {
	repo := NewMemoryDisputeRepository()
	ctx := context.Background()

	d, err := repo.Create(ctx, openDispute("d1", "so-1"))
	require.NoError(t, err)
	next := d.Clone()
	next.Status = domain.DisputeStatusClosed
	_, err = repo.ApplyTransition(ctx, d.ID, TransitionChange{
		Name:            domain.TransitionWithdrawn,
		ExpectedStatus:  domain.DisputeStatusOpen,
		ExpectedVersion: 1,
		Next:            next,
	})
	require.NoError(t, err)

	_, err = repo.Create(ctx, openDispute("d2", "so-1"))
	assert.NoError(t, err)
}

func TestMemoryApplyTransitionRejectsStaleWriter(t *testing.T) {
	repo := NewMemoryDisputeRepository()
	ctx := context.Background()

	d, err := repo.Create(ctx, openDispute("d1", "so-1"))
	require.NoError(t, err)

	accepted := d.Clone()
	accepted.Status = domain.DisputeStatusRespondentAccepted
	rejected := d.Clone()
	rejected.Status = domain.DisputeStatusRespondentRejected

	change := func(next *domain.Dispute) TransitionChange {
		return TransitionChange{
			Name:            domain.TransitionRespondentResponded,
			ExpectedStatus:  domain.DisputeStatusOpen,
			ExpectedVersion: d.Version,
			Next:            next,
		}
	}

	stored, err := repo.ApplyTransition(ctx, d.ID, change(accepted))
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.Version)

	_, err = repo.ApplyTransition(ctx, d.ID, change(rejected))
	require.Error(t, err)
	de := apperrors.ToDomainError(err)
	assert.Equal(t, apperrors.CodeConflict, de.Code)
	assert.Equal(t, string(domain.DisputeStatusRespondentAccepted), de.Details["current_status"])

	current, err := repo.FetchByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DisputeStatusRespondentAccepted, current.Status)
}

func TestMemoryApplyTransitionUnknownDispute(t *testing.T) {
	repo := NewMemoryDisputeRepository()
	_, err := repo.ApplyTransition(context.Background(), "missing", TransitionChange{Next: openDispute("missing", "so-1")})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	_, err = repo.FetchByID(context.Background(), "missing")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestMemorySettlementAppliesOncePerKind(t *testing.T) {
	repo := NewMemoryDisputeRepository()
	ctx := context.Background()

	d, err := repo.Create(ctx, openDispute("d1", "so-1"))
	require.NoError(t, err)

	record := &domain.SettlementRecord{
		Kind:      domain.SettlementKindRuling,
		Amounts:   domain.Settlement{TotalRefundToRenter: 2_700_000},
		RenterID:  "renter-1",
		OwnerID:   "owner-1",
		AppliedAt: created,
		AppliedBy: "admin-1",
	}
	rep := []domain.ReputationAdjustment{
		{UserID: "owner-1", Reason: domain.ReputationReasonLostRuling, CreditDelta: -30, NegativePoints: 5, Warnings: 1},
		{UserID: "renter-1", Reason: domain.ReputationReasonWonRuling, CreditDelta: 5, CreditCap: 100, LoyaltyDelta: 5},
	}
	next := d.Clone()
	next.Status = domain.DisputeStatusRespondentAccepted
	next.UpdatedAt = created
	_, err = repo.ApplyTransition(ctx, d.ID, TransitionChange{
		ExpectedStatus:  domain.DisputeStatusOpen,
		ExpectedVersion: 1,
		Next:            next,
		Effects:         domain.Effects{Settlement: record, Reputation: rep},
	})
	require.NoError(t, err)

	again := next.Clone()
	again.Status = domain.DisputeStatusResolved
	_, err = repo.ApplyTransition(ctx, d.ID, TransitionChange{
		ExpectedStatus:  domain.DisputeStatusRespondentAccepted,
		ExpectedVersion: 2,
		Next:            again,
		Effects:         domain.Effects{Settlement: record, Reputation: rep},
	})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))

	assert.Len(t, repo.Settlements(d.ID), 1)

	owner, err := repo.ReputationOf(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, 70, owner.CreditScore)
	assert.Equal(t, 5, owner.NegativePoints)
	assert.Equal(t, 1, owner.Warnings)

	// already at the cap, so the bonus credit is withheld
	renter, err := repo.ReputationOf(ctx, "renter-1")
	require.NoError(t, err)
	assert.Equal(t, 100, renter.CreditScore)
	assert.Equal(t, 5, renter.LoyaltyPoints)

	fresh, err := repo.ReputationOf(ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultCreditScore, fresh.CreditScore)
}

func TestMemoryReputationAdjustmentIsIdempotent(t *testing.T) {
	repo := NewMemoryDisputeRepository()
	ctx := context.Background()

	d, err := repo.Create(ctx, openDispute("d1", "so-1"))
	require.NoError(t, err)
	adj := []domain.ReputationAdjustment{{UserID: "renter-1", Reason: domain.ReputationReasonRescheduleApproved, CreditDelta: -5}}

	next := d.Clone()
	next.Status = domain.DisputeStatusRespondentAccepted
	_, err = repo.ApplyTransition(ctx, d.ID, TransitionChange{ExpectedStatus: domain.DisputeStatusOpen, ExpectedVersion: 1, Next: next, Effects: domain.Effects{Reputation: adj}})
	require.NoError(t, err)

	again := next.Clone()
	again.Status = domain.DisputeStatusResolved
	_, err = repo.ApplyTransition(ctx, d.ID, TransitionChange{ExpectedStatus: domain.DisputeStatusRespondentAccepted, ExpectedVersion: 2, Next: again, Effects: domain.Effects{Reputation: adj}})
	require.NoError(t, err)

	rep, err := repo.ReputationOf(ctx, "renter-1")
	require.NoError(t, err)
	assert.Equal(t, 95, rep.CreditScore)
}

func TestMemoryListFiltersAndPages(t *testing.T) {
	repo := NewMemoryDisputeRepository()
	ctx := context.Background()

	for i, id := range []string{"a", "b", "c"} {
		d := openDispute(id, "so-"+id)
		d.CreatedAt = created.Add(time.Duration(i) * time.Hour)
		if id == "c" {
			d.Complainant = domain.PartyRef{UserID: "owner-2", Role: domain.PartyRoleOwner}
			d.Respondent = domain.PartyRef{UserID: "renter-2", Role: domain.PartyRoleRenter}
			d.Type = domain.DisputeTypeLateReturn
		}
		_, err := repo.Create(ctx, d)
		require.NoError(t, err)
	}

	mine, err := repo.ListForUser(ctx, "renter-1", DisputeFilter{})
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "b", mine[0].ID)

	late, err := repo.ListWithFilter(ctx, DisputeFilter{Types: []domain.DisputeType{domain.DisputeTypeLateReturn}})
	require.NoError(t, err)
	require.Len(t, late, 1)
	assert.Equal(t, "c", late[0].ID)

	page, err := repo.ListWithFilter(ctx, DisputeFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "b", page[0].ID)

	empty, err := repo.ListWithFilter(ctx, DisputeFilter{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMemoryDeadlineCandidates(t *testing.T) {
	repo := NewMemoryDisputeRepository()
	ctx := context.Background()

	d := openDispute("d1", "so-1")
	d.Status = domain.DisputeStatusInNegotiation
	d.NegotiationRoom = &domain.NegotiationRoom{Subject: domain.NegotiationSubjectMoney, Deadline: created.Add(72 * time.Hour)}
	_, err := repo.Create(ctx, d)
	require.NoError(t, err)

	due, err := repo.ListDeadlineCandidates(ctx, created.Add(71*time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	due, err = repo.ListDeadlineCandidates(ctx, created.Add(72*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "d1", due[0].ID)
}

func TestMemoryLookups(t *testing.T) {
	ctx := context.Background()
	orders := NewMemoryOrderLookup(domain.LineItem{SubOrderID: "so-1", ProductIndex: 2, Deposit: 10})
	item, err := orders.LineItem(ctx, "so-1", 2)
	require.NoError(t, err)
	assert.Equal(t, domain.Money(10), item.Deposit)
	_, err = orders.LineItem(ctx, "so-1", 0)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	parties := NewMemoryPartyDirectory(domain.PartyContact{UserID: "u1", Name: "An"})
	contact, err := parties.Contact(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "An", contact.Name)
	_, err = parties.Contact(ctx, "u2")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}
