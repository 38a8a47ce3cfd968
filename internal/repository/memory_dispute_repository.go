package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/spec-kit/dispute-service/internal/domain"
	apperrors "github.com/spec-kit/dispute-service/pkg/util/errorutil"
)

// MemoryDisputeRepository keeps disputes in process. It is used when no
// database is configured and by tests.
type MemoryDisputeRepository struct {
	mu          sync.RWMutex
	disputes    map[string]*domain.Dispute
	settlements map[string]domain.SettlementRecord
	adjustments map[string]struct{}
	reputation  map[string]*domain.Reputation
}

// NewMemoryDisputeRepository returns an empty store.
func NewMemoryDisputeRepository() *MemoryDisputeRepository {
	return &MemoryDisputeRepository{
		disputes:    map[string]*domain.Dispute{},
		settlements: map[string]domain.SettlementRecord{},
		adjustments: map[string]struct{}{},
		reputation:  map[string]*domain.Reputation{},
	}
}

var _ DisputeRepository = (*MemoryDisputeRepository)(nil)

func (r *MemoryDisputeRepository) Create(_ context.Context, dispute *domain.Dispute) (*domain.Dispute, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.disputes[dispute.ID]; exists {
		return nil, apperrors.NewConflict("dispute already exists", map[string]any{"id": dispute.ID})
	}
	if active := r.activeByOrderLine(dispute.LineItem.SubOrderID, dispute.LineItem.ProductIndex); active != nil {
		return nil, apperrors.NewConflict("an active dispute already exists for this order line", map[string]any{
			"sub_order_id":  dispute.LineItem.SubOrderID,
			"product_index": dispute.LineItem.ProductIndex,
		})
	}
	stored := dispute.Clone()
	if stored.Version == 0 {
		stored.Version = 1
	}
	stored.UpdatedAt = stored.CreatedAt
	r.disputes[stored.ID] = stored
	return stored.Clone(), nil
}

func (r *MemoryDisputeRepository) FetchByID(_ context.Context, id string) (*domain.Dispute, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.disputes[id]
	if !ok {
		return nil, apperrors.NewNotFound("dispute", map[string]any{"id": id})
	}
	return d.Clone(), nil
}

func (r *MemoryDisputeRepository) FindActiveByOrderLine(_ context.Context, subOrderID string, productIndex int) (*domain.Dispute, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if d := r.activeByOrderLine(subOrderID, productIndex); d != nil {
		return d.Clone(), nil
	}
	return nil, nil
}

func (r *MemoryDisputeRepository) ListForUser(ctx context.Context, userID string, filter DisputeFilter) ([]domain.Dispute, error) {
	filter.PartyID = &userID
	return r.ListWithFilter(ctx, filter)
}

func (r *MemoryDisputeRepository) ListWithFilter(_ context.Context, filter DisputeFilter) ([]domain.Dispute, error) {
	r.mu.RLock()
	matched := []domain.Dispute{}
	for _, d := range r.disputes {
		if matchesFilter(d, filter) {
			matched = append(matched, *d.Clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	limit, offset := pageBounds(filter.Limit, filter.Offset)
	if offset >= len(matched) {
		return []domain.Dispute{}, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

func (r *MemoryDisputeRepository) ListDeadlineCandidates(_ context.Context, now time.Time, limit int) ([]domain.Dispute, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if limit <= 0 {
		limit = maxListLimit
	}
	result := []domain.Dispute{}
	for _, d := range r.disputes {
		negotiation, evidence := deadlineColumns(d)
		due := (negotiation != nil && !now.Before(*negotiation)) || (evidence != nil && !now.Before(*evidence))
		if due {
			result = append(result, *d.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].UpdatedAt.Before(result[j].UpdatedAt) })
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *MemoryDisputeRepository) ApplyTransition(_ context.Context, id string, change TransitionChange) (*domain.Dispute, error) {
	if change.Next == nil {
		return nil, apperrors.NewInternalError(errNoSnapshot)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.disputes[id]
	if !ok {
		return nil, apperrors.NewNotFound("dispute", map[string]any{"id": id})
	}
	if current.Status != change.ExpectedStatus || current.Version != change.ExpectedVersion {
		return nil, staleConflict(change, current.Status, current.Version)
	}

	// validate every effect before writing any of them
	if s := change.Effects.Settlement; s != nil {
		if _, applied := r.settlements[settlementKey(id, s.Kind)]; applied {
			return nil, apperrors.NewConflict("settlement already applied", map[string]any{"kind": string(s.Kind)})
		}
	}
	if s := change.Effects.Settlement; s != nil {
		r.settlements[settlementKey(id, s.Kind)] = *s
	}
	for _, adj := range change.Effects.Reputation {
		key := id + "|" + adj.UserID + "|" + string(adj.Reason)
		if _, applied := r.adjustments[key]; applied {
			continue
		}
		r.adjustments[key] = struct{}{}
		rep, ok := r.reputation[adj.UserID]
		if !ok {
			rep = &domain.Reputation{UserID: adj.UserID, CreditScore: domain.DefaultCreditScore}
			r.reputation[adj.UserID] = rep
		}
		rep.Apply(adj, change.Next.UpdatedAt)
	}

	next := change.Next.Clone()
	next.Version = change.ExpectedVersion + 1
	r.disputes[id] = next
	return next.Clone(), nil
}

func (r *MemoryDisputeRepository) ReputationOf(_ context.Context, userID string) (*domain.Reputation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if rep, ok := r.reputation[userID]; ok {
		copied := *rep
		return &copied, nil
	}
	return &domain.Reputation{UserID: userID, CreditScore: domain.DefaultCreditScore}, nil
}

// Settlements returns every settlement applied to a dispute.
func (r *MemoryDisputeRepository) Settlements(disputeID string) []domain.SettlementRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []domain.SettlementRecord{}
	for key, record := range r.settlements {
		if key == settlementKey(disputeID, record.Kind) {
			out = append(out, record)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AppliedAt.Before(out[j].AppliedAt) })
	return out
}

func (r *MemoryDisputeRepository) activeByOrderLine(subOrderID string, productIndex int) *domain.Dispute {
	for _, d := range r.disputes {
		if d.LineItem.SubOrderID == subOrderID && d.LineItem.ProductIndex == productIndex && !d.Status.IsTerminal() {
			return d
		}
	}
	return nil
}

func matchesFilter(d *domain.Dispute, filter DisputeFilter) bool {
	if filter.PartyID != nil && !d.IsParty(*filter.PartyID) {
		return false
	}
	if filter.SubOrderID != nil && d.LineItem.SubOrderID != *filter.SubOrderID {
		return false
	}
	if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, d.Status) {
		return false
	}
	if len(filter.Types) > 0 && !containsType(filter.Types, d.Type) {
		return false
	}
	if filter.CreatedFrom != nil && d.CreatedAt.Before(*filter.CreatedFrom) {
		return false
	}
	if filter.CreatedTo != nil && d.CreatedAt.After(*filter.CreatedTo) {
		return false
	}
	return true
}

func containsStatus(list []domain.DisputeStatus, status domain.DisputeStatus) bool {
	for _, s := range list {
		if s == status {
			return true
		}
	}
	return false
}

func containsType(list []domain.DisputeType, typ domain.DisputeType) bool {
	for _, t := range list {
		if t == typ {
			return true
		}
	}
	return false
}

func settlementKey(disputeID string, kind domain.SettlementKind) string {
	return disputeID + "|" + string(kind)
}
