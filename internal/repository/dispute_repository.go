package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/dispute-service/internal/domain"
	apperrors "github.com/spec-kit/dispute-service/pkg/util/errorutil"
)

// DisputeFilter narrows dispute listings.
type DisputeFilter struct {
	PartyID     *string
	Statuses    []domain.DisputeStatus
	Types       []domain.DisputeType
	SubOrderID  *string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// TransitionChange is one committed step of the state machine. The write only
// succeeds while the stored dispute still has ExpectedStatus and ExpectedVersion.
type TransitionChange struct {
	Name            domain.TransitionName
	ExpectedStatus  domain.DisputeStatus
	ExpectedVersion int64
	Next            *domain.Dispute
	Effects         domain.Effects
}

// DisputeRepository is the storage facade the workflow depends on.
type DisputeRepository interface {
	Create(ctx context.Context, dispute *domain.Dispute) (*domain.Dispute, error)
	FetchByID(ctx context.Context, id string) (*domain.Dispute, error)
	FindActiveByOrderLine(ctx context.Context, subOrderID string, productIndex int) (*domain.Dispute, error)
	ListForUser(ctx context.Context, userID string, filter DisputeFilter) ([]domain.Dispute, error)
	ListWithFilter(ctx context.Context, filter DisputeFilter) ([]domain.Dispute, error)
	ListDeadlineCandidates(ctx context.Context, now time.Time, limit int) ([]domain.Dispute, error)
	ApplyTransition(ctx context.Context, id string, change TransitionChange) (*domain.Dispute, error)
	ReputationOf(ctx context.Context, userID string) (*domain.Reputation, error)
}

const (
	defaultListLimit = 20
	maxListLimit     = 100
	uniqueViolation  = "23505"
)

var errNoSnapshot = errors.New("transition without next snapshot")

type disputeRepository struct {
	pool *pgxpool.Pool
}

// NewDisputeRepository returns a Postgres-backed implementation. The aggregate
// is stored as a JSONB document next to the columns used for lookups.
func NewDisputeRepository(pool *pgxpool.Pool) DisputeRepository {
	return &disputeRepository{pool: pool}
}

func (r *disputeRepository) Create(ctx context.Context, dispute *domain.Dispute) (*domain.Dispute, error) {
	stored := dispute.Clone()
	if stored.Version == 0 {
		stored.Version = 1
	}
	stored.UpdatedAt = stored.CreatedAt
	doc, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("dispute: encode: %w", err)
	}
	negotiationDue, evidenceDue := deadlineColumns(stored)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	const query = `
        INSERT INTO disputes (id, dispute_code, sub_order_id, product_index, type, complainant_id, respondent_id,
            status, version, negotiation_deadline, evidence_deadline, document, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`
	if _, err := tx.Exec(ctx, query,
		stored.ID,
		stored.DisputeID,
		stored.LineItem.SubOrderID,
		stored.LineItem.ProductIndex,
		stored.Type,
		stored.Complainant.UserID,
		stored.Respondent.UserID,
		stored.Status,
		stored.Version,
		negotiationDue,
		evidenceDue,
		doc,
		stored.CreatedAt,
		stored.UpdatedAt,
	); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, apperrors.NewConflict("an active dispute already exists for this order line", map[string]any{
				"sub_order_id":  stored.LineItem.SubOrderID,
				"product_index": stored.LineItem.ProductIndex,
			})
		}
		return nil, fmt.Errorf("dispute: insert: %w", err)
	}
	for _, entry := range stored.Timeline {
		if err := insertTimeline(ctx, tx, stored.ID, entry); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("dispute: commit create: %w", err)
	}
	return stored, nil
}

func (r *disputeRepository) FetchByID(ctx context.Context, id string) (*domain.Dispute, error) {
	const query = `SELECT document FROM disputes WHERE id=$1`
	d, err := scanDocument(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewNotFound("dispute", map[string]any{"id": id})
	}
	return d, err
}

func (r *disputeRepository) FindActiveByOrderLine(ctx context.Context, subOrderID string, productIndex int) (*domain.Dispute, error) {
	const query = `
        SELECT document FROM disputes
        WHERE sub_order_id=$1 AND product_index=$2 AND status NOT IN ('RESOLVED','CLOSED')
        LIMIT 1`
	d, err := scanDocument(r.pool.QueryRow(ctx, query, subOrderID, productIndex))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return d, err
}

func (r *disputeRepository) ListForUser(ctx context.Context, userID string, filter DisputeFilter) ([]domain.Dispute, error) {
	filter.PartyID = &userID
	return r.ListWithFilter(ctx, filter)
}

func (r *disputeRepository) ListWithFilter(ctx context.Context, filter DisputeFilter) ([]domain.Dispute, error) {
	base := `SELECT document FROM disputes`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.PartyID != nil {
		args = append(args, *filter.PartyID)
		clauses = append(clauses, fmt.Sprintf("(complainant_id=$%d OR respondent_id=$%d)", len(args), len(args)))
	}
	if filter.SubOrderID != nil {
		args = append(args, *filter.SubOrderID)
		clauses = append(clauses, fmt.Sprintf("sub_order_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Types) > 0 {
		placeholders := make([]string, len(filter.Types))
		for i, typ := range filter.Types {
			args = append(args, typ)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("type IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	limit, offset := pageBounds(filter.Limit, filter.Offset)
	args = append(args, limit, offset)
	query := fmt.Sprintf("%s WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		base, strings.Join(clauses, " AND "), len(args)-1, len(args))
	return r.queryDocuments(ctx, query, args...)
}

func (r *disputeRepository) ListDeadlineCandidates(ctx context.Context, now time.Time, limit int) ([]domain.Dispute, error) {
	const query = `
        SELECT document FROM disputes
        WHERE (status='IN_NEGOTIATION' AND negotiation_deadline <= $1)
           OR (status='THIRD_PARTY_ESCALATED' AND evidence_deadline <= $1)
        ORDER BY updated_at ASC
        LIMIT $2`
	if limit <= 0 {
		limit = maxListLimit
	}
	return r.queryDocuments(ctx, query, now, limit)
}

// ApplyTransition writes the next snapshot, its timeline entry and its effects in
// one transaction. A stale status or version yields CONFLICT.
func (r *disputeRepository) ApplyTransition(ctx context.Context, id string, change TransitionChange) (*domain.Dispute, error) {
	if change.Next == nil {
		return nil, apperrors.NewInternalError(errNoSnapshot)
	}
	next := change.Next.Clone()
	next.Version = change.ExpectedVersion + 1
	doc, err := json.Marshal(next)
	if err != nil {
		return nil, fmt.Errorf("dispute: encode: %w", err)
	}
	negotiationDue, evidenceDue := deadlineColumns(next)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	const update = `
        UPDATE disputes
        SET status=$1, version=$2, negotiation_deadline=$3, evidence_deadline=$4, document=$5, updated_at=$6
        WHERE id=$7 AND status=$8 AND version=$9`
	cmd, err := tx.Exec(ctx, update,
		next.Status,
		next.Version,
		negotiationDue,
		evidenceDue,
		doc,
		next.UpdatedAt,
		id,
		change.ExpectedStatus,
		change.ExpectedVersion,
	)
	if err != nil {
		return nil, fmt.Errorf("dispute: update: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return nil, r.staleWrite(ctx, tx, id, change)
	}

	if n := len(next.Timeline); n > 0 {
		if err := insertTimeline(ctx, tx, id, next.Timeline[n-1]); err != nil {
			return nil, err
		}
	}
	if err := applyEffects(ctx, tx, id, change.Effects); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("dispute: commit transition: %w", err)
	}
	return next, nil
}

func (r *disputeRepository) ReputationOf(ctx context.Context, userID string) (*domain.Reputation, error) {
	const query = `
        SELECT user_id, credit_score, loyalty_points, negative_points, warnings, updated_at
        FROM party_reputation WHERE user_id=$1`
	var rep domain.Reputation
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&rep.UserID,
		&rep.CreditScore,
		&rep.LoyaltyPoints,
		&rep.NegativePoints,
		&rep.Warnings,
		&rep.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return &domain.Reputation{UserID: userID, CreditScore: domain.DefaultCreditScore}, nil
	}
	if err != nil {
		return nil, err
	}
	return &rep, nil
}

// staleWrite distinguishes a missing dispute from a lost race.
func (r *disputeRepository) staleWrite(ctx context.Context, tx pgx.Tx, id string, change TransitionChange) error {
	var (
		status  domain.DisputeStatus
		version int64
	)
	err := tx.QueryRow(ctx, `SELECT status, version FROM disputes WHERE id=$1`, id).Scan(&status, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound("dispute", map[string]any{"id": id})
	}
	if err != nil {
		return err
	}
	return staleConflict(change, status, version)
}

func (r *disputeRepository) queryDocuments(ctx context.Context, query string, args ...any) ([]domain.Dispute, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Dispute{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}
	return result, rows.Err()
}

func scanDocument(row pgx.Row) (*domain.Dispute, error) {
	var doc []byte
	if err := row.Scan(&doc); err != nil {
		return nil, err
	}
	var d domain.Dispute
	if err := json.Unmarshal(doc, &d); err != nil {
		return nil, fmt.Errorf("dispute: decode: %w", err)
	}
	return &d, nil
}

func insertTimeline(ctx context.Context, tx pgx.Tx, disputeID string, entry domain.TimelineEntry) error {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("dispute: encode timeline: %w", err)
	}
	const query = `
        INSERT INTO dispute_timeline (id, dispute_id, action, actor_id, from_status, to_status, details, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        ON CONFLICT (id) DO NOTHING`
	if _, err := tx.Exec(ctx, query,
		entry.ID,
		disputeID,
		entry.Action,
		entry.ActorID,
		entry.FromStatus,
		entry.ToStatus,
		details,
		entry.Timestamp,
	); err != nil {
		return fmt.Errorf("dispute: insert timeline: %w", err)
	}
	return nil
}

// applyEffects records settlements and reputation changes. Each is keyed so a
// replay cannot charge anyone twice.
func applyEffects(ctx context.Context, tx pgx.Tx, disputeID string, effects domain.Effects) error {
	if s := effects.Settlement; s != nil {
		amounts, err := json.Marshal(s.Amounts)
		if err != nil {
			return fmt.Errorf("dispute: encode settlement: %w", err)
		}
		const query = `
            INSERT INTO dispute_settlements (dispute_id, kind, amounts, renter_id, owner_id, applied_at, applied_by)
            VALUES ($1,$2,$3,$4,$5,$6,$7)
            ON CONFLICT (dispute_id, kind) DO NOTHING`
		cmd, err := tx.Exec(ctx, query, disputeID, s.Kind, amounts, s.RenterID, s.OwnerID, s.AppliedAt, s.AppliedBy)
		if err != nil {
			return fmt.Errorf("dispute: insert settlement: %w", err)
		}
		if cmd.RowsAffected() == 0 {
			return apperrors.NewConflict("settlement already applied", map[string]any{"kind": string(s.Kind)})
		}
	}
	for _, adj := range effects.Reputation {
		const record = `
            INSERT INTO reputation_adjustments (dispute_id, user_id, reason, credit_delta, credit_cap, loyalty_delta, negative_points, warnings)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
            ON CONFLICT (dispute_id, user_id, reason) DO NOTHING`
		cmd, err := tx.Exec(ctx, record, disputeID, adj.UserID, adj.Reason, adj.CreditDelta, adj.CreditCap,
			adj.LoyaltyDelta, adj.NegativePoints, adj.Warnings)
		if err != nil {
			return fmt.Errorf("dispute: insert reputation adjustment: %w", err)
		}
		if cmd.RowsAffected() == 0 {
			continue
		}
		const upsert = `
            INSERT INTO party_reputation AS pr (user_id, credit_score, loyalty_points, negative_points, warnings, updated_at)
            VALUES ($1, $2::int + CASE WHEN $3::int < 0 OR $4::int = 0 OR $2::int < $4::int THEN $3::int ELSE 0 END,
                $5::int, $6::int, $7::int, NOW())
            ON CONFLICT (user_id) DO UPDATE SET
                credit_score = pr.credit_score + CASE WHEN $3::int < 0 OR $4::int = 0 OR pr.credit_score < $4::int THEN $3::int ELSE 0 END,
                loyalty_points = pr.loyalty_points + $5::int,
                negative_points = pr.negative_points + $6::int,
                warnings = pr.warnings + $7::int,
                updated_at = NOW()`
		if _, err := tx.Exec(ctx, upsert, adj.UserID, domain.DefaultCreditScore, adj.CreditDelta, adj.CreditCap,
			adj.LoyaltyDelta, adj.NegativePoints, adj.Warnings); err != nil {
			return fmt.Errorf("dispute: update reputation: %w", err)
		}
	}
	return nil
}

// deadlineColumns exposes the deadlines that are still running so the sweeper
// can find them with an index scan.
func deadlineColumns(d *domain.Dispute) (*time.Time, *time.Time) {
	var negotiation, evidence *time.Time
	if d.Status == domain.DisputeStatusInNegotiation && d.NegotiationRoom != nil {
		deadline := d.NegotiationRoom.Deadline
		negotiation = &deadline
	}
	if tpr := d.ThirdPartyResolution; d.Status == domain.DisputeStatusThirdPartyEscalated && tpr != nil &&
		tpr.Evidence == nil && !tpr.AdminFallbackRequired && !tpr.EvidenceDeadline.IsZero() {
		deadline := tpr.EvidenceDeadline
		evidence = &deadline
	}
	return negotiation, evidence
}

func staleConflict(change TransitionChange, status domain.DisputeStatus, version int64) error {
	return apperrors.NewConflict("dispute was modified concurrently; re-fetch and retry", map[string]any{
		"transition":       string(change.Name),
		"expected_status":  string(change.ExpectedStatus),
		"expected_version": change.ExpectedVersion,
		"current_status":   string(status),
		"current_version":  version,
	})
}

func pageBounds(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
