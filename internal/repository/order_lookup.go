package repository

import (
	"context"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/dispute-service/internal/domain"
	apperrors "github.com/spec-kit/dispute-service/pkg/util/errorutil"
)

// OrderLookup reads the rental line a dispute is raised against. Orders are
// owned by another service; this side only reads them.
type OrderLookup interface {
	LineItem(ctx context.Context, subOrderID string, productIndex int) (*domain.LineItem, error)
}

type orderLookup struct {
	pool *pgxpool.Pool
}

// NewOrderLookup returns a Postgres-backed implementation.
func NewOrderLookup(pool *pgxpool.Pool) OrderLookup {
	return &orderLookup{pool: pool}
}

func (r *orderLookup) LineItem(ctx context.Context, subOrderID string, productIndex int) (*domain.LineItem, error) {
	const query = `
        SELECT sub_order_id, product_index, product_name, renter_id, owner_id,
            deposit, rental_total, shipping_fee, rental_start_date, rental_end_date
        FROM sub_order_items WHERE sub_order_id=$1 AND product_index=$2`

	var item domain.LineItem
	if err := r.pool.QueryRow(ctx, query, subOrderID, productIndex).Scan(
		&item.SubOrderID,
		&item.ProductIndex,
		&item.ProductName,
		&item.RenterID,
		&item.OwnerID,
		&item.Deposit,
		&item.RentalTotal,
		&item.ShippingFee,
		&item.RentalStartDate,
		&item.RentalEndDate,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, lineItemNotFound(subOrderID, productIndex)
		}
		return nil, err
	}
	return &item, nil
}

// MemoryOrderLookup serves line items registered with Put.
type MemoryOrderLookup struct {
	mu    sync.RWMutex
	items map[lineKey]domain.LineItem
}

type lineKey struct {
	subOrderID   string
	productIndex int
}

func NewMemoryOrderLookup(items ...domain.LineItem) *MemoryOrderLookup {
	l := &MemoryOrderLookup{items: map[lineKey]domain.LineItem{}}
	for _, item := range items {
		l.Put(item)
	}
	return l
}

// Put registers or replaces a line item.
func (l *MemoryOrderLookup) Put(item domain.LineItem) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items[lineKey{item.SubOrderID, item.ProductIndex}] = item
}

func (l *MemoryOrderLookup) LineItem(_ context.Context, subOrderID string, productIndex int) (*domain.LineItem, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	item, ok := l.items[lineKey{subOrderID, productIndex}]
	if !ok {
		return nil, lineItemNotFound(subOrderID, productIndex)
	}
	return &item, nil
}

func lineItemNotFound(subOrderID string, productIndex int) error {
	return apperrors.NewNotFound("order line", map[string]any{
		"sub_order_id":  subOrderID,
		"product_index": productIndex,
	})
}
