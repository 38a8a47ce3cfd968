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

// PartyDirectory resolves the contact details an admin shares at escalation.
type PartyDirectory interface {
	Contact(ctx context.Context, userID string) (*domain.PartyContact, error)
}

type partyDirectory struct {
	pool *pgxpool.Pool
}

// NewPartyDirectory returns a Postgres-backed implementation over the users table.
func NewPartyDirectory(pool *pgxpool.Pool) PartyDirectory {
	return &partyDirectory{pool: pool}
}

func (r *partyDirectory) Contact(ctx context.Context, userID string) (*domain.PartyContact, error) {
	const query = `
        SELECT id, name, email, COALESCE(phone, ''), COALESCE(address, '')
        FROM users WHERE id=$1`

	var contact domain.PartyContact
	if err := r.pool.QueryRow(ctx, query, userID).Scan(
		&contact.UserID,
		&contact.Name,
		&contact.Email,
		&contact.Phone,
		&contact.Address,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"id": userID})
		}
		return nil, err
	}
	return &contact, nil
}

// MemoryPartyDirectory serves contacts registered with Put.
type MemoryPartyDirectory struct {
	mu       sync.RWMutex
	contacts map[string]domain.PartyContact
}

func NewMemoryPartyDirectory(contacts ...domain.PartyContact) *MemoryPartyDirectory {
	d := &MemoryPartyDirectory{contacts: map[string]domain.PartyContact{}}
	for _, c := range contacts {
		d.Put(c)
	}
	return d
}

func (d *MemoryPartyDirectory) Put(contact domain.PartyContact) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.contacts[contact.UserID] = contact
}

func (d *MemoryPartyDirectory) Contact(_ context.Context, userID string) (*domain.PartyContact, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	contact, ok := d.contacts[userID]
	if !ok {
		return nil, apperrors.NewNotFound("user", map[string]any{"id": userID})
	}
	return &contact, nil
}
