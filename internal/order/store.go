package order

import (
	"context"

	"github.com/patissio/patissio/internal/pagination"
	"github.com/patissio/patissio/internal/tenant"
)

// Store persists orders with their items.
type Store interface {
	// Create returns errDuplicateNumber when o.Number is already used.
	Create(ctx context.Context, scope tenant.Scope, o *Order) error
	Get(ctx context.Context, scope tenant.Scope, id string) (*Order, error)
	Update(ctx context.Context, scope tenant.Scope, o *Order) error
	// SetCheckoutSession records the Stripe session of an order and touches
	// no other field.
	SetCheckoutSession(ctx context.Context, scope tenant.Scope, orderID, sessionID string) error
	// List returns up to limit orders newest first, after the cursor if set.
	List(ctx context.Context, scope tenant.Scope, status Status, after *pagination.Cursor, limit int) ([]*Order, error)

	// FindForClient looks an order up by number across tenants; email must match.
	FindForClient(ctx context.Context, number, email string) (*Order, error)
	// Count is the platform-wide total.
	Count(ctx context.Context) (int, error)
}
