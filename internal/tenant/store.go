package tenant

import "context"

// ListFilter narrows a superadmin tenant listing.
type ListFilter struct {
	Query  string // matches business name or slug, case-insensitive
	Plan   Plan
	Status Status
	Limit  int
	Offset int
}

// Store persists tenant data.
type Store interface {
	Create(ctx context.Context, t *Tenant) error
	Get(ctx context.Context, id string) (*Tenant, error)
	GetBySlug(ctx context.Context, slug string) (*Tenant, error)
	GetByUserID(ctx context.Context, userID string) (*Tenant, error)
	// GetByCustomDomain returns the tenant owning domain whether or not it is verified.
	GetByCustomDomain(ctx context.Context, domain string) (*Tenant, error)
	GetByStripeAccount(ctx context.Context, accountID string) (*Tenant, error)
	Update(ctx context.Context, t *Tenant) error
	List(ctx context.Context, f ListFilter) ([]*Tenant, error)
	CountByPlan(ctx context.Context) (map[Plan]int, error)
}
