package catalog

import (
	"context"

	"github.com/patissio/patissio/internal/tenant"
)

// Store persists catalogue entities. Every method is scoped to one tenant.
// Lists are ordered by position, then creation time.
type Store interface {
	CreateCategory(ctx context.Context, scope tenant.Scope, c *Category) error
	GetCategory(ctx context.Context, scope tenant.Scope, id string) (*Category, error)
	ListCategories(ctx context.Context, scope tenant.Scope) ([]*Category, error)
	UpdateCategory(ctx context.Context, scope tenant.Scope, c *Category) error
	// DeleteCategory detaches its products and creations.
	DeleteCategory(ctx context.Context, scope tenant.Scope, id string) error

	CreateCreation(ctx context.Context, scope tenant.Scope, c *Creation) error
	GetCreation(ctx context.Context, scope tenant.Scope, id string) (*Creation, error)
	ListCreations(ctx context.Context, scope tenant.Scope) ([]*Creation, error)
	UpdateCreation(ctx context.Context, scope tenant.Scope, c *Creation) error
	DeleteCreation(ctx context.Context, scope tenant.Scope, id string) error

	CreateProduct(ctx context.Context, scope tenant.Scope, p *Product) error
	GetProduct(ctx context.Context, scope tenant.Scope, id string) (*Product, error)
	ListProducts(ctx context.Context, scope tenant.Scope, availableOnly bool) ([]*Product, error)
	// GetProducts returns the tenant's products among ids, keyed by id.
	GetProducts(ctx context.Context, scope tenant.Scope, ids []string) (map[string]*Product, error)
	UpdateProduct(ctx context.Context, scope tenant.Scope, p *Product) error
	DeleteProduct(ctx context.Context, scope tenant.Scope, id string) error
	CountProducts(ctx context.Context, scope tenant.Scope) (int, error)
	// ReorderProducts sets each product's position to its index in ids.
	ReorderProducts(ctx context.Context, scope tenant.Scope, ids []string) error
}
