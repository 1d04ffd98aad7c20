// Package catalog manages a shop's categories, gallery creations and
// orderable products.
package catalog

import (
	"fmt"
	"time"

	"github.com/patissio/patissio/internal/apierror"
)

var (
	ErrCategoryNotFound = fmt.Errorf("category %w", apierror.ErrNotFound)
	ErrCreationNotFound = fmt.Errorf("creation %w", apierror.ErrNotFound)
	ErrProductNotFound  = fmt.Errorf("product %w", apierror.ErrNotFound)
	ErrPlanLimit        = apierror.New("plan_limit", "product limit reached for the current plan", apierror.ErrForbidden)
)

// Category groups products and creations on the storefront.
type Category struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"patissierId"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"createdAt"`
}

// Creation is a gallery item: a cake the shop has made, not for sale as such.
type Creation struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"patissierId"`
	CategoryID  string    `json:"categoryId,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ImageURL    string    `json:"imageUrl"`
	IsFeatured  bool      `json:"isFeatured"`
	Position    int       `json:"position"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Product can be ordered from the catalogue.
type Product struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"patissierId"`
	CategoryID  string    `json:"categoryId,omitempty"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	PriceCents  int64     `json:"priceCents"`
	ImageURL    string    `json:"imageUrl"`
	IsAvailable bool      `json:"isAvailable"`
	Position    int       `json:"position"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
