package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/patissio/patissio/internal/idgen"
	"github.com/patissio/patissio/internal/logging"
	"github.com/patissio/patissio/internal/tenant"
	"github.com/patissio/patissio/internal/validation"
)

// Service implements catalogue management.
type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// CategoryInput is the editable part of a category.
type CategoryInput struct {
	Name     string `json:"name"`
	Position *int   `json:"position"`
}

// CreationInput is the editable part of a gallery creation.
type CreationInput struct {
	CategoryID  string `json:"categoryId"`
	Title       string `json:"title"`
	Description string `json:"description"`
	ImageURL    string `json:"imageUrl"`
	IsFeatured  bool   `json:"isFeatured"`
	Position    *int   `json:"position"`
}

// ProductInput is the editable part of a product. IsAvailable defaults to true.
type ProductInput struct {
	CategoryID  string `json:"categoryId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	PriceCents  int64  `json:"priceCents"`
	ImageURL    string `json:"imageUrl"`
	IsAvailable *bool  `json:"isAvailable"`
	Position    *int   `json:"position"`
}

func (in *CategoryInput) validate() error {
	in.Name = validation.SanitizeString(in.Name, 100)
	return validation.Validate(validation.Required("name", in.Name))
}

func (in *CreationInput) validate() error {
	in.Title = validation.SanitizeString(in.Title, 200)
	in.Description = validation.SanitizeString(in.Description, 5000)
	return validation.Validate(
		validation.Required("title", in.Title),
		validation.MaxLength("imageUrl", in.ImageURL, 2048),
	)
}

func (in *ProductInput) validate() error {
	in.Name = validation.SanitizeString(in.Name, 200)
	in.Description = validation.SanitizeString(in.Description, 5000)
	return validation.Validate(
		validation.Required("name", in.Name),
		validation.Range("priceCents", in.PriceCents, 0, 10_000_000),
		validation.MaxLength("imageUrl", in.ImageURL, 2048),
	)
}

// --- categories ---

// CreateCategory adds a category; its slug is unique within the shop.
func (s *Service) CreateCategory(ctx context.Context, scope tenant.Scope, in CategoryInput) (*Category, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	existing, err := s.store.ListCategories(ctx, scope)
	if err != nil {
		return nil, err
	}
	c := &Category{
		ID:        idgen.New(),
		Name:      in.Name,
		Slug:      uniqueSlug(in.Name, existing, ""),
		Position:  nextPosition(len(existing), in.Position, func(i int) int { return existing[i].Position }),
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.CreateCategory(ctx, scope, c); err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}
	return c, nil
}

func (s *Service) ListCategories(ctx context.Context, scope tenant.Scope) ([]*Category, error) {
	return orEmpty(s.store.ListCategories(ctx, scope))
}

// UpdateCategory renames a category; the slug follows the name.
func (s *Service) UpdateCategory(ctx context.Context, scope tenant.Scope, id string, in CategoryInput) (*Category, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	c, err := s.store.GetCategory(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	existing, err := s.store.ListCategories(ctx, scope)
	if err != nil {
		return nil, err
	}
	c.Name = in.Name
	c.Slug = uniqueSlug(in.Name, existing, c.ID)
	if in.Position != nil {
		c.Position = *in.Position
	}
	if err := s.store.UpdateCategory(ctx, scope, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) DeleteCategory(ctx context.Context, scope tenant.Scope, id string) error {
	return s.store.DeleteCategory(ctx, scope, id)
}

func uniqueSlug(name string, existing []*Category, self string) string {
	taken := make(map[string]bool, len(existing))
	for _, c := range existing {
		if c.ID != self {
			taken[c.Slug] = true
		}
	}
	base := tenant.GenerateSlug(name)
	candidate := base
	for i := 2; taken[candidate]; i++ {
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
	return candidate
}

// --- creations ---

func (s *Service) CreateCreation(ctx context.Context, scope tenant.Scope, in CreationInput) (*Creation, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if err := s.checkCategory(ctx, scope, in.CategoryID); err != nil {
		return nil, err
	}
	existing, err := s.store.ListCreations(ctx, scope)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	c := &Creation{
		ID:          idgen.New(),
		CategoryID:  in.CategoryID,
		Title:       in.Title,
		Description: in.Description,
		ImageURL:    in.ImageURL,
		IsFeatured:  in.IsFeatured,
		Position:    nextPosition(len(existing), in.Position, func(i int) int { return existing[i].Position }),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateCreation(ctx, scope, c); err != nil {
		return nil, fmt.Errorf("create creation: %w", err)
	}
	return c, nil
}

func (s *Service) ListCreations(ctx context.Context, scope tenant.Scope) ([]*Creation, error) {
	return orEmpty(s.store.ListCreations(ctx, scope))
}

func (s *Service) UpdateCreation(ctx context.Context, scope tenant.Scope, id string, in CreationInput) (*Creation, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	c, err := s.store.GetCreation(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkCategory(ctx, scope, in.CategoryID); err != nil {
		return nil, err
	}
	c.CategoryID = in.CategoryID
	c.Title = in.Title
	c.Description = in.Description
	c.ImageURL = in.ImageURL
	c.IsFeatured = in.IsFeatured
	if in.Position != nil {
		c.Position = *in.Position
	}
	if err := s.store.UpdateCreation(ctx, scope, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) DeleteCreation(ctx context.Context, scope tenant.Scope, id string) error {
	return s.store.DeleteCreation(ctx, scope, id)
}

// --- products ---

// CreateProduct adds a product unless the shop's plan limit is reached.
func (s *Service) CreateProduct(ctx context.Context, t *tenant.Tenant, in ProductInput) (*Product, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	scope := tenant.ScopeOf(t)
	if limit := t.Plan.Features().MaxProducts; limit > 0 {
		n, err := s.store.CountProducts(ctx, scope)
		if err != nil {
			return nil, err
		}
		if n >= limit {
			logging.L(ctx).Info("product limit reached", "plan", t.Plan, "limit", limit)
			return nil, ErrPlanLimit
		}
	}
	if err := s.checkCategory(ctx, scope, in.CategoryID); err != nil {
		return nil, err
	}
	existing, err := s.store.ListProducts(ctx, scope, false)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	p := &Product{
		ID:          idgen.New(),
		CategoryID:  in.CategoryID,
		Name:        in.Name,
		Description: in.Description,
		PriceCents:  in.PriceCents,
		ImageURL:    in.ImageURL,
		IsAvailable: in.IsAvailable == nil || *in.IsAvailable,
		Position:    nextPosition(len(existing), in.Position, func(i int) int { return existing[i].Position }),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateProduct(ctx, scope, p); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	return p, nil
}

func (s *Service) GetProduct(ctx context.Context, scope tenant.Scope, id string) (*Product, error) {
	return s.store.GetProduct(ctx, scope, id)
}

func (s *Service) ListProducts(ctx context.Context, scope tenant.Scope) ([]*Product, error) {
	return orEmpty(s.store.ListProducts(ctx, scope, false))
}

func (s *Service) UpdateProduct(ctx context.Context, scope tenant.Scope, id string, in ProductInput) (*Product, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	p, err := s.store.GetProduct(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkCategory(ctx, scope, in.CategoryID); err != nil {
		return nil, err
	}
	p.CategoryID = in.CategoryID
	p.Name = in.Name
	p.Description = in.Description
	p.PriceCents = in.PriceCents
	p.ImageURL = in.ImageURL
	if in.IsAvailable != nil {
		p.IsAvailable = *in.IsAvailable
	}
	if in.Position != nil {
		p.Position = *in.Position
	}
	if err := s.store.UpdateProduct(ctx, scope, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) DeleteProduct(ctx context.Context, scope tenant.Scope, id string) error {
	return s.store.DeleteProduct(ctx, scope, id)
}

// ReorderProducts sets positions from the order of ids. ids must not repeat.
func (s *Service) ReorderProducts(ctx context.Context, scope tenant.Scope, ids []string) error {
	if len(ids) == 0 {
		return validation.Invalid("ids", "is required")
	}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return validation.Invalid("ids", "must not contain duplicates")
		}
		seen[id] = true
	}
	return s.store.ReorderProducts(ctx, scope, ids)
}

// Products returns the tenant's products among ids, keyed by id. Unknown ids
// are absent from the map.
func (s *Service) Products(ctx context.Context, scope tenant.Scope, ids []string) (map[string]*Product, error) {
	return s.store.GetProducts(ctx, scope, ids)
}

// --- storefront ---

// Catalogue is the public menu: categories and the products on sale.
type Catalogue struct {
	Categories []*Category `json:"categories"`
	Products   []*Product  `json:"products"`
}

func (s *Service) PublicCatalogue(ctx context.Context, t *tenant.Tenant) (*Catalogue, error) {
	scope := tenant.ScopeOf(t)
	categories, err := s.ListCategories(ctx, scope)
	if err != nil {
		return nil, err
	}
	products, err := orEmpty(s.store.ListProducts(ctx, scope, true))
	if err != nil {
		return nil, err
	}
	return &Catalogue{Categories: categories, Products: products}, nil
}

func (s *Service) PublicCreations(ctx context.Context, t *tenant.Tenant) ([]*Creation, error) {
	return s.ListCreations(ctx, tenant.ScopeOf(t))
}

func (s *Service) checkCategory(ctx context.Context, scope tenant.Scope, id string) error {
	if id == "" {
		return nil
	}
	_, err := s.store.GetCategory(ctx, scope, id)
	if errors.Is(err, ErrCategoryNotFound) {
		return validation.Invalid("categoryId", "does not exist")
	}
	return err
}

// nextPosition returns the requested position, or one past the current maximum.
func nextPosition(n int, requested *int, at func(int) int) int {
	if requested != nil {
		return *requested
	}
	next := 0
	for i := 0; i < n; i++ {
		next = max(next, at(i)+1)
	}
	return next
}

func orEmpty[T any](list []T, err error) ([]T, error) {
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []T{}
	}
	return list, nil
}
