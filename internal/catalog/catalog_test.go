package catalog

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/patissio/patissio/internal/apierror"
	"github.com/patissio/patissio/internal/tenant"
	"github.com/patissio/patissio/internal/testutil"
	"github.com/patissio/patissio/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService() (*Service, *MemoryStore) {
	store := NewMemoryStore()
	return NewService(store), store
}

func ptr[T any](v T) *T { return &v }

func TestCreateCategory_SlugUniquePerTenant(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	a := tenant.ScopeOf(testutil.Tenant("t1", "a", tenant.PlanStarter))
	b := tenant.ScopeOf(testutil.Tenant("t2", "b", tenant.PlanStarter))

	first, err := svc.CreateCategory(ctx, a, CategoryInput{Name: "Gâteaux d'anniversaire"})
	require.NoError(t, err)
	assert.Equal(t, "gateaux-d-anniversaire", first.Slug)
	assert.Equal(t, 0, first.Position)

	second, err := svc.CreateCategory(ctx, a, CategoryInput{Name: "Gâteaux d’anniversaire"})
	require.NoError(t, err)
	assert.Equal(t, "gateaux-d-anniversaire-2", second.Slug)
	assert.Equal(t, 1, second.Position)

	other, err := svc.CreateCategory(ctx, b, CategoryInput{Name: "Gâteaux d'anniversaire"})
	require.NoError(t, err)
	assert.Equal(t, "gateaux-d-anniversaire", other.Slug)
}

func TestUpdateCategory_KeepsOwnSlug(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	scope := tenant.ScopeOf(testutil.Tenant("t1", "a", tenant.PlanStarter))

	c, err := svc.CreateCategory(ctx, scope, CategoryInput{Name: "Tartes"})
	require.NoError(t, err)
	updated, err := svc.UpdateCategory(ctx, scope, c.ID, CategoryInput{Name: "Tartes", Position: ptr(5)})
	require.NoError(t, err)
	assert.Equal(t, "tartes", updated.Slug)
	assert.Equal(t, 5, updated.Position)
}

func TestDeleteCategory_DetachesProducts(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	tn := testutil.Tenant("t1", "a", tenant.PlanPro)
	scope := tenant.ScopeOf(tn)

	c, err := svc.CreateCategory(ctx, scope, CategoryInput{Name: "Viennoiseries"})
	require.NoError(t, err)
	p, err := svc.CreateProduct(ctx, tn, ProductInput{Name: "Croissant", PriceCents: 120, CategoryID: c.ID})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteCategory(ctx, scope, c.ID))

	got, err := svc.GetProduct(ctx, scope, p.ID)
	require.NoError(t, err)
	assert.Empty(t, got.CategoryID)
}

func TestCreateProduct_UnknownCategory(t *testing.T) {
	svc, _ := newService()
	tn := testutil.Tenant("t1", "a", tenant.PlanPro)

	_, err := svc.CreateProduct(context.Background(), tn, ProductInput{Name: "Éclair", PriceCents: 350, CategoryID: "nope"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, validation.ErrInvalid))
}

func TestCreateProduct_CategoryOfAnotherTenant(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	mine := testutil.Tenant("t1", "a", tenant.PlanPro)
	theirs := tenant.ScopeOf(testutil.Tenant("t2", "b", tenant.PlanPro))

	c, err := svc.CreateCategory(ctx, theirs, CategoryInput{Name: "Macarons"})
	require.NoError(t, err)

	_, err = svc.CreateProduct(ctx, mine, ProductInput{Name: "Macaron", PriceCents: 200, CategoryID: c.ID})
	assert.True(t, errors.Is(err, validation.ErrInvalid))
}

func TestCreateProduct_PlanLimit(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	starter := testutil.Tenant("t1", "a", tenant.PlanStarter)
	limit := tenant.PlanStarter.Features().MaxProducts
	require.Positive(t, limit)

	for i := 0; i < limit; i++ {
		_, err := svc.CreateProduct(ctx, starter, ProductInput{Name: fmt.Sprintf("Produit %d", i), PriceCents: 100})
		require.NoError(t, err)
	}
	_, err := svc.CreateProduct(ctx, starter, ProductInput{Name: "Un de trop", PriceCents: 100})
	require.ErrorIs(t, err, ErrPlanLimit)
	status, code := apierror.Status(err)
	assert.Equal(t, 403, status)
	assert.Equal(t, "plan_limit", code)

	pro := testutil.Tenant("t2", "b", tenant.PlanPro)
	for i := 0; i <= limit; i++ {
		_, err := svc.CreateProduct(ctx, pro, ProductInput{Name: fmt.Sprintf("Produit %d", i), PriceCents: 100})
		require.NoError(t, err)
	}
}

func TestCreateProduct_Defaults(t *testing.T) {
	svc, _ := newService()
	tn := testutil.Tenant("t1", "a", tenant.PlanPro)

	p, err := svc.CreateProduct(context.Background(), tn, ProductInput{Name: "  Paris-Brest  ", PriceCents: 450})
	require.NoError(t, err)
	assert.Equal(t, "Paris-Brest", p.Name)
	assert.True(t, p.IsAvailable)
	assert.Equal(t, "t1", p.TenantID)
}

func TestCreateProduct_Validation(t *testing.T) {
	svc, _ := newService()
	tn := testutil.Tenant("t1", "a", tenant.PlanPro)

	_, err := svc.CreateProduct(context.Background(), tn, ProductInput{PriceCents: -1})
	require.Error(t, err)
	fields := validation.Fields(err)
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.Field)
	}
	assert.ElementsMatch(t, []string{"name", "priceCents"}, names)
}

func TestReorderProducts(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	tn := testutil.Tenant("t1", "a", tenant.PlanPro)
	scope := tenant.ScopeOf(tn)

	var ids []string
	for _, name := range []string{"Flan", "Cannelé", "Financier"} {
		p, err := svc.CreateProduct(ctx, tn, ProductInput{Name: name, PriceCents: 300})
		require.NoError(t, err)
		ids = append(ids, p.ID)
	}

	require.NoError(t, svc.ReorderProducts(ctx, scope, []string{ids[2], ids[0], ids[1]}))
	list, err := svc.ListProducts(ctx, scope)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "Financier", list[0].Name)
	assert.Equal(t, "Flan", list[1].Name)
	assert.Equal(t, "Cannelé", list[2].Name)

	err = svc.ReorderProducts(ctx, scope, []string{ids[0], ids[0]})
	assert.True(t, errors.Is(err, validation.ErrInvalid))

	other := tenant.ScopeOf(testutil.Tenant("t2", "b", tenant.PlanPro))
	err = svc.ReorderProducts(ctx, other, ids)
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestProducts_ScopedToTenant(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	a := testutil.Tenant("t1", "a", tenant.PlanPro)
	b := testutil.Tenant("t2", "b", tenant.PlanPro)

	pa, err := svc.CreateProduct(ctx, a, ProductInput{Name: "Tarte", PriceCents: 2500})
	require.NoError(t, err)
	pb, err := svc.CreateProduct(ctx, b, ProductInput{Name: "Tarte", PriceCents: 1})
	require.NoError(t, err)

	got, err := svc.Products(ctx, tenant.ScopeOf(a), []string{pa.ID, pb.ID})
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, int64(2500), got[pa.ID].PriceCents)
}

func TestPublicCatalogue_HidesUnavailable(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	tn := testutil.Tenant("t1", "a", tenant.PlanPro)

	_, err := svc.CreateProduct(ctx, tn, ProductInput{Name: "Bûche", PriceCents: 3500, IsAvailable: ptr(false)})
	require.NoError(t, err)
	_, err = svc.CreateProduct(ctx, tn, ProductInput{Name: "Galette", PriceCents: 2200})
	require.NoError(t, err)

	cat, err := svc.PublicCatalogue(ctx, tn)
	require.NoError(t, err)
	require.Len(t, cat.Products, 1)
	assert.Equal(t, "Galette", cat.Products[0].Name)
	assert.NotNil(t, cat.Categories)
}

func TestCreations_CRUD(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	scope := tenant.ScopeOf(testutil.Tenant("t1", "a", tenant.PlanStarter))

	c, err := svc.CreateCreation(ctx, scope, CreationInput{Title: "Pièce montée", ImageURL: "/uploads/a.jpg", IsFeatured: true})
	require.NoError(t, err)

	updated, err := svc.UpdateCreation(ctx, scope, c.ID, CreationInput{Title: "Croquembouche", ImageURL: "/uploads/a.jpg"})
	require.NoError(t, err)
	assert.Equal(t, "Croquembouche", updated.Title)
	assert.False(t, updated.IsFeatured)

	other := tenant.ScopeOf(testutil.Tenant("t2", "b", tenant.PlanStarter))
	assert.ErrorIs(t, svc.DeleteCreation(ctx, other, c.ID), ErrCreationNotFound)
	require.NoError(t, svc.DeleteCreation(ctx, scope, c.ID))

	list, err := svc.ListCreations(ctx, scope)
	require.NoError(t, err)
	assert.Empty(t, list)
}
