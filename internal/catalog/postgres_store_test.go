//go:build integration

package catalog

import (
	"context"
	"testing"

	"github.com/patissio/patissio/internal/tenant"
	"github.com/patissio/patissio/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresStore_Catalogue(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	tn := testutil.Tenant("t1", "maboulangerie", tenant.PlanPro)
	testutil.SeedTenant(t, db, tn)
	ctx := context.Background()
	scope := tenant.ScopeOf(tn)
	svc := NewService(NewPostgresStore(db))

	c, err := svc.CreateCategory(ctx, scope, CategoryInput{Name: "Entremets"})
	require.NoError(t, err)
	a, err := svc.CreateProduct(ctx, tn, ProductInput{Name: "Royal", PriceCents: 3200, CategoryID: c.ID})
	require.NoError(t, err)
	b, err := svc.CreateProduct(ctx, tn, ProductInput{Name: "Charlotte", PriceCents: 2900})
	require.NoError(t, err)

	require.NoError(t, svc.ReorderProducts(ctx, scope, []string{b.ID, a.ID}))
	list, err := svc.ListProducts(ctx, scope)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, b.ID, list[0].ID)

	assert.ErrorIs(t, svc.ReorderProducts(ctx, scope, []string{a.ID, "missing"}), ErrProductNotFound)
	list, err = svc.ListProducts(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, b.ID, list[0].ID, "failed reorder is rolled back")

	require.NoError(t, svc.DeleteCategory(ctx, scope, c.ID))
	got, err := svc.GetProduct(ctx, scope, a.ID)
	require.NoError(t, err)
	assert.Empty(t, got.CategoryID)

	store := NewPostgresStore(db)
	assert.ErrorIs(t, store.UpdateProduct(ctx, scope, &Product{ID: "missing", Name: "Fantôme"}), ErrProductNotFound)
	assert.ErrorIs(t, store.DeleteCategory(ctx, scope, c.ID), ErrCategoryNotFound)
	assert.ErrorIs(t, store.DeleteCreation(ctx, scope, "missing"), ErrCreationNotFound)
	other := testutil.Tenant("t2", "autre-boutique", tenant.PlanPro)
	testutil.SeedTenant(t, db, other)
	assert.ErrorIs(t, store.DeleteProduct(ctx, tenant.ScopeOf(other), a.ID), ErrProductNotFound)

	found, err := svc.Products(ctx, scope, []string{a.ID, "missing"})
	require.NoError(t, err)
	assert.Len(t, found, 1)
}
