package domains

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/patissio/patissio/internal/apierror"
	"github.com/patissio/patissio/internal/tenant"
	"github.com/patissio/patissio/internal/testutil"
	"github.com/patissio/patissio/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	mu       sync.Mutex
	domains  map[string]bool
	verified map[string]bool
	err      error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{domains: map[string]bool{}, verified: map[string]bool{}}
}

func (f *fakeProvider) AddDomain(_ context.Context, domain string) (*Verification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.domains[domain] = true
	return &Verification{Records: []DNSRecord{{Type: "TXT", Name: "_vercel." + domain, Value: "vc-domain-verify=x"}}}, nil
}

func (f *fakeProvider) VerifyDomain(_ context.Context, domain string) (*Verification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &Verification{Verified: f.verified[domain], Records: []DNSRecord{}}, nil
}

func (f *fakeProvider) RemoveDomain(_ context.Context, domain string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	delete(f.domains, domain)
	return nil
}

func (f *fakeProvider) has(domain string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.domains[domain]
}

func setup(t *testing.T) (*Service, *fakeProvider, *tenant.MemoryStore, *tenant.Tenant) {
	t.Helper()
	tenants := tenant.NewMemoryStore()
	shop := testutil.Tenant("t1", "maboulangerie", tenant.PlanPremium)
	require.NoError(t, tenants.Create(context.Background(), shop))
	p := newFakeProvider()
	return NewService(tenants, p, "platform.tld"), p, tenants, shop
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "www.gateaux.fr", Normalize("  https://WWW.Gateaux.fr/boutique "))
	assert.Equal(t, "gateaux.fr", Normalize("gateaux.fr."))
}

func TestSet_Validation(t *testing.T) {
	svc, _, _, shop := setup(t)
	ctx := context.Background()

	for _, bad := range []string{"", "not a domain", "localhost", "platform.tld", "autre.platform.tld"} {
		_, err := svc.Set(ctx, shop, bad)
		assert.ErrorIs(t, err, validation.ErrInvalid, bad)
	}
}

func TestSet_AttachesUnverified(t *testing.T) {
	svc, p, tenants, shop := setup(t)
	ctx := context.Background()

	status, err := svc.Set(ctx, shop, "www.gateaux.fr")
	require.NoError(t, err)
	assert.False(t, status.Verified)
	assert.Len(t, status.Records, 1)
	assert.True(t, p.has("www.gateaux.fr"))

	stored, err := tenants.GetByCustomDomain(ctx, "www.gateaux.fr")
	require.NoError(t, err)
	assert.Equal(t, shop.ID, stored.ID)
	assert.False(t, stored.CustomDomainVerified)
}

func TestSet_ReplacesPreviousDomain(t *testing.T) {
	svc, p, _, shop := setup(t)
	ctx := context.Background()

	_, err := svc.Set(ctx, shop, "ancien.fr")
	require.NoError(t, err)
	_, err = svc.Set(ctx, shop, "nouveau.fr")
	require.NoError(t, err)

	assert.False(t, p.has("ancien.fr"))
	assert.True(t, p.has("nouveau.fr"))
	assert.Equal(t, "nouveau.fr", shop.CustomDomain)
}

func TestSet_DomainOwnedByAnotherShop(t *testing.T) {
	svc, p, tenants, shop := setup(t)
	ctx := context.Background()
	other := testutil.Tenant("t2", "autre", tenant.PlanPremium)
	other.CustomDomain = "gateaux.fr"
	require.NoError(t, tenants.Create(ctx, other))

	_, err := svc.Set(ctx, shop, "gateaux.fr")
	assert.ErrorIs(t, err, tenant.ErrDomainTaken)
	assert.False(t, p.has("gateaux.fr"))
}

func TestSet_ProviderFailureLeavesShopUnchanged(t *testing.T) {
	svc, p, tenants, shop := setup(t)
	p.err = apierror.New("hosting_error", "down", apierror.ErrUpstream)

	_, err := svc.Set(context.Background(), shop, "gateaux.fr")
	assert.ErrorIs(t, err, apierror.ErrUpstream)

	stored, err := tenants.Get(context.Background(), shop.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.CustomDomain)
}

func TestVerify(t *testing.T) {
	svc, p, tenants, shop := setup(t)
	ctx := context.Background()

	_, err := svc.Verify(ctx, shop)
	assert.ErrorIs(t, err, ErrNoDomain)

	_, err = svc.Set(ctx, shop, "gateaux.fr")
	require.NoError(t, err)

	status, err := svc.Verify(ctx, shop)
	require.NoError(t, err)
	assert.False(t, status.Verified)

	p.verified["gateaux.fr"] = true
	status, err = svc.Verify(ctx, shop)
	require.NoError(t, err)
	assert.True(t, status.Verified)

	stored, err := tenants.Get(ctx, shop.ID)
	require.NoError(t, err)
	assert.True(t, stored.CustomDomainVerified)
}

func TestRemove(t *testing.T) {
	svc, p, tenants, shop := setup(t)
	ctx := context.Background()

	assert.ErrorIs(t, svc.Remove(ctx, shop), ErrNoDomain)

	_, err := svc.Set(ctx, shop, "gateaux.fr")
	require.NoError(t, err)
	require.NoError(t, svc.Remove(ctx, shop))

	assert.False(t, p.has("gateaux.fr"))
	_, err = tenants.GetByCustomDomain(ctx, "gateaux.fr")
	assert.ErrorIs(t, err, tenant.ErrTenantNotFound)
}

func TestRemove_DomainAlreadyGoneUpstream(t *testing.T) {
	svc, p, _, shop := setup(t)
	ctx := context.Background()
	_, err := svc.Set(ctx, shop, "gateaux.fr")
	require.NoError(t, err)

	p.err = apierror.New("domain_not_found", "Not Found", apierror.ErrNotFound)
	require.NoError(t, svc.Remove(ctx, shop))
	assert.Empty(t, shop.CustomDomain)
}

func TestUnconfigured(t *testing.T) {
	tenants := tenant.NewMemoryStore()
	shop := testutil.Tenant("t1", "maboulangerie", tenant.PlanPremium)
	require.NoError(t, tenants.Create(context.Background(), shop))
	svc := NewService(tenants, Unconfigured{}, "platform.tld")

	_, err := svc.Set(context.Background(), shop, "gateaux.fr")
	require.True(t, errors.Is(err, ErrProviderNotConfigured))
	status, _ := apierror.Status(err)
	assert.Equal(t, 503, status)
}
