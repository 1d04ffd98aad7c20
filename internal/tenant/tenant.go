// Package tenant provides multi-tenancy for the platform: patissier profiles,
// plan tiers, slug generation and host/slug resolution.
package tenant

import (
	"fmt"
	"time"

	"github.com/patissio/patissio/internal/apierror"
)

// Errors
var (
	ErrTenantNotFound = fmt.Errorf("tenant %w", apierror.ErrNotFound)
	ErrSlugTaken      = apierror.New("slug_taken", "slug already in use", apierror.ErrConflict)
	ErrDomainTaken    = apierror.New("domain_taken", "domain already attached to another shop", apierror.ErrConflict)
	ErrNoHostTenant   = fmt.Errorf("host does not identify a tenant: %w", apierror.ErrNotFound)
)

// Status represents a tenant's lifecycle state.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

// ValidStatus returns true if the status name is recognised.
func ValidStatus(s Status) bool {
	return s == StatusActive || s == StatusSuspended
}

// Design holds the storefront branding chosen by the patissier.
type Design struct {
	PrimaryColor   string `json:"primaryColor,omitempty"`
	SecondaryColor string `json:"secondaryColor,omitempty"`
	FontFamily     string `json:"fontFamily,omitempty"`
	Theme          string `json:"theme,omitempty"`
}

// StripeAccount mirrors the Connect account flags reported by Stripe.
type StripeAccount struct {
	AccountID        string `json:"accountId,omitempty"`
	ChargesEnabled   bool   `json:"chargesEnabled"`
	PayoutsEnabled   bool   `json:"payoutsEnabled"`
	DetailsSubmitted bool   `json:"detailsSubmitted"`
}

// ConnectState is the onboarding state derived from StripeAccount.
type ConnectState string

const (
	ConnectNotConnected ConnectState = "not_connected"
	ConnectOnboarding   ConnectState = "onboarding"
	ConnectRestricted   ConnectState = "restricted"
	ConnectActive       ConnectState = "active"
)

// State derives the Connect onboarding state.
func (a StripeAccount) State() ConnectState {
	switch {
	case a.AccountID == "":
		return ConnectNotConnected
	case a.ChargesEnabled:
		return ConnectActive
	case a.DetailsSubmitted:
		return ConnectRestricted
	default:
		return ConnectOnboarding
	}
}

// DefaultDepositPercent is applied to new profiles.
const DefaultDepositPercent = 30

// Tenant is a patissier profile: one pastry shop and the root of its data.
type Tenant struct {
	ID                   string        `json:"id"`
	UserID               string        `json:"userId"`
	BusinessName         string        `json:"businessName"`
	Slug                 string        `json:"slug"`
	Description          string        `json:"description,omitempty"`
	Phone                string        `json:"phone,omitempty"`
	Address              string        `json:"address,omitempty"`
	City                 string        `json:"city,omitempty"`
	LogoURL              string        `json:"logoUrl,omitempty"`
	CoverURL             string        `json:"coverUrl,omitempty"`
	InstagramHandle      string        `json:"instagramHandle,omitempty"`
	Design               Design        `json:"design"`
	Plan                 Plan          `json:"plan"`
	CustomDomain         string        `json:"customDomain,omitempty"`
	CustomDomainVerified bool          `json:"customDomainVerified"`
	OrdersEnabled        bool          `json:"ordersEnabled"`
	WorkshopsEnabled     bool          `json:"workshopsEnabled"`
	SupportAccessEnabled bool          `json:"supportAccessEnabled"`
	DepositPercent       int           `json:"depositPercent"`
	Stripe               StripeAccount `json:"stripe"`
	Status               Status        `json:"status"`
	CreatedAt            time.Time     `json:"createdAt"`
	UpdatedAt            time.Time     `json:"updatedAt"`
}

// CanAcceptOnlinePayments reports whether customers can pay this shop online.
func (t *Tenant) CanAcceptOnlinePayments() bool {
	return t.Stripe.ChargesEnabled && t.Plan.Features().OnlinePayments
}

// PublicProfile is the storefront-safe view of a tenant.
type PublicProfile struct {
	BusinessName     string `json:"businessName"`
	Slug             string `json:"slug"`
	Description      string `json:"description,omitempty"`
	Phone            string `json:"phone,omitempty"`
	Address          string `json:"address,omitempty"`
	City             string `json:"city,omitempty"`
	LogoURL          string `json:"logoUrl,omitempty"`
	CoverURL         string `json:"coverUrl,omitempty"`
	InstagramHandle  string `json:"instagramHandle,omitempty"`
	Design           Design `json:"design"`
	OrdersEnabled    bool   `json:"ordersEnabled"`
	WorkshopsEnabled bool   `json:"workshopsEnabled"`
	OnlinePayments   bool   `json:"onlinePayments"`
}

// Public returns the storefront view.
func (t *Tenant) Public() PublicProfile {
	return PublicProfile{
		BusinessName:     t.BusinessName,
		Slug:             t.Slug,
		Description:      t.Description,
		Phone:            t.Phone,
		Address:          t.Address,
		City:             t.City,
		LogoURL:          t.LogoURL,
		CoverURL:         t.CoverURL,
		InstagramHandle:  t.InstagramHandle,
		Design:           t.Design,
		OrdersEnabled:    t.OrdersEnabled,
		WorkshopsEnabled: t.WorkshopsEnabled && t.Plan.Features().Workshops,
		OnlinePayments:   t.CanAcceptOnlinePayments(),
	}
}

// Scope is proof that a query runs on behalf of a resolved tenant.
// Tenant-scoped stores take a Scope instead of a raw ID, so a query without
// a tenant filter does not compile. The zero value matches nothing.
type Scope struct {
	id string
}

// ScopeOf returns the scope for a resolved tenant.
func ScopeOf(t *Tenant) Scope {
	if t == nil {
		return Scope{}
	}
	return Scope{id: t.ID}
}

// ID returns the tenant ID to filter on.
func (s Scope) ID() string { return s.id }

// Valid reports whether the scope was built from a tenant.
func (s Scope) Valid() bool { return s.id != "" }
