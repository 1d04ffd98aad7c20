package domains

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/patissio/patissio/internal/logging"
	"github.com/patissio/patissio/internal/tenant"
	"github.com/patissio/patissio/internal/traces"
	"github.com/patissio/patissio/internal/validation"
)

// Status is the custom-domain state of a shop.
type Status struct {
	Domain   string      `json:"domain"`
	Verified bool        `json:"verified"`
	Records  []DNSRecord `json:"records"`
}

// Service attaches, verifies and detaches custom domains.
type Service struct {
	tenants        tenant.Store
	provider       Provider
	platformDomain string
}

func NewService(tenants tenant.Store, provider Provider, platformDomain string) *Service {
	return &Service{tenants: tenants, provider: provider, platformDomain: strings.ToLower(platformDomain)}
}

// Normalize lowercases domain and strips a scheme, path and trailing dot.
func Normalize(domain string) string {
	d := strings.ToLower(strings.TrimSpace(domain))
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	if i := strings.IndexByte(d, '/'); i >= 0 {
		d = d[:i]
	}
	return strings.TrimSuffix(d, ".")
}

// Status returns the current domain without calling the provider.
func (s *Service) Status(t *tenant.Tenant) *Status {
	return &Status{Domain: t.CustomDomain, Verified: t.CustomDomainVerified, Records: []DNSRecord{}}
}

// Set attaches domain to t. Any previous domain is detached first.
func (s *Service) Set(ctx context.Context, t *tenant.Tenant, raw string) (_ *Status, err error) {
	domain := Normalize(raw)
	ctx, span := traces.StartSpan(ctx, "domains.Set", traces.TenantID(t.ID), traces.Host(domain))
	defer func() { traces.End(span, err) }()

	if err := validation.Validate(
		validation.Required("domain", domain),
		validation.Hostname("domain", domain),
	); err != nil {
		return nil, err
	}
	if domain == s.platformDomain || strings.HasSuffix(domain, "."+s.platformDomain) {
		return nil, validation.Invalid("domain", "platform addresses cannot be used as a custom domain")
	}
	if domain == t.CustomDomain {
		return s.Status(t), nil
	}

	owner, err := s.tenants.GetByCustomDomain(ctx, domain)
	switch {
	case err == nil && owner.ID != t.ID:
		return nil, tenant.ErrDomainTaken
	case err != nil && !errors.Is(err, tenant.ErrTenantNotFound):
		return nil, err
	}

	v, err := s.provider.AddDomain(ctx, domain)
	if err != nil {
		logging.L(ctx).Warn("custom domain rejected by provider", "domain", domain, "error", err)
		return nil, err
	}

	previous := t.CustomDomain
	t.CustomDomain = domain
	t.CustomDomainVerified = v.Verified
	if err := s.tenants.Update(ctx, t); err != nil {
		s.detach(ctx, domain)
		return nil, fmt.Errorf("save custom domain: %w", err)
	}
	if previous != "" {
		s.detach(ctx, previous)
	}
	logging.L(ctx).Info("custom domain attached", "domain", domain, "verified", v.Verified)
	return &Status{Domain: domain, Verified: v.Verified, Records: v.Records}, nil
}

// Verify asks the provider to check DNS and records the result.
func (s *Service) Verify(ctx context.Context, t *tenant.Tenant) (_ *Status, err error) {
	if t.CustomDomain == "" {
		return nil, ErrNoDomain
	}
	ctx, span := traces.StartSpan(ctx, "domains.Verify", traces.TenantID(t.ID), traces.Host(t.CustomDomain))
	defer func() { traces.End(span, err) }()

	v, err := s.provider.VerifyDomain(ctx, t.CustomDomain)
	if err != nil {
		return nil, err
	}
	if v.Verified != t.CustomDomainVerified {
		t.CustomDomainVerified = v.Verified
		if err := s.tenants.Update(ctx, t); err != nil {
			return nil, fmt.Errorf("save domain verification: %w", err)
		}
		logging.L(ctx).Info("custom domain verification changed", "domain", t.CustomDomain, "verified", v.Verified)
	}
	return &Status{Domain: t.CustomDomain, Verified: v.Verified, Records: v.Records}, nil
}

// Remove detaches the domain from the provider and the shop.
func (s *Service) Remove(ctx context.Context, t *tenant.Tenant) error {
	if t.CustomDomain == "" {
		return ErrNoDomain
	}
	domain := t.CustomDomain
	if err := s.provider.RemoveDomain(ctx, domain); err != nil && !isNotFound(err) {
		return err
	}
	t.CustomDomain = ""
	t.CustomDomainVerified = false
	if err := s.tenants.Update(ctx, t); err != nil {
		return fmt.Errorf("clear custom domain: %w", err)
	}
	logging.L(ctx).Info("custom domain removed", "domain", domain)
	return nil
}

// detach removes domain from the provider, logging failures.
func (s *Service) detach(ctx context.Context, domain string) {
	if err := s.provider.RemoveDomain(ctx, domain); err != nil && !isNotFound(err) {
		logging.L(ctx).Warn("custom domain left on provider", "domain", domain, "error", err)
	}
}

func isNotFound(err error) bool {
	var coded interface{ Code() string }
	return errors.As(err, &coded) && coded.Code() == "domain_not_found"
}
