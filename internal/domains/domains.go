// Package domains attaches premium shops to their own domain name through
// the hosting provider's project API.
package domains

import (
	"context"

	"github.com/patissio/patissio/internal/apierror"
)

var (
	ErrProviderNotConfigured = apierror.New("hosting_not_configured", "custom domains are not available", apierror.ErrUnavailable)
	ErrNoDomain              = apierror.New("no_domain", "no custom domain is configured", apierror.ErrConflict)
)

// DNSRecord is a record the patissier must create at their registrar.
type DNSRecord struct {
	Type   string `json:"type"`
	Name   string `json:"name"`
	Value  string `json:"value"`
	Reason string `json:"reason,omitempty"`
}

// Verification is the provider's view of a domain.
type Verification struct {
	Verified bool        `json:"verified"`
	Records  []DNSRecord `json:"records"`
}

// Provider manages domains on the hosting project serving the storefronts.
type Provider interface {
	AddDomain(ctx context.Context, domain string) (*Verification, error)
	VerifyDomain(ctx context.Context, domain string) (*Verification, error)
	RemoveDomain(ctx context.Context, domain string) error
}

// Unconfigured is used when no hosting credentials are set.
type Unconfigured struct{}

func (Unconfigured) AddDomain(context.Context, string) (*Verification, error) {
	return nil, ErrProviderNotConfigured
}

func (Unconfigured) VerifyDomain(context.Context, string) (*Verification, error) {
	return nil, ErrProviderNotConfigured
}

func (Unconfigured) RemoveDomain(context.Context, string) error {
	return ErrProviderNotConfigured
}

var _ Provider = Unconfigured{}
