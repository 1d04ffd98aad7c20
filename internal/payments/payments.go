// Package payments wraps the card payment provider (Stripe): Connect
// accounts for patissiers, one-off checkouts, subscription checkouts,
// the billing portal and webhook verification.
package payments

import (
	"context"

	"github.com/patissio/patissio/internal/apierror"
	"github.com/patissio/patissio/internal/validation"
)

// Errors
var (
	ErrPaymentsDisabled = apierror.New("payments_disabled", "online payments are not configured", apierror.ErrUnavailable)
	ErrInvalidSignature = apierror.New("invalid_signature", "webhook signature verification failed", validation.ErrInvalid)
)

// Currency used for every charge.
const Currency = "eur"

// Metadata keys attached to checkout sessions and read back by the webhook.
const (
	MetaKind      = "kind"
	MetaTenantID  = "tenant_id"
	MetaOrderID   = "order_id"
	MetaBookingID = "booking_id"
	MetaUserID    = "user_id"
	MetaPlan      = "plan"
	MetaInterval  = "interval"
)

// Checkout kinds.
const (
	KindOrder          = "order"
	KindBookingDeposit = "booking_deposit"
	KindSubscription   = "subscription"
)

// CheckoutRequest is a one-off payment collected on behalf of a connected account.
type CheckoutRequest struct {
	ConnectedAccount    string
	AmountCents         int64
	ProductName         string
	CustomerEmail       string
	SuccessURL          string
	CancelURL           string
	ApplicationFeeCents int64
	Metadata            map[string]string
}

// SubscriptionCheckoutRequest starts a platform subscription.
type SubscriptionCheckoutRequest struct {
	PriceID       string
	CustomerID    string // reuse an existing customer when set
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
	Metadata      map[string]string
}

// CheckoutSession is a hosted payment page.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Account mirrors the Connect account capability flags.
type Account struct {
	ID               string
	ChargesEnabled   bool
	PayoutsEnabled   bool
	DetailsSubmitted bool
}

// Event is a verified webhook event. Payload is the raw event JSON.
type Event struct {
	ID      string
	Type    string
	Payload []byte
}

// Provider is the payment operations the platform needs.
type Provider interface {
	Enabled() bool
	CreateConnectAccount(ctx context.Context, email string) (*Account, error)
	AccountLink(ctx context.Context, accountID, refreshURL, returnURL string) (string, error)
	GetAccount(ctx context.Context, accountID string) (*Account, error)
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	CreateSubscriptionCheckout(ctx context.Context, req SubscriptionCheckoutRequest) (*CheckoutSession, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
	ParseWebhook(payload []byte, signature string) (*Event, error)
}

// ApplicationFee returns the platform's cut of amountCents in basis points, rounded down.
func ApplicationFee(amountCents, feeBPS int64) int64 {
	if feeBPS <= 0 || amountCents <= 0 {
		return 0
	}
	return amountCents * feeBPS / 10000
}

// Disabled is used when no Stripe key is configured.
type Disabled struct{}

func (Disabled) Enabled() bool { return false }

func (Disabled) CreateConnectAccount(context.Context, string) (*Account, error) {
	return nil, ErrPaymentsDisabled
}

func (Disabled) AccountLink(context.Context, string, string, string) (string, error) {
	return "", ErrPaymentsDisabled
}

func (Disabled) GetAccount(context.Context, string) (*Account, error) {
	return nil, ErrPaymentsDisabled
}

func (Disabled) CreateCheckout(context.Context, CheckoutRequest) (*CheckoutSession, error) {
	return nil, ErrPaymentsDisabled
}

func (Disabled) CreateSubscriptionCheckout(context.Context, SubscriptionCheckoutRequest) (*CheckoutSession, error) {
	return nil, ErrPaymentsDisabled
}

func (Disabled) CreatePortalSession(context.Context, string, string) (string, error) {
	return "", ErrPaymentsDisabled
}

func (Disabled) ParseWebhook([]byte, string) (*Event, error) {
	return nil, ErrPaymentsDisabled
}

var _ Provider = Disabled{}
