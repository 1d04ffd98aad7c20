package payments

import (
	"context"
	"fmt"
	"sync"

	"github.com/tidwall/gjson"
)

// FakeSignature is the only signature Fake.ParseWebhook accepts.
const FakeSignature = "t=0,v1=fake"

// Fake is an in-memory Provider for development and tests. It records every
// checkout it creates.
type Fake struct {
	mu                    sync.Mutex
	seq                   int
	Accounts              map[string]*Account
	Checkouts             []CheckoutRequest
	SubscriptionCheckouts []SubscriptionCheckoutRequest
	// Err, when set, is returned by every call.
	Err error
}

// NewFake creates an empty fake provider.
func NewFake() *Fake {
	return &Fake{Accounts: make(map[string]*Account)}
}

func (f *Fake) Enabled() bool { return true }

func (f *Fake) next(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s_%d", prefix, f.seq)
}

func (f *Fake) CreateConnectAccount(_ context.Context, _ string) (*Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	a := &Account{ID: f.next("acct")}
	f.Accounts[a.ID] = a
	cp := *a
	return &cp, nil
}

func (f *Fake) AccountLink(_ context.Context, accountID, _, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return "", f.Err
	}
	return "https://connect.stripe.test/setup/" + accountID, nil
}

func (f *Fake) GetAccount(_ context.Context, accountID string) (*Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	a, ok := f.Accounts[accountID]
	if !ok {
		return nil, fmt.Errorf("no such account %s", accountID)
	}
	cp := *a
	return &cp, nil
}

// SetAccount overwrites the flags GetAccount reports.
func (f *Fake) SetAccount(a Account) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Accounts[a.ID] = &a
}

func (f *Fake) CreateCheckout(_ context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	f.Checkouts = append(f.Checkouts, req)
	id := f.next("cs")
	return &CheckoutSession{ID: id, URL: "https://checkout.stripe.test/" + id}, nil
}

func (f *Fake) CreateSubscriptionCheckout(_ context.Context, req SubscriptionCheckoutRequest) (*CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	f.SubscriptionCheckouts = append(f.SubscriptionCheckouts, req)
	id := f.next("cs_sub")
	return &CheckoutSession{ID: id, URL: "https://checkout.stripe.test/" + id}, nil
}

func (f *Fake) CreatePortalSession(_ context.Context, customerID, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return "", f.Err
	}
	return "https://billing.stripe.test/" + customerID, nil
}

func (f *Fake) ParseWebhook(payload []byte, signature string) (*Event, error) {
	if signature != FakeSignature || !gjson.ValidBytes(payload) {
		return nil, ErrInvalidSignature
	}
	return &Event{
		ID:      gjson.GetBytes(payload, "id").String(),
		Type:    gjson.GetBytes(payload, "type").String(),
		Payload: payload,
	}, nil
}

// LastCheckout returns the most recent one-off checkout request.
func (f *Fake) LastCheckout() (CheckoutRequest, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Checkouts) == 0 {
		return CheckoutRequest{}, false
	}
	return f.Checkouts[len(f.Checkouts)-1], true
}

var _ Provider = (*Fake)(nil)
