package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/patissio/patissio/internal/catalog"
	"github.com/patissio/patissio/internal/idgen"
	"github.com/patissio/patissio/internal/logging"
	"github.com/patissio/patissio/internal/metrics"
	"github.com/patissio/patissio/internal/notification"
	"github.com/patissio/patissio/internal/pagination"
	"github.com/patissio/patissio/internal/payments"
	"github.com/patissio/patissio/internal/tenant"
	"github.com/patissio/patissio/internal/traces"
	"github.com/patissio/patissio/internal/validation"
)

// Products prices catalogue lines.
type Products interface {
	Products(ctx context.Context, scope tenant.Scope, ids []string) (map[string]*catalog.Product, error)
}

// Tenants loads the shop behind a client-facing order.
type Tenants interface {
	Get(ctx context.Context, id string) (*tenant.Tenant, error)
}

// Notifier records a dashboard notification for a tenant.
type Notifier interface {
	Notify(ctx context.Context, scope tenant.Scope, kind notification.Type, title, body, link string) error
}

// maxNumberAttempts bounds retries when a generated order number collides.
const maxNumberAttempts = 5

// Service implements order taking and fulfilment.
type Service struct {
	store    Store
	products Products
	tenants  Tenants
	payments payments.Provider
	notifier Notifier
	feeBPS   int64
	appURL   string
	now      func() time.Time
}

// NewService creates an order service with online payments disabled.
func NewService(store Store, products Products, tenants Tenants) *Service {
	return &Service{
		store:    store,
		products: products,
		tenants:  tenants,
		payments: payments.Disabled{},
		now:      time.Now,
	}
}

// WithPayments enables checkout for payable orders.
func (s *Service) WithPayments(p payments.Provider, feeBPS int64, appURL string) *Service {
	s.payments = p
	s.feeBPS = feeBPS
	s.appURL = strings.TrimRight(appURL, "/")
	return s
}

func (s *Service) WithNotifier(n Notifier) *Service {
	s.notifier = n
	return s
}

// LineRequest is one catalogue line of an order form.
type LineRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// Request is the storefront order form.
type Request struct {
	ClientName        string        `json:"clientName"`
	ClientEmail       string        `json:"clientEmail"`
	ClientPhone       string        `json:"clientPhone"`
	Type              Type          `json:"type"`
	Items             []LineRequest `json:"items"`
	CustomDescription string        `json:"customDescription"`
	BudgetCents       int64         `json:"budgetCents"`
	PickupDate        *time.Time    `json:"pickupDate"`
	DeliveryMode      DeliveryMode  `json:"deliveryMode"`
	DeliveryAddress   string        `json:"deliveryAddress"`
	Notes             string        `json:"notes"`
}

func (r *Request) validate() error {
	r.ClientName = validation.SanitizeString(r.ClientName, 200)
	r.ClientEmail = strings.ToLower(strings.TrimSpace(r.ClientEmail))
	r.ClientPhone = strings.TrimSpace(r.ClientPhone)
	r.CustomDescription = validation.SanitizeString(r.CustomDescription, 5000)
	r.DeliveryAddress = validation.SanitizeString(r.DeliveryAddress, 500)
	r.Notes = validation.SanitizeString(r.Notes, 2000)
	if r.Type == "" {
		r.Type = TypeCatalogue
	}
	if r.DeliveryMode == "" {
		r.DeliveryMode = DeliveryPickup
	}

	checks := []validation.Check{
		validation.Required("clientName", r.ClientName),
		validation.Required("clientEmail", r.ClientEmail),
		validation.Email("clientEmail", r.ClientEmail),
		validation.Phone("clientPhone", r.ClientPhone),
		validation.OneOf("type", string(r.Type), string(TypeCatalogue), string(TypeCustom)),
		validation.OneOf("deliveryMode", string(r.DeliveryMode), string(DeliveryPickup), string(DeliveryDelivery)),
	}
	if r.DeliveryMode == DeliveryDelivery {
		checks = append(checks, validation.Required("deliveryAddress", r.DeliveryAddress))
	}
	switch r.Type {
	case TypeCatalogue:
		if len(r.Items) == 0 {
			checks = append(checks, func() *validation.FieldError {
				return &validation.FieldError{Field: "items", Message: "is required"}
			})
		}
		for i, line := range r.Items {
			field := fmt.Sprintf("items[%d]", i)
			checks = append(checks,
				validation.Required(field+".productId", line.ProductID),
				validation.Range(field+".quantity", int64(line.Quantity), 1, 100),
			)
		}
	case TypeCustom:
		checks = append(checks,
			validation.Required("customDescription", r.CustomDescription),
			validation.Range("budgetCents", r.BudgetCents, 0, 10_000_000),
		)
	}
	return validation.Validate(checks...)
}

// Result is returned to the client. CheckoutURL is set when the order can
// be paid online.
type Result struct {
	Order       *Order `json:"order"`
	CheckoutURL string `json:"checkoutUrl,omitempty"`
}

// Create places an order at t. Catalogue lines are priced from the shop's
// current products; unknown or unavailable products are rejected.
func (s *Service) Create(ctx context.Context, t *tenant.Tenant, req Request) (_ *Result, err error) {
	ctx, span := traces.StartSpan(ctx, "order.Create", traces.TenantID(t.ID))
	defer func() { traces.End(span, err) }()

	if !t.OrdersEnabled {
		return nil, ErrOrdersDisabled
	}
	if err := req.validate(); err != nil {
		return nil, err
	}
	scope := tenant.ScopeOf(t)

	now := s.now().UTC()
	o := &Order{
		ID:                idgen.New(),
		ClientName:        req.ClientName,
		ClientEmail:       req.ClientEmail,
		ClientPhone:       req.ClientPhone,
		Type:              req.Type,
		Items:             []Item{},
		CustomDescription: req.CustomDescription,
		BudgetCents:       req.BudgetCents,
		PickupDate:        req.PickupDate,
		DeliveryMode:      req.DeliveryMode,
		DeliveryAddress:   req.DeliveryAddress,
		Status:            StatusPending,
		PaymentStatus:     PaymentPending,
		Notes:             req.Notes,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if o.PickupDate != nil {
		d := o.PickupDate.UTC()
		o.PickupDate = &d
	}
	if o.Type == TypeCatalogue {
		if o.Items, err = s.price(ctx, scope, req.Items); err != nil {
			return nil, err
		}
		o.TotalCents = ItemsTotal(o.Items)
	}

	if err := s.insert(ctx, scope, o); err != nil {
		return nil, err
	}
	span.SetAttributes(traces.OrderNumber(o.Number))
	metrics.OrdersCreatedTotal.WithLabelValues(string(o.Type)).Inc()

	result := &Result{Order: o}
	if o.Type == TypeCatalogue && s.payable(t, o) {
		url, err := s.checkout(ctx, t, o)
		if err != nil {
			o.Status = StatusCancelled
			if uerr := s.store.Update(ctx, scope, o); uerr != nil {
				logging.L(ctx).Error("failed to cancel order after checkout error", "order_number", o.Number, "error", uerr)
			}
			return nil, err
		}
		result.CheckoutURL = url
	}

	body := fmt.Sprintf("%s a passé la commande %s", o.ClientName, o.Number)
	if o.Type == TypeCustom {
		body = fmt.Sprintf("%s demande un devis (commande %s)", o.ClientName, o.Number)
	}
	s.notify(ctx, scope, notification.TypeNewOrder, "Nouvelle commande", body, "/dashboard/orders/"+o.ID)

	logging.L(ctx).Info("order created",
		"order_number", o.Number, "type", o.Type, "total_cents", o.TotalCents, "checkout", result.CheckoutURL != "")
	return result, nil
}

func (s *Service) price(ctx context.Context, scope tenant.Scope, lines []LineRequest) ([]Item, error) {
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	products, err := s.products.Products(ctx, scope, ids)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	items := make([]Item, 0, len(lines))
	for i, l := range lines {
		p, ok := products[l.ProductID]
		if !ok || !p.IsAvailable {
			return nil, validation.Invalid(fmt.Sprintf("items[%d].productId", i), "is not available")
		}
		items = append(items, Item{
			ProductID:      p.ID,
			ProductName:    p.Name,
			UnitPriceCents: p.PriceCents,
			Quantity:       l.Quantity,
		})
	}
	return items, nil
}

// insert stores o under a fresh order number, retrying on collision.
func (s *Service) insert(ctx context.Context, scope tenant.Scope, o *Order) error {
	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		o.Number = idgen.OrderNumber(o.CreatedAt)
		err := s.store.Create(ctx, scope, o)
		if !errors.Is(err, errDuplicateNumber) {
			if err != nil {
				return fmt.Errorf("create order: %w", err)
			}
			return nil
		}
	}
	return fmt.Errorf("create order: no free order number after %d attempts", maxNumberAttempts)
}

func (s *Service) payable(t *tenant.Tenant, o *Order) bool {
	return o.TotalCents > 0 && o.PaymentStatus == PaymentPending &&
		t.CanAcceptOnlinePayments() && s.payments.Enabled()
}

// checkout opens a hosted payment page and remembers its session.
func (s *Service) checkout(ctx context.Context, t *tenant.Tenant, o *Order) (string, error) {
	base := fmt.Sprintf("%s/%s/commande/%s", s.appURL, t.Slug, o.Number)
	session, err := s.payments.CreateCheckout(ctx, payments.CheckoutRequest{
		ConnectedAccount:    t.Stripe.AccountID,
		AmountCents:         o.TotalCents,
		ProductName:         fmt.Sprintf("Commande %s – %s", o.Number, t.BusinessName),
		CustomerEmail:       o.ClientEmail,
		SuccessURL:          base + "?paid=1",
		CancelURL:           base + "?cancelled=1",
		ApplicationFeeCents: payments.ApplicationFee(o.TotalCents, s.feeBPS),
		Metadata: map[string]string{
			payments.MetaKind:     payments.KindOrder,
			payments.MetaTenantID: t.ID,
			payments.MetaOrderID:  o.ID,
		},
	})
	if err != nil {
		return "", err
	}
	o.StripeSessionID = session.ID
	if err := s.store.SetCheckoutSession(ctx, tenant.ScopeOf(t), o.ID, session.ID); err != nil {
		return "", fmt.Errorf("save checkout session: %w", err)
	}
	return session.URL, nil
}

// ClientOrder returns an order to the client who placed it.
func (s *Service) ClientOrder(ctx context.Context, number, email string) (*Order, error) {
	if strings.TrimSpace(email) == "" {
		return nil, ErrOrderNotFound
	}
	return s.store.FindForClient(ctx, number, email)
}

// AcceptQuote confirms a quoted custom order on the client's behalf. The
// checkout URL is set when the shop takes online payments.
func (s *Service) AcceptQuote(ctx context.Context, number, email string) (*Result, error) {
	o, err := s.ClientOrder(ctx, number, email)
	if err != nil {
		return nil, err
	}
	if o.Type != TypeCustom || o.QuotedPriceCents <= 0 {
		return nil, ErrNoQuote
	}
	if o.Status != StatusPending {
		return nil, ErrInvalidTransition
	}
	t, err := s.tenants.Get(ctx, o.TenantID)
	if err != nil {
		return nil, err
	}
	scope := tenant.ScopeOf(t)

	o.Status = StatusConfirmed
	o.TotalCents = o.QuotedPriceCents
	if err := s.store.Update(ctx, scope, o); err != nil {
		return nil, err
	}

	result := &Result{Order: o}
	if s.payable(t, o) {
		url, err := s.checkout(ctx, t, o)
		if err != nil {
			logging.L(ctx).Warn("quote accepted but checkout failed", "order_number", o.Number, "tenant", t.Slug, "error", err)
		} else {
			result.CheckoutURL = url
		}
	}
	s.notify(ctx, scope, notification.TypeNewOrder, "Devis accepté",
		fmt.Sprintf("%s a accepté le devis de la commande %s", o.ClientName, o.Number), "/dashboard/orders/"+o.ID)
	return result, nil
}

// Page is one page of the dashboard order list.
type Page struct {
	Orders     []*Order `json:"orders"`
	NextCursor string   `json:"nextCursor,omitempty"`
	HasMore    bool     `json:"hasMore"`
}

// List returns one page of the tenant's orders, optionally filtered by status.
func (s *Service) List(ctx context.Context, scope tenant.Scope, status Status, cursor string, limit int) (*Page, error) {
	if status != "" && !ValidStatus(status) {
		return nil, validation.Invalid("status", "is not a valid order status")
	}
	after, err := pagination.Decode(cursor)
	if err != nil {
		return nil, err
	}
	orders, err := s.store.List(ctx, scope, status, after, limit+1)
	if err != nil {
		return nil, err
	}
	orders, next, more := pagination.ComputePage(orders, limit, (*Order).Key)
	if orders == nil {
		orders = []*Order{}
	}
	return &Page{Orders: orders, NextCursor: next, HasMore: more}, nil
}

func (s *Service) Get(ctx context.Context, scope tenant.Scope, id string) (*Order, error) {
	return s.store.Get(ctx, scope, id)
}

// UpdateStatus moves an order along its fulfilment workflow.
func (s *Service) UpdateStatus(ctx context.Context, scope tenant.Scope, id string, to Status) (*Order, error) {
	if !ValidStatus(to) {
		return nil, validation.Invalid("status", "is not a valid order status")
	}
	o, err := s.store.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(o.Status, to) {
		return nil, ErrInvalidTransition
	}
	from := o.Status
	o.Status = to
	if err := s.store.Update(ctx, scope, o); err != nil {
		return nil, err
	}
	logging.L(ctx).Info("order status changed", "order_number", o.Number, "from", from, "to", to)
	if to == StatusCancelled {
		s.notify(ctx, scope, notification.TypeOrderCancelled, "Commande annulée",
			fmt.Sprintf("La commande %s de %s a été annulée", o.Number, o.ClientName), "/dashboard/orders/"+o.ID)
	}
	return o, nil
}

// Quote prices a pending custom order.
func (s *Service) Quote(ctx context.Context, scope tenant.Scope, id string, priceCents int64) (*Order, error) {
	if err := validation.Validate(validation.Range("priceCents", priceCents, 1, 10_000_000)); err != nil {
		return nil, err
	}
	o, err := s.store.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if o.Type != TypeCustom || o.Status != StatusPending {
		return nil, ErrNotQuotable
	}
	o.QuotedPriceCents = priceCents
	o.TotalCents = priceCents
	if err := s.store.Update(ctx, scope, o); err != nil {
		return nil, err
	}
	return o, nil
}

// SetPaymentStatus records a payment taken outside the platform.
func (s *Service) SetPaymentStatus(ctx context.Context, scope tenant.Scope, id string, status PaymentStatus) (*Order, error) {
	if err := validation.Validate(validation.Required("status", string(status)), validation.OneOf("status", string(status),
		string(PaymentPending), string(PaymentPaid), string(PaymentRefunded))); err != nil {
		return nil, err
	}
	o, err := s.store.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	o.PaymentStatus = status
	if err := s.store.Update(ctx, scope, o); err != nil {
		return nil, err
	}
	return o, nil
}

// MarkPaid records an online payment reported by the payment webhook.
// Replays are no-ops.
func (s *Service) MarkPaid(ctx context.Context, scope tenant.Scope, id, sessionID string) error {
	o, err := s.store.Get(ctx, scope, id)
	if err != nil {
		return err
	}
	if o.PaymentStatus == PaymentPaid {
		return nil
	}
	o.PaymentStatus = PaymentPaid
	if sessionID != "" {
		o.StripeSessionID = sessionID
	}
	if err := s.store.Update(ctx, scope, o); err != nil {
		return err
	}
	s.notify(ctx, scope, notification.TypePaymentReceived, "Paiement reçu",
		fmt.Sprintf("La commande %s a été réglée (%.2f €)", o.Number, float64(o.TotalCents)/100),
		"/dashboard/orders/"+o.ID)
	return nil
}

// Count is the platform-wide total, for the superadmin dashboard.
func (s *Service) Count(ctx context.Context) (int, error) {
	return s.store.Count(ctx)
}

func (s *Service) notify(ctx context.Context, scope tenant.Scope, kind notification.Type, title, body, link string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, scope, kind, title, body, link); err != nil {
		logging.L(ctx).Warn("notification failed", "type", kind, "error", err)
	}
}
