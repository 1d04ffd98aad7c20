// Package order handles storefront orders: catalogue orders priced from the
// shop's products and custom orders that the patissier quotes.
package order

import (
	"errors"
	"fmt"
	"time"

	"github.com/patissio/patissio/internal/apierror"
	"github.com/patissio/patissio/internal/pagination"
)

var (
	ErrOrderNotFound     = fmt.Errorf("order %w", apierror.ErrNotFound)
	ErrOrdersDisabled    = apierror.New("orders_disabled", "this shop does not take orders", apierror.ErrForbidden)
	ErrInvalidTransition = apierror.New("invalid_transition", "order status change not allowed", apierror.ErrConflict)
	ErrNotQuotable       = apierror.New("not_quotable", "only pending custom orders can be quoted", apierror.ErrConflict)
	ErrNoQuote           = apierror.New("no_quote", "this order has no quote to accept", apierror.ErrConflict)

	// errDuplicateNumber is returned by stores when the order number is taken.
	errDuplicateNumber = errors.New("order: duplicate order number")
)

// Type distinguishes catalogue orders from custom (quoted) orders.
type Type string

const (
	TypeCatalogue Type = "catalogue"
	TypeCustom    Type = "custom"
)

type DeliveryMode string

const (
	DeliveryPickup   DeliveryMode = "pickup"
	DeliveryDelivery DeliveryMode = "delivery"
)

// Status is the fulfilment state of an order.
type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusInProgress Status = "in_progress"
	StatusReady      Status = "ready"
	StatusDelivered  Status = "delivered"
	StatusPickedUp   Status = "picked_up"
	StatusCancelled  Status = "cancelled"
)

var transitions = map[Status][]Status{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusReady, StatusCancelled},
	StatusReady:      {StatusDelivered, StatusPickedUp, StatusCancelled},
}

// ValidStatus reports whether s is a known status.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusInProgress, StatusReady,
		StatusDelivered, StatusPickedUp, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

// Item is one catalogue line, priced when the order was placed.
type Item struct {
	ProductID      string `json:"productId"`
	ProductName    string `json:"productName"`
	UnitPriceCents int64  `json:"unitPriceCents"`
	Quantity       int    `json:"quantity"`
}

// Order is a client's order at one shop.
type Order struct {
	ID                string        `json:"id"`
	Number            string        `json:"orderNumber"`
	TenantID          string        `json:"patissierId"`
	ClientName        string        `json:"clientName"`
	ClientEmail       string        `json:"clientEmail"`
	ClientPhone       string        `json:"clientPhone,omitempty"`
	Type              Type          `json:"type"`
	Items             []Item        `json:"items"`
	CustomDescription string        `json:"customDescription,omitempty"`
	BudgetCents       int64         `json:"budgetCents,omitempty"`
	QuotedPriceCents  int64         `json:"quotedPriceCents,omitempty"`
	TotalCents        int64         `json:"totalCents"`
	PickupDate        *time.Time    `json:"pickupDate,omitempty"`
	DeliveryMode      DeliveryMode  `json:"deliveryMode"`
	DeliveryAddress   string        `json:"deliveryAddress,omitempty"`
	Status            Status        `json:"status"`
	PaymentStatus     PaymentStatus `json:"paymentStatus"`
	StripeSessionID   string        `json:"-"`
	Notes             string        `json:"notes,omitempty"`
	CreatedAt         time.Time     `json:"createdAt"`
	UpdatedAt         time.Time     `json:"updatedAt"`
}

// Key is the listing sort key, newest first.
func (o *Order) Key() pagination.Cursor {
	return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
}

// ItemsTotal sums the catalogue lines.
func ItemsTotal(items []Item) int64 {
	var total int64
	for _, it := range items {
		total += it.UnitPriceCents * int64(it.Quantity)
	}
	return total
}
