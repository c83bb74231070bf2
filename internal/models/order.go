// -----------------------------------------------------------------------
// Order - a user's request, owning one or more scenes
// -----------------------------------------------------------------------

package models

import (
	"fmt"
	"time"
)

// OrderStatus is the order lifecycle state.
type OrderStatus string

const (
	OrderStatusOrdered  OrderStatus = "ordered"
	OrderStatusComplete OrderStatus = "complete"
	OrderStatusPurged   OrderStatus = "purged"
)

// OrderSource records where the order was placed.
type OrderSource string

const (
	OrderSourceInternal OrderSource = "internal"
	OrderSourceExternal OrderSource = "external-archive"
)

// Order is a user's request for derived products over one or more scenes.
// One order owns many scenes; scene cleanup is a housekeeping action, never
// a cascade.
type Order struct {
	OrderID     string      `json:"orderid" badgerhold:"index"`
	Status      OrderStatus `json:"status" badgerhold:"index"`
	OrderSource OrderSource `json:"order_source"`

	// Set only for orders that originated from the external archive
	ExternalOrderRef string `json:"external_order_ref,omitempty"`

	RequesterEmail string `json:"requester_email"`
	ContactID      string `json:"contact_id,omitempty"`

	ProductOpts ProductOptions `json:"product_opts"`

	OrderDate      time.Time  `json:"order_date"`
	CompletionDate *time.Time `json:"completion_date,omitempty"`

	// Idempotency guards, each set at most once
	InitialEmailSent    *time.Time `json:"initial_email_sent,omitempty"`
	CompletionEmailSent *time.Time `json:"completion_email_sent,omitempty"`

	Note string `json:"note,omitempty"`
}

// NewOrder creates an internally-sourced order in the ordered state.
func NewOrder(orderID, email string, opts ProductOptions) *Order {
	return &Order{
		OrderID:        orderID,
		Status:         OrderStatusOrdered,
		OrderSource:    OrderSourceInternal,
		RequesterEmail: email,
		ProductOpts:    opts,
		OrderDate:      time.Now(),
	}
}

// NewExternalOrder creates an order imported from the external archive.
func NewExternalOrder(orderID, externalRef, email, contactID string, opts ProductOptions) *Order {
	o := NewOrder(orderID, email, opts)
	o.OrderSource = OrderSourceExternal
	o.ExternalOrderRef = externalRef
	o.ContactID = contactID
	return o
}

// Validate checks order integrity before persistence.
func (o *Order) Validate() error {
	if o.OrderID == "" {
		return fmt.Errorf("order id is required")
	}
	if o.RequesterEmail == "" {
		return fmt.Errorf("requester email is required")
	}
	switch o.Status {
	case OrderStatusOrdered, OrderStatusComplete, OrderStatusPurged:
	default:
		return fmt.Errorf("invalid order status: %s", o.Status)
	}
	if o.OrderSource == OrderSourceExternal && o.ExternalOrderRef == "" {
		return fmt.Errorf("external order requires an external order ref")
	}
	return nil
}

// IsComplete returns true once the order reached the complete state.
func (o *Order) IsComplete() bool {
	return o.Status == OrderStatusComplete
}

// Requester identifies a user known to the system, keyed by the identity the
// external archive reports.
type Requester struct {
	ID        string    `json:"id"`
	Email     string    `json:"email" badgerhold:"index"`
	ContactID string    `json:"contact_id" badgerhold:"index"`
	CreatedAt time.Time `json:"created_at"`
}
