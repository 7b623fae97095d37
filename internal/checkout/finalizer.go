// Package checkout converts a cart into an immutable order snapshot, at most
// once per draft. Unlike the best-effort cart sync, a failed submission is
// fatal to the attempt: the cart is left untouched and the user must resubmit
// explicitly.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Kavyam172/E-commerce-FSE/internal/cart"
)

var (
	ErrEmptyCart        = errors.New("cart is empty, nothing to checkout")
	ErrCheckoutInFlight = errors.New("a checkout for this cart is already submitted")
)

// Submission is what the finalizer hands to the payment/checkout collaborator.
type Submission struct {
	UserID     string
	Lines      []cart.LineItem
	Subtotal   decimal.Decimal
	Tax        decimal.Decimal
	Shipping   decimal.Decimal
	GrandTotal decimal.Decimal
	ShipTo     ShippingInfo
	Payment    PaymentInfo
}

// Receipt is the collaborator's acknowledgment of a successful submission.
type Receipt struct {
	OrderID          string
	PaymentReference string
}

// Gateway is the external checkout/payment collaborator. It is called exactly
// once per finalize attempt and never retried automatically.
type Gateway interface {
	SubmitOrder(ctx context.Context, sub Submission) (*Receipt, error)
}

type Finalizer struct {
	gateway      Gateway
	taxRate      decimal.Decimal
	shippingCost decimal.Decimal

	mu       sync.Mutex
	inFlight bool
}

func NewFinalizer(gateway Gateway, taxRate, shippingCost decimal.Decimal) *Finalizer {
	return &Finalizer{
		gateway:      gateway,
		taxRate:      taxRate,
		shippingCost: shippingCost,
	}
}

// Finalize validates the draft, submits it once, and on confirmation returns
// the order snapshot and clears the source cart. The cart is only cleared
// after the collaborator confirms, so a failed submission loses nothing.
// A second Finalize while one is submitted is rejected with
// ErrCheckoutInFlight rather than producing a duplicate order.
func (f *Finalizer) Finalize(ctx context.Context, c *cart.Cart, shipping ShippingInfo, payment PaymentInfo) (*Order, error) {
	if c.Len() == 0 {
		return nil, ErrEmptyCart
	}
	if err := Validate(shipping, payment); err != nil {
		return nil, err
	}

	f.mu.Lock()
	if f.inFlight {
		f.mu.Unlock()
		return nil, ErrCheckoutInFlight
	}
	f.inFlight = true
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight = false
		f.mu.Unlock()
	}()

	lines := c.Items()
	subtotal := c.Total()
	tax := subtotal.Mul(f.taxRate).Round(2)
	grandTotal := subtotal.Add(tax).Add(f.shippingCost)

	receipt, err := f.gateway.SubmitOrder(ctx, Submission{
		UserID:     c.UserID,
		Lines:      lines,
		Subtotal:   subtotal,
		Tax:        tax,
		Shipping:   f.shippingCost,
		GrandTotal: grandTotal,
		ShipTo:     shipping,
		Payment:    payment,
	})
	if err != nil {
		return nil, fmt.Errorf("checkout submission failed: %w", err)
	}

	orderID := receipt.OrderID
	if orderID == "" {
		orderID = uuid.NewString()
	}

	order := &Order{
		ID:               orderID,
		UserID:           c.UserID,
		Lines:            lines,
		Subtotal:         subtotal,
		Tax:              tax,
		ShippingCost:     f.shippingCost,
		GrandTotal:       grandTotal,
		ShippingAddress:  shipping,
		PaymentReference: receipt.PaymentReference,
		Status:           StatusConfirmed,
		CreatedAt:        time.Now(),
	}

	c.Clear()
	return order, nil
}
