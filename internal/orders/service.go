// Package orders converts a user's authoritative server-side cart into a
// persisted order, exactly once per idempotency key. The order row and its
// outbox event commit together; a poller publishes the event afterwards.
package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Kavyam172/E-commerce-FSE/internal/cart"
	"github.com/Kavyam172/E-commerce-FSE/internal/checkout"
)

const EventOrderConfirmed = "order.confirmed"

// CartProvider is the slice of the cart service checkout needs.
type CartProvider interface {
	GetCart(ctx context.Context, userID string) (*cart.Cart, error)
	ClearCart(ctx context.Context, userID string) error
}

type CheckoutService struct {
	carts        CartProvider
	repo         Repository
	charger      Charger
	taxRate      decimal.Decimal
	shippingCost decimal.Decimal
}

func NewCheckoutService(carts CartProvider, repo Repository, charger Charger, taxRate, shippingCost decimal.Decimal) *CheckoutService {
	return &CheckoutService{
		carts:        carts,
		repo:         repo,
		charger:      charger,
		taxRate:      taxRate,
		shippingCost: shippingCost,
	}
}

// Checkout drains the user's server-side cart into an order. Repeating a
// request with a known idempotency key returns the already-created order
// instead of charging again. The order is inserted in its submitted state
// before the charge: the unique key index lets exactly one of two concurrent
// requests claim the key, so the loser returns the winner's order without a
// second charge. The cart is cleared only after the confirmation committed,
// so a failed payment or write loses nothing.
func (s *CheckoutService) Checkout(ctx context.Context, userID, idempotencyKey string, shipping checkout.ShippingInfo, payment checkout.PaymentInfo) (*StoredOrder, error) {
	if idempotencyKey != "" {
		existing, err := s.repo.GetOrderByIdempotencyKey(ctx, idempotencyKey)
		if err != nil && !errors.Is(err, ErrIdempotencyKeyNotFound) {
			return nil, fmt.Errorf("failed to check idempotency: %w", err)
		}
		if existing != nil {
			log.Printf("duplicate checkout request, idempotency_key=%v order_id=%v", idempotencyKey, existing.ID)
			return existing, nil
		}
	}

	c, err := s.carts.GetCart(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}
	if c.Len() == 0 {
		return nil, checkout.ErrEmptyCart
	}

	subtotal := c.Total()
	tax := subtotal.Mul(s.taxRate).Round(2)
	grandTotal := subtotal.Add(tax).Add(s.shippingCost)

	order := &StoredOrder{
		Order: checkout.Order{
			ID:              uuid.NewString(),
			UserID:          userID,
			Lines:           c.Items(),
			Subtotal:        subtotal,
			Tax:             tax,
			ShippingCost:    s.shippingCost,
			GrandTotal:      grandTotal,
			ShippingAddress: shipping,
			Status:          checkout.StatusSubmitted,
			CreatedAt:       time.Now(),
		},
		IdempotencyKey: idempotencyKey,
	}

	// Claim the key before touching the payment processor.
	if err := s.repo.CreatePendingOrder(ctx, order); err != nil {
		if errors.Is(err, ErrIdempotencyKeyConflict) && idempotencyKey != "" {
			existing, lookupErr := s.repo.GetOrderByIdempotencyKey(ctx, idempotencyKey)
			if lookupErr != nil {
				return nil, fmt.Errorf("failed to load order for claimed key: %w", lookupErr)
			}
			log.Printf("concurrent duplicate checkout, idempotency_key=%v order_id=%v", idempotencyKey, existing.ID)
			return existing, nil
		}
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	reference, err := s.charger.Charge(ctx, grandTotal, payment)
	if err != nil {
		if failErr := s.repo.FailOrder(ctx, order.ID); failErr != nil {
			log.Printf("failed to mark order failed, order_id=%v: %v", order.ID, failErr)
		}
		return nil, fmt.Errorf("charge failed: %w", err)
	}

	order.PaymentReference = reference
	order.Status = checkout.StatusConfirmed

	payload, err := confirmedEventPayload(order)
	if err != nil {
		return nil, err
	}

	if err := s.repo.ConfirmOrder(ctx, order.ID, reference, EventOrderConfirmed, payload); err != nil {
		// The charge went through but confirmation did not commit. The key
		// stays claimed so a retry cannot charge again; the row sits in its
		// submitted state for reconciliation.
		return nil, fmt.Errorf("failed to confirm order: %w", err)
	}

	// The order is committed; a failed clear leaves a stale cart, which the
	// next mutation or TTL corrects, so it only warrants a log line.
	if err := s.carts.ClearCart(ctx, userID); err != nil {
		log.Printf("failed to clear cart after checkout, user=%v: %v", userID, err)
	}

	return order, nil
}

func confirmedEventPayload(order *StoredOrder) ([]byte, error) {
	type lineJSON struct {
		ProductID string `json:"product_id"`
		UnitPrice string `json:"unit_price"`
		Quantity  int    `json:"quantity"`
	}
	lines := make([]lineJSON, 0, len(order.Lines))
	for _, li := range order.Lines {
		lines = append(lines, lineJSON{
			ProductID: li.ProductID,
			UnitPrice: li.UnitPrice.String(),
			Quantity:  li.Quantity,
		})
	}

	payload, err := json.Marshal(map[string]interface{}{
		"order_id":    order.ID,
		"user_id":     order.UserID,
		"items":       lines,
		"grand_total": order.GrandTotal.String(),
		"created_at":  order.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order event: %w", err)
	}
	return payload, nil
}
