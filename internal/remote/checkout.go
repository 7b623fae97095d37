package remote

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Kavyam172/E-commerce-FSE/internal/checkout"
)

type checkoutRequest struct {
	UserID   string                `json:"userid"`
	Shipping checkout.ShippingInfo `json:"shipping"`
	Payment  checkout.PaymentInfo  `json:"payment"`
}

type checkoutResponse struct {
	OrderID          string `json:"order_id"`
	PaymentReference string `json:"payment_reference"`
	Status           string `json:"status"`
}

// SubmitOrder implements checkout.Gateway against the backend's checkout
// endpoint. The backend converts its authoritative copy of the user's cart
// into an order atomically, so the request carries only identity, shipping,
// and payment details. No retry here: payment failures are fatal to the
// attempt and the transient-retry path in do() does not apply.
func (c *Client) SubmitOrder(ctx context.Context, sub checkout.Submission) (*checkout.Receipt, error) {
	payload, err := json.Marshal(checkoutRequest{
		UserID:   sub.UserID,
		Shipping: sub.ShipTo,
		Payment:  sub.Payment,
	})
	if err != nil {
		return nil, fmt.Errorf("encode checkout request: %w", err)
	}

	body, err := c.doOnce(ctx, "POST", "/orders/checkout", payload)
	if err != nil {
		return nil, err
	}

	var resp checkoutResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode checkout response: %w", err)
	}
	return &checkout.Receipt{
		OrderID:          resp.OrderID,
		PaymentReference: resp.PaymentReference,
	}, nil
}
