package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/Kavyam172/E-commerce-FSE/internal/auth"
	"github.com/Kavyam172/E-commerce-FSE/internal/checkout"
	"github.com/Kavyam172/E-commerce-FSE/internal/orders"
)

// CheckoutProcessor is the slice of the checkout service the handler needs.
type CheckoutProcessor interface {
	Checkout(ctx context.Context, userID, idempotencyKey string, shipping checkout.ShippingInfo, payment checkout.PaymentInfo) (*orders.StoredOrder, error)
}

type OrdersHandler struct {
	checkouts CheckoutProcessor
	timeout   time.Duration
}

func NewOrdersHandler(checkouts CheckoutProcessor, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{
		checkouts: checkouts,
		timeout:   timeout,
	}
}

type checkoutRequestDTO struct {
	UserID   string                `json:"userid"`
	Shipping checkout.ShippingInfo `json:"shipping"`
	Payment  checkout.PaymentInfo  `json:"payment"`
}

type orderResponseDTO struct {
	OrderID          string    `json:"order_id"`
	PaymentReference string    `json:"payment_reference"`
	Status           string    `json:"status"`
	Subtotal         string    `json:"subtotal"`
	Tax              string    `json:"tax"`
	ShippingCost     string    `json:"shipping_cost"`
	GrandTotal       string    `json:"grand_total"`
	CreatedAt        time.Time `json:"created_at"`
}

func (h *OrdersHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionUser := auth.UserIDFromContext(r.Context())
	if sessionUser == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req checkoutRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.UserID != sessionUser {
		respondError(w, http.StatusForbidden, "permission_denied", "cannot check out another user's cart")
		return
	}

	if err := checkout.Validate(req.Shipping, req.Payment); err != nil {
		var vErr *checkout.ValidationError
		if errors.As(err, &vErr) {
			respondJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:   "checkout fields are invalid",
				Code:    "validation_failed",
				Details: vErr.Fields,
			})
			return
		}
		respondError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	idempotencyKey := r.Header.Get("Idempotency-Key")

	order, err := h.checkouts.Checkout(ctx, req.UserID, idempotencyKey, req.Shipping, req.Payment)
	if err != nil {
		handleCheckoutError(ctx, w, err)
		return
	}

	respondJSON(w, http.StatusCreated, orderResponseDTO{
		OrderID:          order.ID,
		PaymentReference: order.PaymentReference,
		Status:           order.Status.String(),
		Subtotal:         order.Subtotal.String(),
		Tax:              order.Tax.String(),
		ShippingCost:     order.ShippingCost.String(),
		GrandTotal:       order.GrandTotal.String(),
		CreatedAt:        order.CreatedAt,
	})
}

func handleCheckoutError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, checkout.ErrEmptyCart):
		respondError(w, http.StatusBadRequest, "empty_cart", "cannot check out an empty cart")
	case errors.Is(err, orders.ErrPaymentDeclined):
		respondError(w, http.StatusPaymentRequired, "payment_declined", "payment was declined")
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "timeout", "request timed out")
	default:
		log.Printf("checkout request failed, request_id=%v: %v", getRequestID(ctx), err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
