package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/Kavyam172/E-commerce-FSE/internal/auth"
	"github.com/Kavyam172/E-commerce-FSE/internal/cart"
)

// CartService is the slice of the cart service the handlers need.
type CartService interface {
	GetCart(ctx context.Context, userID string) (*cart.Cart, error)
	AddItem(ctx context.Context, userID, productID string, unitPrice decimal.Decimal, qty int) error
	ReduceItem(ctx context.Context, userID, productID string, qty int) error
	RemoveItem(ctx context.Context, userID, productID string) error
	ClearCart(ctx context.Context, userID string) error
}

type CartHandler struct {
	service CartService
	timeout time.Duration
}

func NewCartHandler(service CartService, timeout time.Duration) *CartHandler {
	return &CartHandler{
		service: service,
		timeout: timeout,
	}
}

// deltaRequestDTO is one signed cart mutation. unit_price rides along on
// additions so the server can price a line it has never seen.
type deltaRequestDTO struct {
	UserID    string `json:"userid"`
	ProductID string `json:"productid"`
	Quantity  int    `json:"quantity,omitempty"`
	UnitPrice string `json:"unit_price,omitempty"`
}

type cartItemDTO struct {
	ProductID string `json:"product_id"`
	UnitPrice string `json:"unit_price"`
	Quantity  int    `json:"quantity"`
}

type cartDTO struct {
	UserID string        `json:"user_id"`
	Items  []cartItemDTO `json:"items"`
}

func toCartDTO(c *cart.Cart) cartDTO {
	items := make([]cartItemDTO, 0, c.Len())
	for _, li := range c.Items() {
		items = append(items, cartItemDTO{
			ProductID: li.ProductID,
			UnitPrice: li.UnitPrice.String(),
			Quantity:  li.Quantity,
		})
	}
	return cartDTO{UserID: c.UserID, Items: items}
}

// decodeDelta parses and authorizes a delta request. Each delta names its
// user explicitly; a mismatch with the session is rejected rather than
// silently rewritten.
func (h *CartHandler) decodeDelta(w http.ResponseWriter, r *http.Request) (*deltaRequestDTO, bool) {
	sessionUser := auth.UserIDFromContext(r.Context())
	if sessionUser == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return nil, false
	}

	var req deltaRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return nil, false
	}
	if req.UserID != sessionUser {
		respondError(w, http.StatusForbidden, "permission_denied", "cannot modify another user's cart")
		return nil, false
	}
	return &req, true
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	req, ok := h.decodeDelta(w, r)
	if !ok {
		return
	}
	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "productid is required")
		return
	}
	if req.Quantity <= 0 || req.Quantity > 99 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}
	unitPrice, err := decimal.NewFromString(req.UnitPrice)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_price", "unit_price must be a decimal string")
		return
	}

	if err := h.service.AddItem(ctx, req.UserID, req.ProductID, unitPrice, req.Quantity); err != nil {
		handleCartError(ctx, w, err)
		return
	}
	h.respondCart(ctx, w, req.UserID, http.StatusCreated)
}

func (h *CartHandler) ReduceItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	req, ok := h.decodeDelta(w, r)
	if !ok {
		return
	}
	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "productid is required")
		return
	}
	if req.Quantity <= 0 || req.Quantity > 99 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	if err := h.service.ReduceItem(ctx, req.UserID, req.ProductID, req.Quantity); err != nil {
		handleCartError(ctx, w, err)
		return
	}
	h.respondCart(ctx, w, req.UserID, http.StatusOK)
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	req, ok := h.decodeDelta(w, r)
	if !ok {
		return
	}
	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "productid is required")
		return
	}

	if err := h.service.RemoveItem(ctx, req.UserID, req.ProductID); err != nil {
		handleCartError(ctx, w, err)
		return
	}
	h.respondCart(ctx, w, req.UserID, http.StatusOK)
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	req, ok := h.decodeDelta(w, r)
	if !ok {
		return
	}

	if err := h.service.ClearCart(ctx, req.UserID); err != nil {
		handleCartError(ctx, w, err)
		return
	}
	h.respondCart(ctx, w, req.UserID, http.StatusOK)
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionUser := auth.UserIDFromContext(r.Context())
	if sessionUser == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}
	userID := chi.URLParam(r, "userid")
	if userID != sessionUser {
		respondError(w, http.StatusForbidden, "permission_denied", "cannot read another user's cart")
		return
	}

	h.respondCart(ctx, w, userID, http.StatusOK)
}

func (h *CartHandler) respondCart(ctx context.Context, w http.ResponseWriter, userID string, status int) {
	c, err := h.service.GetCart(ctx, userID)
	if err != nil {
		handleCartError(ctx, w, err)
		return
	}
	respondJSON(w, status, toCartDTO(c))
}

// handleCartError maps service errors to responses. The 500 body stays
// generic; the cause is logged with the request ID so the two can be matched
// up later.
func handleCartError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, cart.ErrInvalidQuantity):
		respondError(w, http.StatusBadRequest, "invalid_quantity", err.Error())
	case errors.Is(err, cart.ErrNegativePrice):
		respondError(w, http.StatusBadRequest, "invalid_price", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "timeout", "request timed out")
	default:
		log.Printf("cart request failed, request_id=%v: %v", getRequestID(ctx), err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
