package repository

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/Kavyam172/E-commerce-FSE/internal/cart"
)

var (
	ErrCartNotFound = errors.New("cart not found")
	ErrItemNotFound = errors.New("item not found in cart")
)

// CartRepository is the authoritative server-side cart store. The contract is
// delta-based: clients send signed quantity deltas and the store applies them
// atomically. It never accepts an absolute quantity from a client, which is
// what makes repeated syncs of the same delta safe.
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (*cart.Cart, error)
	// ApplyDelta adds delta units of productID to the user's cart. A positive
	// delta on an unknown line inserts it with the given unit price; a line
	// whose quantity drops to zero or below is removed. A negative delta on
	// an absent line is a no-op.
	ApplyDelta(ctx context.Context, userID, productID string, unitPrice decimal.Decimal, delta int) error
	// RemoveItem deletes the line unconditionally; absent lines and absent
	// carts are a successful no-op.
	RemoveItem(ctx context.Context, userID, productID string) error
	// ClearCart empties the user's cart; idempotent.
	ClearCart(ctx context.Context, userID string) error
}
