package cart

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrItemNotFound    = errors.New("item not found in cart")
	ErrNegativePrice   = errors.New("unit price must not be negative")
)

// LineItem is a single product line. The unit price is snapshotted when the
// item is first added and is not refreshed by later quantity changes.
type LineItem struct {
	ProductID string
	UnitPrice decimal.Decimal
	Quantity  int
}

func (li LineItem) Subtotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Cart holds the line items for one session. Items keep their insertion
// order for display; product ids are unique. Totals are always derived from
// the items, never stored.
//
// A Cart is not safe for concurrent use on its own; callers that share one
// across goroutines must serialize access (see session.Manager).
type Cart struct {
	UserID string // empty for a guest cart
	items  []LineItem
}

func New(userID string) *Cart {
	return &Cart{UserID: userID}
}

// AddItem inserts a new line or increments the quantity of an existing one.
func (c *Cart) AddItem(productID string, unitPrice decimal.Decimal, quantity int) error {
	if quantity < 1 {
		return fmt.Errorf("add %q: %w", productID, ErrInvalidQuantity)
	}
	if unitPrice.IsNegative() {
		return fmt.Errorf("add %q: %w", productID, ErrNegativePrice)
	}

	for i := range c.items {
		if c.items[i].ProductID == productID {
			c.items[i].Quantity += quantity
			return nil
		}
	}

	c.items = append(c.items, LineItem{
		ProductID: productID,
		UnitPrice: unitPrice,
		Quantity:  quantity,
	})
	return nil
}

// ChangeQuantity applies a signed delta to an existing line. A resulting
// quantity of zero or less removes the line; reduction and removal share
// this one code path.
func (c *Cart) ChangeQuantity(productID string, delta int) error {
	for i := range c.items {
		if c.items[i].ProductID != productID {
			continue
		}
		c.items[i].Quantity += delta
		if c.items[i].Quantity <= 0 {
			c.items = append(c.items[:i], c.items[i+1:]...)
		}
		return nil
	}
	return fmt.Errorf("change quantity of %q: %w", productID, ErrItemNotFound)
}

// RemoveItem deletes the line unconditionally. Removing an absent product is
// a successful no-op.
func (c *Cart) RemoveItem(productID string) {
	for i := range c.items {
		if c.items[i].ProductID == productID {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return
		}
	}
}

// Clear empties the cart. Idempotent.
func (c *Cart) Clear() {
	c.items = nil
}

// Get returns the line for productID, if present.
func (c *Cart) Get(productID string) (LineItem, bool) {
	for _, li := range c.items {
		if li.ProductID == productID {
			return li, true
		}
	}
	return LineItem{}, false
}

// Items returns a copy of the lines in insertion order.
func (c *Cart) Items() []LineItem {
	out := make([]LineItem, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Cart) Len() int {
	return len(c.items)
}

// Count is the total number of units across all lines.
func (c *Cart) Count() int {
	n := 0
	for _, li := range c.items {
		n += li.Quantity
	}
	return n
}

// Total is the sum of unit price times quantity across all lines.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, li := range c.items {
		total = total.Add(li.Subtotal())
	}
	return total
}

// Merge adds every line of other into c with AddItem semantics: quantities
// accumulate, they are never overwritten. c keeps its own price snapshot for
// lines both carts share.
func (c *Cart) Merge(other *Cart) {
	if other == nil {
		return
	}
	for _, li := range other.items {
		// AddItem only fails on invalid input, which a well-formed cart
		// cannot contain.
		_ = c.AddItem(li.ProductID, li.UnitPrice, li.Quantity)
	}
}
