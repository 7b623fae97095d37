// Package snapshot persists a serialized copy of the session cart to a
// durable local slot. Persistence is best-effort: a missing or corrupt
// snapshot loads as an empty cart, and a failed save is logged rather than
// surfaced, because the in-memory cart stays authoritative for the session.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Kavyam172/E-commerce-FSE/internal/cart"
)

const formatVersion = 1

type Store interface {
	// Load returns the persisted cart, or an empty cart when no usable
	// snapshot exists.
	Load(ctx context.Context) *cart.Cart
	// Save writes the cart snapshot. Failures are logged by the
	// implementation and never returned.
	Save(ctx context.Context, c *cart.Cart)
}

type itemDocument struct {
	ProductID string `json:"product_id"`
	UnitPrice string `json:"unit_price"`
	Quantity  int    `json:"quantity"`
}

type cartDocument struct {
	Version int            `json:"version"`
	UserID  string         `json:"user_id,omitempty"`
	Items   []itemDocument `json:"items"`
}

// Encode serializes a cart into the versioned snapshot format. Prices travel
// as strings so the decimal representation survives the round trip exactly.
func Encode(c *cart.Cart) ([]byte, error) {
	doc := cartDocument{
		Version: formatVersion,
		UserID:  c.UserID,
	}
	for _, li := range c.Items() {
		doc.Items = append(doc.Items, itemDocument{
			ProductID: li.ProductID,
			UnitPrice: li.UnitPrice.String(),
			Quantity:  li.Quantity,
		})
	}
	return json.Marshal(doc)
}

// Decode parses a snapshot back into a cart. Any malformed line makes the
// whole snapshot unusable.
func Decode(data []byte) (*cart.Cart, error) {
	var doc cartDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}

	c := cart.New(doc.UserID)
	for _, it := range doc.Items {
		p, err := decimal.NewFromString(it.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("snapshot price for %q: %w", it.ProductID, err)
		}
		if err := c.AddItem(it.ProductID, p, it.Quantity); err != nil {
			return nil, fmt.Errorf("snapshot item %q: %w", it.ProductID, err)
		}
	}
	return c, nil
}
