package cache

import (
	"context"
	"errors"

	"github.com/Kavyam172/E-commerce-FSE/internal/cart"
)

type CartCache interface {
	Get(ctx context.Context, userID string) (*cart.Cart, error)
	Set(ctx context.Context, userID string, c *cart.Cart) error
	Delete(ctx context.Context, userID string) error
}

var ErrCacheMiss = errors.New("cache miss")
