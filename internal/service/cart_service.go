package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/Kavyam172/E-commerce-FSE/internal/cache"
	"github.com/Kavyam172/E-commerce-FSE/internal/cart"
	"github.com/Kavyam172/E-commerce-FSE/internal/repository"
)

// CartService is the backend's cart use-case layer: reads are cache-aside,
// writes go straight to the repository as signed deltas and invalidate the
// cache. A user with no cart row reads as an empty cart.
type CartService struct {
	repo  repository.CartRepository
	cache cache.CartCache
	sfg   singleflight.Group // Prevents cache stampede
}

func NewCartService(repo repository.CartRepository, cartCache cache.CartCache) *CartService {
	return &CartService{
		repo:  repo,
		cache: cartCache,
	}
}

func (s *CartService) GetCart(ctx context.Context, userID string) (*cart.Cart, error) {
	// Use singleflight to prevent multiple concurrent cache misses for same key
	v, err, _ := s.sfg.Do(userID, func() (interface{}, error) {

		c, err := s.cache.Get(ctx, userID)
		if err == nil {
			return c, nil // cart is in cache
		}

		if !errors.Is(err, cache.ErrCacheMiss) {
			log.Printf("cache get error: %v", err) // log cache error but continue
		}

		c, errGet := s.repo.GetCart(ctx, userID)
		if errGet != nil && errors.Is(errGet, repository.ErrCartNotFound) {
			return cart.New(userID), nil // not found reads as empty
		}
		if errGet != nil {
			return nil, errGet
		}

		// set cache
		go func() {
			if errSet := s.cache.Set(context.Background(), userID, c); errSet != nil {
				log.Printf("cache set error: %v", errSet)
			}
		}()

		return c, nil
	})

	if err != nil {
		return nil, err
	}

	return v.(*cart.Cart), nil
}

// AddItem applies a positive delta, inserting the line at the carried price
// snapshot when the cart has not seen the product yet.
func (s *CartService) AddItem(ctx context.Context, userID, productID string, unitPrice decimal.Decimal, qty int) error {
	if qty < 1 {
		return cart.ErrInvalidQuantity
	}
	if unitPrice.IsNegative() {
		return cart.ErrNegativePrice
	}

	if err := s.repo.ApplyDelta(ctx, userID, productID, unitPrice, qty); err != nil {
		log.Printf("repo apply delta error: %v", err)
		return err
	}

	s.invalidateCache(userID)
	return nil
}

// ReduceItem applies a negative delta; the repository removes lines that
// reach zero. Reducing an absent line is a no-op.
func (s *CartService) ReduceItem(ctx context.Context, userID, productID string, qty int) error {
	if qty < 1 {
		return cart.ErrInvalidQuantity
	}

	if err := s.repo.ApplyDelta(ctx, userID, productID, decimal.Zero, -qty); err != nil {
		log.Printf("repo apply delta error: %v", err)
		return err
	}

	s.invalidateCache(userID)
	return nil
}

func (s *CartService) RemoveItem(ctx context.Context, userID, productID string) error {
	if err := s.repo.RemoveItem(ctx, userID, productID); err != nil {
		log.Printf("repo remove item error: %v", err)
		return err
	}

	s.invalidateCache(userID)
	return nil
}

func (s *CartService) ClearCart(ctx context.Context, userID string) error {
	if err := s.repo.ClearCart(ctx, userID); err != nil {
		log.Printf("repo clear cart error: %v", err)
		return err
	}

	s.invalidateCache(userID)
	return nil
}

func (s *CartService) invalidateCache(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, userID); err != nil {
		log.Printf("cache invalidate error: %v", err)
	}
}
