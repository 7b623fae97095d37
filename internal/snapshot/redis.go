package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Kavyam172/E-commerce-FSE/internal/cart"
)

// RedisStore keeps the snapshot in a Redis key, for storefront processes
// that already have a Redis at hand. Same best-effort contract as FileStore.
type RedisStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, sessionKey string) *RedisStore {
	return &RedisStore{
		client: client,
		key:    snapshotKey(sessionKey),
		ttl:    90 * 24 * time.Hour,
	}
}

func (s *RedisStore) Load(ctx context.Context) *cart.Cart {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("snapshot load error: %v", err)
		}
		return cart.New("")
	}

	c, err := Decode(data)
	if err != nil {
		log.Printf("snapshot corrupt, starting empty: %v", err)
		return cart.New("")
	}
	return c
}

func (s *RedisStore) Save(ctx context.Context, c *cart.Cart) {
	data, err := Encode(c)
	if err != nil {
		log.Printf("snapshot encode error: %v", err)
		return
	}

	if err := s.client.Set(ctx, s.key, data, s.ttl).Err(); err != nil {
		log.Printf("snapshot save error: %v", err)
	}
}

func snapshotKey(sessionKey string) string {
	return fmt.Sprintf("cart-snapshot:%s", sessionKey)
}
