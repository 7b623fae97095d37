// Package session owns the cart for one interactive storefront session.
// Every mutation runs local-first: the in-memory cart changes, the snapshot
// is written synchronously, and only then is a best-effort sync dispatched to
// the backend. A page reload right after a mutation therefore never loses it,
// even when the network call is still in flight or fails. Mutations on the
// same cart are serialized by the manager's mutex; the remote store is
// eventually consistent.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Kavyam172/E-commerce-FSE/internal/auth"
	"github.com/Kavyam172/E-commerce-FSE/internal/cart"
	"github.com/Kavyam172/E-commerce-FSE/internal/checkout"
	"github.com/Kavyam172/E-commerce-FSE/internal/snapshot"
)

// Syncer mirrors the backend's delta-based cart endpoints. Each call is
// idempotent at the business level; the implementation retries transient
// failures once before reporting an error.
type Syncer interface {
	SyncAdd(ctx context.Context, userID, productID string, qty int, unitPrice decimal.Decimal) error
	SyncReduce(ctx context.Context, userID, productID string, qty int) error
	SyncRemove(ctx context.Context, userID, productID string) error
	SyncClear(ctx context.Context, userID string) error
	FetchCart(ctx context.Context, userID string) (*cart.Cart, error)
}

type Manager struct {
	mu        sync.Mutex
	cart      *cart.Cart
	store     snapshot.Store
	syncer    Syncer
	identity  auth.Identity
	finalizer *checkout.Finalizer

	syncTimeout time.Duration
	warn        func(error)
}

type Option func(*Manager)

// WithWarnFunc routes non-blocking sync warnings somewhere other than the log.
func WithWarnFunc(fn func(error)) Option {
	return func(m *Manager) { m.warn = fn }
}

func WithSyncTimeout(d time.Duration) Option {
	return func(m *Manager) { m.syncTimeout = d }
}

// NewManager hydrates the cart from the persisted snapshot and wires in the
// collaborators. identity is consulted at the time of every remote sync, not
// cached, because the session can expire mid-cart-session.
func NewManager(store snapshot.Store, syncer Syncer, identity auth.Identity, finalizer *checkout.Finalizer, opts ...Option) *Manager {
	m := &Manager{
		cart:        store.Load(context.Background()),
		store:       store,
		syncer:      syncer,
		identity:    identity,
		finalizer:   finalizer,
		syncTimeout: 10 * time.Second,
		warn: func(err error) {
			log.Printf("cart sync warning: %v", err)
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) AddItem(ctx context.Context, productID string, unitPrice decimal.Decimal, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.cart.AddItem(productID, unitPrice, quantity); err != nil {
		return err
	}
	m.store.Save(ctx, m.cart)

	m.sync(ctx, func(ctx context.Context, userID string) error {
		return m.syncer.SyncAdd(ctx, userID, productID, quantity, unitPrice)
	})
	return nil
}

func (m *Manager) ChangeQuantity(ctx context.Context, productID string, delta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.cart.ChangeQuantity(productID, delta); err != nil {
		return err
	}
	m.store.Save(ctx, m.cart)

	m.sync(ctx, func(ctx context.Context, userID string) error {
		if delta >= 0 {
			li, ok := m.cart.Get(productID)
			if !ok {
				return nil
			}
			return m.syncer.SyncAdd(ctx, userID, productID, delta, li.UnitPrice)
		}
		return m.syncer.SyncReduce(ctx, userID, productID, -delta)
	})
	return nil
}

// RemoveItem deletes the line locally and remotely. Absent items are a
// successful no-op on both sides.
func (m *Manager) RemoveItem(ctx context.Context, productID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cart.RemoveItem(productID)
	m.store.Save(ctx, m.cart)

	m.sync(ctx, func(ctx context.Context, userID string) error {
		return m.syncer.SyncRemove(ctx, userID, productID)
	})
}

func (m *Manager) Clear(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cart.Clear()
	m.store.Save(ctx, m.cart)

	m.sync(ctx, func(ctx context.Context, userID string) error {
		return m.syncer.SyncClear(ctx, userID)
	})
}

func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cart.Count()
}

func (m *Manager) Total() decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cart.Total()
}

func (m *Manager) Items() []cart.LineItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cart.Items()
}

// Login merges the guest cart into the freshly fetched remote cart: local
// quantities are added on top of remote ones, never overwritten. The merged
// result becomes the session cart and the local-only lines are uploaded so
// the backend converges.
func (m *Manager) Login(ctx context.Context, userID string) error {
	if userID == "" {
		return errors.New("login requires a user id")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	remoteCart, err := m.syncer.FetchCart(ctx, userID)
	if err != nil {
		return fmt.Errorf("fetch remote cart: %w", err)
	}

	local := m.cart
	remoteCart.UserID = userID
	remoteCart.Merge(local)

	m.cart = remoteCart
	m.store.Save(ctx, m.cart)

	// Upload the guest lines so the remote copy converges with the merge.
	for _, li := range local.Items() {
		li := li
		m.sync(ctx, func(ctx context.Context, id string) error {
			return m.syncer.SyncAdd(ctx, id, li.ProductID, li.Quantity, li.UnitPrice)
		})
	}
	return nil
}

// Logout clears the session cart, per explicit user intent. A lapsed session
// is different: the identity gate reverts to anonymous on its own and the
// items stay in the snapshot untouched.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cart = cart.New("")
	m.store.Save(ctx, m.cart)
}

// Checkout finalizes the current cart into an order. On confirmation the
// cleared cart is persisted and a best-effort remote clear is dispatched;
// on failure the cart and snapshot are untouched.
func (m *Manager) Checkout(ctx context.Context, shipping checkout.ShippingInfo, payment checkout.PaymentInfo) (*checkout.Order, error) {
	if m.finalizer == nil {
		return nil, errors.New("checkout is not configured for this session")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.cart.UserID = m.identity.CurrentUserID(ctx)

	order, err := m.finalizer.Finalize(ctx, m.cart, shipping, payment)
	if err != nil {
		return nil, err
	}

	m.store.Save(ctx, m.cart)
	m.sync(ctx, func(ctx context.Context, userID string) error {
		return m.syncer.SyncClear(ctx, userID)
	})
	return order, nil
}

// sync runs one best-effort remote call for the current identity. Guests
// skip the network entirely; failures become non-blocking warnings and never
// roll back the local mutation.
func (m *Manager) sync(ctx context.Context, call func(ctx context.Context, userID string) error) {
	userID := m.identity.CurrentUserID(ctx)
	if userID == "" {
		return
	}

	syncCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.syncTimeout)
	defer cancel()

	if err := call(syncCtx, userID); err != nil {
		m.warn(err)
	}
}
