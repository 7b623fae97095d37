package orders

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/Kavyam172/E-commerce-FSE/internal/cart"
	"github.com/Kavyam172/E-commerce-FSE/internal/checkout"
)

var (
	ErrIdempotencyKeyNotFound = errors.New("idempotency key not found")
	ErrIdempotencyKeyConflict = errors.New("idempotency key already claimed")
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

// StoredOrder is the persisted order row plus the idempotency key that
// produced it.
type StoredOrder struct {
	checkout.Order
	IdempotencyKey string
}

type OutboxEvent struct {
	ID          int64
	AggregateID string
	EventType   string
	Payload     []byte
}

// Repository persists orders and their outbox events. An order is created in
// its submitted state before the charge and confirmed or failed afterwards;
// the unique idempotency-key index makes the pending insert the claim that
// keeps concurrent duplicates away from the payment processor.
type Repository interface {
	GetOrderByIdempotencyKey(ctx context.Context, key string) (*StoredOrder, error)
	// CreatePendingOrder inserts the order in its submitted state, claiming
	// its idempotency key. A second insert with the same key fails with
	// ErrIdempotencyKeyConflict.
	CreatePendingOrder(ctx context.Context, order *StoredOrder) error
	// ConfirmOrder records the successful charge and the outbox event in one
	// transaction, so an order can never be confirmed without its event.
	ConfirmOrder(ctx context.Context, orderID, paymentReference, eventType string, eventPayload []byte) error
	// FailOrder marks the order failed after a declined or errored charge.
	// The key stays claimed; a retry needs a fresh key.
	FailOrder(ctx context.Context, orderID string) error
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error
	Close() error
}

type SQLRepository struct {
	db *sql.DB
}

func NewRepository(cred *Credentials) (*SQLRepository, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)
	return &SQLRepository{db: db}, nil
}

func (r *SQLRepository) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

func (r *SQLRepository) Close() error {
	return r.db.Close()
}

type orderLineJSON struct {
	ProductID string `json:"product_id"`
	UnitPrice string `json:"unit_price"`
	Quantity  int    `json:"quantity"`
}

func encodeLines(lines []cart.LineItem) ([]byte, error) {
	out := make([]orderLineJSON, 0, len(lines))
	for _, li := range lines {
		out = append(out, orderLineJSON{
			ProductID: li.ProductID,
			UnitPrice: li.UnitPrice.String(),
			Quantity:  li.Quantity,
		})
	}
	return json.Marshal(out)
}

func decodeLines(data []byte) ([]cart.LineItem, error) {
	var raw []orderLineJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal order lines: %w", err)
	}
	out := make([]cart.LineItem, 0, len(raw))
	for _, l := range raw {
		p, err := decimal.NewFromString(l.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("order line price for %q: %w", l.ProductID, err)
		}
		out = append(out, cart.LineItem{ProductID: l.ProductID, UnitPrice: p, Quantity: l.Quantity})
	}
	return out, nil
}

func (r *SQLRepository) GetOrderByIdempotencyKey(ctx context.Context, key string) (*StoredOrder, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, idempotency_key, status, subtotal, tax,
		       shipping_cost, grand_total, shipping_address, payment_reference,
		       items, created_at
		FROM orders
		WHERE idempotency_key = $1`, key)

	var (
		o            StoredOrder
		status       string
		subtotal     string
		tax          string
		shippingCost string
		grandTotal   string
		shipJSON     []byte
		itemsJSON    []byte
	)
	err := row.Scan(&o.ID, &o.UserID, &o.IdempotencyKey, &status, &subtotal,
		&tax, &shippingCost, &grandTotal, &shipJSON, &o.PaymentReference,
		&itemsJSON, &o.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrIdempotencyKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query order by idempotency key: %w", err)
	}

	o.Status = checkout.Status(status)
	if o.Subtotal, err = decimal.NewFromString(subtotal); err != nil {
		return nil, fmt.Errorf("stored subtotal: %w", err)
	}
	if o.Tax, err = decimal.NewFromString(tax); err != nil {
		return nil, fmt.Errorf("stored tax: %w", err)
	}
	if o.ShippingCost, err = decimal.NewFromString(shippingCost); err != nil {
		return nil, fmt.Errorf("stored shipping cost: %w", err)
	}
	if o.GrandTotal, err = decimal.NewFromString(grandTotal); err != nil {
		return nil, fmt.Errorf("stored grand total: %w", err)
	}
	if err := json.Unmarshal(shipJSON, &o.ShippingAddress); err != nil {
		return nil, fmt.Errorf("stored shipping address: %w", err)
	}
	if o.Lines, err = decodeLines(itemsJSON); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *SQLRepository) CreatePendingOrder(ctx context.Context, order *StoredOrder) error {
	itemsJSON, err := encodeLines(order.Lines)
	if err != nil {
		return fmt.Errorf("encode order lines: %w", err)
	}
	shipJSON, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return fmt.Errorf("encode shipping address: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, idempotency_key, status, subtotal,
		                    tax, shipping_cost, grand_total, shipping_address,
		                    payment_reference, items, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		order.ID, order.UserID, order.IdempotencyKey, string(order.Status),
		order.Subtotal.String(), order.Tax.String(), order.ShippingCost.String(),
		order.GrandTotal.String(), shipJSON, order.PaymentReference, itemsJSON,
		order.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return ErrIdempotencyKeyConflict
		}
		return fmt.Errorf("failed to insert pending order: %w", err)
	}
	return nil
}

func (r *SQLRepository) ConfirmOrder(ctx context.Context, orderID, paymentReference, eventType string, eventPayload []byte) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $1, payment_reference = $2
		WHERE id = $3`,
		string(checkout.StatusConfirmed), paymentReference, orderID)
	if err != nil {
		return fmt.Errorf("failed to confirm order: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO outbox_events (aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4)`,
		orderID, eventType, eventPayload, time.Now())
	if err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit order confirmation: %w", err)
	}
	return nil
}

func (r *SQLRepository) FailOrder(ctx context.Context, orderID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $1
		WHERE id = $2`,
		string(checkout.StatusFailed), orderID)
	if err != nil {
		return fmt.Errorf("failed to mark order failed: %w", err)
	}
	return nil
}

func (r *SQLRepository) GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, aggregate_id, event_type, payload
		FROM outbox_events
		WHERE processed = FALSE
		ORDER BY id
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query unprocessed events: %w", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		var e OutboxEvent
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.EventType, &e.Payload); err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

func (r *SQLRepository) MarkEventAsProcessed(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE outbox_events
		SET processed = TRUE, processed_at = NOW()
		WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to mark event as processed: %w", err)
	}
	return nil
}
