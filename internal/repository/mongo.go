package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Kavyam172/E-commerce-FSE/internal/cart"
)

// itemDoc is the storage shape of a line item. Prices are stored as strings
// so the decimal value survives bson round trips exactly.
type itemDoc struct {
	ProductID string    `bson:"product_id"`
	UnitPrice string    `bson:"unit_price"`
	Quantity  int       `bson:"quantity"`
	AddedAt   time.Time `bson:"added_at"`
}

type cartDoc struct {
	UserID    string    `bson:"user_id"`
	Items     []itemDoc `bson:"items"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func (d *cartDoc) toCart() (*cart.Cart, error) {
	c := cart.New(d.UserID)
	for _, it := range d.Items {
		// The delta update increments first and pulls depleted lines in a
		// second write, so a crash between the two can persist a quantity of
		// zero or below. Such a line is already deleted as far as the user is
		// concerned; skip it and let the next pull clean it up.
		if it.Quantity <= 0 {
			continue
		}
		p, err := decimal.NewFromString(it.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("stored price for %q: %w", it.ProductID, err)
		}
		if err := c.AddItem(it.ProductID, p, it.Quantity); err != nil {
			return nil, fmt.Errorf("stored item %q: %w", it.ProductID, err)
		}
	}
	return c, nil
}

type MongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		collection: db.Collection("carts"),
	}
}

func (m *MongoRepository) GetCart(ctx context.Context, userID string) (*cart.Cart, error) {
	var doc cartDoc

	filter := bson.M{"user_id": userID}
	err := m.collection.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	return doc.toCart()
}

func (m *MongoRepository) ApplyDelta(ctx context.Context, userID, productID string, unitPrice decimal.Decimal, delta int) error {
	now := time.Now()

	// Atomic in-place increment for a line the cart already has.
	filter := bson.M{
		"user_id":          userID,
		"items.product_id": productID,
	}
	update := bson.M{
		"$inc": bson.M{"items.$[elem].quantity": delta},
		"$set": bson.M{"updated_at": now},
	}
	arrayFilters := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{
			bson.M{"elem.product_id": productID},
		},
	})

	result, err := m.collection.UpdateOne(ctx, filter, update, arrayFilters)
	if err != nil {
		return fmt.Errorf("failed to apply delta: %w", err)
	}

	if result.MatchedCount > 0 {
		return m.dropDepletedItems(ctx, userID, now)
	}

	// Unknown line. Reducing what is not there is a no-op.
	if delta <= 0 {
		return nil
	}

	item := itemDoc{
		ProductID: productID,
		UnitPrice: unitPrice.String(),
		Quantity:  delta,
		AddedAt:   now,
	}
	push := bson.M{
		"$push": bson.M{"items": item},
		"$set":  bson.M{"updated_at": now},
		"$setOnInsert": bson.M{
			"user_id":    userID,
			"created_at": now,
		},
	}
	opts := options.Update().SetUpsert(true)
	if _, err := m.collection.UpdateOne(ctx, bson.M{"user_id": userID}, push, opts); err != nil {
		return fmt.Errorf("failed to add new item: %w", err)
	}
	return nil
}

// dropDepletedItems removes every line a delta drove to zero or below, so a
// reduction past empty never leaves a non-positive quantity behind.
func (m *MongoRepository) dropDepletedItems(ctx context.Context, userID string, now time.Time) error {
	filter := bson.M{"user_id": userID}
	update := bson.M{
		"$pull": bson.M{
			"items": bson.M{"quantity": bson.M{"$lte": 0}},
		},
		"$set": bson.M{"updated_at": now},
	}

	if _, err := m.collection.UpdateOne(ctx, filter, update); err != nil {
		return fmt.Errorf("failed to drop depleted items: %w", err)
	}
	return nil
}

func (m *MongoRepository) RemoveItem(ctx context.Context, userID, productID string) error {
	filter := bson.M{"user_id": userID}
	update := bson.M{
		"$pull": bson.M{
			"items": bson.M{"product_id": productID},
		},
		"$set": bson.M{"updated_at": time.Now()},
	}

	// Removal is idempotent: a missing cart or line is still success.
	if _, err := m.collection.UpdateOne(ctx, filter, update); err != nil {
		return fmt.Errorf("failed to remove item: %w", err)
	}
	return nil
}

func (m *MongoRepository) ClearCart(ctx context.Context, userID string) error {
	filter := bson.M{"user_id": userID}
	update := bson.M{
		"$set": bson.M{
			"items":      []itemDoc{},
			"updated_at": time.Now(),
		},
	}

	if _, err := m.collection.UpdateOne(ctx, filter, update); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

func (m *MongoRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(90 * 24 * 60 * 60), // 90 days TTL
		},
	}

	if _, err := m.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}
