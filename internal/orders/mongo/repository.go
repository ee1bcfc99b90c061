// Package mongo provides the MongoDB-backed implementation of
// orders.Repository.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pressandpolish/storefront/internal/orders"
)

type Repository struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewRepository(db *mongo.Database) *Repository {
	return &Repository{coll: db.Collection("orders"), now: time.Now}
}

// EnsureIndexes creates the lookup indexes. Idempotent; call on startup.
func (r *Repository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "payment.gatewayOrderId", Value: 1}}},
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("orders: create indexes: %w", err)
	}
	return nil
}

func (r *Repository) Create(ctx context.Context, o *orders.Order) error {
	now := r.now()

	// The daily sequence is read-then-write: fetch the newest order since
	// local midnight and increment its suffix. Concurrent checkouts can mint
	// the same number.
	last, err := r.latestOrderNumberSince(ctx, orders.StartOfDay(now))
	if err != nil {
		return err
	}
	o.OrderNumber = orders.NextOrderNumber(last, now)

	if o.ID.IsZero() {
		o.ID = primitive.NewObjectID()
	}
	o.CreatedAt = now.UTC()
	o.UpdatedAt = now.UTC()

	if _, err := r.coll.InsertOne(ctx, o); err != nil {
		return fmt.Errorf("orders: insert order %s: %w", o.OrderNumber, err)
	}
	return nil
}

func (r *Repository) latestOrderNumberSince(ctx context.Context, since time.Time) (string, error) {
	var doc struct {
		OrderNumber string `bson:"orderNumber"`
	}
	err := r.coll.FindOne(ctx,
		bson.M{"createdAt": bson.M{"$gte": since.UTC()}},
		options.FindOne().
			SetSort(bson.D{{Key: "createdAt", Value: -1}}).
			SetProjection(bson.M{"orderNumber": 1}),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("orders: latest order number: %w", err)
	}
	return doc.OrderNumber, nil
}

func (r *Repository) GetByID(ctx context.Context, id primitive.ObjectID) (*orders.Order, error) {
	var o orders.Order
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&o)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, orders.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("orders: get order %s: %w", id.Hex(), err)
	}
	return &o, nil
}

func (r *Repository) GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*orders.Order, error) {
	var o orders.Order
	err := r.coll.FindOne(ctx, bson.M{"payment.gatewayOrderId": gatewayOrderID}).Decode(&o)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, orders.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("orders: get order by gateway id %q: %w", gatewayOrderID, err)
	}
	return &o, nil
}

func (r *Repository) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]orders.Order, error) {
	cur, err := r.coll.Find(ctx,
		bson.M{"userId": userID},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("orders: list orders for user %s: %w", userID.Hex(), err)
	}
	defer cur.Close(ctx)

	var out []orders.Order
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("orders: decode orders: %w", err)
	}
	return out, nil
}

func (r *Repository) UpdateStatus(ctx context.Context, id primitive.ObjectID, status orders.Status) error {
	return r.updateOne(ctx, id, bson.M{
		"status":    status,
		"updatedAt": r.now().UTC(),
	})
}

func (r *Repository) SetGatewayOrder(ctx context.Context, id primitive.ObjectID, gatewayOrderID, method string) error {
	return r.updateOne(ctx, id, bson.M{
		"payment.gatewayOrderId": gatewayOrderID,
		"payment.method":         method,
		"updatedAt":              r.now().UTC(),
	})
}

func (r *Repository) MarkPaid(ctx context.Context, id primitive.ObjectID, paymentID string, paidAt time.Time) error {
	return r.updateOne(ctx, id, bson.M{
		"status":            orders.StatusConfirmed,
		"payment.status":    orders.PaymentPaid,
		"payment.paymentId": paymentID,
		"payment.paidAt":    paidAt.UTC(),
		"updatedAt":         r.now().UTC(),
	})
}

func (r *Repository) MarkPaymentFailed(ctx context.Context, id primitive.ObjectID, reason string) error {
	return r.updateOne(ctx, id, bson.M{
		"status":                orders.StatusCancelled,
		"payment.status":        orders.PaymentFailed,
		"payment.failureReason": reason,
		"updatedAt":             r.now().UTC(),
	})
}

func (r *Repository) updateOne(ctx context.Context, id primitive.ObjectID, set bson.M) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("orders: update order %s: %w", id.Hex(), err)
	}
	if res.MatchedCount == 0 {
		return orders.ErrNotFound
	}
	return nil
}
