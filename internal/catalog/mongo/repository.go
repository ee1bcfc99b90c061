// Package mongo provides the MongoDB-backed implementation of
// catalog.Repository.
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

	"github.com/pressandpolish/storefront/internal/catalog"
)

type Repository struct {
	coll *mongo.Collection
}

func NewRepository(db *mongo.Database) *Repository {
	return &Repository{coll: db.Collection("products")}
}

// EnsureIndexes creates the unique slug index. Idempotent; call on startup.
func (r *Repository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "slug", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("catalog: create slug index: %w", err)
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id primitive.ObjectID) (*catalog.Product, error) {
	var p catalog.Product
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, catalog.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: get product %s: %w", id.Hex(), err)
	}
	return &p, nil
}

func (r *Repository) GetBySlug(ctx context.Context, slug string) (*catalog.Product, error) {
	var p catalog.Product
	err := r.coll.FindOne(ctx, bson.M{"slug": slug}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, catalog.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: get product by slug %q: %w", slug, err)
	}
	return &p, nil
}

func (r *Repository) List(ctx context.Context, activeOnly bool) ([]catalog.Product, error) {
	filter := bson.M{}
	if activeOnly {
		filter["isActive"] = true
	}

	cur, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("catalog: list products: %w", err)
	}
	defer cur.Close(ctx)

	var products []catalog.Product
	if err := cur.All(ctx, &products); err != nil {
		return nil, fmt.Errorf("catalog: decode products: %w", err)
	}
	return products, nil
}

func (r *Repository) Create(ctx context.Context, p *catalog.Product) error {
	p.Normalize()
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}

	if _, err := r.coll.InsertOne(ctx, p); err != nil {
		return fmt.Errorf("catalog: insert product %q: %w", p.Title, err)
	}
	return nil
}

// DecrementStock applies a $inc of -qty to the matched variant using an array
// filter. No floor check — the caller has validated stock against the cart.
func (r *Repository) DecrementStock(ctx context.Context, id primitive.ObjectID, size, design string, qty int) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{
			"$inc": bson.M{"variants.$[v].stock": -qty},
			"$set": bson.M{"updatedAt": time.Now().UTC()},
		},
		options.Update().SetArrayFilters(options.ArrayFilters{
			Filters: []interface{}{bson.M{"v.size": size, "v.design": design}},
		}),
	)
	if err != nil {
		return fmt.Errorf("catalog: decrement stock for %s %s/%s: %w", id.Hex(), size, design, err)
	}
	if res.MatchedCount == 0 {
		return catalog.ErrNotFound
	}
	return nil
}
