package catalog

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Repository is the port for product persistence. The HTTP layer and the
// cart/payment services depend on this abstraction, not on Mongo directly,
// so tests can use an in-memory implementation.
type Repository interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*Product, error)
	GetBySlug(ctx context.Context, slug string) (*Product, error)
	List(ctx context.Context, activeOnly bool) ([]Product, error)
	Create(ctx context.Context, p *Product) error

	// DecrementStock subtracts qty from the stock of the matched variant.
	// There is no lower-bound guard and no coordination with order updates;
	// callers validate stock beforehand and duplicate confirmations will
	// decrement twice.
	DecrementStock(ctx context.Context, id primitive.ObjectID, size, design string, qty int) error
}
