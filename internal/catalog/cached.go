package catalog

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pressandpolish/storefront/internal/pkg/cache"
)

// CachedRepository is a read-through cache in front of another Repository.
// Cache failures are logged and degrade to the underlying store, never to
// the caller.
type CachedRepository struct {
	next  Repository
	cache cache.Cache
	ttl   time.Duration
}

func NewCachedRepository(next Repository, c cache.Cache, ttl time.Duration) *CachedRepository {
	return &CachedRepository{next: next, cache: c, ttl: ttl}
}

func (r *CachedRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*Product, error) {
	key := r.cache.GenerateKey("product", id.Hex())

	if raw, err := r.cache.Get(ctx, key); err != nil {
		slog.WarnContext(ctx, "product cache read failed", "key", key, "error", err)
	} else if raw != "" {
		var p Product
		if err := json.Unmarshal([]byte(raw), &p); err == nil {
			return &p, nil
		}
	}

	p, err := r.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(p); err == nil {
		if err := r.cache.Set(ctx, key, string(raw), r.ttl); err != nil {
			slog.WarnContext(ctx, "product cache write failed", "key", key, "error", err)
		}
	}
	return p, nil
}

func (r *CachedRepository) GetBySlug(ctx context.Context, slug string) (*Product, error) {
	return r.next.GetBySlug(ctx, slug)
}

func (r *CachedRepository) List(ctx context.Context, activeOnly bool) ([]Product, error) {
	return r.next.List(ctx, activeOnly)
}

func (r *CachedRepository) Create(ctx context.Context, p *Product) error {
	return r.next.Create(ctx, p)
}

// DecrementStock writes through and drops the cached document so the next
// read sees the new stock count.
func (r *CachedRepository) DecrementStock(ctx context.Context, id primitive.ObjectID, size, design string, qty int) error {
	if err := r.next.DecrementStock(ctx, id, size, design, qty); err != nil {
		return err
	}
	key := r.cache.GenerateKey("product", id.Hex())
	if err := r.cache.Delete(ctx, key); err != nil {
		slog.WarnContext(ctx, "product cache invalidation failed", "key", key, "error", err)
	}
	return nil
}
