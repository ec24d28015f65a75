package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"mini-shop/product-service/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var cacheLookupsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "product_cache_lookups_total",
		Help: "Product cache lookups by result",
	},
	[]string{"result"},
)

func init() {
	prometheus.MustRegister(cacheLookupsTotal)
}

func InitRedis(addr, password string, logger *zap.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})

	if err := redisotel.InstrumentTracing(rdb); err != nil {
		return nil, fmt.Errorf("failed to instrument Redis: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Product cache connected", zap.String("addr", addr))
	return rdb, nil
}

// ProductCache is a read-through cache of product rows keyed by id.
type ProductCache struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewProductCache(rdb redis.Cmdable, ttl time.Duration) *ProductCache {
	return &ProductCache{rdb: rdb, ttl: ttl}
}

func productKey(id int) string {
	return fmt.Sprintf("product:%d", id)
}

// Get returns the cached product and whether it was present.
func (c *ProductCache) Get(ctx context.Context, id int) (models.Product, bool, error) {
	data, err := c.rdb.Get(ctx, productKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		cacheLookupsTotal.WithLabelValues("miss").Inc()
		return models.Product{}, false, nil
	}
	if err != nil {
		cacheLookupsTotal.WithLabelValues("error").Inc()
		return models.Product{}, false, err
	}

	var product models.Product
	if err := json.Unmarshal(data, &product); err != nil {
		cacheLookupsTotal.WithLabelValues("error").Inc()
		return models.Product{}, false, fmt.Errorf("decode cached product %d: %w", id, err)
	}
	cacheLookupsTotal.WithLabelValues("hit").Inc()
	return product, true, nil
}

func (c *ProductCache) Set(ctx context.Context, product models.Product) error {
	data, err := json.Marshal(product)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, productKey(product.ID), data, c.ttl).Err()
}

// Invalidate drops the entry so the next read sees the new stock.
func (c *ProductCache) Invalidate(ctx context.Context, id int) error {
	return c.rdb.Del(ctx, productKey(id)).Err()
}
