package cache

import (
	"context"
	"strconv"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"petshop/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const productsKey = "products"

// Catalog is the source of truth the cache is rebuilt from.
type Catalog interface {
	List(ctx context.Context) ([]models.Product, error)
}

// Filter narrows a product listing. Empty fields match everything.
type Filter struct {
	Category   string
	PetType    string
	Featured   bool
	BestSeller bool
}

func (f Filter) empty() bool {
	return f == Filter{}
}

func (f Filter) match(p *models.Product) bool {
	if f.Category != "" && p.Category != f.Category {
		return false
	}
	if f.PetType != "" && (p.PetType == nil || *p.PetType != f.PetType) {
		return false
	}
	if f.Featured && !p.IsFeatured {
		return false
	}
	if f.BestSeller && !p.IsBestSeller {
		return false
	}
	return true
}

// Products keeps the product list in a Redis sorted set scored by product id.
// A missing or unreachable cache never fails a read: the listing is served
// from the catalog instead.
type Products struct {
	rdb     *redis.Client
	catalog Catalog
}

func NewProducts(rdb *redis.Client, catalog Catalog) *Products {
	return &Products{rdb: rdb, catalog: catalog}
}

// List returns one page of products matching filter and the number of
// products that match in total.
func (c *Products) List(ctx context.Context, filter Filter, offset, limit int) ([]models.Product, int, error) {
	if offset < 0 {
		offset = 0
	}

	if filter.empty() {
		products, total, err := c.page(ctx, offset, limit)
		if err == nil {
			return products, total, nil
		}
		zap.S().Warnw("product cache unavailable, reading catalog", "error", err)
	}

	products, err := c.all(ctx)
	if err != nil {
		return nil, 0, err
	}

	matched := make([]models.Product, 0, len(products))
	for i := range products {
		if filter.match(&products[i]) {
			matched = append(matched, products[i])
		}
	}
	total := len(matched)
	if offset >= total {
		return []models.Product{}, total, nil
	}
	return matched[offset:min(offset+limit, total)], total, nil
}

func (c *Products) page(ctx context.Context, offset, limit int) ([]models.Product, int, error) {
	size, err := c.rdb.ZCard(ctx, productsKey).Result()
	if err != nil {
		return nil, 0, err
	}
	if size == 0 {
		if err := c.Rebuild(ctx); err != nil {
			return nil, 0, err
		}
		if size, err = c.rdb.ZCard(ctx, productsKey).Result(); err != nil {
			return nil, 0, err
		}
	}

	members, err := c.rdb.ZRange(ctx, productsKey, int64(offset), int64(offset+limit-1)).Result()
	if err != nil {
		return nil, 0, err
	}
	return decode(members), int(size), nil
}

// all reads every product from the cache, falling back to the catalog.
func (c *Products) all(ctx context.Context) ([]models.Product, error) {
	members, err := c.rdb.ZRange(ctx, productsKey, 0, -1).Result()
	if err == nil && len(members) > 0 {
		return decode(members), nil
	}
	if err != nil {
		zap.S().Warnw("product cache unavailable, reading catalog", "error", err)
	}

	products, err := c.catalog.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(products) > 0 {
		if err := c.store(ctx, products); err != nil {
			zap.S().Warnw("refill product cache failed", "error", err)
		}
	}
	return products, nil
}

// Rebuild replaces the cached list with the catalog's current content.
func (c *Products) Rebuild(ctx context.Context) error {
	products, err := c.catalog.List(ctx)
	if err != nil {
		return err
	}
	return c.store(ctx, products)
}

func (c *Products) store(ctx context.Context, products []models.Product) error {
	pipe := c.rdb.TxPipeline()
	pipe.Del(ctx, productsKey)
	for i := range products {
		member, err := json.Marshal(&products[i])
		if err != nil {
			zap.S().Errorw("encode product for cache", "product_id", products[i].ID, "error", err)
			continue
		}
		pipe.ZAdd(ctx, productsKey, redis.Z{Score: float64(products[i].ID), Member: member})
	}
	_, err := pipe.Exec(ctx)
	return errors.Wrap(err, "store product cache")
}

// Put inserts or replaces one product. A cold cache is left alone; the next
// listing rebuilds it whole.
func (c *Products) Put(ctx context.Context, product *models.Product) error {
	exists, err := c.rdb.Exists(ctx, productsKey).Result()
	if err != nil {
		return errors.Wrapf(err, "cache product %d", product.ID)
	}
	if exists == 0 {
		return nil
	}

	member, err := json.Marshal(product)
	if err != nil {
		return errors.Wrap(err, "encode product for cache")
	}
	score := strconv.FormatUint(uint64(product.ID), 10)

	pipe := c.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, productsKey, score, score)
	pipe.ZAdd(ctx, productsKey, redis.Z{Score: float64(product.ID), Member: member})
	_, err = pipe.Exec(ctx)
	return errors.Wrapf(err, "cache product %d", product.ID)
}

func (c *Products) Remove(ctx context.Context, id uint) error {
	score := strconv.FormatUint(uint64(id), 10)
	err := c.rdb.ZRemRangeByScore(ctx, productsKey, score, score).Err()
	return errors.Wrapf(err, "uncache product %d", id)
}

func decode(members []string) []models.Product {
	products := make([]models.Product, 0, len(members))
	for _, member := range members {
		var product models.Product
		if err := json.Unmarshal([]byte(member), &product); err != nil {
			zap.S().Errorw("decode cached product", "error", err)
			continue
		}
		products = append(products, product)
	}
	return products
}
