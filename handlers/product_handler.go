package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"petshop/cache"
	"petshop/models"
	"petshop/store"
)

const (
	defaultProductLimit = 20
	maxProductLimit     = 100
)

type productRequest struct {
	Name         *string          `json:"name"`
	Category     *string          `json:"category"`
	Price        *decimal.Decimal `json:"price"`
	Stock        *int             `json:"stock"`
	Brand        *string          `json:"brand"`
	PetType      *string          `json:"pet_type"`
	Tags         []string         `json:"tags"`
	Image        *string          `json:"image"`
	IsFeatured   *bool            `json:"is_featured"`
	IsBestSeller *bool            `json:"is_best_seller"`
}

// validate checks the fields present; on create every required field must be
// present too.
func (r *productRequest) validate(create bool) string {
	if create {
		switch {
		case r.Name == nil:
			return "The name field is required."
		case r.Category == nil:
			return "The category field is required."
		case r.Price == nil:
			return "The price field is required."
		case r.Stock == nil:
			return "The stock field is required."
		}
	}
	switch {
	case r.Name != nil && strings.TrimSpace(*r.Name) == "":
		return "The name field is required."
	case r.Category != nil && strings.TrimSpace(*r.Category) == "":
		return "The category field is required."
	case r.Price != nil && r.Price.IsNegative():
		return "The price must be at least 0."
	case r.Stock != nil && *r.Stock < 0:
		return "The stock must be at least 0."
	}
	return ""
}

func (r *productRequest) apply(product *models.Product) {
	if r.Name != nil {
		product.Name = strings.TrimSpace(*r.Name)
	}
	if r.Category != nil {
		product.Category = strings.TrimSpace(*r.Category)
	}
	if r.Price != nil {
		product.Price = r.Price.Round(2)
	}
	if r.Stock != nil {
		product.Stock = *r.Stock
	}
	if r.Brand != nil {
		product.Brand = r.Brand
	}
	if r.PetType != nil {
		product.PetType = r.PetType
	}
	if r.Tags != nil {
		product.Tags = r.Tags
	}
	if r.Image != nil {
		product.Image = r.Image
	}
	if r.IsFeatured != nil {
		product.IsFeatured = *r.IsFeatured
	}
	if r.IsBestSeller != nil {
		product.IsBestSeller = *r.IsBestSeller
	}
}

// GetProductListHandler serves the product list from the Redis cache. limit is
// capped at maxProductLimit.
func GetProductListHandler(c *gin.Context, products *cache.Products) {
	limit := cast.ToInt(c.DefaultQuery("limit", "20"))
	if limit <= 0 {
		limit = defaultProductLimit
	}
	limit = min(limit, maxProductLimit)
	offset := max(cast.ToInt(c.DefaultQuery("offset", "0")), 0)

	filter := cache.Filter{
		Category:   c.Query("category"),
		PetType:    c.Query("pet_type"),
		Featured:   cast.ToBool(c.Query("featured")),
		BestSeller: cast.ToBool(c.Query("best_seller")),
	}

	list, total, err := products.List(c.Request.Context(), filter, offset, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"products": list,
		"total":    total,
		"limit":    limit,
		"offset":   offset,
	})
}

func GetProductDataHandler(c *gin.Context, catalog *store.CatalogStore) {
	product, err := catalog.Find(c.Request.Context(), idParam(c, "id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func CreateProductHandler(c *gin.Context, catalog *store.CatalogStore, products *cache.Products) {
	var req productRequest
	if !bindJSON(c, &req) {
		return
	}
	if msg := req.validate(true); msg != "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": msg})
		return
	}

	var product models.Product
	req.apply(&product)
	if err := catalog.Create(c.Request.Context(), &product); err != nil {
		writeError(c, err)
		return
	}
	if err := products.Put(c.Request.Context(), &product); err != nil {
		zap.S().Warnw("cache new product", "product_id", product.ID, "error", err)
	}
	c.JSON(http.StatusCreated, product)
}

func UpdateProductHandler(c *gin.Context, catalog *store.CatalogStore, products *cache.Products) {
	product, err := catalog.Find(c.Request.Context(), idParam(c, "id"))
	if err != nil {
		writeError(c, err)
		return
	}

	var req productRequest
	if !bindJSON(c, &req) {
		return
	}
	if msg := req.validate(false); msg != "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": msg})
		return
	}

	req.apply(product)
	if err := catalog.Update(c.Request.Context(), product); err != nil {
		writeError(c, err)
		return
	}
	if err := products.Put(c.Request.Context(), product); err != nil {
		zap.S().Warnw("recache product", "product_id", product.ID, "error", err)
	}
	c.JSON(http.StatusOK, product)
}

// DeleteProductHandler removes the product with its cart lines and wishlist
// entries.
func DeleteProductHandler(c *gin.Context, catalog *store.CatalogStore, products *cache.Products) {
	id := idParam(c, "id")
	if err := catalog.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	if err := products.Remove(c.Request.Context(), id); err != nil {
		zap.S().Warnw("uncache product", "product_id", id, "error", err)
	}
	c.JSON(http.StatusOK, gin.H{"message": "Deleted successfully"})
}
