package store

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"petshop/models"
)

// ErrRecordNotFound is returned by lookups that match no row.
var ErrRecordNotFound = gorm.ErrRecordNotFound

// CatalogStore persists products.
type CatalogStore struct {
	db *gorm.DB
}

func NewCatalogStore(db *gorm.DB) *CatalogStore {
	return &CatalogStore{db: db}
}

func (s *CatalogStore) List(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := s.db.WithContext(ctx).Order("id").Find(&products).Error
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	return products, nil
}

func (s *CatalogStore) Find(ctx context.Context, id uint) (*models.Product, error) {
	var product models.Product
	err := s.db.WithContext(ctx).First(&product, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, errors.Wrapf(err, "find product %d", id)
	}
	return &product, nil
}

func (s *CatalogStore) Create(ctx context.Context, product *models.Product) error {
	return errors.Wrap(s.db.WithContext(ctx).Create(product).Error, "create product")
}

func (s *CatalogStore) Update(ctx context.Context, product *models.Product) error {
	return errors.Wrapf(s.db.WithContext(ctx).Save(product).Error, "update product %d", product.ID)
}

// Delete removes the product together with every cart line and wishlist entry
// that references it.
func (s *CatalogStore) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("product_id = ?", id).Delete(&models.CartLine{}).Error; err != nil {
			return errors.Wrap(err, "delete cart lines of product")
		}
		if err := tx.Where("product_id = ?", id).Delete(&models.WishlistEntry{}).Error; err != nil {
			return errors.Wrap(err, "delete wishlist entries of product")
		}

		result := tx.Delete(&models.Product{}, id)
		if result.Error != nil {
			return errors.Wrapf(result.Error, "delete product %d", id)
		}
		if result.RowsAffected == 0 {
			return ErrRecordNotFound
		}
		return nil
	})
}
