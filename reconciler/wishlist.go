package reconciler

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"petshop/models"
)

// Wishlist keeps the set of products a user favorited.
type Wishlist struct {
	db *gorm.DB
}

func NewWishlist(db *gorm.DB) *Wishlist {
	return &Wishlist{db: db}
}

// RemoveKey selects the entry to delete. ProductID, when set, wins over
// EntryID.
type RemoveKey struct {
	EntryID   uint
	ProductID uint
}

func (w *Wishlist) List(ctx context.Context, userID uint) ([]EntryView, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}

	var entries []models.WishlistEntry
	err := w.db.WithContext(ctx).
		Preload("Product").
		Where("user_id = ?", userID).
		Order("id").
		Find(&entries).
		Error
	if err != nil {
		return nil, errors.Wrap(err, "list wishlist")
	}

	views := make([]EntryView, 0, len(entries))
	for _, entry := range entries {
		if entry.Product.ID == 0 {
			continue
		}
		views = append(views, EntryView{ID: entry.ID, ProductID: entry.ProductID, Product: entry.Product})
	}
	return views, nil
}

// Add favorites a product. Adding a product already on the list returns the
// existing entry.
func (w *Wishlist) Add(ctx context.Context, userID, productID uint) (*models.WishlistEntry, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}

	var entry models.WishlistEntry
	err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product models.Product
		if err := tx.First(&product, productID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProductNotFound
			}
			return errors.Wrapf(err, "query product %d", productID)
		}

		// a concurrent add of the same pair is not a conflict
		entry = models.WishlistEntry{UserID: userID, ProductID: productID}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
			DoNothing: true,
		}).Create(&entry).Error
		if err != nil {
			return errors.Wrap(err, "add wishlist entry")
		}

		err = tx.Clauses(forUpdate).
			Where("user_id = ? AND product_id = ?", userID, productID).
			First(&entry).
			Error
		if err != nil {
			return errors.Wrap(err, "query wishlist entry")
		}
		entry.Product = product
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Remove deletes the entry selected by key and reports whether a row went
// away. A missing entry is not an error.
func (w *Wishlist) Remove(ctx context.Context, userID uint, key RemoveKey) (bool, error) {
	if userID == 0 {
		return false, ErrUnauthenticated
	}

	query := w.db.WithContext(ctx).Where("user_id = ?", userID)
	if key.ProductID != 0 {
		query = query.Where("product_id = ?", key.ProductID)
	} else {
		query = query.Where("id = ?", key.EntryID)
	}

	result := query.Delete(&models.WishlistEntry{})
	if result.Error != nil {
		return false, errors.Wrap(result.Error, "delete wishlist entry")
	}
	return result.RowsAffected > 0, nil
}
