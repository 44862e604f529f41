package reconciler

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"petshop/models"
)

var forUpdate = clause.Locking{Strength: "UPDATE"}

// Cart keeps one quantity per (user, product) within the live stock of the
// product. Stock is a ceiling checked on every mutation, never reserved.
//
// Every mutation runs in a single transaction that locks the product row and
// then the affected line, so concurrent adds for the same pair serialize
// instead of losing an increment.
type Cart struct {
	db *gorm.DB
}

func NewCart(db *gorm.DB) *Cart {
	return &Cart{db: db}
}

// MergeItem is one line of a cart built elsewhere, such as a guest cart kept
// on the client.
type MergeItem struct {
	ProductID uint `json:"product_id"`
	Quantity  int  `json:"quantity"`
}

func (c *Cart) List(ctx context.Context, userID uint) (*CartView, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}

	var lines []models.CartLine
	err := c.db.WithContext(ctx).
		Preload("Product").
		Where("user_id = ?", userID).
		Order("id").
		Find(&lines).
		Error
	if err != nil {
		return nil, errors.Wrap(err, "list cart lines")
	}

	view := &CartView{Items: make([]LineView, 0, len(lines)), Total: decimal.Zero}
	for i := range lines {
		if lines[i].Product.ID == 0 {
			// product row vanished underneath the line
			continue
		}
		item := detail(&lines[i])
		view.Items = append(view.Items, item)
		view.Total = view.Total.Add(*item.Subtotal)
		view.Count += item.Quantity
	}
	return view, nil
}

func (c *Cart) Add(ctx context.Context, userID, productID uint, quantity int) (*LineView, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	var line models.CartLine
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		product, err := lockProduct(tx, productID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProductNotFound
			}
			return err
		}

		err = tx.Clauses(forUpdate).
			Where("user_id = ? AND product_id = ?", userID, productID).
			First(&line).
			Error
		switch {
		case err == nil:
			newQuantity := line.Quantity + quantity
			if newQuantity > product.Stock {
				return &InsufficientStockError{Available: product.Stock}
			}
			if err := tx.Model(&line).Update("quantity", newQuantity).Error; err != nil {
				return errors.Wrap(err, "update cart line")
			}
			line.Quantity = newQuantity
		case errors.Is(err, gorm.ErrRecordNotFound):
			if quantity > product.Stock {
				return &InsufficientStockError{Available: product.Stock}
			}
			line = models.CartLine{UserID: userID, ProductID: productID, Quantity: quantity}
			if err := tx.Create(&line).Error; err != nil {
				return errors.Wrap(err, "create cart line")
			}
		default:
			return errors.Wrap(err, "query cart line")
		}

		line.Product = *product
		return nil
	})
	if err != nil {
		return nil, err
	}

	view := summarize(&line)
	return &view, nil
}

// UpdateQuantity sets the quantity of a line the user owns. It replaces the
// quantity, it does not add to it.
func (c *Cart) UpdateQuantity(ctx context.Context, userID, lineID uint, quantity int) (*LineView, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	var line models.CartLine
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// product before line, the same order Add and Merge lock in
		var productID uint
		err := tx.Model(&models.CartLine{}).
			Select("product_id").
			Where("id = ? AND user_id = ?", lineID, userID).
			Scan(&productID).
			Error
		if err != nil {
			return errors.Wrap(err, "query cart line")
		}
		if productID == 0 {
			return ErrLineNotFound
		}

		product, err := lockProduct(tx, productID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrLineNotFound
			}
			return err
		}

		err = tx.Clauses(forUpdate).
			Where("id = ? AND user_id = ?", lineID, userID).
			First(&line).
			Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrLineNotFound
			}
			return errors.Wrap(err, "query cart line")
		}
		if quantity > product.Stock {
			return &InsufficientStockError{Available: product.Stock}
		}

		if err := tx.Model(&line).Update("quantity", quantity).Error; err != nil {
			return errors.Wrap(err, "update cart line")
		}
		line.Quantity = quantity
		line.Product = *product
		return nil
	})
	if err != nil {
		return nil, err
	}

	view := summarize(&line)
	return &view, nil
}

func (c *Cart) Remove(ctx context.Context, userID, lineID uint) error {
	if userID == 0 {
		return ErrUnauthenticated
	}

	result := c.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", lineID, userID).
		Delete(&models.CartLine{})
	if result.Error != nil {
		return errors.Wrap(result.Error, "delete cart line")
	}
	if result.RowsAffected == 0 {
		return ErrLineNotFound
	}
	return nil
}

// Clear empties the cart. Clearing an empty cart succeeds.
func (c *Cart) Clear(ctx context.Context, userID uint) error {
	if userID == 0 {
		return ErrUnauthenticated
	}

	err := c.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.CartLine{}).Error
	return errors.Wrap(err, "clear cart")
}

// Count returns the number of units in the cart, or 0 for an anonymous caller.
func (c *Cart) Count(ctx context.Context, userID uint) (int, error) {
	if userID == 0 {
		return 0, nil
	}

	var total int64
	err := c.db.WithContext(ctx).
		Model(&models.CartLine{}).
		Select("COALESCE(SUM(quantity), 0)").
		Where("user_id = ?", userID).
		Scan(&total).
		Error
	if err != nil {
		return 0, errors.Wrap(err, "count cart")
	}
	return int(total), nil
}

// Merge folds items into the user's cart in one transaction. Each item adds
// to the existing line and the result is capped at the live stock; unknown
// products, sold-out products and non-positive quantities are skipped.
func (c *Cart) Merge(ctx context.Context, userID uint, items []MergeItem) (*CartView, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}

	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, item := range items {
			if item.Quantity < 1 {
				continue
			}
			product, err := lockProduct(tx, item.ProductID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					continue
				}
				return err
			}

			var line models.CartLine
			err = tx.Clauses(forUpdate).
				Where("user_id = ? AND product_id = ?", userID, item.ProductID).
				First(&line).
				Error
			switch {
			case err == nil:
				quantity := min(line.Quantity+item.Quantity, product.Stock)
				if quantity <= line.Quantity {
					continue
				}
				if err := tx.Model(&line).Update("quantity", quantity).Error; err != nil {
					return errors.Wrap(err, "update cart line")
				}
			case errors.Is(err, gorm.ErrRecordNotFound):
				quantity := min(item.Quantity, product.Stock)
				if quantity < 1 {
					continue
				}
				line = models.CartLine{UserID: userID, ProductID: item.ProductID, Quantity: quantity}
				if err := tx.Create(&line).Error; err != nil {
					return errors.Wrap(err, "create cart line")
				}
			default:
				return errors.Wrap(err, "query cart line")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return c.List(ctx, userID)
}

func lockProduct(tx *gorm.DB, productID uint) (*models.Product, error) {
	var product models.Product
	err := tx.Clauses(forUpdate).First(&product, productID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, errors.Wrapf(err, "query product %d", productID)
	}
	return &product, nil
}
