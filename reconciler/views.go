package reconciler

import (
	"github.com/shopspring/decimal"

	"petshop/models"
)

// ProductSummary is the product as embedded in a cart line. Stock, category
// and brand are only filled in cart listings.
type ProductSummary struct {
	ID       uint            `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Image    *string         `json:"image"`
	Stock    *int            `json:"stock,omitempty"`
	Category string          `json:"category,omitempty"`
	Brand    *string         `json:"brand,omitempty"`
}

type LineView struct {
	ID        uint             `json:"id"`
	ProductID uint             `json:"product_id"`
	Product   ProductSummary   `json:"product"`
	Quantity  int              `json:"quantity"`
	Subtotal  *decimal.Decimal `json:"subtotal,omitempty"`
}

type CartView struct {
	Items []LineView      `json:"items"`
	Total decimal.Decimal `json:"total"`
	Count int             `json:"count"`
}

type EntryView struct {
	ID        uint           `json:"id"`
	ProductID uint           `json:"product_id"`
	Product   models.Product `json:"product"`
}

func summarize(line *models.CartLine) LineView {
	return LineView{
		ID:        line.ID,
		ProductID: line.ProductID,
		Product: ProductSummary{
			ID:    line.Product.ID,
			Name:  line.Product.Name,
			Price: line.Product.Price,
			Image: line.Product.Image,
		},
		Quantity: line.Quantity,
	}
}

func detail(line *models.CartLine) LineView {
	view := summarize(line)
	stock := line.Product.Stock
	view.Product.Stock = &stock
	view.Product.Category = line.Product.Category
	view.Product.Brand = line.Product.Brand
	subtotal := line.Product.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
	view.Subtotal = &subtotal
	return view
}
