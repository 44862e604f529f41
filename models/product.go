package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// prices go over the wire as JSON numbers, the way the storefront reads them
	decimal.MarshalJSONWithoutQuotes = true
}

type Product struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	Name         string          `gorm:"size:255;not null" json:"name"`
	Price        decimal.Decimal `gorm:"type:decimal(8,2);not null" json:"price"`
	Stock        int             `gorm:"not null;default:0" json:"stock"`
	Category     string          `gorm:"size:255;not null;index" json:"category"`
	Brand        *string         `gorm:"size:255" json:"brand"`
	PetType      *string         `gorm:"size:64;index" json:"pet_type"`
	Tags         []string        `gorm:"serializer:json" json:"tags"`
	Image        *string         `gorm:"size:1024" json:"image"`
	IsFeatured   bool            `gorm:"not null;default:false" json:"is_featured"`
	IsBestSeller bool            `gorm:"not null;default:false" json:"is_best_seller"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}
