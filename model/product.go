package model

import "time"

// Product is one catalog row. RetailerID matches the Graph catalog's
// product_retailer_id so webhook order items can be joined back to it.
type Product struct {
	RetailerID string    `json:"retailer_id" gorm:"primaryKey"`
	Name       string    `json:"name" gorm:"not null"`
	Category   string    `json:"category" gorm:"index"`
	ImageURL   string    `json:"image_url"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
