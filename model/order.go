package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// OrderItem is one line of an order, enriched with catalog details at the
// time the order was finalized.
type OrderItem struct {
	Product      string          `json:"product"` // retailer id
	ProductName  string          `json:"product_name"`
	ProductImage string          `json:"product_image"`
	Quantity     int             `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
	Currency     string          `json:"currency"`
}

// Order mirrors the document the legacy system kept per purchase. Items are
// stored as a JSON column; the terminal flags are flipped by the admin
// confirm/cancel buttons.
type Order struct {
	ID                string          `json:"id" gorm:"primaryKey"`
	OrderID           string          `json:"order_id" gorm:"uniqueIndex;not null"` // ORD-<yyyymmdd>-<6chars>
	Phone             string          `json:"phone" gorm:"index;not null"`
	User              string          `json:"user"` // +<phone>
	Currency          string          `json:"currency"`
	CountryCode       string          `json:"country_code"`
	Amount            decimal.Decimal `json:"amount" gorm:"type:numeric"`
	Products          json.RawMessage `json:"products" gorm:"type:text"` // []OrderItem
	Vendor            string          `json:"vendor"`
	TIN               string          `json:"tin"`
	Paid              bool            `json:"paid" gorm:"default:false"`
	Rejected          bool            `json:"rejected" gorm:"default:false"`
	Served            bool            `json:"served" gorm:"default:false"`
	Accepted          bool            `json:"accepted" gorm:"default:false"`
	DeliveryLatitude  *float64        `json:"delivery_latitude"`
	DeliveryLongitude *float64        `json:"delivery_longitude"`
	Date              time.Time       `json:"date"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// AdminPhone is the operator number that receives order confirmations.
type AdminPhone struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	Number    string    `json:"number" gorm:"not null"`
	IsActive  bool      `json:"is_active" gorm:"default:false"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
