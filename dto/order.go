package dto

// SaveOrderRequest is the client-submitted order body for POST /api/save-order.
type SaveOrderRequest struct {
	OrderID      string             `json:"orderId" validate:"required"`
	CustomerInfo CustomerInfo       `json:"customerInfo" validate:"required"`
	Items        []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
	Location     *LocationRequest   `json:"deliveryLocation"`
	TIN          string             `json:"tin"`
}

func (r SaveOrderRequest) Validate() error {
	return GetValidator().Struct(r)
}

type CustomerInfo struct {
	Phone    string `json:"phone" validate:"required"`
	Receiver string `json:"receiver"`
}

type OrderItemRequest struct {
	ProductRetailerID string  `json:"product_retailer_id" validate:"required"`
	Quantity          int     `json:"quantity" validate:"required,gt=0"`
	ItemPrice         float64 `json:"item_price" validate:"required,gt=0"`
	Currency          string  `json:"currency" validate:"required,len=3"`
}

type LocationRequest struct {
	Latitude  float64 `json:"latitude" validate:"required"`
	Longitude float64 `json:"longitude" validate:"required"`
}

// SendOrderConfirmationRequest triggers the admin confirm/cancel prompt.
type SendOrderConfirmationRequest struct {
	OrderID string `json:"orderId" validate:"required"`
}

func (r SendOrderConfirmationRequest) Validate() error {
	return GetValidator().Struct(r)
}

type OrderResponse struct {
	OrderID  string  `json:"orderId"`
	Phone    string  `json:"phone"`
	Currency string  `json:"currency"`
	Amount   string  `json:"amount"`
	Vendor   string  `json:"vendor"`
	Paid     bool    `json:"paid"`
	Rejected bool    `json:"rejected"`
}
