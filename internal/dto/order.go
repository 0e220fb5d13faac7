package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderResponse represents an order as exposed via transport layers.
type OrderResponse struct {
	ID            int64               `json:"id"`
	Number        string              `json:"number"`
	Status        string              `json:"status"`
	Currency      string              `json:"currency"`
	Billing       Billing             `json:"billing"`
	ShippingTotal decimal.Decimal     `json:"shipping_total"`
	TotalTax      decimal.Decimal     `json:"total_tax"`
	Items         []OrderItemResponse `json:"items"`
	PaidAt        *time.Time          `json:"paid_at,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// OrderItemResponse is a single order line.
type OrderItemResponse struct {
	ID        int64           `json:"id"`
	ProductID *int64          `json:"product_id,omitempty"`
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	Quantity  decimal.Decimal `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Total     decimal.Decimal `json:"total"`
}

// Billing carries the customer's billing details.
type Billing struct {
	FirstName string `json:"first_name" validate:"max=100"`
	LastName  string `json:"last_name" validate:"max=100"`
	Company   string `json:"company" validate:"max=200"`
	Phone     string `json:"phone" validate:"max=40"`
	Email     string `json:"email" validate:"omitempty,email"`
	Address   string `json:"address" validate:"max=255"`
	City      string `json:"city" validate:"max=100"`
	Postcode  string `json:"postcode" validate:"max=20"`
	Country   string `json:"country" validate:"omitempty,len=2"`
}

// CreateOrderRequest is the payload accepted by order intake.
type CreateOrderRequest struct {
	Number        string                   `json:"number" validate:"required,max=64"`
	Status        string                   `json:"status" validate:"omitempty,max=32"`
	Currency      string                   `json:"currency" validate:"required,len=3"`
	Billing       Billing                  `json:"billing"`
	ShippingTotal decimal.Decimal          `json:"shipping_total"`
	TotalTax      decimal.Decimal          `json:"total_tax"`
	Items         []CreateOrderItemRequest `json:"items" validate:"dive"`
}

// CreateOrderItemRequest is a single line of CreateOrderRequest.
type CreateOrderItemRequest struct {
	ProductID *int64          `json:"product_id" validate:"omitempty,gt=0"`
	SKU       string          `json:"sku" validate:"max=100"`
	Name      string          `json:"name" validate:"max=255"`
	Quantity  decimal.Decimal `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Total     decimal.Decimal `json:"total"`
}

// UpdateStatusRequest changes an order's status.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,max=32"`
}
