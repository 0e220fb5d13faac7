package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// Order statuses tracked by the local store.
const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusOnHold     = "on-hold"
	OrderStatusCompleted  = "completed"
	OrderStatusCancelled  = "cancelled"
	OrderStatusRefunded   = "refunded"
	OrderStatusFailed     = "failed"
	OrderStatusDraft      = "draft"
	OrderStatusAutoDraft  = "auto-draft"
	OrderStatusTrash      = "trash"
)

// Order represents a purchase order stored in the relational database.
type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID               int64           `bun:",pk,autoincrement" json:"id"`
	Number           string          `bun:"number,notnull,unique" json:"number"`
	Status           string          `bun:"status,notnull" json:"status"`
	Currency         string          `bun:"currency,notnull" json:"currency"`
	BillingFirstName string          `bun:"billing_first_name" json:"billing_first_name"`
	BillingLastName  string          `bun:"billing_last_name" json:"billing_last_name"`
	BillingCompany   string          `bun:"billing_company" json:"billing_company"`
	BillingPhone     string          `bun:"billing_phone" json:"billing_phone"`
	BillingEmail     string          `bun:"billing_email" json:"billing_email"`
	BillingAddress   string          `bun:"billing_address" json:"billing_address"`
	BillingCity      string          `bun:"billing_city" json:"billing_city"`
	BillingPostcode  string          `bun:"billing_postcode" json:"billing_postcode"`
	BillingCountry   string          `bun:"billing_country" json:"billing_country"`
	ShippingTotal    decimal.Decimal `bun:"shipping_total,type:numeric,notnull" json:"shipping_total"`
	TotalTax         decimal.Decimal `bun:"total_tax,type:numeric,notnull" json:"total_tax"`
	PaidAt           *time.Time      `bun:"paid_at,nullzero" json:"paid_at,omitempty"`
	CreatedAt        time.Time       `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt        time.Time       `bun:"updated_at,nullzero" json:"updated_at"`

	Items []*OrderItem `bun:"rel:has-many,join:id=order_id" json:"items"`
}

// IsPaid reports whether a payment date has been recorded.
func (o *Order) IsPaid() bool {
	return o != nil && o.PaidAt != nil && !o.PaidAt.IsZero()
}

// OrderItem is a single order line. A nil ProductID marks a product that no longer exists.
type OrderItem struct {
	bun.BaseModel `bun:"table:order_items"`

	ID        int64           `bun:",pk,autoincrement" json:"id"`
	OrderID   int64           `bun:"order_id,notnull" json:"order_id"`
	ProductID *int64          `bun:"product_id" json:"product_id,omitempty"`
	SKU       string          `bun:"sku" json:"sku"`
	Name      string          `bun:"name" json:"name"`
	Quantity  decimal.Decimal `bun:"quantity,type:numeric,notnull" json:"quantity"`
	Subtotal  decimal.Decimal `bun:"subtotal,type:numeric,notnull" json:"subtotal"`
	Total     decimal.Decimal `bun:"total,type:numeric,notnull" json:"total"`
}
