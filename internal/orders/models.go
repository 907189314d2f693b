package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

// Header is the customer-supplied part of an order.
type Header struct {
	CustomerName     string          `json:"customer_name"`
	CustomerPhone    string          `json:"customer_phone"`
	CustomerEmail    string          `json:"customer_email"`
	RecipientName    string          `json:"recipient_name"`
	RecipientPhone   string          `json:"recipient_phone"`
	DeliveryAddress  string          `json:"delivery_address"`
	DeliveryDate     *time.Time      `json:"delivery_date,omitempty"`
	DeliveryTimeSlot string          `json:"delivery_time_slot"`
	Note             string          `json:"note"`
	ShippingFee      decimal.Decimal `json:"shipping_fee"`
	IsUrgent         bool            `json:"is_urgent"`
}

type Order struct {
	ID          string `json:"id"`
	OrderNumber string `json:"order_number"`
	Header
	Status         Status          `json:"status"`
	SubtotalAmount decimal.Decimal `json:"subtotal_amount"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	CreatedBy      string          `json:"created_by"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	FinalizedAt    *time.Time      `json:"finalized_at,omitempty"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`

	Items          []Item          `json:"items"`
	Customizations []Customization `json:"customizations"`
	Shipping       *Shipping       `json:"shipping,omitempty"`
}

// Item snapshots product_name and product_type at order time; later catalog edits do not flow back.
type Item struct {
	ID               string          `json:"id"`
	OrderID          string          `json:"order_id"`
	ProductID        int64           `json:"product_id"`
	ProductVariantID *int64          `json:"product_variant_id,omitempty"`
	CollectionID     *int64          `json:"collection_id,omitempty"`
	ProductName      string          `json:"product_name"`
	ProductType      string          `json:"product_type"`
	Quantity         int             `json:"quantity"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	TotalPrice       decimal.Decimal `json:"total_price"`
	Note             string          `json:"note"`
	CreatedAt        time.Time       `json:"created_at"`
	Variants         []ItemVariant   `json:"variants"`
}

type ItemVariant struct {
	ID              string          `json:"id"`
	OrderItemID     string          `json:"order_item_id"`
	Name            string          `json:"variant_name"`
	Value           string          `json:"variant_value"`
	PriceAdjustment decimal.Decimal `json:"price_adjustment"`
}

// Customization is free-form production instruction (card message, design brief). No price effect.
type Customization struct {
	ID          string    `json:"id"`
	OrderID     string    `json:"order_id"`
	OrderItemID *string   `json:"order_item_id,omitempty"`
	Type        string    `json:"customization_type"`
	Content     string    `json:"content"`
	Note        string    `json:"note"`
	CreatedAt   time.Time `json:"created_at"`
}

const (
	ShippingPending   = "pending"
	ShippingInTransit = "in_transit"
	ShippingDelivered = "delivered"
	ShippingCancelled = "cancelled"
)

type Shipping struct {
	OrderID      string     `json:"-"`
	Provider     string     `json:"provider"`
	TrackingCode string     `json:"tracking_code"`
	Status       string     `json:"status"`
	ShippedAt    *time.Time `json:"shipped_at,omitempty"`
	DeliveredAt  *time.Time `json:"delivered_at,omitempty"`
}

type VariantInput struct {
	Name            string          `json:"variant_name"`
	Value           string          `json:"variant_value"`
	PriceAdjustment decimal.Decimal `json:"price_adjustment"`
}

type ItemInput struct {
	ProductID        int64          `json:"product_id"`
	ProductVariantID *int64         `json:"product_variant_id,omitempty"`
	CollectionID     *int64         `json:"collection_id,omitempty"`
	Quantity         int            `json:"quantity"`
	Note             string         `json:"note"`
	Variants         []VariantInput `json:"variants"`
}

// ItemUpdate changes only the fields that are set.
type ItemUpdate struct {
	Quantity *int    `json:"quantity,omitempty"`
	Note     *string `json:"note,omitempty"`
}

// CustomizationInput may point at an item of the same request by its index.
type CustomizationInput struct {
	ItemIndex *int   `json:"item_index,omitempty"`
	Type      string `json:"customization_type"`
	Content   string `json:"content"`
	Note      string `json:"note"`
}

type CreateInput struct {
	Header
	Status         Status               `json:"status,omitempty"`
	Items          []ItemInput          `json:"items"`
	Customizations []CustomizationInput `json:"customizations"`
	ActorID        string               `json:"-"`
}
