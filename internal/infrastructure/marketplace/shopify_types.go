package marketplace

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Shopify Admin REST API Wire Types
// ---------------------------------------------------------------------------

// ShopifyDecimal is Shopify's string-encoded money representation.
type ShopifyDecimal string

// Decimal parses the amount; malformed or empty values parse as zero.
func (s ShopifyDecimal) Decimal() decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(string(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ShopifyOrdersResponse is the orders listing envelope. Orders stay raw for
// the raw-order envelope.
type ShopifyOrdersResponse struct {
	Orders []json.RawMessage `json:"orders"`
}

// ShopifyOrder is a single order from the Admin REST API.
type ShopifyOrder struct {
	ID          int64  `json:"id"`
	Name        string `json:"name,omitempty"`
	OrderNumber int64  `json:"order_number,omitempty"`
	CreatedAt   string `json:"created_at"`
	CancelledAt string `json:"cancelled_at,omitempty"`
	ClosedAt    string `json:"closed_at,omitempty"`

	// FinancialStatus: pending, authorized, paid, partially_paid,
	// partially_refunded, refunded, voided
	FinancialStatus string `json:"financial_status,omitempty"`
	// FulfillmentStatus: "" (unfulfilled), partial, fulfilled
	FulfillmentStatus string `json:"fulfillment_status,omitempty"`

	Email    string           `json:"email,omitempty"`
	Phone    string           `json:"phone,omitempty"`
	Customer *ShopifyCustomer `json:"customer,omitempty"`

	SubtotalPrice  ShopifyDecimal `json:"subtotal_price"`
	TotalTax       ShopifyDecimal `json:"total_tax"`
	TotalShipping  ShopifyDecimal `json:"total_shipping_price,omitempty"`
	TotalPrice     ShopifyDecimal `json:"total_price"`
	TotalDiscounts ShopifyDecimal `json:"total_discounts,omitempty"`
	Currency       string         `json:"currency,omitempty"`

	ShippingLines   []ShopifyShippingLine `json:"shipping_lines,omitempty"`
	ShippingAddress *ShopifyAddress       `json:"shipping_address,omitempty"`
	LineItems       []ShopifyLineItem     `json:"line_items,omitempty"`
	Fulfillments    []ShopifyFulfillment  `json:"fulfillments,omitempty"`
	Note            string                `json:"note,omitempty"`
	OrderStatusURL  string                `json:"order_status_url,omitempty"`
}

// ShopifyCustomer is the customer block on an order.
type ShopifyCustomer struct {
	ID        int64  `json:"id"`
	Email     string `json:"email,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// ShopifyAddress is a ship-to address.
type ShopifyAddress struct {
	Name     string `json:"name,omitempty"`
	Address1 string `json:"address1,omitempty"`
	Address2 string `json:"address2,omitempty"`
	City     string `json:"city,omitempty"`
	Province string `json:"province,omitempty"`
	Zip      string `json:"zip,omitempty"`
	Country  string `json:"country_code,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

// ShopifyShippingLine is one shipping charge on an order.
type ShopifyShippingLine struct {
	Title string         `json:"title,omitempty"`
	Price ShopifyDecimal `json:"price"`
}

// ShopifyLineItem is a line item on an order.
type ShopifyLineItem struct {
	ID           int64          `json:"id"`
	Title        string         `json:"title"`
	VariantTitle string         `json:"variant_title,omitempty"`
	SKU          string         `json:"sku,omitempty"`
	ProductID    int64          `json:"product_id,omitempty"`
	Quantity     int            `json:"quantity"`
	Price        ShopifyDecimal `json:"price"`
}

// ShopifyFulfillment is an existing fulfillment on an order.
type ShopifyFulfillment struct {
	ID              int64  `json:"id"`
	Status          string `json:"status,omitempty"`
	TrackingNumber  string `json:"tracking_number,omitempty"`
	TrackingCompany string `json:"tracking_company,omitempty"`
}

// ShopifyFulfillmentRequest is the body for creating a fulfillment.
type ShopifyFulfillmentRequest struct {
	Fulfillment ShopifyFulfillmentBody `json:"fulfillment"`
}

// ShopifyFulfillmentBody carries the tracking details of a new fulfillment.
type ShopifyFulfillmentBody struct {
	TrackingNumber  string `json:"tracking_number"`
	TrackingCompany string `json:"tracking_company,omitempty"`
	NotifyCustomer  bool   `json:"notify_customer"`
}

// ShopifyAccessTokenRequest is the body of the per-shop OAuth code exchange.
type ShopifyAccessTokenRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	Code         string `json:"code"`
}

// ShopifyAccessTokenResponse is the per-shop OAuth exchange response.
// Shopify access tokens do not expire.
type ShopifyAccessTokenResponse struct {
	AccessToken string `json:"access_token"`
	Scope       string `json:"scope,omitempty"`
}
