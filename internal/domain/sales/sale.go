package sales

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Sale validation errors
var (
	ErrSaleTotalMismatch = errors.New("sales: total does not equal subtotal + taxes + shipping")
	ErrSaleNetMismatch   = errors.New("sales: net revenue does not equal total - platform fees")
	ErrSaleNoItems       = errors.New("sales: sale must contain at least one item")
	ErrSaleMissingOrigin = errors.New("sales: marketplace origin is required")
)

// centTolerance is the maximum rounding drift allowed by the money invariants.
var centTolerance = decimal.NewFromFloat(0.01)

// ---------------------------------------------------------------------------
// Status Enumerations
// ---------------------------------------------------------------------------

// SaleStatus represents the lifecycle state of a sale.
type SaleStatus string

const (
	SaleStatusPending    SaleStatus = "pending"
	SaleStatusProcessing SaleStatus = "processing"
	SaleStatusShipped    SaleStatus = "shipped"
	SaleStatusDelivered  SaleStatus = "delivered"
	SaleStatusCompleted  SaleStatus = "completed"
	SaleStatusCancelled  SaleStatus = "cancelled"
	SaleStatusRefunded   SaleStatus = "refunded"
)

// IsValid returns true if the status is a known sale status.
func (s SaleStatus) IsValid() bool {
	switch s {
	case SaleStatusPending, SaleStatusProcessing, SaleStatusShipped,
		SaleStatusDelivered, SaleStatusCompleted, SaleStatusCancelled, SaleStatusRefunded:
		return true
	default:
		return false
	}
}

// String returns the string representation of SaleStatus.
func (s SaleStatus) String() string {
	return string(s)
}

// IsFinal returns true if the status is a terminal state.
func (s SaleStatus) IsFinal() bool {
	switch s {
	case SaleStatusCompleted, SaleStatusCancelled, SaleStatusRefunded:
		return true
	default:
		return false
	}
}

// PaymentStatus represents the payment state of a sale.
type PaymentStatus string

const (
	PaymentStatusPending           PaymentStatus = "pending"
	PaymentStatusPaid              PaymentStatus = "paid"
	PaymentStatusPartiallyRefunded PaymentStatus = "partially_refunded"
	PaymentStatusRefunded          PaymentStatus = "refunded"
	PaymentStatusFailed            PaymentStatus = "failed"
)

// IsValid returns true if the status is a known payment status.
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusPartiallyRefunded,
		PaymentStatusRefunded, PaymentStatusFailed:
		return true
	default:
		return false
	}
}

// String returns the string representation of PaymentStatus.
func (s PaymentStatus) String() string {
	return string(s)
}

// FulfillmentStatus represents the shipment state of a sale.
type FulfillmentStatus string

const (
	FulfillmentStatusUnfulfilled FulfillmentStatus = "unfulfilled"
	FulfillmentStatusPartial     FulfillmentStatus = "partial"
	FulfillmentStatusFulfilled   FulfillmentStatus = "fulfilled"
	FulfillmentStatusDelivered   FulfillmentStatus = "delivered"
)

// IsValid returns true if the status is a known fulfillment status.
func (s FulfillmentStatus) IsValid() bool {
	switch s {
	case FulfillmentStatusUnfulfilled, FulfillmentStatusPartial,
		FulfillmentStatusFulfilled, FulfillmentStatusDelivered:
		return true
	default:
		return false
	}
}

// String returns the string representation of FulfillmentStatus.
func (s FulfillmentStatus) String() string {
	return string(s)
}

// ---------------------------------------------------------------------------
// Sale Aggregate
// ---------------------------------------------------------------------------

// MarketplaceData records the origin of a sale imported from an external
// marketplace.
type MarketplaceData struct {
	// ExternalOrderID is the order identifier on the origin platform.
	ExternalOrderID string `json:"externalOrderId"`
	// Platform is the origin platform code (etsy, ebay, amazon, shopify).
	Platform string `json:"platform"`
	// OrderURL links to the order in the platform's seller console.
	OrderURL string `json:"orderUrl,omitempty"`
	// PlatformFees is the fee charged by the platform for this order.
	PlatformFees decimal.Decimal `json:"platformFees"`
}

// Address is a shipping or billing address.
type Address struct {
	Name       string `json:"name,omitempty"`
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	Country    string `json:"country,omitempty"`
}

// SalesItem is a single line item on a sale.
type SalesItem struct {
	ID int64 `json:"id"`
	// Name is the product title as sold.
	Name string `json:"name"`
	// SKU is the stock keeping unit. When the platform does not supply one,
	// a platform-prefixed synthetic SKU is substituted.
	SKU       string          `json:"sku"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
	// Notes carries serialized item options and variations.
	Notes string `json:"notes,omitempty"`
}

// Sale is the canonical, platform-agnostic order representation that all
// marketplace integrations converge to. It is created once per remote order
// and never mutated after initial sync, except for fulfillment-status updates
// pushed back from the console.
type Sale struct {
	ID        int64     `json:"id"`
	Customer  Customer  `json:"customer"`
	CreatedAt time.Time `json:"createdAt"`

	Status            SaleStatus        `json:"status"`
	PaymentStatus     PaymentStatus     `json:"paymentStatus"`
	FulfillmentStatus FulfillmentStatus `json:"fulfillmentStatus"`

	Subtotal     decimal.Decimal `json:"subtotal"`
	Taxes        decimal.Decimal `json:"taxes"`
	Shipping     decimal.Decimal `json:"shipping"`
	PlatformFees decimal.Decimal `json:"platformFees"`
	Total        decimal.Decimal `json:"total"`
	NetRevenue   decimal.Decimal `json:"netRevenue"`

	Items   []SalesItem     `json:"items"`
	Channel string          `json:"channel"`
	Origin  MarketplaceData `json:"marketplaceData"`

	ShippingAddress *Address `json:"shippingAddress,omitempty"`
	BillingAddress  *Address `json:"billingAddress,omitempty"`
	ShippingMethod  string   `json:"shippingMethod,omitempty"`
	TrackingNumber  string   `json:"trackingNumber,omitempty"`

	Tags  []string `json:"tags,omitempty"`
	Notes string   `json:"notes,omitempty"`
}

// Validate checks the sale's money invariants:
// total == subtotal + taxes + shipping and netRevenue == total - platformFees,
// both within currency rounding.
func (s *Sale) Validate() error {
	if len(s.Items) == 0 {
		return ErrSaleNoItems
	}
	if s.Origin.ExternalOrderID == "" || s.Origin.Platform == "" {
		return ErrSaleMissingOrigin
	}
	expectedTotal := s.Subtotal.Add(s.Taxes).Add(s.Shipping)
	if s.Total.Sub(expectedTotal).Abs().GreaterThan(centTolerance) {
		return ErrSaleTotalMismatch
	}
	expectedNet := s.Total.Sub(s.PlatformFees)
	if s.NetRevenue.Sub(expectedNet).Abs().GreaterThan(centTolerance) {
		return ErrSaleNetMismatch
	}
	return nil
}

// RecalculateNet recomputes NetRevenue from Total and PlatformFees,
// rounded to cents.
func (s *Sale) RecalculateNet() {
	s.NetRevenue = s.Total.Sub(s.PlatformFees).Round(2)
}

// MarkShipped records tracking information and moves the sale to shipped.
func (s *Sale) MarkShipped(trackingNumber, shippingMethod string) {
	s.TrackingNumber = trackingNumber
	if shippingMethod != "" {
		s.ShippingMethod = shippingMethod
	}
	s.Status = SaleStatusShipped
	s.FulfillmentStatus = FulfillmentStatusFulfilled
}
