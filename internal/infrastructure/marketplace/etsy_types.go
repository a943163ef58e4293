package marketplace

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Etsy v3 API Wire Types
// ---------------------------------------------------------------------------

// EtsyMoney is Etsy's fixed-point money representation.
type EtsyMoney struct {
	// Amount is the value in the currency's smallest unit times the divisor.
	Amount int64 `json:"amount"`
	// Divisor converts Amount to major units (usually 100).
	Divisor int64 `json:"divisor"`
	// CurrencyCode is the ISO currency code.
	CurrencyCode string `json:"currency_code"`
}

// Decimal converts the money value to a decimal amount in major units.
func (m EtsyMoney) Decimal() decimal.Decimal {
	if m.Divisor <= 0 {
		return decimal.NewFromInt(m.Amount)
	}
	return decimal.NewFromInt(m.Amount).Div(decimal.NewFromInt(m.Divisor))
}

// EtsyReceiptsResponse is the response of the shop receipts listing.
// Results stay raw so the fetch layer can build raw-order envelopes without
// re-encoding.
type EtsyReceiptsResponse struct {
	Count   int64             `json:"count"`
	Results []json.RawMessage `json:"results"`
}

// EtsyReceipt is a single order (receipt) on Etsy.
type EtsyReceipt struct {
	ReceiptID   int64  `json:"receipt_id"`
	SellerID    int64  `json:"seller_user_id"`
	BuyerUserID int64  `json:"buyer_user_id"`
	BuyerEmail  string `json:"buyer_email,omitempty"`

	// Ship-to address
	Name       string `json:"name"`
	FirstLine  string `json:"first_line,omitempty"`
	SecondLine string `json:"second_line,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	Zip        string `json:"zip,omitempty"`
	CountryISO string `json:"country_iso,omitempty"`

	// Status: "open", "payment processing", "paid", "completed", "canceled"
	Status    string `json:"status"`
	IsPaid    bool   `json:"is_paid"`
	IsShipped bool   `json:"is_shipped"`

	MessageFromBuyer string `json:"message_from_buyer,omitempty"`

	CreateTimestamp int64 `json:"create_timestamp"`
	UpdateTimestamp int64 `json:"update_timestamp,omitempty"`

	Grandtotal        EtsyMoney `json:"grandtotal"`
	Subtotal          EtsyMoney `json:"subtotal"`
	TotalPrice        EtsyMoney `json:"total_price"`
	TotalShippingCost EtsyMoney `json:"total_shipping_cost"`
	TotalTaxCost      EtsyMoney `json:"total_tax_cost"`
	TotalVatCost      EtsyMoney `json:"total_vat_cost"`
	DiscountAmt       EtsyMoney `json:"discount_amt"`

	Shipments    []EtsyShipment    `json:"shipments,omitempty"`
	Transactions []EtsyTransaction `json:"transactions,omitempty"`
}

// EtsyShipment is a shipment notification attached to a receipt.
type EtsyShipment struct {
	ReceiptShippingID     int64  `json:"receipt_shipping_id"`
	CarrierName           string `json:"carrier_name,omitempty"`
	TrackingCode          string `json:"tracking_code,omitempty"`
	NotificationTimestamp int64  `json:"shipment_notification_timestamp,omitempty"`
}

// EtsyTransaction is a line item on a receipt.
type EtsyTransaction struct {
	TransactionID int64           `json:"transaction_id"`
	Title         string          `json:"title"`
	SKU           string          `json:"sku,omitempty"`
	ListingID     int64           `json:"listing_id"`
	ProductID     int64           `json:"product_id,omitempty"`
	Quantity      int             `json:"quantity"`
	Price         EtsyMoney       `json:"price"`
	ShippingCost  EtsyMoney       `json:"shipping_cost"`
	Variations    []EtsyVariation `json:"variations,omitempty"`
}

// EtsyVariation is a chosen listing option, e.g. color or size.
type EtsyVariation struct {
	FormattedName  string `json:"formatted_name"`
	FormattedValue string `json:"formatted_value"`
}

// EtsyTrackingRequest is the body for the receipt tracking endpoint.
type EtsyTrackingRequest struct {
	TrackingCode string `json:"tracking_code"`
	CarrierName  string `json:"carrier_name"`
	SendBcc      bool   `json:"send_bcc"`
}
