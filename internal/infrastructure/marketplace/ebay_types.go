package marketplace

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// eBay Sell Fulfillment API Wire Types
// ---------------------------------------------------------------------------

// EbayAmount is eBay's string-encoded money representation.
type EbayAmount struct {
	Value    string `json:"value"`
	Currency string `json:"currency,omitempty"`
}

// Decimal parses the amount; malformed or empty values parse as zero.
func (a EbayAmount) Decimal() decimal.Decimal {
	if a.Value == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(a.Value)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// EbayOrdersResponse is the response of the order listing. Orders stay raw
// for the raw-order envelope.
type EbayOrdersResponse struct {
	Orders []json.RawMessage `json:"orders"`
	Total  int               `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
	Next   string            `json:"next,omitempty"`
}

// EbayOrder is a single order from the Sell Fulfillment API.
type EbayOrder struct {
	OrderID      string `json:"orderId"`
	CreationDate string `json:"creationDate"`

	// OrderFulfillmentStatus: NOT_STARTED, IN_PROGRESS, FULFILLED
	OrderFulfillmentStatus string `json:"orderFulfillmentStatus"`
	// OrderPaymentStatus: PAID, PENDING, FAILED, FULLY_REFUNDED, PARTIALLY_REFUNDED
	OrderPaymentStatus string `json:"orderPaymentStatus"`

	CancelStatus *EbayCancelStatus `json:"cancelStatus,omitempty"`

	Buyer          *EbayBuyer          `json:"buyer,omitempty"`
	PricingSummary EbayPricingSummary  `json:"pricingSummary"`
	TotalFeeBasis  *EbayAmount         `json:"totalFeeBasisAmount,omitempty"`
	MarketplaceFee *EbayAmount         `json:"totalMarketplaceFee,omitempty"`
	LineItems      []EbayLineItem      `json:"lineItems,omitempty"`
	Instructions   []EbayStartInstruct `json:"fulfillmentStartInstructions,omitempty"`
	BuyerNote      string              `json:"buyerCheckoutNotes,omitempty"`
}

// EbayCancelStatus carries the cancellation state of an order.
type EbayCancelStatus struct {
	// CancelState: NONE_REQUESTED, IN_PROGRESS, CANCELED
	CancelState string `json:"cancelState"`
}

// EbayBuyer identifies the purchasing account.
type EbayBuyer struct {
	Username            string               `json:"username"`
	RegistrationAddress *EbayContactAddress1 `json:"buyerRegistrationAddress,omitempty"`
}

// EbayContactAddress1 is the buyer registration contact block.
type EbayContactAddress1 struct {
	FullName string `json:"fullName,omitempty"`
	Email    string `json:"email,omitempty"`
}

// EbayPricingSummary is the order money breakdown.
type EbayPricingSummary struct {
	PriceSubtotal EbayAmount `json:"priceSubtotal"`
	DeliveryCost  EbayAmount `json:"deliveryCost"`
	Tax           EbayAmount `json:"tax"`
	Total         EbayAmount `json:"total"`
}

// EbayLineItem is a line item on an order.
type EbayLineItem struct {
	LineItemID   string     `json:"lineItemId"`
	LegacyItemID string     `json:"legacyItemId,omitempty"`
	SKU          string     `json:"sku,omitempty"`
	Title        string     `json:"title"`
	Quantity     int        `json:"quantity"`
	LineItemCost EbayAmount `json:"lineItemCost"`
	Total        EbayAmount `json:"total"`
	// Variation aspects, e.g. {"Color": "Walnut"}
	VariationAspects []EbayAspect `json:"variationAspects,omitempty"`
}

// EbayAspect is one name/value variation pair.
type EbayAspect struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// EbayStartInstruct carries shipping instructions including the ship-to.
type EbayStartInstruct struct {
	ShippingStep *EbayShippingStep `json:"shippingStep,omitempty"`
}

// EbayShippingStep holds the ship-to contact.
type EbayShippingStep struct {
	ShipTo          *EbayShipTo `json:"shipTo,omitempty"`
	ShippingCarrier string      `json:"shippingCarrierCode,omitempty"`
	ShippingService string      `json:"shippingServiceCode,omitempty"`
}

// EbayShipTo is the delivery contact.
type EbayShipTo struct {
	FullName       string            `json:"fullName,omitempty"`
	Email          string            `json:"email,omitempty"`
	Phone          *EbayPhone        `json:"primaryPhone,omitempty"`
	ContactAddress *EbayShipToFields `json:"contactAddress,omitempty"`
}

// EbayPhone is a phone number wrapper.
type EbayPhone struct {
	PhoneNumber string `json:"phoneNumber"`
}

// EbayShipToFields is the delivery address.
type EbayShipToFields struct {
	AddressLine1    string `json:"addressLine1,omitempty"`
	AddressLine2    string `json:"addressLine2,omitempty"`
	City            string `json:"city,omitempty"`
	StateOrProvince string `json:"stateOrProvince,omitempty"`
	PostalCode      string `json:"postalCode,omitempty"`
	CountryCode     string `json:"countryCode,omitempty"`
}

// EbayShippingFulfillmentRequest is the body for creating a shipping
// fulfillment (marking an order shipped).
type EbayShippingFulfillmentRequest struct {
	LineItems           []EbayFulfillmentLineItem `json:"lineItems"`
	ShippedDate         string                    `json:"shippedDate,omitempty"`
	ShippingCarrierCode string                    `json:"shippingCarrierCode,omitempty"`
	TrackingNumber      string                    `json:"trackingNumber"`
}

// EbayFulfillmentLineItem references a fulfilled line item.
type EbayFulfillmentLineItem struct {
	LineItemID string `json:"lineItemId"`
	Quantity   int    `json:"quantity"`
}
