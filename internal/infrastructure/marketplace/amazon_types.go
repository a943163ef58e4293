package marketplace

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Amazon SP-API Wire Types
// ---------------------------------------------------------------------------

// AmazonMoney is Amazon's string-encoded money representation.
type AmazonMoney struct {
	Amount       string `json:"Amount"`
	CurrencyCode string `json:"CurrencyCode,omitempty"`
}

// Decimal parses the amount; malformed or empty values parse as zero.
func (m AmazonMoney) Decimal() decimal.Decimal {
	if m.Amount == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(m.Amount)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// AmazonOrdersResponse wraps the SP-API orders listing payload.
type AmazonOrdersResponse struct {
	Payload AmazonOrdersPayload `json:"payload"`
}

// AmazonOrdersPayload carries the orders page and the continuation token.
type AmazonOrdersPayload struct {
	Orders    []json.RawMessage `json:"Orders"`
	NextToken string            `json:"NextToken,omitempty"`
}

// AmazonOrderItemsResponse wraps the SP-API order items payload.
type AmazonOrderItemsResponse struct {
	Payload AmazonOrderItemsPayload `json:"payload"`
}

// AmazonOrderItemsPayload carries the items of one order.
type AmazonOrderItemsPayload struct {
	AmazonOrderID string            `json:"AmazonOrderId"`
	OrderItems    []AmazonOrderItem `json:"OrderItems"`
	NextToken     string            `json:"NextToken,omitempty"`
}

// AmazonOrder is a single order from the SP-API Orders endpoint.
type AmazonOrder struct {
	AmazonOrderID string `json:"AmazonOrderId"`
	PurchaseDate  string `json:"PurchaseDate"`
	LastUpdate    string `json:"LastUpdateDate,omitempty"`

	// OrderStatus: Pending, Unshipped, PartiallyShipped, Shipped, Canceled
	OrderStatus string `json:"OrderStatus"`

	OrderTotal       *AmazonMoney   `json:"OrderTotal,omitempty"`
	BuyerInfo        *AmazonBuyer   `json:"BuyerInfo,omitempty"`
	ShippingAddress  *AmazonAddress `json:"ShippingAddress,omitempty"`
	ShipServiceLevel string         `json:"ShipServiceLevel,omitempty"`
	MarketplaceID    string         `json:"MarketplaceId,omitempty"`
	SalesChannel     string         `json:"SalesChannel,omitempty"`
	IsPrime          bool           `json:"IsPrime,omitempty"`
}

// AmazonBuyer is the buyer block on an order.
type AmazonBuyer struct {
	BuyerEmail string `json:"BuyerEmail,omitempty"`
	BuyerName  string `json:"BuyerName,omitempty"`
}

// AmazonAddress is the ship-to address of an order.
type AmazonAddress struct {
	Name          string `json:"Name,omitempty"`
	AddressLine1  string `json:"AddressLine1,omitempty"`
	AddressLine2  string `json:"AddressLine2,omitempty"`
	City          string `json:"City,omitempty"`
	StateOrRegion string `json:"StateOrRegion,omitempty"`
	PostalCode    string `json:"PostalCode,omitempty"`
	CountryCode   string `json:"CountryCode,omitempty"`
	Phone         string `json:"Phone,omitempty"`
}

// AmazonOrderItem is a line item on an order.
type AmazonOrderItem struct {
	OrderItemID     string `json:"OrderItemId"`
	ASIN            string `json:"ASIN,omitempty"`
	SellerSKU       string `json:"SellerSKU,omitempty"`
	Title           string `json:"Title"`
	QuantityOrdered int    `json:"QuantityOrdered"`
	// ItemPrice is the line total, not the unit price.
	ItemPrice     *AmazonMoney `json:"ItemPrice,omitempty"`
	ItemTax       *AmazonMoney `json:"ItemTax,omitempty"`
	ShippingPrice *AmazonMoney `json:"ShippingPrice,omitempty"`
	ShippingTax   *AmazonMoney `json:"ShippingTax,omitempty"`
}

// AmazonOrderEnvelope bundles an order with its separately fetched items so
// normalization sees a self-contained record.
type AmazonOrderEnvelope struct {
	Order AmazonOrder       `json:"order"`
	Items []AmazonOrderItem `json:"items"`
}

// AmazonShipmentConfirmation is the body for the shipment confirmation
// endpoint.
type AmazonShipmentConfirmation struct {
	MarketplaceID  string `json:"marketplaceId"`
	CarrierCode    string `json:"carrierCode"`
	TrackingNumber string `json:"trackingNumber"`
	ShipDate       string `json:"shipDate"`
	ShippingMethod string `json:"shippingMethod,omitempty"`
}
