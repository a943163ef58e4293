package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/craftshop/backend/internal/domain/integration"
	"github.com/craftshop/backend/internal/domain/sales"
)

// EtsyAPIBaseURL is the production Etsy v3 API endpoint.
const EtsyAPIBaseURL = "https://openapi.etsy.com/v3"

// etsyFeeRate approximates Etsy's combined transaction and payment fees
// when the API does not report them (~6.5% of the order total).
var etsyFeeRate = decimal.NewFromFloat(0.065)

// etsyPageSize is the receipts page size (Etsy allows up to 100).
const etsyPageSize = 25

// EtsyClient synchronizes orders with an Etsy shop.
type EtsyClient struct {
	transport *Transport
	tokens    *TokenManager
	baseURL   string
	logger    *zap.Logger
}

// NewEtsyClient creates a client bound to one Etsy shop connection.
func NewEtsyClient(transport *Transport, tokens *TokenManager, baseURL string, logger *zap.Logger) *EtsyClient {
	if baseURL == "" {
		baseURL = EtsyAPIBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EtsyClient{
		transport: transport,
		tokens:    tokens,
		baseURL:   strings.TrimRight(baseURL, "/"),
		logger:    logger,
	}
}

// Platform returns the platform code this client handles.
func (c *EtsyClient) Platform() integration.Platform {
	return integration.PlatformEtsy
}

// Connection returns the current connection, including refreshed tokens.
func (c *EtsyClient) Connection() integration.Connection {
	return c.transport.Connection()
}

// Metrics returns the transport's counter snapshot.
func (c *EtsyClient) Metrics() integration.TransportMetrics {
	return c.transport.Metrics()
}

// FetchOrders pages through the shop's receipts using offset pagination.
func (c *EtsyClient) FetchOrders(ctx context.Context, opts integration.FetchOptions) ([]integration.RawOrder, error) {
	shopID := c.Connection().StoreID
	listURL := fmt.Sprintf("%s/application/shops/%s/receipts", c.baseURL, shopID)

	fetch := func(ctx context.Context, cursor Cursor) (Page[integration.RawOrder], error) {
		q := url.Values{}
		q.Set("limit", strconv.Itoa(etsyPageSize))
		q.Set("offset", strconv.Itoa(cursor.Offset))
		if opts.Since != nil {
			q.Set("min_created", strconv.FormatInt(opts.Since.Unix(), 10))
		}

		resp, err := c.transport.Do(ctx, Request{
			Method:   http.MethodGet,
			URL:      listURL,
			Query:    q,
			Endpoint: "receipts.list",
		})
		if err != nil {
			return Page[integration.RawOrder]{}, err
		}

		var listing EtsyReceiptsResponse
		if err := json.Unmarshal(resp.Body, &listing); err != nil {
			return Page[integration.RawOrder]{}, integration.NewClientError(0, "malformed receipts response: "+err.Error())
		}

		page := Page[integration.RawOrder]{Items: make([]integration.RawOrder, 0, len(listing.Results))}
		for _, raw := range listing.Results {
			var peek struct {
				ReceiptID int64 `json:"receipt_id"`
			}
			if err := json.Unmarshal(raw, &peek); err != nil || peek.ReceiptID == 0 {
				c.logger.Warn("skipping receipt without an id")
				continue
			}
			page.Items = append(page.Items, integration.RawOrder{
				RemoteID: strconv.FormatInt(peek.ReceiptID, 10),
				Data:     raw,
			})
		}
		nextOffset := cursor.Offset + len(listing.Results)
		if len(listing.Results) == etsyPageSize && int64(nextOffset) < listing.Count {
			page.Next = &Cursor{Offset: nextOffset}
		}
		return page, nil
	}

	return FetchAll(ctx, fetch, FetchConfig{Budget: opts.Limit, Logger: c.logger})
}

// Normalize converts an Etsy receipt into the canonical sale.
func (c *EtsyClient) Normalize(raw integration.RawOrder) (*integration.NormalizedOrder, error) {
	var receipt EtsyReceipt
	if err := json.Unmarshal(raw.Data, &receipt); err != nil {
		return nil, fmt.Errorf("etsy: decoding receipt %s: %w", raw.RemoteID, err)
	}

	total := receipt.Grandtotal.Decimal()
	taxes := receipt.TotalTaxCost.Decimal().Add(receipt.TotalVatCost.Decimal())
	shipping := receipt.TotalShippingCost.Decimal()
	subtotal := receipt.TotalPrice.Decimal()
	if subtotal.IsZero() && total.IsPositive() {
		subtotal = total.Sub(taxes).Sub(shipping)
	}
	fees := total.Mul(etsyFeeRate).Round(2)

	sale := &sales.Sale{
		Customer:          etsyCustomer(&receipt),
		CreatedAt:         time.Unix(receipt.CreateTimestamp, 0).UTC(),
		Status:            mapEtsyStatus(&receipt),
		PaymentStatus:     mapEtsyPaymentStatus(&receipt),
		FulfillmentStatus: mapEtsyFulfillmentStatus(&receipt),
		Subtotal:          subtotal,
		Taxes:             taxes,
		Shipping:          shipping,
		PlatformFees:      fees,
		Total:             total,
		Items:             etsyItems(&receipt),
		Channel:           integration.PlatformEtsy.String(),
		Origin: sales.MarketplaceData{
			ExternalOrderID: raw.RemoteID,
			Platform:        integration.PlatformEtsy.String(),
			OrderURL:        fmt.Sprintf("https://www.etsy.com/your/orders/%s", raw.RemoteID),
			PlatformFees:    fees,
		},
		Notes: receipt.MessageFromBuyer,
	}
	sale.RecalculateNet()

	if addr := etsyAddress(&receipt); addr != nil {
		sale.ShippingAddress = addr
	}
	if len(receipt.Shipments) > 0 {
		last := receipt.Shipments[len(receipt.Shipments)-1]
		sale.TrackingNumber = last.TrackingCode
		sale.ShippingMethod = last.CarrierName
	}

	remoteCustomerID := ""
	if receipt.BuyerUserID > 0 {
		remoteCustomerID = strconv.FormatInt(receipt.BuyerUserID, 10)
	}
	return &integration.NormalizedOrder{Sale: sale, RemoteCustomerID: remoteCustomerID}, nil
}

// PushFulfillment submits tracking information for a receipt.
func (c *EtsyClient) PushFulfillment(ctx context.Context, update integration.FulfillmentUpdate) error {
	if err := update.Validate(); err != nil {
		return err
	}
	shopID := c.Connection().StoreID
	_, err := c.transport.Do(ctx, Request{
		Method: http.MethodPost,
		URL:    fmt.Sprintf("%s/application/shops/%s/receipts/%s/tracking", c.baseURL, shopID, update.RemoteOrderID),
		JSONBody: EtsyTrackingRequest{
			TrackingCode: update.TrackingNumber,
			CarrierName:  update.Carrier,
		},
		Endpoint: "receipts.tracking",
	})
	return err
}

// AuthURL builds the Etsy authorization-code URL.
func (c *EtsyClient) AuthURL(redirectURI string, scopes []string) (string, error) {
	return AuthCodeURL(c.Connection(), redirectURI, scopes)
}

// ExchangeAuthCode trades an authorization code for tokens.
func (c *EtsyClient) ExchangeAuthCode(ctx context.Context, code, redirectURI string) (integration.Connection, error) {
	return c.tokens.Exchange(ctx, c.Connection(), code, redirectURI)
}

// ---------------------------------------------------------------------------
// Etsy Mapping Tables
// ---------------------------------------------------------------------------

func mapEtsyStatus(r *EtsyReceipt) sales.SaleStatus {
	if r.IsShipped && !isEtsyTerminal(r.Status) {
		return sales.SaleStatusShipped
	}
	switch strings.ToLower(r.Status) {
	case "open", "payment processing":
		return sales.SaleStatusPending
	case "paid":
		return sales.SaleStatusProcessing
	case "completed":
		return sales.SaleStatusCompleted
	case "canceled":
		return sales.SaleStatusCancelled
	default:
		return sales.SaleStatusPending
	}
}

func isEtsyTerminal(status string) bool {
	switch strings.ToLower(status) {
	case "completed", "canceled":
		return true
	default:
		return false
	}
}

func mapEtsyPaymentStatus(r *EtsyReceipt) sales.PaymentStatus {
	if strings.EqualFold(r.Status, "canceled") && r.IsPaid {
		return sales.PaymentStatusRefunded
	}
	if r.IsPaid {
		return sales.PaymentStatusPaid
	}
	return sales.PaymentStatusPending
}

func mapEtsyFulfillmentStatus(r *EtsyReceipt) sales.FulfillmentStatus {
	if r.IsShipped {
		return sales.FulfillmentStatusFulfilled
	}
	return sales.FulfillmentStatusUnfulfilled
}

func etsyCustomer(r *EtsyReceipt) sales.Customer {
	return sales.Customer{
		Name:   r.Name,
		Email:  r.BuyerEmail,
		Status: sales.CustomerStatusActive,
		Tier:   sales.CustomerTierStandard,
		Source: integration.PlatformEtsy.String(),
	}
}

func etsyAddress(r *EtsyReceipt) *sales.Address {
	if r.FirstLine == "" && r.City == "" {
		return nil
	}
	return &sales.Address{
		Name:       r.Name,
		Line1:      r.FirstLine,
		Line2:      r.SecondLine,
		City:       r.City,
		State:      r.State,
		PostalCode: r.Zip,
		Country:    r.CountryISO,
	}
}

func etsyItems(r *EtsyReceipt) []sales.SalesItem {
	items := make([]sales.SalesItem, 0, len(r.Transactions))
	for _, tx := range r.Transactions {
		sku := tx.SKU
		if sku == "" {
			sku = fmt.Sprintf("ETSY-%d", tx.ListingID)
		}
		items = append(items, sales.SalesItem{
			ID:        tx.TransactionID,
			Name:      tx.Title,
			SKU:       sku,
			UnitPrice: tx.Price.Decimal(),
			Quantity:  tx.Quantity,
			Notes:     formatEtsyVariations(tx.Variations),
		})
	}
	return items
}

func formatEtsyVariations(vars []EtsyVariation) string {
	if len(vars) == 0 {
		return ""
	}
	parts := make([]string, 0, len(vars))
	for _, v := range vars {
		parts = append(parts, fmt.Sprintf("%s: %s", v.FormattedName, v.FormattedValue))
	}
	return strings.Join(parts, "; ")
}

// Ensure EtsyClient implements the marketplace client port.
var _ integration.MarketplaceClient = (*EtsyClient)(nil)
