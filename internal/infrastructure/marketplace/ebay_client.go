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

// eBay API endpoints.
const (
	EbayAPIBaseURL        = "https://api.ebay.com"
	EbaySandboxAPIBaseURL = "https://api.sandbox.ebay.com"
)

// ebayFeeRate approximates eBay's final value fee when the order does not
// report a marketplace fee (~10% of the order total).
var ebayFeeRate = decimal.NewFromFloat(0.10)

// ebayPageSize is the orders page size (eBay allows up to 200).
const ebayPageSize = 50

// EbayClient synchronizes orders with an eBay seller account.
type EbayClient struct {
	transport *Transport
	tokens    *TokenManager
	baseURL   string
	logger    *zap.Logger
}

// NewEbayClient creates a client bound to one eBay connection.
func NewEbayClient(transport *Transport, tokens *TokenManager, baseURL string, logger *zap.Logger) *EbayClient {
	if baseURL == "" {
		if transport.Connection().Sandbox {
			baseURL = EbaySandboxAPIBaseURL
		} else {
			baseURL = EbayAPIBaseURL
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EbayClient{
		transport: transport,
		tokens:    tokens,
		baseURL:   strings.TrimRight(baseURL, "/"),
		logger:    logger,
	}
}

// Platform returns the platform code this client handles.
func (c *EbayClient) Platform() integration.Platform {
	return integration.PlatformEbay
}

// Connection returns the current connection, including refreshed tokens.
func (c *EbayClient) Connection() integration.Connection {
	return c.transport.Connection()
}

// Metrics returns the transport's counter snapshot.
func (c *EbayClient) Metrics() integration.TransportMetrics {
	return c.transport.Metrics()
}

// FetchOrders pages through the seller's orders using offset pagination.
func (c *EbayClient) FetchOrders(ctx context.Context, opts integration.FetchOptions) ([]integration.RawOrder, error) {
	listURL := c.baseURL + "/sell/fulfillment/v1/order"

	fetch := func(ctx context.Context, cursor Cursor) (Page[integration.RawOrder], error) {
		q := url.Values{}
		q.Set("limit", strconv.Itoa(ebayPageSize))
		q.Set("offset", strconv.Itoa(cursor.Offset))
		if opts.Since != nil {
			q.Set("filter", fmt.Sprintf("creationdate:[%s..]", opts.Since.UTC().Format(time.RFC3339)))
		}

		resp, err := c.transport.Do(ctx, Request{
			Method:   http.MethodGet,
			URL:      listURL,
			Query:    q,
			Endpoint: "order.list",
		})
		if err != nil {
			return Page[integration.RawOrder]{}, err
		}

		var listing EbayOrdersResponse
		if err := json.Unmarshal(resp.Body, &listing); err != nil {
			return Page[integration.RawOrder]{}, integration.NewClientError(0, "malformed orders response: "+err.Error())
		}

		page := Page[integration.RawOrder]{Items: make([]integration.RawOrder, 0, len(listing.Orders))}
		for _, raw := range listing.Orders {
			var peek struct {
				OrderID string `json:"orderId"`
			}
			if err := json.Unmarshal(raw, &peek); err != nil || peek.OrderID == "" {
				c.logger.Warn("skipping ebay order without an id")
				continue
			}
			page.Items = append(page.Items, integration.RawOrder{RemoteID: peek.OrderID, Data: raw})
		}
		nextOffset := cursor.Offset + len(listing.Orders)
		if listing.Next != "" && nextOffset < listing.Total {
			page.Next = &Cursor{Offset: nextOffset}
		}
		return page, nil
	}

	return FetchAll(ctx, fetch, FetchConfig{Budget: opts.Limit, Logger: c.logger})
}

// Normalize converts an eBay order into the canonical sale.
func (c *EbayClient) Normalize(raw integration.RawOrder) (*integration.NormalizedOrder, error) {
	var order EbayOrder
	if err := json.Unmarshal(raw.Data, &order); err != nil {
		return nil, fmt.Errorf("ebay: decoding order %s: %w", raw.RemoteID, err)
	}

	subtotal := order.PricingSummary.PriceSubtotal.Decimal()
	shipping := order.PricingSummary.DeliveryCost.Decimal()
	taxes := order.PricingSummary.Tax.Decimal()
	total := order.PricingSummary.Total.Decimal()
	if total.IsZero() {
		total = subtotal.Add(taxes).Add(shipping)
	}

	// Prefer the fee eBay reports; fall back to the final-value-fee heuristic.
	fees := decimal.Zero
	if order.MarketplaceFee != nil {
		fees = order.MarketplaceFee.Decimal()
	}
	if fees.IsZero() && total.IsPositive() {
		fees = total.Mul(ebayFeeRate).Round(2)
	}

	createdAt := time.Now().UTC()
	if t, err := time.Parse(time.RFC3339, order.CreationDate); err == nil {
		createdAt = t
	}

	sale := &sales.Sale{
		Customer:          ebayCustomer(&order),
		CreatedAt:         createdAt,
		Status:            mapEbayStatus(&order),
		PaymentStatus:     mapEbayPaymentStatus(order.OrderPaymentStatus),
		FulfillmentStatus: mapEbayFulfillmentStatus(order.OrderFulfillmentStatus),
		Subtotal:          subtotal,
		Taxes:             taxes,
		Shipping:          shipping,
		PlatformFees:      fees,
		Total:             total,
		Items:             ebayItems(&order),
		Channel:           integration.PlatformEbay.String(),
		Origin: sales.MarketplaceData{
			ExternalOrderID: raw.RemoteID,
			Platform:        integration.PlatformEbay.String(),
			OrderURL:        fmt.Sprintf("https://www.ebay.com/sh/ord/details?orderid=%s", raw.RemoteID),
			PlatformFees:    fees,
		},
		Notes: order.BuyerNote,
	}
	sale.RecalculateNet()

	if addr, method := ebayShipping(&order); addr != nil {
		sale.ShippingAddress = addr
		sale.ShippingMethod = method
	}

	remoteCustomerID := ""
	if order.Buyer != nil {
		remoteCustomerID = order.Buyer.Username
	}
	return &integration.NormalizedOrder{Sale: sale, RemoteCustomerID: remoteCustomerID}, nil
}

// PushFulfillment creates a shipping fulfillment for the order. eBay
// requires the fulfilled line items, so the order is fetched first.
func (c *EbayClient) PushFulfillment(ctx context.Context, update integration.FulfillmentUpdate) error {
	if err := update.Validate(); err != nil {
		return err
	}

	order, err := c.getOrder(ctx, update.RemoteOrderID)
	if err != nil {
		return err
	}
	lineItems := make([]EbayFulfillmentLineItem, 0, len(order.LineItems))
	for _, li := range order.LineItems {
		lineItems = append(lineItems, EbayFulfillmentLineItem{LineItemID: li.LineItemID, Quantity: li.Quantity})
	}

	_, err = c.transport.Do(ctx, Request{
		Method: http.MethodPost,
		URL:    fmt.Sprintf("%s/sell/fulfillment/v1/order/%s/shipping_fulfillment", c.baseURL, update.RemoteOrderID),
		JSONBody: EbayShippingFulfillmentRequest{
			LineItems:           lineItems,
			ShippedDate:         time.Now().UTC().Format(time.RFC3339),
			ShippingCarrierCode: update.Carrier,
			TrackingNumber:      update.TrackingNumber,
		},
		Endpoint: "order.ship",
	})
	return err
}

func (c *EbayClient) getOrder(ctx context.Context, orderID string) (*EbayOrder, error) {
	resp, err := c.transport.Do(ctx, Request{
		Method:   http.MethodGet,
		URL:      fmt.Sprintf("%s/sell/fulfillment/v1/order/%s", c.baseURL, orderID),
		Endpoint: "order.get",
	})
	if err != nil {
		return nil, err
	}
	var order EbayOrder
	if err := json.Unmarshal(resp.Body, &order); err != nil {
		return nil, integration.NewClientError(0, "malformed order response: "+err.Error())
	}
	return &order, nil
}

// AuthURL builds the eBay authorization-code URL.
func (c *EbayClient) AuthURL(redirectURI string, scopes []string) (string, error) {
	return AuthCodeURL(c.Connection(), redirectURI, scopes)
}

// ExchangeAuthCode trades an authorization code for tokens.
func (c *EbayClient) ExchangeAuthCode(ctx context.Context, code, redirectURI string) (integration.Connection, error) {
	return c.tokens.Exchange(ctx, c.Connection(), code, redirectURI)
}

// ---------------------------------------------------------------------------
// eBay Mapping Tables
// ---------------------------------------------------------------------------

func mapEbayStatus(o *EbayOrder) sales.SaleStatus {
	if o.CancelStatus != nil && o.CancelStatus.CancelState == "CANCELED" {
		return sales.SaleStatusCancelled
	}
	if o.OrderPaymentStatus == "FULLY_REFUNDED" {
		return sales.SaleStatusRefunded
	}
	switch o.OrderFulfillmentStatus {
	case "FULFILLED":
		return sales.SaleStatusShipped
	case "IN_PROGRESS":
		return sales.SaleStatusProcessing
	}
	if o.OrderPaymentStatus == "PAID" {
		return sales.SaleStatusProcessing
	}
	return sales.SaleStatusPending
}

func mapEbayPaymentStatus(status string) sales.PaymentStatus {
	switch status {
	case "PAID":
		return sales.PaymentStatusPaid
	case "FAILED":
		return sales.PaymentStatusFailed
	case "FULLY_REFUNDED":
		return sales.PaymentStatusRefunded
	case "PARTIALLY_REFUNDED":
		return sales.PaymentStatusPartiallyRefunded
	default:
		return sales.PaymentStatusPending
	}
}

func mapEbayFulfillmentStatus(status string) sales.FulfillmentStatus {
	switch status {
	case "FULFILLED":
		return sales.FulfillmentStatusFulfilled
	case "IN_PROGRESS":
		return sales.FulfillmentStatusPartial
	default:
		return sales.FulfillmentStatusUnfulfilled
	}
}

func ebayCustomer(o *EbayOrder) sales.Customer {
	cust := sales.Customer{
		Status: sales.CustomerStatusActive,
		Tier:   sales.CustomerTierStandard,
		Source: integration.PlatformEbay.String(),
	}
	if o.Buyer != nil {
		cust.Name = o.Buyer.Username
		if o.Buyer.RegistrationAddress != nil {
			if o.Buyer.RegistrationAddress.FullName != "" {
				cust.Name = o.Buyer.RegistrationAddress.FullName
			}
			cust.Email = o.Buyer.RegistrationAddress.Email
		}
	}
	for _, instr := range o.Instructions {
		if instr.ShippingStep == nil || instr.ShippingStep.ShipTo == nil {
			continue
		}
		shipTo := instr.ShippingStep.ShipTo
		if cust.Email == "" {
			cust.Email = shipTo.Email
		}
		if shipTo.Phone != nil {
			cust.Phone = shipTo.Phone.PhoneNumber
		}
	}
	return cust
}

func ebayShipping(o *EbayOrder) (*sales.Address, string) {
	for _, instr := range o.Instructions {
		if instr.ShippingStep == nil || instr.ShippingStep.ShipTo == nil {
			continue
		}
		step := instr.ShippingStep
		addr := &sales.Address{Name: step.ShipTo.FullName}
		if ca := step.ShipTo.ContactAddress; ca != nil {
			addr.Line1 = ca.AddressLine1
			addr.Line2 = ca.AddressLine2
			addr.City = ca.City
			addr.State = ca.StateOrProvince
			addr.PostalCode = ca.PostalCode
			addr.Country = ca.CountryCode
		}
		return addr, step.ShippingService
	}
	return nil, ""
}

func ebayItems(o *EbayOrder) []sales.SalesItem {
	items := make([]sales.SalesItem, 0, len(o.LineItems))
	for i, li := range o.LineItems {
		sku := li.SKU
		if sku == "" {
			if li.LegacyItemID != "" {
				sku = "EBAY-" + li.LegacyItemID
			} else {
				sku = "EBAY-" + li.LineItemID
			}
		}
		id := int64(i + 1)
		if parsed, err := strconv.ParseInt(li.LineItemID, 10, 64); err == nil {
			id = parsed
		}
		items = append(items, sales.SalesItem{
			ID:        id,
			Name:      li.Title,
			SKU:       sku,
			UnitPrice: li.LineItemCost.Decimal(),
			Quantity:  li.Quantity,
			Notes:     formatEbayAspects(li.VariationAspects),
		})
	}
	return items
}

func formatEbayAspects(aspects []EbayAspect) string {
	if len(aspects) == 0 {
		return ""
	}
	parts := make([]string, 0, len(aspects))
	for _, a := range aspects {
		parts = append(parts, fmt.Sprintf("%s: %s", a.Name, a.Value))
	}
	return strings.Join(parts, "; ")
}

// Ensure EbayClient implements the marketplace client port.
var _ integration.MarketplaceClient = (*EbayClient)(nil)
