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

// Amazon SP-API regional endpoints.
const (
	AmazonNAAPIBaseURL   = "https://sellingpartnerapi-na.amazon.com"
	AmazonEUAPIBaseURL   = "https://sellingpartnerapi-eu.amazon.com"
	AmazonFEAPIBaseURL   = "https://sellingpartnerapi-fe.amazon.com"
	AmazonSandboxBaseURL = "https://sandbox.sellingpartnerapi-na.amazon.com"
)

// amazonFeeRate approximates Amazon's referral fee when the API does not
// report it (~15% of the order total).
var amazonFeeRate = decimal.NewFromFloat(0.15)

// amazonLookback is the default window when no Since is given. Amazon
// requires a CreatedAfter on every orders query.
const amazonLookback = 30 * 24 * time.Hour

// AmazonClient synchronizes orders with an Amazon seller account through the
// Selling Partner API.
type AmazonClient struct {
	transport *Transport
	tokens    *TokenManager
	baseURL   string
	logger    *zap.Logger
	now       func() time.Time
}

// NewAmazonClient creates a client bound to one Amazon connection. The base
// URL is derived from the connection's region unless overridden.
func NewAmazonClient(transport *Transport, tokens *TokenManager, baseURL string, logger *zap.Logger) *AmazonClient {
	conn := transport.Connection()
	if baseURL == "" {
		baseURL = amazonBaseURL(conn.Region, conn.Sandbox)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AmazonClient{
		transport: transport,
		tokens:    tokens,
		baseURL:   strings.TrimRight(baseURL, "/"),
		logger:    logger,
		now:       time.Now,
	}
}

func amazonBaseURL(region string, sandbox bool) string {
	if sandbox {
		return AmazonSandboxBaseURL
	}
	switch strings.ToLower(region) {
	case "eu":
		return AmazonEUAPIBaseURL
	case "fe":
		return AmazonFEAPIBaseURL
	default:
		return AmazonNAAPIBaseURL
	}
}

// Platform returns the platform code this client handles.
func (c *AmazonClient) Platform() integration.Platform {
	return integration.PlatformAmazon
}

// Connection returns the current connection, including refreshed tokens.
func (c *AmazonClient) Connection() integration.Connection {
	return c.transport.Connection()
}

// Metrics returns the transport's counter snapshot.
func (c *AmazonClient) Metrics() integration.TransportMetrics {
	return c.transport.Metrics()
}

// FetchOrders pages through the account's orders using NextToken pagination.
// Line items live behind a separate endpoint, so each order is bundled with
// its items before normalization.
func (c *AmazonClient) FetchOrders(ctx context.Context, opts integration.FetchOptions) ([]integration.RawOrder, error) {
	listURL := c.baseURL + "/orders/v0/orders"
	createdAfter := c.now().Add(-amazonLookback)
	if opts.Since != nil {
		createdAfter = *opts.Since
	}

	fetch := func(ctx context.Context, cursor Cursor) (Page[integration.RawOrder], error) {
		q := url.Values{}
		if cursor.Token != "" {
			q.Set("NextToken", cursor.Token)
		} else {
			q.Set("CreatedAfter", createdAfter.UTC().Format(time.RFC3339))
			if mid := c.Connection().MarketplaceID; mid != "" {
				q.Set("MarketplaceIds", mid)
			}
		}

		resp, err := c.transport.Do(ctx, Request{
			Method:   http.MethodGet,
			URL:      listURL,
			Query:    q,
			Endpoint: "orders.list",
		})
		if err != nil {
			return Page[integration.RawOrder]{}, err
		}

		var listing AmazonOrdersResponse
		if err := json.Unmarshal(resp.Body, &listing); err != nil {
			return Page[integration.RawOrder]{}, integration.NewClientError(0, "malformed orders response: "+err.Error())
		}

		page := Page[integration.RawOrder]{Items: make([]integration.RawOrder, 0, len(listing.Payload.Orders))}
		for _, raw := range listing.Payload.Orders {
			var order AmazonOrder
			if err := json.Unmarshal(raw, &order); err != nil || order.AmazonOrderID == "" {
				c.logger.Warn("skipping amazon order without an id")
				continue
			}
			items, err := c.fetchOrderItems(ctx, order.AmazonOrderID)
			if err != nil {
				return page, err
			}
			data, err := json.Marshal(AmazonOrderEnvelope{Order: order, Items: items})
			if err != nil {
				return page, fmt.Errorf("amazon: encoding order %s: %w", order.AmazonOrderID, err)
			}
			page.Items = append(page.Items, integration.RawOrder{RemoteID: order.AmazonOrderID, Data: data})
		}
		if listing.Payload.NextToken != "" {
			page.Next = &Cursor{Token: listing.Payload.NextToken}
		}
		return page, nil
	}

	return FetchAll(ctx, fetch, FetchConfig{Budget: opts.Limit, Logger: c.logger})
}

func (c *AmazonClient) fetchOrderItems(ctx context.Context, orderID string) ([]AmazonOrderItem, error) {
	resp, err := c.transport.Do(ctx, Request{
		Method:   http.MethodGet,
		URL:      fmt.Sprintf("%s/orders/v0/orders/%s/orderItems", c.baseURL, orderID),
		Endpoint: "orders.items",
	})
	if err != nil {
		return nil, err
	}
	var items AmazonOrderItemsResponse
	if err := json.Unmarshal(resp.Body, &items); err != nil {
		return nil, integration.NewClientError(0, "malformed order items response: "+err.Error())
	}
	return items.Payload.OrderItems, nil
}

// Normalize converts an order envelope into the canonical sale.
func (c *AmazonClient) Normalize(raw integration.RawOrder) (*integration.NormalizedOrder, error) {
	var env AmazonOrderEnvelope
	if err := json.Unmarshal(raw.Data, &env); err != nil {
		return nil, fmt.Errorf("amazon: decoding order %s: %w", raw.RemoteID, err)
	}
	order := env.Order

	var subtotal, taxes, shipping decimal.Decimal
	for _, item := range env.Items {
		if item.ItemPrice != nil {
			subtotal = subtotal.Add(item.ItemPrice.Decimal())
		}
		if item.ItemTax != nil {
			taxes = taxes.Add(item.ItemTax.Decimal())
		}
		if item.ShippingPrice != nil {
			shipping = shipping.Add(item.ShippingPrice.Decimal())
		}
		if item.ShippingTax != nil {
			taxes = taxes.Add(item.ShippingTax.Decimal())
		}
	}
	total := subtotal.Add(taxes).Add(shipping)
	if order.OrderTotal != nil && order.OrderTotal.Decimal().IsPositive() {
		total = order.OrderTotal.Decimal()
		if subtotal.IsZero() {
			subtotal = total.Sub(taxes).Sub(shipping)
		}
	}
	fees := total.Mul(amazonFeeRate).Round(2)

	createdAt := c.now().UTC()
	if t, err := time.Parse(time.RFC3339, order.PurchaseDate); err == nil {
		createdAt = t
	}

	sale := &sales.Sale{
		Customer:          amazonCustomer(&order),
		CreatedAt:         createdAt,
		Status:            mapAmazonStatus(order.OrderStatus),
		PaymentStatus:     mapAmazonPaymentStatus(order.OrderStatus),
		FulfillmentStatus: mapAmazonFulfillmentStatus(order.OrderStatus),
		Subtotal:          subtotal,
		Taxes:             taxes,
		Shipping:          shipping,
		PlatformFees:      fees,
		Total:             total,
		Items:             amazonItems(env.Items),
		Channel:           integration.PlatformAmazon.String(),
		ShippingMethod:    order.ShipServiceLevel,
		Origin: sales.MarketplaceData{
			ExternalOrderID: raw.RemoteID,
			Platform:        integration.PlatformAmazon.String(),
			OrderURL:        fmt.Sprintf("https://sellercentral.amazon.com/orders-v3/order/%s", raw.RemoteID),
			PlatformFees:    fees,
		},
	}
	sale.RecalculateNet()

	if addr := amazonAddress(order.ShippingAddress); addr != nil {
		sale.ShippingAddress = addr
	}

	remoteCustomerID := ""
	if order.BuyerInfo != nil && order.BuyerInfo.BuyerEmail != "" {
		remoteCustomerID = order.BuyerInfo.BuyerEmail
	}
	return &integration.NormalizedOrder{Sale: sale, RemoteCustomerID: remoteCustomerID}, nil
}

// PushFulfillment confirms shipment for an order.
func (c *AmazonClient) PushFulfillment(ctx context.Context, update integration.FulfillmentUpdate) error {
	if err := update.Validate(); err != nil {
		return err
	}
	_, err := c.transport.Do(ctx, Request{
		Method: http.MethodPost,
		URL:    fmt.Sprintf("%s/orders/v0/orders/%s/shipmentConfirmation", c.baseURL, update.RemoteOrderID),
		JSONBody: AmazonShipmentConfirmation{
			MarketplaceID:  c.Connection().MarketplaceID,
			CarrierCode:    update.Carrier,
			TrackingNumber: update.TrackingNumber,
			ShipDate:       c.now().UTC().Format(time.RFC3339),
		},
		Endpoint: "orders.ship",
	})
	return err
}

// AuthURL builds the Login-with-Amazon authorization URL.
func (c *AmazonClient) AuthURL(redirectURI string, scopes []string) (string, error) {
	return AuthCodeURL(c.Connection(), redirectURI, scopes)
}

// ExchangeAuthCode trades an authorization code for LWA tokens.
func (c *AmazonClient) ExchangeAuthCode(ctx context.Context, code, redirectURI string) (integration.Connection, error) {
	return c.tokens.Exchange(ctx, c.Connection(), code, redirectURI)
}

// ---------------------------------------------------------------------------
// Amazon Mapping Tables
// ---------------------------------------------------------------------------

func mapAmazonStatus(status string) sales.SaleStatus {
	switch status {
	case "Pending":
		return sales.SaleStatusPending
	case "Unshipped", "PartiallyShipped":
		return sales.SaleStatusProcessing
	case "Shipped":
		return sales.SaleStatusShipped
	case "Canceled":
		return sales.SaleStatusCancelled
	default:
		return sales.SaleStatusPending
	}
}

func mapAmazonPaymentStatus(status string) sales.PaymentStatus {
	switch status {
	case "Pending":
		return sales.PaymentStatusPending
	case "Canceled":
		return sales.PaymentStatusRefunded
	default:
		return sales.PaymentStatusPaid
	}
}

func mapAmazonFulfillmentStatus(status string) sales.FulfillmentStatus {
	switch status {
	case "Shipped":
		return sales.FulfillmentStatusFulfilled
	case "PartiallyShipped":
		return sales.FulfillmentStatusPartial
	default:
		return sales.FulfillmentStatusUnfulfilled
	}
}

func amazonCustomer(o *AmazonOrder) sales.Customer {
	cust := sales.Customer{
		Status: sales.CustomerStatusActive,
		Tier:   sales.CustomerTierStandard,
		Source: integration.PlatformAmazon.String(),
	}
	if o.BuyerInfo != nil {
		cust.Name = o.BuyerInfo.BuyerName
		cust.Email = o.BuyerInfo.BuyerEmail
	}
	if cust.Name == "" && o.ShippingAddress != nil {
		cust.Name = o.ShippingAddress.Name
	}
	if o.ShippingAddress != nil {
		cust.Phone = o.ShippingAddress.Phone
	}
	return cust
}

func amazonAddress(a *AmazonAddress) *sales.Address {
	if a == nil {
		return nil
	}
	return &sales.Address{
		Name:       a.Name,
		Line1:      a.AddressLine1,
		Line2:      a.AddressLine2,
		City:       a.City,
		State:      a.StateOrRegion,
		PostalCode: a.PostalCode,
		Country:    a.CountryCode,
	}
}

func amazonItems(items []AmazonOrderItem) []sales.SalesItem {
	out := make([]sales.SalesItem, 0, len(items))
	for i, item := range items {
		sku := item.SellerSKU
		if sku == "" && item.ASIN != "" {
			sku = "AMZN-" + item.ASIN
		}
		qty := item.QuantityOrdered
		if qty <= 0 {
			qty = 1
		}
		unit := decimal.Zero
		if item.ItemPrice != nil {
			// ItemPrice is the line total, so divide it back out.
			unit = item.ItemPrice.Decimal().Div(decimal.NewFromInt(int64(qty))).Round(2)
		}
		id := int64(i + 1)
		if parsed, err := strconv.ParseInt(item.OrderItemID, 10, 64); err == nil {
			id = parsed
		}
		out = append(out, sales.SalesItem{
			ID:        id,
			Name:      item.Title,
			SKU:       sku,
			UnitPrice: unit,
			Quantity:  qty,
		})
	}
	return out
}

// Ensure AmazonClient implements the marketplace client port.
var _ integration.MarketplaceClient = (*AmazonClient)(nil)
