package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
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

// ShopifyAPIVersion is the pinned Admin REST API version.
const ShopifyAPIVersion = "2024-01"

// Shopify's payment processing fee: 2.9% of the total plus 30 cents.
var (
	shopifyFeeRate = decimal.NewFromFloat(0.029)
	shopifyFeeFlat = decimal.NewFromFloat(0.30)
)

// shopifyPageSize is the orders page size (Shopify allows up to 250).
const shopifyPageSize = 50

// ShopifyClient synchronizes orders with a Shopify store.
type ShopifyClient struct {
	transport *Transport
	baseURL   string
	logger    *zap.Logger
	// httpClient handles the per-shop OAuth exchange, which runs outside the
	// authorized transport because no access token exists yet.
	httpClient *http.Client
}

// NewShopifyClient creates a client bound to one Shopify store connection.
func NewShopifyClient(transport *Transport, baseURL string, httpClient *http.Client, logger *zap.Logger) *ShopifyClient {
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s.myshopify.com", transport.Connection().ShopName)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ShopifyClient{
		transport:  transport,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// Platform returns the platform code this client handles.
func (c *ShopifyClient) Platform() integration.Platform {
	return integration.PlatformShopify
}

// Connection returns the current connection. Shopify tokens do not expire,
// so the value never changes mid-sync.
func (c *ShopifyClient) Connection() integration.Connection {
	return c.transport.Connection()
}

// Metrics returns the transport's counter snapshot.
func (c *ShopifyClient) Metrics() integration.TransportMetrics {
	return c.transport.Metrics()
}

// FetchOrders pages through the store's orders following the Link response
// header, Shopify's cursor pagination.
func (c *ShopifyClient) FetchOrders(ctx context.Context, opts integration.FetchOptions) ([]integration.RawOrder, error) {
	firstURL := fmt.Sprintf("%s/admin/api/%s/orders.json", c.baseURL, ShopifyAPIVersion)

	fetch := func(ctx context.Context, cursor Cursor) (Page[integration.RawOrder], error) {
		req := Request{
			Method:   http.MethodGet,
			Endpoint: "orders.list",
		}
		if cursor.URL != "" {
			// Cursor URLs from the Link header already carry every parameter.
			req.URL = cursor.URL
		} else {
			q := url.Values{}
			q.Set("limit", strconv.Itoa(shopifyPageSize))
			q.Set("status", "any")
			if opts.Since != nil {
				q.Set("created_at_min", opts.Since.UTC().Format(time.RFC3339))
			}
			req.URL = firstURL
			req.Query = q
		}

		resp, err := c.transport.Do(ctx, req)
		if err != nil {
			return Page[integration.RawOrder]{}, err
		}

		var listing ShopifyOrdersResponse
		if err := json.Unmarshal(resp.Body, &listing); err != nil {
			return Page[integration.RawOrder]{}, integration.NewClientError(0, "malformed orders response: "+err.Error())
		}

		page := Page[integration.RawOrder]{Items: make([]integration.RawOrder, 0, len(listing.Orders))}
		for _, raw := range listing.Orders {
			var peek struct {
				ID int64 `json:"id"`
			}
			if err := json.Unmarshal(raw, &peek); err != nil || peek.ID == 0 {
				c.logger.Warn("skipping shopify order without an id")
				continue
			}
			page.Items = append(page.Items, integration.RawOrder{
				RemoteID: strconv.FormatInt(peek.ID, 10),
				Data:     raw,
			})
		}
		if next := ParseLinkNext(resp.Header); next != "" {
			page.Next = &Cursor{URL: next}
		}
		return page, nil
	}

	return FetchAll(ctx, fetch, FetchConfig{Budget: opts.Limit, Logger: c.logger})
}

// Normalize converts a Shopify order into the canonical sale.
func (c *ShopifyClient) Normalize(raw integration.RawOrder) (*integration.NormalizedOrder, error) {
	var order ShopifyOrder
	if err := json.Unmarshal(raw.Data, &order); err != nil {
		return nil, fmt.Errorf("shopify: decoding order %s: %w", raw.RemoteID, err)
	}

	subtotal := order.SubtotalPrice.Decimal()
	taxes := order.TotalTax.Decimal()
	shipping := order.TotalShipping.Decimal()
	if shipping.IsZero() {
		for _, line := range order.ShippingLines {
			shipping = shipping.Add(line.Price.Decimal())
		}
	}
	total := order.TotalPrice.Decimal()
	if total.IsZero() {
		total = subtotal.Add(taxes).Add(shipping)
	}

	fees := decimal.Zero
	if total.IsPositive() {
		fees = total.Mul(shopifyFeeRate).Add(shopifyFeeFlat).Round(2)
	}

	createdAt := time.Now().UTC()
	if t, err := time.Parse(time.RFC3339, order.CreatedAt); err == nil {
		createdAt = t
	}

	orderURL := order.OrderStatusURL
	if orderURL == "" {
		orderURL = fmt.Sprintf("%s/admin/orders/%s", c.baseURL, raw.RemoteID)
	}

	sale := &sales.Sale{
		Customer:          shopifyCustomer(&order),
		CreatedAt:         createdAt,
		Status:            mapShopifyStatus(&order),
		PaymentStatus:     mapShopifyPaymentStatus(order.FinancialStatus),
		FulfillmentStatus: mapShopifyFulfillmentStatus(order.FulfillmentStatus),
		Subtotal:          subtotal,
		Taxes:             taxes,
		Shipping:          shipping,
		PlatformFees:      fees,
		Total:             total,
		Items:             shopifyItems(order.LineItems),
		Channel:           integration.PlatformShopify.String(),
		Origin: sales.MarketplaceData{
			ExternalOrderID: raw.RemoteID,
			Platform:        integration.PlatformShopify.String(),
			OrderURL:        orderURL,
			PlatformFees:    fees,
		},
		Notes: order.Note,
	}
	sale.RecalculateNet()

	if addr := shopifyAddress(order.ShippingAddress); addr != nil {
		sale.ShippingAddress = addr
	}
	if len(order.ShippingLines) > 0 {
		sale.ShippingMethod = order.ShippingLines[0].Title
	}
	if len(order.Fulfillments) > 0 {
		last := order.Fulfillments[len(order.Fulfillments)-1]
		sale.TrackingNumber = last.TrackingNumber
	}

	remoteCustomerID := ""
	if order.Customer != nil && order.Customer.ID > 0 {
		remoteCustomerID = strconv.FormatInt(order.Customer.ID, 10)
	}
	return &integration.NormalizedOrder{Sale: sale, RemoteCustomerID: remoteCustomerID}, nil
}

// PushFulfillment creates a fulfillment with tracking on the order.
func (c *ShopifyClient) PushFulfillment(ctx context.Context, update integration.FulfillmentUpdate) error {
	if err := update.Validate(); err != nil {
		return err
	}
	_, err := c.transport.Do(ctx, Request{
		Method: http.MethodPost,
		URL:    fmt.Sprintf("%s/admin/api/%s/orders/%s/fulfillments.json", c.baseURL, ShopifyAPIVersion, update.RemoteOrderID),
		JSONBody: ShopifyFulfillmentRequest{
			Fulfillment: ShopifyFulfillmentBody{
				TrackingNumber:  update.TrackingNumber,
				TrackingCompany: update.Carrier,
				NotifyCustomer:  true,
			},
		},
		Endpoint: "orders.fulfill",
	})
	return err
}

// AuthURL builds the per-shop authorization URL.
func (c *ShopifyClient) AuthURL(redirectURI string, scopes []string) (string, error) {
	return AuthCodeURL(c.Connection(), redirectURI, scopes)
}

// ExchangeAuthCode trades an authorization code for a permanent access
// token. Shopify's exchange endpoint lives on the shop domain and takes the
// app credentials in a JSON body, so it bypasses the shared token manager.
func (c *ShopifyClient) ExchangeAuthCode(ctx context.Context, code, redirectURI string) (integration.Connection, error) {
	conn := c.Connection()
	payload, err := json.Marshal(ShopifyAccessTokenRequest{
		ClientID:     conn.APIKey,
		ClientSecret: conn.APISecret,
		Code:         code,
	})
	if err != nil {
		return conn, integration.NewTokenRefreshError("encoding exchange request: " + err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/admin/oauth/access_token", bytes.NewReader(payload))
	if err != nil {
		return conn, integration.NewTokenRefreshError(err.Error())
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return conn, integration.NewTokenRefreshError(err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return conn, integration.NewTokenRefreshError("reading exchange response: " + err.Error())
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return conn, integration.NewTokenRefreshError(fmt.Sprintf("exchange returned status %d", resp.StatusCode))
	}

	var token ShopifyAccessTokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return conn, integration.NewTokenRefreshError("malformed exchange response: " + err.Error())
	}
	if token.AccessToken == "" {
		return conn, integration.NewTokenRefreshError("exchange response carried no access token")
	}

	// Permanent token: no refresh token, no expiry.
	return conn.WithToken(token.AccessToken, "", time.Time{}), nil
}

// ---------------------------------------------------------------------------
// Shopify Mapping Tables
// ---------------------------------------------------------------------------

func mapShopifyStatus(o *ShopifyOrder) sales.SaleStatus {
	if o.CancelledAt != "" {
		return sales.SaleStatusCancelled
	}
	switch o.FinancialStatus {
	case "refunded":
		return sales.SaleStatusRefunded
	}
	switch o.FulfillmentStatus {
	case "fulfilled":
		if o.ClosedAt != "" {
			return sales.SaleStatusCompleted
		}
		return sales.SaleStatusShipped
	case "partial":
		return sales.SaleStatusProcessing
	}
	if o.FinancialStatus == "paid" || o.FinancialStatus == "partially_refunded" {
		return sales.SaleStatusProcessing
	}
	return sales.SaleStatusPending
}

func mapShopifyPaymentStatus(status string) sales.PaymentStatus {
	switch status {
	case "paid":
		return sales.PaymentStatusPaid
	case "refunded", "voided":
		return sales.PaymentStatusRefunded
	case "partially_refunded":
		return sales.PaymentStatusPartiallyRefunded
	default:
		return sales.PaymentStatusPending
	}
}

func mapShopifyFulfillmentStatus(status string) sales.FulfillmentStatus {
	switch status {
	case "fulfilled":
		return sales.FulfillmentStatusFulfilled
	case "partial":
		return sales.FulfillmentStatusPartial
	default:
		return sales.FulfillmentStatusUnfulfilled
	}
}

func shopifyCustomer(o *ShopifyOrder) sales.Customer {
	cust := sales.Customer{
		Email:  o.Email,
		Phone:  o.Phone,
		Status: sales.CustomerStatusActive,
		Tier:   sales.CustomerTierStandard,
		Source: integration.PlatformShopify.String(),
	}
	if o.Customer != nil {
		cust.Name = strings.TrimSpace(o.Customer.FirstName + " " + o.Customer.LastName)
		if cust.Email == "" {
			cust.Email = o.Customer.Email
		}
		if cust.Phone == "" {
			cust.Phone = o.Customer.Phone
		}
	}
	if cust.Name == "" && o.ShippingAddress != nil {
		cust.Name = o.ShippingAddress.Name
	}
	return cust
}

func shopifyAddress(a *ShopifyAddress) *sales.Address {
	if a == nil {
		return nil
	}
	return &sales.Address{
		Name:       a.Name,
		Line1:      a.Address1,
		Line2:      a.Address2,
		City:       a.City,
		State:      a.Province,
		PostalCode: a.Zip,
		Country:    a.Country,
	}
}

func shopifyItems(items []ShopifyLineItem) []sales.SalesItem {
	out := make([]sales.SalesItem, 0, len(items))
	for _, item := range items {
		sku := item.SKU
		if sku == "" {
			sku = fmt.Sprintf("SHOP-%d", item.ID)
		}
		out = append(out, sales.SalesItem{
			ID:        item.ID,
			Name:      item.Title,
			SKU:       sku,
			UnitPrice: item.Price.Decimal(),
			Quantity:  item.Quantity,
			Notes:     item.VariantTitle,
		})
	}
	return out
}

// Ensure ShopifyClient implements the marketplace client port.
var _ integration.MarketplaceClient = (*ShopifyClient)(nil)
