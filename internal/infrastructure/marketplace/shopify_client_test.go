package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftshop/backend/internal/domain/integration"
	"github.com/craftshop/backend/internal/domain/sales"
)

func newShopifyTestClient(t *testing.T, handler http.Handler) (*ShopifyClient, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	conn := integration.Connection{
		Platform:    integration.PlatformShopify,
		APIKey:      "app-key",
		APISecret:   "app-secret",
		AccessToken: "shpat_token",
		ShopName:    "craftshop",
	}
	tr := newTestTransport(conn, server.Client())
	return NewShopifyClient(tr, server.URL, server.Client(), nil), server
}

func shopifyOrder() ShopifyOrder {
	return ShopifyOrder{
		ID:              820982911946154508,
		Name:            "#1001",
		CreatedAt:       "2026-08-28T10:15:00Z",
		FinancialStatus: "paid",
		Email:           "jane@example.com",
		Customer:        &ShopifyCustomer{ID: 207119551, FirstName: "Jane", LastName: "Smith"},
		SubtotalPrice:   "50.00",
		TotalTax:        "5.00",
		TotalPrice:      "65.00",
		ShippingLines:   []ShopifyShippingLine{{Title: "Standard", Price: "10.00"}},
		ShippingAddress: &ShopifyAddress{Name: "Jane Smith", Address1: "123 Elm St", City: "Ottawa", Country: "CA"},
		LineItems: []ShopifyLineItem{
			{ID: 466157049, Title: "Oak bookends", VariantTitle: "Pair", Quantity: 1, Price: "50.00"},
		},
	}
}

func TestShopifyClient_Normalize(t *testing.T) {
	c, _ := newShopifyTestClient(t, http.NotFoundHandler())

	data, err := json.Marshal(shopifyOrder())
	require.NoError(t, err)
	order, err := c.Normalize(integration.RawOrder{RemoteID: "820982911946154508", Data: data})
	require.NoError(t, err)
	sale := order.Sale

	assert.True(t, sale.Total.Equal(decimal.NewFromFloat(65.00)))
	// Shipping falls back to the shipping lines when total_shipping_price is absent.
	assert.True(t, sale.Shipping.Equal(decimal.NewFromFloat(10.00)), "shipping = %s", sale.Shipping)
	// 2.9% of 65.00 plus the 30-cent flat fee.
	assert.True(t, sale.PlatformFees.Equal(decimal.NewFromFloat(2.19)), "fees = %s", sale.PlatformFees)
	assert.True(t, sale.NetRevenue.Equal(decimal.NewFromFloat(62.81)), "net = %s", sale.NetRevenue)

	assert.Equal(t, sales.SaleStatusProcessing, sale.Status)
	assert.Equal(t, sales.PaymentStatusPaid, sale.PaymentStatus)
	assert.Equal(t, sales.FulfillmentStatusUnfulfilled, sale.FulfillmentStatus)
	assert.Equal(t, "207119551", order.RemoteCustomerID)
	assert.Equal(t, "Jane Smith", sale.Customer.Name)
	assert.Equal(t, "jane@example.com", sale.Customer.Email)
	assert.Equal(t, "Standard", sale.ShippingMethod)

	require.Len(t, sale.Items, 1)
	assert.Equal(t, "SHOP-466157049", sale.Items[0].SKU)
	assert.Equal(t, "Pair", sale.Items[0].Notes)

	assert.NoError(t, sale.Validate())
}

func TestShopifyClient_NormalizeStatuses(t *testing.T) {
	c, _ := newShopifyTestClient(t, http.NotFoundHandler())

	tests := []struct {
		name       string
		mutate     func(*ShopifyOrder)
		wantStatus sales.SaleStatus
	}{
		{
			name:       "cancelled wins over everything",
			mutate:     func(o *ShopifyOrder) { o.CancelledAt = "2026-08-29T00:00:00Z"; o.FulfillmentStatus = "fulfilled" },
			wantStatus: sales.SaleStatusCancelled,
		},
		{
			name:       "refunded",
			mutate:     func(o *ShopifyOrder) { o.FinancialStatus = "refunded" },
			wantStatus: sales.SaleStatusRefunded,
		},
		{
			name:       "fulfilled open order is shipped",
			mutate:     func(o *ShopifyOrder) { o.FulfillmentStatus = "fulfilled" },
			wantStatus: sales.SaleStatusShipped,
		},
		{
			name: "fulfilled closed order is completed",
			mutate: func(o *ShopifyOrder) {
				o.FulfillmentStatus = "fulfilled"
				o.ClosedAt = "2026-08-29T00:00:00Z"
			},
			wantStatus: sales.SaleStatusCompleted,
		},
		{
			name:       "partial fulfillment is processing",
			mutate:     func(o *ShopifyOrder) { o.FulfillmentStatus = "partial" },
			wantStatus: sales.SaleStatusProcessing,
		},
		{
			name:       "unpaid is pending",
			mutate:     func(o *ShopifyOrder) { o.FinancialStatus = "pending" },
			wantStatus: sales.SaleStatusPending,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := shopifyOrder()
			tt.mutate(&order)
			data, err := json.Marshal(order)
			require.NoError(t, err)

			got, err := c.Normalize(integration.RawOrder{RemoteID: "1", Data: data})
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, got.Sale.Status)
		})
	}
}

func TestShopifyClient_FetchOrdersFollowsLinkHeader(t *testing.T) {
	var paths []string
	mux := http.NewServeMux()
	mux.HandleFunc("/admin/api/2024-01/orders.json", func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.String())

		if r.URL.Query().Get("page_info") == "" {
			assert.Equal(t, "any", r.URL.Query().Get("status"))
			w.Header().Set("Link", fmt.Sprintf(`<http://%s/admin/api/2024-01/orders.json?page_info=cursor2&limit=50>; rel="next"`, r.Host))
			_ = json.NewEncoder(w).Encode(ShopifyOrdersResponse{Orders: []json.RawMessage{
				json.RawMessage(`{"id": 101}`),
				json.RawMessage(`{"id": 102}`),
			}})
			return
		}
		assert.Equal(t, "cursor2", r.URL.Query().Get("page_info"))
		_ = json.NewEncoder(w).Encode(ShopifyOrdersResponse{Orders: []json.RawMessage{
			json.RawMessage(`{"id": 103}`),
		}})
	})

	c, _ := newShopifyTestClient(t, mux)
	orders, err := c.FetchOrders(context.Background(), integration.FetchOptions{Limit: 100})
	require.NoError(t, err)
	require.Len(t, orders, 3)
	assert.Equal(t, "101", orders[0].RemoteID)
	assert.Equal(t, "103", orders[2].RemoteID)
	assert.Len(t, paths, 2)
}

func TestShopifyClient_PushFulfillment(t *testing.T) {
	var gotPath string
	var gotBody ShopifyFulfillmentRequest
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusCreated)
	})

	c, _ := newShopifyTestClient(t, mux)
	err := c.PushFulfillment(context.Background(), integration.FulfillmentUpdate{
		RemoteOrderID:  "820982911946154508",
		TrackingNumber: "123456789012",
		Carrier:        "Canada Post",
	})
	require.NoError(t, err)
	assert.Equal(t, "/admin/api/2024-01/orders/820982911946154508/fulfillments.json", gotPath)
	assert.Equal(t, "123456789012", gotBody.Fulfillment.TrackingNumber)
	assert.Equal(t, "Canada Post", gotBody.Fulfillment.TrackingCompany)
	assert.True(t, gotBody.Fulfillment.NotifyCustomer)
}

func TestShopifyClient_ExchangeAuthCode(t *testing.T) {
	var gotReq ShopifyAccessTokenRequest
	mux := http.NewServeMux()
	mux.HandleFunc("/admin/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_ = json.NewEncoder(w).Encode(ShopifyAccessTokenResponse{AccessToken: "shpat_new", Scope: "read_orders"})
	})

	c, _ := newShopifyTestClient(t, mux)
	conn, err := c.ExchangeAuthCode(context.Background(), "code-123", "https://console.example/cb")
	require.NoError(t, err)

	assert.Equal(t, "app-key", gotReq.ClientID)
	assert.Equal(t, "app-secret", gotReq.ClientSecret)
	assert.Equal(t, "code-123", gotReq.Code)

	assert.Equal(t, "shpat_new", conn.AccessToken)
	assert.Empty(t, conn.RefreshToken)
	// Shopify tokens are permanent.
	assert.True(t, conn.Expiry().IsZero())
}

func TestShopifyClient_ExchangeAuthCodeRejected(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/admin/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_request"}`, http.StatusBadRequest)
	})

	c, _ := newShopifyTestClient(t, mux)
	_, err := c.ExchangeAuthCode(context.Background(), "bad-code", "https://console.example/cb")
	require.Error(t, err)
	apiErr, ok := integration.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, integration.ErrCodeTokenRefreshFailed, apiErr.Code)
}
