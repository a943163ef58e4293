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

func newEtsyTestClient(t *testing.T, handler http.Handler) (*EtsyClient, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	conn := integration.Connection{
		Platform:    integration.PlatformEtsy,
		APIKey:      "etsy-key",
		AccessToken: "tok",
		StoreID:     "1234567",
	}
	tr := newTestTransport(conn, server.Client())
	return NewEtsyClient(tr, NewTokenManager(server.Client(), nil), server.URL, nil), server
}

const etsyReceiptJSON = `{
	"receipt_id": 3249,
	"buyer_user_id": 88,
	"buyer_email": "ada@example.com",
	"name": "Ada Lovelace",
	"first_line": "12 Analytical Way",
	"city": "London",
	"zip": "NW1",
	"country_iso": "GB",
	"status": "paid",
	"is_paid": true,
	"is_shipped": false,
	"message_from_buyer": "gift wrap please",
	"create_timestamp": 1714000000,
	"grandtotal": {"amount": 6500, "divisor": 100, "currency_code": "USD"},
	"total_price": {"amount": 5000, "divisor": 100, "currency_code": "USD"},
	"total_shipping_cost": {"amount": 1000, "divisor": 100, "currency_code": "USD"},
	"total_tax_cost": {"amount": 300, "divisor": 100, "currency_code": "USD"},
	"total_vat_cost": {"amount": 200, "divisor": 100, "currency_code": "USD"},
	"transactions": [
		{
			"transaction_id": 9001,
			"title": "Walnut cutting board",
			"listing_id": 555,
			"quantity": 1,
			"price": {"amount": 5000, "divisor": 100, "currency_code": "USD"},
			"variations": [
				{"formatted_name": "Finish", "formatted_value": "Oiled"},
				{"formatted_name": "Size", "formatted_value": "Large"}
			]
		}
	]
}`

func TestEtsyClient_Normalize(t *testing.T) {
	c, _ := newEtsyTestClient(t, http.NotFoundHandler())

	order, err := c.Normalize(integration.RawOrder{RemoteID: "3249", Data: []byte(etsyReceiptJSON)})
	require.NoError(t, err)
	sale := order.Sale

	assert.True(t, sale.Total.Equal(decimal.NewFromFloat(65.00)), "total = %s", sale.Total)
	assert.True(t, sale.Subtotal.Equal(decimal.NewFromFloat(50.00)), "subtotal = %s", sale.Subtotal)
	assert.True(t, sale.Taxes.Equal(decimal.NewFromFloat(5.00)), "taxes = %s", sale.Taxes)
	assert.True(t, sale.Shipping.Equal(decimal.NewFromFloat(10.00)), "shipping = %s", sale.Shipping)
	// 6.5% of 65.00 rounded to cents.
	assert.True(t, sale.PlatformFees.Equal(decimal.NewFromFloat(4.23)), "fees = %s", sale.PlatformFees)
	assert.True(t, sale.NetRevenue.Equal(decimal.NewFromFloat(60.77)), "net = %s", sale.NetRevenue)

	assert.Equal(t, sales.SaleStatusProcessing, sale.Status)
	assert.Equal(t, sales.PaymentStatusPaid, sale.PaymentStatus)
	assert.Equal(t, sales.FulfillmentStatusUnfulfilled, sale.FulfillmentStatus)
	assert.Equal(t, "etsy", sale.Channel)
	assert.Equal(t, "3249", sale.Origin.ExternalOrderID)
	assert.Equal(t, "gift wrap please", sale.Notes)
	assert.Equal(t, "88", order.RemoteCustomerID)
	assert.Equal(t, "ada@example.com", sale.Customer.Email)

	require.Len(t, sale.Items, 1)
	item := sale.Items[0]
	// No SKU on the listing, so one is synthesized from the listing id.
	assert.Equal(t, "ETSY-555", item.SKU)
	assert.Equal(t, "Finish: Oiled; Size: Large", item.Notes)
	assert.True(t, item.UnitPrice.Equal(decimal.NewFromFloat(50.00)))

	require.NotNil(t, sale.ShippingAddress)
	assert.Equal(t, "London", sale.ShippingAddress.City)

	assert.NoError(t, sale.Validate())
}

func TestEtsyClient_NormalizeStatuses(t *testing.T) {
	c, _ := newEtsyTestClient(t, http.NotFoundHandler())

	tests := []struct {
		status      string
		isPaid      bool
		isShipped   bool
		wantStatus  sales.SaleStatus
		wantPayment sales.PaymentStatus
	}{
		{"open", false, false, sales.SaleStatusPending, sales.PaymentStatusPending},
		{"paid", true, false, sales.SaleStatusProcessing, sales.PaymentStatusPaid},
		{"paid", true, true, sales.SaleStatusShipped, sales.PaymentStatusPaid},
		{"completed", true, true, sales.SaleStatusCompleted, sales.PaymentStatusPaid},
		{"canceled", true, false, sales.SaleStatusCancelled, sales.PaymentStatusRefunded},
		{"canceled", false, false, sales.SaleStatusCancelled, sales.PaymentStatusPending},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s_paid=%t_shipped=%t", tt.status, tt.isPaid, tt.isShipped), func(t *testing.T) {
			var receipt EtsyReceipt
			require.NoError(t, json.Unmarshal([]byte(etsyReceiptJSON), &receipt))
			receipt.Status = tt.status
			receipt.IsPaid = tt.isPaid
			receipt.IsShipped = tt.isShipped
			data, err := json.Marshal(receipt)
			require.NoError(t, err)

			order, err := c.Normalize(integration.RawOrder{RemoteID: "3249", Data: data})
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, order.Sale.Status)
			assert.Equal(t, tt.wantPayment, order.Sale.PaymentStatus)
		})
	}
}

func TestEtsyClient_FetchOrdersPaginates(t *testing.T) {
	var offsets []string
	mux := http.NewServeMux()
	mux.HandleFunc("/application/shops/1234567/receipts", func(w http.ResponseWriter, r *http.Request) {
		offsets = append(offsets, r.URL.Query().Get("offset"))

		// 26 receipts total: a full page of 25 then a single trailing one.
		start := 0
		fmt.Sscanf(r.URL.Query().Get("offset"), "%d", &start)
		count := etsyPageSize
		if start > 0 {
			count = 1
		}
		results := make([]json.RawMessage, 0, count)
		for i := 0; i < count; i++ {
			results = append(results, json.RawMessage(fmt.Sprintf(`{"receipt_id": %d}`, 1000+start+i)))
		}
		_ = json.NewEncoder(w).Encode(EtsyReceiptsResponse{Count: 26, Results: results})
	})

	c, _ := newEtsyTestClient(t, mux)
	orders, err := c.FetchOrders(context.Background(), integration.FetchOptions{Limit: 100})
	require.NoError(t, err)
	assert.Len(t, orders, 26)
	assert.Equal(t, []string{"0", "25"}, offsets)
	assert.Equal(t, "1000", orders[0].RemoteID)
	assert.Equal(t, "1025", orders[25].RemoteID)
}

func TestEtsyClient_PushFulfillment(t *testing.T) {
	var gotPath string
	var gotBody EtsyTrackingRequest
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{}`))
	})

	c, _ := newEtsyTestClient(t, mux)
	err := c.PushFulfillment(context.Background(), integration.FulfillmentUpdate{
		RemoteOrderID:  "3249",
		TrackingNumber: "1Z999AA1",
		Carrier:        "ups",
	})
	require.NoError(t, err)
	assert.Equal(t, "/application/shops/1234567/receipts/3249/tracking", gotPath)
	assert.Equal(t, "1Z999AA1", gotBody.TrackingCode)
	assert.Equal(t, "ups", gotBody.CarrierName)
}

func TestEtsyClient_PushFulfillmentValidates(t *testing.T) {
	c, _ := newEtsyTestClient(t, http.NotFoundHandler())
	err := c.PushFulfillment(context.Background(), integration.FulfillmentUpdate{RemoteOrderID: "3249"})
	assert.Error(t, err)
}
