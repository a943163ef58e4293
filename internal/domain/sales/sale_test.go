package sales

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func validSale() *Sale {
	s := &Sale{
		Customer:          Customer{ID: 1, Name: "Ada"},
		Status:            SaleStatusProcessing,
		PaymentStatus:     PaymentStatusPaid,
		FulfillmentStatus: FulfillmentStatusUnfulfilled,
		Subtotal:          decimal.NewFromFloat(50.00),
		Taxes:             decimal.NewFromFloat(5.00),
		Shipping:          decimal.NewFromFloat(10.00),
		PlatformFees:      decimal.NewFromFloat(4.23),
		Total:             decimal.NewFromFloat(65.00),
		Items: []SalesItem{
			{ID: 1, Name: "Walnut cutting board", SKU: "WCB-01", UnitPrice: decimal.NewFromFloat(50.00), Quantity: 1},
		},
		Channel: "etsy",
		Origin: MarketplaceData{
			ExternalOrderID: "3249",
			Platform:        "etsy",
			PlatformFees:    decimal.NewFromFloat(4.23),
		},
	}
	s.RecalculateNet()
	return s
}

func TestSale_Validate(t *testing.T) {
	assert.NoError(t, validSale().Validate())
}

func TestSale_Validate_NoItems(t *testing.T) {
	s := validSale()
	s.Items = nil
	assert.ErrorIs(t, s.Validate(), ErrSaleNoItems)
}

func TestSale_Validate_MissingOrigin(t *testing.T) {
	s := validSale()
	s.Origin.ExternalOrderID = ""
	assert.ErrorIs(t, s.Validate(), ErrSaleMissingOrigin)

	s = validSale()
	s.Origin.Platform = ""
	assert.ErrorIs(t, s.Validate(), ErrSaleMissingOrigin)
}

func TestSale_Validate_TotalMismatch(t *testing.T) {
	s := validSale()
	s.Total = decimal.NewFromFloat(70.00)
	assert.ErrorIs(t, s.Validate(), ErrSaleTotalMismatch)
}

func TestSale_Validate_NetMismatch(t *testing.T) {
	s := validSale()
	s.NetRevenue = decimal.NewFromFloat(65.00)
	assert.ErrorIs(t, s.Validate(), ErrSaleNetMismatch)
}

func TestSale_Validate_CentRoundingTolerated(t *testing.T) {
	s := validSale()
	// One cent of rounding drift must not fail the invariant.
	s.Total = decimal.NewFromFloat(65.01)
	s.RecalculateNet()
	assert.NoError(t, s.Validate())
}

func TestSale_RecalculateNet(t *testing.T) {
	s := validSale()
	s.Total = decimal.NewFromFloat(65.00)
	s.PlatformFees = decimal.NewFromFloat(4.23)
	s.RecalculateNet()
	assert.True(t, s.NetRevenue.Equal(decimal.NewFromFloat(60.77)), "net = %s", s.NetRevenue)
}

func TestSale_MarkShipped(t *testing.T) {
	s := validSale()
	s.MarkShipped("1Z999AA10123456784", "UPS Ground")

	assert.Equal(t, SaleStatusShipped, s.Status)
	assert.Equal(t, FulfillmentStatusFulfilled, s.FulfillmentStatus)
	assert.Equal(t, "1Z999AA10123456784", s.TrackingNumber)
	assert.Equal(t, "UPS Ground", s.ShippingMethod)

	// An empty method keeps the existing one.
	s.MarkShipped("1Z999AA10123456785", "")
	assert.Equal(t, "UPS Ground", s.ShippingMethod)
}

func TestSaleStatus_IsFinal(t *testing.T) {
	assert.True(t, SaleStatusCompleted.IsFinal())
	assert.True(t, SaleStatusCancelled.IsFinal())
	assert.True(t, SaleStatusRefunded.IsFinal())
	assert.False(t, SaleStatusPending.IsFinal())
	assert.False(t, SaleStatusShipped.IsFinal())
}

func TestStatusEnums_IsValid(t *testing.T) {
	assert.True(t, SaleStatusPending.IsValid())
	assert.False(t, SaleStatus("lost").IsValid())
	assert.True(t, PaymentStatusPartiallyRefunded.IsValid())
	assert.False(t, PaymentStatus("unknown").IsValid())
	assert.True(t, FulfillmentStatusPartial.IsValid())
	assert.False(t, FulfillmentStatus("shipped").IsValid())
}

func TestCustomer_Sentinels(t *testing.T) {
	assert.True(t, Customer{ID: CustomerAnonymousID}.IsPlaceholder())
	assert.True(t, Customer{ID: CustomerLookupFailedID}.IsPlaceholder())
	assert.False(t, Customer{ID: 7}.IsPlaceholder())
	assert.True(t, Customer{ID: 7}.IsResolved())
}
