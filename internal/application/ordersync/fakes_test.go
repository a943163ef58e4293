package ordersync

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/craftshop/backend/internal/domain/integration"
	"github.com/craftshop/backend/internal/domain/sales"
)

// testSale builds a valid canonical sale for one remote order.
func testSale(platform integration.Platform, remoteID string) *sales.Sale {
	s := &sales.Sale{
		Customer:          sales.Customer{Name: "Buyer"},
		Status:            sales.SaleStatusProcessing,
		PaymentStatus:     sales.PaymentStatusPaid,
		FulfillmentStatus: sales.FulfillmentStatusUnfulfilled,
		Subtotal:          decimal.NewFromFloat(50.00),
		Taxes:             decimal.NewFromFloat(5.00),
		Shipping:          decimal.NewFromFloat(10.00),
		PlatformFees:      decimal.NewFromFloat(4.23),
		Total:             decimal.NewFromFloat(65.00),
		Items: []sales.SalesItem{
			{ID: 1, Name: "Item", SKU: "SKU-1", UnitPrice: decimal.NewFromFloat(50.00), Quantity: 1},
		},
		Channel: platform.String(),
		Origin: sales.MarketplaceData{
			ExternalOrderID: remoteID,
			Platform:        platform.String(),
			PlatformFees:    decimal.NewFromFloat(4.23),
		},
	}
	s.RecalculateNet()
	return s
}

// fakeCache is an in-memory Cache that ignores TTLs.
type fakeCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	getErr  error
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string][]byte)}
}

func (c *fakeCache) Get(_ context.Context, key integration.CacheKey) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	data, ok := c.entries[key.String()]
	if !ok {
		return nil, integration.ErrCacheMiss
	}
	return data, nil
}

func (c *fakeCache) Set(_ context.Context, key integration.CacheKey, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key.String()] = value
	return nil
}

func (c *fakeCache) Invalidate(_ context.Context, key integration.CacheKey) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key.String())
	return nil
}

func (c *fakeCache) has(key integration.CacheKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key.String()]
	return ok
}

// fakeMappingStore is an in-memory MappingStore. Save keeps an existing row,
// matching the store's first-writer-wins contract.
type fakeMappingStore struct {
	mu        sync.Mutex
	rows      map[string]*integration.IdentityMapping
	findCalls int
	findErr   error
	saveErr   error
	// onSave runs inside Save before the write, letting tests interleave a
	// racing writer.
	onSave func()
}

func newFakeMappingStore() *fakeMappingStore {
	return &fakeMappingStore{rows: make(map[string]*integration.IdentityMapping)}
}

func mappingKey(platform integration.Platform, kind integration.MappingKind, remoteID string) string {
	return platform.String() + "|" + string(kind) + "|" + remoteID
}

func (s *fakeMappingStore) Find(_ context.Context, platform integration.Platform, kind integration.MappingKind, remoteID string) (*integration.IdentityMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.findCalls++
	if s.findErr != nil {
		return nil, s.findErr
	}
	if row, ok := s.rows[mappingKey(platform, kind, remoteID)]; ok {
		copied := *row
		return &copied, nil
	}
	return nil, integration.ErrMappingNotFound
}

func (s *fakeMappingStore) FindByInternalID(_ context.Context, platform integration.Platform, kind integration.MappingKind, internalID int64) (*integration.IdentityMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, row := range s.rows {
		if row.InternalID == internalID && key == mappingKey(platform, kind, row.RemoteID) {
			copied := *row
			return &copied, nil
		}
	}
	return nil, integration.ErrMappingNotFound
}

func (s *fakeMappingStore) Save(_ context.Context, platform integration.Platform, kind integration.MappingKind, mapping *integration.IdentityMapping) error {
	s.mu.Lock()
	onSave := s.onSave
	s.mu.Unlock()
	if onSave != nil {
		onSave()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	key := mappingKey(platform, kind, mapping.RemoteID)
	if _, ok := s.rows[key]; ok {
		return nil
	}
	copied := *mapping
	s.rows[key] = &copied
	return nil
}

func (s *fakeMappingStore) seed(platform integration.Platform, kind integration.MappingKind, remoteID string, internalID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[mappingKey(platform, kind, remoteID)] = &integration.IdentityMapping{
		RemoteID:   remoteID,
		InternalID: internalID,
	}
}

// fakeDirectory is an in-memory CustomerDirectory assigning sequential ids.
type fakeDirectory struct {
	mu        sync.Mutex
	byEmail   map[string]*sales.Customer
	nextID    int64
	createErr error
	findErr   error
	created   int
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{byEmail: make(map[string]*sales.Customer), nextID: 1000}
}

func (d *fakeDirectory) FindByEmail(_ context.Context, email string) (*sales.Customer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.findErr != nil {
		return nil, d.findErr
	}
	if c, ok := d.byEmail[email]; ok {
		copied := *c
		return &copied, nil
	}
	return nil, integration.ErrCustomerNotFound
}

func (d *fakeDirectory) Create(_ context.Context, customer *sales.Customer) (*sales.Customer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.createErr != nil {
		return nil, d.createErr
	}
	d.nextID++
	d.created++
	copied := *customer
	copied.ID = d.nextID
	if copied.Email != "" {
		d.byEmail[copied.Email] = &copied
	}
	return &copied, nil
}

func (d *fakeDirectory) seed(email string, id int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byEmail[email] = &sales.Customer{ID: id, Email: email}
}

// fakeClient is a scripted MarketplaceClient.
type fakeClient struct {
	platform   integration.Platform
	conn       integration.Connection
	orders     []integration.RawOrder
	fetchErr   error
	fetchCalls int
	// normalizeFn overrides the default normalizer.
	normalizeFn func(raw integration.RawOrder) (*integration.NormalizedOrder, error)
	pushed      []integration.FulfillmentUpdate
	pushErr     error
	authURL     string
}

func (c *fakeClient) Platform() integration.Platform      { return c.platform }
func (c *fakeClient) Connection() integration.Connection  { return c.conn }
func (c *fakeClient) Metrics() integration.TransportMetrics {
	return integration.TransportMetrics{Total: int64(c.fetchCalls)}
}

func (c *fakeClient) FetchOrders(_ context.Context, _ integration.FetchOptions) ([]integration.RawOrder, error) {
	c.fetchCalls++
	if c.fetchErr != nil {
		return nil, c.fetchErr
	}
	return c.orders, nil
}

func (c *fakeClient) Normalize(raw integration.RawOrder) (*integration.NormalizedOrder, error) {
	if c.normalizeFn != nil {
		return c.normalizeFn(raw)
	}
	return &integration.NormalizedOrder{Sale: testSale(c.platform, raw.RemoteID)}, nil
}

func (c *fakeClient) PushFulfillment(_ context.Context, update integration.FulfillmentUpdate) error {
	if c.pushErr != nil {
		return c.pushErr
	}
	c.pushed = append(c.pushed, update)
	return nil
}

func (c *fakeClient) AuthURL(string, []string) (string, error) { return c.authURL, nil }

func (c *fakeClient) ExchangeAuthCode(_ context.Context, _, _ string) (integration.Connection, error) {
	return c.conn, nil
}

// fakeRegistry hands out one scripted client.
type fakeRegistry struct {
	client *fakeClient
	err    error
}

func (r *fakeRegistry) Get(_ integration.Platform, _ integration.Connection) (integration.MarketplaceClient, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.client, nil
}

// fakeRecorder captures sync outcomes.
type fakeRecorder struct {
	mu    sync.Mutex
	calls []recordedSync
}

type recordedSync struct {
	platform  string
	orders    int
	fromCache bool
	err       error
}

func (r *fakeRecorder) RecordSync(_ context.Context, platform string, orders int, _ time.Duration, fromCache bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, recordedSync{platform: platform, orders: orders, fromCache: fromCache, err: err})
}
