package integration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/craftshop/backend/internal/domain/sales"
)

// Port errors
var (
	// ErrCacheMiss is returned by Cache.Get when the key is absent or expired.
	ErrCacheMiss = errors.New("integration: cache miss")
	// ErrMappingNotFound is returned when no identity mapping exists.
	ErrMappingNotFound = errors.New("integration: identity mapping not found")
	// ErrCustomerNotFound is returned by CustomerDirectory lookups.
	ErrCustomerNotFound = errors.New("integration: customer not found")
	// ErrClientNotRegistered is returned when no client exists for a platform.
	ErrClientNotRegistered = errors.New("integration: no client registered for platform")
)

// ---------------------------------------------------------------------------
// Cache Port
// ---------------------------------------------------------------------------

// CacheKey is a structured cache key. Keys are composed from a tuple rather
// than by string concatenation at call sites, so two resources can never
// collide by accident.
type CacheKey struct {
	Platform Platform
	// Resource names the cached resource type, e.g. "orders" or
	// "customer-mapping".
	Resource string
	// ID distinguishes instances of the resource (account key, remote id).
	ID string
}

// String renders the key in its canonical form.
func (k CacheKey) String() string {
	return fmt.Sprintf("%s:%s:%s", k.Platform, k.Resource, k.ID)
}

// Cache is the key/value cache port with per-entry TTL. Entries past their
// TTL are treated as absent. Implementations are externally synchronized.
type Cache interface {
	// Get returns the cached value or ErrCacheMiss.
	Get(ctx context.Context, key CacheKey) ([]byte, error)
	// Set stores value under key for ttl.
	Set(ctx context.Context, key CacheKey, value []byte, ttl time.Duration) error
	// Invalidate removes key. Removing an absent key is not an error.
	Invalidate(ctx context.Context, key CacheKey) error
}

// CacheGetJSON reads and decodes a JSON value from the cache. A miss, a
// backend error or a decode failure all report as a miss; the cache is an
// optimization, never a source of truth.
func CacheGetJSON[T any](ctx context.Context, c Cache, key CacheKey) (T, bool) {
	var out T
	data, err := c.Get(ctx, key)
	if err != nil {
		return out, false
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, false
	}
	return out, true
}

// CacheSetJSON encodes and stores a JSON value in the cache.
func CacheSetJSON[T any](ctx context.Context, c Cache, key CacheKey, value T, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, data, ttl)
}

// ---------------------------------------------------------------------------
// Identity Mapping Port
// ---------------------------------------------------------------------------

// MappingKind distinguishes the two identity-mapping tables.
type MappingKind string

const (
	// MappingKindCustomers maps remote buyer ids to local customer ids.
	MappingKindCustomers MappingKind = "customers"
	// MappingKindOrders maps remote order ids to local sale ids.
	MappingKindOrders MappingKind = "orders"
)

// IsValid returns true if the kind is known.
func (k MappingKind) IsValid() bool {
	return k == MappingKindCustomers || k == MappingKindOrders
}

// IdentityMapping is a persisted correspondence between a remote platform
// object id and the local id for the same entity. A remote id maps to
// exactly one local id for the lifetime of the mapping.
type IdentityMapping struct {
	RemoteID     string    `json:"remoteId"`
	InternalID   int64     `json:"internalId"`
	LastSyncedAt time.Time `json:"lastSyncedAt"`
}

// MappingStore persists identity mappings. Remote ids are unique per
// (platform, kind); saving a mapping that already exists keeps the existing
// row, so concurrent syncs racing to create the same mapping converge on
// one local id.
type MappingStore interface {
	// Find returns the mapping for a remote id, or ErrMappingNotFound.
	Find(ctx context.Context, platform Platform, kind MappingKind, remoteID string) (*IdentityMapping, error)
	// FindByInternalID returns the mapping for a local id, or ErrMappingNotFound.
	FindByInternalID(ctx context.Context, platform Platform, kind MappingKind, internalID int64) (*IdentityMapping, error)
	// Save persists a mapping. An existing mapping for the same remote id
	// wins over the one being saved.
	Save(ctx context.Context, platform Platform, kind MappingKind, mapping *IdentityMapping) error
}

// CustomerDirectory is the port to the local customer store, used to resolve
// marketplace buyers by business key.
type CustomerDirectory interface {
	// FindByEmail returns the customer with the given email, or
	// ErrCustomerNotFound.
	FindByEmail(ctx context.Context, email string) (*sales.Customer, error)
	// Create stores a new customer and returns it with its assigned id.
	Create(ctx context.Context, customer *sales.Customer) (*sales.Customer, error)
}

// ---------------------------------------------------------------------------
// Marketplace Client Port
// ---------------------------------------------------------------------------

// RawOrder is a platform order as fetched from the wire, before
// normalization. RemoteID is extracted eagerly so pipeline stages can refer
// to the order without understanding its payload.
type RawOrder struct {
	RemoteID string
	Data     json.RawMessage
}

// NormalizedOrder is the output of a platform normalizer: the canonical
// Sale plus the remote buyer id used for identity resolution. The Sale's
// own id and its customer id are still unresolved (zero) at this point.
type NormalizedOrder struct {
	Sale *sales.Sale
	// RemoteCustomerID is the buyer's id on the platform, empty when the
	// platform exposes no stable buyer id.
	RemoteCustomerID string
}

// FetchOptions controls an order fetch.
type FetchOptions struct {
	// Since restricts the fetch to orders created after this instant.
	Since *time.Time
	// Limit is the record-count budget across all pages. Zero means the
	// default budget of 100.
	Limit int
}

// FulfillmentUpdate is the payload for pushing shipment information back to
// a platform.
type FulfillmentUpdate struct {
	RemoteOrderID  string `json:"orderId"`
	TrackingNumber string `json:"trackingNumber"`
	Carrier        string `json:"carrier"`
}

// Validate checks the update carries the required fields.
func (u FulfillmentUpdate) Validate() error {
	if u.RemoteOrderID == "" {
		return errors.New("integration: fulfillment update requires an order id")
	}
	if u.TrackingNumber == "" {
		return errors.New("integration: fulfillment update requires a tracking number")
	}
	return nil
}

// TransportMetrics is a point-in-time snapshot of one transport's counters.
type TransportMetrics struct {
	Total       int64
	Success     int64
	Failures    int64
	RateLimited int64
	// PerEndpoint counts requests by endpoint label.
	PerEndpoint map[string]int64
	// AvgLatency is the rolling average request latency.
	AvgLatency time.Duration
}

// MarketplaceClient is the port to one marketplace account. A client wraps a
// rate-limited transport scoped to a single connection; failures on one
// account never throttle another.
type MarketplaceClient interface {
	// Platform returns the platform this client talks to.
	Platform() Platform

	// Connection returns the current connection value, including any
	// access token refreshed since the client was built. The caller is
	// responsible for persisting it.
	Connection() Connection

	// FetchOrders pages through the platform's order listing and returns
	// raw orders, newest pages first in platform-defined order.
	FetchOrders(ctx context.Context, opts FetchOptions) ([]RawOrder, error)

	// Normalize converts one raw order into the canonical model. It is a
	// pure mapping and performs no I/O.
	Normalize(raw RawOrder) (*NormalizedOrder, error)

	// PushFulfillment marks an order shipped on the platform.
	PushFulfillment(ctx context.Context, update FulfillmentUpdate) error

	// AuthURL builds the OAuth authorization-code URL for this connection.
	AuthURL(redirectURI string, scopes []string) (string, error)

	// ExchangeAuthCode trades an authorization code for tokens, returning
	// the updated connection.
	ExchangeAuthCode(ctx context.Context, code, redirectURI string) (Connection, error)

	// Metrics returns a snapshot of the transport's counters.
	Metrics() TransportMetrics
}

// ClientRegistry builds or reuses marketplace clients per connection.
// Implementations keep breaker and metrics state alive across syncs of the
// same account.
type ClientRegistry interface {
	Get(platform Platform, conn Connection) (MarketplaceClient, error)
}
