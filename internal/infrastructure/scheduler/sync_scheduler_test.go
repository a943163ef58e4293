package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftshop/backend/internal/application/ordersync"
	"github.com/craftshop/backend/internal/domain/integration"
)

type schedCache struct{}

func (schedCache) Get(ctx context.Context, key integration.CacheKey) ([]byte, error) {
	return nil, integration.ErrCacheMiss
}
func (schedCache) Set(ctx context.Context, key integration.CacheKey, value []byte, ttl time.Duration) error {
	return nil
}
func (schedCache) Invalidate(ctx context.Context, key integration.CacheKey) error { return nil }

// schedClient is a marketplace client that returns no orders and optionally
// reports a rotated access token.
type schedClient struct {
	mu         sync.Mutex
	conn       integration.Connection
	fetchCalls int
}

func (c *schedClient) Platform() integration.Platform { return c.conn.Platform }
func (c *schedClient) Connection() integration.Connection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}
func (c *schedClient) FetchOrders(ctx context.Context, opts integration.FetchOptions) ([]integration.RawOrder, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetchCalls++
	return nil, nil
}
func (c *schedClient) Normalize(raw integration.RawOrder) (*integration.NormalizedOrder, error) {
	return nil, nil
}
func (c *schedClient) PushFulfillment(ctx context.Context, update integration.FulfillmentUpdate) error {
	return nil
}
func (c *schedClient) AuthURL(redirectURI string, scopes []string) (string, error) { return "", nil }
func (c *schedClient) ExchangeAuthCode(ctx context.Context, code, redirectURI string) (integration.Connection, error) {
	return c.conn, nil
}
func (c *schedClient) Metrics() integration.TransportMetrics { return integration.TransportMetrics{} }

func (c *schedClient) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetchCalls
}

type schedRegistry struct {
	mu      sync.Mutex
	clients map[string]*schedClient
}

func (r *schedRegistry) Get(platform integration.Platform, conn integration.Connection) (integration.MarketplaceClient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.clients == nil {
		r.clients = make(map[string]*schedClient)
	}
	key := platform.String() + ":" + conn.AccountKey()
	if c, ok := r.clients[key]; ok {
		return c, nil
	}
	c := &schedClient{conn: conn}
	r.clients[key] = c
	return c, nil
}

type schedSource struct {
	mu      sync.Mutex
	conns   []integration.Connection
	loadErr error
	updated []integration.Connection
}

func (s *schedSource) Connections(ctx context.Context) ([]integration.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns, s.loadErr
}

func (s *schedSource) UpdateConnection(ctx context.Context, conn integration.Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updated = append(s.updated, conn)
	return nil
}

func (s *schedSource) updates() []integration.Connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]integration.Connection(nil), s.updated...)
}

func newSchedulerService(registry *schedRegistry) *ordersync.Service {
	mapper := ordersync.NewIdentityMapper(nil, nil, schedCache{}, nil)
	processor := ordersync.NewProcessor(mapper, nil, 1)
	return ordersync.NewService(registry, schedCache{}, mapper, processor, nil)
}

func schedConn(storeID string) integration.Connection {
	return integration.Connection{
		Platform:    integration.PlatformEtsy,
		APIKey:      "key",
		AccessToken: "tok",
		StoreID:     storeID,
	}
}

func TestSyncScheduler_DisabledWithoutInterval(t *testing.T) {
	registry := &schedRegistry{}
	s := NewSyncScheduler(newSchedulerService(registry), &schedSource{}, SyncSchedulerConfig{Interval: 0}, nil)

	s.Start(context.Background())
	s.Stop()

	assert.Empty(t, registry.clients)
}

func TestSyncScheduler_RoundSyncsEveryConnection(t *testing.T) {
	registry := &schedRegistry{}
	source := &schedSource{conns: []integration.Connection{schedConn("42"), schedConn("77")}}
	s := NewSyncScheduler(newSchedulerService(registry), source, SyncSchedulerConfig{Interval: time.Hour}, nil)

	s.runRound(context.Background())
	s.Stop()

	require.Len(t, registry.clients, 2)
	for key, client := range registry.clients {
		assert.Equal(t, 1, client.calls(), "account %s", key)
	}
}

func TestSyncScheduler_PersistsRotatedToken(t *testing.T) {
	registry := &schedRegistry{}
	source := &schedSource{conns: []integration.Connection{schedConn("42")}}
	s := NewSyncScheduler(newSchedulerService(registry), source, SyncSchedulerConfig{Interval: time.Hour}, nil)

	// Pre-build the client and rotate its token, as a refresh mid-sync would.
	client, err := registry.Get(integration.PlatformEtsy, schedConn("42"))
	require.NoError(t, err)
	sc := client.(*schedClient)
	sc.mu.Lock()
	sc.conn.AccessToken = "rotated"
	sc.mu.Unlock()

	s.runRound(context.Background())
	s.Stop()

	updates := source.updates()
	require.Len(t, updates, 1)
	assert.Equal(t, "rotated", updates[0].AccessToken)
}

func TestSyncScheduler_UnchangedTokenNotPersisted(t *testing.T) {
	registry := &schedRegistry{}
	source := &schedSource{conns: []integration.Connection{schedConn("42")}}
	s := NewSyncScheduler(newSchedulerService(registry), source, SyncSchedulerConfig{Interval: time.Hour}, nil)

	s.runRound(context.Background())
	s.Stop()

	assert.Empty(t, source.updates())
}

func TestSyncScheduler_SkipsAccountWithRunInFlight(t *testing.T) {
	registry := &schedRegistry{}
	source := &schedSource{conns: []integration.Connection{schedConn("42")}}
	s := NewSyncScheduler(newSchedulerService(registry), source, SyncSchedulerConfig{Interval: time.Hour}, nil)

	require.True(t, s.tryAcquire("etsy:42"))
	s.runRound(context.Background())
	s.Stop()

	assert.Empty(t, registry.clients)

	// Once released the next round picks the account up again.
	s.release("etsy:42")
	assert.True(t, s.tryAcquire("etsy:42"))
}

func TestSyncScheduler_SourceErrorSkipsRound(t *testing.T) {
	registry := &schedRegistry{}
	source := &schedSource{loadErr: assert.AnError}
	s := NewSyncScheduler(newSchedulerService(registry), source, SyncSchedulerConfig{Interval: time.Hour}, nil)

	s.runRound(context.Background())
	s.Stop()

	assert.Empty(t, registry.clients)
}

func TestSyncScheduler_StopIsIdempotent(t *testing.T) {
	s := NewSyncScheduler(newSchedulerService(&schedRegistry{}), &schedSource{}, SyncSchedulerConfig{Interval: time.Hour}, nil)
	s.Start(context.Background())
	s.Stop()
	s.Stop()
}
