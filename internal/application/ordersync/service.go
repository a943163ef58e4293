package ordersync

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/craftshop/backend/internal/domain/integration"
	"github.com/craftshop/backend/internal/domain/sales"
)

// orderListTTL bounds how long a synced order list is served from cache.
const orderListTTL = 15 * time.Minute

// SyncOptions controls one sync run.
type SyncOptions struct {
	// Since restricts the sync to orders created after this instant. A
	// bounded sync always goes to the platform, never the cache.
	Since *time.Time `json:"since,omitempty"`
	// ForceRefresh bypasses the cached order list.
	ForceRefresh bool `json:"forceRefresh,omitempty"`
	// MaxOrders caps the number of orders fetched. Zero means the platform
	// default budget.
	MaxOrders int `json:"maxOrders,omitempty"`
}

// SyncResult is the outcome of one sync run.
type SyncResult struct {
	Sales []*sales.Sale `json:"sales"`
	// Connection carries any token refreshed during the run; the caller
	// persists it.
	Connection integration.Connection `json:"-"`
	// FromCache reports whether the list was served without touching the
	// platform.
	FromCache bool `json:"fromCache"`
	// Metrics is the transport counter snapshot after the run.
	Metrics integration.TransportMetrics `json:"-"`
}

// SyncRecorder receives the outcome of each sync run, typically backed by an
// OpenTelemetry meter.
type SyncRecorder interface {
	RecordSync(ctx context.Context, platform string, orders int, elapsed time.Duration, fromCache bool, err error)
}

// Service orchestrates marketplace order synchronization: it builds the
// platform client, serves recent results from cache, and otherwise runs the
// fetch/normalize/resolve pipeline.
type Service struct {
	registry  integration.ClientRegistry
	cache     integration.Cache
	mapper    *IdentityMapper
	processor *Processor
	recorder  SyncRecorder
	logger    *zap.Logger
}

// NewService creates a sync service.
func NewService(registry integration.ClientRegistry, cache integration.Cache, mapper *IdentityMapper, processor *Processor, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		registry:  registry,
		cache:     cache,
		mapper:    mapper,
		processor: processor,
		logger:    logger,
	}
}

// WithRecorder attaches a sync outcome recorder and returns the service.
func (s *Service) WithRecorder(recorder SyncRecorder) *Service {
	s.recorder = recorder
	return s
}

func (s *Service) record(ctx context.Context, platform integration.Platform, orders int, elapsed time.Duration, fromCache bool, err error) {
	if s.recorder != nil {
		s.recorder.RecordSync(ctx, platform.String(), orders, elapsed, fromCache, err)
	}
}

// SyncOrders fetches, normalizes and resolves the orders of one marketplace
// account. Unbounded syncs are served from a 15-minute cache; a Since bound
// or ForceRefresh always goes to the platform.
func (s *Service) SyncOrders(ctx context.Context, conn integration.Connection, opts SyncOptions) (*SyncResult, error) {
	client, err := s.registry.Get(conn.Platform, conn)
	if err != nil {
		return nil, err
	}

	key := s.orderListKey(conn)
	if !opts.ForceRefresh && opts.Since == nil {
		if cached, ok := integration.CacheGetJSON[[]*sales.Sale](ctx, s.cache, key); ok {
			s.logger.Debug("serving orders from cache",
				zap.String("platform", conn.Platform.String()),
				zap.String("account", conn.AccountKey()),
				zap.Int("orders", len(cached)),
			)
			s.record(ctx, conn.Platform, len(cached), 0, true, nil)
			return &SyncResult{
				Sales:      cached,
				Connection: client.Connection(),
				FromCache:  true,
				Metrics:    client.Metrics(),
			}, nil
		}
	}

	runID := uuid.New().String()
	started := time.Now()
	raws, err := client.FetchOrders(ctx, integration.FetchOptions{Since: opts.Since, Limit: opts.MaxOrders})
	if err != nil {
		s.record(ctx, conn.Platform, 0, time.Since(started), false, err)
		return nil, err
	}

	synced, err := s.processor.Process(ctx, client, raws)
	if err != nil {
		s.record(ctx, conn.Platform, 0, time.Since(started), false, err)
		return nil, err
	}
	s.record(ctx, conn.Platform, len(synced), time.Since(started), false, nil)

	s.logger.Info("order sync completed",
		zap.String("run_id", runID),
		zap.String("platform", conn.Platform.String()),
		zap.String("account", conn.AccountKey()),
		zap.Int("fetched", len(raws)),
		zap.Int("imported", len(synced)),
		zap.Duration("elapsed", time.Since(started)),
	)

	// Only unbounded runs populate the cache; a Since-bounded list would
	// poison later unbounded reads.
	if opts.Since == nil {
		if err := integration.CacheSetJSON(ctx, s.cache, key, synced, orderListTTL); err != nil {
			s.logger.Debug("caching order list failed", zap.Error(err))
		}
	}

	return &SyncResult{
		Sales:      synced,
		Connection: client.Connection(),
		FromCache:  false,
		Metrics:    client.Metrics(),
	}, nil
}

// PushFulfillment reverse-maps a local sale to its remote order and pushes
// tracking to the platform, invalidating the cached views it staled.
func (s *Service) PushFulfillment(ctx context.Context, conn integration.Connection, saleID int64, trackingNumber, carrier string) (integration.Connection, error) {
	client, err := s.registry.Get(conn.Platform, conn)
	if err != nil {
		return conn, err
	}

	remoteID, err := s.mapper.OrderRemoteID(ctx, conn.Platform, saleID)
	if err != nil {
		return client.Connection(), err
	}

	if err := client.PushFulfillment(ctx, integration.FulfillmentUpdate{
		RemoteOrderID:  remoteID,
		TrackingNumber: trackingNumber,
		Carrier:        carrier,
	}); err != nil {
		return client.Connection(), err
	}

	// The cached list and the order's mapping entry both describe the
	// pre-shipment state now.
	if err := s.cache.Invalidate(ctx, s.orderListKey(conn)); err != nil {
		s.logger.Debug("invalidating order list cache failed", zap.Error(err))
	}
	if err := s.cache.Invalidate(ctx, integration.CacheKey{
		Platform: conn.Platform,
		Resource: "order-mapping",
		ID:       remoteID,
	}); err != nil {
		s.logger.Debug("invalidating order mapping cache failed", zap.Error(err))
	}

	s.logger.Info("fulfillment pushed",
		zap.String("platform", conn.Platform.String()),
		zap.Int64("sale_id", saleID),
		zap.String("remote_order_id", remoteID),
	)
	return client.Connection(), nil
}

// AuthURL builds the OAuth authorization URL for a connection.
func (s *Service) AuthURL(conn integration.Connection, redirectURI string, scopes []string) (string, error) {
	client, err := s.registry.Get(conn.Platform, conn)
	if err != nil {
		return "", err
	}
	return client.AuthURL(redirectURI, scopes)
}

// CompleteOAuth finishes the authorization-code flow and returns the
// connection carrying the obtained tokens.
func (s *Service) CompleteOAuth(ctx context.Context, conn integration.Connection, code, redirectURI string) (integration.Connection, error) {
	client, err := s.registry.Get(conn.Platform, conn)
	if err != nil {
		return conn, err
	}
	return client.ExchangeAuthCode(ctx, code, redirectURI)
}

// Metrics returns the transport counters for one account.
func (s *Service) Metrics(conn integration.Connection) (integration.TransportMetrics, error) {
	client, err := s.registry.Get(conn.Platform, conn)
	if err != nil {
		return integration.TransportMetrics{}, err
	}
	return client.Metrics(), nil
}

func (s *Service) orderListKey(conn integration.Connection) integration.CacheKey {
	return integration.CacheKey{
		Platform: conn.Platform,
		Resource: "orders",
		ID:       conn.AccountKey(),
	}
}
