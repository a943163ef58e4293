package ordersync

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/craftshop/backend/internal/domain/integration"
	"github.com/craftshop/backend/internal/domain/sales"
)

// mappingCacheTTL bounds how long resolved identity mappings are served from
// cache before the store is consulted again.
const mappingCacheTTL = 24 * time.Hour

// IdentityMapper resolves remote platform ids to local ids. Customer
// resolution walks cache, mapping store, email lookup and finally creation;
// order resolution synthesizes a deterministic local id from the remote id,
// so re-syncing the same order always lands on the same sale.
type IdentityMapper struct {
	store     integration.MappingStore
	directory integration.CustomerDirectory
	cache     integration.Cache
	logger    *zap.Logger
}

// NewIdentityMapper creates an identity mapper.
func NewIdentityMapper(store integration.MappingStore, directory integration.CustomerDirectory, cache integration.Cache, logger *zap.Logger) *IdentityMapper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdentityMapper{
		store:     store,
		directory: directory,
		cache:     cache,
		logger:    logger,
	}
}

// ResolveCustomer maps a remote buyer to a local customer id.
//
// A buyer with neither a remote id nor an email resolves to the anonymous
// sentinel. Resolution failures never fail the sync: the lookup-failed
// sentinel is returned instead and the order imports without a customer
// link.
func (m *IdentityMapper) ResolveCustomer(ctx context.Context, platform integration.Platform, remoteID string, buyer sales.Customer) int64 {
	if remoteID == "" && buyer.Email == "" {
		return sales.CustomerAnonymousID
	}
	if remoteID == "" {
		remoteID = buyer.Email
	}

	key := integration.CacheKey{Platform: platform, Resource: "customer-mapping", ID: remoteID}
	if id, ok := integration.CacheGetJSON[int64](ctx, m.cache, key); ok {
		return id
	}

	mapping, err := m.store.Find(ctx, platform, integration.MappingKindCustomers, remoteID)
	if err == nil {
		m.cacheMapping(ctx, key, mapping.InternalID)
		return mapping.InternalID
	}
	if !errors.Is(err, integration.ErrMappingNotFound) {
		m.logger.Warn("customer mapping lookup failed",
			zap.String("platform", platform.String()),
			zap.String("remote_id", remoteID),
			zap.Error(err),
		)
		return sales.CustomerLookupFailedID
	}

	id, err := m.findOrCreateCustomer(ctx, buyer)
	if err != nil {
		m.logger.Warn("customer resolution failed",
			zap.String("platform", platform.String()),
			zap.String("remote_id", remoteID),
			zap.Error(err),
		)
		return sales.CustomerLookupFailedID
	}

	// Persist the mapping so the next sync skips the email walk. A save
	// failure costs a redundant lookup later, not correctness.
	if err := m.store.Save(ctx, platform, integration.MappingKindCustomers, &integration.IdentityMapping{
		RemoteID:     remoteID,
		InternalID:   id,
		LastSyncedAt: time.Now().UTC(),
	}); err != nil {
		m.logger.Warn("saving customer mapping failed",
			zap.String("platform", platform.String()),
			zap.String("remote_id", remoteID),
			zap.Error(err),
		)
	}
	m.cacheMapping(ctx, key, id)
	return id
}

func (m *IdentityMapper) findOrCreateCustomer(ctx context.Context, buyer sales.Customer) (int64, error) {
	if buyer.Email != "" {
		existing, err := m.directory.FindByEmail(ctx, buyer.Email)
		if err == nil {
			return existing.ID, nil
		}
		if !errors.Is(err, integration.ErrCustomerNotFound) {
			return 0, err
		}
	}

	created, err := m.directory.Create(ctx, &buyer)
	if err != nil {
		return 0, err
	}
	return created.ID, nil
}

// ResolveOrder maps a remote order id to a local sale id, synthesizing a
// deterministic id for orders never seen before. The synthesized mapping is
// persisted immediately; when a concurrent sync already saved one, the
// stored mapping wins.
func (m *IdentityMapper) ResolveOrder(ctx context.Context, platform integration.Platform, remoteOrderID string) int64 {
	key := integration.CacheKey{Platform: platform, Resource: "order-mapping", ID: remoteOrderID}
	if id, ok := integration.CacheGetJSON[int64](ctx, m.cache, key); ok {
		return id
	}

	mapping, err := m.store.Find(ctx, platform, integration.MappingKindOrders, remoteOrderID)
	if err == nil {
		m.cacheMapping(ctx, key, mapping.InternalID)
		return mapping.InternalID
	}
	if !errors.Is(err, integration.ErrMappingNotFound) {
		m.logger.Warn("order mapping lookup failed",
			zap.String("platform", platform.String()),
			zap.String("remote_id", remoteOrderID),
			zap.Error(err),
		)
	}

	id := SynthesizeOrderID(remoteOrderID)
	if err := m.store.Save(ctx, platform, integration.MappingKindOrders, &integration.IdentityMapping{
		RemoteID:     remoteOrderID,
		InternalID:   id,
		LastSyncedAt: time.Now().UTC(),
	}); err != nil {
		m.logger.Warn("saving order mapping failed",
			zap.String("platform", platform.String()),
			zap.String("remote_id", remoteOrderID),
			zap.Error(err),
		)
	}
	// Re-read so a racing sync's earlier save wins over ours.
	if stored, err := m.store.Find(ctx, platform, integration.MappingKindOrders, remoteOrderID); err == nil {
		id = stored.InternalID
	}
	m.cacheMapping(ctx, key, id)
	return id
}

// OrderRemoteID reverse-maps a local sale id to its remote order id, used
// when pushing fulfillment back to the platform.
func (m *IdentityMapper) OrderRemoteID(ctx context.Context, platform integration.Platform, saleID int64) (string, error) {
	mapping, err := m.store.FindByInternalID(ctx, platform, integration.MappingKindOrders, saleID)
	if err != nil {
		return "", err
	}
	return mapping.RemoteID, nil
}

func (m *IdentityMapper) cacheMapping(ctx context.Context, key integration.CacheKey, id int64) {
	if err := integration.CacheSetJSON(ctx, m.cache, key, id, mappingCacheTTL); err != nil {
		m.logger.Debug("caching mapping failed", zap.String("key", key.String()), zap.Error(err))
	}
}

// SynthesizeOrderID derives a stable local id from a remote order id: the
// first 8 hex digits of the id's MD5, read as an integer. The same remote id
// always produces the same local id, on any host, with no coordination.
func SynthesizeOrderID(remoteOrderID string) int64 {
	sum := md5.Sum([]byte(remoteOrderID))
	prefix := hex.EncodeToString(sum[:])[:8]
	id, err := strconv.ParseInt(prefix, 16, 64)
	if err != nil {
		// Unreachable: 8 hex digits always parse.
		return 0
	}
	return id
}
