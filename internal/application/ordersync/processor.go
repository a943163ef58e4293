package ordersync

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/craftshop/backend/internal/domain/integration"
	"github.com/craftshop/backend/internal/domain/sales"
)

// Processor defaults.
const (
	// DefaultConcurrency is the number of orders normalized in parallel.
	DefaultConcurrency = 5
	// defaultBatchPause separates batches so mapping lookups do not stampede
	// the directory service.
	defaultBatchPause = 200 * time.Millisecond
)

// Processor turns raw platform orders into resolved canonical sales. Orders
// are processed in fixed-size concurrent batches; one bad order is logged
// and dropped without failing the rest.
type Processor struct {
	mapper      *IdentityMapper
	logger      *zap.Logger
	concurrency int
	pause       time.Duration
	// sleep is injectable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewProcessor creates a processor. A non-positive concurrency falls back to
// the default.
func NewProcessor(mapper *IdentityMapper, logger *zap.Logger, concurrency int) *Processor {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		mapper:      mapper,
		logger:      logger,
		concurrency: concurrency,
		pause:       defaultBatchPause,
		sleep:       sleepCtx,
	}
}

// Process normalizes and resolves raw orders through the platform client.
// Results keep the input order; failed orders leave no gap.
func (p *Processor) Process(ctx context.Context, client integration.MarketplaceClient, raws []integration.RawOrder) ([]*sales.Sale, error) {
	platform := client.Platform()
	results := make([]*sales.Sale, len(raws))

	for start := 0; start < len(raws); start += p.concurrency {
		if err := ctx.Err(); err != nil {
			return compact(results), err
		}
		end := start + p.concurrency
		if end > len(raws) {
			end = len(raws)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				sale, err := p.processOne(ctx, client, platform, raws[idx])
				if err != nil {
					p.logger.Warn("dropping order that failed processing",
						zap.String("platform", platform.String()),
						zap.String("remote_id", raws[idx].RemoteID),
						zap.Error(err),
					)
					return
				}
				results[idx] = sale
			}(i)
		}
		wg.Wait()

		if end < len(raws) {
			if err := p.sleep(ctx, p.pause); err != nil {
				return compact(results), err
			}
		}
	}

	return compact(results), nil
}

func (p *Processor) processOne(ctx context.Context, client integration.MarketplaceClient, platform integration.Platform, raw integration.RawOrder) (*sales.Sale, error) {
	norm, err := client.Normalize(raw)
	if err != nil {
		return nil, err
	}
	sale := norm.Sale
	sale.ID = p.mapper.ResolveOrder(ctx, platform, raw.RemoteID)
	sale.Customer.ID = p.mapper.ResolveCustomer(ctx, platform, norm.RemoteCustomerID, sale.Customer)

	if err := sale.Validate(); err != nil {
		return nil, err
	}
	return sale, nil
}

// compact drops the nil slots left by failed orders, preserving order.
func compact(in []*sales.Sale) []*sales.Sale {
	out := make([]*sales.Sale, 0, len(in))
	for _, s := range in {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// sleepCtx sleeps for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
