package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/craftshop/backend/internal/application/ordersync"
	"github.com/craftshop/backend/internal/domain/integration"
)

// ConnectionSource supplies the connections to sync each round and receives
// back any connection whose tokens were refreshed during the run.
type ConnectionSource interface {
	// Connections returns the active marketplace connections.
	Connections(ctx context.Context) ([]integration.Connection, error)
	// UpdateConnection persists a connection whose credentials changed.
	UpdateConnection(ctx context.Context, conn integration.Connection) error
}

// SyncSchedulerConfig configures the background sync loop.
type SyncSchedulerConfig struct {
	// Interval between rounds. Zero disables the scheduler.
	Interval time.Duration
	// RunTimeout bounds one account's sync.
	RunTimeout time.Duration
}

// SyncScheduler periodically syncs every registered marketplace connection.
// Runs for the same account are serialized; a slow round never overlaps the
// next one for that account.
type SyncScheduler struct {
	service *ordersync.Service
	source  ConnectionSource
	cfg     SyncSchedulerConfig
	logger  *zap.Logger

	mu       sync.Mutex
	inflight map[string]bool

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewSyncScheduler creates a sync scheduler.
func NewSyncScheduler(service *ordersync.Service, source ConnectionSource, cfg SyncSchedulerConfig, logger *zap.Logger) *SyncScheduler {
	if cfg.RunTimeout == 0 {
		cfg.RunTimeout = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncScheduler{
		service:  service,
		source:   source,
		cfg:      cfg,
		logger:   logger,
		inflight: make(map[string]bool),
		stopChan: make(chan struct{}),
	}
}

// Start launches the background loop. It is a no-op when the interval is
// zero.
func (s *SyncScheduler) Start(ctx context.Context) {
	if s.cfg.Interval <= 0 {
		s.logger.Info("background sync disabled")
		return
	}
	s.wg.Add(1)
	go s.loop(ctx)
	s.logger.Info("background sync started", zap.Duration("interval", s.cfg.Interval))
}

// Stop terminates the loop and waits for in-flight runs.
func (s *SyncScheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
	s.wg.Wait()
}

func (s *SyncScheduler) loop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runRound(ctx)
		}
	}
}

func (s *SyncScheduler) runRound(ctx context.Context) {
	conns, err := s.source.Connections(ctx)
	if err != nil {
		s.logger.Warn("loading connections for sync round failed", zap.Error(err))
		return
	}

	for _, conn := range conns {
		key := conn.Platform.String() + ":" + conn.AccountKey()
		if !s.tryAcquire(key) {
			s.logger.Debug("skipping account with sync in flight", zap.String("account", key))
			continue
		}

		s.wg.Add(1)
		go func(conn integration.Connection, key string) {
			defer s.wg.Done()
			defer s.release(key)
			s.syncOne(ctx, conn)
		}(conn, key)
	}
}

func (s *SyncScheduler) syncOne(ctx context.Context, conn integration.Connection) {
	runCtx, cancel := context.WithTimeout(ctx, s.cfg.RunTimeout)
	defer cancel()

	result, err := s.service.SyncOrders(runCtx, conn, ordersync.SyncOptions{ForceRefresh: true})
	if err != nil {
		s.logger.Warn("background sync failed",
			zap.String("platform", conn.Platform.String()),
			zap.String("account", conn.AccountKey()),
			zap.Error(err),
		)
		return
	}

	if result.Connection.AccessToken != conn.AccessToken {
		if err := s.source.UpdateConnection(runCtx, result.Connection); err != nil {
			s.logger.Warn("persisting refreshed connection failed",
				zap.String("platform", conn.Platform.String()),
				zap.Error(err),
			)
		}
	}
}

func (s *SyncScheduler) tryAcquire(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight[key] {
		return false
	}
	s.inflight[key] = true
	return true
}

func (s *SyncScheduler) release(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, key)
}
