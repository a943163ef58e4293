package marketplace

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/craftshop/backend/internal/domain/integration"
)

// Circuit breaker defaults.
const (
	// DefaultFailureThreshold is the consecutive-failure count that opens
	// the breaker.
	DefaultFailureThreshold = 5
	// DefaultResetTimeout is the cooldown before an open breaker allows a
	// trial call.
	DefaultResetTimeout = 60 * time.Second
	// DefaultBackoffBase is the base delay for the in-process retry.
	DefaultBackoffBase = time.Second
	// maxBackoff caps the exponential retry delay.
	maxBackoff = 30 * time.Second
)

// BreakerConfig configures a CircuitBreaker.
type BreakerConfig struct {
	FailureThreshold int
	ResetTimeout     time.Duration
	BackoffBase      time.Duration
	Logger           *zap.Logger
	// now and sleep are injectable for tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// CircuitBreaker isolates a failing marketplace account. It is scoped to one
// transport (one platform connection): failures on one seller's shop must
// not throttle another's.
//
// States: closed (normal), open (rejects immediately), and an implicit
// half-open once the reset timeout elapses, which admits exactly one trial
// call before deciding.
type CircuitBreaker struct {
	mu          sync.Mutex
	failures    int
	lastFailure time.Time
	trialing    bool

	threshold    int
	resetTimeout time.Duration
	backoffBase  time.Duration
	logger       *zap.Logger
	now          func() time.Time
	sleep        func(ctx context.Context, d time.Duration) error
}

// NewCircuitBreaker creates a breaker with defaults filled in.
func NewCircuitBreaker(cfg BreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultFailureThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = DefaultResetTimeout
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = DefaultBackoffBase
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}
	if cfg.sleep == nil {
		cfg.sleep = sleepCtx
	}
	return &CircuitBreaker{
		threshold:    cfg.FailureThreshold,
		resetTimeout: cfg.ResetTimeout,
		backoffBase:  cfg.BackoffBase,
		logger:       cfg.Logger,
		now:          cfg.now,
		sleep:        cfg.sleep,
	}
}

// Execute runs op under the breaker's fault discipline.
//
// An open breaker whose cooldown has not elapsed rejects immediately with a
// CIRCUIT_OPEN error. Rate-limit errors pass through without counting as
// faults; the fetch layer sleeps on them. Retryable failures get one
// in-process retry after an exponential backoff of base*2^failures capped
// at 30s. Non-retryable failures count against the breaker but surface
// immediately. Any success closes the breaker and zeroes the count.
func (b *CircuitBreaker) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	if !b.allow() {
		return integration.NewCircuitOpenError()
	}

	err := op(ctx)
	if err == nil {
		b.recordSuccess()
		return nil
	}
	if _, ok := integration.AsRateLimited(err); ok {
		// Expected traffic shaping, not a fault.
		b.endTrial()
		return err
	}

	delay := b.recordFailure()
	if !integration.IsRetryable(err) {
		return err
	}

	b.logger.Debug("retrying after transient failure",
		zap.Duration("backoff", delay),
		zap.Error(err),
	)
	if sleepErr := b.sleep(ctx, delay); sleepErr != nil {
		return sleepErr
	}

	err = op(ctx)
	if err == nil {
		b.recordSuccess()
		return nil
	}
	if _, ok := integration.AsRateLimited(err); ok {
		b.endTrial()
		return err
	}
	b.recordFailure()
	return err
}

// State returns the breaker's current failure count and whether it is open.
func (b *CircuitBreaker) State() (failures int, open bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures, b.isOpenLocked()
}

// allow reports whether a call may proceed. An open breaker whose cooldown
// has elapsed admits a single in-flight call as the half-open trial; other
// callers stay rejected until that trial's outcome is recorded.
func (b *CircuitBreaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failures < b.threshold {
		return true
	}
	if b.now().Sub(b.lastFailure) <= b.resetTimeout {
		return false
	}
	if b.trialing {
		return false
	}
	b.trialing = true
	return true
}

func (b *CircuitBreaker) isOpenLocked() bool {
	if b.failures < b.threshold {
		return false
	}
	return b.now().Sub(b.lastFailure) <= b.resetTimeout
}

func (b *CircuitBreaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.trialing = false
}

// endTrial releases the half-open trial slot without recording an outcome,
// for results that are neither success nor fault (a 429 on the trial call).
func (b *CircuitBreaker) endTrial() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.trialing = false
}

// recordFailure increments the count and returns the backoff delay for the
// next retry.
func (b *CircuitBreaker) recordFailure() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	b.lastFailure = b.now()
	b.trialing = false
	if b.failures == b.threshold {
		b.logger.Warn("circuit breaker opened",
			zap.Int("failures", b.failures),
			zap.Duration("reset_timeout", b.resetTimeout),
		)
	}
	return b.backoffDelayLocked()
}

func (b *CircuitBreaker) backoffDelayLocked() time.Duration {
	delay := b.backoffBase
	for i := 0; i < b.failures; i++ {
		delay *= 2
		if delay >= maxBackoff {
			return maxBackoff
		}
	}
	return delay
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
