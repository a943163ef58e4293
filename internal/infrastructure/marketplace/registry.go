package marketplace

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/craftshop/backend/internal/domain/integration"
)

// RegistryConfig carries per-platform base URL overrides, used by the config
// layer and by tests to point clients at fake servers.
type RegistryConfig struct {
	EtsyBaseURL    string
	EbayBaseURL    string
	AmazonBaseURL  string
	ShopifyBaseURL string
}

// Registry builds marketplace clients and keeps one transport alive per
// account, so circuit-breaker and metrics state survives across syncs. A
// breaker opened by one account's failures never throttles another account.
type Registry struct {
	tokens     *TokenManager
	httpClient *http.Client
	logger     *zap.Logger
	cfg        RegistryConfig

	mu         sync.Mutex
	transports map[string]*Transport
}

// NewRegistry creates a client registry.
func NewRegistry(tokens *TokenManager, httpClient *http.Client, logger *zap.Logger, cfg RegistryConfig) *Registry {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		tokens:     tokens,
		httpClient: httpClient,
		logger:     logger,
		cfg:        cfg,
		transports: make(map[string]*Transport),
	}
}

// Get returns a client for the platform bound to the connection. Transports
// are cached by account; the connection value on a cached transport is
// replaced so later calls see updated credentials.
func (r *Registry) Get(platform integration.Platform, conn integration.Connection) (integration.MarketplaceClient, error) {
	if conn.Platform == "" {
		conn.Platform = platform
	}
	if conn.Platform != platform {
		return nil, fmt.Errorf("integration: connection platform %q does not match %q", conn.Platform, platform)
	}
	// Full credential validation is left to sync time: OAuth flows build
	// clients before any access token exists.
	if !platform.IsValid() {
		return nil, integration.ErrClientNotRegistered
	}
	if platform == integration.PlatformShopify && conn.ShopName == "" {
		return nil, integration.ErrConnectionMissingShop
	}

	transport := r.transportFor(conn)
	logger := r.logger.With(
		zap.String("platform", platform.String()),
		zap.String("account", conn.AccountKey()),
	)

	switch platform {
	case integration.PlatformEtsy:
		return NewEtsyClient(transport, r.tokens, r.cfg.EtsyBaseURL, logger), nil
	case integration.PlatformEbay:
		return NewEbayClient(transport, r.tokens, r.cfg.EbayBaseURL, logger), nil
	case integration.PlatformAmazon:
		return NewAmazonClient(transport, r.tokens, r.cfg.AmazonBaseURL, logger), nil
	case integration.PlatformShopify:
		return NewShopifyClient(transport, r.cfg.ShopifyBaseURL, r.httpClient, logger), nil
	default:
		return nil, integration.ErrClientNotRegistered
	}
}

func (r *Registry) transportFor(conn integration.Connection) *Transport {
	key := conn.Platform.String() + ":" + conn.AccountKey()

	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.transports[key]; ok {
		t.SetConnection(conn)
		return t
	}
	breaker := NewCircuitBreaker(BreakerConfig{Logger: r.logger})
	t := NewTransport(conn, r.tokens, breaker, r.httpClient, r.logger)
	r.transports[key] = t
	return t
}

// Ensure Registry implements the client registry port.
var _ integration.ClientRegistry = (*Registry)(nil)
