package marketplace

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/craftshop/backend/internal/domain/integration"
)

// RefreshMargin is the safety window before expiry within which tokens are
// refreshed proactively.
const RefreshMargin = 5 * time.Minute

// OAuth endpoints per platform. Shopify is absent on purpose: its offline
// access tokens do not expire, so there is nothing to refresh.
const (
	etsyTokenURL        = "https://api.etsy.com/v3/public/oauth/token"
	etsyAuthURL         = "https://www.etsy.com/oauth/connect"
	ebayTokenURL        = "https://api.ebay.com/identity/v1/oauth2/token"
	ebaySandboxTokenURL = "https://api.sandbox.ebay.com/identity/v1/oauth2/token"
	ebayAuthURL         = "https://auth.ebay.com/oauth2/authorize"
	amazonTokenURL      = "https://api.amazon.com/auth/o2/token"
	amazonAuthURL       = "https://sellercentral.amazon.com/apps/authorize/consent"
)

// tokenResponse is the common OAuth token endpoint response shape.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
}

// TokenManager refreshes and exchanges OAuth tokens for marketplace
// connections. It never persists refreshed connections; callers receive an
// updated copy and are responsible for storing it.
type TokenManager struct {
	httpClient *http.Client
	logger     *zap.Logger
	margin     time.Duration
	// endpoint overrides, used by tests to point at a fake server
	tokenURLOverride string
	now              func() time.Time
}

// TokenManagerOption customizes a TokenManager.
type TokenManagerOption func(*TokenManager)

// WithTokenURL overrides the platform token endpoint (tests).
func WithTokenURL(u string) TokenManagerOption {
	return func(m *TokenManager) { m.tokenURLOverride = u }
}

// WithRefreshMargin overrides the proactive-refresh window.
func WithRefreshMargin(d time.Duration) TokenManagerOption {
	return func(m *TokenManager) { m.margin = d }
}

// NewTokenManager creates a token manager.
func NewTokenManager(httpClient *http.Client, logger *zap.Logger, opts ...TokenManagerOption) *TokenManager {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &TokenManager{
		httpClient: httpClient,
		logger:     logger,
		margin:     RefreshMargin,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Ensure returns a connection guaranteed to carry a non-expired access
// token, refreshing when the current token expires within the safety
// margin. The second return reports whether a refresh happened.
func (m *TokenManager) Ensure(ctx context.Context, conn integration.Connection) (integration.Connection, bool, error) {
	if conn.Platform == integration.PlatformShopify {
		// Shopify offline tokens do not expire.
		return conn, false, nil
	}
	if !conn.TokenExpiresWithin(m.margin) {
		return conn, false, nil
	}

	refreshed, err := m.refresh(ctx, conn)
	if err != nil {
		return conn, false, err
	}
	m.logger.Info("access token refreshed",
		zap.String("platform", conn.Platform.String()),
		zap.String("account", conn.AccountKey()),
		zap.Time("expires_at", refreshed.Expiry()),
	)
	return refreshed, true, nil
}

// refresh performs the refresh_token grant. Failures are non-retryable and
// surface as TOKEN_REFRESH_FAILED so the console can route the user to
// re-authentication instead of a generic error.
func (m *TokenManager) refresh(ctx context.Context, conn integration.Connection) (integration.Connection, error) {
	if conn.RefreshToken == "" {
		return conn, integration.NewTokenRefreshError("connection has no refresh token")
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", conn.RefreshToken)
	form.Set("client_id", conn.APIKey)

	tok, err := m.postTokenForm(ctx, conn, form)
	if err != nil {
		return conn, err
	}
	return conn.WithToken(tok.AccessToken, tok.RefreshToken, m.expiry(tok)), nil
}

// Exchange performs the authorization-code grant and returns the connection
// populated with the obtained tokens.
func (m *TokenManager) Exchange(ctx context.Context, conn integration.Connection, code, redirectURI string) (integration.Connection, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", redirectURI)
	form.Set("client_id", conn.APIKey)

	tok, err := m.postTokenForm(ctx, conn, form)
	if err != nil {
		return conn, err
	}
	return conn.WithToken(tok.AccessToken, tok.RefreshToken, m.expiry(tok)), nil
}

func (m *TokenManager) expiry(tok *tokenResponse) time.Time {
	if tok.ExpiresIn <= 0 {
		return time.Time{}
	}
	return m.now().Add(time.Duration(tok.ExpiresIn) * time.Second)
}

func (m *TokenManager) postTokenForm(ctx context.Context, conn integration.Connection, form url.Values) (*tokenResponse, error) {
	endpoint := m.tokenEndpoint(conn)
	if endpoint == "" {
		return nil, integration.NewTokenRefreshError(
			fmt.Sprintf("platform %s has no token endpoint", conn.Platform))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, integration.NewTokenRefreshError(err.Error())
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	// eBay and Amazon authenticate the app itself via basic auth.
	if conn.APISecret != "" {
		basic := base64.StdEncoding.EncodeToString([]byte(conn.APIKey + ":" + conn.APISecret))
		req.Header.Set("Authorization", "Basic "+basic)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, integration.NewTokenRefreshError(err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, integration.NewTokenRefreshError(err.Error())
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		m.logger.Warn("token endpoint rejected request",
			zap.String("platform", conn.Platform.String()),
			zap.Int("status", resp.StatusCode),
		)
		return nil, integration.NewTokenRefreshError(
			fmt.Sprintf("token endpoint returned HTTP %d", resp.StatusCode))
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return nil, integration.NewTokenRefreshError("malformed token response: " + err.Error())
	}
	if tok.AccessToken == "" {
		return nil, integration.NewTokenRefreshError("token response carried no access token")
	}
	return &tok, nil
}

func (m *TokenManager) tokenEndpoint(conn integration.Connection) string {
	if m.tokenURLOverride != "" {
		return m.tokenURLOverride
	}
	switch conn.Platform {
	case integration.PlatformEtsy:
		return etsyTokenURL
	case integration.PlatformEbay:
		if conn.Sandbox {
			return ebaySandboxTokenURL
		}
		return ebayTokenURL
	case integration.PlatformAmazon:
		return amazonTokenURL
	default:
		return ""
	}
}

// AuthCodeURL builds the authorization-code request URL for a connection.
func AuthCodeURL(conn integration.Connection, redirectURI string, scopes []string) (string, error) {
	var base string
	switch conn.Platform {
	case integration.PlatformEtsy:
		base = etsyAuthURL
	case integration.PlatformEbay:
		base = ebayAuthURL
	case integration.PlatformAmazon:
		base = amazonAuthURL
	case integration.PlatformShopify:
		if conn.ShopName == "" {
			return "", integration.ErrConnectionMissingShop
		}
		base = fmt.Sprintf("https://%s.myshopify.com/admin/oauth/authorize", conn.ShopName)
	default:
		return "", fmt.Errorf("integration: unknown platform %q", conn.Platform)
	}

	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", conn.APIKey)
	q.Set("redirect_uri", redirectURI)
	if len(scopes) > 0 {
		q.Set("scope", strings.Join(scopes, " "))
	}
	return base + "?" + q.Encode(), nil
}
