package integration

import (
	"errors"
	"fmt"
	"time"
)

// Connection validation errors
var (
	ErrConnectionMissingPlatform = errors.New("integration: connection platform is required")
	ErrConnectionMissingKey      = errors.New("integration: connection api key is required")
	ErrConnectionMissingToken    = errors.New("integration: connection access token is required")
	ErrConnectionMissingShop     = errors.New("integration: shopify connection requires a shop name")
)

// ---------------------------------------------------------------------------
// Platform
// ---------------------------------------------------------------------------

// Platform identifies an external e-commerce marketplace.
type Platform string

const (
	// PlatformEtsy is the Etsy marketplace.
	PlatformEtsy Platform = "etsy"
	// PlatformEbay is the eBay marketplace.
	PlatformEbay Platform = "ebay"
	// PlatformAmazon is Amazon Seller Central (SP-API).
	PlatformAmazon Platform = "amazon"
	// PlatformShopify is a Shopify storefront.
	PlatformShopify Platform = "shopify"
)

// IsValid returns true if the platform code is known.
func (p Platform) IsValid() bool {
	switch p {
	case PlatformEtsy, PlatformEbay, PlatformAmazon, PlatformShopify:
		return true
	default:
		return false
	}
}

// String returns the string representation of Platform.
func (p Platform) String() string {
	return string(p)
}

// DisplayName returns a human-readable name for the platform.
func (p Platform) DisplayName() string {
	switch p {
	case PlatformEtsy:
		return "Etsy"
	case PlatformEbay:
		return "eBay"
	case PlatformAmazon:
		return "Amazon"
	case PlatformShopify:
		return "Shopify"
	default:
		return string(p)
	}
}

// ParsePlatform parses a platform code, rejecting unknown values.
func ParsePlatform(s string) (Platform, error) {
	p := Platform(s)
	if !p.IsValid() {
		return "", fmt.Errorf("integration: unknown platform %q", s)
	}
	return p, nil
}

// ---------------------------------------------------------------------------
// Connection
// ---------------------------------------------------------------------------

// Connection is the credential and configuration bundle for one marketplace
// account. The sync core treats a Connection as an immutable value: a token
// refresh produces a new Connection, and the caller is responsible for
// persisting the refreshed copy.
type Connection struct {
	Platform Platform `json:"platform"`

	APIKey       string `json:"apiKey"`
	APISecret    string `json:"apiSecret"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	// ExpiresAt is the access-token expiry as epoch milliseconds.
	ExpiresAt int64 `json:"expiresAt,omitempty"`

	StoreID       string   `json:"storeId,omitempty"`
	MarketplaceID string   `json:"marketplaceId,omitempty"`
	ShopName      string   `json:"shopName,omitempty"`
	Region        string   `json:"region,omitempty"`
	Sandbox       bool     `json:"sandbox,omitempty"`
	Scopes        []string `json:"scopes,omitempty"`
}

// Validate checks that the connection carries the fields its platform needs.
func (c Connection) Validate() error {
	if !c.Platform.IsValid() {
		return ErrConnectionMissingPlatform
	}
	if c.APIKey == "" {
		return ErrConnectionMissingKey
	}
	if c.AccessToken == "" {
		return ErrConnectionMissingToken
	}
	if c.Platform == PlatformShopify && c.ShopName == "" {
		return ErrConnectionMissingShop
	}
	return nil
}

// AccountKey returns a stable identifier for the marketplace account behind
// this connection, used for cache keys and breaker scoping.
func (c Connection) AccountKey() string {
	switch {
	case c.ShopName != "":
		return c.ShopName
	case c.StoreID != "":
		return c.StoreID
	case c.MarketplaceID != "":
		return c.MarketplaceID
	default:
		return c.APIKey
	}
}

// Expiry returns the access-token expiry instant, or the zero time when the
// token does not expire.
func (c Connection) Expiry() time.Time {
	if c.ExpiresAt == 0 {
		return time.Time{}
	}
	return time.UnixMilli(c.ExpiresAt)
}

// TokenExpiresWithin reports whether the access token expires within d.
// Tokens without an expiry never report as expiring.
func (c Connection) TokenExpiresWithin(d time.Duration) bool {
	if c.ExpiresAt == 0 {
		return false
	}
	return time.Until(c.Expiry()) <= d
}

// WithToken returns a copy of the connection carrying a new access token,
// rotated refresh token (when supplied) and expiry.
func (c Connection) WithToken(accessToken, refreshToken string, expiresAt time.Time) Connection {
	out := c
	out.AccessToken = accessToken
	if refreshToken != "" {
		out.RefreshToken = refreshToken
	}
	if expiresAt.IsZero() {
		out.ExpiresAt = 0
	} else {
		out.ExpiresAt = expiresAt.UnixMilli()
	}
	return out
}
