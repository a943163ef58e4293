package dto

import (
	"time"

	"github.com/craftshop/backend/internal/domain/integration"
)

// ConnectionPayload is the wire form of a marketplace connection supplied by
// the console. The platform code comes from the URL path.
type ConnectionPayload struct {
	// Platform, when present, must agree with the URL path.
	Platform      string   `json:"platform" binding:"omitempty,platform"`
	APIKey        string   `json:"apiKey" binding:"required"`
	APISecret     string   `json:"apiSecret"`
	AccessToken   string   `json:"accessToken"`
	RefreshToken  string   `json:"refreshToken"`
	ExpiresAt     int64    `json:"expiresAt"`
	StoreID       string   `json:"storeId"`
	MarketplaceID string   `json:"marketplaceId"`
	ShopName      string   `json:"shopName"`
	Region        string   `json:"region"`
	Sandbox       bool     `json:"sandbox"`
	Scopes        []string `json:"scopes"`
}

// ToDomain converts the payload to a domain connection for the platform.
func (p ConnectionPayload) ToDomain(platform integration.Platform) integration.Connection {
	return integration.Connection{
		Platform:      platform,
		APIKey:        p.APIKey,
		APISecret:     p.APISecret,
		AccessToken:   p.AccessToken,
		RefreshToken:  p.RefreshToken,
		ExpiresAt:     p.ExpiresAt,
		StoreID:       p.StoreID,
		MarketplaceID: p.MarketplaceID,
		ShopName:      p.ShopName,
		Region:        p.Region,
		Sandbox:       p.Sandbox,
		Scopes:        p.Scopes,
	}
}

// SyncRequest triggers an order sync for one marketplace account.
type SyncRequest struct {
	Connection ConnectionPayload `json:"connection" binding:"required"`
	// Since restricts the sync to orders created after this instant (RFC3339).
	Since *time.Time `json:"since"`
	// ForceRefresh bypasses the cached order list.
	ForceRefresh bool `json:"forceRefresh"`
	// MaxOrders caps the number of orders fetched.
	MaxOrders int `json:"maxOrders" binding:"omitempty,min=1,max=1000"`
}

// SyncResponse is the result of a sync run.
type SyncResponse struct {
	Sales     any                    `json:"sales"`
	Count     int                    `json:"count"`
	FromCache bool                   `json:"fromCache"`
	Conn      integration.Connection `json:"connection"`
}

// FulfillmentRequest pushes tracking for a synced sale back to its platform.
type FulfillmentRequest struct {
	Connection     ConnectionPayload `json:"connection" binding:"required"`
	TrackingNumber string            `json:"trackingNumber" binding:"required"`
	Carrier        string            `json:"carrier"`
}

// AuthURLRequest asks for the OAuth authorization URL of a platform.
type AuthURLRequest struct {
	Connection  ConnectionPayload `json:"connection" binding:"required"`
	RedirectURI string            `json:"redirectUri" binding:"required,url"`
	Scopes      []string          `json:"scopes"`
}

// AuthURLResponse carries the authorization URL.
type AuthURLResponse struct {
	URL string `json:"url"`
}

// OAuthCallbackRequest completes the authorization-code flow.
type OAuthCallbackRequest struct {
	Connection  ConnectionPayload `json:"connection" binding:"required"`
	Code        string            `json:"code" binding:"required"`
	RedirectURI string            `json:"redirectUri" binding:"required,url"`
}

// MetricsResponse is the transport counter snapshot for one account.
type MetricsResponse struct {
	Total       int64            `json:"total"`
	Success     int64            `json:"success"`
	Failures    int64            `json:"failures"`
	RateLimited int64            `json:"rateLimited"`
	PerEndpoint map[string]int64 `json:"perEndpoint"`
	AvgLatency  string           `json:"avgLatency"`
}
