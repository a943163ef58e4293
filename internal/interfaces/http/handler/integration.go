package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/craftshop/backend/internal/application/ordersync"
	"github.com/craftshop/backend/internal/domain/integration"
	"github.com/craftshop/backend/internal/interfaces/http/dto"
)

// IntegrationHandler serves the marketplace sync API.
type IntegrationHandler struct {
	service *ordersync.Service
	logger  *zap.Logger
}

// NewIntegrationHandler creates an integration handler.
func NewIntegrationHandler(service *ordersync.Service, logger *zap.Logger) *IntegrationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IntegrationHandler{service: service, logger: logger}
}

// RegisterRoutes mounts the integration endpoints on the group.
func (h *IntegrationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/integrations/:platform")
	g.POST("/sync", h.Sync)
	g.POST("/orders/:id/fulfillment", h.PushFulfillment)
	g.POST("/auth-url", h.AuthURL)
	g.POST("/oauth/callback", h.OAuthCallback)
	g.POST("/metrics", h.Metrics)
}

// Sync runs an order sync for one marketplace account.
func (h *IntegrationHandler) Sync(c *gin.Context) {
	platform, ok := h.platformParam(c)
	if !ok {
		return
	}
	var req dto.SyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse("INVALID_REQUEST", err.Error()))
		return
	}

	conn := req.Connection.ToDomain(platform)
	if err := conn.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse("INVALID_CONNECTION", err.Error()))
		return
	}

	result, err := h.service.SyncOrders(c.Request.Context(), conn, ordersync.SyncOptions{
		Since:        req.Since,
		ForceRefresh: req.ForceRefresh,
		MaxOrders:    req.MaxOrders,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(dto.SyncResponse{
		Sales:     result.Sales,
		Count:     len(result.Sales),
		FromCache: result.FromCache,
		Conn:      result.Connection,
	}))
}

// PushFulfillment pushes tracking for a synced sale back to its platform.
func (h *IntegrationHandler) PushFulfillment(c *gin.Context) {
	platform, ok := h.platformParam(c)
	if !ok {
		return
	}
	saleID, ok := h.idParam(c)
	if !ok {
		return
	}
	var req dto.FulfillmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse("INVALID_REQUEST", err.Error()))
		return
	}

	conn := req.Connection.ToDomain(platform)
	if err := conn.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse("INVALID_CONNECTION", err.Error()))
		return
	}

	updated, err := h.service.PushFulfillment(c.Request.Context(), conn, saleID, req.TrackingNumber, req.Carrier)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewSuccessResponse(gin.H{"connection": updated}))
}

// AuthURL builds the OAuth authorization URL for a platform.
func (h *IntegrationHandler) AuthURL(c *gin.Context) {
	platform, ok := h.platformParam(c)
	if !ok {
		return
	}
	var req dto.AuthURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse("INVALID_REQUEST", err.Error()))
		return
	}

	authURL, err := h.service.AuthURL(req.Connection.ToDomain(platform), req.RedirectURI, req.Scopes)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewSuccessResponse(dto.AuthURLResponse{URL: authURL}))
}

// OAuthCallback completes the authorization-code flow and returns the
// connection carrying the obtained tokens.
func (h *IntegrationHandler) OAuthCallback(c *gin.Context) {
	platform, ok := h.platformParam(c)
	if !ok {
		return
	}
	var req dto.OAuthCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse("INVALID_REQUEST", err.Error()))
		return
	}

	conn, err := h.service.CompleteOAuth(c.Request.Context(), req.Connection.ToDomain(platform), req.Code, req.RedirectURI)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewSuccessResponse(gin.H{"connection": conn}))
}

// Metrics returns the transport counters for one account.
func (h *IntegrationHandler) Metrics(c *gin.Context) {
	platform, ok := h.platformParam(c)
	if !ok {
		return
	}
	var req dto.AuthURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse("INVALID_REQUEST", err.Error()))
		return
	}

	m, err := h.service.Metrics(req.Connection.ToDomain(platform))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewSuccessResponse(dto.MetricsResponse{
		Total:       m.Total,
		Success:     m.Success,
		Failures:    m.Failures,
		RateLimited: m.RateLimited,
		PerEndpoint: m.PerEndpoint,
		AvgLatency:  m.AvgLatency.String(),
	}))
}

func (h *IntegrationHandler) platformParam(c *gin.Context) (integration.Platform, bool) {
	platform, err := integration.ParsePlatform(c.Param("platform"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse("UNKNOWN_PLATFORM", err.Error()))
		return "", false
	}
	return platform, true
}

func (h *IntegrationHandler) idParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse("INVALID_ID", "sale id must be a positive integer"))
		return 0, false
	}
	return id, true
}

// writeError maps domain errors to HTTP statuses. Marketplace API errors keep
// their code so the console can branch on it.
func (h *IntegrationHandler) writeError(c *gin.Context, err error) {
	var apiErr *integration.APIError
	if errors.As(err, &apiErr) {
		c.JSON(statusForAPIError(apiErr), dto.NewErrorResponse(string(apiErr.Code), apiErr.Message))
		return
	}
	switch {
	case errors.Is(err, integration.ErrMappingNotFound):
		c.JSON(http.StatusNotFound, dto.NewErrorResponse("MAPPING_NOT_FOUND", err.Error()))
	case errors.Is(err, integration.ErrClientNotRegistered):
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse("UNKNOWN_PLATFORM", err.Error()))
	default:
		h.logger.Error("integration request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse("INTERNAL_ERROR", err.Error()))
	}
}

func statusForAPIError(apiErr *integration.APIError) int {
	switch apiErr.Code {
	case integration.ErrCodeAuthFailed, integration.ErrCodeTokenRefreshFailed:
		return http.StatusUnauthorized
	case integration.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case integration.ErrCodeCircuitOpen:
		return http.StatusServiceUnavailable
	case integration.ErrCodeClientError:
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}
