// Package remotestore implements the identity-mapping port against the
// hosted console API, for deployments where the mapping tables live behind
// HTTP instead of a local database.
package remotestore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/craftshop/backend/internal/domain/integration"
)

const defaultTimeout = 10 * time.Second

// MappingClient is an HTTP implementation of integration.MappingStore.
// Mappings are served from
// /integration-mappings/{customers|orders}.
type MappingClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// Option configures a MappingClient.
type Option func(*MappingClient)

// WithHTTPClient overrides the HTTP client, mainly for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(m *MappingClient) { m.httpClient = c }
}

// NewMappingClient creates a mapping client for the given API base URL.
func NewMappingClient(baseURL string, logger *zap.Logger, opts ...Option) *MappingClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &MappingClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Find returns the mapping for a remote id, or ErrMappingNotFound.
func (m *MappingClient) Find(ctx context.Context, platform integration.Platform, kind integration.MappingKind, remoteID string) (*integration.IdentityMapping, error) {
	query := url.Values{
		"platform": {platform.String()},
		"remoteId": {remoteID},
	}
	return m.get(ctx, kind, query)
}

// FindByInternalID returns the mapping for a local id, or ErrMappingNotFound.
func (m *MappingClient) FindByInternalID(ctx context.Context, platform integration.Platform, kind integration.MappingKind, internalID int64) (*integration.IdentityMapping, error) {
	query := url.Values{
		"platform":   {platform.String()},
		"internalId": {strconv.FormatInt(internalID, 10)},
	}
	return m.get(ctx, kind, query)
}

// Save persists a mapping. The server enforces remote-id uniqueness; a
// conflict means a racing sync already created the mapping and is not an
// error.
func (m *MappingClient) Save(ctx context.Context, platform integration.Platform, kind integration.MappingKind, mapping *integration.IdentityMapping) error {
	endpoint, err := m.endpoint(kind, url.Values{"platform": {platform.String()}})
	if err != nil {
		return err
	}

	body, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("remotestore: encoding mapping: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("remotestore: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("remotestore: saving mapping: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusConflict:
		m.logger.Debug("mapping already exists",
			zap.String("platform", platform.String()),
			zap.String("kind", string(kind)),
			zap.String("remote_id", mapping.RemoteID),
		)
		return nil
	default:
		return fmt.Errorf("remotestore: saving mapping: %s", m.readError(resp))
	}
}

func (m *MappingClient) get(ctx context.Context, kind integration.MappingKind, query url.Values) (*integration.IdentityMapping, error) {
	endpoint, err := m.endpoint(kind, query)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("remotestore: building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remotestore: fetching mapping: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, integration.ErrMappingNotFound
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var mapping integration.IdentityMapping
		if err := json.NewDecoder(resp.Body).Decode(&mapping); err != nil {
			return nil, fmt.Errorf("remotestore: decoding mapping: %w", err)
		}
		return &mapping, nil
	default:
		return nil, fmt.Errorf("remotestore: fetching mapping: %s", m.readError(resp))
	}
}

func (m *MappingClient) endpoint(kind integration.MappingKind, query url.Values) (string, error) {
	if !kind.IsValid() {
		return "", fmt.Errorf("remotestore: unknown mapping kind %q", kind)
	}
	endpoint := m.baseURL + "/integration-mappings/" + string(kind)
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	return endpoint, nil
}

func (m *MappingClient) readError(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if len(body) == 0 {
		return resp.Status
	}
	return fmt.Sprintf("%s: %s", resp.Status, strings.TrimSpace(string(body)))
}
