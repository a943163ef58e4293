package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/craftshop/backend/internal/domain/integration"
)

// maxResponseSize bounds response bodies read from marketplace APIs (10MB).
const maxResponseSize = 10 * 1024 * 1024

// Request describes one marketplace API call.
type Request struct {
	Method string
	// URL is the absolute request URL.
	URL string
	// Query is appended to the URL.
	Query url.Values
	// JSONBody, when non-nil, is marshalled as the request body.
	JSONBody any
	// Form, when non-nil, is sent urlencoded. Mutually exclusive with
	// JSONBody.
	Form url.Values
	// Endpoint is the metrics label for this call, e.g. "receipts.list".
	Endpoint string
	// Header carries extra request headers.
	Header http.Header
}

// Response is a completed marketplace API response.
type Response struct {
	Status int
	Body   []byte
	Header http.Header
}

// Transport executes marketplace API calls for a single connection. It
// composes the request pipeline the integrations share: token refresh,
// bearer injection, response classification, metrics, and the circuit
// breaker's retry discipline. One Transport exists per platform connection.
type Transport struct {
	platform   integration.Platform
	tokens     *TokenManager
	breaker    *CircuitBreaker
	httpClient *http.Client
	metrics    *Metrics
	logger     *zap.Logger

	// conn is the connection value threaded through calls; it is replaced
	// wholesale when the token manager refreshes it.
	mu   sync.Mutex
	conn integration.Connection
}

// NewTransport creates a transport bound to one connection.
func NewTransport(conn integration.Connection, tokens *TokenManager, breaker *CircuitBreaker, httpClient *http.Client, logger *zap.Logger) *Transport {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transport{
		platform:   conn.Platform,
		conn:       conn,
		tokens:     tokens,
		breaker:    breaker,
		httpClient: httpClient,
		metrics:    NewMetrics(),
		logger:     logger,
	}
}

// Connection returns the current connection value, including any refreshed
// token. Callers persist it after a sync.
func (t *Transport) Connection() integration.Connection {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn
}

// SetConnection replaces the connection value, keeping breaker and metrics
// state. The registry uses it when a cached transport is handed updated
// credentials.
func (t *Transport) SetConnection(conn integration.Connection) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.conn = conn
}

// Metrics returns a snapshot of this transport's counters.
func (t *Transport) Metrics() integration.TransportMetrics {
	return t.metrics.Snapshot()
}

// Do executes one request under the breaker's retry discipline and returns
// the classified response. Rate-limit errors are surfaced for the fetch
// layer to sleep on; they are never retried here.
func (t *Transport) Do(ctx context.Context, req Request) (*Response, error) {
	var resp *Response
	err := t.breaker.Execute(ctx, func(ctx context.Context) error {
		var opErr error
		resp, opErr = t.doOnce(ctx, req)
		return opErr
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// doOnce runs the request pipeline a single time.
func (t *Transport) doOnce(ctx context.Context, req Request) (*Response, error) {
	conn, refreshed, err := t.tokens.Ensure(ctx, t.Connection())
	if err != nil {
		return nil, err
	}
	if refreshed {
		t.mu.Lock()
		t.conn = conn
		t.mu.Unlock()
	}

	httpReq, err := t.buildRequest(ctx, conn, req)
	if err != nil {
		return nil, integration.NewClientError(0, err.Error())
	}

	start := time.Now()
	httpResp, err := t.httpClient.Do(httpReq)
	latency := time.Since(start)
	if err != nil {
		apiErr := integration.NewServerError(0, err.Error())
		t.metrics.Record(req.Endpoint, latency, apiErr)
		return nil, apiErr
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		apiErr := integration.NewServerError(0, "reading response: "+err.Error())
		t.metrics.Record(req.Endpoint, latency, apiErr)
		return nil, apiErr
	}

	if apiErr := integration.ClassifyResponse(httpResp.StatusCode, httpResp.Header.Get("Retry-After"), string(body)); apiErr != nil {
		t.metrics.Record(req.Endpoint, latency, apiErr)
		t.logger.Debug("marketplace request failed",
			zap.String("platform", t.platform.String()),
			zap.String("endpoint", req.Endpoint),
			zap.Int("status", httpResp.StatusCode),
			zap.String("code", string(apiErr.Code)),
		)
		return nil, apiErr
	}

	t.metrics.Record(req.Endpoint, latency, nil)
	return &Response{
		Status: httpResp.StatusCode,
		Body:   body,
		Header: httpResp.Header,
	}, nil
}

func (t *Transport) buildRequest(ctx context.Context, conn integration.Connection, req Request) (*http.Request, error) {
	target := req.URL
	if len(req.Query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + req.Query.Encode()
	}

	var body io.Reader
	contentType := ""
	switch {
	case req.JSONBody != nil:
		data, err := json.Marshal(req.JSONBody)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	case req.Form != nil:
		body = strings.NewReader(req.Form.Encode())
		contentType = "application/x-www-form-urlencoded"
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	t.authorize(httpReq, conn)
	return httpReq, nil
}

// authorize injects the platform's credential headers.
func (t *Transport) authorize(req *http.Request, conn integration.Connection) {
	switch t.platform {
	case integration.PlatformShopify:
		req.Header.Set("X-Shopify-Access-Token", conn.AccessToken)
	case integration.PlatformEtsy:
		req.Header.Set("Authorization", "Bearer "+conn.AccessToken)
		req.Header.Set("x-api-key", conn.APIKey)
	case integration.PlatformAmazon:
		req.Header.Set("x-amz-access-token", conn.AccessToken)
	default:
		req.Header.Set("Authorization", "Bearer "+conn.AccessToken)
	}
}
