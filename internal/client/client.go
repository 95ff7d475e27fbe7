package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/zmcp/odata-filter-restrictions/internal/constants"
	"github.com/zmcp/odata-filter-restrictions/internal/debug"
	"github.com/zmcp/odata-filter-restrictions/internal/metadata"
)

// MetadataClient fetches service metadata documents over HTTP.
type MetadataClient struct {
	serviceURL     string
	httpClient     *http.Client
	cookies        map[string]string
	username       string
	password       string
	query          url.Values
	sessionCookies []*http.Cookie // Session cookies set by the server
	retryConfig    *RetryConfig
	logger         *slog.Logger
	mu             sync.RWMutex // Guards cookies and sessionCookies
}

// HTTPError is returned when the service answers with a non-200 status.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	body := e.Body
	if len(body) > 512 {
		body = body[:512] + "..."
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, body)
}

// encodeQueryParams encodes URL query parameters with proper space encoding
// OData servers expect spaces to be encoded as %20, not + (RFC 3986)
func encodeQueryParams(params url.Values) string {
	encoded := params.Encode()
	return strings.ReplaceAll(encoded, "+", "%20")
}

// New creates a metadata client for the given service root. A nil logger
// discards all output.
func New(serviceURL string, logger *slog.Logger) *MetadataClient {
	if !strings.HasSuffix(serviceURL, "/") {
		serviceURL += "/"
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &MetadataClient{
		serviceURL: serviceURL,
		httpClient: &http.Client{
			Timeout: time.Duration(constants.DefaultMetadataTimeout) * time.Second,
		},
		retryConfig: DefaultRetryConfig(),
		logger:      logger,
	}
}

// ServiceURL returns the normalized service root.
func (c *MetadataClient) ServiceURL() string {
	return c.serviceURL
}

// SetBasicAuth configures basic authentication
func (c *MetadataClient) SetBasicAuth(username, password string) {
	c.username = username
	c.password = password
}

// SetCookies configures cookie authentication
func (c *MetadataClient) SetCookies(cookies map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cookies = cookies
}

// SetQueryParam adds a query parameter sent with every request, e.g.
// sap-client or sap-language.
func (c *MetadataClient) SetQueryParam(name, value string) {
	if c.query == nil {
		c.query = url.Values{}
	}
	c.query.Set(name, value)
}

// SetRetryConfig configures retry behavior for failed requests
func (c *MetadataClient) SetRetryConfig(cfg *RetryConfig) {
	if cfg != nil {
		c.retryConfig = cfg
	}
}

// ConfigureRetry configures retry behavior from individual parameters
// This is a convenience method for setting retry config from CLI flags
func (c *MetadataClient) ConfigureRetry(maxRetries, initialBackoffMs, maxBackoffMs int, backoffMultiplier float64) {
	cfg := DefaultRetryConfig()
	cfg.MaxRetries = maxRetries
	cfg.InitialBackoff = time.Duration(initialBackoffMs) * time.Millisecond
	cfg.MaxBackoff = time.Duration(maxBackoffMs) * time.Millisecond
	cfg.BackoffMultiplier = backoffMultiplier
	c.retryConfig = cfg
}

// buildRequest creates a GET request with headers and authentication
func (c *MetadataClient) buildRequest(ctx context.Context, endpoint, accept string) (*http.Request, error) {
	fullURL := c.serviceURL + strings.TrimPrefix(endpoint, "/")
	if len(c.query) > 0 {
		fullURL += "?" + encodeQueryParams(c.query)
	}

	req, err := http.NewRequestWithContext(ctx, constants.GET, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set(constants.UserAgent, constants.DefaultUserAgent)
	req.Header.Set(constants.Accept, accept)

	if c.username != "" && c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	for name, value := range c.cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}
	for _, cookie := range c.sessionCookies {
		req.AddCookie(cookie)
	}

	return req, nil
}

// doRequestWithRetry executes a request with exponential backoff. The
// returned response carries a fully buffered body.
func (c *MetadataClient) doRequestWithRetry(req *http.Request) (*http.Response, error) {
	var lastErr error
	var lastResp *http.Response
	var lastBody []byte

	for attempt := 0; attempt <= c.retryConfig.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.retryConfig.CalculateBackoff(attempt - 1)
			if lastResp != nil {
				if wait, ok := RetryAfter(lastResp); ok && wait > backoff {
					backoff = min(wait, c.retryConfig.MaxBackoff)
				}
			}
			c.logger.Debug("retrying request",
				"attempt", attempt, "maxRetries", c.retryConfig.MaxRetries, "backoff", backoff)
			select {
			case <-req.Context().Done():
				return nil, req.Context().Err()
			case <-time.After(backoff):
			}
		}

		if attempt == 0 {
			c.logger.Debug("sending request",
				"method", req.Method, "url", req.URL.String(), "headers", maskHeaders(req.Header))
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctxErr := req.Context().Err(); ctxErr != nil {
				return nil, ctxErr
			}
			lastErr = fmt.Errorf("%s: %w", constants.ErrRequestFailed, err)
			c.logger.Debug("request failed", "error", err)
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = fmt.Errorf("failed to read response body: %w", readErr)
			continue
		}

		c.rememberSessionCookies(resp)
		lastResp = resp
		lastBody = body

		if c.retryConfig.ShouldRetry(resp.StatusCode, attempt) {
			c.logger.Debug("received retryable status", "status", resp.StatusCode)
			continue
		}

		resp.Body = io.NopCloser(bytes.NewReader(body))
		return resp, nil
	}

	if lastResp != nil {
		lastResp.Body = io.NopCloser(bytes.NewReader(lastBody))
		return lastResp, nil
	}
	return nil, fmt.Errorf("all %d retries failed: %w", c.retryConfig.MaxRetries, lastErr)
}

func (c *MetadataClient) rememberSessionCookies(resp *http.Response) {
	cookies := resp.Cookies()
	if len(cookies) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cookie := range cookies {
		replaced := false
		for i, existing := range c.sessionCookies {
			if existing.Name == cookie.Name {
				c.sessionCookies[i] = cookie
				replaced = true
				break
			}
		}
		if !replaced {
			c.sessionCookies = append(c.sessionCookies, cookie)
		}
		c.logger.Debug("received session cookie", "name", cookie.Name, "cookie", cookie.Value)
	}
}

// maskHeaders creates a string representation of headers with sensitive values masked
func maskHeaders(headers http.Header) string {
	var parts []string
	for name, values := range headers {
		for _, value := range values {
			parts = append(parts, fmt.Sprintf("%s: %s", name, debug.MaskHeader(name, value)))
		}
	}
	return strings.Join(parts, ", ")
}

// FetchMetadata downloads the raw $metadata document.
func (c *MetadataClient) FetchMetadata(ctx context.Context) ([]byte, error) {
	req, err := c.buildRequest(ctx, constants.MetadataEndpoint, constants.ContentTypeXML)
	if err != nil {
		return nil, err
	}

	resp, err := c.doRequestWithRetry(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, fmt.Errorf("%s: empty response", constants.ErrMetadataNotFound)
	}

	c.logger.Debug("fetched metadata", "bytes", len(body))
	return body, nil
}

// LoadModel fetches and parses the service metadata.
func (c *MetadataClient) LoadModel(ctx context.Context) (*metadata.Model, error) {
	data, err := c.FetchMetadata(ctx)
	if err != nil {
		return nil, err
	}

	model, err := metadata.Load(data, c.serviceURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", constants.ErrResponseParseFailed, err)
	}

	summary := model.Metadata().Summary()
	c.logger.Debug("parsed metadata",
		"entityTypes", summary.EntityTypes, "entitySets", summary.EntitySets, "annotationTargets", summary.Annotated)
	return model, nil
}
