package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dalfonso89/travel-assistant-api/internal/config"

	"golang.org/x/time/rate"
)

const maxErrorBody = 2048

// Client is the shared HTTP plumbing for every upstream provider. Calls are
// paced by a per-provider token bucket so sequential tiers stay inside the
// upstream's request quota.
type Client struct {
	name       string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a provider client from its configuration
func NewClient(configuration config.ProviderConfig) *Client {
	httpTransport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     90 * time.Second,
	}

	timeout := configuration.Timeout
	if timeout <= 0 {
		timeout = 12 * time.Second
	}

	return NewClientWithHTTP(configuration, &http.Client{Timeout: timeout, Transport: httpTransport})
}

// NewClientWithHTTP creates a provider client around an existing http.Client
func NewClientWithHTTP(configuration config.ProviderConfig, httpClient *http.Client) *Client {
	limit := rate.Inf
	if configuration.RequestsPerSecond > 0 {
		limit = rate.Limit(configuration.RequestsPerSecond)
	}
	burst := configuration.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		name:       configuration.Name,
		baseURL:    strings.TrimRight(configuration.BaseURL, "/"),
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, burst),
	}
}

// Name returns the provider name
func (client *Client) Name() string {
	return client.name
}

// HTTPClient exposes the underlying client so OAuth2 transports can reuse its timeout
func (client *Client) HTTPClient() *http.Client {
	return client.httpClient
}

// BaseURL returns the configured base URL without a trailing slash
func (client *Client) BaseURL() string {
	return client.baseURL
}

// GetJSON fetches baseURL+path with the query and decodes a JSON body into out
func (client *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	body, err := client.Get(ctx, client.httpClient, path, query)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: parse response: %w", client.name, err)
	}
	return nil
}

// Get performs a paced GET through the given http.Client and returns the raw body.
// Non-2xx responses come back as *StatusError carrying the body, so callers can
// inspect structured error payloads.
func (client *Client) Get(ctx context.Context, httpClient *http.Client, path string, query url.Values) ([]byte, error) {
	if err := client.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%s: rate limiter: %w", client.name, err)
	}

	requestURL := client.baseURL + path
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", client.name, err)
	}
	request.Header.Set("Accept", "application/json")

	response, err := httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("%s: request failed: %w", client.name, err)
	}
	defer func() {
		_ = response.Body.Close()
	}()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read response body: %w", client.name, err)
	}

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return body, &StatusError{Provider: client.name, StatusCode: response.StatusCode, Body: truncate(body)}
	}

	return body, nil
}

func truncate(body []byte) string {
	if len(body) > maxErrorBody {
		return string(body[:maxErrorBody]) + "..."
	}
	return string(body)
}
