package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/dalfonso89/travel-assistant-api/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_GetJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/thing", r.URL.Path)
		assert.Equal(t, "abc", r.URL.Query().Get("key"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"value":42}`)
	}))
	defer server.Close()

	client := NewClient(config.ProviderConfig{Name: "test", BaseURL: server.URL + "/", Timeout: time.Second})

	var out struct {
		Value int `json:"value"`
	}
	err := client.GetJSON(context.Background(), "/v1/thing", url.Values{"key": {"abc"}}, &out)
	require.NoError(t, err)
	assert.Equal(t, 42, out.Value)
	assert.Equal(t, "test", client.Name())
	assert.Equal(t, server.URL, client.BaseURL())
}

func TestClient_GetReturnsStatusErrorWithBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"errors":[{"code":1257}]}`)
	}))
	defer server.Close()

	client := NewClient(config.ProviderConfig{Name: "test", BaseURL: server.URL})

	body, err := client.Get(context.Background(), client.HTTPClient(), "/x", nil)
	require.Error(t, err)

	var statusError *StatusError
	require.True(t, errors.As(err, &statusError))
	assert.Equal(t, http.StatusBadRequest, statusError.StatusCode)
	assert.False(t, statusError.Transient())
	assert.Contains(t, string(body), "1257")
}

func TestClient_GetJSONParseError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `not json`)
	}))
	defer server.Close()

	client := NewClient(config.ProviderConfig{Name: "test", BaseURL: server.URL})

	var out map[string]any
	err := client.GetJSON(context.Background(), "/", nil, &out)
	require.Error(t, err)
	assert.Equal(t, ErrorTypePermanent, Classify(err))
}

func TestClient_RateLimiterHonoursContext(t *testing.T) {
	client := NewClient(config.ProviderConfig{Name: "slow", BaseURL: "http://127.0.0.1:1", RequestsPerSecond: 0.001, Burst: 1})
	// drain the single token
	client.limiter.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := client.Get(ctx, client.HTTPClient(), "/", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limiter")
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorType
	}{
		{"nil", nil, ErrorTypeUnknown},
		{"server error", &StatusError{StatusCode: 503}, ErrorTypeTransient},
		{"too many requests", &StatusError{StatusCode: 429}, ErrorTypeTransient},
		{"unauthorized", &StatusError{StatusCode: 401}, ErrorTypePermanent},
		{"wrapped status", fmt.Errorf("tier: %w", &StatusError{StatusCode: 500}), ErrorTypeTransient},
		{"cancelled", context.Canceled, ErrorTypeContextCancelled},
		{"deadline", fmt.Errorf("x: %w", context.DeadlineExceeded), ErrorTypeTransient},
		{"no data", fmt.Errorf("x: %w", ErrNoData), ErrorTypeDataAbsent},
		{"timeout text", errors.New("i/o timeout"), ErrorTypeTransient},
		{"other", errors.New("boom"), ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(tt.err))
		})
	}
}

func TestErrorTypeString(t *testing.T) {
	assert.Equal(t, "transient", ErrorTypeTransient.String())
	assert.Equal(t, "invalid_identifier", ErrorTypeInvalidIdentifier.String())
	assert.Equal(t, "unknown", ErrorType(99).String())
}
