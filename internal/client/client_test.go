package client

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zmcp/odata-filter-restrictions/internal/metadata/metadatatest"
)

func TestEncodeQueryParams(t *testing.T) {
	tests := []struct {
		name     string
		params   url.Values
		expected string
	}{
		{
			name:     "sap client",
			params:   url.Values{"sap-client": []string{"100"}},
			expected: "sap-client=100",
		},
		{
			name: "spaces use percent encoding",
			params: url.Values{
				"sap-language": []string{"EN"},
				"x-note":       []string{"two words"},
			},
			expected: "sap-language=EN&x-note=two%20words",
		},
		{
			name:     "special characters",
			params:   url.Values{"$format": []string{"xml"}},
			expected: "%24format=xml",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, encodeQueryParams(tt.params))
		})
	}
}

func fastRetry(maxRetries int) *RetryConfig {
	cfg := DefaultRetryConfig()
	cfg.MaxRetries = maxRetries
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = 10 * time.Millisecond
	cfg.JitterFraction = 0
	return cfg
}

func TestLoadModel(t *testing.T) {
	var gotPath, gotAccept, gotClient string
	var gotUser, gotPass string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAccept = r.Header.Get("Accept")
		gotClient = r.URL.Query().Get("sap-client")
		gotUser, gotPass, _ = r.BasicAuth()
		w.Header().Set("Content-Type", "application/xml")
		w.Write(metadatatest.SalesV4)
	}))
	defer server.Close()

	c := New(server.URL+"/sap/opu/odata4/SALES", nil)
	c.SetBasicAuth("alice", "secret")
	c.SetQueryParam("sap-client", "100")

	model, err := c.LoadModel(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "/sap/opu/odata4/SALES/$metadata", gotPath)
	assert.Equal(t, "application/xml", gotAccept)
	assert.Equal(t, "100", gotClient)
	assert.Equal(t, "alice", gotUser)
	assert.Equal(t, "secret", gotPass)
	assert.Equal(t, "EntitySet", model.GetObject("/Orders/$kind"))
	assert.Equal(t, server.URL+"/sap/opu/odata4/SALES/", c.ServiceURL())
}

func TestFetchMetadataErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "unauthorized",
			status: http.StatusUnauthorized,
			body:   "logon failed",
			check: func(t *testing.T, err error) {
				var httpErr *HTTPError
				require.True(t, errors.As(err, &httpErr))
				assert.Equal(t, http.StatusUnauthorized, httpErr.StatusCode)
				assert.Contains(t, err.Error(), "logon failed")
			},
		},
		{
			name:   "empty document",
			status: http.StatusOK,
			check: func(t *testing.T, err error) {
				assert.Contains(t, err.Error(), "metadata not found")
			},
		},
		{
			name:   "retries exhausted",
			status: http.StatusServiceUnavailable,
			body:   "down",
			check: func(t *testing.T, err error) {
				var httpErr *HTTPError
				require.True(t, errors.As(err, &httpErr))
				assert.Equal(t, http.StatusServiceUnavailable, httpErr.StatusCode)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c := New(server.URL, nil)
			c.SetRetryConfig(fastRetry(2))
			_, err := c.FetchMetadata(context.Background())
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestLoadModelRejectsInvalidDocument(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>login page</html>"))
	}))
	defer server.Close()

	_, err := New(server.URL, nil).LoadModel(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "response parsing failed")
}

func TestCookiesAreSent(t *testing.T) {
	var requests []*http.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r)
		if len(requests) == 1 {
			http.SetCookie(w, &http.Cookie{Name: "SAP_SESSIONID_ABC_100", Value: "session-1"})
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write(metadatatest.SalesV4)
	}))
	defer server.Close()

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	c := New(server.URL, logger)
	c.SetRetryConfig(fastRetry(1))
	c.SetCookies(map[string]string{"MYSAPSSO2": "sso-ticket"})

	_, err := c.FetchMetadata(context.Background())
	require.NoError(t, err)
	require.Len(t, requests, 2)

	first, err := requests[0].Cookie("MYSAPSSO2")
	require.NoError(t, err)
	assert.Equal(t, "sso-ticket", first.Value)

	req, err := c.buildRequest(context.Background(), "$metadata", "application/xml")
	require.NoError(t, err)
	session, err := req.Cookie("SAP_SESSIONID_ABC_100")
	require.NoError(t, err)
	assert.Equal(t, "session-1", session.Value)

	assert.Contains(t, logs.String(), "received retryable status")
}

func TestConfigureRetry(t *testing.T) {
	c := New("https://example.com/sap/opu/odata/sap/SRV/", nil)
	c.ConfigureRetry(5, 250, 4000, 3)

	assert.Equal(t, 5, c.retryConfig.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, c.retryConfig.InitialBackoff)
	assert.Equal(t, 4*time.Second, c.retryConfig.MaxBackoff)
	assert.Equal(t, 3.0, c.retryConfig.BackoffMultiplier)
	assert.Equal(t, DefaultRetryConfig().RetryableStatuses, c.retryConfig.RetryableStatuses)

	c.SetRetryConfig(nil)
	assert.Equal(t, 5, c.retryConfig.MaxRetries)
}

func TestHTTPErrorTruncatesBody(t *testing.T) {
	err := &HTTPError{StatusCode: 500, Body: string(bytes.Repeat([]byte("x"), 600))}
	assert.Len(t, err.Error(), len("HTTP 500: ")+512+3)
}
