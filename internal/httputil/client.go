// Package httputil carries Results over HTTP: response writers for handlers
// and a client that turns responses back into Results.
package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/R3E-Network/action_layer/pkg/result"
)

const maxResponseBytes = 8 << 20

// Client calls the action API and rebuilds the Result each response carries.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	maxRetries int
}

// ClientConfig configures the client.
type ClientConfig struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	MaxRetries int
}

// NewClient creates a client for the API rooted at cfg.BaseURL.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 2
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		maxRetries: maxRetries,
	}
}

// Do sends a JSON request and decodes the Result in the response. Transport
// failures and non-JSON bodies are returned as errors; API failures come
// back as error Results.
func (c *Client) Do(ctx context.Context, method, path string, body any) (result.Result, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return result.Result{}, fmt.Errorf("failed to marshal request body: %w", err)
		}
	}
	return c.doWithRetry(ctx, method, path, payload, 0)
}

// doWithRetry retries gateway failures, which never reach an action.
func (c *Client) doWithRetry(ctx context.Context, method, path string, payload []byte, attempt int) (result.Result, error) {
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return result.Result{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return result.Result{}, fmt.Errorf("request failed: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		if attempt < c.maxRetries {
			resp.Body.Close()
			return c.doWithRetry(ctx, method, path, payload, attempt+1)
		}
	}

	return DecodeResult(resp)
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string) (result.Result, error) {
	return c.Do(ctx, http.MethodGet, path, nil)
}

// Post performs a POST request with JSON body.
func (c *Client) Post(ctx context.Context, path string, body any) (result.Result, error) {
	return c.Do(ctx, http.MethodPost, path, body)
}

// Put performs a PUT request with JSON body.
func (c *Client) Put(ctx context.Context, path string, body any) (result.Result, error) {
	return c.Do(ctx, http.MethodPut, path, body)
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) (result.Result, error) {
	return c.Do(ctx, http.MethodDelete, path, nil)
}

// DecodeResult rebuilds a Result from a response written by WriteResult.
// Data is left as decoded JSON.
func DecodeResult(resp *http.Response) (result.Result, error) {
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return result.Result{}, fmt.Errorf("read response body: %w", err)
	}
	if len(raw) > maxResponseBytes {
		return result.Result{}, fmt.Errorf("response body exceeds %d bytes", maxResponseBytes)
	}

	var body result.Response
	if err := json.Unmarshal(raw, &body); err != nil {
		msg := strings.TrimSpace(string(raw))
		if len(msg) > 256 {
			msg = msg[:256] + "...(truncated)"
		}
		return result.Result{}, fmt.Errorf("failed to decode response with status %d: %s", resp.StatusCode, msg)
	}

	opts := []result.Option{result.WithMessage(body.Message), result.WithStatus(resp.StatusCode)}
	if body.Success {
		return result.Success(body.Data, opts...), nil
	}
	if len(body.Errors) > 0 {
		opts = append(opts, result.WithErrors(body.Errors))
	}
	if body.Data != nil {
		opts = append(opts, result.WithData(body.Data))
	}
	return result.Error(body.Message, opts...), nil
}
