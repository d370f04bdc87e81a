package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sorengranfeldt/mre/internal/api/middleware"
	"github.com/sorengranfeldt/mre/internal/api/presenter"
)

// maxErrorBody bounds how much of a failed response is read.
const maxErrorBody = 64 << 10

// APIError is a failed request as reported by the debug server.
type APIError struct {
	StatusCode    int
	Kind          string
	CorrelationID string
	Message       string
}

func (e APIError) Error() string {
	return fmt.Sprintf("server answered %d: %s (correlation: %s)", e.StatusCode, e.Message, e.CorrelationID)
}

// NotInitialized reports whether the server has no active rules.
func (e APIError) NotInitialized() bool {
	return e.Kind == presenter.KindNotInitialized
}

// IsNotInitialized reports whether err is an APIError for a server without
// active rules.
func IsNotInitialized(err error) bool {
	var apiErr APIError
	return errors.As(err, &apiErr) && apiErr.NotInitialized()
}

func (c *Client) get(ctx context.Context, url string, result any) (string, error) {
	return c.send(ctx, http.MethodGet, url, nil, result)
}

func (c *Client) post(ctx context.Context, url string, payload, result any) (string, error) {
	return c.send(ctx, http.MethodPost, url, payload, result)
}

// send performs one request and decodes a JSON answer into result. It returns
// the correlation id the server assigned, also when the request failed.
func (c *Client) send(ctx context.Context, method, url string, payload, result any) (string, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return "", fmt.Errorf("encoding %s payload: %w", method, err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return "", fmt.Errorf("building %s request: %w", method, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("reaching %s: %w", c.baseURL.Host, err)
	}
	defer func() { _ = resp.Body.Close() }()

	correlation := resp.Header.Get(middleware.CorrelationIDHeader)
	if resp.StatusCode >= http.StatusBadRequest {
		return correlation, decodeAPIError(resp, correlation)
	}
	if result == nil {
		return correlation, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return correlation, fmt.Errorf("decoding answer of %s %s: %w", method, req.URL.Path, err)
	}
	return correlation, nil
}

// decodeAPIError turns a failed response into an APIError. Bodies that are
// not an error document are reported verbatim.
func decodeAPIError(resp *http.Response, correlation string) error {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return fmt.Errorf("server answered %d, body unreadable: %w", resp.StatusCode, err)
	}

	apiErr := APIError{StatusCode: resp.StatusCode, CorrelationID: correlation}
	var doc presenter.ErrorResponse
	if json.Unmarshal(raw, &doc) == nil && doc.Error != "" {
		apiErr.Message = doc.Error
		apiErr.Kind = doc.Kind
		if doc.CorrelationID != "" {
			apiErr.CorrelationID = doc.CorrelationID
		}
		return apiErr
	}

	apiErr.Message = strings.TrimSpace(string(raw))
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
