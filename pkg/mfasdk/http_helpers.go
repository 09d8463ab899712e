package mfasdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// url builds a complete URL by appending the path to the base URL.
func (c *Client) url(path string) string {
	return c.BaseURL + path
}

// doJSON performs a JSON request/response round trip. A nil body sends no
// payload, a nil target discards the response body. Non-expected statuses are
// parsed into a *GateError.
func (c *Client) doJSON(
	ctx context.Context,
	method, path string,
	body, target any,
	expectedStatus int,
) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Principal != "" {
		req.Header.Set(PrincipalHeader, c.Principal)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != expectedStatus {
		return parseErrorResponse(resp, bodyBytes)
	}

	if target == nil {
		return nil
	}
	if err := json.Unmarshal(bodyBytes, target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// parseErrorResponse turns an error response body into a *GateError. Bodies
// that are not the standard envelope fall back to a generic error carrying
// the status code.
func parseErrorResponse(resp *http.Response, body []byte) error {
	var gateErr GateError
	if err := json.Unmarshal(body, &gateErr); err == nil && gateErr.Code != "" {
		gateErr.StatusCode = resp.StatusCode
		return &gateErr
	}

	return &GateError{
		StatusCode:  resp.StatusCode,
		Code:        ErrorCodeServerError,
		Description: fmt.Sprintf("unexpected response status %d", resp.StatusCode),
	}
}
