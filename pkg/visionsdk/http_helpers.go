package visionsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/aussiebroadwan/minivisionary/pkg/httpx"
)

func (c *Client) url(path string) string {
	return c.BaseURL + path
}

// doRequest sends a request and classifies transport failures. A nil body
// sends no payload. token may be empty for public endpoints.
func (c *Client) doRequest(ctx context.Context, method, path, token string, body any) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), rd)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return nil, fmt.Errorf("%w: %w", ErrCanceled, cerr)
		}
		return nil, fmt.Errorf("%w: %s %s: %w", ErrNetwork, method, path, err)
	}
	return resp, nil
}

// call performs a request and decodes a successful response into target.
func (c *Client) call(ctx context.Context, method, path, token string, body, target any, expectedStatus int) error {
	resp, err := c.doRequest(ctx, method, path, token, body)
	if err != nil {
		return err
	}
	return decodeJSON(resp, target, expectedStatus)
}

// decodeJSON reads the whole body, returning an *APIError for unexpected
// statuses or an explicit "ok":false, and ErrServer for bodies that do not
// decode.
func decodeJSON(resp *http.Response, target any, expectedStatus int) error {
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, httpx.MaxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: read response: %w", ErrNetwork, err)
	}

	if resp.StatusCode != expectedStatus {
		return parseErrorResponse(resp, bodyBytes)
	}
	if apiErr := refusedInBody(resp, bodyBytes); apiErr != nil {
		return apiErr
	}

	if target == nil {
		return nil
	}
	if err := json.Unmarshal(bodyBytes, target); err != nil {
		return fmt.Errorf("%w: malformed response: %w", ErrServer, err)
	}
	return nil
}

// refusedInBody returns the error carried by a success status whose body
// still says "ok": false. A missing code is reported as server_error.
func refusedInBody(resp *http.Response, body []byte) *APIError {
	var env struct {
		OK      *bool  `json:"ok"`
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &env); err != nil || env.OK == nil || *env.OK {
		return nil
	}

	code := env.Error
	if code == "" {
		code = CodeServerError
	}
	return &APIError{StatusCode: resp.StatusCode, Code: code, Message: env.Message}
}

// parseErrorResponse turns a failed response into an *APIError, inventing a
// code from the status when the body is not the standard envelope.
func parseErrorResponse(resp *http.Response, body []byte) error {
	var env httpx.ErrorBody
	if err := json.Unmarshal(body, &env); err == nil && env.Error != "" {
		return &APIError{StatusCode: resp.StatusCode, Code: env.Error, Message: env.Message}
	}

	code := fmt.Sprintf("http_%d", resp.StatusCode)
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		code = CodeUnauthenticated
	case resp.StatusCode == http.StatusPaymentRequired:
		code = CodeInsufficientCredits
	case resp.StatusCode == http.StatusNotFound:
		code = CodeNotFound
	case resp.StatusCode >= http.StatusInternalServerError:
		code = CodeServerError
	}
	return &APIError{
		StatusCode: resp.StatusCode,
		Code:       code,
		Message:    http.StatusText(resp.StatusCode),
	}
}
