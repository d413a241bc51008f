package chromedriver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/theanhybdz2k4/new-sora/pkg/browser"
)

// w3cElementKey is the W3C WebDriver element identifier property.
const w3cElementKey = "element-6066-11e4-a52e-4f735466cecf"

// client is a minimal W3C WebDriver HTTP client.
type client struct {
	baseURL string
	http    *http.Client
}

func newClient(baseURL string) *client {
	return &client{
		baseURL: baseURL,
		http: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
			},
		},
	}
}

// wireError is the error payload of a WebDriver response value.
type wireError struct {
	ErrorCode string `json:"error"`
	Message   string `json:"message"`
}

// do issues a WebDriver request and decodes the "value" field into out.
func (c *client) do(ctx context.Context, method, path string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	} else if method == http.MethodPost {
		// chromedriver requires a JSON body on every POST.
		reqBody = bytes.NewReader([]byte("{}"))
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return browser.ErrOperationTimeout
		}
		return browser.WrapDriverError("connection_lost", "request failed", browser.ErrConnectionLost)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return browser.WrapDriverError("connection_lost", "read response", err)
	}

	var envelope struct {
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return browser.WrapDriverError("invalid_response", "malformed response body", err)
	}

	if resp.StatusCode >= 400 {
		var werr wireError
		if err := json.Unmarshal(envelope.Value, &werr); err == nil && werr.ErrorCode != "" {
			return mapWireError(werr)
		}
		return browser.NewDriverError("http_error", fmt.Sprintf("status %d", resp.StatusCode))
	}

	if out != nil {
		if err := json.Unmarshal(envelope.Value, out); err != nil {
			return browser.WrapDriverError("invalid_response", "decode value", err)
		}
	}
	return nil
}

// mapWireError converts WebDriver error codes into the browser package's
// error taxonomy.
func mapWireError(werr wireError) error {
	switch werr.ErrorCode {
	case "no such element":
		return browser.ErrNoSuchElement
	case "timeout", "script timeout":
		return browser.ErrOperationTimeout
	case "invalid session id", "no such window":
		return browser.ErrSessionClosed
	default:
		return browser.NewDriverError(werr.ErrorCode, werr.Message)
	}
}

// status polls GET /status and reports whether the driver is ready.
func (c *client) status(ctx context.Context) (bool, error) {
	var value struct {
		Ready bool `json:"ready"`
	}
	if err := c.do(ctx, http.MethodGet, "/status", nil, &value); err != nil {
		return false, err
	}
	return value.Ready, nil
}
