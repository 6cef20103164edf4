package pantry

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ledger/internal/docstore"
)

const (
	DefaultBaseURL = "https://getpantry.cloud/apiv1/pantry"
	DefaultBasket  = "appdata"

	// excerptLimit caps how much of an error body is copied into error messages.
	excerptLimit = 256
)

var _ docstore.Store = (*Client)(nil)

// Client reads and overwrites one basket of a Pantry-compatible JSON blob service.
type Client struct {
	BaseURL  string
	PantryID string
	Basket   string
	HTTP     *http.Client
}

// StatusError is returned for responses that are neither success nor "absent".
type StatusError struct {
	Method string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("pantry %s: unexpected status code: %d, body: %s", e.Method, e.Status, e.Body)
}

func NewClient(baseURL, pantryID, basket string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if basket == "" {
		basket = DefaultBasket
	}
	return &Client{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		PantryID: pantryID,
		Basket:   basket,
		HTTP:     &http.Client{Timeout: timeout},
	}
}

func (c *Client) basketURL() string {
	return fmt.Sprintf("%s/%s/basket/%s", c.BaseURL, url.PathEscape(c.PantryID), url.PathEscape(c.Basket))
}

func (c *Client) Fetch(ctx context.Context) ([]byte, error) {
	body, status, err := c.doRequest(ctx, http.MethodGet, nil)
	if err != nil {
		return nil, err
	}
	if isAbsent(status, body) {
		return nil, docstore.ErrNotFound
	}
	if status != http.StatusOK {
		return nil, &StatusError{Method: http.MethodGet, Status: status, Body: excerpt(body)}
	}
	return body, nil
}

// Replace overwrites the basket; the response body is ignored on success.
func (c *Client) Replace(ctx context.Context, doc []byte) error {
	body, status, err := c.doRequest(ctx, http.MethodPost, doc)
	if err != nil {
		return err
	}
	if status < 200 || status > 299 {
		return &StatusError{Method: http.MethodPost, Status: status, Body: excerpt(body)}
	}
	return nil
}

func (c *Client) doRequest(ctx context.Context, method string, payload []byte) ([]byte, int, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.basketURL(), reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response (status %d): %w", resp.StatusCode, err)
	}
	return body, resp.StatusCode, nil
}

// isAbsent recognizes the ways the service reports a basket that was never written.
func isAbsent(status int, body []byte) bool {
	switch status {
	case http.StatusNotFound:
		return true
	case http.StatusBadRequest:
		return bytes.Contains(bytes.ToLower(body), []byte("does not exist"))
	}
	return false
}

func excerpt(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > excerptLimit {
		return s[:excerptLimit] + "..."
	}
	return s
}
