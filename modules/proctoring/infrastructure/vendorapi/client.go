package vendorapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	CategoryTransport = "transport"
	CategoryHTTP      = "http"
	CategoryDecode    = "decode"
)

type GatewayError struct {
	Category   string
	StatusCode int
	Err        error
}

func (e *GatewayError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("vendorapi: %s: http %d: %v", e.Category, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("vendorapi: %s: %v", e.Category, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func New(baseURL string, apiKey string) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("vendorapi: missing base url")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.New("vendorapi: invalid base url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.New("vendorapi: invalid base url scheme")
	}
	if u.Host == "" {
		return nil, errors.New("vendorapi: invalid base url host")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("vendorapi: missing api key")
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}, nil
}

// Execute performs exactly one attempt of the command; there is no retry
// policy at this boundary.
func (c *Client) Execute(ctx context.Context, cmd Command) (map[string]any, error) {
	body, err := json.Marshal(cmd.Body())
	if err != nil {
		return nil, &GatewayError{Category: CategoryDecode, Err: err}
	}

	target := c.baseURL + cmd.Path()
	if q := cmd.Query(); len(q) > 0 {
		target += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, cmd.Method(), target, bytes.NewReader(body))
	if err != nil {
		return nil, &GatewayError{Category: CategoryTransport, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Authorization", c.apiKey)
	for k, vs := range cmd.Headers() {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &GatewayError{Category: CategoryTransport, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &GatewayError{
			Category:   CategoryHTTP,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s", strings.TrimSpace(string(msg))),
		}
	}

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &GatewayError{Category: CategoryDecode, StatusCode: resp.StatusCode, Err: err}
	}
	return out, nil
}
