package client

// http_client.go = handles the read-only status API for robotctl.

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"robotbridge/internal/microservices/http-api/dto"
)

// defines the HTTP client structure and methods
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// constructor for HTTP client
func NewHTTPClient(apiURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: apiURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *HTTPClient) Health() (*dto.HealthResponse, error) {
	var result dto.HealthResponse
	if err := c.get("/health", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *HTTPClient) Sessions() (*dto.SessionsResponse, error) {
	var result dto.SessionsResponse
	if err := c.get("/api/sessions", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *HTTPClient) Queue() (*dto.QueueResponse, error) {
	var result dto.QueueResponse
	if err := c.get("/api/queue", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Commands lists journal records, newest first. limit <= 0 uses the server default.
func (c *HTTPClient) Commands(limit int) (*dto.CommandsResponse, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var result dto.CommandsResponse
	if err := c.get("/api/commands", query, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *HTTPClient) get(path string, query url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	resp, err := c.httpClient.Get(endpoint)
	if err != nil {
		return err
	}
	defer resp.Body.Close() // Ensure the response body is closed

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request %s failed with status: %s", path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
