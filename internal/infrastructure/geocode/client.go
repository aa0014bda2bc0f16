package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"rentwise/internal/domain"
	"rentwise/internal/ports"
)

// ErrLocationNotFound marks a geocoding miss, distinct from transport
// failures so callers can answer with a client error instead of a 500.
var ErrLocationNotFound = errors.New("could not resolve location")

// Client resolves free-text addresses via a Google-style geocode API.
type Client struct {
	endpoint   string
	apiKey     string
	country    string
	httpClient *http.Client
}

var _ ports.Geocoder = (*Client)(nil)

// NewClient builds a geocoding client; country biases results.
func NewClient(endpoint, apiKey, country string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		endpoint:   endpoint,
		apiKey:     apiKey,
		country:    country,
		httpClient: httpClient,
	}
}

type geocodeResponse struct {
	Status  string `json:"status"`
	Results []struct {
		FormattedAddress string `json:"formatted_address"`
		Geometry         struct {
			Location domain.GeoPoint `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// Geocode resolves an address or postal code to a formatted address and
// point. A miss returns ErrLocationNotFound.
func (c *Client) Geocode(ctx context.Context, address string) (string, domain.GeoPoint, error) {
	if c.apiKey == "" {
		return "", domain.GeoPoint{}, fmt.Errorf("geocoder api key not configured")
	}

	query := url.Values{}
	query.Set("address", address)
	if c.country != "" {
		query.Set("components", "country:"+c.country)
	}
	query.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return "", domain.GeoPoint{}, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", domain.GeoPoint{}, fmt.Errorf("geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", domain.GeoPoint{}, fmt.Errorf("geocoder returned %s", resp.Status)
	}

	var body geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", domain.GeoPoint{}, fmt.Errorf("decode geocode response: %w", err)
	}

	if body.Status != "OK" || len(body.Results) == 0 {
		return "", domain.GeoPoint{}, fmt.Errorf("%w: %s", ErrLocationNotFound, address)
	}

	first := body.Results[0]
	return first.FormattedAddress, first.Geometry.Location, nil
}
