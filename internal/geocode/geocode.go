// Package geocode wraps the reverse-geocoding collaborator. The intake flow
// treats it as best-effort: a timeout or error falls back to a coordinate
// string and lets the ward classifier work from coordinates alone.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// defaultEndpoint is the Google Maps Geocoding API.
const defaultEndpoint = "https://maps.googleapis.com/maps/api/geocode/json"

// Result is a resolved address, with a ward number when one of the known
// area names appears in the address components.
type Result struct {
	Address string
	Ward    *int
}

// Geocoder resolves coordinates to an address.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lng float64) (Result, error)
}

// wardNames maps area names seen in geocoder address components to wards.
// This mirrors the classifier's table but matches the geocoder's English
// component names.
var wardNames = map[string]int{
	"bhaktinagar":     15,
	"raiya road":      12,
	"kalawad road":    8,
	"university road": 23,
	"nana mava":       18,
	"kothariya":       11,
	"mavdi":           20,
	"kuvadva":         7,
}

// Client is an HTTP reverse-geocoding client.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

// NewClient creates a geocoding client. An empty endpoint uses the Google
// Maps API; timeout bounds every lookup.
func NewClient(endpoint, apiKey string, timeout time.Duration) *Client {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: timeout},
	}
}

// geocodeResponse is the subset of the Maps API response we read.
type geocodeResponse struct {
	Status  string `json:"status"`
	Results []struct {
		FormattedAddress  string `json:"formatted_address"`
		AddressComponents []struct {
			LongName string `json:"long_name"`
		} `json:"address_components"`
	} `json:"results"`
}

// ReverseGeocode resolves lat/lng to a formatted address.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lng float64) (Result, error) {
	q := url.Values{}
	q.Set("latlng", fmt.Sprintf("%f,%f", lat, lng))
	q.Set("key", c.apiKey)
	q.Set("language", "en")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return Result{}, fmt.Errorf("geocode: build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("geocode: request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("geocode: status %d", resp.StatusCode)
	}

	var body geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Result{}, fmt.Errorf("geocode: decode response: %w", err)
	}
	if body.Status != "OK" || len(body.Results) == 0 {
		return Result{}, fmt.Errorf("geocode: no results (status %s)", body.Status)
	}

	first := body.Results[0]
	res := Result{Address: first.FormattedAddress}
	for _, comp := range first.AddressComponents {
		name := strings.ToLower(comp.LongName)
		for area, ward := range wardNames {
			if strings.Contains(name, area) {
				w := ward
				res.Ward = &w
				return res, nil
			}
		}
	}
	return res, nil
}

// CoordinateAddress formats the fallback address used when resolution fails.
func CoordinateAddress(lat, lng float64) string {
	return fmt.Sprintf("%.6f, %.6f", lat, lng)
}
