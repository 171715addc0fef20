package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestReverseGeocode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("latlng"); got == "" {
			t.Errorf("missing latlng param")
		}
		w.Write([]byte(`{
			"status": "OK",
			"results": [{
				"formatted_address": "School Road, Bhaktinagar, Rajkot, Gujarat",
				"address_components": [
					{"long_name": "School Road"},
					{"long_name": "Bhaktinagar"},
					{"long_name": "Rajkot"}
				]
			}]
		}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", time.Second)
	res, err := c.ReverseGeocode(context.Background(), 22.30, 70.785)
	if err != nil {
		t.Fatalf("reverse geocode: %v", err)
	}
	if res.Address != "School Road, Bhaktinagar, Rajkot, Gujarat" {
		t.Errorf("address = %q", res.Address)
	}
	if res.Ward == nil || *res.Ward != 15 {
		t.Errorf("ward = %v, want 15", res.Ward)
	}
}

func TestReverseGeocode_NoWardMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"OK","results":[{"formatted_address":"Somewhere","address_components":[{"long_name":"Somewhere"}]}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", time.Second)
	res, err := c.ReverseGeocode(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("reverse geocode: %v", err)
	}
	if res.Ward != nil {
		t.Errorf("ward = %v, want nil", res.Ward)
	}
}

func TestReverseGeocode_ZeroResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ZERO_RESULTS","results":[]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", time.Second)
	if _, err := c.ReverseGeocode(context.Background(), 0, 0); err == nil {
		t.Fatal("expected error for zero results")
	}
}

func TestReverseGeocode_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", 20*time.Millisecond)
	if _, err := c.ReverseGeocode(context.Background(), 0, 0); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestCoordinateAddress(t *testing.T) {
	if got := CoordinateAddress(22.3, 70.785); got != "22.300000, 70.785000" {
		t.Errorf("CoordinateAddress = %q", got)
	}
}
