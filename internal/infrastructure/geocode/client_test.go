package geocode

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGeocodeResolvesAddress(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("components"); got != "country:SG" {
			t.Errorf("unexpected components filter: %s", got)
		}
		fmt.Fprint(w, `{
			"status": "OK",
			"results": [{
				"formatted_address": "1 Marina Boulevard, Singapore 018989",
				"geometry": {"location": {"lat": 1.2806, "lng": 103.8541}}
			}]
		}`)
	}))
	defer server.Close()

	c := NewClient(server.URL, "test-key", "SG", server.Client())

	formatted, point, err := c.Geocode(context.Background(), "1 Marina Boulevard")
	if err != nil {
		t.Fatalf("Geocode error: %v", err)
	}
	if formatted != "1 Marina Boulevard, Singapore 018989" {
		t.Fatalf("unexpected formatted address: %s", formatted)
	}
	if point.Lat != 1.2806 || point.Lng != 103.8541 {
		t.Fatalf("unexpected point: %+v", point)
	}
}

func TestGeocodeMissIsNotFound(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status": "ZERO_RESULTS", "results": []}`)
	}))
	defer server.Close()

	c := NewClient(server.URL, "test-key", "SG", server.Client())

	_, _, err := c.Geocode(context.Background(), "nowhere at all")
	if !errors.Is(err, ErrLocationNotFound) {
		t.Fatalf("expected ErrLocationNotFound, got %v", err)
	}
}
