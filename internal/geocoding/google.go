package geocoding

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/UnknownOlympus/meridian/internal/models"
	"googlemaps.github.io/maps"
)

// GoogleProvider is a struct that holds the client for Google Maps API
// and a logger for logging purposes. It is used to interact with the
// Google Maps geocoding services.
type GoogleProvider struct {
	client          GoogleAPIClient   // client is the Google Maps API client
	geocodingParams map[string]string // geocodingParams are passed through as custom request parameters
	reverseParams   map[string]string // reverseParams are passed through as custom request parameters
	log             *slog.Logger      // log is the logger for logging operations
}

type GoogleAPIClient interface {
	Geocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error)
	ReverseGeocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error)
}

// NewGoogleProvider initializes a new GoogleProvider with the given Google Maps client and logger.
func NewGoogleProvider(client GoogleAPIClient, log *slog.Logger) *GoogleProvider {
	return &GoogleProvider{client: client, log: log}
}

// Geocode takes a context and an address string as input, and returns the candidate places
// for it using the Google Maps Geocoding API. A response with no results is not an error.
func (gp *GoogleProvider) Geocode(ctx context.Context, address string) ([]models.Result, error) {
	gp.log.DebugContext(ctx, "Geocoding using Google Maps", "address", address)

	req := maps.GeocodingRequest{Address: address, Custom: customParams(gp.geocodingParams)}
	geocodeResponse, err := gp.client.Geocode(ctx, &req)
	if err != nil {
		return nil, fmt.Errorf("failed to geocode address: %w", err)
	}

	return googleResults(geocodeResponse), nil
}

// Reverse returns the candidate places at a point using the Google Maps Geocoding API.
func (gp *GoogleProvider) Reverse(ctx context.Context, point models.LatLng) ([]models.Result, error) {
	gp.log.DebugContext(ctx, "Reverse geocoding using Google Maps", "lat", point.Lat, "lng", point.Lng)

	req := maps.GeocodingRequest{
		LatLng: &maps.LatLng{Lat: point.Lat, Lng: point.Lng},
		Custom: customParams(gp.reverseParams),
	}
	geocodeResponse, err := gp.client.ReverseGeocode(ctx, &req)
	if err != nil {
		return nil, fmt.Errorf("failed to reverse geocode point: %w", err)
	}

	return googleResults(geocodeResponse), nil
}

func customParams(extra map[string]string) url.Values {
	if len(extra) == 0 {
		return nil
	}

	return mergeParams(nil, extra)
}

func googleResults(response []maps.GeocodingResult) []models.Result {
	results := make([]models.Result, 0, len(response))
	for _, item := range response {
		geometry := item.Geometry
		center := models.LatLng{Lat: geometry.Location.Lat, Lng: geometry.Location.Lng}

		bbox := models.PointBounds(center)
		if viewport := geometry.Viewport; viewport != (maps.LatLngBounds{}) {
			bbox = models.NewBounds(
				models.LatLng{Lat: viewport.NorthEast.Lat, Lng: viewport.NorthEast.Lng},
				models.LatLng{Lat: viewport.SouthWest.Lat, Lng: viewport.SouthWest.Lng},
			)
		}

		properties := map[string]any{
			"place_id":           item.PlaceID,
			"types":              item.Types,
			"location_type":      geometry.LocationType,
			"address_components": item.AddressComponents,
		}
		results = append(results, models.NewResult(item.FormattedAddress, center, bbox, properties))
	}

	return results
}
