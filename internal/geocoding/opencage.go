package geocoding

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/UnknownOlympus/meridian/internal/models"
)

// OpenCageURL is the OpenCage geocoding endpoint, shared by forward and reverse lookups.
const OpenCageURL = "https://api.opencagedata.com/geocode/v1/json"

// OpenCageProvider implements geocoding using the OpenCage API.
type OpenCageProvider struct {
	fetcher         JSONFetcher
	serviceURL      string
	apiKey          string
	geocodingParams map[string]string
	reverseParams   map[string]string
	log             *slog.Logger
}

// OpenCageOptions configures an OpenCageProvider.
type OpenCageOptions struct {
	ServiceURL      string
	GeocodingParams map[string]string
	ReverseParams   map[string]string
}

type openCageLatLng struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

func (c *openCageLatLng) valid() bool {
	return c != nil && c.Lat != nil && c.Lng != nil
}

func (c *openCageLatLng) latLng() models.LatLng {
	return models.LatLng{Lat: *c.Lat, Lng: *c.Lng}
}

type openCageResult struct {
	Formatted   string          `json:"formatted"`
	Geometry    *openCageLatLng `json:"geometry"`
	Annotations struct {
		Bounds *struct {
			NorthEast *openCageLatLng `json:"northeast"`
			SouthWest *openCageLatLng `json:"southwest"`
		} `json:"bounds"`
	} `json:"annotations"`
}

type openCageResponse struct {
	Results []json.RawMessage `json:"results"`
}

// NewOpenCageProvider creates a new OpenCage geocoding provider.
func NewOpenCageProvider(fetcher JSONFetcher, apiKey string, opts OpenCageOptions, log *slog.Logger) *OpenCageProvider {
	if opts.ServiceURL == "" {
		opts.ServiceURL = OpenCageURL
	}

	return &OpenCageProvider{
		fetcher:         fetcher,
		serviceURL:      opts.ServiceURL,
		apiKey:          apiKey,
		geocodingParams: opts.GeocodingParams,
		reverseParams:   opts.ReverseParams,
		log:             log,
	}
}

// Geocode looks up a free-text query.
func (op *OpenCageProvider) Geocode(ctx context.Context, query string) ([]models.Result, error) {
	op.log.DebugContext(ctx, "Geocoding using OpenCage", "query", query)

	params := mergeParams(url.Values{"key": {op.apiKey}, "q": {query}}, op.geocodingParams)

	return op.fetch(ctx, params)
}

// Reverse looks up a point; OpenCage takes it as a literal "lat,lng" query.
func (op *OpenCageProvider) Reverse(ctx context.Context, point models.LatLng) ([]models.Result, error) {
	op.log.DebugContext(ctx, "Reverse geocoding using OpenCage", "lat", point.Lat, "lng", point.Lng)

	params := mergeParams(url.Values{"key": {op.apiKey}, "q": {joinLatLng(point)}}, op.reverseParams)

	return op.fetch(ctx, params)
}

func (op *OpenCageProvider) fetch(ctx context.Context, params url.Values) ([]models.Result, error) {
	var resp openCageResponse
	if err := op.fetcher.GetJSON(ctx, op.serviceURL, params, &resp); err != nil {
		return nil, fmt.Errorf("opencage request failed: %w", err)
	}

	return op.parse(ctx, resp), nil
}

func (op *OpenCageProvider) parse(ctx context.Context, resp openCageResponse) []models.Result {
	results := make([]models.Result, 0, len(resp.Results))

	for idx, raw := range resp.Results {
		var item openCageResult
		var properties map[string]any
		if err := json.Unmarshal(raw, &item); err != nil {
			op.log.DebugContext(ctx, "Skipping malformed OpenCage result", "index", idx, "error", err)
			continue
		}
		if err := json.Unmarshal(raw, &properties); err != nil {
			op.log.DebugContext(ctx, "Skipping malformed OpenCage result", "index", idx, "error", err)
			continue
		}
		if !item.Geometry.valid() {
			op.log.DebugContext(ctx, "Skipping OpenCage result without geometry", "index", idx)
			continue
		}

		center := item.Geometry.latLng()
		bbox := models.PointBounds(center)
		if b := item.Annotations.Bounds; b != nil && b.NorthEast.valid() && b.SouthWest.valid() {
			bbox = models.NewBounds(b.NorthEast.latLng(), b.SouthWest.latLng())
		}

		results = append(results, models.NewResult(item.Formatted, center, bbox, properties))
	}

	return results
}
