package geocoding

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/UnknownOlympus/meridian/internal/models"
)

// Default HERE endpoints.
const (
	HereGeocodeURL = "https://geocoder.api.here.com/6.2/geocode.json"
	HereReverseURL = "https://reverse.geocoder.api.here.com/6.2/reversegeocode.json"
)

// hereGeneration pins the response format version of the HERE Geocoder API.
const hereGeneration = "9"

// HereProvider implements geocoding using the HERE Geocoder API.
type HereProvider struct {
	fetcher         JSONFetcher       // fetcher performs the HTTP calls
	geocodeURL      string            // geocodeURL is the forward geocoding endpoint
	reverseURL      string            // reverseURL is the reverse geocoding endpoint
	appID           string            // appID is the HERE application id
	appCode         string            // appCode is the HERE application code
	geocodingParams map[string]string // geocodingParams are merged into every forward request
	reverseParams   map[string]string // reverseParams are merged into every reverse request
	proxRadius      float64           // proxRadius is appended to prox when positive
	log             *slog.Logger      // log is the logger for logging operations
}

// HereOptions configures a HereProvider. Empty URLs fall back to the public endpoints.
type HereOptions struct {
	GeocodeURL      string
	ReverseURL      string
	AppID           string
	AppCode         string
	GeocodingParams map[string]string
	ReverseParams   map[string]string
	ProxRadius      float64
}

type hereCoordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (c hereCoordinate) latLng() models.LatLng {
	return models.LatLng{Lat: c.Latitude, Lng: c.Longitude}
}

// hereResponse represents the JSON response from the HERE API (jsonattributes=1).
type hereResponse struct {
	Response struct {
		View []struct {
			Result []struct {
				Location struct {
					DisplayPosition *hereCoordinate `json:"displayPosition"`
					MapView         struct {
						TopLeft     *hereCoordinate `json:"topLeft"`
						BottomRight *hereCoordinate `json:"bottomRight"`
					} `json:"mapView"`
					Address map[string]any `json:"address"`
				} `json:"location"`
			} `json:"result"`
		} `json:"view"`
	} `json:"response"`
}

// NewHereProvider creates a new HERE geocoding provider.
func NewHereProvider(fetcher JSONFetcher, opts HereOptions, log *slog.Logger) *HereProvider {
	if opts.GeocodeURL == "" {
		opts.GeocodeURL = HereGeocodeURL
	}
	if opts.ReverseURL == "" {
		opts.ReverseURL = HereReverseURL
	}

	return &HereProvider{
		fetcher:         fetcher,
		geocodeURL:      opts.GeocodeURL,
		reverseURL:      opts.ReverseURL,
		appID:           opts.AppID,
		appCode:         opts.AppCode,
		geocodingParams: opts.GeocodingParams,
		reverseParams:   opts.ReverseParams,
		proxRadius:      opts.ProxRadius,
		log:             log,
	}
}

// Geocode looks up a free-text query with the HERE geocode endpoint.
func (hp *HereProvider) Geocode(ctx context.Context, query string) ([]models.Result, error) {
	hp.log.DebugContext(ctx, "Geocoding using HERE", "query", query)

	params := mergeParams(url.Values{
		"searchtext":     {query},
		"gen":            {hereGeneration},
		"app_id":         {hp.appID},
		"app_code":       {hp.appCode},
		"jsonattributes": {"1"},
	}, hp.geocodingParams)

	return hp.fetch(ctx, hp.geocodeURL, params)
}

// Reverse looks up the addresses around a point. When a proximity radius is configured it is
// sent as the third element of prox, otherwise prox carries only the coordinates.
func (hp *HereProvider) Reverse(ctx context.Context, point models.LatLng) ([]models.Result, error) {
	hp.log.DebugContext(ctx, "Reverse geocoding using HERE", "lat", point.Lat, "lng", point.Lng)

	prox := joinLatLng(point)
	if hp.proxRadius > 0 {
		prox += "," + formatCoord(hp.proxRadius)
	}

	params := mergeParams(url.Values{
		"prox":           {prox},
		"mode":           {"retrieveAddresses"},
		"app_id":         {hp.appID},
		"app_code":       {hp.appCode},
		"gen":            {hereGeneration},
		"jsonattributes": {"1"},
	}, hp.reverseParams)

	return hp.fetch(ctx, hp.reverseURL, params)
}

func (hp *HereProvider) fetch(ctx context.Context, endpoint string, params url.Values) ([]models.Result, error) {
	var resp hereResponse
	if err := hp.fetcher.GetJSON(ctx, endpoint, params, &resp); err != nil {
		return nil, fmt.Errorf("here request failed: %w", err)
	}

	return parseHereResponse(resp), nil
}

// parseHereResponse maps response.view[0].result[*] into results.
func parseHereResponse(resp hereResponse) []models.Result {
	results := []models.Result{}
	if len(resp.Response.View) == 0 {
		return results
	}

	for _, item := range resp.Response.View[0].Result {
		loc := item.Location
		if loc.DisplayPosition == nil {
			continue
		}

		center := loc.DisplayPosition.latLng()
		bbox := models.PointBounds(center)
		if loc.MapView.TopLeft != nil && loc.MapView.BottomRight != nil {
			bbox = models.NewBounds(loc.MapView.TopLeft.latLng(), loc.MapView.BottomRight.latLng())
		}

		label, _ := loc.Address["label"].(string)
		results = append(results, models.NewResult(label, center, bbox, loc.Address))
	}

	return results
}
