package geocoding

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/UnknownOlympus/meridian/internal/models"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// PeliasVariant describes one deployment of the Pelias API.
// The variants differ only by data, never by parsing rules.
type PeliasVariant struct {
	Name    string // Name is used for logging.
	BaseURL string // BaseURL is the prefix for /search, /autocomplete and /reverse.
}

// Known Pelias deployments.
var (
	GeocodeEarth     = PeliasVariant{Name: "geocodeearth", BaseURL: "https://api.geocode.earth/v1"}
	Mapzen           = PeliasVariant{Name: "mapzen", BaseURL: GeocodeEarth.BaseURL}
	Openrouteservice = PeliasVariant{Name: "openrouteservice", BaseURL: "https://api.openrouteservice.org/geocode"}
)

// PeliasProvider implements geocoding and typeahead using a Pelias API.
//
// lastSuggest is the only mutable state held across calls: the highest suggestion
// timestamp delivered so far. suggestMu guards it and is held while a suggestion is delivered.
type PeliasProvider struct {
	fetcher         JSONFetcher
	variant         PeliasVariant
	apiKey          string
	geocodingParams map[string]string
	reverseParams   map[string]string
	suggestMu       sync.Mutex
	lastSuggest     int64
	log             *slog.Logger
}

// PeliasOptions configures a PeliasProvider. An empty BaseURL keeps the variant's default.
type PeliasOptions struct {
	BaseURL         string
	GeocodingParams map[string]string
	ReverseParams   map[string]string
}

// peliasResponse is a GeoJSON feature collection with the Pelias "geocoding" header.
type peliasResponse struct {
	Geocoding struct {
		Timestamp float64 `json:"timestamp"`
	} `json:"geocoding"`
	Features []json.RawMessage `json:"features"`
}

// NewPeliasProvider creates a new provider for the given Pelias variant.
func NewPeliasProvider(
	fetcher JSONFetcher,
	variant PeliasVariant,
	apiKey string,
	opts PeliasOptions,
	log *slog.Logger,
) *PeliasProvider {
	if opts.BaseURL != "" {
		variant.BaseURL = opts.BaseURL
	}

	return &PeliasProvider{
		fetcher:         fetcher,
		variant:         variant,
		apiKey:          apiKey,
		geocodingParams: opts.GeocodingParams,
		reverseParams:   opts.ReverseParams,
		log:             log,
	}
}

// Geocode searches with the /search endpoint.
func (pp *PeliasProvider) Geocode(ctx context.Context, query string) ([]models.Result, error) {
	pp.log.DebugContext(ctx, "Geocoding using Pelias", "variant", pp.variant.Name, "query", query)

	resp, err := pp.fetch(ctx, "/search", pp.textParams(query))
	if err != nil {
		return nil, err
	}

	return pp.parse(ctx, resp, false), nil
}

// Suggest searches with the /autocomplete endpoint. A response whose timestamp is not strictly
// greater than the newest one already delivered is discarded with ErrStaleResponse.
func (pp *PeliasProvider) Suggest(ctx context.Context, query string) ([]models.Result, error) {
	var delivered []models.Result
	err := pp.SuggestOrdered(ctx, query, func(results []models.Result) {
		delivered = results
	})
	if err != nil {
		return nil, err
	}

	return delivered, nil
}

// SuggestOrdered searches with the /autocomplete endpoint and hands the results to deliver.
// The response is parsed first; comparing its timestamp, advancing the high-water mark and
// calling deliver then happen under one lock, so a newer suggestion is never followed by an
// older one. deliver must not call back into this provider synchronously.
func (pp *PeliasProvider) SuggestOrdered(ctx context.Context, query string, deliver func([]models.Result)) error {
	pp.log.DebugContext(ctx, "Suggesting using Pelias", "variant", pp.variant.Name, "query", query)

	resp, err := pp.fetch(ctx, "/autocomplete", pp.textParams(query))
	if err != nil {
		return err
	}

	ts := int64(resp.Geocoding.Timestamp)
	results := pp.parse(ctx, resp, false)

	pp.suggestMu.Lock()
	defer pp.suggestMu.Unlock()

	if ts <= pp.lastSuggest {
		pp.log.DebugContext(ctx, "Discarding stale Pelias suggestion",
			"query", query,
			"timestamp", ts,
			"latest", pp.lastSuggest)
		return ErrStaleResponse
	}
	pp.lastSuggest = ts
	deliver(results)

	return nil
}

// Reverse looks up a point with the /reverse endpoint. Results carry the region under Bounds as well.
func (pp *PeliasProvider) Reverse(ctx context.Context, point models.LatLng) ([]models.Result, error) {
	pp.log.DebugContext(ctx, "Reverse geocoding using Pelias", "variant", pp.variant.Name,
		"lat", point.Lat, "lng", point.Lng)

	params := mergeParams(url.Values{
		"api_key":   {pp.apiKey},
		"point.lat": {formatCoord(point.Lat)},
		"point.lon": {formatCoord(point.Lng)},
	}, pp.reverseParams)

	resp, err := pp.fetch(ctx, "/reverse", params)
	if err != nil {
		return nil, err
	}

	return pp.parse(ctx, resp, true), nil
}

func (pp *PeliasProvider) textParams(query string) url.Values {
	return mergeParams(url.Values{"api_key": {pp.apiKey}, "text": {query}}, pp.geocodingParams)
}

func (pp *PeliasProvider) fetch(ctx context.Context, path string, params url.Values) (peliasResponse, error) {
	var resp peliasResponse
	if err := pp.fetcher.GetJSON(ctx, pp.variant.BaseURL+path, params, &resp); err != nil {
		return resp, fmt.Errorf("%s request failed: %w", pp.variant.Name, err)
	}

	return resp, nil
}

func (pp *PeliasProvider) parse(ctx context.Context, resp peliasResponse, asBounds bool) []models.Result {
	features := decodeFeatures(ctx, pp.log, resp.Features)
	results := make([]models.Result, 0, len(features))

	for _, feature := range features {
		center, bbox := peliasExtent(feature)
		res := models.NewResult(stringProperty(feature.Properties, "label"), center, bbox, feature.Properties)
		if asBounds {
			bounds := res.BBox
			res.Bounds = &bounds
		}
		results = append(results, res)
	}

	return results
}

// peliasExtent derives the centre and region of a feature:
// a non-point geometry provides its own bound and the bound's centre,
// a point with a [minLon, minLat, maxLon, maxLat] bbox uses that bbox,
// and a bare point degenerates to itself.
func peliasExtent(feature *geojson.Feature) (models.LatLng, models.Bounds) {
	point, isPoint := feature.Geometry.(orb.Point)
	if !isPoint {
		bbox := boundToBounds(feature.Geometry.Bound())
		return bbox.Center(), bbox
	}

	center := pointLatLng(point)
	const bboxLength = 4
	if len(feature.BBox) == bboxLength {
		return center, models.NewBounds(
			models.LatLng{Lat: feature.BBox[1], Lng: feature.BBox[0]},
			models.LatLng{Lat: feature.BBox[3], Lng: feature.BBox[2]},
		)
	}

	return center, models.PointBounds(center)
}
