package geocoding

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/UnknownOlympus/meridian/internal/models"
)

// What3WordsURL is the What3Words v2 API base URL.
const What3WordsURL = "https://api.what3words.com/v2/"

// What3WordsProvider implements lookups of three-word addresses using the What3Words API.
type What3WordsProvider struct {
	fetcher         JSONFetcher
	serviceURL      string
	apiKey          string
	geocodingParams map[string]string
	reverseParams   map[string]string
	log             *slog.Logger
}

// What3WordsOptions configures a What3WordsProvider. An empty ServiceURL uses What3WordsURL.
type What3WordsOptions struct {
	ServiceURL      string
	GeocodingParams map[string]string
	ReverseParams   map[string]string
}

type what3WordsResponse struct {
	Words    string `json:"words"`
	Geometry *struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	} `json:"geometry"`
	Status struct {
		Status int `json:"status"`
	} `json:"status"`
	Language string `json:"language"`
	Map      string `json:"map"`
}

// NewWhat3WordsProvider creates a new What3Words provider.
func NewWhat3WordsProvider(
	fetcher JSONFetcher,
	apiKey string,
	opts What3WordsOptions,
	log *slog.Logger,
) *What3WordsProvider {
	if opts.ServiceURL == "" {
		opts.ServiceURL = What3WordsURL
	}

	return &What3WordsProvider{
		fetcher:         fetcher,
		serviceURL:      opts.ServiceURL,
		apiKey:          apiKey,
		geocodingParams: opts.GeocodingParams,
		reverseParams:   opts.ReverseParams,
		log:             log,
	}
}

// Geocode resolves a three-word address. Words may be separated by any whitespace;
// they are sent dot-joined ("table chair lamp" becomes "table.chair.lamp").
func (wp *What3WordsProvider) Geocode(ctx context.Context, query string) ([]models.Result, error) {
	addr := strings.Join(strings.Fields(query), ".")
	wp.log.DebugContext(ctx, "Geocoding using What3Words", "addr", addr)

	var resp what3WordsResponse
	params := mergeParams(url.Values{"key": {wp.apiKey}, "addr": {addr}}, wp.geocodingParams)
	if err := wp.fetcher.GetJSON(ctx, wp.serviceURL+"forward", params, &resp); err != nil {
		return nil, fmt.Errorf("what3words request failed: %w", err)
	}

	return resp.results(), nil
}

// Reverse finds the three-word address of a point. Only a payload with status 200 yields a result.
func (wp *What3WordsProvider) Reverse(ctx context.Context, point models.LatLng) ([]models.Result, error) {
	wp.log.DebugContext(ctx, "Reverse geocoding using What3Words", "lat", point.Lat, "lng", point.Lng)

	var resp what3WordsResponse
	params := mergeParams(url.Values{"key": {wp.apiKey}, "coords": {joinLatLng(point)}}, wp.reverseParams)
	if err := wp.fetcher.GetJSON(ctx, wp.serviceURL+"reverse", params, &resp); err != nil {
		return nil, fmt.Errorf("what3words request failed: %w", err)
	}

	if resp.Status.Status != http.StatusOK {
		wp.log.DebugContext(ctx, "What3Words reverse returned non-success status", "status", resp.Status.Status)
		return []models.Result{}, nil
	}

	return resp.results(), nil
}

// results builds at most one result; What3Words squares have no extent so bbox is degenerate.
func (r what3WordsResponse) results() []models.Result {
	if r.Geometry == nil {
		return []models.Result{}
	}

	center := models.LatLng{Lat: r.Geometry.Lat, Lng: r.Geometry.Lng}
	properties := map[string]any{"words": r.Words}
	if r.Language != "" {
		properties["language"] = r.Language
	}
	if r.Map != "" {
		properties["map"] = r.Map
	}

	return []models.Result{models.NewResult(r.Words, center, models.PointBounds(center), properties)}
}
