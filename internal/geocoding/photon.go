package geocoding

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/url"
	"strings"

	"github.com/UnknownOlympus/meridian/internal/models"
	"github.com/paulmach/orb/geojson"
)

// Default Photon endpoints.
const (
	PhotonURL        = "https://photon.komoot.io/api/"
	PhotonReverseURL = "https://photon.komoot.io/reverse/"
)

// DefaultPhotonNameProperties is the priority order used to compose a result name.
var DefaultPhotonNameProperties = []string{"name", "street", "suburb", "hamlet", "town", "city", "state", "country"}

// HTMLTemplate renders a pre-formatted label for a raw feature.
type HTMLTemplate func(feature *geojson.Feature) string

// ParseHTMLTemplate compiles an html/template source into an HTMLTemplate.
// The template is executed against the raw feature, so ".Properties.name" and
// ".Geometry" are available. A feature the template fails on renders as "".
func ParseHTMLTemplate(text string) (HTMLTemplate, error) {
	tmpl, err := template.New("photon").Option("missingkey=zero").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html template: %w", err)
	}

	return func(feature *geojson.Feature) string {
		var buf strings.Builder
		if err := tmpl.Execute(&buf, feature); err != nil {
			return ""
		}
		return buf.String()
	}, nil
}

// PhotonProvider implements geocoding using the Photon API.
type PhotonProvider struct {
	fetcher         JSONFetcher
	serviceURL      string
	reverseURL      string
	nameProperties  []string
	htmlTemplate    HTMLTemplate
	geocodingParams map[string]string
	reverseParams   map[string]string
	log             *slog.Logger
}

// PhotonOptions configures a PhotonProvider. An empty NameProperties uses DefaultPhotonNameProperties.
type PhotonOptions struct {
	ServiceURL      string
	ReverseURL      string
	NameProperties  []string
	HTMLTemplate    HTMLTemplate
	GeocodingParams map[string]string
	ReverseParams   map[string]string
}

type photonResponse struct {
	Features []json.RawMessage `json:"features"`
}

// NewPhotonProvider creates a new Photon geocoding provider.
func NewPhotonProvider(fetcher JSONFetcher, opts PhotonOptions, log *slog.Logger) *PhotonProvider {
	if opts.ServiceURL == "" {
		opts.ServiceURL = PhotonURL
	}
	if opts.ReverseURL == "" {
		opts.ReverseURL = PhotonReverseURL
	}
	if len(opts.NameProperties) == 0 {
		opts.NameProperties = DefaultPhotonNameProperties
	}

	return &PhotonProvider{
		fetcher:         fetcher,
		serviceURL:      opts.ServiceURL,
		reverseURL:      opts.ReverseURL,
		nameProperties:  opts.NameProperties,
		htmlTemplate:    opts.HTMLTemplate,
		geocodingParams: opts.GeocodingParams,
		reverseParams:   opts.ReverseParams,
		log:             log,
	}
}

// Geocode looks up a free-text query.
func (pp *PhotonProvider) Geocode(ctx context.Context, query string) ([]models.Result, error) {
	pp.log.DebugContext(ctx, "Geocoding using Photon", "query", query)

	return pp.fetch(ctx, pp.serviceURL, mergeParams(url.Values{"q": {query}}, pp.geocodingParams))
}

// Reverse looks up a point.
func (pp *PhotonProvider) Reverse(ctx context.Context, point models.LatLng) ([]models.Result, error) {
	pp.log.DebugContext(ctx, "Reverse geocoding using Photon", "lat", point.Lat, "lng", point.Lng)

	params := mergeParams(url.Values{
		"lat": {formatCoord(point.Lat)},
		"lon": {formatCoord(point.Lng)},
	}, pp.reverseParams)

	return pp.fetch(ctx, pp.reverseURL, params)
}

func (pp *PhotonProvider) fetch(ctx context.Context, endpoint string, params url.Values) ([]models.Result, error) {
	var resp photonResponse
	if err := pp.fetcher.GetJSON(ctx, endpoint, params, &resp); err != nil {
		return nil, fmt.Errorf("photon request failed: %w", err)
	}

	features := decodeFeatures(ctx, pp.log, resp.Features)
	results := make([]models.Result, 0, len(features))
	for _, feature := range features {
		results = append(results, pp.decodeFeature(feature))
	}

	return results, nil
}

func (pp *PhotonProvider) decodeFeature(feature *geojson.Feature) models.Result {
	center := feature.Geometry.Bound().Center()
	bbox := models.PointBounds(pointLatLng(center))
	if extent, ok := photonExtent(feature.Properties); ok {
		bbox = extent
	}

	res := models.NewResult(pp.featureName(feature.Properties), pointLatLng(center), bbox, feature.Properties)
	if pp.htmlTemplate != nil {
		res.HTML = pp.htmlTemplate(feature)
	}

	return res
}

// featureName joins the configured properties that are present and truthy, in configured order.
func (pp *PhotonProvider) featureName(props geojson.Properties) string {
	parts := make([]string, 0, len(pp.nameProperties))
	for _, key := range pp.nameProperties {
		if v, ok := truthy(props[key]); ok {
			parts = append(parts, v)
		}
	}

	return strings.Join(parts, ", ")
}

// photonExtent reads the extent property, ordered [minLon, maxLat, maxLon, minLat].
func photonExtent(props geojson.Properties) (models.Bounds, bool) {
	raw, ok := props["extent"].([]any)
	const extentLength = 4
	if !ok || len(raw) != extentLength {
		return models.Bounds{}, false
	}

	coords := make([]float64, extentLength)
	for i, v := range raw {
		f, isNumber := v.(float64)
		if !isNumber {
			return models.Bounds{}, false
		}
		coords[i] = f
	}

	return models.NewBounds(
		models.LatLng{Lat: coords[1], Lng: coords[0]},
		models.LatLng{Lat: coords[3], Lng: coords[2]},
	), true
}

// truthy renders a property value, reporting false for missing, empty, zero or false values.
func truthy(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		return val, val != ""
	case bool:
		return "true", val
	case float64:
		return formatCoord(val), val != 0
	default:
		return fmt.Sprint(val), true
	}
}
