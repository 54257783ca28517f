package geocoding

import (
	"context"
	"errors"
	"net/url"
	"strconv"

	"github.com/UnknownOlympus/meridian/internal/models"
)

// Provider is an interface that defines forward and reverse geocoding.
// Geocode turns a free-text query into candidate places, Reverse turns a point into candidate places.
// Both return the candidates in the order the vendor returned them; a query with no
// matches yields an empty slice and a nil error.
type Provider interface {
	Geocode(ctx context.Context, query string) ([]models.Result, error)
	Reverse(ctx context.Context, point models.LatLng) ([]models.Result, error)
}

// Suggester is implemented by providers that have a dedicated typeahead endpoint.
type Suggester interface {
	Suggest(ctx context.Context, query string) ([]models.Result, error)
}

// OrderedSuggester is implemented by providers whose suggestions must be delivered in response order.
// deliver is called at most once, only when the returned error is nil.
type OrderedSuggester interface {
	SuggestOrdered(ctx context.Context, query string, deliver func([]models.Result)) error
}

// JSONFetcher performs a GET request with query parameters and decodes the JSON body into v.
type JSONFetcher interface {
	GetJSON(ctx context.Context, endpoint string, params url.Values, v any) error
}

// ErrStaleResponse is returned by Suggest when a response arrived after a newer one was already delivered.
var ErrStaleResponse = errors.New("stale suggestion response discarded")

// Suggest runs a typeahead lookup, falling back to Geocode when p has no suggestion endpoint.
func Suggest(ctx context.Context, p Provider, query string) ([]models.Result, error) {
	if s, ok := p.(Suggester); ok {
		return s.Suggest(ctx, query)
	}

	return p.Geocode(ctx, query)
}

// SuggestTo runs a typeahead lookup and passes the results to deliver. Providers implementing
// OrderedSuggester deliver inside their ordering guard; for the others deliver runs after Suggest returns.
// deliver is not called when an error is returned.
func SuggestTo(ctx context.Context, p Provider, query string, deliver func([]models.Result)) error {
	if s, ok := p.(OrderedSuggester); ok {
		return s.SuggestOrdered(ctx, query, deliver)
	}

	results, err := Suggest(ctx, p, query)
	if err != nil {
		return err
	}
	deliver(results)

	return nil
}

// mergeParams copies base and overlays extra on top of it. Keys in extra win on conflict
// and keys unknown to the provider are sent verbatim.
func mergeParams(base url.Values, extra map[string]string) url.Values {
	params := make(url.Values, len(base)+len(extra))
	for key, values := range base {
		params[key] = values
	}
	for key, value := range extra {
		params.Set(key, value)
	}

	return params
}

// formatCoord renders a coordinate without trailing zeros or exponent notation.
func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// joinLatLng renders a point as "lat,lng".
func joinLatLng(p models.LatLng) string {
	return formatCoord(p.Lat) + "," + formatCoord(p.Lng)
}
