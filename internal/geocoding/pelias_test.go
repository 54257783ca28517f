package geocoding_test

import (
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/UnknownOlympus/meridian/internal/geocoding"
	"github.com/UnknownOlympus/meridian/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const peliasSearchResponse = `{
  "geocoding": {"version": "0.2", "timestamp": 1700000000000},
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "geometry": {"type": "Point", "coordinates": [13.392, 52.5159]},
      "bbox": [13.088, 52.338, 13.761, 52.675],
      "properties": {"label": "Berlin, Germany", "layer": "locality"}
    },
    {
      "type": "Feature",
      "geometry": {"type": "Polygon", "coordinates": [[[10, 40], [12, 40], [12, 44], [10, 44], [10, 40]]]},
      "properties": {"label": "Some Area"}
    },
    {
      "type": "Feature",
      "geometry": {"type": "Point", "coordinates": [-0.1276, 51.5072]},
      "properties": {"label": "London, England"}
    },
    {
      "properties": {"label": "no geometry"}
    }
  ]
}`

func TestPeliasProvider_Geocode(t *testing.T) {
	srv, client := newVendor(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/search", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("api_key"))
		assert.Equal(t, "Berlin", r.URL.Query().Get("text"))
		assert.Equal(t, "5", r.URL.Query().Get("size"))
		writeJSON(w, peliasSearchResponse)
	})

	provider := geocoding.NewPeliasProvider(client, geocoding.GeocodeEarth, "secret", geocoding.PeliasOptions{
		BaseURL:         srv.URL + "/v1",
		GeocodingParams: map[string]string{"size": "5"},
	}, discardLogger())

	results, err := provider.Geocode(t.Context(), "Berlin")

	require.NoError(t, err)
	require.Len(t, results, 3)

	t.Run("point with bbox uses the bbox", func(t *testing.T) {
		berlin := results[0]
		assert.Equal(t, "Berlin, Germany", berlin.Name)
		assert.Equal(t, models.LatLng{Lat: 52.5159, Lng: 13.392}, berlin.Center)
		assert.Equal(t, models.LatLng{Lat: 52.338, Lng: 13.088}, berlin.BBox.SouthWest)
		assert.Equal(t, models.LatLng{Lat: 52.675, Lng: 13.761}, berlin.BBox.NorthEast)
		assert.Equal(t, "locality", berlin.Properties["layer"])
		assert.Nil(t, berlin.Bounds)
	})

	t.Run("polygon uses its own bound and centre", func(t *testing.T) {
		area := results[1]
		assert.Equal(t, models.LatLng{Lat: 40, Lng: 10}, area.BBox.SouthWest)
		assert.Equal(t, models.LatLng{Lat: 44, Lng: 12}, area.BBox.NorthEast)
		assert.Equal(t, models.LatLng{Lat: 42, Lng: 11}, area.Center)
	})

	t.Run("bare point degenerates", func(t *testing.T) {
		london := results[2]
		assert.True(t, london.BBox.IsDegenerate())
		assert.Equal(t, london.Center, london.BBox.SouthWest)
	})

	assertContainsCenter(t, results)
}

func TestPeliasProvider_Reverse(t *testing.T) {
	srv, client := newVendor(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/geocode/reverse", r.URL.Path)
		assert.Equal(t, "52.5159", r.URL.Query().Get("point.lat"))
		assert.Equal(t, "13.392", r.URL.Query().Get("point.lon"))
		assert.Equal(t, "1", r.URL.Query().Get("size"))
		writeJSON(w, peliasSearchResponse)
	})

	provider := geocoding.NewPeliasProvider(client, geocoding.Openrouteservice, "secret", geocoding.PeliasOptions{
		BaseURL:       srv.URL + "/geocode",
		ReverseParams: map[string]string{"size": "1"},
	}, discardLogger())

	results, err := provider.Reverse(t.Context(), models.LatLng{Lat: 52.5159, Lng: 13.392})

	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, res := range results {
		require.NotNil(t, res.Bounds)
		assert.Equal(t, res.BBox, *res.Bounds)
	}
}

// timestampedVendor answers /autocomplete with the timestamp passed as the query text.
func timestampedVendor(t *testing.T) (string, geocoding.JSONFetcher) {
	t.Helper()

	srv, client := newVendor(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/autocomplete", r.URL.Path)
		writeJSON(w, fmt.Sprintf(`{"geocoding":{"timestamp":%s},"features":[{
			"type":"Feature",
			"geometry":{"type":"Point","coordinates":[1,2]},
			"properties":{"label":"ts %s"}}]}`, r.URL.Query().Get("text"), r.URL.Query().Get("text")))
	})

	return srv.URL, client
}

func TestPeliasProvider_Suggest(t *testing.T) {
	ctx := t.Context()

	t.Run("out of order response is discarded", func(t *testing.T) {
		baseURL, client := timestampedVendor(t)
		provider := geocoding.NewPeliasProvider(client, geocoding.GeocodeEarth, "secret",
			geocoding.PeliasOptions{BaseURL: baseURL}, discardLogger())

		results, err := provider.Suggest(ctx, "100")
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "ts 100", results[0].Name)

		results, err = provider.Suggest(ctx, "50")
		require.ErrorIs(t, err, geocoding.ErrStaleResponse)
		assert.Nil(t, results)
	})

	t.Run("equal timestamp is discarded", func(t *testing.T) {
		baseURL, client := timestampedVendor(t)
		provider := geocoding.NewPeliasProvider(client, geocoding.GeocodeEarth, "secret",
			geocoding.PeliasOptions{BaseURL: baseURL}, discardLogger())

		_, err := provider.Suggest(ctx, "100")
		require.NoError(t, err)

		_, err = provider.Suggest(ctx, "100")
		require.ErrorIs(t, err, geocoding.ErrStaleResponse)
	})

	t.Run("increasing timestamps are all delivered", func(t *testing.T) {
		baseURL, client := timestampedVendor(t)
		provider := geocoding.NewPeliasProvider(client, geocoding.GeocodeEarth, "secret",
			geocoding.PeliasOptions{BaseURL: baseURL}, discardLogger())

		for _, ts := range []string{"200", "300"} {
			results, err := provider.Suggest(ctx, ts)
			require.NoError(t, err)
			require.Len(t, results, 1)
			assert.Equal(t, "ts "+ts, results[0].Name)
		}
	})

	t.Run("concurrent completions with one timestamp deliver once", func(t *testing.T) {
		baseURL, client := timestampedVendor(t)
		provider := geocoding.NewPeliasProvider(client, geocoding.GeocodeEarth, "secret",
			geocoding.PeliasOptions{BaseURL: baseURL}, discardLogger())

		const callers = 8
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			delivered int
		)
		for range callers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := provider.Suggest(ctx, "500"); err == nil {
					mu.Lock()
					delivered++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, delivered)
	})

	t.Run("stale ordered suggestion is not delivered", func(t *testing.T) {
		baseURL, client := timestampedVendor(t)
		provider := geocoding.NewPeliasProvider(client, geocoding.GeocodeEarth, "secret",
			geocoding.PeliasOptions{BaseURL: baseURL}, discardLogger())
		var delivered []string
		deliver := func(results []models.Result) {
			delivered = append(delivered, results[0].Name)
		}

		require.NoError(t, provider.SuggestOrdered(ctx, "300", deliver))
		require.ErrorIs(t, provider.SuggestOrdered(ctx, "200", deliver), geocoding.ErrStaleResponse)
		require.NoError(t, provider.SuggestOrdered(ctx, "400", deliver))

		assert.Equal(t, []string{"ts 300", "ts 400"}, delivered)
	})

	t.Run("geocode is never guarded", func(t *testing.T) {
		srv, client := newVendor(t, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, `{"geocoding":{"timestamp":1},"features":[]}`)
		})
		provider := geocoding.NewPeliasProvider(client, geocoding.GeocodeEarth, "secret",
			geocoding.PeliasOptions{BaseURL: srv.URL}, discardLogger())

		for range 2 {
			results, err := provider.Geocode(ctx, "x")
			require.NoError(t, err)
			assert.Empty(t, results)
		}
	})
}

func TestPeliasVariants(t *testing.T) {
	assert.Equal(t, "https://api.geocode.earth/v1", geocoding.GeocodeEarth.BaseURL)
	assert.Equal(t, geocoding.GeocodeEarth.BaseURL, geocoding.Mapzen.BaseURL)
	assert.Equal(t, "https://api.openrouteservice.org/geocode", geocoding.Openrouteservice.BaseURL)
}
