package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/UnknownOlympus/meridian/internal/geocoding"
	"github.com/UnknownOlympus/meridian/internal/metrics"
	"github.com/UnknownOlympus/meridian/internal/models"
	"github.com/UnknownOlympus/meridian/test/mocks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// collector records every callback invocation.
type collector struct {
	mu    sync.Mutex
	calls [][]models.Result
}

func (c *collector) handle(results []models.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, results)
}

func (c *collector) snapshot() [][]models.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]models.Result(nil), c.calls...)
}

// suggestingProvider combines the provider and suggester mocks.
type suggestingProvider struct {
	*mocks.Provider
	*mocks.Suggester
}

func TestGeocodingService(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	center := models.LatLng{Lat: 50.45, Lng: 30.52}
	kyiv := []models.Result{models.NewResult("Kyiv", center, models.PointBounds(center), nil)}

	t.Run("successfull geocoding", func(t *testing.T) {
		mockProvider := mocks.NewProvider(t)
		service := NewGeocodingService(logger, mockProvider)
		got := &collector{}

		mockProvider.On("Geocode", mock.Anything, "Kyiv").Return(kyiv, nil).Once()

		service.Geocode("Kyiv", got.handle)
		service.Wait()

		require.Len(t, got.snapshot(), 1)
		assert.Equal(t, kyiv, got.snapshot()[0])
	})

	t.Run("query prefix is prepended", func(t *testing.T) {
		mockProvider := mocks.NewProvider(t)
		service := NewGeocodingService(logger, mockProvider, WithQueryPrefix("Ukraine, "))
		got := &collector{}

		mockProvider.On("Geocode", mock.Anything, "Ukraine, Kyiv").Return(kyiv, nil).Once()

		service.Geocode("Kyiv", got.handle)
		service.Wait()

		require.Len(t, got.snapshot(), 1)
	})

	t.Run("provider error yields empty slice", func(t *testing.T) {
		mockProvider := mocks.NewProvider(t)
		var (
			mu      sync.Mutex
			methods []string
		)
		service := NewGeocodingService(logger, mockProvider, WithErrorHandler(func(method string, err error) {
			mu.Lock()
			defer mu.Unlock()
			methods = append(methods, method)
			assert.ErrorIs(t, err, assert.AnError)
		}))
		got := &collector{}

		mockProvider.On("Geocode", mock.Anything, "Invalid Address").Return(nil, assert.AnError).Once()
		mockProvider.On("Reverse", mock.Anything, models.LatLng{Lat: 1, Lng: 2}).Return(nil, assert.AnError).Once()

		service.Geocode("Invalid Address", got.handle)
		service.Reverse(models.LatLng{Lat: 1, Lng: 2}, got.handle)
		service.Wait()

		calls := got.snapshot()
		require.Len(t, calls, 2)
		for _, results := range calls {
			require.NotNil(t, results)
			assert.Empty(t, results)
		}
		assert.ElementsMatch(t, []string{MethodGeocode, MethodReverse}, methods)
	})

	t.Run("nil results become empty slice", func(t *testing.T) {
		mockProvider := mocks.NewProvider(t)
		service := NewGeocodingService(logger, mockProvider)
		got := &collector{}

		mockProvider.On("Reverse", mock.Anything, models.LatLng{Lat: 3, Lng: 4}).Return(nil, nil).Once()

		service.Reverse(models.LatLng{Lat: 3, Lng: 4}, got.handle)
		service.Wait()

		require.Len(t, got.snapshot(), 1)
		assert.NotNil(t, got.snapshot()[0])
	})

	t.Run("suggest falls back to geocode", func(t *testing.T) {
		mockProvider := mocks.NewProvider(t)
		service := NewGeocodingService(logger, mockProvider)
		got := &collector{}

		mockProvider.On("Geocode", mock.Anything, "Ky").Return(kyiv, nil).Once()

		service.Suggest("Ky", got.handle)
		service.Wait()

		require.Len(t, got.snapshot(), 1)
	})

	t.Run("stale suggestion never calls back", func(t *testing.T) {
		provider := suggestingProvider{Provider: mocks.NewProvider(t), Suggester: mocks.NewSuggester(t)}
		service := NewGeocodingService(logger, provider, WithErrorHandler(func(string, error) {
			t.Error("stale responses are not failures")
		}))
		got := &collector{}

		provider.Suggester.On("Suggest", mock.Anything, "Ky").Return(nil, geocoding.ErrStaleResponse).Once()

		service.Suggest("Ky", got.handle)
		service.Wait()

		assert.Empty(t, got.snapshot())
	})

	t.Run("each call issues one request", func(t *testing.T) {
		mockProvider := mocks.NewProvider(t)
		service := NewGeocodingService(logger, mockProvider)
		got := &collector{}

		const calls = 5
		mockProvider.On("Geocode", mock.Anything, "Kyiv").Return(kyiv, nil).Times(calls)

		for range calls {
			service.Geocode("Kyiv", got.handle)
		}
		service.Wait()

		assert.Len(t, got.snapshot(), calls)
	})
}

// timestampFetcher serves Pelias autocomplete payloads whose timestamp is the query text.
type timestampFetcher struct{}

func (timestampFetcher) GetJSON(_ context.Context, _ string, params url.Values, v any) error {
	ts := params.Get("text")
	if ts == "fail" {
		return errors.New("connection refused")
	}
	body := fmt.Sprintf(`{"geocoding":{"timestamp":%s},"features":[{"type":"Feature",
		"geometry":{"type":"Point","coordinates":[13.4,52.5]},"properties":{"label":"ts %s"}}]}`, ts, ts)

	return json.Unmarshal([]byte(body), v)
}

func TestGeocodingService_PeliasOrdering(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	provider := geocoding.NewPeliasProvider(timestampFetcher{}, geocoding.GeocodeEarth, "key",
		geocoding.PeliasOptions{}, logger)
	service := NewGeocodingService(logger, provider)
	got := &collector{}

	// Completions arrive in the order 100, 50, 200, 300.
	for _, ts := range []string{"100", "50", "200", "300"} {
		service.Suggest(ts, got.handle)
		service.Wait()
	}

	calls := got.snapshot()
	require.Len(t, calls, 3)
	assert.Equal(t, "ts 100", calls[0][0].Name)
	assert.Equal(t, "ts 200", calls[1][0].Name)
	assert.Equal(t, "ts 300", calls[2][0].Name)

	// A failed request reports an empty slice and leaves the guard untouched.
	service.Suggest("fail", got.handle)
	service.Wait()
	service.Suggest("301", got.handle)
	service.Wait()

	calls = got.snapshot()
	require.Len(t, calls, 5)
	assert.Empty(t, calls[3])
	assert.Equal(t, "ts 301", calls[4][0].Name)
}

// gatedFetcher serves Pelias autocomplete payloads whose timestamp is the query text.
// A request whose timestamp has a gate waits for it to close; every served timestamp is
// reported on fetched.
type gatedFetcher struct {
	gates   map[string]chan struct{}
	fetched chan string
}

func (f *gatedFetcher) GetJSON(ctx context.Context, endpoint string, params url.Values, v any) error {
	ts := params.Get("text")
	if gate, ok := f.gates[ts]; ok {
		<-gate
	}
	f.fetched <- ts

	return timestampFetcher{}.GetJSON(ctx, endpoint, params, v)
}

func TestGeocodingService_OverlappingSuggestions(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	t.Run("older response finishing last is dropped", func(t *testing.T) {
		release := make(chan struct{})
		fetcher := &gatedFetcher{gates: map[string]chan struct{}{"100": release}, fetched: make(chan string, 2)}
		provider := geocoding.NewPeliasProvider(fetcher, geocoding.GeocodeEarth, "key", geocoding.PeliasOptions{}, logger)
		service := NewGeocodingService(logger, provider)
		got := &collector{}
		delivered300 := make(chan struct{})

		service.Suggest("100", got.handle)
		service.Suggest("300", func(results []models.Result) {
			got.handle(results)
			close(delivered300)
		})

		<-delivered300
		close(release)
		service.Wait()

		calls := got.snapshot()
		require.Len(t, calls, 1)
		assert.Equal(t, "ts 300", calls[0][0].Name)
	})

	t.Run("newer response waits for the delivery in progress", func(t *testing.T) {
		fetcher := &gatedFetcher{fetched: make(chan string, 2)}
		provider := geocoding.NewPeliasProvider(fetcher, geocoding.GeocodeEarth, "key", geocoding.PeliasOptions{}, logger)
		instrumented := NewInstrumentedProvider(provider, "geocodeearth", metrics.NewMetrics(prometheus.NewRegistry()))
		service := NewGeocodingService(logger, instrumented)
		got := &collector{}
		entered := make(chan struct{})
		release := make(chan struct{})

		service.Suggest("100", func(results []models.Result) {
			close(entered)
			<-release
			got.handle(results)
		})
		<-entered
		require.Equal(t, "100", <-fetcher.fetched)

		service.Suggest("300", got.handle)
		// Once 300 has been fetched it can only be delivered after 100 finishes.
		require.Equal(t, "300", <-fetcher.fetched)
		close(release)
		service.Wait()

		calls := got.snapshot()
		require.Len(t, calls, 2)
		assert.Equal(t, "ts 100", calls[0][0].Name)
		assert.Equal(t, "ts 300", calls[1][0].Name)
	})

	t.Run("many overlapping calls end on the newest", func(t *testing.T) {
		fetcher := &gatedFetcher{fetched: make(chan string, 50)}
		provider := geocoding.NewPeliasProvider(fetcher, geocoding.GeocodeEarth, "key", geocoding.PeliasOptions{}, logger)
		service := NewGeocodingService(logger, provider)
		got := &collector{}

		for ts := 1; ts <= 50; ts++ {
			service.Suggest(strconv.Itoa(ts), got.handle)
		}
		service.Wait()

		calls := got.snapshot()
		require.NotEmpty(t, calls)
		assert.Equal(t, "ts 50", calls[len(calls)-1][0].Name)
		for i := 1; i < len(calls); i++ {
			prev, _ := strconv.Atoi(strings.TrimPrefix(calls[i-1][0].Name, "ts "))
			next, _ := strconv.Atoi(strings.TrimPrefix(calls[i][0].Name, "ts "))
			assert.Less(t, prev, next, "deliveries must be strictly increasing")
		}
	})
}
