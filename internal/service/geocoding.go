package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/UnknownOlympus/meridian/internal/geocoding"
	"github.com/UnknownOlympus/meridian/internal/models"
	"github.com/google/uuid"
)

// ResultHandler receives the outcome of one asynchronous call.
// It is invoked at most once per call, from the call's own goroutine.
type ResultHandler func(results []models.Result)

// ErrorHandler receives provider failures. The ResultHandler of a failed call
// still sees an empty slice, so hosts that only render results may ignore errors.
type ErrorHandler func(method string, err error)

// Option configures a GeocodingService.
type Option func(*GeocodingService)

// WithErrorHandler installs a handler for transport and vendor failures.
func WithErrorHandler(handler ErrorHandler) Option {
	return func(gs *GeocodingService) {
		gs.onError = handler
	}
}

// WithQueryPrefix prepends prefix to every forward and suggest query
// (indicating country, city, etc. for more accurate geocoding).
func WithQueryPrefix(prefix string) Option {
	return func(gs *GeocodingService) {
		gs.queryPrefix = prefix
	}
}

// GeocodingService exposes a provider through the callback protocol used by map hosts:
// every call runs in its own goroutine and reports through a ResultHandler.
// Superseded calls are not cancelled; Pelias suggestions that arrive out of order are dropped.
type GeocodingService struct {
	log         *slog.Logger       // Logger for logging service activities
	provider    geocoding.Provider // Geocoding provider for external geocoding services
	onError     ErrorHandler       // Optional failure channel
	queryPrefix string             // Prefix prepended to forward and suggest queries
	wg          sync.WaitGroup     // Tracks dispatched calls for Wait
}

// NewGeocodingService creates a new instance of GeocodingService.
func NewGeocodingService(log *slog.Logger, provider geocoding.Provider, opts ...Option) *GeocodingService {
	gs := &GeocodingService{log: log, provider: provider}
	for _, opt := range opts {
		opt(gs)
	}

	return gs
}

// Geocode looks up query and passes the candidates to onResult.
func (gs *GeocodingService) Geocode(query string, onResult ResultHandler) {
	query = gs.queryPrefix + query
	gs.dispatch(MethodGeocode, func(ctx context.Context, deliver ResultHandler) error {
		results, err := gs.provider.Geocode(ctx, query)
		if err != nil {
			return err
		}
		deliver(results)
		return nil
	}, onResult)
}

// Suggest runs a typeahead lookup for query. When the response is older than one already
// delivered, onResult is never called. Providers with an ordering guard call onResult while
// holding it, so a newer suggestion is never followed by an older one.
func (gs *GeocodingService) Suggest(query string, onResult ResultHandler) {
	query = gs.queryPrefix + query
	gs.dispatch(MethodSuggest, func(ctx context.Context, deliver ResultHandler) error {
		return geocoding.SuggestTo(ctx, gs.provider, query, deliver)
	}, onResult)
}

// Reverse looks up the places at point and passes them to onResult.
func (gs *GeocodingService) Reverse(point models.LatLng, onResult ResultHandler) {
	gs.dispatch(MethodReverse, func(ctx context.Context, deliver ResultHandler) error {
		results, err := gs.provider.Reverse(ctx, point)
		if err != nil {
			return err
		}
		deliver(results)
		return nil
	}, onResult)
}

// Wait blocks until every dispatched call has settled.
func (gs *GeocodingService) Wait() {
	gs.wg.Wait()
}

// dispatch issues exactly one provider call in a new goroutine. call hands its results to deliver
// at most once and only when it returns nil.
func (gs *GeocodingService) dispatch(
	method string,
	call func(ctx context.Context, deliver ResultHandler) error,
	onResult ResultHandler,
) {
	gs.wg.Add(1)
	go func() {
		defer gs.wg.Done()

		ctx := context.Background()
		log := gs.log.With("method", method, "request_id", uuid.NewString())
		log.DebugContext(ctx, "Dispatching geocoding call")

		deliver := func(results []models.Result) {
			if results == nil {
				results = []models.Result{}
			}
			log.DebugContext(ctx, "Delivering results", "count", len(results))
			if onResult != nil {
				onResult(results)
			}
		}

		err := call(ctx, deliver)
		switch {
		case errors.Is(err, geocoding.ErrStaleResponse):
			log.DebugContext(ctx, "Dropping stale response")
		case err != nil:
			log.ErrorContext(ctx, "Geocoding call failed", "error", err)
			if gs.onError != nil {
				gs.onError(method, err)
			}
			deliver([]models.Result{})
		}
	}()
}
