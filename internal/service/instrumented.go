package service

import (
	"context"
	"errors"
	"time"

	"github.com/UnknownOlympus/meridian/internal/geocoding"
	"github.com/UnknownOlympus/meridian/internal/metrics"
	"github.com/UnknownOlympus/meridian/internal/models"
)

// Method names used for metric labels and error reporting.
const (
	MethodGeocode = "geocode"
	MethodSuggest = "suggest"
	MethodReverse = "reverse"
)

// InstrumentedProvider records prometheus metrics around every call of the wrapped provider.
// It always implements geocoding.Suggester and geocoding.OrderedSuggester, delegating through
// geocoding.Suggest and geocoding.SuggestTo so providers without a typeahead endpoint keep
// falling back to Geocode and ordered providers keep their delivery guard.
type InstrumentedProvider struct {
	provider     geocoding.Provider // provider is the wrapped vendor adapter
	providerName string             // providerName is the metrics label
	metrics      *metrics.Metrics   // metrics receives the observations
}

// NewInstrumentedProvider wraps provider with metrics labelled by providerName.
func NewInstrumentedProvider(
	provider geocoding.Provider,
	providerName string,
	metrics *metrics.Metrics,
) *InstrumentedProvider {
	return &InstrumentedProvider{provider: provider, providerName: providerName, metrics: metrics}
}

// Geocode forwards to the wrapped provider.
func (ip *InstrumentedProvider) Geocode(ctx context.Context, query string) ([]models.Result, error) {
	return ip.observe(MethodGeocode, func() ([]models.Result, error) {
		return ip.provider.Geocode(ctx, query)
	})
}

// Suggest forwards to the wrapped provider's typeahead endpoint, or its Geocode when it has none.
func (ip *InstrumentedProvider) Suggest(ctx context.Context, query string) ([]models.Result, error) {
	return ip.observe(MethodSuggest, func() ([]models.Result, error) {
		return geocoding.Suggest(ctx, ip.provider, query)
	})
}

// SuggestOrdered forwards to the wrapped provider, delivering inside its ordering guard when it has one.
func (ip *InstrumentedProvider) SuggestOrdered(
	ctx context.Context,
	query string,
	deliver func([]models.Result),
) error {
	_, err := ip.observe(MethodSuggest, func() ([]models.Result, error) {
		var delivered []models.Result
		err := geocoding.SuggestTo(ctx, ip.provider, query, func(results []models.Result) {
			delivered = results
			deliver(results)
		})
		return delivered, err
	})

	return err
}

// Reverse forwards to the wrapped provider.
func (ip *InstrumentedProvider) Reverse(ctx context.Context, point models.LatLng) ([]models.Result, error) {
	return ip.observe(MethodReverse, func() ([]models.Result, error) {
		return ip.provider.Reverse(ctx, point)
	})
}

func (ip *InstrumentedProvider) observe(
	method string,
	call func() ([]models.Result, error),
) ([]models.Result, error) {
	ip.metrics.InFlight.Inc()
	defer ip.metrics.InFlight.Dec()

	startTime := time.Now()
	results, err := call()
	duration := time.Since(startTime).Seconds()
	ip.metrics.RequestSeconds.WithLabelValues(ip.providerName, method).Observe(duration)

	outcome := metrics.OutcomeSuccess
	switch {
	case errors.Is(err, geocoding.ErrStaleResponse):
		outcome = metrics.OutcomeStale
	case err != nil:
		outcome = metrics.OutcomeError
		ip.metrics.APIErrors.WithLabelValues(ip.providerName).Inc()
	case len(results) == 0:
		outcome = metrics.OutcomeEmpty
	}
	ip.metrics.ProviderCalls.WithLabelValues(ip.providerName, method, outcome).Inc()

	if err == nil {
		ip.metrics.ResultsPerCall.WithLabelValues(ip.providerName, method).Observe(float64(len(results)))
	}

	return results, err
}
