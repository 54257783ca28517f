package geocoding

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/UnknownOlympus/meridian/internal/transport"
	"googlemaps.github.io/maps"
)

// ProviderType represents the type of geocoding provider.
type ProviderType string

const (
	// ProviderTypeHere represents the HERE Geocoder API.
	ProviderTypeHere ProviderType = "here"
	// ProviderTypeOpenCage represents the OpenCage geocoding API.
	ProviderTypeOpenCage ProviderType = "opencage"
	// ProviderTypePelias represents a Pelias API, GeocodeEarth by default.
	ProviderTypePelias ProviderType = "pelias"
	// ProviderTypeGeocodeEarth represents the GeocodeEarth Pelias deployment.
	ProviderTypeGeocodeEarth ProviderType = "geocodeearth"
	// ProviderTypeMapzen is kept as an alias of GeocodeEarth.
	ProviderTypeMapzen ProviderType = "mapzen"
	// ProviderTypeOpenrouteservice represents the Openrouteservice Pelias deployment.
	ProviderTypeOpenrouteservice ProviderType = "openrouteservice"
	// ProviderTypePhoton represents the Photon (komoot) geocoder.
	ProviderTypePhoton ProviderType = "photon"
	// ProviderTypeWhat3Words represents the What3Words API.
	ProviderTypeWhat3Words ProviderType = "what3words"
	// ProviderTypeGoogle represents Google Maps geocoding provider.
	ProviderTypeGoogle ProviderType = "google"
)

// defaultTimeout bounds every vendor call when no HTTP client is supplied.
const defaultTimeout = 10 * time.Second

// ProviderConfig holds configuration for creating a geocoding provider.
type ProviderConfig struct {
	Type            ProviderType      // Type of provider to create
	APIKey          string            // API key (OpenCage, Pelias family, What3Words, Google)
	AppID           string            // Application id (HERE)
	AppCode         string            // Application code (HERE)
	ServiceURL      string            // Overrides the forward (or base) endpoint
	ReverseURL      string            // Overrides the reverse endpoint (HERE, Photon)
	GeocodingParams map[string]string // Extra query parameters for forward and suggest requests
	ReverseParams   map[string]string // Extra query parameters for reverse requests
	ProxRadius      float64           // Reverse proximity radius in meters (HERE)
	NameProperties  []string          // Ordered name properties (Photon)
	HTMLTemplate    HTMLTemplate      // Label renderer (Photon)
	Timeout         time.Duration     // HTTP timeout, defaults to 10s
	UserAgent       string            // User-Agent sent to vendors
	Fetcher         JSONFetcher       // Optional transport, a transport.Client is built when nil
	Logger          *slog.Logger      // Logger for the provider
}

// NewProvider creates a geocoding provider based on the provided configuration.
// It applies the Factory pattern to decouple provider instantiation from business logic.
//
// Returns an error if the provider type is unsupported or if required credentials are missing.
func NewProvider(config ProviderConfig) (Provider, error) {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	switch config.Type {
	case ProviderTypeHere:
		return newHereProvider(config)
	case ProviderTypeOpenCage:
		return newOpenCageProvider(config)
	case ProviderTypePelias, ProviderTypeGeocodeEarth:
		return newPeliasProvider(config, GeocodeEarth)
	case ProviderTypeMapzen:
		return newPeliasProvider(config, Mapzen)
	case ProviderTypeOpenrouteservice:
		return newPeliasProvider(config, Openrouteservice)
	case ProviderTypePhoton:
		return newPhotonProvider(config), nil
	case ProviderTypeWhat3Words:
		return newWhat3WordsProvider(config)
	case ProviderTypeGoogle:
		return newGoogleProvider(config)
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", config.Type)
	}
}

// fetcher returns the configured transport or builds the default one.
func (config ProviderConfig) fetcher() JSONFetcher {
	if config.Fetcher != nil {
		return config.Fetcher
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return transport.NewClient(timeout, config.UserAgent, config.Logger)
}

// newHereProvider creates a HERE geocoding provider.
func newHereProvider(config ProviderConfig) (Provider, error) {
	if config.AppID == "" || config.AppCode == "" {
		return nil, errors.New("app id and app code are required for HERE provider")
	}

	return NewHereProvider(config.fetcher(), HereOptions{
		GeocodeURL:      config.ServiceURL,
		ReverseURL:      config.ReverseURL,
		AppID:           config.AppID,
		AppCode:         config.AppCode,
		GeocodingParams: config.GeocodingParams,
		ReverseParams:   config.ReverseParams,
		ProxRadius:      config.ProxRadius,
	}, config.Logger), nil
}

// newOpenCageProvider creates an OpenCage geocoding provider.
func newOpenCageProvider(config ProviderConfig) (Provider, error) {
	if config.APIKey == "" {
		return nil, errors.New("API key is required for OpenCage provider")
	}

	return NewOpenCageProvider(config.fetcher(), config.APIKey, OpenCageOptions{
		ServiceURL:      config.ServiceURL,
		GeocodingParams: config.GeocodingParams,
		ReverseParams:   config.ReverseParams,
	}, config.Logger), nil
}

// newPeliasProvider creates a provider for one of the Pelias deployments.
func newPeliasProvider(config ProviderConfig, variant PeliasVariant) (Provider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key is required for %s provider", variant.Name)
	}

	return NewPeliasProvider(config.fetcher(), variant, config.APIKey, PeliasOptions{
		BaseURL:         config.ServiceURL,
		GeocodingParams: config.GeocodingParams,
		ReverseParams:   config.ReverseParams,
	}, config.Logger), nil
}

// newPhotonProvider creates a Photon geocoding provider. Photon is free and doesn't require an API key.
func newPhotonProvider(config ProviderConfig) Provider {
	return NewPhotonProvider(config.fetcher(), PhotonOptions{
		ServiceURL:      config.ServiceURL,
		ReverseURL:      config.ReverseURL,
		NameProperties:  config.NameProperties,
		HTMLTemplate:    config.HTMLTemplate,
		GeocodingParams: config.GeocodingParams,
		ReverseParams:   config.ReverseParams,
	}, config.Logger)
}

// newWhat3WordsProvider creates a What3Words provider.
func newWhat3WordsProvider(config ProviderConfig) (Provider, error) {
	if config.APIKey == "" {
		return nil, errors.New("API key is required for What3Words provider")
	}

	return NewWhat3WordsProvider(config.fetcher(), config.APIKey, What3WordsOptions{
		ServiceURL:      config.ServiceURL,
		GeocodingParams: config.GeocodingParams,
		ReverseParams:   config.ReverseParams,
	}, config.Logger), nil
}

// newGoogleProvider creates a Google Maps geocoding provider.
func newGoogleProvider(config ProviderConfig) (Provider, error) {
	if config.APIKey == "" {
		return nil, errors.New("API key is required for Google provider")
	}

	clientOpts := []maps.ClientOption{
		maps.WithAPIKey(config.APIKey),
	}
	if config.ServiceURL != "" {
		clientOpts = append(clientOpts, maps.WithBaseURL(config.ServiceURL))
	}

	client, err := maps.NewClient(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Google Maps client: %w", err)
	}

	provider := NewGoogleProvider(client, config.Logger)
	provider.geocodingParams = config.GeocodingParams
	provider.reverseParams = config.ReverseParams

	return provider, nil
}
