package main

import (
	"fmt"
	"log/slog"

	"github.com/UnknownOlympus/meridian/internal/config"
	"github.com/UnknownOlympus/meridian/internal/geocoding"
	"github.com/UnknownOlympus/meridian/internal/metrics"
	"github.com/UnknownOlympus/meridian/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "meridian",
	Short: "Provider-agnostic geocoding",
	Long: `
meridian asks one of several geocoding services (HERE, OpenCage, the Pelias family,
Photon, What3Words or Google) for places matching a query or a coordinate and
returns them in one normalized shape.

The provider is selected with MERIDIAN_PROVIDER_TYPE; see MERIDIAN_CONFIG for the
YAML file carrying extra parameters.
`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd, geocodeCmd, suggestCmd, reverseCmd)
}

// app bundles what every command needs.
type app struct {
	cfg      *config.Config
	log      *slog.Logger
	registry *prometheus.Registry
	provider *service.InstrumentedProvider
}

// newApp loads configuration and builds the instrumented provider.
func newApp() (*app, error) {
	// Load application configuration.
	cfg := config.MustLoad()

	// Set up the logger based on the environment.
	logger := setupLogger(cfg.Env)

	// Create a separate registry for metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.NewMetrics(reg)

	providerConfig := geocoding.ProviderConfig{
		Type:            geocoding.ProviderType(cfg.Provider.Type),
		APIKey:          cfg.Provider.APIKey,
		AppID:           cfg.Provider.AppID,
		AppCode:         cfg.Provider.AppCode,
		ServiceURL:      cfg.Provider.ServiceURL,
		ReverseURL:      cfg.Provider.ReverseURL,
		GeocodingParams: cfg.Provider.GeocodingParams,
		ReverseParams:   cfg.Provider.ReverseParams,
		ProxRadius:      cfg.Provider.ProxRadius,
		NameProperties:  cfg.Provider.NameProperties,
		Timeout:         cfg.Timeout,
		UserAgent:       cfg.UserAgent,
		Logger:          logger,
	}

	if cfg.Provider.HTMLTemplate != "" {
		tmpl, err := geocoding.ParseHTMLTemplate(cfg.Provider.HTMLTemplate)
		if err != nil {
			return nil, err
		}
		providerConfig.HTMLTemplate = tmpl
	}

	// Create geocoding provider using factory pattern based on configuration
	geoProvider, err := geocoding.NewProvider(providerConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create geocoding provider: %w", err)
	}

	logger.Info("Geocoding provider initialized", "type", cfg.Provider.Type)

	return &app{
		cfg:      cfg,
		log:      logger,
		registry: reg,
		provider: service.NewInstrumentedProvider(geoProvider, cfg.Provider.Type, appMetrics),
	}, nil
}
