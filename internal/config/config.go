package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// envPrefix namespaces every environment variable read by MustLoad.
const envPrefix = "MERIDIAN"

// Config holds the configuration settings for the geocoding service.
//
// Fields:
// - Env: The current environment (e.g., local, development, production).
// - Port: The port for the HTTP API and monitoring server.
// - Timeout: Upper bound for one vendor request.
// - UserAgent: User-Agent header sent to vendors.
// - QueryPrefix: Prefix prepended to forward queries.
// - Provider: Configuration of the geocoding provider.
type Config struct {
	Env         string         `mapstructure:"env"`          // Env is the current environment: local, development, production.
	Port        int            `mapstructure:"port"`         // Port is the HTTP API port.
	Timeout     time.Duration  `mapstructure:"timeout"`      // Timeout bounds a single vendor request.
	UserAgent   string         `mapstructure:"user_agent"`   // UserAgent identifies the service to vendors.
	QueryPrefix string         `mapstructure:"query_prefix"` // Query prefix for more accurate geocoding
	Provider    ProviderConfig `mapstructure:"provider"`     // Provider holds the geocoding provider configuration
}

// ProviderConfig holds the settings of the geocoding provider.
// Extra parameters, name properties and the HTML template are usually set from the YAML file.
type ProviderConfig struct {
	Type            string            `mapstructure:"type"`             // Type is the provider type (here, photon, ...).
	APIKey          string            `mapstructure:"api_key"`          // APIKey is the vendor API key.
	AppID           string            `mapstructure:"app_id"`           // AppID is the HERE application id.
	AppCode         string            `mapstructure:"app_code"`         // AppCode is the HERE application code.
	ServiceURL      string            `mapstructure:"service_url"`      // ServiceURL overrides the forward endpoint.
	ReverseURL      string            `mapstructure:"reverse_url"`      // ReverseURL overrides the reverse endpoint.
	ProxRadius      float64           `mapstructure:"prox_radius"`      // ProxRadius is the HERE reverse radius in meters.
	GeocodingParams map[string]string `mapstructure:"geocoding_params"` // Extra forward/suggest query parameters.
	ReverseParams   map[string]string `mapstructure:"reverse_params"`   // Extra reverse query parameters.
	NameProperties  []string          `mapstructure:"name_properties"`  // Photon name properties in priority order.
	HTMLTemplate    string            `mapstructure:"html_template"`    // Photon label template (html/template syntax).
}

// MustLoad loads the configuration from the environment, a .env file and an optional YAML file
// named by MERIDIAN_CONFIG, and returns a Config struct. It panics on invalid values.
func MustLoad() *Config {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("env", "production")
	v.SetDefault("port", "8080")
	v.SetDefault("timeout", "10s")
	v.SetDefault("query_prefix", "")
	v.SetDefault("provider.type", "photon") // Photon needs no credentials

	var params providerParams
	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			panic("failed to read configuration file: " + err.Error())
		}

		var err error
		if params, err = readProviderParams(path); err != nil {
			panic("failed to read provider parameters: " + err.Error())
		}
	}

	timeout, err := time.ParseDuration(v.GetString("timeout"))
	if err != nil {
		panic("failed to parse timeout from configuration")
	}

	port, err := strconv.Atoi(v.GetString("port"))
	if err != nil {
		panic("failed to parse port for http server from configuration")
	}

	var radius float64
	if raw := v.GetString("provider.prox_radius"); raw != "" {
		radius, err = strconv.ParseFloat(raw, 64)
		if err != nil {
			panic("failed to parse proximity radius from configuration, must be a number")
		}
	}

	return &Config{
		Env:         v.GetString("env"),
		Port:        port,
		Timeout:     timeout,
		UserAgent:   v.GetString("user_agent"),
		QueryPrefix: v.GetString("query_prefix"),
		Provider: ProviderConfig{
			Type:            v.GetString("provider.type"),
			APIKey:          v.GetString("provider.api_key"),
			AppID:           v.GetString("provider.app_id"),
			AppCode:         v.GetString("provider.app_code"),
			ServiceURL:      v.GetString("provider.service_url"),
			ReverseURL:      v.GetString("provider.reverse_url"),
			ProxRadius:      radius,
			GeocodingParams: params.Provider.GeocodingParams,
			ReverseParams:   params.Provider.ReverseParams,
			NameProperties:  v.GetStringSlice("provider.name_properties"),
			HTMLTemplate:    v.GetString("provider.html_template"),
		},
	}
}

// providerParams mirrors the parameter maps of the YAML file. Viper lowercases map keys,
// while vendor parameters such as "focus.point.lat" or "countryCode" must be sent verbatim.
type providerParams struct {
	Provider struct {
		GeocodingParams map[string]string `yaml:"geocoding_params"`
		ReverseParams   map[string]string `yaml:"reverse_params"`
	} `yaml:"provider"`
}

func readProviderParams(path string) (providerParams, error) {
	var params providerParams

	data, err := os.ReadFile(path)
	if err != nil {
		return params, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err = yaml.Unmarshal(data, &params); err != nil {
		return params, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	return params, nil
}
