package models

import "time"

// Config represents the main configuration
type Config struct {
	HTTP   HTTPConfig    `mapstructure:"http"`
	Proxy  ProxyConfig   `mapstructure:"proxy"`
	Store  StoreConfig   `mapstructure:"store"`
	Log    LogConfig     `mapstructure:"log"`
	Filter FilterSection `mapstructure:"filter"`
}

// HTTPConfig contains HTTP client settings
type HTTPConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
	Retries int           `mapstructure:"retries"`
}

// ProxyConfig contains the filtering proxy settings
type ProxyConfig struct {
	Listen         string   `mapstructure:"listen"`
	Upstream       string   `mapstructure:"upstream"`
	Endpoints      []string `mapstructure:"endpoints"`       // path suffixes whose responses get filtered
	AllowedOrigins []string `mapstructure:"allowed_origins"` // CORS origins of the control API
}

// StoreConfig contains persistence settings
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// LogConfig contains logger settings
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// FilterSection holds the file-level filter constants. User toggles live in
// the store, not here.
type FilterSection struct {
	TopRarity int `mapstructure:"top_rarity"`
}

// DefaultTopRarity is the rarity tier treated as top rarity when the
// config does not say otherwise.
const DefaultTopRarity = 6

// DefaultQueryEndpoint is the copilot listing query path.
const DefaultQueryEndpoint = "/copilot/query"

// DefaultAllowedOrigins are the copilot site's page origins.
var DefaultAllowedOrigins = []string{"https://prts.plus", "https://zoot.plus"}

// FilterConfig is the user-editable filter settings.
type FilterConfig struct {
	Enabled                     bool `json:"enabled"`
	AllowOneMissing             bool `json:"allow_one_missing"`
	RequireEliteTwoForTopRarity bool `json:"require_elite_two"`
	TopRarity                   int  `json:"top_rarity"`
}

// DefaultFilterConfig returns the settings used before the user changes anything
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		Enabled:                     true,
		AllowOneMissing:             false,
		RequireEliteTwoForTopRarity: true,
		TopRarity:                   DefaultTopRarity,
	}
}

// EndpointsOrDefault returns the configured endpoints, falling back to the
// copilot query path
func (p ProxyConfig) EndpointsOrDefault() []string {
	if len(p.Endpoints) == 0 {
		return []string{DefaultQueryEndpoint}
	}
	return p.Endpoints
}

// AllowedOriginsOrDefault returns the configured control API origins,
// falling back to the copilot site
func (p ProxyConfig) AllowedOriginsOrDefault() []string {
	if len(p.AllowedOrigins) == 0 {
		return DefaultAllowedOrigins
	}
	return p.AllowedOrigins
}
