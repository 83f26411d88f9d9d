package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds every runtime setting for the service. It is constructed once
// in main and passed to the components that need it.
type Config struct {
	Listen string `yaml:"listen" validate:"required"`

	UpstreamURL            string `yaml:"upstreamURL" validate:"required,url"`
	UpstreamTimeoutSeconds int    `yaml:"upstreamTimeoutSeconds" validate:"gt=0"`

	CacheDir          string `yaml:"cacheDir" validate:"required"`
	StopDirectoryPath string `yaml:"stopDirectory"`
}

const defaultUpstreamURL = "https://jizdnirady.pmdp.cz/odjezdy/virtualtable"

// Load reads the optional YAML config file, applies ODJEZDY_* environment
// variable overrides and validates the result. An empty path skips the file
// and yields defaults plus environment overrides.
func Load(path string) (*Config, error) {
	cfg := Config{
		Listen:                 ":8080",
		UpstreamURL:            defaultUpstreamURL,
		UpstreamTimeoutSeconds: 10,
		CacheDir:               filepath.Join(os.TempDir(), "odjezdy-cache"),
		StopDirectoryPath:      "stops.json",
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}

		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	}

	if listen := os.Getenv("ODJEZDY_LISTEN"); listen != "" {
		cfg.Listen = listen
	}
	if upstream := os.Getenv("ODJEZDY_UPSTREAM_URL"); upstream != "" {
		cfg.UpstreamURL = upstream
	}
	if cacheDir := os.Getenv("ODJEZDY_CACHE_DIR"); cacheDir != "" {
		cfg.CacheDir = cacheDir
	}
	if stopsFile := os.Getenv("ODJEZDY_STOPS_FILE"); stopsFile != "" {
		cfg.StopDirectoryPath = stopsFile
	}

	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) UpstreamTimeout() time.Duration {
	return time.Duration(c.UpstreamTimeoutSeconds) * time.Second
}
